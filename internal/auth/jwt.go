package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/utils"
)

// Token purposes. Session tokens carry PurposeAuth; the others are single-use links.
const (
	PurposeAuth        = "auth"
	PurposeVerifyEmail = "verify_email"
	PurposeReset       = "reset_password"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims defines the structure of the JWT claims.
type Claims struct {
	UserID  string      `json:"user_id"`
	Role    models.Role `json:"role,omitempty"`
	Purpose string      `json:"purpose"`
	jwt.RegisteredClaims
}

// ID parses the user id carried by the token.
func (c *Claims) ID() (utils.SixID, error) {
	return utils.ParseSixID(c.UserID)
}

// Issuer signs HS256 tokens with a single shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer whose session tokens live for ttl.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// IssueAuthToken creates a session token for the user.
func (i *Issuer) IssueAuthToken(userID utils.SixID, role models.Role) (string, error) {
	return i.sign(userID, role, PurposeAuth, i.ttl)
}

// IssuePurposeToken creates a short-lived token usable only for purpose.
func (i *Issuer) IssuePurposeToken(userID utils.SixID, purpose string, ttl time.Duration) (string, error) {
	return i.sign(userID, "", purpose, ttl)
}

func (i *Issuer) sign(userID utils.SixID, role models.Role, purpose string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := &Claims{
		UserID:  userID.String(),
		Role:    role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// Validate verifies the signature, expiry and purpose of a token.
// Expired tokens yield ErrTokenExpired; everything else yields ErrTokenInvalid.
func (i *Issuer) Validate(tokenString, purpose string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Purpose != purpose {
		return nil, ErrTokenInvalid
	}
	if _, err := claims.ID(); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
