package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/utils"
)

func TestIssuer_AuthToken(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	id := utils.NewSixID()

	token, err := issuer.IssueAuthToken(id, models.RoleAdmin)
	require.NoError(t, err)

	claims, err := issuer.Validate(token, PurposeAuth)
	require.NoError(t, err)
	got, err := claims.ID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestIssuer_Rejections(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	id := utils.NewSixID()

	reset, err := issuer.IssuePurposeToken(id, PurposeReset, time.Hour)
	require.NoError(t, err)
	_, err = issuer.Validate(reset, PurposeAuth)
	assert.ErrorIs(t, err, ErrTokenInvalid, "purpose must match")

	_, err = NewIssuer("other", time.Hour).Validate(reset, PurposeReset)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = issuer.Validate("not-a-jwt", PurposeAuth)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	past := NewIssuer("secret", time.Hour)
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := past.IssueAuthToken(id, models.RoleUser)
	require.NoError(t, err)
	_, err = issuer.Validate(old, PurposeAuth)
	assert.True(t, errors.Is(err, ErrTokenExpired))
	assert.False(t, errors.Is(err, ErrTokenInvalid))
}

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("hunter22", hash))
	assert.False(t, CheckPasswordHash("hunter23", hash))
	assert.False(t, CheckPasswordHash("hunter22", "garbage"))

	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
}

func TestIssueNumericCode(t *testing.T) {
	code, err := IssueNumericCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
