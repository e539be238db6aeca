package models

import (
	"time"

	"github.com/pr0br0/cyboard/internal/utils"
)

// UserStatus is the account state. Inactive and banned accounts cannot log in.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusBanned   UserStatus = "banned"
)

// PhoneInfo holds the phone number and its pending verification code.
// Only the bcrypt hash of the code is stored.
type PhoneInfo struct {
	Number        string     `bson:"number,omitempty" json:"number,omitempty"`
	Verified      bool       `bson:"verified" json:"verified"`
	CodeHash      string     `bson:"code_hash,omitempty" json:"-"`
	CodeExpiresAt *time.Time `bson:"code_expires_at,omitempty" json:"-"`
}

// NotificationPreferences allows users to control notification channels.
type NotificationPreferences struct {
	Email bool `bson:"email" json:"email"`
	Push  bool `bson:"push" json:"push"`
}

type Preferences struct {
	Language      string                  `bson:"language" json:"language"`
	Currency      string                  `bson:"currency" json:"currency"`
	Notifications NotificationPreferences `bson:"notifications" json:"notifications"`
}

// DefaultPreferences are applied on registration.
func DefaultPreferences() Preferences {
	return Preferences{
		Language:      LangEn,
		Currency:      CurrencyEUR,
		Notifications: NotificationPreferences{Email: true, Push: true},
	}
}

type UserStats struct {
	TotalListings  int `bson:"total_listings" json:"totalListings"`
	ActiveListings int `bson:"active_listings" json:"activeListings"`
	TotalViews     int `bson:"total_views" json:"totalViews"`
	TotalResponses int `bson:"total_responses" json:"totalResponses"`
}

// User represents an account.
type User struct {
	Base           `bson:",inline"`
	Email          string        `bson:"email" json:"email"`
	PasswordHash   string        `bson:"password" json:"-"`
	Name           string        `bson:"name" json:"name"`
	Phone          PhoneInfo     `bson:"phone" json:"phone"`
	Role           Role          `bson:"role" json:"role"`
	Status         UserStatus    `bson:"status" json:"status"`
	Avatar         string        `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Location       string        `bson:"location,omitempty" json:"location,omitempty"`
	Preferences    Preferences   `bson:"preferences" json:"preferences"`
	Listings       []utils.SixID `bson:"listings" json:"listings"`
	Favorites      []utils.SixID `bson:"favorites" json:"favorites"`
	Stats          UserStats     `bson:"stats" json:"stats"`
	EmailVerified  bool          `bson:"email_verified" json:"emailVerified"`
	ResetTokenHash string        `bson:"reset_token_hash,omitempty" json:"-"`
	ResetExpiresAt *time.Time    `bson:"reset_expires_at,omitempty" json:"-"`
	LastLogin      *time.Time    `bson:"last_login,omitempty" json:"lastLogin,omitempty"`
	LastActive     *time.Time    `bson:"last_active,omitempty" json:"lastActive,omitempty"`
	CreatedAt      time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updatedAt"`
}

// HasFavorite reports whether the listing is in the user's favorites set.
func (u *User) HasFavorite(id utils.SixID) bool {
	for _, f := range u.Favorites {
		if f == id {
			return true
		}
	}
	return false
}

// PublicUser is the subset of a user shown to other users.
type PublicUser struct {
	ID        utils.SixID `json:"id"`
	Name      string      `json:"name"`
	Avatar    string      `json:"avatar,omitempty"`
	Location  string      `json:"location,omitempty"`
	Stats     UserStats   `json:"stats"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Avatar:    u.Avatar,
		Location:  u.Location,
		Stats:     u.Stats,
		CreatedAt: u.CreatedAt,
	}
}

// UserPatch carries optional profile updates. Nil fields are left untouched.
type UserPatch struct {
	Name        *string      `json:"name,omitempty"`
	Phone       *string      `json:"phone,omitempty"`
	Avatar      *string      `json:"avatar,omitempty"`
	Location    *string      `json:"location,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}
