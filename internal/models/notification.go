package models

import (
	"time"

	"github.com/pr0br0/cyboard/internal/utils"
)

type NotificationType string

const (
	NotificationNewMessage      NotificationType = "new_message"
	NotificationListingExpired  NotificationType = "listing_expired"
	NotificationListingApproved NotificationType = "listing_approved"
	NotificationListingRejected NotificationType = "listing_rejected"
	NotificationListingView     NotificationType = "listing_view"
	NotificationAccountUpdate   NotificationType = "account_update"
	NotificationSystem          NotificationType = "system"
)

// Notification is an in-app message rendered from a template. Only IsRead changes after creation.
type Notification struct {
	Base      `bson:",inline"`
	User      utils.SixID       `bson:"user" json:"user"`
	Type      NotificationType  `bson:"type" json:"type"`
	Title     Localized         `bson:"title" json:"title"`
	Message   Localized         `bson:"message" json:"message"`
	Link      string            `bson:"link,omitempty" json:"link,omitempty"`
	IsRead    bool              `bson:"is_read" json:"isRead"`
	Metadata  map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt time.Time         `bson:"created_at" json:"createdAt"`
}
