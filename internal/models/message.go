package models

import (
	"time"

	"github.com/pr0br0/cyboard/internal/utils"
)

type Message struct {
	Base      `bson:",inline"`
	Sender    utils.SixID `bson:"sender" json:"sender"`
	Recipient utils.SixID `bson:"recipient" json:"recipient"`
	Listing   utils.SixID `bson:"listing" json:"listing"`
	Body      string      `bson:"body" json:"body"`
	Read      bool        `bson:"read" json:"read"`
	ReadAt    *time.Time  `bson:"read_at,omitempty" json:"readAt,omitempty"`
	CreatedAt time.Time   `bson:"created_at" json:"createdAt"`
}

const MessageMaxLen = 2000

// Conversation is the latest message exchanged with one peer.
type Conversation struct {
	Peer        utils.SixID `json:"peer"`
	LastMessage *Message    `json:"lastMessage"`
	UnreadCount int         `json:"unreadCount"`
}
