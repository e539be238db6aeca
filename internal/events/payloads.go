package events

import "time"

type ListingEvent struct {
	ListingID  string    `json:"listingId"`
	AuthorID   string    `json:"authorId"`
	CategoryID string    `json:"categoryId"`
	Status     string    `json:"status,omitempty"`
	At         time.Time `json:"at"`
}

type CategoryEvent struct {
	CategoryID string    `json:"categoryId"`
	Action     string    `json:"action"`
	At         time.Time `json:"at"`
}

type MessageEvent struct {
	MessageID   string    `json:"messageId"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	ListingID   string    `json:"listingId"`
	At          time.Time `json:"at"`
}
