// Package mongostore implements the repositories on MongoDB.
package mongostore

import (
	"errors"
	"fmt"

	"github.com/pr0br0/cyboard/internal/db"
	"github.com/pr0br0/cyboard/internal/repository"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	usersCollection         = "users"
	categoriesCollection    = "categories"
	listingsCollection      = "listings"
	notificationsCollection = "notifications"
	messagesCollection      = "messages"
	cascadesCollection      = "listing_cascades"
)

// New wires every repository to database.
func New(database *mongo.Database) *repository.Store {
	return &repository.Store{
		Users:         &userRepo{coll: database.Collection(usersCollection)},
		Categories:    &categoryRepo{coll: database.Collection(categoriesCollection)},
		Listings:      &listingRepo{coll: database.Collection(listingsCollection)},
		Notifications: &notificationRepo{coll: database.Collection(notificationsCollection)},
		Messages:      &messageRepo{coll: database.Collection(messagesCollection)},
		Cascades:      &cascadeRepo{coll: database.Collection(cascadesCollection)},
	}
}

// mapErr translates driver errors into repository sentinels.
func mapErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", msg, repository.ErrNotFound)
	case db.IsMongoDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", msg, repository.ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

// requireMatch turns a zero MatchedCount into ErrNotFound.
func requireMatch(res *mongo.UpdateResult, err error, format string, args ...any) error {
	if err != nil {
		return mapErr(err, format, args...)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), repository.ErrNotFound)
	}
	return nil
}
