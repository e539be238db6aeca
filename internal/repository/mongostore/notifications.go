package mongostore

import (
	"context"
	"time"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type notificationRepo struct {
	coll *mongo.Collection
}

func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	n.GenIDIfEmpty()
	_, err := r.coll.InsertOne(ctx, n)
	return mapErr(err, "insert notification")
}

func (r *notificationRepo) List(ctx context.Context, userID utils.SixID, unreadOnly bool, skip, limit int) ([]*models.Notification, int64, error) {
	filter := bson.M{"user": userID}
	if unreadOnly {
		filter["is_read"] = false
	}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mapErr(err, "count notifications")
	}
	out := []*models.Notification{}
	if total == 0 || skip < 0 || int64(skip) >= total {
		return out, total, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, mapErr(err, "find notifications")
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, mapErr(err, "decode notifications")
	}
	return out, total, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, userID utils.SixID, ids []utils.SixID) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"user": userID, "_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, mapErr(err, "mark notifications read")
	}
	return res.ModifiedCount, nil
}

func (r *notificationRepo) deleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, mapErr(err, "delete notifications")
	}
	return res.DeletedCount, nil
}

func (r *notificationRepo) Delete(ctx context.Context, userID utils.SixID, ids []utils.SixID) (int64, error) {
	return r.deleteMany(ctx, bson.M{"user": userID, "_id": bson.M{"$in": ids}})
}

func (r *notificationRepo) DeleteForUser(ctx context.Context, userID utils.SixID) (int64, error) {
	return r.deleteMany(ctx, bson.M{"user": userID})
}

func (r *notificationRepo) CountUnread(ctx context.Context, userID utils.SixID) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"user": userID, "is_read": false})
	return n, mapErr(err, "count unread notifications")
}

func (r *notificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
}
