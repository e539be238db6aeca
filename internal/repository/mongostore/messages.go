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

type messageRepo struct {
	coll *mongo.Collection
}

func between(a, b utils.SixID) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"sender": a, "recipient": b},
		bson.M{"sender": b, "recipient": a},
	}}
}

func (r *messageRepo) Create(ctx context.Context, m *models.Message) error {
	m.GenIDIfEmpty()
	_, err := r.coll.InsertOne(ctx, m)
	return mapErr(err, "insert message")
}

func (r *messageRepo) FindByID(ctx context.Context, id utils.SixID) (*models.Message, error) {
	var m models.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, mapErr(err, "find message %s", id)
	}
	return &m, nil
}

func (r *messageRepo) Delete(ctx context.Context, id utils.SixID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err, "delete message %s", id)
	}
	if res.DeletedCount == 0 {
		return mapErr(mongo.ErrNoDocuments, "delete message %s", id)
	}
	return nil
}

func (r *messageRepo) Thread(ctx context.Context, a, b utils.SixID, skip, limit int) ([]*models.Message, int64, error) {
	filter := between(a, b)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mapErr(err, "count thread")
	}
	out := []*models.Message{}
	if total == 0 || skip < 0 || int64(skip) >= total {
		return out, total, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(skip))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, mapErr(err, "find thread")
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, mapErr(err, "decode thread")
	}
	return out, total, nil
}

func (r *messageRepo) MarkRead(ctx context.Context, recipient, sender utils.SixID, at time.Time) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"recipient": recipient, "sender": sender, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": at}},
	)
	if err != nil {
		return 0, mapErr(err, "mark messages read")
	}
	return res.ModifiedCount, nil
}

func (r *messageRepo) CountUnread(ctx context.Context, recipient utils.SixID) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"recipient": recipient, "read": false})
	return n, mapErr(err, "count unread messages")
}

func (r *messageRepo) Conversations(ctx context.Context, userID utils.SixID) ([]models.Conversation, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{bson.M{"sender": userID}, bson.M{"recipient": userID}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$sender", userID}}, "$recipient", "$sender"}},
			"last": bson.M{"$first": "$$ROOT"},
			"unread": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$recipient", userID}},
					bson.M{"$eq": bson.A{"$read", false}},
				}}, 1, 0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last.created_at", Value: -1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mapErr(err, "aggregate conversations")
	}
	var rows []struct {
		Peer   utils.SixID    `bson:"_id"`
		Last   models.Message `bson:"last"`
		Unread int            `bson:"unread"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, mapErr(err, "decode conversations")
	}
	out := make([]models.Conversation, 0, len(rows))
	for i := range rows {
		out = append(out, models.Conversation{Peer: rows[i].Peer, LastMessage: &rows[i].Last, UnreadCount: rows[i].Unread})
	}
	return out, nil
}

func (r *messageRepo) DeleteForUser(ctx context.Context, userID utils.SixID) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"$or": bson.A{bson.M{"sender": userID}, bson.M{"recipient": userID}}})
	if err != nil {
		return 0, mapErr(err, "delete messages of %s", userID)
	}
	return res.DeletedCount, nil
}
