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

type cascadeRepo struct {
	coll *mongo.Collection
}

func (r *cascadeRepo) Create(ctx context.Context, j *models.CascadeJob) error {
	j.GenIDIfEmpty()
	if j.Completed == nil {
		j.Completed = []models.CascadeStep{}
	}
	_, err := r.coll.InsertOne(ctx, j)
	return mapErr(err, "insert cascade job for %s", j.Listing)
}

func (r *cascadeRepo) FindByID(ctx context.Context, id utils.SixID) (*models.CascadeJob, error) {
	var j models.CascadeJob
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&j); err != nil {
		return nil, mapErr(err, "find cascade job %s", id)
	}
	return &j, nil
}

func (r *cascadeRepo) Update(ctx context.Context, j *models.CascadeJob) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": j.ID}, j)
	return requireMatch(res, err, "replace cascade job %s", j.ID)
}

func (r *cascadeRepo) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.CascadeJob, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, bson.M{
		"status":     models.CascadePending,
		"updated_at": bson.M{"$lt": olderThan},
	}, opts)
	if err != nil {
		return nil, mapErr(err, "find pending cascade jobs")
	}
	out := []*models.CascadeJob{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, mapErr(err, "decode cascade jobs")
	}
	return out, nil
}
