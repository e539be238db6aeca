package mongostore

import (
	"context"
	"regexp"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type categoryRepo struct {
	coll *mongo.Collection
}

var categorySort = bson.D{{Key: "order", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}

func (r *categoryRepo) Create(ctx context.Context, c *models.Category) error {
	c.GenIDIfEmpty()
	if c.Ancestors == nil {
		c.Ancestors = []models.CategoryAncestor{}
	}
	_, err := r.coll.InsertOne(ctx, c)
	return mapErr(err, "insert category %s", c.Slug)
}

func (r *categoryRepo) findOne(ctx context.Context, filter bson.M, what string) (*models.Category, error) {
	var c models.Category
	if err := r.coll.FindOne(ctx, filter).Decode(&c); err != nil {
		return nil, mapErr(err, "find category %s", what)
	}
	return &c, nil
}

func (r *categoryRepo) FindByID(ctx context.Context, id utils.SixID) (*models.Category, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id.String())
}

func (r *categoryRepo) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return r.findOne(ctx, bson.M{"slug": slug}, slug)
}

func (r *categoryRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Category, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapErr(err, "find categories")
	}
	out := []*models.Category{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, mapErr(err, "decode categories")
	}
	return out, nil
}

func (r *categoryRepo) List(ctx context.Context, f repository.CategoryFilter) ([]*models.Category, error) {
	filter := bson.M{}
	if f.ActiveOnly {
		filter["is_active"] = true
	}
	switch {
	case f.Parent != nil:
		filter["parent"] = *f.Parent
	case f.RootOnly:
		filter["parent"] = nil
	}
	return r.find(ctx, filter, options.Find().SetSort(categorySort))
}

func (r *categoryRepo) Update(ctx context.Context, c *models.Category) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	return requireMatch(res, err, "replace category %s", c.ID)
}

func (r *categoryRepo) Delete(ctx context.Context, id utils.SixID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err, "delete category %s", id)
	}
	if res.DeletedCount == 0 {
		return mapErr(mongo.ErrNoDocuments, "delete category %s", id)
	}
	return nil
}

func (r *categoryRepo) Descendants(ctx context.Context, id utils.SixID) ([]*models.Category, error) {
	return r.find(ctx, bson.M{"ancestors._id": id}, options.Find().SetSort(categorySort))
}

func (r *categoryRepo) CountChildren(ctx context.Context, id utils.SixID) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"parent": id})
	return n, mapErr(err, "count children of %s", id)
}

func (r *categoryRepo) set(ctx context.Context, id utils.SixID, set bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return requireMatch(res, err, "update category %s", id)
}

func (r *categoryRepo) SetAncestors(ctx context.Context, id utils.SixID, ancestors []models.CategoryAncestor) error {
	if ancestors == nil {
		ancestors = []models.CategoryAncestor{}
	}
	return r.set(ctx, id, bson.M{"ancestors": ancestors})
}

func (r *categoryRepo) SetCounts(ctx context.Context, id utils.SixID, active, total int) error {
	return r.set(ctx, id, bson.M{"listing_count": active, "total_listings": total})
}

func (r *categoryRepo) SetOrder(ctx context.Context, id utils.SixID, order int) error {
	return r.set(ctx, id, bson.M{"order": order})
}

func (r *categoryRepo) Search(ctx context.Context, text string, limit int) ([]*models.Category, error) {
	pattern := literalRegex(text)
	or := bson.A{}
	for _, lang := range models.Languages {
		or = append(or, bson.M{"name." + lang: pattern})
	}
	opts := options.Find().SetSort(categorySort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{"$or": or}, opts)
}

// literalRegex matches text literally and case-insensitively.
func literalRegex(text string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(text), "$options": "i"}
}
