package mongostore

import (
	"context"
	"time"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const earthRadiusMeters = 6378100.0

type listingRepo struct {
	coll *mongo.Collection
}

// ListingFilter translates a store-neutral query into a Mongo filter document.
func ListingFilter(q repository.ListingQuery) bson.M {
	if q.MatchNone {
		return bson.M{"_id": bson.M{"$in": bson.A{}}}
	}
	filter := bson.M{}
	if len(q.IDs) > 0 {
		filter["_id"] = bson.M{"$in": q.IDs}
	}
	if len(q.CategoryIDs) > 0 {
		filter["category"] = bson.M{"$in": q.CategoryIDs}
	}
	if q.AuthorID != nil {
		filter["author"] = *q.AuthorID
	}
	if q.LiveAt != nil {
		filter["status"] = models.ListingActive
		filter["expires_at"] = bson.M{"$gt": *q.LiveAt}
	} else {
		if len(q.Statuses) > 0 {
			filter["status"] = bson.M{"$in": q.Statuses}
		}
		if q.ExpiresBefore != nil {
			filter["expires_at"] = bson.M{"$lte": *q.ExpiresBefore}
		}
	}

	price := bson.M{}
	if q.PriceMin != nil {
		price["$gte"] = *q.PriceMin
	}
	if q.PriceMax != nil {
		price["$lte"] = *q.PriceMax
	}
	if len(price) > 0 {
		filter["price.amount"] = price
	}
	if q.Currency != "" {
		filter["price.currency"] = q.Currency
	}

	if q.Near != nil {
		radius := q.Near.RadiusMeters
		if radius <= 0 {
			radius = repository.DefaultNearRadius
		}
		filter["location.point"] = bson.M{"$geoWithin": bson.M{
			"$centerSphere": bson.A{bson.A{q.Near.Lng, q.Near.Lat}, radius / earthRadiusMeters},
		}}
	} else {
		if q.City != "" {
			filter["location.city"] = q.City
		}
		if q.District != "" {
			filter["location.district"] = q.District
		}
	}

	if q.Text != "" {
		pattern := literalRegex(q.Text)
		or := bson.A{}
		for _, lang := range q.SearchLangs() {
			or = append(or, bson.M{"title." + lang: pattern}, bson.M{"description." + lang: pattern})
		}
		filter["$or"] = or
	}
	return filter
}

// ListingSort returns the sort document for s; ties are broken by id.
func ListingSort(s repository.ListingSort) bson.D {
	switch s {
	case repository.SortOldest:
		return bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
	case repository.SortPriceAsc:
		return bson.D{{Key: "price.amount", Value: 1}, {Key: "_id", Value: 1}}
	case repository.SortPriceDesc:
		return bson.D{{Key: "price.amount", Value: -1}, {Key: "_id", Value: 1}}
	case repository.SortPopular:
		return bson.D{{Key: "views.total", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	}
}

func (r *listingRepo) Create(ctx context.Context, l *models.Listing) error {
	l.GenIDIfEmpty()
	if l.Images == nil {
		l.Images = []models.ListingImage{}
	}
	_, err := r.coll.InsertOne(ctx, l)
	return mapErr(err, "insert listing %s", l.Slug)
}

func (r *listingRepo) FindByID(ctx context.Context, id utils.SixID) (*models.Listing, error) {
	var l models.Listing
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&l); err != nil {
		return nil, mapErr(err, "find listing %s", id)
	}
	return &l, nil
}

func (r *listingRepo) Update(ctx context.Context, l *models.Listing) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": l.ID}, l)
	return requireMatch(res, err, "replace listing %s", l.ID)
}

func (r *listingRepo) Delete(ctx context.Context, id utils.SixID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err, "delete listing %s", id)
	}
	if res.DeletedCount == 0 {
		return mapErr(mongo.ErrNoDocuments, "delete listing %s", id)
	}
	return nil
}

func (r *listingRepo) Find(ctx context.Context, q repository.ListingQuery) ([]*models.Listing, int64, error) {
	filter := ListingFilter(q)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mapErr(err, "count listings")
	}
	out := []*models.Listing{}
	if total == 0 || q.Skip < 0 || int64(q.Skip) >= total {
		return out, total, nil
	}

	opts := options.Find().SetSort(ListingSort(q.Sort)).SetSkip(int64(q.Skip))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, mapErr(err, "find listings")
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, mapErr(err, "decode listings")
	}
	return out, total, nil
}

func (r *listingRepo) Count(ctx context.Context, q repository.ListingQuery) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, ListingFilter(q))
	return n, mapErr(err, "count listings")
}

func (r *listingRepo) IncrementViews(ctx context.Context, id utils.SixID) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views.total": 1}})
	return requireMatch(res, err, "increment views of %s", id)
}

func (r *listingRepo) AddReport(ctx context.Context, id utils.SixID, report models.Report) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"reports": report}})
	return requireMatch(res, err, "report listing %s", id)
}

func (r *listingRepo) SetStatus(ctx context.Context, id utils.SixID, status models.ListingStatus, note string, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":      status,
		"status_note": note,
		"updated_at":  at,
	}})
	return requireMatch(res, err, "set status of %s", id)
}

func (r *listingRepo) SuggestTitles(ctx context.Context, text, lang string, now time.Time, limit int) ([]string, error) {
	field := "title." + lang
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status":     models.ListingActive,
			"expires_at": bson.M{"$gt": now},
			field:        literalRegex(text),
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mapErr(err, "suggest titles")
	}
	var rows []struct {
		Title string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, mapErr(err, "decode suggestions")
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Title)
	}
	return out, nil
}

func (r *listingRepo) PriceStats(ctx context.Context, now time.Time) (models.PriceStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.ListingActive, "expires_at": bson.M{"$gt": now}}}},
		{{Key: "$group", Value: bson.M{
			"_id":      nil,
			"total":    bson.M{"$sum": 1},
			"avgPrice": bson.M{"$avg": "$price.amount"},
			"minPrice": bson.M{"$min": "$price.amount"},
			"maxPrice": bson.M{"$max": "$price.amount"},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return models.PriceStats{}, mapErr(err, "price stats")
	}
	var rows []struct {
		Total    int     `bson:"total"`
		AvgPrice float64 `bson:"avgPrice"`
		MinPrice float64 `bson:"minPrice"`
		MaxPrice float64 `bson:"maxPrice"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return models.PriceStats{}, mapErr(err, "decode price stats")
	}
	if len(rows) == 0 {
		return models.PriceStats{}, nil
	}
	row := rows[0]
	return models.PriceStats{Total: row.Total, AvgPrice: row.AvgPrice, MinPrice: row.MinPrice, MaxPrice: row.MaxPrice}, nil
}
