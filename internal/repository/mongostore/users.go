package mongostore

import (
	"context"
	"time"

	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type userRepo struct {
	coll *mongo.Collection
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	u.GenIDIfEmpty()
	if u.Listings == nil {
		u.Listings = []utils.SixID{}
	}
	if u.Favorites == nil {
		u.Favorites = []utils.SixID{}
	}
	_, err := r.coll.InsertOne(ctx, u)
	return mapErr(err, "insert user %s", u.Email)
}

func (r *userRepo) findOne(ctx context.Context, filter bson.M, what string) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, mapErr(err, "find user by %s", what)
	}
	return &u, nil
}

func (r *userRepo) FindByID(ctx context.Context, id utils.SixID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "id "+id.String())
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email}, "email")
}

func (r *userRepo) FindByPhone(ctx context.Context, number string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"phone.number": number}, "phone")
}

func (r *userRepo) FindByIDs(ctx context.Context, ids []utils.SixID) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, mapErr(err, "find users")
	}
	users := []*models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, mapErr(err, "decode users")
	}
	return users, nil
}

func (r *userRepo) Update(ctx context.Context, u *models.User) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	return requireMatch(res, err, "replace user %s", u.ID)
}

func (r *userRepo) Delete(ctx context.Context, id utils.SixID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err, "delete user %s", id)
	}
	if res.DeletedCount == 0 {
		return mapErr(mongo.ErrNoDocuments, "delete user %s", id)
	}
	return nil
}

func (r *userRepo) update(ctx context.Context, id utils.SixID, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	return requireMatch(res, err, "update user %s", id)
}

func (r *userRepo) AddListing(ctx context.Context, userID, listingID utils.SixID) error {
	return r.update(ctx, userID, bson.M{"$addToSet": bson.M{"listings": listingID}})
}

func (r *userRepo) RemoveListing(ctx context.Context, userID, listingID utils.SixID) error {
	return r.update(ctx, userID, bson.M{"$pull": bson.M{"listings": listingID}})
}

func (r *userRepo) AddFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	return r.update(ctx, userID, bson.M{"$addToSet": bson.M{"favorites": listingID}})
}

func (r *userRepo) RemoveFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	return r.update(ctx, userID, bson.M{"$pull": bson.M{"favorites": listingID}})
}

func (r *userRepo) StripFavorite(ctx context.Context, listingID utils.SixID) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"favorites": listingID},
		bson.M{"$pull": bson.M{"favorites": listingID}},
	)
	if err != nil {
		return 0, mapErr(err, "strip favorite %s", listingID)
	}
	return res.ModifiedCount, nil
}

func (r *userRepo) SetStats(ctx context.Context, userID utils.SixID, stats models.UserStats) error {
	return r.update(ctx, userID, bson.M{"$set": bson.M{"stats": stats}})
}

func (r *userRepo) Touch(ctx context.Context, userID utils.SixID, at time.Time, login bool) error {
	set := bson.M{"last_active": at}
	if login {
		set["last_login"] = at
	}
	return r.update(ctx, userID, bson.M{"$set": set})
}
