package mongo

import (
	"context"
	"strings"
	"time"

	"github.com/wanderly/tour-bookings/internal/domain"
	"github.com/wanderly/tour-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewUserRepository(db *mongo.Database, logger observability.Logger) *UserRepository {
	return &UserRepository{
		coll:   db.Collection("users"),
		logger: logger,
	}
}

func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// active keeps deactivated accounts out of every read path. $ne also
// matches documents written before the field existed.
func activeOnly() bson.M {
	return bson.M{"active": bson.M{"$ne": false}}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	user.Active = true
	res, err := r.coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		r.logger.Error("failed to create user", err)
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	filter := activeOnly()
	filter["_id"] = id
	return r.findOne(ctx, filter)
}

// FindByEmail omits the password hash; use FindByEmailWithPassword for
// login checks.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	filter := activeOnly()
	filter["email"] = strings.ToLower(strings.TrimSpace(email))
	var user domain.User
	err := r.coll.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"password": 0})).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmailWithPassword(ctx context.Context, email string) (*domain.User, error) {
	filter := activeOnly()
	filter["email"] = strings.ToLower(strings.TrimSpace(email))
	return r.findOne(ctx, filter)
}

func (r *UserRepository) FindByResetToken(ctx context.Context, tokenDigest string) (*domain.User, error) {
	filter := activeOnly()
	filter["passwordResetToken"] = tokenDigest
	filter["passwordResetExpires"] = bson.M{"$gt": time.Now()}
	return r.findOne(ctx, filter)
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := r.coll.FindOne(ctx, filter).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to find user", err)
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	cursor, err := r.coll.Find(ctx, activeOnly(), options.Find().SetProjection(bson.M{"password": 0}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []domain.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.User, error) {
	if email, ok := set["email"].(string); ok {
		set["email"] = strings.ToLower(strings.TrimSpace(email))
	}
	var user domain.User
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(bson.M{"password": 0}),
	).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	return &user, nil
}

// UpdatePassword stores the new hash and stamps passwordChangedAt
// slightly in the past so tokens minted in the same second stay invalid.
func (r *UserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"password":          passwordHash,
			"passwordChangedAt": time.Now().Add(-time.Second),
		},
		"$unset": bson.M{
			"passwordResetToken":   "",
			"passwordResetExpires": "",
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetResetToken(ctx context.Context, id primitive.ObjectID, tokenDigest string, expires time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"passwordResetToken":   tokenDigest,
			"passwordResetExpires": expires,
		},
	})
	return err
}

func (r *UserRepository) ClearResetToken(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$unset": bson.M{
			"passwordResetToken":   "",
			"passwordResetExpires": "",
		},
	})
	return err
}

// Deactivate soft-deletes the account; reads filter on active.
func (r *UserRepository) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"active": false}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
