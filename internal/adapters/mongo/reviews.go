package mongo

import (
	"context"
	"time"

	"github.com/wanderly/tour-bookings/internal/domain"
	"github.com/wanderly/tour-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RatingEventPublisher is notified after every successful review write so
// a separate consumer can recompute the tour's rating aggregates. The
// recalculation is an explicit event, not a side effect of saving.
type RatingEventPublisher interface {
	ReviewWritten(ctx context.Context, tourID primitive.ObjectID) error
}

type ReviewRepository struct {
	coll   *mongo.Collection
	events RatingEventPublisher
	logger observability.Logger
}

func NewReviewRepository(db *mongo.Database, events RatingEventPublisher, logger observability.Logger) *ReviewRepository {
	return &ReviewRepository{
		coll:   db.Collection("reviews"),
		events: events,
		logger: logger,
	}
}

// One review per user per tour.
func (r *ReviewRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	review.CreatedAt = time.Now().UTC()
	res, err := r.coll.InsertOne(ctx, review)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		r.logger.Error("failed to create review", err)
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		review.ID = oid
	}
	r.publishWritten(ctx, review.Tour)
	return nil
}

func (r *ReviewRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Review, error) {
	var review domain.Review
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&review)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// List returns all reviews, or only those of a tour when tourID is
// non-zero.
func (r *ReviewRepository) List(ctx context.Context, tourID primitive.ObjectID) ([]domain.Review, error) {
	filter := bson.M{}
	if !tourID.IsZero() {
		filter["tour"] = tourID
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	reviews := []domain.Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *ReviewRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.Review, error) {
	var review domain.Review
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&review)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.publishWritten(ctx, review.Tour)
	return &review, nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	var review domain.Review
	err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&review)
	if err == mongo.ErrNoDocuments {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	r.publishWritten(ctx, review.Tour)
	return nil
}

func (r *ReviewRepository) publishWritten(ctx context.Context, tourID primitive.ObjectID) {
	if r.events == nil {
		return
	}
	if err := r.events.ReviewWritten(ctx, tourID); err != nil {
		// The review itself is persisted; a lost event only delays the
		// aggregate refresh until the next review write.
		r.logger.WithField("tour_id", tourID.Hex()).Error("failed to publish review event", err)
	}
}

type RatingAggregate struct {
	Average  float64 `bson:"avgRating"`
	Quantity int     `bson:"nRating"`
}

// CalcAverageRatings recomputes the rating aggregate for one tour. A tour
// with no reviews falls back to the catalog defaults.
func (r *ReviewRepository) CalcAverageRatings(ctx context.Context, tourID primitive.ObjectID) (RatingAggregate, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tour": tourID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$tour",
			"nRating":   bson.M{"$sum": 1},
			"avgRating": bson.M{"$avg": "$rating"},
		}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return RatingAggregate{}, err
	}
	defer cursor.Close(ctx)

	var stats []RatingAggregate
	if err := cursor.All(ctx, &stats); err != nil {
		return RatingAggregate{}, err
	}
	if len(stats) == 0 {
		return RatingAggregate{Average: 4.5, Quantity: 0}, nil
	}
	return stats[0], nil
}
