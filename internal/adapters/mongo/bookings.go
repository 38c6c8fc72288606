package mongo

import (
	"context"
	"time"

	"github.com/wanderly/tour-bookings/internal/domain"
	"github.com/wanderly/tour-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type BookingRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewBookingRepository(db *mongo.Database, logger observability.Logger) *BookingRepository {
	return &BookingRepository{
		coll:   db.Collection("bookings"),
		logger: logger,
	}
}

func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	start := time.Now()
	defer func() {
		observability.MongoOpDuration.Observe(time.Since(start).Seconds())
	}()

	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	res, err := r.coll.InsertOne(ctx, booking)
	if err != nil {
		r.logger.Error("failed to create booking", err)
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid
	}
	return nil
}

// populate joins the user in full and the tour by name only, matching
// what booking listings need.
func populateStages() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "user",
			"foreignField": "_id",
			"as":           "user",
		}}},
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$lookup", Value: bson.M{
			"from": "tours",
			"let":  bson.M{"tourId": "$tour"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$_id", "$$tourId"}}}},
				bson.M{"$project": bson.M{"name": 1}},
			},
			"as": "tour",
		}}},
		{{Key: "$unwind", Value: "$tour"}},
		{{Key: "$project", Value: bson.M{"user.password": 0}}},
	}
}

func (r *BookingRepository) List(ctx context.Context, filter bson.M) ([]domain.PopulatedBooking, error) {
	start := time.Now()
	defer func() {
		observability.MongoOpDuration.Observe(time.Since(start).Seconds())
	}()

	if filter == nil {
		filter = bson.M{}
	}
	pipeline := mongo.Pipeline{{{Key: "$match", Value: filter}}}
	pipeline = append(pipeline, populateStages()...)
	pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.M{"createdAt": -1}}})

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("failed to list bookings", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	bookings := []domain.PopulatedBooking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PopulatedBooking, error) {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{"_id": id}}}}
	pipeline = append(pipeline, populateStages()...)

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var bookings []domain.PopulatedBooking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, domain.ErrNotFound
	}
	return &bookings[0], nil
}

// Update and Delete exist for the administrative surface only; the
// payment flow never mutates a booking after creation.
func (r *BookingRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	delete(set, "createdAt")
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *BookingRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
