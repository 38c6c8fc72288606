package mongo

import (
	"context"
	"time"

	"github.com/wanderly/tour-bookings/internal/domain"
	"github.com/wanderly/tour-bookings/internal/observability"
	"github.com/wanderly/tour-bookings/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	earthRadiusMiles = 3963.2
	earthRadiusKM    = 6378.1
)

type TourRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewTourRepository(db *mongo.Database, logger observability.Logger) *TourRepository {
	return &TourRepository{
		coll:   db.Collection("tours"),
		logger: logger,
	}
}

func (r *TourRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}}},
		{Keys: bson.D{{Key: "slug", Value: 1}}},
		{Keys: bson.D{{Key: "startLocation", Value: "2dsphere"}}},
	})
	return err
}

// notSecret keeps secret tours out of every read path. $ne also matches
// documents written before the field existed.
func notSecret() bson.M {
	return bson.M{"secretTour": bson.M{"$ne": true}}
}

func (r *TourRepository) Create(ctx context.Context, tour *domain.Tour) error {
	tour.Slug = domain.Slugify(tour.Name)
	tour.CreatedAt = time.Now().UTC()
	if tour.RatingsAverage == 0 {
		tour.RatingsAverage = 4.5
	}
	res, err := r.coll.InsertOne(ctx, tour)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		r.logger.Error("failed to create tour", err)
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		tour.ID = oid
	}
	return nil
}

func (r *TourRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Tour, error) {
	filter := notSecret()
	filter["_id"] = id
	var tour domain.Tour
	err := r.coll.FindOne(ctx, filter).Decode(&tour)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get tour", err)
		return nil, err
	}
	return &tour, nil
}

func (r *TourRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tour, error) {
	filter := notSecret()
	filter["slug"] = slug
	var tour domain.Tour
	err := r.coll.FindOne(ctx, filter).Decode(&tour)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tour, nil
}

func (r *TourRepository) List(ctx context.Context, features query.Features) ([]domain.Tour, error) {
	filter := notSecret()
	for k, v := range features.Filter {
		filter[k] = v
	}
	cursor, err := r.coll.Find(ctx, filter, features.FindOptions())
	if err != nil {
		r.logger.Error("failed to list tours", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	tours := []domain.Tour{}
	if err := cursor.All(ctx, &tours); err != nil {
		return nil, err
	}
	return tours, nil
}

func (r *TourRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.Tour, error) {
	if name, ok := set["name"].(string); ok {
		set["slug"] = domain.Slugify(name)
	}
	var tour domain.Tour
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&tour)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	return &tour, nil
}

func (r *TourRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TourRepository) UpdateRatings(ctx context.Context, id primitive.ObjectID, average float64, quantity int) error {
	_, err := r.coll.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"ratingsAverage": average, "ratingsQuantity": quantity}},
	)
	return err
}

type TourStats struct {
	Difficulty string  `bson:"_id" json:"difficulty"`
	NumTours   int     `bson:"numTours" json:"numTours"`
	NumRatings int     `bson:"numRatings" json:"numRatings"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}

// Stats groups well-rated tours by difficulty.
func (r *TourRepository) Stats(ctx context.Context) ([]TourStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: notSecret()}},
		{{Key: "$match", Value: bson.M{"ratingsAverage": bson.M{"$gte": 4.5}}}},
		{{Key: "$group", Value: bson.M{
			"_id":        bson.M{"$toUpper": "$difficulty"},
			"numTours":   bson.M{"$sum": 1},
			"numRatings": bson.M{"$sum": "$ratingsQuantity"},
			"avgRating":  bson.M{"$avg": "$ratingsAverage"},
			"avgPrice":   bson.M{"$avg": "$price"},
			"minPrice":   bson.M{"$min": "$price"},
			"maxPrice":   bson.M{"$max": "$price"},
		}}},
		{{Key: "$sort", Value: bson.M{"avgPrice": 1}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("failed to aggregate tour stats", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var stats []TourStats
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

type MonthlyPlanEntry struct {
	Month         int      `bson:"month" json:"month"`
	NumTourStarts int      `bson:"numTourStarts" json:"numTourStarts"`
	Tours         []string `bson:"tours" json:"tours"`
}

// MonthlyPlan counts tour starts per month of the given year.
func (r *TourRepository) MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlanEntry, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: notSecret()}},
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.M{"startDates": bson.M{"$gte": from, "$lte": to}}}},
		{{Key: "$group", Value: bson.M{
			"_id":           bson.M{"$month": "$startDates"},
			"numTourStarts": bson.M{"$sum": 1},
			"tours":         bson.M{"$push": "$name"},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.M{"numTourStarts": 1}}},
		{{Key: "$limit", Value: 12}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("failed to aggregate monthly plan", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var plan []MonthlyPlanEntry
	if err := cursor.All(ctx, &plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Within finds tours whose start location lies inside the sphere centered
// on (lat, lng) with the given distance. Unit is "mi" or "km".
func (r *TourRepository) Within(ctx context.Context, lat, lng, distance float64, unit string) ([]domain.Tour, error) {
	radius := distance / earthRadiusKM
	if unit == "mi" {
		radius = distance / earthRadiusMiles
	}

	filter := notSecret()
	filter["startLocation"] = bson.M{
		"$geoWithin": bson.M{"$centerSphere": bson.A{bson.A{lng, lat}, radius}},
	}
	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tours []domain.Tour
	if err := cursor.All(ctx, &tours); err != nil {
		return nil, err
	}
	return tours, nil
}

type TourDistance struct {
	Name     string  `bson:"name" json:"name"`
	Distance float64 `bson:"distance" json:"distance"`
}

// Distances returns every tour with its distance from (lat, lng).
// $geoNear must be the first pipeline stage, so the secret-tour match
// runs after it.
func (r *TourRepository) Distances(ctx context.Context, lat, lng float64, unit string) ([]TourDistance, error) {
	multiplier := 0.001
	if unit == "mi" {
		multiplier = 0.000621371192
	}

	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near":               bson.M{"type": "Point", "coordinates": bson.A{lng, lat}},
			"distanceField":      "distance",
			"distanceMultiplier": multiplier,
		}}},
		{{Key: "$match", Value: notSecret()}},
		{{Key: "$project", Value: bson.M{"distance": 1, "name": 1}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var distances []TourDistance
	if err := cursor.All(ctx, &distances); err != nil {
		return nil, err
	}
	return distances, nil
}
