package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	driverDomain "github.com/Kilat-Pet-Delivery/service-ride/internal/domain/driver"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

const breadcrumbCollection = "driver_breadcrumbs"

// breadcrumbDocument is the stored form of a breadcrumb.
type breadcrumbDocument struct {
	DriverID   string    `bson:"driver_id"`
	Lat        float64   `bson:"lat"`
	Lng        float64   `bson:"lng"`
	Heading    float64   `bson:"heading"`
	SpeedKmh   float64   `bson:"speed_kmh"`
	ReportedAt time.Time `bson:"reported_at"`
}

// ConnectMongo connects to MongoDB and pings it.
func ConnectMongo(ctx context.Context, uri string, logger *zap.Logger) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to mongodb")
	return client, nil
}

// MongoBreadcrumbRepository implements driver.BreadcrumbRepository.
type MongoBreadcrumbRepository struct {
	coll *mongo.Collection
}

// NewMongoBreadcrumbRepository opens the breadcrumb collection in db and
// makes sure the trail index exists.
func NewMongoBreadcrumbRepository(ctx context.Context, db *mongo.Database) (*MongoBreadcrumbRepository, error) {
	coll := db.Collection(breadcrumbCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "reported_at", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("create breadcrumb index: %w", err)
	}
	return &MongoBreadcrumbRepository{coll: coll}, nil
}

// Append stores one breadcrumb.
func (r *MongoBreadcrumbRepository) Append(ctx context.Context, b driverDomain.Breadcrumb) error {
	doc := breadcrumbDocument{
		DriverID:   b.DriverID.String(),
		Lat:        b.Position.Lat,
		Lng:        b.Position.Lng,
		Heading:    b.Heading,
		SpeedKmh:   b.SpeedKmh,
		ReportedAt: b.ReportedAt.UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert breadcrumb: %w", err)
	}
	return nil
}

// Trail returns the driver's breadcrumbs in [from, to], oldest first.
func (r *MongoBreadcrumbRepository) Trail(ctx context.Context, driverID uuid.UUID, from, to time.Time) ([]driverDomain.Breadcrumb, error) {
	filter := bson.M{
		"driver_id":   driverID.String(),
		"reported_at": bson.M{"$gte": from.UTC(), "$lte": to.UTC()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "reported_at", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find breadcrumbs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []breadcrumbDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode breadcrumbs: %w", err)
	}

	out := make([]driverDomain.Breadcrumb, len(docs))
	for i, d := range docs {
		out[i] = driverDomain.Breadcrumb{
			DriverID:   driverID,
			Position:   geo.Coordinate{Lat: d.Lat, Lng: d.Lng},
			Heading:    d.Heading,
			SpeedKmh:   d.SpeedKmh,
			ReportedAt: d.ReportedAt,
		}
	}
	return out, nil
}
