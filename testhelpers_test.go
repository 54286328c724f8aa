//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/application"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/database"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/kafka"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
	rideEvents "github.com/Kilat-Pet-Delivery/service-ride/internal/events"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/routing"
	"github.com/Kilat-Pet-Delivery/service-ride/migrations"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// rideStack holds wired-up ride service components.
type rideStack struct {
	Rides           *application.RideService
	Drivers         *application.DriverService
	Locations       *application.LocationService
	Locator         *repository.MemoryLocator
	Consumer        *rideEvents.LocationConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers, applies the
// embedded migrations and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_ride",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_ride",
		SSLMode:  "disable",
	}

	// Poll until the database accepts connections.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(dbConfig, logger)
		return err == nil
	}, 30*time.Second, time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(dbConfig.DatabaseURL(), migrations.FS, ".", logger))

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, rideEvents.TopicRideEvents, rideEvents.TopicDriverLocations)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupRideStack wires the ride service on postgres and kafka. Live
// positions go to an in-memory locator so tests can observe them.
func setupRideStack(t *testing.T, db *gorm.DB, brokers []string) *rideStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	rides := repository.NewGormRideRepository(db)
	drivers := repository.NewGormDriverRepository(db)
	locator := repository.NewMemoryLocator()
	producer := kafka.NewProducer(brokers, logger)
	estimator := routing.NewEstimator(nil, time.Second, geo.DefaultFallbackSpeedKmh, logger)

	rideSvc := application.NewRideService(rides, drivers, locator, ride.NewDefaultFareStrategy(), estimator, producer, nil, logger)
	locationSvc := application.NewLocationService(nil, locator, nil, rides, logger)

	groupID := fmt.Sprintf("test-ride-%s", uuid.New().String()[:8])
	consumer := rideEvents.NewLocationConsumer(brokers, groupID, locationSvc, logger)

	return &rideStack{
		Rides:           rideSvc,
		Drivers:         application.NewDriverService(drivers, locator, logger),
		Locations:       locationSvc,
		Locator:         locator,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// registerDriver creates a motorcycle driver profile.
func registerDriver(t *testing.T, stack *rideStack, id uuid.UUID) {
	t.Helper()
	_, err := stack.Drivers.RegisterDriver(context.Background(), id, application.RegisterDriverRequest{
		Name:         "Driver " + id.String()[:4],
		Phone:        "+84901234567",
		VehicleClass: string(ride.VehicleMotorcycle),
		VehiclePlate: "29B1-" + id.String()[:5],
	})
	require.NoError(t, err)
}

// bookRide books a motorcycle ride across Hanoi's old quarter.
func bookRide(t *testing.T, stack *rideStack, riderID uuid.UUID) *application.RideDTO {
	t.Helper()
	dto, err := stack.Rides.CreateRide(context.Background(), riderID, application.CreateRideRequest{
		Pickup:       application.PlaceDTO{Lat: 21.0285, Lng: 105.8520, Address: "Hoan Kiem Lake"},
		Destination:  application.PlaceDTO{Lat: 21.0583, Lng: 105.8192, Address: "West Lake"},
		VehicleClass: string(ride.VehicleMotorcycle),
	})
	require.NoError(t, err)
	return dto
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// consumeEvents reads a topic until every expected type has been seen for key.
func consumeEvents(t *testing.T, brokers []string, topic, key string, expectedTypes []string, timeout time.Duration) map[string]kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     fmt.Sprintf("test-assert-%s", uuid.New().String()[:8]),
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	want := make(map[string]bool, len(expectedTypes))
	for _, et := range expectedTypes {
		want[et] = true
	}
	seen := make(map[string]kafka.CloudEvent)
	for len(seen) < len(want) {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out on topic %q; saw %d of %d event types", topic, len(seen), len(want))
			}
			continue
		}
		if string(msg.Key) != key {
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil || !want[ce.Type] {
			continue
		}
		seen[ce.Type] = ce
	}
	return seen
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	require.NoError(t, controllerConn.CreateTopics(topicConfigs...), "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
