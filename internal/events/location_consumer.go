package events

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/kafka"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/tracking"
)

// LocationConsumer feeds driver positions from Kafka into live tracking.
type LocationConsumer struct {
	consumer *kafka.Consumer
	ingester tracking.Ingester
	logger   *zap.Logger
}

// NewLocationConsumer creates a new LocationConsumer.
func NewLocationConsumer(
	brokers []string,
	groupID string,
	ingester tracking.Ingester,
	logger *zap.Logger,
) *LocationConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicDriverLocations, logger)
	return &LocationConsumer{
		consumer: consumer,
		ingester: ingester,
		logger:   logger,
	}
}

// Start begins consuming driver locations. This blocks until the context is cancelled.
func (c *LocationConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *LocationConsumer) Close() error {
	return c.consumer.Close()
}

func (c *LocationConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from location topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case DriverLocationUpdated:
		return c.handleLocation(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled location event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *LocationConsumer) handleLocation(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt DriverLocationEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse DriverLocationEvent data", zap.Error(err))
		return nil
	}

	pos := tracking.DriverPosition{
		DriverID:   evt.DriverID,
		Coordinate: geo.Coordinate{Lat: evt.Lat, Lng: evt.Lng},
		Heading:    evt.Heading,
		SpeedKmh:   evt.SpeedKmh,
		ReportedAt: evt.ReportedAt,
	}
	if !pos.Coordinate.IsValid() {
		c.logger.Warn("dropping out-of-range driver location",
			zap.String("driver_id", evt.DriverID.String()),
		)
		return nil
	}

	if err := c.ingester.Ingest(ctx, pos); err != nil {
		c.logger.Error("failed to ingest driver location",
			zap.String("driver_id", evt.DriverID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
