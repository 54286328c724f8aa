package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// DriverLocationTopic is the MQTT topic filter drivers publish to.
const DriverLocationTopic = "rides/drivers/+/location"

// Ingester accepts live driver positions.
type Ingester interface {
	Ingest(ctx context.Context, p DriverPosition) error
}

// locationPayload is the body drivers publish.
type locationPayload struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Heading    float64   `json:"heading"`
	SpeedKmh   float64   `json:"speed_kmh"`
	ReportedAt time.Time `json:"reported_at"`
}

// ParseLocationMessage decodes an MQTT location message.
func ParseLocationMessage(topic string, payload []byte) (DriverPosition, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "rides" || parts[1] != "drivers" || parts[3] != "location" {
		return DriverPosition{}, fmt.Errorf("unexpected topic %q", topic)
	}
	driverID, err := uuid.Parse(parts[2])
	if err != nil {
		return DriverPosition{}, fmt.Errorf("invalid driver id in topic: %w", err)
	}
	var body locationPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return DriverPosition{}, fmt.Errorf("failed to decode location payload: %w", err)
	}
	coord := geo.Coordinate{Lat: body.Lat, Lng: body.Lng}
	if !coord.IsValid() {
		return DriverPosition{}, fmt.Errorf("location out of range: %.6f,%.6f", body.Lat, body.Lng)
	}
	return DriverPosition{
		DriverID:   driverID,
		Coordinate: coord,
		Heading:    body.Heading,
		SpeedKmh:   body.SpeedKmh,
		ReportedAt: body.ReportedAt,
	}, nil
}

// MQTTFeed subscribes to driver location topics on an MQTT broker.
type MQTTFeed struct {
	client   mqtt.Client
	ingester Ingester
	qos      byte
	logger   *zap.Logger
}

// NewMQTTFeed connects to broker. Subscription starts with Start.
func NewMQTTFeed(broker, clientID string, ingester Ingester, logger *zap.Logger) (*MQTTFeed, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false).
		SetConnectTimeout(10 * time.Second)

	f := &MQTTFeed{ingester: ingester, qos: 0, logger: logger}
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		// Subscriptions do not survive a reconnect with a clean session.
		if err := f.subscribe(c); err != nil {
			logger.Error("failed to resubscribe to driver locations", zap.Error(err))
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	f.client = mqtt.NewClient(opts)
	token := f.client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}
	return f, nil
}

func (f *MQTTFeed) subscribe(c mqtt.Client) error {
	token := c.Subscribe(DriverLocationTopic, f.qos, f.handle)
	token.Wait()
	return token.Error()
}

func (f *MQTTFeed) handle(_ mqtt.Client, msg mqtt.Message) {
	p, err := ParseLocationMessage(msg.Topic(), msg.Payload())
	if err != nil {
		f.logger.Warn("dropping driver location", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.ingester.Ingest(ctx, p); err != nil {
		f.logger.Error("failed to ingest driver location",
			zap.String("driver_id", p.DriverID.String()),
			zap.Error(err),
		)
	}
}

// Start blocks until ctx is cancelled, then disconnects.
func (f *MQTTFeed) Start(ctx context.Context) {
	f.logger.Info("mqtt driver location feed started", zap.String("topic", DriverLocationTopic))
	<-ctx.Done()
	f.client.Unsubscribe(DriverLocationTopic).WaitTimeout(2 * time.Second)
	f.client.Disconnect(250)
	f.logger.Info("mqtt driver location feed stopped")
}
