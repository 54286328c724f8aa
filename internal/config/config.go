package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/config"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/routing"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/tracking"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Live position feeds.
const (
	FeedKafka = "kafka"
	FeedMQTT  = "mqtt"
	FeedNone  = "none"
)

// ServiceConfig holds all configuration for the ride service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	Storage     string
	LiveFeed    string
	DBConfig    config.DatabaseConfig
	JWTConfig   config.JWTConfig
	KafkaConfig config.KafkaConfig
	RedisAddr   string
	RabbitMQURL string
	MQTTBroker  string
	MongoURI    string
	MongoDB     string
	Directions  routing.ProviderConfig
	Tracking    tracking.SessionConfig
	// LiveMaxAge is how long a driver position counts as live.
	LiveMaxAge time.Duration
}

// Load reads configuration from environment variables prefixed with RIDE_.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("RIDE")
	if err != nil {
		return nil, err
	}
	setDefaults(v)

	cfg := &ServiceConfig{
		Port:        config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:      config.GetAppEnv(v),
		Storage:     v.GetString("STORAGE"),
		LiveFeed:    v.GetString("LIVE_FEED"),
		DBConfig:    config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:   config.LoadJWTConfig(v),
		KafkaConfig: config.LoadKafkaConfig(v),
		RedisAddr:   v.GetString("REDIS_ADDR"),
		RabbitMQURL: v.GetString("RABBITMQ_URL"),
		MQTTBroker:  v.GetString("MQTT_BROKER"),
		MongoURI:    v.GetString("MONGO_URI"),
		MongoDB:     v.GetString("MONGO_DB"),
		Directions: routing.ProviderConfig{
			Kind:    v.GetString("DIRECTIONS_PROVIDER"),
			APIKey:  v.GetString("DIRECTIONS_API_KEY"),
			BaseURL: v.GetString("DIRECTIONS_BASE_URL"),
			Timeout: v.GetDuration("DIRECTIONS_TIMEOUT"),
		},
		Tracking: tracking.SessionConfig{
			TickInterval:     v.GetDuration("TRACKING_TICK"),
			RouteTimeout:     v.GetDuration("DIRECTIONS_TIMEOUT"),
			FallbackSpeedKmh: v.GetFloat64("TRACKING_FALLBACK_SPEED_KMH"),
			SubscriberBuffer: v.GetInt("TRACKING_SUBSCRIBER_BUFFER"),
			Tracker: tracking.TrackerConfig{
				ArrivalThreshold: v.GetFloat64("TRACKING_ARRIVAL_THRESHOLD"),
				MinLegDuration:   v.GetDuration("TRACKING_MIN_LEG"),
			},
		},
		LiveMaxAge: v.GetDuration("TRACKING_LIVE_MAX_AGE"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := tracking.DefaultSessionConfig()

	v.SetDefault("DB_NAME", "ride_db")
	v.SetDefault("STORAGE", StoragePostgres)
	v.SetDefault("LIVE_FEED", FeedKafka)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("MQTT_BROKER", "tcp://localhost:1883")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DB", "ride_tracking")
	v.SetDefault("DIRECTIONS_PROVIDER", "none")
	v.SetDefault("DIRECTIONS_API_KEY", "")
	v.SetDefault("DIRECTIONS_BASE_URL", "")
	v.SetDefault("DIRECTIONS_TIMEOUT", def.RouteTimeout)
	v.SetDefault("TRACKING_TICK", def.TickInterval)
	v.SetDefault("TRACKING_FALLBACK_SPEED_KMH", def.FallbackSpeedKmh)
	v.SetDefault("TRACKING_SUBSCRIBER_BUFFER", def.SubscriberBuffer)
	v.SetDefault("TRACKING_ARRIVAL_THRESHOLD", def.Tracker.ArrivalThreshold)
	v.SetDefault("TRACKING_MIN_LEG", def.Tracker.MinLegDuration)
	v.SetDefault("TRACKING_LIVE_MAX_AGE", 30*time.Second)
}

func (c *ServiceConfig) validate() error {
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	switch c.LiveFeed {
	case FeedKafka, FeedMQTT, FeedNone:
	default:
		return fmt.Errorf("unknown live feed %q", c.LiveFeed)
	}
	if t := c.Tracking.Tracker.ArrivalThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("arrival threshold must be in (0, 1], got %v", t)
	}
	return nil
}
