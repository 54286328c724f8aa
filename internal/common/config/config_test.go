package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("TESTSVC_DB_HOST", "db.internal")
	t.Setenv("TESTSVC_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("TESTSVC_SERVICE_PORT", "9000")

	v, err := Load("TESTSVC")
	require.NoError(t, err)

	db := LoadDatabaseConfig(v, "DB_HOST")
	assert.Equal(t, "db.internal", db.Host)
	assert.Equal(t, "5432", db.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, LoadKafkaConfig(v).Brokers)
	assert.Equal(t, ":9000", GetServicePort(v, "SERVICE_PORT"))
	assert.Equal(t, "development", GetAppEnv(v))
}
