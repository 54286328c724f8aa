package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostgresConfig_URLs(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db",
		Port:     "5432",
		User:     "ride",
		Password: "p@ss",
		DBName:   "rides",
		SSLMode:  "disable",
	}

	assert.Equal(t, "host=db port=5432 user=ride password=p@ss dbname=rides sslmode=disable", cfg.DSN())
	assert.Equal(t, "postgres://ride:p%40ss@db:5432/rides?sslmode=disable", cfg.DatabaseURL())
}
