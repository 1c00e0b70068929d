package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/medagenda/booking-api/pkg/config"
)

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:             "db",
		Port:             5432,
		User:             "clinic",
		Password:         "secret",
		Name:             "clinic_booking",
		SSLMode:          "disable",
		StatementTimeout: 4 * time.Second,
	}

	assert.Equal(t,
		"host=db port=5432 user=clinic password=secret dbname=clinic_booking sslmode=disable application_name=booking-api statement_timeout=4000",
		DSN(cfg))

	cfg.StatementTimeout = 0
	assert.NotContains(t, DSN(cfg), "statement_timeout")
}
