package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the API server and the interest
// accrual scheduler. All values come from PULABANK_* environment variables.
type Config struct {
	Addr         string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`

	PGDSN string `envconfig:"PG_DSN"`

	RateBurst  int `envconfig:"RATE_BURST" default:"20"`
	RatePerSec int `envconfig:"RATE_PER_SEC" default:"10"`

	// Cron expression for the automatic interest sweep; empty disables it.
	AccrualSchedule string `envconfig:"ACCRUAL_SCHEDULE" default:"@monthly"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("pulabank", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
