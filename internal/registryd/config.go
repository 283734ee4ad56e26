package registryd

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read from the environment; an optional env file is loaded by
// the binary before parsing.
type Config struct {
	Addr          string        `env:"REGISTRY_ADDR" envDefault:":8080"`
	DatabaseURL   string        `env:"REGISTRY_DATABASE_URL"`
	RoomTTL       time.Duration `env:"REGISTRY_ROOM_TTL" envDefault:"1h"`
	SweepInterval time.Duration `env:"REGISTRY_SWEEP_INTERVAL" envDefault:"1m"`
}

// LoadConfig parses the environment. DatabaseURL empty means the in-memory
// store is used.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.RoomTTL <= 0 {
		return Config{}, fmt.Errorf("room ttl must be positive, got %s", cfg.RoomTTL)
	}
	return cfg, nil
}
