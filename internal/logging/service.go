package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"spicam-server/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("device_id", cfg.DeviceID).Str("service", service).Logger()
}

// WithOwner tags a camera logger with the mode currently holding the device.
func WithOwner(base zerolog.Logger, owner string) zerolog.Logger {
	return base.With().Str("owner", owner).Logger()
}
