package throttler

import (
	"time"

	"colabai/sources/configuration"
)

type ThrottlerConfig struct {
	Limit time.Duration
}

func NewThrottlerConfig(config *configuration.Config) *ThrottlerConfig {
	return &ThrottlerConfig{Limit: config.Throttler.Limit}
}
