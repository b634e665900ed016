package repository

import (
	"time"

	"colabai/sources/configuration"
)

type SessionsConfig struct {
	CacheTTL  time.Duration
	KeyPrefix string
}

func NewSessionsConfig(config *configuration.Config) *SessionsConfig {
	return &SessionsConfig{
		CacheTTL:  config.Sessions.CacheTTL,
		KeyPrefix: config.Sessions.KeyPrefix,
	}
}
