package transport

import (
	"time"

	"colabai/sources/configuration"
)

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewServerConfig(config *configuration.Config) *ServerConfig {
	return &ServerConfig{
		Port:         config.Service.ApiPort,
		ReadTimeout:  config.Service.ReadTimeout,
		WriteTimeout: config.Service.WriteTimeout,
	}
}
