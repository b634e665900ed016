package features

import (
	"colabai/sources/configuration"
)

type FeatureConfig struct {
	UnleashAPIURL     string
	UnleashInstanceID string
	UnleashAppName    string
	RefreshInterval   int
}

func NewFeatureConfig(config *configuration.Config) *FeatureConfig {
	return &FeatureConfig{
		UnleashAPIURL:     config.Features.UnleashAPIURL,
		UnleashInstanceID: config.Features.UnleashInstanceID,
		UnleashAppName:    config.Features.UnleashAppName,
		RefreshInterval:   config.Features.RefreshInterval,
	}
}
