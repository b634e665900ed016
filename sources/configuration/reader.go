package configuration

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"colabai/sources/platform"
	"colabai/sources/tracing"

	"gopkg.in/yaml.v3"
)

var envPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)(?::([^}]*))?\}`)

// NewYaml reads the configuration from CONFIG_PATH (default: config.yaml)
// and returns a Config struct. It supports environment variable expansion.
func NewYaml(log *tracing.Logger) (*Config, error) {
	defer tracing.ProfilePoint(log, "Configuration loaded", "configuration.load")()

	filePath := platform.Get("CONFIG_PATH", "config.yaml")
	log.I("reading configuration", "path", filePath)

	content, err := os.ReadFile(filePath)
	if err != nil {
		log.E("failed to read configuration file", tracing.InnerError, err, "path", filePath)
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	config, err := Parse(content)
	if err != nil {
		log.E("failed to parse configuration file", tracing.InnerError, err, "path", filePath)
		return nil, err
	}

	return config, nil
}

// Parse expands environment references in content, decodes it and fills unset fields with defaults.
func Parse(content []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(expandEnv(string(content))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

// expandEnv replaces ${VAR} or ${VAR:default} with environment values.
func expandEnv(content string) string {
	return envPattern.ReplaceAllStringFunc(content, func(match string) string {
		matches := envPattern.FindStringSubmatch(match)
		key := matches[1]
		defaultValue := ""
		if len(matches) > 2 {
			defaultValue = matches[2]
		}

		value, exists := os.LookupEnv(key)
		if !exists {
			return defaultValue
		}
		return value
	})
}

func applyDefaults(c *Config) {
	if c.Service.ApiPort == 0 {
		c.Service.ApiPort = 8080
	}
	if c.Service.StartupPort == 0 {
		c.Service.StartupPort = 10000
	}
	if c.Service.SystemMetricsPort == 0 {
		c.Service.SystemMetricsPort = 10001
	}
	if c.Service.ApplicationMetricsPort == 0 {
		c.Service.ApplicationMetricsPort = 10002
	}
	if c.Service.ReadTimeout == 0 {
		c.Service.ReadTimeout = 10 * time.Second
	}
	if c.Service.WriteTimeout == 0 {
		c.Service.WriteTimeout = 20 * time.Second
	}

	if c.Database.TimeZone == "" {
		c.Database.TimeZone = "UTC"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Pool.MaxOpenConns == 0 {
		c.Database.Pool.MaxOpenConns = 10
	}
	if c.Database.Pool.MaxIdleConns == 0 {
		c.Database.Pool.MaxIdleConns = 2
	}
	if c.Database.Pool.ConnMaxLifetime == 0 {
		c.Database.Pool.ConnMaxLifetime = 2 * time.Hour
	}
	if c.Database.Pool.ConnMaxIdleTime == 0 {
		c.Database.Pool.ConnMaxIdleTime = 30 * time.Minute
	}

	if c.Redis.MaxRetries == 0 {
		c.Redis.MaxRetries = 5
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}

	if c.Sessions.CacheTTL == 0 {
		c.Sessions.CacheTTL = 10 * time.Minute
	}
	if c.Sessions.KeyPrefix == "" {
		c.Sessions.KeyPrefix = "session"
	}

	if c.Tokens.DefaultMonthlyLimit == 0 {
		c.Tokens.DefaultMonthlyLimit = 100000
	}
	if c.Tokens.TimeZone == "" {
		c.Tokens.TimeZone = "UTC"
	}
	if c.Tokens.InputRate == "" {
		c.Tokens.InputRate = "0.14"
	}
	if c.Tokens.OutputRate == "" {
		c.Tokens.OutputRate = "0.28"
	}
	if c.Tokens.RecentUsageLimit == 0 {
		c.Tokens.RecentUsageLimit = 10
	}
	if c.Tokens.Encoding == "" {
		c.Tokens.Encoding = "o200k_base"
	}

	if c.Throttler.Limit == 0 {
		c.Throttler.Limit = 2 * time.Second
	}

	if c.Features.UnleashAppName == "" {
		c.Features.UnleashAppName = "colabai"
	}
	if c.Features.RefreshInterval == 0 {
		c.Features.RefreshInterval = 5
	}
}
