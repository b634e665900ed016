package configuration

import (
	"time"
)

type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Tokens    TokensConfig    `yaml:"tokens"`
	Throttler ThrottlerConfig `yaml:"throttler"`
	Features  FeaturesConfig  `yaml:"features"`
}

type ServiceConfig struct {
	ApiPort                int           `yaml:"api_port"`
	StartupPort            int           `yaml:"startup_port"`
	SystemMetricsPort      int           `yaml:"system_metrics_port"`
	ApplicationMetricsPort int           `yaml:"application_metrics_port"`
	ReadTimeout            time.Duration `yaml:"read_timeout"`
	WriteTimeout           time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string             `yaml:"host"`
	Port     string             `yaml:"port"`
	User     string             `yaml:"user"`
	Password string             `yaml:"password"`
	DBName   string             `yaml:"dbname"`
	SSLMode  string             `yaml:"ssl_mode"`
	TimeZone string             `yaml:"time_zone"`
	Replicas []DatabaseConfig   `yaml:"replicas"`
	Pool     DatabasePoolConfig `yaml:"pool"`
}

type DatabasePoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type SessionsConfig struct {
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

type TokensConfig struct {
	DefaultMonthlyLimit int64                `yaml:"default_monthly_limit"`
	TimeZone            string               `yaml:"time_zone"`
	InputRate           string               `yaml:"input_rate"`
	OutputRate          string               `yaml:"output_rate"`
	RecentUsageLimit    int                  `yaml:"recent_usage_limit"`
	Encoding            string               `yaml:"encoding"`
	Packages            []TokenPackageConfig `yaml:"packages"`
}

type TokenPackageConfig struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Tokens int64  `yaml:"tokens"`
	Price  int64  `yaml:"price"`
}

type ThrottlerConfig struct {
	Limit time.Duration `yaml:"limit"`
}

type FeaturesConfig struct {
	UnleashAPIURL     string `yaml:"unleash_api_url"`
	UnleashAppName    string `yaml:"unleash_app_name"`
	UnleashInstanceID string `yaml:"unleash_instance_id"`
	RefreshInterval   int    `yaml:"refresh_interval"`
}
