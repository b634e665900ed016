package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"colabai/sources/tracing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("COLAB_TEST_HOST", "db.internal")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Set variable",
			input:    "host: ${COLAB_TEST_HOST}",
			expected: "host: db.internal",
		},
		{
			name:     "Set variable ignores default",
			input:    "host: ${COLAB_TEST_HOST:localhost}",
			expected: "host: db.internal",
		},
		{
			name:     "Unset variable with default",
			input:    "port: ${COLAB_TEST_MISSING_PORT:5432}",
			expected: "port: 5432",
		},
		{
			name:     "Unset variable without default",
			input:    "password: ${COLAB_TEST_MISSING_PASSWORD}",
			expected: "password: ",
		},
		{
			name:     "Plain text untouched",
			input:    "dbname: colabai",
			expected: "dbname: colabai",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := expandEnv(tt.input); result != tt.expected {
				t.Errorf("expandEnv(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	config, err := Parse([]byte("database:\n  host: localhost\n"))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	if config.Tokens.DefaultMonthlyLimit != 100000 {
		t.Errorf("DefaultMonthlyLimit = %d, expected 100000", config.Tokens.DefaultMonthlyLimit)
	}
	if config.Tokens.TimeZone != "UTC" {
		t.Errorf("Tokens.TimeZone = %q, expected UTC", config.Tokens.TimeZone)
	}
	if config.Tokens.InputRate != "0.14" || config.Tokens.OutputRate != "0.28" {
		t.Errorf("rates = %q/%q, expected 0.14/0.28", config.Tokens.InputRate, config.Tokens.OutputRate)
	}
	if config.Tokens.RecentUsageLimit != 10 {
		t.Errorf("RecentUsageLimit = %d, expected 10", config.Tokens.RecentUsageLimit)
	}
	if config.Service.ApiPort != 8080 {
		t.Errorf("ApiPort = %d, expected 8080", config.Service.ApiPort)
	}
}

func TestNewYamlReadsConfigPath(t *testing.T) {
	t.Setenv("COLAB_TEST_LIMIT", "250000")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
tokens:
  default_monthly_limit: ${COLAB_TEST_LIMIT}
  time_zone: Europe/Berlin
  packages:
    - id: starter
      name: Starter
      tokens: 50000
      price: 249
throttler:
  limit: 3s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	config, err := NewYaml(tracing.NewDiscardLogger())
	if err != nil {
		t.Fatalf("NewYaml() unexpected error: %v", err)
	}

	if config.Tokens.DefaultMonthlyLimit != 250000 {
		t.Errorf("DefaultMonthlyLimit = %d, expected 250000", config.Tokens.DefaultMonthlyLimit)
	}
	if config.Tokens.TimeZone != "Europe/Berlin" {
		t.Errorf("TimeZone = %q, expected Europe/Berlin", config.Tokens.TimeZone)
	}
	if len(config.Tokens.Packages) != 1 || config.Tokens.Packages[0].Price != 249 {
		t.Errorf("Packages = %+v, expected one package priced 249", config.Tokens.Packages)
	}
	if config.Throttler.Limit != 3*time.Second {
		t.Errorf("Throttler.Limit = %v, expected 3s", config.Throttler.Limit)
	}
}

func TestNewYamlMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := NewYaml(tracing.NewDiscardLogger()); err == nil {
		t.Error("NewYaml() expected error for missing file")
	}
}
