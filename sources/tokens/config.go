package tokens

import (
	"errors"
	"fmt"
	"time"

	"colabai/sources/configuration"

	"github.com/shopspring/decimal"
)

const MaxRecentUsageLimit = 100

type Package struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tokens int64  `json:"tokens"`
	Price  int64  `json:"price"`
}

type Config struct {
	DefaultMonthlyLimit int64
	Location            *time.Location
	Pricing             Pricing
	RecentUsageLimit    int
	Encoding            string
	Packages            []Package
}

func NewConfig(config *configuration.Config) (*Config, error) {
	c := config.Tokens

	if c.DefaultMonthlyLimit < 0 {
		return nil, fmt.Errorf("tokens.default_monthly_limit: %w", ErrInvalidLimit)
	}

	location, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid tokens.time_zone %q: %w", c.TimeZone, err)
	}

	inputRate, err := decimal.NewFromString(c.InputRate)
	if err != nil {
		return nil, fmt.Errorf("invalid tokens.input_rate: %w", err)
	}

	outputRate, err := decimal.NewFromString(c.OutputRate)
	if err != nil {
		return nil, fmt.Errorf("invalid tokens.output_rate: %w", err)
	}

	if inputRate.IsNegative() || outputRate.IsNegative() {
		return nil, errors.New("token rates must be non-negative")
	}

	recent := c.RecentUsageLimit
	if recent <= 0 || recent > MaxRecentUsageLimit {
		return nil, fmt.Errorf("tokens.recent_usage_limit must be between 1 and %d", MaxRecentUsageLimit)
	}

	packages := make([]Package, 0, len(c.Packages))
	for _, p := range c.Packages {
		if p.ID == "" || p.Tokens <= 0 || p.Price < 0 {
			return nil, fmt.Errorf("invalid token package %q", p.ID)
		}
		packages = append(packages, Package{ID: p.ID, Name: p.Name, Tokens: p.Tokens, Price: p.Price})
	}

	return &Config{
		DefaultMonthlyLimit: c.DefaultMonthlyLimit,
		Location:            location,
		Pricing:             Pricing{InputRate: inputRate, OutputRate: outputRate},
		RecentUsageLimit:    recent,
		Encoding:            c.Encoding,
		Packages:            packages,
	}, nil
}
