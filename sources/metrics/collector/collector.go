package collector

import (
	"context"
	"time"

	"colabai/sources/features"
	"colabai/sources/metrics"
	"colabai/sources/repository"
	"colabai/sources/tokens"
	"colabai/sources/tracing"

	"go.uber.org/fx"
)

const interval = 1 * time.Minute

// StatsCollector refreshes the aggregate ledger gauges while the stats collector toggle is on.
type StatsCollector struct {
	log       *tracing.Logger
	metrics   *metrics.MetricsService
	features  *features.FeatureManager
	config    *tokens.Config
	ledgers   *repository.LedgersRepository
	usage     *repository.UsageRepository
	purchases *repository.PurchasesRepository
	cancel    context.CancelFunc
}

func NewStatsCollector(
	lc fx.Lifecycle,
	log *tracing.Logger,
	metrics *metrics.MetricsService,
	features *features.FeatureManager,
	config *tokens.Config,
	ledgers *repository.LedgersRepository,
	usage *repository.UsageRepository,
	purchases *repository.PurchasesRepository,
) *StatsCollector {
	s := &StatsCollector{
		log:       log.With("component", "stats_collector"),
		metrics:   metrics,
		features:  features,
		config:    config,
		ledgers:   ledgers,
		usage:     usage,
		purchases: purchases,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, s.cancel = context.WithCancel(context.Background())
			go s.start(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if s.cancel != nil {
				s.cancel()
			}
			return nil
		},
	})

	return s
}

func (s *StatsCollector) start(ctx context.Context) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *StatsCollector) tick() {
	if !s.features.IsEnabledDefault(features.FeatureStatsCollector, true) {
		s.log.D("Stats collector disabled", tracing.FeatureName, features.FeatureStatsCollector)
		return
	}

	s.collectStats(time.Now())
}

func (s *StatsCollector) collectStats(now time.Time) {
	month := tokens.MonthKey(now, s.config.Location)
	monthStart := tokens.MonthStart(now, s.config.Location)

	if count, err := s.ledgers.GetLedgersCount(s.log); err == nil {
		s.metrics.SetTotalLedgers(float64(count))
	} else {
		s.log.E("Failed to collect total ledgers stats", tracing.InnerError, err)
	}

	if count, err := s.ledgers.GetExhaustedLedgersCount(s.log, month); err == nil {
		s.metrics.SetExhaustedLedgers(float64(count))
	} else {
		s.log.E("Failed to collect exhausted ledgers stats", tracing.InnerError, err)
	}

	if total, err := s.usage.GetTotalTokens(s.log); err == nil {
		s.metrics.SetTotalTokens(float64(total))
	} else {
		s.log.E("Failed to collect total tokens stats", tracing.InnerError, err)
	}

	if total, err := s.usage.GetTotalTokensSince(s.log, monthStart); err == nil {
		s.metrics.SetMonthlyTokens(float64(total))
	} else {
		s.log.E("Failed to collect monthly tokens stats", tracing.InnerError, err)
	}

	if cost, err := s.usage.GetTotalCostSince(s.log, monthStart); err == nil {
		s.metrics.SetMonthlyCost(float64(cost))
	} else {
		s.log.E("Failed to collect monthly cost stats", tracing.InnerError, err)
	}

	if total, err := s.purchases.GetTotalPurchasedTokens(s.log); err == nil {
		s.metrics.SetPurchasedTokens(float64(total))
	} else {
		s.log.E("Failed to collect purchased tokens stats", tracing.InnerError, err)
	}

	if amount, err := s.purchases.GetRevenueSince(s.log, monthStart); err == nil {
		s.metrics.SetMonthlyRevenue(float64(amount))
	} else {
		s.log.E("Failed to collect monthly revenue stats", tracing.InnerError, err)
	}

	if count, err := s.usage.GetActiveUsersCount(s.log, now.Add(-24*time.Hour)); err == nil {
		s.metrics.SetDAU(float64(count))
	} else {
		s.log.E("Failed to collect DAU stats", tracing.InnerError, err)
	}

	if count, err := s.usage.GetActiveUsersCount(s.log, now.Add(-30*24*time.Hour)); err == nil {
		s.metrics.SetMAU(float64(count))
	} else {
		s.log.E("Failed to collect MAU stats", tracing.InnerError, err)
	}
}
