package metrics

import (
	"time"

	"colabai/sources/tracing"

	"github.com/prometheus/client_golang/prometheus"
)

type MetricsService struct {
	log *tracing.Logger
}

var (
	tokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colabai_tokens_used_total",
			Help: "Total number of tokens recorded as used",
		},
		[]string{"command"},
	)

	usageCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colabai_usage_cost_cents_total",
			Help: "Total derived usage cost in cents",
		},
		[]string{"command"},
	)

	tokensPurchased = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colabai_tokens_purchased_total",
			Help: "Total number of tokens credited by purchases",
		},
		[]string{"provider"},
	)

	purchaseAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colabai_purchase_amount_cents_total",
			Help: "Total amount paid for token purchases in minor currency units",
		},
		[]string{"provider"},
	)

	duplicatePayments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "colabai_duplicate_payments_total",
			Help: "Purchases recorded with a payment id that was already credited",
		},
	)

	limitChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colabai_limit_checks_total",
			Help: "Total number of limit checks by outcome",
		},
		[]string{"result"},
	)

	monthlyResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "colabai_monthly_resets_total",
			Help: "Total number of ledgers rolled over to a new month",
		},
	)

	ledgersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "colabai_ledgers_created_total",
			Help: "Total number of ledgers created",
		},
	)

	statsReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colabai_stats_reads_total",
			Help: "Total number of stats reads by outcome",
		},
		[]string{"result"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "colabai_http_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)

	statsTotalLedgers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "colabai_stats_total_ledgers",
			Help: "Total number of token ledgers",
		},
	)

	statsExhaustedLedgers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "colabai_stats_exhausted_ledgers",
			Help: "Ledgers with no tokens left in the current month",
		},
	)

	statsTotalTokens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "colabai_stats_total_tokens",
			Help: "Lifetime tokens recorded in usage history",
		},
	)

	statsMonthlyTokens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "colabai_stats_monthly_tokens",
			Help: "Tokens recorded in usage history since the start of the month",
		},
	)

	statsMonthlyCost = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "colabai_stats_monthly_cost_cents",
			Help: "Derived usage cost since the start of the month",
		},
	)

	statsPurchasedTokens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "colabai_stats_purchased_tokens",
			Help: "Lifetime tokens credited by purchases",
		},
	)

	statsMonthlyRevenue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "colabai_stats_monthly_revenue_cents",
			Help: "Amount paid for purchases since the start of the month",
		},
	)

	statsDAU = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "colabai_stats_dau",
			Help: "Daily Active Users (last 24h)",
		},
	)

	statsMAU = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "colabai_stats_mau",
			Help: "Monthly Active Users (last 30d)",
		},
	)
)

func init() {
	prometheus.MustRegister(tokensUsed)
	prometheus.MustRegister(usageCost)
	prometheus.MustRegister(tokensPurchased)
	prometheus.MustRegister(purchaseAmount)
	prometheus.MustRegister(duplicatePayments)
	prometheus.MustRegister(limitChecks)
	prometheus.MustRegister(monthlyResets)
	prometheus.MustRegister(ledgersCreated)
	prometheus.MustRegister(statsReads)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(statsTotalLedgers)
	prometheus.MustRegister(statsExhaustedLedgers)
	prometheus.MustRegister(statsTotalTokens)
	prometheus.MustRegister(statsMonthlyTokens)
	prometheus.MustRegister(statsMonthlyCost)
	prometheus.MustRegister(statsPurchasedTokens)
	prometheus.MustRegister(statsMonthlyRevenue)
	prometheus.MustRegister(statsDAU)
	prometheus.MustRegister(statsMAU)
}

func NewMetricsService(log *tracing.Logger) *MetricsService {
	return &MetricsService{
		log: log,
	}
}

func (s *MetricsService) RecordUsage(command string, tokens int64, cost *int64) {
	tokensUsed.WithLabelValues(command).Add(float64(tokens))
	if cost != nil {
		usageCost.WithLabelValues(command).Add(float64(*cost))
	}
}

func (s *MetricsService) RecordPurchase(provider string, tokens int64, amount int64) {
	tokensPurchased.WithLabelValues(provider).Add(float64(tokens))
	purchaseAmount.WithLabelValues(provider).Add(float64(amount))
}

func (s *MetricsService) RecordDuplicatePayment() {
	duplicatePayments.Inc()
}

func (s *MetricsService) RecordLimitCheck(result string) {
	limitChecks.WithLabelValues(result).Inc()
}

func (s *MetricsService) RecordMonthlyReset() {
	monthlyResets.Inc()
}

func (s *MetricsService) RecordLedgerCreated() {
	ledgersCreated.Inc()
}

func (s *MetricsService) RecordStatsRead(result string) {
	statsReads.WithLabelValues(result).Inc()
}

func (s *MetricsService) RecordRequestDuration(route string, status int, duration time.Duration) {
	requestDuration.WithLabelValues(route, statusClass(status)).Observe(duration.Seconds())
}

func (s *MetricsService) SetTotalLedgers(count float64) {
	statsTotalLedgers.Set(count)
}

func (s *MetricsService) SetExhaustedLedgers(count float64) {
	statsExhaustedLedgers.Set(count)
}

func (s *MetricsService) SetTotalTokens(tokens float64) {
	statsTotalTokens.Set(tokens)
}

func (s *MetricsService) SetMonthlyTokens(tokens float64) {
	statsMonthlyTokens.Set(tokens)
}

func (s *MetricsService) SetMonthlyCost(cost float64) {
	statsMonthlyCost.Set(cost)
}

func (s *MetricsService) SetPurchasedTokens(tokens float64) {
	statsPurchasedTokens.Set(tokens)
}

func (s *MetricsService) SetMonthlyRevenue(amount float64) {
	statsMonthlyRevenue.Set(amount)
}

func (s *MetricsService) SetDAU(count float64) {
	statsDAU.Set(count)
}

func (s *MetricsService) SetMAU(count float64) {
	statsMAU.Set(count)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
