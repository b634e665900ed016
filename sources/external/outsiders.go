package external

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"colabai/sources/platform"
	"colabai/sources/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HealthChecker interface {
	CheckDatabaseHealth(logger *tracing.Logger) error
	CheckRedisHealth(logger *tracing.Logger) error
}

type Outsiders struct {
	log    *tracing.Logger
	config *OutsidersConfig
	ss     *http.Server
	sms    *http.Server
	as     *http.Server
}

func NewOutsiders(log *tracing.Logger, config *OutsidersConfig, health HealthChecker) *Outsiders {
	systemRegistry := prometheus.NewRegistry()

	systemRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)

	return &Outsiders{
		log:    log,
		config: config,
		ss: &http.Server{
			Addr: fmt.Sprintf(":%d", config.StartupPort),
			Handler: platform.Curry(http.NewServeMux, func(m *http.ServeMux) {
				m.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
					startuphandler(log, health, w, r)
				})
			}),
		},
		sms: &http.Server{
			Addr: fmt.Sprintf(":%d", config.SystemMetricsPort),
			Handler: platform.Curry(http.NewServeMux, func(m *http.ServeMux) {
				m.Handle("/metrics", promhttp.HandlerFor(systemRegistry, promhttp.HandlerOpts{}))
			}),
		},
		as: &http.Server{
			Addr: fmt.Sprintf(":%d", config.ApplicationMetricsPort),
			Handler: platform.Curry(http.NewServeMux, func(m *http.ServeMux) {
				m.Handle("/metrics", promhttp.Handler())
			}),
		},
	}
}

func (x *Outsiders) startup() {
	x.log.I("Startup server is starting", tracing.OutsiderKind, "startup", "port", x.config.StartupPort)

	if err := x.ss.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		x.log.F("Failed to start startup server", tracing.OutsiderKind, "startup", tracing.InnerError, err)
	}
}

func (x *Outsiders) systemMetrics() {
	x.log.I("System metrics server is starting", tracing.OutsiderKind, "system_metrics", "port", x.config.SystemMetricsPort)

	if err := x.sms.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		x.log.F("Failed to start system metrics server", tracing.OutsiderKind, "system_metrics", tracing.InnerError, err)
	}
}

func (x *Outsiders) applicationMetrics() {
	x.log.I("Application metrics server is starting", tracing.OutsiderKind, "application_metrics", "port", x.config.ApplicationMetricsPort)

	if err := x.as.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		x.log.F("Failed to start application metrics server", tracing.OutsiderKind, "application_metrics", tracing.InnerError, err)
	}
}

type healthReport struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	Uptime    int64  `json:"uptime_seconds"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
}

func startuphandler(log *tracing.Logger, health HealthChecker, w http.ResponseWriter, r *http.Request) {
	log.D("Outsider service got a ping", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)

	report := healthReport{
		Status:    "ok",
		Service:   "colabai",
		Version:   platform.GetAppVersion(),
		BuildTime: platform.GetAppBuildTime(),
		Uptime:    int64(time.Since(platform.GetAppStartTime()).Seconds()),
		Database:  "ok",
		Redis:     "ok",
	}

	if err := health.CheckDatabaseHealth(log); err != nil {
		report.Status, report.Database = "degraded", "unavailable"
	}
	if err := health.CheckRedisHealth(log); err != nil {
		report.Status, report.Redis = "degraded", "unavailable"
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}
