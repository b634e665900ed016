package transport

import (
	"net/http"
	"time"

	"colabai/sources/metrics"
	"colabai/sources/tracing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// jsonRecoverer answers a panicking handler with a JSON 500 instead of a stack trace.
func jsonRecoverer(log *tracing.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					log.E("Panic recovered", "panic", rvr, tracing.HttpPath, r.URL.Path)
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestReporter emits one log line and one latency observation per request.
func requestReporter(log *tracing.Logger, metrics *metrics.MetricsService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := middleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			tracing.ReportExecution(log.With(tracing.RequestId, requestID),
				func() { next.ServeHTTP(ww, r) },
				func(l *tracing.Logger) {
					l.I("HTTP request served",
						tracing.HttpMethod, r.Method,
						tracing.HttpPath, r.URL.Path,
						tracing.HttpStatus, ww.Status(),
					)
				},
			)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			metrics.RecordRequestDuration(r.Method+" "+route, ww.Status(), time.Since(start))
		})
	}
}
