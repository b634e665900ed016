package tracing

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

const (
	ExecutionTime   = "exe_time"
	OutsiderKind    = "outsider_kind"
	InnerError      = "inner_error"
	UserId          = "user_id"
	ChatId          = "chat_id"
	LedgerId        = "ledger_id"
	Command         = "command"
	TokensUsed      = "tokens_used"
	TokensAdded     = "tokens_added"
	TokensEstimated = "tokens_estimated"
	TokensAvailable = "tokens_available"
	MonthlyUsed     = "monthly_used"
	MonthlyLimit    = "monthly_limit"
	ResetMonth      = "reset_month"
	PaymentId       = "payment_id"
	PaymentProvider = "payment_provider"
	CostCents       = "cost_cents"
	HttpMethod      = "http_method"
	HttpPath        = "http_path"
	HttpStatus      = "http_status"
	RequestId       = "request_id"
	FeatureName     = "feature_name"
)

type Logger struct {
	log *slog.Logger
	ctx context.Context
}

func NewConsoleLogger() *Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	logger.InfoContext(ctx, "Initializing logger")
	return &Logger{log: logger, ctx: context.Background()}
}

// NewDiscardLogger returns a logger that drops every record.
func NewDiscardLogger() *Logger {
	return &Logger{log: slog.New(slog.NewJSONHandler(io.Discard, nil)), ctx: context.Background()}
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{log: l.log.With(args...), ctx: l.ctx}
}

func (l *Logger) Slog() *slog.Logger {
	return l.log
}

func (l *Logger) D(msg string, args ...any) {
	l.log.DebugContext(l.ctx, msg, args...)
}

func (l *Logger) I(msg string, args ...any) {
	l.log.InfoContext(l.ctx, msg, args...)
}

func (l *Logger) W(msg string, args ...any) {
	l.log.WarnContext(l.ctx, msg, args...)
}

func (l *Logger) E(msg string, args ...any) {
	l.log.ErrorContext(l.ctx, msg, args...)
}

func (l *Logger) F(msg string, args ...any) {
	l.log.ErrorContext(l.ctx, msg, args...)
	panic(msg)
}
