package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"colabai/sources/features"
	"colabai/sources/metrics"
	"colabai/sources/persistence/entities"
	"colabai/sources/platform"
	"colabai/sources/tokens"
	"colabai/sources/tracing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	SessionHeader = "X-Session-Id"

	maxBodyBytes = 64 << 10
)

var errUnknownPackage = errors.New("unknown token package")

type Accounting interface {
	InitializeLedger(ctx context.Context, userID uuid.UUID, monthlyLimit *int64) (uuid.UUID, error)
	CheckLimit(ctx context.Context, userID uuid.UUID, estimatedTokens int64) (*tokens.LimitStatus, error)
	RecordUsage(ctx context.Context, input tokens.UsageInput) (*tokens.UsageOutcome, error)
	RecordPurchase(ctx context.Context, sessionID string, input tokens.PurchaseInput) (*tokens.PurchaseOutcome, error)
	GetStats(ctx context.Context, sessionID string, recentLimit int) (*tokens.Stats, error)
	SetMonthlyLimit(ctx context.Context, userID uuid.UUID, limit int64) (*entities.TokenLedger, error)
	Packages() []tokens.Package
	EstimateTokens(text string) (int64, error)
}

type Throttler interface {
	IsAllowed(key string) bool
}

type Toggles interface {
	IsEnabledDefault(featureName string, defaultValue bool) bool
}

type Server struct {
	accounting Accounting
	throttler  Throttler
	toggles    Toggles
	metrics    *metrics.MetricsService
	log        *tracing.Logger
}

func NewServer(accounting Accounting, throttler Throttler, toggles Toggles, metrics *metrics.MetricsService, log *tracing.Logger) *Server {
	return &Server{
		accounting: accounting,
		throttler:  throttler,
		toggles:    toggles,
		metrics:    metrics,
		log:        log.With("component", "transport"),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.log))
	r.Use(middleware.RequestID)
	r.Use(requestReporter(s.log, s.metrics))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ledgers", s.initializeLedger)
		r.Route("/ledgers/{userId}", func(r chi.Router) {
			r.Post("/check", s.checkLimit)
			r.Post("/usage", s.recordUsage)
			r.Put("/limit", s.setMonthlyLimit)
		})
		r.Post("/purchases", s.recordPurchase)
		r.Get("/stats", s.getStats)
		r.Get("/packages", s.packages)
	})

	return r
}

type initializeRequest struct {
	UserID       string `json:"user_id"`
	MonthlyLimit *int64 `json:"monthly_limit"`
}

type initializeResponse struct {
	LedgerID uuid.UUID `json:"ledger_id"`
}

func (s *Server) initializeLedger(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if !s.decode(w, r, &req) {
		return
	}

	userID, err := platform.ParseUUID(req.UserID, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	ledgerID, err := s.accounting.InitializeLedger(r.Context(), userID, req.MonthlyLimit)
	if err != nil {
		handleError(s.log, w, err)
		return
	}

	writeJSON(w, http.StatusOK, initializeResponse{LedgerID: ledgerID})
}

type checkRequest struct {
	EstimatedTokens *int64 `json:"estimated_tokens"`
	Prompt          string `json:"prompt"`
}

func (s *Server) checkLimit(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUser(w, r)
	if !ok {
		return
	}

	var req checkRequest
	if !s.decode(w, r, &req) {
		return
	}

	var estimated int64
	switch {
	case req.EstimatedTokens != nil:
		estimated = *req.EstimatedTokens
	case req.Prompt != "":
		count, err := tracing.ReportExecutionForRE(s.log,
			func() (int64, error) { return s.accounting.EstimateTokens(req.Prompt) },
			func(l *tracing.Logger) { l.D("Prompt tokens estimated", tracing.UserId, userID) },
		)
		if err != nil {
			handleError(s.log, w, err)
			return
		}
		estimated = count
	}

	status, err := s.accounting.CheckLimit(r.Context(), userID, estimated)
	if err != nil {
		handleError(s.log, w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

type usageRequest struct {
	ChatID       string `json:"chat_id"`
	Command      string `json:"command"`
	TokensUsed   *int64 `json:"tokens_used"`
	InputTokens  *int64 `json:"input_tokens"`
	OutputTokens *int64 `json:"output_tokens"`
}

func (s *Server) recordUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUser(w, r)
	if !ok {
		return
	}

	var req usageRequest
	if !s.decode(w, r, &req) {
		return
	}

	chatID, err := platform.ParseUUID(req.ChatID, "chat_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	if req.TokensUsed == nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "tokens_used is required")
		return
	}

	outcome, err := s.accounting.RecordUsage(r.Context(), tokens.UsageInput{
		UserID:       userID,
		ChatID:       chatID,
		Command:      req.Command,
		TokensUsed:   *req.TokensUsed,
		InputTokens:  req.InputTokens,
		OutputTokens: req.OutputTokens,
	})
	if err != nil {
		handleError(s.log, w, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

type limitRequest struct {
	MonthlyLimit *int64 `json:"monthly_limit"`
}

func (s *Server) setMonthlyLimit(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUser(w, r)
	if !ok {
		return
	}

	var req limitRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.MonthlyLimit == nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "monthly_limit is required")
		return
	}

	ledger, err := s.accounting.SetMonthlyLimit(r.Context(), userID, *req.MonthlyLimit)
	if err != nil {
		handleError(s.log, w, err)
		return
	}

	writeJSON(w, http.StatusOK, ledger)
}

type purchaseRequest struct {
	PackageID       string `json:"package_id"`
	TokensAdded     int64  `json:"tokens_added"`
	AmountPaid      int64  `json:"amount_paid"`
	PaymentProvider string `json:"payment_provider"`
	PaymentID       string `json:"payment_id"`
}

func (s *Server) recordPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !s.decode(w, r, &req) {
		return
	}

	input := tokens.PurchaseInput{
		TokensAdded:     req.TokensAdded,
		AmountPaid:      req.AmountPaid,
		PaymentProvider: req.PaymentProvider,
		PaymentID:       req.PaymentID,
	}

	if req.PackageID != "" {
		pkg, err := s.findPackage(req.PackageID)
		if err != nil {
			handleError(s.log, w, err)
			return
		}
		input.TokensAdded, input.AmountPaid = pkg.Tokens, pkg.Price
		if input.PaymentProvider == "" {
			input.PaymentProvider = entities.PaymentProviderDemo
		}
	}

	outcome, err := s.accounting.RecordPurchase(r.Context(), r.Header.Get(SessionHeader), input)
	if err != nil {
		handleError(s.log, w, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil {
			err = platform.ValidateNonNegative(int64(parsed), "limit")
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	if sessionID != "" && s.toggles.IsEnabledDefault(features.FeatureStatsThrottling, false) && !s.throttler.IsAllowed("stats:"+sessionID) {
		handleError(s.log, w, errThrottled)
		return
	}

	stats, err := s.accounting.GetStats(r.Context(), sessionID, limit)
	if err != nil {
		handleError(s.log, w, err)
		return
	}

	// nil stats encode as null: the user has no ledger yet.
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) packages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.accounting.Packages())
}

func (s *Server) findPackage(id string) (tokens.Package, error) {
	for _, p := range s.accounting.Packages() {
		if p.ID == id {
			return p, nil
		}
	}
	return tokens.Package{}, fmt.Errorf("%w: %s", errUnknownPackage, id)
}

func (s *Server) pathUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := platform.ParseUUID(chi.URLParam(r, "userId"), "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return uuid.Nil, false
	}
	return userID, true
}

// decode accepts an empty body as the zero request. Unknown fields and bodies
// over maxBodyBytes are rejected.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	err := decoder.Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, codeBadRequest, fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes))
		return false
	}

	writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
	return false
}
