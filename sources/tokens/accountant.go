package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"colabai/sources/metrics"
	"colabai/sources/persistence/entities"
	"colabai/sources/repository"
	"colabai/sources/texting/tokenizer"
	"colabai/sources/tracing"

	"github.com/google/uuid"
)

type Sessions interface {
	ResolveUser(ctx context.Context, logger *tracing.Logger, token string) (uuid.UUID, error)
}

// Accountant owns every mutation of token ledgers. Each operation runs inside a single
// ledger transaction and rolls a stale ledger over to the current month before using it.
type Accountant struct {
	ledgers   repository.Ledgers
	sessions  Sessions
	tokenizer *tokenizer.Tokenizer
	metrics   *metrics.MetricsService
	config    *Config
	log       *tracing.Logger
	now       func() time.Time
}

func NewAccountant(
	ledgers repository.Ledgers,
	sessions Sessions,
	tokenizer *tokenizer.Tokenizer,
	metrics *metrics.MetricsService,
	config *Config,
	log *tracing.Logger,
) *Accountant {
	return &Accountant{
		ledgers:   ledgers,
		sessions:  sessions,
		tokenizer: tokenizer,
		metrics:   metrics,
		config:    config,
		log:       log,
		now:       time.Now,
	}
}

// InitializeLedger creates the user's ledger when missing and returns its id.
// An existing ledger keeps its limit even when monthlyLimit is given.
func (x *Accountant) InitializeLedger(ctx context.Context, userID uuid.UUID, monthlyLimit *int64) (uuid.UUID, error) {
	log := x.log.With(tracing.UserId, userID)
	defer tracing.ProfilePoint(log, "Ledger initialize completed", "tokens.accountant.initialize")()

	limit := x.config.DefaultMonthlyLimit
	if monthlyLimit != nil {
		if *monthlyLimit < 0 {
			return uuid.Nil, ErrInvalidLimit
		}
		limit = *monthlyLimit
	}

	var (
		ledger  *entities.TokenLedger
		created bool
	)
	err := x.ledgers.Atomically(ctx, log, func(tx repository.LedgerTx) error {
		var err error
		ledger, created, err = x.ensureLedger(tx, log, userID, limit, x.now())
		return err
	})

	if err != nil {
		log.E("Failed to initialize ledger", tracing.InnerError, err)
		return uuid.Nil, err
	}

	if !created {
		log.D("Ledger already initialized", tracing.LedgerId, ledger.ID)
	}

	return ledger.ID, nil
}

// CheckLimit reports whether the user can afford estimatedTokens. It never creates a ledger.
func (x *Accountant) CheckLimit(ctx context.Context, userID uuid.UUID, estimatedTokens int64) (*LimitStatus, error) {
	log := x.log.With(tracing.UserId, userID, tracing.TokensEstimated, estimatedTokens)
	defer tracing.ProfilePoint(log, "Limit check completed", "tokens.accountant.check.limit")()

	if estimatedTokens < 0 {
		return nil, fmt.Errorf("%w: estimated tokens must be non-negative", ErrInvalidUsage)
	}

	var status *LimitStatus
	err := x.ledgers.Atomically(ctx, log, func(tx repository.LedgerTx) error {
		ledger, reset, err := x.loadLedger(tx, log, userID, x.now())
		if errors.Is(err, repository.ErrLedgerNotFound) {
			status = &LimitStatus{HasTokens: false, Reason: ReasonNotInitialized}
			return nil
		}
		if err != nil {
			return err
		}

		available := AvailableTokens(ledger)
		status = &LimitStatus{
			HasTokens:       available > estimatedTokens,
			AvailableTokens: available,
			MonthlyLimit:    ledger.MonthlyLimit,
			MonthlyUsed:     ledger.MonthlyTokensUsed,
			TotalUsed:       ledger.TotalTokensUsed,
			PurchasedTokens: ledger.PurchasedTokens,
			NeedsReset:      reset,
		}
		if !status.HasTokens {
			status.Reason = ReasonLimitExceeded
		}
		return nil
	})

	if err != nil {
		log.E("Failed to check limit", tracing.InnerError, err)
		return nil, err
	}

	switch {
	case status.Reason == ReasonNotInitialized:
		x.metrics.RecordLimitCheck("uninitialized")
	case status.HasTokens:
		x.metrics.RecordLimitCheck("allowed")
	default:
		x.metrics.RecordLimitCheck("exhausted")
		log.I("Token limit exhausted", tracing.TokensAvailable, status.AvailableTokens)
	}

	return status, nil
}

// RecordUsage appends a usage record and charges it to the ledger, creating the ledger
// with the default limit when the user has none yet.
func (x *Accountant) RecordUsage(ctx context.Context, input UsageInput) (*UsageOutcome, error) {
	log := x.log.With(tracing.UserId, input.UserID, tracing.ChatId, input.ChatID, tracing.Command, input.Command)
	defer tracing.ProfilePoint(log, "Usage record completed", "tokens.accountant.record.usage")()

	if err := validateUsage(input); err != nil {
		return nil, err
	}

	cost := x.config.Pricing.Cost(input.InputTokens, input.OutputTokens)

	var outcome *UsageOutcome
	err := x.ledgers.Atomically(ctx, log, func(tx repository.LedgerTx) error {
		now := x.now()

		ledger, _, err := x.ensureLedger(tx, log, input.UserID, x.config.DefaultMonthlyLimit, now)
		if err != nil {
			return err
		}

		record := &entities.UsageRecord{
			ID:           uuid.New(),
			UserID:       input.UserID,
			ChatID:       input.ChatID,
			Command:      input.Command,
			TokensUsed:   input.TokensUsed,
			InputTokens:  input.InputTokens,
			OutputTokens: input.OutputTokens,
			Cost:         cost,
			Timestamp:    now,
		}
		if err := tx.AppendUsage(record); err != nil {
			return err
		}

		ledger.TotalTokensUsed += input.TokensUsed
		ledger.MonthlyTokensUsed += input.TokensUsed
		ledger.UpdatedAt = now
		if err := tx.SaveLedger(ledger); err != nil {
			return err
		}

		outcome = &UsageOutcome{
			TotalUsed:       ledger.TotalTokensUsed,
			MonthlyUsed:     ledger.MonthlyTokensUsed,
			RemainingTokens: AvailableTokens(ledger),
		}
		return nil
	})

	if err != nil {
		log.E("Failed to record usage", tracing.InnerError, err)
		return nil, err
	}

	x.metrics.RecordUsage(input.Command, input.TokensUsed, cost)
	log.I("Usage recorded", tracing.TokensUsed, input.TokensUsed, tracing.CostCents, cost, tracing.MonthlyUsed, outcome.MonthlyUsed, tracing.TokensAvailable, outcome.RemainingTokens)

	return outcome, nil
}

// RecordPurchase credits purchased tokens to the session's user. A repeated payment id
// is credited again and reported as a duplicate.
func (x *Accountant) RecordPurchase(ctx context.Context, sessionID string, input PurchaseInput) (*PurchaseOutcome, error) {
	log := x.log.With(tracing.PaymentId, input.PaymentID, tracing.PaymentProvider, input.PaymentProvider)
	defer tracing.ProfilePoint(log, "Purchase record completed", "tokens.accountant.record.purchase")()

	userID, err := x.authenticate(ctx, log, sessionID)
	if err != nil {
		return nil, err
	}
	log = log.With(tracing.UserId, userID)

	if err := validatePurchase(input); err != nil {
		return nil, err
	}

	var (
		outcome   *PurchaseOutcome
		duplicate bool
	)
	err = x.ledgers.Atomically(ctx, log, func(tx repository.LedgerTx) error {
		now := x.now()

		ledger, _, err := x.ensureLedger(tx, log, userID, x.config.DefaultMonthlyLimit, now)
		if err != nil {
			return err
		}

		seen, err := tx.CountPurchasesByPaymentID(userID, input.PaymentID)
		if err != nil {
			return err
		}
		duplicate = seen > 0

		record := &entities.PurchaseRecord{
			ID:              uuid.New(),
			UserID:          userID,
			TokensAdded:     input.TokensAdded,
			AmountPaid:      input.AmountPaid,
			PaymentProvider: input.PaymentProvider,
			PaymentID:       input.PaymentID,
			Timestamp:       now,
		}
		if err := tx.AppendPurchase(record); err != nil {
			return err
		}

		ledger.PurchasedTokens += input.TokensAdded
		ledger.UpdatedAt = now
		if err := tx.SaveLedger(ledger); err != nil {
			return err
		}

		outcome = &PurchaseOutcome{
			NewBalance:     ledger.PurchasedTokens,
			TotalAvailable: AvailableTokens(ledger),
		}
		return nil
	})

	if err != nil {
		log.E("Failed to record purchase", tracing.InnerError, err)
		return nil, err
	}

	if duplicate {
		x.metrics.RecordDuplicatePayment()
		log.W("Payment id already recorded, credited again")
	}

	x.metrics.RecordPurchase(input.PaymentProvider, input.TokensAdded, input.AmountPaid)
	log.I("Purchase recorded", tracing.TokensAdded, input.TokensAdded, tracing.TokensAvailable, outcome.TotalAvailable)

	return outcome, nil
}

// GetStats returns the session user's ledger summary, or nil when the user has no ledger.
func (x *Accountant) GetStats(ctx context.Context, sessionID string, recentLimit int) (*Stats, error) {
	userID, err := x.authenticate(ctx, x.log, sessionID)
	if err != nil {
		return nil, err
	}

	return x.GetStatsForUser(ctx, userID, recentLimit)
}

func (x *Accountant) GetStatsForUser(ctx context.Context, userID uuid.UUID, recentLimit int) (*Stats, error) {
	log := x.log.With(tracing.UserId, userID)
	defer tracing.ProfilePoint(log, "Stats read completed", "tokens.accountant.get.stats")()

	if recentLimit <= 0 {
		recentLimit = x.config.RecentUsageLimit
	}
	recentLimit = min(recentLimit, MaxRecentUsageLimit)

	var stats *Stats
	err := x.ledgers.Atomically(ctx, log, func(tx repository.LedgerTx) error {
		now := x.now()

		ledger, _, err := x.loadLedger(tx, log, userID, now)
		if errors.Is(err, repository.ErrLedgerNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		recent, err := tx.RecentUsage(userID, recentLimit)
		if err != nil {
			return err
		}

		purchases, err := tx.PurchasesSince(userID, MonthStart(now, x.config.Location))
		if err != nil {
			return err
		}

		stats = &Stats{
			TotalTokensUsed:   ledger.TotalTokensUsed,
			MonthlyTokensUsed: ledger.MonthlyTokensUsed,
			MonthlyLimit:      ledger.MonthlyLimit,
			PurchasedTokens:   ledger.PurchasedTokens,
			AvailableTokens:   AvailableTokens(ledger),
			LastResetDate:     ledger.LastResetDate,
			RecentUsage:       recent,
			MonthlyPurchases:  purchases,
		}
		return nil
	})

	if err != nil {
		log.E("Failed to get stats", tracing.InnerError, err)
		x.metrics.RecordStatsRead("error")
		return nil, err
	}

	if stats == nil {
		x.metrics.RecordStatsRead("uninitialized")
		return nil, nil
	}

	x.metrics.RecordStatsRead("ok")
	return stats, nil
}

// SetMonthlyLimit changes the base allowance of an existing ledger.
func (x *Accountant) SetMonthlyLimit(ctx context.Context, userID uuid.UUID, limit int64) (*entities.TokenLedger, error) {
	log := x.log.With(tracing.UserId, userID, tracing.MonthlyLimit, limit)
	defer tracing.ProfilePoint(log, "Monthly limit update completed", "tokens.accountant.set.limit")()

	if limit < 0 {
		return nil, ErrInvalidLimit
	}

	var ledger *entities.TokenLedger
	err := x.ledgers.Atomically(ctx, log, func(tx repository.LedgerTx) error {
		now := x.now()

		var err error
		ledger, _, err = x.loadLedger(tx, log, userID, now)
		if errors.Is(err, repository.ErrLedgerNotFound) {
			return ErrLedgerNotInitialized
		}
		if err != nil {
			return err
		}

		ledger.MonthlyLimit = limit
		ledger.UpdatedAt = now
		return tx.SaveLedger(ledger)
	})

	if err != nil {
		if !errors.Is(err, ErrLedgerNotInitialized) {
			log.E("Failed to set monthly limit", tracing.InnerError, err)
		}
		return nil, err
	}

	log.I("Monthly limit updated")
	return ledger, nil
}

func (x *Accountant) Packages() []Package {
	return x.config.Packages
}

func (x *Accountant) EstimateTokens(text string) (int64, error) {
	return x.tokenizer.Tokens(text)
}

func (x *Accountant) authenticate(ctx context.Context, log *tracing.Logger, sessionID string) (uuid.UUID, error) {
	if sessionID == "" {
		return uuid.Nil, &AuthenticationError{}
	}

	userID, err := x.sessions.ResolveUser(ctx, log, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return uuid.Nil, &AuthenticationError{Cause: err}
		}
		log.E("Failed to resolve session", tracing.InnerError, err)
		return uuid.Nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	return userID, nil
}

// loadLedger reads the locked ledger and persists a pending monthly reset.
func (x *Accountant) loadLedger(tx repository.LedgerTx, log *tracing.Logger, userID uuid.UUID, now time.Time) (*entities.TokenLedger, bool, error) {
	ledger, err := tx.FindLedger(userID)
	if err != nil {
		return nil, false, err
	}

	month := MonthKey(now, x.config.Location)
	if !ResetIfStale(ledger, month, now) {
		return ledger, false, nil
	}

	if err := tx.SaveLedger(ledger); err != nil {
		return nil, false, err
	}

	x.metrics.RecordMonthlyReset()
	log.I("Ledger rolled over to a new month", tracing.LedgerId, ledger.ID, tracing.ResetMonth, month)

	return ledger, true, nil
}

// ensureLedger is loadLedger that creates a fresh ledger with limit when none exists.
// It reports whether this call created it.
func (x *Accountant) ensureLedger(tx repository.LedgerTx, log *tracing.Logger, userID uuid.UUID, limit int64, now time.Time) (*entities.TokenLedger, bool, error) {
	ledger, _, err := x.loadLedger(tx, log, userID, now)
	if err == nil {
		return ledger, false, nil
	}
	if !errors.Is(err, repository.ErrLedgerNotFound) {
		return nil, false, err
	}

	fresh := &entities.TokenLedger{
		ID:            uuid.New(),
		UserID:        userID,
		MonthlyLimit:  limit,
		LastResetDate: MonthKey(now, x.config.Location),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.CreateLedger(fresh); err != nil {
		return nil, false, err
	}

	// A concurrent creator may have won the insert; re-read whichever row exists.
	ledger, _, err = x.loadLedger(tx, log, userID, now)
	if err != nil {
		return nil, false, err
	}

	created := ledger.ID == fresh.ID
	if created {
		x.metrics.RecordLedgerCreated()
		log.I("Ledger created", tracing.LedgerId, ledger.ID, tracing.MonthlyLimit, limit)
	}

	return ledger, created, nil
}

func validateUsage(input UsageInput) error {
	switch {
	case input.UserID == uuid.Nil:
		return fmt.Errorf("%w: user id is required", ErrInvalidUsage)
	case input.Command == "":
		return fmt.Errorf("%w: command is required", ErrInvalidUsage)
	case input.TokensUsed < 0:
		return fmt.Errorf("%w: tokens used must be non-negative", ErrInvalidUsage)
	case input.InputTokens != nil && *input.InputTokens < 0:
		return fmt.Errorf("%w: input tokens must be non-negative", ErrInvalidUsage)
	case input.OutputTokens != nil && *input.OutputTokens < 0:
		return fmt.Errorf("%w: output tokens must be non-negative", ErrInvalidUsage)
	}
	return nil
}

func validatePurchase(input PurchaseInput) error {
	switch {
	case input.TokensAdded <= 0:
		return fmt.Errorf("%w: tokens added must be positive", ErrInvalidPurchase)
	case input.AmountPaid < 0:
		return fmt.Errorf("%w: amount paid must be non-negative", ErrInvalidPurchase)
	case input.PaymentProvider == "":
		return fmt.Errorf("%w: payment provider is required", ErrInvalidPurchase)
	case input.PaymentID == "":
		return fmt.Errorf("%w: payment id is required", ErrInvalidPurchase)
	}
	return nil
}
