package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"colabai/sources/persistence/entities"

	"github.com/google/uuid"
)

func TestInitializeLedgerIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := f.accountant.InitializeLedger(ctx, userID, ptr[int64](500))
	if err != nil {
		t.Fatalf("InitializeLedger() error = %v", err)
	}

	second, err := f.accountant.InitializeLedger(ctx, userID, ptr[int64](9000))
	if err != nil {
		t.Fatalf("InitializeLedger() second call error = %v", err)
	}

	if first != second {
		t.Errorf("InitializeLedger() ids differ: %v and %v", first, second)
	}

	ledger, ok := f.store.get(userID)
	if !ok {
		t.Fatal("ledger was not stored")
	}
	if ledger.MonthlyLimit != 500 {
		t.Errorf("MonthlyLimit = %d, want 500", ledger.MonthlyLimit)
	}
	if ledger.LastResetDate != "2024-06" {
		t.Errorf("LastResetDate = %q, want 2024-06", ledger.LastResetDate)
	}
	if ledger.TotalTokensUsed != 0 || ledger.MonthlyTokensUsed != 0 || ledger.PurchasedTokens != 0 {
		t.Errorf("fresh ledger has non-zero counters: %+v", ledger)
	}

	if ledgers, _, _ := f.store.count(); ledgers != 1 {
		t.Errorf("ledger count = %d, want 1", ledgers)
	}
}

func TestInitializeLedgerDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID := uuid.New()
	if _, err := f.accountant.InitializeLedger(ctx, userID, nil); err != nil {
		t.Fatalf("InitializeLedger() error = %v", err)
	}
	if ledger, _ := f.store.get(userID); ledger.MonthlyLimit != 100000 {
		t.Errorf("MonthlyLimit = %d, want default 100000", ledger.MonthlyLimit)
	}

	if _, err := f.accountant.InitializeLedger(ctx, uuid.New(), ptr[int64](-1)); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("InitializeLedger(-1) error = %v, want ErrInvalidLimit", err)
	}
}

func TestCheckLimitWithoutLedger(t *testing.T) {
	f := newFixture(t)

	status, err := f.accountant.CheckLimit(context.Background(), uuid.New(), 10)
	if err != nil {
		t.Fatalf("CheckLimit() error = %v", err)
	}

	if status.HasTokens {
		t.Error("HasTokens = true for uninitialized user")
	}
	if status.Reason != ReasonNotInitialized {
		t.Errorf("Reason = %q, want %q", status.Reason, ReasonNotInitialized)
	}
	if ledgers, _, _ := f.store.count(); ledgers != 0 {
		t.Errorf("CheckLimit created %d ledgers", ledgers)
	}
}

func TestNewUserFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := f.accountant.InitializeLedger(ctx, userID, nil); err != nil {
		t.Fatalf("InitializeLedger() error = %v", err)
	}

	status, err := f.accountant.CheckLimit(ctx, userID, 1000)
	if err != nil {
		t.Fatalf("CheckLimit() error = %v", err)
	}
	if !status.HasTokens || status.AvailableTokens != 100000 {
		t.Errorf("CheckLimit() = %+v, want allowed with 100000 available", status)
	}

	outcome, err := f.accountant.RecordUsage(ctx, UsageInput{
		UserID:       userID,
		ChatID:       uuid.New(),
		Command:      "summarize",
		TokensUsed:   1500,
		InputTokens:  ptr[int64](1000),
		OutputTokens: ptr[int64](500),
	})
	if err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}

	want := UsageOutcome{TotalUsed: 1500, MonthlyUsed: 1500, RemainingTokens: 98500}
	if *outcome != want {
		t.Errorf("RecordUsage() = %+v, want %+v", *outcome, want)
	}

	status, err = f.accountant.CheckLimit(ctx, userID, 98500)
	if err != nil {
		t.Fatalf("CheckLimit() error = %v", err)
	}
	if status.HasTokens {
		t.Error("HasTokens = true when estimate equals available")
	}
	if status.Reason != ReasonLimitExceeded {
		t.Errorf("Reason = %q, want %q", status.Reason, ReasonLimitExceeded)
	}

	status, err = f.accountant.CheckLimit(ctx, userID, 98499)
	if err != nil {
		t.Fatalf("CheckLimit() error = %v", err)
	}
	if !status.HasTokens || status.Reason != "" {
		t.Errorf("CheckLimit(98499) = %+v, want allowed", status)
	}
}

func TestRecordUsageCreatesLedgerLazily(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	outcome, err := f.accountant.RecordUsage(context.Background(), UsageInput{
		UserID:     userID,
		ChatID:     uuid.New(),
		Command:    "ask",
		TokensUsed: 200,
	})
	if err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}

	if outcome.RemainingTokens != 99800 {
		t.Errorf("RemainingTokens = %d, want 99800", outcome.RemainingTokens)
	}

	ledger, ok := f.store.get(userID)
	if !ok {
		t.Fatal("ledger was not created")
	}
	if ledger.MonthlyLimit != 100000 || ledger.LastResetDate != "2024-06" {
		t.Errorf("lazily created ledger = %+v", ledger)
	}
}

func TestRecordUsageStoresCostOnlyWithBothCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	inputs := []UsageInput{
		{UserID: userID, Command: "ask", TokensUsed: 15000, InputTokens: ptr[int64](10000), OutputTokens: ptr[int64](5000)},
		{UserID: userID, Command: "ask", TokensUsed: 700, InputTokens: ptr[int64](700)},
	}
	for _, input := range inputs {
		if _, err := f.accountant.RecordUsage(ctx, input); err != nil {
			t.Fatalf("RecordUsage() error = %v", err)
		}
		f.clock.advance(time.Second)
	}

	stats, err := f.accountant.GetStatsForUser(ctx, userID, 0)
	if err != nil {
		t.Fatalf("GetStatsForUser() error = %v", err)
	}
	if len(stats.RecentUsage) != 2 {
		t.Fatalf("RecentUsage length = %d, want 2", len(stats.RecentUsage))
	}

	if stats.RecentUsage[0].Cost != nil {
		t.Errorf("Cost = %d, want nil without output tokens", *stats.RecentUsage[0].Cost)
	}
	if cost := stats.RecentUsage[1].Cost; cost == nil || *cost != 3 {
		t.Errorf("Cost = %v, want 3", cost)
	}
}

func TestRecordUsageValidation(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	tests := []struct {
		name  string
		input UsageInput
	}{
		{"missing user", UsageInput{Command: "ask", TokensUsed: 1}},
		{"missing command", UsageInput{UserID: userID, TokensUsed: 1}},
		{"negative tokens", UsageInput{UserID: userID, Command: "ask", TokensUsed: -1}},
		{"negative input tokens", UsageInput{UserID: userID, Command: "ask", InputTokens: ptr[int64](-5)}},
		{"negative output tokens", UsageInput{UserID: userID, Command: "ask", OutputTokens: ptr[int64](-5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.accountant.RecordUsage(context.Background(), tt.input); !errors.Is(err, ErrInvalidUsage) {
				t.Errorf("RecordUsage() error = %v, want ErrInvalidUsage", err)
			}
		})
	}

	if _, err := f.accountant.CheckLimit(context.Background(), userID, -1); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("CheckLimit(-1) error = %v, want ErrInvalidUsage", err)
	}

	if ledgers, usage, _ := f.store.count(); ledgers != 0 || usage != 0 {
		t.Errorf("invalid input was persisted: %d ledgers, %d usage records", ledgers, usage)
	}
}

func TestRecordUsageFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.store.failAppendUsage = true

	_, err := f.accountant.RecordUsage(context.Background(), UsageInput{
		UserID:     uuid.New(),
		Command:    "ask",
		TokensUsed: 100,
	})
	if !errors.Is(err, errInjected) {
		t.Fatalf("RecordUsage() error = %v, want injected failure", err)
	}

	if ledgers, usage, _ := f.store.count(); ledgers != 0 || usage != 0 {
		t.Errorf("failed usage left %d ledgers and %d usage records", ledgers, usage)
	}
}

func TestMonthlyResetIsPersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.store.put(entities.TokenLedger{
		ID:                uuid.New(),
		UserID:            userID,
		TotalTokensUsed:   90000,
		MonthlyTokensUsed: 90000,
		MonthlyLimit:      100000,
		LastResetDate:     "2024-05",
	})

	status, err := f.accountant.CheckLimit(ctx, userID, 10)
	if err != nil {
		t.Fatalf("CheckLimit() error = %v", err)
	}
	if !status.NeedsReset || status.MonthlyUsed != 0 || status.AvailableTokens != 100000 || status.TotalUsed != 90000 {
		t.Errorf("CheckLimit() after month change = %+v", status)
	}

	ledger, _ := f.store.get(userID)
	if ledger.LastResetDate != "2024-06" || ledger.MonthlyTokensUsed != 0 {
		t.Errorf("reset was not persisted: %+v", ledger)
	}

	status, err = f.accountant.CheckLimit(ctx, userID, 10)
	if err != nil {
		t.Fatalf("CheckLimit() error = %v", err)
	}
	if status.NeedsReset {
		t.Error("NeedsReset = true on the second check of the month")
	}
}

func TestRecordUsageAcrossMonthBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.store.put(entities.TokenLedger{
		ID:                uuid.New(),
		UserID:            userID,
		TotalTokensUsed:   90000,
		MonthlyTokensUsed: 90000,
		MonthlyLimit:      100000,
		PurchasedTokens:   2000,
		LastResetDate:     "2024-05",
	})

	outcome, err := f.accountant.RecordUsage(ctx, UsageInput{UserID: userID, Command: "ask", TokensUsed: 100})
	if err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}

	want := UsageOutcome{TotalUsed: 90100, MonthlyUsed: 100, RemainingTokens: 101900}
	if *outcome != want {
		t.Errorf("RecordUsage() = %+v, want %+v", *outcome, want)
	}
}

func TestRecordPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	f.sessions["session-1"] = userID

	if _, err := f.accountant.InitializeLedger(ctx, userID, nil); err != nil {
		t.Fatalf("InitializeLedger() error = %v", err)
	}

	outcome, err := f.accountant.RecordPurchase(ctx, "session-1", PurchaseInput{
		TokensAdded:     50000,
		AmountPaid:      249,
		PaymentProvider: entities.PaymentProviderDemo,
		PaymentID:       "pay-1",
	})
	if err != nil {
		t.Fatalf("RecordPurchase() error = %v", err)
	}

	want := PurchaseOutcome{NewBalance: 50000, TotalAvailable: 150000}
	if *outcome != want {
		t.Errorf("RecordPurchase() = %+v, want %+v", *outcome, want)
	}

	status, err := f.accountant.CheckLimit(ctx, userID, 120000)
	if err != nil {
		t.Fatalf("CheckLimit() error = %v", err)
	}
	if !status.HasTokens || status.PurchasedTokens != 50000 {
		t.Errorf("CheckLimit() after purchase = %+v", status)
	}
}

func TestRecordPurchaseDuplicatePaymentIsCredited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	f.sessions["session-1"] = userID

	input := PurchaseInput{TokensAdded: 1000, AmountPaid: 10, PaymentProvider: "demo", PaymentID: "pay-dup"}
	for range 2 {
		if _, err := f.accountant.RecordPurchase(ctx, "session-1", input); err != nil {
			t.Fatalf("RecordPurchase() error = %v", err)
		}
	}

	ledger, _ := f.store.get(userID)
	if ledger.PurchasedTokens != 2000 {
		t.Errorf("PurchasedTokens = %d, want 2000", ledger.PurchasedTokens)
	}
	if _, _, purchases := f.store.count(); purchases != 2 {
		t.Errorf("purchase records = %d, want 2", purchases)
	}
}

func TestRecordPurchaseAuthentication(t *testing.T) {
	f := newFixture(t)
	input := PurchaseInput{TokensAdded: 1000, AmountPaid: 10, PaymentProvider: "demo", PaymentID: "pay-1"}

	for _, session := range []string{"", "unknown"} {
		_, err := f.accountant.RecordPurchase(context.Background(), session, input)
		if !IsAuthenticationError(err) {
			t.Errorf("RecordPurchase(%q) error = %v, want authentication error", session, err)
		}
	}

	_, err := f.accountant.RecordPurchase(context.Background(), "broken", input)
	if IsAuthenticationError(err) || !errors.Is(err, errSessionStore) {
		t.Errorf("RecordPurchase(broken) error = %v, want session store failure", err)
	}

	if ledgers, _, purchases := f.store.count(); ledgers != 0 || purchases != 0 {
		t.Errorf("unauthenticated purchase persisted %d ledgers and %d purchases", ledgers, purchases)
	}
}

func TestRecordPurchaseValidation(t *testing.T) {
	f := newFixture(t)
	f.sessions["session-1"] = uuid.New()

	tests := []struct {
		name  string
		input PurchaseInput
	}{
		{"zero tokens", PurchaseInput{TokensAdded: 0, AmountPaid: 10, PaymentProvider: "demo", PaymentID: "p"}},
		{"negative amount", PurchaseInput{TokensAdded: 10, AmountPaid: -1, PaymentProvider: "demo", PaymentID: "p"}},
		{"missing provider", PurchaseInput{TokensAdded: 10, AmountPaid: 1, PaymentID: "p"}},
		{"missing payment id", PurchaseInput{TokensAdded: 10, AmountPaid: 1, PaymentProvider: "demo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.accountant.RecordPurchase(context.Background(), "session-1", tt.input); !errors.Is(err, ErrInvalidPurchase) {
				t.Errorf("RecordPurchase() error = %v, want ErrInvalidPurchase", err)
			}
		})
	}
}

func TestGetStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	f.sessions["session-1"] = userID

	stats, err := f.accountant.GetStats(ctx, "session-1", 0)
	if err != nil || stats != nil {
		t.Fatalf("GetStats() without ledger = %+v, %v, want nil, nil", stats, err)
	}

	if _, err := f.accountant.GetStats(ctx, "unknown", 0); !IsAuthenticationError(err) {
		t.Errorf("GetStats(unknown) error = %v, want authentication error", err)
	}

	for i := 1; i <= 12; i++ {
		f.clock.advance(time.Minute)
		if _, err := f.accountant.RecordUsage(ctx, UsageInput{UserID: userID, Command: "ask", TokensUsed: int64(i)}); err != nil {
			t.Fatalf("RecordUsage() error = %v", err)
		}
	}

	f.store.putPurchase(entities.PurchaseRecord{
		ID:          uuid.New(),
		UserID:      userID,
		TokensAdded: 999,
		PaymentID:   "last-month",
		Timestamp:   time.Date(2024, time.May, 20, 0, 0, 0, 0, time.UTC),
	})
	if _, err := f.accountant.RecordPurchase(ctx, "session-1", PurchaseInput{
		TokensAdded: 5000, AmountPaid: 50, PaymentProvider: "demo", PaymentID: "this-month",
	}); err != nil {
		t.Fatalf("RecordPurchase() error = %v", err)
	}

	stats, err = f.accountant.GetStats(ctx, "session-1", 0)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}

	if stats.TotalTokensUsed != 78 || stats.MonthlyTokensUsed != 78 {
		t.Errorf("usage totals = %d/%d, want 78/78", stats.TotalTokensUsed, stats.MonthlyTokensUsed)
	}
	if stats.AvailableTokens != 100000+5000-78 {
		t.Errorf("AvailableTokens = %d, want %d", stats.AvailableTokens, 100000+5000-78)
	}
	if len(stats.RecentUsage) != 10 {
		t.Fatalf("RecentUsage length = %d, want 10", len(stats.RecentUsage))
	}
	if stats.RecentUsage[0].TokensUsed != 12 || stats.RecentUsage[9].TokensUsed != 3 {
		t.Errorf("RecentUsage not newest first: first %d, last %d", stats.RecentUsage[0].TokensUsed, stats.RecentUsage[9].TokensUsed)
	}
	if len(stats.MonthlyPurchases) != 1 || stats.MonthlyPurchases[0].PaymentID != "this-month" {
		t.Errorf("MonthlyPurchases = %+v, want only this month's purchase", stats.MonthlyPurchases)
	}

	stats, err = f.accountant.GetStatsForUser(ctx, userID, 3)
	if err != nil {
		t.Fatalf("GetStatsForUser() error = %v", err)
	}
	if len(stats.RecentUsage) != 3 {
		t.Errorf("RecentUsage length = %d, want 3", len(stats.RecentUsage))
	}
}

func TestAvailabilityInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	f.sessions["session-1"] = userID

	steps := []func() error{
		func() error { _, err := f.accountant.InitializeLedger(ctx, userID, ptr[int64](1000)); return err },
		func() error {
			_, err := f.accountant.RecordUsage(ctx, UsageInput{UserID: userID, Command: "ask", TokensUsed: 800})
			return err
		},
		func() error {
			_, err := f.accountant.RecordUsage(ctx, UsageInput{UserID: userID, Command: "ask", TokensUsed: 700})
			return err
		},
		func() error {
			_, err := f.accountant.RecordPurchase(ctx, "session-1", PurchaseInput{TokensAdded: 400, PaymentProvider: "demo", PaymentID: "p1"})
			return err
		},
		func() error { f.clock.advance(31 * 24 * time.Hour); _, err := f.accountant.CheckLimit(ctx, userID, 0); return err },
		func() error {
			_, err := f.accountant.RecordUsage(ctx, UsageInput{UserID: userID, Command: "ask", TokensUsed: 50})
			return err
		},
	}

	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d error = %v", i, err)
		}

		ledger, _ := f.store.get(userID)
		status, err := f.accountant.CheckLimit(ctx, userID, 0)
		if err != nil {
			t.Fatalf("step %d CheckLimit() error = %v", i, err)
		}

		want := ledger.MonthlyLimit + ledger.PurchasedTokens - ledger.MonthlyTokensUsed
		if status.AvailableTokens != want {
			t.Errorf("step %d AvailableTokens = %d, want %d", i, status.AvailableTokens, want)
		}
		if ledger.TotalTokensUsed < ledger.MonthlyTokensUsed {
			t.Errorf("step %d total %d below monthly %d", i, ledger.TotalTokensUsed, ledger.MonthlyTokensUsed)
		}
	}

	ledger, _ := f.store.get(userID)
	if ledger.TotalTokensUsed != 1550 || ledger.MonthlyTokensUsed != 50 || ledger.LastResetDate != "2024-07" {
		t.Errorf("final ledger = %+v", ledger)
	}
}

func TestSetMonthlyLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := f.accountant.SetMonthlyLimit(ctx, userID, 10); !errors.Is(err, ErrLedgerNotInitialized) {
		t.Errorf("SetMonthlyLimit() without ledger error = %v, want ErrLedgerNotInitialized", err)
	}

	if _, err := f.accountant.InitializeLedger(ctx, userID, nil); err != nil {
		t.Fatalf("InitializeLedger() error = %v", err)
	}

	if _, err := f.accountant.SetMonthlyLimit(ctx, userID, -5); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("SetMonthlyLimit(-5) error = %v, want ErrInvalidLimit", err)
	}

	ledger, err := f.accountant.SetMonthlyLimit(ctx, userID, 5000)
	if err != nil {
		t.Fatalf("SetMonthlyLimit() error = %v", err)
	}
	if ledger.MonthlyLimit != 5000 {
		t.Errorf("MonthlyLimit = %d, want 5000", ledger.MonthlyLimit)
	}

	status, err := f.accountant.CheckLimit(ctx, userID, 0)
	if err != nil {
		t.Fatalf("CheckLimit() error = %v", err)
	}
	if status.AvailableTokens != 5000 {
		t.Errorf("AvailableTokens = %d, want 5000", status.AvailableTokens)
	}
}

func TestPackagesAndEmptyEstimate(t *testing.T) {
	f := newFixture(t)

	packages := f.accountant.Packages()
	if len(packages) != 1 || packages[0].ID != "small" || packages[0].Tokens != 50000 {
		t.Errorf("Packages() = %+v", packages)
	}

	count, err := f.accountant.EstimateTokens("")
	if err != nil || count != 0 {
		t.Errorf("EstimateTokens(\"\") = %d, %v, want 0, nil", count, err)
	}
}

func TestUsagePastAllowanceIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := f.accountant.InitializeLedger(ctx, userID, nil); err != nil {
		t.Fatalf("InitializeLedger() error = %v", err)
	}

	status, err := f.accountant.CheckLimit(ctx, userID, 5000)
	if err != nil {
		t.Fatalf("CheckLimit() error = %v", err)
	}
	if !status.HasTokens || status.AvailableTokens != 100000 {
		t.Errorf("CheckLimit(5000) = %+v, want allowed with 100000 available", status)
	}

	outcome, err := f.accountant.RecordUsage(ctx, UsageInput{UserID: userID, Command: "ask", TokensUsed: 100001})
	if err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}
	if outcome.RemainingTokens != -1 {
		t.Errorf("RemainingTokens = %d, want -1", outcome.RemainingTokens)
	}

	status, err = f.accountant.CheckLimit(ctx, userID, 0)
	if err != nil {
		t.Fatalf("CheckLimit() error = %v", err)
	}
	if status.HasTokens || status.Reason != ReasonLimitExceeded {
		t.Errorf("CheckLimit() after overuse = %+v, want %q", status, ReasonLimitExceeded)
	}
}
