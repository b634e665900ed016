package tokens

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"colabai/sources/configuration"
	"colabai/sources/metrics"
	"colabai/sources/persistence/entities"
	"colabai/sources/repository"
	"colabai/sources/texting/tokenizer"
	"colabai/sources/tracing"

	"github.com/google/uuid"
)

var errInjected = errors.New("injected failure")

// memoryLedgers runs each transaction on a copy of the state and keeps it only on success.
type memoryLedgers struct {
	mu        sync.Mutex
	ledgers   map[uuid.UUID]entities.TokenLedger
	usage     []entities.UsageRecord
	purchases []entities.PurchaseRecord

	failAppendUsage bool
}

func newMemoryLedgers() *memoryLedgers {
	return &memoryLedgers{ledgers: map[uuid.UUID]entities.TokenLedger{}}
}

func (x *memoryLedgers) Atomically(_ context.Context, _ *tracing.Logger, fn func(tx repository.LedgerTx) error) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	tx := &memoryTx{
		ledgers:   make(map[uuid.UUID]entities.TokenLedger, len(x.ledgers)),
		usage:     append([]entities.UsageRecord(nil), x.usage...),
		purchases: append([]entities.PurchaseRecord(nil), x.purchases...),
		failUsage: x.failAppendUsage,
	}
	for k, v := range x.ledgers {
		tx.ledgers[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}

	x.ledgers, x.usage, x.purchases = tx.ledgers, tx.usage, tx.purchases
	return nil
}

func (x *memoryLedgers) put(ledger entities.TokenLedger) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ledgers[ledger.UserID] = ledger
}

func (x *memoryLedgers) putPurchase(record entities.PurchaseRecord) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.purchases = append(x.purchases, record)
}

func (x *memoryLedgers) get(userID uuid.UUID) (entities.TokenLedger, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	ledger, ok := x.ledgers[userID]
	return ledger, ok
}

func (x *memoryLedgers) count() (ledgers, usage, purchases int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.ledgers), len(x.usage), len(x.purchases)
}

type memoryTx struct {
	ledgers   map[uuid.UUID]entities.TokenLedger
	usage     []entities.UsageRecord
	purchases []entities.PurchaseRecord
	failUsage bool
}

func (x *memoryTx) FindLedger(userID uuid.UUID) (*entities.TokenLedger, error) {
	ledger, ok := x.ledgers[userID]
	if !ok {
		return nil, repository.ErrLedgerNotFound
	}
	return &ledger, nil
}

func (x *memoryTx) CreateLedger(ledger *entities.TokenLedger) error {
	if _, ok := x.ledgers[ledger.UserID]; ok {
		return nil
	}
	if ledger.ID == uuid.Nil {
		ledger.ID = uuid.New()
	}
	x.ledgers[ledger.UserID] = *ledger
	return nil
}

func (x *memoryTx) SaveLedger(ledger *entities.TokenLedger) error {
	x.ledgers[ledger.UserID] = *ledger
	return nil
}

func (x *memoryTx) AppendUsage(record *entities.UsageRecord) error {
	if x.failUsage {
		return errInjected
	}
	x.usage = append(x.usage, *record)
	return nil
}

func (x *memoryTx) AppendPurchase(record *entities.PurchaseRecord) error {
	x.purchases = append(x.purchases, *record)
	return nil
}

func (x *memoryTx) CountPurchasesByPaymentID(userID uuid.UUID, paymentID string) (int64, error) {
	var count int64
	for _, p := range x.purchases {
		if p.UserID == userID && p.PaymentID == paymentID {
			count++
		}
	}
	return count, nil
}

func (x *memoryTx) RecentUsage(userID uuid.UUID, limit int) ([]*entities.UsageRecord, error) {
	var records []*entities.UsageRecord
	for i := range x.usage {
		if x.usage[i].UserID == userID {
			record := x.usage[i]
			records = append(records, &record)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (x *memoryTx) PurchasesSince(userID uuid.UUID, since time.Time) ([]*entities.PurchaseRecord, error) {
	var records []*entities.PurchaseRecord
	for i := range x.purchases {
		if x.purchases[i].UserID == userID && !x.purchases[i].Timestamp.Before(since) {
			record := x.purchases[i]
			records = append(records, &record)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

var errSessionStore = errors.New("session store unavailable")

type fakeSessions map[string]uuid.UUID

func (x fakeSessions) ResolveUser(_ context.Context, _ *tracing.Logger, token string) (uuid.UUID, error) {
	if token == "broken" {
		return uuid.Nil, errSessionStore
	}
	userID, ok := x[token]
	if !ok {
		return uuid.Nil, repository.ErrSessionNotFound
	}
	return userID, nil
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type fixture struct {
	accountant *Accountant
	store      *memoryLedgers
	clock      *fakeClock
	sessions   fakeSessions
}

func testTokensConfig() configuration.TokensConfig {
	return configuration.TokensConfig{
		DefaultMonthlyLimit: 100000,
		TimeZone:            "UTC",
		InputRate:           "0.14",
		OutputRate:          "0.28",
		RecentUsageLimit:    10,
		Encoding:            "o200k_base",
		Packages: []configuration.TokenPackageConfig{
			{ID: "small", Name: "Small", Tokens: 50000, Price: 249},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	config, err := NewConfig(&configuration.Config{Tokens: testTokensConfig()})
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}

	log := tracing.NewDiscardLogger()
	store := newMemoryLedgers()
	sessions := fakeSessions{}
	clock := &fakeClock{t: time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)}

	accountant := NewAccountant(store, sessions, tokenizer.New(config.Encoding, log), metrics.NewMetricsService(log), config, log)
	accountant.now = clock.now

	return &fixture{accountant: accountant, store: store, clock: clock, sessions: sessions}
}

func ptr[T any](v T) *T {
	return &v
}
