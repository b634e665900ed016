package repository

import (
	"context"
	"errors"
	"time"

	"colabai/sources/persistence/entities"
	"colabai/sources/platform"
	"colabai/sources/tracing"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrLedgerNotFound = errors.New("ledger not found")
)

// LedgerTx is the set of reads and writes available inside one ledger transaction.
// FindLedger locks the returned row until the transaction ends.
type LedgerTx interface {
	FindLedger(userID uuid.UUID) (*entities.TokenLedger, error)
	CreateLedger(ledger *entities.TokenLedger) error
	SaveLedger(ledger *entities.TokenLedger) error
	AppendUsage(record *entities.UsageRecord) error
	AppendPurchase(record *entities.PurchaseRecord) error
	CountPurchasesByPaymentID(userID uuid.UUID, paymentID string) (int64, error)
	RecentUsage(userID uuid.UUID, limit int) ([]*entities.UsageRecord, error)
	PurchasesSince(userID uuid.UUID, since time.Time) ([]*entities.PurchaseRecord, error)
}

// Ledgers runs fn atomically: every write made through tx is committed together or not at all.
type Ledgers interface {
	Atomically(ctx context.Context, log *tracing.Logger, fn func(tx LedgerTx) error) error
}

type LedgersRepository struct {
	db *gorm.DB
}

func NewLedgersRepository(db *gorm.DB) *LedgersRepository {
	return &LedgersRepository{db: db}
}

func (x *LedgersRepository) Atomically(ctx context.Context, log *tracing.Logger, fn func(tx LedgerTx) error) error {
	defer tracing.ProfilePoint(log, "Ledgers transaction completed", "repository.ledgers.atomically")()
	ctx, cancel := platform.ContextTimeoutVal(ctx, 20*time.Second)
	defer cancel()

	return x.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerTx{db: tx, log: log})
	})
}

func (x *LedgersRepository) GetLedgersCount(logger *tracing.Logger) (int64, error) {
	defer tracing.ProfilePoint(logger, "Ledgers get count completed", "repository.ledgers.get.count")()
	ctx, cancel := platform.ContextTimeoutVal(context.Background(), 20*time.Second)
	defer cancel()

	var count int64
	err := x.db.WithContext(ctx).Model(&entities.TokenLedger{}).Count(&count).Error
	if err != nil {
		logger.E("Failed to get ledgers count", tracing.InnerError, err)
		return 0, err
	}

	return count, nil
}

func (x *LedgersRepository) GetExhaustedLedgersCount(logger *tracing.Logger, month string) (int64, error) {
	defer tracing.ProfilePoint(logger, "Ledgers get exhausted count completed", "repository.ledgers.get.exhausted.count", "month", month)()
	ctx, cancel := platform.ContextTimeoutVal(context.Background(), 20*time.Second)
	defer cancel()

	var count int64
	err := x.db.WithContext(ctx).
		Model(&entities.TokenLedger{}).
		Where("last_reset_date = ?", month).
		Where("monthly_tokens_used >= monthly_limit + purchased_tokens").
		Count(&count).Error

	if err != nil {
		logger.E("Failed to get exhausted ledgers count", tracing.InnerError, err)
		return 0, err
	}

	return count, nil
}

type ledgerTx struct {
	db  *gorm.DB
	log *tracing.Logger
}

func (x *ledgerTx) FindLedger(userID uuid.UUID) (*entities.TokenLedger, error) {
	var ledger entities.TokenLedger

	err := x.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&ledger).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLedgerNotFound
		}
		x.log.E("Failed to get ledger", tracing.InnerError, err)
		return nil, err
	}

	return &ledger, nil
}

// CreateLedger inserts ledger unless one already exists for the same user.
func (x *ledgerTx) CreateLedger(ledger *entities.TokenLedger) error {
	err := x.db.
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(ledger).Error

	if err != nil {
		x.log.E("Failed to create ledger", tracing.InnerError, err)
		return err
	}

	return nil
}

func (x *ledgerTx) SaveLedger(ledger *entities.TokenLedger) error {
	if err := x.db.Save(ledger).Error; err != nil {
		x.log.E("Failed to save ledger", tracing.InnerError, err)
		return err
	}

	return nil
}

func (x *ledgerTx) AppendUsage(record *entities.UsageRecord) error {
	if err := x.db.Create(record).Error; err != nil {
		x.log.E("Failed to append usage record", tracing.InnerError, err)
		return err
	}

	return nil
}

func (x *ledgerTx) AppendPurchase(record *entities.PurchaseRecord) error {
	if err := x.db.Create(record).Error; err != nil {
		x.log.E("Failed to append purchase record", tracing.InnerError, err)
		return err
	}

	return nil
}

func (x *ledgerTx) CountPurchasesByPaymentID(userID uuid.UUID, paymentID string) (int64, error) {
	var count int64

	err := x.db.
		Model(&entities.PurchaseRecord{}).
		Where("user_id = ? AND payment_id = ?", userID, paymentID).
		Count(&count).Error

	if err != nil {
		x.log.E("Failed to count purchases by payment id", tracing.InnerError, err)
		return 0, err
	}

	return count, nil
}

func (x *ledgerTx) RecentUsage(userID uuid.UUID, limit int) ([]*entities.UsageRecord, error) {
	var records []*entities.UsageRecord

	err := x.db.
		Where("user_id = ?", userID).
		Order("recorded_at desc").
		Limit(limit).
		Find(&records).Error

	if err != nil {
		x.log.E("Failed to get recent usage", tracing.InnerError, err)
		return nil, err
	}

	return records, nil
}

func (x *ledgerTx) PurchasesSince(userID uuid.UUID, since time.Time) ([]*entities.PurchaseRecord, error) {
	var records []*entities.PurchaseRecord

	err := x.db.
		Where("user_id = ?", userID).
		Where("purchased_at >= ?", since).
		Order("purchased_at desc").
		Find(&records).Error

	if err != nil {
		x.log.E("Failed to get purchases since", "since", since, tracing.InnerError, err)
		return nil, err
	}

	return records, nil
}
