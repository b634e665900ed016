package repository

import (
	"context"
	"time"

	"colabai/sources/persistence/entities"
	"colabai/sources/platform"
	"colabai/sources/tracing"

	"gorm.io/gorm"
)

type PurchasesRepository struct {
	db *gorm.DB
}

func NewPurchasesRepository(db *gorm.DB) *PurchasesRepository {
	return &PurchasesRepository{db: db}
}

func (x *PurchasesRepository) GetTotalPurchasedTokens(logger *tracing.Logger) (int64, error) {
	defer tracing.ProfilePoint(logger, "Purchases get total tokens completed", "repository.purchases.get.total.tokens")()
	ctx, cancel := platform.ContextTimeoutVal(context.Background(), 20*time.Second)
	defer cancel()

	var totalTokens *int64
	err := x.db.WithContext(ctx).
		Model(&entities.PurchaseRecord{}).
		Select("SUM(tokens_added)").
		Row().Scan(&totalTokens)

	if err != nil {
		logger.E("Failed to get total purchased tokens", tracing.InnerError, err)
		return 0, err
	}

	if totalTokens == nil {
		return 0, nil
	}

	return *totalTokens, nil
}

func (x *PurchasesRepository) GetRevenueSince(logger *tracing.Logger, since time.Time) (int64, error) {
	defer tracing.ProfilePoint(logger, "Purchases get revenue since completed", "repository.purchases.get.revenue.since", "since", since)()
	ctx, cancel := platform.ContextTimeoutVal(context.Background(), 20*time.Second)
	defer cancel()

	var revenue *int64
	err := x.db.WithContext(ctx).
		Model(&entities.PurchaseRecord{}).
		Where("purchased_at >= ?", since).
		Select("SUM(amount_paid)").
		Row().Scan(&revenue)

	if err != nil {
		logger.E("Failed to get revenue since", "since", since, tracing.InnerError, err)
		return 0, err
	}

	if revenue == nil {
		return 0, nil
	}

	return *revenue, nil
}
