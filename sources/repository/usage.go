package repository

import (
	"context"
	"time"

	"colabai/sources/persistence/entities"
	"colabai/sources/platform"
	"colabai/sources/tracing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

type CommandUsage struct {
	Command string `json:"command"`
	Tokens  int64  `json:"tokens"`
	Calls   int64  `json:"calls"`
}

func (x *UsageRepository) GetTotalTokens(logger *tracing.Logger) (int64, error) {
	defer tracing.ProfilePoint(logger, "Usage get total tokens completed", "repository.usage.get.total.tokens")()
	ctx, cancel := platform.ContextTimeoutVal(context.Background(), 20*time.Second)
	defer cancel()

	var totalTokens *int64
	err := x.db.WithContext(ctx).
		Model(&entities.UsageRecord{}).
		Select("SUM(tokens_used)").
		Row().Scan(&totalTokens)

	if err != nil {
		logger.E("Failed to get total tokens", tracing.InnerError, err)
		return 0, err
	}

	if totalTokens == nil {
		return 0, nil
	}

	return *totalTokens, nil
}

func (x *UsageRepository) GetTotalTokensSince(logger *tracing.Logger, since time.Time) (int64, error) {
	defer tracing.ProfilePoint(logger, "Usage get total tokens since completed", "repository.usage.get.total.tokens.since", "since", since)()
	ctx, cancel := platform.ContextTimeoutVal(context.Background(), 20*time.Second)
	defer cancel()

	var totalTokens *int64
	err := x.db.WithContext(ctx).
		Model(&entities.UsageRecord{}).
		Where("recorded_at >= ?", since).
		Select("SUM(tokens_used)").
		Row().Scan(&totalTokens)

	if err != nil {
		logger.E("Failed to get total tokens since", "since", since, tracing.InnerError, err)
		return 0, err
	}

	if totalTokens == nil {
		return 0, nil
	}

	return *totalTokens, nil
}

func (x *UsageRepository) GetTotalCostSince(logger *tracing.Logger, since time.Time) (int64, error) {
	defer tracing.ProfilePoint(logger, "Usage get total cost since completed", "repository.usage.get.total.cost.since", "since", since)()
	ctx, cancel := platform.ContextTimeoutVal(context.Background(), 20*time.Second)
	defer cancel()

	var totalCost *int64
	err := x.db.WithContext(ctx).
		Model(&entities.UsageRecord{}).
		Where("recorded_at >= ?", since).
		Select("SUM(cost)").
		Row().Scan(&totalCost)

	if err != nil {
		logger.E("Failed to get total cost since", "since", since, tracing.InnerError, err)
		return 0, err
	}

	if totalCost == nil {
		return 0, nil
	}

	return *totalCost, nil
}

func (x *UsageRepository) GetActiveUsersCount(logger *tracing.Logger, since time.Time) (int64, error) {
	defer tracing.ProfilePoint(logger, "Usage get active users count completed", "repository.usage.get.active.users.count")()
	ctx, cancel := platform.ContextTimeoutVal(context.Background(), 20*time.Second)
	defer cancel()

	var count int64
	err := x.db.WithContext(ctx).
		Model(&entities.UsageRecord{}).
		Where("recorded_at >= ?", since).
		Distinct("user_id").
		Count(&count).Error

	if err != nil {
		logger.E("Failed to get active users count", tracing.InnerError, err)
		return 0, err
	}

	return count, nil
}

func (x *UsageRepository) GetUserUsageByCommand(logger *tracing.Logger, userID uuid.UUID, since time.Time) ([]CommandUsage, error) {
	defer tracing.ProfilePoint(logger, "Usage get user usage by command completed", "repository.usage.get.user.usage.by.command", tracing.UserId, userID)()
	ctx, cancel := platform.ContextTimeoutVal(context.Background(), 20*time.Second)
	defer cancel()

	var result []CommandUsage
	err := x.db.WithContext(ctx).
		Model(&entities.UsageRecord{}).
		Select("command, SUM(tokens_used) AS tokens, COUNT(*) AS calls").
		Where("user_id = ?", userID).
		Where("recorded_at >= ?", since).
		Group("command").
		Order("tokens desc").
		Scan(&result).Error

	if err != nil {
		logger.E("Failed to get user usage by command", tracing.InnerError, err)
		return nil, err
	}

	return result, nil
}
