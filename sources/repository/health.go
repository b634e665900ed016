package repository

import (
	"context"
	"time"

	"colabai/sources/platform"
	"colabai/sources/tracing"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewHealthRepository(db *gorm.DB, redis *redis.Client) *HealthRepository {
	return &HealthRepository{
		db:    db,
		redis: redis,
	}
}

func (x *HealthRepository) CheckDatabaseHealth(logger *tracing.Logger) error {
	defer tracing.ProfilePoint(logger, "Health check database completed", "repository.health.check.database")()
	ctx, cancel := platform.ContextTimeoutVal(context.Background(), 1*time.Second)
	defer cancel()

	sqldb, err := x.db.DB()
	if err != nil {
		logger.E("Database health check failed", tracing.InnerError, err)
		return err
	}

	if err := sqldb.PingContext(ctx); err != nil {
		logger.E("Database health check failed", tracing.InnerError, err)
		return err
	}

	logger.D("Database health check passed")
	return nil
}

func (x *HealthRepository) CheckRedisHealth(logger *tracing.Logger) error {
	defer tracing.ProfilePoint(logger, "Health check redis completed", "repository.health.check.redis")()
	ctx, cancel := platform.ContextTimeoutVal(context.Background(), 1*time.Second)
	defer cancel()

	err := x.redis.Ping(ctx).Err()
	if err != nil {
		logger.E("Redis health check failed", tracing.InnerError, err)
		return err
	}

	logger.D("Redis health check passed")
	return nil
}
