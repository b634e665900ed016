package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"colabai/sources/persistence/entities"
	"colabai/sources/platform"
	"colabai/sources/tracing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// SessionsRepository resolves session tokens issued by the auth service to user ids.
// Resolutions are cached in Redis for at most CacheTTL and never past the session expiry.
type SessionsRepository struct {
	db     *gorm.DB
	redis  *redis.Client
	config *SessionsConfig
	now    func() time.Time
}

func NewSessionsRepository(db *gorm.DB, redis *redis.Client, config *SessionsConfig) *SessionsRepository {
	return &SessionsRepository{db: db, redis: redis, config: config, now: time.Now}
}

func (x *SessionsRepository) ResolveUser(ctx context.Context, logger *tracing.Logger, token string) (uuid.UUID, error) {
	defer tracing.ProfilePoint(logger, "Sessions resolve user completed", "repository.sessions.resolve.user")()
	ctx, cancel := platform.ContextTimeoutVal(ctx, 5*time.Second)
	defer cancel()

	if token == "" {
		return uuid.Nil, ErrSessionNotFound
	}

	key := x.cacheKey(token)

	cached, err := x.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		if userID, perr := uuid.Parse(cached); perr == nil {
			return userID, nil
		}
		logger.W("Discarding malformed cached session", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		logger.W("Session cache unavailable, falling back to database", tracing.InnerError, err)
	}

	now := x.now()

	var session entities.Session
	err = x.db.WithContext(ctx).
		Where("token = ?", token).
		Where("expires_at > ?", now).
		First(&session).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.W("Session not found or expired")
			return uuid.Nil, ErrSessionNotFound
		}
		logger.E("Failed to get session", tracing.InnerError, err)
		return uuid.Nil, err
	}

	ttl := min(x.config.CacheTTL, session.ExpiresAt.Sub(now))
	if ttl > 0 {
		if err := x.redis.Set(ctx, key, session.UserID.String(), ttl).Err(); err != nil {
			logger.W("Failed to cache session", tracing.InnerError, err)
		}
	}

	return session.UserID, nil
}

func (x *SessionsRepository) cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return x.config.KeyPrefix + ":" + hex.EncodeToString(sum[:])
}
