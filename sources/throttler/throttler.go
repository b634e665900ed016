package throttler

import (
	"context"
	"time"

	"colabai/sources/platform"
	"colabai/sources/tracing"

	"github.com/redis/go-redis/v9"
)

// Throttler admits one request per key within the configured window.
// Redis failures fail open.
type Throttler struct {
	client *redis.Client
	config *ThrottlerConfig
	log    *tracing.Logger
	ctx    context.Context
}

func NewThrottler(client *redis.Client, config *ThrottlerConfig, log *tracing.Logger) *Throttler {
	ctx := context.Background()
	return &Throttler{client: client, config: config, log: log, ctx: ctx}
}

func (x *Throttler) IsAllowed(key string) bool {
	if x.config.Limit <= 0 {
		return true
	}

	ctx, cancel := platform.ContextTimeout(x.ctx)
	defer cancel()

	success, err := x.client.SetNX(ctx, "throttle:"+key, time.Now().Unix(), x.config.Limit).Result()
	if err != nil {
		x.log.E("Error setting throttle key", "key", key, tracing.InnerError, err)
		return true
	}

	return success
}
