package webhook

import (
	"context"
	"time"

	"calldesk-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// EventClaims collapses carrier webhook retries across processes. Claim
// reserves an event key for processing; Release drops the reservation when
// the handler fails, so the carrier's next retry is processed instead of
// answered as a duplicate.
type EventClaims interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisClaims backs EventClaims with the shared redis client.
type RedisClaims struct {
	RDB *redis.Client
}

func (r RedisClaims) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return utils.ClaimEvent(ctx, r.RDB, key, ttl)
}

func (r RedisClaims) Release(ctx context.Context, key string) error {
	return utils.ReleaseEvent(ctx, r.RDB, key)
}
