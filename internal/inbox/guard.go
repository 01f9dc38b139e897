// AngelaMos | 2026
// guard.go

package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/socialsync/internal/webhook"
)

// Guard claims an event id before it is handled so redelivered events are
// processed at most once. A failed handler releases its claim.
type Guard struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewGuard(rdb redis.Cmdable, ttl time.Duration) *Guard {
	return &Guard{rdb: rdb, ttl: ttl}
}

func guardKey(ev webhook.Event) string {
	return fmt.Sprintf("webhook:event:%s:%s", ev.Kind, ev.ID)
}

func (g *Guard) Claim(ctx context.Context, ev webhook.Event) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, guardKey(ev), time.Now().UTC().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	return ok, nil
}

func (g *Guard) Release(ctx context.Context, ev webhook.Event) error {
	if err := g.rdb.Del(ctx, guardKey(ev)).Err(); err != nil {
		return fmt.Errorf("release event: %w", err)
	}
	return nil
}

// Once wraps h so each event id runs through it at most once.
func (g *Guard) Once(h webhook.Handler) webhook.Handler {
	return webhook.HandlerFunc(func(ctx context.Context, ev webhook.Event) error {
		claimed, err := g.Claim(ctx, ev)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}

		if err := h.Handle(ctx, ev); err != nil {
			if relErr := g.Release(ctx, ev); relErr != nil {
				return fmt.Errorf("%w (release: %w)", err, relErr)
			}
			return err
		}
		return nil
	})
}
