// AngelaMos | 2026
// ingest.go

package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const streamMaxLen = 100_000

// IngestJob asks the extraction worker to fetch one piece of media.
type IngestJob struct {
	Source         string
	EventID        string
	UserID         string
	PlatformUserID string
	MediaID        string
	MediaURL       string
	ReceivedAt     time.Time
}

type Queue struct {
	rdb    redis.Cmdable
	stream string
}

func NewQueue(rdb redis.Cmdable, stream string) *Queue {
	return &Queue{rdb: rdb, stream: stream}
}

func (q *Queue) Enqueue(ctx context.Context, job IngestJob) (string, error) {
	id, err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"source":           job.Source,
			"event_id":         job.EventID,
			"user_id":          job.UserID,
			"platform_user_id": job.PlatformUserID,
			"media_id":         job.MediaID,
			"media_url":        job.MediaURL,
			"received_at":      job.ReceivedAt.UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue ingest job: %w", err)
	}
	return id, nil
}
