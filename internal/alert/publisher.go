package alert

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bptrack/internal/domain"

	"github.com/go-redis/redis/v8"
)

// Publisher receives readings whose category crossed the alert threshold.
type Publisher interface {
	Publish(ctx context.Context, stat *domain.BPStat) error
}

// NopPublisher drops every alert.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *domain.BPStat) error { return nil }

// StreamPublisher appends alerts to a Redis stream (XADD), one entry per reading.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: 10000}
}

func (p *StreamPublisher) Publish(ctx context.Context, stat *domain.BPStat) error {
	values := map[string]interface{}{
		"bpstat_id":  stat.ID,
		"user_id":    stat.UserID,
		"category":   string(stat.Category),
		"systolic":   strconv.Itoa(stat.Systolic),
		"diastolic":  strconv.Itoa(stat.Diastolic),
		"heart_rate": strconv.Itoa(stat.HeartRate),
		"source":     stat.Source,
		"timestamp":  strconv.FormatInt(stat.CreatedAt.Unix(), 10),
	}
	if stat.CreatedAt.IsZero() {
		values["timestamp"] = strconv.FormatInt(time.Now().Unix(), 10)
	}

	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish alert to %s: %w", p.stream, err)
	}
	return nil
}
