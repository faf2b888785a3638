package alert

import (
	"context"
	"testing"
	"time"

	"bptrack/internal/bpcategory"
	"bptrack/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewStreamPublisher(client, "bpstat:alerts")
	stat := &domain.BPStat{
		ID:        "s1",
		UserID:    "u1",
		Systolic:  190,
		Diastolic: 100,
		HeartRate: 90,
		Category:  bpcategory.HypertensiveCrisis,
		Source:    domain.SourceBLE,
		CreatedAt: time.Unix(1700000000, 0),
	}
	require.NoError(t, p.Publish(context.Background(), stat))

	msgs, err := client.XRange(context.Background(), "bpstat:alerts", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hypertensive Crisis", msgs[0].Values["category"])
	assert.Equal(t, "190", msgs[0].Values["systolic"])
	assert.Equal(t, "u1", msgs[0].Values["user_id"])
	assert.Equal(t, "1700000000", msgs[0].Values["timestamp"])
}

func TestStreamPublisher_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err := NewStreamPublisher(client, "bpstat:alerts").Publish(context.Background(), &domain.BPStat{ID: "s1"})
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), &domain.BPStat{}))
}
