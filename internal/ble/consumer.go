package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bptrack/internal/mqtt"

	"go.uber.org/zap"
)

// Subscriber is satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Submitter forwards a decoded reading to the data API.
type Submitter interface {
	SubmitReading(ctx context.Context, deviceID string, m Measurement) error
}

type lastReading struct {
	m  Measurement
	at time.Time
}

// Consumer turns cuff notifications published on MQTT into API submissions.
type Consumer struct {
	sub         Subscriber
	submitter   Submitter
	topic       string
	qos         byte
	encoding    Encoding
	minInterval time.Duration
	logger      *zap.Logger

	mu   sync.Mutex
	last map[string]lastReading // device id -> last submitted reading
	now  func() time.Time
	ctx  context.Context
}

func NewConsumer(sub Subscriber, submitter Submitter, topic string, qos byte, encoding Encoding, minInterval time.Duration, logger *zap.Logger) *Consumer {
	return &Consumer{
		sub:         sub,
		submitter:   submitter,
		topic:       topic,
		qos:         qos,
		encoding:    encoding,
		minInterval: minInterval,
		logger:      logger,
		last:        map[string]lastReading{},
		now:         time.Now,
		ctx:         context.Background(),
	}
}

// Start subscribes and blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	if err := c.sub.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to measurement topic: %w", err)
	}
	c.logger.Info("BLE consumer started", zap.String("topic", c.topic))

	<-ctx.Done()
	return nil
}

func (c *Consumer) Stop() {
	if err := c.sub.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("BLE consumer stopped")
}

// deviceFromTopic returns the segment matching the single-level wildcard of the
// subscription, e.g. bptrack/ble/+/measurement.
func deviceFromTopic(pattern, topic string) (string, error) {
	want := strings.Split(pattern, "/")
	got := strings.Split(topic, "/")
	if len(want) != len(got) {
		return "", fmt.Errorf("invalid topic format: %s", topic)
	}
	for i, seg := range want {
		if seg == "+" {
			if got[i] == "" {
				return "", fmt.Errorf("empty device id in topic: %s", topic)
			}
			return got[i], nil
		}
	}
	return "", fmt.Errorf("subscription %s has no device wildcard", pattern)
}

// duplicate reports whether m repeats the device's last submitted reading within minInterval.
func (c *Consumer) duplicate(deviceID string, m Measurement, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.last[deviceID]
	return ok && prev.m == m && now.Sub(prev.at) < c.minInterval
}

func (c *Consumer) remember(deviceID string, m Measurement, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[deviceID] = lastReading{m: m, at: now}
}

func (c *Consumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received BLE measurement",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	deviceID, err := deviceFromTopic(c.topic, topic)
	if err != nil {
		return err
	}

	m, err := DecodeMeasurement(payload, c.encoding)
	if err != nil {
		if errors.Is(err, ErrEmptyMeasurement) {
			// cuff sends zeroed frames while inflating
			return nil
		}
		return fmt.Errorf("device %s: %w", deviceID, err)
	}

	now := c.now()
	if c.duplicate(deviceID, m, now) {
		c.logger.Debug("Duplicate BLE measurement dropped", zap.String("device_id", deviceID))
		return nil
	}

	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if err := c.submitter.SubmitReading(ctx, deviceID, m); err != nil {
		return fmt.Errorf("failed to submit reading from %s: %w", deviceID, err)
	}
	c.remember(deviceID, m, now)

	c.logger.Info("BLE measurement submitted",
		zap.String("device_id", deviceID),
		zap.Int("systolic", m.Systolic),
		zap.Int("diastolic", m.Diastolic),
		zap.Int("pulse", m.Pulse),
	)
	return nil
}
