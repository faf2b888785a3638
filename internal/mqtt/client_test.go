package mqtt

import (
	"testing"

	"bptrack/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient_UnreachableBroker(t *testing.T) {
	cfg := &config.MQTTConfig{Broker: "tcp://127.0.0.1:1", ClientID: "bptrack-test"}

	c, err := NewClient(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "failed to connect to MQTT broker")
}
