// internal/writer/mqtt/client_test.go
package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tamzrod/modbus-labctl/internal/config"
)

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(config.MQTTConfig{
		Broker:      "tcp://broker.lab:1883",
		ClientID:    "labctl-7",
		Username:    "lab",
		Password:    "secret",
		TopicPrefix: "rig1",
		QoS:         1,
	})

	if assert.Len(t, opts.Servers, 1) {
		assert.Equal(t, "broker.lab:1883", opts.Servers[0].Host)
	}
	assert.Equal(t, "labctl-7", opts.ClientID)
	assert.Equal(t, "lab", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "rig1/online", opts.WillTopic)
	assert.Equal(t, []byte("offline"), opts.WillPayload)
	assert.True(t, opts.WillRetained)
	assert.Equal(t, byte(1), opts.WillQos)
}

func TestBuildClientOptions_NoAuth(t *testing.T) {
	opts := buildClientOptions(config.MQTTConfig{Broker: "tcp://localhost:1883", TopicPrefix: "labctl"})

	assert.Empty(t, opts.Username)
	assert.Empty(t, opts.Password)
}
