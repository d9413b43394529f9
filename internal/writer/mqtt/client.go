// internal/writer/mqtt/client.go
package mqtt

import (
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tamzrod/modbus-labctl/internal/config"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds
	keepAlive         = 30 * time.Second
)

var (
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrNotConnected     = errors.New("mqtt: not connected")
)

// Client is a publish-only broker connection.
// Safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	qos    byte
	online string
}

// OnlineTopic is where the client announces itself. The broker publishes
// "offline" there if the connection drops.
func OnlineTopic(prefix string) string { return prefix + "/online" }

func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetWill(OnlineTopic(cfg.TopicPrefix), "offline", cfg.QoS, true)

	return opts
}

// Connect dials the broker once and announces the client as online.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		client: pahomqtt.NewClient(buildClientOptions(cfg)),
		qos:    cfg.QoS,
		online: OnlineTopic(cfg.TopicPrefix),
	}

	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := c.Publish(c.online, true, []byte("online")); err != nil {
		c.client.Disconnect(disconnectQuiesce)
		return nil, err
	}
	return c, nil
}

// Publish sends one message and waits for the broker acknowledgement.
func (c *Client) Publish(topic string, retained bool, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, c.qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// Close announces a graceful shutdown and disconnects.
func (c *Client) Close() error {
	if c.client.IsConnectionOpen() {
		_ = c.Publish(c.online, true, []byte("offline"))
	}
	c.client.Disconnect(disconnectQuiesce)
	return nil
}
