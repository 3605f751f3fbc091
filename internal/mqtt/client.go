package mqtt

import (
	"fmt"
	"time"

	"ward-discharge/internal/config"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Client MQTT 客户端封装（只用于发布病区大屏消息）
type Client struct {
	client paho.Client
	logger *zap.Logger
}

func newClientOptions(cfg *config.MQTTConfig, logger *zap.Logger) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})
	return opts
}

// NewClient connects to the broker.
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	c := paho.NewClient(newClientOptions(cfg, logger))
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	logger.Info("MQTT connected", zap.String("broker", cfg.Broker), zap.String("client_id", cfg.ClientID))
	return &Client{client: c, logger: logger}, nil
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
