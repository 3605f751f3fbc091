package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ward-discharge/internal/domain"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Publisher 出院决策事件发布（best-effort，失败不影响已提交的决策）
type Publisher interface {
	PublishDischargeDecided(ctx context.Context, evt *domain.DischargeDecidedEvent) error
}

type NopPublisher struct{}

func (NopPublisher) PublishDischargeDecided(context.Context, *domain.DischargeDecidedEvent) error {
	return nil
}

// StreamPublisher appends events to a Redis stream as {data, timestamp}.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: 10000}
}

func (p *StreamPublisher) PublishDischargeDecided(ctx context.Context, evt *domain.DischargeDecidedEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal discharge event: %w", err)
	}
	_, err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      "discharge.decided",
			"data":      string(data),
			"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}
	return nil
}

// mqttPublisher is satisfied by mqtt.Client.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTPublisher pushes decisions to ward displays on {prefix}/{patient_id}.
type MQTTPublisher struct {
	client      mqttPublisher
	topicPrefix string
	qos         byte
}

func NewMQTTPublisher(client mqttPublisher, topicPrefix string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, topicPrefix: topicPrefix, qos: qos}
}

func (p *MQTTPublisher) Topic(patientID string) string {
	return p.topicPrefix + "/" + patientID
}

func (p *MQTTPublisher) PublishDischargeDecided(_ context.Context, evt *domain.DischargeDecidedEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal discharge event: %w", err)
	}
	return p.client.Publish(p.Topic(evt.PatientID), p.qos, false, payload)
}

// MultiPublisher fans out to every publisher and logs individual failures.
type MultiPublisher struct {
	publishers []Publisher
	logger     *zap.Logger
}

func NewMultiPublisher(logger *zap.Logger, publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers, logger: logger}
}

// PublishDischargeDecided returns the first error after trying every publisher.
func (m *MultiPublisher) PublishDischargeDecided(ctx context.Context, evt *domain.DischargeDecidedEvent) error {
	var first error
	for _, p := range m.publishers {
		if err := p.PublishDischargeDecided(ctx, evt); err != nil {
			m.logger.Warn("discharge event publish failed",
				zap.String("patient_id", evt.PatientID),
				zap.String("publisher", fmt.Sprintf("%T", p)),
				zap.Error(err),
			)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
