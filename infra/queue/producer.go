package queue

import (
	"context"
	"encoding/json"
	"fmt"

	rocketmq "github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"go.uber.org/zap"

	"ragchat/internal/query"
)

// Producer publishes query events to RocketMQ. Publishing is best-effort:
// failures are logged and never block the response path.
type Producer struct {
	producer rocketmq.Producer
	topic    string
	log      *zap.Logger
}

func NewProducer(nameServers []string, groupName string, maxRetries int, topic string, log *zap.Logger) (*Producer, error) {
	p, err := rocketmq.NewProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver(nameServers)),
		producer.WithGroupName(groupName),
		producer.WithRetry(maxRetries),
		producer.WithQueueSelector(producer.NewRoundRobinQueueSelector()),
	)
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("start producer: %w", err)
	}
	return &Producer{producer: p, topic: topic, log: log}, nil
}

func (p *Producer) PublishQuery(ctx context.Context, evt query.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		p.log.Warn("encode query event", zap.Error(err))
		return
	}

	msg := &primitive.Message{
		Topic: p.topic,
		Body:  payload,
	}
	result, err := p.producer.SendSync(ctx, msg)
	if err != nil {
		p.log.Warn("publish query event", zap.Error(err))
		return
	}
	if result.Status != primitive.SendOK {
		p.log.Warn("publish query event", zap.Int("status", int(result.Status)))
	}
}

func (p *Producer) Stop() error {
	return p.producer.Shutdown()
}
