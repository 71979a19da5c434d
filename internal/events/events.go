package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	RoundSettled   = "round.settled"
	PaymentUpdated = "payment.updated"
)

// Event is the envelope every publisher writes.
type Event struct {
	Type      string `json:"type"`
	Key       string `json:"key"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, eventType string, key string, payload any) error
	Close() error
}

// Config selects and configures a publisher.
type Config struct {
	Driver       string // "kafka", "nats", "none"
	KafkaBrokers []string
	NatsURL      string
	TopicPrefix  string
}

// New builds the publisher named by cfg.Driver.
func New(cfg Config, logger *zap.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.TopicPrefix), nil
	case "nats":
		return NewNatsPublisher(cfg.NatsURL, cfg.TopicPrefix, logger)
	case "", "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

func encode(eventType, key string, payload any) ([]byte, error) {
	return json.Marshal(Event{
		Type:      eventType,
		Key:       key,
		Data:      payload,
		Timestamp: time.Now().UnixMilli(),
	})
}

func subject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }
func (Nop) Close() error                                       { return nil }
