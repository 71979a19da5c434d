package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type NatsPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNatsPublisher(url, prefix string, logger *zap.Logger) (*NatsPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("disconnected from nats", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to nats", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NatsPublisher{conn: conn, prefix: prefix}, nil
}

func (p *NatsPublisher) Publish(_ context.Context, eventType string, key string, payload any) error {
	data, err := encode(eventType, key, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	return p.conn.Publish(subject(p.prefix, eventType), data)
}

func (p *NatsPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
