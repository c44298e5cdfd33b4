// Package nats publishes domain events as JSON messages on NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dtroode/kurisync/internal/model"
)

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

var _ model.EventPublisher = (*Publisher)(nil)

// Publisher prefixes every subject with a namespace, e.g. "kurisync.status.updated".
type Publisher struct {
	conn   conn
	prefix string
}

// Connect dials url with reconnects enabled.
func Connect(url, name, prefix string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return NewPublisher(nc, prefix), nil
}

func NewPublisher(c conn, prefix string) *Publisher {
	return &Publisher{conn: c, prefix: prefix}
}

func (p *Publisher) subject(s string) string {
	if p.prefix == "" {
		return s
	}
	return p.prefix + "." + s
}

// Publish encodes payload as JSON. The context is only checked before sending.
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := p.conn.Publish(p.subject(subject), data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages before closing the connection.
func (p *Publisher) Close() error {
	err := p.conn.Drain()
	p.conn.Close()
	return err
}
