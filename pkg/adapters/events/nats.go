// Package events publishes recorded clicks to NATS for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// ClickMessage is the JSON body published for each click
type ClickMessage struct {
	ShortCode string    `json:"shortCode"`
	OwnerID   string    `json:"ownerId"`
	Origin    string    `json:"origin"`
	Country   string    `json:"country,omitempty"`
	ClickedAt time.Time `json:"clickedAt"`
}

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSPublisher(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("shortlink"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

func (p *NATSPublisher) PublishClick(ctx context.Context, event domain.ClickEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeClick(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, data)
}

// Close flushes pending messages before disconnecting
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

func encodeClick(event domain.ClickEvent) ([]byte, error) {
	return json.Marshal(ClickMessage{
		ShortCode: event.ShortCode,
		OwnerID:   event.OwnerID,
		Origin:    event.Origin,
		Country:   event.Country,
		ClickedAt: event.ClickedAt.UTC(),
	})
}

var _ ports.ClickPublisher = (*NATSPublisher)(nil)
