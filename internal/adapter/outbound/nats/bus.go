package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/l2laihub/creditengine/internal/port/outbound"
	"github.com/l2laihub/creditengine/internal/utils/requestctx"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// RequestIDHeader carries the originating HTTP request ID on published messages.
const RequestIDHeader = "X-Request-ID"

// Conn is the subset of *nats.Conn the bus needs.
type Conn interface {
	PublishMsg(msg *nats.Msg) error
}

// Bus implements outbound.MessagePort on a NATS connection.
type Bus struct {
	nc Conn
}

// NewBus creates a message bus.
func NewBus(nc Conn) *Bus {
	return &Bus{nc: nc}
}

func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	if id := requestctx.RequestID(ctx); id != "" {
		msg.Header.Set(RequestIDHeader, id)
	}
	if err := b.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Connect dials NATS with reconnects enabled and logs connection state changes.
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("creditengine"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// Compile-time check
var _ outbound.MessagePort = (*Bus)(nil)
