package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"eve_analyst/internal/event"
)

type publisher interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATS publishes each result as JSON on a subject.
type NATS struct {
	conn    publisher
	subject string
}

// NewNATS connects to the server at url and reconnects without limit.
func NewNATS(url, subject string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("eve-analyst"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats sink: connect %s: %w", url, err)
	}
	return &NATS{conn: conn, subject: subject}, nil
}

func (s *NATS) Append(ctx context.Context, res event.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("nats sink: encode: %w", err)
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return fmt.Errorf("nats sink: publish %s: %w", s.subject, err)
	}
	return nil
}

// Close drains so results already published reach the server.
func (s *NATS) Close() error {
	return s.conn.Drain()
}
