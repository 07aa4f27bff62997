// Package sink records analysis results.
package sink

import (
	"context"

	"eve_analyst/internal/event"
)

// Sink appends one result. An append either lands whole or returns an error.
type Sink interface {
	Append(ctx context.Context, res event.Result) error
	Close() error
}
