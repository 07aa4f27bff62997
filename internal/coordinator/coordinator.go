// Package coordinator ties the change signals, the line cursor, the
// qualifier, the analysis client and the result sink together.
package coordinator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"eve_analyst/internal/event"
	"eve_analyst/internal/logging"
	"eve_analyst/internal/metrics"
	"eve_analyst/internal/sink"
	"eve_analyst/internal/tail"
)

// Analyzer produces the assessment text for one event.
type Analyzer interface {
	Analyze(ctx context.Context, ev event.Normalized) (string, error)
}

// ReadFunc reads the complete lines after offset. prev identifies the file
// generation of the previous read. tail.ReadNewLines is the production
// implementation.
type ReadFunc func(path string, prev os.FileInfo, offset, maxBytes int64) (*tail.Batch, error)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithReader replaces the file reader.
func WithReader(read ReadFunc) Option {
	return func(c *Coordinator) { c.read = read }
}

// WithOffset starts the cursor somewhere other than the beginning.
func WithOffset(offset int64) Option {
	return func(c *Coordinator) { c.offset = offset }
}

// WithMaxBatchBytes bounds a single read. Default: tail.DefaultMaxBatchBytes.
func WithMaxBatchBytes(n int64) Option {
	return func(c *Coordinator) { c.maxBatch = n }
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock overrides the analysis timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator owns the read offset of one monitored file. Signals are
// handled one at a time, so the offset is never shared.
type Coordinator struct {
	path      string
	offset    int64
	file      os.FileInfo
	maxBatch  int64
	read      ReadFunc
	qualifier *event.Qualifier
	analyzer  Analyzer
	sink      sink.Sink
	log       *logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(path string, q *event.Qualifier, a Analyzer, s sink.Sink, opts ...Option) *Coordinator {
	c := &Coordinator{
		path:      filepath.Clean(path),
		maxBatch:  tail.DefaultMaxBatchBytes,
		read:      tail.ReadNewLines,
		qualifier: q,
		analyzer:  a,
		sink:      s,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = &logging.Logger{Logger: slog.Default()}
	}
	if c.metrics == nil {
		c.metrics = metrics.New()
	}
	c.metrics.CursorOffset.Set(float64(c.offset))
	return c
}

// Offset is the number of bytes of the monitored file consumed so far.
func (c *Coordinator) Offset() int64 {
	return c.offset
}

// Run handles signals until ctx is done or signals is closed. Signals for
// other paths are ignored.
func (c *Coordinator) Run(ctx context.Context, signals <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-signals:
			if !ok {
				return
			}
			if filepath.Clean(p) != c.path {
				c.log.Debug("ignoring signal for other path", logging.Path(p))
				continue
			}
			c.HandleSignal(ctx)
		}
	}
}

// HandleSignal reads everything appended since the last offset and runs
// each line through the pipeline. Read failures are logged and retried on
// the next signal. When ctx is cancelled the line in progress is finished
// and the offset stops after it.
func (c *Coordinator) HandleSignal(ctx context.Context) {
	for {
		batch, err := c.read(c.path, c.file, c.offset, c.maxBatch)
		if err != nil {
			c.metrics.ReadErrors.Inc()
			c.log.Warn("read failed, retrying on next change", logging.Path(c.path), logging.Offset(c.offset), logging.Error(err))
			return
		}
		c.file = batch.File
		if batch.Truncated {
			c.metrics.Truncations.Inc()
			c.log.Warn("file truncated or replaced, reading from start", logging.Path(c.path), logging.Offset(c.offset))
			c.setOffset(0)
		}

		for line := range batch.Lines() {
			if ctx.Err() != nil {
				return
			}
			c.processLine(ctx, line.Text)
			c.setOffset(line.End)
		}
		if ctx.Err() != nil {
			return
		}
		c.setOffset(batch.Offset)

		if batch.Len() > 0 {
			c.log.Debug("batch done", logging.Path(c.path), logging.Lines(batch.Len()), logging.Offset(c.offset))
		}
		if !batch.More {
			return
		}
	}
}

func (c *Coordinator) setOffset(o int64) {
	c.offset = o
	c.metrics.CursorOffset.Set(float64(o))
}

func (c *Coordinator) processLine(ctx context.Context, line []byte) {
	c.metrics.LinesTotal.Inc()

	raw, err := event.Decode(line)
	if err != nil {
		c.metrics.ParseErrors.Inc()
		c.log.Debug("skipping malformed line", logging.Path(c.path), logging.Error(err))
		return
	}

	ev, ok := c.qualifier.Qualify(raw)
	if !ok {
		c.metrics.EventsTotal.WithLabelValues("filtered").Inc()
		return
	}
	c.metrics.EventsTotal.WithLabelValues("qualified").Inc()

	// Shutdown must not abandon an event between analysis and sink.
	work := context.WithoutCancel(ctx)

	assessment, err := c.analyzer.Analyze(work, ev)
	if err != nil {
		c.metrics.AnalysesTotal.WithLabelValues("failed").Inc()
		c.log.Warn("analysis failed, dropping event",
			logging.EventType(ev.EventType), logging.SrcIP(ev.SrcIP), logging.DestIP(ev.DestIP), logging.Error(err))
		return
	}
	c.metrics.AnalysesTotal.WithLabelValues("ok").Inc()

	res := event.Result{
		ID:         uuid.NewString(),
		AnalyzedAt: c.now().UTC(),
		Event:      ev,
		Analysis:   assessment,
	}
	if err := c.sink.Append(work, res); err != nil {
		c.metrics.SinkWritesTotal.WithLabelValues("failed").Inc()
		c.log.Error("result sink append failed", logging.ResultID(res.ID), logging.Error(err))
		return
	}
	c.metrics.SinkWritesTotal.WithLabelValues("ok").Inc()
	c.log.Info("event analyzed",
		logging.ResultID(res.ID), logging.EventType(ev.EventType), logging.SrcIP(ev.SrcIP), logging.DestIP(ev.DestIP))
}
