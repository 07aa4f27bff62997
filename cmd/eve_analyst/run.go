package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eve_analyst/internal/analysis"
	"eve_analyst/internal/config"
	"eve_analyst/internal/coordinator"
	"eve_analyst/internal/event"
	"eve_analyst/internal/logging"
	"eve_analyst/internal/metrics"
	"eve_analyst/internal/sink"
	"eve_analyst/internal/tail"
	"eve_analyst/internal/watch"
)

func runMonitor(parent context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	log := logging.New(os.Stderr, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(log)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rules, err := cfg.RuleSet()
	if err != nil {
		return err
	}
	m := metrics.New()
	if cfg.MetricsBind != "" {
		srv := serveMetrics(cfg.MetricsBind, m, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	out, err := openSink(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Error("closing sink failed", logging.Error(err))
		}
	}()

	w, err := watch.New(cfg.EVELogPath, cfg.Tail.PollInterval, log, m)
	if err != nil {
		return err
	}

	var offset int64
	if cfg.Tail.StartAt == config.StartEnd {
		size, err := tail.Size(w.Path())
		switch {
		case err == nil:
			offset = size
		case errors.Is(err, os.ErrNotExist):
		default:
			return err
		}
	}

	coord := coordinator.New(w.Path(),
		event.NewQualifier(rules),
		analysis.New(cfg.AnalysisClientConfig(), m),
		out,
		coordinator.WithOffset(offset),
		coordinator.WithMaxBatchBytes(cfg.Tail.MaxBatchBytes),
		coordinator.WithLogger(log),
		coordinator.WithMetrics(m),
	)

	log.Info("monitoring started", logging.Path(w.Path()), logging.Offset(offset))
	go w.Run(ctx)
	coord.Run(ctx, w.Signals())
	log.Info("monitoring stopped", logging.Path(w.Path()), logging.Offset(coord.Offset()))
	return nil
}

func openSink(cfg *config.Config) (sink.Sink, error) {
	switch cfg.Output.Kind {
	case config.OutputNATS:
		return sink.NewNATS(cfg.Output.NATSURL, cfg.Output.NATSSubject)
	default:
		return sink.NewFile(cfg.Output.Dir, cfg.Output.Format, time.Now())
	}
}

func serveMetrics(addr string, m *metrics.Metrics, log *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", logging.Error(err))
		}
	}()
	return srv
}
