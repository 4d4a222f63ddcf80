// Package app wires configuration into a runnable prediction service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/config"
	"github.com/kilianp07/fieldcast/core/active"
	"github.com/kilianp07/fieldcast/core/logger"
	coremetrics "github.com/kilianp07/fieldcast/core/metrics"
	"github.com/kilianp07/fieldcast/core/models"
	"github.com/kilianp07/fieldcast/core/numeric"
	"github.com/kilianp07/fieldcast/core/predict"
	"github.com/kilianp07/fieldcast/core/processor"
	"github.com/kilianp07/fieldcast/core/sink"
	"github.com/kilianp07/fieldcast/core/task"
	infralogger "github.com/kilianp07/fieldcast/infra/logger"
	"github.com/kilianp07/fieldcast/infra/metrics"
	_ "github.com/kilianp07/fieldcast/infra/sink"
	"github.com/kilianp07/fieldcast/internal/eventbus"
	"github.com/kilianp07/fieldcast/pkg/taskfile"
)

// Service owns the predictor and its outputs.
type Service struct {
	Predictor *predict.Predictor
	Sink      sink.Sink
	Bus       *eventbus.Bus[predict.Progress]

	cfg *config.Config
	rec predict.Recorder
	log logger.Logger
}

// New creates a Service from the configuration. Output goes to w; a nil w
// means stdout.
func New(cfg *config.Config, w io.Writer) (*Service, error) {
	if w == nil {
		w = os.Stdout
	}
	logg := infralogger.NewWithConfig("service", cfg.Logging, w)

	runner, err := models.NewRunner(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	var proc *processor.Processor
	if cfg.Processor != nil {
		if proc, err = processor.New(*cfg.Processor); err != nil {
			return nil, fmt.Errorf("processor: %w", err)
		}
	}
	rec, err := coremetrics.NewRecorder(cfg.Metrics.Recorders)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	snk, err := sink.New(cfg.Sinks)
	if err != nil {
		return nil, fmt.Errorf("sinks: %w", err)
	}
	bus := eventbus.New[predict.Progress]()
	p, err := predict.New(runner, cfg.Schema.VarSchema(), proc, numeric.NewGonum(cfg.Predict.Seed),
		infralogger.NewWithConfig("predict", cfg.Logging, w), rec, bus)
	if err != nil {
		_ = snk.Close()
		return nil, err
	}
	return &Service{Predictor: p, Sink: snk, Bus: bus, cfg: cfg, rec: rec, log: logg}, nil
}

// StartMetrics serves Prometheus metrics until ctx is done when an address
// is configured.
func (s *Service) StartMetrics(ctx context.Context) {
	addr := s.cfg.Metrics.PrometheusAddr
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.StartPromServer(ctx, addr); err != nil {
			s.log.Errorf("prom server: %v", err)
		}
	}()
}

// Predict runs the request with opts and writes the result to the sinks.
func (s *Service) Predict(ctx context.Context, req *taskfile.Request, opts predict.Options) (*predict.Result, error) {
	events := s.Bus.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			if ev.Err != nil {
				continue
			}
			s.log.Infof("task %d/%d at %s done in %s", ev.Index+1, ev.Total, ev.Time.Format("2006-01-02T15:04:05Z07:00"), ev.Duration)
		}
	}()
	res, err := s.Predictor.Predict(ctx, req.Tasks, req.Locations, opts)
	s.Bus.Unsubscribe(events)
	wg.Wait()
	if err != nil {
		return nil, err
	}

	run := sink.FromResult(res)
	if err := s.Sink.Write(ctx, run); err != nil {
		return res, fmt.Errorf("write run %s: %w", run.ID, err)
	}
	s.log.Infof("run %s: wrote %d records", run.ID, len(run.Records))
	return res, nil
}

// Place greedily selects n of the candidate locations (2 x M, model space)
// for new observations in context set contextSet of t.
func (s *Service) Place(ctx context.Context, t *task.Task, candidates *mat.Dense, n, contextSet int) (*active.Placement, error) {
	m, err := models.NewProbabilistic(s.cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	g, err := active.NewGreedy(m, contextSet, s.log)
	if err != nil {
		return nil, err
	}
	return g.Place(ctx, t, candidates, n)
}

// Close releases the sinks, the recorders and the event bus.
func (s *Service) Close() error {
	s.Bus.Close()
	errs := []error{s.Sink.Close()}
	switch c := s.rec.(type) {
	case interface{ Close() error }:
		errs = append(errs, c.Close())
	case interface{ Close() }:
		c.Close()
	}
	return errors.Join(errs...)
}
