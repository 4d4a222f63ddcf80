// Package sink defines where prediction runs are written. Implementations
// register themselves from infra/sink and are built from configuration.
package sink

import (
	"context"
	"errors"

	"github.com/kilianp07/fieldcast/core/factory"
)

// Sink persists or publishes a prediction run. Implementations are safe for
// concurrent use.
type Sink interface {
	Write(ctx context.Context, run *Run) error
	Close() error
}

// Discard drops every run.
type Discard struct{}

func (Discard) Write(context.Context, *Run) error { return nil }
func (Discard) Close() error                      { return nil }

var registry = factory.NewRegistry[Sink]()

// Register adds a sink factory identified by name.
func Register(name string, f factory.Factory[Sink]) error {
	return registry.Register(name, f)
}

// Types lists the registered sink names.
func Types() []string { return registry.Types() }

// New creates a Sink from cfgs. No configuration yields Discard and several
// are combined in a Multi.
func New(cfgs []factory.ModuleConfig) (Sink, error) {
	switch len(cfgs) {
	case 0:
		return Discard{}, nil
	case 1:
		return registry.Create(cfgs[0])
	}
	sinks, err := registry.CreateAll(cfgs)
	if err != nil {
		return nil, err
	}
	return NewMulti(sinks...), nil
}

// Multi writes every run to all of its sinks. A failing sink does not stop
// the others; errors are joined.
type Multi struct {
	Sinks []Sink
}

// NewMulti combines sinks.
func NewMulti(sinks ...Sink) *Multi { return &Multi{Sinks: sinks} }

func (m *Multi) Write(ctx context.Context, run *Run) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.Write(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
