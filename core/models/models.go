// Package models builds the bundled baseline models from configuration.
//
// "gp" runs the Gaussian process through its distribution, "gp-direct"
// through the per-statistic interface, and "idw" is the inverse-distance
// baseline. NewProbabilistic returns the direct form used by placement.
package models

import (
	"github.com/kilianp07/fieldcast/core/factory"
	"github.com/kilianp07/fieldcast/core/model"
	"github.com/kilianp07/fieldcast/core/models/gp"
	"github.com/kilianp07/fieldcast/core/models/idw"
)

var (
	runners = factory.NewRegistry[model.Runner]()
	direct  = factory.NewRegistry[model.ProbabilisticModel]()
)

func newGP(conf map[string]any) (*gp.Model, error) {
	var c gp.Config
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	return gp.New(c)
}

func newIDW(conf map[string]any) (*idw.Model, error) {
	var c idw.Config
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	return idw.New(c)
}

func init() {
	_ = runners.Register("gp", func(conf map[string]any) (model.Runner, error) {
		m, err := newGP(conf)
		if err != nil {
			return nil, err
		}
		return model.Distributional(m), nil
	})
	_ = runners.Register("gp-direct", func(conf map[string]any) (model.Runner, error) {
		m, err := newGP(conf)
		if err != nil {
			return nil, err
		}
		return model.Direct(gp.Direct{Model: m}), nil
	})
	_ = runners.Register("idw", func(conf map[string]any) (model.Runner, error) {
		m, err := newIDW(conf)
		if err != nil {
			return nil, err
		}
		return model.Direct(m), nil
	})

	gpDirect := func(conf map[string]any) (model.ProbabilisticModel, error) {
		m, err := newGP(conf)
		if err != nil {
			return nil, err
		}
		return gp.Direct{Model: m}, nil
	}
	_ = direct.Register("gp", gpDirect)
	_ = direct.Register("gp-direct", gpDirect)
	_ = direct.Register("idw", func(conf map[string]any) (model.ProbabilisticModel, error) {
		return newIDW(conf)
	})
}

// Types lists the model names accepted by NewRunner.
func Types() []string { return runners.Types() }

// NewRunner builds the runner for cfg.
func NewRunner(cfg factory.ModuleConfig) (model.Runner, error) {
	return runners.Create(cfg)
}

// NewProbabilistic builds the direct-mode model for cfg.
func NewProbabilistic(cfg factory.ModuleConfig) (model.ProbabilisticModel, error) {
	return direct.Create(cfg)
}
