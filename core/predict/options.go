package predict

import (
	"errors"
	"fmt"

	"github.com/kilianp07/fieldcast/core/container"
)

var (
	// ErrInvalidModeOption is returned when an option does not apply to the
	// kind of target locations supplied.
	ErrInvalidModeOption = errors.New("option not valid for target locations")
	// ErrUnsupportedLocations is returned for nil or unknown target locations.
	ErrUnsupportedLocations = errors.New("unsupported target locations")
	// ErrNoTasks is returned when Predict is called without tasks.
	ErrNoTasks = errors.New("no tasks to predict")
	// ErrNoProcessor is returned when raw locations are given without a
	// processor to normalise them.
	ErrNoProcessor = errors.New("raw target locations need a processor")
	// ErrOutputShape is returned when a model output does not match the
	// variable schema or the query points.
	ErrOutputShape = errors.New("model output shape mismatch")
)

// Mode is the output regime of a call.
type Mode int

const (
	// ModeGrid fills dense on-grid datasets.
	ModeGrid Mode = iota
	// ModePoints fills tabular off-grid frames.
	ModePoints
)

func (m Mode) String() string {
	if m == ModeGrid {
		return "grid"
	}
	return "points"
}

// Options control a Predict call.
type Options struct {
	// Normalised marks the target locations as already in model space.
	Normalised bool `json:"normalised"`
	// ResolutionFactor resamples grid axes; grid locations only.
	ResolutionFactor float64 `json:"resolution_factor"`
	NSamples         int     `json:"n_samples"`
	ARSample         bool    `json:"ar_sample"`
	// ARSubsampleFactor is passed to the model's autoregressive sampler.
	ARSubsampleFactor int `json:"ar_subsample_factor"`
	// Noiseless asks the model for samples without observation noise.
	Noiseless   bool `json:"noiseless"`
	Unnormalise bool `json:"unnormalise"`
	// Seed is the state the random source is reset to before every
	// sampling call.
	Seed uint64 `json:"seed"`
	// AppendIndexes become extra index levels on point outputs.
	AppendIndexes []container.Level `json:"-"`
}

// DefaultOptions returns the defaults: unnormalised output at native
// resolution, no sampling, noiseless samples when sampling is asked for.
func DefaultOptions() Options {
	return Options{ResolutionFactor: 1, ARSubsampleFactor: 1, Noiseless: true, Unnormalise: true}
}

// SetDefaults fills zero factors.
func (o *Options) SetDefaults() {
	if o.ResolutionFactor == 0 {
		o.ResolutionFactor = 1
	}
	if o.ARSubsampleFactor == 0 {
		o.ARSubsampleFactor = 1
	}
}

// Validate checks the options against the kind of target locations.
func (o Options) Validate(locs container.Locations) error {
	if o.NSamples < 0 {
		return fmt.Errorf("%w: n_samples %d is negative", ErrInvalidModeOption, o.NSamples)
	}
	if o.ResolutionFactor <= 0 {
		return fmt.Errorf("%w: resolution factor %g must be positive", ErrInvalidModeOption, o.ResolutionFactor)
	}
	if o.ARSubsampleFactor < 1 {
		return fmt.Errorf("%w: ar subsample factor %d must be >= 1", ErrInvalidModeOption, o.ARSubsampleFactor)
	}
	if o.ARSample && o.NSamples < 1 {
		return fmt.Errorf("%w: autoregressive sampling needs n_samples >= 1", ErrInvalidModeOption)
	}
	_, grid := locs.(*container.Grid)
	if o.ResolutionFactor != 1 && !grid {
		return fmt.Errorf("%w: resolution factor %g needs grid locations, got %T", ErrInvalidModeOption, o.ResolutionFactor, locs)
	}
	if len(o.AppendIndexes) > 0 {
		switch locs.(type) {
		case *container.Index, *container.Coords:
		default:
			return fmt.Errorf("%w: append indexes need point locations, got %T", ErrInvalidModeOption, locs)
		}
	}
	return nil
}
