package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/fieldcast/core/sink"
	"github.com/kilianp07/fieldcast/pkg/export"
)

// RotatingConfig configures a RotatingSink. Sizes are in megabytes and ages
// in days; zero keeps lumberjack's defaults.
type RotatingConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// RotatingSink appends runs as JSONL to a size-rotated file.
type RotatingSink struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewRotatingSink creates the parent directory and returns the sink.
func NewRotatingSink(cfg RotatingConfig) (*RotatingSink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("rotating sink: empty path")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &RotatingSink{out: &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}}, nil
}

func (s *RotatingSink) Write(_ context.Context, run *sink.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return export.WriteJSONL(s.out, run)
}

// Rotate closes the current file and starts a new one.
func (s *RotatingSink) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Rotate()
}

func (s *RotatingSink) Close() error { return s.out.Close() }
