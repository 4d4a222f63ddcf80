package sink

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/kilianp07/fieldcast/core/sink"
	"github.com/kilianp07/fieldcast/pkg/export"
)

// File formats supported by FileSink.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// FileSink appends runs to a local file.
type FileSink struct {
	mu     sync.Mutex
	path   string
	format string
}

// NewFileSink validates the format and returns a sink appending to path.
func NewFileSink(path, format string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("file sink: empty path")
	}
	if format != FormatJSONL && format != FormatCSV {
		return nil, fmt.Errorf("file sink: unknown format %q", format)
	}
	return &FileSink{path: path, format: format}, nil
}

func (s *FileSink) Write(_ context.Context, run *sink.Run) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if s.format == FormatJSONL {
		return export.WriteJSONL(f, run)
	}
	info, err := f.Stat()
	if err != nil {
		return err
	}
	return export.WriteCSV(f, run, info.Size() == 0)
}

func (s *FileSink) Close() error { return nil }
