// Package export encodes prediction runs as JSON lines or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/fieldcast/core/sink"
)

// CSVHeader is the first row written by WriteCSV.
var CSVHeader = []string{"run_id", "time", "var", "stat", "sample", "coords", "labels", "value"}

// Line is one JSON line: a record tagged with its run.
type Line struct {
	RunID string `json:"run_id"`
	sink.Record
}

// WriteJSONL writes one JSON object per record.
func WriteJSONL(w io.Writer, run *sink.Run) error {
	enc := json.NewEncoder(w)
	for _, r := range run.Records {
		if err := enc.Encode(Line{RunID: run.ID, Record: r}); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes the records of run. With header false the header row is
// omitted, for appending to an existing file.
func WriteCSV(w io.Writer, run *sink.Run, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(CSVHeader); err != nil {
			return err
		}
	}
	for _, r := range run.Records {
		rec := []string{
			run.ID,
			r.Time.Format(time.RFC3339),
			r.Var,
			r.Stat,
			strconv.Itoa(r.Sample),
			joinPairs(r.Coords, func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }),
			joinPairs(r.Labels, func(v string) string { return v }),
			strconv.FormatFloat(r.Value, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// joinPairs renders m as sorted key=value pairs separated by ';'.
func joinPairs[V any](m map[string]V, format func(V) string) string {
	parts := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		parts = append(parts, k+"="+format(m[k]))
	}
	return strings.Join(parts, ";")
}
