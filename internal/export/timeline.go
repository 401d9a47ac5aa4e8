package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qelp/esxi-log-triage/internal/match"
)

// timelineFields is the fixed Timeline.csv header. Records registered with
// the timeline are projected down to these fields plus the CSV they were
// exported to.
var timelineFields = []string{"Timestamp", "Description", "Access Type", "Source CSV"}

var fractionalSeconds = regexp.MustCompile(`\.\d+Z$`)

// Timeline accumulates timeline-flagged records across all log families of
// one extraction batch and writes them in ascending timestamp order.
type Timeline struct {
	path string
	rows [][]string
}

// NewTimeline prepares a timeline that will be written to path.
func NewTimeline(path string) *Timeline {
	return &Timeline{path: path}
}

// Add registers one timeline-flagged record, tagging it with the per-family
// CSV file it was exported to.
func (t *Timeline) Add(rec match.Record, csvPath string) {
	t.rows = append(t.rows, []string{
		rec.Get("Timestamp"),
		rec.Get("Description"),
		rec.Get("Access Type"),
		csvPath,
	})
}

// Len returns the number of registered rows.
func (t *Timeline) Len() int {
	return len(t.rows)
}

// Write sorts the accumulated rows by parsed timestamp and writes the
// timeline file. The file is always created, header-only when no rows were
// registered.
//
// Rows whose timestamp parses as neither the fractional nor the whole-second
// form are dropped with an error log; one corrupt record must not cost the
// batch its timeline.
func (t *Timeline) Write() error {
	type keyed struct {
		ts  time.Time
		row []string
	}

	sortable := make([]keyed, 0, len(t.rows))
	for _, row := range t.rows {
		ts, err := parseTimestamp(row[0])
		if err != nil {
			log.Error().
				Err(err).
				Str("timestamp", row[0]).
				Str("source_csv", row[3]).
				Msg("Dropping timeline row with unparseable timestamp")
			continue
		}
		sortable = append(sortable, keyed{ts: ts, row: row})
	}

	sort.SliceStable(sortable, func(i, j int) bool {
		return sortable[i].ts.Before(sortable[j].ts)
	})

	file, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("failed to create timeline file: %w", err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(timelineFields); err != nil {
		file.Close()
		return fmt.Errorf("failed to write timeline header: %w", err)
	}
	for _, k := range sortable {
		if err := w.Write(k.row); err != nil {
			file.Close()
			return fmt.Errorf("failed to write timeline row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return fmt.Errorf("failed to flush timeline: %w", err)
	}
	return file.Close()
}

// parseTimestamp parses an ISO-8601 UTC instant, detecting per value whether
// fractional seconds are present before the trailing Z.
func parseTimestamp(value string) (time.Time, error) {
	if fractionalSeconds.MatchString(value) {
		return time.Parse(time.RFC3339Nano, value)
	}
	return time.Parse(time.RFC3339, value)
}
