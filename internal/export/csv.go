package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qelp/esxi-log-triage/internal/match"
)

// WriteFamilyCSV writes the accumulated records of one log family to
// "<family>.csv" inside dir and registers every timeline-flagged record with
// tl. The header is taken from the first record's column order; later
// records are assumed to share it. Returns the path of the written file.
//
// Families with zero records produce no file; callers skip empty buckets.
func WriteFamilyCSV(dir, family string, records []match.Record, tl *Timeline) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("no records for family %s", family)
	}

	csvPath := filepath.Join(dir, family+".csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", csvPath, err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(records[0].Columns); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write header for %s: %w", family, err)
	}
	for _, rec := range records {
		if err := w.Write(rec.Row()); err != nil {
			file.Close()
			return "", fmt.Errorf("failed to write row for %s: %w", family, err)
		}
		if rec.Timeline {
			tl.Add(rec, csvPath)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to flush %s: %w", family, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", csvPath, err)
	}
	return csvPath, nil
}
