package triage

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/qelp/esxi-log-triage/internal/match"
)

// matchAll fans the match engine out over files with a bounded worker pool
// and merges the results into buckets keyed by log family. Multiple files of
// one family accumulate into one bucket; ordering across files is not
// guaranteed, only order within each file's own match sequence. Each worker
// owns its per-file record slice until the mutex-guarded merge.
func (p *Pipeline) matchAll(ctx context.Context, files []string) map[string][]match.Record {
	buckets := make(map[string][]match.Record)
	if len(files) == 0 {
		return buckets
	}

	workers := p.workers
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				p.matchFile(ctx, path, &mu, buckets)
			}
		}()
	}

	for _, path := range files {
		jobs <- path
	}
	close(jobs)
	wg.Wait()

	return buckets
}

// matchFile runs the match engine for one file and merges its records. A
// per-file failure discards that file's records and is logged; other files
// proceed.
func (p *Pipeline) matchFile(ctx context.Context, path string, mu *sync.Mutex, buckets map[string][]match.Record) {
	_, span := otel.Tracer(tracerName).Start(ctx, "triage.file")
	span.SetAttributes(attribute.String("log.path", path))
	defer span.End()

	base := filepath.Base(path)
	id, ok := p.table.ForFile(base)
	if !ok {
		// Upstream filtering should make this unreachable.
		log.Warn().Str("file", path).Msg("No log family for file, skipping")
		return
	}

	records, err := match.File(path, id)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to parse log file")
		span.RecordError(err)
		return
	}
	if len(records) == 0 {
		return
	}

	mu.Lock()
	buckets[id.FilenameStart] = append(buckets[id.FilenameStart], records...)
	mu.Unlock()

	log.Debug().
		Str("file", path).
		Str("family", id.FilenameStart).
		Int("records", len(records)).
		Msg("Log file matched")
}
