package triage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/qelp/esxi-log-triage/internal/archive"
	"github.com/qelp/esxi-log-triage/internal/export"
	"github.com/qelp/esxi-log-triage/internal/registry"
	"github.com/qelp/esxi-log-triage/internal/rules"
)

const tracerName = "esxi-log-triage/triage"

// TimelineFile is the merged timeline written into every extraction root.
const TimelineFile = "Timeline.csv"

// Pipeline drives the triage of an input tree: archive discovery,
// extraction, parallel matching, CSV export and timeline assembly.
// Faults are contained per archive and per file; no fault aborts the run.
type Pipeline struct {
	table     rules.Table
	extractor *archive.Extractor
	workers   int
	registry  *registry.Store // nil when resume support is disabled
}

// New builds a pipeline over table. workers bounds the per-batch matching
// parallelism. reg may be nil to disable the processed-archive registry.
func New(table rules.Table, workers int, reg *registry.Store) *Pipeline {
	return &Pipeline{
		table:     table,
		extractor: archive.NewExtractor(table),
		workers:   workers,
		registry:  reg,
	}
}

// Run walks inputDir and triages every archive found, writing results under
// outputRoot. The returned error covers only the walk itself; per-archive
// faults are logged and skipped.
func (p *Pipeline) Run(ctx context.Context, inputDir, outputRoot string) error {
	runID := uuid.New().String()
	log.Info().
		Str("run_id", runID).
		Str("input_dir", inputDir).
		Str("output_dir", outputRoot).
		Msg("Starting triage run")

	archives := 0
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping inaccessible path")
			return nil
		}
		if d.IsDir() {
			return nil
		}
		archives++
		p.processArchive(ctx, path, outputRoot, runID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk input directory %s: %w", inputDir, err)
	}

	log.Info().Str("run_id", runID).Int("files_seen", archives).Msg("Triage run complete")
	return nil
}

// processArchive extracts and triages one archive. All failure modes are
// terminal for this archive only.
func (p *Pipeline) processArchive(ctx context.Context, archivePath, outputRoot, runID string) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "triage.archive")
	span.SetAttributes(attribute.String("archive.path", archivePath))
	defer span.End()

	if p.registry != nil {
		resultDir, done, err := p.registry.Processed(archivePath)
		if err != nil {
			log.Warn().Err(err).Str("archive", archivePath).Msg("Registry lookup failed, processing anyway")
		} else if done {
			log.Info().
				Str("archive", archivePath).
				Str("result_dir", resultDir).
				Msg("Archive already processed, skipping")
			return
		}
	}

	batchID := uuid.New().String()
	extractionDir, err := p.extractor.Extract(archivePath, outputRoot)
	if err != nil {
		if errors.Is(err, archive.ErrUnsupported) {
			log.Warn().Str("archive", archivePath).Msg("Unsupported file, skipping")
			span.SetStatus(codes.Ok, "skipped")
			return
		}
		log.Error().
			Err(err).
			Str("archive", archivePath).
			Str("batch_id", batchID).
			Msg("Failed to extract archive")
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return
	}

	if err := p.triageExtraction(ctx, extractionDir, batchID); err != nil {
		log.Error().
			Err(err).
			Str("archive", archivePath).
			Str("batch_id", batchID).
			Msg("Failed to triage extracted logs")
		span.RecordError(err)
		span.SetStatus(codes.Error, "triage failed")
		return
	}

	if p.registry != nil {
		if err := p.registry.MarkProcessed(archivePath, extractionDir); err != nil {
			log.Warn().Err(err).Str("archive", archivePath).Msg("Failed to record archive in registry")
		}
	}

	log.Info().
		Str("archive", archivePath).
		Str("run_id", runID).
		Str("batch_id", batchID).
		Str("result_dir", extractionDir).
		Msg("Archive triaged")
	span.SetStatus(codes.Ok, "triaged")
}

// triageExtraction matches all extracted log files of one batch, writes the
// per-family CSVs and finalizes the timeline.
func (p *Pipeline) triageExtraction(ctx context.Context, extractionDir, batchID string) error {
	files := p.findLogs(extractionDir)
	log.Info().
		Str("batch_id", batchID).
		Int("log_files", len(files)).
		Msg("Matching extracted logs")

	buckets := p.matchAll(ctx, files)

	tl := export.NewTimeline(filepath.Join(extractionDir, TimelineFile))
	for i := range p.table {
		family := p.table[i].FilenameStart
		records := buckets[family]
		if len(records) == 0 {
			continue
		}
		csvPath, err := export.WriteFamilyCSV(extractionDir, family, records, tl)
		if err != nil {
			return err
		}
		log.Debug().
			Str("family", family).
			Str("csv", csvPath).
			Int("records", len(records)).
			Msg("Family CSV written")
	}

	if err := tl.Write(); err != nil {
		return err
	}
	log.Info().
		Str("batch_id", batchID).
		Int("timeline_rows", tl.Len()).
		Msg("Timeline written")
	return nil
}

// findLogs collects the extracted files whose base names fully match a
// family's filename pattern.
func (p *Pipeline) findLogs(extractionDir string) []string {
	var matched []string
	err := filepath.WalkDir(extractionDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if p.table.MatchesFilename(filepath.Base(path)) {
			matched = append(matched, path)
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("dir", extractionDir).Msg("Failed to scan extraction directory")
	}
	return matched
}
