package archive

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"

	"github.com/qelp/esxi-log-triage/internal/rules"
)

// ExtractedLogsDir is the subdirectory of an extraction root that receives
// the matched archive members.
const ExtractedLogsDir = "Extracted_logs"

// ErrUnsupported marks an archive whose container format the extractor does
// not understand. Callers skip the archive and continue the batch.
var ErrUnsupported = errors.New("unsupported archive type")

var supportedSuffixes = []string{".zip", ".tar", ".gz", ".tgz"}

// Extractor pulls known log files out of triage archives. Members are
// matched by base name against the union of the rule table's filename
// patterns; directory structure inside the archive is discarded.
type Extractor struct {
	namePattern *regexp.Regexp
}

// NewExtractor builds an extractor selecting the log families of table.
func NewExtractor(table rules.Table) *Extractor {
	return &Extractor{namePattern: table.UnionFilenamePattern()}
}

// Extract unpacks the matching members of archivePath into a fresh
// "<archive-name>_results/Extracted_logs" directory under outputRoot and
// returns the extraction root.
//
// Unsupported container suffixes return ErrUnsupported. A pre-existing
// extraction directory (two archives sharing a base name) fails this archive
// only. Container-format faults mid-archive are logged and the root is still
// returned so parsing can run over whatever was extracted before the fault.
func (e *Extractor) Extract(archivePath, outputRoot string) (string, error) {
	suffix := strings.ToLower(filepath.Ext(archivePath))
	if !isSupported(suffix) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, archivePath)
	}

	extractionDir := filepath.Join(outputRoot, filepath.Base(archivePath)+"_results")
	if err := os.Mkdir(extractionDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create extraction directory: %w", err)
	}
	logsDir := filepath.Join(extractionDir, ExtractedLogsDir)
	if err := os.Mkdir(logsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create logs directory: %w", err)
	}

	var err error
	if suffix == ".zip" {
		err = e.extractZip(archivePath, logsDir)
	} else {
		err = e.extractTar(archivePath, logsDir)
	}
	if err != nil {
		// Keep whatever made it out; the triage proceeds on partial results.
		log.Error().
			Err(err).
			Str("archive", archivePath).
			Msg("Archive extraction failed, a member may be empty or the archive is corrupt; check the output directory for partial results")
	}

	return extractionDir, nil
}

func (e *Extractor) extractZip(archivePath, logsDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip %s: %w", archivePath, err)
	}
	defer zr.Close()

	for _, member := range zr.File {
		if member.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(filepath.ToSlash(member.Name))
		if !e.namePattern.MatchString(base) {
			continue
		}
		if err := e.writeZipMember(member, filepath.Join(logsDir, base)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) writeZipMember(member *zip.File, dest string) error {
	src, err := member.Open()
	if err != nil {
		return fmt.Errorf("failed to open zip member %s: %w", member.Name, err)
	}
	defer src.Close()
	return writeFile(dest, src)
}

func (e *Extractor) extractTar(archivePath, logsDir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer file.Close()

	var src io.Reader = file
	suffix := strings.ToLower(filepath.Ext(archivePath))
	if suffix == ".gz" || suffix == ".tgz" {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("failed to open gzip stream %s: %w", archivePath, err)
		}
		defer gz.Close()
		src = gz
	}

	tr := tar.NewReader(src)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar member in %s: %w", archivePath, err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		base := filepath.Base(filepath.ToSlash(header.Name))
		if !e.namePattern.MatchString(base) {
			continue
		}
		if err := writeFile(filepath.Join(logsDir, base), tr); err != nil {
			return err
		}
	}
}

func writeFile(dest string, src io.Reader) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return out.Close()
}

func isSupported(suffix string) bool {
	for _, s := range supportedSuffixes {
		if suffix == s {
			return true
		}
	}
	return false
}
