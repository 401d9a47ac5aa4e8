package logfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxLineSize bounds a single log line. ESXi logs occasionally carry very
// long datastore paths in one line.
const maxLineSize = 1 << 20

// Reader yields trimmed text lines from a plain or gzip-compressed log file.
// Byte sequences that are not valid UTF-8 are dropped rather than failing
// the file.
type Reader struct {
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner
}

// Open opens path for line-by-line reading. Files with a .gz suffix are
// transparently decompressed.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	r := &Reader{file: file}
	var src io.Reader = file

	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
		}
		r.gz = gz
		src = gz
	}

	r.scanner = bufio.NewScanner(src)
	r.scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return r, nil
}

// Scan advances to the next line. It returns false at EOF or on error.
func (r *Reader) Scan() bool {
	return r.scanner.Scan()
}

// Text returns the current line with surrounding whitespace trimmed and
// invalid UTF-8 sequences removed.
func (r *Reader) Text() string {
	return strings.TrimSpace(strings.ToValidUTF8(r.scanner.Text(), ""))
}

// Err returns the first error encountered while scanning, excluding EOF.
func (r *Reader) Err() error {
	return r.scanner.Err()
}

// Close releases the underlying file and, for compressed files, the gzip
// stream.
func (r *Reader) Close() error {
	if r.gz != nil {
		if err := r.gz.Close(); err != nil {
			r.file.Close()
			return err
		}
	}
	return r.file.Close()
}
