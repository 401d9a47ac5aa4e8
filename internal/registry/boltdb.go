package registry

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const bucketName = "archives"

// Store records which archives a previous run already triaged, so an
// interrupted multi-archive run can be resumed without redoing finished
// work. Keys are archive paths, values the extraction root they produced.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the registry database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		// A lock timeout usually means another triage run holds the state
		// file; it has to finish or be stopped first.
		return nil, fmt.Errorf("failed to open registry (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Info().Str("db_path", dbPath).Msg("Archive registry opened")
	return &Store{db: db}, nil
}

// MarkProcessed records that archivePath was fully triaged into resultDir.
func (s *Store) MarkProcessed(archivePath, resultDir string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(archivePath), []byte(resultDir))
	})
	if err != nil {
		return fmt.Errorf("failed to mark archive processed: %w", err)
	}

	log.Debug().
		Str("archive", archivePath).
		Str("result_dir", resultDir).
		Msg("Archive marked processed")
	return nil
}

// Processed reports whether archivePath was triaged by an earlier run and,
// if so, where its results were written.
func (s *Store) Processed(archivePath string) (string, bool, error) {
	var resultDir string
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		if val := b.Get([]byte(archivePath)); val != nil {
			resultDir = string(val)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to query registry: %w", err)
	}

	return resultDir, found, nil
}

// Close closes the registry database.
func (s *Store) Close() error {
	return s.db.Close()
}
