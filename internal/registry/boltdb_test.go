package registry

import (
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}

	if _, found, err := store.Processed("/evidence/a.zip"); err != nil || found {
		t.Fatalf("expected unknown archive, found=%v err=%v", found, err)
	}

	if err := store.MarkProcessed("/evidence/a.zip", "/out/a.zip_results"); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	// State survives reopening.
	store, err = Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	resultDir, found, err := store.Processed("/evidence/a.zip")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected archive to be recorded")
	}
	if resultDir != "/out/a.zip_results" {
		t.Errorf("unexpected result dir %q", resultDir)
	}
}
