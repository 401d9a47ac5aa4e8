package triage

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/qelp/esxi-log-triage/internal/archive"
	"github.com/qelp/esxi-log-triage/internal/registry"
	"github.com/qelp/esxi-log-triage/internal/rules"
)

func makeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(file)
	for name, content := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return rows
}

func TestPipelineEndToEnd(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()

	makeZip(t, filepath.Join(inputDir, "esx01.zip"), map[string]string{
		"var/log/hostd.log": "2024-01-01T00:00:00.000000Z info hostd[123]: Event.example: Accepted password for user root@10.0.0.1\n" +
			"2024-01-01T00:00:05.000000Z info hostd[123]: Event.example: nothing interesting\n",
		"var/log/syslog.log": "2024-01-01T00:00:01Z sftp-server[2099]: opendir \"/tmp\"\n",
		"var/log/vmware.log": "2024-01-01T00:00:02Z ignored entirely\n",
	})

	p := New(rules.ESXi, 2, nil)
	if err := p.Run(context.Background(), inputDir, outputDir); err != nil {
		t.Fatal(err)
	}

	resultDir := filepath.Join(outputDir, "esx01.zip_results")

	// hostd: one Logon row.
	hostdRows := readCSV(t, filepath.Join(resultDir, "hostd.csv"))
	if len(hostdRows) != 2 {
		t.Fatalf("expected header + 1 hostd row, got %d", len(hostdRows))
	}
	header := hostdRows[0]
	row := hostdRows[1]
	get := func(col string) string {
		for i, h := range header {
			if h == col {
				return row[i]
			}
		}
		t.Fatalf("column %s missing from header %v", col, header)
		return ""
	}
	if get("Access Type") != "Logon" {
		t.Errorf("expected Logon, got %s", get("Access Type"))
	}
	if get("Timestamp") != "2024-01-01T00:00:00.000000Z" {
		t.Errorf("unexpected timestamp %s", get("Timestamp"))
	}

	// syslog: one User_activity row, not timelined.
	syslogRows := readCSV(t, filepath.Join(resultDir, "syslog.csv"))
	if len(syslogRows) != 2 {
		t.Fatalf("expected header + 1 syslog row, got %d", len(syslogRows))
	}

	// Timeline: only the hostd Logon record, same Timestamp and Description.
	tlRows := readCSV(t, filepath.Join(resultDir, TimelineFile))
	if len(tlRows) != 2 {
		t.Fatalf("expected header + 1 timeline row, got %d", len(tlRows))
	}
	if tlRows[1][0] != "2024-01-01T00:00:00.000000Z" {
		t.Errorf("unexpected timeline timestamp %s", tlRows[1][0])
	}
	if tlRows[1][1] != "Accepted password for user root@10.0.0.1" {
		t.Errorf("unexpected timeline description %s", tlRows[1][1])
	}
	if tlRows[1][3] != filepath.Join(resultDir, "hostd.csv") {
		t.Errorf("unexpected timeline source CSV %s", tlRows[1][3])
	}

	// No CSV for families without records.
	if _, err := os.Stat(filepath.Join(resultDir, "auth.csv")); !os.IsNotExist(err) {
		t.Error("expected no auth.csv for empty bucket")
	}
}

func TestPipelineTimelineOrderAcrossFamilies(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()

	makeZip(t, filepath.Join(inputDir, "esx02.zip"), map[string]string{
		"hostd.log": "2024-06-01T10:00:00.000000Z info hostd[9]: Event.x: Accepted password for user admin@10.1.1.1\n",
		"shell.log": "2024-06-01T09:59:59Z shell[123]: ls -la /vmfs\n" +
			"2024-06-01T10:00:01Z shell[123]: rm -rf /tmp/payload\n",
	})

	p := New(rules.ESXi, 4, nil)
	if err := p.Run(context.Background(), inputDir, outputDir); err != nil {
		t.Fatal(err)
	}

	tlRows := readCSV(t, filepath.Join(outputDir, "esx02.zip_results", TimelineFile))
	if len(tlRows) != 4 {
		t.Fatalf("expected header + 3 timeline rows, got %d", len(tlRows))
	}

	// Rows must be in non-decreasing timestamp order regardless of which
	// file produced them or in which order the workers finished.
	prev := ""
	for _, row := range tlRows[1:] {
		if prev != "" && row[0] < prev {
			t.Errorf("timeline out of order: %s before %s", prev, row[0])
		}
		prev = row[0]
	}
	if tlRows[1][1] != "ls -la /vmfs" {
		t.Errorf("expected shell row first, got %v", tlRows[1])
	}
}

func TestPipelineDuplicateArchiveNames(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()

	// Two archives sharing a base name in different source directories: the
	// second must fail its own extraction, not overwrite the first.
	dirA := filepath.Join(inputDir, "a")
	dirB := filepath.Join(inputDir, "b")
	for _, d := range []string{dirA, dirB} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	makeZip(t, filepath.Join(dirA, "evidence.zip"), map[string]string{
		"hostd.log": "2024-01-01T00:00:00.000000Z info hostd[1]: E.x: Accepted password for user a@10.0.0.1\n",
	})
	makeZip(t, filepath.Join(dirB, "evidence.zip"), map[string]string{
		"hostd.log": "2024-02-02T00:00:00.000000Z info hostd[2]: E.x: Accepted password for user b@10.0.0.2\n",
	})

	p := New(rules.ESXi, 2, nil)
	if err := p.Run(context.Background(), inputDir, outputDir); err != nil {
		t.Fatal(err)
	}

	// Exactly one result set exists, from whichever archive won the race
	// (walk order: a before b).
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "evidence.zip_results" {
		t.Fatalf("expected a single evidence.zip_results, got %v", entries)
	}

	rows := readCSV(t, filepath.Join(outputDir, "evidence.zip_results", "hostd.csv"))
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
}

func TestPipelineSkipsProcessedArchives(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	archivePath := filepath.Join(inputDir, "esx03.zip")
	makeZip(t, archivePath, map[string]string{
		"hostd.log": "2024-01-01T00:00:00.000000Z info hostd[1]: E.x: Accepted password for user a@10.0.0.1\n",
	})

	reg, err := registry.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	p := New(rules.ESXi, 2, reg)
	if err := p.Run(context.Background(), inputDir, outputDir); err != nil {
		t.Fatal(err)
	}

	if _, found, err := reg.Processed(archivePath); err != nil || !found {
		t.Fatalf("expected archive recorded in registry, found=%v err=%v", found, err)
	}

	// A second run must skip the archive instead of colliding with its own
	// earlier extraction directory.
	if err := p.Run(context.Background(), inputDir, outputDir); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single result set after rerun, got %v", entries)
	}
}

func TestPipelineUnsupportedFilesAreSkipped(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(inputDir, "readme.txt"), []byte("not an archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New(rules.ESXi, 2, nil)
	if err := p.Run(context.Background(), inputDir, outputDir); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no results for unsupported files, got %v", entries)
	}
}

func TestFindLogsUsesAnchoredPatterns(t *testing.T) {
	extractionDir := t.TempDir()
	logsDir := filepath.Join(extractionDir, archive.ExtractedLogsDir)
	if err := os.Mkdir(logsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"hostd.log", "hostd.3.gz", "hostd.txt", "notes.md"} {
		if err := os.WriteFile(filepath.Join(logsDir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	p := New(rules.ESXi, 1, nil)
	files := p.findLogs(extractionDir)
	if len(files) != 2 {
		t.Fatalf("expected 2 matched files, got %v", files)
	}
}
