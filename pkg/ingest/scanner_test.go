package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestScanCSV(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "mice.csv",
		"id,group,weight\n1,control,30.1\n2,treated,28.4\n3,control,31.0\n")

	s := NewScanner()
	doc, err := s.ScanFile(p, "local")
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if doc.FileType != "csv" || doc.FileName != "mice.csv" {
		t.Fatalf("unexpected doc %+v", doc)
	}
	if len(doc.Columns) != 3 || doc.Columns[1] != "group" {
		t.Fatalf("unexpected columns %v", doc.Columns)
	}
	if doc.RowCount != 3 {
		t.Fatalf("expected 3 rows, got %d", doc.RowCount)
	}
	if len(doc.SampleRows) != 2 {
		t.Fatalf("expected 2 sample rows, got %d", len(doc.SampleRows))
	}
	if doc.SampleRows[0]["weight"] != "30.1" {
		t.Fatalf("unexpected sample %v", doc.SampleRows[0])
	}
	// two distinct values, so the column enumerates them
	if got := doc.ColumnDescs["group"]; got != "one of: control, treated" {
		t.Fatalf("unexpected group desc %q", got)
	}
	if doc.ID == "" || doc.Source != "local" {
		t.Fatalf("metadata missing: %+v", doc)
	}
	if !strings.Contains(doc.Description, "mice.csv") || !strings.Contains(doc.Description, "3 rows") {
		t.Fatalf("unexpected description %q", doc.Description)
	}
}

func TestScanCSVArbitraryValues(t *testing.T) {
	dir := t.TempDir()
	var sb strings.Builder
	sb.WriteString("id\n")
	for i := 0; i < 10; i++ {
		sb.WriteString(strings.Repeat("x", i+1) + "\n")
	}
	p := writeFile(t, dir, "wide.csv", sb.String())

	doc, err := NewScanner().ScanFile(p, "local")
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if got := doc.ColumnDescs["id"]; got != "arbitrary values" {
		t.Fatalf("expected arbitrary values, got %q", got)
	}
}

func TestScanTSV(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "data.tsv", "a\tb\n1\t2\n")
	doc, err := NewScanner().ScanFile(p, "drive")
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if doc.FileType != "tsv" || len(doc.Columns) != 2 {
		t.Fatalf("unexpected tsv doc %+v", doc)
	}
}

func TestScanJSONArray(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "readings.json",
		`[{"sensor":"t1","value":20.5},{"sensor":"t2","value":21.0}]`)

	doc, err := NewScanner().ScanFile(p, "box")
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if doc.RowCount != 2 {
		t.Fatalf("expected 2 rows, got %d", doc.RowCount)
	}
	if len(doc.Columns) != 2 || doc.Columns[0] != "sensor" {
		t.Fatalf("unexpected columns %v", doc.Columns)
	}
	if doc.SampleRows[0]["value"] != "20.5" {
		t.Fatalf("unexpected sample %v", doc.SampleRows[0])
	}
}

func TestScanUnsupportedShapeStillCataloged(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "notes.txt", "free text notes about the experiment")

	doc, err := NewScanner().ScanFile(p, "local")
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if doc.FileType != "txt" || doc.SizeBytes == 0 {
		t.Fatalf("expected size-level metadata, got %+v", doc)
	}
	if len(doc.Columns) != 0 {
		t.Fatalf("txt files should have no columns, got %v", doc.Columns)
	}
}

func TestScanDirSkipsHiddenAndForeign(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "x\n1\n")
	writeFile(t, dir, "ignore.bin", "binary")
	hidden := filepath.Join(dir, ".snapshots")
	if err := os.MkdirAll(hidden, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, hidden, "b.csv", "y\n2\n")

	docs, err := NewScanner().ScanDir(dir, "local")
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}
	if len(docs) != 1 || docs[0].FileName != "a.csv" {
		t.Fatalf("expected only a.csv, got %+v", docs)
	}
}

func TestMirrorConnectorList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "x\n1\n")
	writeFile(t, dir, "b.txt", "notes")
	writeFile(t, dir, "skip.bin", "nope")

	c := NewMirrorConnector("drive", dir)
	if c.Name() != "drive" {
		t.Fatalf("unexpected name %s", c.Name())
	}
	paths, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 data files, got %v", paths)
	}
}

func TestScanFileWithHead(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "mice.csv",
		"id,group,weight\n1,control,30.1\n2,treated,28.4\n3,control,31.0\n")

	s := NewScanner()
	head := []byte("id,group,weight\n1,control,30.1\n")
	doc, err := s.ScanFileWithHead(p, "upload", head)
	if err != nil {
		t.Fatalf("ScanFileWithHead: %v", err)
	}
	if len(doc.Columns) != 3 || doc.Columns[2] != "weight" {
		t.Fatalf("unexpected columns %v", doc.Columns)
	}
	// the preview comes from head, the size from disk
	if doc.RowCount != 1 {
		t.Fatalf("expected 1 row from head, got %d", doc.RowCount)
	}
	if doc.SizeBytes == 0 {
		t.Fatalf("expected on-disk size, got %+v", doc)
	}
	if doc.SampleRows[0]["group"] != "control" {
		t.Fatalf("unexpected sample %v", doc.SampleRows)
	}
}
