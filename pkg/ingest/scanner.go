package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/models"
	"github.com/sidharthgd/LabVerse/pkg/utils"
)

// dataExtensions are the file types the scanner admits into the catalog.
var dataExtensions = map[string]string{
	".csv":  "csv",
	".tsv":  "tsv",
	".json": "json",
	".txt":  "txt",
	".xlsx": "xlsx",
	".xls":  "xls",
}

const (
	sampleRowCount    = 2
	enumValueLimit    = 6
	previewRowScan    = 200
	maxScannedColumns = 100
)

// Scanner builds catalog documents from files on disk.
type Scanner struct{}

func NewScanner() *Scanner { return &Scanner{} }

// ScanDir walks root and returns a document for every data file found.
func (s *Scanner) ScanDir(root, source string) ([]models.Document, error) {
	var docs []models.Document
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := dataExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		doc, err := s.ScanFile(path, source)
		if err != nil {
			logger.Warn("scan_file_failed", "path", path, "error", err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	return docs, err
}

// ScanFile inspects one file and builds its catalog document. Tabular files
// get columns, per-column descriptions and sample rows; other formats get
// size-level metadata only.
func (s *Scanner) ScanFile(path, source string) (models.Document, error) {
	return s.scan(path, source, nil)
}

// ScanFileWithHead is ScanFile for callers that already hold the leading
// bytes of the file; the tabular preview parses head instead of re-reading
// from disk. head should end on a row boundary.
func (s *Scanner) ScanFileWithHead(path, source string, head []byte) (models.Document, error) {
	return s.scan(path, source, head)
}

func (s *Scanner) scan(path, source string, head []byte) (models.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Document{}, err
	}
	ftype := dataExtensions[strings.ToLower(filepath.Ext(path))]
	doc := models.Document{
		ID:         utils.GenDocID(path),
		FilePath:   path,
		FileName:   filepath.Base(path),
		FileType:   ftype,
		SizeBytes:  info.Size(),
		ModifiedTS: info.ModTime().UTC().UnixNano(),
		Source:     source,
	}

	switch ftype {
	case "csv", "tsv":
		if len(head) > 0 {
			err = scanDelimited(&doc, bytes.NewReader(head), ftype)
		} else {
			var f *os.File
			if f, err = os.Open(path); err == nil {
				err = scanDelimited(&doc, f, ftype)
				f.Close()
			}
		}
	case "json":
		err = scanJSON(&doc, path)
	}
	if err != nil {
		logger.Warn("scan_preview_failed", "path", path, "error", err)
	}
	doc.Description = describe(doc)
	return doc, nil
}

func scanDelimited(doc *models.Document, src io.Reader, ftype string) error {
	r := csv.NewReader(src)
	if ftype == "tsv" {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(header) > maxScannedColumns {
		header = header[:maxScannedColumns]
	}
	doc.Columns = append([]string(nil), header...)

	values := make([][]string, len(header))
	rows := 0
	for rows < previewRowScan {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		for i := range header {
			if i < len(rec) {
				values[i] = append(values[i], rec[i])
			}
		}
		if rows < sampleRowCount {
			sample := map[string]string{}
			for i, c := range header {
				if i < len(rec) {
					sample[c] = rec[i]
				}
			}
			doc.SampleRows = append(doc.SampleRows, sample)
		}
		rows++
	}
	doc.RowCount = rows
	doc.ColumnDescs = map[string]string{}
	for i, c := range header {
		doc.ColumnDescs[c] = describeColumn(values[i])
	}
	return nil
}

// describeColumn lists distinct values when there are few of them, which is
// what makes categorical columns searchable by value.
func describeColumn(values []string) string {
	distinct := map[string]bool{}
	for _, v := range values {
		distinct[v] = true
		if len(distinct) > enumValueLimit {
			return "arbitrary values"
		}
	}
	if len(distinct) == 0 {
		return "no values observed"
	}
	vals := make([]string, 0, len(distinct))
	for v := range distinct {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	return "one of: " + strings.Join(vals, ", ")
}

// scanJSON handles top-level arrays of flat objects, the common export shape.
func scanJSON(doc *models.Document, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var arr []map[string]interface{}
	dec := json.NewDecoder(io.LimitReader(f, 8*1024*1024))
	if err := dec.Decode(&arr); err != nil {
		return fmt.Errorf("not a JSON array of objects: %w", err)
	}
	if len(arr) == 0 {
		return nil
	}
	colSet := map[string]bool{}
	for i, obj := range arr {
		for k := range obj {
			colSet[k] = true
		}
		if i >= previewRowScan {
			break
		}
	}
	cols := make([]string, 0, len(colSet))
	for c := range colSet {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	doc.Columns = cols
	doc.RowCount = len(arr)

	for i := 0; i < len(arr) && i < sampleRowCount; i++ {
		sample := map[string]string{}
		for k, v := range arr[i] {
			sample[k] = fmt.Sprintf("%v", v)
		}
		doc.SampleRows = append(doc.SampleRows, sample)
	}
	return nil
}

func describe(doc models.Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s file %s", strings.ToUpper(doc.FileType), doc.FileName)
	if doc.RowCount > 0 {
		fmt.Fprintf(&sb, " with %d rows", doc.RowCount)
	}
	if len(doc.Columns) > 0 {
		cols := doc.Columns
		if len(cols) > 15 {
			cols = cols[:15]
		}
		fmt.Fprintf(&sb, ". Columns: %s", strings.Join(cols, ", "))
	}
	if doc.Source != "" {
		fmt.Fprintf(&sb, ". Source: %s", doc.Source)
	}
	return sb.String()
}
