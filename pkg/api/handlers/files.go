package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sidharthgd/LabVerse/pkg/ingest"
	"github.com/sidharthgd/LabVerse/pkg/models"
	"github.com/sidharthgd/LabVerse/pkg/utils"

	"github.com/gorilla/mux"
)

const maxUploadBytes = 100 << 20 // 100 MiB

// uploadHeadBytes caps how much of an upload is kept in memory for the
// response preview and the indexing payload.
const uploadHeadBytes = 64 << 10

// RegisterFiles registers the catalog browsing endpoints.
func RegisterFiles(r *mux.Router) {
	r.HandleFunc("/files", listFiles).Methods(http.MethodGet)
	r.HandleFunc("/datasets", listDatasets).Methods(http.MethodGet)
}

// listFiles handles GET /api/v1/files. Optional query parameters:
//   - "type": filter by file type (csv, xlsx, json, ...)
//   - "q": case-insensitive substring match on the file name
func listFiles(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	typeQ := strings.ToLower(r.URL.Query().Get("type"))
	nameQ := strings.ToLower(r.URL.Query().Get("q"))

	var out []models.FileInfo
	for _, d := range deps.Index.Documents() {
		if typeQ != "" && strings.ToLower(d.FileType) != typeQ {
			continue
		}
		if nameQ != "" && !strings.Contains(strings.ToLower(d.FileName), nameQ) {
			continue
		}
		out = append(out, models.FileInfo{
			ID:       d.ID,
			Name:     d.FileName,
			Type:     d.FileType,
			Size:     d.SizeBytes,
			Modified: time.Unix(0, d.ModifiedTS).UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	_ = json.NewEncoder(w).Encode(map[string]any{"files": out, "count": len(out)})
}

// listDatasets handles GET /api/v1/datasets, returning the richer per-file
// metadata (columns, row counts, sources).
func listDatasets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var out []models.DatasetInfo
	for _, d := range deps.Index.Documents() {
		out = append(out, models.DatasetInfo{
			ID:          d.ID,
			Name:        d.FileName,
			FileType:    d.FileType,
			Columns:     d.Columns,
			ColumnDescs: d.ColumnDescs,
			RowCount:    d.RowCount,
			SizeBytes:   d.SizeBytes,
			Source:      d.Source,
			Description: d.Description,
			Modified:    time.Unix(0, d.ModifiedTS).UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	_ = json.NewEncoder(w).Encode(map[string]any{"datasets": out, "count": len(out)})
}

// legacyFiles handles GET /files with the same payload as /api/v1/files.
func legacyFiles(w http.ResponseWriter, r *http.Request) {
	listFiles(w, r)
}

// uploadFile handles POST /upload (multipart form, field "file"). The file
// lands in the data directory and is queued for indexing; CSV uploads get a
// small head preview in the response.
func uploadFile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if deps.DataDir == "" {
		http.Error(w, `{"error":"no data directory configured"}`, http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `{"error":"multipart field 'file' is required"}`, http.StatusBadRequest)
		return
	}
	defer f.Close()

	name := filepath.Base(hdr.Filename)
	if name == "" || name == "." || name == string(os.PathSeparator) {
		http.Error(w, `{"error":"invalid file name"}`, http.StatusBadRequest)
		return
	}
	dst := filepath.Join(deps.DataDir, name)
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var head bytes.Buffer
	headN, err := io.Copy(out, io.TeeReader(io.LimitReader(f, uploadHeadBytes), &head))
	if err != nil {
		out.Close()
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	restN, err := io.Copy(out, f)
	if err != nil {
		out.Close()
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out.Close()

	headBytes := head.Bytes()
	if restN > 0 || headN == uploadHeadBytes {
		// truncated capture: drop the partial last row
		if i := bytes.LastIndexByte(headBytes, '\n'); i >= 0 {
			headBytes = headBytes[:i+1]
		} else {
			headBytes = nil
		}
	}

	resp := map[string]any{
		"message": fmt.Sprintf("%s uploaded, indexing started", name),
		"file":    name,
	}
	if strings.EqualFold(filepath.Ext(name), ".csv") && len(headBytes) > 0 {
		if preview, err := csvHead(bytes.NewReader(headBytes), 5); err == nil {
			resp["preview"] = preview
		}
	}

	var payload []byte
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv":
		payload = headBytes
	}
	if err := enqueueIndex(r, dst, "upload", payload); err != nil {
		http.Error(w, `{"error":"ingest queue full, try again later"}`, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(resp)
}

// csvHead reads the header plus up to n rows for the upload preview.
func csvHead(src io.Reader, n int) ([][]string, error) {
	rd := csv.NewReader(src)
	rd.FieldsPerRecord = -1
	var rows [][]string
	for len(rows) <= n {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func enqueueIndex(r *http.Request, path, source string, payload []byte) error {
	return deps.Queue.TryEnqueue(&ingest.Op{
		Type:    ingest.OpIndex,
		Source:  source,
		Path:    path,
		DocID:   utils.GenDocID(path),
		Payload: payload,
		TS:      time.Now().UTC().UnixNano(),
	})
}
