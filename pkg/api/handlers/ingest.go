package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sidharthgd/LabVerse/pkg/ingest"

	"github.com/gorilla/mux"
)

// RegisterIngest registers the source sync triggers.
func RegisterIngest(r *mux.Router) {
	r.HandleFunc("/ingest/drive", ingestDrive).Methods(http.MethodPost)
	r.HandleFunc("/ingest/box", ingestBox).Methods(http.MethodPost)
}

// ingestDrive handles POST /api/v1/ingest/drive, queueing a sync of the
// Drive mirror. The scan runs in the background; the call returns 202.
func ingestDrive(w http.ResponseWriter, r *http.Request) {
	triggerSync(w, r, "drive")
}

// ingestBox handles POST /api/v1/ingest/box.
func ingestBox(w http.ResponseWriter, r *http.Request) {
	triggerSync(w, r, "box")
}

func triggerSync(w http.ResponseWriter, r *http.Request, source string) {
	w.Header().Set("Content-Type", "application/json")

	if _, ok := deps.Sources.Get(source); !ok {
		http.Error(w, `{"error":"source `+source+` is not configured"}`, http.StatusNotFound)
		return
	}
	op := &ingest.Op{
		Type:   ingest.OpSync,
		Source: source,
		TS:     time.Now().UTC().UnixNano(),
	}
	if err := deps.Queue.TryEnqueue(op); err != nil {
		http.Error(w, `{"error":"ingest queue full, try again later"}`, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": source + " ingestion started",
		"source":  source,
	})
}
