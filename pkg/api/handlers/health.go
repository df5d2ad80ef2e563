package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sidharthgd/LabVerse/pkg/store"

	"github.com/gorilla/mux"
)

// RegisterHealth registers the readiness endpoint.
func RegisterHealth(r *mux.Router) {
	r.HandleFunc("/health", getHealth).Methods(http.MethodGet)
}

// getHealth handles GET /api/v1/health. It reports overall status plus the
// state of the database and the search index. Status degrades, it never
// errors: a cold index still returns 200 so probes don't flap during
// startup indexing.
func getHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	dbOK := store.Ready()
	status := "healthy"
	if !dbOK {
		status = "unhealthy"
	} else if !deps.Index.Ready() {
		status = "degraded"
	}

	database := "connected"
	if !dbOK {
		database = "unavailable"
	}

	code := http.StatusOK
	if !dbOK {
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"database":  database,
		"index":     map[string]any{"documents": deps.Index.Len(), "ready": deps.Index.Ready()},
		"queue":     map[string]any{"depth": deps.Queue.Len(), "dropped": deps.Queue.Dropped()},
		"version":   deps.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
