// Package handlers implements the HTTP API. Dependencies are injected once
// at startup via Configure; individual RegisterX functions attach routes to
// a router.
package handlers

import (
	"github.com/sidharthgd/LabVerse/pkg/agent"
	"github.com/sidharthgd/LabVerse/pkg/index"
	"github.com/sidharthgd/LabVerse/pkg/ingest"
	"github.com/sidharthgd/LabVerse/pkg/session"

	"github.com/gorilla/mux"
)

// Deps holds the services handlers call into.
type Deps struct {
	Assistant *agent.Assistant
	Sessions  *session.Manager
	Index     *index.Index
	Queue     *ingest.Queue
	Sources   *ingest.Registry
	// DataDir receives files accepted through the upload endpoint.
	DataDir string
	Version string
}

var deps Deps

// Configure installs the handler dependencies. Must be called before any
// route is served.
func Configure(d Deps) { deps = d }

// RegisterAPI attaches the versioned API to r (expected to be the
// /api/v1 subrouter).
func RegisterAPI(r *mux.Router) {
	RegisterQuery(r)
	RegisterFiles(r)
	RegisterIngest(r)
	RegisterSessions(r)
	RegisterHealth(r)
}

// RegisterLegacy attaches the unversioned routes kept for older clients.
func RegisterLegacy(r *mux.Router) {
	r.HandleFunc("/chat", legacyChat).Methods("POST")
	r.HandleFunc("/files", legacyFiles).Methods("GET")
	r.HandleFunc("/upload", uploadFile).Methods("POST")
}
