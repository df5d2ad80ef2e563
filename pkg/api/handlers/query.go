package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sidharthgd/LabVerse/pkg/models"
	"github.com/sidharthgd/LabVerse/pkg/telemetry"
	"github.com/sidharthgd/LabVerse/pkg/utils"
	"github.com/sidharthgd/LabVerse/pkg/validation"

	"github.com/gorilla/mux"
)

// RegisterQuery registers the conversational endpoint.
func RegisterQuery(r *mux.Router) {
	r.HandleFunc("/query", runQuery).Methods(http.MethodPost)
}

// runQuery handles POST /api/v1/query. The body carries the user query,
// an optional session id to continue a conversation, and an optional
// free-form context map.
func runQuery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	telemetry.SetRequestOp(r.Context(), "run_query")

	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if err := validation.ValidateQuery(req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := deps.Assistant.RunQuery(r.Context(), req)
	_ = json.NewEncoder(w).Encode(resp)
}

// legacyChat handles POST /chat with the same body and response shape as
// /api/v1/query.
func legacyChat(w http.ResponseWriter, r *http.Request) {
	runQuery(w, r)
}
