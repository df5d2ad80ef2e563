package handlers

import (
	"net/http"
	"strconv"

	"github.com/sidharthgd/LabVerse/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterSessions registers the conversation management routes.
func RegisterSessions(r *mux.Router) {
	r.HandleFunc("/sessions", listSessions).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", getSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", deleteSession).Methods(http.MethodDelete)
}

// listSessions handles GET /api/v1/sessions, most recently active first.
func listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := deps.Sessions.List()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"sessions": sessions, "count": len(sessions)})
}

// getSession handles GET /api/v1/sessions/{id}. The optional "turns" query
// parameter includes up to that many recent turns in the response.
func getSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := deps.Sessions.Get(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "session not found")
		return
	}
	out := map[string]any{"session": sess}
	if tq := r.URL.Query().Get("turns"); tq != "" {
		n, err := strconv.Atoi(tq)
		if err != nil || n < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid turns parameter")
			return
		}
		turns, err := deps.Sessions.History(id, n)
		if err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out["turns"] = turns
	}
	_ = utils.JSONWrite(w, http.StatusOK, out)
}

// deleteSession handles DELETE /api/v1/sessions/{id}, removing the session
// and its turn history.
func deleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := deps.Sessions.Get(id); err != nil {
		utils.JSONError(w, http.StatusNotFound, "session not found")
		return
	}
	if err := deps.Sessions.Delete(id); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"deleted": id})
}
