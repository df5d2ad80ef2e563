// Package session manages conversation state. Sessions are write-through
// persisted so a restart resumes conversations instead of dropping them;
// an in-memory cache fronts the store for the hot path.
package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/models"
	"github.com/sidharthgd/LabVerse/pkg/store"
	"github.com/sidharthgd/LabVerse/pkg/utils"
)

// Manager owns session lifecycle and turn history access.
type Manager struct {
	mu    sync.Mutex
	cache map[string]*models.Session
}

// NewManager returns an empty manager; sessions load lazily from the store.
func NewManager() *Manager {
	return &Manager{cache: make(map[string]*models.Session)}
}

// GetOrCreate returns the session for id, loading it from the store or
// creating a fresh one when id is empty or unknown.
func (m *Manager) GetOrCreate(id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != "" {
		if s, ok := m.cache[id]; ok {
			return s, nil
		}
		if raw, err := store.GetSession(id); err == nil {
			var s models.Session
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				return nil, fmt.Errorf("invalid session JSON: %w", err)
			}
			if !s.Deleted {
				m.cache[id] = &s
				return &s, nil
			}
		}
	}
	now := time.Now().UTC().UnixNano()
	s := &models.Session{
		ID:             id,
		CreatedTS:      now,
		LastActivityTS: now,
		FocusedFiles:   map[string]models.FileContext{},
		GlobalFilters:  map[string]string{},
		Preferences:    models.DefaultPreferences(),
	}
	if s.ID == "" {
		s.ID = utils.GenSessionID()
	}
	if err := m.persistLocked(s); err != nil {
		return nil, err
	}
	m.cache[s.ID] = s
	logger.Info("session_created", "session", s.ID)
	return s, nil
}

// Get returns a session without creating one.
func (m *Manager) Get(id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.cache[id]; ok {
		return s, nil
	}
	raw, err := store.GetSession(id)
	if err != nil {
		return nil, err
	}
	var s models.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("invalid session JSON: %w", err)
	}
	if s.Deleted {
		return nil, fmt.Errorf("session deleted: %s", id)
	}
	m.cache[id] = &s
	return &s, nil
}

// StartTurn bumps the turn counter and activity timestamp, returning the
// new turn number.
func (m *Manager) StartTurn(s *models.Session) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.CurrentTurn++
	s.LastActivityTS = time.Now().UTC().UnixNano()
	if err := m.persistLocked(s); err != nil {
		return 0, err
	}
	return s.CurrentTurn, nil
}

// CompleteTurn appends the finished turn to the session history.
func (m *Manager) CompleteTurn(s *models.Session, turn models.Turn) error {
	if turn.ID == "" {
		turn.ID = utils.GenTurnID()
	}
	if turn.TS == 0 {
		turn.TS = time.Now().UTC().UnixNano()
	}
	turn.Session = s.ID
	if err := store.AppendTurn(s.ID, turn); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.LastSeq++
	s.LastActivityTS = time.Now().UTC().UnixNano()
	return m.persistLocked(s)
}

// AddFileFocus records that the conversation touched a file, refreshing
// the access time when it was already focused.
func (m *Manager) AddFileFocus(s *models.Session, filePath, fileName string, columns []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.FocusedFiles == nil {
		s.FocusedFiles = map[string]models.FileContext{}
	}
	fc, ok := s.FocusedFiles[filePath]
	if !ok {
		fc = models.FileContext{FilePath: filePath, FileName: fileName, Columns: columns}
	}
	if len(columns) > 0 {
		fc.Columns = columns
	}
	fc.LastAccessedTS = time.Now().UTC().UnixNano()
	s.FocusedFiles[filePath] = fc
	return m.persistLocked(s)
}

// History returns up to limit most recent turns, oldest first. limit <= 0
// returns everything.
func (m *Manager) History(sessionID string, limit int) ([]models.Turn, error) {
	vals, err := store.ListTurns(sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Turn, 0, len(vals))
	for _, v := range vals {
		var t models.Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			logger.Error("history_bad_turn", "session", sessionID, "error", err)
			continue
		}
		out = append(out, t)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ConversationContext returns the last five exchanges for prompt assembly.
func (m *Manager) ConversationContext(sessionID string) ([]models.Turn, error) {
	return m.History(sessionID, 5)
}

// SimilarPastQueries finds up to limit prior turns whose query shares at
// least two words with the given query, most recent first.
func (m *Manager) SimilarPastQueries(sessionID, query string, limit int) ([]models.Turn, error) {
	turns, err := m.History(sessionID, 0)
	if err != nil {
		return nil, err
	}
	qWords := wordSet(query)
	var hits []models.Turn
	for _, t := range turns {
		overlap := 0
		for w := range wordSet(t.UserQuery) {
			if _, ok := qWords[w]; ok {
				overlap++
			}
		}
		if overlap >= 2 {
			hits = append(hits, t)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].TS > hits[j].TS })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Touch refreshes the activity timestamp.
func (m *Manager) Touch(s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.LastActivityTS = time.Now().UTC().UnixNano()
	return m.persistLocked(s)
}

// List returns all live sessions from the store.
func (m *Manager) List() ([]models.Session, error) {
	vals, err := store.ListSessions()
	if err != nil {
		return nil, err
	}
	out := make([]models.Session, 0, len(vals))
	for _, v := range vals {
		var s models.Session
		if err := json.Unmarshal([]byte(v), &s); err != nil {
			continue
		}
		if s.Deleted {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityTS > out[j].LastActivityTS })
	return out, nil
}

// Delete removes a session and its turn history.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	delete(m.cache, id)
	m.mu.Unlock()
	return store.DeleteSession(id)
}

// Evict drops a session from the cache without touching the store. The
// retention sweeper uses this after purging idle sessions.
func (m *Manager) Evict(id string) {
	m.mu.Lock()
	delete(m.cache, id)
	m.mu.Unlock()
}

func (m *Manager) persistLocked(s *models.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return store.SaveSession(s.ID, string(b))
}

func wordSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) > 2 {
			out[w] = struct{}{}
		}
	}
	return out
}
