package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/models"
)

var db *pebble.DB
var dbPath string

// seq provides a small counter to reduce key collisions when multiple
// turns share the same nanosecond timestamp.
var seq uint64

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// SaveSession stores session metadata under a reserved key.
func SaveSession(sessionID, data string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	key := []byte("session:" + sessionID + ":meta")
	if err := db.Set(key, []byte(data), pebble.Sync); err != nil {
		logger.Error("save_session_failed", "session", sessionID, "error", err)
		return err
	}
	logger.Debug("session_saved", "session", sessionID)
	return nil
}

// GetSession returns the stored session metadata JSON for a given session ID.
func GetSession(sessionID string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	key := []byte("session:" + sessionID + ":meta")
	v, closer, err := db.Get(key)
	if err != nil {
		return "", err
	}
	if closer != nil {
		defer closer.Close()
	}
	return string(v), nil
}

// DeleteSession removes the session metadata and all stored turns.
func DeleteSession(sessionID string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("session:" + sessionID + ":")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		k := append([]byte(nil), iter.Key()...)
		if err := db.Delete(k, pebble.Sync); err != nil {
			logger.Error("delete_session_key_failed", "session", sessionID, "key", string(k), "error", err)
			return err
		}
	}
	logger.Info("session_deleted", "session", sessionID)
	return iter.Error()
}

// ListSessions returns all saved session metadata values.
func ListSessions() ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("session:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		k := string(iter.Key())
		if strings.HasSuffix(k, ":meta") {
			v := append([]byte(nil), iter.Value()...)
			out = append(out, string(v))
		}
	}
	return out, iter.Error()
}

// AppendTurn appends a completed turn to a session by inserting a new key
// with a sortable timestamp prefix. Turns are ordered by insertion time.
func AppendTurn(sessionID string, turn models.Turn) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	// Key format: session:<sessionID>:turn:<unix_nano_padded>-<seq>
	ts := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&seq, 1)
	key := fmt.Sprintf("session:%s:turn:%020d-%06d", sessionID, ts, s)

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("append_turn_failed", "session", sessionID, "key", key, "error", err)
		return err
	}
	logger.Debug("turn_appended", "session", sessionID, "key", key, "turn_id", turn.ID)
	return nil
}

// ListTurns returns all turns for a session in insertion order. An optional
// limit caps the number of returned turns (earliest first).
func ListTurns(sessionID string, limit ...int) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("session:" + sessionID + ":turn:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	max := -1
	if len(limit) > 0 {
		max = limit[0]
	}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		out = append(out, string(v))
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, iter.Error()
}

// CountTurns returns the number of stored turns for a session.
func CountTurns(sessionID string) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("session:" + sessionID + ":turn:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		n++
	}
	return n, iter.Error()
}

// SaveDocument stores a catalog document under its ID.
func SaveDocument(docID, data string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	key := []byte("doc:" + docID)
	if err := db.Set(key, []byte(data), pebble.Sync); err != nil {
		logger.Error("save_document_failed", "doc", docID, "error", err)
		return err
	}
	logger.Debug("document_saved", "doc", docID)
	return nil
}

// GetDocument returns the stored document JSON for a given document ID.
func GetDocument(docID string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte("doc:" + docID))
	if err != nil {
		return "", err
	}
	if closer != nil {
		defer closer.Close()
	}
	return string(v), nil
}

// DeleteDocument removes a document and its embedding vector.
func DeleteDocument(docID string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if err := db.Delete([]byte("doc:"+docID), pebble.Sync); err != nil {
		logger.Error("delete_document_failed", "doc", docID, "error", err)
		return err
	}
	if err := db.Delete([]byte("vec:"+docID), pebble.Sync); err != nil {
		logger.Error("delete_vector_failed", "doc", docID, "error", err)
		return err
	}
	logger.Info("document_deleted", "doc", docID)
	return nil
}

// ListDocuments returns all saved document values.
func ListDocuments() ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("doc:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		out = append(out, string(v))
	}
	return out, iter.Error()
}

// SaveVector stores the embedding vector for a document as a JSON float array.
func SaveVector(docID string, vec []float32) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to marshal vector: %w", err)
	}
	if err := db.Set([]byte("vec:"+docID), data, pebble.Sync); err != nil {
		logger.Error("save_vector_failed", "doc", docID, "error", err)
		return err
	}
	return nil
}

// GetVector loads the stored embedding vector for a document.
func GetVector(docID string) ([]float32, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte("vec:" + docID))
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer.Close()
	}
	var vec []float32
	if err := json.Unmarshal(v, &vec); err != nil {
		return nil, fmt.Errorf("invalid vector JSON: %w", err)
	}
	return vec, nil
}

// ListVectors walks all stored vectors and calls fn with each document ID
// and vector. Iteration stops on the first error from fn.
func ListVectors(fn func(docID string, vec []float32) error) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("vec:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		id := strings.TrimPrefix(string(iter.Key()), "vec:")
		var vec []float32
		if err := json.Unmarshal(iter.Value(), &vec); err != nil {
			logger.Error("vector_unmarshal_failed", "doc", id, "error", err)
			continue
		}
		if err := fn(id, vec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// ListKeys returns all keys (as strings) that start with the given prefix.
// If prefix is empty it returns all keys in the DB.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	var pfx []byte
	if prefix != "" {
		pfx = []byte(prefix)
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	if pfx == nil {
		for iter.First(); iter.Valid(); iter.Next() {
			k := append([]byte(nil), iter.Key()...)
			out = append(out, string(k))
		}
	} else {
		for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
			if !bytes.HasPrefix(iter.Key(), pfx) {
				break
			}
			k := append([]byte(nil), iter.Key()...)
			out = append(out, string(k))
		}
	}
	return out, iter.Error()
}

// GetKey returns the raw value for the given key.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return "", err
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Debug("get_key_ok", "key", key, "len", len(v))
	return string(v), nil
}

// SaveKey stores an arbitrary key/value pair. Use with caution; callers should
// choose a safe namespace (e.g. "system:").
func SaveKey(key string, value []byte) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if err := db.Set([]byte(key), value, pebble.Sync); err != nil {
		logger.Error("save_key_failed", "key", key, "error", err)
		return err
	}
	logger.Debug("save_key_ok", "key", key, "len", len(value))
	return nil
}

// DeleteKey removes an arbitrary key.
func DeleteKey(key string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Delete([]byte(key), pebble.Sync)
}

// DBIter returns a raw Pebble iterator for low-level operations. Caller must
// close the iterator when done.
func DBIter() (*pebble.Iterator, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.NewIter(&pebble.IterOptions{})
}

// DBSet writes a raw key (bytes) into the DB. This is a low-level helper used
// by admin utilities.
func DBSet(key, value []byte) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Set(key, value, pebble.Sync)
}

// likelyJSON heuristically determines if a byte slice probably contains a
// JSON object or array by checking the first non-whitespace character.
func likelyJSON(b []byte) bool {
	for _, c := range b {
		if c == ' ' || c == '\n' || c == '\r' || c == '\t' {
			continue
		}
		return c == '{' || c == '['
	}
	return false
}

// LikelyJSON is an exported version of likelyJSON, allowing other packages to
// check if a byte slice likely contains JSON data.
func LikelyJSON(b []byte) bool { return likelyJSON(b) }
