// Package migrate performs version-gated upgrade work against the store.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/models"
	"github.com/sidharthgd/LabVerse/pkg/store"
)

const (
	systemVersionKey    = "system:version"
	systemInProgressKey = "system:migration_in_progress"
)

// Sync performs upgrade work between versions. Edit in-place for migration logic.
func Sync(ctx context.Context, from, to string) error {
	logger.Info("migrate_sync_start", "from", from, "to", to)

	// Migration: initialize CurrentTurn for sessions that lack it by
	// counting stored turns. Idempotent and safe to run multiple times.
	vals, err := store.ListSessions()
	if err != nil {
		logger.Error("migrate_list_sessions_failed", "error", err)
		return err
	}
	for _, s := range vals {
		var sess models.Session
		if err := json.Unmarshal([]byte(s), &sess); err != nil {
			logger.Error("migrate_unmarshal_session_failed", "error", err)
			continue
		}
		if sess.CurrentTurn != 0 {
			continue
		}
		n, err := store.CountTurns(sess.ID)
		if err != nil {
			logger.Error("migrate_count_turns_failed", "session", sess.ID, "error", err)
			continue
		}
		if n == 0 {
			continue
		}
		sess.CurrentTurn = n
		sess.LastSeq = uint64(n)
		nb, _ := json.Marshal(sess)
		if err := store.SaveSession(sess.ID, string(nb)); err != nil {
			logger.Error("migrate_save_session_failed", "session", sess.ID, "error", err)
			continue
		}
		logger.Info("migrate_session_turns_initialized", "session", sess.ID, "turns", n)
	}

	logger.Info("migrate_sync_done", "from", from, "to", to)
	return nil
}

// Run checks for a version change and runs Sync if needed.
// Returns (invoked, error): invoked is true if Sync ran.
func Run(ctx context.Context, newVersion string) (bool, error) {
	stored, err := store.GetKey(systemVersionKey)
	if err != nil {
		stored = ""
	}
	logger.Info("migrate_version_check", "stored", stored, "running", newVersion)
	if stored == newVersion {
		logger.Info("migrate_noop", "version", newVersion)
		return false, nil
	}

	marker := map[string]string{
		"from":       stored,
		"to":         newVersion,
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}
	mb, _ := json.Marshal(marker)
	if err := store.SaveKey(systemInProgressKey, mb); err != nil {
		logger.Error("migrate_write_inprogress_failed", "error", err)
		return true, fmt.Errorf("failed to write in-progress marker: %w", err)
	}

	logger.Info("migrate_start_sync", "from", stored, "to", newVersion)
	if err := Sync(ctx, stored, newVersion); err != nil {
		logger.Error("migrate_sync_failed", "from", stored, "to", newVersion, "error", err)
		return true, err
	}

	if err := store.SaveKey(systemVersionKey, []byte(newVersion)); err != nil {
		logger.Error("migrate_persist_version_failed", "version", newVersion, "error", err)
		return true, fmt.Errorf("failed to persist new version: %w", err)
	}
	if err := store.DeleteKey(systemInProgressKey); err != nil {
		logger.Error("migrate_delete_inprogress_failed", "error", err)
	}

	logger.Info("migrate_version_persisted", "version", newVersion)
	return true, nil
}
