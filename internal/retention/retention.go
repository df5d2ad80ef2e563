// Package retention runs the scheduled maintenance sweep: purging idle
// sessions and optionally reindexing the catalog.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"github.com/sidharthgd/LabVerse/pkg/config"
	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/models"
	"github.com/sidharthgd/LabVerse/pkg/state"
	"github.com/sidharthgd/LabVerse/pkg/store"
)

var storedEff *config.EffectiveConfigResult

// PurgeHook is called after a session is removed so in-memory caches can
// drop it.
type PurgeHook func(sessionID string)

// ReindexHook triggers a catalog rescan.
type ReindexHook func(ctx context.Context) error

var (
	purgeHook   PurgeHook
	reindexHook ReindexHook
)

// SetHooks registers the cache-eviction and reindex callbacks.
func SetHooks(purge PurgeHook, reindex ReindexHook) {
	purgeHook = purge
	reindexHook = reindex
}

// SetEffectiveConfig stores the effective config so tests (or admin triggers)
// can invoke retention runs on-demand.
func SetEffectiveConfig(eff config.EffectiveConfigResult) {
	storedEff = &eff
}

// RunImmediate triggers a single retention run using the stored effective
// config. Returns an error if no effective config was registered.
func RunImmediate() error {
	if storedEff == nil {
		return fmt.Errorf("no effective config registered for retention run")
	}
	if state.PathsVar.Retention == "" {
		return fmt.Errorf("state paths not initialized")
	}
	return runOnce(context.Background(), *storedEff, state.PathsVar.Retention)
}

// Start starts the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, eff config.EffectiveConfigResult) (context.CancelFunc, error) {
	ret := eff.Config.Retention

	if !ret.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	// Stable retention folder under the DB path for lock and run artifacts.
	retentionPath := state.PathsVar.Retention
	if err := os.MkdirAll(retentionPath, 0o700); err != nil {
		logger.Error("retention_path_create_failed", "path", retentionPath, "error", err)
		return nil, err
	}

	// map empty cron to default daily @02:00
	cronExpr := ret.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", ret.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", ret.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "max_idle", ret.MaxIdle, "path", retentionPath)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, eff, retentionPath, cronExpr)
	logger.Info("retention_scheduler_started", "path", retentionPath)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured cron
// expression and sleeps until that time.
func runScheduler(ctx context.Context, eff config.EffectiveConfigResult, runPath string, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("retention_scheduler_stopping")
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			go func() {
				if err := runOnce(ctx, eff, runPath); err != nil {
					logger.Error("retention_run_error", "error", err)
				}
			}()
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				logger.Info("retention_scheduler_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			go func() {
				if err := runOnce(ctx, eff, runPath); err != nil {
					logger.Error("retention_run_error", "error", err)
				}
			}()
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// runOnce performs one sweep: delete sessions idle beyond the cutoff, then
// reindex the catalog when configured. A lock file guards against
// overlapping runs; a summary of each run is written beside it.
func runOnce(ctx context.Context, eff config.EffectiveConfigResult, runPath string) error {
	lockPath := filepath.Join(runPath, "run.lock")
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			logger.Warn("retention_run_skipped", "reason", "lock_held", "path", lockPath)
			return nil
		}
		return fmt.Errorf("acquire retention lock: %w", err)
	}
	fmt.Fprintf(lock, "pid=%d started=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	lock.Close()
	defer os.Remove(lockPath)

	start := time.Now()
	cutoff := time.Now().Add(-eff.Config.RetentionMaxIdle()).UTC().UnixNano()

	vals, err := store.ListSessions()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	purged := 0
	for _, v := range vals {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var s models.Session
		if err := json.Unmarshal([]byte(v), &s); err != nil {
			continue
		}
		if s.LastActivityTS >= cutoff {
			continue
		}
		if err := store.DeleteSession(s.ID); err != nil {
			logger.Error("retention_purge_failed", "session", s.ID, "error", err)
			continue
		}
		if purgeHook != nil {
			purgeHook(s.ID)
		}
		if logger.Audit != nil {
			logger.Audit.Info("session_purged", "session", s.ID, "last_activity", s.LastActivityTS)
		} else {
			logger.Info("session_purged", "session", s.ID, "last_activity", s.LastActivityTS)
		}
		purged++
	}

	reindexed := false
	if eff.Config.Retention.Reindex && reindexHook != nil {
		if err := reindexHook(ctx); err != nil {
			logger.Error("retention_reindex_failed", "error", err)
		} else {
			reindexed = true
		}
	}

	summary := map[string]interface{}{
		"finished_at":     time.Now().UTC().Format(time.RFC3339),
		"duration_ms":     time.Since(start).Milliseconds(),
		"sessions_seen":   len(vals),
		"sessions_purged": purged,
		"reindexed":       reindexed,
	}
	if b, err := json.MarshalIndent(summary, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(runPath, "last_run.json"), b, 0o600)
	}
	logger.Info("retention_run_done", "purged", purged, "seen", len(vals), "reindexed", reindexed)
	return nil
}
