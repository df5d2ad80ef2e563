package migrate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sidharthgd/LabVerse/pkg/models"
	"github.com/sidharthgd/LabVerse/pkg/store"

	"github.com/stretchr/testify/assert"
)

func openStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func saveSession(t *testing.T, s models.Session) {
	t.Helper()
	b, _ := json.Marshal(s)
	if err := store.SaveSession(s.ID, string(b)); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
}

func TestSyncInitializesCurrentTurn(t *testing.T) {
	openStore(t)

	now := time.Now().UTC().Unix()
	saveSession(t, models.Session{ID: "s-old", CreatedTS: now, LastActivityTS: now})
	for i := 1; i <= 3; i++ {
		err := store.AppendTurn("s-old", models.Turn{
			ID:        "t" + string(rune('0'+i)),
			Session:   "s-old",
			UserQuery: "q",
			TS:        now,
		})
		if err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}
	saveSession(t, models.Session{ID: "s-new", CreatedTS: now, LastActivityTS: now, CurrentTurn: 5, LastSeq: 5})

	err := Sync(context.Background(), "", "1.0.0")
	assert.NoError(t, err)

	raw, err := store.GetSession("s-old")
	assert.NoError(t, err)
	var got models.Session
	assert.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, 3, got.CurrentTurn)
	assert.Equal(t, uint64(3), got.LastSeq)

	raw, err = store.GetSession("s-new")
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, 5, got.CurrentTurn)

	// running again changes nothing
	assert.NoError(t, Sync(context.Background(), "", "1.0.0"))
	raw, _ = store.GetSession("s-old")
	_ = json.Unmarshal([]byte(raw), &got)
	assert.Equal(t, 3, got.CurrentTurn)
}

func TestRunPersistsVersion(t *testing.T) {
	openStore(t)

	invoked, err := Run(context.Background(), "1.2.0")
	assert.NoError(t, err)
	assert.True(t, invoked)

	v, err := store.GetKey("system:version")
	assert.NoError(t, err)
	assert.Equal(t, "1.2.0", v)

	// in-progress marker is cleared on success
	_, err = store.GetKey("system:migration_in_progress")
	assert.Error(t, err)

	// same version again is a no-op
	invoked, err = Run(context.Background(), "1.2.0")
	assert.NoError(t, err)
	assert.False(t, invoked)
}
