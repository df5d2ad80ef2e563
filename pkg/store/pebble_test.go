package store

import (
	"encoding/json"
	"testing"

	"github.com/sidharthgd/LabVerse/pkg/models"
)

func openTemp(t *testing.T) {
	t.Helper()
	if err := Open(t.TempDir()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestSessionRoundTrip(t *testing.T) {
	openTemp(t)

	if err := SaveSession("s1", `{"id":"s1","current_turn":2}`); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	raw, err := GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	var s models.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.ID != "s1" || s.CurrentTurn != 2 {
		t.Fatalf("unexpected session %+v", s)
	}
}

func TestDeleteSessionRemovesTurns(t *testing.T) {
	openTemp(t)

	_ = SaveSession("s2", `{"id":"s2"}`)
	for i := 0; i < 3; i++ {
		if err := AppendTurn("s2", models.Turn{ID: "t", Session: "s2", UserQuery: "q"}); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}
	if n, _ := CountTurns("s2"); n != 3 {
		t.Fatalf("expected 3 turns, got %d", n)
	}

	if err := DeleteSession("s2"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := GetSession("s2"); err == nil {
		t.Fatalf("expected session gone")
	}
	if n, _ := CountTurns("s2"); n != 0 {
		t.Fatalf("expected turns gone, got %d", n)
	}
}

func TestListTurnsOrderAndLimit(t *testing.T) {
	openTemp(t)

	for _, q := range []string{"first", "second", "third"} {
		if err := AppendTurn("s3", models.Turn{UserQuery: q}); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}
	vals, err := ListTurns("s3")
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(vals) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(vals))
	}
	var first models.Turn
	_ = json.Unmarshal([]byte(vals[0]), &first)
	if first.UserQuery != "first" {
		t.Fatalf("expected insertion order, got %q", first.UserQuery)
	}

	limited, _ := ListTurns("s3", 2)
	if len(limited) != 2 {
		t.Fatalf("expected limit applied, got %d", len(limited))
	}
}

func TestListSessionsOnlyMeta(t *testing.T) {
	openTemp(t)

	_ = SaveSession("a", `{"id":"a"}`)
	_ = SaveSession("b", `{"id":"b"}`)
	_ = AppendTurn("a", models.Turn{UserQuery: "x"})

	vals, err := ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(vals) != 2 {
		t.Fatalf("expected 2 session values, got %d", len(vals))
	}
}

func TestDocumentAndVectorRoundTrip(t *testing.T) {
	openTemp(t)

	if err := SaveDocument("d1", `{"id":"d1","file_name":"mice.csv"}`); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	if err := SaveVector("d1", []float32{0.5, 0.25, -1}); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}

	raw, err := GetDocument("d1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	var d models.Document
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.FileName != "mice.csv" {
		t.Fatalf("unexpected doc %+v", d)
	}

	vec, err := GetVector("d1")
	if err != nil {
		t.Fatalf("GetVector: %v", err)
	}
	if len(vec) != 3 || vec[2] != -1 {
		t.Fatalf("unexpected vector %v", vec)
	}

	seen := 0
	if err := ListVectors(func(id string, v []float32) error {
		if id != "d1" || len(v) != 3 {
			t.Fatalf("unexpected vector entry %s %v", id, v)
		}
		seen++
		return nil
	}); err != nil {
		t.Fatalf("ListVectors: %v", err)
	}
	if seen != 1 {
		t.Fatalf("expected 1 vector, saw %d", seen)
	}

	if err := DeleteDocument("d1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := GetDocument("d1"); err == nil {
		t.Fatalf("expected document gone")
	}
}

func TestKeysHelpers(t *testing.T) {
	openTemp(t)

	if err := SaveKey("system:version", []byte("1.0.0")); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	v, err := GetKey("system:version")
	if err != nil || v != "1.0.0" {
		t.Fatalf("GetKey: %q %v", v, err)
	}
	keys, err := ListKeys("system:")
	if err != nil || len(keys) != 1 {
		t.Fatalf("ListKeys: %v %v", keys, err)
	}
	if err := DeleteKey("system:version"); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	if _, err := GetKey("system:version"); err == nil {
		t.Fatalf("expected key gone")
	}
}

func TestNotOpenedErrors(t *testing.T) {
	// no Open in this test; the global must be nil after prior cleanups
	if err := Close(); err != nil {
		t.Logf("close: %v", err)
	}
	if _, err := GetSession("nope"); err == nil {
		t.Fatalf("expected error before Open")
	}
	if Ready() {
		t.Fatalf("Ready should be false before Open")
	}
}

func TestDBSetAndIterRoundTrip(t *testing.T) {
	openTemp(t)

	if err := DBSet([]byte("raw:a"), []byte(`{"x":1}`)); err != nil {
		t.Fatalf("DBSet: %v", err)
	}
	if err := DBSet([]byte("raw:b"), []byte("plain")); err != nil {
		t.Fatalf("DBSet: %v", err)
	}

	it, err := DBIter()
	if err != nil {
		t.Fatalf("DBIter: %v", err)
	}
	defer it.Close()

	got := map[string]string{}
	for valid := it.First(); valid; valid = it.Next() {
		got[string(it.Key())] = string(it.Value())
	}
	if got["raw:a"] != `{"x":1}` || got["raw:b"] != "plain" {
		t.Fatalf("unexpected iteration %v", got)
	}
}

func TestLikelyJSON(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{`{"a":1}`, true},
		{"  \n\t[1,2]", true},
		{"plain text", false},
		{"", false},
	}
	for _, c := range cases {
		if got := LikelyJSON([]byte(c.in)); got != c.want {
			t.Fatalf("LikelyJSON(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
