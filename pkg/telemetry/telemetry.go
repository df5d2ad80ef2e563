// Package telemetry records low-overhead request traces. Full traces are
// sampled; everything else only surfaces when it crosses the slow-request
// threshold. Trace lines land in state/telemetry/trace.jsonl through a
// background writer so the request path never blocks on disk.
package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sidharthgd/LabVerse/pkg/state"
	"github.com/sidharthgd/LabVerse/pkg/utils"
)

type traceKey struct{}

var (
	sampleEvery   int64 = 1000 // one full trace per N requests
	slowThreshold       = 200 * time.Millisecond

	reqCounter uint64
	lineCh     chan []byte
	lineOnce   sync.Once
)

// span is one timed stage inside a sampled request, relative to request
// start.
type span struct {
	Op      string         `json:"op"`
	StartMs int64          `json:"start_ms"`
	EndMs   int64          `json:"end_ms"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// trace accumulates spans for one sampled request.
type trace struct {
	RequestID string  `json:"request_id"`
	Op        string  `json:"op"`
	Status    int     `json:"status"`
	Duration  int64   `json:"duration_ms"`
	Slow      bool    `json:"slow,omitempty"`
	Spans     []*span `json:"spans,omitempty"`

	start time.Time
	mu    sync.Mutex
	open  []*span
}

// SetSampleRate configures roughly what fraction of requests get a full
// trace. Zero disables tracing; slow-request lines are still written.
func SetSampleRate(r float64) {
	if r <= 0 {
		atomic.StoreInt64(&sampleEvery, 0)
		return
	}
	if r >= 1 {
		atomic.StoreInt64(&sampleEvery, 1)
		return
	}
	atomic.StoreInt64(&sampleEvery, int64(1/r))
}

// SetSlowThreshold sets the duration above which unsampled requests still
// produce a trace line.
func SetSlowThreshold(d time.Duration) {
	if d > 0 {
		slowThreshold = d
	}
}

func startWriter() {
	lineCh = make(chan []byte, 512)
	go func() {
		dir := filepath.Join(state.PathsVar.State, "telemetry")
		if state.PathsVar.State == "" {
			dir = filepath.Join("state", "telemetry")
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return
		}
		f, err := os.OpenFile(filepath.Join(dir, "trace.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return
		}
		defer f.Close()
		for b := range lineCh {
			_, _ = f.Write(append(b, '\n'))
		}
	}()
}

func emit(t *trace) {
	lineOnce.Do(startWriter)
	b, err := json.Marshal(t)
	if err != nil {
		return
	}
	select {
	case lineCh <- b:
	default:
		// writer backed up; drop rather than stall the request
	}
}

func sampled() bool {
	every := atomic.LoadInt64(&sampleEvery)
	if every == 0 {
		return false
	}
	return int64(atomic.AddUint64(&reqCounter, 1))%every == 0
}

// Middleware times every request. Sampled requests carry a trace in their
// context so handlers and the pipeline can attach spans; the rest only get
// a line when they exceed the slow threshold.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := &trace{
			RequestID: utils.GenRequestID(),
			Op:        r.Method + " " + r.URL.Path,
			start:     time.Now(),
		}
		if sampled() || r.Header.Get("X-Debug-Trace") == "1" {
			r = r.WithContext(context.WithValue(r.Context(), traceKey{}, t))
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		dur := time.Since(t.start)
		t.Status = sw.status
		t.Duration = dur.Milliseconds()
		t.Slow = dur > slowThreshold

		if len(t.Spans) > 0 || t.Slow {
			emit(t)
		}
	})
}

// SetRequestOp renames the trace for the current request; handlers call
// this so traces read "run_query" rather than a raw method and path.
func SetRequestOp(ctx context.Context, op string) {
	t := fromContext(ctx)
	if t == nil {
		return
	}
	t.mu.Lock()
	t.Op = op
	t.mu.Unlock()
}

// StartSpan opens a named span on the current request's trace and returns
// the function that closes it. Without a sampled trace both are no-ops.
func StartSpan(ctx context.Context, op string) func() {
	t := fromContext(ctx)
	if t == nil {
		return func() {}
	}
	sp := &span{Op: op, StartMs: time.Since(t.start).Milliseconds()}
	t.mu.Lock()
	t.Spans = append(t.Spans, sp)
	t.open = append(t.open, sp)
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		sp.EndMs = time.Since(t.start).Milliseconds()
		if n := len(t.open); n > 0 && t.open[n-1] == sp {
			t.open = t.open[:n-1]
		}
		t.mu.Unlock()
	}
}

// SetSpanData attaches a key/value to the innermost open span.
func SetSpanData(ctx context.Context, key string, value any) {
	t := fromContext(ctx)
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.open) == 0 {
		return
	}
	sp := t.open[len(t.open)-1]
	if sp.Fields == nil {
		sp.Fields = make(map[string]any)
	}
	sp.Fields[key] = value
}

func fromContext(ctx context.Context) *trace {
	t, _ := ctx.Value(traceKey{}).(*trace)
	return t
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
