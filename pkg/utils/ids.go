package utils

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var idSeq uint64

// GenSessionID returns a new random session identifier.
func GenSessionID() string {
	return uuid.NewString()
}

// GenTurnID generates a unique turn ID using the current UTC nanosecond
// timestamp and an atomic sequence number. The format is "turn-<timestamp>-<seq>".
func GenTurnID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("turn-%d-%d", n, s)
}

// GenDocID derives a stable document identifier for a file path. Stability
// matters so reindex runs overwrite rather than duplicate catalog entries.
func GenDocID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("labverse:doc:"+path)).String()
}

// GenRequestID returns a short unique identifier for ingest jobs and
// similar transient records.
func GenRequestID() string {
	return uuid.NewString()
}
