package ingest

import (
	"time"

	"github.com/sidharthgd/LabVerse/pkg/telemetry"
)

// StartMonitor periodically exports queue depth until stop closes.
func StartMonitor(q *Queue, stop <-chan struct{}) {
	go func() {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				telemetry.SetIngestQueueDepth(q.Len())
			case <-stop:
				return
			}
		}
	}()
}
