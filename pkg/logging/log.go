// Package logging holds request-logging helpers that must not leak
// credentials into log sinks.
package logging

import (
	"net/http"
	"strings"

	"github.com/sidharthgd/LabVerse/pkg/logger"
)

var sensitiveHeaders = []string{"authorization", "x-api-key", "cookie"}

// SafeHeaders flattens request headers for logging, redacting credential
// headers. Only the first value per header is kept.
func SafeHeaders(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.Header))
	for k, vals := range r.Header {
		if len(vals) == 0 {
			continue
		}
		v := vals[0]
		lk := strings.ToLower(k)
		for _, s := range sensitiveHeaders {
			if lk == s {
				v = "<redacted>"
				break
			}
		}
		out[k] = v
	}
	return out
}

// LogRequest emits a one-line summary of an incoming request with
// credentials redacted.
func LogRequest(r *http.Request) {
	logger.Info("incoming_request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote", r.RemoteAddr,
		"headers", SafeHeaders(r))
}
