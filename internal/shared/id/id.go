// Package id provides centralized ID generation for the service.
//
// Session identifiers are prefixed UUIDs (sess_*) so log lines and client
// payloads are self-describing.
package id

import (
	"strings"

	"github.com/google/uuid"
)

const sessionPrefix = "sess"

// NewSession returns a new unique session identifier.
func NewSession() string {
	return sessionPrefix + "_" + uuid.NewString()
}

// IsSession reports whether s looks like a session identifier.
func IsSession(s string) bool {
	return strings.HasPrefix(s, sessionPrefix+"_") && len(s) > len(sessionPrefix)+1
}
