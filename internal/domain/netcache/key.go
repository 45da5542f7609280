package netcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// criticalHeaders are the request headers that participate in the fingerprint,
// with their key labels. Anything else (user-agent rotation, tracing headers)
// must not change the key.
var criticalHeaders = []struct {
	name  string
	label string
}{
	{"content-type", "ct"},
	{"accept", "ac"},
	{"authorization", "au"},
	{"cookie", "ck"},
}

// ComputeKey derives the deterministic cache fingerprint for a request.
// It is a pure function: identical inputs produce identical keys across
// capture and replay, and across process runs.
func ComputeKey(method, url string, headers map[string]string, body []byte) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('|')
	b.WriteString(url)

	for _, h := range criticalHeaders {
		b.WriteByte('|')
		b.WriteString(h.label)
		b.WriteByte('=')
		b.WriteString(headerValue(headers, h.name))
	}

	if len(body) > 0 {
		sum := sha256.Sum256(body)
		b.WriteString("|b=")
		b.WriteString(hex.EncodeToString(sum[:])[:16])
	}

	return b.String()
}

// KeyForResponse recomputes the fingerprint of a captured exchange.
func KeyForResponse(r *Response) string {
	return ComputeKey(r.Method, r.URL, r.RequestHeaders, r.RequestBody)
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// truncate shortens a key for log lines.
func truncate(key string) string {
	if len(key) <= 96 {
		return key
	}
	return fmt.Sprintf("%s…(%d)", key[:96], len(key))
}
