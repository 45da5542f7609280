package netcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeKeyDeterminism(t *testing.T) {
	headers := map[string]string{
		"content-type":  "application/json",
		"accept":        "*/*",
		"authorization": "Bearer tok",
		"cookie":        "sid=abc",
	}

	a := ComputeKey("POST", "https://api.example.com/v1", headers, []byte(`{"q":1}`))
	b := ComputeKey("POST", "https://api.example.com/v1", headers, []byte(`{"q":1}`))
	assert.Equal(t, a, b)
}

func TestComputeKeyIgnoresNonCriticalHeaders(t *testing.T) {
	base := map[string]string{"accept": "text/html"}
	extra := map[string]string{
		"accept":          "text/html",
		"user-agent":      "Mozilla/5.0",
		"x-request-id":    "trace-123",
		"accept-encoding": "gzip",
	}

	a := ComputeKey("GET", "https://example.com/", base, nil)
	b := ComputeKey("GET", "https://example.com/", extra, nil)
	assert.Equal(t, a, b)
}

func TestComputeKeyHeaderCaseInsensitive(t *testing.T) {
	a := ComputeKey("GET", "https://example.com/", map[string]string{"Content-Type": "text/plain"}, nil)
	b := ComputeKey("GET", "https://example.com/", map[string]string{"content-type": "text/plain"}, nil)
	assert.Equal(t, a, b)
}

func TestComputeKeyBodyChangesKey(t *testing.T) {
	headers := map[string]string{"content-type": "application/json"}

	a := ComputeKey("POST", "https://example.com/submit", headers, []byte(`{"v":1}`))
	b := ComputeKey("POST", "https://example.com/submit", headers, []byte(`{"v":2}`))
	c := ComputeKey("POST", "https://example.com/submit", headers, nil)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestComputeKeyDistinguishesMethodAndURL(t *testing.T) {
	tests := []struct {
		name             string
		method1, url1    string
		method2, url2    string
		expectSame       bool
	}{
		{"same", "GET", "https://a.com/x", "GET", "https://a.com/x", true},
		{"method differs", "GET", "https://a.com/x", "POST", "https://a.com/x", false},
		{"url differs", "GET", "https://a.com/x", "GET", "https://a.com/y", false},
		{"method case folded", "get", "https://a.com/x", "GET", "https://a.com/x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := ComputeKey(tt.method1, tt.url1, nil, nil)
			b := ComputeKey(tt.method2, tt.url2, nil, nil)
			if tt.expectSame {
				assert.Equal(t, a, b)
			} else {
				assert.NotEqual(t, a, b)
			}
		})
	}
}
