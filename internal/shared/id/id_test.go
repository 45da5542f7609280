package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSession(t *testing.T) {
	a := NewSession()
	b := NewSession()

	assert.NotEqual(t, a, b)
	assert.True(t, IsSession(a))
	assert.True(t, IsSession(b))
}

func TestIsSession(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid", NewSession(), true},
		{"empty", "", false},
		{"bare prefix", "sess_", false},
		{"wrong prefix", "app_123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSession(tt.input))
		})
	}
}
