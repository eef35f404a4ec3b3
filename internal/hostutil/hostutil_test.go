package hostutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"  ", ""},
		{"https://api.speedviz.test", "https://api.speedviz.test"},
		{"https://api.speedviz.test/", "https://api.speedviz.test"},
		{"http://localhost:3000", "http://localhost:3000"},
		{"localhost:3000", "http://localhost:3000"},
		{"127.0.0.1", "http://127.0.0.1"},
		{"[::1]:3000", "http://[::1]:3000"},
		{"app.localhost", "http://app.localhost"},
		{"api.speedviz.test", "https://api.speedviz.test"},
		{"api.speedviz.test/v1/", "https://api.speedviz.test/v1"},
		{"localhost.example.com", "https://localhost.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestHost(t *testing.T) {
	assert.Equal(t, "api.speedviz.test", Host("https://api.speedviz.test/v1"))
	assert.Equal(t, "localhost:8080", Host("localhost:8080"))
	assert.Equal(t, "127.0.0.1:5555", Host("http://127.0.0.1:5555"))
}

func TestIsSecure(t *testing.T) {
	assert.True(t, IsSecure("https://api.speedviz.test"))
	assert.True(t, IsSecure("http://localhost:3000"))
	assert.True(t, IsSecure("http://127.0.0.1:9"))
	assert.False(t, IsSecure("http://api.speedviz.test"))
}
