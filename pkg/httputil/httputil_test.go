package httputil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateURL(t *testing.T) {
	tests := []struct {
		name     string
		scheme   string
		endpoint string
		path     string
		want     string
		wantErr  bool
	}{
		{"https with path", "https", "discovery.example.com", "/v1/getappinstlist", "https://discovery.example.com/v1/getappinstlist", false},
		{"default scheme", "", "edge.example.com:8080", "", "http://edge.example.com:8080", false},
		{"port only", "http", ":38001", "/v1/registerclient", "http://localhost:38001/v1/registerclient", false},
		{"existing scheme replaced", "https", "http://edge.example.com:443", "", "https://edge.example.com:443", false},
		{"ipv6", "http", "[::1]:8080", "/", "http://[::1]:8080/", false},
		{"trailing path on endpoint dropped", "http", "edge.example.com/ignored", "/x", "http://edge.example.com/x", false},
		{"empty", "http", "", "", "", true},
		{"whitespace", "http", "   ", "", "", true},
		{"bad port", "http", "edge.example.com:port", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CreateURL(tt.scheme, tt.endpoint, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWebSocketURL(t *testing.T) {
	u, err := WebSocketURL("edge.example.com", 443, "/edge-events", true)
	require.NoError(t, err)
	assert.Equal(t, "wss://edge.example.com:443/edge-events", u)

	u, err = WebSocketURL("127.0.0.1", 8080, "/edge-events", false)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8080/edge-events", u)
}
