package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leptonai/edgeprobe/pkg/nettest"
	"github.com/leptonai/edgeprobe/pkg/server"
)

type source []*nettest.Site

func (s source) Ranked() []*nettest.Site { return s }

func TestStatusClientAgainstServer(t *testing.T) {
	site := nettest.NewSite("edge.example.com", 443, nettest.ProbeKindConnect)
	site.AddSample(25, time.Now())

	srv, err := server.New("127.0.0.1:0", source{site})
	require.NoError(t, err)
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, BlockUntilServerReady(ctx, srv.Addr()))
	require.NoError(t, CheckHealthz(ctx, srv.Addr()))

	for _, opts := range [][]OpOption{nil, {WithAcceptYAML()}} {
		lats, err := GetSites(ctx, srv.Addr(), opts...)
		require.NoError(t, err)
		require.Len(t, lats, 1)
		assert.Equal(t, "edge.example.com:443", lats[0].Site)
		assert.Equal(t, 25.0, lats[0].MeanMilliseconds)
	}
}

func TestCheckHealthzUnexpected(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		errMsg  string
	}{
		{
			name: "non-200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			errMsg: "response not 200",
		},
		{
			name: "unexpected body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
			},
			errMsg: "unexpected healthz response",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			err := CheckHealthz(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestBlockUntilServerReadyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, BlockUntilServerReady(ctx, srv.URL), ErrServerNotReady)
}
