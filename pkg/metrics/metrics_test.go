package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "metrics_test_gauge",
		Help: "test gauge",
	})
	MustRegister(g)
	g.Set(42)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), "metrics_test_gauge 42")
	assert.Contains(t, string(b), "go_goroutines")

	assert.Panics(t, func() { MustRegister(g) })
}

func TestGatherer(t *testing.T) {
	mfs, err := Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}
