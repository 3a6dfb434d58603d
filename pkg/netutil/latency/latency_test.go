package latency

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	"github.com/leptonai/edgeprobe/pkg/nettest"
)

func TestFromSites(t *testing.T) {
	inst := &apiv1.AppInstance{AppName: "game"}
	fast := nettest.NewSite("fast.example.com", 443, nettest.ProbeKindConnect,
		nettest.WithCandidate(inst, "cloudlet-a", apiv1.Loc{}))
	now := time.Now()
	fast.AddSample(10, now.Add(-time.Minute))
	fast.AddSample(20, now)

	never := nettest.NewSite("down.example.com", 0, nettest.ProbeKindPing)

	lats := FromSites([]*nettest.Site{fast, never})
	require.Len(t, lats, 2)

	assert.Equal(t, "fast.example.com:443", lats[0].Site)
	assert.Equal(t, "CONNECT", lats[0].Kind)
	assert.Equal(t, "cloudlet-a", lats[0].CloudletName)
	assert.Equal(t, "game", lats[0].AppName)
	assert.Equal(t, 2, lats[0].Samples)
	assert.Equal(t, 15*time.Millisecond, lats[0].Mean.Duration)
	require.NotNil(t, lats[0].LastSampleAt)
	assert.True(t, lats[0].LastSampleAt.Time.Equal(now))

	assert.Equal(t, "down.example.com", lats[1].Site)
	assert.Equal(t, 0, lats[1].Samples)
	assert.Nil(t, lats[1].LastSampleAt)
}

func TestClosest(t *testing.T) {
	lats := Latencies{
		{Site: "none", Samples: 0},
		{Site: "zero", Samples: 1, MeanMilliseconds: 0},
		{Site: "slow", Samples: 3, MeanMilliseconds: 90},
		{Site: "fast", Samples: 3, MeanMilliseconds: 12},
	}
	closest, ok := lats.Closest()
	require.True(t, ok)
	assert.Equal(t, "fast", closest.Site)

	_, ok = Latencies{{Site: "none"}}.Closest()
	assert.False(t, ok)
}

func TestRenderTable(t *testing.T) {
	lats := Latencies{
		{Site: "a.example.com:443", Kind: "CONNECT", Samples: 3, MeanMilliseconds: 12, LastMilliseconds: 11},
		{Site: "b.example.com", Kind: "PING", LastMilliseconds: -1},
	}
	buf := &bytes.Buffer{}
	lats.RenderTable(buf)

	out := buf.String()
	assert.Contains(t, out, "a.example.com:443")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "never")
}
