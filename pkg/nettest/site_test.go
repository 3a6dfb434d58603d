package nettest

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
)

func TestSiteRingBufferKeepsLastN(t *testing.T) {
	for _, capacity := range []int{1, 3, 5} {
		site := NewSite("10.0.0.1", 443, ProbeKindConnect, WithSampleCapacity(capacity))
		require.Equal(t, capacity, site.Capacity())

		base := time.Unix(1700000000, 0)
		total := capacity*2 + 1
		for i := 1; i <= total; i++ {
			site.AddSample(float64(i), base.Add(time.Duration(i)*time.Second))
		}

		got := site.Samples()
		require.Len(t, got, capacity)
		for i, s := range got {
			want := float64(total - capacity + 1 + i)
			assert.Equal(t, want, s.Value, "capacity %d index %d", capacity, i)
		}
		assert.Equal(t, capacity, site.Size())
	}
}

func TestSiteSamplesBeforeFull(t *testing.T) {
	site := NewSite("h", 1, ProbeKindConnect)
	assert.Empty(t, site.Samples())

	now := time.Now()
	site.AddSample(5, now)
	site.AddSample(6, now)
	assert.Equal(t, []apiv1.Sample{{Value: 5, Timestamp: now}, {Value: 6, Timestamp: now}}, site.Samples())
}

func TestSiteSamplesIsCopy(t *testing.T) {
	site := NewSite("h", 1, ProbeKindConnect)
	site.AddSample(5, time.Now())

	samples := site.Samples()
	samples[0].Value = 999
	assert.Equal(t, 5.0, site.Samples()[0].Value)
}

func TestSiteStatistics(t *testing.T) {
	site := NewSite("h", 1, ProbeKindConnect)
	now := time.Now()

	site.AddSample(10, now)
	assert.Equal(t, 10.0, site.Mean())
	assert.Equal(t, 0.0, site.StdDev())

	site.AddSample(20, now)
	site.AddSample(30, now)
	assert.InDelta(t, 20, site.Mean(), 1e-9)
	assert.InDelta(t, 10, site.StdDev(), 1e-9)
	assert.Equal(t, 30.0, site.LastLatency())

	// evicts 10
	site.AddSample(40, now)
	assert.InDelta(t, 30, site.Mean(), 1e-9)
	assert.InDelta(t, 10, site.StdDev(), 1e-9)
}

func TestSiteFailureDoesNotTouchSamples(t *testing.T) {
	site := NewSite("h", 1, ProbeKindConnect)
	site.AddSample(10, time.Now())
	site.AddSample(30, time.Now())
	before := site.Stats()

	site.recordFailure()
	site.recordFailure()

	after := site.Stats()
	assert.Equal(t, before.Size, after.Size)
	assert.Equal(t, before.Mean, after.Mean)
	assert.Equal(t, before.StdDev, after.StdDev)
	assert.Equal(t, FailedLatency, after.LastLatency)
	assert.Equal(t, 2, after.ConsecutiveFailures)

	site.AddSample(20, time.Now())
	assert.Equal(t, 0, site.Stats().ConsecutiveFailures)
}

func TestSiteName(t *testing.T) {
	tests := []struct {
		name string
		site *Site
		want string
	}{
		{"tcp", NewSite("edge.example.com", 8080, ProbeKindConnect), "edge.example.com:8080"},
		{"ipv6", NewSite("::1", 8080, ProbeKindConnect), "[::1]:8080"},
		{"ping", NewSite("edge.example.com", 2016, ProbeKindPing), "edge.example.com"},
		{"l7", NewL7Site("edge.example.com:8443"), "edge.example.com:8443"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.site.Name())
		})
	}
}

func TestNewL7Site(t *testing.T) {
	site := NewL7Site("edge.example.com:8443", WithTLS(true))
	assert.Equal(t, ProbeKindConnect, site.Kind)
	assert.Equal(t, "edge.example.com", site.Host)
	assert.Equal(t, 8443, site.Port)
	assert.True(t, site.TLS)
	assert.Equal(t, DefaultSampleCapacity, site.Capacity())
}

func TestSiteOptions(t *testing.T) {
	inst := &apiv1.AppInstance{AppName: "app", Fqdn: "app.example.com"}
	loc := apiv1.Loc{Latitude: 1, Longitude: 2}
	addr := netip.MustParseAddr("192.168.1.10")

	site := NewSite("h", 1, ProbeKindConnect,
		WithCandidate(inst, "cloudlet-a", loc),
		WithLocalAddr(addr),
		WithSampleCapacity(0),
	)
	assert.Same(t, inst, site.AppInst)
	assert.Equal(t, "cloudlet-a", site.CloudletName)
	assert.Equal(t, loc, site.CloudletLocation)
	assert.Equal(t, addr, site.LocalAddr)
	assert.Equal(t, DefaultSampleCapacity, site.Capacity())
}
