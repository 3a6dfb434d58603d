package edgeevents

import (
	"context"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	"github.com/leptonai/edgeprobe/pkg/log"
	"github.com/leptonai/edgeprobe/pkg/nettest"
)

// PauseSendingUpdates stops the Post and Test operations from sending until
// ResumeSendingUpdates. Send is not affected.
func (c *Conn) PauseSendingUpdates() {
	c.paused.Store(true)
}

func (c *Conn) ResumeSendingUpdates() {
	c.paused.Store(false)
}

func (c *Conn) Paused() bool {
	return c.paused.Load()
}

func (c *Conn) canPost() bool {
	if c.Paused() {
		log.Logger.Debugw("updates paused, not posting")
		return false
	}
	return !c.IsShutdown()
}

// PostLocationUpdate sends the client's current location.
func (c *Conn) PostLocationUpdate(loc apiv1.Loc) bool {
	if !c.canPost() {
		return false
	}
	return c.Send(&apiv1.ClientEdgeEvent{
		EventType:   apiv1.ClientEventLocationUpdate,
		GpsLocation: &loc,
	})
}

// PostLatencyUpdate sends the samples currently held by site.
// It returns false when the site has no samples.
func (c *Conn) PostLatencyUpdate(site *nettest.Site, loc apiv1.Loc) bool {
	if !c.canPost() {
		return false
	}

	samples := site.Samples()
	if len(samples) == 0 {
		log.Logger.Debugw("no samples to post", "site", site.Name())
		return false
	}
	if !c.Send(&apiv1.ClientEdgeEvent{
		EventType:   apiv1.ClientEventLatencySamples,
		GpsLocation: &loc,
		Samples:     samples,
	}) {
		return false
	}

	st := apiv1.NewStatistics(samples)
	c.lastPosted.Store(&st)
	log.Logger.Debugw("posted latency samples", "site", site.Name(), "avg_ms", st.Avg, "stddev_ms", st.StdDev, "samples", st.NumSamples)
	return true
}

// LastPostedStatistics summarizes the samples of the last successful latency
// post, or returns nil if none was posted.
func (c *Conn) LastPostedStatistics() *apiv1.Statistics {
	return c.lastPosted.Load()
}

// TestConnectAndPostLatencyUpdate takes numSamples connect samples of
// host:port and posts them.
func (c *Conn) TestConnectAndPostLatencyUpdate(ctx context.Context, host string, port int, loc apiv1.Loc, numSamples int) bool {
	if !c.canPost() {
		return false
	}
	site := nettest.NewSite(host, port, nettest.ProbeKindConnect, nettest.WithSampleCapacity(numSamples))
	return c.testAndPost(ctx, site, loc, numSamples)
}

// TestPingAndPostLatencyUpdate takes numSamples ping samples of host and
// posts them.
func (c *Conn) TestPingAndPostLatencyUpdate(ctx context.Context, host string, loc apiv1.Loc, numSamples int) bool {
	if !c.canPost() {
		return false
	}
	site := nettest.NewSite(host, 0, nettest.ProbeKindPing, nettest.WithSampleCapacity(numSamples))
	return c.testAndPost(ctx, site, loc, numSamples)
}

func (c *Conn) testAndPost(ctx context.Context, site *nettest.Site, loc apiv1.Loc, numSamples int) bool {
	if numSamples <= 0 {
		log.Logger.Warnw("invalid number of samples", "numSamples", numSamples)
		return false
	}

	tester := nettest.New(c.testerOpts...)
	tester.Add(site)
	if _, err := tester.RunBatch(ctx, numSamples); err != nil {
		log.Logger.Warnw("latency test finished with errors", "site", site.Name(), "error", err)
	}
	return c.PostLatencyUpdate(site, loc)
}
