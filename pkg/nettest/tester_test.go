package nettest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	pkgmetrics "github.com/leptonai/edgeprobe/pkg/metrics"
)

// fakeProber answers per host: a fixed latency, an expected failure,
// an unexpected error or a panic.
type fakeProber struct {
	mu      sync.Mutex
	latency map[string]time.Duration
	fail    map[string]bool
	errs    map[string]error
	panics  map[string]bool
	calls   map[string]int
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		latency: map[string]time.Duration{},
		fail:    map[string]bool{},
		errs:    map[string]error{},
		panics:  map[string]bool{},
		calls:   map[string]int{},
	}
}

func (f *fakeProber) Probe(ctx context.Context, site *Site) (time.Duration, error) {
	f.mu.Lock()
	f.calls[site.Host]++
	lat, fail, err, panics := f.latency[site.Host], f.fail[site.Host], f.errs[site.Host], f.panics[site.Host]
	f.mu.Unlock()

	switch {
	case panics:
		panic("boom")
	case err != nil:
		return 0, err
	case fail:
		return 0, fmt.Errorf("%w: refused", ErrProbeFailed)
	}
	return lat, nil
}

func (f *fakeProber) callCount(host string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[host]
}

func TestRunBatchRanksSites(t *testing.T) {
	fp := newFakeProber()
	fp.latency["slow"] = 80 * time.Millisecond
	fp.latency["fast"] = 10 * time.Millisecond
	fp.fail["down"] = true

	tester := New(WithProber(fp))
	down := NewSite("down", 1, ProbeKindConnect)
	slow := NewSite("slow", 1, ProbeKindConnect)
	fast := NewSite("fast", 1, ProbeKindConnect)
	tester.Add(down, slow, fast)

	ranked, err := tester.RunBatch(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []*Site{fast, slow, down}, ranked)

	assert.Equal(t, 3, fast.Size())
	assert.InDelta(t, 10, fast.Mean(), 1e-9)
	assert.Equal(t, 0, down.Size())
	assert.Equal(t, FailedLatency, down.LastLatency())
	assert.Equal(t, 3, fp.callCount("down"))

	v := testutil.ToFloat64(metricMeanLatency.With(prometheus.Labels{pkgmetrics.MetricSiteLabelKey: fast.Name()}))
	assert.InDelta(t, 10, v, 1e-9)
}

func TestRunBatchAggregatesUnexpectedErrors(t *testing.T) {
	fp := newFakeProber()
	fp.latency["ok"] = 5 * time.Millisecond
	fp.errs["bad"] = errors.New("invalid site configuration")
	fp.panics["panicky"] = true

	tester := New(WithProber(fp))
	ok := NewSite("ok", 1, ProbeKindConnect)
	tester.Add(NewSite("bad", 1, ProbeKindConnect), ok, NewSite("panicky", 1, ProbeKindConnect))

	ranked, err := tester.RunBatch(context.Background(), 2)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
	assert.Contains(t, err.Error(), "invalid site configuration")
	assert.Contains(t, err.Error(), "panicked")

	// the remaining probes still completed
	require.Len(t, ranked, 3)
	assert.Same(t, ok, ranked[0])
	assert.Equal(t, 2, ok.Size())
}

func TestRunBatchTimeoutIsProbeFailure(t *testing.T) {
	prober := ProberFunc(func(ctx context.Context, site *Site) (time.Duration, error) {
		if site.Host == "hang" {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return time.Millisecond, nil
	})

	tester := New(WithProber(prober), WithTestTimeout(20*time.Millisecond))
	hang := NewSite("hang", 1, ProbeKindConnect)
	tester.Add(hang, NewSite("ok", 1, ProbeKindConnect))

	_, err := tester.RunBatch(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 0, hang.Size())
	assert.Equal(t, FailedLatency, hang.LastLatency())
}

func TestRunBatchInvalidIterations(t *testing.T) {
	_, err := New().RunBatch(context.Background(), 0)
	assert.Error(t, err)
}

func TestRunBatchCancelled(t *testing.T) {
	fp := newFakeProber()
	tester := New(WithProber(fp))
	site := NewSite("x", 1, ProbeKindConnect)
	tester.Add(site)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tester.RunBatch(ctx, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, site.Size())
}

func TestRunBatchEmptyQueue(t *testing.T) {
	ranked, err := New().RunBatch(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestSitesAddedMidRoundJoinNextRound(t *testing.T) {
	tester := New()
	late := NewSite("late", 1, ProbeKindConnect)

	var once sync.Once
	tester.prober = ProberFunc(func(ctx context.Context, site *Site) (time.Duration, error) {
		once.Do(func() { tester.Add(late) })
		return time.Millisecond, nil
	})
	tester.Add(NewSite("early", 1, ProbeKindConnect))

	require.NoError(t, tester.runRound(context.Background()))
	assert.Equal(t, 0, late.Size())

	require.NoError(t, tester.runRound(context.Background()))
	assert.Equal(t, 1, late.Size())
}

func TestQueueDedupAndRemove(t *testing.T) {
	tester := New()
	a := NewSite("a", 1, ProbeKindConnect)
	b := NewSite("b", 1, ProbeKindConnect)

	tester.Add(a, a, nil, b)
	assert.Equal(t, []*Site{a, b}, tester.Sites())

	assert.True(t, tester.Remove(a))
	assert.False(t, tester.Remove(a))
	assert.Equal(t, []*Site{b}, tester.Sites())
}

func TestStartStopIdempotent(t *testing.T) {
	var rounds atomic.Int32
	prober := ProberFunc(func(ctx context.Context, site *Site) (time.Duration, error) {
		rounds.Add(1)
		return time.Millisecond, nil
	})

	tester := New(WithProber(prober), WithInterval(10*time.Millisecond))
	tester.Add(NewSite("a", 1, ProbeKindConnect))

	require.NoError(t, tester.Start())
	firstDone := tester.done
	require.NoError(t, tester.Start())
	assert.Equal(t, firstDone, tester.done, "second Start must not spawn a new loop")
	assert.True(t, tester.Running())

	require.Eventually(t, func() bool { return rounds.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)

	tester.Stop()
	assert.False(t, tester.Running())
	tester.Stop()
	assert.False(t, tester.Running())

	// joined: no more rounds after Stop returns
	n := rounds.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, rounds.Load())
}

func TestStopDuringProbeDiscardsResult(t *testing.T) {
	started := make(chan struct{})
	prober := ProberFunc(func(ctx context.Context, site *Site) (time.Duration, error) {
		close(started)
		<-ctx.Done()
		return time.Millisecond, nil
	})

	tester := New(WithProber(prober), WithTestTimeout(time.Minute))
	site := NewSite("a", 1, ProbeKindConnect)
	tester.Add(site)

	require.NoError(t, tester.Start())
	<-started
	tester.Stop()

	st := site.Stats()
	assert.Equal(t, 0, st.Size)
	assert.Equal(t, 0.0, st.LastLatency)
}

func TestModesAreExclusive(t *testing.T) {
	release := make(chan struct{})
	prober := ProberFunc(func(ctx context.Context, site *Site) (time.Duration, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return time.Millisecond, nil
	})

	tester := New(WithProber(prober), WithTestTimeout(time.Minute))
	tester.Add(NewSite("a", 1, ProbeKindConnect))

	require.NoError(t, tester.Start())
	_, err := tester.RunBatch(context.Background(), 1)
	assert.ErrorIs(t, err, ErrContinuousModeRunning)
	tester.Stop()

	batchErr := make(chan error, 1)
	go func() {
		_, err := tester.RunBatch(context.Background(), 1)
		batchErr <- err
	}()
	require.Eventually(t, func() bool {
		tester.mu.Lock()
		defer tester.mu.Unlock()
		return tester.batchRunning
	}, 5*time.Second, time.Millisecond)

	assert.ErrorIs(t, tester.Start(), ErrBatchRunning)
	_, err = tester.RunBatch(context.Background(), 1)
	assert.ErrorIs(t, err, ErrBatchRunning)

	close(release)
	require.NoError(t, <-batchErr)
}

func TestContinuousEvictsFailingSites(t *testing.T) {
	fp := newFakeProber()
	fp.fail["down"] = true
	fp.latency["up"] = time.Millisecond

	rounds := make(chan []*Site, 16)
	tester := New(
		WithProber(fp),
		WithInterval(5*time.Millisecond),
		WithMaxConsecutiveFailures(2),
		WithOnRoundComplete(func(ranked []*Site) {
			select {
			case rounds <- ranked:
			default:
			}
		}),
	)
	down := NewSite("down", 1, ProbeKindConnect)
	up := NewSite("up", 1, ProbeKindConnect)
	tester.Add(down, up)

	require.NoError(t, tester.Start())
	defer tester.Stop()

	require.Eventually(t, func() bool {
		return len(tester.Sites()) == 1
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []*Site{up}, tester.Sites())
	assert.GreaterOrEqual(t, fp.callCount("down"), 2)

	ranked := <-rounds
	require.NotEmpty(t, ranked)
	assert.Same(t, up, ranked[0])
}

func TestEvictionDisabledByDefault(t *testing.T) {
	fp := newFakeProber()
	fp.fail["down"] = true

	tester := New(WithProber(fp))
	down := NewSite("down", 1, ProbeKindConnect)
	tester.Add(down)

	for i := 0; i < 5; i++ {
		require.NoError(t, tester.runRound(context.Background()))
	}
	tester.evict()
	assert.Equal(t, []*Site{down}, tester.Sites())
	assert.Equal(t, 5, down.Stats().ConsecutiveFailures)
}
