// Package nettest measures and ranks the latency of candidate edge sites.
package nettest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/leptonai/edgeprobe/pkg/log"
)

var (
	// ErrContinuousModeRunning is returned by RunBatch while continuous mode is on.
	ErrContinuousModeRunning = errors.New("continuous mode is running")
	// ErrBatchRunning is returned when a batch is already in progress.
	ErrBatchRunning = errors.New("batch run in progress")
)

// Tester owns a queue of sites and probes them either in bounded batches
// or continuously on an interval. The two modes exclude each other.
type Tester struct {
	prober                 Prober
	timeout                time.Duration
	interval               time.Duration
	maxConsecutiveFailures int
	onRoundComplete        func([]*Site)

	queue siteQueue

	mu           sync.Mutex
	batchRunning bool
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
}

func New(opts ...OpOption) *Tester {
	op := &Op{}
	op.applyOpts(opts)

	return &Tester{
		prober:                 op.prober,
		timeout:                op.timeout,
		interval:               op.interval,
		maxConsecutiveFailures: op.maxConsecutiveFailures,
		onRoundComplete:        op.onRoundComplete,
	}
}

// Add enqueues sites. Adding a site already queued is a no-op.
func (t *Tester) Add(sites ...*Site) {
	t.queue.add(sites...)
}

// Remove dequeues the site and reports whether it was queued.
func (t *Tester) Remove(site *Site) bool {
	return t.queue.remove(site)
}

// Sites returns the queued sites in insertion order.
func (t *Tester) Sites() []*Site {
	return t.queue.snapshot()
}

// Ranked returns the queued sites ordered best first.
func (t *Tester) Ranked() []*Site {
	return Rank(t.queue.snapshot())
}

// RunBatch probes every queued site once per iteration, all sites of an
// iteration concurrently, and returns the ranked sites. Expected probe
// failures never produce an error; unexpected ones are combined and
// returned together with the ranking once every iteration has finished.
func (t *Tester) RunBatch(ctx context.Context, numIterations int) ([]*Site, error) {
	if numIterations <= 0 {
		return nil, fmt.Errorf("invalid number of iterations %d", numIterations)
	}

	t.mu.Lock()
	switch {
	case t.running:
		t.mu.Unlock()
		return nil, ErrContinuousModeRunning
	case t.batchRunning:
		t.mu.Unlock()
		return nil, ErrBatchRunning
	}
	t.batchRunning = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.batchRunning = false
		t.mu.Unlock()
	}()

	var errs error
	for i := 0; i < numIterations && ctx.Err() == nil; i++ {
		errs = multierr.Append(errs, t.runRound(ctx))
	}
	errs = multierr.Append(errs, ctx.Err())

	return t.Ranked(), errs
}

// runRound probes a snapshot of the queue and waits for every probe.
func (t *Tester) runRound(ctx context.Context) error {
	sites := t.queue.snapshot()
	if len(sites) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		metricRoundDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		mu   sync.Mutex
		errs error
	)
	// goroutines never return an error so one failure cannot cancel siblings
	var g errgroup.Group
	for _, site := range sites {
		g.Go(func() error {
			if err := t.testSite(ctx, site); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errs
}

// testSite runs one probe and applies its result to the site.
// It returns an error only for unexpected faults.
func (t *Tester) testSite(ctx context.Context, site *Site) (err error) {
	defer func() {
		if r := recover(); r != nil {
			site.recordFailure()
			observeProbe(site, probeResultError)
			err = fmt.Errorf("probe %s panicked: %v", site.Name(), r)
		}
	}()

	cctx, ccancel := context.WithTimeout(ctx, t.timeout)
	elapsed, perr := t.prober.Probe(cctx, site)
	ccancel()

	// cancelled by the caller or by Stop, the measurement is meaningless
	if ctx.Err() != nil {
		return nil
	}

	switch {
	case perr == nil:
		site.AddSample(float64(elapsed.Microseconds())/1000.0, time.Now())
		observeProbe(site, probeResultSuccess)
		return nil

	case errors.Is(perr, ErrProbeFailed), errors.Is(perr, context.DeadlineExceeded):
		site.recordFailure()
		observeProbe(site, probeResultFailure)
		log.Logger.Debugw("probe failed", "site", site.Name(), "kind", site.Kind, "error", perr)
		return nil

	default:
		site.recordFailure()
		observeProbe(site, probeResultError)
		return fmt.Errorf("probe %s: %w", site.Name(), perr)
	}
}

// Start begins continuous testing in the background.
// It is a no-op when already running.
func (t *Tester) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}
	if t.batchRunning {
		return ErrBatchRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.running = true
	t.cancel = cancel
	t.done = make(chan struct{})

	go t.loop(ctx, t.done)
	return nil
}

// Stop ends continuous testing and waits for the background loop to exit.
// Running reports false as soon as Stop is called. Safe to call repeatedly.
func (t *Tester) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	cancel()
	<-done
}

func (t *Tester) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Tester) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		if err := t.runRound(ctx); err != nil {
			log.Logger.Errorw("unexpected probe errors in continuous round", "error", err)
		}
		if ctx.Err() != nil {
			return
		}

		t.evict()
		if t.onRoundComplete != nil {
			t.onRoundComplete(t.Ranked())
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (t *Tester) evict() {
	if t.maxConsecutiveFailures <= 0 {
		return
	}
	for _, site := range t.queue.snapshot() {
		failures := site.Stats().ConsecutiveFailures
		if failures < t.maxConsecutiveFailures {
			continue
		}
		if t.queue.remove(site) {
			log.Logger.Warnw("evicted site after consecutive probe failures", "site", site.Name(), "failures", failures)
		}
	}
}
