package nettest

import "sync"

// siteQueue is safe for concurrent producers and consumers.
// Rounds work on snapshots, so sites added mid-round join the next one.
type siteQueue struct {
	mu    sync.RWMutex
	sites []*Site
}

func (q *siteQueue) add(sites ...*Site) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, s := range sites {
		if s == nil || q.indexOf(s) >= 0 {
			continue
		}
		q.sites = append(q.sites, s)
	}
}

func (q *siteQueue) remove(s *Site) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(s)
	if i < 0 {
		return false
	}
	q.sites = append(q.sites[:i:i], q.sites[i+1:]...)
	return true
}

// indexOf must be called with mu held.
func (q *siteQueue) indexOf(s *Site) int {
	for i, cur := range q.sites {
		if cur == s {
			return i
		}
	}
	return -1
}

func (q *siteQueue) snapshot() []*Site {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]*Site, len(q.sites))
	copy(out, q.sites)
	return out
}

func (q *siteQueue) len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.sites)
}
