package nettest

import "sort"

// Less reports whether site a ranks ahead of site b.
func Less(a, b *Site) bool {
	return lessStats(a.Stats(), b.Stats())
}

// lessStats orders sites with samples before sites without, then by lower
// mean (a mean of exactly zero ranks after any positive mean), then by
// lower stddev.
func lessStats(a, b Stats) bool {
	if (a.Size == 0) != (b.Size == 0) {
		return a.Size > 0
	}
	if a.Size == 0 {
		return false
	}

	if a.Mean != b.Mean {
		if a.Mean == 0 {
			return false
		}
		if b.Mean == 0 {
			return true
		}
		return a.Mean < b.Mean
	}
	return a.StdDev < b.StdDev
}

// Rank returns a new slice ordered best first.
// Statistics are snapshotted once so concurrent probes cannot reorder
// sites mid-sort; sites comparing equal keep their input order.
func Rank(sites []*Site) []*Site {
	type entry struct {
		site  *Site
		stats Stats
	}
	entries := make([]entry, len(sites))
	for i, s := range sites {
		entries[i] = entry{site: s, stats: s.Stats()}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return lessStats(entries[i].stats, entries[j].stats)
	})

	ranked := make([]*Site, len(entries))
	for i, e := range entries {
		ranked[i] = e.site
	}
	return ranked
}
