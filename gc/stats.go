package gc

import "time"

// MemStats is a point-in-time snapshot of heap occupancy. Byte figures are
// word counts scaled by the word size.
type MemStats struct {
	// HeapSys is the total size of all arenas.
	HeapSys uint64

	// HeapInuse is the portion of HeapSys occupied by live and
	// not-yet-collected objects.
	HeapInuse uint64

	// HeapFree is the portion of HeapSys sitting on the free lists.
	HeapFree uint64

	// HeapObjects is the number of allocated objects currently in the
	// arenas.
	HeapObjects uint64

	// TotalAlloc is the cumulative number of bytes ever allocated.
	TotalAlloc uint64

	// Mallocs and Frees count allocations and swept objects over the
	// heap's lifetime.
	Mallocs uint64
	Frees   uint64

	// Arenas is the number of mapped arenas.
	Arenas int
}

// ReadMemStats walks every arena to produce an exact snapshot. The walk
// relies on the tiling invariant, so it doubles as a cheap consistency
// check in tests.
func (g *GC) ReadMemStats(m *MemStats) {
	*m = MemStats{
		HeapSys:    uint64(g.totalWords) * uint64(wordBytes),
		TotalAlloc: uint64(g.allTimeWordsAllocated) * uint64(wordBytes),
		Mallocs:    g.mallocs,
		Frees:      g.frees,
		Arenas:     len(g.arenas),
	}

	for i := range g.arenas {
		a := &g.arenas[i]
		end := a.end()
		for pos := a.start; pos < end; {
			obj := objectAt(pos)
			size := obj.words()
			if obj.Tag() == TagFree {
				m.HeapFree += uint64(size) * uint64(wordBytes)
			} else {
				m.HeapInuse += uint64(size) * uint64(wordBytes)
				m.HeapObjects++
			}
			pos += uintptr(size) * wordBytes
		}
	}
}

// GCStats mirrors the collection history counters.
type GCStats struct {
	LastGC     time.Time
	NumGC      int64
	PauseTotal time.Duration

	// Pause holds the most recent pauses, newest first.
	Pause []time.Duration
}

// ReadGCStats fills s with collection statistics. If s.Pause has capacity,
// it is reused; at most its capacity of recent pauses is returned.
func (g *GC) ReadGCStats(s *GCStats) {
	s.LastGC = g.lastGC
	s.NumGC = g.numGC
	s.PauseTotal = g.pauseTotal

	n := len(g.pauses)
	max := cap(s.Pause)
	if max == 0 {
		max = len(g.pauses)
	}
	if n > max {
		n = max
	}
	s.Pause = s.Pause[:0]
	for i := 0; i < n; i++ {
		s.Pause = append(s.Pause, g.pauses[len(g.pauses)-1-i])
	}
}
