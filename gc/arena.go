package gc

// Arena management. An arena is a contiguous word-aligned region owned by the
// collector for its whole lifetime; start and size never change after
// creation. Growth is geometric: each new arena is 1.5 times the previous
// one, saturating at maxArenaWords instead of wrapping.

// maxArenaWords caps the growth policy. 1<<38 words is 2 TiB on a 64-bit
// machine; reaching the clamp means the next arena stops growing, not that
// allocation fails.
const maxArenaWords word = 1 << 38

type arena struct {
	start uintptr
	size  word // in words

	// backing keeps the underlying mapping alive and is used to release
	// it at teardown. Its form is platform-specific (see arena_unix.go
	// and arena_other.go).
	backing arenaBacking
}

func (a *arena) end() uintptr { return a.start + uintptr(a.size)*wordBytes }

func (a *arena) contains(p uintptr) bool { return p >= a.start && p < a.end() }

// addArena maps a new arena of the given size, makes it one free block, and
// advances the growth policy.
func (g *GC) addArena(size word) {
	if size < minObjectWords {
		size = minObjectWords
	}

	g.debugf("allocating arena of %d bytes", size*wordBytes)

	backing, start, err := mapArena(uintptr(size) * wordBytes)
	if err != nil {
		fatalf("cannot allocate arena of %d bytes: %v", size*wordBytes, err)
	}
	if start%(2*wordBytes) != 0 {
		// The context-pointer tagging convention needs the low bit of
		// every object address to be free.
		fatalf("arena at %#x is not two-word aligned", start)
	}

	g.arenas = append(g.arenas, arena{start: start, size: size, backing: backing})
	g.totalWords += size

	g.addToFreeList(initFree(start, size))

	next := size + size/2
	if next < size || next > maxArenaWords {
		next = maxArenaWords
	}
	g.nextSize = next
}

// releaseArenas unmaps every arena. Only called from Close.
func (g *GC) releaseArenas() {
	for i := range g.arenas {
		unmapArena(g.arenas[i].backing)
	}
	g.arenas = nil
}

// IsObject reports whether p lies within any current arena. This is a
// debugging aid, not a safety primitive: it does not check that p is the
// start of an object.
func (g *GC) IsObject(p uintptr) bool {
	for i := range g.arenas {
		if g.arenas[i].contains(p) {
			return true
		}
	}
	return false
}
