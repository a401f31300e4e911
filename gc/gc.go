package gc

// Package gc implements the evaluator heap: a non-moving, stop-the-world
// mark-and-sweep collector over large arenas (mmap'd on unix, Go slices
// elsewhere).
//
// Memory is handed out from size-segregated free lists carved out of a small
// number of large arenas. Objects never move, so raw pointers into the heap
// stay valid across collections as long as their referents are reachable.
// Reachability is decided by two root registries plus the per-tag trace
// table in mark.go; everything else is reclaimed by rewriting dead objects
// as Free blocks during the arena sweep.
//
// The mutator contract: Alloc may collect. Any heap pointer held only in Go
// locals is invisible to the collector, so callers must register arguments
// with RootPtr or RootObj before any allocation that could run between
// obtaining the pointer and storing it into a reachable object.

import "time"

// GC owns the arenas, the free lists and the root registries. It is not
// safe for concurrent use; the evaluator is single-threaded.
type GC struct {
	cfg Config

	arenas   []arena
	nextSize word

	freeLists [numFreeLists]freeList

	// Sentinel nodes for the two root registries. Live nodes are spliced
	// between front and back; the sentinels themselves are never visited.
	frontPtr, backPtr   Ptr
	frontRoot, backRoot Root

	markStack []*Object

	// Lifetime counters, all in words unless named otherwise.
	totalWords            word
	allTimeWordsAllocated word
	allTimeWordsFreed     word
	mallocs               uint64
	frees                 uint64

	numGC      int64
	lastGC     time.Time
	pauseTotal time.Duration
	pauses     []time.Duration
}

// New creates a heap with one initial arena sized from the configuration.
func New(cfg Config) *GC {
	cfg = cfg.withDefaults()

	g := &GC{cfg: cfg}

	g.frontPtr.next = &g.backPtr
	g.backPtr.prev = &g.frontPtr
	g.frontRoot.next = &g.backRoot
	g.backRoot.prev = &g.frontRoot

	for i := range g.freeLists {
		g.freeLists[i].minSize = freeListSizes[i]
	}

	words := cfg.InitialHeapBytes / uint64(wordBytes)
	if words < minObjectWords {
		words = minObjectWords
	}
	g.nextSize = word(words)
	g.addArena(g.nextSize)

	return g
}

// Alloc allocates an object of n words (header included) with the given tag.
// The payload is uninitialized except where the tag's constructor promises
// otherwise. Alloc may trigger a collection; see the package comment for the
// rooting obligations that follow.
func (g *GC) Alloc(tag Tag, n word) *Object {
	if tag == TagFree || tag >= numTags {
		fatalf("cannot allocate object with tag %d", tag)
	}
	if n < minObjectWords {
		n = minObjectWords
	}

	blk, pad := g.takeBlock(n)
	if blk == nil {
		g.Collect()
		blk, pad = g.takeBlock(n)
	}
	if blk == nil {
		size := g.nextSize
		if size < n {
			size = n
		}
		g.addArena(size)
		blk, pad = g.takeBlock(n)
	}
	if blk == nil {
		fatalf("out of memory: cannot allocate %d words", n)
	}

	g.mallocs++
	g.allTimeWordsAllocated += n + pad
	blk.setHeader(tag, initMisc(tag, n), pad)
	return blk
}

// Collect runs a full stop-the-world mark-and-sweep cycle.
func (g *GC) Collect() {
	start := time.Now()

	marked := g.markPhase()

	for i := range g.freeLists {
		g.freeLists[i].front = nil
	}

	var objectsFreed, wordsFreed word
	for i := range g.arenas {
		o, w := g.sweepArena(&g.arenas[i])
		objectsFreed += o
		wordsFreed += w
	}

	g.debugf("freed %d bytes in %d dead objects, keeping %d objects",
		uint64(wordsFreed)*uint64(wordBytes), objectsFreed, marked)

	g.allTimeWordsFreed += wordsFreed
	g.frees += uint64(objectsFreed)

	pause := time.Since(start)
	g.numGC++
	g.lastGC = time.Now()
	g.pauseTotal += pause
	g.pauses = append(g.pauses, pause)
}

// Close prints the lifetime summary, warns about leaked root registrations
// and unmaps the arenas. The heap must not be used afterwards.
func (g *GC) Close() {
	g.infof("%d bytes in arenas, %d bytes allocated, %d bytes reclaimed by GC",
		uint64(g.totalWords)*uint64(wordBytes),
		uint64(g.allTimeWordsAllocated)*uint64(wordBytes),
		uint64(g.allTimeWordsFreed)*uint64(wordBytes))

	ptrs, roots := g.countRoots()
	if ptrs > 0 {
		g.warnf("%d GC root pointers still exist on exit", ptrs)
	}
	if roots > 0 {
		g.warnf("%d GC root objects still exist on exit", roots)
	}

	g.releaseArenas()
}
