package gc

import (
	"io"
	"strings"
	"testing"
)

// newTestGC makes a small quiet heap. sizeWords is the initial arena size.
func newTestGC(t *testing.T, sizeWords word) *GC {
	t.Helper()
	g := New(Config{
		InitialHeapBytes: uint64(sizeWords) * uint64(wordBytes),
		Diag:             io.Discard,
	})
	t.Cleanup(g.Close)
	return g
}

// checkHeap verifies the structural invariants after any quiescent point:
// objects tile each arena exactly, objects are at least two words, no two
// free blocks are adjacent, and the free lists account for every free word
// reachable by the arena walk.
func checkHeap(t *testing.T, g *GC) {
	t.Helper()

	freeWordsInArenas := word(0)
	for i := range g.arenas {
		a := &g.arenas[i]
		end := a.end()
		pos := a.start
		prevFree := false
		for pos < end {
			obj := objectAt(pos)
			if obj.addr()%wordBytes != 0 {
				t.Fatalf("object at %#x is not word-aligned", obj.addr())
			}
			size := obj.words()
			if size < minObjectWords {
				t.Fatalf("object at %#x has %d words, minimum is %d", pos, size, minObjectWords)
			}
			if obj.Tag() == TagFree {
				if prevFree {
					t.Fatalf("free block at %#x follows another free block", pos)
				}
				freeWordsInArenas += size
			}
			prevFree = obj.Tag() == TagFree
			pos += uintptr(size) * wordBytes
		}
		if pos != end {
			t.Fatalf("arena %d walk ended at %#x, expected %#x", i, pos, end)
		}
	}

	freeWordsOnLists := word(0)
	for i := range g.freeLists {
		for blk := g.freeLists[i].front; blk != nil; blk = blk.freeNext() {
			if blk.Tag() != TagFree {
				t.Fatalf("free list %d holds a %v object", i, blk.Tag())
			}
			if blk.misc() < g.freeLists[i].minSize {
				t.Fatalf("block of %d words on list with threshold %d", blk.misc(), g.freeLists[i].minSize)
			}
			if !g.IsObject(blk.addr()) {
				t.Fatalf("free block at %#x outside all arenas", blk.addr())
			}
			freeWordsOnLists += blk.misc()
		}
	}
	if freeWordsOnLists != freeWordsInArenas {
		t.Fatalf("free lists hold %d words, arenas hold %d free words", freeWordsOnLists, freeWordsInArenas)
	}
}

func liveObjects(g *GC) uint64 {
	var m MemStats
	g.ReadMemStats(&m)
	return m.HeapObjects
}

func TestRootedValueSurvivesCollection(t *testing.T) {
	g := newTestGC(t, 1024)

	p := g.RootPtr(g.NewInt(42))
	defer p.Release()

	g.Collect()
	checkHeap(t, g)

	if got := p.Get().Int(); got != 42 {
		t.Errorf("rooted int is %d after collection, want 42", got)
	}
	if n := liveObjects(g); n != 1 {
		t.Errorf("%d live objects after collection, want 1", n)
	}

	// The rest of the arena coalesces into a single block on the last
	// list.
	blocks := 0
	for i := range g.freeLists {
		for blk := g.freeLists[i].front; blk != nil; blk = blk.freeNext() {
			blocks++
			if blk.misc() != 1024-valueWords {
				t.Errorf("free block of %d words, want %d", blk.misc(), 1024-valueWords)
			}
		}
	}
	if blocks != 1 {
		t.Errorf("%d free blocks after collection, want 1", blocks)
	}
}

func TestUnrootedValueIsReclaimed(t *testing.T) {
	g := newTestGC(t, 1024)

	g.NewInt(7)
	g.Collect()
	checkHeap(t, g)

	if n := liveObjects(g); n != 0 {
		t.Errorf("%d live objects after collection, want 0", n)
	}
}

// cons builds a chain of n List2 cells, each holding an Int head and the
// previous cell as tail. Returns a root holding the head of the chain.
func cons(g *GC, n int) *Ptr {
	p := g.RootPtr(g.NewList0())
	for i := 0; i < n; i++ {
		head := g.RootPtr(g.NewInt(int64(i)))
		p.Set(g.NewList2(head.Get(), p.Get()))
		head.Release()
	}
	return p
}

func TestChainIsFullyMarked(t *testing.T) {
	g := newTestGC(t, 4096)

	p := cons(g, 100)
	defer p.Release()

	g.Collect()
	checkHeap(t, g)

	// 100 cells, 100 ints, one terminator.
	if n := liveObjects(g); n != 201 {
		t.Errorf("%d live objects, want 201", n)
	}

	cell := p.Get()
	for i := 99; i >= 0; i-- {
		if cell.Tag() != TagList2 {
			t.Fatalf("cell %d has tag %v, want List2", i, cell.Tag())
		}
		if got := cell.SmallListElem(0).Int(); got != int64(i) {
			t.Fatalf("cell %d holds %d", i, got)
		}
		cell = cell.SmallListElem(1)
	}
	if cell.Tag() != TagList0 {
		t.Errorf("chain terminator has tag %v, want List0", cell.Tag())
	}
}

func TestMarkCountsChainExactly(t *testing.T) {
	g := newTestGC(t, 4096)

	// 100 cells with nil heads, linked through the second slot, so the
	// chain is the entire live set.
	p := g.RootPtr(nil)
	defer p.Release()
	for i := 0; i < 100; i++ {
		p.Set(g.NewList2(nil, p.Get()))
	}

	if marked := g.markPhase(); marked != 100 {
		t.Errorf("mark phase marked %d objects, want 100", marked)
	}

	// A collection on the pre-marked heap must leave the same live set
	// and clear every mark.
	g.Collect()
	checkHeap(t, g)
	if n := liveObjects(g); n != 100 {
		t.Errorf("%d live objects, want 100", n)
	}
	cell := p.Get()
	for cell != nil {
		if cell.isMarked() {
			t.Fatalf("cell at %#x still marked after collection", cell.addr())
		}
		cell = cell.SmallListElem(1)
	}
}

func TestDroppedChainIsFullyReclaimed(t *testing.T) {
	g := newTestGC(t, 4096)

	p := cons(g, 100)
	defer p.Release()
	g.Collect()

	p.Set(nil)
	g.Collect()
	checkHeap(t, g)

	if n := liveObjects(g); n != 0 {
		t.Fatalf("%d live objects after dropping the chain", n)
	}

	// Everything coalesces back into one arena-spanning block.
	blocks := 0
	for i := range g.freeLists {
		for blk := g.freeLists[i].front; blk != nil; blk = blk.freeNext() {
			blocks++
			if blk.misc() != 4096 {
				t.Errorf("free block of %d words, want 4096", blk.misc())
			}
		}
	}
	if blocks != 1 {
		t.Errorf("%d free blocks, want 1", blocks)
	}
}

func TestSeveredTailIsReclaimed(t *testing.T) {
	g := newTestGC(t, 4096)

	p := cons(g, 100)
	defer p.Release()
	g.Collect()
	before := liveObjects(g)

	// Cut the chain after the 50th cell.
	cell := p.Get()
	for i := 0; i < 49; i++ {
		cell = cell.SmallListElem(1)
	}
	terminator := g.RootPtr(g.NewList0())
	cell.SetSmallListElem(1, terminator.Get())
	terminator.Release()

	g.Collect()
	checkHeap(t, g)
	after := liveObjects(g)

	// 50 cells, 50 ints and the old terminator dropped, one new
	// terminator added.
	if want := before - 100; after != want {
		t.Errorf("%d live objects after severing, want %d", after, want)
	}
}

func TestCollectionIsIdempotent(t *testing.T) {
	g := newTestGC(t, 4096)

	p := cons(g, 20)
	defer p.Release()

	g.Collect()
	var first MemStats
	g.ReadMemStats(&first)

	g.Collect()
	var second MemStats
	g.ReadMemStats(&second)

	if first.HeapObjects != second.HeapObjects || first.HeapInuse != second.HeapInuse {
		t.Errorf("second collection changed the live set: %+v then %+v", first, second)
	}
	checkHeap(t, g)
}

func TestArenaGrowth(t *testing.T) {
	g := newTestGC(t, 32)

	if len(g.arenas) != 1 || g.arenas[0].size != 32 {
		t.Fatalf("initial arenas %v", g.arenas)
	}

	// Fill well past the first arena while keeping everything rooted, so
	// the collection triggered by exhaustion cannot reclaim anything.
	var ptrs []*Ptr
	for i := 0; i < 40; i++ {
		ptrs = append(ptrs, g.RootPtr(g.NewInt(int64(i))))
	}
	defer func() {
		for _, p := range ptrs {
			p.Release()
		}
	}()

	if len(g.arenas) < 2 {
		t.Fatalf("heap did not grow: %d arenas", len(g.arenas))
	}
	if got := g.arenas[1].size; got != 48 {
		t.Errorf("second arena is %d words, want 48", got)
	}
	checkHeap(t, g)

	for i, p := range ptrs {
		if got := p.Get().Int(); got != int64(i) {
			t.Errorf("value %d reads %d after growth", i, got)
		}
	}
}

func TestAllocDuringCollectPressure(t *testing.T) {
	g := newTestGC(t, 64)

	p := g.RootPtr(nil)
	defer p.Release()

	// Each iteration drops the previous list, so exhaustion-triggered
	// collections always have garbage to reclaim.
	for i := 0; i < 200; i++ {
		list := g.RootPtr(g.NewValueList(8))
		for j := uintptr(0); j < 8; j++ {
			list.Get().SetListElem(j, g.NewInt(int64(j)))
		}
		p.Set(list.Get())
		list.Release()
	}

	g.Collect()
	checkHeap(t, g)
	if n := liveObjects(g); n != 9 {
		t.Errorf("%d live objects, want 9", n)
	}
}

func TestCoalescedRunServesLargerAllocation(t *testing.T) {
	// 20 eight-word objects fill the arena exactly.
	g := newTestGC(t, 160)

	var ptrs []*Ptr
	for i := 0; i < 20; i++ {
		ptrs = append(ptrs, g.RootPtr(g.NewValueList(7)))
	}

	// Free eight adjacent objects in the middle; the sweep coalesces them
	// into one 64-word run, which is the only block able to serve a
	// 40-word request.
	for i := 5; i < 13; i++ {
		ptrs[i].Release()
		ptrs[i] = nil
	}
	defer func() {
		for _, p := range ptrs {
			if p != nil {
				p.Release()
			}
		}
	}()

	g.Collect()
	checkHeap(t, g)

	arenasBefore := len(g.arenas)
	big := g.RootPtr(g.NewValueList(39)) // 40 words, larger than any single dead list
	defer big.Release()

	if len(g.arenas) != arenasBefore {
		t.Errorf("allocation of 40 words grew the heap instead of reusing the coalesced run")
	}
	checkHeap(t, g)
}

// blocksOfSize counts blocks of exactly n words on list i.
func blocksOfSize(g *GC, i int, n word) int {
	count := 0
	for blk := g.freeLists[i].front; blk != nil; blk = blk.freeNext() {
		if blk.misc() == n {
			count++
		}
	}
	return count
}

func TestFragmentationThenCoalescing(t *testing.T) {
	g := newTestGC(t, 128)

	// Ten adjacent 8-word objects at the arena front.
	var ptrs [10]*Ptr
	for i := range ptrs {
		ptrs[i] = g.RootPtr(g.NewValueList(7))
	}
	release := func(i int) {
		ptrs[i].Release()
		ptrs[i] = nil
	}
	defer func() {
		for _, p := range ptrs {
			if p != nil {
				p.Release()
			}
		}
	}()

	// Dropping every other object leaves four isolated 8-word holes on
	// the >=8 list.
	release(1)
	release(3)
	release(5)
	release(7)
	g.Collect()
	checkHeap(t, g)
	if got := blocksOfSize(g, 3, 8); got != 4 {
		t.Fatalf("%d eight-word blocks on the >=8 list, want 4", got)
	}

	// Dropping the objects between the first three holes merges objects
	// 1 through 5 into one 40-word run on the >=32 list.
	release(2)
	release(4)
	g.Collect()
	checkHeap(t, g)
	if got := blocksOfSize(g, 5, 40); got != 1 {
		t.Errorf("%d forty-word blocks on the >=32 list, want 1", got)
	}
	if got := blocksOfSize(g, 3, 8); got != 1 {
		t.Errorf("%d eight-word blocks left on the >=8 list, want 1", got)
	}
}

func TestLongStringContexts(t *testing.T) {
	g := newTestGC(t, 1024)

	body := g.RootPtr(g.NewString([]byte("out of the heap")))
	inline := g.RootPtr(g.NewLongString(body.Get(), InlineContext(5)))
	defer inline.Release()

	ctxObj := g.RootPtr(g.NewContext(2))
	ref := g.RootPtr(g.NewLongString(body.Get(), RefContext(ctxObj.Get())))
	defer ref.Release()
	body.Release()
	ctxObj.Release()

	g.Collect()
	checkHeap(t, g)

	if !inline.Get().Context().IsInline() {
		t.Error("inline context did not survive as inline")
	}
	if got := inline.Get().Context().Inline(); got != 5 {
		t.Errorf("inline context reads %d, want 5", got)
	}
	if got := string(inline.Get().StringBody().Bytes()); got != "out of the heap" {
		t.Errorf("string body reads %q", got)
	}

	// The heap context object is reachable only through the value's
	// context field.
	ctx := ref.Get().Context()
	if ctx.IsInline() {
		t.Fatal("reference context collapsed to inline")
	}
	if ctx.Obj().Tag() != TagContext {
		t.Errorf("context object has tag %v", ctx.Obj().Tag())
	}
}

func TestBlackholeKeepsEnvironmentAlive(t *testing.T) {
	g := newTestGC(t, 1024)

	env := g.RootPtr(g.NewEnv(nil, 2))
	env.Get().SetEnvSlot(0, g.NewInt(11))
	thunk := g.RootPtr(g.NewThunk(env.Get(), 0))
	defer thunk.Release()
	env.Release()

	thunk.Get().Blackhole()
	g.Collect()
	checkHeap(t, g)

	if thunk.Get().Tag() != TagBlackhole {
		t.Fatalf("tag is %v after blackholing", thunk.Get().Tag())
	}
	if got := thunk.Get().ThunkEnv().EnvSlot(0).Int(); got != 11 {
		t.Errorf("environment slot reads %d through blackhole", got)
	}
}

func TestCloseWarnsAboutLeakedRoots(t *testing.T) {
	var buf strings.Builder
	g := New(Config{InitialHeapBytes: 4096, Diag: &buf})

	g.RootPtr(g.NewInt(1))
	g.RootObj()
	g.Close()

	out := buf.String()
	if !strings.Contains(out, "1 GC root pointers still exist on exit") {
		t.Errorf("missing pointer-root warning in %q", out)
	}
	if !strings.Contains(out, "1 GC root objects still exist on exit") {
		t.Errorf("missing object-root warning in %q", out)
	}
}
