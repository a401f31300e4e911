package gc

// Size-segregated free lists. Eight singly-linked lists keyed by minimum
// block size; a block of size s lives on the list with the largest threshold
// not exceeding s. Allocation is first-fit starting from the first list
// whose threshold covers the request, so for requests up to 128 words every
// block scanned fits; only a larger request, which scans the final list
// (>=128 words), can meet blocks too small for it.

const numFreeLists = 8

// freeListSizes are the minimum-size thresholds of the segregated lists.
var freeListSizes = [numFreeLists]word{2, 3, 4, 8, 16, 32, 64, 128}

type freeList struct {
	minSize word
	front   *Object
}

// initFree writes a Free header of the given span at addr. The span must be
// at least two words; one-word spans cannot carry the free-list link.
func initFree(addr uintptr, size word) *Object {
	obj := objectAt(addr)
	obj.setHeader(TagFree, size, 0)
	obj.setFreeNext(nil)
	return obj
}

func (o *Object) freeNext() *Object     { return o.payloadObj(0) }
func (o *Object) setFreeNext(n *Object) { o.setPayloadObj(0, n) }

// addToFreeList pushes a free block onto the list with the largest threshold
// its size satisfies. Every block is at least two words, so the smallest
// list always matches; anything else is a corrupted header.
func (g *GC) addToFreeList(obj *Object) {
	size := obj.misc()
	for i := numFreeLists - 1; i >= 0; i-- {
		if size >= g.freeLists[i].minSize {
			obj.setFreeNext(g.freeLists[i].front)
			g.freeLists[i].front = obj
			return
		}
	}
	fatalf("free block of %d words at %#x fits no free list", size, obj.addr())
}

// startList returns the index of the first list whose threshold covers a
// request of n words. Requests beyond the largest threshold scan the last
// list.
func startList(n word) int {
	for i := 0; i < numFreeLists; i++ {
		if freeListSizes[i] >= n {
			return i
		}
	}
	return numFreeLists - 1
}

// takeBlock pops the first free block that can hold n words. If the block
// leaves a remainder of at least two words it is split and the suffix
// reinserted; a smaller remainder is handed to the caller as padding (at
// most one word, reported in the second result). Returns nil when no block
// fits.
func (g *GC) takeBlock(n word) (*Object, word) {
	for i := startList(n); i < numFreeLists; i++ {
		var prev *Object
		for blk := g.freeLists[i].front; blk != nil; prev, blk = blk, blk.freeNext() {
			size := blk.misc()
			if size < n {
				continue
			}
			if prev == nil {
				g.freeLists[i].front = blk.freeNext()
			} else {
				prev.setFreeNext(blk.freeNext())
			}
			if size >= n+minObjectWords {
				g.addToFreeList(initFree(blk.addr()+uintptr(n)*wordBytes, size-n))
				return blk, 0
			}
			return blk, size - n
		}
	}
	return nil, 0
}
