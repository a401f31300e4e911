package gc

import "unsafe"

// Sweep phase. Arenas are walked in insertion order, each from start to end
// in steps of the object size, so the tiling invariant doubles as the
// iteration scheme. Dead objects are rewritten in place as Free headers and
// runs of free space are coalesced into single blocks before being linked
// onto the segregated lists.

// poisonPattern overwrites freed words in debug mode so use-after-free reads
// are recognizable. Truncated on 32-bit platforms.
var poisonPattern uint64 = 0xdeadc0dedeadbeef

// sweepArena reclaims every unmarked object in one arena and unmarks the
// rest. Returns the number of objects and words freed.
func (g *GC) sweepArena(a *arena) (objectsFreed, wordsFreed word) {
	end := a.end()
	pos := a.start

	// The coalesce accumulator: the Free block currently being grown.
	var curFree *Object

	// linkCurFree flushes the accumulator onto its segregated list.
	// One-word runs cannot exist given the two-word minimum object size.
	linkCurFree := func() {
		if curFree != nil && curFree.misc() > 1 {
			g.addToFreeList(curFree)
		}
		curFree = nil
	}

	for pos < end {
		obj := objectAt(pos)
		size := obj.words()
		if pos+uintptr(size)*wordBytes > end {
			fatalf("object at %#x (%v, %d words) overruns its arena", pos, obj.Tag(), size)
		}

		switch {
		case obj.Tag() == TagFree:
			if curFree != nil {
				curFree.setMisc(curFree.misc() + size)
			} else {
				curFree = obj
			}

		case obj.isMarked():
			linkCurFree()
			obj.unmark()

		default:
			if g.cfg.Debug {
				poison(pos, size)
			}
			objectsFreed++
			wordsFreed += size
			if curFree != nil {
				curFree.setMisc(curFree.misc() + size)
			} else {
				obj.setHeader(TagFree, size, 0)
				curFree = obj
			}
		}

		pos += uintptr(size) * wordBytes
	}

	linkCurFree()

	if pos != end {
		fatalf("arena walk ended at %#x, expected %#x", pos, end)
	}

	return objectsFreed, wordsFreed
}

func poison(addr uintptr, size word) {
	for i := word(0); i < size; i++ {
		*(*word)(unsafe.Pointer(addr + uintptr(i)*wordBytes)) = word(poisonPattern)
	}
}
