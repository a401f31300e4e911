package gc

import (
	"fmt"
	"io"
)

// DumpHeap writes a word-granular map of every arena: one rune per word, 64
// words per row. Free words print as '·', headers of live objects as '*',
// their payload words as '-' and padding words as '#'.
func (g *GC) DumpHeap(w io.Writer) {
	for ai := range g.arenas {
		a := &g.arenas[ai]
		fmt.Fprintf(w, "arena %d: %d words at %#x\n", ai, a.size, a.start)

		col := 0
		emit := func(r rune) {
			fmt.Fprintf(w, "%c", r)
			col++
			if col == 64 {
				fmt.Fprintln(w)
				col = 0
			}
		}

		end := a.end()
		for pos := a.start; pos < end; {
			obj := objectAt(pos)
			size := obj.words()
			if obj.Tag() == TagFree {
				for i := word(0); i < size; i++ {
					emit('·')
				}
			} else {
				emit('*')
				body := size - obj.padded()
				for i := word(1); i < body; i++ {
					emit('-')
				}
				for i := word(0); i < obj.padded(); i++ {
					emit('#')
				}
			}
			pos += uintptr(size) * wordBytes
		}
		if col != 0 {
			fmt.Fprintln(w)
		}
	}

	for i := range g.freeLists {
		n := 0
		for blk := g.freeLists[i].front; blk != nil; blk = blk.freeNext() {
			n++
		}
		fmt.Fprintf(w, "free list >=%d words: %d blocks\n", g.freeLists[i].minSize, n)
	}
}
