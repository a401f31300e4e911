//go:build unix

package gc

// On unix-like systems arenas come straight from the kernel with an
// anonymous private mapping. Page alignment gives us the two-word alignment
// the pointer-tagging convention needs for free.

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

type arenaBacking = []byte

func mapArena(bytes uintptr) (arenaBacking, uintptr, error) {
	mem, err := unix.Mmap(-1, 0, int(bytes),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, 0, err
	}
	return mem, uintptr(unsafe.Pointer(&mem[0])), nil
}

func unmapArena(backing arenaBacking) {
	// Failure to unmap at teardown is harmless; the process is going away.
	_ = unix.Munmap(backing)
}
