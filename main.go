// Command nix-gc exercises the evaluator heap from the command line: it
// builds randomized object graphs, runs collections, and reports statistics.
// Useful for smoke-testing the collector on a new platform and for eyeballing
// fragmentation behavior with -dump.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/mattn/go-colorable"

	"github.com/icetan/nix/gc"
)

func main() {
	var (
		heapSize   = flag.String("heap-size", "", "initial heap size (bytes or e.g. 128KB); overrides GC_INITIAL_HEAP_SIZE")
		configPath = flag.String("config", "", "YAML configuration file")
		ops        = flag.Int("ops", 10000, "number of mutator operations to run")
		seed       = flag.Int64("seed", 0, "random seed (0 means time-based)")
		dump       = flag.Bool("dump", false, "print a heap map after the run")
		stats      = flag.Bool("stats", false, "print memory and GC statistics after the run")
		noColor    = flag.Bool("no-color", false, "strip color escapes from diagnostics")
		debug      = flag.Bool("debug", false, "enable debug diagnostics and poisoning")
		verify     = flag.Bool("verify", false, "check traced pointers against the arenas")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "nix-gc:", err)
		os.Exit(1)
	}
	if *heapSize != "" {
		n, err := gc.ParseSize(*heapSize)
		if err != nil {
			fmt.Fprintln(os.Stderr, "nix-gc:", err)
			os.Exit(1)
		}
		cfg.InitialHeapBytes = n
	}
	if *debug {
		cfg.Debug = true
	}
	if *verify {
		cfg.Verify = true
	}

	var out io.Writer = colorable.NewColorableStdout()
	if *noColor {
		out = colorable.NewNonColorable(os.Stdout)
		cfg.Diag = colorable.NewNonColorable(os.Stderr)
	}

	g := gc.New(cfg)
	defer g.Close()

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	churn(g, rand.New(rand.NewSource(s)), *ops)

	if *stats {
		printStats(g, out)
	}
	if *dump {
		g.DumpHeap(out)
	}
}

func loadConfig(path string) (gc.Config, error) {
	if path != "" {
		return gc.LoadConfig(path)
	}
	return gc.ConfigFromEnv()
}

// churn runs a randomized mutator: it keeps a bounded working set of rooted
// values, replacing and dropping them at random, so successive collections
// see a mix of live and dead objects of several shapes.
func churn(g *gc.GC, rng *rand.Rand, ops int) {
	const workingSet = 64

	slots := make([]*gc.Ptr, workingSet)
	for i := range slots {
		slots[i] = g.RootPtr(nil)
	}
	defer func() {
		for _, p := range slots {
			p.Release()
		}
	}()

	for i := 0; i < ops; i++ {
		slot := slots[rng.Intn(workingSet)]
		switch rng.Intn(8) {
		case 0:
			slot.Set(g.NewInt(rng.Int63()))
		case 1:
			slot.Set(g.NewBool(rng.Intn(2) == 0))
		case 2:
			body := g.RootPtr(g.NewString(randBytes(rng)))
			slot.Set(g.NewLongString(body.Get(), gc.InlineContext(0)))
			body.Release()
		case 3:
			other := slots[rng.Intn(workingSet)].Get()
			if other == nil {
				other = g.NewNull()
			}
			head := g.RootPtr(other)
			slot.Set(g.NewList1(head.Get()))
			head.Release()
		case 4:
			n := uintptr(rng.Intn(8))
			list := g.RootPtr(g.NewValueList(n))
			for j := uintptr(0); j < n; j++ {
				list.Get().SetListElem(j, g.NewInt(int64(j)))
			}
			slot.Set(g.NewListN(list.Get()))
			list.Release()
		case 5:
			env := g.RootPtr(g.NewEnv(nil, uintptr(rng.Intn(4))))
			slot.Set(g.NewThunk(env.Get(), 0))
			env.Release()
		case 6:
			slot.Set(nil)
		case 7:
			g.Collect()
		}
	}
}

func randBytes(rng *rand.Rand) []byte {
	b := make([]byte, rng.Intn(64))
	for i := range b {
		b[i] = byte('a' + rng.Intn(26))
	}
	return b
}

func printStats(g *gc.GC, out io.Writer) {
	var m gc.MemStats
	g.ReadMemStats(&m)
	fmt.Fprintf(out, "heap: %d bytes in %d arenas, %d in use (%d objects), %d free\n",
		m.HeapSys, m.Arenas, m.HeapInuse, m.HeapObjects, m.HeapFree)
	fmt.Fprintf(out, "lifetime: %d bytes allocated, %d mallocs, %d frees\n",
		m.TotalAlloc, m.Mallocs, m.Frees)

	var s gc.GCStats
	g.ReadGCStats(&s)
	fmt.Fprintf(out, "gc: %d collections, %v total pause\n", s.NumGC, s.PauseTotal)
}
