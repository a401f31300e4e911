package gc

import "testing"

func TestPtrRegistrationAndRelease(t *testing.T) {
	g := newTestGC(t, 1024)

	a := g.RootPtr(g.NewInt(1))
	b := g.RootPtr(g.NewInt(2))
	c := g.RootPtr(g.NewInt(3))

	if ptrs, _ := g.countRoots(); ptrs != 3 {
		t.Fatalf("%d registered pointer roots, want 3", ptrs)
	}

	b.Release()
	if ptrs, _ := g.countRoots(); ptrs != 2 {
		t.Fatalf("%d pointer roots after release, want 2", ptrs)
	}

	g.Collect()
	checkHeap(t, g)

	if n := liveObjects(g); n != 2 {
		t.Errorf("%d live objects, want 2", n)
	}
	if a.Get().Int() != 1 || c.Get().Int() != 3 {
		t.Error("surviving roots read wrong values")
	}

	a.Release()
	c.Release()
	g.Collect()
	if n := liveObjects(g); n != 0 {
		t.Errorf("%d live objects after releasing all roots, want 0", n)
	}
}

func TestNilPtrRootIsIgnored(t *testing.T) {
	g := newTestGC(t, 1024)

	p := g.RootPtr(nil)
	defer p.Release()
	g.Collect()
	checkHeap(t, g)

	p.Set(g.NewInt(9))
	g.Collect()
	if got := p.Get().Int(); got != 9 {
		t.Errorf("reassigned slot reads %d, want 9", got)
	}
}

func TestEmbeddedRootTracesChildren(t *testing.T) {
	g := newTestGC(t, 1024)

	r := g.RootObj()
	defer r.Release()

	if r.Value.Object().Tag() != TagNull {
		t.Fatalf("fresh root holds %v, want Null", r.Value.Object().Tag())
	}

	// Copy a LongString value into the root and drop every heap reference
	// to it. The body must stay alive through the embedded copy alone.
	body := g.RootPtr(g.NewString([]byte("kept by the root")))
	ls := g.RootPtr(g.NewLongString(body.Get(), InlineContext(0)))
	r.Set(ls.Get())
	body.Release()
	ls.Release()

	g.Collect()
	checkHeap(t, g)

	// The LongString heap copy is gone; only the body survives.
	if n := liveObjects(g); n != 1 {
		t.Errorf("%d live objects, want 1 (the string body)", n)
	}
	if got := string(r.Value.Object().StringBody().Bytes()); got != "kept by the root" {
		t.Errorf("body through embedded root reads %q", got)
	}
}

func TestEmbeddedRootCopyClearsMarkBit(t *testing.T) {
	g := newTestGC(t, 1024)

	r := g.RootObj()
	defer r.Release()

	p := g.RootPtr(g.NewInt(5))
	p.Get().mark()
	r.Set(p.Get())
	p.Get().unmark()
	p.Release()

	if r.Value.Object().isMarked() {
		t.Error("embedded copy kept the source's mark bit")
	}
	g.Collect()
	checkHeap(t, g)
}

func TestRootRegistriesAreIndependent(t *testing.T) {
	g := newTestGC(t, 1024)

	p := g.RootPtr(g.NewInt(1))
	r := g.RootObj()

	ptrs, roots := g.countRoots()
	if ptrs != 1 || roots != 1 {
		t.Fatalf("counted %d ptrs and %d roots, want 1 and 1", ptrs, roots)
	}

	p.Release()
	ptrs, roots = g.countRoots()
	if ptrs != 0 || roots != 1 {
		t.Fatalf("after ptr release: %d ptrs and %d roots", ptrs, roots)
	}

	r.Release()
	ptrs, roots = g.countRoots()
	if ptrs != 0 || roots != 0 {
		t.Fatalf("after root release: %d ptrs and %d roots", ptrs, roots)
	}
}
