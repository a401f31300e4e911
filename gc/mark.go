package gc

// Mark phase. An explicit LIFO stack of headers replaces recursion so deep
// structures (long cons chains, nested environments) cannot overflow the Go
// stack. The trace table below is the authoritative list of out-edges per
// tag; its order is fixed and observable in diagnostic traces.

// push schedules a child object for marking. Nil children are ignored. In
// verify mode every pushed pointer is checked against the arenas first, so a
// corrupted edge is caught where it is discovered instead of when the bogus
// header is popped.
func (g *GC) push(obj *Object) {
	if obj == nil {
		return
	}
	if g.cfg.Verify && !g.IsObject(obj.addr()) {
		fatalf("traced pointer %#x outside any arena", obj.addr())
	}
	g.markStack = append(g.markStack, obj)
}

// pushPointers pushes every out-edge of obj. Reaching a Free header here
// means a root or an edge pointed into reclaimed memory; that is mutator
// misuse and fatal.
func (g *GC) pushPointers(obj *Object) {
	switch obj.Tag() {

	case TagFree:
		fatalf("reached a freed object at %#x", obj.addr())

	case TagBindings:
		n := obj.BindingsLen()
		for i := word(0); i < n; i++ {
			_, value := obj.Attr(i)
			g.push(value)
		}

	case TagValueList:
		n := obj.misc()
		for i := word(0); i < n; i++ {
			g.push(obj.payloadObj(i))
		}

	case TagEnv:
		g.push(obj.payloadObj(0))
		n := obj.misc()
		for i := word(0); i < n; i++ {
			g.push(obj.payloadObj(1 + i))
		}

	case TagWithExprEnv:
		g.push(obj.payloadObj(0))

	case TagWithAttrsEnv:
		g.push(obj.payloadObj(0))
		g.push(obj.payloadObj(1))

	case TagString, TagContext,
		TagInt, TagBool, TagNull, TagFloat,
		TagShortString, TagStaticString, TagList0:
		// No out-edges.

	case TagLongString:
		g.push(obj.payloadObj(0))
		if ctx := obj.Context(); !ctx.IsInline() {
			g.push(ctx.Obj())
		}

	case TagPath:
		g.push(obj.payloadObj(0))

	case TagAttrs:
		g.push(obj.payloadObj(0))

	case TagList1:
		g.push(obj.payloadObj(0))

	case TagList2:
		g.push(obj.payloadObj(0))
		g.push(obj.payloadObj(1))

	case TagListN:
		g.push(obj.payloadObj(0))

	case TagThunk, TagBlackhole:
		g.push(obj.payloadObj(0))

	case TagApp, TagPrimOpApp:
		g.push(obj.payloadObj(0))
		g.push(obj.payloadObj(1))

	case TagLambda:
		g.push(obj.payloadObj(0))

	case TagPrimOp:
		// Primops are not traced; their state must have static lifetime.

	default:
		fatalf("don't know how to traverse object at %#x (tag %d)", obj.addr(), obj.Tag())
	}
}

// drainMarkStack marks everything reachable from the stacked headers,
// returning the updated mark count.
func (g *GC) drainMarkStack(marked int) int {
	for len(g.markStack) > 0 {
		obj := g.markStack[len(g.markStack)-1]
		g.markStack = g.markStack[:len(g.markStack)-1]

		if obj.isMarked() {
			continue
		}
		marked++
		obj.mark()
		g.pushPointers(obj)
	}
	return marked
}

// markPhase seeds the stack from both root registries and marks the live
// set. Embedded roots go first: their values live outside the heap and only
// their children are marked.
func (g *GC) markPhase() int {
	marked := 0

	for r := g.frontRoot.next; r != &g.backRoot; r = r.next {
		g.pushPointers(r.Value.Object())
		marked = g.drainMarkStack(marked)
	}

	for p := g.frontPtr.next; p != &g.backPtr; p = p.next {
		if p.obj == nil {
			continue
		}
		g.markStack = append(g.markStack, p.obj)
		marked = g.drainMarkStack(marked)
	}

	return marked
}
