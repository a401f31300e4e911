package gc

// Evaluator-facing constructors and accessors.
//
// These are the only code that interprets payload words; the collector itself
// touches payloads solely through the trace table in mark.go. Constructors
// that take heap pointers as arguments may trigger a collection, so the
// caller must keep those arguments rooted (see the package doc).

import (
	"math"
	"unsafe"
)

// StringContext is the context field of a LongString. It is either an inline
// immediate (stored with the low bit set, so it can never be mistaken for an
// object address) or a reference to a heap-allocated Context object. Arena
// alignment keeps the low bit of every object address clear.
type StringContext struct {
	bits word
}

// InlineContext packs a small immediate into a context field.
func InlineContext(v word) StringContext {
	return StringContext{v<<1 | 1}
}

// RefContext makes a context field referring to a heap Context object.
func RefContext(c *Object) StringContext {
	return StringContext{uintptr(unsafe.Pointer(c))}
}

func (c StringContext) IsInline() bool { return c.bits&1 != 0 }

// Inline returns the immediate payload. Only valid when IsInline.
func (c StringContext) Inline() word { return c.bits >> 1 }

// Obj returns the referenced Context object, or nil. Only valid when
// !IsInline.
func (c StringContext) Obj() *Object {
	return (*Object)(unsafe.Pointer(c.bits))
}

// Value family

// NewInt allocates an Int value.
func (g *GC) NewInt(v int64) *Object {
	obj := g.Alloc(TagInt, valueWords)
	*obj.payload(0) = word(v)
	return obj
}

func (o *Object) Int() int64 { return int64(*o.payload(0)) }

// NewBool allocates a Bool value.
func (g *GC) NewBool(v bool) *Object {
	obj := g.Alloc(TagBool, valueWords)
	if v {
		*obj.payload(0) = 1
	} else {
		*obj.payload(0) = 0
	}
	return obj
}

func (o *Object) Bool() bool { return *o.payload(0) != 0 }

// NewNull allocates a Null value.
func (g *GC) NewNull() *Object {
	return g.Alloc(TagNull, valueWords)
}

// NewFloat allocates a Float value.
func (g *GC) NewFloat(v float64) *Object {
	obj := g.Alloc(TagFloat, valueWords)
	*obj.payload(0) = word(math.Float64bits(v))
	return obj
}

func (o *Object) Float() float64 { return math.Float64frombits(uint64(*o.payload(0))) }

// shortStringMax is the number of bytes that fit in a Value's two payload
// words.
const shortStringMax = 2 * int(wordBytes)

// NewShortString allocates a ShortString holding s inline. The string must
// fit in the two payload words; longer strings get a String body and a
// LongString value.
func (g *GC) NewShortString(s string) *Object {
	if len(s) > shortStringMax {
		fatalf("short string of %d bytes does not fit in a value", len(s))
	}
	obj := g.Alloc(TagShortString, valueWords)
	obj.setMisc(word(len(s)))
	dst := unsafe.Slice((*byte)(unsafe.Pointer(obj.payload(0))), shortStringMax)
	copy(dst, s)
	return obj
}

// ShortBytes returns the inline bytes of a ShortString.
func (o *Object) ShortBytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(o.payload(0))), o.misc())
}

// NewStaticString allocates a StaticString value whose body lives outside the
// heap (static lifetime); the address is opaque to the collector.
func (g *GC) NewStaticString(body uintptr, n int) *Object {
	obj := g.Alloc(TagStaticString, valueWords)
	*obj.payload(0) = body
	*obj.payload(1) = word(n)
	return obj
}

// NewLongString allocates a LongString value referring to a heap String body
// and a context. The body must be rooted by the caller across this call.
func (g *GC) NewLongString(body *Object, ctx StringContext) *Object {
	obj := g.Alloc(TagLongString, valueWords)
	obj.setPayloadObj(0, body)
	*obj.payload(1) = ctx.bits
	return obj
}

func (o *Object) StaticBody() uintptr { return *o.payload(0) }
func (o *Object) StaticLen() int      { return int(*o.payload(1)) }

func (o *Object) StringBody() *Object { return o.payloadObj(0) }

func (o *Object) Context() StringContext { return StringContext{*o.payload(1)} }

func (o *Object) SetContext(ctx StringContext) { *o.payload(1) = ctx.bits }

// NewPath allocates a Path value referring to a heap String body.
func (g *GC) NewPath(body *Object) *Object {
	obj := g.Alloc(TagPath, valueWords)
	obj.setPayloadObj(0, body)
	return obj
}

func (o *Object) PathBody() *Object { return o.payloadObj(0) }

// NewAttrs allocates an Attrs value referring to a Bindings table.
func (g *GC) NewAttrs(bindings *Object) *Object {
	obj := g.Alloc(TagAttrs, valueWords)
	obj.setPayloadObj(0, bindings)
	return obj
}

func (o *Object) Bindings() *Object { return o.payloadObj(0) }

// NewList0 allocates the empty list value.
func (g *GC) NewList0() *Object {
	return g.Alloc(TagList0, valueWords)
}

// NewList1 allocates a one-element list with the element inline.
func (g *GC) NewList1(elem *Object) *Object {
	obj := g.Alloc(TagList1, valueWords)
	obj.setPayloadObj(0, elem)
	return obj
}

// NewList2 allocates a two-element list with both elements inline.
func (g *GC) NewList2(a, b *Object) *Object {
	obj := g.Alloc(TagList2, valueWords)
	obj.setPayloadObj(0, a)
	obj.setPayloadObj(1, b)
	return obj
}

// NewListN allocates a list value referring to an out-of-line ValueList.
func (g *GC) NewListN(list *Object) *Object {
	obj := g.Alloc(TagListN, valueWords)
	obj.setPayloadObj(0, list)
	return obj
}

// SmallListElem returns inline element i of a List1 or List2.
func (o *Object) SmallListElem(i word) *Object { return o.payloadObj(i) }

func (o *Object) SetSmallListElem(i word, elem *Object) { o.setPayloadObj(i, elem) }

// BigList returns the out-of-line ValueList of a ListN.
func (o *Object) BigList() *Object { return o.payloadObj(0) }

// NewThunk allocates a suspended computation. The expression is owned by the
// evaluator's AST, not the heap, so only the environment is an out-edge.
func (g *GC) NewThunk(env *Object, expr uintptr) *Object {
	obj := g.Alloc(TagThunk, valueWords)
	obj.setPayloadObj(0, env)
	*obj.payload(1) = expr
	return obj
}

func (o *Object) ThunkEnv() *Object { return o.payloadObj(0) }
func (o *Object) ThunkExpr() word   { return *o.payload(1) }

// Blackhole flips a thunk under evaluation into a blackhole in place; the
// environment pointer stays live so the trace table keeps it reachable.
func (o *Object) Blackhole() {
	o.header = o.header&^tagMask | word(TagBlackhole)
}

// NewApp allocates a function application node over two values.
func (g *GC) NewApp(left, right *Object) *Object {
	obj := g.Alloc(TagApp, valueWords)
	obj.setPayloadObj(0, left)
	obj.setPayloadObj(1, right)
	return obj
}

// NewPrimOpApp allocates a partial primop application over two values.
func (g *GC) NewPrimOpApp(left, right *Object) *Object {
	obj := g.Alloc(TagPrimOpApp, valueWords)
	obj.setPayloadObj(0, left)
	obj.setPayloadObj(1, right)
	return obj
}

func (o *Object) AppLeft() *Object  { return o.payloadObj(0) }
func (o *Object) AppRight() *Object { return o.payloadObj(1) }

// NewLambda allocates a lambda value capturing an environment. As with
// thunks, the function body belongs to the AST.
func (g *GC) NewLambda(env *Object, fun uintptr) *Object {
	obj := g.Alloc(TagLambda, valueWords)
	obj.setPayloadObj(0, env)
	*obj.payload(1) = fun
	return obj
}

func (o *Object) LambdaEnv() *Object { return o.payloadObj(0) }

// NewPrimOp allocates a primop value. Primops are not traced; anything they
// reference must have static lifetime.
func (g *GC) NewPrimOp(fn uintptr) *Object {
	obj := g.Alloc(TagPrimOp, valueWords)
	*obj.payload(0) = fn
	return obj
}

// Container family

// NewString allocates a String body and copies b into it.
func (g *GC) NewString(b []byte) *Object {
	n := allocWords(TagString, word(len(b)))
	if n < minObjectWords {
		n = minObjectWords
	}
	obj := g.Alloc(TagString, n)
	obj.setMisc(word(len(b)))
	copy(obj.Bytes(), b)
	return obj
}

// Bytes returns the character payload of a String body.
func (o *Object) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(o.payload(0))), o.misc())
}

// NewBindings allocates an attribute table with room for capacity
// name/value pairs, initially empty.
func (g *GC) NewBindings(capacity word) *Object {
	obj := g.Alloc(TagBindings, 2+2*capacity)
	*obj.payload(0) = 0
	return obj
}

func (o *Object) BindingsCap() word { return o.misc() }
func (o *Object) BindingsLen() word { return *o.payload(0) }

// PushAttr appends a name/value pair. The table must not be full.
func (o *Object) PushAttr(name word, value *Object) {
	n := *o.payload(0)
	if n >= o.misc() {
		fatalf("bindings table at %#x is full (%d attrs)", o.addr(), n)
	}
	*o.payload(1 + 2*n) = name
	o.setPayloadObj(2+2*n, value)
	*o.payload(0) = n + 1
}

// Attr returns the name and value of pair i.
func (o *Object) Attr(i word) (word, *Object) {
	return *o.payload(1 + 2*i), o.payloadObj(2 + 2*i)
}

// NewValueList allocates a pointer array of n elements, all nil. Every
// element is traced, so the mutator must keep them nil or valid.
func (g *GC) NewValueList(n word) *Object {
	size := 1 + n
	if size < minObjectWords {
		size = minObjectWords
	}
	obj := g.Alloc(TagValueList, size)
	obj.setMisc(n)
	for i := word(0); i < obj.misc(); i++ {
		*obj.payload(i) = 0
	}
	return obj
}

func (o *Object) ListLen() word { return o.misc() }

func (o *Object) ListElem(i word) *Object { return o.payloadObj(i) }

func (o *Object) SetListElem(i word, elem *Object) { o.setPayloadObj(i, elem) }

// NewEnv allocates a lexical environment frame with n value slots, all nil.
func (g *GC) NewEnv(up *Object, n word) *Object {
	return g.newEnv(TagEnv, up, n)
}

// NewWithExprEnv allocates the environment frame of an unevaluated `with`;
// slot 0 holds the attribute expression, which belongs to the AST and is not
// an out-edge.
func (g *GC) NewWithExprEnv(up *Object, expr uintptr) *Object {
	obj := g.newEnv(TagWithExprEnv, up, 1)
	*obj.payload(1) = expr
	return obj
}

// NewWithAttrsEnv allocates the environment frame of an evaluated `with`;
// slot 0 holds the attribute set value and is traced.
func (g *GC) NewWithAttrsEnv(up *Object, attrs *Object) *Object {
	obj := g.newEnv(TagWithAttrsEnv, up, 1)
	obj.setPayloadObj(1, attrs)
	return obj
}

func (g *GC) newEnv(tag Tag, up *Object, n word) *Object {
	obj := g.Alloc(tag, 2+n)
	obj.setPayloadObj(0, up)
	if tag == TagEnv {
		for i := word(0); i < n; i++ {
			*obj.payload(1 + i) = 0
		}
	}
	return obj
}

func (o *Object) EnvUp() *Object { return o.payloadObj(0) }

func (o *Object) EnvSize() word { return o.misc() }

func (o *Object) EnvSlot(i word) *Object { return o.payloadObj(1 + i) }

func (o *Object) SetEnvSlot(i word, v *Object) { o.setPayloadObj(1+i, v) }

// NewContext allocates a string-context record of n opaque words.
func (g *GC) NewContext(n word) *Object {
	size := 1 + n
	if size < minObjectWords {
		size = minObjectWords
	}
	obj := g.Alloc(TagContext, size)
	return obj
}
