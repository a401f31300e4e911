package gc

// Object headers and the tag dictionary.
//
// Every heap object starts with a single header word. The low byte holds the
// tag, the mark bit and the pad bit; the remaining bits hold a tag-dependent
// length field ("misc"). Sizes are expressed in words everywhere: an object of
// size n occupies n contiguous words starting at its header, and successive
// objects tile an arena without gaps. The pad bit records that the allocator
// handed out one extra word because splitting the chosen free block would have
// produced a remainder smaller than the two-word minimum; words() includes it
// so the arena walk stays exact.

import "unsafe"

type word = uintptr

const (
	wordBytes = unsafe.Sizeof(word(0))

	// No object is smaller than a header plus one payload word. The
	// allocator refuses to create smaller free blocks.
	minObjectWords = 2

	// Value-family objects are a header plus two payload words.
	valueWords = 3
)

// Tag identifies an object's shape, size and out-edges.
type Tag uint8

const (
	// TagFree marks an unallocated span. Its misc field holds the span
	// length in words and its first payload word links it into a
	// segregated free list. Reaching one while tracing is a fatal bug.
	TagFree Tag = iota

	// The Value family: fixed three-word layout, discriminated by tag.
	// TagInt..TagFloat must stay a contiguous range; sizing keys on it.
	TagInt
	TagBool
	TagNull
	TagShortString
	TagStaticString
	TagLongString
	TagPath
	TagAttrs
	TagList0
	TagList1
	TagList2
	TagListN
	TagThunk
	TagBlackhole
	TagApp
	TagPrimOpApp
	TagLambda
	TagPrimOp
	TagFloat

	// The container family: variable-sized, length in misc.
	TagBindings
	TagValueList
	TagEnv
	TagWithExprEnv
	TagWithAttrsEnv
	TagString
	TagContext

	numTags
)

var tagNames = [numTags]string{
	TagFree:         "Free",
	TagInt:          "Int",
	TagBool:         "Bool",
	TagNull:         "Null",
	TagShortString:  "ShortString",
	TagStaticString: "StaticString",
	TagLongString:   "LongString",
	TagPath:         "Path",
	TagAttrs:        "Attrs",
	TagList0:        "List0",
	TagList1:        "List1",
	TagList2:        "List2",
	TagListN:        "ListN",
	TagThunk:        "Thunk",
	TagBlackhole:    "Blackhole",
	TagApp:          "App",
	TagPrimOpApp:    "PrimOpApp",
	TagLambda:       "Lambda",
	TagPrimOp:       "PrimOp",
	TagBindings:     "Bindings",
	TagValueList:    "ValueList",
	TagEnv:          "Env",
	TagWithExprEnv:  "WithExprEnv",
	TagWithAttrsEnv: "WithAttrsEnv",
	TagString:       "String",
	TagContext:      "Context",
	TagFloat:        "Float",
}

func (t Tag) String() string {
	if t < numTags && tagNames[t] != "" {
		return tagNames[t]
	}
	return "Tag(?)"
}

// Header word layout:
//
//	bits 0..5  tag
//	bit  6     mark
//	bit  7     pad
//	bits 8..   misc
const (
	tagBits   = 6
	tagMask   = 1<<tagBits - 1
	markBit   = 1 << tagBits
	padBit    = 1 << (tagBits + 1)
	miscShift = tagBits + 2
)

// Object is a view of a heap object at its header word. All payload access
// goes through word offsets relative to the header; the Go type carries no
// payload fields because the payload size depends on the tag.
type Object struct {
	header word
}

func (o *Object) Tag() Tag { return Tag(o.header & tagMask) }

func (o *Object) isMarked() bool { return o.header&markBit != 0 }
func (o *Object) mark()          { o.header |= markBit }
func (o *Object) unmark()        { o.header &^= markBit }

func (o *Object) padded() word { return (o.header & padBit) >> (tagBits + 1) }

func (o *Object) misc() word     { return o.header >> miscShift }
func (o *Object) setMisc(n word) { o.header = o.header&(1<<miscShift-1) | n<<miscShift }

func (o *Object) setHeader(tag Tag, misc word, pad word) {
	o.header = word(tag) | pad<<(tagBits+1) | misc<<miscShift
}

func (o *Object) addr() uintptr { return uintptr(unsafe.Pointer(o)) }

// payload returns the address of payload word i (word i+1 of the object).
func (o *Object) payload(i word) *word {
	return (*word)(unsafe.Add(unsafe.Pointer(o), (1+i)*wordBytes))
}

func (o *Object) payloadObj(i word) *Object {
	return (*Object)(unsafe.Pointer(*o.payload(i)))
}

func (o *Object) setPayloadObj(i word, child *Object) {
	*o.payload(i) = uintptr(unsafe.Pointer(child))
}

// objectAt reinterprets an address inside an arena as an object header.
func objectAt(addr uintptr) *Object {
	return (*Object)(unsafe.Pointer(addr))
}

// words returns the total object length in words, header included. This is
// the sizing half of the tag dictionary; the tracing half lives in mark.go.
// An unknown tag means a corrupted or mis-initialized header and is fatal.
func (o *Object) words() word {
	tag := o.Tag()
	var n word
	switch {
	case tag >= TagInt && tag <= TagFloat:
		n = valueWords
	case tag == TagFree:
		return o.misc()
	case tag == TagString:
		n = 1 + (o.misc()+wordBytes-1)/wordBytes
	case tag == TagBindings:
		// Header, used-count word, then capacity attribute pairs.
		n = 2 + 2*o.misc()
	case tag == TagValueList, tag == TagContext:
		n = 1 + o.misc()
	case tag == TagEnv, tag == TagWithExprEnv, tag == TagWithAttrsEnv:
		// Header, up pointer, then the value slots.
		n = 2 + o.misc()
	default:
		fatalf("GC encountered invalid object with tag %d", tag)
	}
	if n < minObjectWords {
		n = minObjectWords
	}
	return n + o.padded()
}

// initMisc returns the misc value that makes an object of the given tag span
// exactly n words. Callers that carry a finer-grained length (string byte
// counts, bindings fill levels) adjust it afterwards without changing the
// object's footprint.
func initMisc(tag Tag, n word) word {
	if tag >= TagInt && tag <= TagFloat {
		return 0
	}
	switch tag {
	case TagString:
		return (n - 1) * wordBytes
	case TagBindings:
		return (n - 2) / 2
	case TagValueList, TagContext:
		return n - 1
	case TagEnv, TagWithExprEnv, TagWithAttrsEnv:
		return n - 2
	}
	fatalf("cannot allocate object with tag %d", tag)
	return 0
}

// allocWords returns the footprint in words of a fresh object of the given
// tag with the given misc value, before any padding.
func allocWords(tag Tag, misc word) word {
	if tag >= TagInt && tag <= TagFloat {
		return valueWords
	}
	switch tag {
	case TagString:
		return 1 + (misc+wordBytes-1)/wordBytes
	case TagBindings:
		return 2 + 2*misc
	case TagValueList, TagContext:
		return 1 + misc
	case TagEnv, TagWithExprEnv, TagWithAttrsEnv:
		return 2 + misc
	}
	fatalf("cannot allocate object with tag %d", tag)
	return 0
}
