package http2

import (
	"sync"
	"unsafe"
)

// HPACK static table, RFC 7541 Appendix A.
var staticTable = [...][2]string{
	{":authority", ""},
	{":method", "GET"},
	{":method", "POST"},
	{":path", "/"},
	{":path", "/index.html"},
	{":scheme", "http"},
	{":scheme", "https"},
	{":status", "200"},
	{":status", "204"},
	{":status", "206"},
	{":status", "304"},
	{":status", "400"},
	{":status", "404"},
	{":status", "500"},
	{"accept-charset", ""},
	{"accept-encoding", "gzip, deflate"},
	{"accept-language", ""},
	{"accept-ranges", ""},
	{"accept", ""},
	{"access-control-allow-origin", ""},
	{"age", ""},
	{"allow", ""},
	{"authorization", ""},
	{"cache-control", ""},
	{"content-disposition", ""},
	{"content-encoding", ""},
	{"content-language", ""},
	{"content-length", ""},
	{"content-location", ""},
	{"content-range", ""},
	{"content-type", ""},
	{"cookie", ""},
	{"date", ""},
	{"etag", ""},
	{"expect", ""},
	{"expires", ""},
	{"from", ""},
	{"host", ""},
	{"if-match", ""},
	{"if-modified-since", ""},
	{"if-none-match", ""},
	{"if-range", ""},
	{"if-unmodified-since", ""},
	{"last-modified", ""},
	{"link", ""},
	{"location", ""},
	{"max-forwards", ""},
	{"proxy-authenticate", ""},
	{"proxy-authorization", ""},
	{"range", ""},
	{"referer", ""},
	{"refresh", ""},
	{"retry-after", ""},
	{"server", ""},
	{"set-cookie", ""},
	{"strict-transport-security", ""},
	{"transfer-encoding", ""},
	{"user-agent", ""},
	{"vary", ""},
	{"via", ""},
	{"www-authenticate", ""},
}

func b2s(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// HPack is a stateful HPACK encoder/decoder: one instance per
// connection direction, matching the teacher's hpack.go layout.
//
// https://tools.ietf.org/html/rfc7541
type HPack struct {
	// DisableCompression turns off Huffman encoding of string literals.
	DisableCompression bool

	// fields accumulates the header list produced by the most recent Read.
	fields []*HeaderField

	// dynamic is the dynamic table, most-recently-inserted first.
	dynamic []*HeaderField

	tableSize    int
	maxTableSize int
}

var hpackPool = sync.Pool{
	New: func() interface{} {
		return &HPack{maxTableSize: int(defaultHeaderTableSize)}
	},
}

// AcquireHPack returns an HPack from the pool.
func AcquireHPack() *HPack {
	return hpackPool.Get().(*HPack)
}

// ReleaseHPack releases the fields and dynamic table entries and puts
// hp back in the pool.
func ReleaseHPack(hp *HPack) {
	hp.releaseFields()
	for _, f := range hp.dynamic {
		ReleaseHeaderField(f)
	}
	hp.dynamic = hp.dynamic[:0]
	hp.tableSize = 0
	hp.maxTableSize = int(defaultHeaderTableSize)
	hp.DisableCompression = false
	hpackPool.Put(hp)
}

func (hp *HPack) releaseFields() {
	for _, f := range hp.fields {
		ReleaseHeaderField(f)
	}
	hp.fields = hp.fields[:0]
}

// SetMaxTableSize sets the maximum size the dynamic table may grow to.
func (hp *HPack) SetMaxTableSize(size int) {
	hp.maxTableSize = size
	hp.evictTo(hp.maxTableSize)
}

// Add stages a literal header field for the next Write call.
func (hp *HPack) Add(k, v string) *HeaderField {
	hf := AcquireHeaderField()
	hf.SetKey(k)
	hf.SetValue(v)
	hp.fields = append(hp.fields, hf)
	return hf
}

func (hp *HPack) fieldSize(hf *HeaderField) int {
	return len(hf.name) + len(hf.value) + 32
}

func (hp *HPack) insertDynamic(hf *HeaderField) {
	cp := AcquireHeaderField()
	cp.SetKeyBytes(hf.name)
	cp.SetValueBytes(hf.value)

	hp.dynamic = append([]*HeaderField{cp}, hp.dynamic...)
	hp.tableSize += hp.fieldSize(cp)
	hp.evictTo(hp.maxTableSize)
}

func (hp *HPack) evictTo(max int) {
	for hp.tableSize > max && len(hp.dynamic) > 0 {
		last := hp.dynamic[len(hp.dynamic)-1]
		hp.tableSize -= hp.fieldSize(last)
		hp.dynamic = hp.dynamic[:len(hp.dynamic)-1]
		ReleaseHeaderField(last)
	}
}

// entryAt returns the (name, value) at HPACK index i (1-based across
// the static table followed by the dynamic table).
func (hp *HPack) entryAt(i uint64) (string, string, bool) {
	if i == 0 {
		return "", "", false
	}
	if i <= uint64(len(staticTable)) {
		e := staticTable[i-1]
		return e[0], e[1], true
	}
	di := int(i) - len(staticTable) - 1
	if di < 0 || di >= len(hp.dynamic) {
		return "", "", false
	}
	hf := hp.dynamic[di]
	return hf.Key(), hf.Value(), true
}

// findIndex returns the 1-based HPACK index of (name, value) if
// present with an exact value match, or of name alone (exact=false)
// otherwise. ok is false if name isn't present at all.
func (hp *HPack) findIndex(name, value string) (idx uint64, exact, ok bool) {
	for i, e := range staticTable {
		if e[0] == name {
			if !ok {
				idx, ok = uint64(i+1), true
			}
			if e[1] == value {
				return uint64(i + 1), true, true
			}
		}
	}
	for i, hf := range hp.dynamic {
		if hf.Key() == name {
			di := uint64(len(staticTable) + i + 1)
			if !ok {
				idx, ok = di, true
			}
			if hf.Value() == value {
				return di, true, true
			}
		}
	}
	return idx, false, ok
}

// Write encodes the staged fields (added via Add) into dst and clears
// the staging list, matching the teacher's Write/Read pairing.
func (hp *HPack) Write(dst []byte) ([]byte, error) {
	for _, hf := range hp.fields {
		idx, exact, ok := hp.findIndex(hf.Key(), hf.Value())
		if ok && exact {
			dst = appendIndexedInt(dst, 0x80, 7, idx)
			continue
		}

		if ok {
			dst = appendIndexedInt(dst, 0x40, 6, idx)
		} else {
			dst = append(dst, 0x40)
			dst = writeString(dst, []byte(hf.Key()), !hp.DisableCompression)
		}

		dst = writeString(dst, []byte(hf.Value()), !hp.DisableCompression)

		hp.insertDynamic(hf)
	}

	hp.releaseFields()
	return dst, nil
}

// appendIndexedInt packs v into an n-bit prefix whose leading bits
// carry pattern (e.g. 0x80 for an indexed header field, 0x40 for a
// literal with an indexed name), per RFC 7541 §5.1.
func appendIndexedInt(dst []byte, pattern byte, n int, v uint64) []byte {
	max := uint64(1<<uint(n)) - 1

	if v < max {
		dst = append(dst, pattern|byte(v))
		return dst
	}

	dst = append(dst, pattern|byte(max))
	v -= max

	for v >= 128 {
		dst = append(dst, byte(v%128+128))
		v /= 128
	}
	return append(dst, byte(v))
}

// Read decodes one HPACK block, appending each decoded field to
// hp.fields (and to the dynamic table for literals with incremental
// indexing),
// and returns any unconsumed trailing bytes (always empty for a
// well-formed single block, kept for API symmetry with a streaming
// caller).
func (hp *HPack) Read(src []byte) ([]byte, error) {
	for len(src) > 0 {
		b := src[0]

		switch {
		case b&0x80 != 0: // indexed header field
			var idx uint64
			var err error
			src, idx, err = readInt(7, src)
			if err != nil {
				return src, err
			}
			name, value, ok := hp.entryAt(idx)
			if !ok {
				return src, ErrCompressionError
			}
			hf := AcquireHeaderField()
			hf.SetKey(name)
			hf.SetValue(value)
			hp.fields = append(hp.fields, hf)

		case b&0xc0 == 0x40: // literal with incremental indexing
			name, rest, err := hp.readLiteralName(src, 6)
			if err != nil {
				return src, err
			}
			var valueB []byte
			valueB, src, err = readString(nil, rest)
			if err != nil {
				return src, err
			}
			hf := AcquireHeaderField()
			hf.SetKey(name)
			hf.SetValueBytes(valueB)
			hp.fields = append(hp.fields, hf)
			hp.insertDynamic(hf)

		case b&0xf0 == 0x00, b&0xf0 == 0x10: // literal without/never indexing
			name, rest, err := hp.readLiteralName(src, 4)
			if err != nil {
				return src, err
			}
			var valueB []byte
			valueB, src, err = readString(nil, rest)
			if err != nil {
				return src, err
			}
			hf := AcquireHeaderField()
			hf.SetKey(name)
			hf.SetValueBytes(valueB)
			hp.fields = append(hp.fields, hf)

		case b&0xe0 == 0x20: // dynamic table size update
			var err error
			var v uint64
			src, v, err = readInt(5, src)
			if err != nil {
				return src, err
			}
			hp.evictTo(int(v))

		default:
			return src, ErrCompressionError
		}
	}

	return src, nil
}

// readLiteralName reads a literal-header-field's name: the prefixBits-
// wide index field is 0 for a new-name literal (name follows as a
// string) or a static/dynamic table index otherwise. Returns the name
// and the remaining unconsumed bytes of src.
func (hp *HPack) readLiteralName(src []byte, prefixBits int) (string, []byte, error) {
	rest, idx, err := readInt(prefixBits, src)
	if err != nil {
		return "", src, err
	}

	if idx == 0 {
		nameB, rest2, err := readString(nil, rest)
		if err != nil {
			return "", src, err
		}
		return string(nameB), rest2, nil
	}

	name, _, ok := hp.entryAt(idx)
	if !ok {
		return "", rest, ErrCompressionError
	}
	return name, rest, nil
}

// --- integer/string primitives (RFC 7541 §5.1, §5.2) ---

func writeInt(dst []byte, n int, v uint64) []byte {
	return appendInt(dst[:0], n, v)
}

func appendInt(dst []byte, n int, v uint64) []byte {
	return appendIndexedInt(dst, 0, n, v)
}

func readInt(n int, src []byte) ([]byte, uint64, error) {
	if len(src) == 0 {
		return src, 0, ErrMissingBytes
	}

	max := uint64(1<<uint(n)) - 1
	v := uint64(src[0]) & max
	src = src[1:]

	if v < max {
		return src, v, nil
	}

	var m uint
	for i, b := range src {
		v += uint64(b&0x7f) << m
		m += 7
		if b&0x80 == 0 {
			return src[i+1:], v, nil
		}
	}

	return src, 0, ErrMissingBytes
}

func readIntFrom(n int, br interface{ ReadByte() (byte, error) }) (uint64, error) {
	b0, err := br.ReadByte()
	if err != nil {
		return 0, err
	}

	max := uint64(1<<uint(n)) - 1
	v := uint64(b0) & max
	if v < max {
		return v, nil
	}

	var m uint
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		v += uint64(b&0x7f) << m
		m += 7
		if b&0x80 == 0 {
			return v, nil
		}
	}
}

// writeString appends an HPACK string literal for src to dst, using
// Huffman coding when huff is true and it actually shrinks the string.
func writeString(dst, src []byte, huff bool) []byte {
	if huff {
		if n := huffmanEncodedLen(src); n < len(src) {
			start := len(dst)
			dst = appendInt(dst, 7, uint64(n))
			dst[start] |= 0x80
			return huffmanEncode(dst, src)
		}
	}

	dst = appendInt(dst, 7, uint64(len(src)))
	dst = append(dst, src...)
	return dst
}

// readString reads an HPACK string literal from src, appending the
// decoded bytes to dst, and returns the unconsumed remainder of src.
func readString(dst, src []byte) ([]byte, []byte, error) {
	if len(src) == 0 {
		return dst, src, ErrMissingBytes
	}

	huff := src[0]&0x80 != 0
	rest, n, err := readInt(7, src)
	if err != nil {
		return dst, src, err
	}
	if uint64(len(rest)) < n {
		return dst, src, ErrMissingBytes
	}

	raw := rest[:n]
	rest = rest[n:]

	if huff {
		dst, err = huffmanDecode(dst, raw)
		if err != nil {
			return dst, rest, err
		}
		return dst, rest, nil
	}

	dst = append(dst, raw...)
	return dst, rest, nil
}
