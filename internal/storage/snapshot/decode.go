package snapshot

import (
	"strings"
	"unicode/utf8"
)

// replacementChar substitutes ill-formed byte sequences in record names.
const replacementChar = "�"

// LossyDecodeName decodes a record name as UTF-8 text. Every maximal
// ill-formed subsequence is replaced with one U+FFFD instead of failing: a
// record with a mangled name still shows up in a snapshot rather than
// aborting it, and distinct mangled names decode to distinct keys.
func LossyDecodeName(name []byte) string {
	if utf8.Valid(name) {
		return string(name)
	}

	var b strings.Builder
	b.Grow(len(name) + 2*utf8.UTFMax)
	for i := 0; i < len(name); {
		r, size := utf8.DecodeRune(name[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteString(replacementChar)
			i += illFormedLen(name[i:])
			continue
		}
		b.Write(name[i : i+size])
		i += size
	}
	return b.String()
}

// illFormedLen returns the length of the maximal ill-formed subsequence at
// the start of b: the longest prefix of a well-formed encoding, or a single
// byte when b[0] cannot start one.
func illFormedLen(b []byte) int {
	lo, hi := byte(0x80), byte(0xbf)
	var cont int

	switch c := b[0]; {
	case c < 0xc2 || c > 0xf4:
		return 1
	case c < 0xe0:
		cont = 1
	case c < 0xf0:
		cont = 2
		if c == 0xe0 {
			lo = 0xa0
		} else if c == 0xed {
			hi = 0x9f
		}
	default:
		cont = 3
		if c == 0xf0 {
			lo = 0x90
		} else if c == 0xf4 {
			hi = 0x8f
		}
	}

	n := 1
	for ; n <= cont && n < len(b); n++ {
		if b[n] < lo || b[n] > hi {
			break
		}
		lo, hi = 0x80, 0xbf
	}
	return n
}
