// Package canon implements the deterministic canonical encoding shared by
// every hash and signature in bftsim. Two values that are semantically
// equal (same map keys/values regardless of insertion order) always
// produce byte-identical output.
package canon

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value is the closed set of types the encoder accepts: nil, string,
// int, int64, uint64, bool, Map (or map[string]Value), or Seq (or
// []Value), in turn built from Value. Structs are
// converted to a Map by the caller before encoding — the encoder itself
// never uses reflection, which keeps the output shape an explicit,
// auditable contract rather than a side effect of field tags.
type Value any

// Map is a string-keyed mapping. Keys are sorted lexicographically by
// Encode regardless of the order they were inserted in.
type Map map[string]Value

// Seq is an ordered sequence; order is preserved as given.
type Seq []Value

// Encode returns the canonical byte encoding of v.
func Encode(v Value) []byte {
	var b strings.Builder
	encode(&b, v)
	return []byte(b.String())
}

func encode(b *strings.Builder, v Value) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case Map:
		encodeMap(b, t)
	case map[string]Value:
		encodeMap(b, Map(t))
	case Seq:
		encodeSeq(b, t)
	case []Value:
		encodeSeq(b, Seq(t))
	case string:
		encodeString(b, t)
	case int:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case uint64:
		b.WriteString(strconv.FormatUint(t, 10))
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	default:
		panic(fmt.Sprintf("canon: unsupported value type %T", v))
	}
}

func encodeMap(b *strings.Builder, m Map) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		encodeString(b, k)
		b.WriteByte(':')
		encode(b, m[k])
	}
	b.WriteByte('}')
}

func encodeSeq(b *strings.Builder, s Seq) {
	b.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		encode(b, v)
	}
	b.WriteByte(']')
}

// encodeString writes a JSON-compatible quoted string. Canonical output
// must be valid JSON text per spec (UTF-8, "," and ":" separators with no
// surrounding whitespace) so this mirrors encoding/json's escaping rules
// for the handful of characters our payloads ever contain.
func encodeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
