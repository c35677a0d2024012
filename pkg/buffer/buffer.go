// Package buffer implements the byte-container helpers used by streams that
// are not in object mode: string/byte conversion for the supported
// encodings, concatenation, slicing and incremental string decoding.
package buffer

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names a string encoding.
type Encoding string

// Supported encodings.
const (
	UTF8    Encoding = "utf8"
	Hex     Encoding = "hex"
	Base64  Encoding = "base64"
	Latin1  Encoding = "latin1"
	UTF16LE Encoding = "utf16le"
	ASCII   Encoding = "ascii"
	// Raw marks a chunk that is already bytes.
	Raw Encoding = "buffer"
)

// ErrUnknownEncoding is returned for encoding names that are not supported.
var ErrUnknownEncoding = errors.New("unknown encoding")

var aliases = map[string]Encoding{
	"":         UTF8,
	"utf8":     UTF8,
	"utf-8":    UTF8,
	"hex":      Hex,
	"base64":   Base64,
	"latin1":   Latin1,
	"binary":   Latin1,
	"utf16le":  UTF16LE,
	"utf-16le": UTF16LE,
	"ucs2":     UTF16LE,
	"ucs-2":    UTF16LE,
	"ascii":    ASCII,
	"buffer":   Raw,
}

// Normalize resolves an encoding name, accepting the usual aliases. The
// empty name means UTF8.
func Normalize(name string) (Encoding, error) {
	enc, ok := aliases[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return enc, nil
}

var utf16leCodec = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// From converts s to bytes using enc.
func From(s string, enc Encoding) ([]byte, error) {
	switch enc {
	case UTF8, Raw, "":
		return []byte(s), nil
	case Hex:
		return hex.DecodeString(s)
	case Base64:
		return base64.StdEncoding.DecodeString(padBase64(s))
	case Latin1:
		return encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).Bytes([]byte(s))
	case UTF16LE:
		return utf16leCodec.NewEncoder().Bytes([]byte(s))
	case ASCII:
		out := make([]byte, 0, len(s))
		for _, r := range s {
			out = append(out, byte(r)&0x7f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
	}
}

// ToString converts b to a string using enc.
func ToString(b []byte, enc Encoding) (string, error) {
	switch enc {
	case UTF8, Raw, "":
		return string(b), nil
	case Hex:
		return hex.EncodeToString(b), nil
	case Base64:
		return base64.StdEncoding.EncodeToString(b), nil
	case Latin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
		return string(out), err
	case UTF16LE:
		out, err := utf16leCodec.NewDecoder().Bytes(b[:len(b)&^1])
		return string(out), err
	case ASCII:
		out := make([]byte, len(b))
		for i, c := range b {
			out[i] = c & 0x7f
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
	}
}

// Concat joins list into a newly allocated slice.
func Concat(list [][]byte) []byte {
	n := 0
	for _, b := range list {
		n += len(b)
	}
	out := make([]byte, 0, n)
	for _, b := range list {
		out = append(out, b...)
	}
	return out
}

// Slice returns b[start:end] with out-of-range bounds clamped. Negative
// bounds count from the end of b.
func Slice(b []byte, start, end int) []byte {
	n := len(b)
	start = clamp(start, n)
	end = clamp(end, n)
	if end < start {
		end = start
	}
	return b[start:end]
}

func clamp(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func padBase64(s string) string {
	s = strings.TrimRight(s, "=")
	if r := len(s) % 4; r != 0 {
		s += strings.Repeat("=", 4-r)
	}
	return s
}
