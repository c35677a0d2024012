package buffer

import "unicode/utf8"

// Decoder turns a sequence of byte chunks into strings without splitting
// multi-byte characters across chunk boundaries.
type Decoder struct {
	enc   Encoding
	carry []byte
}

// NewDecoder returns a Decoder for enc, which may be any accepted alias.
func NewDecoder(enc Encoding) (*Decoder, error) {
	n, err := Normalize(string(enc))
	if err != nil {
		return nil, err
	}
	return &Decoder{enc: n}, nil
}

// Encoding returns the decoder's encoding.
func (d *Decoder) Encoding() Encoding {
	return d.enc
}

// Write decodes as much of b as forms complete characters and keeps the rest
// for the next call.
func (d *Decoder) Write(b []byte) string {
	data := b
	if len(d.carry) > 0 {
		data = append(d.carry, b...)
		d.carry = nil
	}

	keep := d.incomplete(data)
	if keep > 0 {
		d.carry = append([]byte(nil), data[len(data)-keep:]...)
		data = data[:len(data)-keep]
	}

	s, _ := ToString(data, d.enc)
	return s
}

// End flushes whatever is still carried.
func (d *Decoder) End() string {
	if len(d.carry) == 0 {
		return ""
	}
	rest := d.carry
	d.carry = nil
	if d.enc == UTF16LE && len(rest)%2 == 1 {
		rest = rest[:len(rest)-1]
	}
	s, _ := ToString(rest, d.enc)
	return s
}

// incomplete returns how many trailing bytes of b cannot be decoded yet.
func (d *Decoder) incomplete(b []byte) int {
	switch d.enc {
	case UTF8, "":
		for i := 1; i <= 3 && i <= len(b); i++ {
			c := b[len(b)-i]
			if c < utf8.RuneSelf {
				return 0
			}
			if utf8.RuneStart(c) {
				if utf8.FullRune(b[len(b)-i:]) {
					return 0
				}
				return i
			}
		}
		return 0
	case Base64:
		return len(b) % 3
	case UTF16LE:
		n := len(b) % 2
		if len(b)-n >= 2 {
			hi := uint16(b[len(b)-n-2]) | uint16(b[len(b)-n-1])<<8
			if hi >= 0xD800 && hi <= 0xDBFF {
				n += 2
			}
		}
		return n
	default:
		return 0
	}
}
