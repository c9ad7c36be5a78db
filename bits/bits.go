package bits

// Bit sequences as the save format sees them.
//
// The attribute block is read "backwards": the last byte of the range comes
// first, and inside each byte the most significant bit comes first.  So for
// bytes {b0, b1, b2} the sequence is bits(b2) + bits(b1) + bits(b0), with
// position 0 being the MSB of b2 and the final position the LSB of b0.
//
// One byte per bit is wasteful, but the blocks are a few dozen bytes long and
// being able to index positions directly keeps the codec honest.

import (
	"d2sedit/errors"
)

// Sequence is a string of bits, one element (0 or 1) per bit.
type Sequence []uint8

// New returns an all-zero sequence of n bits.
func New(n int) Sequence {
	return make(Sequence, n)
}

// Encode turns a byte range into its logical bit sequence.
func Encode(data []byte) Sequence {
	out := make(Sequence, 0, len(data)*8)
	for i := len(data) - 1; i >= 0; i-- {
		for b := 7; b >= 0; b-- {
			out = append(out, (data[i]>>b)&1)
		}
	}
	return out
}

// Decode is the exact inverse of Encode.
// Each 8-bit group, from the start of the sequence, becomes one byte, written from the highest address downwards.
func Decode(s Sequence) ([]byte, error) {
	if len(s)%8 != 0 {
		return nil, errors.NewUnaligned(len(s))
	}
	n := len(s) / 8
	out := make([]byte, n)
	for g := 0; g < n; g++ {
		var v uint8
		for _, bit := range s[g*8 : g*8+8] {
			v = v<<1 | bit&1
		}
		out[n-1-g] = v
	}
	return out, nil
}

// Len is the number of bits in the sequence.
func (s Sequence) Len() int {
	return len(s)
}

func (s Sequence) check(pos, width int) error {
	if width < 1 || width > 32 {
		return errors.NewContract("bit width must be between 1 and 32")
	}
	if pos < 0 || pos+width > len(s) {
		return errors.NewOutOfRange("bit position", pos+width-1, len(s))
	}
	return nil
}

// Uint reads width bits starting at pos as an unsigned, most-significant-bit-first number.
func (s Sequence) Uint(pos, width int) (uint32, error) {
	if err := s.check(pos, width); err != nil {
		return 0, err
	}
	var v uint32
	for _, bit := range s[pos : pos+width] {
		v = v<<1 | uint32(bit&1)
	}
	return v, nil
}

// PutUint overwrites [pos, pos+width) with v, zero padded on the left.
// v must fit in width bits.
func (s Sequence) PutUint(pos, width int, v uint32) error {
	if err := s.check(pos, width); err != nil {
		return err
	}
	if uint64(v) >= uint64(1)<<width {
		return errors.NewValueTooWide("bit field", uint64(v), width)
	}
	for i := width - 1; i >= 0; i-- {
		s[pos+i] = uint8(v & 1)
		v >>= 1
	}
	return nil
}

// String renders the sequence as '0' and '1' characters.  Handy for debugging and tests.
func (s Sequence) String() string {
	out := make([]byte, len(s))
	for i, bit := range s {
		out[i] = '0' + bit&1
	}
	return string(out)
}
