package stats

// Character stats live in a bit-packed block right after the fixed part of the file.
//
// Block format (in the logical bit order of package bits, read from the tail backwards):
//
//   ... | value (Width bits) | tag (9 bits) | value | tag | <end of block>
//
// Each tag names one attribute kind and fixes the width of the value in front of it.
// Reading stops as soon as GoldStash has been read; whatever is in front of it is not ours.
// Values are edited in place: the offsets found by Parse are reused verbatim by Write,
// which leaves every bit it does not own (tags, padding, absent stats) alone.

import (
	"fmt"

	"d2sedit/bits"
	"d2sedit/errors"
)

// TagWidth is the width of the tag id in front of every value.
const TagWidth = 9

// Kind is an attribute kind.  Its numeric value is the tag id stored in the file.
type Kind uint16

const (
	Strength Kind = iota
	Energy
	Dexterity
	Vitality
	NewPoints
	NewSkills
	HitPoints
	MaxHealth
	Mana
	MaxMana
	Stamina
	MaxStamina
	Level
	Experience
	Gold
	GoldStash
)

// Terminal is the kind whose value ends the scan.
const Terminal = GoldStash

var kindNames = []string{
	"Strength", "Energy", "Dexterity", "Vitality", "NewPoints", "NewSkills",
	"HitPoints", "MaxHealth", "Mana", "MaxMana", "Stamina", "MaxStamina",
	"Level", "Experience", "Gold", "GoldStash",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint16(k))
}

// Definition is the fixed shape of one attribute kind.
type Definition struct {
	Kind  Kind
	Width int
}

// Max is the largest value the field can hold.
func (d Definition) Max() uint32 {
	return uint32(uint64(1)<<d.Width - 1)
}

// Catalog lists every kind we know, in tag order.
var Catalog = []Definition{
	{Strength, 10},
	{Energy, 10},
	{Dexterity, 10},
	{Vitality, 10},
	{NewPoints, 10},
	{NewSkills, 8},
	{HitPoints, 21},
	{MaxHealth, 21},
	{Mana, 21},
	{MaxMana, 21},
	{Stamina, 21},
	{MaxStamina, 21},
	{Level, 7},
	{Experience, 32},
	{Gold, 25},
	{GoldStash, 25},
}

var byTag = func() map[Kind]Definition {
	m := make(map[Kind]Definition, len(Catalog))
	for _, d := range Catalog {
		m[d.Kind] = d
	}
	return m
}()

// Lookup returns the definition for a tag id.
func Lookup(k Kind) (Definition, bool) {
	d, ok := byTag[k]
	return d, ok
}

// Record is what one file says about one kind.
// Offset is the bit position of the value in the block's logical bit sequence and only means something if Present.
type Record struct {
	Def     Definition
	Value   uint32
	Offset  int
	Present bool
}

// Block holds one record per catalog entry, in catalog order.
type Block struct {
	Records []Record
	index   map[Kind]int
}

// New returns a block with every kind absent.
func New() *Block {
	b := &Block{
		Records: make([]Record, len(Catalog)),
		index:   make(map[Kind]int, len(Catalog)),
	}
	for i, d := range Catalog {
		b.Records[i] = Record{Def: d}
		b.index[d.Kind] = i
	}
	return b
}

func (b *Block) record(k Kind) *Record {
	if b.index == nil {
		// gob-decoded or hand-built blocks don't carry the index
		b.index = make(map[Kind]int, len(b.Records))
		for i, r := range b.Records {
			b.index[r.Def.Kind] = i
		}
	}
	i, ok := b.index[k]
	if !ok {
		return nil
	}
	return &b.Records[i]
}

// Parse reads the attribute block out of its bytes.
// Any tag we don't recognise is fatal: without its width there is no way to find the next field.
func Parse(data []byte) (*Block, error) {
	seq := bits.Encode(data)
	b := New()

	cursor := seq.Len()
	for cursor >= TagWidth {
		cursor -= TagWidth
		tag, err := seq.Uint(cursor, TagWidth)
		if err != nil {
			return nil, err
		}
		def, ok := Lookup(Kind(tag))
		if !ok {
			return nil, errors.NewUnknownTag(tag, cursor)
		}
		if cursor < def.Width {
			return nil, errors.NewTruncatedField(def.Kind.String(), def.Width, cursor)
		}
		cursor -= def.Width
		value, err := seq.Uint(cursor, def.Width)
		if err != nil {
			return nil, err
		}

		// Only one occurrence per file is expected; if there are more, the last one read wins.
		r := b.record(def.Kind)
		r.Value = value
		r.Offset = cursor
		r.Present = true

		if def.Kind == Terminal {
			break
		}
	}

	return b, nil
}

// Write puts every present value back into data, in place.
// data must be the bytes the block was parsed from (or a copy of them with the same length).
func (b *Block) Write(data []byte) error {
	seq := bits.Encode(data)
	for _, r := range b.Records {
		if !r.Present {
			continue
		}
		if r.Value > r.Def.Max() {
			return errors.NewValueTooWide(r.Def.Kind.String(), uint64(r.Value), r.Def.Width)
		}
		if err := seq.PutUint(r.Offset, r.Def.Width, r.Value); err != nil {
			return err
		}
	}

	out, err := bits.Decode(seq)
	if err != nil {
		return err
	}
	copy(data, out)
	return nil
}

// Get returns the record for k.  ok is false for kinds outside the catalog.
func (b *Block) Get(k Kind) (Record, bool) {
	r := b.record(k)
	if r == nil {
		return Record{}, false
	}
	return *r, true
}

// Set changes a value in memory only; nothing reaches the bytes until Write.
// Values that don't fit are rejected rather than truncated.
func (b *Block) Set(k Kind, value uint32) error {
	r := b.record(k)
	if r == nil {
		return errors.NewUnknownKind(k.String())
	}
	if !r.Present {
		return errors.NewNotPresent(k.String())
	}
	if value > r.Def.Max() {
		return errors.NewValueTooWide(k.String(), uint64(value), r.Def.Width)
	}
	r.Value = value
	return nil
}

// Present returns the records the file actually contains, in catalog order.
func (b *Block) Present() []Record {
	out := []Record{}
	for _, r := range b.Records {
		if r.Present {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns an independent copy of the block.
func (b *Block) Clone() *Block {
	c := New()
	copy(c.Records, b.Records)
	return c
}
