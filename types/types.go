package types

import (
	"bytes"
	"fmt"
	"math/bits"
	"os"

	"d2sedit/errors"
	"d2sedit/readers"
	"d2sedit/stats"
	"d2sedit/tables"
	"d2sedit/writers"
)

// File layout.  Everything up to OFFSET_STATS is fixed; the attribute block runs from
// OFFSET_STATS up to the skills marker, and the skills follow the marker.
const (
	OFFSET_HEADER   = 0
	OFFSET_VERSION  = 4
	OFFSET_SIZE     = 8
	OFFSET_CHECKSUM = 12
	OFFSET_CLASS    = 40
	OFFSET_LEVEL    = 43
	OFFSET_STATS    = 767
)

// HEADER_MAGIC is what every save we know starts with.
const HEADER_MAGIC = 0xaa55aa55

// The two marker bytes are the skills section header; skill levels start right after them.
const SKILLS_PREFIX = 2

// Savedata is a whole save file: the raw bytes plus the parsed attribute block.
// All edits go into Data (header fields, skills) or Stats (attributes); Commit folds Stats back into Data.
type Savedata struct {
	Data         []byte
	Stats        *stats.Block
	SkillsOffset int
}

// Load reads and parses a save file.
func Load(path string) (*Savedata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse takes ownership of data.
func Parse(data []byte) (*Savedata, error) {
	if len(data) < OFFSET_STATS {
		return nil, errors.NewTooShort(OFFSET_STATS, len(data))
	}
	skills, err := readers.SkillsOffset(data, OFFSET_STATS)
	if err != nil {
		return nil, err
	}
	if end := skills + SKILLS_PREFIX + tables.SKILL_COUNT; end > len(data) {
		return nil, errors.NewTooShort(end, len(data))
	}

	block, err := stats.Parse(data[OFFSET_STATS:skills])
	if err != nil {
		return nil, fmt.Errorf("failed to parse attribute block: %w", err)
	}

	return &Savedata{Data: data, Stats: block, SkillsOffset: skills}, nil
}

// Fixed field readers.  Parse already made sure the file is long enough for all of them.

func (sd *Savedata) u8(offset int) uint8 {
	v, _ := readers.ReadUint8(sd.Data, offset)
	return v
}

func (sd *Savedata) u32(offset int) uint32 {
	v, _ := readers.ReadUint32(sd.Data, offset)
	return v
}

func (sd *Savedata) Header() uint32   { return sd.u32(OFFSET_HEADER) }
func (sd *Savedata) Version() uint32  { return sd.u32(OFFSET_VERSION) }
func (sd *Savedata) Size() uint32     { return sd.u32(OFFSET_SIZE) }
func (sd *Savedata) Checksum() uint32 { return sd.u32(OFFSET_CHECKSUM) }
func (sd *Savedata) Level() uint8     { return sd.u8(OFFSET_LEVEL) }

func (sd *Savedata) Class() tables.Class {
	return tables.Class(sd.u8(OFFSET_CLASS))
}

func (sd *Savedata) FileSize() int {
	return len(sd.Data)
}

// Checksum folds data into 32 bits: start with the first byte, then for every
// following byte rotate left by one and add it.
func Checksum(data []byte) uint32 {
	if len(data) == 0 {
		return 0
	}
	sum := uint32(data[0])
	for _, b := range data[1:] {
		sum = bits.RotateLeft32(sum, 1) + uint32(b)
	}
	return sum
}

// FileChecksum is the checksum the file should carry: computed with the checksum field zeroed.
// Works on a copy, Data is untouched.
func (sd *Savedata) FileChecksum() uint32 {
	tmp := bytes.Clone(sd.Data)
	writers.PutUint32(tmp, OFFSET_CHECKSUM, 0)
	return Checksum(tmp)
}

func (sd *Savedata) Stat(k stats.Kind) (stats.Record, bool) {
	return sd.Stats.Get(k)
}

// SetStat changes an attribute in memory.  It reaches Data on Commit.
func (sd *Savedata) SetStat(k stats.Kind, value uint32) error {
	return sd.Stats.Set(k, value)
}

// SetLevel sets the header level byte and, if the file has one, the Level attribute to match.
// The game shows the header value on the character select screen and the attribute everywhere else.
func (sd *Savedata) SetLevel(level uint8) error {
	def, _ := stats.Lookup(stats.Level)
	if uint32(level) > def.Max() {
		return errors.NewValueTooWide(stats.Level.String(), uint64(level), def.Width)
	}
	if r, ok := sd.Stats.Get(stats.Level); ok && r.Present {
		if err := sd.Stats.Set(stats.Level, uint32(level)); err != nil {
			return err
		}
	}
	return writers.PutUint8(sd.Data, OFFSET_LEVEL, level)
}

// SetClass changes the character class byte.  Only the seven known classes are accepted.
func (sd *Savedata) SetClass(c tables.Class) error {
	if !c.Valid() {
		return errors.NewOutOfRange("class", int(c), int(tables.CLASS_COUNT))
	}
	return writers.PutUint8(sd.Data, OFFSET_CLASS, uint8(c))
}

func (sd *Savedata) skillsStart() int {
	return sd.SkillsOffset + SKILLS_PREFIX
}

// Skills returns a copy of the 30 skill levels.
func (sd *Savedata) Skills() []uint8 {
	start := sd.skillsStart()
	return bytes.Clone(sd.Data[start : start+tables.SKILL_COUNT])
}

// SetSkill sets a skill level for skill id 0..29.  The level isn't checked against SKILL_MAX, the game is the judge of that.
func (sd *Savedata) SetSkill(id int, level uint8) error {
	if id < 0 || id >= tables.SKILL_COUNT {
		return errors.NewOutOfRange("skill", id, tables.SKILL_COUNT)
	}
	sd.Data[sd.skillsStart()+id] = level
	return nil
}

// Commit writes the attribute block back into Data and refreshes the checksum field.
func (sd *Savedata) Commit() error {
	if err := sd.Stats.Write(sd.Data[OFFSET_STATS:sd.SkillsOffset]); err != nil {
		return err
	}
	return writers.PutUint32(sd.Data, OFFSET_CHECKSUM, sd.FileChecksum())
}

// Save commits pending edits and writes the whole file to path atomically.
// An existing file keeps its permissions.
func (sd *Savedata) Save(path string) error {
	if err := sd.Commit(); err != nil {
		return err
	}
	perm := os.FileMode(0644)
	if fi, err := os.Stat(path); err == nil {
		perm = fi.Mode().Perm()
	}
	return writers.WriteFileAtomic(path, sd.Data, perm)
}

func (sd *Savedata) Clone() *Savedata {
	return &Savedata{
		Data:         bytes.Clone(sd.Data),
		Stats:        sd.Stats.Clone(),
		SkillsOffset: sd.SkillsOffset,
	}
}

// Change is one difference between two versions of the same character.
type Change struct {
	What string
	Old  uint32
	New  uint32
}

func (c Change) String() string {
	return fmt.Sprintf("%v: %v -> %v", c.What, c.Old, c.New)
}

// Diff lists what changed from before to after: class, header level, attributes, skills, in that order.
func Diff(before, after *Savedata) []Change {
	out := []Change{}
	if before.Class() != after.Class() {
		out = append(out, Change{"Class", uint32(before.Class()), uint32(after.Class())})
	}
	if before.Level() != after.Level() {
		out = append(out, Change{"Header level", uint32(before.Level()), uint32(after.Level())})
	}
	for _, d := range stats.Catalog {
		b, _ := before.Stat(d.Kind)
		a, _ := after.Stat(d.Kind)
		if b.Present != a.Present || b.Value != a.Value {
			out = append(out, Change{d.Kind.String(), b.Value, a.Value})
		}
	}
	bs, as := before.Skills(), after.Skills()
	for i := range bs {
		if bs[i] != as[i] {
			out = append(out, Change{fmt.Sprintf("Skill %d", i), uint32(bs[i]), uint32(as[i])})
		}
	}
	return out
}
