// Package testsave builds small but structurally valid save files for tests.
package testsave

import (
	"encoding/binary"
	"math/bits"

	bitseq "d2sedit/bits"
	"d2sedit/stats"
	"d2sedit/tables"
)

// Field is one attribute to lay into the block.
type Field struct {
	Kind  stats.Kind
	Value uint32
}

type Options struct {
	Class  tables.Class
	Level  uint8
	Fields []Field // first field ends up against the tail of the bit sequence
	Skills []uint8
}

// Default is a level 30 character with the usual attributes, GoldStash last.
func Default() Options {
	skills := make([]uint8, tables.SKILL_COUNT)
	for i := range skills {
		skills[i] = uint8(i % 4)
	}
	return Options{
		Class: tables.CLASS_SORCERESS,
		Level: 30,
		Fields: []Field{
			{stats.Strength, 45},
			{stats.Energy, 35},
			{stats.Dexterity, 25},
			{stats.Vitality, 10},
			{stats.HitPoints, 120 << 8},
			{stats.MaxHealth, 120 << 8},
			{stats.Mana, 80 << 8},
			{stats.MaxMana, 80 << 8},
			{stats.Stamina, 90 << 8},
			{stats.MaxStamina, 90 << 8},
			{stats.Level, 30},
			{stats.Experience, 2000000},
			{stats.Gold, 5000},
			{stats.GoldStash, 100000},
		},
		Skills: skills,
	}
}

// Block lays the fields out as the game does and returns the block bytes.
func Block(fields []Field) []byte {
	n := 0
	for _, f := range fields {
		d, _ := stats.Lookup(f.Kind)
		n += stats.TagWidth + d.Width
	}
	n = (n + 7) / 8 * 8

	seq := bitseq.New(n)
	cursor := n
	for _, f := range fields {
		d, _ := stats.Lookup(f.Kind)
		cursor -= stats.TagWidth
		if err := seq.PutUint(cursor, stats.TagWidth, uint32(f.Kind)); err != nil {
			panic(err)
		}
		cursor -= d.Width
		if err := seq.PutUint(cursor, d.Width, f.Value); err != nil {
			panic(err)
		}
	}
	data, err := bitseq.Decode(seq)
	if err != nil {
		panic(err)
	}
	return data
}

// Build returns a whole file with a correct size and checksum.
func Build(o Options) []byte {
	data := make([]byte, 767)
	binary.LittleEndian.PutUint32(data[0:], 0xaa55aa55)
	binary.LittleEndian.PutUint32(data[4:], 0x60)
	data[40] = byte(o.Class)
	data[43] = o.Level

	data = append(data, Block(o.Fields)...)
	data = append(data, 0x69, 0x66)
	skills := make([]uint8, tables.SKILL_COUNT)
	copy(skills, o.Skills)
	data = append(data, skills...)
	// something after the skills so the tail of the file is not the skills section
	data = append(data, 'J', 'M', 0, 0)

	binary.LittleEndian.PutUint32(data[8:], uint32(len(data)))
	binary.LittleEndian.PutUint32(data[12:], checksum(data))
	return data
}

func checksum(data []byte) uint32 {
	sum := uint32(data[0])
	for _, b := range data[1:] {
		sum = bits.RotateLeft32(sum, 1) + uint32(b)
	}
	return sum
}
