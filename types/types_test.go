package types

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"d2sedit/bits"
	"d2sedit/errors"
	"d2sedit/internal/testsave"
	"d2sedit/stats"
	"d2sedit/tables"
)

func load(t *testing.T) *Savedata {
	t.Helper()
	sd, err := Parse(testsave.Build(testsave.Default()))
	require.NoError(t, err)
	return sd
}

func TestParse_Header(t *testing.T) {
	sd := load(t)

	assert.Equal(t, uint32(HEADER_MAGIC), sd.Header())
	assert.Equal(t, uint32(0x60), sd.Version())
	assert.Equal(t, uint32(sd.FileSize()), sd.Size())
	assert.Equal(t, uint8(30), sd.Level())
	assert.Equal(t, tables.CLASS_SORCERESS, sd.Class())
	assert.Equal(t, sd.FileChecksum(), sd.Checksum())
	assert.Equal(t, OFFSET_STATS+48, sd.SkillsOffset)
}

func TestParse_Stats(t *testing.T) {
	sd := load(t)

	for _, f := range testsave.Default().Fields {
		r, ok := sd.Stat(f.Kind)
		require.True(t, ok)
		assert.True(t, r.Present, f.Kind.String())
		assert.Equal(t, f.Value, r.Value, f.Kind.String())
	}
	r, _ := sd.Stat(stats.NewPoints)
	assert.False(t, r.Present)
}

func TestParse_Skills(t *testing.T) {
	sd := load(t)
	assert.Equal(t, testsave.Default().Skills, sd.Skills())
}

func TestParse_Errors(t *testing.T) {
	good := testsave.Build(testsave.Default())

	noMarker := bytes.Clone(good)
	i := bytes.Index(noMarker[OFFSET_STATS:], []byte{0x69, 0x66})
	noMarker[OFFSET_STATS+i] = 0

	// cut inside the skills
	truncated := bytes.Clone(good[:OFFSET_STATS+48+2+10])

	badTag := bytes.Clone(good)
	block := testsave.Block([]testsave.Field{{Kind: stats.Strength, Value: 45}, {Kind: stats.GoldStash, Value: 1}})
	seq := bits.Encode(block)
	require.NoError(t, seq.PutUint(seq.Len()-stats.TagWidth, stats.TagWidth, 400))
	block, err := bits.Decode(seq)
	require.NoError(t, err)
	copy(badTag[OFFSET_STATS:], block)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"header only", good[:100]},
		{"no marker", noMarker},
		{"truncated skills", truncated},
		{"unknown tag", badTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sd, err := Parse(tt.data)
			require.Error(t, err)
			assert.Nil(t, sd)
			assert.True(t, errors.Is(err, errors.ErrFormat), err.Error())
		})
	}
}

func TestLoad_IOError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.d2s"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint32(0), Checksum(nil))
	assert.Equal(t, uint32(7), Checksum([]byte{7}))
	// 1 -> rotl 2 + 2 = 4 -> rotl 8 + 3 = 11
	assert.Equal(t, uint32(11), Checksum([]byte{1, 2, 3}))
	// the top bit wraps around
	assert.Equal(t, uint32(1), Checksum(append([]byte{0x80}, make([]byte, 25)...)))
}

func TestFileChecksum(t *testing.T) {
	sd := load(t)
	before := bytes.Clone(sd.Data)

	a := sd.FileChecksum()
	b := sd.FileChecksum()
	assert.Equal(t, a, b)
	assert.Equal(t, before, sd.Data, "FileChecksum must not touch Data")

	// the stored checksum field doesn't feed into the result
	sd.Data[OFFSET_CHECKSUM] ^= 0xff
	assert.Equal(t, a, sd.FileChecksum())

	// any data byte does
	for _, off := range []int{0, OFFSET_LEVEL, OFFSET_STATS + 3, len(sd.Data) - 1} {
		sd.Data[off] ^= 0x01
		assert.NotEqual(t, a, sd.FileChecksum(), "offset %d", off)
		sd.Data[off] ^= 0x01
	}
}

func TestSetStat_CommitAndReload(t *testing.T) {
	sd := load(t)
	orig := bytes.Clone(sd.Data)

	require.NoError(t, sd.SetStat(stats.Strength, 60))
	require.NoError(t, sd.SetStat(stats.Gold, 999999))
	assert.Equal(t, orig, sd.Data, "Set must not touch the bytes")

	require.NoError(t, sd.Commit())
	assert.Equal(t, sd.FileChecksum(), sd.Checksum())
	assert.Equal(t, len(orig), len(sd.Data))
	// nothing outside the block and the checksum moved
	assert.Equal(t, orig[:OFFSET_CHECKSUM], sd.Data[:OFFSET_CHECKSUM])
	assert.Equal(t, orig[OFFSET_CHECKSUM+4:OFFSET_STATS], sd.Data[OFFSET_CHECKSUM+4:OFFSET_STATS])
	assert.Equal(t, orig[sd.SkillsOffset:], sd.Data[sd.SkillsOffset:])

	again, err := Parse(bytes.Clone(sd.Data))
	require.NoError(t, err)
	str, _ := again.Stat(stats.Strength)
	gold, _ := again.Stat(stats.Gold)
	dex, _ := again.Stat(stats.Dexterity)
	assert.Equal(t, uint32(60), str.Value)
	assert.Equal(t, uint32(999999), gold.Value)
	assert.Equal(t, uint32(25), dex.Value)
}

func TestCommit_Unmodified(t *testing.T) {
	sd := load(t)
	orig := bytes.Clone(sd.Data)

	require.NoError(t, sd.Commit())
	assert.Equal(t, orig, sd.Data)
}

func TestSetStat_Rejects(t *testing.T) {
	sd := load(t)

	err := sd.SetStat(stats.Level, 200)
	assert.True(t, errors.Is(err, errors.ErrContract))

	err = sd.SetStat(stats.NewPoints, 5)
	assert.True(t, errors.Is(err, errors.ErrContract))
}

func TestSetLevel(t *testing.T) {
	sd := load(t)

	require.NoError(t, sd.SetLevel(75))
	assert.Equal(t, uint8(75), sd.Level())
	lvl, _ := sd.Stat(stats.Level)
	assert.Equal(t, uint32(75), lvl.Value)

	err := sd.SetLevel(128)
	assert.True(t, errors.Is(err, errors.ErrContract))
	assert.Equal(t, uint8(75), sd.Level())
}

func TestSetSkill(t *testing.T) {
	sd := load(t)

	require.NoError(t, sd.SetSkill(0, 20))
	require.NoError(t, sd.SetSkill(29, 99))
	skills := sd.Skills()
	assert.Equal(t, uint8(20), skills[0])
	assert.Equal(t, uint8(99), skills[29])

	assert.True(t, errors.Is(sd.SetSkill(30, 1), errors.ErrContract))
	assert.True(t, errors.Is(sd.SetSkill(-1, 1), errors.ErrContract))

	// Skills hands out a copy
	skills[1] = 77
	assert.NotEqual(t, uint8(77), sd.Skills()[1])
}

func TestSetClass(t *testing.T) {
	sd := load(t)
	before := sd.Clone()

	require.NoError(t, sd.SetClass(tables.CLASS_DRUID))
	assert.Equal(t, tables.CLASS_DRUID, sd.Class())
	assert.Equal(t, []Change{{"Class", uint32(tables.CLASS_SORCERESS), uint32(tables.CLASS_DRUID)}}, Diff(before, sd))

	err := sd.SetClass(tables.CLASS_COUNT)
	assert.True(t, errors.Is(err, errors.ErrContract))
	assert.Equal(t, tables.CLASS_DRUID, sd.Class())
}

func TestSave(t *testing.T) {
	sd := load(t)
	path := filepath.Join(t.TempDir(), "hero.d2s")

	require.NoError(t, sd.SetStat(stats.Vitality, 100))
	require.NoError(t, sd.SetSkill(5, 12))
	require.NoError(t, sd.Save(path))

	again, err := Load(path)
	require.NoError(t, err)
	vit, _ := again.Stat(stats.Vitality)
	assert.Equal(t, uint32(100), vit.Value)
	assert.Equal(t, uint8(12), again.Skills()[5])
	assert.Equal(t, again.FileChecksum(), again.Checksum())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), fi.Mode().Perm())
}

func TestSave_KeepsPermissions(t *testing.T) {
	sd := load(t)
	path := filepath.Join(t.TempDir(), "hero.d2s")
	require.NoError(t, os.WriteFile(path, sd.Data, 0600))
	require.NoError(t, os.Chmod(path, 0600))

	require.NoError(t, sd.SetStat(stats.Strength, 50))
	require.NoError(t, sd.Save(path))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())
}

func TestDiff(t *testing.T) {
	before := load(t)
	after := before.Clone()

	assert.Empty(t, Diff(before, after))

	require.NoError(t, after.SetLevel(31))
	require.NoError(t, after.SetStat(stats.Gold, 6000))
	require.NoError(t, after.SetSkill(3, 9))

	assert.Equal(t, []Change{
		{"Header level", 30, 31},
		{"Level", 30, 31},
		{"Gold", 5000, 6000},
		{"Skill 3", 3, 9},
	}, Diff(before, after))

	// Clone is deep
	lvl, _ := before.Stat(stats.Level)
	assert.Equal(t, uint32(30), lvl.Value)
	assert.Equal(t, uint8(30), before.Level())
}
