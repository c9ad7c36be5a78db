package readers

import (
	"bytes"
	"encoding/binary"

	"d2sedit/errors"
)

// SkillsMarker ("if") opens the skills section, which immediately follows the attribute block.
var SkillsMarker = []byte{0x69, 0x66}

func need(data []byte, offset, size int) error {
	if offset < 0 || offset+size > len(data) {
		return errors.NewTooShort(offset+size, len(data))
	}
	return nil
}

func ReadUint8(data []byte, offset int) (uint8, error) {
	if err := need(data, offset, 1); err != nil {
		return 0, err
	}
	return data[offset], nil
}

func ReadUint32(data []byte, offset int) (uint32, error) {
	if err := need(data, offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data[offset:]), nil
}

// FindMarker scans forward from start for marker and returns its offset.
//
// The file has a fixed structure up to the attribute block; after that data is of variable length,
// and the only way to find where the block ends is to look for the header of the next section.
func FindMarker(data []byte, start int, marker []byte) (int, error) {
	if start < 0 || start > len(data) {
		return 0, errors.NewTooShort(start, len(data))
	}
	i := bytes.Index(data[start:], marker)
	if i < 0 {
		return 0, errors.NewMarkerNotFound(marker, start)
	}
	return start + i, nil
}

// SkillsOffset returns the offset of the skills section, i.e. the exclusive end of the attribute block that starts at start.
func SkillsOffset(data []byte, start int) (int, error) {
	return FindMarker(data, start, SkillsMarker)
}
