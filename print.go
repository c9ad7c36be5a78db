package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"d2sedit/tables"
	"d2sedit/types"
)

func print_file_stats(w io.Writer, sd *types.Savedata) {
	fmt.Fprintf(w, "File size:     %v\n", sd.FileSize())
	fmt.Fprintf(w, "Size:          %v\n", sd.Size())
	fmt.Fprintf(w, "Header:        0x%08x, expected: 0x%08x\n", sd.Header(), uint32(types.HEADER_MAGIC))
	fmt.Fprintf(w, "Version:       %v\n", sd.Version())
	fmt.Fprintf(w, "Checksum:      0x%08x\n", sd.Checksum())
	fmt.Fprintf(w, "File checksum: 0x%08x\n", sd.FileChecksum())
}

// print_character_stats shows only the attributes the file actually has.
func print_character_stats(w io.Writer, sd *types.Savedata) {
	fmt.Fprintf(w, "Level:         %v\n", sd.Level())
	if sd.Class().Valid() {
		fmt.Fprintf(w, "Class:         %v\n", sd.Class())
	}
	for _, r := range sd.Stats.Present() {
		fmt.Fprintf(w, "%-14s %v\n", r.Def.Kind.String()+":", r.Value)
	}
	fmt.Fprintf(w, "Skills: %v\n", format_skills(sd.Skills()))
	print_skill_warnings(w, sd.Skills())
}

// The file can hold any byte, but the game UI only copes with levels up to SKILL_MAX.
func print_skill_warnings(w io.Writer, skills []uint8) {
	for i, s := range skills {
		if s > tables.SKILL_MAX {
			fmt.Fprintf(w, "Warning: skill %v is at level %v (above %v)\n", i, s, tables.SKILL_MAX)
		}
	}
}

func format_skills(skills []uint8) string {
	parts := make([]string, len(skills))
	for i, s := range skills {
		parts[i] = strconv.Itoa(int(s))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
