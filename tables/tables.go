package tables

// Lookup tables for things the save file stores as small numbers.

import "fmt"

type Class uint8

const (
	CLASS_AMAZON Class = iota
	CLASS_SORCERESS
	CLASS_NECROMANCER
	CLASS_PALADIN
	CLASS_BARBARIAN
	CLASS_DRUID
	CLASS_ASSASSIN

	CLASS_COUNT
)

var Classes = map[Class]string{
	CLASS_AMAZON:      "Amazon",
	CLASS_SORCERESS:   "Sorceress",
	CLASS_NECROMANCER: "Necromancer",
	CLASS_PALADIN:     "Paladin",
	CLASS_BARBARIAN:   "Barbarian",
	CLASS_DRUID:       "Druid",
	CLASS_ASSASSIN:    "Assassin",
}

func (c Class) Valid() bool {
	return c < CLASS_COUNT
}

func (c Class) String() string {
	name, ok := Classes[c]
	if !ok {
		return fmt.Sprintf("Unknown (%d)", uint8(c))
	}
	return name
}

// Each class has 30 skills, 10 per tree; the file stores one level byte per skill.
const SKILL_COUNT = 30

// Skill levels beyond this can be stored, but the game UI won't show them properly.
const SKILL_MAX = 99
