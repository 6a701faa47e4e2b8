package battle

import (
	"fmt"

	"showdown-engine/lexicon"
)

// Stat indices, usable with Stats.At and Nature.Increases/Decreases.
const (
	StatHP = iota
	StatAttack
	StatDefense
	StatSpecialAttack
	StatSpecialDefense
	StatSpeed

	StatMaxIndex = StatSpeed
)

// Stats holds one value per stat. It is used for base stats, IVs, EVs and
// boost stages alike; the meaning of the numbers depends on the field it
// lives in.
type Stats struct {
	HP             int
	Attack         int
	Defense        int
	SpecialAttack  int
	SpecialDefense int
	Speed          int
}

// UnknownStats returns a Stats filled with -1, the "unknown" filler for
// opposing Pokémon.
func UnknownStats() Stats {
	return Stats{HP: -1, Attack: -1, Defense: -1, SpecialAttack: -1, SpecialDefense: -1, Speed: -1}
}

var statNameTable = lexicon.MustNew([]lexicon.Entry{
	{Key: "hp", Value: StatHP},
	{Key: "attack", Value: StatAttack}, {Key: "atk", Value: StatAttack},
	{Key: "defense", Value: StatDefense}, {Key: "def", Value: StatDefense},
	{Key: "specialattack", Value: StatSpecialAttack}, {Key: "spa", Value: StatSpecialAttack},
	{Key: "specialdefense", Value: StatSpecialDefense}, {Key: "spd", Value: StatSpecialDefense},
	{Key: "speed", Value: StatSpeed}, {Key: "spe", Value: StatSpeed},
})

// StatIndexOf resolves a stat name or abbreviation ("SpecialAttack", "spa")
// to its index. Case-insensitive; spaces, underscores and hyphens ignored.
func StatIndexOf(name string) (int, error) {
	v, err := statNameTable.Lookup(name, true)
	if err != nil {
		return 0, fmt.Errorf("unknown stat %q: %w", name, err)
	}
	return v, nil
}

// At returns a pointer to the stat with the given index. It panics on an
// out-of-range index, which is a programming error.
func (s *Stats) At(index int) *int {
	switch index {
	case StatHP:
		return &s.HP
	case StatAttack:
		return &s.Attack
	case StatDefense:
		return &s.Defense
	case StatSpecialAttack:
		return &s.SpecialAttack
	case StatSpecialDefense:
		return &s.SpecialDefense
	case StatSpeed:
		return &s.Speed
	}
	panic(fmt.Sprintf("battle: stat index %d out of range", index))
}

// Get is the read-only counterpart of At.
func (s Stats) Get(index int) int {
	return *(&s).At(index)
}
