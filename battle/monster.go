package battle

import (
	"fmt"
	"strconv"
	"strings"
)

// Position is a signed slot number on the field. 0 means "not on the field".
// Positive positions are on the viewing player's side, negative ones are
// opposing (or, in free-for-all, other players'). Valid magnitudes depend on
// the battle category.
type Position int

// TeamIndex is the 1-based, stable index of a Pokémon within its roster.
// 0 means "no Pokémon". Unlike a Position it never changes while the battle
// runs, except through team-preview selection.
type TeamIndex int

// MoveSlot is one of the up to four moves a Monster knows. A slot with an
// empty ID means the Pokémon knows fewer than four moves; such slots only
// occur trailing. A slot whose ID is the unknown sentinel is a move that
// exists but has not been revealed.
type MoveSlot struct {
	// ID of the move in the simulator, like "voltabsorb".
	ID string
	// Name of the move, like "Volt Absorb". May be the unknown sentinel
	// while the ID is already known, since the protocol mostly deals in IDs.
	Name string
	// PP is the remaining number of uses, -1 if unknown.
	PP int
	// MaxPP is the starting number of uses, -1 if unknown.
	MaxPP int
	// Target describes what the move may target.
	Target MoveTarget
	// Disabled is set while the move cannot be selected.
	Disabled bool
}

// UnknownMoveSlot returns a slot for a move that exists but is unrevealed.
func UnknownMoveSlot() MoveSlot {
	return MoveSlot{ID: Unknown, Name: Unknown, PP: -1, MaxPP: -1}
}

// Known reports whether the slot holds a move at all (even an unrevealed one).
func (m MoveSlot) Known() bool { return m.ID != "" }

// Monster is one Pokémon as far as the viewing player knows it. String
// fields default to the unknown sentinel where "not revealed" and "absent"
// must be told apart (item, ability, species).
type Monster struct {
	// Species as used by the simulator; forms get their own names
	// ("Mimikyu-Busted"). A trailing "*" marks an unresolved form.
	Species string
	// Nickname chosen by the owning player.
	Nickname string
	// Ability is "0", "1" or "H" for a Pokédex slot reference, an ability
	// ID when revealed, the unknown sentinel otherwise.
	Ability string
	// Item ID, empty if known to hold nothing, unknown sentinel otherwise.
	Item string
	// Ball the Pokémon is in; flair only.
	Ball string

	Shiny  bool
	Gender Gender
	Nature Nature
	Status NVStatus

	// Level from 1 to 100, -1 if unknown.
	Level int
	// Happiness from 0 to 255, -1 if unknown.
	Happiness int
	// ToxicTurns counts turns of toxic damage while Status is StatusToxic,
	// and is -1 otherwise.
	ToxicTurns int

	// HP and MaxHP are exact values, -1 when only the fraction is known.
	HP    int
	MaxHP int
	// RemainingHP is the visible HP fraction from 0 to 1. Pokémon that have
	// not been sent out report 1.
	RemainingHP float64

	// Position currently occupied, 0 if not on the field.
	Position Position
	// TeamIndex within the owning roster, 0 for a Monster outside any team.
	TeamIndex TeamIndex

	AccuracyBoost int
	EvasionBoost  int

	// IV holds individual values (0..31). For Generations I and II the
	// protocol reports DVs multiplied by two and the library passes that
	// through unchanged. Filled with -1 when unknown.
	IV Stats
	// EV holds effort values, -1-filled when unknown.
	EV Stats
	// StatBoosts holds boost stages from -6 to 6, reset on switch-out.
	StatBoosts Stats

	// LastUsedMove is the ID of the last move the Pokémon selected.
	LastUsedMove string
	// LastActivatedMove is the move that actually came out (Metronome calls
	// differ from LastUsedMove). Usually the two are equal.
	LastActivatedMove string

	Moves [4]MoveSlot

	// Volatiles maps volatile condition IDs ("confusion", "taunt") to a
	// counter, 1 for most conditions.
	Volatiles map[string]int
}

// NewMonster returns a Monster with every revealable field set to unknown.
func NewMonster() Monster {
	return Monster{
		Species:     Unknown,
		Ability:     Unknown,
		Item:        Unknown,
		Gender:      GenderUnknown,
		Nature:      NatureUnknown,
		Level:       -1,
		Happiness:   -1,
		ToxicTurns:  -1,
		HP:          -1,
		MaxHP:       -1,
		RemainingHP: 1,
		IV:          UnknownStats(),
		EV:          UnknownStats(),
	}
}

// Fainted reports whether the Pokémon is known to have fainted.
func (m *Monster) Fainted() bool {
	return m.Status == StatusFainted || m.RemainingHP <= 0
}

// SetVolatile records a volatile condition, allocating the map on first use.
func (m *Monster) SetVolatile(id string, counter int) {
	if m.Volatiles == nil {
		m.Volatiles = make(map[string]int)
	}
	m.Volatiles[id] = counter
}

// ClearVolatiles drops all volatile conditions and stat boosts, as happens
// on switch-out.
func (m *Monster) ClearVolatiles() {
	m.Volatiles = nil
	m.StatBoosts = Stats{}
	m.AccuracyBoost = 0
	m.EvasionBoost = 0
	if m.Status == StatusToxic {
		m.ToxicTurns = 0
	}
}

// MonsterDetails is the identifying part of a switch/drag/poke record:
// "Pikachu, L50, M, shiny".
type MonsterDetails struct {
	Species string
	Shiny   bool
	Gender  Gender
	Level   int
}

// ParseDetails parses the protocol's details field. Omitted level means 100,
// omitted gender means genderless.
func ParseDetails(details string) (MonsterDetails, error) {
	d := MonsterDetails{Gender: GenderNone, Level: 100}
	parts := strings.Split(details, ",")
	if parts[0] == "" {
		return d, fmt.Errorf("empty species in details %q", details)
	}
	d.Species = strings.TrimSpace(parts[0])
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		switch {
		case part == "shiny":
			d.Shiny = true
		case part == "M":
			d.Gender = GenderMale
		case part == "F":
			d.Gender = GenderFemale
		case part == "N":
			d.Gender = GenderNone
		case strings.HasPrefix(part, "L"):
			level, err := strconv.Atoi(part[1:])
			if err != nil || level < 1 || level > 100 {
				return d, fmt.Errorf("bad level in details %q", details)
			}
			d.Level = level
		case strings.HasPrefix(part, "tera:"):
			// Later-generation flair; irrelevant to the tracked state.
		default:
			return d, fmt.Errorf("unrecognized details token %q in %q", part, details)
		}
	}
	return d, nil
}

// MonsterHP is the HP part of a switch/drag record, either exact
// ("73/100") or a bare fraction/percentage.
type MonsterHP struct {
	// Current and Max are exact values, -1 if only the fraction is known.
	Current int
	Max     int
	// Remaining is the HP fraction from 0 to 1.
	Remaining float64
	// Status parsed from a trailing token like "73/100 par".
	Status NVStatus
}

// ParseHP parses the protocol's HP-and-status field. When exact is set the
// numbers are taken at face value; otherwise they are treated as the
// fraction-only view an observer gets ("47/100" meaning 47%).
func ParseHP(field string, exact bool) (MonsterHP, error) {
	hp := MonsterHP{Current: -1, Max: -1, Remaining: 1}
	body := field
	if i := strings.IndexByte(field, ' '); i >= 0 {
		body = field[:i]
		status, err := StatusByName(strings.TrimSpace(field[i+1:]))
		if err != nil {
			return hp, fmt.Errorf("bad status in HP field %q: %w", field, err)
		}
		hp.Status = status
	}
	if body == "0" {
		hp.Remaining = 0
		hp.Status = StatusFainted
		if exact {
			hp.Current = 0
		}
		return hp, nil
	}
	cur, max, found := strings.Cut(body, "/")
	if !found {
		return hp, fmt.Errorf("malformed HP field %q", field)
	}
	curN, err := strconv.Atoi(cur)
	if err != nil {
		return hp, fmt.Errorf("malformed HP field %q", field)
	}
	maxN, err := strconv.Atoi(max)
	if err != nil || maxN <= 0 || curN < 0 {
		return hp, fmt.Errorf("malformed HP field %q", field)
	}
	hp.Remaining = float64(curN) / float64(maxN)
	if exact {
		hp.Current = curN
		hp.Max = maxN
	}
	return hp, nil
}
