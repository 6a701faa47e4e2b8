package battle

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// statsJSON is the wire shape of an EV/IV block in team JSON.
type statsJSON struct {
	HP  int `json:"hp"`
	Atk int `json:"atk"`
	Def int `json:"def"`
	SpA int `json:"spa"`
	SpD int `json:"spd"`
	Spe int `json:"spe"`
}

func toStatsJSON(s Stats) statsJSON {
	return statsJSON{HP: s.HP, Atk: s.Attack, Def: s.Defense, SpA: s.SpecialAttack, SpD: s.SpecialDefense, Spe: s.Speed}
}

func fromStatsJSON(s statsJSON) Stats {
	return Stats{HP: s.HP, Attack: s.Atk, Defense: s.Def, SpecialAttack: s.SpA, SpecialDefense: s.SpD, Speed: s.Spe}
}

// monsterJSON is one team member in the JSON team format shared with the
// simulator's own team tooling.
type monsterJSON struct {
	Ability   string    `json:"ability,omitempty"`
	Ball      string    `json:"ball,omitempty"`
	EVs       statsJSON `json:"evs"`
	Gender    string    `json:"gender,omitempty"`
	Happiness int       `json:"happiness"`
	IVs       statsJSON `json:"ivs"`
	Item      string    `json:"item,omitempty"`
	Level     int       `json:"level"`
	Moves     []string  `json:"moves"`
	Name      string    `json:"name"`
	Nature    string    `json:"nature,omitempty"`
	Shiny     bool      `json:"shiny,omitempty"`
	Species   string    `json:"species"`
}

func genderLetter(g Gender) string {
	switch g {
	case GenderMale:
		return "M"
	case GenderFemale:
		return "F"
	default:
		return ""
	}
}

func genderFromLetter(letter string) Gender {
	switch letter {
	case "M":
		return GenderMale
	case "F":
		return GenderFemale
	default:
		return GenderNone
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// moveIDs collects the known move IDs of a Monster, rejecting unrevealed
// slots: serialization requires concrete values.
func moveIDs(m *Monster) ([]string, error) {
	var ids []string
	for _, slot := range m.Moves {
		if !slot.Known() {
			break
		}
		if slot.ID == Unknown {
			return nil, fmt.Errorf("%s has an unrevealed move, cannot serialize", m.Species)
		}
		ids = append(ids, slot.ID)
	}
	return ids, nil
}

// TeamToJSON renders a team in the JSON array format. Every serialized field
// must hold a concrete (non-unknown) value; which fields are emitted depends
// on the generation, since older games lack abilities, natures or balls.
func TeamToJSON(generation int, team []Monster) ([]byte, error) {
	out := make([]monsterJSON, 0, len(team))
	for i := range team {
		m := &team[i]
		if m.Species == Unknown || m.Species == "" {
			return nil, fmt.Errorf("team member %d has no species", i+1)
		}
		if m.Level < 1 || m.Happiness < 0 {
			return nil, fmt.Errorf("%s needs a concrete level and happiness", m.Species)
		}
		moves, err := moveIDs(m)
		if err != nil {
			return nil, err
		}
		mj := monsterJSON{
			EVs:       toStatsJSON(m.EV),
			Happiness: m.Happiness,
			IVs:       toStatsJSON(m.IV),
			Level:     m.Level,
			Moves:     moves,
			Name:      m.Nickname,
			Species:   m.Species,
		}
		if generation >= 2 {
			if m.Ability == Unknown {
				return nil, fmt.Errorf("%s has an unknown ability", m.Species)
			}
			if m.Item == Unknown {
				return nil, fmt.Errorf("%s has an unknown item", m.Species)
			}
			mj.Ability = m.Ability
			mj.Item = m.Item
			mj.Gender = genderLetter(m.Gender)
			mj.Shiny = m.Shiny
		}
		if generation >= 3 {
			if m.Nature == NatureUnknown {
				return nil, fmt.Errorf("%s has an unknown nature", m.Species)
			}
			mj.Ball = m.Ball
			mj.Nature = titleCase(m.Nature.Name())
		}
		out = append(out, mj)
	}
	return json.Marshal(out)
}

// TeamFromJSON parses the JSON array team format.
func TeamFromJSON(raw []byte) ([]Monster, error) {
	var in []monsterJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("malformed team JSON: %w", err)
	}
	team := make([]Monster, 0, len(in))
	for i, mj := range in {
		m := NewMonster()
		m.Species = mj.Species
		m.Nickname = mj.Name
		m.Ability = mj.Ability
		m.Item = mj.Item
		m.Ball = mj.Ball
		m.Gender = genderFromLetter(mj.Gender)
		m.Shiny = mj.Shiny
		m.Level = mj.Level
		m.Happiness = mj.Happiness
		m.EV = fromStatsJSON(mj.EVs)
		m.IV = fromStatsJSON(mj.IVs)
		m.TeamIndex = TeamIndex(i + 1)
		if mj.Nature != "" {
			nature, err := NatureByName(mj.Nature)
			if err != nil {
				return nil, fmt.Errorf("team member %d: %w", i+1, err)
			}
			m.Nature = nature
		} else {
			m.Nature = NatureNone
		}
		for slot, id := range mj.Moves {
			if slot >= len(m.Moves) {
				return nil, fmt.Errorf("team member %d has more than 4 moves", i+1)
			}
			m.Moves[slot] = MoveSlot{ID: id, Name: Unknown, PP: -1, MaxPP: -1}
		}
		team = append(team, m)
	}
	return team, nil
}

func statsCSV(s Stats) string {
	vals := make([]string, 6)
	for i := 0; i <= StatMaxIndex; i++ {
		vals[i] = strconv.Itoa(s.Get(i))
	}
	return strings.Join(vals, ",")
}

func statsFromCSV(field string, fallback int) (Stats, error) {
	var s Stats
	if field == "" {
		for i := 0; i <= StatMaxIndex; i++ {
			*s.At(i) = fallback
		}
		return s, nil
	}
	parts := strings.Split(field, ",")
	if len(parts) != 6 {
		return s, fmt.Errorf("stat block %q does not have 6 entries", field)
	}
	for i, p := range parts {
		if p == "" {
			*s.At(i) = fallback
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return s, fmt.Errorf("stat block %q: %w", field, err)
		}
		*s.At(i) = v
	}
	return s, nil
}

// PackTeam renders a team in the simulator's packed single-line format:
// eleven |-separated fields per Pokémon, Pokémon joined by ']'.
func PackTeam(team []Monster) (string, error) {
	entries := make([]string, 0, len(team))
	for i := range team {
		m := &team[i]
		moves, err := moveIDs(m)
		if err != nil {
			return "", err
		}
		name := m.Nickname
		species := m.Species
		if name == "" {
			name = species
			species = ""
		}
		shiny := ""
		if m.Shiny {
			shiny = "S"
		}
		level := ""
		if m.Level != 100 && m.Level > 0 {
			level = strconv.Itoa(m.Level)
		}
		tail := ""
		if m.Happiness >= 0 && m.Happiness != 255 {
			tail = strconv.Itoa(m.Happiness)
		}
		if m.Ball != "" {
			tail += "," + m.Ball
		}
		fields := []string{
			name,
			species,
			m.Item,
			m.Ability,
			strings.Join(moves, ","),
			titleCase(m.Nature.Name()),
			statsCSV(m.EV),
			genderLetter(m.Gender),
			statsCSV(m.IV),
			shiny,
			level,
			tail,
		}
		entries = append(entries, strings.Join(fields, "|"))
	}
	return strings.Join(entries, "]"), nil
}

// UnpackTeam parses the packed single-line team format.
func UnpackTeam(packed string) ([]Monster, error) {
	if strings.TrimSpace(packed) == "" {
		return nil, nil
	}
	var team []Monster
	for i, entry := range strings.Split(packed, "]") {
		fields := strings.Split(entry, "|")
		if len(fields) != 12 {
			return nil, fmt.Errorf("packed team member %d has %d fields, want 12", i+1, len(fields))
		}
		m := NewMonster()
		m.Nickname = fields[0]
		m.Species = fields[1]
		if m.Species == "" {
			m.Species = m.Nickname
			m.Nickname = ""
		}
		m.Item = fields[2]
		m.Ability = fields[3]
		for slot, id := range strings.Split(fields[4], ",") {
			if id == "" {
				continue
			}
			if slot >= len(m.Moves) {
				return nil, fmt.Errorf("packed team member %d has more than 4 moves", i+1)
			}
			m.Moves[slot] = MoveSlot{ID: id, Name: Unknown, PP: -1, MaxPP: -1}
		}
		if fields[5] != "" {
			nature, err := NatureByName(fields[5])
			if err != nil {
				return nil, fmt.Errorf("packed team member %d: %w", i+1, err)
			}
			m.Nature = nature
		} else {
			m.Nature = NatureNone
		}
		ev, err := statsFromCSV(fields[6], 0)
		if err != nil {
			return nil, fmt.Errorf("packed team member %d: %w", i+1, err)
		}
		m.EV = ev
		m.Gender = genderFromLetter(fields[7])
		iv, err := statsFromCSV(fields[8], 31)
		if err != nil {
			return nil, fmt.Errorf("packed team member %d: %w", i+1, err)
		}
		m.IV = iv
		m.Shiny = fields[9] == "S"
		m.Level = 100
		if fields[10] != "" {
			level, err := strconv.Atoi(fields[10])
			if err != nil {
				return nil, fmt.Errorf("packed team member %d: bad level %q", i+1, fields[10])
			}
			m.Level = level
		}
		m.Happiness = 255
		tail := strings.Split(fields[11], ",")
		if tail[0] != "" {
			hap, err := strconv.Atoi(tail[0])
			if err != nil {
				return nil, fmt.Errorf("packed team member %d: bad happiness %q", i+1, tail[0])
			}
			m.Happiness = hap
		}
		if len(tail) > 1 {
			m.Ball = tail[1]
		}
		m.TeamIndex = TeamIndex(len(team) + 1)
		team = append(team, m)
	}
	return team, nil
}
