package battle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Wire shape of a simulator request, the JSON payload of a request record.
type requestJSON struct {
	Wait        bool            `json:"wait"`
	TeamPreview bool            `json:"teamPreview"`
	MaxTeamSize int             `json:"maxTeamSize"`
	ForceSwitch []bool          `json:"forceSwitch"`
	Active      []requestActive `json:"active"`
	Side        requestSide     `json:"side"`
	RQID        json.RawMessage `json:"rqid"`
}

type requestActive struct {
	Moves   []requestMove `json:"moves"`
	Trapped bool          `json:"trapped"`
}

type requestMove struct {
	Move     string `json:"move"`
	ID       string `json:"id"`
	PP       int    `json:"pp"`
	MaxPP    int    `json:"maxpp"`
	Target   string `json:"target"`
	Disabled bool   `json:"disabled"`
}

type requestSide struct {
	Name    string           `json:"name"`
	ID      string           `json:"id"`
	Pokemon []requestPokemon `json:"pokemon"`
}

type requestPokemon struct {
	Ident       string   `json:"ident"`
	Details     string   `json:"details"`
	Condition   string   `json:"condition"`
	Active      bool     `json:"active"`
	Moves       []string `json:"moves"`
	BaseAbility string   `json:"baseAbility"`
	Ability     string   `json:"ability"`
	Item        string   `json:"item"`
	Pokeball    string   `json:"pokeball"`
}

// ApplyRequest replaces the pending request from a request record's JSON
// payload and refreshes the viewer's roster from the side data it carries.
// This is the one place the viewer's own moves, items and abilities become
// fully known.
func (s *State) ApplyRequest(raw []byte) error {
	var req requestJSON
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("malformed request JSON: %w", err)
	}

	if len(req.Side.Pokemon) > 0 {
		if err := s.applySideData(req.Side); err != nil {
			return err
		}
	}

	switch {
	case req.Wait:
		s.setRequest(RequestNone)
	case req.TeamPreview:
		s.initialTeamSize = len(req.Side.Pokemon)
		if req.MaxTeamSize > 0 && req.MaxTeamSize < s.initialTeamSize {
			s.battlingTeamSize = req.MaxTeamSize
		} else {
			s.battlingTeamSize = s.initialTeamSize
		}
		s.setRequest(RequestSelectTeam)
	case anyTrue(req.ForceSwitch):
		s.setRequest(RequestSelectMonster)
	case len(req.Active) > 0:
		if err := s.applyActiveData(req.Active); err != nil {
			return err
		}
		s.setRequest(RequestTurn)
	default:
		s.setRequest(RequestNone)
	}
	return nil
}

func anyTrue(flags []bool) bool {
	for _, f := range flags {
		if f {
			return true
		}
	}
	return false
}

// applySideData rebuilds the viewer's roster from the request's side block.
// Roster order in the request is authoritative: entry i is team index i+1.
func (s *State) applySideData(side requestSide) error {
	s.growRoster(s.viewer, len(side.Pokemon))
	roster := s.teams[s.viewer-1]
	for i, rp := range side.Pokemon {
		m := &roster[i]
		details, err := ParseDetails(rp.Details)
		if err != nil {
			return fmt.Errorf("request side pokemon %d: %w", i+1, err)
		}
		m.Species = details.Species
		m.Shiny = details.Shiny
		m.Gender = details.Gender
		m.Level = details.Level
		m.TeamIndex = TeamIndex(i + 1)
		if nick, ok := strings.CutPrefix(rp.Ident, side.ID+": "); ok {
			m.Nickname = nick
		}

		// Own Pokémon report exact HP unless the state belongs to an
		// observer; everything else stays fractional.
		hp, err := ParseHP(rp.Condition, !s.observer)
		if err != nil {
			return fmt.Errorf("request side pokemon %d: %w", i+1, err)
		}
		m.HP = hp.Current
		m.MaxHP = hp.Max
		m.RemainingHP = hp.Remaining
		m.Status = hp.Status

		m.Ability = rp.Ability
		if m.Ability == "" {
			m.Ability = rp.BaseAbility
		}
		m.Item = rp.Item
		m.Ball = rp.Pokeball
		for slot := range m.Moves {
			if slot < len(rp.Moves) {
				id := rp.Moves[slot]
				keep := m.Moves[slot]
				m.Moves[slot] = MoveSlot{ID: id, Name: Unknown, PP: -1, MaxPP: -1}
				if keep.ID == id {
					m.Moves[slot] = keep
				}
			} else {
				m.Moves[slot] = MoveSlot{}
			}
		}
	}
	return nil
}

// applyActiveData merges per-active-slot move data (PP, targets, disabled
// flags) into the Pokémon currently occupying the viewer's lanes.
func (s *State) applyActiveData(active []requestActive) error {
	for lane, act := range active {
		pos := Position(lane + 1)
		if !s.category.ValidPosition(pos) {
			return fmt.Errorf("request describes active slot %d, invalid in %s", lane+1, s.category)
		}
		m := s.Monster(pos, 0)
		if m == nil {
			// The occupant may not have been announced yet; request data
			// for an empty slot is merged later via the side block.
			continue
		}
		for slot, rm := range act.Moves {
			if slot >= len(m.Moves) {
				break
			}
			m.Moves[slot] = MoveSlot{
				ID:       rm.ID,
				Name:     rm.Move,
				PP:       rm.PP,
				MaxPP:    rm.MaxPP,
				Target:   TargetByName(rm.Target),
				Disabled: rm.Disabled,
			}
		}
	}
	return nil
}
