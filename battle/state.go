package battle

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotImplemented marks an intentionally unhandled protocol feature, such
// as free-for-all opponent positions. It is never swallowed silently.
var ErrNotImplemented = errors.New("not implemented")

var errFFAUnsupported = fmt.Errorf("free-for-all opponent rosters: %w", ErrNotImplemented)

// PlayerID is a protocol player number, 1 through 4 ("p1".."p4").
type PlayerID int

// ActionShift is the Order action recorded by Order3BShift. It serializes as
// the simulator's "shift" choice and only occurs in triples.
const ActionShift = -1

// Lanes reports how many field slots each side of the category has.
func (c Category) Lanes() int {
	switch c {
	case Doubles, Multi:
		return 2
	case Triples:
		return 3
	default:
		return 1
	}
}

// ValidPosition reports whether pos is a defined slot in the category.
func (c Category) ValidPosition(pos Position) bool {
	switch c {
	case FreeForAll:
		return pos == 1 || pos == -1 || pos == -2 || pos == -3
	default:
		n := Position(c.Lanes())
		return pos != 0 && pos >= -n && pos <= n
	}
}

// Adjacent reports whether two distinct valid positions are adjacent under
// the category's rules. In triples the center lanes touch everything; in
// free-for-all everything touches everything.
func (c Category) Adjacent(a, b Position) bool {
	if a == b || !c.ValidPosition(a) || !c.ValidPosition(b) {
		return false
	}
	if c != Triples {
		return true
	}
	// Triples: 1, -1, 2, -2 touch each other, as do 3, -3, 2, -2. The outer
	// lanes 1 and 3 never touch.
	lane := func(p Position) Position {
		if p < 0 {
			return -p
		}
		return p
	}
	return !(lane(a) == 1 && lane(b) == 3) && !(lane(a) == 3 && lane(b) == 1)
}

// State is the canonical snapshot of one battle from one player's viewpoint.
//
// A State is exclusively owned by whoever currently holds it: the connection
// while it parses protocol records, the listener between a RequestOrders call
// and the matching SendOrders. It has no internal locking.
type State struct {
	category   Category
	generation int
	id         uint64
	timestamp  time.Time

	viewer   PlayerID
	observer bool

	request Request
	outcome Outcome
	turn    int

	rules            RuleSet
	nonstandardRules map[string]struct{}

	initialTeamSize  int
	battlingTeamSize int

	// teams is indexed by PlayerID-1. Only the slots that exist for the
	// category are ever populated.
	teams [4][]Monster
	// occupants maps a field position to the 1-based roster index of the
	// Pokémon standing there, within the roster of the player owning that
	// position.
	occupants map[Position]TeamIndex

	orders    map[Position]Order
	teamOrder []TeamIndex
}

// NewState constructs a battle state. Category and generation are fixed for
// the lifetime of the state; the ID and timestamp are caller-chosen and only
// echoed back. The viewer is the player whose viewpoint this state tracks.
func NewState(category Category, generation int, id uint64, timestamp time.Time, viewer PlayerID) *State {
	if generation < GenerationMin || generation > GenerationMax {
		panic(fmt.Sprintf("battle: generation %d out of range", generation))
	}
	if viewer < 1 || PlayerID(category.MaxPlayers()) < viewer {
		panic(fmt.Sprintf("battle: viewer p%d invalid for %s", viewer, category))
	}
	return &State{
		category:         category,
		generation:       generation,
		id:               id,
		timestamp:        timestamp,
		viewer:           viewer,
		nonstandardRules: make(map[string]struct{}),
		occupants:        make(map[Position]TeamIndex),
		orders:           make(map[Position]Order),
	}
}

func (s *State) Category() Category   { return s.category }
func (s *State) Generation() int      { return s.generation }
func (s *State) ID() uint64           { return s.id }
func (s *State) Timestamp() time.Time { return s.timestamp }
func (s *State) Viewer() PlayerID     { return s.viewer }
func (s *State) Request() Request     { return s.request }
func (s *State) Outcome() Outcome     { return s.outcome }
func (s *State) Turn() int            { return s.turn }
func (s *State) Rules() RuleSet       { return s.rules }

// Observer reports whether this state tracks a battle the viewer is only
// watching. Observers never see exact HP, even for "their" side.
func (s *State) Observer() bool { return s.observer }

// SetObserver marks the state as an observer's view. Connection-level setup
// only; flipping it mid-battle does not rewrite already-parsed HP values.
func (s *State) SetObserver(observer bool) { s.observer = observer }

// NonstandardRules returns the set of rule clauses that were announced but
// not recognized by name. The returned map is owned by the State; treat it
// as read-only.
func (s *State) NonstandardRules() map[string]struct{} { return s.nonstandardRules }

func (s *State) InitialTeamSize() int  { return s.initialTeamSize }
func (s *State) BattlingTeamSize() int { return s.battlingTeamSize }

// positionOwner resolves which player's roster the given position belongs
// to. The mapping depends on the category and on who is viewing: the same
// field slot is "position 1" to its owner and "position -1" or "-2" to the
// players opposite.
func (s *State) positionOwner(pos Position) (PlayerID, error) {
	if !s.category.ValidPosition(pos) {
		return 0, fmt.Errorf("position %d not valid in %s", pos, s.category)
	}
	switch s.category {
	case Singles, Doubles, Triples:
		if pos > 0 {
			return s.viewer, nil
		}
		if s.viewer == 1 {
			return 2, nil
		}
		return 1, nil
	case Multi:
		// Allies are p1/p3 and p2/p4; positive positions are the allied
		// side, position 1 always the viewer's own slot.
		ally := map[PlayerID]PlayerID{1: 3, 3: 1, 2: 4, 4: 2}
		facing := map[PlayerID]PlayerID{1: 4, 3: 2, 2: 3, 4: 1}
		diagonal := map[PlayerID]PlayerID{1: 2, 3: 4, 2: 1, 4: 3}
		switch pos {
		case 1:
			return s.viewer, nil
		case 2:
			return ally[s.viewer], nil
		case -1:
			return facing[s.viewer], nil
		default: // -2
			return diagonal[s.viewer], nil
		}
	default: // FreeForAll
		if pos == 1 {
			return s.viewer, nil
		}
		return 0, fmt.Errorf("free-for-all position %d: %w", pos, errFFAUnsupported)
	}
}

// controlled reports whether the viewer may give orders for the position.
// That is every positive slot of the category, including the ally's slot 2
// in multi battles.
func (s *State) controlled(pos Position) bool {
	return pos > 0 && s.category.ValidPosition(pos)
}

// Monster returns the Pokémon at the given 1-based teamIndex on the roster
// of the player controlling pos, or the active occupant of pos when
// teamIndex is 0. It returns nil if the slot is out of range or unoccupied,
// never a half-initialized value. The pointer stays valid as long as the
// State does and writes through it are visible to later queries.
func (s *State) Monster(pos Position, teamIndex TeamIndex) *Monster {
	owner, err := s.positionOwner(pos)
	if err != nil {
		return nil
	}
	if teamIndex == 0 {
		teamIndex = s.occupants[pos]
		if teamIndex == 0 {
			return nil
		}
	}
	roster := s.teams[owner-1]
	if int(teamIndex) < 1 || int(teamIndex) > len(roster) {
		return nil
	}
	return &roster[teamIndex-1]
}

// TeamIndexAt returns the roster index of the Pokémon occupying pos, or 0 if
// the position does not exist or is empty.
func (s *State) TeamIndexAt(pos Position) TeamIndex {
	if !s.category.ValidPosition(pos) {
		return 0
	}
	return s.occupants[pos]
}

// TeamSize returns the known roster length for a player.
func (s *State) TeamSize(player PlayerID) int {
	if player < 1 || player > 4 {
		return 0
	}
	return len(s.teams[player-1])
}

// Orders returns the per-position orders recorded so far. The map is owned
// by the State.
func (s *State) Orders() map[Position]Order { return s.orders }

// TeamOrder returns the team-preview selection recorded by SelectTeam, nil
// if none.
func (s *State) TeamOrder() []TeamIndex { return s.teamOrder }

// ClearOrders drops all recorded orders and the team selection. The
// connection calls it after serializing a submission.
func (s *State) ClearOrders() {
	for pos := range s.orders {
		delete(s.orders, pos)
	}
	s.teamOrder = nil
}

// SelectTeam records which roster members will battle, in lead order. Legal
// only while Request is RequestSelectTeam. The indices must be distinct,
// within [1, InitialTeamSize], and exactly BattlingTeamSize of them.
//
// The viewer's roster is rearranged immediately: the chosen Pokémon move to
// the front in selection order and the rest are dropped, so later switch
// records resolve against the reordered indices.
func (s *State) SelectTeam(indices []TeamIndex) error {
	if s.request != RequestSelectTeam {
		return invalidOrder(Order{}, 0, "team selection is only possible during team preview (request is %s)", s.request)
	}
	if len(indices) != s.battlingTeamSize {
		return invalidOrder(Order{}, 0, "need exactly %d team indices, got %d", s.battlingTeamSize, len(indices))
	}
	seen := make(map[TeamIndex]struct{}, len(indices))
	for _, idx := range indices {
		if int(idx) < 1 || int(idx) > s.initialTeamSize {
			return invalidOrder(Order{}, 0, "team index %d outside [1, %d]", idx, s.initialTeamSize)
		}
		if _, dup := seen[idx]; dup {
			return invalidOrder(Order{}, 0, "team index %d repeated", idx)
		}
		seen[idx] = struct{}{}
	}
	roster := s.teams[s.viewer-1]
	reordered := make([]Monster, 0, len(indices))
	for newIdx, oldIdx := range indices {
		if int(oldIdx) <= len(roster) {
			m := roster[oldIdx-1]
			m.TeamIndex = TeamIndex(newIdx + 1)
			reordered = append(reordered, m)
		}
	}
	s.teams[s.viewer-1] = reordered
	s.teamOrder = append([]TeamIndex(nil), indices...)
	return nil
}

// OrderSwitch records an order to replace the Pokémon at pos with the roster
// member newIndex. It returns the team index of the current occupant, 0 if
// the position is empty.
//
// During team preview with a full-size team this rearranges the roster
// instead of recording a switch, mirroring how the simulator treats switch
// choices at that point. TeamOrder then reports the rearrangement in
// original roster indices.
func (s *State) OrderSwitch(pos Position, newIndex TeamIndex, force bool) (TeamIndex, error) {
	order := Order{Action: 4 + int(newIndex)}
	if !s.controlled(pos) {
		return 0, invalidOrder(order, pos, "position %d is not controlled by you", pos)
	}
	if s.request == RequestNone {
		return 0, invalidOrder(order, pos, "no orders are expected right now")
	}
	owner, err := s.positionOwner(pos)
	if err != nil {
		return 0, invalidOrder(order, pos, "%v", err)
	}
	roster := s.teams[owner-1]
	if int(newIndex) < 1 || int(newIndex) > len(roster) {
		return 0, invalidOrder(order, pos, "no Pokémon with team index %d", newIndex)
	}
	if s.request == RequestSelectTeam {
		if s.initialTeamSize != s.battlingTeamSize {
			return 0, invalidOrder(order, pos, "use SelectTeam: only %d of %d Pokémon may battle", s.battlingTeamSize, s.initialTeamSize)
		}
		// Full-team preview: reorder instead of recording a switch. The
		// cumulative permutation is tracked in original indices so the
		// serialized selection tells the simulator the same order.
		lead := int(pos)
		cur := roster[lead-1]
		src := roster[newIndex-1]
		roster[lead-1], roster[newIndex-1] = src, cur
		roster[lead-1].TeamIndex = TeamIndex(lead)
		roster[newIndex-1].TeamIndex = newIndex
		if len(s.teamOrder) == 0 {
			s.teamOrder = make([]TeamIndex, len(roster))
			for i := range s.teamOrder {
				s.teamOrder[i] = TeamIndex(i + 1)
			}
		}
		s.teamOrder[lead-1], s.teamOrder[newIndex-1] = s.teamOrder[newIndex-1], s.teamOrder[lead-1]
		return s.occupants[pos], nil
	}
	target := &roster[newIndex-1]
	if !force {
		if target.Fainted() {
			return 0, invalidOrder(order, pos, "%s has fainted", target.Species)
		}
		if target.Position != 0 {
			return 0, invalidOrder(order, pos, "%s is already on the field", target.Species)
		}
	}
	s.orders[pos] = order
	return s.occupants[pos], nil
}

// OrderUseMove records an order for the Pokémon at pos to use the move in
// the given 1-based slot, optionally mega-evolving, using a Z-Move or
// dynamaxing first. Modifiers are checked against the battle's generation.
func (s *State) OrderUseMove(pos Position, slot int, modifier MoveModifier, force bool) error {
	order := Order{Action: slot, Modifier: modifier}
	if !s.controlled(pos) {
		return invalidOrder(order, pos, "position %d is not controlled by you", pos)
	}
	if s.request != RequestTurn {
		return invalidOrder(order, pos, "moves can only be ordered during a turn (request is %s)", s.request)
	}
	if slot < 1 || slot > 4 {
		return invalidOrder(order, pos, "move slot %d outside [1, 4]", slot)
	}
	switch modifier {
	case ModifierNone:
	case ModifierMega:
		if s.generation < 6 {
			return invalidOrder(order, pos, "mega evolution requires generation 6, battle is generation %d", s.generation)
		}
	case ModifierZ:
		if s.generation < 7 {
			return invalidOrder(order, pos, "Z-Moves require generation 7, battle is generation %d", s.generation)
		}
	case ModifierDynamax:
		if s.generation < 8 {
			return invalidOrder(order, pos, "dynamaxing requires generation 8, battle is generation %d", s.generation)
		}
	default:
		return invalidOrder(order, pos, "unknown move modifier %d", modifier)
	}
	if !force {
		occupant := s.Monster(pos, 0)
		if occupant == nil {
			return invalidOrder(order, pos, "no Pokémon at position %d", pos)
		}
		ms := occupant.Moves[slot-1]
		if !ms.Known() || ms.ID == Unknown {
			return invalidOrder(order, pos, "no known move in slot %d", slot)
		}
		if ms.Disabled {
			return invalidOrder(order, pos, "%s is disabled", ms.Name)
		}
	}
	s.orders[pos] = order
	return nil
}

// Order3BShift records the triples-only order to shift the Pokémon at
// position 1 or 3 toward the center.
func (s *State) Order3BShift(pos Position) error {
	order := Order{Action: ActionShift}
	if s.category != Triples {
		return invalidOrder(order, pos, "shifting only exists in triples")
	}
	if pos != 1 && pos != 3 {
		return invalidOrder(order, pos, "only positions 1 and 3 can shift")
	}
	if s.Monster(pos, 0) == nil {
		return invalidOrder(order, pos, "no Pokémon at position %d", pos)
	}
	s.orders[pos] = order
	return nil
}

// ===== Protocol-facing mutators =====
//
// The methods below are called by the record interpreter and trust it to
// have parsed correctly; they do not perform order validation. Structural
// violations (a position outside the category, an unknown player) are
// programming errors and panic.

// ApplyTurn advances the turn counter.
func (s *State) ApplyTurn(turn int) { s.turn = turn }

// ApplyRule registers a rule record. The clause name is whatever precedes
// the first colon; recognized clauses set a bit, everything else lands in
// the nonstandard set verbatim.
func (s *State) ApplyRule(rule string) {
	name := rule
	if i := strings.IndexByte(rule, ':'); i >= 0 {
		name = rule[:i]
	}
	name = strings.TrimSpace(name)
	if bit, err := RuleByName(name); err == nil {
		s.rules |= bit
	} else {
		s.nonstandardRules[name] = struct{}{}
	}
}

// ApplyTeamSize registers a player's announced team size, growing the roster
// with unknown Pokémon. For the viewer it also fixes the battling team size,
// and the initial size if team preview has not overridden it.
func (s *State) ApplyTeamSize(player PlayerID, size int) {
	if player < 1 || PlayerID(s.category.MaxPlayers()) < player {
		panic(fmt.Sprintf("battle: team size for invalid player p%d", player))
	}
	if size < 0 {
		panic(fmt.Sprintf("battle: negative team size %d", size))
	}
	s.growRoster(player, size)
	if player == s.viewer {
		s.battlingTeamSize = size
		if s.initialTeamSize < size {
			s.initialTeamSize = size
		}
	}
}

func (s *State) growRoster(player PlayerID, size int) {
	roster := s.teams[player-1]
	for len(roster) < size {
		m := NewMonster()
		m.TeamIndex = TeamIndex(len(roster) + 1)
		roster = append(roster, m)
	}
	s.teams[player-1] = roster
}

// ApplyOutcome records a terminal outcome. Once terminal, later calls are
// ignored: the outcome moves from Ongoing to exactly one final value.
func (s *State) ApplyOutcome(outcome Outcome) {
	if s.outcome.Terminal() {
		return
	}
	s.outcome = outcome
}

// ApplySwitch registers that the Pokémon described by details entered pos,
// replacing whatever stood there. drag distinguishes forced switches
// (Whirlwind and friends) from chosen ones. It returns the team indices of
// the outgoing and incoming Pokémon.
func (s *State) ApplySwitch(drag bool, pos Position, details MonsterDetails, hp MonsterHP) (outgoing, incoming TeamIndex) {
	owner, err := s.positionOwner(pos)
	if err != nil {
		panic(fmt.Sprintf("battle: switch onto invalid position: %v", err))
	}
	_ = drag // chosen and forced switches mutate the state identically
	outgoing = s.occupants[pos]
	if outgoing != 0 {
		if prev := s.Monster(pos, outgoing); prev != nil {
			prev.Position = 0
			prev.ClearVolatiles()
		}
	}
	incoming = s.findRosterSlot(owner, details)
	m := &s.teams[owner-1][incoming-1]
	m.Species = details.Species
	m.Shiny = details.Shiny
	m.Gender = details.Gender
	m.Level = details.Level
	m.Position = pos
	m.RemainingHP = hp.Remaining
	m.HP = hp.Current
	m.MaxHP = hp.Max
	m.Status = hp.Status
	s.occupants[pos] = incoming
	return outgoing, incoming
}

// SwapPositions exchanges the occupants of two positions, as a swap record
// reports for Ally Switch and allied side rearrangement. Either position may
// be empty.
func (s *State) SwapPositions(a, b Position) {
	ownerA, errA := s.positionOwner(a)
	ownerB, errB := s.positionOwner(b)
	if errA != nil || errB != nil {
		panic(fmt.Sprintf("battle: swap of invalid positions %d and %d", a, b))
	}
	idxA, idxB := s.occupants[a], s.occupants[b]
	if idxA != 0 {
		s.teams[ownerA-1][idxA-1].Position = b
	}
	if idxB != 0 {
		s.teams[ownerB-1][idxB-1].Position = a
	}
	delete(s.occupants, a)
	delete(s.occupants, b)
	if idxB != 0 {
		s.occupants[a] = idxB
	}
	if idxA != 0 {
		s.occupants[b] = idxA
	}
}

// ClearAllFieldBoosts zeroes the stat, accuracy and evasion boosts of every
// Pokémon on the field, both sides, as Haze reports.
func (s *State) ClearAllFieldBoosts() {
	for pos, idx := range s.occupants {
		if idx == 0 {
			continue
		}
		owner, err := s.positionOwner(pos)
		if err != nil {
			continue
		}
		m := &s.teams[owner-1][idx-1]
		m.StatBoosts = Stats{}
		m.AccuracyBoost = 0
		m.EvasionBoost = 0
	}
}

// findRosterSlot locates the roster entry the switched-in Pokémon must be:
// a same-species entry, failing that the first fully-unknown one, failing
// that a fresh slot at the end.
func (s *State) findRosterSlot(owner PlayerID, details MonsterDetails) TeamIndex {
	roster := s.teams[owner-1]
	for i := range roster {
		if roster[i].Species == details.Species {
			return TeamIndex(i + 1)
		}
	}
	for i := range roster {
		if roster[i].Species == Unknown && roster[i].Position == 0 {
			return TeamIndex(i + 1)
		}
	}
	s.growRoster(owner, len(roster)+1)
	return TeamIndex(len(s.teams[owner-1]))
}

// setRequest replaces the pending request kind.
func (s *State) setRequest(r Request) { s.request = r }

// Clone returns a deep copy. The copy shares nothing with the original, so
// both sides of a hand-off can keep one.
func (s *State) Clone() *State {
	c := *s
	c.nonstandardRules = make(map[string]struct{}, len(s.nonstandardRules))
	for k := range s.nonstandardRules {
		c.nonstandardRules[k] = struct{}{}
	}
	c.occupants = make(map[Position]TeamIndex, len(s.occupants))
	for k, v := range s.occupants {
		c.occupants[k] = v
	}
	c.orders = make(map[Position]Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = v
	}
	c.teamOrder = append([]TeamIndex(nil), s.teamOrder...)
	for t := range s.teams {
		if s.teams[t] == nil {
			continue
		}
		c.teams[t] = make([]Monster, len(s.teams[t]))
		copy(c.teams[t], s.teams[t])
		for i := range c.teams[t] {
			if vol := s.teams[t][i].Volatiles; vol != nil {
				cp := make(map[string]int, len(vol))
				for k, v := range vol {
					cp[k] = v
				}
				c.teams[t][i].Volatiles = cp
			}
		}
	}
	return &c
}

// ControlledPositions lists the positions the viewer gives orders for, in
// ascending lane order.
func (s *State) ControlledPositions() []Position {
	out := make([]Position, 0, s.category.Lanes())
	for lane := 1; lane <= s.category.Lanes(); lane++ {
		out = append(out, Position(lane))
	}
	return out
}
