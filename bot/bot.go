// Package bot is a greedy baseline player: strongest move by base power
// times type effectiveness, switching out when the matchup is bad. It doubles
// as the reference Listener implementation for the connection and dispatcher
// plumbing.
package bot

import (
	"errors"

	"showdown-engine/battle"
	"showdown-engine/client"
	"showdown-engine/data"
	"showdown-engine/internal/log"
)

var typeChart = map[battle.Type]map[battle.Type]float64{
	battle.TypeFire: {
		battle.TypeWater: 0.5, battle.TypeRock: 0.5, battle.TypeFire: 0.5,
		battle.TypeGrass: 2, battle.TypeIce: 2, battle.TypeBug: 2,
		battle.TypeSteel: 2, battle.TypeDragon: 0.5,
	},
	battle.TypeFlying: {
		battle.TypeGrass: 2, battle.TypeFighting: 2, battle.TypeBug: 2,
		battle.TypeElectric: 0.5, battle.TypeRock: 0.5, battle.TypeSteel: 0.5,
	},
	battle.TypeDragon: {
		battle.TypeDragon: 2, battle.TypeSteel: 0.5,
	},
	battle.TypeWater: {
		battle.TypeFire: 2, battle.TypeWater: 0.5, battle.TypeGrass: 0.5,
		battle.TypeGround: 2, battle.TypeRock: 2, battle.TypeDragon: 0.5,
	},
	battle.TypeDark: {
		battle.TypeGhost: 2, battle.TypePsychic: 2, battle.TypeDark: 0.5,
		battle.TypeFighting: 0.5, battle.TypeFairy: 0.5,
	},
	battle.TypeRock: {
		battle.TypeFire: 2, battle.TypeIce: 2, battle.TypeFlying: 2,
		battle.TypeBug: 2, battle.TypeFighting: 0.5, battle.TypeGround: 0.5,
		battle.TypeSteel: 0.5,
	},
	battle.TypeIce: {
		battle.TypeDragon: 2, battle.TypeFlying: 2, battle.TypeGrass: 2,
		battle.TypeGround: 2, battle.TypeFire: 0.5, battle.TypeWater: 0.5,
		battle.TypeIce: 0.5, battle.TypeSteel: 0.5,
	},
	battle.TypeSteel: {
		battle.TypeRock: 2, battle.TypeIce: 2, battle.TypeFairy: 2,
		battle.TypeSteel: 0.5, battle.TypeFire: 0.5, battle.TypeWater: 0.5,
		battle.TypeElectric: 0.5,
	},
	battle.TypeFighting: {
		battle.TypeNormal: 2, battle.TypeRock: 2, battle.TypeSteel: 2,
		battle.TypeIce: 2, battle.TypeDark: 2, battle.TypeGhost: 0,
		battle.TypePoison: 0.5, battle.TypeFlying: 0.5, battle.TypePsychic: 0.5,
		battle.TypeBug: 0.5, battle.TypeFairy: 0.5,
	},
}

func effectiveness(moveType battle.Type, defender []battle.Type) float64 {
	eff := 1.0
	row, ok := typeChart[moveType]
	if !ok {
		return eff
	}
	for _, t := range defender {
		if v, ok := row[t]; ok {
			eff *= v
		}
	}
	return eff
}

// Greedy plays the highest-scoring move each turn and issues straightforward
// switches when forced. It submits orders synchronously: they are recorded
// on the state before RequestOrders returns.
type Greedy struct {
	Dex *data.Dex
	// Conn is used to submit orders when the bot is driven through a
	// dispatcher; nil means the connection auto-submits recorded orders.
	Conn client.Connection
	// OnEnd, when non-nil, observes the final state before hand-back.
	OnEnd func(final *battle.State)
}

func (g *Greedy) defenderTypes(st *battle.State) []battle.Type {
	foe := st.Monster(-1, 0)
	if foe == nil || g.Dex == nil {
		return nil
	}
	if p, ok := g.Dex.Pokemon(foe.Species); ok {
		return p.Types
	}
	return nil
}

// moveScore estimates a move slot's damage the way the original analyzer
// scored suggestions: base power (80 when unknown) times effectiveness.
func (g *Greedy) moveScore(slot battle.MoveSlot, defender []battle.Type) float64 {
	power := 80
	moveType := battle.TypeNone
	if g.Dex != nil {
		if m, ok := g.Dex.Move(slot.ID); ok {
			if m.Power > 0 {
				power = m.Power
			}
			moveType = m.Type
		}
	}
	return float64(power) * effectiveness(moveType, defender)
}

func (g *Greedy) orderBestMove(st *battle.State, pos battle.Position) error {
	active := st.Monster(pos, 0)
	if active == nil {
		return nil
	}
	defender := g.defenderTypes(st)
	type choice struct {
		slot  int
		score float64
	}
	var choices []choice
	for i, slot := range active.Moves {
		if !slot.Known() || slot.Disabled {
			continue
		}
		choices = append(choices, choice{i + 1, g.moveScore(slot, defender)})
	}
	for len(choices) > 0 {
		best := 0
		for i := range choices {
			if choices[i].score > choices[best].score {
				best = i
			}
		}
		err := st.OrderUseMove(pos, choices[best].slot, battle.ModifierNone, false)
		if err == nil {
			return nil
		}
		choices = append(choices[:best], choices[best+1:]...)
	}
	// Nothing revealed yet; the first slot always exists.
	return st.OrderUseMove(pos, 1, battle.ModifierNone, true)
}

// orderBestSwitch benches the occupant of pos for the healthiest teammate,
// preferring good defensive typing against the current foe.
func (g *Greedy) orderBestSwitch(st *battle.State, pos battle.Position) error {
	defender := g.defenderTypes(st)
	bestIdx := battle.TeamIndex(0)
	bestScore := 0.0
	for idx := battle.TeamIndex(1); int(idx) <= st.TeamSize(st.Viewer()); idx++ {
		m := st.Monster(pos, idx)
		if m == nil || m.Fainted() || m.Position != 0 {
			continue
		}
		score := m.RemainingHP
		for _, t := range defender {
			candidate := []battle.Type{}
			if g.Dex != nil {
				if p, ok := g.Dex.Pokemon(m.Species); ok {
					candidate = p.Types
				}
			}
			score /= 1 + effectiveness(t, candidate)
		}
		if bestIdx == 0 || score > bestScore {
			bestIdx = idx
			bestScore = score
		}
	}
	if bestIdx == 0 {
		return nil
	}
	_, err := st.OrderSwitch(pos, bestIdx, false)
	return err
}

// RequestOrders records a decision on the state. With a nil Conn the
// connection submits on return; otherwise the bot submits explicitly, which
// is the path a dispatcher-driven deployment uses.
func (g *Greedy) RequestOrders(st *battle.State) error {
	switch st.Request() {
	case battle.RequestSelectTeam:
		size := st.BattlingTeamSize()
		indices := make([]battle.TeamIndex, size)
		for i := range indices {
			indices[i] = battle.TeamIndex(i + 1)
		}
		if err := st.SelectTeam(indices); err != nil {
			return err
		}
	case battle.RequestSelectMonster:
		for _, pos := range st.ControlledPositions() {
			occupant := st.Monster(pos, 0)
			if occupant != nil && !occupant.Fainted() {
				continue
			}
			if err := g.orderBestSwitch(st, pos); err != nil {
				return err
			}
		}
		if len(st.Orders()) == 0 {
			// Forced out without fainting (a pivoting move); replace the
			// lead anyway.
			if err := g.orderBestSwitch(st, 1); err != nil {
				return err
			}
		}
	case battle.RequestTurn:
		for _, pos := range st.ControlledPositions() {
			if st.TeamIndexAt(pos) == 0 {
				continue
			}
			if err := g.orderBestMove(st, pos); err != nil {
				return err
			}
		}
	default:
		return nil
	}
	if g.Conn != nil {
		return g.Conn.SendOrders(st)
	}
	return nil
}

// RequestCorrectedOrders retries with progressively simpler choices: each
// move slot in order, then each bench switch.
func (g *Greedy) RequestCorrectedOrders(st *battle.State, errs [3]string) error {
	log.Warn("correcting orders", "id", st.ID(), "reason", errs[0])
	st.ClearOrders()
	for _, pos := range st.ControlledPositions() {
		if st.TeamIndexAt(pos) == 0 {
			continue
		}
		ordered := false
		for slot := 1; slot <= 4 && !ordered; slot++ {
			if st.OrderUseMove(pos, slot, battle.ModifierNone, false) == nil {
				ordered = true
			}
		}
		for idx := battle.TeamIndex(1); !ordered && int(idx) <= st.TeamSize(st.Viewer()); idx++ {
			if _, err := st.OrderSwitch(pos, idx, false); err == nil {
				ordered = true
			}
		}
	}
	if g.Conn != nil {
		return g.Conn.SendOrders(st)
	}
	return nil
}

// EndBattle just hands the state back.
func (g *Greedy) EndBattle(final *battle.State) error {
	log.Info("battle over", "id", final.ID(), "outcome", int(final.Outcome()), "turns", final.Turn())
	if g.OnEnd != nil {
		g.OnEnd(final)
	}
	if g.Conn != nil {
		// The connection may already have torn the battle down; a stale
		// hand-back is expected here, not an error.
		if err := g.Conn.SendOrders(final); err != nil && !errors.Is(err, battle.ErrInvalidBattleState) {
			return err
		}
	}
	return nil
}
