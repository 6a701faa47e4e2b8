// Package client drives battles over their byte transports: a local
// simulator process reached through two pipes, or a battle server reached
// through a websocket. Both transports share the same order-submission
// surface and the same hand-off discipline for battle states.
package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"showdown-engine/battle"
)

// Direction tags a traffic-hook line.
type Direction string

const (
	DirSend Direction = "SEND"
	DirRecv Direction = "RECV"
)

// TrafficFunc observes every line exchanged with the simulator or server.
// Used for replay capture and debug tracing; it runs on the run-loop
// goroutine and must not block.
type TrafficFunc func(direction Direction, battleID uint64, line string)

// Connection is the order-submission surface shared by the direct simulator
// connection and the server connection. Listeners receive a *battle.State
// through their notification methods and give orders back either by
// populating it before returning (synchronous style) or by calling
// SendOrders later (dispatcher style).
type Connection interface {
	// SendOrders serializes the orders recorded on st and submits them.
	// It fails with battle.ErrInvalidBattleState if st is not the state the
	// connection is currently tracking, or with *battle.InvalidOrderError
	// if the recorded orders do not cover the pending decision. A local
	// success can still be rejected by the simulator, in which case the
	// listener hears about it through RequestCorrectedOrders.
	SendOrders(st *battle.State) error

	// StopBattle requests cancellation of the running battle. Safe from any
	// goroutine; reports whether a running battle was affected.
	StopBattle() bool
}

// ErrSubmissionClosed reports that the outbound channel is gone: the
// simulator process exited or the socket closed.
var ErrSubmissionClosed = errors.New("order submission channel is closed")

// ErrBattleRunning reports a RunBattle call on a connection whose previous
// battle has not finished. The run loop is not reentrant.
var ErrBattleRunning = errors.New("a battle is already running on this connection")

// PlayerSetup describes one participant handed to the simulator at battle
// start. A nil Team asks the format to generate one (random battles).
type PlayerSetup struct {
	Name string
	Team []battle.Monster
}

// BattleConfig parameterizes one RunBattle call.
type BattleConfig struct {
	// Format is the simulator format id, e.g. "gen8customgame".
	Format string
	// Generation, when nonzero, is cross-checked against the gen record the
	// simulator announces; a mismatch is fatal.
	Generation int
	// Players in p1..pN order.
	Players []PlayerSetup
	// BattleIDs assigns dispatcher routing IDs to each player's state,
	// keyed by player number. IDs must be nonzero when a dispatcher is
	// listening.
	BattleIDs map[battle.PlayerID]uint64
}

// ordersCommand renders the decision recorded on st as one simulator choice
// string: "team 3,1,5" for a team selection, or the per-position commands
// joined by commas for turn and switch decisions.
func ordersCommand(st *battle.State) (string, error) {
	switch st.Request() {
	case battle.RequestSelectTeam:
		sel := st.TeamOrder()
		if len(sel) == 0 {
			return "", &battle.InvalidOrderError{Reason: "no team selection recorded"}
		}
		parts := make([]string, len(sel))
		for i, ti := range sel {
			parts[i] = strconv.Itoa(int(ti))
		}
		return "team " + strings.Join(parts, ","), nil
	case battle.RequestTurn, battle.RequestSelectMonster:
		positions := st.ControlledPositions()
		orders := st.Orders()
		cmds := make([]string, 0, len(positions))
		covered := false
		for _, pos := range positions {
			order := orders[pos]
			if order.Action != 0 {
				covered = true
			}
			cmds = append(cmds, order.Command())
		}
		if !covered {
			return "", &battle.InvalidOrderError{Reason: "no orders recorded for any controlled position"}
		}
		return strings.Join(cmds, ", "), nil
	default:
		return "", fmt.Errorf("no decision pending: %w", battle.ErrInvalidBattleState)
	}
}
