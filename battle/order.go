package battle

import (
	"errors"
	"fmt"
)

// Order is one recorded action for one position. Action 0 is "no order",
// 1 through 4 use the move in that slot, 5 and above switch to the Pokémon
// with team index action-4.
type Order struct {
	Action   int
	Modifier MoveModifier
}

// Move returns the 1-based move slot the order selects, or 0 if it is not a
// move order.
func (o Order) Move() int {
	if o.Action >= 1 && o.Action <= 4 {
		return o.Action
	}
	return 0
}

// SwitchTarget returns the team index the order switches to, or 0 if it is
// not a switch order.
func (o Order) SwitchTarget() TeamIndex {
	if o.Action >= 5 {
		return TeamIndex(o.Action - 4)
	}
	return 0
}

// Command renders the order as the simulator's textual choice syntax.
func (o Order) Command() string {
	switch {
	case o.Action == ActionShift:
		return "shift"
	case o.Action == 0:
		return "pass"
	case o.Action <= 4:
		if o.Modifier == ModifierNone {
			return fmt.Sprintf("move %d", o.Action)
		}
		return fmt.Sprintf("move %d %s", o.Action, o.Modifier)
	default:
		return fmt.Sprintf("switch %d", o.Action-4)
	}
}

// InvalidOrderError reports a rejected order together with the position it
// was given for and a human-readable reason. It is recoverable: catch it and
// issue a corrected order.
type InvalidOrderError struct {
	Order    Order
	Position Position
	Reason   string
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("invalid order (action %d, position %d): %s",
		e.Order.Action, e.Position, e.Reason)
}

func invalidOrder(order Order, position Position, format string, args ...any) error {
	return &InvalidOrderError{Order: order, Position: position, Reason: fmt.Sprintf(format, args...)}
}

// ErrInvalidBattleState signals that the caller's State no longer corresponds
// to the live battle, for example because the battle moved past the point the
// orders apply to. The caller should wait for a fresh State.
var ErrInvalidBattleState = errors.New("battle state is stale or unknown to this connection")
