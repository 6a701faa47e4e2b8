package battle

// Listener receives battle updates. Implementations hand a State back to the
// connection by calling SendOrders on it, with or without orders attached;
// until then they own the State exclusively and may mutate it.
//
// A listener must not assume its methods are called from any particular
// goroutine: a dispatcher delivers successive calls from whichever worker is
// free.
type Listener interface {
	// RequestOrders asks for a decision. The kind of decision must be read
	// from the state's Request.
	RequestOrders(state *State) error

	// RequestCorrectedOrders reports that the simulator rejected the
	// previously sent orders. errors holds one message per controlled
	// position (1 through 3); empty strings mean that position was fine.
	RequestCorrectedOrders(state *State, errors [3]string) error

	// EndBattle delivers the final state. The listener is expected to hand
	// the state back (SendOrders with no new orders) so the connection can
	// release its bookkeeping for the battle.
	EndBattle(final *State) error
}

// MessageListener is optionally implemented by Listeners that want raw
// battle log lines.
type MessageListener interface {
	Message(battleID uint64, line string) error
}
