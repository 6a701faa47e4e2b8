package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showdown-engine/battle"
)

func newState(id uint64) *battle.State {
	return battle.NewState(battle.Singles, 8, id, time.Now(), 1)
}

// recListener records deliveries on a channel so tests can wait for them
// without polling.
type recListener struct {
	calls chan string
}

func newRecListener() *recListener {
	return &recListener{calls: make(chan string, 16)}
}

func (r *recListener) RequestOrders(*battle.State) error {
	r.calls <- "orders"
	return nil
}

func (r *recListener) RequestCorrectedOrders(_ *battle.State, errs [3]string) error {
	r.calls <- "corrected:" + errs[0]
	return nil
}

func (r *recListener) EndBattle(*battle.State) error {
	r.calls <- "end"
	return nil
}

func (r *recListener) Message(_ uint64, line string) error {
	r.calls <- "message:" + line
	return nil
}

func (r *recListener) next(t *testing.T) string {
	t.Helper()
	select {
	case s := <-r.calls:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery within 5s")
		return ""
	}
}

// gateListener parks the worker that picks it up until released.
type gateListener struct {
	entered chan struct{}
	release chan struct{}
}

func newGateListener() *gateListener {
	return &gateListener{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateListener) RequestOrders(*battle.State) error {
	close(g.entered)
	<-g.release
	return nil
}

func (g *gateListener) RequestCorrectedOrders(*battle.State, [3]string) error { return nil }
func (g *gateListener) EndBattle(*battle.State) error                         { return nil }

func TestAttachValidation(t *testing.T) {
	d := New(1, 2, 8)
	defer d.Close()
	rec := newRecListener()

	assert.ErrorIs(t, d.Attach(0, rec), ErrInvalidID)
	require.NoError(t, d.Attach(1, rec))
	assert.ErrorIs(t, d.Attach(1, rec), ErrDuplicateListener)
	require.NoError(t, d.Attach(2, rec))
	assert.ErrorIs(t, d.Attach(3, rec), ErrTooManyListeners)
	assert.True(t, d.Attached(1))
	assert.False(t, d.Attached(3))
}

func TestAttachManyIsAllOrNothing(t *testing.T) {
	d := New(1, 1, 8)
	defer d.Close()
	rec := newRecListener()

	err := d.AttachMany([]uint64{1, 2}, []battle.Listener{rec, rec})
	require.ErrorIs(t, err, ErrTooManyListeners)
	assert.False(t, d.Attached(1))

	require.NoError(t, d.AttachMany([]uint64{1}, []battle.Listener{rec}))
	assert.True(t, d.Attached(1))
}

func TestRemoveManyIsAllOrNothing(t *testing.T) {
	d := New(1, 8, 8)
	defer d.Close()
	rec := newRecListener()
	require.NoError(t, d.Attach(1, rec))
	require.NoError(t, d.Attach(2, rec))

	err := d.RemoveMany([]uint64{1, 99})
	require.ErrorIs(t, err, ErrNotAttached)
	assert.True(t, d.Attached(1))

	require.NoError(t, d.RemoveMany([]uint64{1, 2}))
	assert.False(t, d.Attached(1))
	assert.False(t, d.Attached(2))
}

func TestReservedSlotsCountAgainstCapacity(t *testing.T) {
	d := New(1, 2, 8)
	defer d.Close()
	rec := newRecListener()

	require.NoError(t, d.ReserveSlots(2))
	assert.ErrorIs(t, d.Attach(1, rec), ErrTooManyListeners)
	assert.ErrorIs(t, d.ReserveSlots(1), ErrTooManyListeners)

	require.NoError(t, d.FreeSlots(1))
	require.NoError(t, d.Attach(1, rec))
	assert.ErrorIs(t, d.FreeSlots(2), ErrNoSlots)
}

func TestNotificationsReachTheListener(t *testing.T) {
	d := New(2, 8, 8)
	rec := newRecListener()
	require.NoError(t, d.Attach(7, rec))
	st := newState(7)

	require.NoError(t, d.RequestOrders(st))
	assert.Equal(t, "orders", rec.next(t))

	require.NoError(t, d.EndBattle(st))
	assert.Equal(t, "end", rec.next(t))

	require.NoError(t, d.Message(7, "|turn|3"))
	assert.Equal(t, "message:|turn|3", rec.next(t))

	// Raw lines for unattached battles are dropped silently.
	require.NoError(t, d.Message(999, "|turn|3"))

	assert.ErrorIs(t, d.RequestOrders(newState(999)), ErrNotAttached)
	d.Close()
}

// A correction must overtake queued work for the same battle: with the only
// worker parked, enqueue orders and an end, then a correction, and watch the
// correction arrive first.
func TestCorrectedOrdersJumpTheQueue(t *testing.T) {
	d := New(1, 8, 8)
	gate := newGateListener()
	rec := newRecListener()
	require.NoError(t, d.Attach(43, gate))
	require.NoError(t, d.Attach(42, rec))

	require.NoError(t, d.RequestOrders(newState(43)))
	<-gate.entered

	st := newState(42)
	require.NoError(t, d.RequestOrders(st))
	require.NoError(t, d.EndBattle(st))
	require.NoError(t, d.RequestCorrectedOrders(st, [3]string{"bad choice"}))
	close(gate.release)

	assert.Equal(t, "corrected:bad choice", rec.next(t))
	assert.Equal(t, "orders", rec.next(t))
	assert.Equal(t, "end", rec.next(t))
	d.Close()
}

func TestEnqueueNeverBlocks(t *testing.T) {
	d := New(1, 8, 1)
	gate := newGateListener()
	rec := newRecListener()
	require.NoError(t, d.Attach(43, gate))
	require.NoError(t, d.Attach(42, rec))

	require.NoError(t, d.RequestOrders(newState(43)))
	<-gate.entered

	st := newState(42)
	require.NoError(t, d.RequestOrders(st))
	assert.ErrorIs(t, d.RequestOrders(st), ErrQueueFull)

	close(gate.release)
	assert.Equal(t, "orders", rec.next(t))
	d.Close()
}

func TestRemovedListenerDeliveriesAreDropped(t *testing.T) {
	d := New(1, 8, 8)
	gate := newGateListener()
	rec := newRecListener()
	require.NoError(t, d.Attach(43, gate))
	require.NoError(t, d.Attach(42, rec))

	require.NoError(t, d.RequestOrders(newState(43)))
	<-gate.entered

	require.NoError(t, d.RequestOrders(newState(42)))
	require.NoError(t, d.Remove(42))
	close(gate.release)
	d.Close()

	assert.Empty(t, rec.calls)
}

func TestCloseDrainsTheQueue(t *testing.T) {
	d := New(2, 8, 8)
	rec := newRecListener()
	require.NoError(t, d.Attach(5, rec))
	st := newState(5)
	for i := 0; i < 3; i++ {
		require.NoError(t, d.EndBattle(st))
	}
	d.Close()

	assert.Len(t, rec.calls, 3)
	assert.ErrorIs(t, d.Attach(6, rec), ErrClosed)
	assert.ErrorIs(t, d.RequestOrders(st), ErrClosed)
	assert.ErrorIs(t, d.ReserveSlots(1), ErrClosed)
}

// stateListener keeps the delivered states so tests can inspect them.
type stateListener struct {
	states chan *battle.State
}

func (s *stateListener) RequestOrders(st *battle.State) error {
	s.states <- st
	return nil
}

func (s *stateListener) RequestCorrectedOrders(st *battle.State, _ [3]string) error {
	s.states <- st
	return nil
}

func (s *stateListener) EndBattle(st *battle.State) error {
	s.states <- st
	return nil
}

// The producer keeps mutating its state after enqueueing; the delivery must
// carry an independent copy.
func TestDeliveriesCarryTheirOwnStateCopy(t *testing.T) {
	d := New(1, 4, 8)
	defer d.Close()

	l := &stateListener{states: make(chan *battle.State, 1)}
	require.NoError(t, d.Attach(7, l))

	orig := newState(7)
	require.NoError(t, d.RequestOrders(orig))

	var delivered *battle.State
	select {
	case delivered = <-l.states:
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery within 5s")
	}
	assert.NotSame(t, orig, delivered)
	assert.Equal(t, orig.ID(), delivered.ID())

	orig.ApplyTurn(3)
	assert.Equal(t, 0, delivered.Turn())
}
