package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"showdown-engine/battle"
	"showdown-engine/internal/log"
	"showdown-engine/protocol"
)

const (
	statusIdle int32 = iota
	statusRunning
	statusStopping
)

// stopPollInterval bounds how long a stop request can sit unnoticed while
// the run loop is blocked in a read, when the reader supports deadlines.
const stopPollInterval = 200 * time.Millisecond

type deadlineReader interface {
	SetReadDeadline(t time.Time) error
}

// DirectSimConnection drives one battle at a time against a local simulator
// process in `simulate-battle` mode. The caller owns the process; the
// connection only sees its stdin and stdout as a byte-out/byte-in pair.
//
// RunBattle is not reentrant: a second call before the first returns fails
// with ErrBattleRunning. StopBattle may be called from any goroutine.
type DirectSimConnection struct {
	r        io.Reader
	w        io.Writer
	listener battle.Listener
	traffic  TrafficFunc

	status    atomic.Int32
	sessionID atomic.Uint64
	writeMu   sync.Mutex

	mu      sync.Mutex
	interp  *protocol.Interpreter
	players []battle.PlayerID
	// pending holds, per player, the state copy most recently handed to the
	// listener. It is the only handle SendOrders accepts.
	pending map[battle.PlayerID]*battle.State
	ended   bool

	recvLine bytes.Buffer
}

// NewDirectSimConnection wires a connection to the simulator's stdout (r)
// and stdin (w). The listener receives every decision point; traffic, when
// non-nil, observes each line in both directions.
func NewDirectSimConnection(r io.Reader, w io.Writer, listener battle.Listener, traffic TrafficFunc) *DirectSimConnection {
	return &DirectSimConnection{r: r, w: w, listener: listener, traffic: traffic}
}

type startJSON struct {
	FormatID string `json:"formatid"`
}

type playerJSON struct {
	Name string `json:"name"`
	Team string `json:"team,omitempty"`
}

// RunBattle plays one battle to completion. It blocks the calling goroutine
// until the simulator reports an outcome, the stream ends, StopBattle is
// called, or a protocol error makes the session unusable. Protocol errors
// leave the connection itself reusable for a fresh RunBattle; the failed
// battle's states are abandoned.
func (c *DirectSimConnection) RunBattle(cfg BattleConfig) error {
	if !c.status.CompareAndSwap(statusIdle, statusRunning) {
		return ErrBattleRunning
	}
	defer c.status.Store(statusIdle)

	if len(cfg.Players) < 2 || len(cfg.Players) > 4 {
		return fmt.Errorf("battle needs 2 to 4 players, got %d", len(cfg.Players))
	}
	players := make([]battle.PlayerID, len(cfg.Players))
	for i := range cfg.Players {
		players[i] = battle.PlayerID(i + 1)
	}

	c.sessionID.Store(cfg.BattleIDs[1])
	c.mu.Lock()
	c.players = players
	c.pending = make(map[battle.PlayerID]*battle.State, len(players))
	c.ended = false
	c.recvLine.Reset()
	c.interp = protocol.NewInterpreter(protocol.Config{
		Events:             (*directEvents)(c),
		Players:            players,
		BattleIDs:          cfg.BattleIDs,
		ExpectedGeneration: cfg.Generation,
	})
	interp := c.interp
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.interp = nil
		c.pending = nil
		c.mu.Unlock()
	}()

	if err := c.writeSetup(cfg); err != nil {
		return err
	}

	buf := make([]byte, 4096)
	for {
		if c.status.Load() == statusStopping {
			log.Info("battle stopped", "id", c.sessionID.Load())
			break
		}
		if d, ok := c.r.(deadlineReader); ok {
			d.SetReadDeadline(time.Now().Add(stopPollInterval))
		}
		n, err := c.r.Read(buf)
		if n > 0 {
			c.observeRecv(buf[:n])
			if ferr := interp.Feed(buf[:n]); ferr != nil {
				log.Error("protocol error", "id", c.sessionID.Load(), "err", ferr)
				return ferr
			}
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("simulator read: %w", err)
		}
		c.mu.Lock()
		done := c.ended
		c.mu.Unlock()
		if done {
			break
		}
	}

	// The run loop is done, so the final states pass to the listener
	// outright; nothing mutates them after this point.
	var firstErr error
	for _, p := range players {
		st := interp.State(p)
		if st == nil {
			continue
		}
		if err := c.listener.EndBattle(st); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// writeSetup sends the battle start command and one player command per
// participant, with teams in packed form.
func (c *DirectSimConnection) writeSetup(cfg BattleConfig) error {
	start, err := json.Marshal(startJSON{FormatID: cfg.Format})
	if err != nil {
		return err
	}
	if err := c.writeLine(">start " + string(start)); err != nil {
		return err
	}
	for i, p := range cfg.Players {
		pj := playerJSON{Name: p.Name}
		if p.Team != nil {
			packed, err := battle.PackTeam(p.Team)
			if err != nil {
				return fmt.Errorf("player p%d team: %w", i+1, err)
			}
			pj.Team = packed
		}
		raw, err := json.Marshal(pj)
		if err != nil {
			return err
		}
		if err := c.writeLine(fmt.Sprintf(">player p%d %s", i+1, raw)); err != nil {
			return err
		}
	}
	return nil
}

func (c *DirectSimConnection) writeLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.traffic != nil {
		c.traffic(DirSend, c.sessionID.Load(), line)
	}
	if _, err := io.WriteString(c.w, line+"\n"); err != nil {
		return fmt.Errorf("%w: %v", ErrSubmissionClosed, err)
	}
	return nil
}

// observeRecv feeds inbound bytes to the traffic hook and the optional
// MessageListener, reassembled into whole lines.
func (c *DirectSimConnection) observeRecv(chunk []byte) {
	ml, _ := c.listener.(battle.MessageListener)
	if c.traffic == nil && ml == nil {
		return
	}
	c.recvLine.Write(chunk)
	for {
		raw := c.recvLine.Bytes()
		i := bytes.IndexByte(raw, '\n')
		if i < 0 {
			return
		}
		line := string(bytes.TrimRight(raw[:i], "\r"))
		c.recvLine.Next(i + 1)
		if c.traffic != nil {
			c.traffic(DirRecv, c.sessionID.Load(), line)
		}
		if ml != nil {
			ml.Message(c.sessionID.Load(), line)
		}
	}
}

// SendOrders submits the orders recorded on st. st must answer the decision
// most recently handed to the listener for its viewer: either that very copy
// or a further copy of it (a dispatcher clones per delivery). Anything else,
// including a copy superseded by a newer decision, fails with
// ErrInvalidBattleState. See Connection.
func (c *DirectSimConnection) SendOrders(st *battle.State) error {
	if st == nil {
		return battle.ErrInvalidBattleState
	}
	viewer := st.Viewer()
	c.mu.Lock()
	current := c.pending[viewer]
	c.mu.Unlock()
	if current == nil || !answersSameDecision(current, st) {
		return fmt.Errorf("state for p%d: %w", viewer, battle.ErrInvalidBattleState)
	}
	if st.Request() == battle.RequestNone {
		// Hand-back with nothing pending, e.g. after EndBattle.
		return nil
	}
	return c.submit(st)
}

// answersSameDecision reports whether submitted answers the decision pending
// was handed out for: same object, or a copy describing the same battle,
// request and turn.
func answersSameDecision(pending, submitted *battle.State) bool {
	if pending == submitted {
		return true
	}
	return pending.ID() == submitted.ID() &&
		pending.Viewer() == submitted.Viewer() &&
		pending.Request() == submitted.Request() &&
		pending.Turn() == submitted.Turn()
}

// StopBattle requests cancellation. The run loop notices at its next read
// poll; true means a running battle was told to stop.
func (c *DirectSimConnection) StopBattle() bool {
	return c.status.CompareAndSwap(statusRunning, statusStopping)
}

// directEvents adapts the connection to the interpreter's callback surface
// without exporting those methods on DirectSimConnection itself.
type directEvents DirectSimConnection

func (e *directEvents) conn() *DirectSimConnection { return (*DirectSimConnection)(e) }

// DecisionRequired hands the listener its own copy of the player's state;
// the run loop keeps mutating the live one, so the two must not be shared.
// A synchronous listener records orders on the copy before returning and
// they are submitted here; an asynchronous one returns immediately and
// submits the same copy later via SendOrders.
func (e *directEvents) DecisionRequired(player battle.PlayerID) error {
	c := e.conn()
	st := c.handOff(player)
	if st == nil {
		return fmt.Errorf("decision for untracked player p%d: %w", player, battle.ErrInvalidBattleState)
	}
	if err := c.listener.RequestOrders(st); err != nil {
		return err
	}
	return c.submitIfRecorded(st)
}

// OrdersRejected relays a simulator rejection as a correction request. The
// rejection text is not attributed to a specific slot by the simulator, so
// it arrives in the first element.
func (e *directEvents) OrdersRejected(player battle.PlayerID, message string) error {
	c := e.conn()
	st := c.handOff(player)
	if st == nil {
		return fmt.Errorf("rejection for untracked player p%d: %w", player, battle.ErrInvalidBattleState)
	}
	log.Warn("orders rejected", "id", st.ID(), "player", int(player), "message", message)
	if err := c.listener.RequestCorrectedOrders(st, [3]string{message}); err != nil {
		return err
	}
	return c.submitIfRecorded(st)
}

// handOff copies the player's live state and registers the copy as the one
// SendOrders accepts, superseding any earlier copy for the same player.
func (c *DirectSimConnection) handOff(player battle.PlayerID) *battle.State {
	live := c.interp.State(player)
	if live == nil {
		return nil
	}
	st := live.Clone()
	c.mu.Lock()
	if c.pending != nil {
		c.pending[player] = st
	}
	c.mu.Unlock()
	return st
}

func (e *directEvents) BattleEnded() error {
	c := e.conn()
	c.mu.Lock()
	c.ended = true
	c.mu.Unlock()
	return nil
}

// submitIfRecorded serializes and sends orders the listener left on the
// state, tolerating the empty case that means "orders will arrive later".
func (c *DirectSimConnection) submitIfRecorded(st *battle.State) error {
	if st == nil || st.Request() == battle.RequestNone {
		return nil
	}
	if len(st.TeamOrder()) == 0 {
		recorded := false
		for _, order := range st.Orders() {
			if order.Action != 0 {
				recorded = true
				break
			}
		}
		if !recorded {
			return nil
		}
	}
	return c.submit(st)
}

// submit serializes the recorded orders, writes them and retires st as the
// pending hand-off for its viewer.
func (c *DirectSimConnection) submit(st *battle.State) error {
	cmd, err := ordersCommand(st)
	if err != nil {
		return err
	}
	if err := c.writeLine(fmt.Sprintf(">p%d %s", st.Viewer(), cmd)); err != nil {
		return err
	}
	c.mu.Lock()
	if cur := c.pending[st.Viewer()]; cur != nil && answersSameDecision(cur, st) {
		delete(c.pending, st.Viewer())
	}
	c.mu.Unlock()
	st.ClearOrders()
	return nil
}
