package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"showdown-engine/battle"
	"showdown-engine/internal/log"
	"showdown-engine/protocol"
)

const (
	defaultServerURL = "wss://sim.psim.us/showdown/websocket"
	loginURL         = "https://play.pokemonshowdown.com/action.php"
)

// ServerConfig parameterizes a BattleServerConnection.
type ServerConfig struct {
	// URL of the server websocket endpoint; empty means the main server.
	URL string
	// Username to log in as. Password may be empty for unregistered names.
	Username string
	Password string
	// Generation cross-checked against each battle's gen record; 0 skips
	// the check.
	Generation int
	// Traffic observes every websocket line in both directions.
	Traffic TrafficFunc
}

// serverBattle tracks one battle room. Lines arriving before the player
// record that reveals which seat is ours are buffered and replayed once the
// interpreter exists. handed is the state copy most recently given to the
// listener; submissions are validated against it.
type serverBattle struct {
	room    string
	id      uint64
	viewer  battle.PlayerID
	interp  *protocol.Interpreter
	backlog []string
	handed  *battle.State
}

// BattleServerConnection plays battles over a websocket to a battle server.
// One connection multiplexes any number of battle rooms; each room gets its
// own interpreter tracking the logged-in player's viewpoint.
type BattleServerConnection struct {
	cfg      ServerConfig
	conn     *websocket.Conn
	listener battle.Listener

	writeMu sync.Mutex

	mu      sync.Mutex
	battles map[string]*serverBattle
	byID    map[uint64]*serverBattle

	nextID  atomic.Uint64
	stopped atomic.Bool
}

// DialServer connects and returns immediately; call Run to process
// messages.
func DialServer(cfg ServerConfig, listener battle.Listener) (*BattleServerConnection, error) {
	target := cfg.URL
	if target == "" {
		target = defaultServerURL
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	log.Info("connected", "server", u.String())
	c := &BattleServerConnection{
		cfg:      cfg,
		conn:     ws,
		listener: listener,
		battles:  make(map[string]*serverBattle),
		byID:     make(map[uint64]*serverBattle),
	}
	return c, nil
}

// Run reads and processes server messages until the socket closes or a
// battle stream turns fatal. It blocks the calling goroutine.
func (c *BattleServerConnection) Run() error {
	defer c.conn.Close()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if c.stopped.Load() {
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		if err := c.handleMessage(string(message)); err != nil {
			return err
		}
	}
}

// Close tears the socket down; Run returns nil afterwards.
func (c *BattleServerConnection) Close() error {
	c.stopped.Store(true)
	return c.conn.Close()
}

// StopBattle on a server connection closes the whole socket: individual
// battles are forfeited by the server when the connection drops.
func (c *BattleServerConnection) StopBattle() bool {
	if c.stopped.CompareAndSwap(false, true) {
		c.conn.Close()
		return true
	}
	return false
}

// handleMessage splits one websocket frame into its room header and lines.
// A frame is ">roomid\n" followed by protocol lines; frames without a room
// header belong to the lobby.
func (c *BattleServerConnection) handleMessage(message string) error {
	room := ""
	lines := strings.Split(message, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], ">") {
		room = strings.TrimPrefix(lines[0], ">")
		lines = lines[1:]
	}
	for _, line := range lines {
		if line == "" {
			continue
		}
		if c.cfg.Traffic != nil {
			c.cfg.Traffic(DirRecv, c.roomID(room), line)
		}
		if strings.HasPrefix(room, "battle-") {
			if err := c.handleBattleLine(room, line); err != nil {
				return err
			}
			continue
		}
		if err := c.handleGlobalLine(line); err != nil {
			return err
		}
	}
	return nil
}

func (c *BattleServerConnection) roomID(room string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sb := c.battles[room]; sb != nil {
		return sb.id
	}
	return 0
}

// handleGlobalLine services the lobby records the login handshake needs.
func (c *BattleServerConnection) handleGlobalLine(line string) error {
	fields := strings.Split(strings.TrimPrefix(line, "|"), "|")
	switch fields[0] {
	case "challstr":
		challstr := strings.Join(fields[1:], "|")
		return c.login(challstr)
	case "updateuser", "formats", "updatesearch", "popup", "pm", "queryresponse", "customgroups":
		return nil
	default:
		return nil
	}
}

// login performs the action.php handshake and claims the configured name.
func (c *BattleServerConnection) login(challstr string) error {
	form := url.Values{
		"act":      {"login"},
		"name":     {c.cfg.Username},
		"pass":     {c.cfg.Password},
		"challstr": {challstr},
	}
	if c.cfg.Password == "" {
		form.Set("act", "getassertion")
		form.Set("userid", protocol.ToID(c.cfg.Username))
	}
	resp, err := http.PostForm(loginURL, form)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("login response: %w", err)
	}
	assertion := string(body)
	if strings.HasPrefix(assertion, "]") {
		var parsed struct {
			Assertion string `json:"assertion"`
		}
		if err := json.Unmarshal(body[1:], &parsed); err != nil {
			return fmt.Errorf("login response: %w", err)
		}
		assertion = parsed.Assertion
	}
	if assertion == "" || strings.HasPrefix(assertion, ";") {
		return fmt.Errorf("login rejected for %q", c.cfg.Username)
	}
	return c.Send("", fmt.Sprintf("/trn %s,0,%s", c.cfg.Username, assertion))
}

// handleBattleLine routes one protocol line to the room's interpreter,
// creating it once the player record reveals which seat is ours.
func (c *BattleServerConnection) handleBattleLine(room, line string) error {
	c.mu.Lock()
	sb := c.battles[room]
	if sb == nil {
		sb = &serverBattle{room: room, id: c.nextID.Add(1)}
		c.battles[room] = sb
		c.byID[sb.id] = sb
	}
	c.mu.Unlock()

	if sb.interp == nil {
		sb.backlog = append(sb.backlog, line)
		viewer := c.seatFromPlayerLine(line)
		if viewer == 0 {
			return nil
		}
		sb.viewer = viewer
		sb.interp = protocol.NewInterpreter(protocol.Config{
			Events:             &serverEvents{conn: c, sb: sb},
			Players:            []battle.PlayerID{viewer},
			BattleIDs:          map[battle.PlayerID]uint64{viewer: sb.id},
			ExpectedGeneration: c.cfg.Generation,
			Scope:              viewer,
		})
		backlog := sb.backlog
		sb.backlog = nil
		for _, buffered := range backlog {
			if err := sb.interp.Feed([]byte(buffered + "\n")); err != nil {
				return err
			}
		}
		return nil
	}
	return sb.interp.Feed([]byte(line + "\n"))
}

// seatFromPlayerLine returns our seat if the line is a player record naming
// the logged-in user, 0 otherwise.
func (c *BattleServerConnection) seatFromPlayerLine(line string) battle.PlayerID {
	fields := strings.Split(strings.TrimPrefix(line, "|"), "|")
	if len(fields) < 3 || fields[0] != "player" {
		return 0
	}
	if protocol.ToID(fields[2]) != protocol.ToID(c.cfg.Username) {
		return 0
	}
	if len(fields[1]) == 2 && fields[1][0] == 'p' && fields[1][1] >= '1' && fields[1][1] <= '4' {
		return battle.PlayerID(fields[1][1] - '0')
	}
	return 0
}

// Send writes one raw message, optionally addressed to a room.
func (c *BattleServerConnection) Send(room, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	message := room + "|" + text
	if c.cfg.Traffic != nil {
		c.cfg.Traffic(DirSend, c.roomID(room), message)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		return fmt.Errorf("%w: %v", ErrSubmissionClosed, err)
	}
	return nil
}

// JoinRoom enters a room, battle or otherwise.
func (c *BattleServerConnection) JoinRoom(roomID string) error {
	return c.Send("", "/join "+roomID)
}

// Challenge sends a battle challenge. A non-nil team is registered with
// /utm first, as the server requires for non-random formats.
func (c *BattleServerConnection) Challenge(user, format string, team []battle.Monster) error {
	if team != nil {
		packed, err := battle.PackTeam(team)
		if err != nil {
			return err
		}
		if err := c.Send("", "/utm "+packed); err != nil {
			return err
		}
	}
	return c.Send("", fmt.Sprintf("/challenge %s, %s", user, format))
}

// SendOrders submits the orders recorded on st to its battle room. st must
// answer the decision most recently handed to the listener for that room:
// the handed copy itself or a further copy of it.
func (c *BattleServerConnection) SendOrders(st *battle.State) error {
	if st == nil {
		return battle.ErrInvalidBattleState
	}
	c.mu.Lock()
	sb := c.byID[st.ID()]
	var handed *battle.State
	if sb != nil {
		handed = sb.handed
	}
	c.mu.Unlock()
	if sb == nil || sb.viewer != st.Viewer() || handed == nil || !answersSameDecision(handed, st) {
		return battle.ErrInvalidBattleState
	}
	if st.Request() == battle.RequestNone {
		return nil
	}
	cmd, err := ordersCommand(st)
	if err != nil {
		return err
	}
	if err := c.Send(sb.room, "/choose "+cmd); err != nil {
		return err
	}
	st.ClearOrders()
	return nil
}

// serverEvents adapts interpreter callbacks for one battle room.
type serverEvents struct {
	conn *BattleServerConnection
	sb   *serverBattle
}

// track hands out a fresh copy of the room's state; the read loop keeps
// mutating the live one, so the listener must not share it.
func (e *serverEvents) track() *battle.State {
	live := e.sb.interp.State(e.sb.viewer)
	if live == nil {
		return nil
	}
	st := live.Clone()
	e.conn.mu.Lock()
	e.sb.handed = st
	e.conn.mu.Unlock()
	return st
}

func (e *serverEvents) DecisionRequired(player battle.PlayerID) error {
	st := e.track()
	if st == nil {
		return battle.ErrInvalidBattleState
	}
	return e.conn.listener.RequestOrders(st)
}

func (e *serverEvents) OrdersRejected(player battle.PlayerID, message string) error {
	st := e.track()
	if st == nil {
		return battle.ErrInvalidBattleState
	}
	log.Warn("orders rejected", "room", e.sb.room, "message", message)
	return e.conn.listener.RequestCorrectedOrders(st, [3]string{message})
}

func (e *serverEvents) BattleEnded() error {
	st := e.track()
	if st == nil {
		return nil
	}
	err := e.conn.listener.EndBattle(st)
	e.conn.mu.Lock()
	delete(e.conn.byID, e.sb.id)
	delete(e.conn.battles, e.sb.room)
	e.conn.mu.Unlock()
	return err
}
