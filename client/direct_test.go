package client

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showdown-engine/battle"
)

// scriptListener plays the first move of whatever is pending, synchronously.
type scriptListener struct {
	mu    sync.Mutex
	ended []*battle.State
}

func (l *scriptListener) RequestOrders(st *battle.State) error {
	if st.Request() == battle.RequestTurn {
		return st.OrderUseMove(1, 1, battle.ModifierNone, true)
	}
	return nil
}

func (l *scriptListener) RequestCorrectedOrders(st *battle.State, _ [3]string) error {
	st.ClearOrders()
	return st.OrderUseMove(1, 2, battle.ModifierNone, true)
}

func (l *scriptListener) EndBattle(st *battle.State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ended = append(l.ended, st)
	return nil
}

func requestFor(player battle.PlayerID, name, species, move string) string {
	return fmt.Sprintf(`{"active":[{"moves":[{"move":"%s","id":"%s","pp":24,"maxpp":24,"target":"normal"}]}],`+
		`"side":{"name":"%s","id":"p%d","pokemon":[{"ident":"p%d: %s","details":"%s","condition":"100/100","active":true,"moves":["%s"],"baseAbility":"","item":"","pokeball":"pokeball"}]}}`,
		move, move, name, player, player, species, species, move)
}

func TestRunBattlePlaysAScriptedBattle(t *testing.T) {
	// simOut/feed carries the battle stream written by the test, sink/simIn
	// the commands written by the connection.
	simOut, feed := io.Pipe()
	sink, simIn := io.Pipe()
	listener := &scriptListener{}

	var trafficMu sync.Mutex
	var sent []string
	traffic := func(dir Direction, _ uint64, line string) {
		if dir == DirSend {
			trafficMu.Lock()
			sent = append(sent, line)
			trafficMu.Unlock()
		}
	}

	conn := NewDirectSimConnection(simOut, simIn, listener, traffic)
	runErr := make(chan error, 1)
	go func() {
		runErr <- conn.RunBattle(BattleConfig{
			Format:     "gen8customgame",
			Generation: 8,
			Players:    []PlayerSetup{{Name: "Alice"}, {Name: "Bob"}},
			BattleIDs:  map[battle.PlayerID]uint64{1: 11, 2: 22},
		})
	}()

	commands := bufio.NewScanner(sink)
	readCommand := func() string {
		require.True(t, commands.Scan(), "command stream ended early")
		return commands.Text()
	}

	assert.Contains(t, readCommand(), `>start {"formatid":"gen8customgame"}`)
	assert.Equal(t, `>player p1 {"name":"Alice"}`, readCommand())
	assert.Equal(t, `>player p2 {"name":"Bob"}`, readCommand())

	assert.ErrorIs(t, conn.RunBattle(BattleConfig{}), ErrBattleRunning)

	opening := "update\n" +
		"|gametype|singles\n" +
		"|gen|8\n" +
		"|player|p1|Alice|265\n" +
		"|player|p2|Bob|266\n" +
		"|teamsize|p1|1\n" +
		"|teamsize|p2|1\n" +
		"sideupdate\np1\n|request|" + requestFor(1, "Alice", "Pikachu", "thunderbolt") + "\n" +
		"sideupdate\np2\n|request|" + requestFor(2, "Bob", "Ditto", "transform") + "\n" +
		"update\n" +
		"|start\n" +
		"|switch|p1a: Pikachu|Pikachu|100/100\n" +
		"|switch|p2a: Ditto|Ditto|100/100\n" +
		"|turn|1\n"
	_, err := feed.Write([]byte(opening))
	require.NoError(t, err)

	// Both buffered requests become live at start and the synchronous
	// listener's moves are submitted immediately.
	assert.Equal(t, ">p1 move 1", readCommand())
	assert.Equal(t, ">p2 move 1", readCommand())

	// A rejection triggers a corrected submission.
	_, err = feed.Write([]byte("sideupdate\np1\n|error|[Invalid choice] no such move\n"))
	require.NoError(t, err)
	assert.Equal(t, ">p1 move 2", readCommand())

	_, err = feed.Write([]byte("|win|Alice\n"))
	require.NoError(t, err)
	require.NoError(t, feed.Close())
	require.NoError(t, <-runErr)

	require.Len(t, listener.ended, 2)
	outcomes := map[battle.PlayerID]battle.Outcome{}
	for _, st := range listener.ended {
		outcomes[st.Viewer()] = st.Outcome()
	}
	assert.Equal(t, battle.Victory, outcomes[1])
	assert.Equal(t, battle.Defeat, outcomes[2])

	trafficMu.Lock()
	defer trafficMu.Unlock()
	assert.Contains(t, sent, ">p1 move 1")
	assert.Contains(t, sent, ">p1 move 2")

	// The session is gone; stale states are rejected.
	assert.ErrorIs(t, conn.SendOrders(listener.ended[0]), battle.ErrInvalidBattleState)
}

func TestRunBattleRejectsBadPlayerCounts(t *testing.T) {
	r, w := io.Pipe()
	defer r.Close()
	defer w.Close()
	conn := NewDirectSimConnection(r, w, &scriptListener{}, nil)
	err := conn.RunBattle(BattleConfig{Players: []PlayerSetup{{Name: "solo"}}})
	assert.Error(t, err)
}

func TestStopBattleEndsTheRunLoop(t *testing.T) {
	simOut, feed := io.Pipe()
	sink, simIn := io.Pipe()
	go io.Copy(io.Discard, sink)

	conn := NewDirectSimConnection(simOut, simIn, &scriptListener{}, nil)
	runErr := make(chan error, 1)
	go func() {
		runErr <- conn.RunBattle(BattleConfig{
			Players:   []PlayerSetup{{Name: "Alice"}, {Name: "Bob"}},
			BattleIDs: map[battle.PlayerID]uint64{1: 1, 2: 2},
		})
	}()

	// Spin until the run loop is up; StopBattle on an idle connection is a
	// no-op and reports false.
	for !conn.StopBattle() {
	}
	// The loop is parked in a pipe read; any traffic lets it notice the stop.
	_, err := feed.Write([]byte("update\n"))
	require.NoError(t, err)
	require.NoError(t, <-runErr)
	assert.False(t, conn.StopBattle())
}

// captureListener keeps the states it is handed and submits nothing from
// inside the callback, the way a dispatcher-driven deployment behaves.
type captureListener struct {
	states chan *battle.State
	mu     sync.Mutex
	ended  []*battle.State
}

func (l *captureListener) RequestOrders(st *battle.State) error {
	l.states <- st
	return nil
}

func (l *captureListener) RequestCorrectedOrders(st *battle.State, _ [3]string) error {
	return nil
}

func (l *captureListener) EndBattle(st *battle.State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ended = append(l.ended, st)
	return nil
}

// The run loop keeps mutating the live states; what the listener holds must
// be an independent copy that still answers the pending decision.
func TestListenerStatesAreIndependentCopies(t *testing.T) {
	simOut, feed := io.Pipe()
	sink, simIn := io.Pipe()
	listener := &captureListener{states: make(chan *battle.State, 2)}

	conn := NewDirectSimConnection(simOut, simIn, listener, nil)
	runErr := make(chan error, 1)
	go func() {
		runErr <- conn.RunBattle(BattleConfig{
			Format:     "gen8customgame",
			Generation: 8,
			Players:    []PlayerSetup{{Name: "Alice"}, {Name: "Bob"}},
			BattleIDs:  map[battle.PlayerID]uint64{1: 11, 2: 22},
		})
	}()

	commands := bufio.NewScanner(sink)
	for i := 0; i < 3; i++ {
		require.True(t, commands.Scan(), "setup command missing")
	}

	opening := "update\n" +
		"|gametype|singles\n" +
		"|gen|8\n" +
		"|player|p1|Alice|265\n" +
		"|player|p2|Bob|266\n" +
		"|teamsize|p1|1\n" +
		"|teamsize|p2|1\n" +
		"sideupdate\np1\n|request|" + requestFor(1, "Alice", "Pikachu", "thunderbolt") + "\n" +
		"sideupdate\np2\n|request|" + requestFor(2, "Bob", "Ditto", "transform") + "\n" +
		"update\n" +
		"|start\n" +
		"|switch|p1a: Pikachu|Pikachu|100/100\n" +
		"|switch|p2a: Ditto|Ditto|100/100\n" +
		"|turn|1\n"
	_, err := feed.Write([]byte(opening))
	require.NoError(t, err)

	byViewer := map[battle.PlayerID]*battle.State{}
	for i := 0; i < 2; i++ {
		st := <-listener.states
		byViewer[st.Viewer()] = st
	}
	st1 := byViewer[1]
	require.NotNil(t, st1)
	require.Equal(t, battle.RequestTurn, st1.Request())

	// The copy answers the decision even though the run loop has moved past
	// the request record by now. The pipe write completes once the command
	// is scanned on the other end.
	require.NoError(t, st1.OrderUseMove(1, 1, battle.ModifierNone, true))
	sendErr := make(chan error, 1)
	go func() { sendErr <- conn.SendOrders(st1) }()
	require.True(t, commands.Scan())
	assert.Equal(t, ">p1 move 1", commands.Text())
	require.NoError(t, <-sendErr)

	// Records mutating the live state leave the handed copies alone.
	_, err = feed.Write([]byte("|-damage|p1a: Pikachu|60/100\n|win|Alice\n"))
	require.NoError(t, err)
	require.NoError(t, feed.Close())
	require.NoError(t, <-runErr)

	require.Len(t, listener.ended, 2)
	finals := map[battle.PlayerID]*battle.State{}
	for _, st := range listener.ended {
		finals[st.Viewer()] = st
	}
	assert.InDelta(t, 0.6, finals[1].Monster(1, 1).RemainingHP, 1e-9)
	assert.InDelta(t, 1.0, st1.Monster(1, 1).RemainingHP, 1e-9)
	assert.Equal(t, 0, st1.Turn())

	// The battle is over; nothing is pending anymore.
	assert.ErrorIs(t, conn.SendOrders(byViewer[2]), battle.ErrInvalidBattleState)
}
