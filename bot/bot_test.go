package bot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showdown-engine/battle"
	"showdown-engine/data"
)

func testDex(t *testing.T) *data.Dex {
	t.Helper()
	dir := t.TempDir()
	pokedex := `{
		"squirtle":{"name":"Squirtle","types":["Water"]},
		"blastoise":{"name":"Blastoise","types":["Water"]},
		"tangela":{"name":"Tangela","types":["Grass"]},
		"charizard":{"name":"Charizard","types":["Fire","Flying"]}
	}`
	moves := `{
		"tackle":{"name":"Tackle","type":"Normal","basePower":40},
		"surf":{"name":"Surf","type":"Water","basePower":90}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pokedex.json"), []byte(pokedex), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "moves.json"), []byte(moves), 0o644))
	dex, err := data.Load(dir)
	require.NoError(t, err)
	return dex
}

func TestEffectiveness(t *testing.T) {
	assert.Equal(t, 2.0, effectiveness(battle.TypeWater, []battle.Type{battle.TypeFire, battle.TypeFlying}))
	assert.Equal(t, 0.25, effectiveness(battle.TypeFire, []battle.Type{battle.TypeWater, battle.TypeRock}))
	assert.Equal(t, 0.0, effectiveness(battle.TypeFighting, []battle.Type{battle.TypeGhost}))
	// Types without a chart row score neutral.
	assert.Equal(t, 1.0, effectiveness(battle.TypeNormal, []battle.Type{battle.TypeRock}))
	assert.Equal(t, 1.0, effectiveness(battle.TypeNone, nil))
}

func mustSwitch(t *testing.T, st *battle.State, pos battle.Position, details, hp string, exact bool) {
	t.Helper()
	d, err := battle.ParseDetails(details)
	require.NoError(t, err)
	h, err := battle.ParseHP(hp, exact)
	require.NoError(t, err)
	st.ApplySwitch(false, pos, d, h)
}

func TestGreedyPicksTheSuperEffectiveMove(t *testing.T) {
	st := battle.NewState(battle.Singles, 8, 1, time.Unix(1700000000, 0), 1)
	st.ApplyTeamSize(1, 1)
	st.ApplyTeamSize(2, 1)
	mustSwitch(t, st, 1, "Squirtle", "100/100", true)
	mustSwitch(t, st, -1, "Charizard", "100/100", false)

	raw := `{"active":[{"moves":[` +
		`{"move":"Tackle","id":"tackle","pp":35,"maxpp":35,"target":"normal"},` +
		`{"move":"Surf","id":"surf","pp":15,"maxpp":15,"target":"allAdjacent"}]}],` +
		`"side":{"name":"Alice","id":"p1","pokemon":[` +
		`{"ident":"p1: Squirtle","details":"Squirtle","condition":"100/100","active":true,"moves":["tackle","surf"],"baseAbility":"torrent","item":"","pokeball":"pokeball"}]}}`
	require.NoError(t, st.ApplyRequest([]byte(raw)))
	require.Equal(t, battle.RequestTurn, st.Request())

	g := &Greedy{Dex: testDex(t)}
	require.NoError(t, g.RequestOrders(st))

	// Surf is 90x2 against Fire/Flying; Tackle is a neutral 40.
	assert.Equal(t, "move 2", st.Orders()[1].Command())
}

func TestGreedyAvoidsDisabledMoves(t *testing.T) {
	st := battle.NewState(battle.Singles, 8, 1, time.Unix(1700000000, 0), 1)
	st.ApplyTeamSize(1, 1)
	st.ApplyTeamSize(2, 1)
	mustSwitch(t, st, 1, "Squirtle", "100/100", true)
	mustSwitch(t, st, -1, "Charizard", "100/100", false)

	raw := `{"active":[{"moves":[` +
		`{"move":"Tackle","id":"tackle","pp":35,"maxpp":35,"target":"normal"},` +
		`{"move":"Surf","id":"surf","pp":15,"maxpp":15,"target":"allAdjacent","disabled":true}]}],` +
		`"side":{"name":"Alice","id":"p1","pokemon":[` +
		`{"ident":"p1: Squirtle","details":"Squirtle","condition":"100/100","active":true,"moves":["tackle","surf"],"baseAbility":"torrent","item":"","pokeball":"pokeball"}]}}`
	require.NoError(t, st.ApplyRequest([]byte(raw)))

	g := &Greedy{Dex: testDex(t)}
	require.NoError(t, g.RequestOrders(st))
	assert.Equal(t, "move 1", st.Orders()[1].Command())
}

func TestGreedySwitchesToTheBestDefensiveMatchup(t *testing.T) {
	st := battle.NewState(battle.Singles, 8, 1, time.Unix(1700000000, 0), 1)
	st.ApplyTeamSize(1, 3)
	st.ApplyTeamSize(2, 1)
	mustSwitch(t, st, 1, "Squirtle", "100/100", true)
	mustSwitch(t, st, -1, "Charizard", "100/100", false)

	raw := `{"forceSwitch":[true],"side":{"name":"Alice","id":"p1","pokemon":[` +
		`{"ident":"p1: Squirtle","details":"Squirtle","condition":"0 fnt","active":true,"moves":["tackle"],"baseAbility":"torrent","item":"","pokeball":"pokeball"},` +
		`{"ident":"p1: Blastoise","details":"Blastoise","condition":"362/362","moves":["surf"],"baseAbility":"torrent","item":"","pokeball":"pokeball"},` +
		`{"ident":"p1: Tangela","details":"Tangela","condition":"330/330","moves":["vinewhip"],"baseAbility":"chlorophyll","item":"","pokeball":"pokeball"}]}}`
	require.NoError(t, st.ApplyRequest([]byte(raw)))
	require.Equal(t, battle.RequestSelectMonster, st.Request())

	g := &Greedy{Dex: testDex(t)}
	require.NoError(t, g.RequestOrders(st))

	// Against a Fire/Flying foe the Water teammate beats the Grass one.
	assert.Equal(t, "switch 2", st.Orders()[1].Command())
}

func TestGreedySelectsTheLeadingTeamMembers(t *testing.T) {
	st := battle.NewState(battle.Singles, 8, 1, time.Unix(1700000000, 0), 1)
	st.ApplyTeamSize(1, 3)
	st.ApplyTeamSize(2, 3)
	raw := `{"teamPreview":true,"maxTeamSize":2,"side":{"name":"Alice","id":"p1","pokemon":[` +
		`{"ident":"p1: Squirtle","details":"Squirtle","condition":"100/100","moves":["tackle"],"baseAbility":"torrent","item":"","pokeball":"pokeball"},` +
		`{"ident":"p1: Blastoise","details":"Blastoise","condition":"362/362","moves":["surf"],"baseAbility":"torrent","item":"","pokeball":"pokeball"},` +
		`{"ident":"p1: Tangela","details":"Tangela","condition":"330/330","moves":["vinewhip"],"baseAbility":"chlorophyll","item":"","pokeball":"pokeball"}]}}`
	require.NoError(t, st.ApplyRequest([]byte(raw)))

	g := &Greedy{}
	require.NoError(t, g.RequestOrders(st))
	assert.Equal(t, []battle.TeamIndex{1, 2}, st.TeamOrder())
}

func TestGreedyCorrectionFallsBackThroughSlots(t *testing.T) {
	st := battle.NewState(battle.Singles, 8, 1, time.Unix(1700000000, 0), 1)
	st.ApplyTeamSize(1, 1)
	st.ApplyTeamSize(2, 1)
	mustSwitch(t, st, 1, "Squirtle", "100/100", true)
	mustSwitch(t, st, -1, "Charizard", "100/100", false)

	raw := `{"active":[{"moves":[` +
		`{"move":"Tackle","id":"tackle","pp":35,"maxpp":35,"target":"normal"}]}],` +
		`"side":{"name":"Alice","id":"p1","pokemon":[` +
		`{"ident":"p1: Squirtle","details":"Squirtle","condition":"100/100","active":true,"moves":["tackle"],"baseAbility":"torrent","item":"","pokeball":"pokeball"}]}}`
	require.NoError(t, st.ApplyRequest([]byte(raw)))
	require.NoError(t, st.OrderUseMove(1, 1, battle.ModifierNone, true))

	g := &Greedy{}
	require.NoError(t, g.RequestCorrectedOrders(st, [3]string{"[Invalid choice]"}))
	order, ok := st.Orders()[1]
	require.True(t, ok)
	assert.NotZero(t, order.Action)
}
