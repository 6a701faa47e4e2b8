package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"showdown-engine/battle"
	"showdown-engine/lexicon"
)

// Record kinds. The header resolves through the vocabulary table to one of
// these; each kind carries its own payload shape.
const (
	recP1 = iota + 1
	recP2
	recP3
	recP4
	recGametype
	recGen
	recPlayer
	recRequest
	recRule
	recSideupdate
	recSplit
	recStart
	recTeamsize
	recUpdate
	recClearpoke
	recPoke
	recTeampreview
	recSwitch
	recDrag
	recTurn
	recWin
	recTie
	recFaint
	recMove
	recUpkeep
	recError
	recDamage
	recHeal
	recStatus
	recCurestatus
	recBoost
	recUnboost
	recSetboost
	recClearboost
	recAbility
	recItem
	recEnditem
	recVolStart
	recVolEnd
	recSwap
	recSetHP
	recClearAllBoost
	recClearNegBoost
	recCopyBoost
	recSwapBoost
	recInvertBoost
	recEndAbility
	recDetailsChange
	recFormeChange
	recReplace
	recTransform
	// recIgnored covers headers whose payloads carry no tracked state:
	// chat, timestamps, cosmetic battle messages.
	recIgnored
)

var headerTable = lexicon.MustNew([]lexicon.Entry{
	{Key: "p1", Value: recP1}, {Key: "p2", Value: recP2},
	{Key: "p3", Value: recP3}, {Key: "p4", Value: recP4},
	{Key: "gametype", Value: recGametype},
	{Key: "gen", Value: recGen},
	{Key: "player", Value: recPlayer},
	{Key: "request", Value: recRequest},
	{Key: "rule", Value: recRule},
	{Key: "sideupdate", Value: recSideupdate},
	{Key: "split", Value: recSplit},
	{Key: "start", Value: recStart},
	{Key: "teamsize", Value: recTeamsize},
	{Key: "update", Value: recUpdate},
	{Key: "clearpoke", Value: recClearpoke},
	{Key: "poke", Value: recPoke},
	{Key: "teampreview", Value: recTeampreview},
	{Key: "switch", Value: recSwitch},
	{Key: "drag", Value: recDrag},
	{Key: "turn", Value: recTurn},
	{Key: "win", Value: recWin},
	{Key: "tie", Value: recTie},
	{Key: "faint", Value: recFaint},
	{Key: "move", Value: recMove},
	{Key: "upkeep", Value: recUpkeep},
	{Key: "error", Value: recError},
	{Key: "-damage", Value: recDamage},
	{Key: "-heal", Value: recHeal},
	{Key: "-status", Value: recStatus},
	{Key: "-curestatus", Value: recCurestatus},
	{Key: "-boost", Value: recBoost},
	{Key: "-unboost", Value: recUnboost},
	{Key: "-setboost", Value: recSetboost},
	{Key: "-clearboost", Value: recClearboost},
	{Key: "-ability", Value: recAbility},
	{Key: "-item", Value: recItem},
	{Key: "-enditem", Value: recEnditem},
	{Key: "-start", Value: recVolStart},
	{Key: "-end", Value: recVolEnd},
	{Key: "swap", Value: recSwap},
	{Key: "-sethp", Value: recSetHP},
	{Key: "-clearallboost", Value: recClearAllBoost},
	{Key: "-clearnegativeboost", Value: recClearNegBoost},
	{Key: "-copyboost", Value: recCopyBoost},
	{Key: "-swapboost", Value: recSwapBoost},
	{Key: "-invertboost", Value: recInvertBoost},
	{Key: "-endability", Value: recEndAbility},
	{Key: "detailschange", Value: recDetailsChange},
	{Key: "-formechange", Value: recFormeChange},
	{Key: "replace", Value: recReplace},
	{Key: "-transform", Value: recTransform},

	{Key: "t:", Value: recIgnored}, {Key: "c", Value: recIgnored},
	{Key: "c:", Value: recIgnored}, {Key: "j", Value: recIgnored},
	{Key: "l", Value: recIgnored}, {Key: "raw", Value: recIgnored},
	{Key: "html", Value: recIgnored}, {Key: "debug", Value: recIgnored},
	{Key: "inactive", Value: recIgnored}, {Key: "inactiveoff", Value: recIgnored},
	{Key: "message", Value: recIgnored}, {Key: "-message", Value: recIgnored},
	{Key: "-crit", Value: recIgnored}, {Key: "-supereffective", Value: recIgnored},
	{Key: "-resisted", Value: recIgnored}, {Key: "-immune", Value: recIgnored},
	{Key: "-miss", Value: recIgnored}, {Key: "-fail", Value: recIgnored},
	{Key: "cant", Value: recIgnored}, {Key: "-activate", Value: recIgnored},
	{Key: "-singleturn", Value: recIgnored}, {Key: "-singlemove", Value: recIgnored},
	{Key: "-sidestart", Value: recIgnored}, {Key: "-sideend", Value: recIgnored},
	{Key: "-weather", Value: recIgnored}, {Key: "-fieldstart", Value: recIgnored},
	{Key: "-fieldend", Value: recIgnored}, {Key: "-hint", Value: recIgnored},
	{Key: "-anim", Value: recIgnored}, {Key: "-mega", Value: recIgnored},
	{Key: "-zpower", Value: recIgnored}, {Key: "-zbroken", Value: recIgnored},
	{Key: "-prepare", Value: recIgnored}, {Key: "-mustrecharge", Value: recIgnored},
	{Key: "-nothing", Value: recIgnored}, {Key: "-notarget", Value: recIgnored},
	{Key: "-ohko", Value: recIgnored}, {Key: "-combine", Value: recIgnored},
	{Key: "-waiting", Value: recIgnored}, {Key: "done", Value: recIgnored},
	{Key: "init", Value: recIgnored}, {Key: "title", Value: recIgnored},
	{Key: "rated", Value: recIgnored}, {Key: "join", Value: recIgnored},
	{Key: "leave", Value: recIgnored}, {Key: "n", Value: recIgnored},
	{Key: "deinit", Value: recIgnored}, {Key: "uhtml", Value: recIgnored},
	{Key: "uhtmlchange", Value: recIgnored}, {Key: "-hitcount", Value: recIgnored},
	{Key: "-terastallize", Value: recIgnored}, {Key: "-fieldactivate", Value: recIgnored},
	{Key: "-primal", Value: recIgnored}, {Key: "-burst", Value: recIgnored},
	{Key: "-center", Value: recIgnored}, {Key: "bigerror", Value: recIgnored},
})

// Events is implemented by the connection layer; the interpreter calls it
// when parsed records demand action beyond state mutation.
type Events interface {
	// DecisionRequired reports that the player's state now carries a
	// pending request other than RequestNone.
	DecisionRequired(player battle.PlayerID) error
	// OrdersRejected reports a simulator error record attributed to the
	// player, usually "[Invalid choice] ...".
	OrdersRejected(player battle.PlayerID, message string) error
	// BattleEnded reports a win or tie record.
	BattleEnded() error
}

type phase int

const (
	phasePreStart phase = iota
	phaseInProgress
)

// Config carries the per-session parameters of an Interpreter.
type Config struct {
	// Events receives interpreter callbacks; nil means no callbacks.
	Events Events
	// Players lists the players whose viewpoints are tracked. A direct
	// simulator connection tracks every player; a server connection tracks
	// only the logged-in one.
	Players []battle.PlayerID
	// BattleIDs assigns the state ID for each tracked player's state, used
	// by dispatchers to route notifications. Missing entries get ID 0.
	BattleIDs map[battle.PlayerID]uint64
	// ExpectedGeneration, when nonzero, makes a differing gen record fail.
	ExpectedGeneration int
	// Observer marks all tracked viewpoints as watching rather than
	// playing; observers never see exact HP.
	Observer bool
	// Scope, when nonzero, attributes records outside any explicit
	// sideupdate scope to this player. Server streams deliver a single
	// player's view without sideupdate framing; direct simulator streams
	// leave this zero.
	Scope battle.PlayerID
	// Now supplies state timestamps, defaulting to time.Now.
	Now func() time.Time
}

// Interpreter is the session state machine. It consumes raw bytes (through
// its embedded tokenizer) and applies semantic updates to one BattleState
// per tracked player.
//
// All errors returned from Feed are fatal to the session.
type Interpreter struct {
	cfg Config
	tok *Tokenizer

	phase      phase
	category   battle.Category
	catKnown   bool
	generation int

	names     map[battle.PlayerID]string
	teamSizes map[battle.PlayerID]int
	rules     []string
	pending   map[battle.PlayerID][]byte

	states map[battle.PlayerID]*battle.State

	// Record assembly.
	kind       int
	haveHeader bool
	fields     []string

	// sideupdate/update scope and split-broadcast bookkeeping.
	scope       battle.PlayerID // 0 = broadcast
	awaitScope  bool
	splitPlayer battle.PlayerID
	splitStage  int // 0 none, 1 secret line next, 2 public line next

	turn int
}

// NewInterpreter builds a session for one battle.
func NewInterpreter(cfg Config) *Interpreter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	in := &Interpreter{
		cfg:       cfg,
		scope:     cfg.Scope,
		names:     make(map[battle.PlayerID]string),
		teamSizes: make(map[battle.PlayerID]int),
		pending:   make(map[battle.PlayerID][]byte),
		states:    make(map[battle.PlayerID]*battle.State),
	}
	in.tok = NewTokenizer(in.onField)
	return in
}

// Feed consumes one chunk of simulator output. Chunk boundaries are
// arbitrary; feeding byte by byte and feeding whole messages produce the
// same record sequence.
func (in *Interpreter) Feed(chunk []byte) error {
	return in.tok.Feed(chunk)
}

// State returns the tracked state for a player, nil before the battle
// started or for untracked players.
func (in *Interpreter) State(player battle.PlayerID) *battle.State {
	return in.states[player]
}

// Category reports the battle category once the gametype record arrived.
func (in *Interpreter) Category() (battle.Category, bool) {
	return in.category, in.catKnown
}

// Turn reports the last turn record seen.
func (in *Interpreter) Turn() int { return in.turn }

func (in *Interpreter) tracked(player battle.PlayerID) bool {
	for _, p := range in.cfg.Players {
		if p == player {
			return true
		}
	}
	return false
}

func (in *Interpreter) onField(field []byte, eol bool) error {
	if !in.haveHeader {
		if len(field) == 0 {
			// Either the leading '|' of a body line or a blank separator
			// line; neither is a record by itself.
			return nil
		}
		kind, err := headerTable.Lookup(string(field), false)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrUnknownHeader, string(field))
		}
		in.kind = kind
		switch kind {
		case recIgnored:
			if !eol {
				in.tok.SkipLine()
			}
			// A skipped record still occupies its slot in a split pair.
			in.advanceSplit()
			return nil
		case recRequest, recError:
			if eol {
				// A request record with no payload is a shape mismatch.
				return fmt.Errorf("%w: %q record without payload", ErrProtocolSyntax, string(field))
			}
			in.tok.ReadLine()
			in.haveHeader = true
			return nil
		}
		in.haveHeader = true
		in.fields = in.fields[:0]
		if eol {
			return in.finishRecord()
		}
		return nil
	}
	in.fields = append(in.fields, string(field))
	if eol {
		return in.finishRecord()
	}
	return nil
}

func (in *Interpreter) finishRecord() error {
	kind, fields := in.kind, in.fields
	in.haveHeader = false
	in.fields = in.fields[:0]
	err := in.dispatch(kind, fields)
	// A consumed event record advances the split pairing; bookkeeping
	// records (split itself, scope markers) do not.
	if err == nil && in.splitStage > 0 {
		switch kind {
		case recSplit, recSideupdate, recUpdate, recP1, recP2, recP3, recP4:
		default:
			in.advanceSplit()
		}
	}
	return err
}

// advanceSplit moves the secret/public pairing along by one consumed record.
func (in *Interpreter) advanceSplit() {
	switch in.splitStage {
	case 1:
		in.splitStage = 2
	case 2:
		in.splitStage = 0
		in.splitPlayer = 0
	}
}

// targets resolves which tracked states the current record applies to,
// honoring split pairing first and sideupdate scope second.
func (in *Interpreter) targets() []battle.PlayerID {
	switch {
	case in.splitStage == 1:
		if in.tracked(in.splitPlayer) {
			return []battle.PlayerID{in.splitPlayer}
		}
		return nil
	case in.splitStage == 2:
		var out []battle.PlayerID
		for _, p := range in.cfg.Players {
			if p != in.splitPlayer {
				out = append(out, p)
			}
		}
		return out
	case in.scope != 0:
		if in.tracked(in.scope) {
			return []battle.PlayerID{in.scope}
		}
		return nil
	default:
		return append([]battle.PlayerID(nil), in.cfg.Players...)
	}
}

func needFields(kind string, fields []string, want int) error {
	if len(fields) != want {
		return fmt.Errorf("%w: %s record has %d fields, want %d", ErrProtocolSyntax, kind, len(fields), want)
	}
	return nil
}

func (in *Interpreter) dispatch(kind int, fields []string) error {
	if in.awaitScope && (kind < recP1 || kind > recP4) {
		return fmt.Errorf("%w: sideupdate not followed by a player line", ErrProtocolSyntax)
	}
	switch kind {
	case recP1, recP2, recP3, recP4:
		in.scope = battle.PlayerID(kind - recP1 + 1)
		in.awaitScope = false
		return nil
	case recSideupdate:
		in.awaitScope = true
		return nil
	case recUpdate:
		in.scope = in.cfg.Scope
		in.awaitScope = false
		return nil
	case recSplit:
		if err := needFields("split", fields, 1); err != nil {
			return err
		}
		player, err := playerByName(fields[0])
		if err != nil {
			return err
		}
		in.splitPlayer = player
		in.splitStage = 1
		return nil
	case recGametype:
		if err := needFields("gametype", fields, 1); err != nil {
			return err
		}
		cat, err := battle.CategoryByName(fields[0])
		if err != nil {
			return fmt.Errorf("%w: gametype %q", ErrUnknownFormat, fields[0])
		}
		in.category = cat
		in.catKnown = true
		return nil
	case recGen:
		if err := needFields("gen", fields, 1); err != nil {
			return err
		}
		gen, err := strconv.Atoi(fields[0])
		if err != nil || gen < battle.GenerationMin || gen > battle.GenerationMax {
			return fmt.Errorf("%w: %q", ErrInvalidGeneration, fields[0])
		}
		if in.cfg.ExpectedGeneration != 0 && gen != in.cfg.ExpectedGeneration {
			return fmt.Errorf("%w: server reports generation %d, expected %d",
				ErrInvalidGeneration, gen, in.cfg.ExpectedGeneration)
		}
		in.generation = gen
		return nil
	case recPlayer:
		// player|p1|Username|avatar[|rating]; trailing fields optional.
		if len(fields) < 2 {
			return fmt.Errorf("%w: player record has %d fields", ErrProtocolSyntax, len(fields))
		}
		player, err := playerByName(fields[0])
		if err != nil {
			return err
		}
		in.names[player] = fields[1]
		return nil
	case recTeamsize:
		if err := needFields("teamsize", fields, 2); err != nil {
			return err
		}
		player, err := playerByName(fields[0])
		if err != nil {
			return err
		}
		size, err := strconv.Atoi(fields[1])
		if err != nil || size < 1 {
			return fmt.Errorf("%w: teamsize %q", ErrProtocolSyntax, fields[1])
		}
		in.teamSizes[player] = size
		for _, st := range in.states {
			st.ApplyTeamSize(player, size)
		}
		return nil
	case recRule:
		if err := needFields("rule", fields, 1); err != nil {
			return err
		}
		in.rules = append(in.rules, fields[0])
		for _, st := range in.states {
			st.ApplyRule(fields[0])
		}
		return nil
	case recClearpoke, recPoke, recTeampreview:
		return fmt.Errorf("team preview records: %w", ErrNotImplemented)
	case recStart:
		return in.handleStart()
	case recRequest:
		if err := needFields("request", fields, 1); err != nil {
			return err
		}
		return in.handleRequest([]byte(fields[0]))
	case recError:
		if err := needFields("error", fields, 1); err != nil {
			return err
		}
		return in.handleError(fields[0])
	case recTurn:
		if err := needFields("turn", fields, 1); err != nil {
			return err
		}
		turn, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("%w: turn %q", ErrProtocolSyntax, fields[0])
		}
		in.turn = turn
		for _, p := range in.targets() {
			if st := in.states[p]; st != nil {
				st.ApplyTurn(turn)
			}
		}
		return nil
	case recSwitch, recDrag:
		return in.handleSwitch(kind == recDrag, fields)
	case recWin:
		if err := needFields("win", fields, 1); err != nil {
			return err
		}
		return in.handleEnd(fields[0])
	case recTie:
		return in.handleEnd("")
	case recUpkeep:
		return nil
	case recSwap:
		return in.handleSwap(fields)
	case recClearAllBoost:
		for _, p := range in.targets() {
			st := in.states[p]
			if st == nil {
				return fmt.Errorf("%w: battle record before start", ErrProtocolSyntax)
			}
			st.ClearAllFieldBoosts()
		}
		return nil
	case recReplace:
		return fmt.Errorf("illusion replace records: %w", ErrNotImplemented)
	case recTransform:
		return fmt.Errorf("transform records: %w", ErrNotImplemented)
	default:
		return in.dispatchMinor(kind, fields)
	}
}

// handleSwap moves a Pokémon to another slot of its own side. The record
// names the Pokémon and the 0-based destination slot.
func (in *Interpreter) handleSwap(fields []string) error {
	if len(fields) < 2 {
		return fmt.Errorf("%w: swap record has %d fields", ErrProtocolSyntax, len(fields))
	}
	label, _ := splitIdent(fields[0])
	if _, err := labelPlayer(label); err != nil {
		return err
	}
	slot, err := strconv.Atoi(fields[1])
	if err != nil || slot < 0 || len(label) != 3 {
		return fmt.Errorf("%w: swap destination %q for %q", ErrProtocolSyntax, fields[1], fields[0])
	}
	target := label[:2] + string(rune('a'+slot))
	for _, p := range in.targets() {
		st := in.states[p]
		if st == nil {
			return fmt.Errorf("%w: battle record before start", ErrProtocolSyntax)
		}
		from, err := TranslatePosition(label, in.category, p)
		if err != nil {
			return err
		}
		to, err := TranslatePosition(target, in.category, p)
		if err != nil {
			return err
		}
		if from != to {
			st.SwapPositions(from, to)
		}
	}
	return nil
}

func (in *Interpreter) handleStart() error {
	if in.phase != phasePreStart {
		return fmt.Errorf("%w: repeated start record", ErrProtocolSyntax)
	}
	if !in.catKnown {
		return fmt.Errorf("%w: start before gametype", ErrProtocolSyntax)
	}
	if in.generation == 0 {
		return fmt.Errorf("%w: start before gen", ErrProtocolSyntax)
	}
	now := in.cfg.Now()
	for _, p := range in.cfg.Players {
		st := battle.NewState(in.category, in.generation, in.cfg.BattleIDs[p], now, p)
		st.SetObserver(in.cfg.Observer)
		for _, rule := range in.rules {
			st.ApplyRule(rule)
		}
		for player, size := range in.teamSizes {
			st.ApplyTeamSize(player, size)
		}
		in.states[p] = st
	}
	in.phase = phaseInProgress
	// Requests buffered before start become live decisions now.
	for _, p := range in.cfg.Players {
		raw := in.pending[p]
		if raw == nil {
			continue
		}
		delete(in.pending, p)
		if err := in.applyRequest(p, raw); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) handleRequest(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	player := in.scope
	if player == 0 {
		return fmt.Errorf("%w: request record outside a sideupdate scope", ErrProtocolSyntax)
	}
	if !in.tracked(player) {
		return nil
	}
	if in.phase == phasePreStart {
		in.pending[player] = append([]byte(nil), raw...)
		return nil
	}
	return in.applyRequest(player, raw)
}

func (in *Interpreter) applyRequest(player battle.PlayerID, raw []byte) error {
	st := in.states[player]
	if st == nil {
		return fmt.Errorf("%w: request for p%d before start", ErrProtocolSyntax, player)
	}
	if err := st.ApplyRequest(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolSyntax, err)
	}
	if st.Request() != battle.RequestNone && in.cfg.Events != nil {
		return in.cfg.Events.DecisionRequired(player)
	}
	return nil
}

func (in *Interpreter) handleError(message string) error {
	player := in.scope
	if player == 0 {
		return fmt.Errorf("%w: error record outside a sideupdate scope: %s", ErrProtocolSyntax, message)
	}
	if !in.tracked(player) || in.cfg.Events == nil {
		return nil
	}
	return in.cfg.Events.OrdersRejected(player, message)
}

func (in *Interpreter) handleSwitch(drag bool, fields []string) error {
	if len(fields) != 3 {
		return fmt.Errorf("%w: switch record has %d fields, want 3", ErrProtocolSyntax, len(fields))
	}
	label, _ := splitIdent(fields[0])
	owner, err := labelPlayer(label)
	if err != nil {
		return err
	}
	details, err := battle.ParseDetails(fields[1])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolSyntax, err)
	}
	for _, p := range in.targets() {
		st := in.states[p]
		if st == nil {
			return fmt.Errorf("%w: switch before start", ErrProtocolSyntax)
		}
		pos, err := TranslatePosition(label, in.category, p)
		if err != nil {
			return err
		}
		// Own Pokémon in a non-observer state report exact HP; every other
		// case is fractional.
		exact := owner == p && !st.Observer()
		hp, err := battle.ParseHP(fields[2], exact)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolSyntax, err)
		}
		st.ApplySwitch(drag, pos, details, hp)
	}
	return nil
}

func (in *Interpreter) handleEnd(winner string) error {
	for _, p := range in.cfg.Players {
		st := in.states[p]
		if st == nil {
			continue
		}
		switch {
		case winner == "":
			st.ApplyOutcome(battle.Tie)
		case in.winnerIncludes(p, winner):
			st.ApplyOutcome(battle.Victory)
		default:
			st.ApplyOutcome(battle.Defeat)
		}
	}
	if in.cfg.Events != nil {
		return in.cfg.Events.BattleEnded()
	}
	return nil
}

// winnerIncludes reports whether the named winner means victory for the
// player: their own name, or their ally's in a multi battle.
func (in *Interpreter) winnerIncludes(player battle.PlayerID, winner string) bool {
	if in.names[player] == winner {
		return true
	}
	if in.category == battle.Multi {
		allies := map[battle.PlayerID]battle.PlayerID{1: 3, 3: 1, 2: 4, 4: 2}
		return in.names[allies[player]] == winner
	}
	return false
}

// dispatchMinor handles the per-Pokémon bookkeeping records: HP and status
// changes, boosts, item/ability reveals and volatile conditions.
func (in *Interpreter) dispatchMinor(kind int, fields []string) error {
	if len(fields) < 1 {
		return fmt.Errorf("%w: record without a slot field", ErrProtocolSyntax)
	}
	label, _ := splitIdent(fields[0])
	owner, err := labelPlayer(label)
	if err != nil {
		return err
	}
	for _, p := range in.targets() {
		st := in.states[p]
		if st == nil {
			return fmt.Errorf("%w: battle record before start", ErrProtocolSyntax)
		}
		pos, err := TranslatePosition(label, in.category, p)
		if err != nil {
			return err
		}
		m := st.Monster(pos, 0)
		if m == nil {
			return fmt.Errorf("%w: record for empty position %d", ErrProtocolSyntax, pos)
		}
		if err := in.applyMinor(kind, fields, st, m, owner == p && !st.Observer()); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) applyMinor(kind int, fields []string, st *battle.State, m *battle.Monster, exact bool) error {
	switch kind {
	case recFaint:
		m.Status = battle.StatusFainted
		m.RemainingHP = 0
		if m.HP >= 0 {
			m.HP = 0
		}
		return nil
	case recMove:
		if len(fields) < 2 {
			return fmt.Errorf("%w: move record has %d fields", ErrProtocolSyntax, len(fields))
		}
		id := ToID(fields[1])
		m.LastUsedMove = id
		m.LastActivatedMove = id
		return nil
	case recDamage, recHeal, recSetHP:
		if len(fields) < 2 {
			return fmt.Errorf("%w: HP record has %d fields", ErrProtocolSyntax, len(fields))
		}
		hp, err := battle.ParseHP(fields[1], exact)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolSyntax, err)
		}
		m.RemainingHP = hp.Remaining
		if exact {
			m.HP = hp.Current
			if hp.Max > 0 {
				m.MaxHP = hp.Max
			}
		}
		if hp.Status != battle.StatusNone {
			m.Status = hp.Status
		}
		return nil
	case recStatus:
		if len(fields) < 2 {
			return fmt.Errorf("%w: status record has %d fields", ErrProtocolSyntax, len(fields))
		}
		status, err := battle.StatusByName(fields[1])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolSyntax, err)
		}
		m.Status = status
		if status == battle.StatusToxic {
			m.ToxicTurns = 0
		}
		return nil
	case recCurestatus:
		m.Status = battle.StatusNone
		m.ToxicTurns = -1
		return nil
	case recBoost, recUnboost, recSetboost:
		if len(fields) < 3 {
			return fmt.Errorf("%w: boost record has %d fields", ErrProtocolSyntax, len(fields))
		}
		amount, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("%w: boost amount %q", ErrProtocolSyntax, fields[2])
		}
		return applyBoost(kind, m, fields[1], amount)
	case recClearboost:
		m.StatBoosts = battle.Stats{}
		m.AccuracyBoost = 0
		m.EvasionBoost = 0
		return nil
	case recClearNegBoost:
		for i := 0; i <= battle.StatMaxIndex; i++ {
			if b := m.StatBoosts.At(i); *b < 0 {
				*b = 0
			}
		}
		if m.AccuracyBoost < 0 {
			m.AccuracyBoost = 0
		}
		if m.EvasionBoost < 0 {
			m.EvasionBoost = 0
		}
		return nil
	case recInvertBoost:
		for i := 0; i <= battle.StatMaxIndex; i++ {
			b := m.StatBoosts.At(i)
			*b = -*b
		}
		m.AccuracyBoost = -m.AccuracyBoost
		m.EvasionBoost = -m.EvasionBoost
		return nil
	case recCopyBoost, recSwapBoost:
		return in.applyBoostTransfer(kind, fields, st, m)
	case recAbility:
		if len(fields) < 2 {
			return fmt.Errorf("%w: ability record has %d fields", ErrProtocolSyntax, len(fields))
		}
		m.Ability = ToID(fields[1])
		return nil
	case recItem:
		if len(fields) < 2 {
			return fmt.Errorf("%w: item record has %d fields", ErrProtocolSyntax, len(fields))
		}
		m.Item = ToID(fields[1])
		return nil
	case recEnditem:
		m.Item = ""
		return nil
	case recEndAbility:
		m.Ability = ""
		return nil
	case recDetailsChange, recFormeChange:
		if len(fields) < 2 {
			return fmt.Errorf("%w: forme record has %d fields", ErrProtocolSyntax, len(fields))
		}
		details, err := battle.ParseDetails(fields[1])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolSyntax, err)
		}
		m.Species = details.Species
		m.Shiny = details.Shiny
		m.Gender = details.Gender
		m.Level = details.Level
		return nil
	case recVolStart:
		if len(fields) < 2 {
			return fmt.Errorf("%w: volatile record has %d fields", ErrProtocolSyntax, len(fields))
		}
		m.SetVolatile(volatileID(fields[1]), 1)
		return nil
	case recVolEnd:
		if len(fields) < 2 {
			return fmt.Errorf("%w: volatile record has %d fields", ErrProtocolSyntax, len(fields))
		}
		delete(m.Volatiles, volatileID(fields[1]))
		return nil
	}
	return fmt.Errorf("%w: record kind %d", ErrUnknownHeader, kind)
}

func applyBoost(kind int, m *battle.Monster, stat string, amount int) error {
	clamp := func(v int) int {
		if v > 6 {
			return 6
		}
		if v < -6 {
			return -6
		}
		return v
	}
	apply := func(target *int) {
		switch kind {
		case recBoost:
			*target = clamp(*target + amount)
		case recUnboost:
			*target = clamp(*target - amount)
		default:
			*target = clamp(amount)
		}
	}
	switch stat {
	case "accuracy":
		apply(&m.AccuracyBoost)
	case "evasion":
		apply(&m.EvasionBoost)
	default:
		idx, err := battle.StatIndexOf(stat)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolSyntax, err)
		}
		apply(m.StatBoosts.At(idx))
	}
	return nil
}

// applyBoostTransfer services copyboost (m takes the other Pokémon's boosts)
// and swapboost (the two exchange them; a stat list in the third field
// restricts the exchange, as Power Swap and Guard Swap produce).
func (in *Interpreter) applyBoostTransfer(kind int, fields []string, st *battle.State, m *battle.Monster) error {
	if len(fields) < 2 {
		return fmt.Errorf("%w: boost transfer record has %d fields", ErrProtocolSyntax, len(fields))
	}
	label, _ := splitIdent(fields[1])
	pos, err := TranslatePosition(label, in.category, st.Viewer())
	if err != nil {
		return err
	}
	other := st.Monster(pos, 0)
	if other == nil {
		return fmt.Errorf("%w: boost transfer with empty position %d", ErrProtocolSyntax, pos)
	}
	if kind == recCopyBoost {
		m.StatBoosts = other.StatBoosts
		m.AccuracyBoost = other.AccuracyBoost
		m.EvasionBoost = other.EvasionBoost
		return nil
	}
	if len(fields) >= 3 && fields[2] != "" && fields[2][0] != '[' {
		for _, name := range strings.Split(fields[2], ",") {
			switch name = strings.TrimSpace(name); name {
			case "accuracy":
				m.AccuracyBoost, other.AccuracyBoost = other.AccuracyBoost, m.AccuracyBoost
			case "evasion":
				m.EvasionBoost, other.EvasionBoost = other.EvasionBoost, m.EvasionBoost
			default:
				idx, err := battle.StatIndexOf(name)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrProtocolSyntax, err)
				}
				a, b := m.StatBoosts.At(idx), other.StatBoosts.At(idx)
				*a, *b = *b, *a
			}
		}
		return nil
	}
	m.StatBoosts, other.StatBoosts = other.StatBoosts, m.StatBoosts
	m.AccuracyBoost, other.AccuracyBoost = other.AccuracyBoost, m.AccuracyBoost
	m.EvasionBoost, other.EvasionBoost = other.EvasionBoost, m.EvasionBoost
	return nil
}

// splitIdent splits a Pokémon identifier like "p1a: Sparky" into the slot
// label and the nickname. Bare labels pass through unchanged.
func splitIdent(ident string) (label, nickname string) {
	if i := strings.Index(ident, ": "); i >= 0 {
		return ident[:i], ident[i+2:]
	}
	return ident, ""
}

// playerByName resolves "p1".."p4".
func playerByName(name string) (battle.PlayerID, error) {
	if len(name) == 2 && name[0] == 'p' && name[1] >= '1' && name[1] <= '4' {
		return battle.PlayerID(name[1] - '0'), nil
	}
	return 0, fmt.Errorf("%w: player id %q", ErrProtocolSyntax, name)
}

// ToID normalizes a display name to the simulator's identifier form:
// lowercase with everything but letters and digits removed. "Volt Absorb"
// becomes "voltabsorb".
func ToID(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		}
	}
	return b.String()
}

// volatileID extracts the effect id from a volatile field, dropping a
// "move: " or "ability: " category prefix when present.
func volatileID(field string) string {
	if i := strings.Index(field, ": "); i >= 0 {
		field = field[i+2:]
	}
	return ToID(field)
}
