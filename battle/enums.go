// Package battle holds the model of one Pokémon Showdown battle as seen by
// one player: the monsters, the pending request, the recorded orders and the
// rule set. It is mutated by the protocol interpreter and queried by bots.
package battle

import (
	"fmt"

	"showdown-engine/lexicon"
)

// Generation bounds accepted by the library.
const (
	GenerationMin = 1
	GenerationMax = 8
)

// Unknown is the sentinel used in string fields whose value has not been
// revealed yet. It is distinct from the empty string, which means "known to
// be absent".
const Unknown = "?"

// Category is the battle's player/side topology.
type Category int

const (
	Singles Category = iota
	Doubles
	Triples
	Multi
	FreeForAll
)

var categoryNames = map[Category]string{
	Singles:    "singles",
	Doubles:    "doubles",
	Triples:    "triples",
	Multi:      "multi",
	FreeForAll: "freeforall",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// MaxPlayers reports how many players the category has: 2 for two-sided
// battles, 4 for multi and free-for-all.
func (c Category) MaxPlayers() int {
	if c == Multi || c == FreeForAll {
		return 4
	}
	return 2
}

var categoryTable = lexicon.MustNew([]lexicon.Entry{
	{Key: "singles", Value: int(Singles)},
	{Key: "doubles", Value: int(Doubles)},
	{Key: "triples", Value: int(Triples)},
	{Key: "multi", Value: int(Multi)},
	{Key: "freeforall", Value: int(FreeForAll)},
})

// CategoryByName resolves a case/punctuation-insensitive category name such
// as "free-for-all".
func CategoryByName(name string) (Category, error) {
	v, err := categoryTable.Lookup(name, true)
	if err != nil {
		return 0, fmt.Errorf("unknown battle category %q: %w", name, err)
	}
	return Category(v), nil
}

// Outcome of a battle from the viewing player's perspective.
type Outcome int

const (
	Ongoing Outcome = 0

	Victory                  Outcome = 0x10
	VictoryOpponentForfeited Outcome = 0x12
	VictoryByTimeout         Outcome = 0x13
	VictoryByResolution      Outcome = 0x14

	Defeat             Outcome = 0x20
	DefeatForfeited    Outcome = 0x21
	DefeatByTimeout    Outcome = 0x22
	DefeatByResolution Outcome = 0x23

	Tie Outcome = 0x30
)

// Terminal reports whether the outcome is final.
func (o Outcome) Terminal() bool { return o != Ongoing }

// Request is the kind of decision currently required from the player.
type Request int

const (
	RequestNone Request = iota
	RequestSelectTeam
	RequestSelectMonster
	RequestTurn
)

func (r Request) String() string {
	switch r {
	case RequestNone:
		return "none"
	case RequestSelectTeam:
		return "select-team"
	case RequestSelectMonster:
		return "select-monster"
	case RequestTurn:
		return "turn"
	}
	return fmt.Sprintf("Request(%d)", int(r))
}

// Gender of a Pokémon. GenderUnknown is "not revealed", GenderNone is
// "known to have no gender" (and the only value in Generation I).
type Gender int

const (
	GenderUnknown Gender = iota
	GenderNone
	GenderFemale
	GenderMale
)

// NVStatus is a non-volatile status condition.
type NVStatus int

const (
	StatusNone NVStatus = iota
	StatusNonstandard
	StatusFainted
	StatusBurn
	StatusFreeze
	StatusParalysis
	StatusPoison
	StatusToxic
	StatusSleep
)

var statusTable = lexicon.MustNew([]lexicon.Entry{
	{Key: "fainted", Value: int(StatusFainted)}, {Key: "fnt", Value: int(StatusFainted)},
	{Key: "burn", Value: int(StatusBurn)}, {Key: "brn", Value: int(StatusBurn)},
	{Key: "freeze", Value: int(StatusFreeze)}, {Key: "frozen", Value: int(StatusFreeze)}, {Key: "frz", Value: int(StatusFreeze)},
	{Key: "paralysis", Value: int(StatusParalysis)}, {Key: "par", Value: int(StatusParalysis)},
	{Key: "poison", Value: int(StatusPoison)}, {Key: "psn", Value: int(StatusPoison)},
	{Key: "toxic", Value: int(StatusToxic)}, {Key: "tox", Value: int(StatusToxic)},
	{Key: "sleep", Value: int(StatusSleep)}, {Key: "slp", Value: int(StatusSleep)},
})

// StatusByName resolves a status name or protocol abbreviation ("par",
// "Paralysis"). The empty string resolves to StatusNone.
func StatusByName(name string) (NVStatus, error) {
	if name == "" {
		return StatusNone, nil
	}
	v, err := statusTable.Lookup(name, false)
	if err != nil {
		return 0, fmt.Errorf("unknown status %q: %w", name, err)
	}
	return NVStatus(v), nil
}

// Nature of a Pokémon. The value encodes the affected stats:
// (value >> 8) is the increased stat index, (value >> 4) & 0xF the decreased
// one. Natures with equal indices leave stats unchanged.
type Nature int

const (
	NatureNone    Nature = 0
	NatureUnknown Nature = 1

	// + Attack
	NatureHardy   Nature = 0x110
	NatureLonely  Nature = 0x120
	NatureAdamant Nature = 0x130
	NatureNaughty Nature = 0x140
	NatureBrave   Nature = 0x150
	// + Defense
	NatureBold    Nature = 0x210
	NatureDocile  Nature = 0x220
	NatureImpish  Nature = 0x230
	NatureLax     Nature = 0x240
	NatureRelaxed Nature = 0x250
	// + Special Attack
	NatureModest  Nature = 0x310
	NatureMild    Nature = 0x320
	NatureBashful Nature = 0x330
	NatureRash    Nature = 0x340
	NatureQuiet   Nature = 0x350
	// + Special Defense
	NatureCalm    Nature = 0x410
	NatureGentle  Nature = 0x420
	NatureCareful Nature = 0x430
	NatureQuirky  Nature = 0x440
	NatureSassy   Nature = 0x450
	// + Speed
	NatureTimid   Nature = 0x510
	NatureHasty   Nature = 0x520
	NatureJolly   Nature = 0x530
	NatureNaive   Nature = 0x540
	NatureSerious Nature = 0x550
)

// Increases returns the index (see Stats.At) of the stat the nature raises,
// or -1 for NatureNone/NatureUnknown.
func (n Nature) Increases() int {
	if n == NatureNone || n == NatureUnknown {
		return -1
	}
	return int(n) >> 8
}

// Decreases is the counterpart of Increases for the lowered stat.
func (n Nature) Decreases() int {
	if n == NatureNone || n == NatureUnknown {
		return -1
	}
	return (int(n) >> 4) & 0xF
}

var natureNames = map[Nature]string{
	NatureHardy: "hardy", NatureLonely: "lonely", NatureAdamant: "adamant",
	NatureNaughty: "naughty", NatureBrave: "brave",
	NatureBold: "bold", NatureDocile: "docile", NatureImpish: "impish",
	NatureLax: "lax", NatureRelaxed: "relaxed",
	NatureModest: "modest", NatureMild: "mild", NatureBashful: "bashful",
	NatureRash: "rash", NatureQuiet: "quiet",
	NatureCalm: "calm", NatureGentle: "gentle", NatureCareful: "careful",
	NatureQuirky: "quirky", NatureSassy: "sassy",
	NatureTimid: "timid", NatureHasty: "hasty", NatureJolly: "jolly",
	NatureNaive: "naive", NatureSerious: "serious",
}

var natureTable = func() *lexicon.Table {
	entries := make([]lexicon.Entry, 0, len(natureNames))
	for nat, name := range natureNames {
		entries = append(entries, lexicon.Entry{Key: name, Value: int(nat)})
	}
	return lexicon.MustNew(entries)
}()

// NatureByName resolves a case-insensitive nature name, e.g. "Adamant".
func NatureByName(name string) (Nature, error) {
	v, err := natureTable.Lookup(name, false)
	if err != nil {
		return 0, fmt.Errorf("unknown nature %q: %w", name, err)
	}
	return Nature(v), nil
}

// Name returns the lowercase nature name, "" for NatureNone and the unknown
// sentinel for NatureUnknown.
func (n Nature) Name() string {
	switch n {
	case NatureNone:
		return ""
	case NatureUnknown:
		return Unknown
	}
	return natureNames[n]
}

// Type is a Pokémon or move type.
type Type int

const (
	TypeNone    Type = 0
	TypeUnknown Type = 100
	// TypeNonstandard may only occur in non-standard formats.
	TypeNonstandard Type = 200

	TypeBug      Type = 1
	TypeDragon   Type = 2
	TypeElectric Type = 3
	TypeFighting Type = 4
	TypeFire     Type = 5
	TypeFlying   Type = 6
	TypeGhost    Type = 7
	TypeGrass    Type = 8
	TypeGround   Type = 9
	TypeIce      Type = 10
	TypeNormal   Type = 11
	TypePoison   Type = 12
	TypePsychic  Type = 13
	TypeRock     Type = 14
	TypeWater    Type = 15
	// Generation 2+
	TypeDark  Type = 16
	TypeSteel Type = 17
	// Generation 6+
	TypeFairy Type = 18
)

var typeNames = map[Type]string{
	TypeBug: "bug", TypeDragon: "dragon", TypeElectric: "electric",
	TypeFighting: "fighting", TypeFire: "fire", TypeFlying: "flying",
	TypeGhost: "ghost", TypeGrass: "grass", TypeGround: "ground",
	TypeIce: "ice", TypeNormal: "normal", TypePoison: "poison",
	TypePsychic: "psychic", TypeRock: "rock", TypeWater: "water",
	TypeDark: "dark", TypeSteel: "steel", TypeFairy: "fairy",
}

var typeTable = func() *lexicon.Table {
	entries := make([]lexicon.Entry, 0, len(typeNames))
	for typ, name := range typeNames {
		entries = append(entries, lexicon.Entry{Key: name, Value: int(typ)})
	}
	return lexicon.MustNew(entries)
}()

// TypeByName resolves a case-insensitive type name, e.g. "Electric".
func TypeByName(name string) (Type, error) {
	v, err := typeTable.Lookup(name, false)
	if err != nil {
		return 0, fmt.Errorf("unknown type %q: %w", name, err)
	}
	return Type(v), nil
}

// Name returns the lowercase type name, "" for TypeNone and the unknown
// sentinel otherwise.
func (t Type) Name() string {
	if t == TypeNone {
		return ""
	}
	if s, ok := typeNames[t]; ok {
		return s
	}
	return Unknown
}

// MoveModifier selects how a move is used.
type MoveModifier int

const (
	ModifierNone MoveModifier = iota
	// ModifierMega mega-evolves (or uses Primal Reversion / Ultra Burst)
	// before using the move. Generation 6+.
	ModifierMega
	// ModifierZ uses the move as a Z-Move. Generation 7+.
	ModifierZ
	// ModifierDynamax dynamaxes or gigantamaxes first. Generation 8.
	ModifierDynamax
)

func (m MoveModifier) String() string {
	switch m {
	case ModifierNone:
		return "none"
	case ModifierMega:
		return "mega"
	case ModifierZ:
		return "zmove"
	case ModifierDynamax:
		return "dynamax"
	}
	return fmt.Sprintf("MoveModifier(%d)", int(m))
}

// MoveTarget describes what a move may target. The bits mean, high to low:
// needs an explicit target, special selection rules, can target self, can
// target adjacent allies, adjacent foes, far allies, far foes.
type MoveTarget int

const (
	TargetBitTargeted       MoveTarget = 0b1000000
	TargetBitSpecial        MoveTarget = 0b0100000
	TargetBitSelf           MoveTarget = 0b0010000
	TargetBitAdjacentAllies MoveTarget = 0b0001000
	TargetBitAdjacentFoes   MoveTarget = 0b0000100
	TargetBitFarAllies      MoveTarget = 0b0000010
	TargetBitFarFoes        MoveTarget = 0b0000001

	TargetUnknown            MoveTarget = 0
	TargetScripted           MoveTarget = 0b0111111
	TargetSelf               MoveTarget = TargetBitSelf
	TargetRandomAdjacentFoe  MoveTarget = TargetBitSpecial | TargetBitAdjacentFoes
	TargetAlliedSide         MoveTarget = TargetBitSelf | TargetBitAdjacentAllies | TargetBitFarAllies
	TargetAlliedTeam         MoveTarget = TargetBitSpecial | TargetBitSelf
	TargetFoeSide            MoveTarget = TargetBitAdjacentFoes | TargetBitFarFoes
	TargetAllAdjacent        MoveTarget = TargetBitAdjacentFoes | TargetBitAdjacentAllies
	TargetAllAdjacentFoes    MoveTarget = TargetBitAdjacentFoes
	TargetAll                MoveTarget = 0b0011111
	TargetAdjacent           MoveTarget = TargetBitTargeted | TargetBitAdjacentAllies | TargetBitAdjacentFoes
	TargetAdjacentAlly       MoveTarget = TargetBitTargeted | TargetBitAdjacentAllies
	TargetAdjacentAllyOrSelf MoveTarget = TargetBitTargeted | TargetBitSelf | TargetBitAdjacentAllies
	TargetAdjacentFoe        MoveTarget = TargetBitTargeted | TargetBitAdjacentFoes
	TargetAny                MoveTarget = 0b1001111
)

// moveTargetTable maps the target ids Showdown uses in request JSON.
var moveTargetTable = lexicon.MustNew([]lexicon.Entry{
	{Key: "normal", Value: int(TargetAdjacent)},
	{Key: "self", Value: int(TargetSelf)},
	{Key: "scripted", Value: int(TargetScripted)},
	{Key: "randomnormal", Value: int(TargetRandomAdjacentFoe)},
	{Key: "allyside", Value: int(TargetAlliedSide)},
	{Key: "allyteam", Value: int(TargetAlliedTeam)},
	{Key: "foeside", Value: int(TargetFoeSide)},
	{Key: "alladjacent", Value: int(TargetAllAdjacent)},
	{Key: "alladjacentfoes", Value: int(TargetAllAdjacentFoes)},
	{Key: "all", Value: int(TargetAll)},
	{Key: "adjacentally", Value: int(TargetAdjacentAlly)},
	{Key: "adjacentallyorself", Value: int(TargetAdjacentAllyOrSelf)},
	{Key: "adjacentfoe", Value: int(TargetAdjacentFoe)},
	{Key: "any", Value: int(TargetAny)},
})

// TargetByName resolves a Showdown target id ("normal", "allAdjacentFoes").
// Unrecognized ids resolve to TargetUnknown without an error, since new
// target kinds appear between simulator versions.
func TargetByName(name string) MoveTarget {
	v, err := moveTargetTable.Lookup(name, false)
	if err != nil {
		return TargetUnknown
	}
	return MoveTarget(v)
}
