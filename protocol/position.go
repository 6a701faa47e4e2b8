package protocol

import (
	"fmt"

	"showdown-engine/battle"
	"showdown-engine/lexicon"
)

// Position labels are stored in the tables with an offset so the compact
// lookup structure only holds non-negative codes, the same trick the wire
// tables use for signed slots.
const positionBias = 4

type tableKey struct {
	category battle.Category
	viewer   battle.PlayerID
}

// positionTables maps (category, viewer) to the label table for that view.
// The same wire label means different signed slots depending on who is
// looking: "p2a" is the opposing lead to p1 but your own lead to p2.
var positionTables = map[tableKey]*lexicon.Table{
	{battle.Doubles, 1}: lexicon.MustNew([]lexicon.Entry{
		{Key: "p1a", Value: positionBias + 1}, {Key: "p1b", Value: positionBias + 2},
		{Key: "p2b", Value: positionBias - 1}, {Key: "p2a", Value: positionBias - 2},
	}),
	{battle.Doubles, 2}: lexicon.MustNew([]lexicon.Entry{
		{Key: "p2a", Value: positionBias + 1}, {Key: "p2b", Value: positionBias + 2},
		{Key: "p1b", Value: positionBias - 1}, {Key: "p1a", Value: positionBias - 2},
	}),
	{battle.Triples, 1}: lexicon.MustNew([]lexicon.Entry{
		{Key: "p1a", Value: positionBias + 1}, {Key: "p1b", Value: positionBias + 2}, {Key: "p1c", Value: positionBias + 3},
		{Key: "p2c", Value: positionBias - 1}, {Key: "p2b", Value: positionBias - 2}, {Key: "p2a", Value: positionBias - 3},
	}),
	{battle.Triples, 2}: lexicon.MustNew([]lexicon.Entry{
		{Key: "p2a", Value: positionBias + 1}, {Key: "p2b", Value: positionBias + 2}, {Key: "p2c", Value: positionBias + 3},
		{Key: "p1c", Value: positionBias - 1}, {Key: "p1b", Value: positionBias - 2}, {Key: "p1a", Value: positionBias - 3},
	}),
	{battle.Multi, 1}: lexicon.MustNew([]lexicon.Entry{
		{Key: "p1a", Value: positionBias + 1}, {Key: "p3b", Value: positionBias + 2},
		{Key: "p4b", Value: positionBias - 1}, {Key: "p2a", Value: positionBias - 2},
	}),
	{battle.Multi, 2}: lexicon.MustNew([]lexicon.Entry{
		{Key: "p2a", Value: positionBias + 1}, {Key: "p4b", Value: positionBias + 2},
		{Key: "p3b", Value: positionBias - 1}, {Key: "p1a", Value: positionBias - 2},
	}),
	{battle.Multi, 3}: lexicon.MustNew([]lexicon.Entry{
		{Key: "p3b", Value: positionBias + 1}, {Key: "p1a", Value: positionBias + 2},
		{Key: "p2a", Value: positionBias - 1}, {Key: "p4b", Value: positionBias - 2},
	}),
	{battle.Multi, 4}: lexicon.MustNew([]lexicon.Entry{
		{Key: "p4b", Value: positionBias + 1}, {Key: "p2a", Value: positionBias + 2},
		{Key: "p1a", Value: positionBias - 1}, {Key: "p3b", Value: positionBias - 2},
	}),
}

// labelPlayer extracts the owning player from a slot label like "p2a".
func labelPlayer(label string) (battle.PlayerID, error) {
	if len(label) < 2 || label[0] != 'p' || label[1] < '1' || label[1] > '4' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPosition, label)
	}
	return battle.PlayerID(label[1] - '0'), nil
}

// TranslatePosition maps a wire slot label to the signed position numbering
// of the given viewer. Singles needs no table: the viewer's own prefix is
// position 1, anything else is -1. Free-for-all translation is an
// acknowledged gap and fails with ErrNotImplemented.
func TranslatePosition(label string, category battle.Category, viewer battle.PlayerID) (battle.Position, error) {
	switch category {
	case battle.Singles:
		owner, err := labelPlayer(label)
		if err != nil {
			return 0, err
		}
		if owner == viewer {
			return 1, nil
		}
		return -1, nil
	case battle.FreeForAll:
		return 0, fmt.Errorf("free-for-all slot %q: %w", label, ErrNotImplemented)
	}
	table, ok := positionTables[tableKey{category, viewer}]
	if !ok {
		return 0, fmt.Errorf("%w: no table for %s viewer p%d", ErrInvalidPosition, category, viewer)
	}
	v, err := table.Lookup(label, false)
	if err != nil {
		return 0, fmt.Errorf("%w: %q for %s viewer p%d", ErrInvalidPosition, label, category, viewer)
	}
	return battle.Position(v - positionBias), nil
}
