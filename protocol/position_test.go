package protocol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showdown-engine/battle"
)

func TestTranslateSingles(t *testing.T) {
	for _, viewer := range []battle.PlayerID{1, 2} {
		own := fmt.Sprintf("p%da", viewer)
		other := fmt.Sprintf("p%da", 3-viewer)

		pos, err := TranslatePosition(own, battle.Singles, viewer)
		require.NoError(t, err)
		assert.Equal(t, battle.Position(1), pos)

		pos, err = TranslatePosition(other, battle.Singles, viewer)
		require.NoError(t, err)
		assert.Equal(t, battle.Position(-1), pos)
	}
}

func TestTranslateDoublesMirrors(t *testing.T) {
	cases := []struct {
		viewer battle.PlayerID
		label  string
		want   battle.Position
	}{
		{1, "p1a", 1}, {1, "p1b", 2}, {1, "p2b", -1}, {1, "p2a", -2},
		{2, "p2a", 1}, {2, "p2b", 2}, {2, "p1b", -1}, {2, "p1a", -2},
	}
	for _, c := range cases {
		pos, err := TranslatePosition(c.label, battle.Doubles, c.viewer)
		require.NoError(t, err, "%s for p%d", c.label, c.viewer)
		assert.Equal(t, c.want, pos, "%s for p%d", c.label, c.viewer)
	}
}

func TestTranslateTriples(t *testing.T) {
	pos, err := TranslatePosition("p2c", battle.Triples, 1)
	require.NoError(t, err)
	assert.Equal(t, battle.Position(-1), pos)

	pos, err = TranslatePosition("p1c", battle.Triples, 2)
	require.NoError(t, err)
	assert.Equal(t, battle.Position(-1), pos)
}

// Every table must be total over its category's labels and must only ever
// produce positions the category considers valid.
func TestTranslateIsTotalAndInRange(t *testing.T) {
	labels := map[battle.Category][]string{
		battle.Doubles: {"p1a", "p1b", "p2a", "p2b"},
		battle.Triples: {"p1a", "p1b", "p1c", "p2a", "p2b", "p2c"},
		battle.Multi:   {"p1a", "p2a", "p3b", "p4b"},
	}
	viewers := map[battle.Category][]battle.PlayerID{
		battle.Doubles: {1, 2},
		battle.Triples: {1, 2},
		battle.Multi:   {1, 2, 3, 4},
	}
	for cat, labelSet := range labels {
		for _, viewer := range viewers[cat] {
			for _, label := range labelSet {
				pos, err := TranslatePosition(label, cat, viewer)
				require.NoError(t, err, "%s %s viewer p%d", cat, label, viewer)
				assert.True(t, cat.ValidPosition(pos),
					"%s %s viewer p%d gave %d", cat, label, viewer, pos)
			}
		}
	}
}

func TestTranslateFreeForAllIsAGap(t *testing.T) {
	_, err := TranslatePosition("p3a", battle.FreeForAll, 1)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestTranslateRejectsUnknownLabels(t *testing.T) {
	_, err := TranslatePosition("p1c", battle.Doubles, 1)
	assert.ErrorIs(t, err, ErrInvalidPosition)
	_, err = TranslatePosition("x2j", battle.Doubles, 1)
	assert.ErrorIs(t, err, ErrInvalidPosition)
	_, err = TranslatePosition("q1", battle.Singles, 1)
	assert.ErrorIs(t, err, ErrInvalidPosition)
}
