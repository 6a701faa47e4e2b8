package lexicon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	table, err := New([]Entry{
		{Key: "thunderbolt", Value: 1},
		{Key: "thunder", Value: 2},
		{Key: "swordsdance", Value: 3},
		{Key: "toxic", Value: 4},
	})
	require.NoError(t, err)
	return table
}

func TestLookupFoldsCase(t *testing.T) {
	table := testTable(t)
	for _, candidate := range []string{"thunderbolt", "Thunderbolt", "THUNDERBOLT", "ThUnDeRbOlT"} {
		v, err := table.Lookup(candidate, false)
		require.NoError(t, err, candidate)
		assert.Equal(t, 1, v, candidate)
	}
}

func TestLookupPrefixIsNotAMatch(t *testing.T) {
	table := testTable(t)

	// "thunder" and "thunderbolt" are distinct entries; neither shadows
	// the other.
	v, err := table.Lookup("thunder", false)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = table.Lookup("thunderbol", false)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = table.Lookup("thunderboltt", false)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = table.Lookup("tox", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupSkipsPunctuation(t *testing.T) {
	table := testTable(t)

	v, err := table.Lookup("Swords Dance", true)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = table.Lookup("swords-dance", true)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = table.Lookup("swords_dance", true)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = table.Lookup("Swords Dance", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupRejectsNonASCII(t *testing.T) {
	table := testTable(t)
	_, err := table.Lookup("thundér", false)
	assert.Error(t, err)
	_, err = table.Lookup("", false)
	assert.Error(t, err)
}

func TestNewRejectsUnrepresentableKeys(t *testing.T) {
	_, err := New([]Entry{{Key: "caf\xc3\xa9", Value: 1}})
	assert.Error(t, err)
}
