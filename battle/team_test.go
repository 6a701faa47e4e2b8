package battle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTeam() []Monster {
	pikachu := NewMonster()
	pikachu.Species = "Pikachu"
	pikachu.Nickname = "Sparky"
	pikachu.Ability = "Static"
	pikachu.Item = "Light Ball"
	pikachu.Gender = GenderMale
	pikachu.Nature = NatureTimid
	pikachu.Level = 50
	pikachu.Happiness = 255
	pikachu.EV = Stats{SpecialAttack: 252, Speed: 252, HP: 4}
	pikachu.IV = Stats{HP: 31, Attack: 31, Defense: 31, SpecialAttack: 31, SpecialDefense: 31, Speed: 31}
	pikachu.Moves[0] = MoveSlot{ID: "thunderbolt", Name: Unknown, PP: -1, MaxPP: -1}
	pikachu.Moves[1] = MoveSlot{ID: "surf", Name: Unknown, PP: -1, MaxPP: -1}

	ditto := NewMonster()
	ditto.Species = "Ditto"
	ditto.Ability = "Imposter"
	ditto.Item = "Choice Scarf"
	ditto.Nature = NatureSerious
	ditto.Level = 100
	ditto.Happiness = 160
	ditto.Ball = "cherishball"
	ditto.Shiny = true
	ditto.EV = Stats{}
	ditto.IV = Stats{HP: 31, Attack: 31, Defense: 31, SpecialAttack: 31, SpecialDefense: 31, Speed: 31}
	ditto.Moves[0] = MoveSlot{ID: "transform", Name: Unknown, PP: -1, MaxPP: -1}

	return []Monster{pikachu, ditto}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	team := sampleTeam()
	packed, err := PackTeam(team)
	require.NoError(t, err)
	assert.Contains(t, packed, "]")
	assert.Contains(t, packed, "Sparky|Pikachu")

	back, err := UnpackTeam(packed)
	require.NoError(t, err)
	require.Len(t, back, 2)

	assert.Equal(t, "Pikachu", back[0].Species)
	assert.Equal(t, "Sparky", back[0].Nickname)
	assert.Equal(t, "Static", back[0].Ability)
	assert.Equal(t, NatureTimid, back[0].Nature)
	assert.Equal(t, 50, back[0].Level)
	assert.Equal(t, 255, back[0].Happiness)
	assert.Equal(t, 252, back[0].EV.Speed)
	assert.Equal(t, "thunderbolt", back[0].Moves[0].ID)
	assert.Equal(t, "surf", back[0].Moves[1].ID)
	assert.False(t, back[0].Moves[2].Known())

	assert.Equal(t, "Ditto", back[1].Species)
	assert.Empty(t, back[1].Nickname)
	assert.True(t, back[1].Shiny)
	assert.Equal(t, 160, back[1].Happiness)
	assert.Equal(t, "cherishball", back[1].Ball)
	assert.Equal(t, TeamIndex(2), back[1].TeamIndex)
}

func TestUnpackTeamDefaults(t *testing.T) {
	// A nickname-only entry with empty stat blocks gets the packed-format
	// defaults: level 100, happiness 255, 31 IVs, 0 EVs.
	team, err := UnpackTeam("Ditto||choicescarf|Imposter|transform||||||| ")
	require.Error(t, err) // trailing space makes the tail unparseable

	team, err = UnpackTeam("Ditto||choicescarf|Imposter|transform|||||||")
	require.NoError(t, err)
	require.Len(t, team, 1)
	assert.Equal(t, "Ditto", team[0].Species)
	assert.Equal(t, 100, team[0].Level)
	assert.Equal(t, 255, team[0].Happiness)
	assert.Equal(t, 31, team[0].IV.Speed)
	assert.Zero(t, team[0].EV.Speed)
	assert.Equal(t, NatureNone, team[0].Nature)

	empty, err := UnpackTeam("   ")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestUnpackTeamRejectsMalformedEntries(t *testing.T) {
	_, err := UnpackTeam("Pikachu|too|few|fields")
	assert.Error(t, err)
	_, err = UnpackTeam("Ditto||||transform||x,0,0,0,0,0|||||")
	assert.Error(t, err)
	_, err = UnpackTeam("Ditto||||transform||||||abc|")
	assert.Error(t, err)
}

func TestTeamJSONRoundTrip(t *testing.T) {
	team := sampleTeam()
	raw, err := TeamToJSON(8, team)
	require.NoError(t, err)

	back, err := TeamFromJSON(raw)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, "Pikachu", back[0].Species)
	assert.Equal(t, "Sparky", back[0].Nickname)
	assert.Equal(t, GenderMale, back[0].Gender)
	assert.Equal(t, NatureTimid, back[0].Nature)
	assert.Equal(t, 252, back[0].EV.SpecialAttack)
	assert.Equal(t, "cherishball", back[1].Ball)
}

func TestTeamToJSONGenerationGates(t *testing.T) {
	team := sampleTeam()

	// In Generation I there are no abilities or items, so unknowns there do
	// not block serialization.
	team[0].Ability = Unknown
	team[0].Item = Unknown
	team[0].Nature = NatureUnknown
	_, err := TeamToJSON(1, team)
	require.NoError(t, err)

	_, err = TeamToJSON(2, team)
	assert.Error(t, err)

	team[0].Ability = "Static"
	team[0].Item = ""
	_, err = TeamToJSON(2, team)
	require.NoError(t, err)

	// Natures only exist from Generation III on.
	_, err = TeamToJSON(3, team)
	assert.Error(t, err)
}

func TestTeamToJSONRejectsUnknowns(t *testing.T) {
	team := sampleTeam()
	team[0].Species = Unknown
	_, err := TeamToJSON(8, team)
	assert.Error(t, err)

	team = sampleTeam()
	team[0].Level = -1
	_, err = TeamToJSON(8, team)
	assert.Error(t, err)

	team = sampleTeam()
	team[0].Moves[0] = MoveSlot{ID: Unknown, Name: "Thunderbolt", PP: 10, MaxPP: 15}
	_, err = TeamToJSON(8, team)
	assert.Error(t, err)
}
