package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardOrderingAndPartialPar(t *testing.T) {
	db := testDB(t)
	owner := seedPlayer(t, db, "auth0|owner", "Olive")
	ann := seedPlayer(t, db, "auth0|ann", "ann") // lowercase on purpose
	zed := seedPlayer(t, db, "auth0|zed", "Zed")
	course := seedCourse(t, db, owner, 9) // all par 4

	tournament, err := CreateTournament(db, owner, course.ID, "Open Day", true)
	require.NoError(t, err)

	// Group 1: owner, even par through 3.
	g1, err := CreateGroupRound(db, owner, tournament.ID, GroupRoundInput{})
	require.NoError(t, err)
	for n := 1; n <= 3; n++ {
		submit(t, db, owner, g1.ID, "", n, 4)
	}

	// Group 2: ann and Zed, both one under through different hole counts.
	g2, err := CreateGroupRound(db, ann, tournament.ID, GroupRoundInput{PlayerRefs: []string{"auth0|zed"}})
	require.NoError(t, err)
	submit(t, db, ann, g2.ID, "", 1, 3)
	submit(t, db, ann, g2.ID, "", 2, 4)
	submit(t, db, zed, g2.ID, "", 1, 3)

	rounds, err := GroupRounds(db, tournament.ID)
	require.NoError(t, err)
	loadedCourse, err := LoadCourse(db, course.ID)
	require.NoError(t, err)

	entries := ComputeLeaderboard(loadedCourse, rounds)
	require.Len(t, entries, 3)

	// Both at -1; ann played more holes so she leads. Owner at even trails.
	assert.Equal(t, "ann", entries[0].PlayerName)
	assert.Equal(t, -1, entries[0].ScoreToPar)
	assert.Equal(t, 2, entries[0].HolesCompleted)
	assert.Equal(t, "Zed", entries[1].PlayerName)
	assert.Equal(t, -1, entries[1].ScoreToPar)
	assert.Equal(t, "Olive", entries[2].PlayerName)
	assert.Equal(t, 0, entries[2].ScoreToPar)

	// Par covers only the scored holes.
	assert.Equal(t, 8, entries[0].Par)
	assert.Equal(t, 4, entries[1].Par)
}

func TestLeaderboardCurrentHole(t *testing.T) {
	db := testDB(t)
	owner := seedPlayer(t, db, "auth0|owner", "Olive")
	course := seedCourse(t, db, owner, 9)

	tournament, err := CreateTournament(db, owner, course.ID, "Open Day", true)
	require.NoError(t, err)
	group, err := CreateGroupRound(db, owner, tournament.ID, GroupRoundInput{})
	require.NoError(t, err)

	// Holes played out of order: 1, 2 and 5. The current hole is the lowest
	// unscored one, 3.
	submit(t, db, owner, group.ID, "", 1, 4)
	submit(t, db, owner, group.ID, "", 2, 4)
	submit(t, db, owner, group.ID, "", 5, 4)

	rounds, err := GroupRounds(db, tournament.ID)
	require.NoError(t, err)
	loadedCourse, err := LoadCourse(db, course.ID)
	require.NoError(t, err)

	entries := ComputeLeaderboard(loadedCourse, rounds)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].CurrentHole)
	assert.Equal(t, 3, *entries[0].CurrentHole)

	// All nine in: no current hole.
	for _, n := range []int{3, 4, 6, 7, 8, 9} {
		submit(t, db, owner, group.ID, "", n, 4)
	}
	rounds, err = GroupRounds(db, tournament.ID)
	require.NoError(t, err)
	entries = ComputeLeaderboard(loadedCourse, rounds)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].CurrentHole)
	assert.Equal(t, 9, entries[0].HolesCompleted)
}
