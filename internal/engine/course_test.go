package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nineHoles() []HoleInput {
	var holes []HoleInput
	for n := 1; n <= 9; n++ {
		holes = append(holes, HoleInput{Number: n, Par: 4})
	}
	return holes
}

func TestCourseValidation(t *testing.T) {
	db := testDB(t)
	alice := seedPlayer(t, db, "auth0|alice", "Alice")

	badPar := nineHoles()
	badPar[3].Par = 11

	dupNumbers := nineHoles()
	dupNumbers[8].Number = 1

	badHcp := nineHoles()
	badHcp[0].Hcp = intPtr(10) // 9-hole course, hcp must be <= 9

	shortTee := TeeInput{TeeName: "Red", HoleDistances: []TeeDistanceInput{{HoleNumber: 1, Distance: 250}}}

	cases := []struct {
		name string
		in   CourseInput
	}{
		{"empty name", CourseInput{Name: " ", Holes: nineHoles()}},
		{"wrong hole count", CourseInput{Name: "Short", Holes: nineHoles()[:5]}},
		{"par out of range", CourseInput{Name: "Weird", Holes: badPar}},
		{"duplicate hole numbers", CourseInput{Name: "Dup", Holes: dupNumbers}},
		{"hcp beyond hole count", CourseInput{Name: "Hcp", Holes: badHcp}},
		{"tee missing distances", CourseInput{Name: "Tees", Holes: nineHoles(), Tees: []TeeInput{shortTee}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateCourse(db, alice, tc.in)
			require.Error(t, err)
			assert.Equal(t, KindInvalid, KindOf(err))
		})
	}
}

func TestUpdateCourseReconcilesTees(t *testing.T) {
	db := testDB(t)
	alice := seedPlayer(t, db, "auth0|alice", "Alice")
	bob := seedPlayer(t, db, "auth0|bob", "Bob")

	in := CourseInput{Name: "Reconcile", Holes: nineHoles()}
	yellow := TeeInput{TeeName: "Yellow"}
	red := TeeInput{TeeName: "Red"}
	for n := 1; n <= 9; n++ {
		yellow.HoleDistances = append(yellow.HoleDistances, TeeDistanceInput{HoleNumber: n, Distance: 300})
		red.HoleDistances = append(red.HoleDistances, TeeDistanceInput{HoleNumber: n, Distance: 250})
	}
	in.Tees = []TeeInput{yellow, red}

	course, err := CreateCourse(db, alice, in)
	require.NoError(t, err)
	require.Len(t, course.Tees, 2)

	// Only the owner updates.
	_, err = UpdateCourse(db, bob, course.ID, in)
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))

	// Drop Red, keep Yellow by name with new distances.
	yellow.HoleDistances[0].Distance = 320
	updated, err := UpdateCourse(db, alice, course.ID, CourseInput{
		Name:  "Reconciled",
		Holes: nineHoles(),
		Tees:  []TeeInput{yellow},
	})
	require.NoError(t, err)
	assert.Equal(t, "Reconciled", updated.Name)
	require.Len(t, updated.Tees, 1)
	assert.Equal(t, "Yellow", updated.Tees[0].TeeName)

	var yellowID = updated.Tees[0].ID

	// A tee referenced by a round cannot be dropped.
	round, err := CreateRound(db, alice, CreateRoundInput{CourseID: course.ID, TeeID: &yellowID})
	require.NoError(t, err)
	_, err = UpdateCourse(db, alice, course.ID, CourseInput{Name: "Bare", Holes: nineHoles()})
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
	require.NoError(t, DeleteRound(db, alice, round.ID))
}

func TestArchiveCourse(t *testing.T) {
	db := testDB(t)
	alice := seedPlayer(t, db, "auth0|alice", "Alice")
	course := seedCourse(t, db, alice, 9)

	// Archiving is blocked while a round is in progress.
	round, err := CreateRound(db, alice, CreateRoundInput{CourseID: course.ID})
	require.NoError(t, err)
	err = ArchiveCourse(db, alice, course.ID)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	// Completed rounds don't block.
	for n := 1; n <= 9; n++ {
		submit(t, db, alice, round.ID, "", n, 4)
	}
	require.NoError(t, ArchiveCourse(db, alice, course.ID))

	// Archived courses disappear from loads and listings.
	_, err = LoadCourse(db, course.ID)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	courses, err := ListCourses(db)
	require.NoError(t, err)
	assert.Empty(t, courses)

	// And can't host new rounds.
	_, err = CreateRound(db, alice, CreateRoundInput{CourseID: course.ID})
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}
