package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/models"
)

// testDB opens an in-memory SQLite database migrated to the full schema.
// Each test gets its own named shared-cache database so the pool's connections
// all see the same data.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Player{},
		&models.Course{},
		&models.Hole{},
		&models.CourseTee{},
		&models.TeeHoleDistance{},
		&models.Tournament{},
		&models.Round{},
		&models.RoundParticipant{},
		&models.HoleScore{},
		&models.TournamentMember{},
		&models.TournamentInvite{},
		&models.ActivityEvent{},
		&models.Friend{},
		&models.FriendRequest{},
	))
	return db
}

func seedPlayer(t *testing.T, db *gorm.DB, externalID, name string) *models.Player {
	t.Helper()
	p, err := EnsurePlayer(db, externalID)
	require.NoError(t, err)
	require.NoError(t, db.Model(p).Update("name", name).Error)
	p.Name = &name
	return p
}

// seedCourse creates a course with holeCount par-4 holes (total par 4*holeCount).
func seedCourse(t *testing.T, db *gorm.DB, owner *models.Player, holeCount int) *models.Course {
	t.Helper()
	in := CourseInput{Name: fmt.Sprintf("Course %s", t.Name())}
	for n := 1; n <= holeCount; n++ {
		in.Holes = append(in.Holes, HoleInput{Number: n, Par: 4})
	}
	course, err := CreateCourse(db, owner, in)
	require.NoError(t, err)
	return course
}

// submit is shorthand for a plain (non-stats) score entry. ref is empty for
// self-entry.
func submit(t *testing.T, db *gorm.DB, caller *models.Player, roundID uuid.UUID, ref string, hole, strokes int) {
	t.Helper()
	_, err := SubmitScore(db, caller, roundID, SubmitScoreInput{
		HoleNumber: hole,
		Strokes:    strokes,
		PlayerRef:  ref,
	})
	require.NoError(t, err)
}
