package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/config"
	"github.com/scorecaddy/scorecaddy/internal/middleware"
	"github.com/scorecaddy/scorecaddy/internal/models"
)

// testApp builds the API against an in-memory database with the dev identity
// fallback active, mirroring the route layout of cmd/server.
func testApp(t *testing.T) (*fiber.App, *gorm.DB) {
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

	cfg := &config.Config{Port: "0", Env: "test"}
	app := fiber.New()
	app.Get("/health", HealthCheck)
	api := app.Group("/api/v1", middleware.Auth(cfg, db))

	api.Get("/players/me", GetMe(db))
	api.Patch("/players/me", UpdateMe(db))
	api.Get("/players/:ref/stats", GetPlayerStats(db))

	api.Post("/courses", CreateCourse(db))
	api.Get("/courses", GetCourses(db))
	api.Get("/courses/:id", GetCourse(db))
	api.Put("/courses/:id", UpdateCourse(db))
	api.Delete("/courses/:id", ArchiveCourse(db))

	api.Post("/rounds", CreateRound(db))
	api.Get("/rounds", GetRounds(db))
	api.Get("/rounds/:id", GetRound(db))
	api.Delete("/rounds/:id", DeleteRound(db))
	api.Post("/rounds/:id/scores", SubmitScore(db))
	api.Post("/rounds/:id/participants", AddPlayers(db))

	api.Get("/tournaments/invites", GetInvites(db))
	api.Post("/tournaments/invites/:id/accept", AcceptInvite(db))
	api.Post("/tournaments/invites/:id/decline", DeclineInvite(db))
	api.Post("/tournaments", CreateTournament(db))
	api.Get("/tournaments", GetTournaments(db))
	api.Get("/tournaments/:id", GetTournament(db))
	api.Patch("/tournaments/:id", UpdateTournament(db))
	api.Post("/tournaments/:id/rounds", CreateGroupRound(db))
	api.Post("/tournaments/:id/rounds/:roundID/join", JoinGroupRound(db))
	api.Post("/tournaments/:id/pause", PauseTournament(db))
	api.Post("/tournaments/:id/resume", ResumeTournament(db))
	api.Post("/tournaments/:id/finish", FinishTournament(db))
	api.Post("/tournaments/:id/invites", InvitePlayer(db))

	api.Post("/friends", SendFriendRequest(db))
	api.Get("/friends/requests", GetFriendRequests(db))
	api.Post("/friends/requests/:id/accept", AcceptFriendRequest(db))
	api.Post("/friends/requests/:id/decline", DeclineFriendRequest(db))
	api.Get("/friends", GetFriends(db))
	api.Get("/friends/activity", GetActivityFeed(db))
	api.Delete("/friends/:ref", RemoveFriend(db))

	return app, db
}

// do performs a request as the given dev-mode user and decodes the JSON body
// into out (when non-nil).
func do(t *testing.T, app *fiber.App, method, path, user string, body, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func nineHolePayload(name string) fiber.Map {
	holes := make([]fiber.Map, 0, 9)
	for n := 1; n <= 9; n++ {
		holes = append(holes, fiber.Map{"number": n, "par": 4})
	}
	return fiber.Map{"name": name, "holes": holes}
}

func TestHealthEndpoint(t *testing.T) {
	app, _ := testApp(t)
	var body map[string]string
	status := do(t, app, http.MethodGet, "/health", "", nil, &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthRequired(t *testing.T) {
	app, _ := testApp(t)
	status := do(t, app, http.MethodGet, "/api/v1/players/me", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPlayerProfileFlow(t *testing.T) {
	app, _ := testApp(t)

	// First request lazily creates the player.
	var me PlayerStatsResponse
	status := do(t, app, http.MethodGet, "/api/v1/players/me", "auth0|alice", nil, &me)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "auth0|alice", me.ID)
	assert.Zero(t, me.RoundsCount)

	status = do(t, app, http.MethodPatch, "/api/v1/players/me", "auth0|alice",
		fiber.Map{"username": "aliceg", "name": "Alice", "handicap": 12.4}, &me)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, me.Username)
	assert.Equal(t, "aliceg", *me.Username)

	// Username collision is a conflict.
	do(t, app, http.MethodGet, "/api/v1/players/me", "auth0|bob", nil, nil)
	status = do(t, app, http.MethodPatch, "/api/v1/players/me", "auth0|bob",
		fiber.Map{"username": "aliceg"}, nil)
	assert.Equal(t, http.StatusConflict, status)

	// Stats by reference.
	var stats PlayerStatsResponse
	status = do(t, app, http.MethodGet, "/api/v1/players/aliceg/stats", "auth0|bob", nil, &stats)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "auth0|alice", stats.ID)
}

func TestCourseEndpoints(t *testing.T) {
	app, _ := testApp(t)

	var course CourseResponse
	status := do(t, app, http.MethodPost, "/api/v1/courses", "auth0|alice",
		nineHolePayload("Meadow Pines"), &course)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 36, course.TotalPar)
	assert.Len(t, course.Holes, 9)

	// Bad layouts are rejected.
	status = do(t, app, http.MethodPost, "/api/v1/courses", "auth0|alice",
		fiber.Map{"name": "Broken", "holes": []fiber.Map{{"number": 1, "par": 4}}}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var courses []CourseResponse
	status = do(t, app, http.MethodGet, "/api/v1/courses", "auth0|bob", nil, &courses)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, courses, 1)

	// Only the owner may update or archive.
	status = do(t, app, http.MethodPut, "/api/v1/courses/"+course.ID, "auth0|bob",
		nineHolePayload("Taken Over"), nil)
	assert.Equal(t, http.StatusForbidden, status)
	status = do(t, app, http.MethodDelete, "/api/v1/courses/"+course.ID, "auth0|alice", nil, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status = do(t, app, http.MethodGet, "/api/v1/courses/"+course.ID, "auth0|alice", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRoundScoringEndpoints(t *testing.T) {
	app, _ := testApp(t)

	var course CourseResponse
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/api/v1/courses",
		"auth0|alice", nineHolePayload("Meadow Pines"), &course))

	// Bob exists so Alice can invite him.
	do(t, app, http.MethodGet, "/api/v1/players/me", "auth0|bob", nil, nil)

	var round RoundResponse
	status := do(t, app, http.MethodPost, "/api/v1/rounds", "auth0|alice", fiber.Map{
		"course_id": course.ID,
		"players":   []string{"auth0|bob"},
	}, &round)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, round.Players, 2)
	assert.Equal(t, "auth0|alice", round.OwnerID)

	// Self-entry.
	status = do(t, app, http.MethodPost, "/api/v1/rounds/"+round.ID+"/scores", "auth0|bob",
		fiber.Map{"hole_number": 1, "strokes": 5}, &round)
	require.Equal(t, http.StatusOK, status)

	// Bob cannot score for Alice.
	status = do(t, app, http.MethodPost, "/api/v1/rounds/"+round.ID+"/scores", "auth0|bob",
		fiber.Map{"hole_number": 1, "strokes": 4, "player_id": "auth0|alice"}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Invalid hole is a 400.
	status = do(t, app, http.MethodPost, "/api/v1/rounds/"+round.ID+"/scores", "auth0|alice",
		fiber.Map{"hole_number": 42, "strokes": 4}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// Complete the round: the response reflects completion and totals.
	for n := 1; n <= 9; n++ {
		require.Equal(t, http.StatusOK, do(t, app, http.MethodPost,
			"/api/v1/rounds/"+round.ID+"/scores", "auth0|alice",
			fiber.Map{"hole_number": n, "strokes": 4}, &round))
		require.Equal(t, http.StatusOK, do(t, app, http.MethodPost,
			"/api/v1/rounds/"+round.ID+"/scores", "auth0|alice",
			fiber.Map{"hole_number": n, "strokes": 5, "player_id": "auth0|bob"}, &round))
	}
	require.NotNil(t, round.CompletedAt)

	// Resubmitting after completion is an idempotent overwrite, not an error.
	completedAt := round.CompletedAt
	require.Equal(t, http.StatusOK, do(t, app, http.MethodPost,
		"/api/v1/rounds/"+round.ID+"/scores", "auth0|alice",
		fiber.Map{"hole_number": 9, "strokes": 4}, &round))
	assert.Equal(t, completedAt, round.CompletedAt)

	// A second creation attempt while completed is fine; deleting it is not.
	status = do(t, app, http.MethodDelete, "/api/v1/rounds/"+round.ID, "auth0|alice", nil, nil)
	assert.Equal(t, http.StatusConflict, status)

	// Alice's stats now show the completed round.
	var me PlayerStatsResponse
	require.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/api/v1/players/me",
		"auth0|alice", nil, &me))
	assert.Equal(t, 1, me.RoundsCount)
}

func TestRoundVisibility(t *testing.T) {
	app, _ := testApp(t)

	var course CourseResponse
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/api/v1/courses",
		"auth0|alice", nineHolePayload("Meadow Pines"), &course))

	var round RoundResponse
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/api/v1/rounds",
		"auth0|alice", fiber.Map{"course_id": course.ID}, &round))

	// Roster members see the round; strangers get a 404, not a 403.
	require.Equal(t, http.StatusOK, do(t, app, http.MethodGet,
		"/api/v1/rounds/"+round.ID, "auth0|alice", nil, &round))
	assert.Equal(t, http.StatusNotFound, do(t, app, http.MethodGet,
		"/api/v1/rounds/"+round.ID, "auth0|mallory", nil, nil))

	// Group rounds of a public tournament are visible to any signed-in player.
	var tournament TournamentResponse
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/api/v1/tournaments",
		"auth0|bob", fiber.Map{
			"name":      "Open Day",
			"course_id": course.ID,
			"is_public": true,
		}, &tournament))
	var group RoundResponse
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost,
		"/api/v1/tournaments/"+tournament.ID+"/rounds", "auth0|bob", fiber.Map{}, &group))
	assert.Equal(t, http.StatusOK, do(t, app, http.MethodGet,
		"/api/v1/rounds/"+group.ID, "auth0|mallory", nil, nil))
}

func TestTournamentEndpoints(t *testing.T) {
	app, _ := testApp(t)

	var course CourseResponse
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/api/v1/courses",
		"auth0|owner", nineHolePayload("Meadow Pines"), &course))

	var tournament TournamentResponse
	status := do(t, app, http.MethodPost, "/api/v1/tournaments", "auth0|owner", fiber.Map{
		"name":      "Open Day",
		"course_id": course.ID,
		"is_public": true,
	}, &tournament)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "active", tournament.Status)

	var group RoundResponse
	status = do(t, app, http.MethodPost, "/api/v1/tournaments/"+tournament.ID+"/rounds",
		"auth0|owner", fiber.Map{}, &group)
	require.Equal(t, http.StatusCreated, status)

	status = do(t, app, http.MethodPost, "/api/v1/tournaments/"+tournament.ID+"/rounds/"+group.ID+"/join",
		"auth0|joiner", nil, &group)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, group.Players, 2)

	// Score, then pause: scoring blocks with the message.
	require.Equal(t, http.StatusOK, do(t, app, http.MethodPost,
		"/api/v1/rounds/"+group.ID+"/scores", "auth0|owner",
		fiber.Map{"hole_number": 1, "strokes": 3}, nil))

	status = do(t, app, http.MethodPost, "/api/v1/tournaments/"+tournament.ID+"/pause",
		"auth0|owner", fiber.Map{"message": "Rain delay"}, &tournament)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "paused", tournament.Status)

	var errBody map[string]string
	status = do(t, app, http.MethodPost, "/api/v1/rounds/"+group.ID+"/scores", "auth0|joiner",
		fiber.Map{"hole_number": 1, "strokes": 4}, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Rain delay", errBody["error"])

	require.Equal(t, http.StatusOK, do(t, app, http.MethodPost,
		"/api/v1/tournaments/"+tournament.ID+"/resume", "auth0|owner", nil, &tournament))

	// Detail includes the leaderboard; the owner's birdie leads.
	var detail TournamentDetailResponse
	require.Equal(t, http.StatusOK, do(t, app, http.MethodGet,
		"/api/v1/tournaments/"+tournament.ID, "auth0|joiner", nil, &detail))
	require.Len(t, detail.Leaderboard, 2)
	assert.Equal(t, "auth0|owner", detail.Leaderboard[0].PlayerID)
	assert.Equal(t, -1, detail.Leaderboard[0].ScoreToPar)

	// Finish is terminal and force-completes the group.
	require.Equal(t, http.StatusOK, do(t, app, http.MethodPost,
		"/api/v1/tournaments/"+tournament.ID+"/finish", "auth0|owner", nil, &tournament))
	assert.Equal(t, "finished", tournament.Status)
	status = do(t, app, http.MethodPost, "/api/v1/tournaments/"+tournament.ID+"/finish",
		"auth0|owner", nil, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestTournamentInviteEndpoints(t *testing.T) {
	app, _ := testApp(t)

	var course CourseResponse
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/api/v1/courses",
		"auth0|owner", nineHolePayload("Meadow Pines"), &course))
	do(t, app, http.MethodGet, "/api/v1/players/me", "auth0|guest", nil, nil)

	var tournament TournamentResponse
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/api/v1/tournaments",
		"auth0|owner", fiber.Map{"name": "Club Cup", "course_id": course.ID}, &tournament))

	// Private: outsiders get a 403 until invited.
	status := do(t, app, http.MethodGet, "/api/v1/tournaments/"+tournament.ID, "auth0|guest", nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost,
		"/api/v1/tournaments/"+tournament.ID+"/invites", "auth0|owner",
		fiber.Map{"player": "auth0|guest"}, nil))

	var invites []InviteResponse
	require.Equal(t, http.StatusOK, do(t, app, http.MethodGet,
		"/api/v1/tournaments/invites", "auth0|guest", nil, &invites))
	require.Len(t, invites, 1)
	assert.Equal(t, "Club Cup", invites[0].TournamentName)

	require.Equal(t, http.StatusNoContent, do(t, app, http.MethodPost,
		"/api/v1/tournaments/invites/"+invites[0].ID+"/accept", "auth0|guest", nil, nil))
	status = do(t, app, http.MethodGet, "/api/v1/tournaments/"+tournament.ID, "auth0|guest", nil, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestFriendsAndActivityEndpoints(t *testing.T) {
	app, _ := testApp(t)

	var course CourseResponse
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/api/v1/courses",
		"auth0|bob", nineHolePayload("Meadow Pines"), &course))
	do(t, app, http.MethodGet, "/api/v1/players/me", "auth0|alice", nil, nil)

	// Alice asks, Bob accepts.
	var req FriendRequestResponse
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/api/v1/friends",
		"auth0|alice", fiber.Map{"player": "auth0|bob"}, &req))
	require.Equal(t, http.StatusNoContent, do(t, app, http.MethodPost,
		"/api/v1/friends/requests/"+req.ID+"/accept", "auth0|bob", nil, nil))

	var friends []PlayerResponse
	require.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/api/v1/friends",
		"auth0|alice", nil, &friends))
	require.Len(t, friends, 1)

	// Bob birdies; Alice's feed shows it.
	var round RoundResponse
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/api/v1/rounds",
		"auth0|bob", fiber.Map{"course_id": course.ID}, &round))
	require.Equal(t, http.StatusOK, do(t, app, http.MethodPost,
		"/api/v1/rounds/"+round.ID+"/scores", "auth0|bob",
		fiber.Map{"hole_number": 1, "strokes": 3}, nil))

	var feed []ActivityEventResponse
	require.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/api/v1/friends/activity",
		"auth0|alice", nil, &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, "birdie", feed[0].Kind)
	assert.Equal(t, "auth0|bob", feed[0].PlayerID)
	assert.Equal(t, "Meadow Pines", feed[0].CourseName)

	status := do(t, app, http.MethodGet, "/api/v1/friends/activity?limit=abc", "auth0|alice", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	require.Equal(t, http.StatusNoContent, do(t, app, http.MethodDelete,
		"/api/v1/friends/auth0%7Cbob", "auth0|alice", nil, nil))
}
