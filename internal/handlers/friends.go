// Friends routes and the achievement activity feed.
package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/engine"
	"github.com/scorecaddy/scorecaddy/internal/middleware"
	"github.com/scorecaddy/scorecaddy/internal/models"
)

// FriendRequestRequest is the JSON body for POST /api/v1/friends.
type FriendRequestRequest struct {
	Player string `json:"player"` // external id, email, or username
}

// FriendRequestResponse is one pending friend request.
type FriendRequestResponse struct {
	ID        string         `json:"id"`
	Requester PlayerResponse `json:"requester"`
	Recipient PlayerResponse `json:"recipient"`
	CreatedAt string         `json:"created_at"`
}

// ActivityEventResponse is one feed entry. Hole-level achievements carry the
// hole number; personal bests are round-level and report hole_number 0 with
// round totals in strokes/par.
type ActivityEventResponse struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	RoundID    string `json:"round_id"`
	CourseName string `json:"course_name"`
	HoleNumber int    `json:"hole_number"`
	Strokes    int    `json:"strokes"`
	Par        int    `json:"par"`
	CreatedAt  string `json:"created_at"`
}

func friendRequestResponse(r *models.FriendRequest) FriendRequestResponse {
	return FriendRequestResponse{
		ID:        r.ID.String(),
		Requester: playerResponse(&r.Requester),
		Recipient: playerResponse(&r.Recipient),
		CreatedAt: isoTime(r.CreatedAt),
	}
}

// SendFriendRequest returns a handler for POST /api/v1/friends.
// When the target already has a request pending toward the caller, the two
// requests collapse into an immediate friendship and the response says so.
func SendFriendRequest(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)

		var req FriendRequestRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request body")
		}

		var created *models.FriendRequest
		var accepted bool
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			created, accepted, err = engine.SendFriendRequest(tx, caller, req.Player)
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		if accepted {
			return c.JSON(fiber.Map{"status": "accepted"})
		}
		return c.Status(fiber.StatusCreated).JSON(friendRequestResponse(created))
	}
}

// GetFriendRequests returns a handler for GET /api/v1/friends/requests:
// the caller's pending requests, incoming and outgoing.
func GetFriendRequests(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)

		incoming, err := engine.ListIncomingFriendRequests(db, caller)
		if err != nil {
			return fail(c, err)
		}
		outgoing, err := engine.ListOutgoingFriendRequests(db, caller)
		if err != nil {
			return fail(c, err)
		}

		in := make([]FriendRequestResponse, 0, len(incoming))
		for i := range incoming {
			in = append(in, friendRequestResponse(&incoming[i]))
		}
		out := make([]FriendRequestResponse, 0, len(outgoing))
		for i := range outgoing {
			out = append(out, friendRequestResponse(&outgoing[i]))
		}
		return c.JSON(fiber.Map{"incoming": in, "outgoing": out})
	}
}

// AcceptFriendRequest returns a handler for
// POST /api/v1/friends/requests/:id/accept (recipient only).
func AcceptFriendRequest(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			return engine.AcceptFriendRequest(tx, caller, id)
		})
		if err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DeclineFriendRequest returns a handler for
// POST /api/v1/friends/requests/:id/decline. The requester may hit this too,
// to withdraw.
func DeclineFriendRequest(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			return engine.DeclineFriendRequest(tx, caller, id)
		})
		if err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetFriends returns a handler for GET /api/v1/friends.
func GetFriends(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		friends, err := engine.ListFriends(db, caller)
		if err != nil {
			return fail(c, err)
		}
		resp := make([]PlayerResponse, 0, len(friends))
		for i := range friends {
			resp = append(resp, playerResponse(&friends[i]))
		}
		return c.JSON(resp)
	}
}

// RemoveFriend returns a handler for DELETE /api/v1/friends/:ref.
func RemoveFriend(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		err := db.Transaction(func(tx *gorm.DB) error {
			return engine.RemoveFriend(tx, caller, refParam(c, "ref"))
		})
		if err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetActivityFeed returns a handler for GET /api/v1/friends/activity:
// the newest achievements of the caller and their friends. ?limit defaults
// to 20 and is clamped to 1..100.
func GetActivityFeed(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)

		limit := 20
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return respondError(c, fiber.StatusBadRequest, "invalid limit")
			}
			limit = n
		}

		events, err := engine.ActivityFeed(db, caller, limit)
		if err != nil {
			return fail(c, err)
		}
		resp := make([]ActivityEventResponse, 0, len(events))
		for _, e := range events {
			resp = append(resp, ActivityEventResponse{
				ID:         e.ID.String(),
				Kind:       string(e.Kind),
				PlayerID:   e.Player.ExternalID,
				PlayerName: e.Player.Label(),
				RoundID:    e.RoundID.String(),
				CourseName: e.Round.Course.Name,
				HoleNumber: e.HoleNumber,
				Strokes:    e.Strokes,
				Par:        e.Par,
				CreatedAt:  isoTime(e.CreatedAt),
			})
		}
		return c.JSON(resp)
	}
}
