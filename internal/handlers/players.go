// Player profile routes. Players are created lazily by the auth middleware;
// these routes only read and update the profile, never create.
package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/engine"
	"github.com/scorecaddy/scorecaddy/internal/middleware"
	"github.com/scorecaddy/scorecaddy/internal/models"
)

// PlayerResponse is the public shape of a player. ID is the external identity
// (the auth subject), which is what clients pass around as a player reference —
// internal UUIDs never leave the API.
type PlayerResponse struct {
	ID       string   `json:"id"`
	Email    *string  `json:"email"`
	Username *string  `json:"username"`
	Name     *string  `json:"name"`
	Handicap *float64 `json:"handicap"`
	Gender   *string  `json:"gender"`
	IsGuest  bool     `json:"is_guest"`
}

// PlayerStatsResponse adds the aggregate round stats shown on a profile.
type PlayerStatsResponse struct {
	PlayerResponse
	RoundsCount int      `json:"rounds_count"`
	AvgStrokes  *float64 `json:"avg_strokes"` // 18-hole equivalent; null with no completed rounds
}

// UpdateMeRequest is the JSON body for PATCH /api/v1/players/me.
// Absent fields are left untouched; present fields overwrite.
type UpdateMeRequest struct {
	Username *string  `json:"username"`
	Name     *string  `json:"name"`
	Email    *string  `json:"email"`
	Handicap *float64 `json:"handicap"`
	Gender   *string  `json:"gender"`
}

func playerResponse(p *models.Player) PlayerResponse {
	return PlayerResponse{
		ID:       p.ExternalID,
		Email:    p.Email,
		Username: p.Username,
		Name:     p.Name,
		Handicap: p.Handicap,
		Gender:   p.Gender,
		IsGuest:  p.IsGuest,
	}
}

// GetMe returns a handler for GET /api/v1/players/me: the caller's profile
// plus their completed-round stats.
func GetMe(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		player := middleware.CurrentPlayer(c)
		stats, err := engine.ComputeStats(db, player.ID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(PlayerStatsResponse{
			PlayerResponse: playerResponse(player),
			RoundsCount:    stats.RoundsCount,
			AvgStrokes:     stats.AvgStrokes,
		})
	}
}

// UpdateMe returns a handler for PATCH /api/v1/players/me.
// A username or email collision surfaces as a 409 via the unique indexes.
func UpdateMe(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		player := middleware.CurrentPlayer(c)

		var req UpdateMeRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request body")
		}

		updates := map[string]interface{}{}
		if req.Username != nil {
			username := strings.TrimSpace(*req.Username)
			if username == "" {
				return respondError(c, fiber.StatusBadRequest, "username cannot be empty")
			}
			if strings.Contains(username, "@") {
				// "@" would make the username ambiguous with an email in
				// player references.
				return respondError(c, fiber.StatusBadRequest, "username cannot contain @")
			}
			updates["username"] = username
			player.Username = &username
		}
		if req.Name != nil {
			updates["name"] = req.Name
			player.Name = req.Name
		}
		if req.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*req.Email))
			if !strings.Contains(email, "@") {
				return respondError(c, fiber.StatusBadRequest, "invalid email")
			}
			updates["email"] = email
			player.Email = &email
		}
		if req.Handicap != nil {
			updates["handicap"] = req.Handicap
			player.Handicap = req.Handicap
		}
		if req.Gender != nil {
			updates["gender"] = req.Gender
			player.Gender = req.Gender
		}

		if len(updates) > 0 {
			if err := db.Model(player).Updates(updates).Error; err != nil {
				return fail(c, err)
			}
		}

		stats, err := engine.ComputeStats(db, player.ID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(PlayerStatsResponse{
			PlayerResponse: playerResponse(player),
			RoundsCount:    stats.RoundsCount,
			AvgStrokes:     stats.AvgStrokes,
		})
	}
}

// GetPlayerStats returns a handler for GET /api/v1/players/:ref/stats.
// The ref is resolved like everywhere else: external id, email, or username.
func GetPlayerStats(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		target, err := engine.ResolveRef(db, refParam(c, "ref"))
		if err != nil {
			return fail(c, err)
		}
		stats, err := engine.ComputeStats(db, target.ID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(PlayerStatsResponse{
			PlayerResponse: playerResponse(target),
			RoundsCount:    stats.RoundsCount,
			AvgStrokes:     stats.AvgStrokes,
		})
	}
}
