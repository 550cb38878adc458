// Entry point for the Scorecaddy API server. The cmd/ folder holds executable
// binaries; internal/ holds the packages they wire together.
package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"

	"github.com/scorecaddy/scorecaddy/internal/config"
	"github.com/scorecaddy/scorecaddy/internal/database"
	"github.com/scorecaddy/scorecaddy/internal/handlers"
	"github.com/scorecaddy/scorecaddy/internal/middleware"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}

	// Running pending migrations on startup keeps the schema in sync with the
	// binary being deployed.
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		logrus.WithError(err).Fatal("failed to run migrations")
	}

	app := fiber.New(fiber.Config{
		AppName: "Scorecaddy API",
	})

	// Global middleware: request logging and CORS for the mobile clients.
	// In production, lock CORS down to the app's origin.
	app.Use(logger.New())
	app.Use(cors.New())

	// Liveness check, no auth.
	app.Get("/health", handlers.HealthCheck)

	// Everything under /api/v1 requires an authenticated caller. The Auth
	// middleware resolves the identity and lazily creates the player row.
	api := app.Group("/api/v1", middleware.Auth(cfg, db))

	// Player profile
	api.Get("/players/me", handlers.GetMe(db))
	api.Patch("/players/me", handlers.UpdateMe(db))
	api.Get("/players/:ref/stats", handlers.GetPlayerStats(db))

	// Course catalog
	api.Post("/courses", handlers.CreateCourse(db))
	api.Get("/courses", handlers.GetCourses(db))
	api.Get("/courses/:id", handlers.GetCourse(db))
	api.Put("/courses/:id", handlers.UpdateCourse(db))
	api.Delete("/courses/:id", handlers.ArchiveCourse(db))

	// Rounds and scoring
	api.Post("/rounds", handlers.CreateRound(db))
	api.Get("/rounds", handlers.GetRounds(db))
	api.Get("/rounds/:id", handlers.GetRound(db))
	api.Delete("/rounds/:id", handlers.DeleteRound(db))
	api.Post("/rounds/:id/scores", handlers.SubmitScore(db))
	api.Post("/rounds/:id/participants", handlers.AddPlayers(db))

	// Tournaments. The static /tournaments/invites routes are registered
	// before /tournaments/:id so Fiber doesn't swallow "invites" as an id.
	api.Get("/tournaments/invites", handlers.GetInvites(db))
	api.Post("/tournaments/invites/:id/accept", handlers.AcceptInvite(db))
	api.Post("/tournaments/invites/:id/decline", handlers.DeclineInvite(db))
	api.Post("/tournaments", handlers.CreateTournament(db))
	api.Get("/tournaments", handlers.GetTournaments(db))
	api.Get("/tournaments/:id", handlers.GetTournament(db))
	api.Patch("/tournaments/:id", handlers.UpdateTournament(db))
	api.Post("/tournaments/:id/rounds", handlers.CreateGroupRound(db))
	api.Post("/tournaments/:id/rounds/:roundID/join", handlers.JoinGroupRound(db))
	api.Post("/tournaments/:id/pause", handlers.PauseTournament(db))
	api.Post("/tournaments/:id/resume", handlers.ResumeTournament(db))
	api.Post("/tournaments/:id/finish", handlers.FinishTournament(db))
	api.Post("/tournaments/:id/invites", handlers.InvitePlayer(db))

	// Friends and the activity feed
	api.Post("/friends", handlers.SendFriendRequest(db))
	api.Get("/friends/requests", handlers.GetFriendRequests(db))
	api.Post("/friends/requests/:id/accept", handlers.AcceptFriendRequest(db))
	api.Post("/friends/requests/:id/decline", handlers.DeclineFriendRequest(db))
	api.Get("/friends", handlers.GetFriends(db))
	api.Get("/friends/activity", handlers.GetActivityFeed(db))
	api.Delete("/friends/:ref", handlers.RemoveFriend(db))

	logrus.WithField("port", cfg.Port).Info("starting server")
	logrus.Fatal(app.Listen(":" + cfg.Port))
}
