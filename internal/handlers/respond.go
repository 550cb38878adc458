// Package handlers contains the HTTP route handler functions for the
// Scorecaddy API. Each exported function follows the "handler factory"
// pattern: it takes a *gorm.DB and returns a fiber.Handler, so the database
// is injected without global variables.
//
// Handlers stay thin: parse the request, open a transaction, call into the
// engine, translate the result. All business rules live in internal/engine.
package handlers

import (
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/engine"
)

// fail translates an error into the right HTTP response. Engine errors carry
// their own status kind; database unique-key violations become conflicts;
// anything unclassified is a 500 and gets logged with its route context.
func fail(c *fiber.Ctx, err error) error {
	switch engine.KindOf(err) {
	case engine.KindNotFound:
		return respondError(c, fiber.StatusNotFound, err.Error())
	case engine.KindForbidden:
		return respondError(c, fiber.StatusForbidden, err.Error())
	case engine.KindConflict:
		return respondError(c, fiber.StatusConflict, err.Error())
	case engine.KindInvalid:
		return respondError(c, fiber.StatusBadRequest, err.Error())
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return respondError(c, fiber.StatusConflict, "resource already exists")
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, fiber.StatusNotFound, "not found")
	}

	logrus.WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
	}).WithError(err).Error("request failed")
	return respondError(c, fiber.StatusInternalServerError, "internal server error")
}

func respondError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// refParam reads a player-reference path parameter. References travel
// URL-escaped (auth subjects contain "|", emails contain "@").
func refParam(c *fiber.Ctx, name string) string {
	raw := c.Params(name)
	if unescaped, err := url.PathUnescape(raw); err == nil {
		return unescaped
	}
	return raw
}

// parseIDParam reads a UUID path parameter; a malformed id is a 400 sent
// directly, signalled by ok=false.
func parseIDParam(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		_ = respondError(c, fiber.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// isoTime formats a timestamp the way every response in the API does.
func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// isoTimePtr preserves nullability in responses.
func isoTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := isoTime(*t)
	return &s
}
