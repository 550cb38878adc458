package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/models"
)

// EnsurePlayer finds the player for an external identity, creating the record
// on first sight. This is the lazy-sync entry point used by the auth middleware:
// the first authenticated request from a new identity materializes their row.
func EnsurePlayer(tx *gorm.DB, externalID string) (*models.Player, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, Invalid("empty caller identity")
	}

	var player models.Player
	err := tx.Where("external_id = ?", externalID).First(&player).Error
	if err == nil {
		return &player, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	player = models.Player{ExternalID: externalID}
	if err := tx.Create(&player).Error; err != nil {
		return nil, err
	}
	return &player, nil
}

// ResolveRef resolves a human-entered player reference for invite/add flows.
// Matching order: exact external id, then email (when the ref looks like one),
// then username. Guests are never resolvable — the prefix is rejected here, at
// the boundary, so the rest of the engine only ever checks the IsGuest flag.
func ResolveRef(tx *gorm.DB, ref string) (*models.Player, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, Invalid("empty player reference")
	}
	if strings.HasPrefix(ref, models.GuestExternalIDPrefix) {
		return nil, Invalid("cannot reference a guest player")
	}
	if strings.HasPrefix(ref, models.ProfileExternalIDPrefix) {
		return nil, Invalid("cannot reference a profile stub")
	}

	var player models.Player
	err := tx.Where("external_id = ? AND is_guest = ?", ref, false).First(&player).Error
	if err == nil {
		return &player, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if strings.Contains(ref, "@") {
		err = tx.Where("email = ? AND is_guest = ?", strings.ToLower(ref), false).First(&player).Error
	} else {
		err = tx.Where("username = ? AND is_guest = ?", ref, false).First(&player).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound(fmt.Sprintf("player not found: %s", ref))
	}
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// newGuest builds an ephemeral guest player. Guests get a synthetic unique
// external identity so the scores table can reference them like any player,
// but they are flagged IsGuest and excluded from resolution and personal bests.
func newGuest(name string, handicap *float64) models.Player {
	return models.Player{
		ExternalID: models.GuestExternalIDPrefix + uuid.NewString(),
		IsGuest:    true,
		Name:       &name,
		Handicap:   handicap,
	}
}
