package engine

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/models"
)

// Friends are stored as directed pairs: befriending writes both directions so
// listing and feed queries stay single-column lookups.

// SendFriendRequest creates a pending request toward the referenced player.
// If the recipient already has a pending request toward the caller, the two
// requests cancel out and the players become friends immediately.
func SendFriendRequest(tx *gorm.DB, caller *models.Player, ref string) (*models.FriendRequest, bool, error) {
	target, err := ResolveRef(tx, ref)
	if err != nil {
		return nil, false, err
	}
	if target.ID == caller.ID {
		return nil, false, Invalid("cannot befriend yourself")
	}

	var existing int64
	err = tx.Model(&models.Friend{}).
		Where("player_id = ? AND friend_player_id = ?", caller.ID, target.ID).
		Count(&existing).Error
	if err != nil {
		return nil, false, err
	}
	if existing > 0 {
		return nil, false, Conflict("already friends")
	}

	// A reverse pending request means both sides want the friendship.
	var reverse models.FriendRequest
	err = tx.Where("requester_id = ? AND recipient_id = ?", target.ID, caller.ID).First(&reverse).Error
	if err == nil {
		if err := befriend(tx, caller.ID, target.ID); err != nil {
			return nil, false, err
		}
		if err := tx.Delete(&reverse).Error; err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	var dup int64
	err = tx.Model(&models.FriendRequest{}).
		Where("requester_id = ? AND recipient_id = ?", caller.ID, target.ID).
		Count(&dup).Error
	if err != nil {
		return nil, false, err
	}
	if dup > 0 {
		return nil, false, Conflict("friend request already sent")
	}

	req := models.FriendRequest{RequesterID: caller.ID, RecipientID: target.ID}
	if err := tx.Create(&req).Error; err != nil {
		return nil, false, err
	}
	req.Requester = *caller
	req.Recipient = *target
	return &req, false, nil
}

// AcceptFriendRequest turns a pending request into a friendship. Only the
// recipient may accept.
func AcceptFriendRequest(tx *gorm.DB, caller *models.Player, requestID uuid.UUID) error {
	req, err := loadFriendRequest(tx, requestID)
	if err != nil {
		return err
	}
	if req.RecipientID != caller.ID {
		return Forbidden("not your friend request")
	}
	if err := befriend(tx, req.RequesterID, req.RecipientID); err != nil {
		return err
	}
	return tx.Delete(req).Error
}

// DeclineFriendRequest removes a pending request. Either side may decline,
// which lets the requester withdraw.
func DeclineFriendRequest(tx *gorm.DB, caller *models.Player, requestID uuid.UUID) error {
	req, err := loadFriendRequest(tx, requestID)
	if err != nil {
		return err
	}
	if req.RecipientID != caller.ID && req.RequesterID != caller.ID {
		return Forbidden("not your friend request")
	}
	return tx.Delete(req).Error
}

// RemoveFriend deletes both directions of a friendship.
func RemoveFriend(tx *gorm.DB, caller *models.Player, ref string) error {
	target, err := ResolveRef(tx, ref)
	if err != nil {
		return err
	}
	res := tx.
		Where("(player_id = ? AND friend_player_id = ?) OR (player_id = ? AND friend_player_id = ?)",
			caller.ID, target.ID, target.ID, caller.ID).
		Delete(&models.Friend{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NotFound("not friends")
	}
	return nil
}

// ListFriends returns the caller's friends ordered by name.
func ListFriends(tx *gorm.DB, caller *models.Player) ([]models.Player, error) {
	var friends []models.Player
	err := tx.
		Joins("JOIN friends ON friends.friend_player_id = players.id").
		Where("friends.player_id = ?", caller.ID).
		Order("players.name ASC").
		Find(&friends).Error
	return friends, err
}

// ListIncomingFriendRequests returns pending requests addressed to the caller.
func ListIncomingFriendRequests(tx *gorm.DB, caller *models.Player) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := tx.
		Preload("Requester").
		Preload("Recipient").
		Where("recipient_id = ?", caller.ID).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

// ListOutgoingFriendRequests returns pending requests the caller has sent.
func ListOutgoingFriendRequests(tx *gorm.DB, caller *models.Player) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := tx.
		Preload("Requester").
		Preload("Recipient").
		Where("requester_id = ?", caller.ID).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

// ActivityFeed returns the newest achievement events of the caller and their
// friends, newest first. limit is clamped to 1..100.
func ActivityFeed(tx *gorm.DB, caller *models.Player, limit int) ([]models.ActivityEvent, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	var friendIDs []uuid.UUID
	err := tx.Model(&models.Friend{}).
		Where("player_id = ?", caller.ID).
		Pluck("friend_player_id", &friendIDs).Error
	if err != nil {
		return nil, err
	}
	ids := append(friendIDs, caller.ID)

	var events []models.ActivityEvent
	err = tx.
		Preload("Player").
		Preload("Round.Course").
		Where("player_id IN ?", ids).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func befriend(tx *gorm.DB, a, b uuid.UUID) error {
	for _, pair := range [][2]uuid.UUID{{a, b}, {b, a}} {
		row := models.Friend{PlayerID: pair[0], FriendPlayerID: pair[1]}
		err := tx.Where("player_id = ? AND friend_player_id = ?", pair[0], pair[1]).
			FirstOrCreate(&row).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func loadFriendRequest(tx *gorm.DB, id uuid.UUID) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := tx.First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("friend request not found")
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}
