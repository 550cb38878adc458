// Package models defines the data structures (models) that map to database tables.
// GORM uses these structs to generate SQL queries and map database rows back to Go values.
// The struct field tags (the backtick strings like `gorm:"..."`) tell GORM how to handle
// each field: its column type, constraints, default values, and relationships.
//
// The data model represents a social golf scoring platform where:
//   - Players create Courses (holes, pars, optional tee boxes)
//   - Players start Rounds on a course, solo or with up to 3 other participants
//   - Rounds track HoleScores per player per hole and auto-complete when every
//     participant has scored every hole
//   - Tournaments group several rounds on one course under a shared leaderboard
//   - ActivityEvents record birdies and personal bests for the friends feed
//
// There is no separate "group" model — a tournament group IS a Round with its
// TournamentID set. This keeps the hierarchy simple: Tournament → Round → HoleScore.
package models

import (
	"time"

	// uuid provides universally unique identifiers for primary keys.
	// IDs are generated in the BeforeCreate hooks below so the same models work
	// against Postgres in production and the in-memory SQLite driver in tests.
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- Enums ---
// Go doesn't have a built-in enum keyword, so we simulate them with a named string
// type plus constants. The values stay human-readable in the database.

// FairwayResult records where the tee shot ended up, tracked in stats mode.
type FairwayResult string

const (
	FairwayHit   FairwayResult = "hit"
	FairwayLeft  FairwayResult = "left"
	FairwayRight FairwayResult = "right"
	FairwayShort FairwayResult = "short"
	FairwayLong  FairwayResult = "long"
)

// ValidFairway reports whether s is one of the accepted fairway values.
func ValidFairway(s string) bool {
	switch FairwayResult(s) {
	case FairwayHit, FairwayLeft, FairwayRight, FairwayShort, FairwayLong:
		return true
	}
	return false
}

// GIRResult records whether the green was reached in regulation, tracked in stats mode.
type GIRResult string

const (
	GIRHit  GIRResult = "hit"
	GIRMiss GIRResult = "miss"
)

// ValidGIR reports whether s is one of the accepted green-in-regulation values.
func ValidGIR(s string) bool {
	switch GIRResult(s) {
	case GIRHit, GIRMiss:
		return true
	}
	return false
}

// EventKind classifies an activity event.
// Hole-level kinds (birdie/eagle/albatross) are keyed to a real hole number;
// round-level personal bests use HoleNumberRound (0) as a sentinel.
type EventKind string

const (
	EventBirdie    EventKind = "birdie"
	EventEagle     EventKind = "eagle"
	EventAlbatross EventKind = "albatross"
	EventPBOverall EventKind = "pb_overall"
	EventPBCourse  EventKind = "pb_course"
)

// HoleNumberRound is the sentinel hole number used by round-level events
// (personal bests) so they never collide with per-hole achievement rows.
const HoleNumberRound = 0

// MaxRosterSize caps the number of participants in a single round, guests included.
const MaxRosterSize = 4

// GuestExternalIDPrefix marks ephemeral guest identities. Guests are real Player
// rows (hole scores need a player foreign key) but are never resolvable by
// reference and never accrue personal bests. The prefix is applied exactly once,
// at guest creation — business logic checks the IsGuest column, not the string.
const GuestExternalIDPrefix = "guest:"

// ProfileExternalIDPrefix marks stub identities minted for players who have a
// profile page but no login yet. Like guests they are never resolvable by
// reference.
const ProfileExternalIDPrefix = "profile:"

// --- Models ---
// Each struct below maps to a database table. GORM uses the struct name
// (snake_cased and pluralized) as the table name: Player -> players, etc.

// Player represents a person in the system.
// Registered players are created automatically the first time an authenticated
// identity hits the API; the ExternalID links our record to the auth provider's
// subject (or the X-User-Id development header). Guest players are created inline
// when a round owner adds someone without an account.
type Player struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExternalID string    `gorm:"size:128;not null;uniqueIndex"` // auth provider subject, or "guest:<uuid>"
	IsGuest    bool      `gorm:"not null;default:false"`        // guests never earn personal bests
	Email      *string   `gorm:"size:320;uniqueIndex"`
	Username   *string   `gorm:"size:64;uniqueIndex"`
	Name       *string   `gorm:"size:128"`
	Handicap   *float64  // raw handicap value as entered; no index computation
	Gender     *string   `gorm:"size:16"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p *Player) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Label returns the best human-readable name for a player, falling back through
// the profile fields to the external identity.
func (p *Player) Label() string {
	if p.Name != nil && *p.Name != "" {
		return *p.Name
	}
	if p.Username != nil && *p.Username != "" {
		return *p.Username
	}
	if p.Email != nil && *p.Email != "" {
		return *p.Email
	}
	return p.ExternalID
}

// Course represents a golf course layout owned by the player who entered it.
// Courses are archived (soft-deleted) rather than destroyed, because completed
// rounds keep referencing them.
type Course struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerPlayerID uuid.UUID `gorm:"type:uuid;not null;index"`
	Owner         Player    `gorm:"foreignKey:OwnerPlayerID"`
	Name          string    `gorm:"size:200;not null"`
	ArchivedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Holes         []Hole      `gorm:"foreignKey:CourseID"` // exactly 9 or 18, enforced at the API boundary
	Tees          []CourseTee `gorm:"foreignKey:CourseID"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// TotalPar sums par over the course's holes.
func (c *Course) TotalPar() int {
	total := 0
	for _, h := range c.Holes {
		total += h.Par
	}
	return total
}

// Hole is one hole of a course. Number is unique within the course (1–18).
type Hole struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_course_hole_number"`
	Number   int       `gorm:"not null;uniqueIndex:idx_course_hole_number"`
	Par      int       `gorm:"not null"` // 1–10
	Distance *int      // base distance in meters; tees may override per hole
	Hcp      *int      // stroke index: 1 = hardest hole, N = easiest
}

func (h *Hole) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// CourseTee is a named tee-box variant of a course ("Blue", "Yellow", ...).
// Ratings can be stored unsplit or split by gender; each tee carries a complete
// per-hole distance map covering every hole number exactly once.
type CourseTee struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	CourseID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_course_tee_name"`
	TeeName           string    `gorm:"size:64;not null;uniqueIndex:idx_course_tee_name"`
	CourseRating      *float64
	SlopeRating       *int
	CourseRatingMen   *float64
	SlopeRatingMen    *int
	CourseRatingWomen *float64
	SlopeRatingWomen  *int
	HoleDistances     []TeeHoleDistance `gorm:"foreignKey:TeeID"`
}

func (t *CourseTee) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TeeHoleDistance is the distance of one hole from one tee.
type TeeHoleDistance struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TeeID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tee_hole_number"`
	HoleNumber int       `gorm:"not null;uniqueIndex:idx_tee_hole_number"`
	Distance   int       `gorm:"not null"`
}

func (d *TeeHoleDistance) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Round is one scoring session on one course.
// The owner (creator) may enter scores for every participant; everyone else may
// only enter their own. CompletedAt is stamped exactly once, when every
// participant has a qualifying score on every hole — completion is terminal.
// A round with TournamentID set is a tournament group.
type Round struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OwnerPlayerID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Owner         Player     `gorm:"foreignKey:OwnerPlayerID"`
	CourseID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	Course        Course     `gorm:"foreignKey:CourseID"`
	TournamentID  *uuid.UUID `gorm:"type:uuid;index"`
	TeeID         *uuid.UUID `gorm:"type:uuid"` // optional tee selection; distances shown on the scorecard
	Tee           *CourseTee `gorm:"foreignKey:TeeID"`
	StatsEnabled  bool       `gorm:"not null;default:false"` // stats mode: putts/fairway/GIR required per hole
	StartedAt     time.Time  `gorm:"not null"`
	CompletedAt   *time.Time
	Participants  []RoundParticipant `gorm:"foreignKey:RoundID"`
	Scores        []HoleScore        `gorm:"foreignKey:RoundID"`
}

func (r *Round) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	return nil
}

// RoundParticipant links a Player to a Round (1–4 rows per round, owner included).
type RoundParticipant struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoundID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_round_participant"`
	PlayerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_round_participant;index"`
	Player   Player    `gorm:"foreignKey:PlayerID"`
}

func (p *RoundParticipant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// HoleScore records the strokes one player took on one hole of one round.
// The composite unique index makes resubmission an upsert: same key overwrites.
// Putts, Fairway and GIR are only populated (and only required) in stats mode.
type HoleScore struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoundID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_score_round_player_hole"`
	PlayerID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_score_round_player_hole;index"`
	Player     Player    `gorm:"foreignKey:PlayerID"`
	HoleNumber int       `gorm:"not null;uniqueIndex:idx_score_round_player_hole"`
	Strokes    int       `gorm:"not null"`
	Putts      *int
	Fairway    *string `gorm:"size:16"`
	GIR        *string `gorm:"size:16;column:gir"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s *HoleScore) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Tournament groups several rounds on one course under a shared name and
// leaderboard.
//
// Lifecycle: active → paused (reversible; blocks scoring in member rounds and
// carries an optional message shown to blocked submitters) → active;
// active|paused → completed (terminal; force-completes in-progress groups).
type Tournament struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerPlayerID uuid.UUID `gorm:"type:uuid;not null;index"`
	Owner         Player    `gorm:"foreignKey:OwnerPlayerID"`
	CourseID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Course        Course    `gorm:"foreignKey:CourseID"`
	Name          string    `gorm:"size:128;not null"`
	IsPublic      bool      `gorm:"not null;default:false"`
	PausedAt      *time.Time
	PauseMessage  *string `gorm:"size:280"`
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (t *Tournament) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TournamentMember links a Player to a Tournament they may see and join groups in.
// The owner is always a member; group participants are enrolled automatically.
type TournamentMember struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	TournamentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tournament_member"`
	PlayerID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tournament_member;index"`
	CreatedAt    time.Time
}

func (m *TournamentMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// TournamentInvite is a pending membership offer for a private tournament.
// Accepting creates the membership and deletes the invite; declining deletes it.
type TournamentInvite struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TournamentID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_tournament_invite"`
	Tournament   Tournament `gorm:"foreignKey:TournamentID"`
	RequesterID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_tournament_invite"`
	RecipientID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_tournament_invite;index"`
	CreatedAt    time.Time
}

func (i *TournamentInvite) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// ActivityEvent is a derived, append-only achievement record consumed by the
// friends feed. Rows are created, overwritten or deleted only as a side effect
// of score submission — the feed has no write API of its own.
//
// Hole-level events (birdie/eagle/albatross) record the hole's strokes and par.
// Round-level personal bests use HoleNumber 0 and record round totals instead.
// The unique index makes repeated derivation an upsert, never a duplicate.
type ActivityEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	PlayerID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_event_round_player_hole_kind;index"`
	Player     Player    `gorm:"foreignKey:PlayerID"`
	RoundID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_event_round_player_hole_kind;index"`
	Round      Round     `gorm:"foreignKey:RoundID"`
	HoleNumber int       `gorm:"not null;uniqueIndex:idx_event_round_player_hole_kind"`
	Kind       EventKind `gorm:"size:16;not null;uniqueIndex:idx_event_round_player_hole_kind"`
	Strokes    int       `gorm:"not null"`
	Par        int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"index"`
}

func (e *ActivityEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Friend is one direction of a mutual friendship; both directions are written
// together so listing a player's friends is a single indexed query.
type Friend struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	PlayerID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_friend_pair;index"`
	FriendPlayerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_friend_pair"`
	FriendPlayer   Player    `gorm:"foreignKey:FriendPlayerID"`
	CreatedAt      time.Time
}

func (f *Friend) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// FriendRequest is a pending friendship offer. Accepting (or sending the
// reverse request) converts it into a mutual Friend pair and deletes it.
type FriendRequest struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	RequesterID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_friend_request;index"`
	Requester   Player    `gorm:"foreignKey:RequesterID"`
	RecipientID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_friend_request;index"`
	Recipient   Player    `gorm:"foreignKey:RecipientID"`
	CreatedAt   time.Time
}

func (r *FriendRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
