package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/models"
)

// Course catalog operations. A course is owned by whoever entered it; holes are
// replaced wholesale on update (nothing references them by id), while tees are
// reconciled in place because rounds reference a tee selection.

// HoleInput is one hole of a course payload.
type HoleInput struct {
	Number   int
	Par      int
	Distance *int
	Hcp      *int
}

// TeeDistanceInput is one per-hole distance of a tee payload.
type TeeDistanceInput struct {
	HoleNumber int
	Distance   int
}

// TeeInput is one tee variant of a course payload. ID is set when updating an
// existing tee; matching falls back to the (case-insensitive) tee name.
type TeeInput struct {
	ID                *uuid.UUID
	TeeName           string
	CourseRating      *float64
	SlopeRating       *int
	CourseRatingMen   *float64
	SlopeRatingMen    *int
	CourseRatingWomen *float64
	SlopeRatingWomen  *int
	HoleDistances     []TeeDistanceInput
}

// CourseInput is the full course payload for create and update.
type CourseInput struct {
	Name  string
	Holes []HoleInput
	Tees  []TeeInput
}

// validateCourseInput enforces the layout rules: exactly 9 or 18 holes with
// unique numbers in 1–18, par 1–10, stroke index within 1..len(holes), unique
// tee names, and per-tee distance maps covering every hole exactly once.
func validateCourseInput(in CourseInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return Invalid("course name is required")
	}
	if len(in.Holes) != 9 && len(in.Holes) != 18 {
		return Invalid("holes must be length 9 or 18")
	}

	numbers := make(map[int]bool, len(in.Holes))
	for _, h := range in.Holes {
		if h.Number < 1 || h.Number > 18 {
			return Invalid("hole number must be between 1 and 18")
		}
		if numbers[h.Number] {
			return Invalid("hole numbers must be unique")
		}
		numbers[h.Number] = true
		if h.Par < 1 || h.Par > 10 {
			return Invalid("par must be between 1 and 10")
		}
		if h.Distance != nil && (*h.Distance < 1 || *h.Distance > 2000) {
			return Invalid("hole distance must be between 1 and 2000")
		}
		if h.Hcp != nil && (*h.Hcp < 1 || *h.Hcp > len(in.Holes)) {
			return Invalid(fmt.Sprintf("hcp must be between 1 and %d", len(in.Holes)))
		}
	}

	teeNames := make(map[string]bool, len(in.Tees))
	for _, t := range in.Tees {
		name := strings.TrimSpace(t.TeeName)
		if name == "" {
			return Invalid("tee_name is required")
		}
		if teeNames[strings.ToLower(name)] {
			return Invalid("tee_name must be unique")
		}
		teeNames[strings.ToLower(name)] = true

		if len(t.HoleDistances) != len(in.Holes) {
			return Invalid("tee hole_distances must match holes length")
		}
		covered := make(map[int]bool, len(t.HoleDistances))
		for _, d := range t.HoleDistances {
			if !numbers[d.HoleNumber] {
				return Invalid("tee hole_distances must include all hole numbers")
			}
			if covered[d.HoleNumber] {
				return Invalid("tee hole_distances must be unique per hole")
			}
			covered[d.HoleNumber] = true
			if d.Distance < 1 || d.Distance > 2000 {
				return Invalid("tee distance must be between 1 and 2000")
			}
		}
	}
	return nil
}

// CreateCourse stores a new course with its holes and tees.
func CreateCourse(tx *gorm.DB, caller *models.Player, in CourseInput) (*models.Course, error) {
	if err := validateCourseInput(in); err != nil {
		return nil, err
	}

	course := models.Course{
		OwnerPlayerID: caller.ID,
		Name:          strings.TrimSpace(in.Name),
	}
	if err := tx.Create(&course).Error; err != nil {
		return nil, err
	}
	if err := insertHoles(tx, &course, in.Holes); err != nil {
		return nil, err
	}
	for _, t := range in.Tees {
		if err := insertTee(tx, &course, t); err != nil {
			return nil, err
		}
	}

	return LoadCourse(tx, course.ID)
}

// UpdateCourse replaces the holes and reconciles the tees of a course the
// caller owns. A tee dropped from the payload is deleted unless some round
// already references it, in which case the update conflicts.
func UpdateCourse(tx *gorm.DB, caller *models.Player, courseID uuid.UUID, in CourseInput) (*models.Course, error) {
	if err := validateCourseInput(in); err != nil {
		return nil, err
	}
	course, err := LoadCourse(tx, courseID)
	if err != nil {
		return nil, err
	}
	if course.OwnerPlayerID != caller.ID {
		return nil, Forbidden("only the course owner can update the course")
	}

	if err := tx.Model(course).Update("name", strings.TrimSpace(in.Name)).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("course_id = ?", course.ID).Delete(&models.Hole{}).Error; err != nil {
		return nil, err
	}
	if err := insertHoles(tx, course, in.Holes); err != nil {
		return nil, err
	}
	if err := reconcileTees(tx, course, in.Tees); err != nil {
		return nil, err
	}

	return LoadCourse(tx, course.ID)
}

// ArchiveCourse soft-deletes a course the caller owns. Archiving is rejected
// while any round on the course is still in progress; completed rounds keep
// their reference and the course simply disappears from listings.
func ArchiveCourse(tx *gorm.DB, caller *models.Player, courseID uuid.UUID) error {
	course, err := LoadCourse(tx, courseID)
	if err != nil {
		return err
	}
	if course.OwnerPlayerID != caller.ID {
		return Forbidden("only the course owner can archive the course")
	}

	var active int64
	err = tx.Model(&models.Round{}).
		Where("course_id = ? AND completed_at IS NULL", course.ID).
		Count(&active).Error
	if err != nil {
		return err
	}
	if active > 0 {
		return Conflict("course has active rounds")
	}

	return tx.Model(course).Update("archived_at", time.Now().UTC()).Error
}

// LoadCourse fetches an unarchived course with holes and tees.
func LoadCourse(tx *gorm.DB, courseID uuid.UUID) (*models.Course, error) {
	var course models.Course
	err := tx.
		Preload("Owner").
		Preload("Holes", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		Preload("Tees.HoleDistances").
		Where("id = ? AND archived_at IS NULL", courseID).
		First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("course not found")
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// ListCourses returns all unarchived courses.
func ListCourses(tx *gorm.DB) ([]models.Course, error) {
	var courses []models.Course
	err := tx.
		Preload("Owner").
		Preload("Holes", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		Preload("Tees.HoleDistances").
		Where("archived_at IS NULL").
		Order("created_at ASC").
		Find(&courses).Error
	return courses, err
}

func insertHoles(tx *gorm.DB, course *models.Course, holes []HoleInput) error {
	for _, h := range holes {
		hole := models.Hole{
			CourseID: course.ID,
			Number:   h.Number,
			Par:      h.Par,
			Distance: h.Distance,
			Hcp:      h.Hcp,
		}
		if err := tx.Create(&hole).Error; err != nil {
			return err
		}
	}
	return nil
}

func insertTee(tx *gorm.DB, course *models.Course, in TeeInput) error {
	tee := models.CourseTee{CourseID: course.ID}
	applyTeeFields(&tee, in)
	if err := tx.Create(&tee).Error; err != nil {
		return err
	}
	return replaceTeeDistances(tx, &tee, in.HoleDistances)
}

// reconcileTees updates tees in place (matching by id, then by name), creates
// new ones, and deletes tees missing from the payload unless rounds use them.
func reconcileTees(tx *gorm.DB, course *models.Course, tees []TeeInput) error {
	byID := make(map[uuid.UUID]*models.CourseTee, len(course.Tees))
	byName := make(map[string]*models.CourseTee, len(course.Tees))
	for i := range course.Tees {
		byID[course.Tees[i].ID] = &course.Tees[i]
		byName[strings.ToLower(course.Tees[i].TeeName)] = &course.Tees[i]
	}

	kept := make(map[uuid.UUID]bool, len(tees))
	for _, in := range tees {
		var tee *models.CourseTee
		if in.ID != nil {
			tee = byID[*in.ID]
		}
		if tee == nil {
			tee = byName[strings.ToLower(strings.TrimSpace(in.TeeName))]
		}

		if tee == nil {
			if err := insertTee(tx, course, in); err != nil {
				return err
			}
			continue
		}

		applyTeeFields(tee, in)
		if err := tx.Save(tee).Error; err != nil {
			return err
		}
		if err := replaceTeeDistances(tx, tee, in.HoleDistances); err != nil {
			return err
		}
		kept[tee.ID] = true
	}

	for i := range course.Tees {
		tee := &course.Tees[i]
		if kept[tee.ID] {
			continue
		}
		var used int64
		if err := tx.Model(&models.Round{}).Where("tee_id = ?", tee.ID).Count(&used).Error; err != nil {
			return err
		}
		if used > 0 {
			return Conflict("cannot remove a tee that is used by rounds")
		}
		if err := tx.Where("tee_id = ?", tee.ID).Delete(&models.TeeHoleDistance{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(tee).Error; err != nil {
			return err
		}
	}
	return nil
}

func applyTeeFields(tee *models.CourseTee, in TeeInput) {
	tee.TeeName = strings.TrimSpace(in.TeeName)
	tee.CourseRating = in.CourseRating
	tee.SlopeRating = in.SlopeRating
	tee.CourseRatingMen = in.CourseRatingMen
	tee.SlopeRatingMen = in.SlopeRatingMen
	tee.CourseRatingWomen = in.CourseRatingWomen
	tee.SlopeRatingWomen = in.SlopeRatingWomen
}

func replaceTeeDistances(tx *gorm.DB, tee *models.CourseTee, distances []TeeDistanceInput) error {
	if err := tx.Where("tee_id = ?", tee.ID).Delete(&models.TeeHoleDistance{}).Error; err != nil {
		return err
	}
	sorted := make([]TeeDistanceInput, len(distances))
	copy(sorted, distances)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].HoleNumber < sorted[j].HoleNumber })
	for _, d := range sorted {
		row := models.TeeHoleDistance{TeeID: tee.ID, HoleNumber: d.HoleNumber, Distance: d.Distance}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
