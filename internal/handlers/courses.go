// Course catalog routes.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/engine"
	"github.com/scorecaddy/scorecaddy/internal/middleware"
	"github.com/scorecaddy/scorecaddy/internal/models"
)

// HoleResponse is one hole in a course payload.
type HoleResponse struct {
	Number   int  `json:"number"`
	Par      int  `json:"par"`
	Distance *int `json:"distance"`
	Hcp      *int `json:"hcp"`
}

// TeeDistanceResponse is one per-hole distance of a tee.
type TeeDistanceResponse struct {
	HoleNumber int `json:"hole_number"`
	Distance   int `json:"distance"`
}

// TeeResponse is one tee variant of a course.
type TeeResponse struct {
	ID                string                `json:"id"`
	TeeName           string                `json:"tee_name"`
	CourseRating      *float64              `json:"course_rating"`
	SlopeRating       *int                  `json:"slope_rating"`
	CourseRatingMen   *float64              `json:"course_rating_men"`
	SlopeRatingMen    *int                  `json:"slope_rating_men"`
	CourseRatingWomen *float64              `json:"course_rating_women"`
	SlopeRatingWomen  *int                  `json:"slope_rating_women"`
	HoleDistances     []TeeDistanceResponse `json:"hole_distances"`
}

// CourseResponse is what we send back for a course. We use a dedicated
// response struct (instead of the raw GORM model) so we control exactly what
// is serialised and can add computed fields like TotalPar.
type CourseResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	OwnerName string         `json:"owner_name"`
	TotalPar  int            `json:"total_par"`
	Holes     []HoleResponse `json:"holes"`
	Tees      []TeeResponse  `json:"tees"`
	CreatedAt string         `json:"created_at"`
}

// CourseRequest is the JSON body for POST and PUT /api/v1/courses.
type CourseRequest struct {
	Name  string `json:"name"`
	Holes []struct {
		Number   int  `json:"number"`
		Par      int  `json:"par"`
		Distance *int `json:"distance"`
		Hcp      *int `json:"hcp"`
	} `json:"holes"`
	Tees []struct {
		ID                *uuid.UUID `json:"id"`
		TeeName           string     `json:"tee_name"`
		CourseRating      *float64   `json:"course_rating"`
		SlopeRating       *int       `json:"slope_rating"`
		CourseRatingMen   *float64   `json:"course_rating_men"`
		SlopeRatingMen    *int       `json:"slope_rating_men"`
		CourseRatingWomen *float64   `json:"course_rating_women"`
		SlopeRatingWomen  *int       `json:"slope_rating_women"`
		HoleDistances     []struct {
			HoleNumber int `json:"hole_number"`
			Distance   int `json:"distance"`
		} `json:"hole_distances"`
	} `json:"tees"`
}

func (r CourseRequest) toInput() engine.CourseInput {
	in := engine.CourseInput{Name: r.Name}
	for _, h := range r.Holes {
		in.Holes = append(in.Holes, engine.HoleInput{
			Number: h.Number, Par: h.Par, Distance: h.Distance, Hcp: h.Hcp,
		})
	}
	for _, t := range r.Tees {
		tee := engine.TeeInput{
			ID:                t.ID,
			TeeName:           t.TeeName,
			CourseRating:      t.CourseRating,
			SlopeRating:       t.SlopeRating,
			CourseRatingMen:   t.CourseRatingMen,
			SlopeRatingMen:    t.SlopeRatingMen,
			CourseRatingWomen: t.CourseRatingWomen,
			SlopeRatingWomen:  t.SlopeRatingWomen,
		}
		for _, d := range t.HoleDistances {
			tee.HoleDistances = append(tee.HoleDistances, engine.TeeDistanceInput{
				HoleNumber: d.HoleNumber, Distance: d.Distance,
			})
		}
		in.Tees = append(in.Tees, tee)
	}
	return in
}

func courseResponse(course *models.Course) CourseResponse {
	resp := CourseResponse{
		ID:        course.ID.String(),
		Name:      course.Name,
		OwnerName: course.Owner.Label(),
		TotalPar:  course.TotalPar(),
		Holes:     []HoleResponse{},
		Tees:      []TeeResponse{},
		CreatedAt: isoTime(course.CreatedAt),
	}
	for _, h := range course.Holes {
		resp.Holes = append(resp.Holes, HoleResponse{
			Number: h.Number, Par: h.Par, Distance: h.Distance, Hcp: h.Hcp,
		})
	}
	for _, t := range course.Tees {
		tee := TeeResponse{
			ID:                t.ID.String(),
			TeeName:           t.TeeName,
			CourseRating:      t.CourseRating,
			SlopeRating:       t.SlopeRating,
			CourseRatingMen:   t.CourseRatingMen,
			SlopeRatingMen:    t.SlopeRatingMen,
			CourseRatingWomen: t.CourseRatingWomen,
			SlopeRatingWomen:  t.SlopeRatingWomen,
			HoleDistances:     []TeeDistanceResponse{},
		}
		for _, d := range t.HoleDistances {
			tee.HoleDistances = append(tee.HoleDistances, TeeDistanceResponse{
				HoleNumber: d.HoleNumber, Distance: d.Distance,
			})
		}
		resp.Tees = append(resp.Tees, tee)
	}
	return resp
}

// CreateCourse returns a handler for POST /api/v1/courses.
func CreateCourse(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)

		var req CourseRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request body")
		}

		var course *models.Course
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			course, err = engine.CreateCourse(tx, caller, req.toInput())
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(courseResponse(course))
	}
}

// GetCourses returns a handler for GET /api/v1/courses: all unarchived courses.
func GetCourses(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		courses, err := engine.ListCourses(db)
		if err != nil {
			return fail(c, err)
		}
		resp := make([]CourseResponse, 0, len(courses))
		for i := range courses {
			resp = append(resp, courseResponse(&courses[i]))
		}
		return c.JSON(resp)
	}
}

// GetCourse returns a handler for GET /api/v1/courses/:id.
func GetCourse(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}
		course, err := engine.LoadCourse(db, id)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(courseResponse(course))
	}
}

// UpdateCourse returns a handler for PUT /api/v1/courses/:id (owner only).
func UpdateCourse(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}

		var req CourseRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request body")
		}

		var course *models.Course
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			course, err = engine.UpdateCourse(tx, caller, id, req.toInput())
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(courseResponse(course))
	}
}

// ArchiveCourse returns a handler for DELETE /api/v1/courses/:id (owner only).
// Courses are archived, never destroyed, so completed rounds keep their layout.
func ArchiveCourse(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			return engine.ArchiveCourse(tx, caller, id)
		})
		if err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
