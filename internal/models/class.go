package models

import "time"

// Difficulty levels offered by the studio.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// Schedule describes the weekly slot of a class offering.
type Schedule struct {
	Day  string `json:"day" bson:"day"`
	Time string `json:"time" bson:"time"`
}

// ClassOffering represents one class in the catalog. EnrolledStudentIDs keeps
// insertion order; it is mutated only by the enrollment ledger.
type ClassOffering struct {
	ID                 string    `json:"id" bson:"_id"`
	Title              string    `json:"title" bson:"title"`
	InstructorName     string    `json:"instructor_name" bson:"instructor_name"`
	InstructorID       string    `json:"instructor_id" bson:"instructor_id"`
	Description        string    `json:"description" bson:"description"`
	Difficulty         string    `json:"difficulty" bson:"difficulty"`
	Price              float64   `json:"price" bson:"price"`
	DurationMinutes    int       `json:"duration_minutes" bson:"duration_minutes"`
	Schedule           Schedule  `json:"schedule" bson:"schedule"`
	MaxStudents        int       `json:"max_students" bson:"max_students"`
	EnrolledStudentIDs []string  `json:"enrolled_student_ids" bson:"enrolled_student_ids"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
}

// AvailableSpots returns remaining capacity. The value is intentionally not
// clamped: editing max_students below the member count yields a negative.
func (c *ClassOffering) AvailableSpots() int {
	return c.MaxStudents - len(c.EnrolledStudentIDs)
}

// IsFull reports whether the class has no remaining capacity.
func (c *ClassOffering) IsFull() bool {
	return c.AvailableSpots() <= 0
}

// ClassFilter captures the catalog search criteria. Price bounds are
// pointers so that zero is a usable bound.
type ClassFilter struct {
	Search        string   `json:"search"`
	Difficulty    string   `json:"difficulty"`
	Day           string   `json:"day"`
	MinPrice      *float64 `json:"min_price"`
	MaxPrice      *float64 `json:"max_price"`
	AvailableOnly bool     `json:"available_only"`
}
