package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive EnrollmentStatus = "active"
)

// PaymentState tracks payment progress on an enrollment.
type PaymentState string

const (
	PaymentStatePending   PaymentState = "pending"
	PaymentStateCompleted PaymentState = "completed"
)

// Enrollment links one student to one class offering. Dropping a class
// deletes the record rather than transitioning status.
type Enrollment struct {
	ID             string           `json:"id"`
	StudentID      string           `json:"student_id"`
	ClassID        string           `json:"class_id"`
	EnrollmentDate time.Time        `json:"enrollment_date"`
	Status         EnrollmentStatus `json:"status"`
	Attended       bool             `json:"attended"`
	PaymentStatus  PaymentState     `json:"payment_status"`
}

// EnrollmentDetail joins an enrollment with its class offering. Class is nil
// when the referenced class no longer exists.
type EnrollmentDetail struct {
	Enrollment
	Class *ClassOffering `json:"class,omitempty"`
}
