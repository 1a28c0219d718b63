package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moodyoga/studio-api/internal/models"
	"github.com/moodyoga/studio-api/internal/store"
	appErrors "github.com/moodyoga/studio-api/pkg/errors"
)

// enrollmentCatalog is the slice of the catalog the enrollment ledger needs.
type enrollmentCatalog interface {
	GetByID(ctx context.Context, id string) (*models.ClassOffering, error)
	IsFull(id string) bool
	AddMember(ctx context.Context, classID, studentID string) error
	RemoveMember(ctx context.Context, classID, studentID string) error
}

// EnrollmentService owns the enrollment ledger and coordinates the
// two-collection enroll/drop writes against the catalog.
type EnrollmentService struct {
	mu          sync.Mutex
	enrollments []models.Enrollment

	store   store.Store
	catalog enrollmentCatalog
	authz   Authorizer
	logger  *zap.Logger
}

// NewEnrollmentService loads the ledger from the local store.
func NewEnrollmentService(st store.Store, catalog enrollmentCatalog, logger *zap.Logger) (*EnrollmentService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EnrollmentService{store: st, catalog: catalog, logger: logger}

	var enrollments []models.Enrollment
	err := st.Load(context.Background(), store.KeyEnrollments, &enrollments)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	s.enrollments = enrollments
	return s, nil
}

// Enroll registers the acting student into a class. Preconditions are
// checked in a fixed order: authentication, student role, class existence,
// capacity, duplicate enrollment. The member append and the enrollment
// record are one logical unit: if the enrollment write fails after the
// member list was persisted, the append is compensated by removal.
func (s *EnrollmentService) Enroll(ctx context.Context, actor *models.CurrentUser, classID string) (*models.Enrollment, error) {
	if err := s.authz.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if err := s.authz.RequireRole(actor, models.RoleStudent); err != nil {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "only students can enroll in classes")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.catalog.GetByID(ctx, classID); err != nil {
		return nil, err
	}
	if s.catalog.IsFull(classID) {
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "")
	}
	if s.isEnrolledLocked(actor.ID, classID) {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
	}

	// Authoritative capacity check: runs under the catalog lock and
	// persists the member list.
	if err := s.catalog.AddMember(ctx, classID, actor.ID); err != nil {
		return nil, err
	}

	enrollment := models.Enrollment{
		ID:             uuid.NewString(),
		StudentID:      actor.ID,
		ClassID:        classID,
		EnrollmentDate: time.Now().UTC(),
		Status:         models.EnrollmentStatusActive,
		Attended:       false,
		PaymentStatus:  models.PaymentStatePending,
	}

	s.enrollments = append(s.enrollments, enrollment)
	if err := s.store.Save(ctx, store.KeyEnrollments, s.enrollments); err != nil {
		s.enrollments = s.enrollments[:len(s.enrollments)-1]
		if compErr := s.catalog.RemoveMember(ctx, classID, actor.ID); compErr != nil {
			s.logger.Error("failed to compensate member append after enrollment write failure",
				zap.String("class_id", classID), zap.String("student_id", actor.ID), zap.Error(compErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist enrollment")
	}
	return &enrollment, nil
}

// Drop removes the actor's enrollment for a class along with the class
// membership. The record is deleted, not archived. A failure removing the
// member after the record was deleted is surfaced to the caller; there is
// no rollback of the first write.
func (s *EnrollmentService) Drop(ctx context.Context, actor *models.CurrentUser, classID string) error {
	if err := s.authz.RequireAuthenticated(actor); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.enrollments {
		if s.enrollments[i].StudentID == actor.ID && s.enrollments[i].ClassID == classID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}

	removed := s.enrollments[idx]
	s.enrollments = append(s.enrollments[:idx], s.enrollments[idx+1:]...)
	if err := s.store.Save(ctx, store.KeyEnrollments, s.enrollments); err != nil {
		s.enrollments = append(s.enrollments, removed)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist enrollments")
	}

	if err := s.catalog.RemoveMember(ctx, classID, actor.ID); err != nil {
		return err
	}
	return nil
}

// UpdateAttendance marks attendance on an enrollment. Admins may update any
// enrollment; instructors only those of classes they own.
func (s *EnrollmentService) UpdateAttendance(ctx context.Context, actor *models.CurrentUser, enrollmentID string, attended bool) (*models.Enrollment, error) {
	if err := s.authz.RequireAuthenticated(actor); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexByIDLocked(enrollmentID)
	if idx == -1 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}

	if !actor.HasRole(models.RoleAdmin) {
		class, err := s.catalog.GetByID(ctx, s.enrollments[idx].ClassID)
		if err != nil {
			class = nil
		}
		if err := s.authz.RequireClassOwnerOrAdmin(actor, class); err != nil {
			return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "attendance can only be updated for your own classes")
		}
	}

	previous := s.enrollments[idx].Attended
	s.enrollments[idx].Attended = attended
	if err := s.store.Save(ctx, store.KeyEnrollments, s.enrollments); err != nil {
		s.enrollments[idx].Attended = previous
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist enrollments")
	}
	enrollment := s.enrollments[idx]
	return &enrollment, nil
}

// UpdateStatus sets the lifecycle status. No role gate: callers are trusted
// internal collaborators.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, enrollmentID string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	return s.mutate(ctx, enrollmentID, func(e *models.Enrollment) {
		e.Status = status
	})
}

// UpdatePaymentStatus sets the payment progress flag. No role gate: the
// payment ledger is the expected caller.
func (s *EnrollmentService) UpdatePaymentStatus(ctx context.Context, enrollmentID string, state models.PaymentState) (*models.Enrollment, error) {
	return s.mutate(ctx, enrollmentID, func(e *models.Enrollment) {
		e.PaymentStatus = state
	})
}

func (s *EnrollmentService) mutate(ctx context.Context, enrollmentID string, apply func(*models.Enrollment)) (*models.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexByIDLocked(enrollmentID)
	if idx == -1 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}

	previous := s.enrollments[idx]
	apply(&s.enrollments[idx])
	if err := s.store.Save(ctx, store.KeyEnrollments, s.enrollments); err != nil {
		s.enrollments[idx] = previous
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist enrollments")
	}
	enrollment := s.enrollments[idx]
	return &enrollment, nil
}

// MyEnrollments returns the actor's enrollments, empty when unauthenticated.
func (s *EnrollmentService) MyEnrollments(actor *models.CurrentUser) []models.Enrollment {
	if actor == nil {
		return []models.Enrollment{}
	}
	return s.ForStudent(actor.ID)
}

// ForClass returns all enrollments of one class.
func (s *EnrollmentService) ForClass(classID string) []models.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Enrollment{}
	for _, e := range s.enrollments {
		if e.ClassID == classID {
			out = append(out, e)
		}
	}
	return out
}

// ForStudent returns all enrollments of one student.
func (s *EnrollmentService) ForStudent(studentID string) []models.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Enrollment{}
	for _, e := range s.enrollments {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out
}

// IsEnrolled reports whether the (student, class) pair has an active
// enrollment.
func (s *EnrollmentService) IsEnrolled(studentID, classID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isEnrolledLocked(studentID, classID)
}

// ByID returns the enrollment with the given id.
func (s *EnrollmentService) ByID(enrollmentID string) (*models.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexByIDLocked(enrollmentID)
	if idx == -1 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	enrollment := s.enrollments[idx]
	return &enrollment, nil
}

// All returns the whole ledger in insertion order.
func (s *EnrollmentService) All() []models.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Enrollment, len(s.enrollments))
	copy(out, s.enrollments)
	return out
}

// DetailsWithClass joins an enrollment with its class offering. A missing
// class is tolerated and yields a nil class reference.
func (s *EnrollmentService) DetailsWithClass(ctx context.Context, enrollmentID string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.ByID(enrollmentID)
	if err != nil {
		return nil, err
	}
	detail := &models.EnrollmentDetail{Enrollment: *enrollment}
	if class, err := s.catalog.GetByID(ctx, enrollment.ClassID); err == nil {
		detail.Class = class
	}
	return detail, nil
}

// MyEnrollmentsWithDetails returns the actor's enrollments joined with their
// classes.
func (s *EnrollmentService) MyEnrollmentsWithDetails(ctx context.Context, actor *models.CurrentUser) []models.EnrollmentDetail {
	enrollments := s.MyEnrollments(actor)
	out := make([]models.EnrollmentDetail, 0, len(enrollments))
	for _, e := range enrollments {
		detail := models.EnrollmentDetail{Enrollment: e}
		if class, err := s.catalog.GetByID(ctx, e.ClassID); err == nil {
			detail.Class = class
		}
		out = append(out, detail)
	}
	return out
}

func (s *EnrollmentService) isEnrolledLocked(studentID, classID string) bool {
	for _, e := range s.enrollments {
		if e.StudentID == studentID && e.ClassID == classID {
			return true
		}
	}
	return false
}

func (s *EnrollmentService) indexByIDLocked(enrollmentID string) int {
	for i := range s.enrollments {
		if s.enrollments[i].ID == enrollmentID {
			return i
		}
	}
	return -1
}
