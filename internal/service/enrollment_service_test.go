package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodyoga/studio-api/internal/models"
	"github.com/moodyoga/studio-api/internal/store"
	appErrors "github.com/moodyoga/studio-api/pkg/errors"
)

func studentActor(id string) *models.CurrentUser {
	return &models.CurrentUser{ID: id, Role: models.RoleStudent}
}

func newLedgerFixture(t *testing.T, classes []models.ClassOffering) (*store.MemStore, *CatalogService, *EnrollmentService) {
	t.Helper()
	st := seedStore(t, classes)
	catalog, err := NewCatalogService(st, nil, nil, nil, false)
	require.NoError(t, err)
	enrollments, err := NewEnrollmentService(st, catalog, nil)
	require.NoError(t, err)
	return st, catalog, enrollments
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	_, catalog, svc := newLedgerFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", MaxStudents: 5}})

	enrollment, err := svc.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Equal(t, models.PaymentStatePending, enrollment.PaymentStatus)
	assert.False(t, enrollment.Attended)

	assert.Equal(t, 4, catalog.AvailableSpots("c1"))
	assert.True(t, svc.IsEnrolled("s1", "c1"))
}

func TestEnrollmentServiceEnrollPreconditions(t *testing.T) {
	_, _, svc := newLedgerFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", MaxStudents: 1}})

	_, err := svc.Enroll(context.Background(), nil, "c1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotAuthenticated))

	instructor := &models.CurrentUser{ID: "i1", Role: models.RoleInstructor}
	_, err = svc.Enroll(context.Background(), instructor, "c1")
	assert.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))

	_, err = svc.Enroll(context.Background(), studentActor("s1"), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServiceEnrollCapacity(t *testing.T) {
	_, _, svc := newLedgerFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", MaxStudents: 1}})

	_, err := svc.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), studentActor("s2"), "c1")
	assert.True(t, appErrors.Is(err, appErrors.ErrCapacityExceeded))
}

func TestEnrollmentServiceEnrollDuplicate(t *testing.T) {
	_, _, svc := newLedgerFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", MaxStudents: 5}})

	_, err := svc.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), studentActor("s1"), "c1")
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateEnrollment))
}

func TestEnrollmentServiceDropFreesSpot(t *testing.T) {
	_, catalog, svc := newLedgerFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", MaxStudents: 1}})

	first, err := svc.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)

	require.NoError(t, svc.Drop(context.Background(), studentActor("s1"), "c1"))
	assert.False(t, svc.IsEnrolled("s1", "c1"))
	assert.Equal(t, 1, catalog.AvailableSpots("c1"))

	// Re-enrolling creates a fresh record, not a revival of the old one.
	second, err := svc.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEnrollmentServiceDropUnknown(t *testing.T) {
	_, _, svc := newLedgerFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", MaxStudents: 1}})

	err := svc.Drop(context.Background(), studentActor("s1"), "c1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServiceEnrollCompensation(t *testing.T) {
	st, catalog, svc := newLedgerFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", MaxStudents: 5}})
	st.SaveErr = map[string]error{store.KeyEnrollments: errors.New("disk full")}

	_, err := svc.Enroll(context.Background(), studentActor("s1"), "c1")
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))

	// The member append is compensated, leaving no trace of the half-write.
	assert.Equal(t, 5, catalog.AvailableSpots("c1"))
	assert.False(t, svc.IsEnrolled("s1", "c1"))

	st.SaveErr = nil
	_, err = svc.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)
}

func TestEnrollmentServiceUpdateAttendance(t *testing.T) {
	_, _, svc := newLedgerFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", MaxStudents: 5, InstructorID: "i1"}})

	enrollment, err := svc.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)

	owner := &models.CurrentUser{ID: "i1", Role: models.RoleInstructor}
	updated, err := svc.UpdateAttendance(context.Background(), owner, enrollment.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Attended)

	other := &models.CurrentUser{ID: "i2", Role: models.RoleInstructor}
	_, err = svc.UpdateAttendance(context.Background(), other, enrollment.ID, false)
	assert.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))

	admin := adminActor()
	updated, err = svc.UpdateAttendance(context.Background(), admin, enrollment.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Attended)
}

func TestEnrollmentServiceDetailsTolerateMissingClass(t *testing.T) {
	_, catalog, svc := newLedgerFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", MaxStudents: 5}})

	enrollment, err := svc.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)

	require.NoError(t, catalog.Delete(context.Background(), adminActor(), "c1"))

	detail, err := svc.DetailsWithClass(context.Background(), enrollment.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Class)
	assert.Equal(t, enrollment.ID, detail.Enrollment.ID)
}
