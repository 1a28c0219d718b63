package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodyoga/studio-api/internal/models"
	"github.com/moodyoga/studio-api/pkg/config"
	appErrors "github.com/moodyoga/studio-api/pkg/errors"
)

func newDashboardFixture(t *testing.T, classes []models.ClassOffering) (*EnrollmentService, *PaymentService, *DashboardService) {
	t.Helper()
	st := seedStore(t, classes)
	catalog, err := NewCatalogService(st, nil, nil, nil, false)
	require.NoError(t, err)
	enrollments, err := NewEnrollmentService(st, catalog, nil)
	require.NoError(t, err)
	payments, err := NewPaymentService(st, enrollments, catalog, config.StudioConfig{}, nil)
	require.NoError(t, err)
	dashboards := NewDashboardService(catalog, enrollments, payments, config.StudioConfig{}, nil)
	return enrollments, payments, dashboards
}

func TestDashboardServiceRequiresActor(t *testing.T) {
	_, _, dashboards := newDashboardFixture(t, nil)

	_, err := dashboards.ForActor(nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotAuthenticated))
}

func TestDashboardServiceStudent(t *testing.T) {
	enrollments, payments, dashboards := newDashboardFixture(t, []models.ClassOffering{
		{ID: "c1", Title: "Yin", Price: 20, MaxStudents: 5},
		{ID: "c2", Title: "Power", Price: 30, MaxStudents: 5},
	})

	actor := studentActor("s1")
	e1, err := enrollments.Enroll(context.Background(), actor, "c1")
	require.NoError(t, err)
	_, err = enrollments.Enroll(context.Background(), actor, "c2")
	require.NoError(t, err)

	_, err = enrollments.UpdateAttendance(context.Background(), adminActor(), e1.ID, true)
	require.NoError(t, err)

	p1, err := payments.ProcessPayment(context.Background(), e1.ID, "")
	require.NoError(t, err)
	_, err = payments.ConfirmPayment(context.Background(), adminActor(), p1.ID)
	require.NoError(t, err)

	dashboard, err := dashboards.Student(actor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, dashboard.Role)
	assert.Equal(t, 2, dashboard.Stats.EnrolledClasses)
	assert.InDelta(t, 20.0, dashboard.Stats.TotalSpent, 1e-9)
	assert.Equal(t, 0, dashboard.Stats.PendingPayments)
	// 1 of 2 attended rounds to 50 percent.
	assert.Equal(t, 50, dashboard.Stats.AttendanceRate)
	assert.Len(t, dashboard.Stats.UpcomingClasses, 2)
	assert.Len(t, dashboard.Stats.RecentPayments, 1)
}

func TestDashboardServiceInstructor(t *testing.T) {
	enrollments, payments, dashboards := newDashboardFixture(t, []models.ClassOffering{
		{ID: "c1", Title: "Yin", Price: 20, MaxStudents: 4, InstructorID: "i1"},
		{ID: "c2", Title: "Power", Price: 30, MaxStudents: 4, InstructorID: "i1"},
		{ID: "c3", Title: "Other", Price: 10, MaxStudents: 4, InstructorID: "i2"},
	})

	e1, err := enrollments.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)
	_, err = enrollments.Enroll(context.Background(), studentActor("s2"), "c1")
	require.NoError(t, err)

	_, err = enrollments.UpdateAttendance(context.Background(), adminActor(), e1.ID, true)
	require.NoError(t, err)

	p1, err := payments.ProcessPayment(context.Background(), e1.ID, "")
	require.NoError(t, err)
	_, err = payments.ConfirmPayment(context.Background(), adminActor(), p1.ID)
	require.NoError(t, err)

	actor := &models.CurrentUser{ID: "i1", Role: models.RoleInstructor}
	dashboard, err := dashboards.Instructor(actor)
	require.NoError(t, err)
	assert.Equal(t, 2, dashboard.Stats.TotalClasses)
	assert.Equal(t, 2, dashboard.Stats.TotalStudents)
	assert.InDelta(t, 1.0, dashboard.Stats.AverageClassSize, 1e-9)
	assert.InDelta(t, 14.0, dashboard.Stats.Revenue, 1e-9)

	attendance := dashboard.Stats.AttendanceByClass["c1"]
	assert.Equal(t, 2, attendance.Enrolled)
	assert.Equal(t, 1, attendance.Attended)
	assert.Equal(t, 50, attendance.AttendanceRate)

	// Students cannot use the instructor view.
	_, err = dashboards.Instructor(studentActor("s1"))
	assert.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))
}

func TestDashboardServiceAdmin(t *testing.T) {
	enrollments, payments, dashboards := newDashboardFixture(t, []models.ClassOffering{
		{ID: "c1", Title: "Yin", Price: 20, MaxStudents: 2, InstructorID: "i1"},
		{ID: "c2", Title: "Power", Price: 30, MaxStudents: 5, InstructorID: "i2"},
	})

	// c1 at 1/2 = 50 percent, c2 at 3/5 = 60 percent, mean 55 percent.
	e1, err := enrollments.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)
	for _, student := range []string{"s1", "s2", "s3"} {
		_, err := enrollments.Enroll(context.Background(), studentActor(student), "c2")
		require.NoError(t, err)
	}

	p1, err := payments.ProcessPayment(context.Background(), e1.ID, "")
	require.NoError(t, err)
	_, err = payments.ConfirmPayment(context.Background(), adminActor(), p1.ID)
	require.NoError(t, err)

	dashboard, err := dashboards.Admin(adminActor())
	require.NoError(t, err)

	stats := dashboard.Stats
	assert.Equal(t, 2, stats.TotalClasses)
	assert.Equal(t, 4, stats.TotalEnrollments)
	assert.Equal(t, 3, stats.TotalStudents)
	assert.Equal(t, 2, stats.TotalInstructors)
	assert.InDelta(t, 20.0, stats.TotalRevenue, 1e-9)
	assert.Equal(t, 1, stats.ConfirmedPayments)
	assert.Equal(t, 55, stats.ClassOccupancy)

	require.Len(t, stats.TopClasses, 2)
	assert.Equal(t, "Power", stats.TopClasses[0].Title)
	assert.Equal(t, 60, stats.TopClasses[0].Occupancy)

	require.Len(t, stats.RevenueByClass, 1)
	assert.Equal(t, "c1", stats.RevenueByClass[0].ClassID)
	assert.Equal(t, "Yin", stats.RevenueByClass[0].ClassName)

	// Dispatch picks the view matching the actor's role.
	view, err := dashboards.ForActor(adminActor())
	require.NoError(t, err)
	_, ok := view.(*models.AdminDashboard)
	assert.True(t, ok)
}
