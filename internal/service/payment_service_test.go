package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodyoga/studio-api/internal/models"
	"github.com/moodyoga/studio-api/pkg/config"
	appErrors "github.com/moodyoga/studio-api/pkg/errors"
)

func newPaymentFixture(t *testing.T, classes []models.ClassOffering) (*EnrollmentService, *PaymentService) {
	t.Helper()
	st := seedStore(t, classes)
	catalog, err := NewCatalogService(st, nil, nil, nil, false)
	require.NoError(t, err)
	enrollments, err := NewEnrollmentService(st, catalog, nil)
	require.NoError(t, err)
	payments, err := NewPaymentService(st, enrollments, catalog, config.StudioConfig{}, nil)
	require.NoError(t, err)
	return enrollments, payments
}

func TestPaymentServiceProcess(t *testing.T) {
	enrollments, payments := newPaymentFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", Price: 20, MaxStudents: 5}})

	enrollment, err := enrollments.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)

	payment, err := payments.ProcessPayment(context.Background(), enrollment.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 20.0, payment.Amount)
	assert.Equal(t, "USD", payment.Currency)
	assert.Equal(t, "bank_transfer", payment.PaymentMethod)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.True(t, strings.HasPrefix(payment.TransactionID, "TXN"))
	assert.Equal(t, "s1", payment.StudentID)

	refreshed, err := enrollments.ByID(enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatePending, refreshed.PaymentStatus)
}

func TestPaymentServiceProcessUnknownEnrollment(t *testing.T) {
	_, payments := newPaymentFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", Price: 20, MaxStudents: 5}})

	_, err := payments.ProcessPayment(context.Background(), "missing", "")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestPaymentServiceConfirm(t *testing.T) {
	enrollments, payments := newPaymentFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", Price: 20, MaxStudents: 5}})

	enrollment, err := enrollments.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)
	payment, err := payments.ProcessPayment(context.Background(), enrollment.ID, "cash")
	require.NoError(t, err)

	_, err = payments.ConfirmPayment(context.Background(), studentActor("s1"), payment.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))

	confirmed, err := payments.ConfirmPayment(context.Background(), adminActor(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, "admin_1", confirmed.ConfirmedBy)

	refreshed, err := enrollments.ByID(enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStateCompleted, refreshed.PaymentStatus)

	// Re-confirming is allowed and just re-stamps the confirmation.
	again, err := payments.ConfirmPayment(context.Background(), adminActor(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusConfirmed, again.Status)
}

func TestPaymentServiceConfirmFailedIsConflict(t *testing.T) {
	enrollments, payments := newPaymentFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", Price: 20, MaxStudents: 5}})

	enrollment, err := enrollments.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)
	payment, err := payments.ProcessPayment(context.Background(), enrollment.ID, "")
	require.NoError(t, err)

	_, err = payments.MarkFailed(context.Background(), adminActor(), payment.ID)
	require.NoError(t, err)

	_, err = payments.ConfirmPayment(context.Background(), adminActor(), payment.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestPaymentServiceMarkFailedPendingOnly(t *testing.T) {
	enrollments, payments := newPaymentFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", Price: 20, MaxStudents: 5}})

	enrollment, err := enrollments.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)
	payment, err := payments.ProcessPayment(context.Background(), enrollment.ID, "")
	require.NoError(t, err)

	_, err = payments.ConfirmPayment(context.Background(), adminActor(), payment.ID)
	require.NoError(t, err)

	_, err = payments.MarkFailed(context.Background(), adminActor(), payment.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestPaymentServiceAmountIsSnapshot(t *testing.T) {
	st := seedStore(t, []models.ClassOffering{{ID: "c1", Title: "Yin", Price: 20, MaxStudents: 5}})
	catalog, err := NewCatalogService(st, nil, nil, nil, false)
	require.NoError(t, err)
	enrollments, err := NewEnrollmentService(st, catalog, nil)
	require.NoError(t, err)
	payments, err := NewPaymentService(st, enrollments, catalog, config.StudioConfig{}, nil)
	require.NoError(t, err)

	enrollment, err := enrollments.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)
	payment, err := payments.ProcessPayment(context.Background(), enrollment.ID, "")
	require.NoError(t, err)

	newPrice := 99.0
	_, err = catalog.Update(context.Background(), adminActor(), "c1", UpdateClassRequest{Price: &newPrice})
	require.NoError(t, err)

	confirmed, err := payments.ConfirmPayment(context.Background(), adminActor(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, confirmed.Amount)
	assert.Equal(t, 20.0, payments.TotalRevenue())
}

func TestPaymentServiceInstructorRevenue(t *testing.T) {
	enrollments, payments := newPaymentFixture(t, []models.ClassOffering{
		{ID: "c1", Title: "Yin", Price: 20, MaxStudents: 5, InstructorID: "i1"},
		{ID: "c2", Title: "Power", Price: 30, MaxStudents: 5, InstructorID: "i2"},
	})

	e1, err := enrollments.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)
	e2, err := enrollments.Enroll(context.Background(), studentActor("s1"), "c2")
	require.NoError(t, err)

	p1, err := payments.ProcessPayment(context.Background(), e1.ID, "")
	require.NoError(t, err)
	p2, err := payments.ProcessPayment(context.Background(), e2.ID, "")
	require.NoError(t, err)

	_, err = payments.ConfirmPayment(context.Background(), adminActor(), p1.ID)
	require.NoError(t, err)
	_, err = payments.ConfirmPayment(context.Background(), adminActor(), p2.ID)
	require.NoError(t, err)

	// 70 percent of the 20.0 confirmed for i1's class.
	assert.InDelta(t, 14.0, payments.InstructorRevenue("i1"), 1e-9)
	assert.InDelta(t, 21.0, payments.InstructorRevenue("i2"), 1e-9)
	assert.InDelta(t, 50.0, payments.TotalRevenue(), 1e-9)
}

func TestPaymentServiceStatsAndPending(t *testing.T) {
	enrollments, payments := newPaymentFixture(t, []models.ClassOffering{{ID: "c1", Title: "Yin", Price: 10, MaxStudents: 5}})

	for _, student := range []string{"s1", "s2", "s3"} {
		e, err := enrollments.Enroll(context.Background(), studentActor(student), "c1")
		require.NoError(t, err)
		_, err = payments.ProcessPayment(context.Background(), e.ID, "")
		require.NoError(t, err)
	}

	pending := payments.Pending(adminActor())
	require.Len(t, pending, 3)

	// Non-admins see nothing rather than an error.
	assert.Empty(t, payments.Pending(studentActor("s1")))

	_, err := payments.ConfirmPayment(context.Background(), adminActor(), pending[0].ID)
	require.NoError(t, err)

	stats := payments.Stats()
	assert.Equal(t, 3, stats.TotalPayments)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, 2, stats.Pending)
	assert.InDelta(t, 10.0, stats.TotalRevenue, 1e-9)
}
