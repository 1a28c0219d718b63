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

func newExportFixture(t *testing.T) (*EnrollmentService, *PaymentService, *ExportService) {
	t.Helper()
	st := seedStore(t, []models.ClassOffering{
		{ID: "c1", Title: "Yin", Price: 20, MaxStudents: 5, InstructorID: "i1"},
	})
	catalog, err := NewCatalogService(st, nil, nil, nil, false)
	require.NoError(t, err)
	enrollments, err := NewEnrollmentService(st, catalog, nil)
	require.NoError(t, err)
	payments, err := NewPaymentService(st, enrollments, catalog, config.StudioConfig{}, nil)
	require.NoError(t, err)
	return enrollments, payments, NewExportService(catalog, enrollments, payments, nil)
}

func TestExportServiceClassRosterCSV(t *testing.T) {
	enrollments, _, export := newExportFixture(t)

	_, err := enrollments.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)

	owner := &models.CurrentUser{ID: "i1", Role: models.RoleInstructor}
	result, err := export.ClassRoster(context.Background(), owner, "c1", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "roster_c1.csv", result.FileName)
	assert.Equal(t, "text/csv", result.ContentType)

	body := string(result.Data)
	assert.True(t, strings.HasPrefix(body, "Student ID,"))
	assert.Contains(t, body, "s1")
}

func TestExportServiceClassRosterOwnership(t *testing.T) {
	_, _, export := newExportFixture(t)

	other := &models.CurrentUser{ID: "i2", Role: models.RoleInstructor}
	_, err := export.ClassRoster(context.Background(), other, "c1", FormatCSV)
	assert.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))

	_, err = export.ClassRoster(context.Background(), adminActor(), "missing", FormatCSV)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExportServiceRevenueReport(t *testing.T) {
	enrollments, payments, export := newExportFixture(t)

	e1, err := enrollments.Enroll(context.Background(), studentActor("s1"), "c1")
	require.NoError(t, err)
	p1, err := payments.ProcessPayment(context.Background(), e1.ID, "")
	require.NoError(t, err)
	_, err = payments.ConfirmPayment(context.Background(), adminActor(), p1.ID)
	require.NoError(t, err)

	_, err = export.RevenueReport(context.Background(), studentActor("s1"), FormatCSV)
	assert.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))

	result, err := export.RevenueReport(context.Background(), adminActor(), FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(result.Data), "Yin,20.00")

	pdf, err := export.RevenueReport(context.Background(), adminActor(), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.NotEmpty(t, pdf.Data)
}

func TestExportServiceUnknownFormat(t *testing.T) {
	_, _, export := newExportFixture(t)

	_, err := export.RevenueReport(context.Background(), adminActor(), ExportFormat("xml"))
	assert.Error(t, err)
}
