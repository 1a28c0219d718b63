package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/moodyoga/studio-api/internal/models"
	"github.com/moodyoga/studio-api/pkg/export"
)

type exportCatalog interface {
	Cached() []models.ClassOffering
	GetByID(ctx context.Context, id string) (*models.ClassOffering, error)
}

type exportEnrollments interface {
	ForClass(classID string) []models.Enrollment
}

type exportPayments interface {
	All() []models.Payment
}

// ExportFormat selects the rendered document type.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportResult carries the rendered bytes plus the metadata handlers need to
// set response headers.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders rosters and revenue reports as downloadable files.
type ExportService struct {
	catalog     exportCatalog
	enrollments exportEnrollments
	payments    exportPayments
	authz       Authorizer
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(catalog exportCatalog, enrollments exportEnrollments, payments exportPayments, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		catalog:     catalog,
		enrollments: enrollments,
		payments:    payments,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// ClassRoster exports the enrollment roster of one class. Admins may export
// any roster; instructors only their own classes.
func (s *ExportService) ClassRoster(ctx context.Context, actor *models.CurrentUser, classID string, format ExportFormat) (*ExportResult, error) {
	class, err := s.catalog.GetByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.RequireClassOwnerOrAdmin(actor, class); err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Student ID", "Enrolled At", "Status", "Attended", "Payment"},
	}
	for _, e := range s.enrollments.ForClass(classID) {
		attended := "no"
		if e.Attended {
			attended = "yes"
		}
		dataset.Rows = append(dataset.Rows, []string{
			e.StudentID,
			e.EnrollmentDate.Format(time.RFC3339),
			string(e.Status),
			attended,
			string(e.PaymentStatus),
		})
	}

	return s.render(dataset, format, "roster_"+classID, "Roster: "+class.Title)
}

// RevenueReport exports confirmed revenue per class. Admin only.
func (s *ExportService) RevenueReport(ctx context.Context, actor *models.CurrentUser, format ExportFormat) (*ExportResult, error) {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return nil, err
	}

	titles := make(map[string]string)
	for _, c := range s.catalog.Cached() {
		titles[c.ID] = c.Title
	}

	totals := make(map[string]float64)
	order := []string{}
	for _, p := range s.payments.All() {
		if p.Status != models.PaymentStatusConfirmed {
			continue
		}
		if _, seen := totals[p.ClassID]; !seen {
			order = append(order, p.ClassID)
		}
		totals[p.ClassID] += p.Amount
	}

	dataset := export.Dataset{Headers: []string{"Class ID", "Class", "Revenue"}}
	for _, classID := range order {
		name := titles[classID]
		if name == "" {
			name = "Unknown"
		}
		dataset.Rows = append(dataset.Rows, []string{classID, name, fmt.Sprintf("%.2f", totals[classID])})
	}

	return s.render(dataset, format, "revenue_by_class", "Revenue by Class")
}

func (s *ExportService) render(dataset export.Dataset, format ExportFormat, baseName, title string) (*ExportResult, error) {
	switch format {
	case FormatPDF:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, err
		}
		return &ExportResult{FileName: baseName + ".pdf", ContentType: "application/pdf", Data: data}, nil
	case FormatCSV, "":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, err
		}
		return &ExportResult{FileName: baseName + ".csv", ContentType: "text/csv", Data: data}, nil
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}
