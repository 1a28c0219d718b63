package service

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/moodyoga/studio-api/internal/models"
	"github.com/moodyoga/studio-api/pkg/config"
	appErrors "github.com/moodyoga/studio-api/pkg/errors"
)

// dashboardCatalog is the read-only slice of the catalog dashboards need.
type dashboardCatalog interface {
	Cached() []models.ClassOffering
	ByInstructor(instructorID string) []models.ClassOffering
}

// dashboardEnrollments is the read-only slice of the enrollment ledger.
type dashboardEnrollments interface {
	All() []models.Enrollment
	ForStudent(studentID string) []models.Enrollment
	ForClass(classID string) []models.Enrollment
}

// dashboardPayments is the read-only slice of the payment ledger.
type dashboardPayments interface {
	All() []models.Payment
	ForStudent(studentID string) []models.Payment
	Pending(actor *models.CurrentUser) []models.Payment
	Stats() models.PaymentStats
	InstructorRevenue(instructorID string) float64
}

// DashboardService derives the per-role views from the three ledgers. It
// holds no state of its own; every call recomputes from current ledger
// contents.
type DashboardService struct {
	catalog     dashboardCatalog
	enrollments dashboardEnrollments
	payments    dashboardPayments
	authz       Authorizer
	logger      *zap.Logger
	studio      config.StudioConfig
}

// NewDashboardService constructs the read-side aggregator.
func NewDashboardService(catalog dashboardCatalog, enrollments dashboardEnrollments, payments dashboardPayments, studio config.StudioConfig, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if studio.UpcomingLimit <= 0 {
		studio.UpcomingLimit = 3
	}
	if studio.TopClassesLimit <= 0 {
		studio.TopClassesLimit = 5
	}
	return &DashboardService{catalog: catalog, enrollments: enrollments, payments: payments, studio: studio, logger: logger}
}

// ForActor dispatches to the role-specific dashboard.
func (s *DashboardService) ForActor(actor *models.CurrentUser) (interface{}, error) {
	if err := s.authz.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RoleStudent:
		return s.Student(actor)
	case models.RoleInstructor:
		return s.Instructor(actor)
	case models.RoleAdmin:
		return s.Admin(actor)
	}
	return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "no dashboard for role "+string(actor.Role))
}

// Student builds the student view.
func (s *DashboardService) Student(actor *models.CurrentUser) (*models.StudentDashboard, error) {
	if err := s.authz.RequireAuthenticated(actor); err != nil {
		return nil, err
	}

	enrollments := s.enrollments.ForStudent(actor.ID)
	payments := s.payments.ForStudent(actor.ID)

	var spent float64
	pending := 0
	for _, p := range payments {
		switch p.Status {
		case models.PaymentStatusConfirmed:
			spent += p.Amount
		case models.PaymentStatusPending:
			pending++
		}
	}

	// Upcoming keeps insertion order rather than schedule order.
	upcoming := enrollments
	if len(upcoming) > s.studio.UpcomingLimit {
		upcoming = upcoming[:s.studio.UpcomingLimit]
	}
	recent := payments
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}

	return &models.StudentDashboard{
		Role: models.RoleStudent,
		User: *actor,
		Stats: models.StudentStats{
			EnrolledClasses: len(enrollments),
			TotalSpent:      spent,
			PendingPayments: pending,
			AttendanceRate:  attendanceRate(enrollments),
			UpcomingClasses: upcoming,
			RecentPayments:  recent,
		},
		Enrollments: enrollments,
	}, nil
}

// Instructor builds the instructor view.
func (s *DashboardService) Instructor(actor *models.CurrentUser) (*models.InstructorDashboard, error) {
	if err := s.authz.RequireRole(actor, models.RoleInstructor); err != nil {
		return nil, err
	}

	classes := s.catalog.ByInstructor(actor.ID)
	totalStudents := 0
	for _, c := range classes {
		totalStudents += len(c.EnrolledStudentIDs)
	}

	var avgSize float64
	if len(classes) > 0 {
		avgSize = float64(totalStudents) / float64(len(classes))
	}

	attendance := make(map[string]models.ClassAttendance, len(classes))
	for _, c := range classes {
		enrollments := s.enrollments.ForClass(c.ID)
		attended := 0
		for _, e := range enrollments {
			if e.Attended {
				attended++
			}
		}
		rate := 0
		if len(enrollments) > 0 {
			rate = int(math.Round(float64(attended) / float64(len(enrollments)) * 100))
		}
		attendance[c.ID] = models.ClassAttendance{
			ClassTitle:     c.Title,
			Enrolled:       len(enrollments),
			Attended:       attended,
			AttendanceRate: rate,
		}
	}

	return &models.InstructorDashboard{
		Role: models.RoleInstructor,
		User: *actor,
		Stats: models.InstructorStats{
			TotalClasses:      len(classes),
			TotalStudents:     totalStudents,
			Revenue:           s.payments.InstructorRevenue(actor.ID),
			AverageClassSize:  avgSize,
			AttendanceByClass: attendance,
		},
		Classes: classes,
	}, nil
}

// Admin builds the studio-wide view.
func (s *DashboardService) Admin(actor *models.CurrentUser) (*models.AdminDashboard, error) {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return nil, err
	}

	classes := s.catalog.Cached()
	enrollments := s.enrollments.All()
	stats := s.payments.Stats()

	students := make(map[string]struct{})
	for _, e := range enrollments {
		students[e.StudentID] = struct{}{}
	}
	instructors := make(map[string]struct{})
	for _, c := range classes {
		instructors[c.InstructorID] = struct{}{}
	}

	return &models.AdminDashboard{
		Role: models.RoleAdmin,
		User: *actor,
		Stats: models.AdminStats{
			TotalClasses:      len(classes),
			TotalEnrollments:  len(enrollments),
			TotalStudents:     len(students),
			TotalInstructors:  len(instructors),
			TotalRevenue:      stats.TotalRevenue,
			PendingPayments:   stats.Pending,
			ConfirmedPayments: stats.Confirmed,
			ClassOccupancy:    averageOccupancy(classes),
			TopClasses:        s.topClasses(classes),
			RevenueByClass:    s.revenueByClass(classes),
			PendingList:       s.payments.Pending(actor),
		},
		Classes:     classes,
		Enrollments: enrollments,
	}, nil
}

func (s *DashboardService) topClasses(classes []models.ClassOffering) []models.TopClass {
	ranked := make([]models.ClassOffering, len(classes))
	copy(ranked, classes)
	sort.SliceStable(ranked, func(i, j int) bool {
		return len(ranked[i].EnrolledStudentIDs) > len(ranked[j].EnrolledStudentIDs)
	})
	if len(ranked) > s.studio.TopClassesLimit {
		ranked = ranked[:s.studio.TopClassesLimit]
	}

	out := make([]models.TopClass, 0, len(ranked))
	for _, c := range ranked {
		occupancy := 0
		if c.MaxStudents > 0 {
			occupancy = int(math.Round(float64(len(c.EnrolledStudentIDs)) / float64(c.MaxStudents) * 100))
		}
		out = append(out, models.TopClass{
			Title:       c.Title,
			Enrollments: len(c.EnrolledStudentIDs),
			Capacity:    c.MaxStudents,
			Occupancy:   occupancy,
		})
	}
	return out
}

func (s *DashboardService) revenueByClass(classes []models.ClassOffering) []models.ClassRevenue {
	titles := make(map[string]string, len(classes))
	for _, c := range classes {
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

	out := make([]models.ClassRevenue, 0, len(order))
	for _, classID := range order {
		name, ok := titles[classID]
		if !ok {
			name = "Unknown"
		}
		out = append(out, models.ClassRevenue{ClassID: classID, ClassName: name, Revenue: totals[classID]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue > out[j].Revenue })
	return out
}

func attendanceRate(enrollments []models.Enrollment) int {
	if len(enrollments) == 0 {
		return 0
	}
	attended := 0
	for _, e := range enrollments {
		if e.Attended {
			attended++
		}
	}
	return int(math.Round(float64(attended) / float64(len(enrollments)) * 100))
}

func averageOccupancy(classes []models.ClassOffering) int {
	if len(classes) == 0 {
		return 0
	}
	var sum float64
	for _, c := range classes {
		if c.MaxStudents > 0 {
			sum += float64(len(c.EnrolledStudentIDs)) / float64(c.MaxStudents)
		}
	}
	return int(math.Round(sum / float64(len(classes)) * 100))
}
