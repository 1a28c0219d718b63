package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moodyoga/studio-api/internal/models"
	"github.com/moodyoga/studio-api/internal/store"
	"github.com/moodyoga/studio-api/pkg/config"
	appErrors "github.com/moodyoga/studio-api/pkg/errors"
)

// paymentEnrollments is the slice of the enrollment ledger payments need.
type paymentEnrollments interface {
	ByID(enrollmentID string) (*models.Enrollment, error)
	UpdatePaymentStatus(ctx context.Context, enrollmentID string, state models.PaymentState) (*models.Enrollment, error)
}

// paymentCatalog is the slice of the catalog payments need.
type paymentCatalog interface {
	GetByID(ctx context.Context, id string) (*models.ClassOffering, error)
	ByInstructor(instructorID string) []models.ClassOffering
}

// PaymentService owns the payment ledger. Amounts are snapshots of the
// class price at payment time and never change afterwards.
type PaymentService struct {
	mu       sync.Mutex
	payments []models.Payment

	store       store.Store
	enrollments paymentEnrollments
	catalog     paymentCatalog
	authz       Authorizer
	logger      *zap.Logger
	studio      config.StudioConfig
}

// NewPaymentService loads the ledger from the local store.
func NewPaymentService(st store.Store, enrollments paymentEnrollments, catalog paymentCatalog, studio config.StudioConfig, logger *zap.Logger) (*PaymentService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if studio.Currency == "" {
		studio.Currency = "USD"
	}
	if studio.InstructorShare <= 0 || studio.InstructorShare > 1 {
		studio.InstructorShare = 0.7
	}
	s := &PaymentService{store: st, enrollments: enrollments, catalog: catalog, studio: studio, logger: logger}

	var payments []models.Payment
	err := st.Load(context.Background(), store.KeyPayments, &payments)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	s.payments = payments
	return s, nil
}

// ProcessPayment creates a pending payment for an enrollment, snapshotting
// the class price, and flags the enrollment as payment-pending.
func (s *PaymentService) ProcessPayment(ctx context.Context, enrollmentID, paymentMethod string) (*models.Payment, error) {
	if paymentMethod == "" {
		paymentMethod = "bank_transfer"
	}

	enrollment, err := s.enrollments.ByID(enrollmentID)
	if err != nil {
		return nil, err
	}
	class, err := s.catalog.GetByID(ctx, enrollment.ClassID)
	if err != nil {
		return nil, err
	}

	payment := models.Payment{
		ID:            uuid.NewString(),
		EnrollmentID:  enrollmentID,
		StudentID:     enrollment.StudentID,
		ClassID:       enrollment.ClassID,
		Amount:        class.Price,
		Currency:      s.studio.Currency,
		PaymentMethod: paymentMethod,
		Status:        models.PaymentStatusPending,
		CreatedAt:     time.Now().UTC(),
		TransactionID: generateTransactionID(),
		Details: models.PaymentDetails{
			BankName:      "Main Bank",
			AccountNumber: "****1234",
			RoutingNumber: "****5678",
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.payments = append(s.payments, payment)
	if err := s.store.Save(ctx, store.KeyPayments, s.payments); err != nil {
		s.payments = s.payments[:len(s.payments)-1]
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist payments")
	}

	if _, err := s.enrollments.UpdatePaymentStatus(ctx, enrollmentID, models.PaymentStatePending); err != nil {
		s.logger.Warn("failed to flag enrollment as payment-pending", zap.String("enrollment_id", enrollmentID), zap.Error(err))
	}
	return &payment, nil
}

// ConfirmPayment marks a payment as received. Admin only. Confirmation is
// one-way: a failed payment cannot be confirmed, while re-confirming an
// already confirmed payment re-stamps the confirmation fields.
func (s *PaymentService) ConfirmPayment(ctx context.Context, actor *models.CurrentUser, paymentID string) (*models.Payment, error) {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexByIDLocked(paymentID)
	if idx == -1 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	if s.payments[idx].Status == models.PaymentStatusFailed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment already failed")
	}

	previous := s.payments[idx]
	now := time.Now().UTC()
	s.payments[idx].Status = models.PaymentStatusConfirmed
	s.payments[idx].ConfirmedAt = &now
	s.payments[idx].ConfirmedBy = actor.ID

	if err := s.store.Save(ctx, store.KeyPayments, s.payments); err != nil {
		s.payments[idx] = previous
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist payments")
	}

	if _, err := s.enrollments.UpdatePaymentStatus(ctx, s.payments[idx].EnrollmentID, models.PaymentStateCompleted); err != nil {
		s.logger.Warn("failed to flag enrollment as paid", zap.String("enrollment_id", s.payments[idx].EnrollmentID), zap.Error(err))
	}

	payment := s.payments[idx]
	return &payment, nil
}

// MarkFailed moves a pending payment to failed. Admin only.
func (s *PaymentService) MarkFailed(ctx context.Context, actor *models.CurrentUser, paymentID string) (*models.Payment, error) {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexByIDLocked(paymentID)
	if idx == -1 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	if s.payments[idx].Status != models.PaymentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only pending payments can be failed")
	}

	previous := s.payments[idx]
	s.payments[idx].Status = models.PaymentStatusFailed
	if err := s.store.Save(ctx, store.KeyPayments, s.payments); err != nil {
		s.payments[idx] = previous
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist payments")
	}
	payment := s.payments[idx]
	return &payment, nil
}

// MyHistory returns the actor's payments, empty when unauthenticated.
func (s *PaymentService) MyHistory(actor *models.CurrentUser) []models.Payment {
	if actor == nil {
		return []models.Payment{}
	}
	return s.ForStudent(actor.ID)
}

// Pending returns all pending payments for admins, and an empty list for
// any other caller.
func (s *PaymentService) Pending(actor *models.CurrentUser) []models.Payment {
	if !actor.HasRole(models.RoleAdmin) {
		return []models.Payment{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Payment{}
	for _, p := range s.payments {
		if p.Status == models.PaymentStatusPending {
			out = append(out, p)
		}
	}
	return out
}

// ByID returns the payment with the given id.
func (s *PaymentService) ByID(paymentID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexByIDLocked(paymentID)
	if idx == -1 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	payment := s.payments[idx]
	return &payment, nil
}

// ForStudent returns all payments made by one student.
func (s *PaymentService) ForStudent(studentID string) []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Payment{}
	for _, p := range s.payments {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out
}

// TotalRevenue sums confirmed payment amounts.
func (s *PaymentService) TotalRevenue() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalRevenueLocked()
}

// InstructorRevenue returns the instructor's share of confirmed revenue for
// the classes they teach. The share percentage comes from configuration.
func (s *PaymentService) InstructorRevenue(instructorID string) float64 {
	classIDs := make(map[string]struct{})
	for _, class := range s.catalog.ByInstructor(instructorID) {
		classIDs[class.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var revenue float64
	for _, p := range s.payments {
		if p.Status != models.PaymentStatusConfirmed {
			continue
		}
		if _, ok := classIDs[p.ClassID]; ok {
			revenue += p.Amount
		}
	}
	return revenue * s.studio.InstructorShare
}

// Stats summarises the ledger by status and revenue.
func (s *PaymentService) Stats() models.PaymentStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.PaymentStats{TotalPayments: len(s.payments)}
	for _, p := range s.payments {
		switch p.Status {
		case models.PaymentStatusConfirmed:
			stats.Confirmed++
		case models.PaymentStatusPending:
			stats.Pending++
		case models.PaymentStatusFailed:
			stats.Failed++
		}
	}
	stats.TotalRevenue = s.totalRevenueLocked()
	if len(s.payments) > 0 {
		stats.AveragePayment = stats.TotalRevenue / float64(len(s.payments))
	}
	return stats
}

// All returns the whole ledger in insertion order.
func (s *PaymentService) All() []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Payment, len(s.payments))
	copy(out, s.payments)
	return out
}

func (s *PaymentService) totalRevenueLocked() float64 {
	var total float64
	for _, p := range s.payments {
		if p.Status == models.PaymentStatusConfirmed {
			total += p.Amount
		}
	}
	return total
}

func (s *PaymentService) indexByIDLocked(paymentID string) int {
	for i := range s.payments {
		if s.payments[i].ID == paymentID {
			return i
		}
	}
	return -1
}

func generateTransactionID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:9]
	return fmt.Sprintf("TXN%d%s", time.Now().UnixMilli(), suffix)
}
