package models

import "time"

// PaymentStatus is the ledger state of a payment record.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentDetails carries the manual bank-transfer instructions shown to the
// student after initiating a payment.
type PaymentDetails struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number"`
}

// Payment is an immutable-amount payment record tied to an enrollment.
// Status only ever moves pending -> confirmed or pending -> failed.
type Payment struct {
	ID            string         `json:"id"`
	EnrollmentID  string         `json:"enrollment_id"`
	StudentID     string         `json:"student_id"`
	ClassID       string         `json:"class_id"`
	Amount        float64        `json:"amount"`
	Currency      string         `json:"currency"`
	PaymentMethod string         `json:"payment_method"`
	Status        PaymentStatus  `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	TransactionID string         `json:"transaction_id"`
	ConfirmedAt   *time.Time     `json:"confirmed_at,omitempty"`
	ConfirmedBy   string         `json:"confirmed_by,omitempty"`
	Details       PaymentDetails `json:"payment_details"`
}

// PaymentStats summarises the payment ledger.
type PaymentStats struct {
	TotalPayments  int     `json:"total_payments"`
	Confirmed      int     `json:"confirmed"`
	Pending        int     `json:"pending"`
	Failed         int     `json:"failed"`
	TotalRevenue   float64 `json:"total_revenue"`
	AveragePayment float64 `json:"average_payment"`
}
