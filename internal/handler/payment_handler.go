package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moodyoga/studio-api/internal/models"
	"github.com/moodyoga/studio-api/internal/service"
	"github.com/moodyoga/studio-api/internal/store"
	appErrors "github.com/moodyoga/studio-api/pkg/errors"
	"github.com/moodyoga/studio-api/pkg/response"
)

// PaymentHandler wires HTTP endpoints to the payment ledger.
type PaymentHandler struct {
	payments *service.PaymentService
	metrics  *service.MetricsService
}

// NewPaymentHandler creates a new handler.
func NewPaymentHandler(payments *service.PaymentService, metrics *service.MetricsService) *PaymentHandler {
	return &PaymentHandler{payments: payments, metrics: metrics}
}

// Process godoc
// @Summary Process payment
// @Description Creates a pending payment for an enrollment, snapshotting the class price
// @Tags Payments
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Process(c *gin.Context) {
	var payload struct {
		EnrollmentID  string `json:"enrollment_id" binding:"required"`
		PaymentMethod string `json:"payment_method"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "enrollment_id is required"))
		return
	}

	payment, err := h.payments.ProcessPayment(c.Request.Context(), payload.EnrollmentID, payload.PaymentMethod)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordPayment(string(models.PaymentStatusPending))
	h.metrics.SetLedgerSize(store.KeyPayments, len(h.payments.All()))
	response.Created(c, payment)
}

// Confirm godoc
// @Summary Confirm payment
// @Description Admin only. Marks a pending payment as received
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/{id}/confirm [post]
func (h *PaymentHandler) Confirm(c *gin.Context) {
	payment, err := h.payments.ConfirmPayment(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordPayment(string(models.PaymentStatusConfirmed))
	response.JSON(c, http.StatusOK, payment, nil)
}

// Fail godoc
// @Summary Mark payment failed
// @Description Admin only. Moves a pending payment to failed
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/{id}/fail [post]
func (h *PaymentHandler) Fail(c *gin.Context) {
	payment, err := h.payments.MarkFailed(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordPayment(string(models.PaymentStatusFailed))
	response.JSON(c, http.StatusOK, payment, nil)
}

// Mine godoc
// @Summary My payment history
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/me [get]
func (h *PaymentHandler) Mine(c *gin.Context) {
	payments := h.payments.MyHistory(actorFromContext(c))
	response.JSON(c, http.StatusOK, payments, map[string]interface{}{"count": len(payments)})
}

// Pending godoc
// @Summary Pending payments
// @Description Admin only view of payments awaiting confirmation
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/pending [get]
func (h *PaymentHandler) Pending(c *gin.Context) {
	payments := h.payments.Pending(actorFromContext(c))
	response.JSON(c, http.StatusOK, payments, map[string]interface{}{"count": len(payments)})
}

// Get godoc
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.payments.ByID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Stats godoc
// @Summary Payment statistics
// @Description Admin only ledger summary
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/stats [get]
func (h *PaymentHandler) Stats(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.payments.Stats(), nil)
}
