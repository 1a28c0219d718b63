package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moodyoga/studio-api/internal/service"
	"github.com/moodyoga/studio-api/internal/store"
	appErrors "github.com/moodyoga/studio-api/pkg/errors"
	"github.com/moodyoga/studio-api/pkg/response"
)

// EnrollmentHandler wires HTTP endpoints to the enrollment ledger.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	metrics     *service.MetricsService
	invalidate  func(c *gin.Context)
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, metrics *service.MetricsService, invalidate func(c *gin.Context)) *EnrollmentHandler {
	if invalidate == nil {
		invalidate = func(*gin.Context) {}
	}
	return &EnrollmentHandler{enrollments: enrollments, metrics: metrics, invalidate: invalidate}
}

// Enroll godoc
// @Summary Enroll in a class
// @Description Students only. Fails on unknown class, full class or duplicate enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var payload struct {
		ClassID string `json:"class_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "class_id is required"))
		return
	}

	enrollment, err := h.enrollments.Enroll(c.Request.Context(), actorFromContext(c), payload.ClassID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordEnrollment()
	h.metrics.SetLedgerSize(store.KeyEnrollments, len(h.enrollments.All()))
	h.invalidate(c)
	response.Created(c, enrollment)
}

// Drop godoc
// @Summary Drop a class
// @Description Deletes the caller's enrollment and frees the spot
// @Tags Enrollments
// @Param classId path string true "Class ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{classId} [delete]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	if err := h.enrollments.Drop(c.Request.Context(), actorFromContext(c), c.Param("classId")); err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.SetLedgerSize(store.KeyEnrollments, len(h.enrollments.All()))
	h.invalidate(c)
	response.NoContent(c)
}

// Mine godoc
// @Summary My enrollments
// @Description Returns the caller's enrollments joined with class details
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments/me [get]
func (h *EnrollmentHandler) Mine(c *gin.Context) {
	details := h.enrollments.MyEnrollmentsWithDetails(c.Request.Context(), actorFromContext(c))
	response.JSON(c, http.StatusOK, details, map[string]interface{}{"count": len(details)})
}

// ForClass godoc
// @Summary Enrollments of a class
// @Tags Enrollments
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/enrollments [get]
func (h *EnrollmentHandler) ForClass(c *gin.Context) {
	enrollments := h.enrollments.ForClass(c.Param("id"))
	response.JSON(c, http.StatusOK, enrollments, map[string]interface{}{"count": len(enrollments)})
}

// UpdateAttendance godoc
// @Summary Update attendance
// @Description Admin, or the instructor owning the class
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/attendance [put]
func (h *EnrollmentHandler) UpdateAttendance(c *gin.Context) {
	var payload struct {
		Attended *bool `json:"attended" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "attended is required"))
		return
	}

	enrollment, err := h.enrollments.UpdateAttendance(c.Request.Context(), actorFromContext(c), c.Param("id"), *payload.Attended)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
