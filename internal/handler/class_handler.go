package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moodyoga/studio-api/internal/models"
	"github.com/moodyoga/studio-api/internal/service"
	appErrors "github.com/moodyoga/studio-api/pkg/errors"
	"github.com/moodyoga/studio-api/pkg/response"
)

// ClassHandler wires HTTP endpoints to the class catalog.
type ClassHandler struct {
	catalog *service.CatalogService
	export  *service.ExportService
	// invalidate is called after every successful catalog mutation.
	invalidate func(c *gin.Context)
}

// NewClassHandler creates a new handler. The invalidate hook may be nil.
func NewClassHandler(catalog *service.CatalogService, export *service.ExportService, invalidate func(c *gin.Context)) *ClassHandler {
	if invalidate == nil {
		invalidate = func(*gin.Context) {}
	}
	return &ClassHandler{catalog: catalog, export: export, invalidate: invalidate}
}

// List godoc
// @Summary List classes
// @Description Returns all class offerings, refreshed from the remote catalog when available
// @Tags Classes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	classes := h.catalog.GetAll(c.Request.Context())

	meta := map[string]interface{}{"count": len(classes)}
	if at, err := h.catalog.LastSync(); !at.IsZero() {
		meta["synced_at"] = at
		if err != nil {
			meta["sync_degraded"] = true
		}
	}
	response.JSON(c, http.StatusOK, classes, meta)
}

// Search godoc
// @Summary Search classes
// @Description Filter the cached catalog by text, difficulty, day, price range and availability
// @Tags Classes
// @Produce json
// @Param q query string false "Free text over title, instructor and description"
// @Param difficulty query string false "Difficulty level"
// @Param day query string false "Schedule day"
// @Param min_price query number false "Minimum price"
// @Param max_price query number false "Maximum price"
// @Param available query bool false "Only classes with free spots"
// @Success 200 {object} response.Envelope
// @Router /classes/search [get]
func (h *ClassHandler) Search(c *gin.Context) {
	filter := models.ClassFilter{
		Search:     c.Query("q"),
		Difficulty: c.Query("difficulty"),
		Day:        c.Query("day"),
	}
	if raw := c.Query("min_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "min_price must be a number"))
			return
		}
		filter.MinPrice = &v
	}
	if raw := c.Query("max_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "max_price must be a number"))
			return
		}
		filter.MaxPrice = &v
	}
	if raw := c.Query("available"); raw != "" {
		filter.AvailableOnly = raw == "true" || raw == "1"
	}

	classes := h.catalog.Search(filter)
	response.JSON(c, http.StatusOK, classes, map[string]interface{}{"count": len(classes)})
}

// Get godoc
// @Summary Get class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.catalog.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Availability godoc
// @Summary Class availability
// @Description Returns remaining spots and whether the class is full
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/availability [get]
func (h *ClassHandler) Availability(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.catalog.GetByID(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"class_id":        id,
		"available_spots": h.catalog.AvailableSpots(id),
		"full":            h.catalog.IsFull(id),
	}, nil)
}

// Create godoc
// @Summary Create class
// @Description Admin only. Creates a class offering and pushes it to the remote catalog
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class payload"))
		return
	}

	class, err := h.catalog.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidate(c)
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Description Admin only. Partial update of a class offering
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.UpdateClassRequest true "Fields to update"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	var req service.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class payload"))
		return
	}

	class, err := h.catalog.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidate(c)
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Delete class
// @Description Admin only. Removes the offering; enrollments referencing it are kept
// @Tags Classes
// @Param id path string true "Class ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.invalidate(c)
	response.NoContent(c)
}

// Roster godoc
// @Summary Export class roster
// @Description Owning instructor or admin. Downloads the roster as CSV or PDF
// @Tags Classes
// @Produce text/csv
// @Param id path string true "Class ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /classes/{id}/roster [get]
func (h *ClassHandler) Roster(c *gin.Context) {
	result, err := h.export.ClassRoster(c.Request.Context(), actorFromContext(c), c.Param("id"), service.ExportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
