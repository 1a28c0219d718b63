package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodyoga/studio-api/internal/middleware"
	"github.com/moodyoga/studio-api/internal/models"
	"github.com/moodyoga/studio-api/internal/service"
	"github.com/moodyoga/studio-api/internal/store"
	"github.com/moodyoga/studio-api/pkg/config"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func newHandlerFixture(t *testing.T, classes []models.ClassOffering) (*service.CatalogService, *service.EnrollmentService, *ClassHandler, *EnrollmentHandler) {
	t.Helper()
	st := store.NewMemStore()
	require.NoError(t, st.Save(context.Background(), store.KeyClasses, classes))

	catalog, err := service.NewCatalogService(st, nil, nil, nil, false)
	require.NoError(t, err)
	enrollments, err := service.NewEnrollmentService(st, catalog, nil)
	require.NoError(t, err)
	payments, err := service.NewPaymentService(st, enrollments, catalog, config.StudioConfig{}, nil)
	require.NoError(t, err)
	export := service.NewExportService(catalog, enrollments, payments, nil)

	classHandler := NewClassHandler(catalog, export, nil)
	enrollmentHandler := NewEnrollmentHandler(enrollments, nil, nil)
	return catalog, enrollments, classHandler, enrollmentHandler
}

func setActor(c *gin.Context, id string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: role})
}

func TestClassHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, _, classHandler, _ := newHandlerFixture(t, []models.ClassOffering{
		{ID: "c1", Title: "Yin", MaxStudents: 5},
		{ID: "c2", Title: "Power", MaxStudents: 5},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/classes", nil)

	classHandler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.EqualValues(t, 2, envelope.Meta["count"])
}

func TestClassHandlerSearchValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, _, classHandler, _ := newHandlerFixture(t, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/classes/search?min_price=abc", nil)

	classHandler.Search(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassHandlerAvailability(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, _, classHandler, _ := newHandlerFixture(t, []models.ClassOffering{
		{ID: "c1", Title: "Yin", MaxStudents: 2, EnrolledStudentIDs: []string{"s1"}},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/classes/c1/availability", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}

	classHandler.Availability(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.EqualValues(t, 1, data["available_spots"])
	assert.Equal(t, false, data["full"])
}

func TestClassHandlerCreateRequiresAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, _, classHandler, _ := newHandlerFixture(t, nil)

	body := bytes.NewBufferString(`{"title":"Yin","price":15}`)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/classes", body)
	c.Request.Header.Set("Content-Type", "application/json")
	setActor(c, "s1", models.RoleStudent)

	classHandler.Create(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEnrollmentHandlerEnrollFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	catalog, _, _, enrollmentHandler := newHandlerFixture(t, []models.ClassOffering{
		{ID: "c1", Title: "Yin", MaxStudents: 1},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments", bytes.NewBufferString(`{"class_id":"c1"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	setActor(c, "s1", models.RoleStudent)

	enrollmentHandler.Enroll(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, catalog.IsFull("c1"))

	// A second student hits the capacity limit.
	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments", bytes.NewBufferString(`{"class_id":"c1"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	setActor(c, "s2", models.RoleStudent)

	enrollmentHandler.Enroll(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "CAPACITY_EXCEEDED", envelope.Error["code"])
}

func TestEnrollmentHandlerReportsLedgerSize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.NewMemStore()
	require.NoError(t, st.Save(context.Background(), store.KeyClasses, []models.ClassOffering{
		{ID: "c1", Title: "Yin", MaxStudents: 5},
	}))
	catalog, err := service.NewCatalogService(st, nil, nil, nil, false)
	require.NoError(t, err)
	enrollments, err := service.NewEnrollmentService(st, catalog, nil)
	require.NoError(t, err)
	metrics := service.NewMetricsService()
	h := NewEnrollmentHandler(enrollments, metrics, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments", bytes.NewBufferString(`{"class_id":"c1"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	setActor(c, "s1", models.RoleStudent)

	h.Enroll(c)
	require.Equal(t, http.StatusCreated, rec.Code)

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()
	assert.Contains(t, body, `ledger_records{ledger="enrollments"} 1`)
	assert.Contains(t, body, "enrollments_created_total 1")
}

func TestEnrollmentHandlerEnrollRequiresClassID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, _, _, enrollmentHandler := newHandlerFixture(t, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments", bytes.NewBufferString(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")
	setActor(c, "s1", models.RoleStudent)

	enrollmentHandler.Enroll(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
