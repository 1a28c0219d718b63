package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moodyoga/studio-api/internal/models"
	"github.com/moodyoga/studio-api/internal/store"
	appErrors "github.com/moodyoga/studio-api/pkg/errors"
)

// ScheduleInput is the schedule part of class payloads.
type ScheduleInput struct {
	Day  string `json:"day"`
	Time string `json:"time"`
}

// CreateClassRequest describes a new class offering. Missing fields take the
// documented defaults during normalisation.
type CreateClassRequest struct {
	Title           string         `json:"title" validate:"required"`
	InstructorName  string         `json:"instructor_name"`
	InstructorID    string         `json:"instructor_id"`
	Description     string         `json:"description"`
	Difficulty      string         `json:"difficulty"`
	Price           float64        `json:"price" validate:"gte=0"`
	DurationMinutes int            `json:"duration_minutes" validate:"gte=0"`
	Schedule        *ScheduleInput `json:"schedule"`
	MaxStudents     int            `json:"max_students" validate:"gte=0"`
}

// UpdateClassRequest is a partial update: only supplied fields are coerced
// and merged.
type UpdateClassRequest struct {
	Title           *string        `json:"title"`
	InstructorName  *string        `json:"instructor_name"`
	InstructorID    *string        `json:"instructor_id"`
	Description     *string        `json:"description"`
	Difficulty      *string        `json:"difficulty"`
	Price           *float64       `json:"price"`
	DurationMinutes *int           `json:"duration_minutes"`
	Schedule        *ScheduleInput `json:"schedule"`
	MaxStudents     *int           `json:"max_students"`
}

// CatalogService owns the class offering collection. It is a passive store
// with respect to enrollment membership: capacity is enforced by the
// enrollment ledger through AddMember.
type CatalogService struct {
	mu      sync.RWMutex
	classes []models.ClassOffering

	store     store.Store
	remote    store.CatalogRemote
	authz     Authorizer
	validator *validator.Validate
	logger    *zap.Logger

	syncMu      sync.Mutex
	lastSyncErr error
	lastSyncAt  time.Time
}

// NewCatalogService loads the catalog from the local store. When the store
// holds nothing and seeding is enabled, the default studio timetable is
// installed so the API is usable out of the box.
func NewCatalogService(st store.Store, remote store.CatalogRemote, validate *validator.Validate, logger *zap.Logger, seed bool) (*CatalogService, error) {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CatalogService{store: st, remote: remote, validator: validate, logger: logger}

	var classes []models.ClassOffering
	err := st.Load(context.Background(), store.KeyClasses, &classes)
	switch {
	case err == nil:
		s.classes = classes
	case errors.Is(err, store.ErrNotFound):
		if seed {
			s.classes = seedClasses()
			if err := st.Save(context.Background(), store.KeyClasses, s.classes); err != nil {
				return nil, err
			}
		}
	default:
		return nil, err
	}
	return s, nil
}

// GetAll returns the full catalog. With a remote source configured the
// remote is queried first; a non-empty result replaces and persists over the
// local cache, while an empty or failing remote falls back to the cache. No
// error escapes: sync failures are logged and recorded for /ready.
func (s *CatalogService) GetAll(ctx context.Context) []models.ClassOffering {
	if s.remote != nil {
		remoteClasses, err := s.remote.FetchAll(ctx)
		s.recordSync(err)
		if err != nil {
			s.logger.Warn("remote catalog unavailable, serving cached classes", zap.Error(err))
		} else if len(remoteClasses) > 0 {
			s.mu.Lock()
			s.classes = remoteClasses
			if saveErr := s.store.Save(ctx, store.KeyClasses, s.classes); saveErr != nil {
				s.logger.Error("failed to persist remote catalog", zap.Error(saveErr))
			}
			s.mu.Unlock()
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneClasses(s.classes)
}

// Cached returns the catalog as currently cached, without consulting the
// remote store. Read-side aggregation uses this to stay pure.
func (s *CatalogService) Cached() []models.ClassOffering {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneClasses(s.classes)
}

// GetByID returns the matching offering or NOT_FOUND.
func (s *CatalogService) GetByID(ctx context.Context, id string) (*models.ClassOffering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.classes {
		if s.classes[i].ID == id {
			class := cloneClass(s.classes[i])
			return &class, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
}

// Create adds a class offering. Admin only. The remote store is written
// first when configured, then the local cache is updated and persisted.
func (s *CatalogService) Create(ctx context.Context, actor *models.CurrentUser, req CreateClassRequest) (*models.ClassOffering, error) {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class := normalizeNewClass(req)
	class.ID = uuid.NewString()

	if s.remote != nil {
		if err := s.remote.Insert(ctx, &class); err != nil {
			s.recordSync(err)
			return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "failed to write class to remote store")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes = append(s.classes, class)
	if err := s.store.Save(ctx, store.KeyClasses, s.classes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist classes")
	}
	created := cloneClass(class)
	return &created, nil
}

// Update merges a partial payload into the class. Admin only. Only supplied
// fields are normalised.
func (s *CatalogService) Update(ctx context.Context, actor *models.CurrentUser, id string, req UpdateClassRequest) (*models.ClassOffering, error) {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if req.Price != nil && *req.Price < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.classes {
		if s.classes[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	updated := s.classes[idx]
	applyClassUpdate(&updated, req)

	if s.remote != nil {
		if err := s.remote.Update(ctx, id, &updated); err != nil {
			s.recordSync(err)
			return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "failed to update class in remote store")
		}
	}

	s.classes[idx] = updated
	if err := s.store.Save(ctx, store.KeyClasses, s.classes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist classes")
	}
	result := cloneClass(updated)
	return &result, nil
}

// Delete removes a class. Admin only. Dependent enrollments are not
// cascaded; their class reference becomes dangling and reads tolerate it.
func (s *CatalogService) Delete(ctx context.Context, actor *models.CurrentUser, id string) error {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.classes {
		if s.classes[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	if s.remote != nil {
		if err := s.remote.Delete(ctx, id); err != nil {
			s.recordSync(err)
			return appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "failed to delete class from remote store")
		}
	}

	s.classes = append(s.classes[:idx], s.classes[idx+1:]...)
	if err := s.store.Save(ctx, store.KeyClasses, s.classes); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist classes")
	}
	return nil
}

// Search filters the cached catalog. Pure and order-preserving.
func (s *CatalogService) Search(filter models.ClassFilter) []models.ClassOffering {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	difficulty := strings.ToLower(strings.TrimSpace(filter.Difficulty))
	day := strings.ToLower(strings.TrimSpace(filter.Day))
	var out []models.ClassOffering
	for i := range s.classes {
		c := &s.classes[i]
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Title), search) &&
			!strings.Contains(strings.ToLower(c.InstructorName), search) {
			continue
		}
		if difficulty != "" && c.Difficulty != difficulty {
			continue
		}
		if day != "" && c.Schedule.Day != day {
			continue
		}
		if filter.MinPrice != nil && c.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && c.Price > *filter.MaxPrice {
			continue
		}
		if filter.AvailableOnly && c.IsFull() {
			continue
		}
		out = append(out, cloneClass(*c))
	}
	return out
}

// AvailableSpots returns remaining capacity for a class, 0 for unknown ids.
func (s *CatalogService) AvailableSpots(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.classes {
		if s.classes[i].ID == id {
			return s.classes[i].AvailableSpots()
		}
	}
	return 0
}

// IsFull reports whether the class has no remaining capacity.
func (s *CatalogService) IsFull(id string) bool {
	return s.AvailableSpots(id) <= 0
}

// ByInstructor returns all classes taught by the given instructor.
func (s *CatalogService) ByInstructor(instructorID string) []models.ClassOffering {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ClassOffering
	for i := range s.classes {
		if s.classes[i].InstructorID == instructorID {
			out = append(out, cloneClass(s.classes[i]))
		}
	}
	return out
}

// AddMember appends a student to the class member list. The existence,
// capacity and duplicate checks run under the catalog lock so that two
// concurrent enrollments cannot both pass the capacity check.
func (s *CatalogService) AddMember(ctx context.Context, classID, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.classes {
		if s.classes[i].ID == classID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	class := &s.classes[idx]
	if class.IsFull() {
		return appErrors.Clone(appErrors.ErrCapacityExceeded, "")
	}
	for _, id := range class.EnrolledStudentIDs {
		if id == studentID {
			return appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		}
	}

	class.EnrolledStudentIDs = append(class.EnrolledStudentIDs, studentID)
	if err := s.store.Save(ctx, store.KeyClasses, s.classes); err != nil {
		class.EnrolledStudentIDs = class.EnrolledStudentIDs[:len(class.EnrolledStudentIDs)-1]
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist classes")
	}
	return nil
}

// RemoveMember removes a student from the class member list. Unknown class
// or member is tolerated: removal is also the compensation path for a failed
// enrollment write.
func (s *CatalogService) RemoveMember(ctx context.Context, classID, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.classes {
		if s.classes[i].ID != classID {
			continue
		}
		members := s.classes[i].EnrolledStudentIDs
		for j, id := range members {
			if id == studentID {
				s.classes[i].EnrolledStudentIDs = append(members[:j], members[j+1:]...)
				if err := s.store.Save(ctx, store.KeyClasses, s.classes); err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist classes")
				}
				return nil
			}
		}
		return nil
	}
	return nil
}

// LastSync reports the most recent remote sync attempt, for readiness
// reporting. A nil error with a zero time means no sync has run yet.
func (s *CatalogService) LastSync() (time.Time, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	return s.lastSyncAt, s.lastSyncErr
}

func (s *CatalogService) recordSync(err error) {
	s.syncMu.Lock()
	s.lastSyncAt = time.Now().UTC()
	s.lastSyncErr = err
	s.syncMu.Unlock()
}

func normalizeNewClass(req CreateClassRequest) models.ClassOffering {
	difficulty := strings.ToLower(strings.TrimSpace(req.Difficulty))
	if difficulty == "" {
		difficulty = models.DifficultyBeginner
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = 60
	}
	day := "monday"
	timeOfDay := "09:00"
	if req.Schedule != nil {
		if req.Schedule.Day != "" {
			day = strings.ToLower(req.Schedule.Day)
		}
		if req.Schedule.Time != "" {
			timeOfDay = req.Schedule.Time
		}
	}
	return models.ClassOffering{
		Title:              strings.TrimSpace(req.Title),
		InstructorName:     strings.TrimSpace(req.InstructorName),
		InstructorID:       strings.TrimSpace(req.InstructorID),
		Description:        strings.TrimSpace(req.Description),
		Difficulty:         difficulty,
		Price:              req.Price,
		DurationMinutes:    duration,
		Schedule:           models.Schedule{Day: day, Time: timeOfDay},
		MaxStudents:        req.MaxStudents,
		EnrolledStudentIDs: []string{},
		CreatedAt:          time.Now().UTC(),
	}
}

func applyClassUpdate(class *models.ClassOffering, req UpdateClassRequest) {
	if req.Title != nil {
		class.Title = strings.TrimSpace(*req.Title)
	}
	if req.InstructorName != nil {
		class.InstructorName = strings.TrimSpace(*req.InstructorName)
	}
	if req.InstructorID != nil {
		class.InstructorID = strings.TrimSpace(*req.InstructorID)
	}
	if req.Description != nil {
		class.Description = strings.TrimSpace(*req.Description)
	}
	if req.Difficulty != nil {
		class.Difficulty = strings.ToLower(strings.TrimSpace(*req.Difficulty))
	}
	if req.Price != nil {
		class.Price = *req.Price
	}
	if req.DurationMinutes != nil {
		class.DurationMinutes = *req.DurationMinutes
	}
	if req.MaxStudents != nil {
		class.MaxStudents = *req.MaxStudents
	}
	if req.Schedule != nil {
		if req.Schedule.Day != "" {
			class.Schedule.Day = strings.ToLower(req.Schedule.Day)
		}
		if req.Schedule.Time != "" {
			class.Schedule.Time = req.Schedule.Time
		}
	}
}

func cloneClass(c models.ClassOffering) models.ClassOffering {
	members := make([]string, len(c.EnrolledStudentIDs))
	copy(members, c.EnrolledStudentIDs)
	c.EnrolledStudentIDs = members
	return c
}

func cloneClasses(classes []models.ClassOffering) []models.ClassOffering {
	out := make([]models.ClassOffering, len(classes))
	for i := range classes {
		out[i] = cloneClass(classes[i])
	}
	return out
}

// seedClasses is the default timetable installed on first run.
func seedClasses() []models.ClassOffering {
	now := time.Now().UTC()
	return []models.ClassOffering{
		{
			ID:                 "class_1",
			Title:              "Beginner Hatha Yoga",
			InstructorName:     "Sarah Johnson",
			InstructorID:       "instructor_1",
			Description:        "A gentle introduction to yoga focusing on basic poses and breathing.",
			Difficulty:         models.DifficultyBeginner,
			Price:              15,
			DurationMinutes:    60,
			Schedule:           models.Schedule{Day: "monday", Time: "09:00"},
			MaxStudents:        20,
			EnrolledStudentIDs: []string{},
			CreatedAt:          now,
		},
		{
			ID:                 "class_2",
			Title:              "Intermediate Vinyasa",
			InstructorName:     "Mike Chen",
			InstructorID:       "instructor_2",
			Description:        "Dynamic flow connecting breath with movement.",
			Difficulty:         models.DifficultyIntermediate,
			Price:              20,
			DurationMinutes:    75,
			Schedule:           models.Schedule{Day: "wednesday", Time: "18:00"},
			MaxStudents:        25,
			EnrolledStudentIDs: []string{},
			CreatedAt:          now,
		},
		{
			ID:                 "class_3",
			Title:              "Advanced Power Yoga",
			InstructorName:     "Emma Davis",
			InstructorID:       "instructor_3",
			Description:        "Challenging asanas and intense breathing practices.",
			Difficulty:         models.DifficultyAdvanced,
			Price:              25,
			DurationMinutes:    90,
			Schedule:           models.Schedule{Day: "friday", Time: "17:00"},
			MaxStudents:        15,
			EnrolledStudentIDs: []string{},
			CreatedAt:          now,
		},
	}
}
