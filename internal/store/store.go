package store

import (
	"context"
	"errors"

	"github.com/moodyoga/studio-api/internal/models"
)

// Logical keys, one per ledger collection.
const (
	KeyClasses     = "classes"
	KeyEnrollments = "enrollments"
	KeyPayments    = "payments"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("store: key not found")

// Store persists whole ledger collections under logical keys. There are no
// partial updates at this layer: callers read and write complete documents.
type Store interface {
	Load(ctx context.Context, key string, v interface{}) error
	Save(ctx context.Context, key string, v interface{}) error
}

// CatalogRemote is the optional remote document store behind the class
// catalog. Implementations must bound every call; failures degrade to the
// local cache and are never fatal to the caller.
type CatalogRemote interface {
	FetchAll(ctx context.Context) ([]models.ClassOffering, error)
	Insert(ctx context.Context, class *models.ClassOffering) error
	Update(ctx context.Context, id string, class *models.ClassOffering) error
	Delete(ctx context.Context, id string) error
}
