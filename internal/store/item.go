package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/inkwelldev/inkwell-api/internal/domain"
	"github.com/inkwelldev/inkwell-api/internal/extraction"
)

// ItemStore defines the interface for item persistence. It is the only
// mutable shared resource of the pipeline; the pipeline mutates items
// exclusively through these operations, each of which is idempotent given
// the same input.
type ItemStore interface {
	// Create saves a new item to the store.
	// Returns validation errors from the domain Item if data is invalid.
	Create(ctx context.Context, item *domain.Item) error

	// GetByID retrieves an item (including its tags) by its unique ID.
	// Returns ErrItemNotFound if the item does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error)

	// List retrieves items ordered by creation time descending, with an
	// optional case-insensitive substring search across title, description,
	// summary and tag names.
	List(ctx context.Context, query string, limit, offset int) ([]*domain.Item, error)

	// Delete removes an item and its tag associations.
	// Returns ErrItemNotFound if the item does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// MarkProcessing transitions the item to processing status.
	// Returns ErrItemNotFound if the item does not exist.
	MarkProcessing(ctx context.Context, id uuid.UUID) (*domain.Item, error)

	// MarkFailed transitions the item to failed status, appending the
	// reason to the item's diagnostic field without overwriting prior
	// diagnostics. Returns ErrItemNotFound if the item does not exist.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*domain.Item, error)

	// ApplyExtraction overwrites the item's metadata fields and tag
	// associations with the extraction result and transitions the item to
	// done, all as a single atomic update. Re-applying the same result is
	// idempotent. Returns ErrItemNotFound if the item does not exist.
	ApplyExtraction(ctx context.Context, id uuid.UUID, result *extraction.Result) (*domain.Item, error)

	// WithTx returns a new ItemStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) ItemStore
}
