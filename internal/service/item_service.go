package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/inkwelldev/inkwell-api/internal/domain"
	"github.com/inkwelldev/inkwell-api/internal/events"
	"github.com/inkwelldev/inkwell-api/internal/store"
	"github.com/inkwelldev/inkwell-api/internal/task"
)

// ItemService provides item-related operations
type ItemService interface {
	// CreateItemAndEnqueueTask creates a new item with pending status and
	// emits an event requesting its enrichment
	CreateItemAndEnqueueTask(ctx context.Context, text string) (*domain.Item, error)

	// GetItem retrieves an item by its ID
	GetItem(ctx context.Context, itemID uuid.UUID) (*domain.Item, error)

	// ListItems retrieves items ordered by creation time descending, with
	// an optional search query
	ListItems(ctx context.Context, query string, limit, offset int) ([]*domain.Item, error)

	// DeleteItem removes an item and its tag associations
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
}

// Common sentinel errors for ItemService
var (
	// ErrItemNotFound indicates that the item does not exist
	ErrItemNotFound = errors.New("item not found")
)

// ItemServiceError wraps errors from the item service with context.
type ItemServiceError struct {
	// Operation is the operation that failed (e.g., "create_item")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ItemServiceError.
func (e *ItemServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("item service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("item service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ItemServiceError) Unwrap() error {
	return e.Err
}

// NewItemServiceError creates a new ItemServiceError.
// It returns known sentinel errors directly without wrapping.
func NewItemServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrItemNotFound) {
		return ErrItemNotFound
	}
	if errors.Is(err, store.ErrItemNotFound) {
		return ErrItemNotFound
	}

	return &ItemServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// itemServiceImpl implements the ItemService interface
type itemServiceImpl struct {
	db           *sql.DB
	items        store.ItemStore
	eventEmitter events.EventEmitter
	logger       *slog.Logger
}

// NewItemService creates a new ItemService.
// It returns an error if any of the required dependencies are nil.
func NewItemService(
	db *sql.DB,
	items store.ItemStore,
	eventEmitter events.EventEmitter,
	logger *slog.Logger,
) (ItemService, error) {
	if db == nil {
		return nil, &ItemServiceError{
			Operation: "create_service",
			Message:   "db cannot be nil",
		}
	}
	if items == nil {
		return nil, &ItemServiceError{
			Operation: "create_service",
			Message:   "items store cannot be nil",
		}
	}
	if eventEmitter == nil {
		return nil, &ItemServiceError{
			Operation: "create_service",
			Message:   "eventEmitter cannot be nil",
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &itemServiceImpl{
		db:           db,
		items:        items,
		eventEmitter: eventEmitter,
		logger:       logger.With("component", "item_service"),
	}, nil
}

// CreateItemAndEnqueueTask creates a new item with pending status and emits
// an event requesting its enrichment. The item creation is transactional;
// the event is emitted only after the item is durably committed, so the
// enrichment worker can always load it.
func (s *itemServiceImpl) CreateItemAndEnqueueTask(ctx context.Context, text string) (*domain.Item, error) {
	// 1. Create a new item with pending status
	item, err := domain.NewItem(text)
	if err != nil {
		s.logger.Warn("rejected invalid item text", "error", err)
		return nil, NewItemServiceError("create_item", "failed to create item object", err)
	}

	// 2. Save the item to the database using a transaction
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txItems := s.items.WithTx(tx)

		if err := txItems.Create(ctx, item); err != nil {
			s.logger.Error("failed to create item in transaction",
				"error", err,
				"item_id", item.ID)
			return NewItemServiceError("create_item", "failed to save item to database", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item created with pending status", "item_id", item.ID)

	// 3. Create and emit a TaskRequestEvent for the enrichment pipeline
	payload := struct {
		ItemID uuid.UUID `json:"item_id"`
	}{
		ItemID: item.ID,
	}

	event, err := events.NewTaskRequestEvent(task.TaskTypeItemEnrichment, payload)
	if err != nil {
		s.logger.Error("failed to create item enrichment event",
			"error", err,
			"item_id", item.ID)
		return nil, NewItemServiceError("create_item", "failed to create event", err)
	}

	if err := s.eventEmitter.EmitEvent(ctx, event); err != nil {
		s.logger.Error("failed to emit item enrichment event",
			"error", err,
			"item_id", item.ID,
			"event_id", event.ID)
		return nil, NewItemServiceError("create_item", "failed to emit event", err)
	}

	s.logger.Info("item enrichment event emitted",
		"item_id", item.ID,
		"event_id", event.ID)

	return item, nil
}

// GetItem retrieves an item by its ID
func (s *itemServiceImpl) GetItem(ctx context.Context, itemID uuid.UUID) (*domain.Item, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		s.logger.Error("failed to retrieve item",
			"error", err,
			"item_id", itemID)
		return nil, NewItemServiceError("get_item", "failed to retrieve item", err)
	}

	return item, nil
}

// ListItems retrieves items ordered by creation time descending
func (s *itemServiceImpl) ListItems(ctx context.Context, query string, limit, offset int) ([]*domain.Item, error) {
	items, err := s.items.List(ctx, query, limit, offset)
	if err != nil {
		s.logger.Error("failed to list items",
			"error", err,
			"query", query)
		return nil, NewItemServiceError("list_items", "failed to list items", err)
	}

	return items, nil
}

// DeleteItem removes an item and its tag associations
func (s *itemServiceImpl) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	if err := s.items.Delete(ctx, itemID); err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return ErrItemNotFound
		}
		s.logger.Error("failed to delete item",
			"error", err,
			"item_id", itemID)
		return NewItemServiceError("delete_item", "failed to delete item", err)
	}

	s.logger.Info("item deleted", "item_id", itemID)
	return nil
}
