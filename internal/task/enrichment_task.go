package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/inkwelldev/inkwell-api/internal/domain"
	"github.com/inkwelldev/inkwell-api/internal/events"
	"github.com/inkwelldev/inkwell-api/internal/extraction"
	"github.com/inkwelldev/inkwell-api/internal/store"
)

// Status constants for ItemEnrichmentTask
// These match the TaskStatus values defined in task.go
const (
	statusPending    = "pending"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusFailed     = "failed"
)

// Common errors
var (
	ErrNilSessionProvider = errors.New("session provider cannot be nil")
	ErrNilExtractor       = errors.New("extractor cannot be nil")
	ErrNilPublisher       = errors.New("publisher cannot be nil")
	ErrNilLogger          = errors.New("logger cannot be nil")
	ErrEmptyItemID        = errors.New("item ID cannot be empty")
)

// ItemSession is a worker's handle on the item store for the duration of a
// single enrichment job. Each job acquires its own session and releases it
// when done, so workers never share a connection.
type ItemSession interface {
	// GetItem retrieves an item by its ID
	GetItem(ctx context.Context, itemID uuid.UUID) (*domain.Item, error)

	// MarkProcessing transitions the item to the processing status
	MarkProcessing(ctx context.Context, itemID uuid.UUID) error

	// MarkFailed transitions the item to the failed status and appends the
	// failure reason to its diagnostic record
	MarkFailed(ctx context.Context, itemID uuid.UUID, reason string) error

	// ApplyExtraction atomically writes the extraction result to the item,
	// replaces its tag set, and transitions it to done
	ApplyExtraction(ctx context.Context, itemID uuid.UUID, result *extraction.Result) error

	// Close releases the session's underlying connection
	Close() error
}

// ItemSessionProvider hands out ItemSessions to enrichment workers
type ItemSessionProvider interface {
	AcquireSession(ctx context.Context) (ItemSession, error)
}

// MetadataExtractor produces extraction results from raw item text
type MetadataExtractor interface {
	Extract(ctx context.Context, text string) *extraction.Result
}

// itemEnrichmentPayload represents the serialized data stored in the task
type itemEnrichmentPayload struct {
	ItemID uuid.UUID `json:"item_id"`
}

// ItemEnrichmentTask implements the Task interface for extracting metadata
// from a captured item
type ItemEnrichmentTask struct {
	id        uuid.UUID
	itemID    uuid.UUID
	sessions  ItemSessionProvider
	extractor MetadataExtractor
	publisher events.Publisher
	channel   string
	logger    *slog.Logger
	status    string
}

// NewItemEnrichmentTask creates a new item enrichment task
func NewItemEnrichmentTask(
	itemID uuid.UUID,
	sessions ItemSessionProvider,
	extractor MetadataExtractor,
	publisher events.Publisher,
	channel string,
	logger *slog.Logger,
) (*ItemEnrichmentTask, error) {
	if sessions == nil {
		return nil, ErrNilSessionProvider
	}
	if extractor == nil {
		return nil, ErrNilExtractor
	}
	if publisher == nil {
		return nil, ErrNilPublisher
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if itemID == uuid.Nil {
		return nil, ErrEmptyItemID
	}

	return &ItemEnrichmentTask{
		id:        uuid.New(),
		itemID:    itemID,
		sessions:  sessions,
		extractor: extractor,
		publisher: publisher,
		channel:   channel,
		logger:    logger.With("task_type", TaskTypeItemEnrichment, "item_id", itemID),
		status:    statusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *ItemEnrichmentTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *ItemEnrichmentTask) Type() string {
	return TaskTypeItemEnrichment
}

// Payload returns the task data as a byte slice
func (t *ItemEnrichmentTask) Payload() []byte {
	data, err := json.Marshal(itemEnrichmentPayload{ItemID: t.itemID})
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}
	return data
}

// Status returns the current task status
func (t *ItemEnrichmentTask) Status() TaskStatus {
	return TaskStatus(t.status)
}

// Execute runs the enrichment job: it acquires a store session, transitions
// the item to processing, extracts metadata from its text, commits the
// result atomically, and publishes a status notification. A notification is
// published only after the corresponding item state is durably committed.
func (t *ItemEnrichmentTask) Execute(ctx context.Context) error {
	t.status = statusProcessing
	t.logger.Info("starting item enrichment task")

	if err := ctx.Err(); err != nil {
		t.status = statusFailed
		t.logger.Error("task cancelled by context", "error", err)
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	session, err := t.sessions.AcquireSession(ctx)
	if err != nil {
		t.status = statusFailed
		t.logger.Error("failed to acquire store session", "error", err)
		return fmt.Errorf("failed to acquire store session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			t.logger.Warn("failed to release store session", "error", closeErr)
		}
	}()

	// 1. Retrieve the item
	item, err := session.GetItem(ctx, t.itemID)
	if err != nil {
		if store.IsNotFoundError(err) {
			// The item was deleted after the job was enqueued. Nothing to
			// enrich and nobody to notify; the job is complete.
			t.status = statusCompleted
			t.logger.Warn("item no longer exists, skipping enrichment")
			return nil
		}
		return t.fail(ctx, session, fmt.Errorf("failed to retrieve item: %w", err))
	}

	// 2. Transition the item to processing
	if err := session.MarkProcessing(ctx, t.itemID); err != nil {
		return t.fail(ctx, session, fmt.Errorf("failed to mark item as processing: %w", err))
	}

	// 3. Extract metadata. The extractor falls back to local heuristics on
	// model failure, so this step itself never fails the job.
	t.logger.Info("extracting metadata from item text")
	result := t.extractor.Extract(ctx, item.OriginalText)
	t.logger.Info("extraction finished", "source", result.Source, "tag_count", len(result.Tags))

	// 4. Commit the result and transition to done, atomically
	if err := session.ApplyExtraction(ctx, t.itemID, result); err != nil {
		return t.fail(ctx, session, fmt.Errorf("failed to apply extraction result: %w", err))
	}

	// 5. Notify subscribers of the terminal state
	t.publish(ctx, string(domain.ItemStatusDone), "")

	t.status = statusCompleted
	t.logger.Info("item enrichment task completed successfully")
	return nil
}

// fail records the failure on the item, publishes a failed notification, and
// returns the causing error so the runner records the task as failed.
func (t *ItemEnrichmentTask) fail(ctx context.Context, session ItemSession, cause error) error {
	t.status = statusFailed
	t.logger.Error("item enrichment failed", "error", cause)

	if err := session.MarkFailed(ctx, t.itemID, cause.Error()); err != nil {
		// The item keeps its previous status; the task row still records
		// the failure.
		t.logger.Error("failed to mark item as failed", "error", err)
	} else {
		t.publish(ctx, string(domain.ItemStatusFailed), cause.Error())
	}

	return cause
}

// publish sends a best-effort status notification
func (t *ItemEnrichmentTask) publish(ctx context.Context, status, errMsg string) {
	t.publisher.Publish(ctx, t.channel, events.ItemStatusEvent{
		ID:     t.itemID,
		Status: status,
		Error:  errMsg,
	})
}
