package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ItemStatus represents the enrichment state of an item
type ItemStatus string

// Possible item status values
const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusDone       ItemStatus = "done"
	ItemStatusFailed     ItemStatus = "failed"
)

// ItemSource identifies which extraction strategy produced the item's metadata
type ItemSource string

// Possible item source values
const (
	ItemSourceLocal ItemSource = "local"
	ItemSourceLLM   ItemSource = "llm"
)

// Common validation errors for Item
var (
	ErrEmptyItemID       = errors.New("item ID cannot be empty")
	ErrEmptyItemText     = errors.New("item text cannot be empty")
	ErrInvalidItemStatus = errors.New("invalid item status")
	ErrInvalidItemSource = errors.New("invalid item source")
	ErrInvalidTransition = errors.New("invalid item status transition")
)

// Item represents a user-submitted text together with the metadata derived
// from it by the enrichment pipeline. OriginalText is immutable after
// creation; the metadata fields are overwritten as a unit when an extraction
// result is applied.
type Item struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Summary        string     `json:"summary"`
	Tags           []string   `json:"tags"`
	OriginalText   string     `json:"original_text"`
	RawModelOutput string     `json:"raw_model_output,omitempty"`
	Confidence     string     `json:"confidence,omitempty"`
	Source         ItemSource `json:"source"`
	Status         ItemStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewItem creates a new Item from the submitted text. It generates a new
// UUID for the item ID, sets the status to pending and the source to local,
// and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewItem(text string) (*Item, error) {
	now := time.Now().UTC()
	item := &Item{
		ID:           uuid.New(),
		OriginalText: text,
		Source:       ItemSourceLocal,
		Status:       ItemStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the Item has valid data.
// Returns an error if any field fails validation.
func (i *Item) Validate() error {
	if i.ID == uuid.Nil {
		return ErrEmptyItemID
	}

	if strings.TrimSpace(i.OriginalText) == "" {
		return ErrEmptyItemText
	}

	if !isValidItemStatus(i.Status) {
		return ErrInvalidItemStatus
	}

	if !isValidItemSource(i.Source) {
		return ErrInvalidItemSource
	}

	return nil
}

// TransitionTo moves the item to the given status, enforcing the state
// machine: pending is set once at creation and never re-entered, done and
// failed are only reached from processing, and processing may be re-entered
// from a terminal state when a job is redelivered (re-applying a result is a
// full overwrite, so reprocessing is safe).
// Returns ErrInvalidTransition if the move is not allowed.
func (i *Item) TransitionTo(status ItemStatus) error {
	if !isValidItemStatus(status) {
		return ErrInvalidItemStatus
	}

	switch status {
	case ItemStatusPending:
		return ErrInvalidTransition
	case ItemStatusProcessing:
		// Entering work is allowed from any state.
	case ItemStatusDone, ItemStatusFailed:
		if i.Status != ItemStatusProcessing {
			return ErrInvalidTransition
		}
	}

	i.Status = status
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendDiagnostic appends a human-readable error trace to the item's raw
// model output field without discarding earlier diagnostics.
func (i *Item) AppendDiagnostic(msg string) {
	i.RawModelOutput = i.RawModelOutput + "\n\nTASK_ERROR: " + msg
	i.UpdatedAt = time.Now().UTC()
}

// isValidItemStatus checks if the given status is a valid ItemStatus.
func isValidItemStatus(status ItemStatus) bool {
	switch status {
	case ItemStatusPending, ItemStatusProcessing, ItemStatusDone, ItemStatusFailed:
		return true
	default:
		return false
	}
}

// isValidItemSource checks if the given source is a valid ItemSource.
func isValidItemSource(source ItemSource) bool {
	switch source {
	case ItemSourceLocal, ItemSourceLLM:
		return true
	default:
		return false
	}
}
