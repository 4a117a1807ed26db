package task

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/inkwelldev/inkwell-api/internal/events"
)

// ItemEnrichmentTaskFactory creates ItemEnrichmentTask instances. It also
// implements TaskReviver, rebuilding executable tasks from rows the runner
// recovers out of the task store.
type ItemEnrichmentTaskFactory struct {
	sessions  ItemSessionProvider
	extractor MetadataExtractor
	publisher events.Publisher
	channel   string
	logger    *slog.Logger
}

// NewItemEnrichmentTaskFactory creates a new factory for ItemEnrichmentTasks
func NewItemEnrichmentTaskFactory(
	sessions ItemSessionProvider,
	extractor MetadataExtractor,
	publisher events.Publisher,
	channel string,
	logger *slog.Logger,
) *ItemEnrichmentTaskFactory {
	return &ItemEnrichmentTaskFactory{
		sessions:  sessions,
		extractor: extractor,
		publisher: publisher,
		channel:   channel,
		logger:    logger.With("component", "item_enrichment_task_factory"),
	}
}

// CreateTask creates a new ItemEnrichmentTask for the specified item
func (f *ItemEnrichmentTaskFactory) CreateTask(itemID uuid.UUID) (Task, error) {
	return NewItemEnrichmentTask(
		itemID,
		f.sessions,
		f.extractor,
		f.publisher,
		f.channel,
		f.logger,
	)
}

// Revive implements TaskReviver. It reconstructs an enrichment task from its
// persisted payload so a recovered row becomes executable again.
func (f *ItemEnrichmentTaskFactory) Revive(taskID uuid.UUID, taskType string, payload []byte) (Task, error) {
	if taskType != TaskTypeItemEnrichment {
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}

	var p itemEnrichmentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode task payload: %w", err)
	}

	t, err := f.CreateTask(p.ItemID)
	if err != nil {
		return nil, err
	}

	// Preserve the persisted identity so status updates hit the same row.
	t.(*ItemEnrichmentTask).id = taskID
	return t, nil
}

var _ TaskReviver = (*ItemEnrichmentTaskFactory)(nil)
