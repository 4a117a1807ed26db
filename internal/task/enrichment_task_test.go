package task

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwelldev/inkwell-api/internal/domain"
	"github.com/inkwelldev/inkwell-api/internal/events"
	"github.com/inkwelldev/inkwell-api/internal/extraction"
	"github.com/inkwelldev/inkwell-api/internal/store"
)

// mockItemSession implements ItemSession with configurable behavior
type mockItemSession struct {
	GetItemFn         func(ctx context.Context, itemID uuid.UUID) (*domain.Item, error)
	MarkProcessingFn  func(ctx context.Context, itemID uuid.UUID) error
	MarkFailedFn      func(ctx context.Context, itemID uuid.UUID, reason string) error
	ApplyExtractionFn func(ctx context.Context, itemID uuid.UUID, result *extraction.Result) error

	Closed          bool
	MarkedFailed    []string
	AppliedResults  []*extraction.Result
	MarkedProcCount int
}

func newMockItemSession(item *domain.Item) *mockItemSession {
	s := &mockItemSession{}
	s.GetItemFn = func(ctx context.Context, itemID uuid.UUID) (*domain.Item, error) {
		if item == nil {
			return nil, store.ErrItemNotFound
		}
		return item, nil
	}
	s.MarkProcessingFn = func(ctx context.Context, itemID uuid.UUID) error { return nil }
	s.MarkFailedFn = func(ctx context.Context, itemID uuid.UUID, reason string) error { return nil }
	s.ApplyExtractionFn = func(ctx context.Context, itemID uuid.UUID, result *extraction.Result) error { return nil }
	return s
}

func (s *mockItemSession) GetItem(ctx context.Context, itemID uuid.UUID) (*domain.Item, error) {
	return s.GetItemFn(ctx, itemID)
}

func (s *mockItemSession) MarkProcessing(ctx context.Context, itemID uuid.UUID) error {
	s.MarkedProcCount++
	return s.MarkProcessingFn(ctx, itemID)
}

func (s *mockItemSession) MarkFailed(ctx context.Context, itemID uuid.UUID, reason string) error {
	s.MarkedFailed = append(s.MarkedFailed, reason)
	return s.MarkFailedFn(ctx, itemID, reason)
}

func (s *mockItemSession) ApplyExtraction(ctx context.Context, itemID uuid.UUID, result *extraction.Result) error {
	s.AppliedResults = append(s.AppliedResults, result)
	return s.ApplyExtractionFn(ctx, itemID, result)
}

func (s *mockItemSession) Close() error {
	s.Closed = true
	return nil
}

// mockSessionProvider hands out a fixed session
type mockSessionProvider struct {
	session *mockItemSession
	err     error
}

func (p *mockSessionProvider) AcquireSession(ctx context.Context) (ItemSession, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

// mockExtractor returns a fixed result
type mockExtractor struct {
	result *extraction.Result
}

func (e *mockExtractor) Extract(ctx context.Context, text string) *extraction.Result {
	return e.result
}

// mockPublisher records published events
type mockPublisher struct {
	mu     sync.Mutex
	Events []events.ItemStatusEvent
}

func (p *mockPublisher) Publish(ctx context.Context, channel string, event events.ItemStatusEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, event)
}

func (p *mockPublisher) Published() []events.ItemStatusEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.ItemStatusEvent(nil), p.Events...)
}

func testExtractionResult() *extraction.Result {
	return &extraction.Result{
		Title:       "Buy milk",
		Tags:        []string{"errands", "shopping"},
		Description: "A short shopping reminder.",
		Summary:     "Buy milk, eggs, and bread.",
		Source:      domain.ItemSourceLocal,
	}
}

func TestNewItemEnrichmentTask_Validation(t *testing.T) {
	t.Parallel()

	logger := newTestLogger()
	sessions := &mockSessionProvider{session: newMockItemSession(nil)}
	extractor := &mockExtractor{result: testExtractionResult()}
	publisher := &mockPublisher{}
	itemID := uuid.New()

	tests := []struct {
		name      string
		sessions  ItemSessionProvider
		extractor MetadataExtractor
		publisher events.Publisher
		itemID    uuid.UUID
		wantErr   error
	}{
		{"nil session provider", nil, extractor, publisher, itemID, ErrNilSessionProvider},
		{"nil extractor", sessions, nil, publisher, itemID, ErrNilExtractor},
		{"nil publisher", sessions, extractor, nil, itemID, ErrNilPublisher},
		{"empty item ID", sessions, extractor, publisher, uuid.Nil, ErrEmptyItemID},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewItemEnrichmentTask(tc.itemID, tc.sessions, tc.extractor, tc.publisher, "item_updates", logger)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	t.Run("nil logger", func(t *testing.T) {
		_, err := NewItemEnrichmentTask(itemID, sessions, extractor, publisher, "item_updates", nil)
		assert.ErrorIs(t, err, ErrNilLogger)
	})
}

func TestItemEnrichmentTask_Execute_Success(t *testing.T) {
	t.Parallel()

	item, err := domain.NewItem("Buy milk\nAlso eggs and bread")
	require.NoError(t, err)

	session := newMockItemSession(item)
	publisher := &mockPublisher{}
	result := testExtractionResult()

	enrichment, err := NewItemEnrichmentTask(
		item.ID,
		&mockSessionProvider{session: session},
		&mockExtractor{result: result},
		publisher,
		"item_updates",
		newTestLogger(),
	)
	require.NoError(t, err)

	err = enrichment.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCompleted, enrichment.Status())

	// The item was marked processing, then the result applied atomically
	assert.Equal(t, 1, session.MarkedProcCount)
	require.Len(t, session.AppliedResults, 1)
	assert.Equal(t, result, session.AppliedResults[0])
	assert.Empty(t, session.MarkedFailed)

	// A done notification went out, and the session was released
	published := publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, item.ID, published[0].ID)
	assert.Equal(t, "done", published[0].Status)
	assert.Empty(t, published[0].Error)
	assert.True(t, session.Closed)
}

func TestItemEnrichmentTask_Execute_Redelivered(t *testing.T) {
	t.Parallel()

	item, err := domain.NewItem("Buy milk\nAlso eggs and bread")
	require.NoError(t, err)

	session := newMockItemSession(item)
	session.ApplyExtractionFn = func(ctx context.Context, itemID uuid.UUID, result *extraction.Result) error {
		if item.Status != domain.ItemStatusProcessing {
			require.NoError(t, item.TransitionTo(domain.ItemStatusProcessing))
		}
		return item.TransitionTo(domain.ItemStatusDone)
	}
	publisher := &mockPublisher{}
	result := testExtractionResult()

	enrichment, err := NewItemEnrichmentTask(
		item.ID,
		&mockSessionProvider{session: session},
		&mockExtractor{result: result},
		publisher,
		"item_updates",
		newTestLogger(),
	)
	require.NoError(t, err)

	// Running the same job twice, the second time against the already-done
	// item, applies the same result and notifies the same way both times.
	require.NoError(t, enrichment.Execute(context.Background()))
	require.Equal(t, domain.ItemStatusDone, item.Status)
	require.NoError(t, enrichment.Execute(context.Background()))

	assert.Equal(t, 2, session.MarkedProcCount)
	require.Len(t, session.AppliedResults, 2)
	assert.Equal(t, session.AppliedResults[0], session.AppliedResults[1])
	assert.Empty(t, session.MarkedFailed)

	published := publisher.Published()
	require.Len(t, published, 2)
	assert.Equal(t, published[0], published[1])
	assert.Equal(t, "done", published[0].Status)
	assert.Equal(t, domain.ItemStatusDone, item.Status)
}

func TestItemEnrichmentTask_Execute_MissingItem(t *testing.T) {
	t.Parallel()

	session := newMockItemSession(nil)
	publisher := &mockPublisher{}

	enrichment, err := NewItemEnrichmentTask(
		uuid.New(),
		&mockSessionProvider{session: session},
		&mockExtractor{result: testExtractionResult()},
		publisher,
		"item_updates",
		newTestLogger(),
	)
	require.NoError(t, err)

	// A deleted item is not an error: the job completes without touching
	// the store or notifying anyone.
	err = enrichment.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCompleted, enrichment.Status())

	assert.Zero(t, session.MarkedProcCount)
	assert.Empty(t, session.AppliedResults)
	assert.Empty(t, session.MarkedFailed)
	assert.Empty(t, publisher.Published())
	assert.True(t, session.Closed)
}

func TestItemEnrichmentTask_Execute_ApplyFails(t *testing.T) {
	t.Parallel()

	item, err := domain.NewItem("some note text")
	require.NoError(t, err)

	session := newMockItemSession(item)
	session.ApplyExtractionFn = func(ctx context.Context, itemID uuid.UUID, result *extraction.Result) error {
		return errors.New("disk full")
	}
	publisher := &mockPublisher{}

	enrichment, err := NewItemEnrichmentTask(
		item.ID,
		&mockSessionProvider{session: session},
		&mockExtractor{result: testExtractionResult()},
		publisher,
		"item_updates",
		newTestLogger(),
	)
	require.NoError(t, err)

	err = enrichment.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, TaskStatusFailed, enrichment.Status())

	// The failure reason was recorded on the item and a failed notification
	// published with the error message
	require.Len(t, session.MarkedFailed, 1)
	assert.Contains(t, session.MarkedFailed[0], "disk full")

	published := publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "failed", published[0].Status)
	assert.Contains(t, published[0].Error, "disk full")
	assert.True(t, session.Closed)
}

func TestItemEnrichmentTask_Execute_MarkProcessingFails(t *testing.T) {
	t.Parallel()

	item, err := domain.NewItem("some note text")
	require.NoError(t, err)

	session := newMockItemSession(item)
	session.MarkProcessingFn = func(ctx context.Context, itemID uuid.UUID) error {
		return errors.New("connection reset")
	}
	publisher := &mockPublisher{}

	enrichment, err := NewItemEnrichmentTask(
		item.ID,
		&mockSessionProvider{session: session},
		&mockExtractor{result: testExtractionResult()},
		publisher,
		"item_updates",
		newTestLogger(),
	)
	require.NoError(t, err)

	err = enrichment.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, TaskStatusFailed, enrichment.Status())
	assert.Empty(t, session.AppliedResults)
	assert.True(t, session.Closed)
}

func TestItemEnrichmentTask_Execute_SessionAcquireFails(t *testing.T) {
	t.Parallel()

	publisher := &mockPublisher{}
	enrichment, err := NewItemEnrichmentTask(
		uuid.New(),
		&mockSessionProvider{err: errors.New("pool exhausted")},
		&mockExtractor{result: testExtractionResult()},
		publisher,
		"item_updates",
		newTestLogger(),
	)
	require.NoError(t, err)

	err = enrichment.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, TaskStatusFailed, enrichment.Status())
	assert.Empty(t, publisher.Published())
}

func TestItemEnrichmentTask_Execute_CancelledContext(t *testing.T) {
	t.Parallel()

	session := newMockItemSession(nil)
	enrichment, err := NewItemEnrichmentTask(
		uuid.New(),
		&mockSessionProvider{session: session},
		&mockExtractor{result: testExtractionResult()},
		&mockPublisher{},
		"item_updates",
		newTestLogger(),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = enrichment.Execute(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, session.Closed, "no session should be acquired after cancellation")
}

func TestItemEnrichmentTaskFactory_Revive(t *testing.T) {
	t.Parallel()

	factory := NewItemEnrichmentTaskFactory(
		&mockSessionProvider{session: newMockItemSession(nil)},
		&mockExtractor{result: testExtractionResult()},
		&mockPublisher{},
		"item_updates",
		newTestLogger(),
	)

	itemID := uuid.New()
	original, err := factory.CreateTask(itemID)
	require.NoError(t, err)

	t.Run("round trips through the persisted payload", func(t *testing.T) {
		revived, err := factory.Revive(original.ID(), original.Type(), original.Payload())
		require.NoError(t, err)

		assert.Equal(t, original.ID(), revived.ID())
		assert.Equal(t, TaskTypeItemEnrichment, revived.Type())
		assert.JSONEq(t, string(original.Payload()), string(revived.Payload()))
	})

	t.Run("rejects unknown task types", func(t *testing.T) {
		_, err := factory.Revive(uuid.New(), "index_rebuild", []byte(`{}`))
		assert.Error(t, err)
	})

	t.Run("rejects corrupt payloads", func(t *testing.T) {
		_, err := factory.Revive(uuid.New(), TaskTypeItemEnrichment, []byte(`not json`))
		assert.Error(t, err)
	})
}
