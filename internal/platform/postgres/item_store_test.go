package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwelldev/inkwell-api/internal/domain"
	"github.com/inkwelldev/inkwell-api/internal/extraction"
	"github.com/inkwelldev/inkwell-api/internal/store"
)

func TestNewPostgresItemStore(t *testing.T) {
	t.Run("nil db panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NewPostgresItemStore(nil, nil)
		})
	})

	t.Run("nil logger uses default", func(t *testing.T) {
		s := NewPostgresItemStore(&mockDBTX{}, nil)
		assert.NotNil(t, s.logger)
	})
}

func TestPostgresItemStore_Create(t *testing.T) {
	t.Run("inserts all columns", func(t *testing.T) {
		db := &mockDBTX{}
		s := NewPostgresItemStore(db, nil)

		item, err := domain.NewItem("standup notes from this morning")
		require.NoError(t, err)

		require.NoError(t, s.Create(context.Background(), item))

		require.Len(t, db.ExecCalls, 1)
		call := db.ExecCalls[0]
		assert.Contains(t, call.Query, "INSERT INTO items")
		require.Len(t, call.Args, 11)
		assert.Equal(t, item.ID, call.Args[0])
		assert.Equal(t, "standup notes from this morning", call.Args[4])
		assert.Equal(t, domain.ItemStatusPending, call.Args[8])
	})

	t.Run("rejects invalid item before touching the database", func(t *testing.T) {
		db := &mockDBTX{}
		s := NewPostgresItemStore(db, nil)

		item, err := domain.NewItem("valid text")
		require.NoError(t, err)
		item.OriginalText = ""

		err = s.Create(context.Background(), item)
		assert.ErrorIs(t, err, domain.ErrEmptyItemText)
		assert.Empty(t, db.ExecCalls)
	})

	t.Run("maps unique violation to ErrDuplicate", func(t *testing.T) {
		db := &mockDBTX{
			ExecFn: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
				return nil, &pgconn.PgError{Code: pgUniqueViolationCode}
			},
		}
		s := NewPostgresItemStore(db, nil)

		item, err := domain.NewItem("a duplicate")
		require.NoError(t, err)

		err = s.Create(context.Background(), item)
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("passes through other database errors", func(t *testing.T) {
		dbErr := errors.New("connection refused")
		db := &mockDBTX{
			ExecFn: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
				return nil, dbErr
			},
		}
		s := NewPostgresItemStore(db, nil)

		item, err := domain.NewItem("some text")
		require.NoError(t, err)

		assert.ErrorIs(t, s.Create(context.Background(), item), dbErr)
	})
}

func TestPostgresItemStore_Delete(t *testing.T) {
	t.Run("deletes existing item", func(t *testing.T) {
		db := &mockDBTX{}
		s := NewPostgresItemStore(db, nil)

		id := uuid.New()
		require.NoError(t, s.Delete(context.Background(), id))

		require.Len(t, db.ExecCalls, 1)
		assert.Contains(t, db.ExecCalls[0].Query, "DELETE FROM items")
		assert.Equal(t, id, db.ExecCalls[0].Args[0])
	})

	t.Run("missing item returns ErrItemNotFound", func(t *testing.T) {
		db := &mockDBTX{
			ExecFn: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
				return mockResult{rows: 0}, nil
			},
		}
		s := NewPostgresItemStore(db, nil)

		err := s.Delete(context.Background(), uuid.New())
		assert.ErrorIs(t, err, store.ErrItemNotFound)
	})
}

func itemColumns() []string {
	return []string{
		"id", "title", "description", "summary", "original_text",
		"raw_model_output", "confidence", "source", "status",
		"created_at", "updated_at",
	}
}

// expectApplyExtraction sets ordered expectations for one ApplyExtraction
// round: metadata overwrite, tag reset before the rebuild, get-or-create per
// tag, then the read-back of the final item.
func expectApplyExtraction(
	mock sqlmock.Sqlmock,
	item *domain.Item,
	tagIDs map[string]uuid.UUID,
	result *extraction.Result,
) {
	mock.ExpectExec("UPDATE items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM item_tags").
		WithArgs(item.ID).
		WillReturnResult(sqlmock.NewResult(0, int64(len(result.Tags))))

	for _, name := range result.Tags {
		mock.ExpectExec("INSERT INTO tags").
			WithArgs(sqlmock.AnyArg(), name).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT id FROM tags").
			WithArgs(name).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tagIDs[name].String()))
		mock.ExpectExec("INSERT INTO item_tags").
			WithArgs(item.ID, tagIDs[name]).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, title").
		WithArgs(item.ID).
		WillReturnRows(sqlmock.NewRows(itemColumns()).AddRow(
			item.ID.String(), result.Title, result.Description, result.Summary,
			item.OriginalText, result.RawModelOutput, result.Confidence,
			string(result.Source), string(domain.ItemStatusDone),
			item.CreatedAt, now,
		))

	tagRows := sqlmock.NewRows([]string{"name"})
	for _, name := range result.Tags {
		tagRows.AddRow(name)
	}
	mock.ExpectQuery("SELECT t.name").
		WithArgs(item.ID).
		WillReturnRows(tagRows)
}

func TestPostgresItemStore_ApplyExtractionIsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresItemStore(db, nil)

	item, err := domain.NewItem("Buy milk\nAlso eggs and bread")
	require.NoError(t, err)

	result := &extraction.Result{
		Title:       "Buy milk",
		Tags:        []string{"errands", "shopping"},
		Description: "A short shopping reminder.",
		Summary:     "Buy milk, eggs, and bread.",
		Source:      domain.ItemSourceLocal,
	}
	tagIDs := map[string]uuid.UUID{
		"errands":  uuid.New(),
		"shopping": uuid.New(),
	}

	// Applying the same result twice runs the exact same overwrite, with the
	// tag reset preceding the rebuild each round, and yields the same item.
	expectApplyExtraction(mock, item, tagIDs, result)
	first, err := s.ApplyExtraction(context.Background(), item.ID, result)
	require.NoError(t, err)

	expectApplyExtraction(mock, item, tagIDs, result)
	second, err := s.ApplyExtraction(context.Background(), item.ID, result)
	require.NoError(t, err)

	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.Tags, second.Tags)
	assert.Equal(t, []string{"errands", "shopping"}, second.Tags)
	assert.Equal(t, domain.ItemStatusDone, second.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresItemStore_MarkProcessing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresItemStore(db, nil)

	item, err := domain.NewItem("note text")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, title").
		WithArgs(item.ID).
		WillReturnRows(sqlmock.NewRows(itemColumns()).AddRow(
			item.ID.String(), "", "", "", item.OriginalText, "", "",
			string(domain.ItemSourceLocal), string(domain.ItemStatusPending),
			item.CreatedAt, item.UpdatedAt,
		))
	mock.ExpectQuery("SELECT t.name").
		WithArgs(item.ID).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectExec("UPDATE items SET status").
		WithArgs(item.ID, domain.ItemStatusProcessing, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := s.MarkProcessing(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusProcessing, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresItemStore_MarkFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresItemStore(db, nil)

	item, err := domain.NewItem("note text")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, title").
		WithArgs(item.ID).
		WillReturnRows(sqlmock.NewRows(itemColumns()).AddRow(
			item.ID.String(), "", "", "", item.OriginalText, "raw", "",
			string(domain.ItemSourceLocal), string(domain.ItemStatusProcessing),
			item.CreatedAt, item.UpdatedAt,
		))
	mock.ExpectQuery("SELECT t.name").
		WithArgs(item.ID).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectExec("UPDATE items").
		WithArgs(item.ID, domain.ItemStatusFailed, "raw\n\nTASK_ERROR: model unavailable", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := s.MarkFailed(context.Background(), item.ID, "model unavailable")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusFailed, got.Status)
	assert.Contains(t, got.RawModelOutput, "TASK_ERROR: model unavailable")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresItemStore_ListEscapesSearchWildcards(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresItemStore(db, nil)

	// % and _ in the search term match literally, not as LIKE wildcards
	mock.ExpectQuery("SELECT id, title").
		WithArgs(`%50\% off\_deal%`, 20, 0).
		WillReturnRows(sqlmock.NewRows(itemColumns()))

	items, err := s.List(context.Background(), "50% off_deal", 20, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresItemStore_WithTx(t *testing.T) {
	s := NewPostgresItemStore(&mockDBTX{}, nil)

	txStore := s.WithTx(&sql.Tx{})
	require.NotNil(t, txStore)
	assert.NotSame(t, store.ItemStore(s), txStore)
}
