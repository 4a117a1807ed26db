package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/inkwelldev/inkwell-api/internal/domain"
	"github.com/inkwelldev/inkwell-api/internal/extraction"
	"github.com/inkwelldev/inkwell-api/internal/platform/logger"
	"github.com/inkwelldev/inkwell-api/internal/store"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
const pgUniqueViolationCode = "23505"

// PostgresItemStore implements the store.ItemStore interface
// using a PostgreSQL database as the storage backend.
type PostgresItemStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresItemStore creates a new PostgreSQL implementation of the
// ItemStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller. If logger is nil, a
// default logger will be used.
func NewPostgresItemStore(db store.DBTX, logger *slog.Logger) *PostgresItemStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresItemStore{
		db:     db,
		logger: logger.With(slog.String("component", "item_store")),
	}
}

// Ensure PostgresItemStore implements store.ItemStore interface
var _ store.ItemStore = (*PostgresItemStore)(nil)

// WithTx implements store.ItemStore.WithTx
func (s *PostgresItemStore) WithTx(tx *sql.Tx) store.ItemStore {
	return &PostgresItemStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.ItemStore.Create
func (s *PostgresItemStore) Create(ctx context.Context, item *domain.Item) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := item.Validate(); err != nil {
		log.Warn("item validation failed during create",
			slog.String("error", err.Error()),
			slog.String("item_id", item.ID.String()))
		return err
	}

	query := `
		INSERT INTO items (id, title, description, summary, original_text,
			raw_model_output, confidence, source, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		item.ID,
		item.Title,
		item.Description,
		item.Summary,
		item.OriginalText,
		item.RawModelOutput,
		item.Confidence,
		item.Source,
		item.Status,
		item.CreatedAt,
		item.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Warn("duplicate item ID during create",
				slog.String("item_id", item.ID.String()))
			return fmt.Errorf("%w: item with ID %s", store.ErrDuplicate, item.ID)
		}

		log.Error("failed to create item",
			slog.String("error", err.Error()),
			slog.String("item_id", item.ID.String()))
		return err
	}

	log.Debug("item created",
		slog.String("item_id", item.ID.String()),
		slog.String("status", string(item.Status)))
	return nil
}

// GetByID implements store.ItemStore.GetByID
func (s *PostgresItemStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, title, description, summary, original_text,
			raw_model_output, confidence, source, status, created_at, updated_at
		FROM items
		WHERE id = $1
	`

	item, err := s.scanItem(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("item not found", slog.String("item_id", id.String()))
			return nil, store.ErrItemNotFound
		}
		log.Error("failed to get item by ID",
			slog.String("error", err.Error()),
			slog.String("item_id", id.String()))
		return nil, err
	}

	if item.Tags, err = s.loadTags(ctx, id); err != nil {
		return nil, err
	}

	return item, nil
}

// List implements store.ItemStore.List
func (s *PostgresItemStore) List(
	ctx context.Context,
	search string,
	limit, offset int,
) ([]*domain.Item, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, title, description, summary, original_text,
			raw_model_output, confidence, source, status, created_at, updated_at
		FROM items
	`
	args := []any{}
	if search != "" {
		query += `
		WHERE title ILIKE $1 OR description ILIKE $1 OR summary ILIKE $1
			OR EXISTS (
				SELECT 1 FROM item_tags it
				JOIN tags t ON t.id = it.tag_id
				WHERE it.item_id = items.id AND t.name ILIKE $1
			)
		`
		args = append(args, "%"+escapeLikePattern(search)+"%")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list items", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []*domain.Item
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.Tags, err = s.loadTags(ctx, item.ID); err != nil {
			return nil, err
		}
	}

	return items, nil
}

// Delete implements store.ItemStore.Delete
func (s *PostgresItemStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete item",
			slog.String("error", err.Error()),
			slog.String("item_id", id.String()))
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrItemNotFound
	}

	log.Info("item deleted", slog.String("item_id", id.String()))
	return nil
}

// MarkProcessing implements store.ItemStore.MarkProcessing
func (s *PostgresItemStore) MarkProcessing(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := item.TransitionTo(domain.ItemStatusProcessing); err != nil {
		return nil, err
	}

	return item, s.persistStatus(ctx, item)
}

// MarkFailed implements store.ItemStore.MarkFailed
func (s *PostgresItemStore) MarkFailed(
	ctx context.Context,
	id uuid.UUID,
	reason string,
) (*domain.Item, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := item.TransitionTo(domain.ItemStatusFailed); err != nil {
		return nil, err
	}
	item.AppendDiagnostic(reason)

	query := `
		UPDATE items
		SET status = $2, raw_model_output = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, item.Status, item.RawModelOutput, item.UpdatedAt)
	if err != nil {
		log.Error("failed to mark item failed",
			slog.String("error", err.Error()),
			slog.String("item_id", id.String()))
		return nil, err
	}
	if affected, err := result.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, store.ErrItemNotFound
	}

	log.Info("item marked failed",
		slog.String("item_id", id.String()),
		slog.String("reason", reason))
	return item, nil
}

// ApplyExtraction implements store.ItemStore.ApplyExtraction. The metadata
// fields, the tag associations and the done status are written together;
// run it on a transaction-backed store (WithTx) for atomicity.
func (s *PostgresItemStore) ApplyExtraction(
	ctx context.Context,
	id uuid.UUID,
	result *extraction.Result,
) (*domain.Item, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	query := `
		UPDATE items
		SET title = $2, description = $3, summary = $4, raw_model_output = $5,
			confidence = $6, source = $7, status = $8, updated_at = $9
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		id,
		result.Title,
		result.Description,
		result.Summary,
		result.RawModelOutput,
		result.Confidence,
		result.Source,
		domain.ItemStatusDone,
		now,
	)
	if err != nil {
		log.Error("failed to apply extraction result",
			slog.String("error", err.Error()),
			slog.String("item_id", id.String()))
		return nil, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, store.ErrItemNotFound
	}

	// Tag associations are reset and rebuilt so re-applying a result is
	// idempotent.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM item_tags WHERE item_id = $1`, id); err != nil {
		log.Error("failed to reset item tags",
			slog.String("error", err.Error()),
			slog.String("item_id", id.String()))
		return nil, err
	}

	for _, name := range result.Tags {
		tagID, err := s.getOrCreateTag(ctx, name)
		if err != nil {
			return nil, err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO item_tags (item_id, tag_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, id, tagID)
		if err != nil {
			log.Error("failed to associate tag",
				slog.String("error", err.Error()),
				slog.String("item_id", id.String()),
				slog.String("tag", name))
			return nil, err
		}
	}

	log.Info("extraction result applied",
		slog.String("item_id", id.String()),
		slog.String("source", string(result.Source)),
		slog.Int("tag_count", len(result.Tags)))

	return s.GetByID(ctx, id)
}

// likeEscaper escapes the LIKE metacharacters so user-supplied search text
// matches % and _ literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLikePattern(s string) string {
	return likeEscaper.Replace(s)
}

// getOrCreateTag returns the ID of the tag with the given name, creating it
// if it does not exist. Tag names are deduplicated case-sensitively by the
// unique constraint.
func (s *PostgresItemStore) getOrCreateTag(ctx context.Context, name string) (uuid.UUID, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, uuid.New(), name)
	if err != nil {
		return uuid.Nil, err
	}

	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = $1`, name).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// persistStatus writes the item's current status and timestamp.
func (s *PostgresItemStore) persistStatus(ctx context.Context, item *domain.Item) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET status = $2, updated_at = $3 WHERE id = $1
	`, item.ID, item.Status, item.UpdatedAt)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.ErrItemNotFound
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanItem.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem scans one items row into a domain.Item (tags loaded separately).
func (s *PostgresItemStore) scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	var status, source string

	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.Summary,
		&item.OriginalText,
		&item.RawModelOutput,
		&item.Confidence,
		&source,
		&status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Status = domain.ItemStatus(status)
	item.Source = domain.ItemSource(source)
	return &item, nil
}

// loadTags returns the tag names associated with an item.
func (s *PostgresItemStore) loadTags(ctx context.Context, itemID uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name
		FROM tags t
		JOIN item_tags it ON it.tag_id = t.id
		WHERE it.item_id = $1
		ORDER BY t.name
	`, itemID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}
