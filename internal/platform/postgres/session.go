package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/inkwelldev/inkwell-api/internal/domain"
	"github.com/inkwelldev/inkwell-api/internal/extraction"
	"github.com/inkwelldev/inkwell-api/internal/task"
)

// SessionProvider implements task.ItemSessionProvider over a shared
// connection pool. Each enrichment job gets a dedicated connection for its
// lifetime, released when the session is closed.
type SessionProvider struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSessionProvider creates a SessionProvider backed by the given pool.
// If logger is nil, a default logger will be used.
func NewSessionProvider(db *sql.DB, logger *slog.Logger) *SessionProvider {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SessionProvider{
		db:     db,
		logger: logger.With(slog.String("component", "item_session_provider")),
	}
}

// Ensure SessionProvider implements task.ItemSessionProvider
var _ task.ItemSessionProvider = (*SessionProvider)(nil)

// AcquireSession implements task.ItemSessionProvider
func (p *SessionProvider) AcquireSession(ctx context.Context) (task.ItemSession, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire database connection: %w", err)
	}

	return &itemSession{
		conn:   conn,
		items:  NewPostgresItemStore(conn, p.logger),
		logger: p.logger,
	}, nil
}

// itemSession implements task.ItemSession over a dedicated connection
type itemSession struct {
	conn   *sql.Conn
	items  *PostgresItemStore
	logger *slog.Logger
}

// GetItem implements task.ItemSession
func (s *itemSession) GetItem(ctx context.Context, itemID uuid.UUID) (*domain.Item, error) {
	return s.items.GetByID(ctx, itemID)
}

// MarkProcessing implements task.ItemSession. The load-transition-persist
// sequence runs in its own short transaction.
func (s *itemSession) MarkProcessing(ctx context.Context, itemID uuid.UUID) error {
	return s.inTransaction(ctx, func(items *PostgresItemStore) error {
		_, err := items.MarkProcessing(ctx, itemID)
		return err
	})
}

// MarkFailed implements task.ItemSession
func (s *itemSession) MarkFailed(ctx context.Context, itemID uuid.UUID, reason string) error {
	return s.inTransaction(ctx, func(items *PostgresItemStore) error {
		_, err := items.MarkFailed(ctx, itemID, reason)
		return err
	})
}

// ApplyExtraction implements task.ItemSession. The metadata update, the tag
// association rewrite, and the status transition commit or roll back as one
// unit, so readers never observe a half-applied result.
func (s *itemSession) ApplyExtraction(ctx context.Context, itemID uuid.UUID, result *extraction.Result) error {
	return s.inTransaction(ctx, func(items *PostgresItemStore) error {
		_, err := items.ApplyExtraction(ctx, itemID, result)
		return err
	})
}

// Close releases the session's connection back to the pool
func (s *itemSession) Close() error {
	return s.conn.Close()
}

// inTransaction runs fn against an item store bound to a transaction on the
// session's connection, committing on success and rolling back on error.
func (s *itemSession) inTransaction(ctx context.Context, fn func(items *PostgresItemStore) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txItems := &PostgresItemStore{db: tx, logger: s.logger}
	if err := fn(txItems); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			s.logger.ErrorContext(ctx, "failed to roll back transaction",
				slog.String("rollback_error", rollbackErr.Error()),
				slog.String("original_error", err.Error()))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
