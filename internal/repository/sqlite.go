package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"tax-assistant/internal/domain"
	"tax-assistant/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// timestampLayout sorts lexically in the same order as the instants it encodes.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLStore keeps chat history in a local SQLite file.
type SQLStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

type exchangeRow struct {
	UserID    string `db:"user_id"`
	Prompt    string `db:"prompt"`
	Response  string `db:"response"`
	Timestamp string `db:"timestamp"`
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// embedded migrations.
func OpenSQLite(path string, logger *slog.Logger) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("repository: sqlite path must not be empty")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("repository: create database dir: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repository: connect sqlite: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := applyMigrations(db.DB); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("close database after migration failure", "err", closeErr)
		}
		return nil, err
	}

	logger.Info("history database ready", "path", path)
	return &SQLStore{db: db, logger: logger.With("component", "sqlite_store")}, nil
}

func applyMigrations(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("repository: migration source: %w", err)
	}
	drv, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("repository: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("repository: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("repository: apply migrations: %w", err)
	}
	return nil
}

// SaveExchange records one answered question.
func (s *SQLStore) SaveExchange(ctx context.Context, ex domain.Exchange) error {
	if ex.Timestamp.IsZero() {
		ex.Timestamp = time.Now()
	}
	row := exchangeRow{
		UserID:    normalizeUserID(ex.UserID),
		Prompt:    ex.Prompt,
		Response:  ex.Response,
		Timestamp: ex.Timestamp.UTC().Format(timestampLayout),
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO chat_history (user_id, prompt, response, timestamp)
		 VALUES (:user_id, :prompt, :response, :timestamp)`, row)
	if err != nil {
		return fmt.Errorf("repository: SaveExchange: %w", err)
	}
	return nil
}

// RecentExchanges returns up to limit exchanges for userID, newest first.
func (s *SQLStore) RecentExchanges(ctx context.Context, userID string, limit int) ([]domain.Exchange, error) {
	if limit <= 0 {
		return []domain.Exchange{}, nil
	}
	var rows []exchangeRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT user_id, prompt, response, timestamp FROM chat_history
		 WHERE user_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
		normalizeUserID(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("repository: RecentExchanges: %w", err)
	}

	out := make([]domain.Exchange, 0, len(rows))
	for _, r := range rows {
		ts, err := time.Parse(timestampLayout, r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("repository: RecentExchanges: parse timestamp %q: %w", r.Timestamp, err)
		}
		out = append(out, domain.Exchange{
			UserID:    r.UserID,
			Prompt:    r.Prompt,
			Response:  r.Response,
			Timestamp: ts,
		})
	}
	return out, nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("repository: ping sqlite: %w", err)
	}
	return nil
}

// PruneBefore deletes exchanges recorded before cutoff and reports how many
// rows were removed.
func (s *SQLStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_history WHERE timestamp < ?`, cutoff.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("repository: PruneBefore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repository: PruneBefore rows affected: %w", err)
	}
	return n, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
