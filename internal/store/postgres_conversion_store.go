package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	_ "github.com/lib/pq"
)

const conversionSchemaSQL = `
CREATE TABLE IF NOT EXISTS conversions (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	status TEXT NOT NULL,
	format TEXT NOT NULL,
	path TEXT NOT NULL,
	bytes BIGINT NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	object_key TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS conversions_session_id_idx ON conversions (session_id, created_at);
`

const conversionColumns = `id, session_id, status, format, path, bytes, width, height, object_key, created_at, published_at`

type PostgresConversionStore struct {
	db *sql.DB
}

func NewPostgresConversionStore(ctx context.Context, dsn string) (*PostgresConversionStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresConversionStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresConversionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, conversionSchemaSQL); err != nil {
		return fmt.Errorf("ensure conversions schema: %w", err)
	}
	return nil
}

func (s *PostgresConversionStore) Close() error {
	return s.db.Close()
}

func (s *PostgresConversionStore) Create(ctx context.Context, c domain.Conversion) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO conversions (`+conversionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID,
		c.SessionID,
		c.Status,
		c.Format,
		c.Path,
		c.Bytes,
		c.Width,
		c.Height,
		c.ObjectKey,
		c.CreatedAt,
		c.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversion: %w", err)
	}
	return nil
}

func (s *PostgresConversionStore) Get(ctx context.Context, id string) (domain.Conversion, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+conversionColumns+`
		 FROM conversions
		 WHERE id = $1`,
		id,
	)

	c, err := scanConversion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Conversion{}, false, nil
		}
		return domain.Conversion{}, false, fmt.Errorf("query conversion: %w", err)
	}
	return c, true, nil
}

func (s *PostgresConversionStore) MarkPublished(ctx context.Context, id, objectKey string, at time.Time) (domain.Conversion, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE conversions
		 SET status = $1, object_key = $2, published_at = $3
		 WHERE id = $4`,
		domain.ConversionStatusPublished,
		objectKey,
		at.UTC(),
		id,
	)
	if err != nil {
		return domain.Conversion{}, fmt.Errorf("update conversion: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Conversion{}, ErrConversionNotFound
	}

	c, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.Conversion{}, err
	}
	if !ok {
		return domain.Conversion{}, ErrConversionNotFound
	}
	return c, nil
}

func (s *PostgresConversionStore) ListBySession(ctx context.Context, sessionID string) ([]domain.Conversion, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+conversionColumns+`
		 FROM conversions
		 WHERE session_id = $1
		 ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Conversion, 0)
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversion(row rowScanner) (domain.Conversion, error) {
	var (
		c           domain.Conversion
		publishedAt sql.NullTime
	)
	if err := row.Scan(
		&c.ID,
		&c.SessionID,
		&c.Status,
		&c.Format,
		&c.Path,
		&c.Bytes,
		&c.Width,
		&c.Height,
		&c.ObjectKey,
		&c.CreatedAt,
		&publishedAt,
	); err != nil {
		return domain.Conversion{}, err
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		c.PublishedAt = &t
	}
	return c, nil
}
