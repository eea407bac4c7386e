package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trading-analyticsv1/internal/model"
)

const oiSchema = `
	CREATE TABLE IF NOT EXISTS futures_oi_category_1m (
		instrument_token INTEGER NOT NULL,
		time_minute      TEXT    NOT NULL,
		price_start      REAL,
		price_end        REAL,
		oi_start         INTEGER,
		oi_end           INTEGER,
		price_change     REAL,
		oi_change        INTEGER,
		oi_category      TEXT    NOT NULL,
		PRIMARY KEY (instrument_token, time_minute)
	);
	CREATE INDEX IF NOT EXISTS idx_oi_minute ON futures_oi_category_1m(time_minute);
`

// OIStore holds per-minute futures OI categories.
type OIStore struct {
	db *sql.DB
}

// NewOIStore opens (and if necessary creates) the OI category database.
func NewOIStore(path string) (*OIStore, error) {
	db, err := openWithSchema(path, "oi", oiSchema)
	if err != nil {
		return nil, err
	}
	return &OIStore{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (s *OIStore) DB() *sql.DB { return s.db }

// LastMinute returns the newest categorized minute across tokens, or ""
// when none of them has a row. An empty token list considers every row.
func (s *OIStore) LastMinute(ctx context.Context, tokens []int64) (string, error) {
	query := `SELECT MAX(time_minute) FROM futures_oi_category_1m`
	args := make([]any, 0, len(tokens))
	if len(tokens) > 0 {
		query += ` WHERE instrument_token IN (` + placeholders(len(tokens)) + `)`
		for _, tok := range tokens {
			args = append(args, tok)
		}
	}
	m, err := lastMinute(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return "", fmt.Errorf("sqlite oi last minute: %w", err)
	}
	return m, nil
}

// UpsertCategories writes rows in one transaction, replacing existing keys.
func (s *OIStore) UpsertCategories(ctx context.Context, rows []model.OICategoryRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite oi begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO futures_oi_category_1m (
			instrument_token, time_minute, price_start, price_end,
			oi_start, oi_end, price_change, oi_change, oi_category
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		rollback(tx)
		return fmt.Errorf("sqlite oi prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.Token, r.Minute, r.PriceStart, r.PriceEnd,
			r.OIStart, r.OIEnd, r.PriceChange, r.OIChange, r.Category,
		)
		if err != nil {
			rollback(tx)
			return fmt.Errorf("sqlite oi insert %d@%s: %w", r.Token, r.Minute, err)
		}
	}
	return tx.Commit()
}

// Category returns the category of one bucket, or model.NoCategory.
func (s *OIStore) Category(ctx context.Context, token int64, minute string) (string, error) {
	var cat string
	err := s.db.QueryRowContext(ctx, `
		SELECT oi_category FROM futures_oi_category_1m
		WHERE instrument_token = ? AND time_minute = ?
	`, token, minute).Scan(&cat)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NoCategory, nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite oi category %d@%s: %w", token, minute, err)
	}
	return cat, nil
}

// Close closes the database.
func (s *OIStore) Close() error {
	return s.db.Close()
}
