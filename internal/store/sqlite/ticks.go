package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"trading-analyticsv1/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

const tickSchema = `
	CREATE TABLE IF NOT EXISTS ticks_json (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		ts_ist           TEXT    NOT NULL,
		instrument_token INTEGER NOT NULL,
		symbol           TEXT,
		tick_json        TEXT    NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ticks_ts ON ticks_json(ts_ist);
	CREATE INDEX IF NOT EXISTS idx_ticks_token_ts ON ticks_json(instrument_token, ts_ist);
`

// TickStore is the append-only tick log. The pipeline only reads it; the
// ingestion recorder is the single writer.
type TickStore struct {
	db *sql.DB

	// OnCommit is called after each committed batch (optional, for metrics).
	OnCommit func(n int, elapsed time.Duration)
}

// NewTickStore opens (and if necessary creates) the tick database.
func NewTickStore(path string) (*TickStore, error) {
	db, err := openWithSchema(path, "ticks", tickSchema)
	if err != nil {
		return nil, err
	}
	return &TickStore{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (s *TickStore) DB() *sql.DB { return s.db }

// Append inserts ticks in a single transaction.
func (s *TickStore) Append(ctx context.Context, ticks []model.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite ticks begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ticks_json (ts_ist, instrument_token, symbol, tick_json)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		rollback(tx)
		return fmt.Errorf("sqlite ticks prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range ticks {
		if _, err := stmt.ExecContext(ctx, t.TS, t.Token, t.Symbol, t.Raw); err != nil {
			rollback(tx)
			return fmt.Errorf("sqlite ticks insert: %w", err)
		}
	}
	return tx.Commit()
}

// Run reads ticks from tickCh and appends them in batched transactions.
// Flushes every defaultBatchSize ticks or every defaultFlushDelay, whichever
// comes first. Blocks until ctx is cancelled or tickCh is closed.
func (s *TickStore) Run(ctx context.Context, tickCh <-chan model.Tick) {
	batch := make([]model.Tick, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		// Use a detached context so the final flush on shutdown still lands.
		if err := s.Append(context.Background(), batch); err != nil {
			log.Printf("[sqlite] tick batch insert error: %v", err)
		} else if s.OnCommit != nil {
			s.OnCommit(len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case t, ok := <-tickCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, t)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// ReadRange returns ticks matching q ordered by arrival id.
func (s *TickStore) ReadRange(ctx context.Context, q model.TickQuery) ([]model.Tick, error) {
	var (
		where []string
		args  []any
	)
	if len(q.Tokens) > 0 {
		where = append(where, "instrument_token IN ("+placeholders(len(q.Tokens))+")")
		for _, tok := range q.Tokens {
			args = append(args, tok)
		}
	}
	if q.From != "" {
		where = append(where, "ts_ist >= ?")
		args = append(args, q.From)
	}
	if q.To != "" {
		where = append(where, "ts_ist < ?")
		args = append(args, q.To)
	}

	query := "SELECT id, ts_ist, instrument_token, COALESCE(symbol, ''), tick_json FROM ticks_json"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query ticks_json: %w", err)
	}
	defer rows.Close()

	var ticks []model.Tick
	for rows.Next() {
		var t model.Tick
		if err := rows.Scan(&t.ID, &t.TS, &t.Token, &t.Symbol, &t.Raw); err != nil {
			return nil, fmt.Errorf("sqlite scan ticks_json: %w", err)
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// Close closes the database.
func (s *TickStore) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
