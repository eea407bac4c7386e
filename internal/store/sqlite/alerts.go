package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"trading-analyticsv1/internal/model"
)

const alertSchema = `
	CREATE TABLE IF NOT EXISTS alerts_final (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		time               TEXT    NOT NULL,
		symbol             TEXT    NOT NULL,
		future_oi_category TEXT,
		depth_bias         TEXT,
		index_bias         TEXT,
		sector_bias        TEXT,
		market_bias        TEXT,
		regime             TEXT,
		vix_state          TEXT,
		confidence         INTEGER,
		recommended_action TEXT,
		metadata           TEXT,
		UNIQUE (symbol, time)
	);
	CREATE TABLE IF NOT EXISTS alert_watermark (
		id          INTEGER PRIMARY KEY CHECK (id = 1),
		time_minute TEXT NOT NULL
	);
`

// AlertStore persists alert decisions and the alert engine's watermark.
type AlertStore struct {
	db *sql.DB
}

// NewAlertStore opens (and if necessary creates or migrates) the alert
// database.
func NewAlertStore(path string) (*AlertStore, error) {
	db, err := openWithSchema(path, "alerts", alertSchema)
	if err != nil {
		return nil, err
	}
	if err := migrateDeliveredColumn(db); err != nil {
		db.Close()
		return nil, err
	}
	return &AlertStore{db: db}, nil
}

// migrateDeliveredColumn adds telegram_sent to tables created before
// delivery tracking existed.
func migrateDeliveredColumn(db *sql.DB) error {
	rows, err := db.Query(`PRAGMA table_info(alerts_final)`)
	if err != nil {
		return fmt.Errorf("sqlite alerts table info: %w", err)
	}
	found := false
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite alerts scan table info: %w", err)
		}
		if name == "telegram_sent" {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if found {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE alerts_final ADD COLUMN telegram_sent INTEGER DEFAULT 0`); err != nil {
		return fmt.Errorf("sqlite alerts add telegram_sent: %w", err)
	}
	log.Printf("[sqlite] alerts_final migrated: added telegram_sent")
	return nil
}

// DB returns the underlying sql.DB for health checks.
func (s *AlertStore) DB() *sql.DB { return s.db }

// Watermark returns the last fully processed analytics minute, or "".
func (s *AlertStore) Watermark(ctx context.Context) (string, error) {
	var m string
	err := s.db.QueryRowContext(ctx, `SELECT time_minute FROM alert_watermark WHERE id = 1`).Scan(&m)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite alert watermark: %w", err)
	}
	return m, nil
}

// SetWatermark records minute as fully processed.
func (s *AlertStore) SetWatermark(ctx context.Context, minute string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_watermark (id, time_minute) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET time_minute = excluded.time_minute
	`, minute)
	if err != nil {
		return fmt.Errorf("sqlite set alert watermark: %w", err)
	}
	return nil
}

// Exists reports whether an alert for (symbol, minute) is already stored.
func (s *AlertStore) Exists(ctx context.Context, symbol, minute string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM alerts_final WHERE symbol = ? AND time = ?`, symbol, minute).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite alert exists: %w", err)
	}
	return n > 0, nil
}

// Insert stores rec and returns its id. rec.ID is set on success.
func (s *AlertStore) Insert(ctx context.Context, rec *model.AlertRecord) (int64, error) {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal alert metadata: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts_final (
			time, symbol, future_oi_category, depth_bias, index_bias, sector_bias,
			market_bias, regime, vix_state, confidence, recommended_action,
			metadata, telegram_sent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Minute, rec.Symbol, rec.OICategory, rec.DepthBias, rec.IndexBias, rec.SectorBias,
		rec.MarketBias, rec.Regime, rec.VixState, rec.Confidence, rec.Action,
		string(meta), boolInt(rec.TelegramSent))
	if err != nil {
		return 0, fmt.Errorf("sqlite alert insert %s@%s: %w", rec.Symbol, rec.Minute, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite alert insert id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// MarkDelivered flags alert id as delivered.
func (s *AlertStore) MarkDelivered(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE alerts_final SET telegram_sent = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite alert mark delivered %d: %w", id, err)
	}
	return nil
}

// Recent returns the newest limit alerts, newest first.
func (s *AlertStore) Recent(ctx context.Context, limit int) ([]model.AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, time, symbol, COALESCE(future_oi_category, ''), COALESCE(depth_bias, ''),
			COALESCE(index_bias, ''), COALESCE(sector_bias, ''), COALESCE(market_bias, ''),
			COALESCE(regime, ''), COALESCE(vix_state, ''), COALESCE(confidence, 0),
			COALESCE(recommended_action, ''), COALESCE(metadata, '{}'), COALESCE(telegram_sent, 0)
		FROM alerts_final ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query alerts: %w", err)
	}
	defer rows.Close()

	var out []model.AlertRecord
	for rows.Next() {
		var (
			a    model.AlertRecord
			meta string
			sent int
		)
		err := rows.Scan(&a.ID, &a.Minute, &a.Symbol, &a.OICategory, &a.DepthBias,
			&a.IndexBias, &a.SectorBias, &a.MarketBias, &a.Regime, &a.VixState,
			&a.Confidence, &a.Action, &meta, &sent)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan alert: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode alert %d metadata: %w", a.ID, err)
		}
		a.TelegramSent = sent == 1
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *AlertStore) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
