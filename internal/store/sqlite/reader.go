package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"slobengine/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for replay and backtests.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadCandles reads archived candles for a symbol after the given unix
// timestamp, ordered by timestamp ascending for correct replay order.
func (r *Reader) ReadCandles(symbol string, afterTS int64) ([]model.Candle, error) {
	rows, err := r.db.Query(`
		SELECT symbol, ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsUnix int64
		if err := rows.Scan(&c.Symbol, &tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		c.TS = time.Unix(tsUnix, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// ReadSetups returns journaled setups for a symbol ordered by completion
// time.
func (r *Reader) ReadSetups(symbol string) ([]model.Setup, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, direction, liq1_price, liq1_ts, liq2_price, liq2_ts,
		       entry_price, sl_price, tp_price, rr, quality, created_ts, completed_ts
		FROM setups
		WHERE symbol = ?
		ORDER BY completed_ts ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("sqlite query setups: %w", err)
	}
	defer rows.Close()

	var setups []model.Setup
	for rows.Next() {
		var s model.Setup
		var dir string
		var liq1TS, liq2TS, createdTS, completedTS int64
		if err := rows.Scan(&s.ID, &s.Symbol, &dir, &s.Liq1Price, &liq1TS, &s.Liq2Price, &liq2TS,
			&s.EntryPrice, &s.SLPrice, &s.TPPrice, &s.RiskRewardRatio, &s.ConsolidationQuality,
			&createdTS, &completedTS); err != nil {
			return nil, fmt.Errorf("sqlite scan setup: %w", err)
		}
		s.Direction = model.Direction(dir)
		s.Liq1Time = time.Unix(liq1TS, 0).UTC()
		s.Liq2Time = time.Unix(liq2TS, 0).UTC()
		s.CreatedAt = time.Unix(createdTS, 0).UTC()
		s.CompletedAt = time.Unix(completedTS, 0).UTC()
		setups = append(setups, s)
	}
	return setups, rows.Err()
}

// HasSetup reports whether a setup with the given candidate id has
// already been journaled. Used by the dispatch idempotency guard after a
// restart.
func (r *Reader) HasSetup(id string) (bool, error) {
	var one int
	err := r.db.QueryRow(`SELECT 1 FROM setups WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite query setup id: %w", err)
	}
	return true, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
