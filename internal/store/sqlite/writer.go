package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"slobengine/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/slob.db"
}

// Writer is a single-goroutine SQLite writer: candle archive with
// transaction batching, plus the setup/invalidation journal.
type Writer struct {
	db *sql.DB

	// OnCommit is called after each successful batch commit (metrics hook).
	OnCommit func(n int, d time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			volume REAL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS setups (
			id           TEXT PRIMARY KEY,
			symbol       TEXT NOT NULL,
			direction    TEXT NOT NULL,
			liq1_price   REAL NOT NULL,
			liq1_ts      INTEGER NOT NULL,
			liq2_price   REAL NOT NULL,
			liq2_ts      INTEGER NOT NULL,
			entry_price  REAL NOT NULL,
			sl_price     REAL NOT NULL,
			tp_price     REAL NOT NULL,
			rr           REAL NOT NULL,
			quality      REAL NOT NULL,
			created_ts   INTEGER NOT NULL,
			completed_ts INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS invalidations (
			candidate_id TEXT    NOT NULL,
			symbol       TEXT    NOT NULL,
			reason       TEXT    NOT NULL,
			ts           INTEGER NOT NULL,
			PRIMARY KEY (candidate_id, ts)
		);
	`)
	return err
}

// Run reads candles from candleCh and inserts them in batched transactions.
// Flushes every batchSize candles OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or candleCh is closed.
func (w *Writer) Run(ctx context.Context, candleCh <-chan model.Candle) {
	batch := make([]model.Candle, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			elapsed := time.Since(start)
			log.Printf("[sqlite] committed %d candles in %v", len(batch), elapsed)
			if w.OnCommit != nil {
				w.OnCommit(len(batch), elapsed)
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case candle, ok := <-candleCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, candle)
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

// insertBatch inserts a batch of candles in a single transaction.
func (w *Writer) insertBatch(candles []model.Candle) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.Exec(c.Symbol, c.TS.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// SaveSetup journals one completed setup. INSERT OR IGNORE keeps replay
// idempotent: the candidate id is the primary key, so re-journaling the
// same setup is a no-op.
func (w *Writer) SaveSetup(s model.Setup) error {
	_, err := w.db.Exec(`
		INSERT OR IGNORE INTO setups
			(id, symbol, direction, liq1_price, liq1_ts, liq2_price, liq2_ts,
			 entry_price, sl_price, tp_price, rr, quality, created_ts, completed_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Symbol, string(s.Direction),
		s.Liq1Price, s.Liq1Time.Unix(), s.Liq2Price, s.Liq2Time.Unix(),
		s.EntryPrice, s.SLPrice, s.TPPrice, s.RiskRewardRatio, s.ConsolidationQuality,
		s.CreatedAt.Unix(), s.CompletedAt.Unix())
	if err != nil {
		return fmt.Errorf("sqlite insert setup: %w", err)
	}
	return nil
}

// SaveInvalidation journals one invalidation notice for diagnostics.
func (w *Writer) SaveInvalidation(inv model.Invalidation) error {
	_, err := w.db.Exec(`
		INSERT OR IGNORE INTO invalidations (candidate_id, symbol, reason, ts)
		VALUES (?, ?, ?, ?)
	`, inv.ID, inv.Symbol, inv.Reason, inv.At.Unix())
	if err != nil {
		return fmt.Errorf("sqlite insert invalidation: %w", err)
	}
	return nil
}

// GetLastTimestamp returns the last archived candle timestamp for a
// symbol. Returns 0 if no candles exist.
func (w *Writer) GetLastTimestamp(symbol string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts) FROM candles WHERE symbol = ?`, symbol,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
