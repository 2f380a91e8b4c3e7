// Package recorder persists cycle reports, fills and reconciliation drift to
// a SQLite database for offline analysis. The WAL ledger stays the source of
// truth; this database is rebuildable reporting data.
package recorder

import (
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/vadiminshakov/folio/internal/domain"
)

// SQLiteRecorder persists historical engine data to a SQLite database.
type SQLiteRecorder struct {
	l  *zap.Logger
	db *sql.DB
	mu sync.Mutex
}

// CycleSummary aggregates one engine cycle for reporting.
type CycleSummary struct {
	CycleID     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Equity      decimal.Decimal
	Cash        decimal.Decimal
	ExposurePct decimal.Decimal
	Positions   int
	Decisions   int
	Executed    int
	HedgeLevel  string
	VIX         decimal.Decimal
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(l *zap.Logger, dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	// WAL mode so dashboards can read while the engine writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set WAL mode")
	}

	r := &SQLiteRecorder{l: l, db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	l.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id     TEXT NOT NULL,
			started_at   INTEGER NOT NULL,
			finished_at  INTEGER NOT NULL,
			equity       REAL,
			cash         REAL,
			exposure_pct REAL,
			positions    INTEGER,
			decisions    INTEGER,
			executed     INTEGER,
			hedge_level  TEXT,
			vix          REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at)`,

		`CREATE TABLE IF NOT EXISTS fills (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			cycle_id   TEXT NOT NULL,
			order_id   TEXT,
			ticker     TEXT NOT NULL,
			side       TEXT NOT NULL,
			quantity   TEXT,
			price      TEXT,
			notional   TEXT,
			commission TEXT,
			reason     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fills_ts ON fills(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_fills_ticker ON fills(ticker)`,

		`CREATE TABLE IF NOT EXISTS drift (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			cycle_id     TEXT NOT NULL,
			ticker       TEXT,
			field        TEXT NOT NULL,
			ledger_value TEXT,
			broker_value TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_drift_ts ON drift(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return errors.Wrapf(err, "exec %q", s[:40])
		}
	}
	return nil
}

// RecordCycle writes one cycle report row. Aggregates are stored as REAL;
// exact money stays in the WAL ledger.
func (r *SQLiteRecorder) RecordCycle(sum CycleSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO cycles
		(cycle_id, started_at, finished_at, equity, cash, exposure_pct,
		 positions, decisions, executed, hedge_level, vix)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		sum.CycleID, sum.StartedAt.Unix(), sum.FinishedAt.Unix(),
		sum.Equity.InexactFloat64(), sum.Cash.InexactFloat64(),
		sum.ExposurePct.InexactFloat64(),
		sum.Positions, sum.Decisions, sum.Executed,
		sum.HedgeLevel, sum.VIX.InexactFloat64(),
	)
	return errors.Wrap(err, "record cycle")
}

// RecordFill writes one executed order. Quantities and prices are stored as
// exact decimal strings.
func (r *SQLiteRecorder) RecordFill(cycleID string, reason domain.ReasonCode, fill domain.Fill) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO fills
		(timestamp, cycle_id, order_id, ticker, side, quantity, price, notional, commission, reason)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		fill.FilledAt.Unix(), cycleID, fill.ClientOrderID,
		fill.Ticker, fill.Side.String(),
		fill.Quantity.String(), fill.Price.String(),
		fill.Notional().String(), fill.Commission.String(),
		string(reason),
	)
	return errors.Wrap(err, "record fill")
}

// RecordDrift writes one reconciliation divergence.
func (r *SQLiteRecorder) RecordDrift(cycleID string, drift domain.DriftRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO drift
		(timestamp, cycle_id, ticker, field, ledger_value, broker_value)
		VALUES (?,?,?,?,?,?)`,
		drift.DetectedAt.Unix(), cycleID, drift.Ticker, drift.Field,
		drift.LedgerValue, drift.BrokerValue,
	)
	return errors.Wrap(err, "record drift")
}

// Close closes the underlying database.
func (r *SQLiteRecorder) Close() error {
	r.l.Info("closing sqlite recorder")
	return r.db.Close()
}
