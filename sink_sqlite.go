package optionchain

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteTable = "option_quotes"

// SqliteSink stores quotes in a local SQLite file. A single connection is
// used so concurrent day tasks queue on it instead of failing with SQLITE_BUSY.
type SqliteSink struct {
	db     *sql.DB
	insert string
}

func OpenSqliteSink(path string) (*SqliteSink, error) {
	if path == "" {
		path = "data/optionchain.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=3000;"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	s := &SqliteSink{db: db, insert: insertQuoteSQL(sqliteTable, sqlitePlaceholder)}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqliteSink) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS option_quotes (
			underlying TEXT NOT NULL,
			quote_time TEXT NOT NULL,
			root TEXT NOT NULL,
			expiration TEXT NOT NULL,
			strike INTEGER NOT NULL,
			kind TEXT NOT NULL,
			bid REAL,
			ask REAL,
			mid REAL,
			underlying_price REAL,
			dte INTEGER NOT NULL,
			risk_free_rate REAL,
			dividend_yield REAL,
			iv REAL,
			delta REAL,
			gamma REAL,
			theta REAL,
			vega REAL,
			rho REAL,
			delta_scaled INTEGER NOT NULL,
			open_interest INTEGER NOT NULL DEFAULT 0,
			source TEXT NOT NULL,
			nan_flag INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (quote_time, root, expiration, kind, strike)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_option_quotes_delta ON option_quotes(quote_time, expiration, kind, delta_scaled);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

func (s *SqliteSink) SaveQuote(ctx context.Context, q *Quote) error {
	if _, err := s.db.ExecContext(ctx, s.insert, sqliteRow(q)...); err != nil {
		return fmt.Errorf("insert quote line %d: %w", q.Line, err)
	}
	return nil
}

// SaveQuotes stores the quotes in one transaction.
func (s *SqliteSink) SaveQuotes(ctx context.Context, quotes []*Quote) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, q := range quotes {
		if _, err := stmt.ExecContext(ctx, sqliteRow(q)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert quote line %d: %w", q.Line, err)
		}
	}
	return tx.Commit()
}

// CountQuotes returns the number of stored rows.
func (s *SqliteSink) CountQuotes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM option_quotes`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SqliteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// sqliteRow stores times as text so they sort and compare lexically.
func sqliteRow(q *Quote) []any {
	row := quoteRow(q)
	row[1] = q.QuoteTime.UTC().Format(quoteTimeLayout)
	row[3] = q.Expiration.Format(dayLayout)
	for i, v := range row {
		if f, ok := v.(*float64); ok {
			if f == nil {
				row[i] = nil
			} else {
				row[i] = *f
			}
		}
	}
	return row
}
