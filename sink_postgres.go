package optionchain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Database string `yaml:"database" env:"DATABASE"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
	SSLMode  string `yaml:"ssl_mode" env:"SSL_MODE"`

	MaxConns       int32         `yaml:"max_conns" env:"MAX_CONNS"` //连接池上限
	MinConns       int32         `yaml:"min_conns" env:"MIN_CONNS"` //连接池下限
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`

	ApplicationName string `yaml:"application_name" env:"APPLICATION_NAME"`
	Table           string `yaml:"table" env:"TABLE"` //报价表名
}

func (c PostgresConfig) withDefaults() PostgresConfig {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.Database == "" {
		c.Database = "optionchain"
	}
	if c.Username == "" {
		c.Username = "postgres"
	}
	if c.SSLMode == "" {
		c.SSLMode = "prefer"
	}
	if c.MaxConns == 0 {
		c.MaxConns = 16
	}
	if c.MinConns == 0 {
		c.MinConns = 1
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "optionchain"
	}
	if c.Table == "" {
		c.Table = "option_quotes"
	}
	return c
}

func (c PostgresConfig) connString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// PostgresSink writes quotes through a pgx pool. Rows that already exist are
// left untouched, so a day can be reloaded without duplicating it.
type PostgresSink struct {
	pool   *pgxpool.Pool
	insert string
}

func NewPostgresSink(ctx context.Context, config PostgresConfig) (*PostgresSink, error) {
	config = config.withDefaults()
	pgxConfig, err := pgxpool.ParseConfig(config.connString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgresql config: %w", err)
	}
	pgxConfig.MaxConns = config.MaxConns
	pgxConfig.MinConns = config.MinConns
	pgxConfig.ConnConfig.ConnectTimeout = config.ConnectTimeout
	if config.ApplicationName != "" {
		pgxConfig.ConnConfig.RuntimeParams["application_name"] = config.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgresql pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgresql: %w", err)
	}
	s := &PostgresSink{pool: pool, insert: insertQuoteSQL(config.Table, postgresPlaceholder)}
	if err := s.migrate(ctx, config.Table); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) migrate(ctx context.Context, table string) error {
	ident := pgx.Identifier{table}.Sanitize()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + ident + ` (
			underlying TEXT NOT NULL,
			quote_time TIMESTAMPTZ NOT NULL,
			root TEXT NOT NULL,
			expiration DATE NOT NULL,
			strike INTEGER NOT NULL,
			kind CHAR(1) NOT NULL,
			bid DOUBLE PRECISION,
			ask DOUBLE PRECISION,
			mid DOUBLE PRECISION,
			underlying_price DOUBLE PRECISION,
			dte INTEGER NOT NULL,
			risk_free_rate DOUBLE PRECISION,
			dividend_yield DOUBLE PRECISION,
			iv DOUBLE PRECISION,
			delta DOUBLE PRECISION,
			gamma DOUBLE PRECISION,
			theta DOUBLE PRECISION,
			vega DOUBLE PRECISION,
			rho DOUBLE PRECISION,
			delta_scaled INTEGER NOT NULL,
			open_interest BIGINT NOT NULL DEFAULT 0,
			source TEXT NOT NULL,
			nan_flag BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (quote_time, root, expiration, kind, strike)
		)`,
		`CREATE INDEX IF NOT EXISTS ` + pgx.Identifier{"idx_" + table + "_delta"}.Sanitize() +
			` ON ` + ident + ` (quote_time, expiration, kind, delta_scaled)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgresql: %w", err)
		}
	}
	return nil
}

func (s *PostgresSink) SaveQuote(ctx context.Context, q *Quote) error {
	if _, err := s.pool.Exec(ctx, s.insert, quoteRow(q)...); err != nil {
		return fmt.Errorf("insert quote line %d: %w", q.Line, err)
	}
	return nil
}

// SaveQuotes sends the quotes as one pipelined batch.
func (s *PostgresSink) SaveQuotes(ctx context.Context, quotes []*Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, q := range quotes {
		batch.Queue(s.insert, quoteRow(q)...)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for _, q := range quotes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert quote line %d: %w", q.Line, err)
		}
	}
	return nil
}

func (s *PostgresSink) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func postgresPlaceholder(i int) string {
	return fmt.Sprintf("$%d", i+1)
}

func sqlitePlaceholder(int) string {
	return "?"
}

func insertQuoteSQL(table string, placeholder func(int) string) string {
	marks := make([]string, quoteColumnCount)
	for i := range marks {
		marks[i] = placeholder(i)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		pgx.Identifier{table}.Sanitize(), quoteColumns, strings.Join(marks, ", "))
}
