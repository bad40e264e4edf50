package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/username/brokerbridge/src/logger"
)

// Dialect captures the few SQL differences between the supported drivers.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, nil
	default:
		return 0, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// Rebind rewrites ? placeholders to $1..$n for Postgres.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DB is a database handle plus the dialect its queries are written for.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects with the given driver, verifies the connection and applies
// migrations. The caller owns the returned handle and must Close it.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		// one writer at a time; sqlite returns SQLITE_BUSY otherwise
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, Dialect: dialect}
	logger.L.Info("Checking database migrations", "driver", dialect.driverName())
	if err := db.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

const holdingsSchema = `
CREATE TABLE IF NOT EXISTS equity_holdings (
	id %[1]s,
	user_id TEXT NOT NULL,
	member_id TEXT NOT NULL,
	broker_platform TEXT NOT NULL,
	symbol TEXT NOT NULL,
	company_name TEXT NOT NULL,
	isin TEXT,
	sector TEXT,
	quantity TEXT NOT NULL,
	average_price TEXT NOT NULL,
	current_price TEXT NOT NULL,
	invested_amount TEXT NOT NULL,
	current_value TEXT NOT NULL,
	import_date TEXT NOT NULL,
	import_batch TEXT NOT NULL,
	raw TEXT
);

CREATE INDEX IF NOT EXISTS idx_equity_holdings_scope
	ON equity_holdings (user_id, broker_platform, member_id);

CREATE TABLE IF NOT EXISTS mutual_fund_holdings (
	id %[1]s,
	user_id TEXT NOT NULL,
	member_id TEXT NOT NULL,
	broker_platform TEXT NOT NULL,
	scheme_name TEXT NOT NULL,
	scheme_code TEXT,
	folio_number TEXT,
	fund_house TEXT,
	units TEXT NOT NULL,
	average_nav TEXT NOT NULL,
	current_nav TEXT NOT NULL,
	invested_amount TEXT NOT NULL,
	current_value TEXT NOT NULL,
	import_date TEXT NOT NULL,
	import_batch TEXT NOT NULL,
	raw TEXT
);

CREATE INDEX IF NOT EXISTS idx_mutual_fund_holdings_scope
	ON mutual_fund_holdings (user_id, broker_platform, member_id);
`

func (db *DB) migrate(ctx context.Context) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.Dialect == DialectPostgres {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	for _, stmt := range strings.Split(fmt.Sprintf(holdingsSchema, idColumn), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.L.Error("failed to create tables", "error", err)
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}

	// Databases created before the audit copy existed lack the raw column.
	for _, table := range []string{"equity_holdings", "mutual_fund_holdings"} {
		if err := db.ensureColumn(ctx, table, "raw", "TEXT"); err != nil {
			return err
		}
	}

	logger.L.Info("Database tables ensured/created.")
	return nil
}

func (db *DB) ensureColumn(ctx context.Context, table, column, columnType string) error {
	exists, err := db.columnExists(ctx, table, column)
	if err != nil {
		logger.L.Error("Error querying table schema", "table", table, "error", err)
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	if exists {
		return nil
	}
	logger.L.Info("Adding missing column", "table", table, "column", column)
	if _, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, columnType)); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}
	return nil
}

func (db *DB) columnExists(ctx context.Context, table, column string) (bool, error) {
	if db.Dialect == DialectPostgres {
		var n int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM information_schema.columns WHERE table_name = $1 AND column_name = $2`,
			table, column).Scan(&n)
		return n > 0, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notnull, pk int
		var name, dataType string
		var dflt any
		if err := rows.Scan(&cid, &name, &dataType, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
