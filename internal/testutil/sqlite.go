// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"github.com/stretchr/testify/require"
)

// sqliteSchema mirrors migrations/000001_init.up.sql in sqlite dialect.
const sqliteSchema = `
CREATE TABLE portfolios (
    portfolio_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id      INTEGER NOT NULL,
    name         TEXT    NOT NULL DEFAULT '',
    balance      NUMERIC NOT NULL DEFAULT 0 CHECK (balance >= 0)
);

CREATE TABLE stocks (
    stock_id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol   TEXT NOT NULL UNIQUE,
    name     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE transactions (
    transaction_id  INTEGER PRIMARY KEY AUTOINCREMENT,
    portfolio_id    INTEGER   NOT NULL REFERENCES portfolios (portfolio_id),
    stock_id        INTEGER   NOT NULL REFERENCES stocks (stock_id),
    type            TEXT      NOT NULL CHECK (type IN ('BUY', 'SELL')),
    quantity        INTEGER   NOT NULL CHECK (quantity > 0),
    price           NUMERIC   NOT NULL CHECK (price > 0),
    total_amount    NUMERIC   NOT NULL,
    status          TEXT      NOT NULL CHECK (status IN ('PENDING', 'COMPLETED', 'FAILED')),
    idempotency_key TEXT UNIQUE,
    dt_create       TIMESTAMP NOT NULL
);
`

// NewSQLiteDB opens a file-backed sqlite database with the ledger schema.
// A single connection keeps every transaction serialized.
func NewSQLiteDB(t testing.TB) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Connect("sqlite3", filepath.Join(t.TempDir(), "ledger.db")+"?_busy_timeout=5000")
	require.NoError(t, err)

	db.SetMaxOpenConns(1)
	db.MustExec(sqliteSchema)

	t.Cleanup(func() { _ = db.Close() })

	return db
}
