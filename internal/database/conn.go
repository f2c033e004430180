// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/autosub/internal/log"
)

const (
	driverName     = "sqlite3"
	changelogTable = "database_changelog"
	memoryDatabase = ":memory:"

	// busyAttempts bounds how often a transaction is run while the database stays locked
	// beyond the busy timeout.
	busyAttempts = 3
)

//go:embed changesets/*.sql
var changesetFolder embed.FS

func init() {
	migrate.SetTable(changelogTable)

	viper.SetDefault("storage.database.filename", "data/autosub.sqlite")
	viper.SetDefault("storage.database.journalmode", "wal")
	viper.SetDefault("storage.database.busytimeout", 5000)
}

// Queryer is an interface for both transactions and the database connection itself.
type Queryer interface {
	sqlx.ExtContext
}

// Tx is a database transaction, which can be rolled back or committed.
type Tx interface {
	Queryer
	Commit() error
	Rollback() error
	RollbackWith(func()) error
}

type tx struct {
	*sqlx.Tx
}

func (t tx) RollbackWith(callback func()) error {
	err := t.Rollback()

	if !errors.Is(err, sql.ErrTxDone) {
		callback()
	}

	return err
}

// Conn is a connection to the sql database.
type Conn interface {
	Queryer
	Begin(context.Context) (Tx, error)
	Close() error
}

type conn struct {
	*sqlx.DB
}

func (c conn) Begin(ctx context.Context) (Tx, error) {
	rawTx, err := c.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return tx{rawTx}, nil
}

// InTx runs fn inside of a transaction. The transaction is committed if fn returns nil and
// rolled back otherwise. Every logical update of the pipeline goes through here, so that a
// failing step never leaves a half applied update behind. A transaction failing because the
// database is busy is run again from the start.
func InTx(ctx context.Context, c Conn, fn func(Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := runTx(ctx, c, fn)
		if err == nil || !IsErrBusy(err) || attempt == busyAttempts || ctx.Err() != nil {
			return err
		}

		log.WarnContext(ctx).
			Err(err).
			Int("attempt", attempt).
			Msg("database is busy, retrying transaction")
	}
}

func runTx(ctx context.Context, c Conn, fn func(Tx) error) error {
	tx, err := c.Begin(ctx)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// OpenConnection opens an sqlite3 database connection using the configuration from viper and
// brings the schema up to date.
func OpenConnection() (Conn, error) {
	sqliteVersion, _, _ := sqlite3.Version()

	dsn := createDataSourceName()
	log.Info().
		Str("driver", driverName).
		Str("version", sqliteVersion).
		Str("dataSourceName", dsn).
		Msg("connecting to database")

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	if viper.GetString("storage.database.filename") == memoryDatabase {
		// every connection to :memory: opens a separate database
		db.SetMaxOpenConns(1)
	}

	if err := applyChangesets(db); err != nil {
		db.Close()
		return nil, err
	}

	return conn{db}, nil
}

func createDataSourceName() string {
	opts := make(url.Values)
	opts.Add("_foreign_keys", "true")
	opts.Add("_journal_mode", viper.GetString("storage.database.journalmode"))
	opts.Add("_busy_timeout", viper.GetString("storage.database.busytimeout"))
	opts.Add("_txlock", "immediate")

	dsn := url.URL{
		Scheme:   "file",
		Opaque:   viper.GetString("storage.database.filename"),
		RawQuery: opts.Encode(),
	}

	return dsn.String()
}

func applyChangesets(db *sqlx.DB) error {
	source := migrate.EmbedFileSystemMigrationSource{
		FileSystem: changesetFolder,
		Root:       "changesets",
	}

	n, err := migrate.Exec(db.DB, driverName, source, migrate.Up)
	if err != nil {
		return fmt.Errorf("could not apply changesets: %w", err)
	}

	if n > 0 {
		log.Info().
			Int("changesets", n).
			Msg("database changesets applied")
	}

	return nil
}
