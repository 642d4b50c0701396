// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"
)

// legacySignature is the header coverage.py versions before the SQLite
// backend wrote at the start of their data files. Seeing it on open is a
// strong signal that the caller pointed us at a file from a much older,
// incompatible release rather than a corrupt file of our own making.
const legacySignature = "!coverage.py: This is a private format"

var (
	hookDriverMu  sync.Mutex
	hookDriverSeq int
)

// driverHooks implements sqlhooks.Hooks, logging every statement this
// package issues through the Debug collaborator's "sql" category.
type driverHooks struct {
	debug Debug
}

type sqlTimingKey struct{}

func (h *driverHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if h.debug.Should("sql") {
		h.debug.Write(fmt.Sprintf("sql > %s %v", query, args))
	}
	return context.WithValue(ctx, sqlTimingKey{}, time.Now()), nil
}

func (h *driverHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if h.debug.Should("sql") {
		if begin, ok := ctx.Value(sqlTimingKey{}).(time.Time); ok {
			h.debug.Write(fmt.Sprintf("sql < %s took %s", query, time.Since(begin)))
		}
	}
	return ctx, nil
}

// regexpFunc backs the SQL REGEXP operator. SQLite invokes "X REGEXP Y" as
// regexp(Y, X), so a clause like "context regexp ?" calls this with the
// bound pattern first and the column value second. Preserved verbatim from
// the legacy invocation convention; do not "fix" the argument order.
func regexpFunc(pattern, text string) (bool, error) {
	return regexp.MatchString(pattern, text)
}

// registerDriver registers a sqlite3 driver, wrapped with sqlhooks for
// query tracing, with the REGEXP function installed on every new
// connection. Each call registers a driver under a fresh name, so each
// connection's Debug collaborator gets its own hook instance; database/sql
// does not allow one driver name to be registered twice.
func registerDriver(debug Debug) string {
	hookDriverMu.Lock()
	defer hookDriverMu.Unlock()
	hookDriverSeq++
	name := fmt.Sprintf("covdata_sqlite3_%d", hookDriverSeq)
	sql.Register(name, sqlhooks.Wrap(&sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("REGEXP", regexpFunc, true)
		},
	}, &driverHooks{debug: debug}))
	return name
}

// connection wraps the single *sqlx.DB this Store uses. SQLite does not
// benefit from connection pooling for a single writer, so exactly one
// connection is kept open for the lifetime of the Store.
type connection struct {
	db   *sqlx.DB
	path string
}

func openConnection(path string, opts *Options) (*connection, error) {
	driverName := registerDriver(opts.debug())

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", path)
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, newErr(KindBackendError, err, "connection > open %s", path)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		if sig, sigErr := peekLegacySignature(path); sigErr == nil && sig {
			return nil, newErr(KindBackendError, err,
				"connection > %s looks like a legacy private-format file, not a SQLite database", path)
		}
		return nil, newErr(KindBackendError, err, "connection > ping %s", path)
	}

	// journal_mode=OFF and synchronous=OFF make writes faster at the cost
	// of rollback safety and crash durability. Coverage data is disposable
	// by nature (a crash means re-running the instrumented program, not
	// data recovery), so this is the unconditional default; WALMode opts
	// a store into durability instead, for the case where something else
	// reads the file concurrently with writes from another process.
	pragmas := []string{"PRAGMA journal_mode = OFF", "PRAGMA synchronous = OFF"}
	if opts.walMode() {
		pragmas = []string{"PRAGMA journal_mode = WAL"}
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, newErr(KindBackendError, err, "connection > pragma %q", p)
		}
	}

	return &connection{db: db, path: path}, nil
}

func (c *connection) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// peekLegacySignature reports whether path's opening bytes match the
// legacy private-format header, without requiring the file to be openable
// as a SQLite database.
func peekLegacySignature(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, len(legacySignature))
	n, _ := f.Read(buf)
	return strings.HasPrefix(string(buf[:n]), legacySignature), nil
}
