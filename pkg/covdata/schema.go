// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite3/*.sql
var migrationFiles embed.FS

// schemaVersion is the compiled-in schema version. A store whose
// coverage_schema.version row does not equal this value fails to open
// with KindSchemaMismatch. 7 is the last revision of the legacy format
// this store's table layout matches (line_map renamed to line_bits).
const schemaVersion = 7

// installSchema runs every pending up migration against a brand-new
// (empty) database file, then records schemaVersion in coverage_schema.
// golang-migrate's own bookkeeping table tracks migration application; it
// does not satisfy this package's "malformed-file" vs. "schema-mismatch"
// distinction, so coverage_schema is maintained separately by this
// package and is the only version record callers should rely on.
func installSchema(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return newErr(KindBackendError, err, "schema > migrate driver")
	}
	src, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return newErr(KindBackendError, err, "schema > migration source")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return newErr(KindBackendError, err, "schema > migrate init")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return newErr(KindBackendError, err, "schema > migrate up")
	}

	if _, err := db.Exec("insert into coverage_schema (version) values (?)", schemaVersion); err != nil {
		return newErr(KindBackendError, err, "schema > record version")
	}
	return nil
}

// checkSchema reads the on-disk coverage_schema version and compares it
// against schemaVersion. A missing table or missing row is
// KindMalformedFile; a mismatched value is KindSchemaMismatch.
func checkSchema(db *sql.DB) error {
	var version int
	row := db.QueryRow("select version from coverage_schema")
	if err := row.Scan(&version); err != nil {
		return newErr(KindMalformedFile, err, "schema > no coverage_schema.version row")
	}
	if version != schemaVersion {
		return newErr(KindSchemaMismatch, nil,
			"schema > on-disk version %d, expected %d", version, schemaVersion)
	}
	return nil
}
