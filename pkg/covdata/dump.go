// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/flate"
)

// blobPrefix marks the start of a Dumps payload. A single byte rather than
// a longer magic number, matching the legacy wire format this replaces.
const blobPrefix = 'z'

// Dumps serializes the store's entire SQL text dump, compressed, into a
// byte string meant for transmission elsewhere and later reconstruction
// with Loads against a fresh, empty store. It is not the on-disk format of
// the data file itself.
func (s *Store) Dumps() ([]byte, error) {
	script, err := s.dumpSQL()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte(blobPrefix)
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, newErr(KindBackendError, err, "dump > compressor")
	}
	if _, err := w.Write([]byte(script)); err != nil {
		return nil, newErr(KindBackendError, err, "dump > compress")
	}
	if err := w.Close(); err != nil {
		return nil, newErr(KindBackendError, err, "dump > compress close")
	}
	return buf.Bytes(), nil
}

// Loads reconstructs a store's contents from a Dumps payload, replacing
// whatever this store already holds. The dumped script carries its own
// CREATE TABLEs (dumpSQL emits them verbatim from sqlite_master), so the
// destination's own schema — already installed by Open before Loads can
// ever be called — is dropped first; otherwise the script's CREATE TABLEs
// collide with the tables Open already made. Meant for use on data you
// produced with Dumps; behavior on a store that already has measurement
// data in it beyond the freshly-created schema is undefined (matches the
// legacy contract).
func (s *Store) Loads(data []byte) error {
	if len(data) == 0 || data[0] != blobPrefix {
		head := data
		if len(head) > 40 {
			head = head[:40]
		}
		return newErr(KindBadBlob, nil, "unrecognized serialization: %q (head of %d bytes)", head, len(data))
	}

	r := flate.NewReader(bytes.NewReader(data[1:]))
	defer r.Close()
	script, err := io.ReadAll(r)
	if err != nil {
		return newErr(KindBadBlob, err, "dump > decompress")
	}

	db := s.conn.db
	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return newErr(KindBackendError, err, "dump > disable foreign keys")
	}
	if err := dropAllTables(db); err != nil {
		return err
	}
	if _, err := db.Exec(string(script)); err != nil {
		return newErr(KindBackendError, err, "dump > replay script")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return newErr(KindBackendError, err, "dump > re-enable foreign keys")
	}

	if err := s.readMeta(); err != nil {
		return err
	}
	s.catalog = newCatalog()
	return s.catalog.preload(db)
}

// dropAllTables removes every table in db, foreign-key-unaware (callers
// must have already disabled foreign_keys), so a dumped script's own
// CREATE TABLEs never collide with tables a prior Open already installed.
func dropAllTables(db *sqlx.DB) error {
	var names []string
	if err := db.Select(&names,
		"select name from sqlite_master where type = 'table' and name not like 'sqlite_%'"); err != nil {
		return newErr(KindBackendError, err, "dump > list tables before load")
	}
	for _, name := range names {
		if _, err := db.Exec(fmt.Sprintf("DROP TABLE %s", name)); err != nil {
			return newErr(KindBackendError, err, "dump > drop table %q", name)
		}
	}
	return nil
}

// dumpSQL produces a textual SQL dump of every row in the store, in the
// same spirit as sqlite3's ".dump" command: a CREATE TABLE statement per
// table followed by one INSERT per row, wrapped in a transaction.
func (s *Store) dumpSQL() (string, error) {
	db := s.pool.reader()

	var buf bytes.Buffer
	buf.WriteString("PRAGMA foreign_keys=OFF;\n")
	buf.WriteString("BEGIN TRANSACTION;\n")

	type tableSchema struct {
		Name string `db:"name"`
		SQL  string `db:"sql"`
	}
	var schemas []tableSchema
	if err := db.Select(&schemas,
		"select name, sql from sqlite_master where type = 'table' and sql is not null order by name"); err != nil {
		return "", newErr(KindBackendError, err, "dump > read schema")
	}

	for _, t := range schemas {
		fmt.Fprintf(&buf, "%s;\n", t.SQL)

		rows, err := db.Queryx(fmt.Sprintf("select * from %s", t.Name))
		if err != nil {
			return "", newErr(KindBackendError, err, "dump > read rows %q", t.Name)
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return "", newErr(KindBackendError, err, "dump > columns %q", t.Name)
		}
		for rows.Next() {
			values, err := rows.SliceScan()
			if err != nil {
				rows.Close()
				return "", newErr(KindBackendError, err, "dump > scan row %q", t.Name)
			}
			fmt.Fprintf(&buf, "INSERT INTO %s (%s) VALUES (%s);\n",
				t.Name, joinCols(cols), sqlLiterals(values))
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return "", newErr(KindBackendError, err, "dump > iterate rows %q", t.Name)
		}
		rows.Close()
	}

	buf.WriteString("COMMIT;\n")
	return buf.String(), nil
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func sqlLiterals(values []interface{}) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += sqlLiteral(v)
	}
	return out
}

func sqlLiteral(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("X'%x'", t)
	case string:
		return "'" + escapeSQLString(t) + "'"
	default:
		return fmt.Sprintf("%v", t)
	}
}

func escapeSQLString(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		if r == '\'' {
			buf.WriteByte('\'')
		}
		buf.WriteRune(r)
	}
	return buf.String()
}
