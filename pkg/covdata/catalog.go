// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

import (
	"sync"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/singleflight"
)

// catalog is a process-local cache of path -> file id, populated from the
// `file` table on open and grown on write. It exists so repeated adds for
// the same file don't round-trip to the backing store just to resolve an
// id that hasn't changed since the last lookup.
type catalog struct {
	mu    sync.RWMutex
	files map[string]int64

	group singleflight.Group
}

func newCatalog() *catalog {
	return &catalog{files: make(map[string]int64)}
}

// preload populates the catalog from every existing row in `file`. Called
// once, right after opening an existing store.
func (c *catalog) preload(db sqlx.Queryer) error {
	rows, err := db.Queryx("select id, path from file")
	if err != nil {
		return newErr(KindBackendError, err, "catalog > preload")
	}
	defer rows.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return newErr(KindBackendError, err, "catalog > preload scan")
		}
		c.files[path] = id
	}
	return rows.Err()
}

// fileID returns the id for path. With add=false, a miss returns
// (0, false). With add=true, a miss lazily inserts the row (insert-or-
// ignore, then a follow-up lookup handles the race where another caller
// won) and caches the id. Concurrent add=true calls for the same path are
// coalesced so only one insert+lookup round-trip happens.
func (c *catalog) fileID(db sqlx.Ext, path string, add bool) (int64, bool, error) {
	c.mu.RLock()
	if id, ok := c.files[path]; ok {
		c.mu.RUnlock()
		return id, true, nil
	}
	c.mu.RUnlock()

	if !add {
		return 0, false, nil
	}

	idv, err, _ := c.group.Do(path, func() (interface{}, error) {
		c.mu.RLock()
		if id, ok := c.files[path]; ok {
			c.mu.RUnlock()
			return id, nil
		}
		c.mu.RUnlock()

		if _, err := squirrel.Insert("file").Columns("path").Values(path).
			Suffix("on conflict(path) do nothing").RunWith(db).Exec(); err != nil {
			return int64(0), newErr(KindBackendError, err, "catalog > insert file %q", path)
		}

		var id int64
		row := squirrel.Select("id").From("file").Where(squirrel.Eq{"path": path}).RunWith(db).QueryRow()
		if err := row.Scan(&id); err != nil {
			return int64(0), newErr(KindBackendError, err, "catalog > lookup file %q", path)
		}

		c.mu.Lock()
		c.files[path] = id
		c.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return 0, false, err
	}
	return idv.(int64), true, nil
}

// paths returns every path currently known to the catalog, in no
// particular order.
func (c *catalog) paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.files))
	for p := range c.files {
		out = append(out, p)
	}
	return out
}

// contextID looks up (or, with add=true, creates) the id for a context
// name. Unlike file ids, context ids are not cached: contexts are
// typically few, and this keeps the catalog's memory proportional to file
// count, not file count times context count.
func contextID(db sqlx.Ext, name string, add bool) (int64, bool, error) {
	var id int64
	row := squirrel.Select("id").From("context").Where(squirrel.Eq{"context": name}).RunWith(db).QueryRow()
	err := row.Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !add {
		return 0, false, nil
	}

	if _, err := squirrel.Insert("context").Columns("context").Values(name).
		Suffix("on conflict(context) do nothing").RunWith(db).Exec(); err != nil {
		return 0, false, newErr(KindBackendError, err, "catalog > insert context %q", name)
	}
	row = squirrel.Select("id").From("context").Where(squirrel.Eq{"context": name}).RunWith(db).QueryRow()
	if err := row.Scan(&id); err != nil {
		return 0, false, newErr(KindBackendError, err, "catalog > lookup context %q", name)
	}
	return id, true, nil
}
