// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/covstore/covdata/pkg/numbits"
)

// mode tracks whether a store has committed to recording lines or arcs.
// A store starts undecided (modeUnset) and picks a lane on its first
// add_lines/add_arcs call; mixing the two afterward is a hard error.
type mode int

const (
	modeUnset mode = iota
	modeLines
	modeArcs
)

// SetContext sets the pending context for subsequent AddLines/AddArcs
// calls. The effective context id is resolved lazily on the next add
// (creating the context row if it doesn't exist yet). An empty name
// resolves to the empty-string context, matching a caller that never
// calls SetContext at all.
func (s *Store) SetContext(name string) {
	if s.opts.debug().Should("dataop") {
		s.opts.debug().Write("setting context: " + name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingContext = name
	s.currentContextID = -1
}

func (s *Store) resolveContextID(db sqlx.Ext) (int64, error) {
	if s.currentContextID >= 0 {
		return s.currentContextID, nil
	}
	id, _, err := contextID(db, s.pendingContext, true)
	if err != nil {
		return 0, err
	}
	s.currentContextID = id
	return id, nil
}

// AddLines records, for each file, the set of line numbers executed.
// Fails KindMixedMode if the store already records arcs.
func (s *Store) AddLines(lineData map[string][]int) error {
	if s.opts.debug().Should("dataop") {
		total := 0
		for _, lines := range lineData {
			total += len(lines)
		}
		s.opts.debug().Write(fmt.Sprintf("adding lines: %d files, %d lines total", len(lineData), total))
	}
	if err := s.ensureUsable(); err != nil {
		return err
	}
	if err := s.chooseMode(modeLines); err != nil {
		return err
	}
	if len(lineData) == 0 {
		return nil
	}

	return s.pool.withWriteLock(func() error {
		return retryOnce(func() error {
			return s.pool.withScope(func(db sqlx.Ext) error {
				ctxID, err := s.resolveContextID(db)
				if err != nil {
					return err
				}
				for path, linenos := range lineData {
					fileID, _, err := s.catalog.fileID(db, path, true)
					if err != nil {
						return err
					}

					encoded := numbits.Encode(linenos)
					var existing []byte
					row := db.QueryRowx(
						"select numbits from line_bits where file_id = ? and context_id = ?",
						fileID, ctxID)
					if err := row.Scan(&existing); err == nil {
						encoded = numbits.Union(encoded, existing)
					}

					if _, err := db.Exec(
						"insert or replace into line_bits (file_id, context_id, numbits) values (?, ?, ?)",
						fileID, ctxID, encoded); err != nil {
						return newErr(KindBackendError, err, "writer > add_lines insert")
					}
				}
				return nil
			})
		})
	})
}

// AddArcs records, for each file, the set of (from, to) line transitions
// executed. Fails KindMixedMode if the store already records lines.
func (s *Store) AddArcs(arcData map[string][][2]int) error {
	if s.opts.debug().Should("dataop") {
		total := 0
		for _, arcs := range arcData {
			total += len(arcs)
		}
		s.opts.debug().Write(fmt.Sprintf("adding arcs: %d files, %d arcs total", len(arcData), total))
	}
	if err := s.ensureUsable(); err != nil {
		return err
	}
	if err := s.chooseMode(modeArcs); err != nil {
		return err
	}
	if len(arcData) == 0 {
		return nil
	}

	return s.pool.withWriteLock(func() error {
		return retryOnce(func() error {
			return s.pool.withScope(func(db sqlx.Ext) error {
				ctxID, err := s.resolveContextID(db)
				if err != nil {
					return err
				}
				for path, arcs := range arcData {
					fileID, _, err := s.catalog.fileID(db, path, true)
					if err != nil {
						return err
					}
					for _, arc := range arcs {
						if _, err := db.Exec(
							"insert or ignore into arc (file_id, context_id, fromno, tono) values (?, ?, ?, ?)",
							fileID, ctxID, arc[0], arc[1]); err != nil {
							return newErr(KindBackendError, err, "writer > add_arcs insert")
						}
					}
				}
				return nil
			})
		})
	})
}

// chooseMode commits the store to want if it hasn't already committed to a
// mode, and fails KindMixedMode if want conflicts with the existing one.
// Used by AddLines/AddArcs, outside of any open scope.
func (s *Store) chooseMode(want mode) error {
	return s.chooseModeOn(s.pool.reader(), want)
}

// chooseModeOn is chooseMode against an explicit executor, for callers
// (merge) that already hold an open transaction scope on the store's
// single connection: reusing it avoids deadlocking against that same
// connection via s.pool.reader().
func (s *Store) chooseModeOn(db sqlx.Ext, want mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentMode == modeUnset {
		s.currentMode = want
		if _, err := db.Exec(
			"insert into meta (key, value) values ('has_arcs', ?)",
			boolToArcFlag(want == modeArcs)); err != nil {
			return newErr(KindBackendError, err, "writer > record has_arcs")
		}
		return nil
	}
	if s.currentMode != want {
		return newErr(KindMixedMode, nil, "can't record %s alongside existing %s data", want, s.currentMode)
	}
	return nil
}

func (m mode) String() string {
	switch m {
	case modeLines:
		return "line"
	case modeArcs:
		return "arc"
	default:
		return "unset"
	}
}

func boolToArcFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// AddFileTracers records, for each file, the name of the file tracer
// plugin that produced its measurements. A file must already be known to
// the store (KindUnknownFile otherwise). A file that already has a
// different tracer recorded fails KindTracerConflict.
func (s *Store) AddFileTracers(fileTracers map[string]string) error {
	if len(fileTracers) == 0 {
		return nil
	}
	if s.opts.debug().Should("dataop") {
		s.opts.debug().Write(fmt.Sprintf("adding file tracers: %d files", len(fileTracers)))
	}
	if err := s.ensureUsable(); err != nil {
		return err
	}

	return s.pool.withWriteLock(func() error {
		return s.pool.withScope(func(db sqlx.Ext) error {
			for path, tracerName := range fileTracers {
				fileID, ok, err := s.catalog.fileID(db, path, false)
				if err != nil {
					return err
				}
				if !ok {
					return newErr(KindUnknownFile, nil, "can't add file tracer data for unmeasured file %q", path)
				}

				existing, err := fileTracerTx(db, fileID)
				if err != nil {
					return err
				}
				if existing != "" {
					if existing != tracerName {
						return newErr(KindTracerConflict, nil,
							"conflicting file tracer name for %q: %q vs %q", path, existing, tracerName)
					}
					continue
				}
				if tracerName != "" {
					if _, err := db.Exec("insert into tracer (file_id, tracer) values (?, ?)", fileID, tracerName); err != nil {
						return newErr(KindBackendError, err, "writer > insert tracer")
					}
				}
			}
			return nil
		})
	})
}

func fileTracerTx(db sqlx.Ext, fileID int64) (string, error) {
	var tracer string
	row := db.QueryRowx("select tracer from tracer where file_id = ?", fileID)
	if err := row.Scan(&tracer); err != nil {
		return "", nil
	}
	return tracer, nil
}

// TouchFiles ensures every path in paths appears in the store, creating it
// empty if needed. Fails KindEmptyMode if neither AddLines nor AddArcs has
// ever been called, because whether this store is line-mode or arc-mode
// is not yet known.
func (s *Store) TouchFiles(paths []string, tracerName string) error {
	if s.opts.debug().Should("dataop") {
		s.opts.debug().Write(fmt.Sprintf("touching %v", paths))
	}
	if err := s.ensureUsable(); err != nil {
		return err
	}

	err := s.pool.withWriteLock(func() error {
		return s.pool.withScope(func(db sqlx.Ext) error {
			s.mu.Lock()
			unset := s.currentMode == modeUnset
			s.mu.Unlock()
			if unset {
				return newErr(KindEmptyMode, nil, "can't touch files in an empty store")
			}

			for _, path := range paths {
				if _, _, err := s.catalog.fileID(db, path, true); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	if tracerName == "" {
		return nil
	}

	tracers := make(map[string]string, len(paths))
	for _, path := range paths {
		tracers[path] = tracerName
	}
	return s.AddFileTracers(tracers)
}
