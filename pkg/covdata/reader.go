// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

import (
	"strings"

	"github.com/covstore/covdata/pkg/numbits"
)

// Arc is a directed line transition (From, To). Negative magnitudes
// denote code-object entry/exit, matching the arc convention this store
// inherits from its source format.
type Arc struct {
	From int
	To   int
}

// HasArcs reports whether this store records arcs (true) or lines
// (false). Meaningless before the store's mode has been chosen by a first
// AddLines/AddArcs call; returns false in that case.
func (s *Store) HasArcs() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentMode == modeArcs
}

// MeasuredFiles returns every file path known to the store.
func (s *Store) MeasuredFiles() []string {
	return s.catalog.paths()
}

// MeasuredContexts returns every distinct context name recorded.
func (s *Store) MeasuredContexts() ([]string, error) {
	if err := s.ensureUsable(); err != nil {
		return nil, err
	}
	var contexts []string
	if err := s.pool.reader().Select(&contexts, "select distinct context from context"); err != nil {
		return nil, newErr(KindBackendError, err, "reader > measured_contexts")
	}
	return contexts, nil
}

// FileTracer returns the tracer plugin name recorded for path. The second
// return value is false if path was never measured at all; a measured
// file with no tracer returns ("", true).
func (s *Store) FileTracer(path string) (string, bool, error) {
	if err := s.ensureUsable(); err != nil {
		return "", false, err
	}
	db := s.pool.reader()
	fileID, ok, err := s.catalog.fileID(db, path, false)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	var tracer string
	row := db.QueryRowx("select tracer from tracer where file_id = ?", fileID)
	if err := row.Scan(&tracer); err != nil {
		return "", true, nil
	}
	return tracer, true, nil
}

// SetQueryContext restricts subsequent Lines/Arcs/ContextsByLineno calls
// to the single context named exactly by name. An unmatched name is not
// an error: queries simply return no data.
func (s *Store) SetQueryContext(name string) error {
	if err := s.ensureUsable(); err != nil {
		return err
	}
	var ids []int64
	if err := s.pool.reader().Select(&ids, "select id from context where context = ?", name); err != nil {
		return newErr(KindBackendError, err, "reader > set_query_context")
	}
	s.mu.Lock()
	s.queryContextIDs = ids
	s.queryContextSet = true
	s.mu.Unlock()
	return nil
}

// SetQueryContexts restricts subsequent Lines/Arcs/ContextsByLineno calls
// to any context whose name matches one of the given regular expressions
// (via SQL REGEXP, i.e. re.search semantics). An empty list clears the
// restriction.
func (s *Store) SetQueryContexts(patterns []string) error {
	if err := s.ensureUsable(); err != nil {
		return err
	}
	if len(patterns) == 0 {
		s.mu.Lock()
		s.queryContextIDs = nil
		s.queryContextSet = false
		s.mu.Unlock()
		return nil
	}

	clause := strings.Repeat("context regexp ? or ", len(patterns))
	clause = strings.TrimSuffix(clause, " or ")
	args := make([]interface{}, len(patterns))
	for i, p := range patterns {
		args[i] = p
	}

	var ids []int64
	if err := s.pool.reader().Select(&ids, "select id from context where "+clause, args...); err != nil {
		return newErr(KindBackendError, err, "reader > set_query_contexts")
	}
	s.mu.Lock()
	s.queryContextIDs = ids
	s.queryContextSet = true
	s.mu.Unlock()
	return nil
}

func (s *Store) queryContextFilter() (ids []int64, active bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryContextIDs, s.queryContextSet
}

// Lines returns the set of line numbers executed for path. A nil slice
// with ok=false means path was never measured; a measured file with no
// lines executed returns an empty, non-nil slice.
//
// In arc mode, Lines is derived from Arcs: every positive endpoint of
// every recorded arc.
func (s *Store) Lines(path string) (lines []int, ok bool, err error) {
	if err := s.ensureUsable(); err != nil {
		return nil, false, err
	}

	if s.HasArcs() {
		arcs, ok, err := s.Arcs(path)
		if err != nil || !ok {
			return nil, ok, err
		}
		set := map[int]bool{}
		for _, a := range arcs {
			if a.From > 0 {
				set[a.From] = true
			}
			if a.To > 0 {
				set[a.To] = true
			}
		}
		out := make([]int, 0, len(set))
		for n := range set {
			out = append(out, n)
		}
		return out, true, nil
	}

	db := s.pool.reader()
	fileID, known, err := s.catalog.fileID(db, path, false)
	if err != nil {
		return nil, false, err
	}
	if !known {
		return nil, false, nil
	}

	query := "select numbits from line_bits where file_id = ?"
	args := []interface{}{fileID}
	if ids, active := s.queryContextFilter(); active {
		query += " and context_id in (" + placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}

	var blobs [][]byte
	if err := db.Select(&blobs, query, args...); err != nil {
		return nil, false, newErr(KindBackendError, err, "reader > lines")
	}
	set := map[int]bool{}
	for _, b := range blobs {
		for _, n := range numbits.Decode(b) {
			set[n] = true
		}
	}
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	return out, true, nil
}

// Arcs returns the set of (from, to) transitions executed for path. A nil
// slice with ok=false means path was never measured.
func (s *Store) Arcs(path string) (arcs []Arc, ok bool, err error) {
	if err := s.ensureUsable(); err != nil {
		return nil, false, err
	}

	db := s.pool.reader()
	fileID, known, err := s.catalog.fileID(db, path, false)
	if err != nil {
		return nil, false, err
	}
	if !known {
		return nil, false, nil
	}

	query := "select distinct fromno, tono from arc where file_id = ?"
	args := []interface{}{fileID}
	if ids, active := s.queryContextFilter(); active {
		query += " and context_id in (" + placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}

	type row struct {
		Fromno int `db:"fromno"`
		Tono   int `db:"tono"`
	}
	var rows []row
	if err := db.Select(&rows, query, args...); err != nil {
		return nil, false, newErr(KindBackendError, err, "reader > arcs")
	}
	out := make([]Arc, len(rows))
	for i, r := range rows {
		out[i] = Arc{From: r.Fromno, To: r.Tono}
	}
	return out, true, nil
}

// ContextsByLineno returns, for path, a map from line number to the list
// of context names that executed that line.
//
// In line mode this does not deduplicate context names per line; the same
// context can appear more than once for a line if it contributed more
// than one LineBits row (preserved from the source format's observed
// behavior, which arc mode does not share).
func (s *Store) ContextsByLineno(path string) (map[int][]string, error) {
	out := map[int][]string{}
	if err := s.ensureUsable(); err != nil {
		return out, err
	}

	db := s.pool.reader()
	fileID, known, err := s.catalog.fileID(db, path, false)
	if err != nil {
		return out, err
	}
	if !known {
		return out, nil
	}

	ids, active := s.queryContextFilter()

	if s.HasArcs() {
		query := "select arc.fromno, arc.tono, context.context " +
			"from arc, context " +
			"where arc.file_id = ? and arc.context_id = context.id"
		args := []interface{}{fileID}
		if active {
			query += " and arc.context_id in (" + placeholders(len(ids)) + ")"
			for _, id := range ids {
				args = append(args, id)
			}
		}
		type row struct {
			Fromno  int    `db:"fromno"`
			Tono    int    `db:"tono"`
			Context string `db:"context"`
		}
		var rows []row
		if err := db.Select(&rows, query, args...); err != nil {
			return out, newErr(KindBackendError, err, "reader > contexts_by_lineno")
		}
		for _, r := range rows {
			appendIfAbsent(out, r.Fromno, r.Context)
			appendIfAbsent(out, r.Tono, r.Context)
		}
		return out, nil
	}

	query := "select l.numbits, c.context from line_bits l, context c " +
		"where l.context_id = c.id and file_id = ?"
	args := []interface{}{fileID}
	if active {
		query += " and l.context_id in (" + placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	type row struct {
		Numbits []byte `db:"numbits"`
		Context string `db:"context"`
	}
	var rows []row
	if err := db.Select(&rows, query, args...); err != nil {
		return out, newErr(KindBackendError, err, "reader > contexts_by_lineno")
	}
	for _, r := range rows {
		for _, lineno := range numbits.Decode(r.Numbits) {
			// Deliberately not deduplicated: see doc comment above.
			out[lineno] = append(out[lineno], r.Context)
		}
	}
	return out, nil
}

func appendIfAbsent(m map[int][]string, lineno int, context string) {
	for _, c := range m[lineno] {
		if c == context {
			return
		}
	}
	m[lineno] = append(m[lineno], context)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
