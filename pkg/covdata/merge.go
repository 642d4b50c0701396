// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

import (
	"github.com/jmoiron/sqlx"

	"github.com/covstore/covdata/pkg/numbits"
)

type lineKey struct {
	path    string
	context string
}

// Update merges the contents of other into s, remapping other's file
// paths through aliases first (nil means s's Options.PathAliases, which
// is no remapping unless that option was set). Fails KindMixedMode if s
// and other disagree on lines vs. arcs and both have data of their
// conflicting kind.
//
// This is the one operation that reads from one store while writing
// another; ensureUsable is called on both s and other, forcing both
// databases into existence before any nested transaction begins.
func (s *Store) Update(other *Store, aliases PathAliases) error {
	if aliases == nil {
		// Fall back to this store's configured default aliasing (itself
		// IdentityAliases{} unless Options.PathAliases was set), rather
		// than unconditionally ignoring it, so a caller that configures
		// Options.PathAliases once doesn't have to pass it on every
		// Update call too.
		aliases = s.opts.pathAliases()
	}
	if s.opts.debug().Should("dataop") {
		s.opts.debug().Write("updating with data from " + other.lifecycle.filename)
	}

	s.mu.RLock()
	sHasLines := s.currentMode == modeLines
	sHasArcs := s.currentMode == modeArcs
	s.mu.RUnlock()
	other.mu.RLock()
	oHasLines := other.currentMode == modeLines
	oHasArcs := other.currentMode == modeArcs
	other.mu.RUnlock()

	if sHasLines && oHasArcs {
		return newErr(KindMixedMode, nil, "can't combine arc data with line data")
	}
	if sHasArcs && oHasLines {
		return newErr(KindMixedMode, nil, "can't combine line data with arc data")
	}

	if err := s.ensureUsable(); err != nil {
		return err
	}
	if err := other.ensureUsable(); err != nil {
		return err
	}

	srcDB := other.pool.reader()

	files, err := readRemoteFiles(srcDB, aliases)
	if err != nil {
		return err
	}
	contexts, err := readRemoteContexts(srcDB)
	if err != nil {
		return err
	}
	arcs, err := readRemoteArcs(srcDB, files)
	if err != nil {
		return err
	}
	lines, err := readRemoteLines(srcDB, files)
	if err != nil {
		return err
	}
	tracers, err := readRemoteTracers(srcDB, files)
	if err != nil {
		return err
	}

	return s.pool.withWriteLock(func() error {
		return s.pool.withScope(func(db sqlx.Ext) error {
			return s.mergeInto(db, files, contexts, arcs, lines, tracers, aliases)
		})
	})
}

func readRemoteFiles(db sqlx.Ext, aliases PathAliases) (map[string]string, error) {
	var paths []string
	if err := sqlxSelect(db, &paths, "select path from file"); err != nil {
		return nil, newErr(KindBackendError, err, "merge > read files")
	}
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		out[p] = aliases.Map(p)
	}
	return out, nil
}

func readRemoteContexts(db sqlx.Ext) ([]string, error) {
	var contexts []string
	if err := sqlxSelect(db, &contexts, "select context from context"); err != nil {
		return nil, newErr(KindBackendError, err, "merge > read contexts")
	}
	return contexts, nil
}

type remoteArc struct {
	Path    string
	Context string
	From    int
	To      int
}

func readRemoteArcs(db sqlx.Ext, files map[string]string) ([]remoteArc, error) {
	type row struct {
		Path    string `db:"path"`
		Context string `db:"context"`
		Fromno  int    `db:"fromno"`
		Tono    int    `db:"tono"`
	}
	var rows []row
	err := sqlxSelect(db, &rows,
		"select file.path, context.context, arc.fromno, arc.tono "+
			"from arc "+
			"inner join file on file.id = arc.file_id "+
			"inner join context on context.id = arc.context_id")
	if err != nil {
		return nil, newErr(KindBackendError, err, "merge > read arcs")
	}
	out := make([]remoteArc, len(rows))
	for i, r := range rows {
		out[i] = remoteArc{Path: files[r.Path], Context: r.Context, From: r.Fromno, To: r.Tono}
	}
	return out, nil
}

func readRemoteLines(db sqlx.Ext, files map[string]string) (map[lineKey][]byte, error) {
	type row struct {
		Path    string `db:"path"`
		Context string `db:"context"`
		Numbits []byte `db:"numbits"`
	}
	var rows []row
	err := sqlxSelect(db, &rows,
		"select file.path, context.context, line_bits.numbits "+
			"from line_bits "+
			"inner join file on file.id = line_bits.file_id "+
			"inner join context on context.id = line_bits.context_id")
	if err != nil {
		return nil, newErr(KindBackendError, err, "merge > read lines")
	}
	out := make(map[lineKey][]byte, len(rows))
	for _, r := range rows {
		out[lineKey{path: files[r.Path], context: r.Context}] = r.Numbits
	}
	return out, nil
}

func readRemoteTracers(db sqlx.Ext, files map[string]string) (map[string]string, error) {
	type row struct {
		Path   string `db:"path"`
		Tracer string `db:"tracer"`
	}
	var rows []row
	err := sqlxSelect(db, &rows,
		"select file.path, tracer from tracer inner join file on file.id = tracer.file_id")
	if err != nil {
		return nil, newErr(KindBackendError, err, "merge > read tracers")
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[files[r.Path]] = r.Tracer
	}
	return out, nil
}

// mergeInto does the actual write side of Update, against db (the
// destination's transaction scope). files maps the source's original
// paths to their locally-aliased form; contexts/arcs/lines/tracers are
// already keyed by those local names where applicable.
func (s *Store) mergeInto(
	db sqlx.Ext,
	files map[string]string,
	contexts []string,
	arcs []remoteArc,
	lines map[lineKey][]byte,
	tracers map[string]string,
	aliases PathAliases,
) error {
	// Files not in `tracer` are assumed to have an empty string tracer.
	// this_tracers defaults every local file to "" before being overlaid
	// with the real recorded tracers; the conflict check below compares
	// against that default rather than against "no tracer recorded",
	// which is why merging a tracer into a file this store has seen but
	// never tagged with a tracer succeeds.
	var localPaths []string
	if err := sqlxSelect(db, &localPaths, "select path from file"); err != nil {
		return newErr(KindBackendError, err, "merge > read local files")
	}
	thisTracers := make(map[string]string, len(localPaths))
	for _, p := range localPaths {
		thisTracers[p] = ""
	}
	type tracerRow struct {
		Path   string `db:"path"`
		Tracer string `db:"tracer"`
	}
	var localTracerRows []tracerRow
	if err := sqlxSelect(db, &localTracerRows,
		"select file.path, tracer from tracer inner join file on file.id = tracer.file_id"); err != nil {
		return newErr(KindBackendError, err, "merge > read local tracers")
	}
	for _, r := range localTracerRows {
		thisTracers[aliases.Map(r.Path)] = r.Tracer
	}

	for _, localPath := range files {
		if _, err := db.Exec("insert or ignore into file (path) values (?)", localPath); err != nil {
			return newErr(KindBackendError, err, "merge > insert file")
		}
	}
	fileIDs, err := selectIDMap(db, "select id, path from file")
	if err != nil {
		return err
	}
	for _, c := range contexts {
		if _, err := db.Exec("insert or ignore into context (context) values (?)", c); err != nil {
			return newErr(KindBackendError, err, "merge > insert context")
		}
	}
	contextIDs, err := selectContextIDMap(db)
	if err != nil {
		return err
	}

	tracerMap := make(map[string]string, len(files))
	for _, localPath := range files {
		thisTracer, hasThis := thisTracers[localPath]
		otherTracer := tracers[localPath]
		if hasThis && thisTracer != otherTracer {
			return newErr(KindTracerConflict, nil,
				"conflicting file tracer name for %q: %q vs %q", localPath, thisTracer, otherTracer)
		}
		tracerMap[localPath] = otherTracer
	}

	// Merge in any line_bits this destination already has for the same
	// (path, context), same as the source's second local read.
	type localLineRow struct {
		Path    string `db:"path"`
		Context string `db:"context"`
		Numbits []byte `db:"numbits"`
	}
	var localLines []localLineRow
	if err := sqlxSelect(db, &localLines,
		"select file.path, context.context, line_bits.numbits "+
			"from line_bits "+
			"inner join file on file.id = line_bits.file_id "+
			"inner join context on context.id = line_bits.context_id"); err != nil {
		return newErr(KindBackendError, err, "merge > read local lines")
	}
	for _, r := range localLines {
		key := lineKey{path: aliases.Map(r.Path), context: r.Context}
		if existing, ok := lines[key]; ok {
			lines[key] = numbits.Union(existing, r.Numbits)
		} else {
			lines[key] = r.Numbits
		}
	}

	if len(arcs) > 0 {
		if err := s.chooseModeOn(db, modeArcs); err != nil {
			return err
		}
		for _, a := range arcs {
			fileID, ctxID := fileIDs[a.Path], contextIDs[a.Context]
			if _, err := db.Exec(
				"insert or ignore into arc (file_id, context_id, fromno, tono) values (?, ?, ?, ?)",
				fileID, ctxID, a.From, a.To); err != nil {
				return newErr(KindBackendError, err, "merge > insert arc")
			}
		}
	}

	if len(lines) > 0 {
		if err := s.chooseModeOn(db, modeLines); err != nil {
			return err
		}
		if _, err := db.Exec("delete from line_bits"); err != nil {
			return newErr(KindBackendError, err, "merge > clear line_bits")
		}
		for key, numbitsBlob := range lines {
			fileID, ctxID := fileIDs[key.path], contextIDs[key.context]
			if _, err := db.Exec(
				"insert into line_bits (file_id, context_id, numbits) values (?, ?, ?)",
				fileID, ctxID, numbitsBlob); err != nil {
				return newErr(KindBackendError, err, "merge > insert line_bits")
			}
		}
	}

	for path, tracer := range tracerMap {
		fileID := fileIDs[path]
		if _, err := db.Exec("insert or ignore into tracer (file_id, tracer) values (?, ?)", fileID, tracer); err != nil {
			return newErr(KindBackendError, err, "merge > insert tracer")
		}
	}

	s.catalog = newCatalog()
	return s.catalog.preload(db)
}

func selectIDMap(db sqlx.Ext, query string) (map[string]int64, error) {
	type row struct {
		ID   int64  `db:"id"`
		Path string `db:"path"`
	}
	var rows []row
	if err := sqlxSelect(db, &rows, query); err != nil {
		return nil, newErr(KindBackendError, err, "merge > select id map")
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Path] = r.ID
	}
	return out, nil
}

func selectContextIDMap(db sqlx.Ext) (map[string]int64, error) {
	type row struct {
		ID      int64  `db:"id"`
		Context string `db:"context"`
	}
	var rows []row
	if err := sqlxSelect(db, &rows, "select id, context from context"); err != nil {
		return nil, newErr(KindBackendError, err, "merge > select context id map")
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Context] = r.ID
	}
	return out, nil
}

// sqlxSelect adapts sqlx.Ext (which lacks a generic Select/Get helper) to
// sqlx.Select by going through the *sqlx.DB or *sqlx.Tx concrete value it
// was constructed from; both satisfy sqlx.Queryer, which is all
// sqlx.Select needs.
func sqlxSelect(db sqlx.Ext, dest interface{}, query string, args ...interface{}) error {
	return sqlx.Select(db, dest, query, args...)
}
