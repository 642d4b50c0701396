// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package covdata implements a durable, concurrently-writable store for
// code-coverage measurements: line or arc hits recorded per file and per
// context, backed by a single-writer SQLite database.
package covdata

import (
	"os"
	"strings"
	"sync"
	"time"
)

// Version is the value recorded in the meta table's 'version' row,
// identifying which build of this package produced a data file.
const Version = "1.0.0"

// Store is a coverage data store: one SQLite-backed database recording
// either line hits or arc transitions (never both) per file and per
// context.
//
// A Store is safe for concurrent use by multiple goroutines. Writer API
// calls (AddLines, AddArcs, AddFileTracers, TouchFiles, Update) are
// serialized against each other by a single write mutex; reader calls
// tolerate interleaved writes at statement granularity.
type Store struct {
	opts *Options

	lifecycle *lifecycle
	conn      *connection
	pool      *pool
	catalog   *catalog

	mu                sync.RWMutex
	currentMode       mode
	pendingContext    string
	currentContextID  int64
	queryContextIDs   []int64
	queryContextSet   bool

	usedOnce bool
}

// New creates a Store targeting basename (default ".coverage"). suffix,
// if non-empty, is appended to the filename as ".<suffix>"; pass true-like
// behavior by calling NewWithDefaultSuffix instead. The underlying file is
// not created until the first write or a call that forces it into
// existence (Lines, Arcs, MeasuredContexts, Update as a source, etc.).
func New(basename, suffix string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	if suffix == "" {
		suffix = opts.suffix()
	}
	lc, err := newLifecycle(basename, suffix, opts.noDisk())
	if err != nil {
		return nil, err
	}
	return &Store{
		opts:             opts,
		lifecycle:        lc,
		currentContextID: -1,
	}, nil
}

// NewWithDefaultSuffix is New with the suffix auto-generated in the form
// "<hostname>.<pid>.<random>", for a store meant to be one of several
// parallel per-process data files later combined with Update. A non-empty
// Options.Suffix is used in place of the generated suffix.
func NewWithDefaultSuffix(basename string, opts *Options) (*Store, error) {
	suffix := opts.suffix()
	if suffix == "" {
		suffix = defaultSuffix()
	}
	return New(basename, suffix, opts)
}

// Open is New followed by forcing the store into existence (opening an
// existing file, or creating one if absent).
func Open(basename, suffix string, opts *Options) (*Store, error) {
	s, err := New(basename, suffix, opts)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUsable(); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureUsable is the Go analogue of the source's _start_using: it must
// run at the head of every public operation. It re-targets the filename
// on a detected fork, and lazily opens (or creates) the backing
// connection on first use.
func (s *Store) ensureUsable() error {
	if s.lifecycle.checkFork() {
		s.mu.Lock()
		s.usedOnce = false
		s.currentMode = modeUnset
		s.currentContextID = -1
		s.mu.Unlock()
		if err := s.conn.Close(); err != nil {
			return err
		}
		s.conn = nil
		s.pool = nil
		s.catalog = nil
	}

	s.mu.RLock()
	used := s.usedOnce
	s.mu.RUnlock()
	if used {
		return nil
	}
	return s.open()
}

func (s *Store) open() error {
	_, statErr := os.Stat(s.lifecycle.filename)
	exists := s.lifecycle.filename != ":memory:" && statErr == nil

	conn, err := openConnection(s.lifecycle.filename, s.opts)
	if err != nil {
		return err
	}
	s.conn = conn
	s.pool = newPool(conn)
	s.catalog = newCatalog()

	if !exists {
		if err := s.createSchema(); err != nil {
			return err
		}
	} else {
		if err := checkSchema(conn.db.DB); err != nil {
			return err
		}
		if err := s.readMeta(); err != nil {
			return err
		}
	}

	if err := s.catalog.preload(conn.db); err != nil {
		return err
	}

	s.mu.Lock()
	s.usedOnce = true
	s.mu.Unlock()
	return nil
}

func (s *Store) createSchema() error {
	if s.opts.debug().Should("dataio") {
		s.opts.debug().Write("creating data file " + s.lifecycle.filename)
	}
	if err := installSchema(s.conn.db.DB); err != nil {
		return err
	}
	_, err := s.conn.db.Exec(
		"insert into meta (key, value) values (?, ?), (?, ?), (?, ?)",
		"sys_argv", strings.Join(os.Args, " "),
		"version", Version,
		"when", time.Now().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return newErr(KindBackendError, err, "store > write meta")
	}
	return nil
}

func (s *Store) readMeta() error {
	if s.opts.debug().Should("dataio") {
		s.opts.debug().Write("opening data file " + s.lifecycle.filename)
	}
	var hasArcsVal string
	row := s.conn.db.QueryRowx("select value from meta where key = 'has_arcs'")
	if err := row.Scan(&hasArcsVal); err == nil {
		s.mu.Lock()
		if hasArcsVal == "1" {
			s.currentMode = modeArcs
		} else {
			s.currentMode = modeLines
		}
		s.mu.Unlock()
	}
	return nil
}

// Erase discards the store's contents. With parallel=true, every sibling
// file sharing this store's basename (produced by other suffixed
// processes) is also erased.
func (s *Store) Erase(parallel bool) error {
	s.mu.Lock()
	s.usedOnce = false
	s.currentMode = modeUnset
	s.currentContextID = -1
	s.mu.Unlock()

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			return err
		}
		s.conn = nil
		s.pool = nil
		s.catalog = nil
	}
	return s.lifecycle.erase(parallel)
}

// Close releases the store's backing connection. It does not erase data.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// DataFilename returns the path this store is (or will be) backed by.
func (s *Store) DataFilename() string {
	return s.lifecycle.filename
}

// BaseFilename returns the basename this store was constructed with,
// before any suffix.
func (s *Store) BaseFilename() string {
	return s.lifecycle.basename
}
