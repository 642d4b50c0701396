// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

import (
	"sync"

	"github.com/jmoiron/sqlx"
)

// pool is this package's stand-in for the original's thread-local
// connection pool. A single shared *sqlx.DB, guarded by a write mutex, is
// sufficient here: Go goroutines have no stable thread identity to key
// connections by, and SQLite tolerates a single serialized connection used
// from any goroutine. What the original pool actually buys callers —
// nested scoped acquisition, so a writer method can call a helper that
// also acquires the handle without deadlocking or double-opening a
// transaction — is reproduced by scope below as a reference-counted
// guard.
type pool struct {
	mu   sync.Mutex
	conn *connection

	scopeMu sync.Mutex
	depth   int
	tx      *sqlx.Tx
}

func newPool(conn *connection) *pool {
	return &pool{conn: conn}
}

// scope is a reference-counted transaction guard. Entering increments a
// depth counter; only the outermost enter begins a real transaction, and
// only the matching outermost leave commits it (or rolls it back if leave
// is given a non-nil error). Nested enter/leave pairs on the same pool
// observe the outer transaction without starting one of their own.
type scope struct {
	p   *pool
	db  sqlx.Ext
	err *error
}

// enter acquires the pool's scope, beginning a transaction if this is the
// outermost entry. The caller must call the returned scope's leave with
// any error encountered, exactly once, regardless of nesting depth.
func (p *pool) enter() (*scope, error) {
	p.scopeMu.Lock()
	defer p.scopeMu.Unlock()

	if p.depth == 0 {
		tx, err := p.conn.db.Beginx()
		if err != nil {
			return nil, newErr(KindBackendError, err, "pool > begin")
		}
		p.tx = tx
	}
	p.depth++
	return &scope{p: p, db: p.tx}, nil
}

// leave closes one level of scope nesting. On the outermost level it
// commits the transaction (or rolls back if outcome is non-nil).
func (s *scope) leave(outcome error) error {
	p := s.p
	p.scopeMu.Lock()
	defer p.scopeMu.Unlock()

	p.depth--
	if p.depth > 0 {
		return nil
	}

	tx := p.tx
	p.tx = nil
	if outcome != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return newErr(KindBackendError, rbErr, "pool > rollback after %v", outcome)
		}
		return outcome
	}
	if err := tx.Commit(); err != nil {
		return newErr(KindBackendError, err, "pool > commit")
	}
	return nil
}

// withScope runs fn inside a nested scope, committing or rolling back the
// outermost transaction according to fn's outcome.
func (p *pool) withScope(fn func(db sqlx.Ext) error) error {
	s, err := p.enter()
	if err != nil {
		return err
	}
	outcome := fn(s.db)
	return s.leave(outcome)
}

// withWriteLock serializes fn against every other writer-API call on this
// pool, holding the lock for fn's entire duration as the write mutex
// described alongside the writer API.
func (p *pool) withWriteLock(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn()
}

// reader returns a connection handle suitable for read-only queries. It
// does not take the write mutex: readers tolerate interleaved writes at
// statement granularity, matching the scheduling model writers expect.
func (p *pool) reader() *sqlx.DB {
	return p.conn.db
}

// retryOnce runs fn, and on failure runs it exactly once more before
// giving up. Mirrors the writer API's "retry a transient backend failure
// exactly once" policy; no other silent recovery is attempted.
func retryOnce(fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	return fn()
}
