// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeNestedAcquisitionSharesOneTransaction(t *testing.T) {
	s := newTestStore(t)

	var outerDepth, innerDepth int
	err := s.pool.withScope(func(db sqlx.Ext) error {
		outerDepth = s.pool.depth
		return s.pool.withScope(func(inner sqlx.Ext) error {
			innerDepth = s.pool.depth
			assert.Equal(t, db, inner, "nested scope reuses the outer transaction")
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, outerDepth)
	assert.Equal(t, 2, innerDepth)
	assert.Equal(t, 0, s.pool.depth, "depth returns to zero after outermost leave")
}

func TestScopeRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {1}}))

	boom := newErr(KindBackendError, nil, "boom")
	err := s.pool.withScope(func(db sqlx.Ext) error {
		if _, execErr := db.Exec("insert into context (context) values (?)", "should-not-stick"); execErr != nil {
			return execErr
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, s.pool.reader().Get(&count, "select count(*) from context where context = ?", "should-not-stick"))
	assert.Equal(t, 0, count)
}
