// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covstore/covdata/pkg/log"
)

// newTestStore opens a fresh store backed by a temp-dir file, not
// :memory:, so lifecycle behaviors (erase, parallel siblings, reopen)
// have a real file to exercise.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	log.Init("debug", false)

	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, ".coverage"), "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestStoreWithOpts(t *testing.T, opts *Options) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, ".coverage"), "", opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
