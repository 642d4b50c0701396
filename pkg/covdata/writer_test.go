// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddLinesUnionsAcrossCalls(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddLines(map[string][]int{"a.py": {1, 2, 3}}))
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {3, 4}}))

	lines, ok, err := s.Lines("a.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, lines)
}

func TestAddLinesThenAddArcsFailsMixedMode(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddLines(map[string][]int{"a.py": {1}}))
	err := s.AddArcs(map[string][][2]int{"a.py": {{1, 2}}})

	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindMixedMode, kind)
}

func TestAddArcsThenAddLinesFailsMixedMode(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddArcs(map[string][][2]int{"a.py": {{1, 2}}}))
	err := s.AddLines(map[string][]int{"a.py": {1}})

	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindMixedMode, kind)
}

func TestAddArcsIsInsertOrIgnore(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddArcs(map[string][][2]int{"a.py": {{1, 2}, {2, 3}}}))
	require.NoError(t, s.AddArcs(map[string][][2]int{"a.py": {{1, 2}}}))

	arcs, ok, err := s.Arcs("a.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []Arc{{From: 1, To: 2}, {From: 2, To: 3}}, arcs)
}

func TestSetContextScopesSubsequentAdds(t *testing.T) {
	s := newTestStore(t)

	s.SetContext("test_one")
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {1}}))
	s.SetContext("test_two")
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {2}}))

	require.NoError(t, s.SetQueryContext("test_one"))
	lines, ok, err := s.Lines("a.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{1}, lines)
}

func TestAddFileTracersConflict(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {1}}))

	require.NoError(t, s.AddFileTracers(map[string]string{"a.py": "cython"}))
	err := s.AddFileTracers(map[string]string{"a.py": "other"})

	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindTracerConflict, kind)
}

func TestAddFileTracersUnmeasuredFileFails(t *testing.T) {
	s := newTestStore(t)
	err := s.AddFileTracers(map[string]string{"nope.py": "cython"})

	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindUnknownFile, kind)
}

func TestTouchFilesBeforeAnyModeFailsEmptyMode(t *testing.T) {
	s := newTestStore(t)
	err := s.TouchFiles([]string{"a.py"}, "")

	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindEmptyMode, kind)
}

func TestTouchFilesCreatesEmptyFileEntry(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {1}}))

	require.NoError(t, s.TouchFiles([]string{"b.py"}, ""))

	lines, ok, err := s.Lines("b.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, lines)
}
