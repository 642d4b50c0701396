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

func TestLinesUnmeasuredFileReturnsNotOK(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {1}}))

	lines, ok, err := s.Lines("missing.py")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, lines)
}

func TestLinesInArcModeDerivesFromArcs(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddArcs(map[string][][2]int{
		"a.py": {{-1, 1}, {1, 2}, {2, -1}},
	}))

	lines, ok, err := s.Lines("a.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []int{1, 2}, lines)
}

func TestMeasuredFilesAndContexts(t *testing.T) {
	s := newTestStore(t)
	s.SetContext("ctxA")
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {1}, "b.py": {2}}))

	assert.ElementsMatch(t, []string{"a.py", "b.py"}, s.MeasuredFiles())

	contexts, err := s.MeasuredContexts()
	require.NoError(t, err)
	assert.Contains(t, contexts, "ctxA")
}

func TestFileTracerUnmeasuredVsNoTracer(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {1}}))

	_, known, err := s.FileTracer("missing.py")
	require.NoError(t, err)
	assert.False(t, known)

	tracer, known, err := s.FileTracer("a.py")
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, "", tracer)
}

func TestContextsByLinenoLineModeListsRowContext(t *testing.T) {
	s := newTestStore(t)

	s.SetContext("rep")
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {1}}))

	// Line mode appends the context of every LineBits row without
	// deduplicating, unlike arc mode. The unique (file, context) key
	// allows only one row per context here, so "rep" appears once.
	byLine, err := s.ContextsByLineno("a.py")
	require.NoError(t, err)
	assert.Equal(t, []string{"rep"}, byLine[1])
}

func TestContextsByLinenoArcModeDeduplicates(t *testing.T) {
	s := newTestStore(t)
	s.SetContext("rep")
	require.NoError(t, s.AddArcs(map[string][][2]int{"a.py": {{1, 2}, {1, 3}}}))

	byLine, err := s.ContextsByLineno("a.py")
	require.NoError(t, err)
	assert.Equal(t, []string{"rep"}, byLine[1])
}

func TestSetQueryContextsRegexFilter(t *testing.T) {
	s := newTestStore(t)

	s.SetContext("unit_test_one")
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {1}}))
	s.SetContext("integration_test")
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {2}}))

	require.NoError(t, s.SetQueryContexts([]string{"^unit_"}))
	lines, ok, err := s.Lines("a.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{1}, lines)

	require.NoError(t, s.SetQueryContexts(nil))
	lines, ok, err = s.Lines("a.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []int{1, 2}, lines)
}
