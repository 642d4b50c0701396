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

func TestUpdateMergesLinesAcrossStores(t *testing.T) {
	dest := newTestStore(t)
	src := newTestStore(t)

	require.NoError(t, dest.AddLines(map[string][]int{"a.py": {1, 2}}))
	require.NoError(t, src.AddLines(map[string][]int{"a.py": {2, 3}, "b.py": {10}}))

	require.NoError(t, dest.Update(src, nil))

	lines, ok, err := dest.Lines("a.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []int{1, 2, 3}, lines)

	lines, ok, err = dest.Lines("b.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []int{10}, lines)
}

func TestUpdateMergesArcsAcrossStores(t *testing.T) {
	dest := newTestStore(t)
	src := newTestStore(t)

	require.NoError(t, dest.AddArcs(map[string][][2]int{"a.py": {{1, 2}}}))
	require.NoError(t, src.AddArcs(map[string][][2]int{"a.py": {{1, 2}, {2, 3}}}))

	require.NoError(t, dest.Update(src, nil))

	arcs, ok, err := dest.Arcs("a.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []Arc{{From: 1, To: 2}, {From: 2, To: 3}}, arcs)
}

func TestUpdateRejectsIncompatibleModes(t *testing.T) {
	dest := newTestStore(t)
	src := newTestStore(t)

	require.NoError(t, dest.AddLines(map[string][]int{"a.py": {1}}))
	require.NoError(t, src.AddArcs(map[string][][2]int{"a.py": {{1, 2}}}))

	err := dest.Update(src, nil)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindMixedMode, kind)
}

func TestUpdateAppliesPathAliases(t *testing.T) {
	dest := newTestStore(t)
	src := newTestStore(t)

	require.NoError(t, src.AddLines(map[string][]int{"/build/a.py": {1}}))

	aliases := PrefixAliases{Rules: []PrefixRule{{From: "/build/", To: "/src/"}}}
	require.NoError(t, dest.Update(src, aliases))

	lines, ok, err := dest.Lines("/src/a.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{1}, lines)
}

// TestUpdateTracerConflictUsesEmptyDefault pins down the preserved
// quirk: a file this store has already seen (via AddLines) but never
// tagged with a tracer defaults to "" for the conflict check, so merging
// a non-empty tracer for that file from another store succeeds rather
// than conflicting against a "missing" tracer.
func TestUpdateTracerConflictUsesEmptyDefault(t *testing.T) {
	dest := newTestStore(t)
	src := newTestStore(t)

	require.NoError(t, dest.AddLines(map[string][]int{"a.py": {1}}))
	require.NoError(t, src.AddLines(map[string][]int{"a.py": {1}}))
	require.NoError(t, src.AddFileTracers(map[string]string{"a.py": "cython"}))

	require.NoError(t, dest.Update(src, nil))

	tracer, known, err := dest.FileTracer("a.py")
	require.NoError(t, err)
	require.True(t, known)
	assert.Equal(t, "cython", tracer)
}

func TestUpdateConflictingTracersFails(t *testing.T) {
	dest := newTestStore(t)
	src := newTestStore(t)

	require.NoError(t, dest.AddLines(map[string][]int{"a.py": {1}}))
	require.NoError(t, dest.AddFileTracers(map[string]string{"a.py": "local-tracer"}))
	require.NoError(t, src.AddLines(map[string][]int{"a.py": {1}}))
	require.NoError(t, src.AddFileTracers(map[string]string{"a.py": "other-tracer"}))

	err := dest.Update(src, nil)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindTracerConflict, kind)
}
