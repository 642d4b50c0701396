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

// TestRegexpContextFilterMatchesPatternAgainstContext exercises the
// REGEXP operator end to end through SetQueryContexts, pinning down the
// preserved argument order: the bound pattern is matched as a regex
// against the context column, not the other way around.
func TestRegexpContextFilterMatchesPatternAgainstContext(t *testing.T) {
	s := newTestStore(t)

	s.SetContext("pkg/foo_test")
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {1}}))
	s.SetContext("pkg/bar_test")
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {2}}))

	require.NoError(t, s.SetQueryContexts([]string{"foo"}))
	lines, ok, err := s.Lines("a.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{1}, lines)
}

func TestRegexpContextFilterNoMatchReturnsEmpty(t *testing.T) {
	s := newTestStore(t)

	s.SetContext("unit")
	require.NoError(t, s.AddLines(map[string][]int{"a.py": {1}}))

	require.NoError(t, s.SetQueryContexts([]string{"zzz_no_such_context"}))
	lines, ok, err := s.Lines("a.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, lines)
}
