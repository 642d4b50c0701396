// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package numbits

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]int{
		nil,
		{},
		{0},
		{1, 2, 5},
		{7, 8, 9, 63, 64, 100},
	}

	for _, nums := range cases {
		encoded := Encode(nums)
		decoded := Decode(encoded)
		assert.ElementsMatch(t, nums, decoded, "round trip for %v", nums)
	}
}

func TestEncodeEmptySetIsEmptyBytes(t *testing.T) {
	require.Equal(t, []byte{}, Encode(nil))
	require.Equal(t, []byte{}, Encode([]int{}))
}

func TestEncodeTrimsTrailingZeroBytes(t *testing.T) {
	encoded := Encode([]int{1})
	require.Len(t, encoded, 1, "no trailing zero bytes after the last set bit's byte")
}

func TestUnionIsCommutativeAndIdempotent(t *testing.T) {
	a := Encode([]int{1, 2, 10})
	b := Encode([]int{3, 10, 20})

	ab := Union(a, b)
	ba := Union(b, a)
	assert.Equal(t, ab, ba, "union must be commutative")
	assert.Equal(t, ab, Union(ab, ab), "union with self must be idempotent")
}

func TestUnionMatchesSetUnion(t *testing.T) {
	a := []int{1, 2, 5, 100}
	b := []int{2, 3, 99, 200}

	got := Decode(Union(Encode(a), Encode(b)))
	sort.Ints(got)

	want := map[int]bool{}
	for _, n := range append(append([]int{}, a...), b...) {
		want[n] = true
	}
	var wantSorted []int
	for n := range want {
		wantSorted = append(wantSorted, n)
	}
	sort.Ints(wantSorted)

	assert.Equal(t, wantSorted, got)
}

func TestUnionPadsShorterOperand(t *testing.T) {
	short := Encode([]int{1})
	long := Encode([]int{1, 100})

	assert.Equal(t, long, Union(short, long))
}
