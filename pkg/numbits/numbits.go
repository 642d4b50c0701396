// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package numbits encodes a set of non-negative integers as a compact
// little-endian bitmap byte string.
//
// Bit k of byte i represents the integer 8*i + k. Trailing zero bytes are
// never emitted, so two sets that differ only in their highest member's
// byte-alignment still produce comparable (but not necessarily equal
// length) encodings.
package numbits

// Encode packs nums into a numbits byte string. Line number 0 is a valid
// member of nums (set encoding is integer-agnostic). Encode does not
// filter out 0, and neither does covdata's AddLines, which passes the
// caller's line numbers to Encode unchanged. An empty set encodes to
// an empty (nil-length) byte string.
func Encode(nums []int) []byte {
	max := -1
	for _, n := range nums {
		if n > max {
			max = n
		}
	}
	if max < 0 {
		return []byte{}
	}

	out := make([]byte, max/8+1)
	for _, n := range nums {
		out[n/8] |= 1 << uint(n%8)
	}
	return trimTrailingZeros(out)
}

// Decode returns every set bit's position as a slice in ascending order.
func Decode(b []byte) []int {
	var nums []int
	for i, by := range b {
		if by == 0 {
			continue
		}
		for k := 0; k < 8; k++ {
			if by&(1<<uint(k)) != 0 {
				nums = append(nums, i*8+k)
			}
		}
	}
	return nums
}

// Union returns the byte-wise OR of a and b, as if each were a bitmap over
// the same universe (the shorter operand is zero-padded). The result has
// no trailing zero bytes.
func Union(a, b []byte) []byte {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		var ab, bb byte
		if i < len(a) {
			ab = a[i]
		}
		if i < len(b) {
			bb = b[i]
		}
		out[i] = ab | bb
	}
	return trimTrailingZeros(out)
}

func trimTrailingZeros(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}
