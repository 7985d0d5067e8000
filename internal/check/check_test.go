// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package check_test

import (
	"hash/adler32"
	"hash/crc32"
	"math/rand"
	"testing"

	"github.com/cosnicolaou/pgo/internal/check"
)

func TestCombineCRC32(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for _, split := range []int{0, 1, 7, 4096, 32*1024 + 13} {
		data := make([]byte, 70000)
		rnd.Read(data)
		if split > len(data) {
			continue
		}
		a, b := data[:split], data[split:]
		want := crc32.ChecksumIEEE(data)
		got := check.CombineCRC32(crc32.ChecksumIEEE(a), crc32.ChecksumIEEE(b), int64(len(b)))
		if got != want {
			t.Errorf("split %d: got %#x, want %#x", split, got, want)
		}
	}
}

func TestCombineCRC32Empty(t *testing.T) {
	a := crc32.ChecksumIEEE([]byte("hello"))
	got := check.CombineCRC32(a, crc32.ChecksumIEEE(nil), 0)
	if got != a {
		t.Errorf("got %#x, want %#x", got, a)
	}
}

func TestCombineAdler32(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	for _, split := range []int{0, 1, 7, 4096, 32*1024 + 13} {
		data := make([]byte, 70000)
		rnd.Read(data)
		if split > len(data) {
			continue
		}
		a, b := data[:split], data[split:]
		want := adler32.Checksum(data)
		got := check.CombineAdler32(adler32.Checksum(a), adler32.Checksum(b), int64(len(b)))
		if got != want {
			t.Errorf("split %d: got %#x, want %#x", split, got, want)
		}
	}
}
