// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pool_test

import (
	"testing"

	"github.com/cosnicolaou/pgo/internal/deflate"
	"github.com/cosnicolaou/pgo/internal/flag"
	"github.com/cosnicolaou/pgo/internal/pool"
)

func TestNextWraps(t *testing.T) {
	p := pool.New(4, -1, 32*1024)
	k := 0
	for i := 0; i < 4; i++ {
		k = p.Next(k)
	}
	if k != 0 {
		t.Errorf("Next around the full ring: got %d, want 0", k)
	}
}

func TestSlotLazyAllocation(t *testing.T) {
	const blockSize = 64 * 1024
	p := pool.New(2, -1, blockSize)
	u := p.Slot(0)
	if len(u.Input) != blockSize {
		t.Errorf("Input len = %d, want %d", len(u.Input), blockSize)
	}
	if want := deflate.MaxOutputSize(blockSize); len(u.Output) != want {
		t.Errorf("Output len = %d, want %d", len(u.Output), want)
	}
	if u.Enc == nil {
		t.Fatal("Enc is nil after Slot")
	}
	if u.Flag.Value() != flag.IDLE {
		t.Errorf("new slot flag = %d, want IDLE", u.Flag.Value())
	}
}

func TestSlotReuse(t *testing.T) {
	p := pool.New(1, -1, 32*1024)
	a := p.Slot(0)
	b := p.Slot(0)
	if a != b {
		t.Error("Slot(0) called twice returned different *Unit values")
	}
}

func TestMatches(t *testing.T) {
	p := pool.New(3, 6, 64*1024)
	if !p.Matches(3, 6, 64*1024) {
		t.Error("Matches should be true for identical configuration")
	}
	for _, tc := range []struct {
		n, level, block int
	}{
		{4, 6, 64 * 1024},
		{3, 9, 64 * 1024},
		{3, 6, 128 * 1024},
	} {
		if p.Matches(tc.n, tc.level, tc.block) {
			t.Errorf("Matches(%d, %d, %d) should be false", tc.n, tc.level, tc.block)
		}
	}
	var nilPool *pool.Pool
	if nilPool.Matches(3, 6, 64*1024) {
		t.Error("a nil *Pool should never match")
	}
}
