// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package container_test

import (
	"testing"
	"time"

	"github.com/cosnicolaou/pgo/internal/container"
)

func TestDOSTimeRoundsSecondsToNearest(t *testing.T) {
	mk := func(sec int) uint32 {
		return uint32(time.Date(2024, time.June, 15, 10, 30, sec, 0, time.UTC).Unix())
	}
	for _, tc := range []struct {
		sec      int
		wantHalf uint32 // the 5-bit second field, i.e. (sec+1)/2.
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{3, 2},
		{58, 29},
		{59, 30},
	} {
		got := container.DOSTime(mk(tc.sec))
		gotHalf := got & 0x1f
		if gotHalf != tc.wantHalf {
			t.Errorf("sec=%d: second field = %d, want %d", tc.sec, gotHalf, tc.wantHalf)
		}
		// The rest of the packed value must still reflect 10:30 on the
		// given date regardless of the rounding.
		wantRest := uint32(2024-1980)<<25 | uint32(time.June)<<21 | uint32(15)<<16 | uint32(10)<<11 | uint32(30)<<5
		if got&^uint32(0x1f) != wantRest {
			t.Errorf("sec=%d: date/hour/minute fields = %#x, want %#x", tc.sec, got&^uint32(0x1f), wantRest)
		}
	}
}

func TestDOSTimeOutOfRangeYear(t *testing.T) {
	// 1970 is before the DOS epoch (1980); DOSTime must return 0 rather
	// than a garbage negative year field.
	if got := container.DOSTime(1); got != 0 {
		t.Errorf("got %#x, want 0 for a pre-1980 epoch time", got)
	}
}
