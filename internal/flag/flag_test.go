// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package flag_test

import (
	"testing"
	"time"

	"github.com/cosnicolaou/pgo/internal/flag"
)

func TestNewValue(t *testing.T) {
	f := flag.New(flag.IDLE)
	if got := f.Value(); got != flag.IDLE {
		t.Errorf("got %d, want IDLE", got)
	}
}

func TestSetWakesWaitEQ(t *testing.T) {
	f := flag.New(flag.IDLE)
	done := make(chan struct{})
	go func() {
		f.WaitEQ(flag.COMP)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitEQ returned before Set")
	case <-time.After(20 * time.Millisecond):
	}

	f.Set(flag.COMP)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitEQ never returned after Set")
	}
}

func TestSetWakesWaitNEQ(t *testing.T) {
	f := flag.New(flag.COMP)
	done := make(chan struct{})
	go func() {
		f.WaitNEQ(flag.COMP)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitNEQ returned before Set")
	case <-time.After(20 * time.Millisecond):
	}

	f.Set(flag.WRITE)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitNEQ never returned after Set")
	}
}

func TestWaitEQAlreadyTrue(t *testing.T) {
	f := flag.New(flag.WRITE)
	done := make(chan struct{})
	go func() {
		f.WaitEQ(flag.WRITE)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitEQ blocked though the value already matched")
	}
}

func TestInitSetsValue(t *testing.T) {
	f := flag.New(flag.IDLE)
	f.Init(flag.WRITE)
	if got := f.Value(); got != flag.WRITE {
		t.Errorf("got %d, want WRITE", got)
	}
}
