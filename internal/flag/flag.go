// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package flag implements the three-state rendezvous primitive used to
// hand work-unit slots off between the reader, compressor and writer
// stages of a parallel compression pipeline.
package flag

import "sync"

// Three states a slot's Flag cycles through: a slot starts IDLE, the
// reader moves it to COMP when it hands the slot to a compressor, and
// the writer moves it to WRITE while draining the slot's output and
// back to IDLE once the slot is free for reuse.
const (
	IDLE = iota
	COMP
	WRITE
)

// Flag is a value shared by at most two goroutines at a time: whichever
// transitions the flag forward, and whichever is waiting for it to reach
// or leave a particular value. It is the Go equivalent of pigz's
// struct flag / flag_set / flag_wait / flag_wait_not.
type Flag struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value int
}

// New returns a Flag initialized to val.
func New(val int) *Flag {
	f := &Flag{value: val}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Init resets the flag to val without signaling, so it is only safe to
// call when no other goroutine can be waiting on the flag.
func (f *Flag) Init(val int) {
	f.mu.Lock()
	f.value = val
	f.mu.Unlock()
}

// Set assigns val and wakes any goroutine blocked in WaitEQ or WaitNEQ.
func (f *Flag) Set(val int) {
	f.mu.Lock()
	f.value = val
	f.mu.Unlock()
	f.cond.Signal()
}

// WaitEQ blocks until the flag's value equals val. The predicate is
// rechecked in a loop so spurious wakeups are harmless.
func (f *Flag) WaitEQ(val int) {
	f.mu.Lock()
	for f.value != val {
		f.cond.Wait()
	}
	f.mu.Unlock()
}

// WaitNEQ blocks until the flag's value no longer equals val.
func (f *Flag) WaitNEQ(val int) {
	f.mu.Lock()
	for f.value == val {
		f.cond.Wait()
	}
	f.mu.Unlock()
}

// Value returns the flag's current value. It is intended for tracing
// and tests; correctness never depends on a value read outside WaitEQ
// or WaitNEQ since the value may change immediately after it returns.
func (f *Flag) Value() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}
