// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pool implements the work-unit ring described in spec.md §3 and
// §4.3: a fixed-size, circularly indexed set of buffers and per-slot
// deflate encoders that the reader, compressor and writer stages of a
// parallel compression pipeline hand off to each other via the flag
// primitive in internal/flag.
package pool

import (
	"sync"

	"github.com/cosnicolaou/pgo/internal/deflate"
	"github.com/cosnicolaou/pgo/internal/flag"
)

// Unit is one ring slot: an input buffer, an output buffer sized for the
// worst case deflate expansion, a reusable encoder, a running check
// value and the flag that arbitrates ownership between the reader,
// compressor and writer. Wg is the join mechanism the writer stage uses
// to wait for the compressor goroutine the reader stage spawned on this
// slot to actually finish, which is a distinct event from the flag
// reaching COMP (§4.6 step b: "Join the worker thread for slot k",
// separate from step a's wait_eq(COMP)).
type Unit struct {
	Flag *flag.Flag
	Wg   sync.WaitGroup

	Input  []byte // capacity BlockSize, length set by the reader on each read.
	Output []byte // capacity deflate.MaxOutputSize(BlockSize).

	Enc   *deflate.Encoder
	Check uint32 // this block's check value, filled in by the compressor.
	Len   int    // bytes actually read into Input for this block.

	allocated bool
}

// Pool is the ring of N work units shared by the reader and writer
// stages of a single encode operation. It is lazily populated: a slot's
// buffers and encoder are allocated the first time that slot is used,
// and reused by Reset thereafter, exactly as spec.md's lifecycle
// section requires.
type Pool struct {
	units     []*Unit
	level     int
	blockSize int
}

// New allocates a Pool with n slots; slot buffers and encoders are not
// allocated until first use via Slot.
func New(n, level, blockSize int) *Pool {
	p := &Pool{
		units:     make([]*Unit, n),
		level:     level,
		blockSize: blockSize,
	}
	for i := range p.units {
		p.units[i] = &Unit{Flag: flag.New(flag.IDLE)}
	}
	return p
}

// Len returns the number of slots in the ring.
func (p *Pool) Len() int {
	return len(p.units)
}

// Next returns the slot index that follows i, modulo the ring size.
func (p *Pool) Next(i int) int {
	return (i + 1) % len(p.units)
}

// Slot returns the slot at index i, allocating its buffers and encoder
// on first access.
func (p *Pool) Slot(i int) *Unit {
	u := p.units[i]
	if !u.allocated {
		u.Input = make([]byte, p.blockSize)
		u.Output = make([]byte, deflate.MaxOutputSize(p.blockSize))
		enc, err := deflate.NewEncoder(p.level)
		if err != nil {
			// Encoder construction only fails for an invalid level, which
			// is validated before a Pool is ever created; a failure here
			// indicates a programming error, not a runtime condition.
			panic(err)
		}
		u.Enc = enc
		u.allocated = true
	}
	return u
}

// Matches reports whether this pool can be reused for the given
// configuration, per spec.md's "a whole pool is torn down between files
// only if configuration changes".
func (p *Pool) Matches(n, level, blockSize int) bool {
	return p != nil && len(p.units) == n && p.level == level && p.blockSize == blockSize
}
