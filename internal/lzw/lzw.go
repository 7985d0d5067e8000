// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package lzw implements a decoder for the Unix "compress" (.Z) format,
// the self-contained LZW decoder spec.md §1 calls out as a distinct
// concern from the deflate pipeline: adaptive code-width LZW with an
// optional block-mode clear code, as produced by the classic Unix
// compress(1) and decompressed by zcat/uncompress. Encoding is
// explicitly a non-goal (spec.md §1).
package lzw

import (
	"bufio"
	"fmt"
	"io"
)

const (
	magic0 = 0x1f
	magic1 = 0x9d

	minBits    = 9
	maxMaxBits = 16

	clearCode = 256
)

// Reader decompresses a Unix .Z stream.
type Reader struct {
	br   bitReader
	err  error
	done bool

	maxBits   int
	blockMode bool

	nBits   int
	maxCode int
	freeEnt int
	first   bool // true immediately after start or a CLEAR code.

	prefix [1 << maxMaxBits]int
	suffix [1 << maxMaxBits]byte
	stack  [1 << maxMaxBits]byte
	stackN int

	oldCode int
	finChar byte

	out []byte // pending decoded bytes not yet returned to the caller.
}

// NewReader returns a Reader that decompresses r, which must begin with
// the .Z magic number 0x1F 0x9D followed by the flags byte.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 4096)
	var hdr [3]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("lzw: header: %w", err)
	}
	if hdr[0] != magic0 || hdr[1] != magic1 {
		return nil, fmt.Errorf("lzw: bad magic number")
	}
	flags := hdr[2]
	maxBits := int(flags & 0x1f)
	if maxBits < minBits || maxBits > maxMaxBits {
		return nil, fmt.Errorf("lzw: unsupported code width %d", maxBits)
	}
	z := &Reader{
		maxBits:   maxBits,
		blockMode: flags&0x80 != 0,
	}
	z.br.init(br)
	z.resetTable()
	return z, nil
}

func (z *Reader) resetTable() {
	z.nBits = minBits
	z.maxCode = 1<<z.nBits - 1
	if z.blockMode {
		z.freeEnt = clearCode + 1
	} else {
		z.freeEnt = clearCode
	}
	z.first = true
	z.oldCode = 0
}

// Read implements io.Reader.
func (z *Reader) Read(p []byte) (int, error) {
	for len(z.out) == 0 {
		if z.done {
			if z.err != nil {
				return 0, z.err
			}
			return 0, io.EOF
		}
		if err := z.step(); err != nil {
			z.done = true
			if err != io.EOF {
				z.err = err
				return 0, err
			}
		}
	}
	n := copy(p, z.out)
	z.out = z.out[n:]
	return n, nil
}

// step decodes a single code and appends the bytes it represents to
// z.out, following the classic Unix compress algorithm: codes below 256
// are literal bytes, codes at or above 256 reference a prefix/suffix
// chain built incrementally as the stream is read, with a KwKwK special
// case when a code equals the not-yet-assigned next free entry.
func (z *Reader) step() error {
	code, err := z.br.readCode(z.nBits)
	if err != nil {
		return err
	}
	if z.blockMode && code == clearCode {
		z.resetTable()
		code, err = z.br.readCode(z.nBits)
		if err != nil {
			return err
		}
	}
	if code >= 1<<maxMaxBits {
		return fmt.Errorf("lzw: invalid code %d", code)
	}

	if z.first {
		if code >= clearCode {
			return fmt.Errorf("lzw: invalid initial code %d", code)
		}
		z.first = false
		z.oldCode = code
		z.finChar = byte(code)
		z.out = append(z.out, byte(code))
		return nil
	}

	incode := code
	z.stackN = 0
	if code >= z.freeEnt {
		if code > z.freeEnt {
			return fmt.Errorf("lzw: invalid code %d (free entry %d)", code, z.freeEnt)
		}
		// KwKwK: the code being read is the one about to be assigned.
		z.stack[z.stackN] = z.finChar
		z.stackN++
		code = z.oldCode
	}
	for code >= clearCode {
		z.stack[z.stackN] = z.suffix[code]
		z.stackN++
		code = z.prefix[code]
	}
	z.finChar = byte(code)
	z.stack[z.stackN] = z.finChar
	z.stackN++

	for i := z.stackN - 1; i >= 0; i-- {
		z.out = append(z.out, z.stack[i])
	}

	if z.freeEnt < 1<<z.maxBits {
		z.prefix[z.freeEnt] = z.oldCode
		z.suffix[z.freeEnt] = z.finChar
		z.freeEnt++
		if z.freeEnt > z.maxCode && z.nBits < z.maxBits {
			z.nBits++
			if z.nBits == z.maxBits {
				z.maxCode = 1<<z.maxBits - 1
			} else {
				z.maxCode = 1<<z.nBits - 1
			}
		}
	}
	z.oldCode = incode
	return nil
}
