// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pgo

import (
	"fmt"
	"io"

	"github.com/cosnicolaou/pgo/internal/deflate"
)

// serial implements spec.md §4.7: a single encoder processes blocks
// sequentially when workers <= 1. It is a distinct code path from
// parallel and is not required to produce the same byte stream, only a
// valid one under the configured format.
//
// When dict is on there is no need for an explicit preset dictionary at
// all: one encoder instance already carries its history across blocks,
// so mid-stream blocks are terminated with no-flush and only the final
// block uses finish. When dict is off, blocks must stay independent, so
// every mid-stream block is terminated with sync-flush (full-flush in
// the teacher's vocabulary) and the encoder is reset between blocks.
func (w *Writer) serial(r io.Reader) (int64, error) {
	headerLen, err := w.writeHeader()
	if err != nil {
		return 0, err
	}

	enc, err := deflate.NewEncoder(levelOrDefault(w.cfg.level))
	if err != nil {
		return 0, fmt.Errorf("pgo: %w", err)
	}
	enc.Reset(nil)

	var (
		ulen, clen  uint64
		streamCheck = w.seed()
		total       int64
		buf         = make([]byte, w.cfg.blockSize)
		first       = true
		block       uint64
		emitted     int // bytes of enc.Bytes() already written to w.w.
	)

	for {
		l, rerr := io.ReadFull(r, buf)
		if rerr == io.ErrUnexpectedEOF || rerr == io.EOF {
			rerr = nil
		} else if rerr != nil {
			return total, fmt.Errorf("pgo: read: %w", rerr)
		}
		last := l < len(buf)
		data := buf[:l]
		total += int64(l)

		if !w.cfg.dict && !first {
			enc.Reset(nil)
			emitted = 0
		}
		first = false

		streamCheck = w.updateCheck(streamCheck, data)
		if err := enc.Write(data); err != nil {
			return total, fmt.Errorf("pgo: %w", err)
		}

		var ferr error
		switch {
		case last:
			ferr = enc.Finish()
		case w.cfg.dict:
			// No terminator: the next block's Write continues this
			// encoder's history without a flush boundary.
		default:
			ferr = enc.SyncFlush()
		}
		if ferr != nil {
			return total, fmt.Errorf("pgo: %w", ferr)
		}

		// The encoder's buffer accumulates every byte emitted since its
		// last Reset; when dict keeps one encoder alive across blocks,
		// only the newly emitted suffix belongs to this block.
		out := enc.Bytes()
		fresh := out[emitted:]
		if _, werr := w.w.Write(fresh); werr != nil {
			return total, fmt.Errorf("pgo: write: %w", werr)
		}
		emitted = len(out)
		ulen += uint64(l)
		clen += uint64(len(fresh))

		if w.cfg.progressCh != nil {
			w.cfg.progressCh <- Progress{Block: block, Compressed: len(fresh), Size: l}
		}
		block++

		if last {
			break
		}
	}

	if err := w.writeTrailer(headerLen, streamCheck, uint32(clen), uint32(ulen)); err != nil {
		return total, err
	}
	return total, nil
}
