// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package deflate wraps github.com/klauspost/compress/flate with the
// stateful, reusable, preset-dictionary-aware encoder and the pull/push
// style inflater that the parallel pipeline's work units need. It is the
// only package in this module that talks to a third-party deflate
// implementation; everything above it only ever sees whole blocks of
// compressed bytes and a running check value.
package deflate

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Window is the size of the deflate sliding window, and hence the maximum
// useful length of a preset dictionary.
const Window = 32 * 1024

// MaxOutputSize returns the worst-case size, in bytes, that compressing an
// input of length n can expand to, including the 5-byte overhead of a
// trailing empty stored block for a sync flush, per spec.md's "L +
// L/2048 + 10" overapproximation of deflate's documented bound of
// L + ceil(L/16383)*5 + 6.
func MaxOutputSize(n int) int {
	return n + n/2048 + 10
}

// Encoder is a reusable, stateful raw-deflate encoder for one work-unit
// slot. It is created once per slot and reset between blocks rather than
// reallocated, mirroring pigz's reuse of a single deflate_state per job.
type Encoder struct {
	level int
	zw    *flate.Writer
	buf   bytes.Buffer
}

// NewEncoder creates an Encoder at the given compression level (0-9, or
// flate.DefaultCompression) using a 15-bit (32 KiB) window.
func NewEncoder(level int) (*Encoder, error) {
	e := &Encoder{level: level}
	zw, err := flate.NewWriter(&e.buf, level)
	if err != nil {
		return nil, fmt.Errorf("deflate: new encoder: %w", err)
	}
	e.zw = zw
	return e, nil
}

// Reset discards any buffered output and prepares the encoder to compress
// a new block, optionally seeded with a preset dictionary (the last
// Window bytes, at most, of the previous block). A nil or empty dict
// disables dictionary priming for this block.
func (e *Encoder) Reset(dict []byte) {
	e.buf.Reset()
	if len(dict) == 0 {
		e.zw.Reset(&e.buf)
		return
	}
	e.zw.ResetDict(&e.buf, dict)
}

// Write feeds input bytes to the encoder with no flush; deflate buffers
// internally and may or may not have emitted compressed bytes yet.
func (e *Encoder) Write(p []byte) error {
	_, err := e.zw.Write(p)
	if err != nil {
		return fmt.Errorf("deflate: write: %w", err)
	}
	return nil
}

// SyncFlush terminates the block with an empty stored block, ending on a
// byte boundary while preserving the encoder's history for the next
// block. This is the terminator used for every block except the last.
func (e *Encoder) SyncFlush() error {
	if err := e.zw.Flush(); err != nil {
		return fmt.Errorf("deflate: sync flush: %w", err)
	}
	return nil
}

// Finish closes the deflate stream; it is the terminator for the final
// block of a member.
func (e *Encoder) Finish() error {
	if err := e.zw.Close(); err != nil {
		return fmt.Errorf("deflate: finish: %w", err)
	}
	return nil
}

// Bytes returns the compressed output accumulated since the last Reset.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Inflater streams a raw deflate stream through a pull callback for
// input and a push callback for output, as required by spec.md's
// decompression verification path (§4.8). It wraps
// github.com/klauspost/compress/flate's Reader, which itself only
// needs an io.Reader, so pull is adapted into one via pullReader.
type Inflater struct {
	fr flate.Reader
	zr io.ReadCloser
}

// NewInflater creates an Inflater that pulls raw deflate input from pull
// and optionally primes the window with dict (the preset dictionary, if
// any, that the corresponding encoder used).
func NewInflater(pull func(p []byte) (int, error), dict []byte) *Inflater {
	fr := &pullReader{pull: pull}
	var zr io.ReadCloser
	if len(dict) > 0 {
		zr = flate.NewReaderDict(fr, dict)
	} else {
		zr = flate.NewReader(fr)
	}
	return &Inflater{fr: fr, zr: zr}
}

// Inflate decompresses the stream, invoking push for each chunk of
// decompressed output produced. It returns when the deflate stream ends
// (io.EOF from the underlying reader is not an error here: an
// incomplete final block is reported as an error by the flate package
// itself).
func (in *Inflater) Inflate(buf []byte, push func(p []byte) error) error {
	for {
		n, err := in.zr.Read(buf)
		if n > 0 {
			if perr := push(buf[:n]); perr != nil {
				return perr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("deflate: inflate: %w", err)
		}
	}
}

// Close releases the inflater's resources.
func (in *Inflater) Close() error {
	return in.zr.Close()
}

// pullReader adapts a pull callback, as specified by spec.md §4.8 ("a
// pull callback for input (refill from a 32 KiB buffer)"), to an
// io.Reader so it can drive flate.Reader.
type pullReader struct {
	pull func(p []byte) (int, error)
}

func (p *pullReader) Read(buf []byte) (int, error) {
	return p.pull(buf)
}

func (p *pullReader) ReadByte() (byte, error) {
	var b [1]byte
	n, err := p.pull(b[:])
	if n == 1 {
		return b[0], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return 0, err
}
