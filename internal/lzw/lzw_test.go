// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package lzw_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/cosnicolaou/pgo/internal/lzw"
)

// bitPacker packs fixed-width codes LSB-first across byte boundaries, the
// same layout lzw.Reader's internal bitReader expects, so tests can
// hand-build minimal .Z streams without an encoder (encoding is an
// explicit non-goal of this package).
type bitPacker struct {
	buf   []byte
	bits  uint32
	nbits uint
}

func (p *bitPacker) put(code int, width int) {
	p.bits |= uint32(code) << p.nbits
	p.nbits += uint(width)
	for p.nbits >= 8 {
		p.buf = append(p.buf, byte(p.bits))
		p.bits >>= 8
		p.nbits -= 8
	}
}

func (p *bitPacker) bytes() []byte {
	out := p.buf
	if p.nbits > 0 {
		out = append(out, byte(p.bits))
	}
	return out
}

func zStream(flags byte, codes []int, width int) []byte {
	var p bitPacker
	for _, c := range codes {
		p.put(c, width)
	}
	var out bytes.Buffer
	out.WriteByte(0x1f)
	out.WriteByte(0x9d)
	out.WriteByte(flags)
	out.Write(p.bytes())
	return out.Bytes()
}

func TestReaderLiteralCodes(t *testing.T) {
	// Two literal codes at the minimum 9-bit width, block mode off: 'A'
	// (65) then 'B' (66). Both are below the clear code (256) so they
	// decode to themselves with no table reference involved.
	data := zStream(9, []int{65, 66}, 9)

	zr, err := lzw.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "AB" {
		t.Errorf("got %q, want %q", got, "AB")
	}
}

func TestReaderBadMagic(t *testing.T) {
	_, err := lzw.NewReader(bytes.NewReader([]byte{0x00, 0x00, 0x09}))
	if err == nil {
		t.Fatal("expected an error for a bad magic number")
	}
}

func TestReaderUnsupportedCodeWidth(t *testing.T) {
	_, err := lzw.NewReader(bytes.NewReader([]byte{0x1f, 0x9d, 20}))
	if err == nil {
		t.Fatal("expected an error for an out-of-range max code width")
	}
	_, err = lzw.NewReader(bytes.NewReader([]byte{0x1f, 0x9d, 3}))
	if err == nil {
		t.Fatal("expected an error for a max code width below the minimum")
	}
}

func TestReaderShortHeader(t *testing.T) {
	_, err := lzw.NewReader(bytes.NewReader([]byte{0x1f, 0x9d}))
	if err == nil {
		t.Fatal("expected an error for a truncated header")
	}
}

func TestReaderEmptyPayload(t *testing.T) {
	data := zStream(9, nil, 9)
	zr, err := lzw.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d bytes, want 0", len(got))
	}
}
