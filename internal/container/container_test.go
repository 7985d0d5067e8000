// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package container_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cosnicolaou/pgo/internal/container"
)

func TestDetect(t *testing.T) {
	for _, tc := range []struct {
		name string
		peek []byte
		want container.Format
		ok   bool
	}{
		{"gzip", []byte{0x1f, 0x8b, 0x08, 0x00}, container.Gzip, true},
		{"zip", []byte{0x50, 0x4b, 0x03, 0x04}, container.Zip, true},
		{"lzw", []byte{0x1f, 0x9d, 0x90, 0x00}, container.LZW, true},
		{"too short", []byte{0x1f}, 0, false},
		// 0x0001 is not a multiple of 31 and matches no other magic.
		{"garbage", []byte{0x00, 0x01, 0x02, 0x03}, 0, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := container.Detect(tc.peek)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Errorf("format = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDetectZlib(t *testing.T) {
	var buf bytes.Buffer
	if err := container.WriteZlibHeader(&buf, 6); err != nil {
		t.Fatal(err)
	}
	got, ok := container.Detect(buf.Bytes())
	if !ok || got != container.Zlib {
		t.Fatalf("Detect(zlib header) = %v, %v, want Zlib, true", got, ok)
	}
}

func TestGzipHeaderRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		meta container.Metadata
	}{
		{"no metadata", container.Metadata{}},
		{"with name", container.Metadata{Name: "input.txt", StoreName: true}},
		{"with mtime", container.Metadata{ModTime: 1717000000, StoreTime: true}},
		{"with both", container.Metadata{Name: "a.log", StoreName: true, ModTime: 1, StoreTime: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := container.WriteGzipHeader(&buf, 6, tc.meta); err != nil {
				t.Fatal(err)
			}
			if got, want := buf.Len(), container.GzipHeaderLen(tc.meta); got != want {
				t.Errorf("written length = %d, GzipHeaderLen = %d", got, want)
			}
			hdr, err := container.ReadGzipHeader(bufio.NewReader(&buf))
			if err != nil {
				t.Fatal(err)
			}
			wantName := ""
			if tc.meta.StoreName {
				wantName = tc.meta.Name
			}
			wantTime := uint32(0)
			if tc.meta.StoreTime {
				wantTime = tc.meta.ModTime
			}
			want := container.GzipHeader{Name: wantName, ModTime: wantTime, OS: hdr.OS}
			if diff := cmp.Diff(want, hdr); diff != "" {
				t.Errorf("ReadGzipHeader mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGzipTrailerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := container.WriteGzipTrailer(&buf, 0xdeadbeef, 12345); err != nil {
		t.Fatal(err)
	}
	crc, isize, err := container.ReadGzipTrailer(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if crc != 0xdeadbeef || isize != 12345 {
		t.Errorf("got crc=%#x isize=%d, want crc=0xdeadbeef isize=12345", crc, isize)
	}
}

func TestGzipHeaderBadMagic(t *testing.T) {
	buf := bytes.NewReader(make([]byte, 10))
	if _, err := container.ReadGzipHeader(bufio.NewReader(buf)); err == nil {
		t.Fatal("expected an error for an all-zero header")
	}
}

func TestZlibHeaderRoundTrip(t *testing.T) {
	for _, level := range []int{-1, 0, 1, 6, 9} {
		var buf bytes.Buffer
		if err := container.WriteZlibHeader(&buf, level); err != nil {
			t.Fatal(err)
		}
		if buf.Len() != container.ZlibHeaderLen {
			t.Errorf("level %d: wrote %d bytes, want %d", level, buf.Len(), container.ZlibHeaderLen)
		}
		// The big-endian uint16 formed by the header bytes must be a
		// multiple of 31, per RFC 1950.
		b := buf.Bytes()
		if v := int(b[0])<<8 | int(b[1]); v%31 != 0 {
			t.Errorf("level %d: header %04x is not a multiple of 31", level, v)
		}
		if err := container.ReadZlibHeader(bytes.NewReader(buf.Bytes())); err != nil {
			t.Errorf("level %d: ReadZlibHeader: %v", level, err)
		}
	}
}

func TestZlibHeaderRejectsBadMethod(t *testing.T) {
	// CM=7 with a valid multiple-of-31 check and FDICT clear, so only the
	// method is wrong.
	if err := container.ReadZlibHeader(bytes.NewReader([]byte{0x77, 0x09})); err == nil {
		t.Fatal("expected an error for a non-deflate compression method")
	}
}

func TestZlibTrailerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := container.WriteZlibTrailer(&buf, 0x01020304); err != nil {
		t.Fatal(err)
	}
	got, err := container.ReadZlibTrailer(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x01020304 {
		t.Errorf("got %#x, want 0x01020304", got)
	}
}

func TestZipHeaderAndTrailerRoundTrip(t *testing.T) {
	meta := container.Metadata{Name: "data.bin", StoreName: true, ModTime: 1717000000, StoreTime: true}

	var buf bytes.Buffer
	if err := container.WriteZipLocalHeader(&buf, meta); err != nil {
		t.Fatal(err)
	}
	headerLen := buf.Len()
	if want := container.ZipLocalHeaderLen(meta.Name); headerLen != want {
		t.Errorf("local header length = %d, want %d", headerLen, want)
	}

	local, err := container.ReadZipLocalHeader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if local.Name != meta.Name {
		t.Errorf("Name = %q, want %q", local.Name, meta.Name)
	}

	const crc, clen, ulen = 0x11223344, 100, 400
	var trailer bytes.Buffer
	if err := container.WriteZipTrailer(&trailer, meta, headerLen, crc, clen, ulen); err != nil {
		t.Fatal(err)
	}

	gotCRC, gotCLen, gotULen, err := container.ReadZipDataDescriptor(bytes.NewReader(trailer.Bytes()), crc)
	if err != nil {
		t.Fatal(err)
	}
	if gotCRC != crc || gotCLen != clen || gotULen != ulen {
		t.Errorf("data descriptor = (%#x, %d, %d), want (%#x, %d, %d)", gotCRC, gotCLen, gotULen, crc, clen, ulen)
	}
}

func TestZipStdinNameWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := container.WriteZipLocalHeader(&buf, container.Metadata{}); err != nil {
		t.Fatal(err)
	}
	local, err := container.ReadZipLocalHeader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if local.Name != "-" {
		t.Errorf("Name = %q, want %q for an unnamed entry", local.Name, "-")
	}
}

func TestZipDataDescriptorWithOptionalSignature(t *testing.T) {
	const crc, clen, ulen = 0xaabbccdd, 50, 150
	var buf bytes.Buffer
	// Some writers prepend PK\x07\x08 to the descriptor.
	buf.Write([]byte{0x50, 0x4b, 0x07, 0x08})
	if err := func() error {
		var inner bytes.Buffer
		if err := writeRawDataDescriptor(&inner, crc, clen, ulen); err != nil {
			return err
		}
		buf.Write(inner.Bytes())
		return nil
	}(); err != nil {
		t.Fatal(err)
	}

	gotCRC, gotCLen, gotULen, err := container.ReadZipDataDescriptor(bytes.NewReader(buf.Bytes()), crc)
	if err != nil {
		t.Fatal(err)
	}
	if gotCRC != crc || gotCLen != clen || gotULen != ulen {
		t.Errorf("got (%#x, %d, %d), want (%#x, %d, %d)", gotCRC, gotCLen, gotULen, crc, clen, ulen)
	}
}

// writeRawDataDescriptor writes the bare 12-byte descriptor with no
// optional signature, for use by TestZipDataDescriptorWithOptionalSignature,
// which prepends the signature itself.
func writeRawDataDescriptor(w *bytes.Buffer, crc, clen, ulen uint32) error {
	put := func(v uint32) {
		w.WriteByte(byte(v))
		w.WriteByte(byte(v >> 8))
		w.WriteByte(byte(v >> 16))
		w.WriteByte(byte(v >> 24))
	}
	put(crc)
	put(clen)
	put(ulen)
	return nil
}
