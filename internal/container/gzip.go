// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package container

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// gzip header/trailer layout per RFC 1952 and spec.md §6.2.
const (
	gzipID1     = 0x1f
	gzipID2     = 0x8b
	gzipDeflate = 8
	gzipOSUnix  = 3

	flagText    = 1 << 0
	flagHdrCRC  = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4
)

// GzipHeaderLen returns the number of bytes WriteGzipHeader will write for
// the given metadata, so callers can record the header length without
// buffering the write.
func GzipHeaderLen(m Metadata) int {
	n := 10
	if m.StoreName && len(m.Name) > 0 {
		n += len(m.Name) + 1
	}
	return n
}

// xflForLevel returns the XFL byte spec.md §6.2 mandates: 2 for level 9
// (maximum compression), 4 for level 1 (fastest), else 0.
func xflForLevel(level int) byte {
	switch level {
	case 9:
		return 2
	case 1:
		return 4
	default:
		return 0
	}
}

// WriteGzipHeader writes the 10-byte gzip header, followed by the
// original name and a NUL terminator if m.StoreName is set and a name is
// present. Raw bytes of the name are preserved verbatim; no encoding
// conversion is performed, per spec.md's open question on this point.
func WriteGzipHeader(w io.Writer, level int, m Metadata) error {
	var hdr [10]byte
	hdr[0] = gzipID1
	hdr[1] = gzipID2
	hdr[2] = gzipDeflate
	if m.StoreName && len(m.Name) > 0 {
		hdr[3] = flagName
	}
	if m.StoreTime {
		binary.LittleEndian.PutUint32(hdr[4:8], m.ModTime)
	}
	hdr[8] = xflForLevel(level)
	hdr[9] = gzipOSUnix
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("container: gzip header: %w", err)
	}
	if m.StoreName && len(m.Name) > 0 {
		if _, err := io.WriteString(w, m.Name); err != nil {
			return fmt.Errorf("container: gzip header name: %w", err)
		}
		if _, err := w.Write([]byte{0}); err != nil {
			return fmt.Errorf("container: gzip header name terminator: %w", err)
		}
	}
	return nil
}

// WriteGzipTrailer writes the 8-byte gzip trailer: CRC-32 then ISIZE, both
// little-endian, ISIZE being the uncompressed length modulo 2^32.
func WriteGzipTrailer(w io.Writer, crc uint32, isize uint32) error {
	var tr [8]byte
	binary.LittleEndian.PutUint32(tr[0:4], crc)
	binary.LittleEndian.PutUint32(tr[4:8], isize)
	if _, err := w.Write(tr[:]); err != nil {
		return fmt.Errorf("container: gzip trailer: %w", err)
	}
	return nil
}

// GzipHeader is the result of parsing a gzip member header.
type GzipHeader struct {
	Name    string
	ModTime uint32
	OS      byte
}

// ReadGzipHeader parses a gzip member header from r, which must support
// ReadByte (wrap with bufio.NewReader if necessary). It tolerates FEXTRA,
// FNAME, FCOMMENT and FHCRC exactly as a general-purpose gzip decoder
// must, even though WriteGzipHeader never emits FEXTRA or FCOMMENT
// itself, because the decoder must also accept streams from other
// encoders.
func ReadGzipHeader(r *bufio.Reader) (GzipHeader, error) {
	var buf [10]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return GzipHeader{}, fmt.Errorf("container: gzip header: %w", err)
	}
	if buf[0] != gzipID1 || buf[1] != gzipID2 || buf[2] != gzipDeflate {
		return GzipHeader{}, fmt.Errorf("container: %w: bad gzip magic", ErrFormat)
	}
	flg := buf[3]
	hdr := GzipHeader{
		ModTime: binary.LittleEndian.Uint32(buf[4:8]),
		OS:      buf[9],
	}

	if flg&flagExtra != 0 {
		n, err := read2LE(r)
		if err != nil {
			return GzipHeader{}, err
		}
		if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
			return GzipHeader{}, fmt.Errorf("container: gzip extra field: %w", err)
		}
	}
	if flg&flagName != 0 {
		s, err := readCString(r)
		if err != nil {
			return GzipHeader{}, err
		}
		hdr.Name = s
	}
	if flg&flagComment != 0 {
		if _, err := readCString(r); err != nil {
			return GzipHeader{}, err
		}
	}
	if flg&flagHdrCRC != 0 {
		if _, err := read2LE(r); err != nil {
			return GzipHeader{}, err
		}
	}
	return hdr, nil
}

// ReadGzipTrailer reads and returns the 8-byte gzip trailer.
func ReadGzipTrailer(r io.Reader) (crc, isize uint32, err error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, 0, fmt.Errorf("container: gzip trailer: %w", err)
	}
	return binary.LittleEndian.Uint32(buf[0:4]), binary.LittleEndian.Uint32(buf[4:8]), nil
}

func read2LE(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("container: short read: %w", err)
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readCString(r *bufio.Reader) (string, error) {
	s, err := r.ReadString(0)
	if err != nil {
		return "", fmt.Errorf("container: nul-terminated field: %w", err)
	}
	return s[:len(s)-1], nil
}
