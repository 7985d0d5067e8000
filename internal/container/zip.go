// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package container

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Fixed byte layout of the single-entry, data-descriptor-flavored zip
// member this module writes, per spec.md §6.2.
const (
	zipLocalSig   = 0x04034b50
	zipCentralSig = 0x02014b50
	zipEOCDSig    = 0x06054b50

	zipVersionNeeded  = 20
	zipFlagDescriptor = 0x0008
	zipMethodDeflate  = 8
	zipExtraLen       = 9 // extended-timestamp block: sig(2)+len(2)+flag(1)+mtime(4).
	zipTimestampSig   = 0x5455

	zipLocalHeaderLen   = 30
	zipCentralHeaderLen = 46
	zipEOCDLen          = 22
	zipDataDescLen      = 12

	zipStdinName = "-" // literal name used when streaming with no name, per spec.md.
)

func zipEntryName(name string) string {
	if len(name) == 0 {
		return zipStdinName
	}
	return name
}

// ZipLocalHeaderLen returns the number of bytes WriteZipLocalHeader will
// write for the given name, including the fixed 30-byte header and the
// 9-byte extended-timestamp extra field.
func ZipLocalHeaderLen(name string) int {
	return zipLocalHeaderLen + len(zipEntryName(name)) + zipExtraLen
}

// WriteZipLocalHeader writes the local file header for the single entry
// this module supports: a streaming (data-descriptor) deflate entry with
// zeroed CRC/length placeholders and an extended-timestamp extra field.
func WriteZipLocalHeader(w io.Writer, m Metadata) error {
	name := zipEntryName(m.Name)
	dostime := uint32(0)
	if m.StoreTime {
		dostime = DOSTime(m.ModTime)
	}

	var head [zipLocalHeaderLen]byte
	binary.LittleEndian.PutUint32(head[0:4], zipLocalSig)
	binary.LittleEndian.PutUint16(head[4:6], zipVersionNeeded)
	binary.LittleEndian.PutUint16(head[6:8], zipFlagDescriptor)
	binary.LittleEndian.PutUint16(head[8:10], zipMethodDeflate)
	binary.LittleEndian.PutUint32(head[10:14], dostime)
	// head[14:18] crc, head[18:22] compressed length, head[22:26]
	// uncompressed length are all zero placeholders: the real values
	// follow in the data descriptor, per the general-purpose flag set
	// above.
	binary.LittleEndian.PutUint16(head[26:28], uint16(len(name)))
	binary.LittleEndian.PutUint16(head[28:30], zipExtraLen)
	if _, err := w.Write(head[:]); err != nil {
		return fmt.Errorf("container: zip local header: %w", err)
	}
	if _, err := io.WriteString(w, name); err != nil {
		return fmt.Errorf("container: zip local header name: %w", err)
	}
	if err := writeZipTimestampExtra(w, m); err != nil {
		return err
	}
	return nil
}

func writeZipTimestampExtra(w io.Writer, m Metadata) error {
	var extra [zipExtraLen]byte
	binary.LittleEndian.PutUint16(extra[0:2], zipTimestampSig)
	binary.LittleEndian.PutUint16(extra[2:4], 5)
	extra[4] = 1
	binary.LittleEndian.PutUint32(extra[5:9], m.ModTime)
	if _, err := w.Write(extra[:]); err != nil {
		return fmt.Errorf("container: zip extra field: %w", err)
	}
	return nil
}

// WriteZipTrailer writes the data descriptor, central directory record
// and end-of-central-directory record for the single streamed entry,
// given localHeaderLen (the size in bytes of the local header + name +
// extra field that preceded the compressed data), crc, clen
// (compressed length) and ulen (uncompressed length).
func WriteZipTrailer(w io.Writer, m Metadata, localHeaderLen int, crc, clen, ulen uint32) error {
	if err := writeZipDataDescriptor(w, crc, clen, ulen); err != nil {
		return err
	}
	centralLen, err := writeZipCentralDirectory(w, m, crc, clen, ulen)
	if err != nil {
		return err
	}
	cdOffset := uint32(localHeaderLen) + clen + zipDataDescLen
	return writeZipEOCD(w, centralLen, cdOffset)
}

func writeZipDataDescriptor(w io.Writer, crc, clen, ulen uint32) error {
	var desc [zipDataDescLen]byte
	binary.LittleEndian.PutUint32(desc[0:4], crc)
	binary.LittleEndian.PutUint32(desc[4:8], clen)
	binary.LittleEndian.PutUint32(desc[8:12], ulen)
	if _, err := w.Write(desc[:]); err != nil {
		return fmt.Errorf("container: zip data descriptor: %w", err)
	}
	return nil
}

func writeZipCentralDirectory(w io.Writer, m Metadata, crc, clen, ulen uint32) (int, error) {
	name := zipEntryName(m.Name)
	dostime := uint32(0)
	if m.StoreTime {
		dostime = DOSTime(m.ModTime)
	}

	var head [zipCentralHeaderLen]byte
	binary.LittleEndian.PutUint32(head[0:4], zipCentralSig)
	head[4] = 63  // version made by: 6.3 of the zip spec.
	head[5] = 255 // host OS/external attributes format: unspecified.
	binary.LittleEndian.PutUint16(head[6:8], zipVersionNeeded)
	binary.LittleEndian.PutUint16(head[8:10], zipFlagDescriptor)
	binary.LittleEndian.PutUint16(head[10:12], zipMethodDeflate)
	binary.LittleEndian.PutUint32(head[12:16], dostime)
	binary.LittleEndian.PutUint32(head[16:20], crc)
	binary.LittleEndian.PutUint32(head[20:24], clen)
	binary.LittleEndian.PutUint32(head[24:28], ulen)
	binary.LittleEndian.PutUint16(head[28:30], uint16(len(name)))
	binary.LittleEndian.PutUint16(head[30:32], zipExtraLen)
	// head[32:34] comment length, head[34:36] disk number, head[36:38]
	// internal attributes, head[38:42] external attributes and
	// head[42:46] offset of local header are all zero: this module only
	// ever writes a single entry starting at offset zero.
	if _, err := w.Write(head[:]); err != nil {
		return 0, fmt.Errorf("container: zip central directory: %w", err)
	}
	n := zipCentralHeaderLen
	if _, err := io.WriteString(w, name); err != nil {
		return 0, fmt.Errorf("container: zip central directory name: %w", err)
	}
	n += len(name)
	if err := writeZipTimestampExtra(w, m); err != nil {
		return 0, err
	}
	n += zipExtraLen
	return n, nil
}

func writeZipEOCD(w io.Writer, centralDirLen int, centralDirOffset uint32) error {
	var tail [zipEOCDLen]byte
	binary.LittleEndian.PutUint32(tail[0:4], zipEOCDSig)
	// tail[4:6] disk number, tail[6:8] disk with start of central
	// directory are both zero: this module never splits its output
	// across volumes.
	binary.LittleEndian.PutUint16(tail[8:10], 1)
	binary.LittleEndian.PutUint16(tail[10:12], 1)
	binary.LittleEndian.PutUint32(tail[12:16], uint32(centralDirLen))
	binary.LittleEndian.PutUint32(tail[16:20], centralDirOffset)
	// tail[20:22] comment length is zero.
	if _, err := w.Write(tail[:]); err != nil {
		return fmt.Errorf("container: zip end of central directory: %w", err)
	}
	return nil
}
