// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pgo

import (
	"bufio"
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"log"
	"runtime"
	"sync"

	"github.com/cosnicolaou/pgo/internal/container"
	"github.com/cosnicolaou/pgo/internal/deflate"
	"github.com/cosnicolaou/pgo/internal/lzw"
)

// pullBufSize is the size of the buffer the inflater refills from, per
// spec.md §4.8 ("refill from a 32 KiB buffer").
const pullBufSize = 32 * 1024

type readerConfig struct {
	workers int
	verbose bool
}

// ReaderOption configures a Reader.
type ReaderOption func(*readerConfig)

// DecodeWorkers sets how many goroutines the decoder may use to offload
// running-check computation from the main decompression loop. A value
// of 1 disables offloading entirely; the default is
// runtime.GOMAXPROCS(-1).
func DecodeWorkers(n int) ReaderOption {
	return func(c *readerConfig) { c.workers = n }
}

// DecodeVerbose enables per-member tracing to the standard logger.
func DecodeVerbose(v bool) ReaderOption {
	return func(c *readerConfig) { c.verbose = v }
}

// Reader decompresses and verifies gzip, zlib, zip, or Unix LZW (.Z)
// input, per spec.md §4.8. It implements io.Reader; decoding happens in
// a dedicated goroutine feeding an io.Pipe, mirroring the teacher's
// reader/Decompressor split so that Read can be driven incrementally by
// the caller while decoding runs concurrently with consumption.
type Reader struct {
	ctx   context.Context
	prd   *io.PipeReader
	errCh chan error
	wg    *sync.WaitGroup
}

// NewReader returns a Reader that decompresses and verifies r.
func NewReader(ctx context.Context, r io.Reader, opts ...ReaderOption) (*Reader, error) {
	cfg := readerConfig{workers: runtime.GOMAXPROCS(-1)}
	for _, fn := range opts {
		fn(&cfg)
	}

	br := bufio.NewReaderSize(r, pullBufSize)
	peek, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("pgo: %w", err)
	}
	format, ok := container.Detect(peek)
	if !ok {
		return nil, fmt.Errorf("pgo: %w: unrecognized input", container.ErrFormat)
	}

	prd, pwr := io.Pipe()
	wg := new(sync.WaitGroup)
	errCh := make(chan error, 1)
	wg.Add(1)
	d := &decoder{ctx: ctx, br: br, w: pwr, cfg: cfg, format: format}
	go func() {
		defer wg.Done()
		err := d.run()
		pwr.CloseWithError(err)
		errCh <- err
		close(errCh)
	}()

	return &Reader{ctx: ctx, prd: prd, errCh: errCh, wg: wg}, nil
}

// Read implements io.Reader. Once the underlying pipe reports io.EOF,
// Read waits for the decode goroutine to finish and substitutes its
// final error (a Format, checksum or length mismatch) for a bare EOF,
// exactly as the teacher's reader.Read does for its Decompressor.
func (rd *Reader) Read(p []byte) (int, error) {
	n, err := rd.prd.Read(p)
	if err != io.EOF {
		return n, err
	}
	rd.wg.Wait()
	if derr, ok := <-rd.errCh; ok && derr != nil {
		return n, derr
	}
	return n, err
}

// Close releases the Reader's resources. It does not wait for or
// surface decode errors; call Read to EOF for that.
func (rd *Reader) Close() error {
	return rd.prd.Close()
}

// decoder owns one decompression operation: a single underlying input
// stream that may contain one or more concatenated gzip/zlib members (or
// exactly one zip entry, or one LZW stream).
type decoder struct {
	ctx    context.Context
	br     *bufio.Reader
	w      io.Writer
	cfg    readerConfig
	format container.Format
}

// pull adapts d.br.Read for deflate.NewInflater, checking for
// cancellation between reads since the underlying reader offers no
// cancellation of its own.
func (d *decoder) pull(p []byte) (int, error) {
	select {
	case <-d.ctx.Done():
		return 0, d.ctx.Err()
	default:
	}
	return d.br.Read(p)
}

func (d *decoder) trace(format string, args ...interface{}) {
	if d.cfg.verbose {
		log.Printf(format, args...)
	}
}

func (d *decoder) run() error {
	switch d.format {
	case container.LZW:
		return d.decodeLZW()
	case container.Zip:
		return d.decodeZip()
	default:
		return d.decodeConcatenated()
	}
}

// decodeLZW decompresses a Unix .Z stream. There is no trailer to verify
// against, per spec.md §1's scope: LZW is decode-only and carries no
// check value of its own.
func (d *decoder) decodeLZW() error {
	zr, err := lzw.NewReader(d.br)
	if err != nil {
		return fmt.Errorf("pgo: %w: %v", container.ErrFormat, err)
	}
	_, err = io.Copy(d.w, zr)
	return err
}

// decodeConcatenated decodes one or more gzip or zlib members back to
// back, per spec.md §4.8's "additional concatenated streams immediately
// following are also decoded, up to the first non-stream byte, which is
// tolerated (reported, not fatal)".
func (d *decoder) decodeConcatenated() error {
	first := true
	for {
		if _, err := d.br.Peek(1); err != nil {
			// Clean end of input between members.
			return nil
		}
		if err := d.decodeMember(first); err != nil {
			if !first {
				d.trace("trailing junk after last member: %v", err)
				return nil
			}
			return err
		}
		first = false
	}
}

func (d *decoder) decodeMember(first bool) error {
	switch d.format {
	case container.Gzip:
		return d.decodeGzipMember()
	case container.Zlib:
		return d.decodeZlibMember()
	default:
		return fmt.Errorf("pgo: unsupported container format %v", d.format)
	}
}

func (d *decoder) decodeGzipMember() error {
	hdr, err := container.ReadGzipHeader(d.br)
	if err != nil {
		return err
	}
	d.trace("gzip member: name=%q mtime=%d", hdr.Name, hdr.ModTime)

	var ulen uint64
	check, err := d.inflate(nil, &ulen)
	if err != nil {
		return err
	}
	crc, isize, err := container.ReadGzipTrailer(d.br)
	if err != nil {
		return err
	}
	if crc != check {
		return fmt.Errorf("pgo: %w", container.ErrChecksum)
	}
	if isize != uint32(ulen) {
		return fmt.Errorf("pgo: %w", container.ErrLength)
	}
	return nil
}

func (d *decoder) decodeZlibMember() error {
	if err := container.ReadZlibHeader(d.br); err != nil {
		return err
	}
	var ulen uint64
	check, err := d.inflate(adler32Seed(), &ulen)
	if err != nil {
		return err
	}
	adler, err := container.ReadZlibTrailer(d.br)
	if err != nil {
		return err
	}
	if adler != check {
		return fmt.Errorf("pgo: %w", container.ErrChecksum)
	}
	return nil
}

// decodeZip decodes the single streamed entry this module's own writer
// produces. Anything following the data descriptor (the central
// directory and end-of-central-directory record) is not interpreted;
// this is a decoder for the entries this module writes, not a general
// zip archive reader, per spec.md's "minimal single-entry" scope.
func (d *decoder) decodeZip() error {
	local, err := container.ReadZipLocalHeader(d.br)
	if err != nil {
		return err
	}
	d.trace("zip entry: name=%q method=%d flags=%04x", local.Name, local.Method, local.Flags)

	var ulen uint64
	check, err := d.inflate(nil, &ulen)
	if err != nil {
		return err
	}
	crc, clen, ulenStored, err := container.ReadZipDataDescriptor(d.br, check)
	if err != nil {
		return err
	}
	if crc != check {
		return fmt.Errorf("pgo: %w", container.ErrChecksum)
	}
	if ulenStored != uint32(ulen) {
		return fmt.Errorf("pgo: %w", container.ErrLength)
	}
	_ = clen
	return nil
}

func adler32Seed() *uint32 {
	v := uint32(1)
	return &v
}

// inflate drives a deflate.Inflater over d.br, writing decompressed
// output to d.w and returning the running check value (CRC-32 unless
// seed is non-nil, in which case Adler-32 seeded at *seed). *ulen is
// updated with the total number of decompressed bytes.
//
// When d.cfg.workers > 1, computing the running check for the chunk
// just written is offloaded to a one-shot goroutine while the main loop
// writes the next chunk, joined before that chunk's own check update is
// needed — the offload spec.md §4.8 describes.
func (d *decoder) inflate(seed *uint32, ulen *uint64) (uint32, error) {
	check := uint32(0)
	isAdler := false
	if seed != nil {
		check = *seed
		isAdler = true
	}

	in := deflate.NewInflater(d.pull, nil)
	defer in.Close()

	var pending sync.WaitGroup
	var pendingVal uint32
	var pendingActive bool
	offload := d.cfg.workers > 1

	buf := make([]byte, pullBufSize)
	err := in.Inflate(buf, func(p []byte) error {
		if _, werr := d.w.Write(p); werr != nil {
			return werr
		}
		*ulen += uint64(len(p))

		if !offload {
			check = updateRunningCheck(isAdler, check, p)
			return nil
		}
		if pendingActive {
			pending.Wait()
			check = pendingVal
			pendingActive = false
		}
		chunk := append([]byte(nil), p...)
		base := check
		pending.Add(1)
		pendingActive = true
		go func() {
			defer pending.Done()
			pendingVal = updateRunningCheck(isAdler, base, chunk)
		}()
		return nil
	})
	if pendingActive {
		pending.Wait()
		check = pendingVal
	}
	if err != nil {
		return 0, err
	}
	return check, nil
}

func updateRunningCheck(isAdler bool, running uint32, p []byte) uint32 {
	if isAdler {
		return adler32Update(running, p)
	}
	return crc32.Update(running, crc32.IEEETable, p)
}
