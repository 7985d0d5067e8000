// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pgo

import (
	"fmt"
	"hash/crc32"
	"io"
	"log"

	"github.com/cosnicolaou/pgo/internal/check"
	"github.com/cosnicolaou/pgo/internal/container"
	"github.com/cosnicolaou/pgo/internal/deflate"
	"github.com/cosnicolaou/pgo/internal/flag"
	"github.com/cosnicolaou/pgo/internal/pool"
)

// Writer is the three-stage parallel compression pipeline described by
// spec.md §4.4-§4.6: the reader stage (run in its own goroutine by
// ReadFrom) partitions the input into blocks and hands each to a
// short-lived compressor goroutine, while the writer stage (run in the
// calling goroutine) trails behind joining each block's compressor in
// strict input order and serializing its output. The two stages
// synchronize only through the per-slot flag in internal/flag, never
// through a shared mutex of their own.
//
// A Writer is single-use: create one with NewWriter, call ReadFrom
// exactly once, then discard it.
type Writer struct {
	w   io.Writer
	cfg config

	pool *pool.Pool

	verbose bool
}

// NewWriter returns a Writer that compresses the data passed to its
// ReadFrom method and writes the result, framed per cfg.format, to w.
func NewWriter(w io.Writer, opts ...Option) (*Writer, error) {
	cfg := defaultConfig()
	for _, fn := range opts {
		fn(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	wr := &Writer{w: w, cfg: cfg, verbose: cfg.verbose}
	if cfg.workers > 1 {
		wr.pool = pool.New(cfg.workers, levelOrDefault(cfg.level), cfg.blockSize)
	}
	return wr, nil
}

func levelOrDefault(level int) int {
	if level == DefaultCompression {
		return -1
	}
	return level
}

func (w *Writer) trace(format string, args ...interface{}) {
	if w.verbose {
		log.Printf(format, args...)
	}
}

// ReadFrom reads r to completion, compressing it to the Writer's sink,
// and implements io.ReaderFrom. spec.md's reader stage (§4.4) is driven
// from here rather than from a stream of small Write calls, since block
// boundaries are a property of the whole input, not of caller-chosen
// write sizes.
func (w *Writer) ReadFrom(r io.Reader) (int64, error) {
	if w.cfg.workers <= 1 || w.pool == nil {
		return w.serial(r)
	}
	return w.parallel(r)
}

// seed returns the check algorithm's identity value for the configured
// container format: 0 for CRC-32 (gzip, zip), 1 for Adler-32 (zlib).
func (w *Writer) seed() uint32 {
	return w.cfg.format.Seed()
}

func (w *Writer) combine(a, b uint32, lenB int64) uint32 {
	if w.cfg.format == container.Zlib {
		return check.CombineAdler32(a, b, lenB)
	}
	return check.CombineCRC32(a, b, lenB)
}

func (w *Writer) updateCheck(running uint32, p []byte) uint32 {
	if w.cfg.format == container.Zlib {
		return adler32Update(running, p)
	}
	return crc32.Update(running, crc32.IEEETable, p)
}

// adler32Update extends the running Adler-32 value by p, following the
// same sum1/sum2 decomposition as zlib's adler32 update (the hash/adler32
// package only exposes one-shot Checksum, not a resumable Update, so the
// streaming form is spelled out here rather than borrowed).
func adler32Update(adler uint32, p []byte) uint32 {
	const mod = 65521
	a := adler & 0xffff
	b := (adler >> 16) & 0xffff
	for _, c := range p {
		a = (a + uint32(c)) % mod
		b = (b + a) % mod
	}
	return b<<16 | a
}

func (w *Writer) writeHeader() (int, error) {
	switch w.cfg.format {
	case container.Gzip:
		n := container.GzipHeaderLen(w.cfg.meta)
		if err := container.WriteGzipHeader(w.w, levelOrDefault(w.cfg.level), w.cfg.meta); err != nil {
			return 0, err
		}
		return n, nil
	case container.Zlib:
		if err := container.WriteZlibHeader(w.w, levelOrDefault(w.cfg.level)); err != nil {
			return 0, err
		}
		return container.ZlibHeaderLen, nil
	case container.Zip:
		n := container.ZipLocalHeaderLen(w.cfg.meta.Name)
		if err := container.WriteZipLocalHeader(w.w, w.cfg.meta); err != nil {
			return 0, err
		}
		return n, nil
	default:
		return 0, fmt.Errorf("pgo: unsupported container format %v", w.cfg.format)
	}
}

func (w *Writer) writeTrailer(headerLen int, crc, clen, ulen uint32) error {
	switch w.cfg.format {
	case container.Gzip:
		return container.WriteGzipTrailer(w.w, crc, ulen)
	case container.Zlib:
		return container.WriteZlibTrailer(w.w, crc)
	case container.Zip:
		return container.WriteZipTrailer(w.w, w.cfg.meta, headerLen, crc, clen, ulen)
	default:
		return fmt.Errorf("pgo: unsupported container format %v", w.cfg.format)
	}
}

// blockResult is handed from the reader goroutine to parallel once the
// reader stage returns, carrying only its read error (nil on success);
// the actual bytes travel through the pool, not through this channel.
type blockResult struct {
	err error
}

// parallel implements the reader stage (§4.4) and compressor (§4.5) in
// a dedicated goroutine, and the writer stage (§4.6) in the calling
// goroutine, exactly as described in §5: "one reader ..., one writer".
// The two communicate only via the per-slot flags and each unit's
// WaitGroup; readErrCh exists solely to propagate a read/IO failure out
// of the reader goroutine once the writer loop has stopped consuming.
func (w *Writer) parallel(r io.Reader) (int64, error) {
	p := w.pool

	headerLen, err := w.writeHeader()
	if err != nil {
		return 0, err
	}

	readErrCh := make(chan blockResult, 1)
	go func() {
		readErrCh <- blockResult{err: w.readLoop(r, p)}
	}()

	ulen, clen, streamCheck, werr := w.writerLoop(p)

	res := <-readErrCh
	if res.err != nil {
		return int64(ulen), fmt.Errorf("pgo: read: %w", res.err)
	}
	if werr != nil {
		return int64(ulen), werr
	}
	if err := w.writeTrailer(headerLen, streamCheck, uint32(clen), uint32(ulen)); err != nil {
		return int64(ulen), err
	}
	return int64(ulen), nil
}

// readLoop implements spec.md §4.4: it owns the input source and the
// slot cursor, and is the only party that ever transitions a slot
// IDLE→COMP.
func (w *Writer) readLoop(r io.Reader, p *pool.Pool) error {
	n := p.Len()
	k := 0
	usedAny := false

	for {
		slot := p.Slot(k)
		succ := p.Slot(p.Next(k))

		// Step 2: the previous occupant of this slot's compressor must
		// have finished (it last left COMP on a prior cycle).
		slot.Flag.WaitNEQ(flag.COMP)
		// Step 3: the successor slot must not be mid-compress, since it
		// may be reading this slot's tail as a preset dictionary.
		succ.Flag.WaitNEQ(flag.COMP)

		l, err := io.ReadFull(r, slot.Input)
		aborted := false
		switch {
		case err == io.ErrUnexpectedEOF || err == io.EOF:
			err = nil
		case err != nil:
			// A genuine I/O error: still spawn an (empty, final) block
			// on this slot so the writer loop's wait_eq(COMP) below is
			// not left blocked forever, then report the real error once
			// it has been published. spec.md §4.10 treats all I/O
			// failures as fatal; this is how that is made non-blocking
			// for the writer goroutine sharing this pool.
			aborted = true
			l = 0
		}
		slot.Len = l
		last := aborted || l < len(slot.Input)

		// Step 5: wait for the writer to have released this slot.
		slot.Flag.WaitEQ(flag.IDLE)

		var dict []byte
		if !aborted && w.cfg.dict && usedAny && l > 0 {
			dict = dictionaryFor(p, k, n)
		}
		usedAny = true

		slot.Wg.Add(1)
		go w.compress(slot, dict, last)
		// Step 6: immediately publish COMP; the compressor runs
		// concurrently with the rest of this loop.
		slot.Flag.Set(flag.COMP)

		if aborted {
			return err
		}
		if last {
			return nil
		}
		k = p.Next(k)
	}
}

// writerLoop implements spec.md §4.6: it walks the same slot order as
// the reader, joining each worker and draining its output in strict
// block order regardless of completion order.
func (w *Writer) writerLoop(p *pool.Pool) (ulen, clen uint64, streamCheck uint32, err error) {
	streamCheck = w.seed()
	k := 0
	var block uint64
	for {
		slot := p.Slot(k)

		// Step a: the compressor has at least started.
		slot.Flag.WaitEQ(flag.COMP)
		// Step b: join it, i.e. wait for it to actually finish.
		slot.Wg.Wait()
		// Step c: the reader may now overwrite this slot's input buffer.
		slot.Flag.Set(flag.WRITE)

		out := slot.Enc.Bytes()
		if _, werr := w.w.Write(out); werr != nil {
			return ulen, clen, streamCheck, fmt.Errorf("pgo: write: %w", werr)
		}
		streamCheck = w.combine(streamCheck, slot.Check, int64(slot.Len))
		ulen += uint64(slot.Len)
		clen += uint64(len(out))

		// Step f: the reader may now schedule this slot again.
		slot.Flag.Set(flag.IDLE)

		w.trace("block %d: %d -> %d bytes", block, slot.Len, len(out))
		if w.cfg.progressCh != nil {
			w.cfg.progressCh <- Progress{Block: block, Compressed: len(out), Size: slot.Len}
		}

		if slot.Len < w.cfg.blockSize {
			return ulen, clen, streamCheck, nil
		}
		block++
		k = p.Next(k)
	}
}

// dictionaryFor returns the preset dictionary for the block about to be
// compressed in slot k: the last deflate.Window bytes of the previous
// slot's input, exactly as read by the reader for the preceding block.
// readLoop's two WaitNEQ(COMP) calls are what make this read safe: see
// spec.md's Design Notes on the borrow being bounded by the flag
// protocol rather than by ownership.
func dictionaryFor(p *pool.Pool, k, n int) []byte {
	prevIdx := (k - 1 + n) % n
	prev := p.Slot(prevIdx)
	in := prev.Input[:prev.Len]
	if len(in) > deflate.Window {
		in = in[len(in)-deflate.Window:]
	}
	return in
}

// compress implements §4.5: reset the encoder, seed the check and the
// dictionary, feed the block through deflate in bounded chunks, and
// terminate with sync-flush (mid-stream) or finish (the last block).
func (w *Writer) compress(u *pool.Unit, dict []byte, last bool) {
	defer u.Wg.Done()
	u.Enc.Reset(dict)

	data := u.Input[:u.Len]
	u.Check = w.seed()

	const chunk = 1 << 16
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		piece := data[off:end]
		u.Check = w.updateCheck(u.Check, piece)
		if err := u.Enc.Write(piece); err != nil {
			panic(err)
		}
	}
	var err error
	if last {
		err = u.Enc.Finish()
	} else {
		err = u.Enc.SyncFlush()
	}
	if err != nil {
		panic(err)
	}
}
