// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"sync"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"cloudeng.io/errors"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cosnicolaou/pgo"
	"github.com/cosnicolaou/pgo/internal/container"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/schollz/progressbar/v2"
	"golang.org/x/crypto/ssh/terminal"
)

type commonFlags struct {
	Concurrency int  `subcmd:"concurrency,4,'number of worker goroutines to use'"`
	Verbose     bool `subcmd:"verbose,false,verbose debug/trace information"`
}

type compressFlags struct {
	commonFlags
	Level       int    `subcmd:"level,6,'compression level, 0-9'"`
	BlockSize   int    `subcmd:"block-size,131072,'block size in bytes, minimum 32768'"`
	Format      string `subcmd:"format,gzip,'container format: gzip, zlib or zip'"`
	NoDict      bool   `subcmd:"no-dict,false,'disable the inter-block preset dictionary'"`
	Output      string `subcmd:"output,,'output file or s3 path, omit for stdout'"`
	ProgressBar bool   `subcmd:"progress,true,'display a progress bar'"`
}

type decompressFlags struct {
	commonFlags
	Output string `subcmd:"output,,'output file or s3 path, omit for stdout'"`
}

type listFlags struct{}

var cmdSet *subcmd.CommandSet

func init() {
	defaultConcurrency := map[string]interface{}{
		"concurrency": runtime.GOMAXPROCS(-1),
	}

	compressCmd := subcmd.NewCommand("compress",
		subcmd.MustRegisterFlagStruct(&compressFlags{}, defaultConcurrency, nil),
		compress, subcmd.AtLeastNArguments(0))
	compressCmd.Document(`compress files or stdin to gzip, zlib or zip. Files may be local, on S3 or a URL.`)

	decompressCmd := subcmd.NewCommand("decompress",
		subcmd.MustRegisterFlagStruct(&decompressFlags{}, defaultConcurrency, nil),
		decompress, subcmd.AtLeastNArguments(0))
	decompressCmd.Document(`decompress gzip, zlib, zip or Unix compress (.Z) files or stdin.`)

	listCmd := subcmd.NewCommand("list",
		subcmd.MustRegisterFlagStruct(&listFlags{}, nil, nil),
		list, subcmd.AtLeastNArguments(1))
	listCmd.Document(`list the detected format and stored metadata of one or more files without decompressing their contents.`)

	testCmd := subcmd.NewCommand("test",
		subcmd.MustRegisterFlagStruct(&commonFlags{}, defaultConcurrency, nil),
		test, subcmd.AtLeastNArguments(1))
	testCmd.Document(`verify the integrity of one or more compressed files without writing any output.`)

	cmdSet = subcmd.NewCommandSet(compressCmd, decompressCmd, listCmd, testCmd)
	cmdSet.Document(`compress, decompress, list and verify gzip, zlib, zip and Unix compress (.Z) files. Files may be local, on S3 or a URL.`)

	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

func openFileOrURL(ctx context.Context, name string) (io.Reader, int64, func(context.Context) error, error) {
	if name == "" {
		return os.Stdin, 0, func(context.Context) error { return nil }, nil
	}
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	return f.Reader(ctx), info.Size(), f.Close, nil
}

// removePartialOutput deletes name, the output file of a failed compress
// or decompress operation, mirroring pigz.c's unlink(out) on its fatal
// path. A missing name (stdout) or a file that is already gone is not
// reported as an error.
func removePartialOutput(name string) {
	if name == "" {
		return
	}
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		log.Printf("pgo: remove partial output %s: %v", name, err)
	}
}

func createFile(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	if len(name) == 0 {
		return os.Stdout, func(context.Context) error { return nil }, nil
	}
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), f.Close, nil
}

func parseFormat(s string) (container.Format, error) {
	switch strings.ToLower(s) {
	case "gzip", "gz":
		return container.Gzip, nil
	case "zlib":
		return container.Zlib, nil
	case "zip":
		return container.Zip, nil
	}
	return 0, fmt.Errorf("unrecognized format %q: want gzip, zlib or zip", s)
}

func progressBar(ctx context.Context, wr io.Writer, ch chan pgo.Progress, size int64) {
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetBytes64(size),
		progressbar.OptionSetWriter(wr),
		progressbar.OptionSetPredictTime(true))
	bar.RenderBlank()
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				fmt.Fprintf(wr, "\n")
				return
			}
			bar.Add(p.Compressed)
		case <-ctx.Done():
			return
		}
	}
}

func compress(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*compressFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	format, err := parseFormat(cl.Format)
	if err != nil {
		return err
	}

	inputs := args
	if len(inputs) == 0 {
		inputs = []string{""}
	}

	errs := &errors.M{}
	for _, in := range inputs {
		errs.Append(compressOne(ctx, cl, format, in))
	}
	return errs.Err()
}

func compressOne(ctx context.Context, cl *compressFlags, format container.Format, in string) (err error) {
	rd, size, readerCleanup, err := openFileOrURL(ctx, in)
	if err != nil {
		return err
	}
	defer readerCleanup(ctx)

	wr, writerCleanup, err := createFile(ctx, cl.Output)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			removePartialOutput(cl.Output)
		}
	}()

	opts := []pgo.Option{
		pgo.Level(cl.Level),
		pgo.Workers(cl.Concurrency),
		pgo.BlockSize(cl.BlockSize),
		pgo.Format(format),
		pgo.Dictionary(!cl.NoDict),
		pgo.Verbose(cl.Verbose),
	}
	if len(in) > 0 {
		opts = append(opts, pgo.StoreName(in))
	}

	var (
		progressBarWg sync.WaitGroup
		progressCh    chan pgo.Progress
	)
	if cl.ProgressBar && terminal.IsTerminal(int(os.Stderr.Fd())) {
		progressCh = make(chan pgo.Progress, cl.Concurrency)
		opts = append(opts, pgo.SendUpdates(progressCh))
		progressBarWg.Add(1)
		go func() {
			defer progressBarWg.Done()
			progressBar(ctx, os.Stderr, progressCh, size)
		}()
	}

	w, err := pgo.NewWriter(wr, opts...)
	if err != nil {
		return err
	}
	_, err = w.ReadFrom(rd)

	if progressCh != nil {
		close(progressCh)
		progressBarWg.Wait()
	}

	if cerr := writerCleanup(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		log.Printf("pgo: compress %s: %v", displayName(in), err)
	}
	return err
}

func decompress(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*decompressFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	inputs := args
	if len(inputs) == 0 {
		inputs = []string{""}
	}

	errs := &errors.M{}
	for _, in := range inputs {
		errs.Append(decompressOne(ctx, cl, in))
	}
	return errs.Err()
}

func decompressOne(ctx context.Context, cl *decompressFlags, in string) (err error) {
	rd, _, readerCleanup, err := openFileOrURL(ctx, in)
	if err != nil {
		return err
	}
	defer readerCleanup(ctx)

	wr, writerCleanup, err := createFile(ctx, cl.Output)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			removePartialOutput(cl.Output)
		}
	}()

	dc, err := pgo.NewReader(ctx, rd,
		pgo.DecodeWorkers(cl.Concurrency),
		pgo.DecodeVerbose(cl.Verbose))
	if err != nil {
		return err
	}
	_, err = io.Copy(wr, dc)

	if cerr := writerCleanup(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		log.Printf("pgo: decompress %s: %v", displayName(in), err)
	}
	return err
}

// test verifies each argument's integrity by decompressing it to
// io.Discard, per spec.md's supplemented "test" operation.
func test(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*commonFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	errs := &errors.M{}
	for _, in := range args {
		rd, _, readerCleanup, err := openFileOrURL(ctx, in)
		if err != nil {
			errs.Append(err)
			continue
		}
		dc, err := pgo.NewReader(ctx, rd, pgo.DecodeWorkers(cl.Concurrency))
		if err != nil {
			errs.Append(fmt.Errorf("%s: %w", in, err))
			readerCleanup(ctx)
			continue
		}
		_, err = io.Copy(io.Discard, dc)
		if err != nil {
			errs.Append(fmt.Errorf("%s: %w", in, err))
		} else {
			fmt.Printf("%s: OK\n", in)
		}
		readerCleanup(ctx)
	}
	return errs.Err()
}

func displayName(in string) string {
	if in == "" {
		return "<stdin>"
	}
	return in
}
