// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pgo

// Progress reports the completion of a single block by the writer
// stage, in block order, for the benefit of progress bars and other UI.
type Progress struct {
	Block      uint64
	Compressed int
	Size       int
}

// SendUpdates arranges for the Writer to send a Progress value on ch
// each time it finishes writing a block. The channel is never closed by
// the Writer; the caller owns it.
func SendUpdates(ch chan<- Progress) Option {
	return func(c *config) { c.progressCh = ch }
}
