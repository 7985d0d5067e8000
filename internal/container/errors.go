// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package container

import "errors"

// ErrFormat is wrapped by any error describing a malformed or
// unrecognized header, trailer, or magic number, per spec.md §7's
// Format error kind.
var ErrFormat = errors.New("unrecognized or malformed container")

// ErrChecksum is returned when a trailer's stored check value does not
// match the value computed while decompressing.
var ErrChecksum = errors.New("checksum mismatch")

// ErrLength is returned when a trailer's stored length does not match
// the number of bytes actually decompressed.
var ErrLength = errors.New("length mismatch")
