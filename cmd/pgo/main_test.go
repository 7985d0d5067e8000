// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"testing"

	"github.com/cosnicolaou/pgo/internal/container"
)

func TestParseFormat(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want container.Format
	}{
		{"gzip", container.Gzip},
		{"gz", container.Gzip},
		{"GZIP", container.Gzip},
		{"zlib", container.Zlib},
		{"zip", container.Zip},
	} {
		got, err := parseFormat(tc.in)
		if err != nil {
			t.Fatalf("parseFormat(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("parseFormat(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseFormatRejectsUnknown(t *testing.T) {
	if _, err := parseFormat("bzip2"); err == nil {
		t.Fatal("expected an error for an unsupported format name")
	}
}

func TestDisplayName(t *testing.T) {
	if got := displayName(""); got != "<stdin>" {
		t.Errorf("displayName(\"\") = %q, want <stdin>", got)
	}
	if got := displayName("a.gz"); got != "a.gz" {
		t.Errorf("displayName(\"a.gz\") = %q, want a.gz", got)
	}
}
