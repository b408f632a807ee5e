// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build unix

package charset

import (
	"os"

	"golang.org/x/text/encoding"
)

// SystemEncoding returns the charset named by the process locale
// (LC_ALL, LC_CTYPE, then LANG). It reports false if no charset is configured
// or the configured one is unknown.
func SystemEncoding() (encoding.Encoding, bool) {
	return systemEncoding(os.Getenv)
}
