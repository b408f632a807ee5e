// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package charset

import "golang.org/x/text/encoding"

// SystemEncoding always reports false on this platform, the locale does not
// name a charset in a portable way.
func SystemEncoding() (encoding.Encoding, bool) {
	return nil, false
}
