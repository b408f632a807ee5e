// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package charset resolves the text encoding of raw archive entry names.
//
// Archive formats such as zip and tar store member names as raw bytes without an
// encoding tag. Names written on non-UTF-8 locales therefore arrive in legacy
// regional encodings (GBK, Shift_JIS, windows-125x, ...). The [Resolver] runs a
// statistical [Detector] over the bytes and falls back to an explicit or
// locale-derived encoding when the detector is not confident. Decoding never
// fails: invalid sequences are replaced with U+FFFD.
package charset
