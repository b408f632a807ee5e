// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package charset

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// labelAliases maps charset spellings reported by detectors or locales that are
// not WHATWG labels to a label htmlindex knows.
var labelAliases = map[string]string{
	"gb-18030":  "gb18030",
	"gb2312":    "gbk",
	"eucjp":     "euc-jp",
	"euckr":     "euc-kr",
	"sjis":      "shift_jis",
	"big5hkscs": "big5-hkscs",
	"utf8":      "utf-8",
}

// Lookup returns the encoding registered for label. Labels are matched case
// insensitive. Encodings that would decode every input to a single replacement
// character (e.g. iso-2022-kr) are reported as unknown.
func Lookup(label string) (encoding.Encoding, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	if len(l) == 0 {
		return nil, false
	}
	if alias, ok := labelAliases[l]; ok {
		l = alias
	}

	enc, err := htmlindex.Get(l)
	if err != nil || enc == nil || enc == encoding.Replacement {
		return nil, false
	}
	return enc, true
}

// Name returns the canonical name of enc, or an empty string if enc is nil.
func Name(enc encoding.Encoding) string {
	if enc == nil {
		return ""
	}
	if enc == unicode.UTF8 {
		return "utf-8"
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return "unknown"
	}
	return name
}
