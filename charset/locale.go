// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package charset

import (
	"strings"

	"golang.org/x/text/encoding"
)

// localeVariables are consulted in POSIX precedence order.
var localeVariables = []string{"LC_ALL", "LC_CTYPE", "LANG"}

// systemEncoding derives the locale charset using getenv. The first non-empty
// variable decides, even if it carries no charset.
func systemEncoding(getenv func(string) string) (encoding.Encoding, bool) {
	for _, key := range localeVariables {
		if v := getenv(key); len(v) > 0 {
			return parseLocale(v)
		}
	}
	return nil, false
}

// parseLocale extracts the charset of a locale name such as "zh_CN.GBK@stroke".
func parseLocale(locale string) (encoding.Encoding, bool) {
	if i := strings.IndexByte(locale, '@'); i >= 0 {
		locale = locale[:i]
	}
	i := strings.LastIndexByte(locale, '.')
	if i < 0 || i == len(locale)-1 {
		return nil, false
	}
	return Lookup(locale[i+1:])
}
