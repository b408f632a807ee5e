// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package charset

import (
	"slices"
	"strings"

	"github.com/saintfish/chardet"
)

// Detector guesses the charset of a complete byte sequence. It returns the
// charset label of its best guess and whether that guess should be trusted
// without a fallback.
type Detector interface {
	Detect(b []byte) (charset string, confident bool)
}

// DetectorFunc adapts an ordinary function to the [Detector] interface.
type DetectorFunc func(b []byte) (string, bool)

// Detect calls f(b).
func (f DetectorFunc) Detect(b []byte) (string, bool) {
	return f(b)
}

// minConfidence is the chardet confidence (0-100) from which a guess is trusted.
const minConfidence = 50

// shortInputPreference orders the multi-byte charsets chardet scores equally
// when the input has too few characters for its frequency tables. Charsets not
// listed rank after these by confidence.
var shortInputPreference = []string{
	"GB-18030",
	"Big5",
	"Shift_JIS",
	"EUC-JP",
	"EUC-KR",
}

// chardetDetector is the default [Detector] backed by chardet's text detector.
type chardetDetector struct {
	td *chardet.Detector
}

// NewDetector returns the default statistical [Detector]. The whole input is
// fed at once and treated as final.
func NewDetector() Detector {
	return &chardetDetector{td: chardet.NewTextDetector()}
}

// Detect implements [Detector]. Only charsets known to [Lookup] that decode b
// without replacement characters are considered. The best of them is
// confident if chardet scores it at least minConfidence. Below that, chardet
// scores short names alike and reports ties in random order, so the choice
// falls back to shortInputPreference.
func (d *chardetDetector) Detect(b []byte) (string, bool) {
	results, err := d.td.DetectAll(b)
	if err != nil || len(results) == 0 {
		return "", false
	}

	candidates := make([]chardet.Result, 0, len(results))
	for _, r := range results {
		if enc, ok := Lookup(r.Charset); ok && decodesCleanly(b, enc) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return results[0].Charset, false
	}

	slices.SortFunc(candidates, byConfidence)
	if best := candidates[0]; best.Confidence >= minConfidence {
		return best.Charset, true
	}

	slices.SortFunc(candidates, func(x, y chardet.Result) int {
		if rx, ry := preferenceRank(x.Charset), preferenceRank(y.Charset); rx != ry {
			return rx - ry
		}
		return byConfidence(x, y)
	})
	return candidates[0].Charset, false
}

// byConfidence orders results by descending confidence, then by charset name.
func byConfidence(x, y chardet.Result) int {
	if x.Confidence != y.Confidence {
		return y.Confidence - x.Confidence
	}
	return strings.Compare(x.Charset, y.Charset)
}

// preferenceRank returns the position of charset in shortInputPreference.
func preferenceRank(charset string) int {
	if i := slices.Index(shortInputPreference, charset); i >= 0 {
		return i
	}
	return len(shortInputPreference)
}
