// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package charset

import (
	"bytes"
	"io"
	"iter"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Logger is the logging surface used by the [Resolver]. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Result is the outcome of a single encoding resolution.
type Result struct {
	// Name is the canonical name of Encoding.
	Name string

	// Encoding is the chosen encoding. It is never nil.
	Encoding encoding.Encoding

	// Confident reports whether the detector trusted its own guess.
	Confident bool
}

// Resolver guesses encodings of raw byte sequences. The zero value is ready to
// use with the default detector, no logging and the system locale as fallback.
// A Resolver holds no mutable state and may be shared between goroutines if
// its Detector may.
type Resolver struct {
	// Detector is the statistical detector. Defaults to [NewDetector].
	Detector Detector

	// Logger receives low confidence warnings. Defaults to discarding.
	Logger Logger

	// Fallback replaces the system encoding in [Resolver.GuessAndDecode].
	Fallback encoding.Encoding

	// hint is the encoding detected over the names of a whole archive
	hint *Result
}

// maxSample is the number of name bytes collected for archive wide detection.
// chardet does not look further.
const maxSample = 8192

var (
	defaultDetector = NewDetector()
	discardLogger   = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	defaultResolver = &Resolver{}
)

func (r *Resolver) detector() Detector {
	if r.Detector == nil {
		return defaultDetector
	}
	return r.Detector
}

func (r *Resolver) logger() Logger {
	if r.Logger == nil {
		return discardLogger
	}
	return r.Logger
}

// GuessEncoding determines the encoding of b.
//
// A resolver returned by [Resolver.WithNames] first tries the encoding detected
// for the whole archive on non-ASCII input. Valid UTF-8 is reported as UTF-8
// without consulting the detector. If the detector is not confident, a warning
// is logged and fallback is used if it decodes b without replacement
// characters. Otherwise the guess is kept when
// it names a known encoding. A fallback that cannot decode b is only used as a
// last resort and never if it is UTF-8, since b is known to be invalid UTF-8.
func (r *Resolver) GuessEncoding(b []byte, fallback encoding.Encoding) Result {
	if r.hint != nil && !isASCII(b) && decodesCleanly(b, r.hint.Encoding) {
		return *r.hint
	}
	if utf8.Valid(b) {
		return Result{Name: Name(unicode.UTF8), Encoding: unicode.UTF8, Confident: true}
	}

	guess, confident := r.detector().Detect(b)
	enc, known := Lookup(guess)
	r.logger().Debug("guessed encoding", "guess", guess, "confident", confident)

	if confident && known {
		return Result{Name: Name(enc), Encoding: enc, Confident: true}
	}

	r.logger().Warn("not confident guessing encoding, fallback", "guess", guess, "fallback", Name(fallback))
	switch {
	case fallback != nil && decodesCleanly(b, fallback):
		return Result{Name: Name(fallback), Encoding: fallback}
	case known:
		return Result{Name: Name(enc), Encoding: enc}
	case fallback != nil && Name(fallback) != Name(unicode.UTF8):
		return Result{Name: Name(fallback), Encoding: fallback}
	default:
		return Result{Name: Name(unicode.UTF8), Encoding: unicode.UTF8}
	}
}

// GuessAndDecode resolves the encoding of b and decodes it. The fallback is
// r.Fallback if set, otherwise [SystemEncoding].
func (r *Resolver) GuessAndDecode(b []byte) string {
	return Decode(b, r.GuessEncoding(b, r.fallback()).Encoding)
}

// WithNames returns a copy of r that detects one encoding over all names that
// are not valid UTF-8 and tries it first for every non-ASCII name. A single
// name is often too short for the detector, and short legacy names can even
// form valid UTF-8 by accident. Iteration stops once enough bytes are sampled.
func (r *Resolver) WithNames(names iter.Seq[[]byte]) *Resolver {
	var sample []byte
	for name := range names {
		if utf8.Valid(name) {
			continue
		}
		if len(sample) > 0 {
			sample = append(sample, '\n')
		}
		sample = append(sample, name...)
		if len(sample) >= maxSample {
			break
		}
	}

	c := *r
	c.hint = nil
	if len(sample) > 0 {
		res := c.GuessEncoding(sample, c.fallback())
		c.logger().Debug("guessed archive encoding", "encoding", res.Name, "confident", res.Confident)
		if res.Name != Name(unicode.UTF8) {
			c.hint = &res
		}
	}
	return &c
}

// fallback returns r.Fallback or the system encoding.
func (r *Resolver) fallback() encoding.Encoding {
	if r.Fallback != nil {
		return r.Fallback
	}
	if enc, ok := SystemEncoding(); ok {
		return enc
	}
	return nil
}

// GuessAndDecode decodes b with a default [Resolver].
func GuessAndDecode(b []byte) string {
	return defaultResolver.GuessAndDecode(b)
}

// Decode converts b from enc to UTF-8. Invalid sequences are replaced by
// U+FFFD; a nil enc treats b as UTF-8.
func Decode(b []byte, enc encoding.Encoding) string {
	if enc == nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return strings.ToValidUTF8(string(out), string(utf8.RuneError))
}

// decodesCleanly reports whether enc decodes b without errors or replacement
// characters.
func decodesCleanly(b []byte, enc encoding.Encoding) bool {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return false
	}
	return utf8.Valid(out) && !bytes.ContainsRune(out, utf8.RuneError)
}

// isASCII reports whether b only contains 7-bit bytes.
func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
