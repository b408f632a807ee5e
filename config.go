// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule

import (
	"io"
	"io/fs"
	"log/slog"

	"github.com/hashicorp/go-kapsule/charset"
	"golang.org/x/text/encoding"
)

// ConfigOption adjusts a [Config] created by [NewConfig].
type ConfigOption func(*Config)

// Config controls how archives are listed and extracted. It is created with
// [NewConfig] and adjusted with the With* options.
//
// The defaults reject path traversal, symlinks inside the extraction path and
// archives that exceed the file count or size limits.
type Config struct {
	// stop or carry on after a failed entry
	continueOnError bool

	// skip devices, fifos, hard links and denied symlinks instead of failing
	continueOnUnsupportedFiles bool

	// create a missing destination directory
	createDestination bool

	// mode of directories the archive does not describe itself
	customCreateDirMode fs.FileMode

	// mode of files whose entry has no permission bits
	customFileMode fs.FileMode

	// treat symlink entries as unsupported
	denySymlinkExtraction bool

	// statistical guesser for entry name encodings
	detector charset.Detector

	// skip restoring modes and modification times
	dropFileAttributes bool

	// used instead of the locale encoding when the detector is unsure
	fallbackEncoding encoding.Encoding

	logger logger

	// upper bound for the bytes written by one extraction, -1 disables
	maxExtractionSize int64

	// upper bound for the entries created by one extraction, -1 disables
	maxFiles int64

	// replace existing files and symlinks
	overwrite bool

	// receives all file system writes
	target Target

	// called once per Extract or ExtractAll, must not be changed afterwards
	telemetryHook TelemetryHook

	// allow writing through symlinks that already exist below the destination
	traverseSymlinks bool
}

const (
	defaultContinueOnError            = false         // abort on the first failed entry
	defaultContinueOnUnsupportedFiles = false         // abort on unsupported entries
	defaultCreateDestination          = false         // destination has to exist
	defaultCustomCreateDirMode        = 0750          // rwxr-x---
	defaultCustomFileMode             = 0640          // rw-r-----
	defaultDenySymlinkExtraction      = false         // symlinks are created
	defaultDropFileAttributes         = false         // modes and times are restored
	defaultMaxFiles                   = 100000        // 100k entries
	defaultMaxExtractionSize          = 1 << (10 * 3) // 1 GiB
	defaultOverwrite                  = false         // existing files are kept
	defaultTraverseSymlinks           = false         // symlinks in the path are rejected
)

var (
	// discards everything
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	// ignores the data
	defaultTelemetryHook = func(*TelemetryData) {}
)

// NewConfig returns the default configuration with opts applied in order.
func NewConfig(opts ...ConfigOption) *Config {
	c := &Config{
		continueOnError:            defaultContinueOnError,
		continueOnUnsupportedFiles: defaultContinueOnUnsupportedFiles,
		createDestination:          defaultCreateDestination,
		customCreateDirMode:        defaultCustomCreateDirMode,
		customFileMode:             defaultCustomFileMode,
		denySymlinkExtraction:      defaultDenySymlinkExtraction,
		detector:                   charset.NewDetector(),
		dropFileAttributes:         defaultDropFileAttributes,
		logger:                     defaultLogger,
		maxExtractionSize:          defaultMaxExtractionSize,
		maxFiles:                   defaultMaxFiles,
		overwrite:                  defaultOverwrite,
		target:                     NewTargetDisk(),
		telemetryHook:              defaultTelemetryHook,
		traverseSymlinks:           defaultTraverseSymlinks,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// orDefault returns cfg, or the default configuration if cfg is nil.
func orDefault(cfg *Config) *Config {
	if cfg == nil {
		return NewConfig()
	}
	return cfg
}

// CheckMaxFiles returns [ErrMaxFilesExceeded] if counter is above the
// configured maximum.
func (c *Config) CheckMaxFiles(counter int64) error {
	if c.MaxFiles() == -1 {
		return nil
	}
	if counter > c.MaxFiles() {
		return ErrMaxFilesExceeded
	}
	return nil
}

// CheckExtractionSize returns [ErrMaxExtractionSizeExceeded] if fileSize is
// above the configured maximum.
func (c *Config) CheckExtractionSize(fileSize int64) error {
	if c.MaxExtractionSize() == -1 {
		return nil
	}
	if fileSize > c.MaxExtractionSize() {
		return ErrMaxExtractionSizeExceeded
	}
	return nil
}

// ContinueOnError reports whether a failed entry is logged and skipped.
func (c *Config) ContinueOnError() bool {
	return c.continueOnError
}

// ContinueOnUnsupportedFiles reports whether entries that cannot be created,
// including denied symlinks, are skipped.
func (c *Config) ContinueOnUnsupportedFiles() bool {
	return c.continueOnUnsupportedFiles
}

// CreateDestination reports whether a missing destination directory is created.
func (c *Config) CreateDestination() bool {
	return c.createDestination
}

// CustomCreateDirMode is the mode of directories without an archive entry.
func (c *Config) CustomCreateDirMode() fs.FileMode {
	return c.customCreateDirMode
}

// CustomFileMode is the mode of files whose entry has no permission bits.
func (c *Config) CustomFileMode() fs.FileMode {
	return c.customFileMode
}

// DenySymlinkExtraction reports whether symlink entries are refused.
func (c *Config) DenySymlinkExtraction() bool {
	return c.denySymlinkExtraction
}

// Detector returns the encoding detector for entry names.
func (c *Config) Detector() charset.Detector {
	return c.detector
}

// DropFileAttributes reports whether modes and modification times are left as created.
func (c *Config) DropFileAttributes() bool {
	return c.dropFileAttributes
}

// FallbackEncoding returns the encoding for entry names the detector is unsure
// about. Nil selects the encoding of the system locale.
func (c *Config) FallbackEncoding() encoding.Encoding {
	return c.fallbackEncoding
}

// Logger returns the configured logger.
func (c *Config) Logger() logger {
	if c.logger == nil {
		return defaultLogger
	}
	return c.logger
}

// MaxExtractionSize is the byte limit of one extraction.
func (c *Config) MaxExtractionSize() int64 {
	return c.maxExtractionSize
}

// MaxFiles is the entry limit of one extraction.
func (c *Config) MaxFiles() int64 {
	return c.maxFiles
}

// Overwrite reports whether existing files are replaced.
func (c *Config) Overwrite() bool {
	return c.overwrite
}

// Target returns the file system that receives extracted entries.
func (c *Config) Target() Target {
	if c.target == nil {
		return NewTargetDisk()
	}
	return c.target
}

// TelemetryHook returns the hook called after every extraction.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return defaultTelemetryHook
	}
	return c.telemetryHook
}

// TraverseSymlinks reports whether existing symlinks below the destination may
// be written through.
func (c *Config) TraverseSymlinks() bool {
	return c.traverseSymlinks
}

// resolver returns a charset resolver wired to the configured detector,
// logger and fallback.
func (c *Config) resolver() *charset.Resolver {
	return &charset.Resolver{
		Detector: c.detector,
		Logger:   c.Logger(),
		Fallback: c.fallbackEncoding,
	}
}

// WithContinueOnError logs and skips failed entries instead of aborting.
// Exceeded limits always abort.
func WithContinueOnError(yes bool) ConfigOption {
	return func(c *Config) {
		c.continueOnError = yes
	}
}

// WithContinueOnUnsupportedFiles skips entries that cannot be created on disk,
// such as devices, fifos, hard links or denied symlinks.
func WithContinueOnUnsupportedFiles(ctd bool) ConfigOption {
	return func(c *Config) {
		c.continueOnUnsupportedFiles = ctd
	}
}

// WithCreateDestination creates the destination directory if it is missing.
func WithCreateDestination(create bool) ConfigOption {
	return func(c *Config) {
		c.createDestination = create
	}
}

// WithCustomCreateDirMode sets the mode of directories that have no entry of
// their own. (respecting umask)
func WithCustomCreateDirMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customCreateDirMode = mode
	}
}

// WithCustomFileMode sets the mode of files whose entry carries no permission
// bits. (respecting umask)
func WithCustomFileMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customFileMode = mode
	}
}

// WithDenySymlinkExtraction refuses symlink entries.
func WithDenySymlinkExtraction(deny bool) ConfigOption {
	return func(c *Config) {
		c.denySymlinkExtraction = deny
	}
}

// WithDetector replaces the statistical detector for entry names. A nil
// detector keeps the current one.
func WithDetector(d charset.Detector) ConfigOption {
	return func(c *Config) {
		if d != nil {
			c.detector = d
		}
	}
}

// WithDropFileAttributes skips restoring modes and modification times.
func WithDropFileAttributes(drop bool) ConfigOption {
	return func(c *Config) {
		c.dropFileAttributes = drop
	}
}

// WithFallbackEncoding sets the encoding for entry names the detector is
// unsure about, instead of the system locale.
func WithFallbackEncoding(enc encoding.Encoding) ConfigOption {
	return func(c *Config) {
		c.fallbackEncoding = enc
	}
}

// WithInsecureTraverseSymlinks allows writing through symlinks that already
// exist below the destination.
func WithInsecureTraverseSymlinks(traverse bool) ConfigOption {
	return func(c *Config) {
		c.traverseSymlinks = traverse
	}
}

// WithLogger sets the logger, e.g. a *slog.Logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithMaxExtractionSize limits the bytes written by one extraction. (-1 to disable check)
func WithMaxExtractionSize(maxExtractionSize int64) ConfigOption {
	return func(c *Config) {
		c.maxExtractionSize = maxExtractionSize
	}
}

// WithMaxFiles limits the files, directories and symlinks created by one
// extraction. (-1 to disable check)
func WithMaxFiles(maxFiles int64) ConfigOption {
	return func(c *Config) {
		c.maxFiles = maxFiles
	}
}

// WithOverwrite replaces existing files in the destination.
func WithOverwrite(enable bool) ConfigOption {
	return func(c *Config) {
		c.overwrite = enable
	}
}

// WithTarget replaces the file system extracted entries are written to. A nil
// target keeps the current one.
func WithTarget(t Target) ConfigOption {
	return func(c *Config) {
		if t != nil {
			c.target = t
		}
	}
}

// WithTelemetryHook sets the hook called with the [TelemetryData] of every extraction.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}
