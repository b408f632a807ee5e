// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package kapsule

import (
	"encoding/json"
	"time"
)

// now is replaced in tests
var now = time.Now

// TelemetryData summarizes one call of [Archive.Extract] or [Archive.ExtractAll].
type TelemetryData struct {
	// Entry is the requested name for a single entry extraction, empty otherwise
	Entry string `json:"entry,omitempty"`

	ExtractedDirs int64 `json:"extracted_dirs"`

	// ExtractionDuration is measured from the first entry to the return
	ExtractionDuration time.Duration `json:"extraction_duration"`

	// ExtractionErrors counts failed entries, including skipped ones
	ExtractionErrors int64 `json:"extraction_errors"`

	ExtractedFiles int64 `json:"extracted_files"`

	// ExtractionSize is the number of bytes written to regular files
	ExtractionSize int64 `json:"extraction_size"`

	ExtractedSymlinks int64 `json:"extracted_symlinks"`

	// ExtractedType is "tar.gz" or "zip"
	ExtractedType string `json:"extracted_type"`

	// LastExtractionError is the most recent entry failure
	LastExtractionError error `json:"last_extraction_error"`

	// UnsupportedFiles counts skipped entries of unsupported types
	UnsupportedFiles int64 `json:"unsupported_files"`

	LastUnsupportedFile string `json:"last_unsupported_file"`
}

// String returns the JSON form of m.
func (m TelemetryData) String() string {
	b, _ := json.Marshal(m)
	return string(b)
}

// MarshalJSON implements [encoding/json.Marshaler]. The error is rendered as its message.
func (m TelemetryData) MarshalJSON() ([]byte, error) {
	var lastError string
	if m.LastExtractionError != nil {
		lastError = m.LastExtractionError.Error()
	}

	type Alias TelemetryData
	return json.Marshal(&struct {
		LastExtractionError string `json:"last_extraction_error"`
		*Alias
	}{
		LastExtractionError: lastError,
		Alias:               (*Alias)(&m),
	})
}

// TelemetryHook receives the [TelemetryData] after every extraction, e.g. to
// feed a metrics backend such as the metrics package.
type TelemetryHook func(*TelemetryData)

// captureExtractionDuration stores the time since start in td
func captureExtractionDuration(td *TelemetryData, start time.Time) {
	td.ExtractionDuration = now().Sub(start)
}
