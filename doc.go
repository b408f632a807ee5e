// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package kapsule inspects and extracts the contents of tar.gz and zip archives
// through a single [Archive] abstraction.
//
// An archive is opened by path, either with a format specific constructor
// ([OpenTarGz], [OpenZip]) or with [Open], which selects the backend by magic
// bytes and file extension. [Archive.Entries] lists members as [Entry] values whose
// names are decoded to UTF-8 by the charset package, recovering legacy encodings
// such as GBK or Shift_JIS. [Archive.Extract] writes one member to a [Destination]
// and [Archive.ExtractAll] unpacks the whole tree.
//
// Configuration is done using the [Config], which follows the option pattern and
// is secure by default: path traversal, symlinks in the extraction path and
// resource exhaustion are rejected. Telemetry data is captured for every
// extraction and handed to the configured [TelemetryHook].
//
// Archive handles are not safe for concurrent use. Distinct handles are
// independent and may be used from different goroutines.
package kapsule
