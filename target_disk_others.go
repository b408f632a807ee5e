// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package kapsule

import "time"

// lchtimes is a no-op, symlink timestamps cannot be set on this platform.
func lchtimes(_ string, _, _ time.Time) error {
	return nil
}
