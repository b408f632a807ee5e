// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/hashicorp/go-kapsule/cmd"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main start the kapsule cli
func main() {
	cmd.Run(version, commit, date)
}
