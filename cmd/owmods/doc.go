// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the owmods CLI commands.
//
// Every command delegates to an engine.Engine built from the loaded
// configuration and renders its snapshots, plans and reports. Errors the
// engine classifies are explained with the matching issue catalog entry.
package cmd
