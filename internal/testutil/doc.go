// SPDX-License-Identifier: MPL-2.0

// Package testutil provides fixtures shared by engine and CLI tests: mod
// directories written straight to disk, zipped mod archives and an in-process
// registry server (Registry) that serves both the database document and the
// archives it points to.
//
// Helpers take a testing.TB and fail the test immediately on setup errors.
package testutil
