// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import "syscall"

// fatalErrnos are inotify resource exhaustion errors: the watch limit
// (fs.inotify.max_user_watches) and the process and system descriptor limits.
var fatalErrnos = []error{
	syscall.ENOSPC,
	syscall.EMFILE,
	syscall.ENFILE,
}
