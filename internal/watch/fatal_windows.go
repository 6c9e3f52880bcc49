// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import "syscall"

// fatalErrnos are the Win32 errors after which ReadDirectoryChangesW stops
// delivering events: ERROR_TOO_MANY_OPEN_FILES, ERROR_INVALID_HANDLE (the
// watched directory went away) and ERROR_NOT_ENOUGH_MEMORY.
var fatalErrnos = []error{
	syscall.Errno(4),
	syscall.Errno(6),
	syscall.Errno(8),
}
