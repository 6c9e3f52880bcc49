// SPDX-License-Identifier: MPL-2.0

package config

// Directory overrides for tests. xdg resolves its base directories once at init,
// so changing XDG_* variables inside a test has no effect.
var (
	configDirOverride string
	stateDirOverride  string
)

// Reset clears test overrides. Call from test cleanup to restore defaults.
func Reset() {
	configDirOverride = ""
	stateDirOverride = ""
}

// SetConfigDirOverride sets a custom config directory path.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// SetStateDirOverride sets a custom state directory path.
func SetStateDirOverride(dir string) {
	stateDirOverride = dir
}
