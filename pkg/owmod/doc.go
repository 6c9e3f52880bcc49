// SPDX-License-Identifier: MPL-2.0

// Package owmod defines the data model shared by every part of the mod manager.
//
// # Identity and Versions
//
//   - [UniqueName]: globally unique mod identity ("Author.ModName")
//   - [Version]: ordered version token; unknown versions sort below all known ones
//
// # Manifests
//
//   - [Manifest]: metadata a mod declares in its manifest.json
//   - [ParseManifest] and [LoadManifest]: schema-checked decoding that tolerates
//     unknown fields
//
// # Database Entries
//
//   - [LocalMod]: an installed mod (or a directory whose manifest failed to parse)
//   - [RemoteMod]: a registry entry available for download
//
// # Errors and Annotations
//
// [ErrorKind] and [WarningKind] name every failure and warning the engine can
// report. [Error] carries a kind plus the mod, path and related mod involved,
// and unwraps to the matching sentinel (e.g. [ErrMissingDependency]) so callers
// can classify failures with errors.Is. [ErrorSet] and [WarningSet] are the
// per-mod annotation sets written by the validation pass.
package owmod
