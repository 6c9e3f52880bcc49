// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the shared CUE decode path for documents the mod
// manager reads: mod manifests (JSON is valid CUE) and the manager config file.
//
// Every document goes through the same flow:
//
//  1. Compile the embedded schema
//  2. Compile the document and unify it with the schema definition
//  3. Validate and decode into a Go struct
//
// # Usage
//
//	//go:embed manifest_schema.cue
//	var manifestSchema []byte
//
//	result, err := cueutil.ParseAndDecode[rawManifest](
//	    manifestSchema,
//	    data,
//	    "#Manifest",
//	    cueutil.WithFilename("manifest.json"),
//	)
//	if err != nil {
//	    return nil, err // error carries the JSON path of the offending field
//	}
package cueutil
