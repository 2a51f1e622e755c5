// SPDX-License-Identifier: MPL-2.0

// Package descriptor resolves and sanity-checks workflow descriptor files.
//
// A descriptor is either a CWL or a WDL document. Classify decides which one
// from the file extension, content markers, and an optional caller override,
// returning a Resolution rather than failing hard so the caller owns the
// termination policy. Validate performs a shallow structural smoke test on a
// resolved descriptor; it looks for literal section markers only and leaves
// real parsing to the external engine.
//
//	res := descriptor.Classify("hello.wdl", "")
//	if err := res.Err(); err != nil {
//		return err
//	}
//	if err := descriptor.Validate(res.File.Content, res.Format); err != nil {
//		return err // *MissingFieldsError lists every missing marker
//	}
package descriptor
