// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidSignature is the sentinel error wrapped by InvalidSignatureError.
var ErrInvalidSignature = errors.New("invalid cache signature")

type (
	// Signature identifies cached content by where it came from, not by
	// what it contains: it is the hex SHA-256 of the parts describing the
	// source, typically its URI and the version tag the server reported
	// (ETag or Last-Modified). A server that changes content without
	// changing the tag serves stale hits.
	Signature string

	// InvalidSignatureError is returned when a Signature is not a hex SHA-256.
	InvalidSignatureError struct {
		Value Signature
	}
)

// NewSignature derives a Signature from its parts. Parts are separated by a
// NUL byte, so ("ab", "c") and ("a", "bc") differ.
func NewSignature(parts ...string) Signature {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return Signature(hex.EncodeToString(h.Sum(nil)))
}

// String returns the string representation of the Signature.
func (s Signature) String() string { return string(s) }

// Short returns an abbreviated form for log output.
func (s Signature) Short() string {
	if len(s) > 12 {
		return string(s[:12])
	}
	return string(s)
}

// IsValid returns whether s is 64 lower-case hex characters.
func (s Signature) IsValid() (bool, []error) {
	if len(s) != sha256.Size*2 {
		return false, []error{&InvalidSignatureError{Value: s}}
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false, []error{&InvalidSignatureError{Value: s}}
		}
	}
	return true, nil
}

// Error implements the error interface.
func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("invalid cache signature %q (want 64 hex characters)", e.Value)
}

// Unwrap returns ErrInvalidSignature for errors.Is() compatibility.
func (e *InvalidSignatureError) Unwrap() error { return ErrInvalidSignature }
