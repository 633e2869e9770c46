/*
Copyright 2011 Google Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package pack implements a persistent, content-addressed key/value cache
// organized as scopes of bucketed, append-friendly packs.
package pack

import "errors"

// Sentinel errors. Callers should use errors.Is against these; the
// concrete error returned from a package function is usually wrapped
// with additional context via fmt.Errorf("...: %w", ...).
var (
	// ErrMissing means a file or scope that was expected to exist is absent.
	ErrMissing = errors.New("pack: missing")

	// ErrMalformedHeader means a pack's key-length or key-blob line
	// could not be parsed.
	ErrMalformedHeader = errors.New("pack: malformed header")

	// ErrMalformedValue means a value contains the line terminator used
	// to delimit values in the pack format.
	ErrMalformedValue = errors.New("pack: value contains newline")

	// ErrTruncated means a pack file is shorter than its header promises.
	ErrTruncated = errors.New("pack: truncated")

	// ErrOptionsChanged means a scope's on-disk meta disagrees with the
	// options the caller is running with (buckets, max pack size, or
	// hash algorithm).
	ErrOptionsChanged = errors.New("pack: options changed")

	// ErrExpired means a scope's on-disk meta is older than its
	// configured freshness window.
	ErrExpired = errors.New("pack: expired")

	// ErrHashMismatch means a pack's computed integrity hash didn't
	// match the hash recorded in its scope's meta.
	ErrHashMismatch = errors.New("pack: hash mismatch")

	// ErrNotReady means an attempt was made to encode a pack whose keys
	// or contents slot is not yet Value.
	ErrNotReady = errors.New("pack: not ready")

	// ErrInconsistent means a scope failed validation as a whole; the
	// caller should treat the scope as empty and rebuild it.
	ErrInconsistent = errors.New("pack: inconsistent scope")
)
