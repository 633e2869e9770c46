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

package pack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
)

// hashAlgo identifies the integrity hash this implementation writes into
// freshly saved scope meta. A meta whose HashAlgo field disagrees can't be
// trusted without recomputing every pack from scratch, so it is treated
// the same as an Options mismatch.
const hashAlgo = "xxh64"

// PackMeta is one pack file's entry in its bucket's meta: the file's name
// relative to the scope directory, and the integrity hash recorded for it
// the last time the scope was saved.
type PackMeta struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// ScopeMeta is the small, eagerly-loaded index describing a scope: the
// options it was built with and, per bucket, the ordered list of packs
// that make it up. Pack contents are loaded lazily and separately; meta
// alone is enough to tell whether a scope's on-disk layout still matches
// the caller's options and hasn't expired.
type ScopeMeta struct {
	Buckets     int          `json:"buckets"`
	MaxPackSize uint64       `json:"max_pack_size"`
	HashAlgo    string       `json:"hash_algo"`
	SavedAtUnix int64        `json:"saved_at_unix"`
	Packs       [][]PackMeta `json:"packs"`
}

// metaFileName is the fixed name of a scope's meta file within its
// directory.
const metaFileName = "scope-meta.json"

func metaPath(scopeDir string) string {
	return filepath.Join(scopeDir, metaFileName)
}

// newScopeMeta returns an empty ScopeMeta stamped with opts and the
// current time, with one empty bucket slice per configured bucket.
func newScopeMeta(opts Options) *ScopeMeta {
	packs := make([][]PackMeta, opts.Buckets)
	for i := range packs {
		packs[i] = nil
	}
	return &ScopeMeta{
		Buckets:     opts.Buckets,
		MaxPackSize: opts.MaxPackSize,
		HashAlgo:    hashAlgo,
		SavedAtUnix: time.Now().Unix(),
		Packs:       packs,
	}
}

// readScopeMeta loads and decodes the meta file for scopeDir. A missing
// file is reported as ErrMissing so callers can distinguish "no scope
// yet" from a corrupt one.
func readScopeMeta(scopeDir string) (*ScopeMeta, error) {
	data, err := os.ReadFile(metaPath(scopeDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, metaPath(scopeDir))
		}
		return nil, err
	}
	var meta ScopeMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", metaPath(scopeDir), ErrMalformedHeader, err)
	}
	return &meta, nil
}

// write atomically replaces scopeDir's meta file with m's contents.
func (m *ScopeMeta) write(scopeDir string) error {
	if err := os.MkdirAll(scopeDir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return atomic.WriteFile(metaPath(scopeDir), bytes.NewReader(data))
}

// validate checks m against the options the caller is running with and
// an expiry window. A scope whose buckets, max pack size, or hash
// algorithm disagree with opts cannot be reused incrementally: the
// bucket assignment and pack boundaries it records no longer mean
// anything under the new options.
func (m *ScopeMeta) validate(opts Options, expires time.Duration) error {
	if m.Buckets != opts.Buckets || m.MaxPackSize != opts.MaxPackSize || m.HashAlgo != hashAlgo {
		return ErrOptionsChanged
	}
	if expires > 0 {
		age := time.Since(time.Unix(m.SavedAtUnix, 0))
		if age > expires {
			return ErrExpired
		}
	}
	return nil
}
