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

package snapshot

import (
	"context"
	"fmt"
	"os"

	"buildcache.dev/packstore/pkg/pack"
)

// Storage is the subset of pack.Storage a Snapshot needs to persist
// fingerprints. It's declared here, rather than depending on *pack.Storage
// directly, so a Snapshot can be tested against a fake.
type Storage interface {
	GetAll(ctx context.Context, scope string) ([]pack.KV, error)
	Set(scope string, key, value []byte)
	Remove(scope string, key []byte)
}

// Snapshot tracks a set of file fingerprints in one scope of a
// pack.Storage, so that a later run can tell which of those files
// changed without re-reading and re-hashing their contents.
type Snapshot struct {
	scope   string
	storage Storage
	helper  *strategyHelper
}

// New returns a Snapshot that stores its fingerprints under scope.
func New(scope string, storage Storage, opts Options) *Snapshot {
	return &Snapshot{scope: scope, storage: storage, helper: newStrategyHelper(opts)}
}

// Add fingerprints each of paths as they currently stand on disk and
// stages the result for storage. Paths under Options.ImmutablePaths are
// silently skipped: they have no fingerprint worth recording.
func (s *Snapshot) Add(paths []string) error {
	for _, p := range paths {
		st, ok, err := s.helper.compute(p)
		if err != nil {
			return fmt.Errorf("snapshot: fingerprinting %s: %w", p, err)
		}
		if !ok {
			continue
		}
		data, err := st.marshal()
		if err != nil {
			return fmt.Errorf("snapshot: encoding %s: %w", p, err)
		}
		s.storage.Set(s.scope, []byte(p), data)
	}
	return nil
}

// Remove stops tracking paths.
func (s *Snapshot) Remove(paths []string) {
	for _, p := range paths {
		s.storage.Remove(s.scope, []byte(p))
	}
}

// CalcModifiedFiles re-fingerprints every path currently tracked in the
// snapshot and reports which have changed since their last Add (modified)
// and which no longer exist on disk (deleted). Paths whose fingerprint
// hasn't changed are reported in neither slice.
func (s *Snapshot) CalcModifiedFiles(ctx context.Context) (modified, deleted []string, err error) {
	recorded, err := s.storage.GetAll(ctx, s.scope)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: loading tracked paths: %w", err)
	}

	for _, kv := range recorded {
		path := string(kv.Key)
		prev, err := unmarshalStrategy(kv.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot: %s: %w", path, err)
		}

		cur, ok, err := s.helper.compute(path)
		if err != nil {
			if os.IsNotExist(err) {
				deleted = append(deleted, path)
				continue
			}
			return nil, nil, fmt.Errorf("snapshot: fingerprinting %s: %w", path, err)
		}
		if !ok {
			// The path moved under an immutable rule since it was added;
			// treat it as permanently unchanged.
			continue
		}
		if !prev.equal(cur) {
			modified = append(modified, path)
		}
	}
	return modified, deleted, nil
}
