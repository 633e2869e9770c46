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
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Storage is a content-addressed cache of scopes, each holding its own
// independent set of buckets and packs under a shared root directory.
// Mutations staged with Set and Remove are held in memory and only
// flushed to disk on Idle, so a burst of writes to the same key costs one
// pack rebuild instead of one per write.
type Storage struct {
	root string
	opts Options

	mu      sync.Mutex
	scopes  map[string]*PackScope
	sets    map[string]map[string][]byte
	removes map[string]map[string]bool
}

// NewStorage returns a Storage rooted at root. root is created lazily as
// scopes are written; it need not exist yet.
func NewStorage(root string, opts Options) (*Storage, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Storage{
		root:    root,
		opts:    opts,
		scopes:  make(map[string]*PackScope),
		sets:    make(map[string]map[string][]byte),
		removes: make(map[string]map[string]bool),
	}, nil
}

// scopeLocked returns the scope for name, creating and caching it if this
// is the first time it's been touched. Callers must hold s.mu.
func (s *Storage) scopeLocked(name string) (*PackScope, error) {
	if sc, ok := s.scopes[name]; ok {
		return sc, nil
	}
	sc, err := NewScope(filepath.Join(s.root, name), s.opts)
	if err != nil {
		return nil, err
	}
	s.scopes[name] = sc
	return sc, nil
}

// Scope returns the named scope directly, creating and caching it if
// necessary. It's meant for introspection tools (stat, gc) that
// need more than GetAll/Set/Remove/Idle expose; ordinary callers should
// stick to those four methods.
func (s *Storage) Scope(name string) (*PackScope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scopeLocked(name)
}

// ScopeNames lists the scopes that exist on disk under root, by looking
// for subdirectories containing a meta file. It does not include scopes
// that only exist in memory via staged-but-not-yet-idled mutations.
func (s *Storage) ScopeNames() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), metaFileName)); err == nil {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// GetAll returns every key/value pair currently visible in scope: its
// on-disk contents overlaid with any mutations staged since the last
// Idle (read-your-writes, without waiting for a flush).
func (s *Storage) GetAll(ctx context.Context, scope string) ([]KV, error) {
	s.mu.Lock()
	sc, err := s.scopeLocked(scope)
	sets := s.sets[scope]
	removes := s.removes[scope]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scope %s: %w", scope, err)
	}

	live, err := sc.GetContents()
	if err != nil {
		return nil, fmt.Errorf("scope %s: %w", scope, err)
	}

	merged := make(map[string]KV, len(live)+len(sets))
	for _, kv := range live {
		merged[string(kv.Key)] = kv
	}
	for k, v := range sets {
		merged[k] = KV{Key: []byte(k), Value: v}
	}
	for k := range removes {
		delete(merged, k)
	}

	out := make([]KV, 0, len(merged))
	for _, kv := range merged {
		out = append(out, kv)
	}
	return out, nil
}

// Set stages key=value in scope. It takes effect for subsequent GetAll
// calls immediately but isn't written to disk until Idle.
func (s *Storage) Set(scope string, key, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sets[scope] == nil {
		s.sets[scope] = make(map[string][]byte)
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.sets[scope][string(key)] = v
	if s.removes[scope] != nil {
		delete(s.removes[scope], string(key))
	}
}

// Remove stages the deletion of key from scope, with the same
// stage-now-flush-on-idle semantics as Set.
func (s *Storage) Remove(scope string, key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removes[scope] == nil {
		s.removes[scope] = make(map[string]bool)
	}
	s.removes[scope][string(key)] = true
	if s.sets[scope] != nil {
		delete(s.sets[scope], string(key))
	}
}

// Idle flushes every scope with staged mutations to disk, in parallel.
// A scope whose save fails keeps its previous, still-valid on-disk state
// and its staged mutations remain pending for the next Idle; scopes that
// saved successfully are swapped in and their staging cleared regardless
// of whether sibling scopes failed. The returned error, if any, joins one
// error per failed scope.
func (s *Storage) Idle(ctx context.Context) error {
	s.mu.Lock()
	type job struct {
		name    string
		scope   *PackScope
		sets    map[string][]byte
		removes map[string]bool
	}
	seen := make(map[string]bool)
	var jobs []job
	for name := range s.sets {
		seen[name] = true
	}
	for name := range s.removes {
		seen[name] = true
	}
	var scopeErr error
	for name := range seen {
		sc, err := s.scopeLocked(name)
		if err != nil {
			scopeErr = errors.Join(scopeErr, fmt.Errorf("scope %s: %w", name, err))
			continue
		}
		jobs = append(jobs, job{name: name, scope: sc, sets: s.sets[name], removes: s.removes[name]})
	}
	s.mu.Unlock()
	if scopeErr != nil {
		return scopeErr
	}

	var mu sync.Mutex
	var errs []error
	fresh := make(map[string]*PackScope, len(jobs))
	var g errgroup.Group
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("scope %s: %w", j.name, err))
				mu.Unlock()
				return nil
			}
			newMeta, obsolete, err := SaveScope(j.scope, j.sets, j.removes)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("scope %s: %w", j.name, err))
				mu.Unlock()
				return nil
			}
			if err := newMeta.write(j.scope.dir); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("scope %s: writing meta: %w", j.name, err))
				mu.Unlock()
				return nil
			}
			for _, path := range obsolete {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					log.Printf("pack: removing superseded pack %s: %v", path, err)
				}
			}
			next, err := NewScope(j.scope.dir, j.scope.opts)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("scope %s: %w", j.name, err))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			fresh[j.name] = next
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	s.mu.Lock()
	for name, sc := range fresh {
		s.scopes[name] = sc
		delete(s.sets, name)
		delete(s.removes, name)
	}
	s.mu.Unlock()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
