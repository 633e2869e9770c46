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
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options configures a scope: how many buckets it's sharded into and how
// large a single pack file is allowed to grow before a bucket is split
// across more than one.
type Options struct {
	// Buckets is the number of buckets a scope's keys are sharded into.
	// Changing it across runs invalidates every existing scope, since
	// bucket_id(key) depends on it.
	Buckets int

	// MaxPackSize is the greedy bin-packing limit, in bytes of combined
	// key+value size, for a single pack file.
	MaxPackSize uint64

	// Expires is the maximum age of a scope's meta before it's treated
	// as stale and rebuilt from scratch. Zero means never expire.
	Expires time.Duration
}

func (o Options) validate() error {
	if o.Buckets <= 0 {
		return fmt.Errorf("pack: Buckets must be positive, got %d", o.Buckets)
	}
	if o.MaxPackSize == 0 {
		return fmt.Errorf("pack: MaxPackSize must be positive, got %d", o.MaxPackSize)
	}
	return nil
}

// bucket is one shard of a scope: the packs that currently make it up, in
// the order their entries should be considered live (later packs win on
// key collision, matching save_scope's rebuild order).
type bucket struct {
	packs []*Pack
}

// PackScope is one content-addressed scope on disk: a directory holding a
// meta file and, per bucket, zero or more pack files. Everything beyond
// meta is loaded lazily and only as far as the caller needs: ensureBuckets
// stops short of reading values, and a scope that fails overall
// validation is reported as empty rather than partially populated.
type PackScope struct {
	dir     string
	opts    Options
	meta    Slot[*ScopeMeta]
	buckets Slot[[]*bucket]
}

// NewScope returns an unloaded scope rooted at dir.
func NewScope(dir string, opts Options) (*PackScope, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &PackScope{dir: dir, opts: opts}, nil
}

// Dir returns the directory the scope is rooted at.
func (s *PackScope) Dir() string { return s.dir }

// Meta returns the scope's meta, loading it if this is the first call.
func (s *PackScope) Meta() *ScopeMeta {
	return s.ensureMeta()
}

// ensureMeta loads the scope's meta file if it hasn't been loaded yet. A
// missing or unparseable meta file is not an error from ensureMeta's point
// of view: per the meta file's own contract (a corrupt or absent index is
// discarded, never repaired), it simply means the scope starts empty,
// matching fresh-install behavior. ensureMeta does not check the loaded
// meta against s.opts or its freshness window; that's Validate's job, so
// an options/expiry mismatch is reported as a real failure instead of
// being silently masked by falling back to an empty meta.
func (s *PackScope) ensureMeta() *ScopeMeta {
	if s.meta.Ready() || s.meta.Failed() {
		m, _ := s.meta.Get()
		return m
	}
	meta, err := readScopeMeta(s.dir)
	if err != nil {
		meta = newScopeMeta(s.opts)
	}
	s.meta.Set(meta)
	return meta
}

// ensureBuckets loads every bucket's pack list (but not pack contents)
// from meta, in parallel across buckets. A pack whose key-header can't be
// read invalidates the whole scope: a scope's packs are an interdependent
// rebuild unit (save_scope rewrites a bucket as a whole), so a single
// unreadable pack means the bucket's dirty-key classification can't be
// trusted and the caller should fall back to a full rebuild rather than
// limp along with a partial bucket.
func (s *PackScope) ensureBuckets() ([]*bucket, error) {
	if s.buckets.Ready() {
		return s.buckets.Get()
	}
	if s.buckets.Failed() {
		return s.buckets.Get()
	}

	meta := s.ensureMeta()
	buckets := make([]*bucket, len(meta.Packs))

	var g errgroup.Group
	for i, packMetas := range meta.Packs {
		i, packMetas := i, packMetas
		g.Go(func() error {
			b := &bucket{packs: make([]*Pack, len(packMetas))}
			for j, pm := range packMetas {
				p := New(filepath.Join(s.dir, pm.Name))
				keys, err := ReadKeys(p.Path)
				if err != nil {
					return fmt.Errorf("bucket %d pack %s: %w", i, pm.Name, err)
				}
				p.Keys.Set(keys)
				b.packs[j] = p
			}
			buckets[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		err = fmt.Errorf("%w: %v", ErrInconsistent, err)
		s.buckets.SetErr(err)
		return nil, err
	}
	s.buckets.Set(buckets)
	return buckets, nil
}

// ensurePackContents loads the value side of every pack in every bucket,
// again fanned out in parallel. Call after ensureBuckets; it's a separate
// pass so a caller that only needs to enumerate keys (e.g. to decide
// what's dirty before a save) never pays to load values it won't use.
func (s *PackScope) ensurePackContents() error {
	buckets, err := s.ensureBuckets()
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, b := range buckets {
		for _, p := range b.packs {
			p := p
			if p.Contents.Ready() {
				continue
			}
			g.Go(func() error {
				keys, _ := p.Keys.Get()
				contents, err := ReadContents(p.Path, keys)
				if err != nil {
					return fmt.Errorf("%s: %w", p.Path, err)
				}
				p.Contents.Set(contents)
				return nil
			})
		}
	}
	return g.Wait()
}

// Validate checks meta against s.opts (buckets, max pack size, hash
// algorithm, and freshness window), then checks every loaded pack's
// on-disk integrity hash against the hash recorded in meta, in parallel.
// Buckets are loaded as a side effect if they haven't been already.
func (s *PackScope) Validate() error {
	meta := s.ensureMeta()
	if err := meta.validate(s.opts, s.opts.Expires); err != nil {
		return fmt.Errorf("%w: %v", ErrInconsistent, err)
	}

	buckets, err := s.ensureBuckets()
	if err != nil {
		return err
	}

	var g errgroup.Group
	for i, b := range buckets {
		i, b := i, b
		packMetas := meta.Packs[i]
		for j, p := range b.packs {
			p, pm := p, packMetas[j]
			g.Go(func() error {
				keys, err := p.Keys.Get()
				if err != nil {
					return err
				}
				ok, err := Validate(p.Path, keys, pm.Hash)
				if err != nil {
					return fmt.Errorf("%s: %w", p.Path, err)
				}
				if !ok {
					return fmt.Errorf("%s: %w", p.Path, ErrHashMismatch)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrInconsistent, err)
	}
	return nil
}

// GetContents returns every key/value pair currently live in the scope,
// loading pack contents as needed. Later packs within a bucket shadow
// earlier ones on key collision, matching the order save_scope rebuilds
// a bucket in.
func (s *PackScope) GetContents() ([]KV, error) {
	if err := s.ensurePackContents(); err != nil {
		return nil, err
	}
	buckets, err := s.ensureBuckets()
	if err != nil {
		return nil, err
	}

	live := make(map[string]KV)
	for _, b := range buckets {
		for _, p := range b.packs {
			contents, _ := p.Contents.Get()
			for _, kv := range contents {
				live[string(kv.Key)] = kv
			}
		}
	}
	out := make([]KV, 0, len(live))
	for _, kv := range live {
		out = append(out, kv)
	}
	return out, nil
}

// bucketIDFor returns the bucket s assigns key to.
func (s *PackScope) bucketIDFor(key []byte) int {
	return bucketID(key, s.opts.Buckets)
}
