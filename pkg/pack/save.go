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
	"os"
	"path/filepath"
	"sort"
	"time"
)

// bucketPlan is the pure, in-memory result of diffing one bucket's live
// contents against a set of edits: the KV pairs that should end up on
// disk for that bucket, or nil if the bucket is untouched and its
// existing packs should be kept as-is. Computing this holds no I/O and no
// randomness, so the same scope plus the same edits always produces the
// same plan; that determinism is what makes bucket rebuilds safely
// comparable and testable without touching disk.
type bucketPlan struct {
	dirty   bool
	entries []KV
}

// planBuckets classifies every bucket as dirty or untouched and, for
// dirty buckets, computes the full post-edit set of live entries. live is
// the scope's current contents, sets maps a key to its new value and
// removes holds the keys to delete, all already available without further I/O
// because the caller loaded them via PackScope.GetContents /
// ensurePackContents before calling in.
func planBuckets(opts Options, live []KV, sets map[string][]byte, removes map[string]bool) []bucketPlan {
	byBucket := make(map[int]map[string][]byte, opts.Buckets)
	touched := make(map[int]bool, opts.Buckets)

	for _, kv := range live {
		b := bucketID(kv.Key, opts.Buckets)
		if byBucket[b] == nil {
			byBucket[b] = make(map[string][]byte)
		}
		byBucket[b][string(kv.Key)] = kv.Value
	}

	for k, v := range sets {
		b := bucketID([]byte(k), opts.Buckets)
		if byBucket[b] == nil {
			byBucket[b] = make(map[string][]byte)
		}
		byBucket[b][k] = v
		touched[b] = true
	}
	for k := range removes {
		b := bucketID([]byte(k), opts.Buckets)
		if byBucket[b] == nil {
			byBucket[b] = make(map[string][]byte)
		}
		delete(byBucket[b], k)
		touched[b] = true
	}

	plans := make([]bucketPlan, opts.Buckets)
	for b := 0; b < opts.Buckets; b++ {
		if !touched[b] {
			continue
		}
		kvs := byBucket[b]
		keys := make([]string, 0, len(kvs))
		for k := range kvs {
			keys = append(keys, k)
		}
		// Sort keys so that greedy bin-packing below is a deterministic
		// function of the bucket's contents, not of map iteration order.
		sort.Strings(keys)
		entries := make([]KV, len(keys))
		for i, k := range keys {
			entries[i] = KV{Key: []byte(k), Value: kvs[k]}
		}
		plans[b] = bucketPlan{dirty: true, entries: entries}
	}
	return plans
}

// packEntries performs the greedy bin-packing of a dirty bucket's sorted
// entries into one or more packs, each kept under opts.MaxPackSize bytes
// of combined key+value size. A single entry larger than MaxPackSize
// still gets its own pack rather than being dropped or split.
func packEntries(entries []KV, maxSize uint64) [][]KV {
	if len(entries) == 0 {
		return nil
	}
	var packs [][]KV
	var cur []KV
	var curSize uint64
	for _, kv := range entries {
		size := uint64(len(kv.Key) + len(kv.Value))
		if len(cur) > 0 && curSize+size > maxSize {
			packs = append(packs, cur)
			cur = nil
			curSize = 0
		}
		cur = append(cur, kv)
		curSize += size
	}
	if len(cur) > 0 {
		packs = append(packs, cur)
	}
	return packs
}

// SaveScope rebuilds a scope's on-disk state to reflect sets and removes
// applied on top of its current contents, writing only the buckets that
// changed. It's the copy-on-write half of a save: untouched buckets keep
// their existing pack files, byte for byte, so a save whose edits land in
// a handful of buckets costs I/O proportional to those buckets alone.
//
// On success it returns the new ScopeMeta; the caller (Storage.idle) is
// responsible for persisting it and removing the pack files it
// superseded, so that a crash between writing packs and writing meta
// leaves the previous, still-valid scope in place.
func SaveScope(scope *PackScope, sets map[string][]byte, removes map[string]bool) (*ScopeMeta, []string, error) {
	meta := scope.ensureMeta()
	if err := scope.ensurePackContents(); err != nil {
		return nil, nil, fmt.Errorf("loading current scope contents: %w", err)
	}
	live, err := scope.GetContents()
	if err != nil {
		return nil, nil, fmt.Errorf("loading current scope contents: %w", err)
	}

	plans := planBuckets(scope.opts, live, sets, removes)

	newMeta := newScopeMeta(scope.opts)
	var obsolete []string

	if err := os.MkdirAll(scope.dir, 0o755); err != nil {
		return nil, nil, err
	}
	// Every pack written by this save carries a per-save stamp in its name,
	// so it never overwrites a pack the current meta still references and
	// never shares a name with the obsolete packs the caller removes.
	stamp := time.Now().UnixNano()

	for b, plan := range plans {
		if !plan.dirty {
			if b < len(meta.Packs) {
				newMeta.Packs[b] = meta.Packs[b]
			}
			continue
		}

		if b < len(meta.Packs) {
			for _, pm := range meta.Packs[b] {
				obsolete = append(obsolete, filepath.Join(scope.dir, pm.Name))
			}
		}

		chunks := packEntries(plan.entries, scope.opts.MaxPackSize)
		packMetas := make([]PackMeta, 0, len(chunks))
		for i, chunk := range chunks {
			name := fmt.Sprintf("b%04d-%x-%04d.pack", b, stamp, i)
			p := New(filepath.Join(scope.dir, name))
			keys := make([][]byte, len(chunk))
			for j, kv := range chunk {
				keys[j] = kv.Key
			}
			p.Keys.Set(keys)
			p.Contents.Set(chunk)
			if err := p.Write(); err != nil {
				return nil, nil, fmt.Errorf("bucket %d: %w", b, err)
			}
			fi, err := os.Stat(p.Path)
			if err != nil {
				return nil, nil, fmt.Errorf("bucket %d: %w", b, err)
			}
			hash := hashPack(keys, fi.Size(), fi.ModTime().UnixNano())
			packMetas = append(packMetas, PackMeta{Name: name, Hash: hash})
		}
		newMeta.Packs[b] = packMetas
	}

	return newMeta, obsolete, nil
}
