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
	"testing"
)

func TestPackEntriesGreedyBinPacking(t *testing.T) {
	entries := []KV{
		{Key: []byte("k1"), Value: []byte("12345")}, // size 7
		{Key: []byte("k2"), Value: []byte("12345")}, // size 7
		{Key: []byte("k3"), Value: []byte("12345")}, // size 7
	}
	packs := packEntries(entries, 14) // room for exactly two size-7 entries
	if len(packs) != 2 {
		t.Fatalf("packEntries produced %d packs, want 2: %+v", len(packs), packs)
	}
	if len(packs[0]) != 2 || len(packs[1]) != 1 {
		t.Fatalf("packEntries layout = %v, want [2 1]", []int{len(packs[0]), len(packs[1])})
	}
}

func TestPackEntriesOversizedEntryGetsOwnPack(t *testing.T) {
	entries := []KV{
		{Key: []byte("k"), Value: make([]byte, 1000)},
	}
	packs := packEntries(entries, 10)
	if len(packs) != 1 || len(packs[0]) != 1 {
		t.Fatalf("packEntries(oversized) = %+v, want one pack with the one entry", packs)
	}
}

func TestPackEntriesEmpty(t *testing.T) {
	if packs := packEntries(nil, 100); packs != nil {
		t.Fatalf("packEntries(nil) = %+v, want nil", packs)
	}
}

func TestPlanBucketsOnlyMarksTouchedBucketsDirty(t *testing.T) {
	opts := Options{Buckets: 8, MaxPackSize: 1 << 16}
	live := []KV{
		{Key: []byte("existing-a"), Value: []byte("1")},
		{Key: []byte("existing-b"), Value: []byte("2")},
	}
	sets := map[string][]byte{"existing-a": []byte("1-updated")}

	plans := planBuckets(opts, live, sets, nil)

	touchedBucket := bucketID([]byte("existing-a"), opts.Buckets)
	untouchedBucket := bucketID([]byte("existing-b"), opts.Buckets)

	if !plans[touchedBucket].dirty {
		t.Fatalf("bucket %d (touched) not marked dirty", touchedBucket)
	}
	if touchedBucket != untouchedBucket && plans[untouchedBucket].dirty {
		t.Fatalf("bucket %d (untouched) marked dirty", untouchedBucket)
	}
}

func TestPlanBucketsDeterministicOrdering(t *testing.T) {
	opts := Options{Buckets: 1, MaxPackSize: 1 << 16}
	sets := map[string][]byte{"c": []byte("3"), "a": []byte("1"), "b": []byte("2")}

	p1 := planBuckets(opts, nil, sets, nil)
	p2 := planBuckets(opts, nil, sets, nil)

	if len(p1[0].entries) != 3 || len(p2[0].entries) != 3 {
		t.Fatalf("expected 3 entries in bucket 0, got %d and %d", len(p1[0].entries), len(p2[0].entries))
	}
	for i := range p1[0].entries {
		if string(p1[0].entries[i].Key) != string(p2[0].entries[i].Key) {
			t.Fatalf("planBuckets not deterministic: run1=%q run2=%q", p1[0].entries[i].Key, p2[0].entries[i].Key)
		}
	}
	want := []string{"a", "b", "c"}
	for i, kv := range p1[0].entries {
		if string(kv.Key) != want[i] {
			t.Fatalf("entries[%d] = %q, want sorted order %v", i, kv.Key, want)
		}
	}
}

func TestPlanBucketsRemoveDeletesKey(t *testing.T) {
	opts := Options{Buckets: 1, MaxPackSize: 1 << 16}
	live := []KV{{Key: []byte("x"), Value: []byte("1")}}
	removes := map[string]bool{"x": true}

	plans := planBuckets(opts, live, nil, removes)
	if !plans[0].dirty {
		t.Fatal("bucket not marked dirty after a remove")
	}
	if len(plans[0].entries) != 0 {
		t.Fatalf("entries = %+v, want empty after removing the only key", plans[0].entries)
	}
}
