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
	"os"
	"testing"
)

func TestScopeStartsEmptyWithNoMeta(t *testing.T) {
	sc, err := NewScope(t.TempDir(), Options{Buckets: 4, MaxPackSize: 1024})
	if err != nil {
		t.Fatal(err)
	}
	kvs, err := sc.GetContents()
	if err != nil {
		t.Fatalf("GetContents: %v", err)
	}
	if len(kvs) != 0 {
		t.Fatalf("GetContents on a fresh scope = %+v, want empty", kvs)
	}
}

func TestScopeValidateDetectsHashMismatch(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	st, err := NewStorage(root, Options{Buckets: 4, MaxPackSize: 1 << 16})
	if err != nil {
		t.Fatal(err)
	}
	st.Set("s", []byte("k"), []byte("v"))
	if err := st.Idle(ctx); err != nil {
		t.Fatal(err)
	}

	scopeDir := root + "/s"
	meta, err := readScopeMeta(scopeDir)
	if err != nil {
		t.Fatal(err)
	}
	var packPath string
	for _, bucket := range meta.Packs {
		if len(bucket) > 0 {
			packPath = scopeDir + "/" + bucket[0].Name
		}
	}
	if packPath == "" {
		t.Fatal("no pack file written")
	}
	// Corrupt the pack file in place without touching its meta entry.
	if err := os.WriteFile(packPath, []byte("1 1\nkX\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sc, err := NewScope(scopeDir, Options{Buckets: 4, MaxPackSize: 1 << 16})
	if err != nil {
		t.Fatal(err)
	}
	if err := sc.Validate(); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("Validate on corrupted scope = %v, want ErrInconsistent", err)
	}
}

func TestScopeOptionsChangeFailsValidate(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	st, err := NewStorage(root, Options{Buckets: 4, MaxPackSize: 1 << 16})
	if err != nil {
		t.Fatal(err)
	}
	st.Set("s", []byte("k"), []byte("v"))
	if err := st.Idle(ctx); err != nil {
		t.Fatal(err)
	}

	sc, err := NewScope(root+"/s", Options{Buckets: 16, MaxPackSize: 1 << 16})
	if err != nil {
		t.Fatal(err)
	}
	if err := sc.Validate(); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("Validate after a bucket-count change = %v, want ErrInconsistent", err)
	}
}
