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

package jsonconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileTolerateComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packstore.jsonc")
	const doc = `{
  // where scopes live on disk
  "storage_root": "/var/cache/packstore",
  "buckets": 64,
  "max_pack_size": 1048576, // bytes
}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	obj, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := obj.RequiredString("storage_root"); got != "/var/cache/packstore" {
		t.Fatalf("storage_root = %q", got)
	}
	if got := obj.RequiredInt("buckets"); got != 64 {
		t.Fatalf("buckets = %d, want 64", got)
	}
	if err := obj.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.jsonc"))
	if !os.IsNotExist(err) {
		t.Fatalf("ReadFile error = %v, want os.ErrNotExist", err)
	}
}

func TestValidateRejectsUnknownKeys(t *testing.T) {
	obj := Obj{"buckets": float64(8), "typo_field": true}
	obj.RequiredInt("buckets")
	err := obj.Validate()
	if err == nil || !strings.Contains(err.Error(), "typo_field") {
		t.Fatalf("Validate() = %v, want an error mentioning typo_field", err)
	}
}

func TestValidateMissingRequiredKey(t *testing.T) {
	obj := Obj{}
	obj.RequiredString("name")
	if err := obj.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for missing required key")
	}
}
