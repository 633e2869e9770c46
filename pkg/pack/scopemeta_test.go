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
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestScopeMetaWriteRead(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Buckets: 4, MaxPackSize: 1 << 20}
	m := newScopeMeta(opts)
	m.Packs[2] = []PackMeta{{Name: "b0002-0000.pack", Hash: "deadbeefcafef00d"}}

	if err := m.write(dir); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := readScopeMeta(dir)
	if err != nil {
		t.Fatalf("readScopeMeta: %v", err)
	}
	if got.Buckets != opts.Buckets || got.MaxPackSize != opts.MaxPackSize {
		t.Fatalf("roundtrip mismatch: got %+v", got)
	}
	if len(got.Packs[2]) != 1 || got.Packs[2][0].Name != "b0002-0000.pack" {
		t.Fatalf("pack entries not preserved: %+v", got.Packs[2])
	}
}

func TestReadScopeMetaMissing(t *testing.T) {
	_, err := readScopeMeta(filepath.Join(t.TempDir(), "nonexistent"))
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("readScopeMeta error = %v, want ErrMissing", err)
	}
}

func TestScopeMetaValidateOptionsChanged(t *testing.T) {
	opts := Options{Buckets: 4, MaxPackSize: 1024}
	m := newScopeMeta(opts)

	if err := m.validate(opts, 0); err != nil {
		t.Fatalf("validate(same opts) = %v, want nil", err)
	}
	if err := m.validate(Options{Buckets: 8, MaxPackSize: 1024}, 0); !errors.Is(err, ErrOptionsChanged) {
		t.Fatalf("validate(different buckets) = %v, want ErrOptionsChanged", err)
	}
	if err := m.validate(Options{Buckets: 4, MaxPackSize: 2048}, 0); !errors.Is(err, ErrOptionsChanged) {
		t.Fatalf("validate(different max pack size) = %v, want ErrOptionsChanged", err)
	}
}

func TestScopeMetaValidateExpired(t *testing.T) {
	opts := Options{Buckets: 4, MaxPackSize: 1024}
	m := newScopeMeta(opts)
	m.SavedAtUnix = time.Now().Add(-2 * time.Hour).Unix()

	if err := m.validate(opts, time.Hour); !errors.Is(err, ErrExpired) {
		t.Fatalf("validate(stale) = %v, want ErrExpired", err)
	}
	if err := m.validate(opts, 0); err != nil {
		t.Fatalf("validate with no expiry configured = %v, want nil", err)
	}
}
