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
	"os"
	"path/filepath"
	"testing"
)

func TestStrategyHelperCompileTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := newStrategyHelper(Options{})
	s, ok, err := h.compute(path)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !ok {
		t.Fatal("compute returned ok=false for an unmanaged path")
	}
	if s.Kind != kindCompileTime {
		t.Fatalf("Kind = %v, want compile_time", s.Kind)
	}
	if s.CompileTime == 0 {
		t.Fatal("CompileTime not populated")
	}
}

func TestStrategyHelperImmutableSkipped(t *testing.T) {
	h := newStrategyHelper(Options{ImmutablePaths: []PathMatcher{{Prefix: "/usr/"}}})
	_, ok, err := h.compute("/usr/lib/libc.so")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if ok {
		t.Fatal("compute returned ok=true for an immutable path")
	}
}

func TestStrategyHelperLibVersion(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "node_modules", "leftpad")
	if err := os.MkdirAll(filepath.Join(pkgDir, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "package.json"), []byte(`{"name":"leftpad","version":"3.2.1"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(pkgDir, "lib", "index.js")
	if err := os.WriteFile(file, []byte("module.exports = {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := newStrategyHelper(Options{ManagedPaths: []PathMatcher{{Prefix: filepath.Join(root, "node_modules")}}})
	s, ok, err := h.compute(file)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !ok {
		t.Fatal("compute returned ok=false for a managed path")
	}
	if s.Kind != kindLibVersion || s.LibVersion != "3.2.1" {
		t.Fatalf("strategy = %+v, want lib_version 3.2.1", s)
	}
}

func TestStrategyHelperManagedPathDeleted(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "node_modules", "leftpad")
	if err := os.MkdirAll(filepath.Join(pkgDir, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "package.json"), []byte(`{"name":"leftpad","version":"3.2.1"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	// The owning package.json still exists, but the file itself is gone.
	file := filepath.Join(pkgDir, "lib", "index.js")

	h := newStrategyHelper(Options{ManagedPaths: []PathMatcher{{Prefix: filepath.Join(root, "node_modules")}}})
	_, _, err := h.compute(file)
	if !os.IsNotExist(err) {
		t.Fatalf("compute on a deleted managed file = %v, want a not-exist error", err)
	}
}

func TestStrategyEqual(t *testing.T) {
	a := strategy{Kind: kindCompileTime, CompileTime: 100}
	b := strategy{Kind: kindCompileTime, CompileTime: 100}
	c := strategy{Kind: kindCompileTime, CompileTime: 200}
	if !a.equal(b) {
		t.Error("identical compile-time strategies compared unequal")
	}
	if a.equal(c) {
		t.Error("different compile-time strategies compared equal")
	}

	v1 := strategy{Kind: kindLibVersion, LibVersion: "1.0.0"}
	v2 := strategy{Kind: kindLibVersion, LibVersion: "1.0.0"}
	if !v1.equal(v2) {
		t.Error("identical lib-version strategies compared unequal")
	}
	if a.equal(v1) {
		t.Error("strategies of different kinds compared equal")
	}
}

func TestStrategyMarshalRoundTrip(t *testing.T) {
	s := strategy{Kind: kindLibVersion, LibVersion: "4.5.6"}
	data, err := s.marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := unmarshalStrategy(data)
	if err != nil {
		t.Fatal(err)
	}
	if !got.equal(s) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, s)
	}
	// A lib-version strategy must not retain a stray compile-time value,
	// which is the exact bug this format is designed to avoid.
	if got.CompileTime != 0 {
		t.Fatalf("lib_version strategy carries a nonzero CompileTime: %d", got.CompileTime)
	}
}

func TestFindPackageVersionWalksUp(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a", "package.json"), []byte(`{"version":"9.9.9"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	v, pkgDir, err := findPackageVersion(deep)
	if err != nil {
		t.Fatal(err)
	}
	if v != "9.9.9" {
		t.Fatalf("version = %q, want 9.9.9", v)
	}
	if pkgDir != filepath.Join(root, "a") {
		t.Fatalf("pkgDir = %q, want %q", pkgDir, filepath.Join(root, "a"))
	}
}

func TestFindPackageVersionNotFound(t *testing.T) {
	root := t.TempDir()
	_, _, err := findPackageVersion(root)
	if err == nil {
		t.Fatal("expected an error when no package.json exists above dir")
	}
}
