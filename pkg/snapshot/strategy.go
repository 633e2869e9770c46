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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"buildcache.dev/packstore/internal/lru"
)

type strategyKind string

const (
	kindCompileTime strategyKind = "compile_time"
	kindLibVersion  strategyKind = "lib_version"
)

// strategy is a file's fingerprint: either the Unix seconds its compiled
// output was last modified, or the version string of the package that
// owns it. Exactly one field is meaningful, selected by Kind; the other
// is the zero value. A file is fingerprinted by exactly one of the two,
// never both, which is what the redesign here is careful about: the
// straightforward port of this would recompute and overwrite the wrong
// half on every Add.
type strategy struct {
	Kind        strategyKind `json:"kind"`
	CompileTime int64        `json:"compile_time,omitempty"`
	LibVersion  string       `json:"lib_version,omitempty"`
}

func (s strategy) equal(o strategy) bool {
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case kindCompileTime:
		return s.CompileTime == o.CompileTime
	case kindLibVersion:
		return s.LibVersion == o.LibVersion
	default:
		return false
	}
}

func (s strategy) marshal() ([]byte, error) {
	return json.Marshal(s)
}

func unmarshalStrategy(data []byte) (strategy, error) {
	var s strategy
	if err := json.Unmarshal(data, &s); err != nil {
		return strategy{}, fmt.Errorf("snapshot: decoding strategy: %w", err)
	}
	return s, nil
}

// strategyHelper computes the current strategy for a path according to
// Options, memoizing the package.json walk-up lookup that managed paths
// need so that fingerprinting a thousand files under the same dependency
// only stats its package.json once.
type strategyHelper struct {
	opts       Options
	versionLRU *lru.Cache
}

func newStrategyHelper(opts Options) *strategyHelper {
	return &strategyHelper{opts: opts, versionLRU: lru.New(256)}
}

// compute returns the strategy for path, and ok=false if path is
// immutable (it has no meaningful fingerprint and should never be
// reported modified).
func (h *strategyHelper) compute(path string) (s strategy, ok bool, err error) {
	switch h.opts.classify(path) {
	case classImmutable:
		return strategy{}, false, nil
	case classManaged:
		// Stat the file itself first: libVersion only resolves the owning
		// package's version by walking parent directories, and a deleted
		// file whose package.json still exists would otherwise resolve a
		// version and never be reported deleted.
		if _, err := os.Stat(path); err != nil {
			return strategy{}, false, err
		}
		v, err := h.libVersion(path)
		if err != nil {
			return strategy{}, false, err
		}
		return strategy{Kind: kindLibVersion, LibVersion: v}, true, nil
	default:
		fi, err := os.Stat(path)
		if err != nil {
			return strategy{}, false, err
		}
		return strategy{Kind: kindCompileTime, CompileTime: fi.ModTime().Unix()}, true, nil
	}
}

// libVersion returns the version of the package that owns path, found by
// walking up from path's directory to the nearest package.json.
func (h *strategyHelper) libVersion(path string) (string, error) {
	dir := filepath.Dir(path)
	if v, ok := h.versionLRU.Get(dir); ok {
		return v.(string), nil
	}

	v, pkgDir, err := findPackageVersion(dir)
	if err != nil {
		return "", err
	}
	// Cache under every directory walked to reach pkgDir, not just dir,
	// so a deep import from the same package is a single stat next time.
	for d := dir; ; d = filepath.Dir(d) {
		h.versionLRU.Add(d, v)
		if d == pkgDir || d == filepath.Dir(d) {
			break
		}
	}
	return v, nil
}

// findPackageVersion walks up from dir looking for the nearest
// package.json and returns its "version" field.
func findPackageVersion(dir string) (version, pkgDir string, err error) {
	for {
		data, err := os.ReadFile(filepath.Join(dir, "package.json"))
		if err == nil {
			var pkg struct {
				Version string `json:"version"`
			}
			if jsonErr := json.Unmarshal(data, &pkg); jsonErr != nil {
				return "", "", fmt.Errorf("snapshot: parsing %s: %w", filepath.Join(dir, "package.json"), jsonErr)
			}
			return pkg.Version, dir, nil
		}
		if !os.IsNotExist(err) {
			return "", "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", fmt.Errorf("snapshot: no package.json found above %s", dir)
		}
		dir = parent
	}
}
