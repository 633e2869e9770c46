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

// Package osutil provides operating system-specific path information for
// the packstore CLI: where its cache, config, and default storage roots
// live on each platform.
package osutil

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// HomeDir returns the path to the user's home directory.
// It returns the empty string if the value isn't known.
func HomeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}

// Username returns the current user's username, as
// reported by the relevant environment variable.
func Username() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("USERNAME")
	}
	return os.Getenv("USER")
}

var cacheDirOnce sync.Once

// CacheDir returns packstore's cache directory, creating it if needed.
// Overridden by PACKSTORE_CACHE_DIR.
func CacheDir() string {
	cacheDirOnce.Do(makeCacheDir)
	return cacheDir()
}

func cacheDir() string {
	if d := os.Getenv("PACKSTORE_CACHE_DIR"); d != "" {
		return d
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(HomeDir(), "Library", "Caches", "packstore")
	case "windows":
		// Per http://technet.microsoft.com/en-us/library/cc749104(v=ws.10).aspx
		// these should both exist. But that page overwhelms me. Just try them
		// both. This seems to work.
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return filepath.Join(v, "packstore")
			}
		}
		panic("No Windows TEMP or TMP environment variables found; please file a bug report.")
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "packstore")
	}
	return filepath.Join(HomeDir(), ".cache", "packstore")
}

func makeCacheDir() {
	err := os.MkdirAll(cacheDir(), 0700)
	if err != nil {
		log.Fatalf("Could not create cacheDir %v: %v", cacheDir(), err)
	}
}

// ConfigDir returns the directory packstore reads its config file from.
// Overridden by PACKSTORE_CONFIG_DIR.
func ConfigDir() string {
	if p := os.Getenv("PACKSTORE_CONFIG_DIR"); p != "" {
		return p
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "packstore")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "packstore")
	}
	return filepath.Join(HomeDir(), ".config", "packstore")
}

// UserConfigPath returns the default path to packstore's config file.
func UserConfigPath() string {
	return filepath.Join(ConfigDir(), "packstore.jsonc")
}

// DefaultStorageRoot returns the default root directory packstore writes
// its scopes under, when none is set explicitly in the config file.
func DefaultStorageRoot() string {
	return filepath.Join(CacheDir(), "storage")
}

// FindConfigFile resolves a config file name or relative path to the
// path of an existing file, searching in order:
//  1. As given, relative to the working directory (or absolute); a hit
//     here is returned unchanged.
//  2. Under ConfigDir().
//  3. Under each directory in PACKSTORE_CONFIG_PATH (OS path-list form).
//
// It returns os.ErrNotExist if configFile isn't found anywhere.
func FindConfigFile(configFile string) (absPath string, err error) {
	if _, err = os.Stat(configFile); err == nil {
		return configFile, nil
	}
	if filepath.IsAbs(configFile) {
		return "", err
	}

	configDir := ConfigDir()
	if _, err = os.Stat(filepath.Join(configDir, configFile)); err == nil {
		return filepath.Join(configDir, configFile), nil
	}

	p := os.Getenv("PACKSTORE_CONFIG_PATH")
	for _, d := range strings.Split(p, string(filepath.ListSeparator)) {
		if d == "" {
			continue
		}
		if _, err = os.Stat(filepath.Join(d, configFile)); err == nil {
			return filepath.Join(d, configFile), nil
		}
	}

	return "", os.ErrNotExist
}
