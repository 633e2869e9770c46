/*
Copyright 2013 The Camlistore Authors.

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

package main

import (
	"fmt"
	"os"
	"time"

	"buildcache.dev/packstore/internal/jsonconfig"
	"buildcache.dev/packstore/internal/osutil"
	"buildcache.dev/packstore/pkg/pack"
)

// config is packstore's on-disk configuration, read from a JSONC file.
type config struct {
	StorageRoot string
	Buckets     int
	MaxPackSize uint64
	ExpiresSec  int
}

func defaultConfig() config {
	return config{
		StorageRoot: osutil.DefaultStorageRoot(),
		Buckets:     64,
		MaxPackSize: 1 << 20,
	}
}

// loadConfig reads packstore's config from path, or from the platform
// default location if path is empty. A missing config file at the
// default location isn't an error: packstore runs with defaultConfig().
func loadConfig(path string) (config, error) {
	if path == "" {
		path = osutil.UserConfigPath()
	}
	resolved, err := osutil.FindConfigFile(path)
	if err != nil {
		if os.IsNotExist(err) && *flagConfig == "" {
			return defaultConfig(), nil
		}
		return config{}, fmt.Errorf("locating config file %q: %w", path, err)
	}

	obj, err := jsonconfig.ReadFile(resolved)
	if err != nil {
		return config{}, err
	}
	cfg := config{
		StorageRoot: obj.OptionalString("storage_root", osutil.DefaultStorageRoot()),
		Buckets:     obj.OptionalInt("buckets", 64),
		MaxPackSize: uint64(obj.OptionalInt("max_pack_size", 1<<20)),
		ExpiresSec:  obj.OptionalInt("expires_seconds", 0),
	}
	if err := obj.Validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) options() pack.Options {
	return pack.Options{
		Buckets:     c.Buckets,
		MaxPackSize: c.MaxPackSize,
		Expires:     time.Duration(c.ExpiresSec) * time.Second,
	}
}

// openStorage loads the config at *flagConfig and opens a Storage over
// its configured root.
func openStorage() (*pack.Storage, config, error) {
	cfg, err := loadConfig(*flagConfig)
	if err != nil {
		return nil, config{}, err
	}
	st, err := pack.NewStorage(cfg.StorageRoot, cfg.options())
	if err != nil {
		return nil, config{}, err
	}
	return st, cfg, nil
}
