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
	"sort"

	"github.com/spf13/pflag"

	"buildcache.dev/packstore/internal/cmdmain"
)

func init() {
	cmdmain.RegisterCommand("stat", func(flags *pflag.FlagSet) cmdmain.CommandRunner {
		return new(statCmd)
	})
}

type statCmd struct{}

func (c *statCmd) Describe() string {
	return "print a summary of every scope in the storage root"
}

func (c *statCmd) Usage() {
	fmt.Fprintf(cmdmain.Stderr, "Usage: packstore stat [scope...]\n")
}

func (c *statCmd) RunCommand(args []string) error {
	st, cfg, err := openStorage()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmdmain.Stdout, "storage root: %s\n", cfg.StorageRoot)
	fmt.Fprintf(cmdmain.Stdout, "buckets: %d  max pack size: %d bytes\n\n", cfg.Buckets, cfg.MaxPackSize)

	names := args
	if len(names) == 0 {
		names, err = st.ScopeNames()
		if err != nil {
			return err
		}
		sort.Strings(names)
	}
	if len(names) == 0 {
		fmt.Fprintln(cmdmain.Stdout, "(no scopes)")
		return nil
	}

	for _, name := range names {
		scope, err := st.Scope(name)
		if err != nil {
			return fmt.Errorf("scope %s: %w", name, err)
		}
		meta := scope.Meta()
		packCount, fileCount := 0, 0
		for _, bucket := range meta.Packs {
			if len(bucket) > 0 {
				packCount++
			}
			fileCount += len(bucket)
		}
		fmt.Fprintf(cmdmain.Stdout, "scope %s:\n", name)
		fmt.Fprintf(cmdmain.Stdout, "  occupied buckets: %d / %d\n", packCount, meta.Buckets)
		fmt.Fprintf(cmdmain.Stdout, "  pack files: %d\n", fileCount)
		if err := scope.Validate(); err != nil {
			fmt.Fprintf(cmdmain.Stdout, "  validate: %v\n", err)
		} else {
			fmt.Fprintf(cmdmain.Stdout, "  validate: ok\n")
		}
	}
	return nil
}
