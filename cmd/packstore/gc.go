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
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"buildcache.dev/packstore/internal/cmdmain"
)

func init() {
	cmdmain.RegisterCommand("gc", func(flags *pflag.FlagSet) cmdmain.CommandRunner {
		c := new(gcCmd)
		flags.BoolVar(&c.dryRun, "dry-run", false, "list orphaned pack files without removing them")
		return c
	})
}

// gcCmd removes pack files that are no longer referenced by any scope's
// meta. These accumulate only when a process is killed between SaveScope
// writing a bucket's new packs and Storage.Idle persisting the meta that
// points to them; a save that completes normally already removes the
// packs it superseded.
type gcCmd struct {
	dryRun bool
}

func (c *gcCmd) Describe() string {
	return "remove pack files not referenced by any scope's meta"
}

func (c *gcCmd) Usage() {
	fmt.Fprintf(cmdmain.Stderr, "Usage: packstore gc [--dry-run] [scope...]\n")
}

func (c *gcCmd) RunCommand(args []string) error {
	st, _, err := openStorage()
	if err != nil {
		return err
	}

	names := args
	if len(names) == 0 {
		names, err = st.ScopeNames()
		if err != nil {
			return err
		}
	}

	var total int
	for _, name := range names {
		scope, err := st.Scope(name)
		if err != nil {
			return fmt.Errorf("scope %s: %w", name, err)
		}
		meta := scope.Meta()
		referenced := make(map[string]bool)
		for _, bucket := range meta.Packs {
			for _, pm := range bucket {
				referenced[pm.Name] = true
			}
		}

		entries, err := os.ReadDir(scope.Dir())
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("scope %s: %w", name, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".pack") {
				continue
			}
			if referenced[e.Name()] {
				continue
			}
			path := filepath.Join(scope.Dir(), e.Name())
			if c.dryRun {
				fmt.Fprintf(cmdmain.Stdout, "would remove %s\n", path)
			} else {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("removing %s: %w", path, err)
				}
				fmt.Fprintf(cmdmain.Stdout, "removed %s\n", path)
			}
			total++
		}
	}
	if total == 0 {
		fmt.Fprintln(cmdmain.Stdout, "nothing to collect")
	}
	return nil
}
