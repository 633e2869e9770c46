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
	"context"
	"fmt"
	"sort"

	"github.com/spf13/pflag"

	"buildcache.dev/packstore/internal/cmdmain"
)

func init() {
	cmdmain.RegisterCommand("dump", func(flags *pflag.FlagSet) cmdmain.CommandRunner {
		return new(dumpCmd)
	})
}

type dumpCmd struct{}

func (c *dumpCmd) Describe() string {
	return "print every key/value pair in a scope, one per line"
}

func (c *dumpCmd) Usage() {
	fmt.Fprintf(cmdmain.Stderr, "Usage: packstore dump <scope>\n")
}

func (c *dumpCmd) RunCommand(args []string) error {
	if len(args) != 1 {
		return cmdmain.ErrUsage
	}
	st, _, err := openStorage()
	if err != nil {
		return err
	}
	kvs, err := st.GetAll(context.Background(), args[0])
	if err != nil {
		return err
	}
	sort.Slice(kvs, func(i, j int) bool { return string(kvs[i].Key) < string(kvs[j].Key) })
	for _, kv := range kvs {
		fmt.Fprintf(cmdmain.Stdout, "%s\t%s\n", kv.Key, kv.Value)
	}
	return nil
}
