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
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/pflag"

	"buildcache.dev/packstore/internal/cmdmain"
	"buildcache.dev/packstore/internal/osutil"
	"buildcache.dev/packstore/pkg/pack"
)

func init() {
	cmdmain.RegisterCommand("shell", func(flags *pflag.FlagSet) cmdmain.CommandRunner {
		c := new(shellCmd)
		flags.StringVar(&c.scope, "scope", "default", "scope to operate on")
		return c
	})
}

type shellCmd struct {
	scope string
}

func (c *shellCmd) Describe() string {
	return "interactively inspect and edit a scope"
}

func (c *shellCmd) Usage() {
	fmt.Fprintf(cmdmain.Stderr, "Usage: packstore shell [--scope=name]\n")
}

func (c *shellCmd) RunCommand(args []string) error {
	st, _, err := openStorage()
	if err != nil {
		return err
	}
	r := &repl{storage: st, scope: c.scope, ctx: context.Background()}
	return r.run()
}

func historyFile() string {
	return filepath.Join(osutil.CacheDir(), "shell_history")
}

// repl is the interactive command loop for `packstore shell`, structured
// after a straightforward readline-over-a-switch REPL: one method per
// command, dispatched by the first whitespace-separated word of the line.
type repl struct {
	storage *pack.Storage
	scope   string
	ctx     context.Context
	liner   *liner.State
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()
	r.liner.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintf(cmdmain.Stdout, "packstore shell (scope=%s). Type 'help' for commands.\n", r.scope)
	for {
		line, err := r.liner.Prompt(fmt.Sprintf("packstore:%s> ", r.scope))
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(cmdmain.Stdout, "\nbye")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd, args := strings.ToLower(parts[0]), parts[1:]
		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		case "use":
			r.cmdUse(args)
		case "get":
			r.cmdGet(args)
		case "set", "put":
			r.cmdSet(args)
		case "rm", "del", "delete", "remove":
			r.cmdRemove(args)
		case "ls", "list":
			r.cmdList(args)
		case "idle", "flush":
			r.cmdIdle()
		case "scopes":
			r.cmdScopes()
		default:
			fmt.Fprintf(cmdmain.Stdout, "unknown command %q (type 'help')\n", cmd)
		}
	}
	r.saveHistory()
	return nil
}

func (r *repl) saveHistory() {
	if path := historyFile(); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			if f, err := os.Create(path); err == nil {
				r.liner.WriteHistory(f)
				f.Close()
			}
		}
	}
}

func (r *repl) printHelp() {
	fmt.Fprint(cmdmain.Stdout, `Commands:
  use <scope>          switch the active scope
  scopes               list scopes on disk
  get <key>            print a key's value
  set <key> <value>    stage a key/value write
  rm <key>             stage a key removal
  ls [prefix]          list keys (optionally filtered by prefix)
  idle                 flush staged writes to disk
  help                 show this message
  exit                 quit
`)
}

func (r *repl) cmdUse(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(cmdmain.Stdout, "usage: use <scope>")
		return
	}
	r.scope = args[0]
}

func (r *repl) cmdScopes() {
	names, err := r.storage.ScopeNames()
	if err != nil {
		fmt.Fprintf(cmdmain.Stdout, "error: %v\n", err)
		return
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintln(cmdmain.Stdout, n)
	}
}

func (r *repl) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(cmdmain.Stdout, "usage: get <key>")
		return
	}
	kvs, err := r.storage.GetAll(r.ctx, r.scope)
	if err != nil {
		fmt.Fprintf(cmdmain.Stdout, "error: %v\n", err)
		return
	}
	for _, kv := range kvs {
		if string(kv.Key) == args[0] {
			fmt.Fprintln(cmdmain.Stdout, string(kv.Value))
			return
		}
	}
	fmt.Fprintln(cmdmain.Stdout, "(not found)")
}

func (r *repl) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(cmdmain.Stdout, "usage: set <key> <value>")
		return
	}
	key, value := args[0], strings.Join(args[1:], " ")
	r.storage.Set(r.scope, []byte(key), []byte(value))
	fmt.Fprintln(cmdmain.Stdout, "staged (run 'idle' to flush)")
}

func (r *repl) cmdRemove(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(cmdmain.Stdout, "usage: rm <key>")
		return
	}
	r.storage.Remove(r.scope, []byte(args[0]))
	fmt.Fprintln(cmdmain.Stdout, "staged (run 'idle' to flush)")
}

func (r *repl) cmdList(args []string) {
	var prefix string
	if len(args) > 0 {
		prefix = args[0]
	}
	kvs, err := r.storage.GetAll(r.ctx, r.scope)
	if err != nil {
		fmt.Fprintf(cmdmain.Stdout, "error: %v\n", err)
		return
	}
	sort.Slice(kvs, func(i, j int) bool { return string(kvs[i].Key) < string(kvs[j].Key) })
	n := 0
	for _, kv := range kvs {
		if prefix != "" && !strings.HasPrefix(string(kv.Key), prefix) {
			continue
		}
		fmt.Fprintf(cmdmain.Stdout, "%s\n", kv.Key)
		n++
	}
	fmt.Fprintf(cmdmain.Stdout, "(%s keys)\n", strconv.Itoa(n))
}

func (r *repl) cmdIdle() {
	if err := r.storage.Idle(r.ctx); err != nil {
		fmt.Fprintf(cmdmain.Stdout, "idle: %v\n", err)
		return
	}
	fmt.Fprintln(cmdmain.Stdout, "flushed")
}
