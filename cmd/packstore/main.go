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

// Command packstore inspects and administers a packstore cache directory:
// a directory of scopes, each holding bucketed, append-friendly pack
// files, as written by the buildcache.dev/packstore/pkg/pack package.
package main

import (
	"github.com/spf13/pflag"

	"buildcache.dev/packstore/internal/cmdmain"
)

var flagConfig = pflag.String("config", "", "path to the packstore config file (JSONC); defaults to the platform config dir")

func main() {
	cmdmain.Main()
}
