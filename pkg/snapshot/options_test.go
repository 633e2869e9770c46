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
	"regexp"
	"testing"
)

func TestPathMatcherPrefix(t *testing.T) {
	m := PathMatcher{Prefix: "/repo/node_modules/"}
	if !m.Match("/repo/node_modules/lodash/index.js") {
		t.Error("expected prefix match")
	}
	if m.Match("/repo/src/index.js") {
		t.Error("unexpected prefix match")
	}
}

func TestPathMatcherRegexp(t *testing.T) {
	m := PathMatcher{Regexp: regexp.MustCompile(`\.generated\.go$`)}
	if !m.Match("pkg/models/user.generated.go") {
		t.Error("expected regexp match")
	}
	if m.Match("pkg/models/user.go") {
		t.Error("unexpected regexp match")
	}
}

func TestOptionsClassify(t *testing.T) {
	opts := Options{
		ImmutablePaths: []PathMatcher{{Prefix: "/usr/lib/"}},
		ManagedPaths:   []PathMatcher{{Prefix: "/repo/node_modules/"}},
	}

	cases := []struct {
		path string
		want pathClass
	}{
		{"/usr/lib/libc.so", classImmutable},
		{"/repo/node_modules/lodash/index.js", classManaged},
		{"/repo/src/main.go", classUnmanaged},
	}
	for _, c := range cases {
		if got := opts.classify(c.path); got != c.want {
			t.Errorf("classify(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}
