// Copyright 2026 CUE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package modscan finds the module specifiers referenced by a source
// file and prefetches them.
//
// The scan is textual and best effort: only literal specifiers are
// found, and a specifier mentioned inside a comment or string may be
// reported too. Nothing may depend on it for correctness.
package modscan

import (
	"regexp"

	"cuelabs.dev/go/modloader/mod/module"
)

// quoted matches a string literal in single, double or back quotes.
// Template literals containing substitutions are not matched.
const quoted = `(?:'([^'\n]*)'|"([^"\n]*)"|` + "`([^`$\\n]*)`" + `)`

var specifierRE = regexp.MustCompile(
	// import x from "a"; export * from "a"
	`\b(?:import|export)\s[^;'"` + "`" + `]*?\bfrom\s*` + quoted +
		// import "a"
		`|\bimport\s*` + quoted +
		// import("a")
		`|\bimport\s*\(\s*` + quoted + `\s*\)` +
		// require("a")
		`|\brequire\s*\(\s*` + quoted + `\s*\)`,
)

// Scan returns the literal specifiers referenced by src, in order of
// first appearance and without duplicates.
func Scan(src []byte) []string {
	var specs []string
	seen := make(map[string]bool)
	for _, m := range specifierRE.FindAllSubmatch(src, -1) {
		var spec string
		for _, g := range m[1:] {
			if g != nil {
				spec = string(g)
				break
			}
		}
		if spec == "" || seen[spec] {
			continue
		}
		seen[spec] = true
		specs = append(specs, spec)
	}
	return specs
}

// Matcher reports whether a remote specifier is handled by some
// resolution rule. [*modrule.Set] implements Matcher.
type Matcher interface {
	Matches(spec string) bool
}

// Filter returns the specifiers that can be prefetched: local ones,
// and remote ones accepted by m.
func Filter(specs []string, m Matcher) []string {
	var out []string
	for _, s := range specs {
		if module.IsLocal(s) || (m != nil && m.Matches(s)) {
			out = append(out, s)
		}
	}
	return out
}
