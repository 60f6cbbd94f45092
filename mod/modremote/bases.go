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

// Package modremote resolves remote specifiers: it orders the
// provider bases of a rule, expands them into candidate URLs, probes
// the candidates in priority order and materializes the winner.
package modremote

import (
	"strings"

	"cuelabs.dev/go/modloader/mod/modrule"
)

// DefaultBase is used when a rule names no base at all.
const DefaultBase = "https://unpkg.com/"

// OrderBases returns the provider bases to try for rule, highest
// priority first.
//
// In a CI-like environment the order is CI, Primary, Production;
// otherwise Production, Primary, CI. Empty entries are dropped, each
// base is normalized and only its first occurrence is kept. If nothing
// remains, DefaultBase is used. When the rule sets Fallback, mirrors
// are appended under the same rules.
func OrderBases(rule modrule.Rule, isCI bool, mirrors []string) []string {
	var order []string
	if isCI {
		order = []string{rule.CI, rule.Primary, rule.Production}
	} else {
		order = []string{rule.Production, rule.Primary, rule.CI}
	}
	var bases []string
	seen := make(map[string]bool)
	add := func(list []string) {
		for _, b := range list {
			if b == "" {
				continue
			}
			b = NormalizeBase(b)
			if seen[b] {
				continue
			}
			seen[b] = true
			bases = append(bases, b)
		}
	}
	add(order)
	if len(bases) == 0 {
		add([]string{DefaultBase})
	}
	if rule.Fallback {
		add(mirrors)
	}
	return bases
}

// NormalizeBase adds an https scheme to base when it has none and
// ensures that it ends with a slash.
func NormalizeBase(base string) string {
	switch {
	case strings.HasPrefix(base, "//"):
		base = "https:" + base
	case !strings.Contains(base, "://"):
		base = "https://" + base
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// Candidates returns the candidate URLs for file within pkg at the
// given version, for each base in order.
//
// For each base the package root is base+pkg (plus "@"+version when
// version is set). With a file path the root yields three candidates:
// the file itself, then under "umd/" and then under "dist/". Without
// one the package root alone is the candidate. Duplicates are removed,
// keeping the first occurrence.
func Candidates(bases []string, pkg, version, file string) []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	file = strings.TrimPrefix(file, "/")
	for _, base := range bases {
		root := base + pkg
		if version != "" {
			root += "@" + version
		}
		if file == "" {
			add(root)
			continue
		}
		add(root + "/" + file)
		add(root + "/umd/" + file)
		add(root + "/dist/" + file)
	}
	return urls
}
