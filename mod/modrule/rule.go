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

// Package modrule holds the resolution rules that map remote module
// specifiers onto provider packages, and the longest-prefix matcher
// that selects among them.
package modrule

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Format names how the resource behind a rule is materialized.
type Format string

const (
	// FormatImport loads the resource with the host's dynamic import.
	FormatImport Format = "import"
	// FormatGlobal runs the resource as a classic script and then reads
	// its exports from a global binding.
	FormatGlobal Format = "global"
	// FormatWasm instantiates the resource as a WebAssembly module.
	FormatWasm Format = "wasm"
)

// Rule maps the specifiers starting with Prefix onto files of a
// provider package.
type Rule struct {
	// Prefix selects the specifiers handled by this rule.
	// "icons/" matches "icons/star"; "react" matches "react" and
	// "react/jsx-runtime".
	Prefix  string `json:"prefix" yaml:"prefix" toml:"prefix"`
	Package string `json:"package" yaml:"package" toml:"package"`
	// Version is a semantic version ("v1.2.3" or "1.2.3") or a
	// distribution tag such as "latest". It may be empty.
	Version string `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`

	Primary    string `json:"primary,omitempty" yaml:"primary,omitempty" toml:"primary,omitempty"`
	Production string `json:"production,omitempty" yaml:"production,omitempty" toml:"production,omitempty"`
	CI         string `json:"ci,omitempty" yaml:"ci,omitempty" toml:"ci,omitempty"`

	// Pattern is the file name within the package. The placeholder
	// {name} is replaced by the remainder of the specifier after the
	// prefix. An empty pattern uses the remainder as is.
	Pattern    string `json:"pattern,omitempty" yaml:"pattern,omitempty" toml:"pattern,omitempty"`
	PathPrefix string `json:"pathPrefix,omitempty" yaml:"pathPrefix,omitempty" toml:"pathPrefix,omitempty"`
	Format     Format `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty"`
	// Global is the dot-separated global binding holding the exports of
	// a FormatGlobal resource. It may contain {name}.
	Global string `json:"global,omitempty" yaml:"global,omitempty" toml:"global,omitempty"`
	// Fallback appends the configured mirror bases after the rule's
	// own bases.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback,omitempty" toml:"fallback,omitempty"`
}

// File returns the path of the file within the package for the
// specifier remainder name.
func (r Rule) File(name string) string {
	if r.Pattern == "" {
		if name == "" {
			return ""
		}
		return r.PathPrefix + name
	}
	return r.PathPrefix + expand(r.Pattern, name)
}

// GlobalPath returns the global binding path for name.
func (r Rule) GlobalPath(name string) string {
	return expand(r.Global, name)
}

// EffectiveFormat returns r.Format, defaulting to FormatImport.
func (r Rule) EffectiveFormat() Format {
	if r.Format == "" {
		return FormatImport
	}
	return r.Format
}

func expand(pattern, name string) string {
	return strings.ReplaceAll(pattern, "{name}", name)
}

func (r Rule) validate() error {
	if r.Prefix == "" {
		return fmt.Errorf("empty prefix")
	}
	if r.Package == "" {
		return fmt.Errorf("rule %q: empty package", r.Prefix)
	}
	if r.Version != "" && isSemverLike(r.Version) {
		v := r.Version
		if !strings.HasPrefix(v, "v") {
			v = "v" + v
		}
		if !semver.IsValid(v) {
			return fmt.Errorf("rule %q: invalid version %q", r.Prefix, r.Version)
		}
	}
	switch r.Format {
	case "", FormatImport, FormatWasm:
	case FormatGlobal:
		if r.Global == "" {
			return fmt.Errorf("rule %q: global format requires a global binding", r.Prefix)
		}
	default:
		return fmt.Errorf("rule %q: unknown format %q", r.Prefix, r.Format)
	}
	return nil
}

// isSemverLike reports whether v looks like it was meant to be a
// version number rather than a distribution tag.
func isSemverLike(v string) bool {
	v = strings.TrimPrefix(v, "v")
	return v != "" && v[0] >= '0' && v[0] <= '9'
}

// Set is an immutable collection of rules.
type Set struct {
	rules []Rule
}

// NewSet validates the given rules and returns a set holding them.
// Prefixes must be unique.
func NewSet(rules []Rule) (*Set, error) {
	seen := make(map[string]bool)
	var errs []error
	for _, r := range rules {
		if err := r.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[r.Prefix] {
			errs = append(errs, fmt.Errorf("duplicate rule prefix %q", r.Prefix))
			continue
		}
		seen[r.Prefix] = true
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Set{rules: append([]Rule(nil), rules...)}, nil
}

// Rules returns a copy of the rules in s.
func (s *Set) Rules() []Rule {
	if s == nil {
		return nil
	}
	return append([]Rule(nil), s.rules...)
}

// Match returns the rule with the longest prefix matching spec, along
// with the remainder of spec after the prefix (without a leading
// slash).
//
// A prefix matches when it equals spec, or when spec starts with it and
// the prefix either ends in "/" or is followed by "/" in spec. So
// "icons" matches "icons/star" but not "iconsets".
func (s *Set) Match(spec string) (Rule, string, bool) {
	if s == nil {
		return Rule{}, "", false
	}
	best := -1
	for i, r := range s.rules {
		if !prefixMatch(r.Prefix, spec) {
			continue
		}
		if best >= 0 && len(s.rules[best].Prefix) >= len(r.Prefix) {
			// We've already found a more specific match.
			continue
		}
		best = i
	}
	if best < 0 {
		return Rule{}, "", false
	}
	r := s.rules[best]
	return r, strings.TrimPrefix(spec[len(r.Prefix):], "/"), true
}

// Matches reports whether any rule matches spec.
func (s *Set) Matches(spec string) bool {
	_, _, ok := s.Match(spec)
	return ok
}

func prefixMatch(prefix, spec string) bool {
	if spec == prefix {
		return true
	}
	if !strings.HasPrefix(spec, prefix) {
		return false
	}
	return strings.HasSuffix(prefix, "/") || spec[len(prefix)] == '/'
}
