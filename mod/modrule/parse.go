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

package modrule

import (
	"fmt"
	"strings"
)

// ParseShorthand parses a compact comma-separated rule list, as
// accepted by the --rule flag, for example:
//
//	icons/=@lib/icons@2.1.0,react=react@18.3.1+fallback
//
// Each element maps a prefix onto a package with an optional version.
// A trailing "+fallback" sets [Rule.Fallback].
func ParseShorthand(s string) ([]Rule, error) {
	if s == "" {
		return nil, nil
	}
	var rules []Rule
	for _, part := range strings.Split(s, ",") {
		prefix, pkg, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("rule %q: missing '='", part)
		}
		if prefix == "" {
			return nil, fmt.Errorf("rule %q: empty prefix", part)
		}
		var r Rule
		r.Prefix = prefix
		if rest, ok := strings.CutSuffix(pkg, "+fallback"); ok {
			r.Fallback = true
			pkg = rest
		}
		// The version separator is the last '@' not at the start,
		// so scoped packages such as @lib/icons still parse.
		if i := strings.LastIndex(pkg, "@"); i > 0 {
			pkg, r.Version = pkg[:i], pkg[i+1:]
			if r.Version == "" {
				return nil, fmt.Errorf("rule %q: empty version", part)
			}
		}
		if pkg == "" {
			return nil, fmt.Errorf("rule %q: empty package", part)
		}
		r.Package = pkg
		rules = append(rules, r)
	}
	return rules, nil
}
