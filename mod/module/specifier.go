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

// Package module defines the core types shared by the module loader:
// specifiers, export namespaces and the errors reported while
// resolving and loading modules.
package module

import "strings"

// IsLocal reports whether spec names a module in the local file tree
// rather than a remote package: relative ("./x", "../x", ".", "..")
// and absolute ("/x") paths are local.
func IsLocal(spec string) bool {
	switch {
	case spec == "." || spec == "..":
		return true
	case strings.HasPrefix(spec, "./"), strings.HasPrefix(spec, "../"):
		return true
	case strings.HasPrefix(spec, "/") && !strings.HasPrefix(spec, "//"):
		return true
	}
	return false
}

// RequireFunc is the synchronous lookup handed to executing module
// bodies. Module bodies cannot suspend, so it only returns modules
// that are already loaded and fails with [NotYetLoadedError] otherwise.
type RequireFunc func(spec string) (*Namespace, error)
