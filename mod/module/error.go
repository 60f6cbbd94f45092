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

package module

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds. Every error type below reports the matching kind
// through [errors.Is], so callers can test for a class of failure
// without caring about the concrete type.
var (
	ErrNoRule        = errors.New("no resolution rule")
	ErrNotFound      = errors.New("module not found")
	ErrGlobalMissing = errors.New("global binding not found")
	ErrNotLoaded     = errors.New("module not yet loaded")
	ErrNotRegistered = errors.New("module not registered")
	ErrCycle         = errors.New("import cycle")
)

// A ResolutionError indicates that no rule matches a remote specifier.
type ResolutionError struct {
	Specifier string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no resolution rule matches %q", e.Specifier)
}

func (e *ResolutionError) Is(err error) bool { return err == ErrNoRule }

// A NotFoundError indicates that every candidate URL for a remote
// specifier failed to probe. Attempts holds the URLs in the order
// they were tried.
type NotFoundError struct {
	Specifier string
	Attempts  []string
	Err       error // last probe failure, if any
}

func (e *NotFoundError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "module %q not found; tried %d locations:", e.Specifier, len(e.Attempts))
	for _, a := range e.Attempts {
		buf.WriteString("\n\t")
		buf.WriteString(a)
	}
	return buf.String()
}

func (e *NotFoundError) Is(err error) bool { return err == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return e.Err }

// A LocalNotFoundError indicates that no candidate path for a local
// specifier could be fetched.
type LocalNotFoundError struct {
	Specifier  string
	BaseDir    string
	Candidates []string
	// Err holds the last failure other than a missing file, if any.
	Err error
}

func (e *LocalNotFoundError) Error() string {
	msg := fmt.Sprintf("cannot find module %q from %q (tried %s)",
		e.Specifier, "/"+e.BaseDir, strings.Join(e.Candidates, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LocalNotFoundError) Is(err error) bool { return err == ErrNotFound }

func (e *LocalNotFoundError) Unwrap() error { return e.Err }

// A GlobalNotFoundError indicates that a script was loaded but the
// global binding expected to hold its exports is missing.
type GlobalNotFoundError struct {
	Specifier string
	Path      string
}

func (e *GlobalNotFoundError) Error() string {
	return fmt.Sprintf("module %q: global %q not defined after loading", e.Specifier, e.Path)
}

func (e *GlobalNotFoundError) Is(err error) bool { return err == ErrGlobalMissing }

// A CompileError indicates that module source could not be
// transformed into executable form.
type CompileError struct {
	Path string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("cannot compile %s: %v", e.Path, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// An ExecutionError wraps the error raised by a module body.
// The original error is available unchanged through [errors.As].
type ExecutionError struct {
	Path string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("error executing %s: %v", e.Path, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// A NotYetLoadedError is returned by synchronous lookups of modules
// that have not been resolved yet. Callers must resolve or preload the
// module first.
type NotYetLoadedError struct {
	Specifier string
}

func (e *NotYetLoadedError) Error() string {
	return fmt.Sprintf("module %q has not been loaded yet", e.Specifier)
}

func (e *NotYetLoadedError) Is(err error) bool { return err == ErrNotLoaded }

// A NotRegisteredError indicates a specifier that is neither local
// nor matched by any resolution rule.
type NotRegisteredError struct {
	Specifier string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("module %q is not local and matches no resolution rule", e.Specifier)
}

func (e *NotRegisteredError) Is(err error) bool { return err == ErrNotRegistered }

// A CyclicDependencyError indicates that a module transitively
// depends on itself while it is still being loaded.
type CyclicDependencyError struct {
	Chain []string
}

func (e *CyclicDependencyError) Error() string {
	return "import cycle detected: " + strings.Join(e.Chain, " -> ")
}

func (e *CyclicDependencyError) Is(err error) bool { return err == ErrCycle }
