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

// Package modfetch provides the transports used to retrieve module
// source: over HTTP from providers and origins, and from any [fs.FS].
package modfetch

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
)

// Fetcher retrieves module resources by URL or root-relative path.
type Fetcher interface {
	// Fetch returns the contents of the resource.
	Fetch(ctx context.Context, url string) ([]byte, error)
	// Exists reports whether the resource can be fetched, returning
	// nil if so. It need not read the contents.
	Exists(ctx context.Context, url string) error
}

// A StatusError is returned when an HTTP request completes with a
// non-success status code.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Is reports missing resources as [fs.ErrNotExist], so
// callers can treat both transports alike.
func (e *StatusError) Is(err error) bool {
	return err == fs.ErrNotExist && (e.StatusCode == 404 || e.StatusCode == 410)
}

// Mux routes absolute http and https URLs to Remote and every other
// location to Local.
type Mux struct {
	Local  Fetcher
	Remote Fetcher
}

func (m *Mux) route(url string) (Fetcher, error) {
	f := m.Local
	if isRemote(url) {
		f = m.Remote
	}
	if f == nil {
		return nil, fmt.Errorf("no fetcher configured for %q", url)
	}
	return f, nil
}

func (m *Mux) Fetch(ctx context.Context, url string) ([]byte, error) {
	f, err := m.route(url)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, url)
}

func (m *Mux) Exists(ctx context.Context, url string) error {
	f, err := m.route(url)
	if err != nil {
		return err
	}
	return f.Exists(ctx, url)
}

func isRemote(url string) bool {
	return strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://")
}
