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

package modfetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"cuelabs.dev/go/modloader/internal/httplog"
)

// HTTPConfig holds configuration for [NewHTTPFetcher].
type HTTPConfig struct {
	// Origin is prepended to root-relative paths such as
	// "/src/app.ts". Absolute URLs are used unchanged.
	Origin string

	// Transport is the underlying transport. If it is nil,
	// [http.DefaultTransport] is used.
	Transport http.RoundTripper

	// Logger receives request logs when LogRequests is set.
	// If it is nil, [slog.Default] is used.
	Logger *slog.Logger

	// LogRequests wraps the transport with [httplog.Transport].
	LogRequests bool

	// UserAgent is sent with every request when non-empty.
	UserAgent string
}

// HTTPFetcher fetches resources with HTTP GET requests.
type HTTPFetcher struct {
	origin    string
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher returns a fetcher using the given configuration.
// A nil cfg is equivalent to a zero [HTTPConfig].
func NewHTTPFetcher(cfg *HTTPConfig) *HTTPFetcher {
	if cfg == nil {
		cfg = &HTTPConfig{}
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if cfg.LogRequests {
		logger := cfg.Logger
		if logger == nil {
			logger = slog.Default()
		}
		transport = httplog.Transport(&httplog.TransportConfig{
			Logger:    httplog.SlogLogger{Logger: logger},
			Transport: transport,
		})
	}
	return &HTTPFetcher{
		origin:    strings.TrimSuffix(cfg.Origin, "/"),
		client:    &http.Client{Transport: transport},
		userAgent: cfg.UserAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.get(httplog.ContextWithPurpose(ctx, "fetch"), url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return data, nil
}

// Exists issues a GET request for url and succeeds on any 2xx
// status. The body is discarded unread.
func (f *HTTPFetcher) Exists(ctx context.Context, url string) error {
	resp, err := f.get(httplog.ContextWithPurpose(ctx, "probe"), url)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (f *HTTPFetcher) get(ctx context.Context, url string) (*http.Response, error) {
	if !isRemote(url) {
		if f.origin == "" {
			return nil, fmt.Errorf("cannot fetch %q: no origin configured", url)
		}
		url = f.origin + "/" + strings.TrimPrefix(url, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}
