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

package modremote

import (
	"context"
	"log/slog"

	"cuelabs.dev/go/modloader/mod/modfetch"
	"cuelabs.dev/go/modloader/mod/module"
)

// Prober checks candidate URLs one at a time.
type Prober struct {
	Fetcher modfetch.Fetcher
	// Logger receives a debug record per failed candidate.
	// If it is nil, [slog.Default] is used.
	Logger *slog.Logger
}

// Probe returns the first candidate that exists. Candidates are
// checked sequentially, never in parallel, so no lower-priority
// request is made once a higher-priority one succeeds.
//
// If every candidate fails, Probe returns a [*module.NotFoundError]
// listing all of them.
func (p *Prober) Probe(ctx context.Context, spec string, candidates []string) (string, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var attempts []string
	var lastErr error
	for _, u := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		attempts = append(attempts, u)
		err := p.Fetcher.Exists(ctx, u)
		if err == nil {
			return u, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Debug("probe failed", "specifier", spec, "url", u, "error", err)
		lastErr = err
	}
	return "", &module.NotFoundError{
		Specifier: spec,
		Attempts:  attempts,
		Err:       lastErr,
	}
}
