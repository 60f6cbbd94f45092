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

package modscan

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is used when [Preloader.Concurrency] is zero.
const DefaultConcurrency = 8

// Preloader fetches dependencies ahead of their use.
type Preloader struct {
	// Load loads a single specifier.
	Load func(ctx context.Context, spec string) error

	// Concurrency limits the number of loads running at once.
	// Negative means no limit.
	Concurrency int

	// Logger receives a warning for each failed load. If it is nil,
	// [slog.Default] is used.
	Logger *slog.Logger
}

// Preload loads every specifier concurrently and returns when all of
// them have settled. Failures are logged and otherwise ignored.
func (p *Preloader) Preload(ctx context.Context, specs []string) {
	if len(specs) == 0 {
		return
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := p.Concurrency
	if limit == 0 {
		limit = DefaultConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, spec := range specs {
		g.Go(func() error {
			if err := p.Load(ctx, spec); err != nil {
				logger.Warn("preload failed", "specifier", spec, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}
