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

	"cuelabs.dev/go/modloader/internal/envclass"
	"cuelabs.dev/go/modloader/mod/modfetch"
	"cuelabs.dev/go/modloader/mod/modrule"
	"cuelabs.dev/go/modloader/mod/module"
)

// Materializer turns the resource at url into a namespace.
type Materializer interface {
	Materialize(ctx context.Context, m Match, url string) (*module.Namespace, error)
}

// Match describes a specifier matched against a rule.
type Match struct {
	Specifier string
	Rule      modrule.Rule
	// Name is the remainder of the specifier after the rule prefix.
	Name string
}

// Plan holds everything that can be decided about a remote specifier
// without network access.
type Plan struct {
	Match
	Bases      []string
	Candidates []string
}

// Resolver resolves remote specifiers.
type Resolver struct {
	Rules        *modrule.Set
	Mirrors      []string
	Env          envclass.Classifier
	Fetcher      modfetch.Fetcher
	Materializer Materializer
	Logger       *slog.Logger

	// Enter, if set, is called with the winning URL before it is
	// materialized. It returns the context to materialize with and a
	// function to call once materialization is done. Loaders use it
	// to detect a module that imports itself through another
	// specifier.
	Enter func(ctx context.Context, url string) (context.Context, func(), error)
}

// Plan matches spec against the rules and computes its ordered
// candidate URLs. It returns a [*module.ResolutionError] when no rule
// matches.
func (r *Resolver) Plan(spec string) (*Plan, error) {
	rule, name, ok := r.Rules.Match(spec)
	if !ok {
		return nil, &module.ResolutionError{Specifier: spec}
	}
	isCI := r.Env != nil && r.Env.IsCI()
	bases := OrderBases(rule, isCI, r.Mirrors)
	return &Plan{
		Match: Match{
			Specifier: spec,
			Rule:      rule,
			Name:      name,
		},
		Bases:      bases,
		Candidates: Candidates(bases, rule.Package, rule.Version, rule.File(name)),
	}, nil
}

// Resolve plans spec, probes its candidates and materializes the
// first one that exists.
func (r *Resolver) Resolve(ctx context.Context, spec string) (*module.Namespace, error) {
	plan, err := r.Plan(spec)
	if err != nil {
		return nil, err
	}
	logger := r.logger()
	p := &Prober{Fetcher: r.Fetcher, Logger: logger}
	u, err := p.Probe(ctx, spec, plan.Candidates)
	if err != nil {
		return nil, err
	}
	logger.Debug("resolved remote module", "specifier", spec, "url", u, "format", plan.Rule.EffectiveFormat())
	if r.Enter != nil {
		var done func()
		ctx, done, err = r.Enter(ctx, u)
		if err != nil {
			return nil, err
		}
		defer done()
	}
	return r.Materializer.Materialize(ctx, plan.Match, u)
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
