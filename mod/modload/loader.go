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

// Package modload provides the module loader: the facade that
// resolves specifiers to module namespaces, dispatching local
// specifiers to the load cache and remote ones to the provider rules.
package modload

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"cuelabs.dev/go/modloader/internal/envclass"
	"cuelabs.dev/go/modloader/internal/par"
	"cuelabs.dev/go/modloader/mod/modcache"
	"cuelabs.dev/go/modloader/mod/modexec"
	"cuelabs.dev/go/modloader/mod/modfetch"
	"cuelabs.dev/go/modloader/mod/modhost"
	"cuelabs.dev/go/modloader/mod/modpath"
	"cuelabs.dev/go/modloader/mod/modregistry"
	"cuelabs.dev/go/modloader/mod/modremote"
	"cuelabs.dev/go/modloader/mod/modrule"
	"cuelabs.dev/go/modloader/mod/modscan"
	"cuelabs.dev/go/modloader/mod/module"
)

// Config holds the configuration of a [Loader]. It is read once by
// [New] and not retained.
type Config struct {
	// Rules maps remote specifiers onto provider packages.
	Rules *modrule.Set

	// Mirrors are appended to the bases of rules that opt into
	// fallback.
	Mirrors []string

	// Env classifies the environment. If it is nil, the process
	// environment is used.
	Env envclass.Classifier

	// Fetcher retrieves both root-relative local paths and remote
	// URLs.
	Fetcher modfetch.Fetcher

	// Engine executes modules. If it is nil, a new engine is created.
	Engine *modexec.Engine

	// Wasm enables the wasm rule format when non-nil.
	Wasm *modhost.WasmRuntime

	// PreloadConcurrency limits the concurrent prefetches made for
	// each module. Zero means [modscan.DefaultConcurrency].
	PreloadConcurrency int

	// Logger is used for diagnostics. If it is nil, [slog.Default]
	// is used.
	Logger *slog.Logger

	// LogScan logs the specifiers found in every module source.
	LogScan bool
}

// Loader resolves module specifiers. Each Loader has its own registry
// and caches; loaders never share state.
type Loader struct {
	id       string
	rules    *modrule.Set
	logger   *slog.Logger
	registry *modregistry.Registry
	cache    *modcache.Cache
	remote   *modremote.Resolver
	fetcher  modfetch.Fetcher
	conc     int

	remoteLoads singleflight.Group
}

// New returns a new loader. A nil cfg is equivalent to a zero [Config],
// which can only load modules already in its registry.
func New(cfg *Config) *Loader {
	if cfg == nil {
		cfg = &Config{}
	}
	id := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("loader", id)
	env := cfg.Env
	if env == nil {
		env = &envclass.Env{}
	}
	engine := cfg.Engine
	if engine == nil {
		engine = modexec.NewEngine(&modexec.Options{Logger: logger})
	}
	l := &Loader{
		id:       id,
		rules:    cfg.Rules,
		logger:   logger,
		registry: new(modregistry.Registry),
		fetcher:  cfg.Fetcher,
		conc:     cfg.PreloadConcurrency,
	}
	compiler := &modexec.Compiler{}
	host := &modexec.Host{
		Engine:   engine,
		Compiler: compiler,
		Fetcher:  cfg.Fetcher,
		Require:  l.registry.Lookup,
		Preload:  l.preloadRemote,
	}
	l.remote = &modremote.Resolver{
		Rules:   cfg.Rules,
		Mirrors: cfg.Mirrors,
		Env:     env,
		Fetcher: cfg.Fetcher,
		Materializer: &modhost.Materializer{
			Host:    host,
			Fetcher: cfg.Fetcher,
			Wasm:    cfg.Wasm,
		},
		Logger: logger,
		Enter:  l.enterURL,
	}
	l.cache = modcache.New(modcache.Config{
		Fetcher:  cfg.Fetcher,
		Runner:   &modexec.Runner{Compiler: compiler, Engine: engine},
		Registry: l.registry,
		Rules:    cfg.Rules,
		Remote: func(ctx context.Context, spec string) error {
			_, err := l.resolveRemote(ctx, spec)
			return err
		},
		PreloadConcurrency: cfg.PreloadConcurrency,
		Logger:             logger,
		LogScan:            cfg.LogScan,
	})
	return l
}

// ID returns the session identifier of l, which is attached to all
// of its log records.
func (l *Loader) ID() string {
	return l.id
}

// Resolve returns the namespace for spec, requested from a module in
// baseDir, loading it if necessary.
//
// Local specifiers are loaded through the load cache and remote ones
// through the rule matching spec. A specifier that is neither fails
// with a [*module.NotRegisteredError].
func (l *Loader) Resolve(ctx context.Context, spec, baseDir string) (*module.Namespace, error) {
	local := module.IsLocal(spec)
	if !local || modpath.Normalize(baseDir) == "" {
		if ns, ok := l.registry.Get(spec); ok {
			return ns, nil
		}
	}
	switch {
	case local:
		return l.cache.Load(ctx, spec, baseDir)
	case l.rules.Matches(spec):
		return l.resolveRemote(ctx, spec)
	}
	return nil, &module.NotRegisteredError{Specifier: spec}
}

// Lookup returns the namespace for spec if it has already been
// loaded, and a [*module.NotYetLoadedError] otherwise.
func (l *Loader) Lookup(spec string) (*module.Namespace, error) {
	return l.registry.Lookup(spec)
}

// Preload loads the dependencies referenced by src, a module source
// in baseDir, so that later synchronous lookups succeed. Failures are
// logged and ignored.
func (l *Loader) Preload(ctx context.Context, src []byte, baseDir string) {
	pre := &modscan.Preloader{
		Load: func(ctx context.Context, spec string) error {
			_, err := l.Resolve(ctx, spec, baseDir)
			return err
		},
		Concurrency: l.conc,
		Logger:      l.logger,
	}
	pre.Preload(ctx, modscan.Filter(modscan.Scan(src), l.rules))
}

// Plan returns the resolution plan for a remote specifier without
// making any requests.
func (l *Loader) Plan(spec string) (*modremote.Plan, error) {
	return l.remote.Plan(spec)
}

// Probe returns the first candidate URL for the remote specifier
// that exists, without loading it.
func (l *Loader) Probe(ctx context.Context, spec string) (string, error) {
	plan, err := l.remote.Plan(spec)
	if err != nil {
		return "", err
	}
	p := &modremote.Prober{Fetcher: l.fetcher, Logger: l.logger}
	return p.Probe(ctx, spec, plan.Candidates)
}

// Modules returns information on every local module loaded so far.
func (l *Loader) Modules() []modcache.Info {
	return l.cache.Modules()
}

// Keys returns the keys of the registry.
func (l *Loader) Keys() []string {
	return l.registry.Keys()
}

func (l *Loader) resolveRemote(ctx context.Context, spec string) (*module.Namespace, error) {
	if ns, ok := l.registry.Get(spec); ok {
		return ns, nil
	}
	done, err := l.cache.Enter(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer done()
	return par.Await(ctx, &l.remoteLoads, spec, func(ctx context.Context) (*module.Namespace, error) {
		if ns, ok := l.registry.Get(spec); ok {
			return ns, nil
		}
		ns, err := l.remote.Resolve(modcache.WithParent(ctx, spec), spec)
		if err != nil {
			return nil, err
		}
		return l.registry.Set(spec, ns), nil
	})
}

// enterURL records that the remote load running under ctx waits on
// the module at url. Specifiers sharing a url thereby share a node,
// so a module reaching itself through an alias fails fast instead of
// waiting on its own import.
func (l *Loader) enterURL(ctx context.Context, url string) (context.Context, func(), error) {
	done, err := l.cache.Enter(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return modcache.WithParent(ctx, url), done, nil
}

// preloadRemote prefetches the remote dependencies of a remote module.
// Relative specifiers in remote modules are not supported and are
// skipped.
func (l *Loader) preloadRemote(ctx context.Context, src []byte) {
	var specs []string
	for _, spec := range modscan.Scan(src) {
		if !module.IsLocal(spec) && l.rules.Matches(spec) {
			specs = append(specs, spec)
		}
	}
	pre := &modscan.Preloader{
		Load: func(ctx context.Context, spec string) error {
			_, err := l.resolveRemote(ctx, spec)
			return err
		},
		Concurrency: l.conc,
		Logger:      l.logger,
	}
	pre.Preload(ctx, specs)
}
