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

// Package modcache loads local modules, caching their exports for the
// lifetime of a loader and sharing in-flight loads between concurrent
// callers.
package modcache

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sort"
	"sync"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"cuelabs.dev/go/modloader/internal/par"
	"cuelabs.dev/go/modloader/mod/modfetch"
	"cuelabs.dev/go/modloader/mod/modpath"
	"cuelabs.dev/go/modloader/mod/modregistry"
	"cuelabs.dev/go/modloader/mod/modscan"
	"cuelabs.dev/go/modloader/mod/module"
)

// Runner executes module source.
type Runner interface {
	Run(ctx context.Context, path, dir string, src []byte, require module.RequireFunc) (any, error)
}

// Config holds the configuration of a [Cache].
type Config struct {
	Fetcher  modfetch.Fetcher
	Runner   Runner
	Registry *modregistry.Registry

	// Rules selects the remote specifiers worth prefetching.
	Rules modscan.Matcher

	// Remote resolves a remote specifier into the registry. It is used
	// to prefetch remote dependencies; if it is nil they are skipped.
	Remote func(ctx context.Context, spec string) error

	// PreloadConcurrency limits concurrent prefetches per module.
	PreloadConcurrency int

	// Logger is used for diagnostics. If it is nil, [slog.Default] is used.
	Logger *slog.Logger

	// LogScan logs the specifiers found in every module source.
	LogScan bool
}

// Info describes a loaded module.
type Info struct {
	Path   string
	Digest digest.Digest
	Size   int
	// Deps holds the specifiers found in the module source.
	Deps []string
}

// Cache loads local modules. All methods are safe for concurrent use.
type Cache struct {
	cfg    Config
	logger *slog.Logger

	// aliases maps a (base directory, specifier) pair to the
	// canonical path it resolved to. Entries are written once.
	aliases par.Cache[aliasKey, string]

	// exports holds the namespace of every module that loaded
	// successfully, by canonical path.
	exports par.Cache[string, *module.Namespace]

	// resolving, fetching and pending hold the in-flight alias
	// resolutions, source fetches and loads.
	resolving singleflight.Group
	fetching  singleflight.Group
	pending   singleflight.Group

	waits waitGraph

	mu      sync.Mutex
	sources map[string][]byte
	infos   map[string]Info
	fetches int
}

type aliasKey struct {
	dir  string
	spec string
}

func (k aliasKey) String() string {
	return k.dir + "\x00" + k.spec
}

// New returns a cache using the given configuration.
func New(cfg Config) *Cache {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = new(modregistry.Registry)
	}
	return &Cache{
		cfg:     cfg,
		logger:  logger,
		sources: make(map[string][]byte),
		infos:   make(map[string]Info),
	}
}

// Load returns the namespace of the local module named by spec
// relative to baseDir, loading it if needed.
//
// Concurrent loads that resolve to the same canonical path share one
// fetch and one execution. The result is recorded in the registry
// under its canonical path, and under spec too when baseDir is the
// root.
//
// If ctx is done while waiting on a load shared with other callers,
// Load returns ctx.Err() and the shared load continues.
func (c *Cache) Load(ctx context.Context, spec, baseDir string) (*module.Namespace, error) {
	key := aliasKey{dir: modpath.Normalize(baseDir), spec: spec}
	if canon, ok := c.aliases.Get(key); ok {
		if ns, ok := c.exports.Get(canon); ok {
			return c.publish(key, canon, ns), nil
		}
	}
	canon, err := c.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	if ns, ok := c.exports.Get(canon); ok {
		return c.publish(key, canon, ns), nil
	}
	ns, err := c.loadPath(ctx, canon)
	if err != nil {
		return nil, err
	}
	return c.publish(key, canon, ns), nil
}

// Require returns a synchronous lookup for the bodies of modules in
// dir. Local specifiers are looked up among the loaded modules and
// remote ones in the registry; neither is loaded on demand.
func (c *Cache) Require(dir string) module.RequireFunc {
	dir = modpath.Normalize(dir)
	return func(spec string) (*module.Namespace, error) {
		if !module.IsLocal(spec) {
			return c.cfg.Registry.Lookup(spec)
		}
		if canon, ok := c.aliases.Get(aliasKey{dir: dir, spec: spec}); ok {
			if ns, ok := c.exports.Get(canon); ok {
				return ns, nil
			}
		}
		return nil, &module.NotYetLoadedError{Specifier: spec}
	}
}

// Modules returns information on every module loaded so far,
// ordered by path.
func (c *Cache) Modules() []Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	infos := make([]Info, 0, len(c.infos))
	for _, info := range c.infos {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Path < infos[j].Path
	})
	return infos
}

// Fetches returns the number of successful source fetches made.
func (c *Cache) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func (c *Cache) publish(key aliasKey, canon string, ns *module.Namespace) *module.Namespace {
	c.cfg.Registry.Set(canon, ns)
	if key.dir == "" {
		c.cfg.Registry.Set(key.spec, ns)
	}
	return ns
}

// resolve finds the canonical path for key: the first candidate path
// whose source can be fetched. The mapping is recorded permanently.
func (c *Cache) resolve(ctx context.Context, key aliasKey) (string, error) {
	if canon, ok := c.aliases.Get(key); ok {
		return canon, nil
	}
	return par.Await(ctx, &c.resolving, key.String(), func(ctx context.Context) (string, error) {
		if canon, ok := c.aliases.Get(key); ok {
			return canon, nil
		}
		cands := modpath.Candidates(modpath.ResolveBase(key.spec, key.dir))
		var lastErr error
		for _, cand := range cands {
			if _, ok := c.exports.Get(cand); !ok {
				if _, err := c.fetch(ctx, cand); err != nil {
					if !errors.Is(err, fs.ErrNotExist) {
						lastErr = err
					}
					continue
				}
			}
			return c.aliases.Do(key, func() string { return cand }), nil
		}
		return "", &module.LocalNotFoundError{
			Specifier:  key.spec,
			BaseDir:    key.dir,
			Candidates: cands,
			Err:        lastErr,
		}
	})
}

// fetch returns the source at p, fetching it at most once.
func (c *Cache) fetch(ctx context.Context, p string) ([]byte, error) {
	if src, ok := c.source(p); ok {
		return src, nil
	}
	return par.Await(ctx, &c.fetching, p, func(ctx context.Context) ([]byte, error) {
		if src, ok := c.source(p); ok {
			return src, nil
		}
		src, err := c.cfg.Fetcher.Fetch(ctx, p)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.sources[p] = src
		c.fetches++
		return src, nil
	})
}

func (c *Cache) source(p string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, ok := c.sources[p]
	return src, ok
}

// loadPath loads the module at the canonical path canon, joining the
// pending load for canon if there is one.
func (c *Cache) loadPath(ctx context.Context, canon string) (*module.Namespace, error) {
	done, err := c.Enter(ctx, canon)
	if err != nil {
		return nil, err
	}
	defer done()
	return par.Await(ctx, &c.pending, canon, func(ctx context.Context) (*module.Namespace, error) {
		if ns, ok := c.exports.Get(canon); ok {
			return ns, nil
		}
		return c.loadOnce(ctx, canon)
	})
}

func (c *Cache) loadOnce(ctx context.Context, canon string) (*module.Namespace, error) {
	src, err := c.fetch(ctx, canon)
	if err != nil {
		return nil, err
	}
	dir := modpath.ModuleDir(canon)
	deps := modscan.Scan(src)
	if c.cfg.LogScan {
		c.logger.Debug("scanned module", "path", canon, "specifiers", deps)
	}
	pre := &modscan.Preloader{
		Load: func(ctx context.Context, spec string) error {
			if module.IsLocal(spec) {
				_, err := c.Load(ctx, spec, dir)
				return err
			}
			if c.cfg.Remote == nil {
				return nil
			}
			return c.cfg.Remote(ctx, spec)
		},
		Concurrency: c.cfg.PreloadConcurrency,
		Logger:      c.logger,
	}
	pre.Preload(WithParent(ctx, canon), modscan.Filter(deps, c.cfg.Rules))

	v, err := c.cfg.Runner.Run(ctx, canon, dir, src, c.Require(dir))
	if err != nil {
		return nil, err
	}
	ns := c.exports.Do(canon, func() *module.Namespace {
		return module.Normalize(v)
	})
	info := Info{
		Path:   canon,
		Digest: digest.FromBytes(src),
		Size:   len(src),
		Deps:   deps,
	}
	c.mu.Lock()
	c.infos[canon] = info
	c.mu.Unlock()
	c.logger.Debug("loaded module", "path", canon, "digest", info.Digest)
	return ns, nil
}
