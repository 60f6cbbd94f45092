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

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"

	"cuelabs.dev/go/modloader/internal/moddebug"
	"cuelabs.dev/go/modloader/mod/modconfig"
	"cuelabs.dev/go/modloader/mod/modexec"
	"cuelabs.dev/go/modloader/mod/modfetch"
	"cuelabs.dev/go/modloader/mod/modhost"
	"cuelabs.dev/go/modloader/mod/modload"
	"cuelabs.dev/go/modloader/mod/modrule"
)

// newLogger returns the logger used for diagnostics, writing to w.
// Logs are human-readable unless --log-json is set.
func newLogger(cmd *Command, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose.Bool(cmd) {
		level = slog.LevelDebug
	}
	if flagLogJSON.Bool(cmd) {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	h := log.NewWithOptions(w, log.Options{
		Prefix: "modloader",
		Level:  log.Level(level),
	})
	return slog.New(h)
}

// loadConfig returns the configuration from --config, or from
// $MODLOADER_CONFIG when that is not given, with the rules from
// --rule and the overrides from the other flags applied.
func loadConfig(cmd *Command) (*modconfig.Config, error) {
	var cfg *modconfig.Config
	var err error
	if path := flagConfig.String(cmd); path != "" {
		cfg, err = modconfig.Load(path)
	} else {
		cfg, err = modconfig.Default(nil)
	}
	if err != nil {
		return nil, err
	}
	cfg = cfg.Clone()
	for _, s := range flagRule.StringArray(cmd) {
		rules, err := modrule.ParseShorthand(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --rule: %w", err)
		}
		cfg.Rules = append(cfg.Rules, rules...)
	}
	if flagCI.IsSet(cmd) {
		ci := flagCI.Bool(cmd)
		cfg.CI = &ci
	}
	if cmd.Flags().Lookup(string(flagRoot)) != nil {
		if root := flagRoot.String(cmd); root != "" {
			cfg.Root, cfg.Origin = root, ""
		}
		if origin := flagOrigin.String(cmd); origin != "" {
			cfg.Origin, cfg.Root = origin, ""
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session holds a loader with the resources it uses.
type session struct {
	cfg    *modconfig.Config
	loader *modload.Loader
	logger *slog.Logger
	wasm   *modhost.WasmRuntime
}

func newSession(ctx context.Context, cmd *Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbg, err := moddebug.Parse(os.Getenv)
	if err != nil {
		return nil, err
	}
	rules, err := cfg.RuleSet()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd, cmd.OutOrStderr())
	remote := modfetch.NewHTTPFetcher(&modfetch.HTTPConfig{
		Origin:      cfg.Origin,
		Logger:      logger,
		LogRequests: dbg.HTTP,
		UserAgent:   "modloader",
	})
	var local modfetch.Fetcher = remote
	if cfg.Root != "" {
		local = &modfetch.FSFetcher{FS: os.DirFS(cfg.Root)}
	}
	concurrency := cfg.PreloadConcurrency
	if concurrency == 0 {
		concurrency = dbg.Preload
	}
	wasm := modhost.NewWasmRuntime(ctx)
	l := modload.New(&modload.Config{
		Rules:   rules,
		Mirrors: cfg.Mirrors,
		Env:     cfg.Classifier(nil),
		Fetcher: &modfetch.Mux{
			Local:  local,
			Remote: remote,
		},
		Engine: modexec.NewEngine(&modexec.Options{
			Logger:    logger,
			LogFrames: dbg.Exec,
		}),
		Wasm:               wasm,
		PreloadConcurrency: concurrency,
		Logger:             logger,
		LogScan:            dbg.Scan,
	})
	return &session{
		cfg:    cfg,
		loader: l,
		logger: logger,
		wasm:   wasm,
	}, nil
}

func (s *session) Close(ctx context.Context) error {
	return s.wasm.Close(ctx)
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
