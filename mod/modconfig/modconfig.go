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

// Package modconfig provides access to the module loader
// configuration: provider rules, mirrors and environment overrides.
package modconfig

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"cuelabs.dev/go/modloader/internal/envclass"
	"cuelabs.dev/go/modloader/mod/modrule"
)

// EnvConfig names the environment variable holding the path of the
// default configuration file.
const EnvConfig = "MODLOADER_CONFIG"

//go:embed schema.cue
var schema []byte

// Config holds the loader configuration. The zero value is valid and
// has no rules.
type Config struct {
	// Rules maps remote specifiers onto provider packages.
	Rules []modrule.Rule `json:"rules,omitempty" yaml:"rules,omitempty" toml:"rules,omitempty"`

	// Mirrors are tried after the bases of rules that set Fallback.
	Mirrors []string `json:"mirrors,omitempty" yaml:"mirrors,omitempty" toml:"mirrors,omitempty"`

	// Origin is the HTTP origin serving root-relative local modules.
	// It is used when Root is empty.
	Origin string `json:"origin,omitempty" yaml:"origin,omitempty" toml:"origin,omitempty"`

	// Root is a directory serving root-relative local modules.
	Root string `json:"root,omitempty" yaml:"root,omitempty" toml:"root,omitempty"`

	// CI overrides the detection of CI-like environments when set.
	CI *bool `json:"ci,omitempty" yaml:"ci,omitempty" toml:"ci,omitempty"`

	// CIHosts holds host name patterns treated as CI-like.
	CIHosts []string `json:"ciHosts,omitempty" yaml:"ciHosts,omitempty" toml:"ciHosts,omitempty"`

	// PreloadConcurrency limits concurrent prefetches per module.
	PreloadConcurrency int `json:"preloadConcurrency,omitempty" yaml:"preloadConcurrency,omitempty" toml:"preloadConcurrency,omitempty"`
}

// Load reads the configuration file at path. The format is chosen by
// the file extension: .cue, .yaml, .yml, .toml or .json.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse parses configuration data in the format implied by the
// extension of filename, and validates the result.
func Parse(data []byte, filename string) (*Config, error) {
	var cfg Config
	var err error
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".cue":
		err = parseCUE(data, filename, &cfg)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err = dec.Decode(&cfg); errors.Is(err, io.EOF) {
			err = nil
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	default:
		return nil, fmt.Errorf("cannot load %s: unknown configuration format %q", filename, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load %s: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filename, err)
	}
	return &cfg, nil
}

// parseCUE unifies data with the embedded schema before decoding it.
func parseCUE(data []byte, filename string, cfg *Config) error {
	ctx := cuecontext.New()
	schemaValue := ctx.CompileBytes(schema, cue.Filename("schema.cue"))
	if err := schemaValue.Err(); err != nil {
		return fmt.Errorf("internal error: cannot compile schema: %w", err)
	}
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return err
	}
	v = schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return v.Decode(cfg)
}

// Default returns the configuration named by $MODLOADER_CONFIG, or
// an empty configuration if that is unset. If env is nil, the
// process environment is used.
func Default(env []string) (*Config, error) {
	path := getenvFunc(env)(EnvConfig)
	if path == "" {
		return &Config{}, nil
	}
	return Load(path)
}

// Validate checks the rules and limits in c.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.RuleSet(); err != nil {
		errs = append(errs, err)
	}
	if c.PreloadConcurrency < 0 {
		errs = append(errs, fmt.Errorf("negative preload concurrency %d", c.PreloadConcurrency))
	}
	for i, m := range c.Mirrors {
		if m == "" {
			errs = append(errs, fmt.Errorf("mirror %d is empty", i))
		}
	}
	if c.Root != "" && c.Origin != "" {
		errs = append(errs, fmt.Errorf("root and origin are mutually exclusive"))
	}
	return errors.Join(errs...)
}

// RuleSet returns the rules of c as a validated set.
func (c *Config) RuleSet() (*modrule.Set, error) {
	return modrule.NewSet(c.Rules)
}

// Classifier returns the environment classifier described by c,
// reading variables with getenv. If getenv is nil, the process
// environment is used.
func (c *Config) Classifier(getenv func(string) string) envclass.Classifier {
	if c.CI != nil {
		return envclass.Static(*c.CI)
	}
	return envclass.FromEnv(getenv, c.CIHosts...)
}

// Clone returns a deep copy of c. A nil c yields a zero Config.
func (c *Config) Clone() *Config {
	c1 := newRef(c)
	c1.Rules = slices.Clone(c1.Rules)
	c1.Mirrors = slices.Clone(c1.Mirrors)
	c1.CIHosts = slices.Clone(c1.CIHosts)
	if c1.CI != nil {
		c1.CI = newRef(c1.CI)
	}
	return c1
}

func getenvFunc(env []string) func(string) string {
	if env == nil {
		return os.Getenv
	}
	return func(key string) string {
		for _, e := range slices.Backward(env) {
			if len(e) >= len(key)+1 && e[len(key)] == '=' && e[:len(key)] == key {
				return e[len(key)+1:]
			}
		}
		return ""
	}
}

func newRef[T any](x *T) *T {
	var x1 T
	if x != nil {
		x1 = *x
	}
	return &x1
}
