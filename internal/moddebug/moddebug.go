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

// Package moddebug holds the MODLOADER_DEBUG flags.
package moddebug

import (
	"cuelabs.dev/go/modloader/internal/envflag"
)

// EnvVar is the environment variable holding the debug flags.
const EnvVar = "MODLOADER_DEBUG"

// Config holds the set of known MODLOADER_DEBUG flags.
//
// When adding, deleting, or modifying entries below,
// update the help text of the modloader command as well.
type Config struct {
	// HTTP enables logging of every HTTP request and response
	// made while probing and fetching modules.
	HTTP bool

	// Scan logs the specifiers found by the dependency scanner
	// for every module source.
	Scan bool

	// Exec logs module context frames as they are pushed and
	// popped by the executor.
	Exec bool

	// Preload sets the maximum number of dependency prefetches
	// that run at the same time for one module.
	Preload int `envflag:"default:8"`
}

// Parse reads the flags from the MODLOADER_DEBUG variable as
// returned by getenv.
func Parse(getenv func(string) string) (Config, error) {
	var cfg Config
	if err := envflag.Init(&cfg, getenv, EnvVar); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
