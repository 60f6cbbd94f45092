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

// Package envclass classifies the environment a loader runs in as
// CI-like or not. The classification only affects the order in which
// remote bases are tried.
package envclass

import (
	"os"
	"path"
	"strconv"
	"strings"
)

// Classifier reports whether the current environment is CI-like.
type Classifier interface {
	IsCI() bool
}

// Static is a Classifier with a fixed answer.
type Static bool

func (s Static) IsCI() bool { return bool(s) }

// ciVars holds environment variables set by common CI providers.
// CI and CONTINUOUS_INTEGRATION are interpreted as booleans; the rest
// count when they are non-empty.
var ciVars = []string{
	"BUILD_NUMBER",
	"BUILDKITE",
	"CIRCLECI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"JENKINS_URL",
	"TEAMCITY_VERSION",
	"TF_BUILD",
}

// Env classifies the environment from variables and the host name.
type Env struct {
	// Getenv looks up environment variables. If it is nil, [os.Getenv] is used.
	Getenv func(string) string

	// Hostname is matched against HostPatterns. If it is empty,
	// [os.Hostname] is used.
	Hostname string

	// HostPatterns holds [path.Match] patterns; a host name
	// matching any of them is CI-like.
	HostPatterns []string
}

// FromEnv returns a Classifier reading the given environment,
// treating hosts that match any of the patterns as CI-like.
func FromEnv(getenv func(string) string, hostPatterns ...string) *Env {
	return &Env{
		Getenv:       getenv,
		HostPatterns: hostPatterns,
	}
}

func (e *Env) IsCI() bool {
	getenv := e.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, key := range []string{"CI", "CONTINUOUS_INTEGRATION"} {
		if v := getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
			return true
		}
	}
	for _, key := range ciVars {
		if getenv(key) != "" {
			return true
		}
	}
	if len(e.HostPatterns) == 0 {
		return false
	}
	host := e.Hostname
	if host == "" {
		host, _ = os.Hostname()
	}
	host = strings.ToLower(host)
	for _, pat := range e.HostPatterns {
		if ok, _ := path.Match(strings.ToLower(pat), host); ok {
			return true
		}
	}
	return false
}
