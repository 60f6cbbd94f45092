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
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// FSFetcher reads root-relative paths from an [fs.FS]. The path
// "/src/app.ts" names the file "src/app.ts" within FS.
type FSFetcher struct {
	FS fs.FS
}

func (f *FSFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := fsName(url)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(f.FS, name)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		if info, serr := fs.Stat(f.FS, name); serr == nil && info.IsDir() {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
	}
	return data, err
}

// Exists succeeds if url names a regular file.
func (f *FSFetcher) Exists(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := fsName(url)
	if err != nil {
		return err
	}
	info, err := fs.Stat(f.FS, name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return nil
}

func fsName(url string) (string, error) {
	name := strings.TrimPrefix(url, "file://")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		name = "."
	}
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("invalid path %q", url)
	}
	return name, nil
}
