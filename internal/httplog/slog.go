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

package httplog

import (
	"context"
	"log/slog"
)

// SlogLogger implements [Logger] by writing each event as a
// single slog record at Level.
type SlogLogger struct {
	Logger *slog.Logger
	Level  slog.Level
}

func (l SlogLogger) Log(ctx context.Context, kind EventKind, r RequestOrResponse) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch r := r.(type) {
	case *Request:
		logger.Log(ctx, l.Level, kind.String(),
			"id", r.ID, "purpose", r.Purpose, "method", r.Method, "url", r.URL)
	case *Response:
		attrs := []any{"id", r.ID, "purpose", r.Purpose, "url", r.URL, "duration", r.Duration}
		if r.Error != "" {
			attrs = append(attrs, "error", r.Error)
		} else {
			attrs = append(attrs, "status", r.StatusCode, "size", r.Size)
		}
		logger.Log(ctx, l.Level, kind.String(), attrs...)
	}
}
