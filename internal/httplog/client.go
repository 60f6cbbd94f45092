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
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"time"
)

// TransportConfig holds configuration for [Transport].
type TransportConfig struct {
	// Logger is used to log the requests. If it is nil,
	// the zero [SlogLogger] will be used.
	Logger Logger

	// Transport is used as the underlying transport for
	// making HTTP requests. If it is nil,
	// [http.DefaultTransport] will be used.
	Transport http.RoundTripper

	// IncludeAllQueryParams causes all URL query parameters to be included
	// rather than redacted using [RedactedURL].
	IncludeAllQueryParams bool
}

// Transport returns an [http.RoundTripper] implementation that
// logs HTTP requests. If cfg0 is nil, it's equivalent to a pointer
// to a zero-valued [TransportConfig].
//
// Bodies are never logged: module sources are large and the
// interesting information is which URL was tried and how it went.
func Transport(cfg0 *TransportConfig) http.RoundTripper {
	var cfg TransportConfig
	if cfg0 != nil {
		cfg = *cfg0
	}
	if cfg.Logger == nil {
		cfg.Logger = SlogLogger{}
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	return &loggingTransport{
		cfg: cfg,
		now: time.Now,
	}
}

type loggingTransport struct {
	cfg TransportConfig
	now func() time.Time
}

var seq atomic.Int64

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	id := seq.Add(1)
	var reqURL string
	if t.cfg.IncludeAllQueryParams {
		reqURL = req.URL.String()
	} else {
		reqURL = RedactedURL(ctx, req.URL).String()
	}
	purpose := Purpose(ctx)
	t.cfg.Logger.Log(ctx, KindClientSendRequest, &Request{
		ID:      id,
		Purpose: purpose,
		Method:  req.Method,
		URL:     reqURL,
		Header:  redactAuthorization(req.Header),
	})
	start := t.now()
	resp, err := t.cfg.Transport.RoundTrip(req)
	logResp := &Response{
		ID:       id,
		Purpose:  purpose,
		Method:   req.Method,
		URL:      reqURL,
		Duration: t.now().Sub(start),
	}
	if err != nil {
		logResp.Error = err.Error()
		t.cfg.Logger.Log(ctx, KindClientRecvResponse, logResp)
		return nil, err
	}
	logResp.StatusCode = resp.StatusCode
	logResp.Size = resp.ContentLength
	t.cfg.Logger.Log(ctx, KindClientRecvResponse, logResp)
	return resp, nil
}

func redactAuthorization(h http.Header) http.Header {
	auths, ok := h["Authorization"]
	if !ok {
		return h
	}
	h = maps.Clone(h) // shallow copy
	auths = slices.Clone(auths)
	for i, auth := range auths {
		if kind, _, ok := strings.Cut(auth, " "); ok && (kind == "Basic" || kind == "Bearer") {
			auths[i] = kind + " REDACTED"
		} else {
			auths[i] = "REDACTED"
		}
	}
	h["Authorization"] = auths
	return h
}

// RedactedURL returns u with query parameters redacted according
// to [ContextWithAllowedURLQueryParams].
// If there is no allow function associated with the context,
// all query parameters will be redacted.
func RedactedURL(ctx context.Context, u *url.URL) *url.URL {
	if u.RawQuery == "" {
		return u
	}
	qs := u.Query()
	allow := queryParamChecker(ctx)
	changed := false
	for k, v := range qs {
		if allow(k) {
			continue
		}
		changed = true
		for i := range v {
			v[i] = "REDACTED"
		}
	}
	if !changed {
		return u
	}
	r := *u
	r.RawQuery = qs.Encode()
	return &r
}
