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

// Package httplog provides an HTTP transport that logs the requests
// made while probing and fetching modules.
package httplog

import (
	"context"
	"net/http"
	"time"
)

// Logger receives one event per request sent and per response
// received by [Transport].
type Logger interface {
	// Log logs an event of the given kind with the given request
	// or response (either *Request or *Response).
	Log(ctx context.Context, kind EventKind, r RequestOrResponse)
}

type EventKind int

const (
	NoEvent EventKind = iota
	KindClientSendRequest
	KindClientRecvResponse
)

func (k EventKind) String() string {
	switch k {
	case KindClientSendRequest:
		return "http client->"
	case KindClientRecvResponse:
		return "http client<-"
	default:
		return "unknown"
	}
}

// Request represents an outgoing module request.
type Request struct {
	ID      int64       `json:"id"`
	Purpose string      `json:"purpose,omitempty"`
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Header  http.Header `json:"header"`
}

func (*Request) requestOrResponse() {}

// RequestOrResponse is implemented by [*Request] and [*Response].
type RequestOrResponse interface {
	requestOrResponse()
}

// Response represents the outcome of a module request.
// Size is the advertised content length, or -1 when unknown.
type Response struct {
	ID         int64         `json:"id"`
	Purpose    string        `json:"purpose,omitempty"`
	Method     string        `json:"method,omitempty"`
	URL        string        `json:"url,omitempty"`
	Error      string        `json:"error,omitempty"`
	StatusCode int           `json:"statusCode,omitempty"`
	Size       int64         `json:"size,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

func (*Response) requestOrResponse() {}
