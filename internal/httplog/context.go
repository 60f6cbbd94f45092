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

import "context"

type (
	allowedURLQueryParamsKey struct{}
	purposeKey               struct{}
)

// ContextWithAllowedURLQueryParams returns a context that will allow only the URL
// query parameters for which the given allow function returns true. All others will
// be redacted from the logs.
func ContextWithAllowedURLQueryParams(ctx context.Context, allow func(key string) bool) context.Context {
	return context.WithValue(ctx, allowedURLQueryParamsKey{}, allow)
}

func queryParamChecker(ctx context.Context) func(string) bool {
	f, ok := ctx.Value(allowedURLQueryParamsKey{}).(func(string) bool)
	if ok {
		return f
	}
	return func(string) bool {
		return false
	}
}

// ContextWithPurpose returns a context that tags the requests
// made with it, such as "probe" or "fetch", so that existence
// checks can be told apart from source downloads in the logs.
func ContextWithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// Purpose returns the purpose recorded by [ContextWithPurpose].
func Purpose(ctx context.Context) string {
	s, _ := ctx.Value(purposeKey{}).(string)
	return s
}
