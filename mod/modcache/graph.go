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

package modcache

import (
	"context"
	"sync"

	"cuelabs.dev/go/modloader/mod/module"
)

type parentKey struct{}

// WithParent records node as the load on whose behalf loads made
// with ctx are waited for. Nodes are canonical paths for local modules
// and specifiers for remote ones.
func WithParent(ctx context.Context, node string) context.Context {
	return context.WithValue(ctx, parentKey{}, node)
}

func parentOf(ctx context.Context) string {
	p, _ := ctx.Value(parentKey{}).(string)
	return p
}

// Enter records that the load running under ctx, if any, waits on
// node, and returns a function that removes the record. It fails with
// a [*module.CyclicDependencyError] if node is already waiting,
// directly or not, on that load.
func (c *Cache) Enter(ctx context.Context, node string) (func(), error) {
	parent := parentOf(ctx)
	if parent == "" {
		return func() {}, nil
	}
	if err := c.waits.enter(parent, node); err != nil {
		return nil, err
	}
	return func() { c.waits.leave(parent, node) }, nil
}

// waitGraph records which module loads are waiting on which others.
// An edge that would close a cycle is refused, since the loads on
// that cycle could never finish.
type waitGraph struct {
	mu    sync.Mutex
	edges map[string]map[string]int
}

// enter adds the edge from parent to child, or returns a
// [*module.CyclicDependencyError] if child already waits on parent.
func (g *waitGraph) enter(parent, child string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if parent == child {
		return &module.CyclicDependencyError{Chain: []string{parent, child}}
	}
	if p := g.path(child, parent); p != nil {
		return &module.CyclicDependencyError{Chain: append([]string{parent}, p...)}
	}
	if g.edges == nil {
		g.edges = make(map[string]map[string]int)
	}
	if g.edges[parent] == nil {
		g.edges[parent] = make(map[string]int)
	}
	g.edges[parent][child]++
	return nil
}

func (g *waitGraph) leave(parent, child string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.edges[parent]
	if out[child]--; out[child] <= 0 {
		delete(out, child)
	}
	if len(out) == 0 {
		delete(g.edges, parent)
	}
}

// path returns a path of edges from "from" to "to", including both
// ends, or nil if there is none. It must be called with mu held.
func (g *waitGraph) path(from, to string) []string {
	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == to {
			var p []string
			for ; n != ""; n = prev[n] {
				p = append([]string{n}, p...)
			}
			return p
		}
		for next := range g.edges[n] {
			if _, seen := prev[next]; !seen {
				prev[next] = n
				queue = append(queue, next)
			}
		}
	}
	return nil
}
