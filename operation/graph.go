// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package operation

import "fmt"

// arena is the closure of a set of root operations, addressed by index.
// Edges are stored as index lists so the graph holds no back references.
type arena struct {
	nodes      []*core
	index      map[*core]int
	dependents [][]int // u -> v means u must settle before v runs
	indeg      []int
}

func newArena(roots ...*core) *arena {
	a := &arena{index: make(map[*core]int)}
	var visit func(c *core)
	visit = func(c *core) {
		if _, ok := a.index[c]; ok {
			return
		}
		a.index[c] = len(a.nodes)
		a.nodes = append(a.nodes, c)
		for _, d := range c.dependencies() {
			visit(d)
		}
	}
	for _, r := range roots {
		visit(r)
	}

	a.dependents = make([][]int, len(a.nodes))
	a.indeg = make([]int, len(a.nodes))
	for v, c := range a.nodes {
		seen := make(map[int]struct{})
		for _, d := range c.dependencies() {
			u := a.index[d]
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			a.dependents[u] = append(a.dependents[u], v)
			a.indeg[v]++
		}
	}
	return a
}

func (a *arena) len() int { return len(a.nodes) }

// order returns a topological order of the arena, or ErrCycle naming one
// operation on the cycle.
func (a *arena) order() ([]int, error) {
	indeg := append([]int(nil), a.indeg...)
	queue := make([]int, 0, len(a.nodes))
	for u, d := range indeg {
		if d == 0 {
			queue = append(queue, u)
		}
	}
	out := make([]int, 0, len(a.nodes))
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		out = append(out, u)
		for _, v := range a.dependents[u] {
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	if len(out) != len(a.nodes) {
		for u, d := range indeg {
			if d > 0 {
				return nil, fmt.Errorf("%w through %q", ErrCycle, a.nodes[u].name)
			}
		}
	}
	return out, nil
}
