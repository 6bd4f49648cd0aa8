// Package graph builds and serves the directed transaction multigraph.
// The graph and its illicit seed set are rebuilt off to the side and
// published atomically — per DESIGN NOTES §9 ("global mutable graph"),
// readers capture the current *Snapshot by pointer at call entry and read
// it lock-free; a rebuild never mutates a snapshot a reader already holds.
package graph

import (
	"sort"
	"sync/atomic"
)

// Edge carries the aggregated attributes of every u→v transaction.
type Edge struct {
	TxCount int
	Amount  float64
}

// Snapshot is an immutable directed multigraph over wallet identifiers,
// paired with the illicit seed set derived from the same node ordering.
// Once built, a Snapshot is never mutated — a rebuild produces a new one.
type Snapshot struct {
	nodes    []string                  // sorted, stable iteration order
	nodeSet  map[string]struct{}
	out      map[string]map[string]*Edge // source -> dest -> edge
	in       map[string]map[string]*Edge // dest -> source -> edge (same Edge values as out)
	illicit  map[string]struct{}
	builtAt  int64 // monotonic build sequence, for diagnostics only
}

// Nodes returns the sorted wallet identifiers in the graph.
func (s *Snapshot) Nodes() []string { return s.nodes }

// NodeCount returns the number of distinct wallets.
func (s *Snapshot) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of distinct directed (u,v) pairs.
func (s *Snapshot) EdgeCount() int {
	n := 0
	for _, m := range s.out {
		n += len(m)
	}
	return n
}

// HasNode reports whether wallet appears in the graph.
func (s *Snapshot) HasNode(wallet string) bool {
	_, ok := s.nodeSet[wallet]
	return ok
}

// IsIllicit reports whether wallet is in the derived illicit seed set.
func (s *Snapshot) IsIllicit(wallet string) bool {
	_, ok := s.illicit[wallet]
	return ok
}

// IllicitSet returns the derived illicit seed set. Callers must not
// mutate the returned map.
func (s *Snapshot) IllicitSet() map[string]struct{} { return s.illicit }

// IllicitCount returns the size of the illicit seed set.
func (s *Snapshot) IllicitCount() int { return len(s.illicit) }

// OverrideIllicitForTest replaces the sampled illicit set with an exact
// one. Risk/subgraph tests need fixtures with a known illicit set, but
// sampleIllicit's output depends on shuffle order, so tests build a
// Snapshot normally and then pin the illicit set explicitly, mirroring
// the teacher's resetTaintMapForTest pattern for package-owned state.
func (s *Snapshot) OverrideIllicitForTest(wallets []string) {
	m := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		m[w] = struct{}{}
	}
	s.illicit = m
}

// Successors returns the distinct wallets wallet has sent to.
func (s *Snapshot) Successors(wallet string) []string {
	return keysOf(s.out[wallet])
}

// Predecessors returns the distinct wallets that have sent to wallet.
func (s *Snapshot) Predecessors(wallet string) []string {
	return keysOf(s.in[wallet])
}

// Neighbors returns the undirected neighborhood (predecessors ∪
// successors) used by the risk engine's k-hop BFS.
func (s *Snapshot) Neighbors(wallet string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for n := range s.out[wallet] {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	for n := range s.in[wallet] {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// InDegree returns the number of distinct predecessors.
func (s *Snapshot) InDegree(wallet string) int { return len(s.in[wallet]) }

// OutDegree returns the number of distinct successors.
func (s *Snapshot) OutDegree(wallet string) int { return len(s.out[wallet]) }

// EdgeTo returns the aggregated edge from u to v, if one exists.
func (s *Snapshot) EdgeTo(u, v string) (Edge, bool) {
	m, ok := s.out[u]
	if !ok {
		return Edge{}, false
	}
	e, ok := m[v]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

func keysOf(m map[string]*Edge) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Handle is the atomically-swappable reference to the current Snapshot.
// Rebuild constructs a new Snapshot off to the side and then calls Store;
// any reader holding an old *Snapshot (e.g. a scoring run or explain call
// in flight) keeps reading it to completion, per the spec's mandated
// "continue on old snapshot" semantics.
type Handle struct {
	ptr atomic.Pointer[Snapshot]
}

// Load returns the current snapshot, or nil if none has been built yet.
func (h *Handle) Load() *Snapshot { return h.ptr.Load() }

// Store atomically publishes a newly built snapshot.
func (h *Handle) Store(s *Snapshot) { h.ptr.Store(s) }
