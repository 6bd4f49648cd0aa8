// Package risk implements the k-hop exposure traversal, the weighted risk
// score, and the exact-hop explainability decomposition. Every algorithm
// here is grounded directly on
// original_source/services/scoring/risk_engine.py, translated from
// networkx/pandas into methods over a *graph.Snapshot.
package risk

import (
	"math"
	"sort"

	"github.com/rawblock/aml-risk-platform/internal/graph"
	"github.com/rawblock/aml-risk-platform/pkg/models"
)

// ReasonNotInGraph is the reason string returned when a wallet absent
// from the graph is scored or explained.
const ReasonNotInGraph = "wallet_not_in_graph"

func roundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// KHopExposure counts illicit wallets within k undirected hops of wallet.
// k=0 is 1 iff wallet is itself illicit. For k>=1 it BFS-expands the
// undirected neighborhood hop by hop, stopping early once the frontier
// empties, and returns the cumulative count of illicit wallets visited.
func KHopExposure(s *graph.Snapshot, wallet string, k int) int {
	if k == 0 {
		if s.IsIllicit(wallet) {
			return 1
		}
		return 0
	}

	visited := map[string]struct{}{wallet: {}}
	frontier := []string{wallet}

	for h := 0; h < k; h++ {
		next := make(map[string]struct{})
		for _, n := range frontier {
			for _, nb := range s.Neighbors(n) {
				if _, ok := visited[nb]; !ok {
					next[nb] = struct{}{}
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontierSlice := make([]string, 0, len(next))
		for n := range next {
			visited[n] = struct{}{}
			frontierSlice = append(frontierSlice, n)
		}
		frontier = frontierSlice
	}

	count := 0
	for n := range visited {
		if s.IsIllicit(n) {
			count++
		}
	}
	return count
}

// KHopLayers returns L where L[h] is the set of nodes at exactly h
// undirected hops from wallet (L[0] = {wallet}), computed by the same
// BFS as KHopExposure but recording each hop's newly-discovered nodes
// instead of accumulating into an illicit count. Used for the
// exact-hop explainability decomposition and by the subgraph extractor.
func KHopLayers(s *graph.Snapshot, wallet string, maxHops int) [][]string {
	if !s.HasNode(wallet) {
		return nil
	}

	layers := make([][]string, 0, maxHops+1)
	layers = append(layers, []string{wallet})
	visited := map[string]struct{}{wallet: {}}
	frontier := []string{wallet}

	for h := 1; h <= maxHops; h++ {
		next := make(map[string]struct{})
		for _, n := range frontier {
			for _, nb := range s.Neighbors(n) {
				if _, ok := visited[nb]; !ok {
					next[nb] = struct{}{}
				}
			}
		}
		layer := make([]string, 0, len(next))
		for n := range next {
			visited[n] = struct{}{}
			layer = append(layer, n)
		}
		sort.Strings(layer)
		layers = append(layers, layer)
		frontier = layer
		// Keep appending empty layers for hops beyond the frontier's
		// reach — matches the original's "keep appending empties" note.
	}
	return layers
}

// ScoreResult is the per-wallet outcome of ScoreWallet.
type ScoreResult struct {
	Wallet    string
	InGraph   bool
	Reason    string // set to ReasonNotInGraph when !InGraph
	RiskScore float64
	Exposures []models.HopExposure
	InDegree  int
	OutDegree int
}

// ScoreWallet computes the weighted risk score for wallet:
// raw = Σ w_i · exposure(wallet, i+1) over the hop weights, so the first
// weight applies to illicit wallets within one hop; optionally divided by
// √max(1, in_degree+out_degree), rounded to 6 decimals. Wallets absent
// from the graph return a zero score with ReasonNotInGraph.
func ScoreWallet(s *graph.Snapshot, wallet string, cfg models.RiskConfig) ScoreResult {
	if !s.HasNode(wallet) {
		return ScoreResult{Wallet: wallet, InGraph: false, Reason: ReasonNotInGraph}
	}

	exposures := make([]models.HopExposure, len(cfg.HopWeights))
	var raw float64
	for i, w := range cfg.HopWeights {
		hop := i + 1
		cnt := KHopExposure(s, wallet, hop)
		exposures[i] = models.HopExposure{Hop: hop, Weight: w, IllicitCount: cnt}
		raw += w * float64(cnt)
	}

	inDeg, outDeg := s.InDegree(wallet), s.OutDegree(wallet)
	if cfg.DegreeNormalize {
		deg := inDeg + outDeg
		if deg < 1 {
			deg = 1
		}
		raw /= math.Sqrt(float64(deg))
	}

	return ScoreResult{
		Wallet:    wallet,
		InGraph:   true,
		RiskScore: roundTo(raw, 6),
		Exposures: exposures,
		InDegree:  inDeg,
		OutDegree: outDeg,
	}
}

// ScoreAllWallets scores every node currently in the graph — the
// per-run fan-out used by the scoring run driver.
func ScoreAllWallets(s *graph.Snapshot, cfg models.RiskConfig) []ScoreResult {
	nodes := s.Nodes()
	out := make([]ScoreResult, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ScoreWallet(s, n, cfg))
	}
	return out
}
