package risk

import (
	"math"
	"testing"

	"github.com/rawblock/aml-risk-platform/internal/graph"
	"github.com/rawblock/aml-risk-platform/pkg/models"
)

func buildChain(t *testing.T, pairs [][2]string, illicit []string) *graph.Snapshot {
	t.Helper()
	rows := make([]models.Transaction, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, models.Transaction{Sender: p[0], Receiver: p[1], Amount: 1})
	}
	snap, _, err := graph.BuildFromTransactions(rows, 1, 0.0001)
	if err != nil {
		t.Fatalf("BuildFromTransactions: %v", err)
	}
	snap.OverrideIllicitForTest(illicit)
	return snap
}

func closeEnough(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// S1 — linear chain, no normalization.
func TestScoreWallet_S1LinearChain(t *testing.T) {
	snap := buildChain(t, [][2]string{{"W1", "W2"}, {"W2", "W3"}}, []string{"W3"})

	cfg := models.RiskConfig{HopWeights: []float64{1.0, 0.6, 0.3}, DegreeNormalize: false}
	result := ScoreWallet(snap, "W1", cfg)

	if !result.InGraph {
		t.Fatalf("expected W1 to be in graph")
	}
	wantCounts := []int{0, 1, 1}
	for hop, want := range wantCounts {
		if got := result.Exposures[hop].IllicitCount; got != want {
			t.Fatalf("hop %d: expected illicit count %d, got %d", hop, want, got)
		}
	}
	if !closeEnough(result.RiskScore, 0.9) {
		t.Fatalf("expected risk_score=0.9, got %v", result.RiskScore)
	}
}

func TestExplainWallet_S1ExactHop(t *testing.T) {
	snap := buildChain(t, [][2]string{{"W1", "W2"}, {"W2", "W3"}}, []string{"W3"})

	result := ExplainWallet(snap, "W1", []float64{1.0, 0.6, 0.3}, false, nil, 20, 50)

	if !result.InGraph {
		t.Fatalf("expected W1 to be in graph")
	}
	if len(result.HopBreakdown) != 3 {
		t.Fatalf("expected 3 hop rows, got %d", len(result.HopBreakdown))
	}
	if result.HopBreakdown[0].Contribution != 0 || result.HopBreakdown[1].Contribution != 0 {
		t.Fatalf("expected hops 0 and 1 to contribute 0, got %+v", result.HopBreakdown[:2])
	}
	if !closeEnough(result.HopBreakdown[2].Contribution, 0.3) {
		t.Fatalf("expected hop 2 contribution 0.3, got %v", result.HopBreakdown[2].Contribution)
	}
	if !closeEnough(result.ExplainScore, 0.3) {
		t.Fatalf("expected explain_score=0.3, got %v", result.ExplainScore)
	}
}

// Invariant 2: k_hop_exposure(v,0) in {0,1}, equals 1 iff v in illicit.
func TestKHopExposure_ZeroHopMatchesIllicitMembership(t *testing.T) {
	snap := buildChain(t, [][2]string{{"A", "B"}, {"B", "C"}}, []string{"B"})

	if got := KHopExposure(snap, "B", 0); got != 1 {
		t.Fatalf("expected exposure(B,0)=1, got %d", got)
	}
	if got := KHopExposure(snap, "A", 0); got != 0 {
		t.Fatalf("expected exposure(A,0)=0, got %d", got)
	}
}

// Invariant 3: k_hop_exposure(v,k) is monotone non-decreasing in k.
func TestKHopExposure_MonotoneNonDecreasing(t *testing.T) {
	pairs := [][2]string{{"A", "B"}, {"B", "C"}, {"C", "D"}, {"D", "E"}}
	snap := buildChain(t, pairs, []string{"A", "B", "C", "D", "E"})

	prev := -1
	for k := 0; k <= 4; k++ {
		got := KHopExposure(snap, "C", k)
		if got < prev {
			t.Fatalf("exposure decreased at k=%d: %d < %d", k, got, prev)
		}
		prev = got
	}
	if prev != 5 {
		t.Fatalf("expected exposure to reach 5 at k=4 with all nodes illicit, got %d", prev)
	}
}

// Invariant 4: k_hop_layers are pairwise disjoint and their union is the
// reachable set within H hops.
func TestKHopLayers_PairwiseDisjointUnion(t *testing.T) {
	pairs := [][2]string{{"A", "B"}, {"B", "C"}, {"C", "D"}}
	snap := buildChain(t, pairs, nil)

	layers := KHopLayers(snap, "A", 3)
	seen := make(map[string]int)
	for hop, layer := range layers {
		for _, n := range layer {
			if other, ok := seen[n]; ok {
				t.Fatalf("wallet %s appears in both layer %d and %d", n, other, hop)
			}
			seen[n] = hop
		}
	}
	for _, w := range []string{"A", "B", "C", "D"} {
		if _, ok := seen[w]; !ok {
			t.Fatalf("expected %s to be reachable within 3 hops of A", w)
		}
	}
	if layers[0][0] != "A" {
		t.Fatalf("expected layer 0 to be {A}, got %v", layers[0])
	}
}

// Invariant 6: explain_score never exceeds the stored risk_score for the
// same config, since cumulative-per-hop exposure is always >= exact-hop
// exposure at the same hop.
func TestExplainScore_NeverExceedsStoredRiskScore(t *testing.T) {
	pairs := [][2]string{{"A", "B"}, {"B", "C"}, {"C", "D"}, {"D", "E"}, {"B", "E"}}
	snap := buildChain(t, pairs, []string{"C", "E"})

	cfg := models.RiskConfig{HopWeights: []float64{1.0, 0.6, 0.3}, DegreeNormalize: false}
	score := ScoreWallet(snap, "A", cfg)
	explain := ExplainWallet(snap, "A", cfg.HopWeights, cfg.DegreeNormalize, nil, 20, 50)

	if explain.ExplainScore > score.RiskScore+1e-9 {
		t.Fatalf("explain_score %v exceeds stored risk_score %v", explain.ExplainScore, score.RiskScore)
	}
}

func TestScoreWallet_NotInGraph(t *testing.T) {
	snap := buildChain(t, [][2]string{{"A", "B"}}, nil)
	cfg := models.DefaultRiskConfig()

	result := ScoreWallet(snap, "ghost", cfg)
	if result.InGraph {
		t.Fatalf("expected ghost to be absent from graph")
	}
	if result.Reason != ReasonNotInGraph {
		t.Fatalf("expected reason %q, got %q", ReasonNotInGraph, result.Reason)
	}
	if result.RiskScore != 0 {
		t.Fatalf("expected zero score for absent wallet, got %v", result.RiskScore)
	}
}

func TestScoreWallet_DegreeNormalizeDividesScore(t *testing.T) {
	snap := buildChain(t, [][2]string{{"A", "B"}, {"B", "C"}}, []string{"C"})
	cfg := models.RiskConfig{HopWeights: []float64{1.0, 0.6, 0.3}, DegreeNormalize: true}

	result := ScoreWallet(snap, "A", cfg)
	// raw = 0.9 as in S1; A has out_degree=1, in_degree=0 => deg=1 => /sqrt(1)=1
	if !closeEnough(result.RiskScore, 0.9) {
		t.Fatalf("expected normalized score 0.9 (deg=1), got %v", result.RiskScore)
	}
}
