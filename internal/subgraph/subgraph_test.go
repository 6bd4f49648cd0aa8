package subgraph

import (
	"fmt"
	"testing"

	"github.com/rawblock/aml-risk-platform/internal/graph"
	"github.com/rawblock/aml-risk-platform/pkg/models"
)

// buildStar builds a center wallet connected to hop1Count hop-1 wallets,
// each of which is connected to hop2Per distinct hop-2 wallets — a fan-out
// fixture for the stratification scenario.
func buildStar(t *testing.T, hop1Count, hop2Per int) *graph.Snapshot {
	t.Helper()
	var rows []models.Transaction
	for i := 0; i < hop1Count; i++ {
		h1 := fmt.Sprintf("hop1-%04d", i)
		rows = append(rows, models.Transaction{Sender: "center", Receiver: h1, Amount: 1})
		for j := 0; j < hop2Per; j++ {
			h2 := fmt.Sprintf("hop2-%04d-%04d", i, j)
			rows = append(rows, models.Transaction{Sender: h1, Receiver: h2, Amount: 1})
		}
	}
	snap, _, err := graph.BuildFromTransactions(rows, 1, 0.0001)
	if err != nil {
		t.Fatalf("BuildFromTransactions: %v", err)
	}
	return snap
}

// S4 — subgraph stratification: 200 hop-1 neighbors, 2000 hop-2 neighbors,
// node_limit=21 should yield center + 10 hop-1 + 10 hop-2, not 20 hop-2.
func TestExtract_S4Stratification(t *testing.T) {
	snap := buildStar(t, 200, 10)

	result, err := Extract(snap, nil, Params{
		Center:    "center",
		Hops:      2,
		NodeLimit: 21,
		EdgeLimit: 1000,
		MinAmount: 0,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(result.Nodes) != 21 {
		t.Fatalf("expected 21 nodes, got %d", len(result.Nodes))
	}

	var hop1, hop2 int
	for _, n := range result.Nodes {
		switch n.Hop {
		case 1:
			hop1++
		case 2:
			hop2++
		}
	}
	if hop1 != 10 || hop2 != 10 {
		t.Fatalf("expected 10 hop-1 and 10 hop-2 nodes, got hop1=%d hop2=%d", hop1, hop2)
	}
}

// Invariant 7: every edge's endpoints are in nodes; center has hop 0; all
// other nodes have hop in [1, hops]; edges/nodes respect their limits.
func TestExtract_InvariantEdgesNodesHopsLimits(t *testing.T) {
	snap := buildStar(t, 50, 5)

	result, err := Extract(snap, nil, Params{
		Center:    "center",
		Hops:      2,
		NodeLimit: 40,
		EdgeLimit: 15,
		MinAmount: 0,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(result.Nodes) > 40 {
		t.Fatalf("expected at most 40 nodes, got %d", len(result.Nodes))
	}
	if len(result.Edges) > 15 {
		t.Fatalf("expected at most 15 edges, got %d", len(result.Edges))
	}

	inNodes := make(map[string]struct{}, len(result.Nodes))
	for _, n := range result.Nodes {
		inNodes[n.Wallet] = struct{}{}
	}
	foundCenter := false
	for _, n := range result.Nodes {
		if n.Wallet == "center" {
			foundCenter = true
			if n.Hop != 0 {
				t.Fatalf("expected center to have hop 0, got %d", n.Hop)
			}
			continue
		}
		if n.Hop < 1 || n.Hop > 2 {
			t.Fatalf("expected non-center hop in [1,2], got %d for %s", n.Hop, n.Wallet)
		}
	}
	if !foundCenter {
		t.Fatalf("expected center to be present in nodes")
	}
	for _, e := range result.Edges {
		if _, ok := inNodes[e.Source]; !ok {
			t.Fatalf("edge source %s not in nodes", e.Source)
		}
		if _, ok := inNodes[e.Target]; !ok {
			t.Fatalf("edge target %s not in nodes", e.Target)
		}
	}
}

func TestExtract_CenterNotInGraph(t *testing.T) {
	snap := buildStar(t, 1, 1)
	_, err := Extract(snap, nil, Params{Center: "ghost", Hops: 2, NodeLimit: 10, EdgeLimit: 10})
	if err == nil {
		t.Fatalf("expected an error for a center wallet absent from the graph")
	}
}

func TestExtract_OnlyConnectedFiltersIsolatedNodes(t *testing.T) {
	snap := buildStar(t, 3, 1)

	result, err := Extract(snap, nil, Params{
		Center:        "center",
		Hops:          2,
		NodeLimit:     50,
		EdgeLimit:     50,
		MinAmount:     0,
		OnlyConnected: true,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	touched := map[string]struct{}{"center": {}}
	for _, e := range result.Edges {
		touched[e.Source] = struct{}{}
		touched[e.Target] = struct{}{}
	}
	for _, n := range result.Nodes {
		if _, ok := touched[n.Wallet]; !ok {
			t.Fatalf("only_connected left an untouched node %s in the result", n.Wallet)
		}
	}
}

func TestExtract_MinAmountFiltersEdges(t *testing.T) {
	rows := []models.Transaction{
		{Sender: "center", Receiver: "big", Amount: 100},
		{Sender: "center", Receiver: "small", Amount: 1},
	}
	snap, _, err := graph.BuildFromTransactions(rows, 1, 0.0001)
	if err != nil {
		t.Fatalf("BuildFromTransactions: %v", err)
	}

	result, err := Extract(snap, nil, Params{
		Center:    "center",
		Hops:      1,
		NodeLimit: 10,
		EdgeLimit: 10,
		MinAmount: 50,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(result.Edges) != 1 || result.Edges[0].Target != "big" {
		t.Fatalf("expected only the big edge to survive min_amount filtering, got %+v", result.Edges)
	}
}
