package network

import (
	"math"
	"reflect"
	"testing"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
)

func edge(src, dst string, amount float64, count int) domain.Edge {
	return domain.Edge{Source: src, Destination: dst, TotalAmount: amount, TransactionCount: count}
}

func TestBuild(t *testing.T) {
	g := Build([]domain.Edge{
		edge("a", "b", 1000, 2),
		edge("b", "c", 500, 1),
		edge("a", "a", 99, 1), // self-loop ignored
		edge("", "c", 99, 1),  // malformed ignored
	})

	if g.Size() != 3 {
		t.Fatalf("expected 3 entities, got %d", g.Size())
	}

	nodes := g.Nodes()
	want := []string{"a", "b", "c"}
	for i, n := range nodes {
		if n.EntityID != want[i] {
			t.Errorf("node %d: expected %s, got %s", i, want[i], n.EntityID)
		}
	}
	if nodes[1].InDegree != 1 || nodes[1].OutDegree != 1 {
		t.Errorf("b degrees: got in=%d out=%d", nodes[1].InDegree, nodes[1].OutDegree)
	}
	if !reflect.DeepEqual(nodes[1].Connections, []string{"a", "c"}) {
		t.Errorf("b connections: %v", nodes[1].Connections)
	}
}

func TestCentrality(t *testing.T) {
	g := Build([]domain.Edge{
		edge("hub", "x", 100000, 5),
		edge("hub", "y", 100000, 5),
		edge("p", "hub", 10000, 2),
		edge("q", "hub", 10000, 2),
	})

	// (in + out) * (1 + ln(1 + totalOutgoing)) with in=2, out=2, out volume 200000.
	want := 4 * (1 + math.Log(1+200000.0))
	got := g.Centrality("hub")
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("centrality: got %.4f, want %.4f", got, want)
	}

	if g.Centrality("nobody") != 0 {
		t.Error("unknown entity must score 0")
	}

	high := g.HighCentrality()
	if _, ok := high["hub"]; !ok {
		t.Errorf("expected hub in high-centrality set, got %v", high)
	}
	if _, ok := high["x"]; ok {
		t.Error("leaf node x must not be high centrality")
	}
}

func TestSuspiciousChains(t *testing.T) {
	t.Run("linear chain over min length", func(t *testing.T) {
		g := Build([]domain.Edge{
			edge("a", "b", 100, 1),
			edge("b", "c", 100, 1),
			edge("c", "d", 100, 1),
		})

		chains := g.SuspiciousChains(3)
		if len(chains) != 1 {
			t.Fatalf("expected 1 chain, got %d: %v", len(chains), chains)
		}
		if !reflect.DeepEqual(chains[0], []string{"a", "b", "c", "d"}) {
			t.Errorf("unexpected chain: %v", chains[0])
		}
	})

	t.Run("short paths are not emitted", func(t *testing.T) {
		g := Build([]domain.Edge{
			edge("a", "b", 100, 1),
			edge("b", "c", 100, 1),
		})

		if chains := g.SuspiciousChains(3); len(chains) != 0 {
			t.Errorf("expected no chains, got %v", chains)
		}
	})

	t.Run("visited nodes join at most one chain", func(t *testing.T) {
		// Two long paths sharing node c; whichever is found first claims it.
		g := Build([]domain.Edge{
			edge("a", "b", 100, 1),
			edge("b", "c", 100, 1),
			edge("c", "d", 100, 1),
			edge("x", "c", 100, 1),
			edge("c", "y", 100, 1),
		})

		chains := g.SuspiciousChains(3)
		seen := make(map[string]int)
		for _, chain := range chains {
			for _, id := range chain {
				seen[id]++
			}
		}
		for id, n := range seen {
			if n > 1 {
				t.Errorf("entity %s appears in %d chains", id, n)
			}
		}
	})

	t.Run("cycles terminate", func(t *testing.T) {
		g := Build([]domain.Edge{
			edge("a", "b", 100, 1),
			edge("b", "c", 100, 1),
			edge("c", "a", 100, 1),
		})

		if chains := g.SuspiciousChains(3); len(chains) != 0 {
			t.Errorf("3-cycle cannot yield a chain longer than 3: %v", chains)
		}
	})

	t.Run("deterministic output", func(t *testing.T) {
		edges := []domain.Edge{
			edge("m", "n", 100, 1),
			edge("n", "o", 100, 1),
			edge("o", "p", 100, 1),
			edge("a", "b", 100, 1),
			edge("b", "c", 100, 1),
			edge("c", "d", 100, 1),
		}

		first := Build(edges).SuspiciousChains(3)
		for i := 0; i < 10; i++ {
			if got := Build(edges).SuspiciousChains(3); !reflect.DeepEqual(got, first) {
				t.Fatalf("run %d differs: %v vs %v", i, got, first)
			}
		}
		if !reflect.DeepEqual(first, [][]string{{"a", "b", "c", "d"}, {"m", "n", "o", "p"}}) {
			t.Errorf("unexpected chains: %v", first)
		}
	})
}

func TestAnalyze(t *testing.T) {
	g := Build([]domain.Edge{
		edge("a", "b", 60000, 3),
		edge("e", "b", 10000, 1),
		edge("f", "b", 10000, 1),
		edge("g", "b", 10000, 1),
		edge("b", "c", 60000, 2),
		edge("c", "d", 60000, 1),
	})

	analysis := g.Analyze(3, 5)
	if analysis.TotalEntities != 7 {
		t.Errorf("expected 7 entities, got %d", analysis.TotalEntities)
	}
	if len(analysis.SuspiciousChains) != 1 {
		t.Errorf("expected 1 chain, got %v", analysis.SuspiciousChains)
	}
	// b has degree 5 and 60000 outgoing: 5*(1+ln(60001)) is about 60.
	if _, ok := analysis.HighCentrality["b"]; !ok {
		t.Errorf("expected b in high-centrality set: %v", analysis.HighCentrality)
	}
}
