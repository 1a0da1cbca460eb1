package mplsverify

import (
	"reflect"
	"testing"
)

func TestEncodeGraphDeterminism(t *testing.T) {
	net := linearNetwork(t)
	pq := compile(t, "S1 [] S3")

	first := EncodeGraph(net, pq, linearPckt(), 1)
	second := EncodeGraph(net, pq, linearPckt(), 1)
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different encodings")
	}
}

func TestEncodeGraphNodes(t *testing.T) {
	net := linearNetwork(t)
	pq := compile(t, "S1 [] S3")
	gd := EncodeGraph(net, pq, linearPckt(), 2)

	// 3 routers + 4 interfaces + 3 labels (none, 20, 21) + 2 rules +
	// 2 actions + query + 3 pattern atoms
	if len(gd.Nodes) != 18 {
		t.Fatalf("expected 18 nodes, got %d", len(gd.Nodes))
	}

	// IDs are consecutive and agree with position
	for ndx, node := range gd.Nodes {
		if node.ID != ndx {
			t.Errorf("node %d carries ID %d", ndx, node.ID)
		}
	}

	counts := map[NodeType]int{}
	var query *GraphNode
	for ndx := range gd.Nodes {
		node := &gd.Nodes[ndx]
		counts[node.Type] += 1
		if node.Type == QueryNode {
			query = node
		}
	}
	if counts[RouterNode] != 3 || counts[IntrfcNode] != 4 || counts[LabelNode] != 3 {
		t.Errorf("unexpected topology node counts %v", counts)
	}
	if counts[RuleNode] != 2 || counts[PushActionNode] != 1 || counts[SwapActionNode] != 1 {
		t.Errorf("unexpected rule node counts %v", counts)
	}
	if counts[QueryAtomNode] != 2 || counts[ZeroOrMoreNode] != 1 {
		t.Errorf("unexpected query node counts %v", counts)
	}

	if query == nil {
		t.Fatal("no query node in encoding")
	}
	if query.K != 2 {
		t.Errorf("query node carries k=%d, want 2", query.K)
	}

	// the reserved empty label is present
	found := false
	for _, node := range gd.Nodes {
		if node.Type == LabelNode && node.Label == "label:none" {
			found = true
		}
	}
	if !found {
		t.Error("reserved empty-label node missing")
	}
}

func TestEncodeGraphFeatures(t *testing.T) {
	net := linearNetwork(t)
	gd := EncodeGraph(net, compile(t, "S1 [] S3"), linearPckt(), 1)

	for _, node := range gd.Nodes {
		if len(node.Feature) != NumNodeTypes {
			t.Fatalf("node %d feature width %d, want %d", node.ID, len(node.Feature), NumNodeTypes)
		}
		hot := 0
		for fdx, v := range node.Feature {
			if v == 1.0 {
				hot += 1
				if NodeType(fdx+1) != node.Type {
					t.Errorf("node %d hot at %d but typed %d", node.ID, fdx, node.Type)
				}
			} else if v != 0.0 {
				t.Errorf("node %d feature not one-hot: %v", node.ID, node.Feature)
			}
		}
		if hot != 1 {
			t.Errorf("node %d has %d hot entries", node.ID, hot)
		}
	}

	for _, edge := range gd.Edges {
		if len(edge.Feature) != 3 {
			t.Fatalf("edge feature width %d, want 3", len(edge.Feature))
		}
	}
}

func TestEncodeGraphEdgesDoubled(t *testing.T) {
	net := linearNetwork(t)
	gd := EncodeGraph(net, compile(t, "S1 [] S3"), linearPckt(), 1)

	type arc struct{ from, to int }
	seen := map[arc]int{}
	for _, edge := range gd.Edges {
		seen[arc{edge.From, edge.To}] += 1
	}
	for a, n := range seen {
		if seen[arc{a.to, a.from}] != n {
			t.Errorf("relation %d->%d not doubled", a.from, a.to)
		}
	}
	if len(gd.Edges)%2 != 0 {
		t.Errorf("odd directed edge count %d", len(gd.Edges))
	}
}

func TestEncodeGraphUnknownQueryRouter(t *testing.T) {
	net := linearNetwork(t)
	gd := EncodeGraph(net, compile(t, "S1 [] ZZ"), linearPckt(), 0)

	found := false
	for _, node := range gd.Nodes {
		if node.Type == RouterNode && node.Label == "router:ZZ" {
			found = true
		}
	}
	if !found {
		t.Error("router node for unknown query literal missing")
	}
}

func TestEncodeGraphInitialStack(t *testing.T) {
	net := linearNetwork(t)
	pckt := linearPckt()
	pckt.Labels = []string{"20", "21"}
	gd := EncodeGraph(net, compile(t, "S1 [] S3"), pckt, 0)

	atoms := 0
	for _, node := range gd.Nodes {
		if node.Type == QueryAtomNode && node.Label == "atom:label:20" {
			atoms += 1
		}
		if node.Type == QueryAtomNode && node.Label == "atom:label:21" {
			atoms += 1
		}
	}
	if atoms != 2 {
		t.Errorf("expected 2 label atoms for the initial stack, got %d", atoms)
	}
}

func TestQueryRouterNames(t *testing.T) {
	pq := compile(t, "S1 [] S3 [] S1")
	names := QueryRouterNames(pq)
	if !reflect.DeepEqual(names, []string{"S1", "S3"}) {
		t.Errorf("unexpected names %v", names)
	}
}
