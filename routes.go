package mplsverify

// routes.go provides physical-reachability analysis over the scenario-
// restricted topology.  The approach is to convert the network's routers and
// surviving links into the data structures of a graph package with built-in
// path discovery, weight every link by 1, and let Dijkstra answer whether
// (and in how many hops) the egress could have been reached at all.  The
// evaluator uses this to annotate a counterexample: an Unreachable or Dropped
// outcome on a physically connected topology points at the label
// configuration rather than at the failure set itself.

import (
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// A routeCache holds the graph representation of one scenario's active
// topology along with the shortest-path trees computed against it.  Trees
// are cached by root so repeated queries from the same source do not redo
// the Dijkstra work.
type routeCache struct {
	gNodes    map[int]simple.Node
	connGraph *simple.WeightedUndirectedGraph
	cachedSP  map[int]path.Shortest
}

// buildRouteCache constructs the graph form of the network with the
// scenario's failed links left out.  gNodes[i] refers to the router with
// Number i.
func buildRouteCache(net *Network, scn Scenario) *routeCache {
	rc := new(routeCache)
	rc.gNodes = make(map[int]simple.Node)
	rc.cachedSP = make(map[int]path.Shortest)
	rc.connGraph = simple.NewWeightedUndirectedGraph(0, math.Inf(1))

	failed := make(map[int]bool, len(scn.FailedLinks))
	for _, lnkNum := range scn.FailedLinks {
		failed[lnkNum] = true
	}

	for _, rtr := range net.Routers {
		node := simple.Node(rtr.Number)
		rc.gNodes[rtr.Number] = node
		rc.connGraph.AddNode(node)
	}

	// each surviving link becomes an edge of weight 1 between the routers
	// holding its two interfaces
	for _, lnk := range net.Links {
		if failed[lnk.Number] {
			continue
		}
		from := rc.gNodes[lnk.SideA.Device.Number]
		to := rc.gNodes[lnk.SideB.Device.Number]
		weightedEdge := simple.WeightedEdge{F: from, T: to, W: 1.0}
		rc.connGraph.SetWeightedEdge(weightedEdge)
	}

	return rc
}

// spTree returns the shortest path tree rooted in input argument 'from'.
// If the tree is found in the cache it is returned, if not it is computed,
// saved, and returned.
func (rc *routeCache) spTree(from int) path.Shortest {
	spTree, present := rc.cachedSP[from]
	if present {
		return spTree
	}

	spTree = path.DijkstraFrom(rc.gNodes[from], rc.connGraph)
	rc.cachedSP[from] = spTree

	return spTree
}

// hopsBetween reports whether a physical path exists between the two routers
// (identified by Number) in the cached scenario topology, and its hop count
// when one does
func (rc *routeCache) hopsBetween(srcID, dstID int) (int, bool) {
	if srcID == dstID {
		return 0, true
	}

	// a tree rooted in the destination serves by symmetry; prefer whichever
	// root is already cached
	spTree, present := rc.cachedSP[srcID]
	if present {
		return treeHopsTo(spTree, dstID)
	}
	spTree, present = rc.cachedSP[dstID]
	if present {
		return treeHopsTo(spTree, srcID)
	}

	return treeHopsTo(rc.spTree(srcID), dstID)
}

// treeHopsTo extracts the hop count to the identified node from a shortest
// path tree, reporting false when the node is disconnected from the root
func treeHopsTo(spTree path.Shortest, id int) (int, bool) {
	var nodeSeq []graph.Node
	var weight float64
	nodeSeq, weight = spTree.To(int64(id))
	if len(nodeSeq) == 0 || math.IsInf(weight, 1) {
		return 0, false
	}
	return int(weight), true
}

// DiagnoseReachability reports whether the packet's egress router is
// physically reachable from its ingress under the scenario, ignoring the
// label configuration entirely, along with the minimum hop distance when it
// is.  Used to classify counterexamples.
func DiagnoseReachability(net *Network, scn Scenario, pckt PcktSpec) (bool, int) {
	src := net.RouterByName(pckt.Ingress)
	dst := net.RouterByName(pckt.Egress)
	if src == nil || dst == nil {
		return false, 0
	}

	rc := buildRouteCache(net, scn)
	hops, ok := rc.hopsBetween(src.Number, dst.Number)
	if !ok {
		return false, 0
	}
	return true, hops
}
