package mplsverify

// encode.go serializes the network model and a compiled query into the typed
// directed graph consumed by the downstream learned classifier.  The node
// type enumeration, the one-hot feature layout, and the doubling of every
// relation into two directed edges are a stable contract with that consumer;
// changing any of them invalidates every dataset encoded before the change.
// Ordering is deterministic: nodes are emitted in model document order, then
// labels in order of first appearance, then rules and their action chains,
// then the query chain, so identical inputs yield byte-identical encodings.

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// NodeType enumerates the typed nodes of the encoding.  Values start at 1
// and their order fixes the one-hot feature layout.
type NodeType int

const (
	RouterNode NodeType = iota + 1
	IntrfcNode
	LabelNode
	RuleNode
	PushActionNode
	SwapActionNode
	PopActionNode
	QueryNode
	QueryAtomNode
	AnyNode
	OneOrMoreNode
	ZeroOrMoreNode
)

// NumNodeTypes is the width of the one-hot node feature vector
const NumNodeTypes = 12

// edge kinds, the one-hot edge feature layout.  Topology edges realize the
// physical model, rule edges the forwarding configuration, query edges the
// compiled pattern.
const (
	topoEdge = iota
	ruleEdge
	queryEdge
	numEdgeKinds
)

// A GraphNode is one node of the encoding.  Feature is the one-hot encoding
// of Type; K is meaningful only on the query node, where it carries the
// fault-tolerance bound.
type GraphNode struct {
	ID      int       `json:"id" yaml:"id"`
	Type    NodeType  `json:"type" yaml:"type"`
	Label   string    `json:"label" yaml:"label"`
	K       int       `json:"k,omitempty" yaml:"k,omitempty"`
	Feature []float64 `json:"feature" yaml:"feature"`
}

// A GraphEdge is one directed edge; every relation appears once in each
// direction
type GraphEdge struct {
	From    int       `json:"from" yaml:"from"`
	To      int       `json:"to" yaml:"to"`
	Feature []float64 `json:"feature" yaml:"feature"`
}

// A GraphDesc is the serializable encoding handed to the external learner
type GraphDesc struct {
	Name  string      `json:"name" yaml:"name"`
	Nodes []GraphNode `json:"nodes" yaml:"nodes"`
	Edges []GraphEdge `json:"edges" yaml:"edges"`
}

// WriteToFile stores the GraphDesc struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (gd *GraphDesc) WriteToFile(filename string) error {
	return writeDescFile(filename, *gd)
}

// encoder accumulates nodes and edges while walking the model and query
type encoder struct {
	gd     *GraphDesc
	nodeID map[string]int // node key -> assigned ID
}

// node adds (or finds) the node with the given unique key, returning its ID
func (enc *encoder) node(key string, ntype NodeType, label string) int {
	id, present := enc.nodeID[key]
	if present {
		return id
	}
	id = len(enc.gd.Nodes)
	enc.nodeID[key] = id
	enc.gd.Nodes = append(enc.gd.Nodes, GraphNode{ID: id, Type: ntype, Label: label})
	return id
}

// edge adds the undirected relation between two nodes as a directed edge in
// each direction
func (enc *encoder) edge(from, to, kind int) {
	feature := make([]float64, numEdgeKinds)
	feature[kind] = 1.0
	enc.gd.Edges = append(enc.gd.Edges, GraphEdge{From: from, To: to, Feature: feature})
	enc.gd.Edges = append(enc.gd.Edges, GraphEdge{From: to, To: from, Feature: feature})
}

func routerKey(name string) string { return "router:" + name }
func labelKey(label string) string {
	if label == NoLabel {
		return "label:none"
	}
	return "label:" + label
}

// labelNode returns the node for a label, creating it on first use
func (enc *encoder) labelNode(label string) int {
	return enc.node(labelKey(label), LabelNode, labelKey(label))
}

// EncodeGraph builds the graph encoding of a network model together with a
// compiled query, its initial label stack, and the fault-tolerance bound k.
// The query may reference router names absent from the topology; such names
// become bare router nodes, exactly as unknown names appear in queries the
// classifier must still judge.
func EncodeGraph(net *Network, pq *PathQuery, pckt PcktSpec, k int) *GraphDesc {
	enc := new(encoder)
	enc.gd = &GraphDesc{Name: net.Name, Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	enc.nodeID = make(map[string]int)

	// one node per router, one per interface, interface tied to its router
	for _, rtr := range net.Routers {
		rtrID := enc.node(routerKey(rtr.Name), RouterNode, routerKey(rtr.Name))
		for _, intrfc := range rtr.Intrfcs {
			label := fmt.Sprintf("intf:%s:%s", rtr.Name, intrfc.Name)
			intrfcID := enc.node(label, IntrfcNode, label)
			enc.edge(rtrID, intrfcID, topoEdge)
		}
	}

	// physical links join their two interfaces
	for _, lnk := range net.Links {
		aID := enc.nodeID[fmt.Sprintf("intf:%s:%s", lnk.SideA.Device.Name, lnk.SideA.Name)]
		bID := enc.nodeID[fmt.Sprintf("intf:%s:%s", lnk.SideB.Device.Name, lnk.SideB.Name)]
		enc.edge(aID, bID, topoEdge)
	}

	// the reserved empty label first, then every configured label in order
	// of first appearance
	enc.labelNode(NoLabel)
	for _, label := range net.Labels {
		enc.labelNode(label)
	}

	// each active rule becomes a chain rule -> action -> ... -> out interface
	for _, rtr := range net.Routers {
		for _, rule := range rtr.Rules {
			ruleLabel := fmt.Sprintf("%s:rule%d", rtr.Name, rule.Number)
			ruleID := enc.node(ruleLabel, RuleNode, ruleLabel)

			inID := enc.nodeID[fmt.Sprintf("intf:%s:%s", rtr.Name, rule.InIntrfc.Name)]
			enc.edge(ruleID, inID, ruleEdge)
			if rule.Label != NoLabel {
				enc.edge(ruleID, enc.labelNode(rule.Label), ruleEdge)
			}

			last := ruleID
			for adx, action := range rule.Actions {
				var ntype NodeType
				switch action.Type {
				case PushLabel:
					ntype = PushActionNode
				case SwapLabel:
					ntype = SwapActionNode
				case PopLabel:
					ntype = PopActionNode
				}
				actionLabel := fmt.Sprintf("%s:action%d:%s", ruleLabel, adx,
					actionTag(action.Type))
				actionID := enc.node(actionLabel, ntype, actionLabel)
				if action.Type != PopLabel {
					enc.edge(actionID, enc.labelNode(action.Label), ruleEdge)
				}
				enc.edge(last, actionID, ruleEdge)
				last = actionID
			}

			outID := enc.nodeID[fmt.Sprintf("intf:%s:%s", rtr.Name, rule.OutIntrfc.Name)]
			enc.edge(last, outID, ruleEdge)
		}
	}

	// the query node anchors the chain of query atoms; k rides on it
	queryID := enc.node("query", QueryNode, "query")
	enc.gd.Nodes[queryID].K = k

	// the packet's initial label stack, outermost first, hangs off the query
	// node as a chain of label atoms
	last := queryID
	for sdx, label := range pckt.Labels {
		atomLabel := fmt.Sprintf("atom:label%d:%s", sdx, label)
		atomID := enc.node(atomLabel, QueryAtomNode, "atom:"+labelKey(label))
		enc.edge(atomID, enc.labelNode(label), queryEdge)
		enc.edge(last, atomID, queryEdge)
		last = atomID
	}

	// then the pattern segments: literal atoms tied to their routers,
	// capture markers as zero-or-more nodes
	for sdx, seg := range pq.segs {
		var atomID int
		if seg.kind == literalSeg {
			atomLabel := fmt.Sprintf("atom%d:router:%s", sdx, seg.token)
			atomID = enc.node(atomLabel, QueryAtomNode, "atom:router:"+seg.token)

			rtrID, present := enc.nodeID[routerKey(seg.token)]
			if !present {
				rtrID = enc.node(routerKey(seg.token), RouterNode, routerKey(seg.token))
			}
			enc.edge(atomID, rtrID, queryEdge)
		} else {
			atomLabel := fmt.Sprintf("atom%d:router:.*", sdx)
			atomID = enc.node(atomLabel, ZeroOrMoreNode, "atom:router:.*")
		}
		enc.edge(last, atomID, queryEdge)
		last = atomID
	}

	// one-hot node features from the (now final) node types
	for ndx := range enc.gd.Nodes {
		feature := make([]float64, NumNodeTypes)
		feature[int(enc.gd.Nodes[ndx].Type)-1] = 1.0
		enc.gd.Nodes[ndx].Feature = feature
	}

	return enc.gd
}

func actionTag(at ActionType) string {
	switch at {
	case PushLabel:
		return "PUSH"
	case SwapLabel:
		return "SWAP"
	case PopLabel:
		return "POP"
	}
	return "?"
}

// QueryRouterNames returns the distinct router names a compiled pattern's
// literal segments reference, in pattern order
func QueryRouterNames(pq *PathQuery) []string {
	names := []string{}
	for _, name := range pq.Literals() {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}
