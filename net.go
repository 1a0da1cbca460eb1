package mplsverify

// net.go contains the runtime representation of an MPLS network: routers,
// interfaces, links, and per-router label-forwarding tables.  A Network is
// built once from a (TopoDesc, RoutingDesc) pair, validated completely during
// construction, and immutable afterwards.  Failure scenarios never touch it;
// they are overlays interpreted by the simulator.

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// A MalformedInputError reports a structural problem in one of the two input
// documents: a missing required field, a duplicated name, an unparseable body.
// Doc identifies the document ("topology" or "routing"), Field the offending
// element.
type MalformedInputError struct {
	Doc    string
	Field  string
	Detail string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s document, %s: %s", e.Doc, e.Field, e.Detail)
}

// A DanglingInterfaceError reports an interface that survived topology
// parsing without being paired to a link
type DanglingInterfaceError struct {
	Router string
	Intrfc string
}

func (e *DanglingInterfaceError) Error() string {
	return fmt.Sprintf("interface %s on router %s has no link partner", e.Intrfc, e.Router)
}

// An UnknownReferenceError reports a name used in one document that was never
// declared where it should have been, e.g. a routing entry for a router the
// topology document does not contain
type UnknownReferenceError struct {
	Doc     string
	Ref     string
	Context string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("%s document references unknown %s in %s", e.Doc, e.Ref, e.Context)
}

// NoLabel is the reserved top-of-stack key matched by rules that apply to
// packets whose label stack is empty
const NoLabel = ""

// ActionType enumerates the label-stack operations a forwarding rule can perform
type ActionType int

const (
	PushLabel ActionType = iota
	SwapLabel
	PopLabel
)

func (at ActionType) String() string {
	switch at {
	case PushLabel:
		return "push"
	case SwapLabel:
		return "swap"
	case PopLabel:
		return "pop"
	}
	return "unknown"
}

// An Action is one step of a rule body: an operation and, for push and swap,
// the label it installs
type Action struct {
	Type  ActionType
	Label string
}

// A ForwardingRule maps a (arrival interface, top-of-stack label) pair to an
// ordered list of stack actions and a departure interface on the same router
type ForwardingRule struct {
	Router   *Router
	InIntrfc *Intrfc

	// top-of-stack label the rule matches, NoLabel for an empty stack
	Label string

	Actions   []Action
	OutIntrfc *Intrfc

	// index of the rule within its router's table, in document order
	Number int
}

// An Intrfc is a port of exactly one router, and is paired with exactly one
// link once the topology is fully built
type Intrfc struct {
	Name   string
	Number int // unique across all interfaces of the network
	Device *Router
	Link   *Link
}

// A Link is an undirected pairing of two interfaces on two distinct routers
type Link struct {
	Number int
	SideA  *Intrfc
	SideB  *Intrfc
}

// Peer returns the interface at the other end of the link
func (lnk *Link) Peer(intrfc *Intrfc) *Intrfc {
	if lnk.SideA == intrfc {
		return lnk.SideB
	}
	return lnk.SideA
}

// String renders the link as its two (router, interface) endpoints
func (lnk *Link) String() string {
	return fmt.Sprintf("%s.%s--%s.%s", lnk.SideA.Device.Name, lnk.SideA.Name,
		lnk.SideB.Device.Name, lnk.SideB.Name)
}

// A Router holds its interfaces and its forwarding table.  The table is keyed
// first by the name of the arrival interface and then by the top-of-stack label.
type Router struct {
	Name    string
	Number  int
	Intrfcs []*Intrfc

	intrfcByName map[string]*Intrfc

	// Rules lists the router's active forwarding rules in document order,
	// Table indexes the same rules for per-hop lookup
	Rules []*ForwardingRule
	Table map[string]map[string]*ForwardingRule
}

// IntrfcByName looks up one of the router's interfaces
func (rtr *Router) IntrfcByName(name string) *Intrfc {
	return rtr.intrfcByName[name]
}

// LookupRule returns the forwarding rule for a packet arriving on the named
// interface with the given top-of-stack label, or nil when the router has no
// forwarding behavior for that state
func (rtr *Router) LookupRule(intrfcName, label string) *ForwardingRule {
	byLabel, present := rtr.Table[intrfcName]
	if !present {
		return nil
	}
	return byLabel[label]
}

// A Network is the complete, immutable model built from the topology and
// routing documents.  All lookup maps are owned by the struct; simulations
// share it read-only.
type Network struct {
	Name    string
	Routers []*Router // in topology document order
	Links   []*Link   // in topology document order, Link.Number is the index

	// labels used anywhere in the routing document, in order of first appearance
	Labels []string

	routerByName map[string]*Router
	intrfcByID   map[int]*Intrfc
}

// RouterByName looks up a router by its unique name
func (net *Network) RouterByName(name string) *Router {
	return net.routerByName[name]
}

// IntrfcByID looks up an interface by its network-wide number
func (net *Network) IntrfcByID(id int) *Intrfc {
	return net.intrfcByID[id]
}

// noteLabel records a label in the network's appearance-ordered label list
func (net *Network) noteLabel(label string) {
	if label == NoLabel {
		return
	}
	if !slices.Contains(net.Labels, label) {
		net.Labels = append(net.Labels, label)
	}
}

// BuildNetwork validates a (topology, routing) description pair and
// constructs the runtime Network model.  On any validation failure it
// returns one of MalformedInputError, DanglingInterfaceError, or
// UnknownReferenceError, and no partial model.
func BuildNetwork(td *TopoDesc, rd *RoutingDesc) (*Network, error) {
	net := new(Network)
	net.Name = td.Name
	net.routerByName = make(map[string]*Router)
	net.intrfcByID = make(map[int]*Intrfc)
	net.Labels = []string{}

	if len(td.Routers) == 0 {
		return nil, &MalformedInputError{Doc: "topology", Field: "routers", Detail: "no routers declared"}
	}

	// create routers and their interfaces, assigning numbers in document order
	// so that identical inputs always yield identical identifiers
	numIntrfcs := 0
	for idx, rtrDesc := range td.Routers {
		if len(rtrDesc.Name) == 0 {
			return nil, &MalformedInputError{Doc: "topology", Field: fmt.Sprintf("router %d", idx),
				Detail: "router name is required"}
		}
		_, present := net.routerByName[rtrDesc.Name]
		if present {
			return nil, &MalformedInputError{Doc: "topology", Field: rtrDesc.Name,
				Detail: "router name duplicated"}
		}

		rtr := createRouter(rtrDesc.Name, idx)
		for _, intrfcDesc := range rtrDesc.Interfaces {
			if len(intrfcDesc.Name) == 0 {
				return nil, &MalformedInputError{Doc: "topology", Field: rtrDesc.Name,
					Detail: "interface name is required"}
			}
			_, present := rtr.intrfcByName[intrfcDesc.Name]
			if present {
				return nil, &MalformedInputError{Doc: "topology", Field: rtrDesc.Name,
					Detail: fmt.Sprintf("interface %s duplicated", intrfcDesc.Name)}
			}

			intrfc := &Intrfc{Name: intrfcDesc.Name, Number: numIntrfcs, Device: rtr}
			numIntrfcs += 1
			rtr.Intrfcs = append(rtr.Intrfcs, intrfc)
			rtr.intrfcByName[intrfc.Name] = intrfc
			net.intrfcByID[intrfc.Number] = intrfc
		}

		net.Routers = append(net.Routers, rtr)
		net.routerByName[rtr.Name] = rtr
	}

	// pair interfaces through links
	for idx, lnkDesc := range td.Links {
		if len(lnkDesc.Sides) != 2 {
			return nil, &MalformedInputError{Doc: "topology", Field: fmt.Sprintf("link %d", idx),
				Detail: fmt.Sprintf("link needs exactly 2 sides, has %d", len(lnkDesc.Sides))}
		}

		intrfcs := make([]*Intrfc, 2)
		for sdx, side := range lnkDesc.Sides {
			rtr, present := net.routerByName[side.Router]
			if !present {
				return nil, &UnknownReferenceError{Doc: "topology", Ref: "router " + side.Router,
					Context: fmt.Sprintf("link %d", idx)}
			}
			intrfc := rtr.intrfcByName[side.Intrfc]
			if intrfc == nil {
				return nil, &UnknownReferenceError{Doc: "topology",
					Ref: fmt.Sprintf("interface %s on router %s", side.Intrfc, side.Router),
					Context: fmt.Sprintf("link %d", idx)}
			}
			intrfcs[sdx] = intrfc
		}

		if intrfcs[0].Device == intrfcs[1].Device {
			return nil, &MalformedInputError{Doc: "topology", Field: fmt.Sprintf("link %d", idx),
				Detail: "link joins two interfaces of the same router"}
		}
		if intrfcs[0].Link != nil || intrfcs[1].Link != nil {
			return nil, &MalformedInputError{Doc: "topology", Field: fmt.Sprintf("link %d", idx),
				Detail: "interface already paired with another link"}
		}

		lnk := &Link{Number: len(net.Links), SideA: intrfcs[0], SideB: intrfcs[1]}
		intrfcs[0].Link = lnk
		intrfcs[1].Link = lnk
		net.Links = append(net.Links, lnk)
	}

	// every interface must have found a link partner
	for _, rtr := range net.Routers {
		for _, intrfc := range rtr.Intrfcs {
			if intrfc.Link == nil {
				return nil, &DanglingInterfaceError{Router: rtr.Name, Intrfc: intrfc.Name}
			}
		}
	}

	// fold in the forwarding tables
	for _, tblDesc := range rd.Tables {
		rtr, present := net.routerByName[tblDesc.Router]
		if !present {
			return nil, &UnknownReferenceError{Doc: "routing", Ref: "router " + tblDesc.Router,
				Context: "routing table"}
		}

		for _, destDesc := range tblDesc.Destinations {
			rule, err := buildRule(rtr, destDesc)
			if err != nil {
				return nil, err
			}
			if rule == nil {
				// destination carried no rules at all
				return nil, &MalformedInputError{Doc: "routing", Field: rtr.Name,
					Detail: fmt.Sprintf("destination (%s,%s) has no rule", destDesc.From, destDesc.Label)}
			}

			_, present := rtr.Table[rule.InIntrfc.Name]
			if !present {
				rtr.Table[rule.InIntrfc.Name] = make(map[string]*ForwardingRule)
			}
			_, present = rtr.Table[rule.InIntrfc.Name][rule.Label]
			if present {
				return nil, &MalformedInputError{Doc: "routing", Field: rtr.Name,
					Detail: fmt.Sprintf("duplicate rule for (%s,%s)", rule.InIntrfc.Name, rule.Label)}
			}

			rule.Number = len(rtr.Rules)
			rtr.Table[rule.InIntrfc.Name][rule.Label] = rule
			rtr.Rules = append(rtr.Rules, rule)

			net.noteLabel(rule.Label)
			for _, action := range rule.Actions {
				net.noteLabel(action.Label)
			}
		}
	}

	return net, nil
}

// createRouter initializes an empty Router struct
func createRouter(name string, number int) *Router {
	rtr := new(Router)
	rtr.Name = name
	rtr.Number = number
	rtr.Intrfcs = make([]*Intrfc, 0)
	rtr.intrfcByName = make(map[string]*Intrfc)
	rtr.Rules = make([]*ForwardingRule, 0)
	rtr.Table = make(map[string]map[string]*ForwardingRule)
	return rtr
}

// buildRule validates one destination entry and constructs the forwarding
// rule it activates.  Like the tooling the document format comes from, the
// active rule is the first rule of the first te-group; alternates are ignored.
func buildRule(rtr *Router, destDesc DestDesc) (*ForwardingRule, error) {
	inIntrfc := rtr.intrfcByName[destDesc.From]
	if inIntrfc == nil {
		return nil, &UnknownReferenceError{Doc: "routing",
			Ref:     fmt.Sprintf("interface %s", destDesc.From),
			Context: fmt.Sprintf("table of router %s", rtr.Name)}
	}

	if len(destDesc.TEGroups) == 0 || len(destDesc.TEGroups[0].Rules) == 0 {
		return nil, nil
	}
	ruleDesc := destDesc.TEGroups[0].Rules[0]

	outIntrfc := rtr.intrfcByName[ruleDesc.To]
	if outIntrfc == nil {
		return nil, &UnknownReferenceError{Doc: "routing",
			Ref:     fmt.Sprintf("interface %s", ruleDesc.To),
			Context: fmt.Sprintf("table of router %s", rtr.Name)}
	}

	rule := &ForwardingRule{
		Router:    rtr,
		InIntrfc:  inIntrfc,
		Label:     destDesc.Label,
		OutIntrfc: outIntrfc,
	}

	for adx, actionDesc := range ruleDesc.Actions {
		var action Action
		switch actionDesc.Type {
		case "push":
			action = Action{Type: PushLabel, Label: actionDesc.Arg}
		case "swap":
			action = Action{Type: SwapLabel, Label: actionDesc.Arg}
		case "pop":
			action = Action{Type: PopLabel}
		default:
			return nil, &MalformedInputError{Doc: "routing", Field: rtr.Name,
				Detail: fmt.Sprintf("unknown action type %q", actionDesc.Type)}
		}

		if action.Type != PopLabel && len(action.Label) == 0 {
			return nil, &MalformedInputError{Doc: "routing", Field: rtr.Name,
				Detail: fmt.Sprintf("action %d of rule (%s,%s) needs a label argument",
					adx, destDesc.From, destDesc.Label)}
		}
		if action.Type == PopLabel && len(actionDesc.Arg) > 0 {
			return nil, &MalformedInputError{Doc: "routing", Field: rtr.Name,
				Detail: fmt.Sprintf("pop action %d of rule (%s,%s) takes no argument",
					adx, destDesc.From, destDesc.Label)}
		}

		rule.Actions = append(rule.Actions, action)
	}

	return rule, nil
}

// ReadNetwork reads, validates, and assembles the network model from the two
// named XML documents.  Convenience wrapper used by the command line tool.
func ReadNetwork(topoFile, routingFile string) (*Network, error) {
	td, err := ReadTopoDesc(topoFile, []byte{})
	if err != nil {
		return nil, err
	}
	rd, err := ReadRoutingDesc(routingFile, []byte{})
	if err != nil {
		return nil, err
	}
	return BuildNetwork(td, rd)
}
