package mplsverify

// forward.go simulates label-switched packet forwarding across one failure
// scenario.  A simulation run owns a private event manager: each hop is a
// scheduled event one unit of virtual time after the previous one, so the
// event horizon doubles as the hard hop cap.  Runs share the Network model
// read-only and keep all mutable state (label stack, trace, seen-state set)
// in a per-run struct, which makes them a pure function of (scenario, packet
// specification) and safe to execute in parallel.

import (
	"strconv"
	"strings"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// SimOutcome tags how a forwarding simulation terminated.  Every outcome is
// an ordinary result, never an error; a misconfigured network legitimately
// drops, loops, or mangles packets.
type SimOutcome int

const (
	// Arrived means the packet reached the declared egress router
	Arrived SimOutcome = iota

	// Dropped means a router had no rule for the packet's (interface, label) state
	Dropped

	// Malformed means a rule popped an empty label stack
	Malformed

	// Unreachable means the rule's departure link is failed in this scenario
	Unreachable

	// Loop means the packet revisited an (interface, label stack) state,
	// or exceeded the hop cap
	Loop
)

func (so SimOutcome) String() string {
	switch so {
	case Arrived:
		return "Arrived"
	case Dropped:
		return "Dropped"
	case Malformed:
		return "Malformed"
	case Unreachable:
		return "Unreachable"
	case Loop:
		return "Loop"
	}
	return "unknown"
}

// DefaultMaxHops is the safety cap on simulated hops, generous but finite
const DefaultMaxHops = 1024

// A PcktSpec gives the ingress point of the simulated packet: the router and
// interface where it enters, its initial label stack (outermost label first),
// and the router at which it is declared delivered
type PcktSpec struct {
	Ingress       string
	IngressIntrfc string
	Labels        []string
	Egress        string
}

// A SimResult holds the trace accumulated by one simulation run and the
// outcome that terminated it
type SimResult struct {
	// Trace is the ordered sequence of router names the packet visited,
	// ingress router first
	Trace []string

	Outcome SimOutcome

	// Hops is the number of link traversals completed
	Hops int

	// FailedLink is the number of the failed link the packet tried to cross
	// when Outcome is Unreachable, and -1 otherwise
	FailedLink int

	// FinalLabels is the label stack at termination
	FinalLabels []string

	// Aborted is true when a cancellation flag stopped the run between
	// hops; Trace and Outcome are then partial and must not be judged
	Aborted bool
}

// simState carries the mutable state of one simulation run between hop events
type simState struct {
	net    *Network
	failed map[int]bool
	pckt   PcktSpec

	intrfc *Intrfc  // interface the packet most recently arrived on
	stack  []string // label stack, outermost first

	trace   []string
	seen    map[string]bool
	hops    int
	maxHops int

	outcome SimOutcome
	done    bool
	badLink int

	tm     *TraceManager
	scnIdx int

	// best-effort cancellation, checked between hops
	cancelled func() bool
	aborted   bool
}

// stateKey renders the (arrival interface, label stack) pair the loop
// detector tracks
func (ss *simState) stateKey() string {
	return strconv.Itoa(ss.intrfc.Number) + "|" + strings.Join(ss.stack, ".")
}

func (ss *simState) terminate(outcome SimOutcome) {
	ss.outcome = outcome
	ss.done = true
}

// Simulate runs one forwarding simulation of the packet described by pckt
// over the network with the scenario's links failed.  maxHops at or below
// zero selects DefaultMaxHops.  tm may be nil; when active, per-hop records
// are added under the scenario's index.  Returns an UnknownReferenceError
// when the packet specification names a router or interface the model does
// not contain.
func Simulate(net *Network, scn Scenario, pckt PcktSpec, maxHops int, tm *TraceManager) (*SimResult, error) {
	return simulate(net, scn, pckt, maxHops, tm, nil)
}

// checkPcktRefs validates that every router and interface a packet
// specification names exists in the model.  Both the simulator and the
// evaluator call this, the evaluator once before its workers start.
func checkPcktRefs(net *Network, pckt PcktSpec) error {
	ingress := net.RouterByName(pckt.Ingress)
	if ingress == nil {
		return &UnknownReferenceError{Doc: "packet", Ref: "router " + pckt.Ingress,
			Context: "ingress specification"}
	}
	if ingress.IntrfcByName(pckt.IngressIntrfc) == nil {
		return &UnknownReferenceError{Doc: "packet",
			Ref:     "interface " + pckt.IngressIntrfc + " on router " + pckt.Ingress,
			Context: "ingress specification"}
	}
	if len(pckt.Egress) > 0 && net.RouterByName(pckt.Egress) == nil {
		return &UnknownReferenceError{Doc: "packet", Ref: "router " + pckt.Egress,
			Context: "egress specification"}
	}
	return nil
}

func simulate(net *Network, scn Scenario, pckt PcktSpec, maxHops int,
	tm *TraceManager, cancelled func() bool) (*SimResult, error) {

	err := checkPcktRefs(net, pckt)
	if err != nil {
		return nil, err
	}
	ingress := net.RouterByName(pckt.Ingress)
	intrfc := ingress.IntrfcByName(pckt.IngressIntrfc)

	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}

	ss := new(simState)
	ss.net = net
	ss.pckt = pckt
	ss.intrfc = intrfc
	ss.stack = append([]string{}, pckt.Labels...)
	ss.trace = []string{ingress.Name}
	ss.seen = make(map[string]bool)
	ss.maxHops = maxHops
	ss.badLink = -1
	ss.tm = tm
	ss.scnIdx = scn.Index
	ss.cancelled = cancelled

	ss.failed = make(map[int]bool, len(scn.FailedLinks))
	for _, lnkNum := range scn.FailedLinks {
		ss.failed[lnkNum] = true
	}

	// packet injected directly at its own egress
	if ingress.Name == pckt.Egress {
		ss.terminate(Arrived)
	}

	// a fresh event manager per run keeps runs independent; virtual time
	// advances one second per hop, and the horizon enforces the hop cap
	if !ss.done {
		evtMgr := evtm.New()
		evtMgr.Schedule(ss, nil, forwardHop, vrtime.SecondsToTime(0.0))
		evtMgr.Run(float64(maxHops) + 2.0)
	}

	if !ss.done {
		// event horizon reached without a per-state detection firing
		ss.terminate(Loop)
	}

	return &SimResult{
		Trace:       ss.trace,
		Outcome:     ss.outcome,
		Hops:        ss.hops,
		FailedLink:  ss.badLink,
		FinalLabels: ss.stack,
		Aborted:     ss.aborted,
	}, nil
}

// forwardHop is the event handler executing one forwarding step: look up the
// rule for the packet's current (interface, label) state, apply its stack
// actions, and carry the packet across the departure link
func forwardHop(evtMgr *evtm.EventManager, context any, data any) any {
	ss := context.(*simState)
	if ss.done {
		return nil
	}
	if ss.cancelled != nil && ss.cancelled() {
		ss.aborted = true
		ss.terminate(Loop)
		return nil
	}

	// loop detection on the arrival state
	key := ss.stateKey()
	if ss.seen[key] {
		ss.terminate(Loop)
		return nil
	}
	ss.seen[key] = true

	rtr := ss.intrfc.Device

	top := NoLabel
	if len(ss.stack) > 0 {
		top = ss.stack[0]
	}

	rule := rtr.LookupRule(ss.intrfc.Name, top)
	if rule == nil {
		ss.terminate(Dropped)
		return nil
	}

	// apply the rule's stack actions in order
	for _, action := range rule.Actions {
		switch action.Type {
		case PushLabel:
			ss.stack = append([]string{action.Label}, ss.stack...)
		case SwapLabel:
			if len(ss.stack) == 0 {
				ss.terminate(Malformed)
				return nil
			}
			ss.stack[0] = action.Label
		case PopLabel:
			if len(ss.stack) == 0 {
				ss.terminate(Malformed)
				return nil
			}
			ss.stack = ss.stack[1:]
		}
	}

	// cross the link attached to the departure interface
	lnk := rule.OutIntrfc.Link
	if ss.failed[lnk.Number] {
		ss.badLink = lnk.Number
		ss.terminate(Unreachable)
		return nil
	}

	peer := lnk.Peer(rule.OutIntrfc)
	ss.hops += 1
	ss.intrfc = peer
	ss.trace = append(ss.trace, peer.Device.Name)

	if ss.tm != nil && ss.tm.Active() {
		AddHopTrace(ss.tm, ss.scnIdx, ss.hops, peer.Device.Name, peer.Name,
			rule.OutIntrfc.Name, ss.stack, "forward")
	}

	if peer.Device.Name == ss.pckt.Egress {
		ss.terminate(Arrived)
		return nil
	}
	if ss.hops >= ss.maxHops {
		ss.terminate(Loop)
		return nil
	}

	evtMgr.Schedule(ss, nil, forwardHop, vrtime.SecondsToTime(1.0))
	return nil
}
