package mplsverify

import "testing"

func TestDiagnoseReachabilityLinear(t *testing.T) {
	net := linearNetwork(t)
	pckt := linearPckt()

	ok, hops := DiagnoseReachability(net, Scenario{}, pckt)
	if !ok || hops != 2 {
		t.Errorf("expected reachable in 2 hops, got (%v, %d)", ok, hops)
	}

	// cutting either link partitions a linear topology
	ok, _ = DiagnoseReachability(net, Scenario{FailedLinks: []int{0}}, pckt)
	if ok {
		t.Error("egress reported reachable with the S1--S2 link cut")
	}
	ok, _ = DiagnoseReachability(net, Scenario{FailedLinks: []int{1}}, pckt)
	if ok {
		t.Error("egress reported reachable with the S2--S3 link cut")
	}
}

func TestDiagnoseReachabilityRing(t *testing.T) {
	net := fiveLinkNetwork(t)
	pckt := PcktSpec{Ingress: "R0", IngressIntrfc: "right", Egress: "R2"}

	// around the ring the short way
	ok, hops := DiagnoseReachability(net, Scenario{}, pckt)
	if !ok || hops != 2 {
		t.Errorf("expected 2 hops on the intact ring, got (%v, %d)", ok, hops)
	}

	// cut the short way: the long way remains, 3 hops
	ok, hops = DiagnoseReachability(net, Scenario{FailedLinks: []int{0}}, pckt)
	if !ok || hops != 3 {
		t.Errorf("expected 3 hops around the cut, got (%v, %d)", ok, hops)
	}

	// cut both sides of R2
	ok, _ = DiagnoseReachability(net, Scenario{FailedLinks: []int{1, 2}}, pckt)
	if ok {
		t.Error("isolated egress reported reachable")
	}
}

func TestDiagnoseReachabilitySameRouter(t *testing.T) {
	net := linearNetwork(t)
	pckt := PcktSpec{Ingress: "S2", Egress: "S2"}
	ok, hops := DiagnoseReachability(net, Scenario{}, pckt)
	if !ok || hops != 0 {
		t.Errorf("router should reach itself in 0 hops, got (%v, %d)", ok, hops)
	}
}

func TestRouteCacheReuse(t *testing.T) {
	net := fiveLinkNetwork(t)
	rc := buildRouteCache(net, Scenario{})

	r0 := net.RouterByName("R0").Number
	r3 := net.RouterByName("R3").Number

	first, ok := rc.hopsBetween(r0, r3)
	if !ok || first != 2 {
		t.Fatalf("expected 2 hops R0->R3, got (%d, %v)", first, ok)
	}
	if len(rc.cachedSP) != 1 {
		t.Errorf("expected one cached tree, got %d", len(rc.cachedSP))
	}

	// the reverse query is served from the cached tree by symmetry
	second, ok := rc.hopsBetween(r3, r0)
	if !ok || second != first {
		t.Errorf("reverse query disagreed: %d vs %d", second, first)
	}
	if len(rc.cachedSP) != 1 {
		t.Errorf("reverse query grew the cache to %d trees", len(rc.cachedSP))
	}
}
