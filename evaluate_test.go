package mplsverify

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func compile(t *testing.T, pattern string) *PathQuery {
	t.Helper()
	pq, err := CompileQuery(pattern)
	if err != nil {
		t.Fatalf("compile %q failed: %v", pattern, err)
	}
	return pq
}

func TestEvaluateSatisfiedNoFaults(t *testing.T) {
	net := linearNetwork(t)
	ev := CreateEvaluator(net, compile(t, "S1 [] S3"), linearPckt(), 0)

	vd, err := ev.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !vd.Satisfied {
		t.Fatalf("expected Satisfied at k=0, got %s", vd.String())
	}
	if vd.Evaluated != 1 {
		t.Errorf("expected 1 scenario evaluated, got %d", vd.Evaluated)
	}
	if vd.Sampled {
		t.Error("exhaustive evaluation reported as sampled")
	}
}

func TestEvaluateViolatedEarliestScenario(t *testing.T) {
	net := linearNetwork(t)

	// with k=2 over 2 links the scenario order is {}, {0}, {1}, {0,1}; the
	// first violating one is {0}, whichever worker happens to find it first
	ev := CreateEvaluator(net, compile(t, "S1 [] S3"), linearPckt(), 2)
	ev.Workers = 4

	for round := 0; round < 20; round++ {
		vd, err := ev.Evaluate(context.Background())
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if vd.Satisfied {
			t.Fatal("expected a violation at k=2")
		}
		cx := vd.Counterexample
		if cx.Scenario.Index != 1 {
			t.Fatalf("round %d: counterexample at scenario %d, want 1", round, cx.Scenario.Index)
		}
		if !reflect.DeepEqual(cx.Scenario.FailedLinks, []int{0}) {
			t.Fatalf("unexpected failure set %v", cx.Scenario.FailedLinks)
		}
		if cx.Outcome != Unreachable {
			t.Errorf("expected Unreachable, got %v", cx.Outcome)
		}
		if cx.EgressReachable {
			t.Error("cut linear topology reported physically reachable")
		}
		if !reflect.DeepEqual(cx.Trace, []string{"S1"}) {
			t.Errorf("unexpected counterexample trace %v", cx.Trace)
		}
	}
}

func TestEvaluateLabelFaultDiagnosis(t *testing.T) {
	// remove S2's rule: the packet is dropped there even with zero failures,
	// and the diagnosis shows the egress was physically reachable all along
	td, rd := linearDescs()
	rd.Tables = rd.Tables[:1]
	net, err := BuildNetwork(td, rd)
	if err != nil {
		t.Fatalf("BuildNetwork failed: %v", err)
	}

	ev := CreateEvaluator(net, compile(t, "S1 [] S3"), linearPckt(), 0)
	vd, err := ev.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if vd.Satisfied {
		t.Fatal("expected a violation with no rule at S2")
	}
	cx := vd.Counterexample
	if cx.Outcome != Dropped {
		t.Errorf("expected Dropped, got %v", cx.Outcome)
	}
	if !cx.EgressReachable || cx.PhysicalHops != 2 {
		t.Errorf("expected physically reachable in 2 hops, got (%v, %d)",
			cx.EgressReachable, cx.PhysicalHops)
	}
}

func TestEvaluateOverflow(t *testing.T) {
	net := linearNetwork(t)
	ev := CreateEvaluator(net, compile(t, "[]"), linearPckt(), 1)
	ev.ScenarioCap = 2 // 3 scenarios at k=1

	_, err := ev.Evaluate(context.Background())
	var overflow *EnumerationOverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("expected EnumerationOverflowError, got %v", err)
	}
	if overflow.Count != 3 || overflow.Cap != 2 {
		t.Errorf("unexpected overflow report %+v", overflow)
	}
}

func TestEvaluateSampledVerdict(t *testing.T) {
	net := linearNetwork(t)
	// the universal pattern accepts every trace, so even a sampled run
	// is Satisfied
	ev := CreateEvaluator(net, compile(t, "[]"), linearPckt(), 1)
	ev.ScenarioCap = 2
	ev.SampleCount = 5

	vd, err := ev.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !vd.Satisfied || !vd.Sampled {
		t.Errorf("expected a sampled Satisfied verdict, got %s", vd.String())
	}
	if vd.Evaluated != 5 {
		t.Errorf("expected 5 sampled scenarios evaluated, got %d", vd.Evaluated)
	}
}

func TestEvaluateBadPacketSpec(t *testing.T) {
	// a misreferenced packet specification must fail the evaluation, never
	// yield a Satisfied verdict over zero scenarios
	net := linearNetwork(t)

	cases := []struct {
		name string
		edit func(*PcktSpec)
	}{
		{"egress", func(pckt *PcktSpec) { pckt.Egress = "nope" }},
		{"ingress", func(pckt *PcktSpec) { pckt.Ingress = "nope" }},
		{"ingress interface", func(pckt *PcktSpec) { pckt.IngressIntrfc = "nope" }},
	}
	for _, tc := range cases {
		pckt := linearPckt()
		tc.edit(&pckt)
		ev := CreateEvaluator(net, compile(t, "S1 [] S3"), pckt, 1)

		vd, err := ev.Evaluate(context.Background())
		var unknown *UnknownReferenceError
		if !errors.As(err, &unknown) {
			t.Errorf("bad %s: expected UnknownReferenceError, got verdict %v, err %v",
				tc.name, vd, err)
		}
		if vd != nil {
			t.Errorf("bad %s: expected no verdict, got %s", tc.name, vd.String())
		}
	}
}

func TestEvaluateCancelledContext(t *testing.T) {
	net := linearNetwork(t)
	ev := CreateEvaluator(net, compile(t, "S1 [] S3"), linearPckt(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ev.Evaluate(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEvaluateQueryOneCall(t *testing.T) {
	net := linearNetwork(t)

	vd, err := EvaluateQuery(context.Background(), net, "S1 [] S3", linearPckt(), 0)
	if err != nil {
		t.Fatalf("EvaluateQuery failed: %v", err)
	}
	if !vd.Satisfied {
		t.Errorf("expected Satisfied, got %s", vd.String())
	}

	_, err = EvaluateQuery(context.Background(), net, "S1 [oops", linearPckt(), 0)
	var invalid *InvalidPatternError
	if !errors.As(err, &invalid) {
		t.Errorf("expected InvalidPatternError, got %v", err)
	}
}

func TestVerdictString(t *testing.T) {
	vd := &Verdict{Satisfied: true, Evaluated: 4}
	if vd.String() != "Satisfied (4 scenarios)" {
		t.Errorf("unexpected verdict string %q", vd.String())
	}
	vd.Sampled = true
	if vd.String() != "Satisfied (sampled, 4 scenarios)" {
		t.Errorf("unexpected sampled verdict string %q", vd.String())
	}
}
