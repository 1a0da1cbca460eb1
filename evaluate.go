package mplsverify

// evaluate.go decides k-fault-tolerant satisfiability: the query holds only
// if every failure scenario of size at most k yields a trace the compiled
// pattern accepts.  Scenarios are independent of one another, so they are
// spread across a worker pool; the shared state is the scenario source, the
// trace manager, and one mutex-guarded violation record.  The first worker
// to find a rejecting scenario cancels the rest best-effort, and because the
// source hands indexes out in increasing order the violation of smallest
// enumeration index is always the one reported.

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// A Counterexample packages the first rejecting scenario of a Violated
// verdict together with the evidence: the trace the simulator produced, the
// outcome that terminated it, and whether the egress was even physically
// reachable with that failure set (separating label misconfiguration from
// plain partition).
type Counterexample struct {
	Scenario    Scenario
	FailedLinks string
	Trace       []string
	Outcome     SimOutcome

	EgressReachable bool
	PhysicalHops    int
}

// A Verdict is the aggregate result of one evaluation
type Verdict struct {
	Satisfied bool

	// Sampled is true when the scenario space overflowed the cap and was
	// sampled instead of exhausted; a Satisfied verdict is then advisory
	Sampled bool

	// Evaluated counts the scenarios actually simulated
	Evaluated int

	// Counterexample is set when Satisfied is false
	Counterexample *Counterexample
}

func (vd *Verdict) String() string {
	if vd.Satisfied {
		if vd.Sampled {
			return fmt.Sprintf("Satisfied (sampled, %d scenarios)", vd.Evaluated)
		}
		return fmt.Sprintf("Satisfied (%d scenarios)", vd.Evaluated)
	}
	cx := vd.Counterexample
	return fmt.Sprintf("Violated by scenario %d (%s): outcome %s, trace %v",
		cx.Scenario.Index, cx.FailedLinks, cx.Outcome, cx.Trace)
}

// An Evaluator binds together everything one satisfiability decision needs.
// The network and compiled query are shared read-only by its workers.
type Evaluator struct {
	Net   *Network
	Query *PathQuery
	Pckt  PcktSpec
	K     int

	// Workers sizes the pool; at or below zero selects one worker per CPU
	Workers int

	// MaxHops caps each simulation; at or below zero selects DefaultMaxHops
	MaxHops int

	// ScenarioCap bounds the number of scenarios an exhaustive evaluation
	// may take on; above it the evaluator either samples or refuses
	ScenarioCap int

	// SampleCount, when positive, turns an over-cap enumeration into a
	// reproducible sample of that many scenarios instead of an error
	SampleCount int

	// Log, when set, receives progress and violation reports
	Log *slog.Logger

	// TraceMgr, when set and active, collects per-hop records
	TraceMgr *TraceManager
}

// CreateEvaluator is a constructor filling in pool and cap defaults
func CreateEvaluator(net *Network, query *PathQuery, pckt PcktSpec, k int) *Evaluator {
	ev := new(Evaluator)
	ev.Net = net
	ev.Query = query
	ev.Pckt = pckt
	ev.K = k
	ev.Workers = runtime.NumCPU()
	ev.MaxHops = DefaultMaxHops
	ev.ScenarioCap = 1 << 20
	return ev
}

// Evaluate runs the k-bounded evaluation.  It returns a Verdict, or an
// UnknownReferenceError when the packet specification names a router or
// interface the model does not contain, or an EnumerationOverflowError when
// the scenario space exceeds the cap and sampling was not enabled, or the
// context's error when it was cancelled or timed out before a verdict was
// reached.
func (ev *Evaluator) Evaluate(ctx context.Context) (*Verdict, error) {
	// a misreferenced packet specification fails the whole evaluation here,
	// not scenario by scenario inside the pool
	err := checkPcktRefs(ev.Net, ev.Pckt)
	if err != nil {
		return nil, err
	}

	src := CreateScenarioSource(ev.Net, ev.K)

	total, exact := src.Total()
	sampled := false
	if !exact || (ev.ScenarioCap > 0 && total > ev.ScenarioCap) {
		if ev.SampleCount <= 0 {
			return nil, &EnumerationOverflowError{Count: total, Cap: ev.ScenarioCap}
		}
		src.Sample("scenario-sample", ev.SampleCount)
		sampled = true
		if ev.Log != nil {
			ev.Log.Warn("scenario space over cap, sampling",
				"total", total, "cap", ev.ScenarioCap, "samples", ev.SampleCount)
		}
	}

	workers := ev.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	var best *Counterexample
	evaluated := 0

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev.worker(ctx, cancel, src, &mu, &best, &evaluated)
		}()
	}
	wg.Wait()

	// distinguish a cancellation-driven stop from a found violation
	if ctx.Err() != nil && best == nil {
		return nil, ctx.Err()
	}

	vd := &Verdict{Satisfied: best == nil, Sampled: sampled, Evaluated: evaluated}
	if best != nil {
		best.EgressReachable, best.PhysicalHops =
			DiagnoseReachability(ev.Net, best.Scenario, ev.Pckt)
		vd.Counterexample = best
	}
	return vd, nil
}

// worker drains the scenario source until it is exhausted or the evaluation
// is cancelled.  In-flight scenarios always run to completion, so a smaller-
// index violation discovered late still displaces a larger-index one.
func (ev *Evaluator) worker(ctx context.Context, cancel context.CancelFunc,
	src *ScenarioSource, mu *sync.Mutex, best **Counterexample, evaluated *int) {

	cancelled := func() bool { return ctx.Err() != nil }

	for {
		mu.Lock()
		stop := *best != nil
		mu.Unlock()
		if stop || ctx.Err() != nil {
			// every unclaimed scenario has a larger index than any claimed
			// one, so nothing that could displace the recorded violation
			// remains in the source
			return
		}

		scn, ok := src.Next()
		if !ok {
			return
		}

		res, err := simulate(ev.Net, scn, ev.Pckt, ev.MaxHops, ev.TraceMgr, cancelled)
		if err != nil {
			// packet misreferences, the only simulate error, are rejected by
			// Evaluate before the pool starts
			if ev.Log != nil {
				ev.Log.Error("simulation failed", "scenario", scn.Index, "err", err.Error())
			}
			return
		}

		if res.Aborted {
			// the run was interrupted by cancellation and its trace is
			// partial.  It only matters if this scenario could displace the
			// recorded violation, in which case it is rerun to completion.
			mu.Lock()
			recorded := *best
			mu.Unlock()
			if recorded != nil && scn.Index >= recorded.Scenario.Index {
				return
			}
			res, err = simulate(ev.Net, scn, ev.Pckt, ev.MaxHops, nil, nil)
			if err != nil {
				return
			}
		}

		mu.Lock()
		*evaluated += 1
		mu.Unlock()

		_, accepted := ev.Query.Match(res.Trace)
		if accepted {
			continue
		}

		cx := &Counterexample{
			Scenario:    scn,
			FailedLinks: scn.Describe(ev.Net),
			Trace:       res.Trace,
			Outcome:     res.Outcome,
		}

		mu.Lock()
		if *best == nil || scn.Index < (*best).Scenario.Index {
			*best = cx
		}
		mu.Unlock()

		if ev.Log != nil {
			ev.Log.Info("violation found", "scenario", scn.Index,
				"failed", cx.FailedLinks, "outcome", res.Outcome.String())
		}
		cancel()
		return
	}
}

// EvaluateQuery is the one-call form: compile the pattern, build the
// evaluator with defaults, and run it under the given context
func EvaluateQuery(ctx context.Context, net *Network, pattern string, pckt PcktSpec, k int) (*Verdict, error) {
	pq, err := CompileQuery(pattern)
	if err != nil {
		return nil, err
	}
	ev := CreateEvaluator(net, pq, pckt, k)
	return ev.Evaluate(ctx)
}
