package mplsverify

// scenario.go enumerates failure scenarios: the subsets of the network's
// links, of size 0 through k, that are deactivated for one evaluation round.
// Subsets are produced in increasing-size order so callers can short-circuit
// on the smallest violating scenario, and are generated combinadically by
// index so that nothing is materialized up front.  A single source may be
// drained concurrently by a pool of workers; each scenario is handed to
// exactly one of them.

import (
	"fmt"
	"sync"

	"github.com/iti/rngstream"
	"gonum.org/v1/gonum/stat/combin"
)

// An EnumerationOverflowError is the advisory raised when the number of
// k-bounded scenarios exceeds the configured cap.  The caller decides whether
// to abort, raise the cap, or fall back to reproducible sampling; silently
// truncating the enumeration would manufacture false Satisfied verdicts.
type EnumerationOverflowError struct {
	Count int
	Cap   int
}

func (e *EnumerationOverflowError) Error() string {
	return fmt.Sprintf("scenario enumeration of %d exceeds cap %d", e.Count, e.Cap)
}

// A Scenario is one set of links treated as failed.  Index is the scenario's
// position in the deterministic enumeration order, FailedLinks the ascending
// link numbers deactivated by it.
type Scenario struct {
	Index       int
	FailedLinks []int
}

// Size returns the number of failed links in the scenario
func (scn Scenario) Size() int {
	return len(scn.FailedLinks)
}

// Describe renders the scenario's failed links using the link endpoints of
// the given network
func (scn Scenario) Describe(net *Network) string {
	if len(scn.FailedLinks) == 0 {
		return "no failures"
	}
	str := ""
	for idx, lnkNum := range scn.FailedLinks {
		if idx > 0 {
			str += ", "
		}
		str += net.Links[lnkNum].String()
	}
	return str
}

// countCap bounds the products computed while counting scenarios, so that
// pathological (links, k) pairs report overflow instead of wrapping
const countCap = 1 << 40

// countScenarios returns sum over s=0..k of C(n,s), clamped to countCap.
// The second return is false when the clamp was hit.
func countScenarios(n, k int) (int, bool) {
	total := 0
	for s := 0; s <= k && s <= n; s++ {
		binom := 1
		exact := true
		for i := 1; i <= s; i++ {
			binom = binom * (n - i + 1) / i
			if binom > countCap {
				exact = false
				break
			}
		}
		if !exact || total+binom > countCap {
			return countCap, false
		}
		total += binom
	}
	return total, true
}

// A ScenarioSource is a lazy, concurrency-safe sequence of Scenarios.
// Next hands out scenarios in enumeration order: by subset size first, and
// within one size in the lexicographic order of combin's combinadic indexing.
type ScenarioSource struct {
	mu sync.Mutex

	nLinks int
	k      int
	total  int
	exact  bool

	// exhaustive enumeration state
	size      int
	sizeTotal int
	idx       int

	// sampling state
	sampling bool
	samples  int
	drawn    int
	rng      *rngstream.RngStream
}

// CreateScenarioSource is a constructor.  The source enumerates every subset
// of the network's links of size 0..k.
func CreateScenarioSource(net *Network, k int) *ScenarioSource {
	ss := new(ScenarioSource)
	ss.nLinks = len(net.Links)
	if k > ss.nLinks {
		k = ss.nLinks
	}
	ss.k = k
	ss.total, ss.exact = countScenarios(ss.nLinks, k)
	ss.size = 0
	ss.sizeTotal = 1 // C(n,0)
	ss.idx = 0
	return ss
}

// Total returns the number of scenarios the source will produce, and whether
// that count is exact (false means the count clamped at the internal bound)
func (ss *ScenarioSource) Total() (int, bool) {
	return ss.total, ss.exact
}

// Sample switches the source to reproducible sampling: instead of exhausting
// the enumeration it will produce 'samples' scenarios drawn by the named
// rngstream generator.  The empty scenario is always drawn first, so a
// configuration broken with no failures at all is never missed.  Sampling is
// with replacement, and for a fixed stream-creation order the draw sequence
// is identical from run to run.
func (ss *ScenarioSource) Sample(name string, samples int) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sampling = true
	ss.samples = samples
	ss.drawn = 0
	ss.rng = rngstream.New(name)
}

// scenarioByIndex maps a global enumeration index to its Scenario, walking
// the per-size blocks and expanding the within-size index combinadically
func (ss *ScenarioSource) scenarioByIndex(gdx int) Scenario {
	offset := 0
	for s := 0; s <= ss.k; s++ {
		blk := combin.Binomial(ss.nLinks, s)
		if gdx < offset+blk {
			if s == 0 {
				return Scenario{Index: gdx, FailedLinks: []int{}}
			}
			members := combin.IndexToCombination(nil, gdx-offset, ss.nLinks, s)
			return Scenario{Index: gdx, FailedLinks: members}
		}
		offset += blk
	}
	// unreachable for gdx < ss.total
	panic(fmt.Errorf("scenario index %d out of range", gdx))
}

// Next returns the next scenario in the sequence.  The second return is
// false once the sequence is exhausted.  Safe for concurrent use.
func (ss *ScenarioSource) Next() (Scenario, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.sampling {
		if ss.drawn >= ss.samples {
			return Scenario{}, false
		}
		var gdx int
		if ss.drawn == 0 {
			gdx = 0
		} else {
			gdx = ss.rng.RandInt(0, ss.total-1)
		}
		ss.drawn += 1
		return ss.scenarioByIndex(gdx), true
	}

	if ss.size > ss.k {
		return Scenario{}, false
	}

	// global index is the per-size block offset plus the index within the block
	gdx := ss.idx
	for s := 0; s < ss.size; s++ {
		gdx += combin.Binomial(ss.nLinks, s)
	}

	var scn Scenario
	if ss.size == 0 {
		scn = Scenario{Index: gdx, FailedLinks: []int{}}
	} else {
		members := combin.IndexToCombination(nil, ss.idx, ss.nLinks, ss.size)
		scn = Scenario{Index: gdx, FailedLinks: members}
	}

	// advance, rolling over to the next subset size when the block is done
	ss.idx += 1
	if ss.idx >= ss.sizeTotal {
		ss.idx = 0
		ss.size += 1
		if ss.size <= ss.k {
			ss.sizeTotal = combin.Binomial(ss.nLinks, ss.size)
		}
	}

	return scn, true
}
