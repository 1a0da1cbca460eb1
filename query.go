package mplsverify

// query.go compiles a path-pattern string into a matcher over traces, the
// router-name sequences produced by the forwarding simulator.  A pattern is a
// whitespace-separated list of tokens; a bare token is a literal router name
// that must match its position exactly, while a bracketed token such as []
// or [inner] is a capture marker matching a contiguous run of zero or more
// router names.  The pattern is compiled once into a list of tagged segments
// and then reused, read-only, across every scenario of an evaluation.

import (
	"fmt"
	"strings"
)

// An InvalidPatternError reports unusable pattern syntax: unbalanced capture
// markers, empty literal tokens, an empty pattern
type InvalidPatternError struct {
	Pattern string
	Detail  string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid query pattern %q: %s", e.Pattern, e.Detail)
}

// segment kinds.  A query is a sequence of literal and capture segments.
type segKind int

const (
	literalSeg segKind = iota
	captureSeg
)

type segment struct {
	kind  segKind
	token string // router name, for literal segments
	name  string // capture name, possibly empty, for capture segments
}

// A PathQuery is a compiled path pattern.  Immutable after compilation, safe
// for concurrent Match calls.
type PathQuery struct {
	Pattern string
	segs    []segment
	numCaps int
}

// A MatchResult reports the accepted split of a trace across the pattern's
// capture markers.  Groups holds the captured runs in marker order; Captures
// holds the same runs keyed by marker name, for the markers that have one.
type MatchResult struct {
	Groups   [][]string
	Captures map[string][]string
}

// CompileQuery parses and validates a pattern string, returning the compiled
// matcher or an InvalidPatternError
func CompileQuery(pattern string) (*PathQuery, error) {
	tokens := strings.Fields(pattern)
	if len(tokens) == 0 {
		return nil, &InvalidPatternError{Pattern: pattern, Detail: "pattern is empty"}
	}

	pq := new(PathQuery)
	pq.Pattern = pattern
	pq.segs = make([]segment, 0, len(tokens))
	seenNames := map[string]bool{}

	for _, token := range tokens {
		if strings.HasPrefix(token, "[") {
			if !strings.HasSuffix(token, "]") {
				return nil, &InvalidPatternError{Pattern: pattern,
					Detail: fmt.Sprintf("unbalanced capture marker %q", token)}
			}
			name := token[1 : len(token)-1]
			if strings.ContainsAny(name, "[]") {
				return nil, &InvalidPatternError{Pattern: pattern,
					Detail: fmt.Sprintf("nested bracket in capture marker %q", token)}
			}
			if len(name) > 0 && seenNames[name] {
				return nil, &InvalidPatternError{Pattern: pattern,
					Detail: fmt.Sprintf("capture name %q duplicated", name)}
			}
			seenNames[name] = true
			pq.segs = append(pq.segs, segment{kind: captureSeg, name: name})
			pq.numCaps += 1
			continue
		}

		if strings.ContainsAny(token, "[]") {
			return nil, &InvalidPatternError{Pattern: pattern,
				Detail: fmt.Sprintf("unbalanced capture marker %q", token)}
		}
		pq.segs = append(pq.segs, segment{kind: literalSeg, token: token})
	}

	return pq, nil
}

// NumCaptures returns the number of capture markers in the pattern
func (pq *PathQuery) NumCaptures() int {
	return pq.numCaps
}

// Literals returns the literal router names the pattern references, in
// pattern order, duplicates included
func (pq *PathQuery) Literals() []string {
	lits := []string{}
	for _, seg := range pq.segs {
		if seg.kind == literalSeg {
			lits = append(lits, seg.token)
		}
	}
	return lits
}

// Match tests whether the trace is accepted by the pattern and, when it is,
// reports the deterministic split of the trace across the capture markers.
//
// The split is resolved left to right: literal runs at the pattern's ends are
// anchored there, each interior literal run matches at the earliest position
// after the previous one, and captures absorb the gaps.  Captures are
// therefore lazy except for the final one, which takes whatever remains.
// Matching a run at its earliest position never rejects a trace some later
// position would accept, so acceptance itself is exact.
func (pq *PathQuery) Match(trace []string) (*MatchResult, bool) {
	segs := pq.segs
	pos := 0
	sdx := 0

	// literal prefix is anchored at the front
	for sdx < len(segs) && segs[sdx].kind == literalSeg {
		if pos >= len(trace) || trace[pos] != segs[sdx].token {
			return nil, false
		}
		pos += 1
		sdx += 1
	}

	res := &MatchResult{Groups: [][]string{}, Captures: map[string][]string{}}

	// pattern was all literals: accept only exact equality
	if sdx == len(segs) {
		if pos == len(trace) {
			return res, true
		}
		return nil, false
	}

	// literal suffix is anchored at the back
	end := len(segs)
	for end > sdx && segs[end-1].kind == literalSeg {
		end -= 1
	}
	tail := segs[end:]
	stop := len(trace) - len(tail)
	if stop < pos {
		return nil, false
	}
	for tdx, seg := range tail {
		if trace[stop+tdx] != seg.token {
			return nil, false
		}
	}

	// the middle section starts and ends with a capture
	for sdx < end {
		capture := segs[sdx]
		sdx += 1

		// gather the literal run following the capture
		run := []string{}
		for sdx < end && segs[sdx].kind == literalSeg {
			run = append(run, segs[sdx].token)
			sdx += 1
		}

		var group []string
		if len(run) == 0 {
			if sdx >= end {
				// final capture takes the remainder
				group = trace[pos:stop]
				pos = stop
			} else {
				// adjacent captures: the earlier one stays empty
				group = []string{}
			}
		} else {
			found := findRun(trace, run, pos, stop)
			if found < 0 {
				return nil, false
			}
			group = trace[pos:found]
			pos = found + len(run)
		}

		res.Groups = append(res.Groups, group)
		if len(capture.name) > 0 {
			res.Captures[capture.name] = group
		}
	}

	return res, true
}

// findRun returns the smallest index f in [pos, stop-len(run)] at which the
// literal run appears contiguously in the trace, or -1
func findRun(trace, run []string, pos, stop int) int {
	for f := pos; f+len(run) <= stop; f++ {
		matched := true
		for rdx, name := range run {
			if trace[f+rdx] != name {
				matched = false
				break
			}
		}
		if matched {
			return f
		}
	}
	return -1
}
