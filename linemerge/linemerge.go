// Package linemerge implements a three-way, line-level text merge with the
// same conflict-marker vocabulary the rest of the ecosystem uses:
// <<<<<<<, |||||||, =======, >>>>>>>. It underlies the Merge Algebra's
// conflict materialization (spec §4.2) and its round-trip parser.
package linemerge

import (
	"fmt"
	"strings"
)

// Conflict-marker separators. Kept as their own constants, rather than
// inlined literals, because the round-trip parser matches on them too.
const (
	Sep1 = "<<<<<<<" // ours / side A
	SepO = "|||||||" // base
	Sep2 = "=======" // divider
	Sep3 = ">>>>>>>" // theirs / side B
)

// splitLines splits s into lines, preserving trailing newlines on every
// element but the (possibly absent) final partial line, so that joining the
// slice back together reconstructs s exactly.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func join(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
	}
	return b.String()
}

// region is one aligned block of the three-way merge: either a run of
// agreed-upon lines (ok != nil) or a conflicting hunk.
type region struct {
	ok       []string
	conflict *hunk
}

type hunk struct {
	base, a, b []string
}

// Options configures a Merge call.
type Options struct {
	LabelA, LabelBase, LabelB string
	// Diff3 requests the "diff3"-style layout that also shows the base
	// text inside the conflict block, instead of hiding it.
	Diff3 bool
}

// Merge performs a three-way merge of base/a/b line-oriented text. It
// returns the merged text, whether any conflicting hunks remain, and the
// list of raw hunks (for callers, such as the Merge Algebra, that need the
// structured form rather than the rendered markers).
func Merge(base, a, b string, opts Options) (merged string, conflicted bool, hunks []ConflictHunk) {
	regions := diff3(splitLines(base), splitLines(a), splitLines(b))
	var out strings.Builder
	for _, r := range regions {
		if r.ok != nil {
			out.WriteString(join(r.ok))
			continue
		}
		conflicted = true
		hunks = append(hunks, ConflictHunk{
			Base: join(r.conflict.base),
			A:    join(r.conflict.a),
			B:    join(r.conflict.b),
		})
		writeConflict(&out, r.conflict, opts)
	}
	return out.String(), conflicted, hunks
}

// ConflictHunk is the structured form of one conflicting region, used by
// round-trip parsing (Parse) and by callers that want to inspect conflicts
// without re-parsing rendered markers.
type ConflictHunk struct {
	Base, A, B string
}

func writeConflict(out *strings.Builder, h *hunk, opts Options) {
	writeLabeled(out, Sep1, opts.LabelA)
	out.WriteString(join(h.a))
	if opts.Diff3 {
		writeLabeled(out, SepO, opts.LabelBase)
		out.WriteString(join(h.base))
	}
	out.WriteString(Sep2)
	out.WriteString("\n")
	out.WriteString(join(h.b))
	writeLabeled(out, Sep3, opts.LabelB)
}

func writeLabeled(out *strings.Builder, sep, label string) {
	out.WriteString(sep)
	if label != "" {
		out.WriteString(" ")
		out.WriteString(label)
	}
	out.WriteString("\n")
}

// diff3 aligns base/a/b into a sequence of ok/conflict regions using the
// classic diff3 merge-indices approach: diff base->a and base->b
// independently with Myers, then walk both edit scripts in lock-step over
// base offsets, emitting a conflict whenever the two scripts disagree about
// a stretch of base lines.
func diff3(base, a, b []string) []region {
	da := myers(base, a)
	db := myers(base, b)

	var regions []region
	var okA, okBase, okB []string
	flush := func() {
		if len(okA) != 0 || len(okBase) != 0 || len(okB) != 0 {
			switch {
			case equalRuns(okA, okB) || equalRuns(okB, okBase):
				regions = append(regions, region{ok: append([]string{}, okA...)})
			case equalRuns(okA, okBase):
				regions = append(regions, region{ok: append([]string{}, okB...)})
			default:
				regions = append(regions, region{conflict: &hunk{base: okBase, a: okA, b: okB}})
			}
		}
		okA, okBase, okB = nil, nil, nil
	}

	ia, ib := 0, 0
	baseI := 0
	for baseI < len(base) || ia < len(da) || ib < len(db) {
		// Emit inserts that occur exactly at this base position from both
		// sides, then consume one base line (copied or replaced by both
		// sides' edit scripts in lock-step).
		for ia < len(da) && da[ia].basePos == baseI && da[ia].op == opInsert {
			okA = append(okA, da[ia].lines...)
			ia++
		}
		for ib < len(db) && db[ib].basePos == baseI && db[ib].op == opInsert {
			okB = append(okB, db[ib].lines...)
			ib++
		}
		if baseI >= len(base) {
			break
		}
		aDel := ia < len(da) && da[ia].basePos == baseI && da[ia].op == opDelete
		bDel := ib < len(db) && db[ib].basePos == baseI && db[ib].op == opDelete
		if !aDel && !bDel {
			flush()
			regions = append(regions, region{ok: []string{base[baseI]}})
			baseI++
			continue
		}
		okBase = append(okBase, base[baseI])
		if aDel {
			ia++
		} else {
			okA = append(okA, base[baseI])
		}
		if bDel {
			ib++
		} else {
			okB = append(okB, base[baseI])
		}
		baseI++
	}
	flush()
	return mergeAdjacentConflicts(regions)
}

func equalRuns(x, y []string) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// mergeAdjacentConflicts coalesces neighboring conflict regions so that a
// run of disagreement is rendered as a single marker block rather than one
// per line, matching how diff3 presents hunks.
func mergeAdjacentConflicts(in []region) []region {
	var out []region
	for _, r := range in {
		if r.conflict != nil && len(out) != 0 && out[len(out)-1].conflict != nil {
			last := out[len(out)-1].conflict
			last.base = append(last.base, r.conflict.base...)
			last.a = append(last.a, r.conflict.a...)
			last.b = append(last.b, r.conflict.b...)
			continue
		}
		out = append(out, r)
	}
	return out
}

// scanMarkers walks text's marker structure line by line, dispatching
// each non-marker line to the callback for whatever side it currently
// falls under (onPlain outside any hunk, onA/onBase/onB inside one), and
// calling onHunkEnd every time a Sep3 closes a hunk. Shared by Parse and
// ReassembleSides, which differ only in what they do with those lines.
func scanMarkers(text string, onPlain, onA, onBase, onB func(line string), onHunkEnd func()) (conflicted bool, err error) {
	lines := splitLines(text)
	state := 0 // 0=plain 1=inA 2=inBase(diff3) 3=inB
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(trimmed, Sep1):
			if state != 0 {
				return false, fmt.Errorf("linemerge: unexpected %q while in state %d", Sep1, state)
			}
			state = 1
		case strings.HasPrefix(trimmed, SepO):
			if state != 1 {
				return false, fmt.Errorf("linemerge: unexpected %q while in state %d", SepO, state)
			}
			state = 2
		case strings.HasPrefix(trimmed, Sep2):
			if state != 1 && state != 2 {
				return false, fmt.Errorf("linemerge: unexpected %q while in state %d", Sep2, state)
			}
			state = 3
		case strings.HasPrefix(trimmed, Sep3):
			if state != 3 {
				return false, fmt.Errorf("linemerge: unexpected %q while in state %d", Sep3, state)
			}
			conflicted = true
			onHunkEnd()
			state = 0
		default:
			switch state {
			case 0:
				onPlain(line)
			case 1:
				onA(line)
			case 2:
				onBase(line)
			case 3:
				onB(line)
			}
		}
	}
	if state != 0 {
		return false, fmt.Errorf("linemerge: truncated conflict markers")
	}
	return conflicted, nil
}

// Parse recovers the structured ConflictHunk list from previously rendered
// marker text, used by the round-trip law in spec §8: parse(materialize(c))
// == simplify(c). It returns an error if the text is not well-formed
// conflict markup (unequal marker counts, wrong ordering, etc).
func Parse(text string) (ok []string, hunks []ConflictHunk, err error) {
	var sideA, sideBase, sideB []string
	_, err = scanMarkers(text,
		func(line string) { ok = append(ok, line) },
		func(line string) { sideA = append(sideA, line) },
		func(line string) { sideBase = append(sideBase, line) },
		func(line string) { sideB = append(sideB, line) },
		func() {
			hunks = append(hunks, ConflictHunk{Base: join(sideBase), A: join(sideA), B: join(sideB)})
			sideA, sideBase, sideB = nil, nil, nil
		},
	)
	if err != nil {
		return nil, nil, err
	}
	return ok, hunks, nil
}

// ReassembleSides recovers the full A and B side texts from previously
// rendered marker text by threading each plain (non-conflicting) run into
// both reconstructions alongside the hunks' own A/B lines — used to
// rebuild a structural Conflict after a user edits an on-disk conflict
// file but leaves some markers intact (spec §4.9), rather than discarding
// the conflict outright. The base side isn't recoverable this way:
// materializeConflict renders without diff3 labels, so no SepO block
// ever appears for Parse/ReassembleSides to recover it from; callers
// keep the conflict's original base term unchanged.
func ReassembleSides(text string) (a, b string, conflicted bool, err error) {
	var aBuf, bBuf strings.Builder
	conflicted, err = scanMarkers(text,
		func(line string) { aBuf.WriteString(line); bBuf.WriteString(line) },
		func(line string) { aBuf.WriteString(line) },
		func(line string) {},
		func(line string) { bBuf.WriteString(line) },
		func() {},
	)
	if err != nil {
		return "", "", false, err
	}
	return aBuf.String(), bBuf.String(), conflicted, nil
}
