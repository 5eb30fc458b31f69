// Package view implements the View type of spec §3: the set of named
// references and workspace pointers at one operation, plus its
// three-way merge (spec §4.4 step 5). There is no teacher analogue —
// hugescm's refs are flat git-style pointers with no conflict algebra —
// so RefTarget and its merge are built directly on this module's merge
// package.
package view

import (
	"sort"

	"github.com/martinvonz/jjrepo/merge"
	"github.com/martinvonz/jjrepo/objecthash"
)

// refValue is one term of the Merge Algebra carried by a RefTarget: a
// present commit or explicit absence. Absence must be a real value in
// the algebra (like object.TreeValue's Absent), not a zero-length
// Merge, or merging two adds against an absent base would produce a
// 2-adds/0-removes shape that violates the conflict invariant
// (|adds| = |removes|+1, spec §3 invariant 2).
type refValue struct {
	Present bool
	Id      objecthash.Hash
}

var absentValue = refValue{}

func refValueOf(id objecthash.Hash) refValue { return refValue{Present: true, Id: id} }

func eqRefValue(a, b refValue) bool { return a == b }

// RefTarget is a named reference's value: absent, a single commit, or a
// conflicted set of commits (spec §3: "either absent, a single commit,
// or a conflicted set, same algebra as tree conflicts").
type RefTarget struct {
	m merge.Merge[refValue]
}

// AbsentRef is the RefTarget naming no commit at all.
var AbsentRef = RefTarget{m: merge.Resolved(absentValue)}

// NewRef builds a resolved RefTarget pointing at a single commit.
func NewRef(id objecthash.Hash) RefTarget {
	return RefTarget{m: merge.Resolved(refValueOf(id))}
}

// Term is one element of a RefTarget's raw conflict state, including
// the otherwise-hidden "absent" term — the shape persistence code needs
// to round-trip a conflicted RefTarget exactly (spec invariant 2's
// |adds|=|removes|+1 only holds over this raw, unfiltered view).
type Term struct {
	Present bool
	Id      objecthash.Hash
}

// Terms exposes r's raw adds/removes, including absent terms, for
// serialization.
func (r RefTarget) Terms() (adds, removes []Term) {
	for _, v := range r.m.Adds() {
		adds = append(adds, Term{v.Present, v.Id})
	}
	for _, v := range r.m.Removes() {
		removes = append(removes, Term{v.Present, v.Id})
	}
	return
}

// FromTerms reconstructs a RefTarget from the raw terms Terms produced.
func FromTerms(adds, removes []Term) RefTarget {
	av := make([]refValue, len(adds))
	for i, t := range adds {
		av[i] = refValue{Present: t.Present, Id: t.Id}
	}
	rv := make([]refValue, len(removes))
	for i, t := range removes {
		rv[i] = refValue{Present: t.Present, Id: t.Id}
	}
	return RefTarget{m: merge.New(av, rv)}
}

// IsAbsent reports whether the ref is resolved and names no commit.
func (r RefTarget) IsAbsent() bool {
	v, ok := r.AsResolved()
	return ok && !v.Present
}

// IsConflicted reports whether the ref names more than one commit.
func (r RefTarget) IsConflicted() bool {
	return !r.m.IsResolved()
}

// Adds returns every commit the ref's conflict state adds, omitting any
// absent term (a conflict never actually points "at" absence).
func (r RefTarget) Adds() []objecthash.Hash { return presentOnly(r.m.Adds()) }

// Removes returns every commit the ref's conflict state removes.
func (r RefTarget) Removes() []objecthash.Hash { return presentOnly(r.m.Removes()) }

func presentOnly(vs []refValue) []objecthash.Hash {
	var out []objecthash.Hash
	for _, v := range vs {
		if v.Present {
			out = append(out, v.Id)
		}
	}
	return out
}

// AsResolved returns the single value this ref resolves to, and false
// only if the ref is conflicted. A ref resolved to absence returns true
// with a value whose Present is false.
func (r RefTarget) AsResolved() (refValue, bool) {
	return merge.Resolve(r.m, eqRefValue)
}

// Merge3 merges a and b against common ancestor base using the Merge
// Algebra (spec §3/§4.2: a+b-base), simplifying the result.
func Merge3(a, b, base RefTarget) RefTarget {
	return RefTarget{m: merge.Merge3(a.m, b.m, base.m, eqRefValue)}
}

// RemoteRef is a RefTarget plus the "tracking" flag spec §3 adds for
// remote-view entries.
type RemoteRef struct {
	Target   RefTarget
	Tracking bool
}

// WorkspaceId names a workspace within a repository.
type WorkspaceId string

// View is the spec §3 View: the full named-reference and
// workspace-pointer state as of one operation.
type View struct {
	HeadIds        []objecthash.Hash
	LocalBookmarks map[string]RefTarget
	Tags           map[string]RefTarget
	RemoteViews    map[string]map[string]RemoteRef
	GitRefs        map[string]RefTarget
	GitHead        RefTarget
	WcCommitIds    map[WorkspaceId]objecthash.Hash
}

// Empty returns a View with every map initialized and no refs set, the
// view of the synthetic zero operation.
func Empty() *View {
	return &View{
		LocalBookmarks: map[string]RefTarget{},
		Tags:           map[string]RefTarget{},
		RemoteViews:    map[string]map[string]RemoteRef{},
		GitRefs:        map[string]RefTarget{},
		GitHead:        AbsentRef,
		WcCommitIds:    map[WorkspaceId]objecthash.Hash{},
	}
}

// Clone returns a deep-enough copy for a transaction to mutate without
// aliasing the parent view's maps.
func (v *View) Clone() *View {
	cp := &View{
		HeadIds:        append([]objecthash.Hash(nil), v.HeadIds...),
		LocalBookmarks: cloneRefMap(v.LocalBookmarks),
		Tags:           cloneRefMap(v.Tags),
		GitRefs:        cloneRefMap(v.GitRefs),
		GitHead:        v.GitHead,
		WcCommitIds:    map[WorkspaceId]objecthash.Hash{},
		RemoteViews:    map[string]map[string]RemoteRef{},
	}
	for w, id := range v.WcCommitIds {
		cp.WcCommitIds[w] = id
	}
	for remote, refs := range v.RemoteViews {
		cp.RemoteViews[remote] = map[string]RemoteRef{}
		for name, r := range refs {
			cp.RemoteViews[remote][name] = r
		}
	}
	return cp
}

// getRef returns m[name], defaulting to AbsentRef for a missing key so
// every RefTarget fed into Merge3 is a validly shaped Merge — a bare
// zero-value RefTarget{} (nil adds/removes) would violate the
// conflict-shape invariant once combined with a present side.
func getRef(m map[string]RefTarget, name string) RefTarget {
	if r, ok := m[name]; ok {
		return r
	}
	return AbsentRef
}

// wcValue reads v's pointer for workspace w as a refValue, absent if v has
// no entry for w, so it can be fed into the same Merge3/eqRefValue algebra
// every other ref slot uses.
func wcValue(v *View, w WorkspaceId) refValue {
	if id, ok := v.WcCommitIds[w]; ok {
		return refValueOf(id)
	}
	return absentValue
}

func getRemoteTarget(m map[string]RemoteRef, name string) RefTarget {
	if r, ok := m[name]; ok {
		return r.Target
	}
	return AbsentRef
}

func cloneRefMap(m map[string]RefTarget) map[string]RefTarget {
	cp := make(map[string]RefTarget, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// HeadsFunc is the function used to recompute head_ids as "heads() of the
// union" (spec §4.4 step 5); it is supplied by the caller (the index
// package owns ancestry) rather than imported here, keeping view free
// of an index dependency.
type HeadsFunc func(ids []objecthash.Hash) []objecthash.Hash

// Merge computes the recursive three-way merge of a and b against their
// common ancestor operation's view base (spec §4.4 step 5): RefTarget
// algebra for every ref slot, wc_commit_ids merged with the same
// three-way rule except that a pointer both sides moved to different
// commits takes a's value (b's if a has none), and head_ids recomputed
// from the union via headsOf.
func Merge(a, b, base *View, headsOf HeadsFunc) *View {
	out := Empty()

	allBookmarks := unionKeys(a.LocalBookmarks, b.LocalBookmarks, base.LocalBookmarks)
	for _, name := range allBookmarks {
		out.LocalBookmarks[name] = Merge3(getRef(a.LocalBookmarks, name), getRef(b.LocalBookmarks, name), getRef(base.LocalBookmarks, name))
	}

	allTags := unionKeys(a.Tags, b.Tags, base.Tags)
	for _, name := range allTags {
		out.Tags[name] = Merge3(getRef(a.Tags, name), getRef(b.Tags, name), getRef(base.Tags, name))
	}

	allGitRefs := unionKeys(a.GitRefs, b.GitRefs, base.GitRefs)
	for _, name := range allGitRefs {
		out.GitRefs[name] = Merge3(getRef(a.GitRefs, name), getRef(b.GitRefs, name), getRef(base.GitRefs, name))
	}

	out.GitHead = Merge3(a.GitHead, b.GitHead, base.GitHead)

	remotes := map[string]struct{}{}
	for r := range a.RemoteViews {
		remotes[r] = struct{}{}
	}
	for r := range b.RemoteViews {
		remotes[r] = struct{}{}
	}
	for r := range base.RemoteViews {
		remotes[r] = struct{}{}
	}
	for remote := range remotes {
		av, bv, cv := a.RemoteViews[remote], b.RemoteViews[remote], base.RemoteViews[remote]
		names := map[string]struct{}{}
		for n := range av {
			names[n] = struct{}{}
		}
		for n := range bv {
			names[n] = struct{}{}
		}
		for n := range cv {
			names[n] = struct{}{}
		}
		merged := map[string]RemoteRef{}
		for name := range names {
			at, bt, ct := getRemoteTarget(av, name), getRemoteTarget(bv, name), getRemoteTarget(cv, name)
			merged[name] = RemoteRef{
				Target:   Merge3(at, bt, ct),
				Tracking: av[name].Tracking || bv[name].Tracking || cv[name].Tracking,
			}
		}
		out.RemoteViews[remote] = merged
	}

	workspaces := map[WorkspaceId]struct{}{}
	for w := range a.WcCommitIds {
		workspaces[w] = struct{}{}
	}
	for w := range b.WcCommitIds {
		workspaces[w] = struct{}{}
	}
	for w := range base.WcCommitIds {
		workspaces[w] = struct{}{}
	}
	for w := range workspaces {
		av, bv, cv := wcValue(a, w), wcValue(b, w), wcValue(base, w)
		merged := merge.Merge3(merge.Resolved(av), merge.Resolved(bv), merge.Resolved(cv), eqRefValue)
		if resolved, ok := merge.Resolve(merged, eqRefValue); ok {
			if resolved.Present {
				out.WcCommitIds[w] = resolved.Id
			}
			continue
		}
		// a and b moved the workspace pointer to different commits,
		// neither of which is base's: a genuine conflict. wc_commit_ids
		// has no conflicted representation the way RefTarget does, and
		// synthesizing a merge commit of both wc commits (what jj itself
		// does here) needs backend access view.Merge doesn't have, so
		// this is left as an open question (spec §9) -- side a wins,
		// same precedence the op-heads merge already uses for whole
		// operations.
		if id, ok := a.WcCommitIds[w]; ok {
			out.WcCommitIds[w] = id
			continue
		}
		out.WcCommitIds[w] = b.WcCommitIds[w]
	}

	union := append(append([]objecthash.Hash{}, a.HeadIds...), b.HeadIds...)
	out.HeadIds = headsOf(union)

	return out
}

func unionKeys(maps ...map[string]RefTarget) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, m := range maps {
		for k := range m {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	return names
}
