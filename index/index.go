package index

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/martinvonz/jjrepo/objecthash"
)

// Index is a stack of immutable Segments viewed as one table (spec
// §4.3: "a composite index views a stack of segments as one table").
// Segments are disjoint by CommitId, so lookups simply try each segment
// from top (most recently built) to bottom.
//
// prefixCache memoizes ResolvePrefix/ResolveChangeIdPrefix against this
// particular segment stack (spec §4.3: resolved prefixes are cached so
// repeated revset evaluation -- e.g. one `jj log` resolving many short
// ids against the same loaded index -- doesn't re-walk every segment).
// It is scoped to one Index value rather than carried across Build
// calls, since a new top segment can change an old answer (a
// previously-unique prefix can become ambiguous), and building a fresh
// cache per Index sidesteps having to invalidate a shared one.
type Index struct {
	segments    []*Segment
	prefixCache *ristretto.Cache[string, prefixCacheEntry]
}

type prefixCacheEntry struct {
	resolution PrefixResolution
	id         objecthash.Hash
	changeIds  []objecthash.Hash
}

func newPrefixCache() *ristretto.Cache[string, prefixCacheEntry] {
	c, err := ristretto.NewCache(&ristretto.Config[string, prefixCacheEntry]{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil
	}
	return c
}

// Empty returns an Index with no segments, the starting point for Build.
func Empty() *Index { return &Index{prefixCache: newPrefixCache()} }

// CommitReader is the minimal commit-graph view Build needs: just
// parents, not the full object.Commit, so the index package never
// depends on store or object for anything but ids.
type CommitReader interface {
	Parents(ctx context.Context, id objecthash.Hash) ([]objecthash.Hash, error)
	ChangeId(ctx context.Context, id objecthash.Hash) (objecthash.Hash, error)
}

// Build walks backward from heads, stopping at any commit idx already
// indexes, and returns a new Index with one additional top segment
// holding exactly the newly discovered commits (spec §4.3: "a new top
// segment records commits not present in lower ones"). Calling Build
// again with the previous result and a superset of heads is how the
// index is kept current as the op log advances.
func Build(ctx context.Context, r CommitReader, base *Index, heads []objecthash.Hash) (*Index, error) {
	if base == nil {
		base = Empty()
	}
	generation := map[objecthash.Hash]uint32{}
	parentsOf := map[objecthash.Hash][]objecthash.Hash{}
	changeOf := map[objecthash.Hash]objecthash.Hash{}
	var order []objecthash.Hash

	var visit func(id objecthash.Hash) (uint32, error)
	visit = func(id objecthash.Hash) (uint32, error) {
		if g, ok := generation[id]; ok {
			return g, nil
		}
		if e, ok := base.find(id); ok {
			generation[id] = e.Generation
			return e.Generation, nil
		}
		parents, err := r.Parents(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("index: reading parents of %s: %w", id, err)
		}
		changeId, err := r.ChangeId(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("index: reading change id of %s: %w", id, err)
		}
		var gen uint32
		for _, p := range parents {
			pg, err := visit(p)
			if err != nil {
				return 0, err
			}
			if pg+1 > gen {
				gen = pg + 1
			}
		}
		generation[id] = gen
		parentsOf[id] = parents
		changeOf[id] = changeId
		order = append(order, id)
		return gen, nil
	}

	for _, h := range heads {
		if _, err := visit(h); err != nil {
			return nil, err
		}
	}

	if len(order) == 0 {
		return base, nil
	}

	sort.SliceStable(order, func(i, j int) bool { return generation[order[i]] < generation[order[j]] })
	entries := make([]entry, len(order))
	for i, id := range order {
		entries[i] = entry{CommitId: id, ChangeId: changeOf[id], Generation: generation[id], ParentIds: parentsOf[id]}
	}

	return &Index{
		segments:    append(append([]*Segment{}, base.segments...), newSegment(entries)),
		prefixCache: newPrefixCache(),
	}, nil
}

func (idx *Index) find(id objecthash.Hash) (entry, bool) {
	for i := len(idx.segments) - 1; i >= 0; i-- {
		if e, ok := idx.segments[i].find(id); ok {
			return e, true
		}
	}
	return entry{}, false
}

// HasId reports whether id is indexed.
func (idx *Index) HasId(id objecthash.Hash) bool {
	_, ok := idx.find(id)
	return ok
}

// Generation returns id's generation number (longest-path distance from
// a root), and false if id is not indexed.
func (idx *Index) Generation(id objecthash.Hash) (uint32, bool) {
	e, ok := idx.find(id)
	return e.Generation, ok
}

func (idx *Index) parents(id objecthash.Hash) []objecthash.Hash {
	e, _ := idx.find(id)
	return e.ParentIds
}

// ParentsOf is parents, exported for revset's depth-bounded ancestors()
// walk, which needs one hop at a time rather than idx's own wanted/
// unwanted primitives.
func (idx *Index) ParentsOf(id objecthash.Hash) []objecthash.Hash {
	return idx.parents(id)
}

// ChangeIdOf returns id's change id, and false if id is not indexed.
func (idx *Index) ChangeIdOf(id objecthash.Hash) (objecthash.Hash, bool) {
	e, ok := idx.find(id)
	return e.ChangeId, ok
}

// ResolveChangeIdPrefix resolves a hex prefix against change ids rather
// than commit ids: every commit carrying a change id with the given
// prefix is a candidate, but ambiguity is judged on the set of distinct
// change ids matched (spec §4.7's change-id-prefix symbol resolution),
// since one change id legitimately labels more than one commit across
// rewrites or divergence.
func (idx *Index) ResolveChangeIdPrefix(hexPrefix string) (PrefixResolution, []objecthash.Hash) {
	cacheKey := "c:" + hexPrefix
	if idx.prefixCache != nil {
		if e, ok := idx.prefixCache.Get(cacheKey); ok {
			return e.resolution, e.changeIds
		}
	}

	matched := map[objecthash.Hash]struct{}{}
	var commits []objecthash.Hash
	for _, seg := range idx.segments {
		for cid, positions := range seg.byChangeId {
			if !hasPrefix(cid, hexPrefix) {
				continue
			}
			matched[cid] = struct{}{}
			for _, pos := range positions {
				commits = append(commits, seg.entries[pos].CommitId)
			}
		}
	}

	var resolution PrefixResolution
	var result []objecthash.Hash
	switch len(matched) {
	case 0:
		resolution, result = NoMatch, nil
	case 1:
		resolution, result = SingleMatch, dedupUnsorted(commits)
	default:
		resolution, result = AmbiguousMatch, nil
	}
	if idx.prefixCache != nil {
		idx.prefixCache.Set(cacheKey, prefixCacheEntry{resolution: resolution, changeIds: result}, 1)
	}
	return resolution, result
}

// PrefixResolution is the three-way outcome of ResolvePrefix.
type PrefixResolution int

const (
	NoMatch PrefixResolution = iota
	SingleMatch
	AmbiguousMatch
)

// ResolvePrefix implements spec §4.3's "finds the lex-smallest and
// lex-largest commit id with the given hex prefix in each segment; if
// both are equal -> single; if first < last -> ambiguous; else none",
// generalized across the whole segment stack.
func (idx *Index) ResolvePrefix(hexPrefix string) (PrefixResolution, objecthash.Hash) {
	cacheKey := "r:" + hexPrefix
	if idx.prefixCache != nil {
		if e, ok := idx.prefixCache.Get(cacheKey); ok {
			return e.resolution, e.id
		}
	}

	resolution, id := idx.resolvePrefixUncached(hexPrefix)
	if idx.prefixCache != nil {
		idx.prefixCache.Set(cacheKey, prefixCacheEntry{resolution: resolution, id: id}, 1)
	}
	return resolution, id
}

func (idx *Index) resolvePrefixUncached(hexPrefix string) (PrefixResolution, objecthash.Hash) {
	var smallest, largest objecthash.Hash
	found := false
	for _, seg := range idx.segments {
		positions := seg.prefixRange(hexPrefix)
		if len(positions) == 0 {
			continue
		}
		first := seg.entries[positions[0]].CommitId
		last := seg.entries[positions[len(positions)-1]].CommitId
		if !found {
			smallest, largest, found = first, last, true
			continue
		}
		if objecthash.Less(first, smallest) {
			smallest = first
		}
		if objecthash.Less(largest, last) {
			largest = last
		}
	}
	if !found {
		return NoMatch, objecthash.Zero
	}
	if smallest == largest {
		return SingleMatch, smallest
	}
	return AmbiguousMatch, objecthash.Zero
}

// AllIds returns every commit id the index covers, in no particular
// order. Used by revset's descendants()/roots() backend expressions,
// which have no wanted/unwanted shortcut and must scan the whole graph.
func (idx *Index) AllIds() []objecthash.Hash {
	var all []objecthash.Hash
	for _, seg := range idx.segments {
		all = append(all, seg.sortedIds()...)
	}
	objecthash.Sort(all)
	return dedupSorted(all)
}

// ShortestUniquePrefixLen returns the shortest hex prefix length that
// resolves only to id, computed symmetrically from id's immediate
// neighbors in the combined sorted id order (spec §4.3).
func (idx *Index) ShortestUniquePrefixLen(id objecthash.Hash) int {
	var all []objecthash.Hash
	for _, seg := range idx.segments {
		all = append(all, seg.sortedIds()...)
	}
	objecthash.Sort(all)
	all = dedupSorted(all)

	i := sort.Search(len(all), func(i int) bool { return !objecthash.Less(all[i], id) })
	if i >= len(all) || all[i] != id {
		return objecthash.HexSize
	}
	best := 1
	if i > 0 {
		if n := commonPrefixLen(id, all[i-1]) + 1; n > best {
			best = n
		}
	}
	if i+1 < len(all) {
		if n := commonPrefixLen(id, all[i+1]) + 1; n > best {
			best = n
		}
	}
	if best > objecthash.HexSize {
		best = objecthash.HexSize
	}
	return best
}

func commonPrefixLen(a, b objecthash.Hash) int {
	as, bs := a.String(), b.String()
	n := 0
	for n < len(as) && n < len(bs) && as[n] == bs[n] {
		n++
	}
	return n
}

func dedupSorted(hs []objecthash.Hash) []objecthash.Hash {
	out := hs[:0]
	var prev objecthash.Hash
	havePrev := false
	for _, h := range hs {
		if havePrev && h == prev {
			continue
		}
		out = append(out, h)
		prev, havePrev = h, true
	}
	return out
}

// IsAncestor reports whether a is an ancestor of (or equal to) b, using
// the generation number to prune the walk (spec §4.3: "generation_number
// ... used to bound ancestor walks").
func (idx *Index) IsAncestor(a, b objecthash.Hash) bool {
	if a == b {
		return true
	}
	genA, okA := idx.Generation(a)
	if !okA {
		return false
	}
	visited := map[objecthash.Hash]struct{}{}
	var walk func(objecthash.Hash) bool
	walk = func(cur objecthash.Hash) bool {
		if cur == a {
			return true
		}
		if _, ok := visited[cur]; ok {
			return false
		}
		visited[cur] = struct{}{}
		genCur, ok := idx.Generation(cur)
		if !ok || genCur <= genA {
			return cur == a
		}
		for _, p := range idx.parents(cur) {
			if walk(p) {
				return true
			}
		}
		return false
	}
	return walk(b)
}

// genHeap is a max-heap over commit ids ordered by generation number,
// used by CommonAncestors to process the DAG frontier newest
// (highest-generation) first, matching the merge-base paint algorithm
// this is grounded on.
type genHeap struct {
	idx   *Index
	items []objecthash.Hash
}

func (h *genHeap) Len() int { return len(h.items) }
func (h *genHeap) Less(i, j int) bool {
	gi, _ := h.idx.Generation(h.items[i])
	gj, _ := h.idx.Generation(h.items[j])
	return gi > gj
}
func (h *genHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *genHeap) Push(x any)         { h.items = append(h.items, x.(objecthash.Hash)) }
func (h *genHeap) Pop() any {
	n := len(h.items)
	v := h.items[n-1]
	h.items = h.items[:n-1]
	return v
}

const (
	colorA = 1 << iota
	colorB
)

// CommonAncestors computes the greatest lower bounds of A and B: the
// maximal commits reachable from both sets (spec §4.3). Uses a
// generation-ordered paint walk, the same shape as git's merge-base,
// adapted to this index's generation numbers instead of commit dates.
func (idx *Index) CommonAncestors(a, b []objecthash.Hash) []objecthash.Hash {
	color := map[objecthash.Hash]int{}
	h := &genHeap{idx: idx}
	push := func(id objecthash.Hash, c int) {
		if color[id]&c != 0 {
			return
		}
		color[id] |= c
		heap.Push(h, id)
	}
	for _, id := range a {
		push(id, colorA)
	}
	for _, id := range b {
		push(id, colorB)
	}
	heap.Init(h)

	var candidates []objecthash.Hash
	seen := map[objecthash.Hash]struct{}{}
	for h.Len() > 0 {
		id := heap.Pop(h).(objecthash.Hash)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		c := color[id]
		if c == (colorA | colorB) {
			candidates = append(candidates, id)
			for _, p := range idx.parents(id) {
				push(p, colorA|colorB)
			}
			continue
		}
		for _, p := range idx.parents(id) {
			push(p, c)
		}
	}
	return idx.Heads(candidates)
}

// Heads returns the maximal elements of set: those with no other member
// of set as a descendant-reachable ancestor... concretely, those not
// themselves an ancestor of another element of set.
func (idx *Index) Heads(set []objecthash.Hash) []objecthash.Hash {
	var out []objecthash.Hash
	for i, c := range set {
		isAncestorOfOther := false
		for j, other := range set {
			if i == j {
				continue
			}
			if idx.IsAncestor(c, other) && c != other {
				isAncestorOfOther = true
				break
			}
		}
		if !isAncestorOfOther {
			out = append(out, c)
		}
	}
	return dedupUnsorted(out)
}

func dedupUnsorted(hs []objecthash.Hash) []objecthash.Hash {
	seen := map[objecthash.Hash]struct{}{}
	var out []objecthash.Hash
	for _, h := range hs {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// Evaluate walks the DAG reachable from wanted, excluding anything
// reachable from unwanted, and yields ids in parents-first topological
// order (spec §4.3: "children before parents disallowed; parents
// first"), i.e. every parent is yielded before any of its children.
// This is the backend-expression evaluation primitive the revset engine
// lowers onto; it does not itself understand revset syntax.
func (idx *Index) Evaluate(wanted, unwanted []objecthash.Hash) []objecthash.Hash {
	excluded := map[objecthash.Hash]struct{}{}
	var markExcluded func(objecthash.Hash)
	markExcluded = func(id objecthash.Hash) {
		if _, ok := excluded[id]; ok {
			return
		}
		excluded[id] = struct{}{}
		for _, p := range idx.parents(id) {
			markExcluded(p)
		}
	}
	for _, id := range unwanted {
		markExcluded(id)
	}

	included := map[objecthash.Hash]struct{}{}
	var collect func(objecthash.Hash)
	collect = func(id objecthash.Hash) {
		if _, ok := excluded[id]; ok {
			return
		}
		if _, ok := included[id]; ok {
			return
		}
		included[id] = struct{}{}
		for _, p := range idx.parents(id) {
			collect(p)
		}
	}
	for _, id := range wanted {
		collect(id)
	}

	ordered := make([]objecthash.Hash, 0, len(included))
	for id := range included {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool {
		gi, _ := idx.Generation(ordered[i])
		gj, _ := idx.Generation(ordered[j])
		if gi != gj {
			return gi < gj
		}
		return objecthash.Less(ordered[i], ordered[j])
	})
	return ordered
}
