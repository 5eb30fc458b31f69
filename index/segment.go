// Package index implements the commit Index of spec §4.3: a persistent,
// layered structure over the commit DAG supporting id lookup, prefix
// resolution, ancestry queries and topological evaluation, without
// touching the object store for anything but an initial build or a
// rebuild-on-corruption.
package index

import (
	"sort"

	"github.com/martinvonz/jjrepo/objecthash"
)

// entry is the fixed-shape record spec §4.3 describes per indexed commit:
// {commit_id, change_id, generation_number, parent_positions}. We keep
// ParentIds rather than encoded cross-segment positions (the teacher's
// pack format this is grounded on resolves refs by id, not position, and
// doing the same here keeps segment-merge trivial at the cost of one
// extra pointer chase per parent edge).
type entry struct {
	CommitId   objecthash.Hash
	ChangeId   objecthash.Hash
	Generation uint32
	ParentIds  []objecthash.Hash
}

// Segment is one immutable layer of the index: every commit discovered
// since the last segment was written, in an internally consistent
// topological (generation-ascending) order, with two sorted lookup
// tables mirroring spec §4.3's "commit_id -> local position" and
// "change_id -> [local positions]" tables.
type Segment struct {
	entries []entry

	// byCommitId is entries sorted by CommitId, for binary-search id
	// lookup and prefix resolution.
	byCommitId []int
	// byChangeId maps a ChangeId to every local position that carries it
	// (a ChangeId can label more than one commit across rewrites).
	byChangeId map[objecthash.Hash][]int
}

// newSegment builds a Segment from entries in any order, establishing
// the sorted lookup tables once at construction (segments are immutable
// after that, per spec §4.3 "segments are immutable and stacked").
func newSegment(entries []entry) *Segment {
	s := &Segment{entries: entries, byChangeId: map[objecthash.Hash][]int{}}
	s.byCommitId = make([]int, len(entries))
	for i := range entries {
		s.byCommitId[i] = i
		s.byChangeId[entries[i].ChangeId] = append(s.byChangeId[entries[i].ChangeId], i)
	}
	sort.Slice(s.byCommitId, func(i, j int) bool {
		return objecthash.Less(entries[s.byCommitId[i]].CommitId, entries[s.byCommitId[j]].CommitId)
	})
	return s
}

func (s *Segment) find(id objecthash.Hash) (entry, bool) {
	i := sort.Search(len(s.byCommitId), func(i int) bool {
		return !objecthash.Less(s.entries[s.byCommitId[i]].CommitId, id)
	})
	if i < len(s.byCommitId) && s.entries[s.byCommitId[i]].CommitId == id {
		return s.entries[s.byCommitId[i]], true
	}
	return entry{}, false
}

// prefixRange returns the local positions (in byCommitId order) of every
// entry whose CommitId starts with hexPrefix. Relies on byCommitId being
// sorted in hex-lexicographic order, which byte-wise Compare produces
// since hex encoding is order-preserving.
func (s *Segment) prefixRange(hexPrefix string) []int {
	lo := sort.Search(len(s.byCommitId), func(i int) bool {
		return !lessHexPrefix(s.entries[s.byCommitId[i]].CommitId, hexPrefix)
	})
	var out []int
	for i := lo; i < len(s.byCommitId); i++ {
		id := s.entries[s.byCommitId[i]].CommitId
		if !hasPrefix(id, hexPrefix) {
			break
		}
		out = append(out, s.byCommitId[i])
	}
	return out
}

func hasPrefix(id objecthash.Hash, hexPrefix string) bool {
	s := id.String()
	return len(s) >= len(hexPrefix) && s[:len(hexPrefix)] == hexPrefix
}

func lessHexPrefix(id objecthash.Hash, hexPrefix string) bool {
	s := id.String()
	n := len(hexPrefix)
	if len(s) < n {
		return s < hexPrefix
	}
	return s[:n] < hexPrefix
}

// sortedIds returns this segment's commit ids in ascending order, for
// neighbor lookups (shortest_unique_prefix_len).
func (s *Segment) sortedIds() []objecthash.Hash {
	out := make([]objecthash.Hash, len(s.byCommitId))
	for i, pos := range s.byCommitId {
		out[i] = s.entries[pos].CommitId
	}
	return out
}
