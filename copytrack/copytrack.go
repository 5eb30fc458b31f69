// Package copytrack implements get_copy_records(paths, from, to) (spec
// §4.12, §9 "Streaming"): a lazy stream of copy/rename records between
// two trees, driven by content addressing rather than a similarity
// heuristic. It is shaped after the teacher's
// modules/zeta/object/change.go Change/ChangeEntry pair, generalized
// from a materialized Changes slice into a channel so callers can
// back-pressure by consumption speed, and its producer/consumer
// channel plumbing follows pkg/zeta/worktree_checkout.go's
// checkoutGroup pattern.
package copytrack

import (
	"context"
	"sort"

	"github.com/martinvonz/jjrepo/fileset"
	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
)

// Type distinguishes a copy (the source also survives unchanged) from a
// rename (the source vanished as part of the same change).
type Type int8

const (
	Rename Type = iota
	Copy
)

func (t Type) String() string {
	if t == Copy {
		return "copy"
	}
	return "rename"
}

// Record is one detected copy or rename between From and To, both
// carrying the same content id since detection is purely
// content-addressed (spec §4.1: object ids are content hashes).
type Record struct {
	From, To fileset.RepoPath
	Id       objecthash.Hash
	Type     Type
}

const recordBuffer = 20

// GetCopyRecords streams the copy/rename records found between oldTree
// and newTree, restricted to paths. The returned channel is closed
// after the last record or after the error channel receives a value,
// whichever comes first; callers should drain both.
func GetCopyRecords(ctx context.Context, b object.Backend, paths fileset.Matcher, oldTree, newTree *object.Tree) (<-chan Record, <-chan error) {
	records := make(chan Record, recordBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(records)
		defer close(errs)

		entries, err := object.DiffTrees(ctx, b, oldTree, newTree, paths)
		if err != nil {
			errs <- err
			return
		}

		removed := map[objecthash.Hash][]fileset.RepoPath{}
		added := map[objecthash.Hash][]fileset.RepoPath{}
		stillPresent := map[objecthash.Hash]bool{}
		for _, e := range entries {
			if e.Old.Present && e.Old.Kind == object.FileEntry {
				if !e.New.Present {
					removed[e.Old.Id] = append(removed[e.Old.Id], e.Path)
				} else if e.New.Id == e.Old.Id {
					stillPresent[e.Old.Id] = true
				}
			}
			if e.New.Present && e.New.Kind == object.FileEntry && (!e.Old.Present || e.Old.Id != e.New.Id) {
				added[e.New.Id] = append(added[e.New.Id], e.Path)
			}
		}

		for id, froms := range removed {
			tos := added[id]
			if len(tos) == 0 {
				continue
			}
			sort.Slice(froms, func(i, j int) bool { return froms[i] < froms[j] })
			sort.Slice(tos, func(i, j int) bool { return tos[i] < tos[j] })
			kind := Rename
			if stillPresent[id] {
				kind = Copy
			}
			for i, to := range tos {
				from := froms[i%len(froms)]
				rec := Record{From: from, To: to, Id: id, Type: kind}
				select {
				case records <- rec:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
	}()

	return records, errs
}

// Collect drains GetCopyRecords into a slice, for callers (and tests)
// that don't need streaming back-pressure.
func Collect(ctx context.Context, b object.Backend, paths fileset.Matcher, oldTree, newTree *object.Tree) ([]Record, error) {
	records, errs := GetCopyRecords(ctx, b, paths, oldTree, newTree)
	var out []Record
	for r := range records {
		out = append(out, r)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out, nil
}
