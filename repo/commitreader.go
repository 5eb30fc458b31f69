package repo

import (
	"context"

	"github.com/martinvonz/jjrepo/index"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/store"
	"github.com/martinvonz/jjrepo/view"
)

// storeCommitReader adapts a store.Backend to index.CommitReader, so the
// index package never needs to know about object.Commit's full shape.
type storeCommitReader struct {
	backend store.Backend
}

func (r storeCommitReader) Parents(ctx context.Context, id objecthash.Hash) ([]objecthash.Hash, error) {
	c, err := r.backend.ReadCommit(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Parents, nil
}

func (r storeCommitReader) ChangeId(ctx context.Context, id objecthash.Hash) (objecthash.Hash, error) {
	c, err := r.backend.ReadCommit(ctx, id)
	if err != nil {
		return objecthash.Zero, err
	}
	return c.ChangeId, nil
}

// BuildIndex constructs an Index covering every commit reachable from v:
// its head_ids, every workspace's working-copy commit, and every ref
// slot's present targets. Build only needs a covering set to walk
// backward from, not true DAG heads, so duplicates across these sources
// are harmless.
func BuildIndex(ctx context.Context, backend store.Backend, v *view.View) (*index.Index, error) {
	heads := coveringIds(v)
	heads = append(heads, backend.RootCommitId())
	return index.Build(ctx, storeCommitReader{backend}, index.Empty(), heads)
}

func coveringIds(v *view.View) []objecthash.Hash {
	var ids []objecthash.Hash
	ids = append(ids, v.HeadIds...)
	for _, id := range v.WcCommitIds {
		ids = append(ids, id)
	}
	for _, r := range v.LocalBookmarks {
		ids = append(ids, r.Adds()...)
	}
	for _, r := range v.Tags {
		ids = append(ids, r.Adds()...)
	}
	for _, r := range v.GitRefs {
		ids = append(ids, r.Adds()...)
	}
	for _, remote := range v.RemoteViews {
		for _, rr := range remote {
			ids = append(ids, rr.Target.Adds()...)
		}
	}
	return ids
}
