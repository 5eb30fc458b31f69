// Package repo implements the MutableRepo and Transaction of spec §4.5:
// a staged view+commit delta opened against a base operation, consumed
// atomically into a new published Operation. No teacher analogue exists
// (zeta has no staged-transaction model — it writes refs directly); this
// package is new code layered over store, index, oplog and view,
// following the lock/publish discipline those packages already
// establish.
package repo

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/martinvonz/jjrepo/index"
	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/sign"
	"github.com/martinvonz/jjrepo/store"
	"github.com/martinvonz/jjrepo/view"
)

// CommitData is the content MutableRepo.WriteCommit needs to build a
// brand-new commit (spec §3 Commit, minus Hash/ChangeId/Predecessors,
// which WriteCommit and RewriteCommit assign themselves).
type CommitData struct {
	Parents        []objecthash.Hash
	RootTree       objecthash.Hash
	RootIsConflict bool
	Description    string
	Author         object.Signature
	Committer      object.Signature
	ExtraHeaders   []object.ExtraHeader
	SecureSig      []byte
}

// RewriteEntry is one row of the rewrite map spec §4.5 requires every
// MutableRepo to track: old_commit_id -> new_commit_id | Abandoned.
type RewriteEntry struct {
	NewId     objecthash.Hash
	Abandoned bool
}

// MutableRepo shadows a base View and records every commit it writes or
// rewrites, every commit it abandons, and the rewrite map those two
// produce (spec §4.5).
type MutableRepo struct {
	backend store.Backend
	idx     *index.Index
	view    *view.View

	newCommits  map[objecthash.Hash]*object.Commit
	rewriteMap  map[objecthash.Hash]RewriteEntry
	newChangeId func() objecthash.Hash

	signer     sign.Backend
	signPolicy sign.Policy
	signKey    string
	signUser   object.Signature
}

// SetSigner configures the commit signing applied to every commit this
// repo writes or rewrites from here on (spec §4.10). A nil backend (the
// default) leaves commits exactly as their CommitData specifies.
func (r *MutableRepo) SetSigner(b sign.Backend, policy sign.Policy, key string, user object.Signature) {
	r.signer = b
	r.signPolicy = policy
	r.signKey = key
	r.signUser = user
}

// applySigner runs the configured signing policy over c, a no-op if no
// signer was configured via SetSigner.
func (r *MutableRepo) applySigner(ctx context.Context, c *object.Commit) error {
	if r.signer == nil {
		return nil
	}
	return sign.Apply(ctx, r.signPolicy, r.signer, c, r.signKey, r.signUser)
}

// NewMutableRepo opens a MutableRepo over backend, shadowing baseView
// (which the caller must not mutate further) and using idx for ancestry
// queries (heads, descendants, generation numbers).
func NewMutableRepo(backend store.Backend, idx *index.Index, baseView *view.View) *MutableRepo {
	return &MutableRepo{
		backend:     backend,
		idx:         idx,
		view:        baseView,
		newCommits:  map[objecthash.Hash]*object.Commit{},
		rewriteMap:  map[objecthash.Hash]RewriteEntry{},
		newChangeId: randomChangeId,
	}
}

func randomChangeId() objecthash.Hash {
	var h objecthash.Hash
	_, _ = rand.Read(h[:])
	return h
}

// View returns the repo's current (mutable) view.
func (r *MutableRepo) View() *view.View { return r.view }

// Index returns the ancestry index the repo was opened with.
func (r *MutableRepo) Index() *index.Index { return r.idx }

// RewriteMapEntry reports how id was rewritten in this transaction, if
// at all.
func (r *MutableRepo) RewriteMapEntry(id objecthash.Hash) (RewriteEntry, bool) {
	e, ok := r.rewriteMap[id]
	return e, ok
}

// WriteCommit writes a genuinely new commit (spec §4.5: write_commit):
// a freshly minted ChangeId, no predecessors, deduplicated by content
// since the object store is content-addressed.
func (r *MutableRepo) WriteCommit(ctx context.Context, data CommitData) (*object.Commit, error) {
	c := &object.Commit{
		Parents:        data.Parents,
		ChangeId:       r.newChangeId(),
		RootTree:       data.RootTree,
		RootIsConflict: data.RootIsConflict,
		Description:    data.Description,
		Author:         data.Author,
		Committer:      data.Committer,
		ExtraHeaders:   data.ExtraHeaders,
		SecureSig:      data.SecureSig,
	}
	if err := r.applySigner(ctx, c); err != nil {
		return nil, fmt.Errorf("repo: signing commit: %w", err)
	}
	id, err := r.backend.WriteCommit(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("repo: writing commit: %w", err)
	}
	c.Hash = id
	r.newCommits[id] = c
	if err := r.extendIndex(ctx, id); err != nil {
		return nil, err
	}
	return c.WithBackend(r.backend), nil
}

// extendIndex adds id (and any of its ancestors not already indexed) to
// the repo's ancestry index, so RecomputeHeads's IsAncestor checks can
// see every commit this transaction has written.
func (r *MutableRepo) extendIndex(ctx context.Context, id objecthash.Hash) error {
	idx, err := index.Build(ctx, storeCommitReader{r.backend}, r.idx, []objecthash.Hash{id})
	if err != nil {
		return fmt.Errorf("repo: extending index: %w", err)
	}
	r.idx = idx
	return nil
}

// CommitBuilder accumulates edits for RewriteCommit before Write commits
// them (spec §4.5: "rewrite_commit(&existing) → Builder").
type CommitBuilder struct {
	repo     *MutableRepo
	existing *object.Commit
	data     CommitData
}

// RewriteCommit starts building a new version of existing: same ChangeId,
// existing.Hash appended to Predecessors once Write is called.
// SecureSig is not carried over (spec §9 open question: "re-signing
// after rewrite is governed by policy, not forced") — a signature made
// over the old content is invalid over the new content, so the
// rewritten commit starts unsigned and SetSigner's policy (Own/Force)
// is what re-signs it, if configured.
func (r *MutableRepo) RewriteCommit(existing *object.Commit) *CommitBuilder {
	return &CommitBuilder{
		repo:     r,
		existing: existing,
		data: CommitData{
			Parents:        append([]objecthash.Hash(nil), existing.Parents...),
			RootTree:       existing.RootTree,
			RootIsConflict: existing.RootIsConflict,
			Description:    existing.Description,
			Author:         existing.Author,
			Committer:      existing.Committer,
			ExtraHeaders:   existing.ExtraHeaders,
		},
	}
}

func (b *CommitBuilder) SetParents(parents []objecthash.Hash) *CommitBuilder {
	b.data.Parents = parents
	return b
}

func (b *CommitBuilder) SetTree(id objecthash.Hash, isConflict bool) *CommitBuilder {
	b.data.RootTree = id
	b.data.RootIsConflict = isConflict
	return b
}

func (b *CommitBuilder) SetDescription(description string) *CommitBuilder {
	b.data.Description = description
	return b
}

func (b *CommitBuilder) SetCommitter(sig object.Signature) *CommitBuilder {
	b.data.Committer = sig
	return b
}

// Write persists the rewritten commit and records existing.Hash ->
// new id in the repo's rewrite map.
func (b *CommitBuilder) Write(ctx context.Context) (*object.Commit, error) {
	c := &object.Commit{
		Parents:        b.data.Parents,
		ChangeId:       b.existing.ChangeId,
		Predecessors:   append(append([]objecthash.Hash(nil), b.existing.Predecessors...), b.existing.Hash),
		RootTree:       b.data.RootTree,
		RootIsConflict: b.data.RootIsConflict,
		Description:    b.data.Description,
		Author:         b.data.Author,
		Committer:      b.data.Committer,
		ExtraHeaders:   b.data.ExtraHeaders,
		SecureSig:      b.data.SecureSig,
	}
	if err := b.repo.applySigner(ctx, c); err != nil {
		return nil, fmt.Errorf("repo: signing rewritten commit: %w", err)
	}
	id, err := b.repo.backend.WriteCommit(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("repo: writing rewritten commit: %w", err)
	}
	c.Hash = id
	b.repo.newCommits[id] = c
	b.repo.rewriteMap[b.existing.Hash] = RewriteEntry{NewId: id}
	if err := b.repo.extendIndex(ctx, id); err != nil {
		return nil, err
	}
	return c.WithBackend(b.repo.backend), nil
}

// RecordAbandonedCommit marks id as abandoned (spec §4.5:
// record_abandoned_commit). Its children are reparented by
// rebase_descendants (spec §4.6).
func (r *MutableRepo) RecordAbandonedCommit(id objecthash.Hash) {
	r.rewriteMap[id] = RewriteEntry{Abandoned: true}
}

// --- ref setters (spec §4.5) ---

func (r *MutableRepo) SetLocalBookmarkTarget(name string, target view.RefTarget) {
	r.view.LocalBookmarks[name] = target
}

func (r *MutableRepo) SetRemoteBookmark(remote, name string, target view.RefTarget, tracking bool) {
	if r.view.RemoteViews[remote] == nil {
		r.view.RemoteViews[remote] = map[string]view.RemoteRef{}
	}
	r.view.RemoteViews[remote][name] = view.RemoteRef{Target: target, Tracking: tracking}
}

func (r *MutableRepo) UntrackRemoteBookmark(remote, name string) {
	if refs, ok := r.view.RemoteViews[remote]; ok {
		if rr, ok := refs[name]; ok {
			rr.Tracking = false
			refs[name] = rr
		}
	}
}

func (r *MutableRepo) SetTagTarget(name string, target view.RefTarget) {
	r.view.Tags[name] = target
}

func (r *MutableRepo) SetGitRef(name string, target view.RefTarget) {
	r.view.GitRefs[name] = target
}

func (r *MutableRepo) SetWcCommit(workspace view.WorkspaceId, id objecthash.Hash) {
	r.view.WcCommitIds[workspace] = id
}

// SetView wholesale-replaces the repo's view, used by undo/restore (spec
// §4.5: set_view).
func (r *MutableRepo) SetView(v *view.View) {
	r.view = v
}

// Merge performs the three-way view merge spec §4.5 calls merge(&other,
// &base): folds other's view into r's current view against base's view.
func (r *MutableRepo) Merge(other, base *view.View, headsOf view.HeadsFunc) {
	r.view = view.Merge(r.view, other, base, headsOf)
}

// RecomputeHeads recomputes view.HeadIds as the heads() of every commit
// this repo's refs and workspaces still point at, mapped through the
// rewrite map so a rewritten or abandoned commit's successor (or parent,
// if abandoned) is used instead of the original id (spec §4.6's
// "abandoned commits reparent to the abandoned commit's parents").
func (r *MutableRepo) RecomputeHeads(ctx context.Context) error {
	ids := coveringIds(r.view)
	mapped := make([]objecthash.Hash, 0, len(ids))
	for _, id := range ids {
		resolved, err := r.resolveThroughRewrites(ctx, id)
		if err != nil {
			return err
		}
		mapped = append(mapped, resolved...)
	}
	r.view.HeadIds = r.idx.Heads(mapped)
	return nil
}

// resolveThroughRewrites follows the rewrite map until it reaches a
// commit that was not itself rewritten or abandoned in this transaction,
// falling back to the root commit if an abandoned chain has no parents.
func (r *MutableRepo) resolveThroughRewrites(ctx context.Context, id objecthash.Hash) ([]objecthash.Hash, error) {
	seen := map[objecthash.Hash]struct{}{}
	for {
		if _, loop := seen[id]; loop {
			return []objecthash.Hash{id}, nil
		}
		seen[id] = struct{}{}
		entry, ok := r.rewriteMap[id]
		if !ok {
			return []objecthash.Hash{id}, nil
		}
		if !entry.Abandoned {
			id = entry.NewId
			continue
		}
		c, err := r.backend.ReadCommit(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(c.Parents) == 0 {
			return []objecthash.Hash{r.backend.RootCommitId()}, nil
		}
		var out []objecthash.Hash
		for _, p := range c.Parents {
			resolved, err := r.resolveThroughRewrites(ctx, p)
			if err != nil {
				return nil, err
			}
			out = append(out, resolved...)
		}
		return out, nil
	}
}
