// Package workingcopy materializes a tree onto a filesystem and
// snapshots filesystem state back into a tree (spec §4.9). The tree-walk
// plumbing is adapted from the teacher's modules/merkletrie — its paired
// doubleiter comparison of two trees becomes diffTrees in diff.go,
// applied directly to object.Tree instead of through the generic noder
// abstraction, since this module's tree type is already a single
// concrete shape (unlike merkletrie, which has to abstract over both git
// trees and the OS filesystem).
package workingcopy

import (
	"github.com/martinvonz/jjrepo/fileset"
	"github.com/martinvonz/jjrepo/lock"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/store"
	"github.com/martinvonz/jjrepo/view"
)

// TreeState is the persistent per-workspace state spec §4.9 names:
// {operation_id, tree_id, file_states, sparse_patterns, workspace_id}.
type TreeState struct {
	OperationId   objecthash.Hash                `json:"operation_id"`
	TreeId        objecthash.Hash                `json:"tree_id"`
	FileStates    map[fileset.RepoPath]FileState `json:"file_states"`
	SparsePatterns []string                      `json:"sparse_patterns"`
	WorkspaceId   view.WorkspaceId                `json:"workspace_id"`
}

// NewTreeState returns an empty TreeState for workspace ws, checked out
// at the empty tree with no recorded operation yet.
func NewTreeState(ws view.WorkspaceId, emptyTreeId objecthash.Hash) *TreeState {
	return &TreeState{
		TreeId:     emptyTreeId,
		FileStates: map[fileset.RepoPath]FileState{},
		WorkspaceId: ws,
	}
}

// WorkingCopy ties a TreeState to the filesystem directory it
// materializes into and the object store it reads/writes blobs through.
// Root is an absolute OS path; every RepoPath is resolved under it via
// Converter.
type WorkingCopy struct {
	Root      string
	Backend   store.Backend
	Converter fileset.Converter
	State     *TreeState

	lock *lock.Lock
}

// Open wires a WorkingCopy for an on-disk checkout at root, backed by
// backend, starting from the given (already loaded) state. cwdRelativeToRoot
// is the invocation directory's RepoPath, the same parameter
// fileset.NewConverter takes.
func Open(root string, backend store.Backend, state *TreeState, cwdRelativeToRoot string) *WorkingCopy {
	return &WorkingCopy{
		Root:      root,
		Backend:   backend,
		Converter: fileset.NewConverter(cwdRelativeToRoot),
		State:     state,
		lock:      lock.New(root + "/.jj/working_copy.lock"),
	}
}

// SparseMatcher compiles the current sparse patterns (spec §4.9: "a
// list of path prefixes") into a fileset.Matcher; the empty list means
// everything is included.
func (wc *WorkingCopy) SparseMatcher() (fileset.Matcher, error) {
	if len(wc.State.SparsePatterns) == 0 {
		return fileset.All, nil
	}
	ms := make([]fileset.Matcher, 0, len(wc.State.SparsePatterns))
	for _, p := range wc.State.SparsePatterns {
		ms = append(ms, fileset.Prefix(fileset.NewRepoPath(p)))
	}
	return fileset.Union(ms...), nil
}
