package workingcopy

import (
	"time"

	"github.com/martinvonz/jjrepo/objecthash"
)

// FileTypeKind is spec §4.9's FileState.file_type enum.
type FileTypeKind int8

const (
	Normal FileTypeKind = iota
	Executable
	Symlink
	ConflictFile
	GitSubmodule
)

// FileState is spec §4.9's per-path recorded state: {file_type, size,
// mtime, materialized_conflict_data?}. Snapshot compares this against
// what it finds on disk to decide whether a path needs rehashing.
type FileState struct {
	Type  FileTypeKind
	Size  int64
	Mtime time.Time
	// Id is the FileId/SymlinkId/ConflictId this path's content was last
	// recorded as, so Snapshot's unchanged fast path can reuse it without
	// touching the object store or re-walking the tree.
	Id objecthash.Hash

	// MaterializedConflict holds the text a ConflictFile was last
	// rendered as (its conflict object id is in Id), so a later snapshot
	// can keep the recorded conflict when the file is byte-identical to
	// it and reparse the file back into a Conflict only when it differs.
	MaterializedConflict []byte
}

// unchanged reports whether disk (size, mtime, kind) still matches the
// recorded state — Snapshot's fast path for reusing a FileId without
// rehashing.
func (s FileState) unchanged(size int64, mtime time.Time, kind FileTypeKind) bool {
	return s.Type == kind && s.Size == size && s.Mtime.Equal(mtime)
}
