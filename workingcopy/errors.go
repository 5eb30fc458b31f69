package workingcopy

import (
	"fmt"

	"github.com/martinvonz/jjrepo/fileset"
	"github.com/martinvonz/jjrepo/objecthash"
)

// ErrStaleWorkingCopy is returned by any mutating operation when the
// workspace's recorded operation id no longer matches the current
// op-head (spec §4.9: "mismatch => StaleWorkingCopy, which the caller
// recovers by running workspace update-stale").
type ErrStaleWorkingCopy struct {
	Recorded, Current objecthash.Hash
}

func (e *ErrStaleWorkingCopy) Error() string {
	return fmt.Sprintf("workingcopy: stale: recorded operation %s, current op-head %s", e.Recorded, e.Current)
}

func IsStale(err error) bool {
	_, ok := err.(*ErrStaleWorkingCopy)
	return ok
}

// ErrFileTooLarge is reported (not panicked) when a file exceeds
// Options.MaxNewFileSize during Snapshot; the path is excluded from the
// snapshot rather than partially hashed (spec §4.9, §8 "do not partially
// snapshot").
type ErrFileTooLarge struct {
	Path fileset.RepoPath
	Size int64
}

func (e *ErrFileTooLarge) Error() string {
	return fmt.Sprintf("workingcopy: %s exceeds the maximum new file size (%d bytes)", e.Path, e.Size)
}
