// Package store implements the Object Store of spec §4.1: content-addressed
// storage of blobs, trees, commits and conflicts, exposed through a
// Backend capability set with a registry of named implementations (spec §9
// "Pluralism in backends"). The "native" backend, grounded on the
// teacher's modules/zeta/backend/{odb.go,file_storer.go}, is the one
// concrete implementation provided here; "git" is documented as an
// interface boundary only (spec §4.1 second paragraph), since implementing
// it against a real .git directory is Git-interop machinery this spec
// places out of scope beyond the import/export boundary (§1).
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
)

// ErrObjectNotFound is returned by any Read* method when the id is not
// present in the store.
type ErrObjectNotFound struct {
	Id objecthash.Hash
}

func (e *ErrObjectNotFound) Error() string {
	return fmt.Sprintf("store: object %s not found", e.Id)
}

func IsNotFound(err error) bool {
	var e *ErrObjectNotFound
	return errors.As(err, &e)
}

// ErrCorruptObject is returned when a stored object's bytes fail to
// decode or its recomputed hash does not match its id.
type ErrCorruptObject struct {
	Id     objecthash.Hash
	Reason string
}

func (e *ErrCorruptObject) Error() string {
	return fmt.Sprintf("store: object %s is corrupt: %s", e.Id, e.Reason)
}

// Backend is the capability set spec §4.1 requires of every object store
// implementation. Backend also satisfies object.Backend, so decoded
// Commit/Tree/Conflict values can resolve their lazy references directly
// against whichever store produced them.
type Backend interface {
	object.Backend

	ReadFile(ctx context.Context, id objecthash.Hash) ([]byte, error)
	WriteFile(ctx context.Context, content []byte) (objecthash.Hash, error)

	ReadSymlink(ctx context.Context, id objecthash.Hash) (string, error)
	WriteSymlink(ctx context.Context, target string) (objecthash.Hash, error)

	WriteTree(ctx context.Context, t *object.Tree) (objecthash.Hash, error)
	WriteCommit(ctx context.Context, c *object.Commit) (objecthash.Hash, error)
	// WriteConflict rejects a Merge that has already resolved to a single
	// value (spec invariant 2): callers must store that value directly,
	// never wrap it in a Conflict object.
	WriteConflict(ctx context.Context, c *object.Conflict) (objecthash.Hash, error)

	RootCommitId() objecthash.Hash
	RootTreeId() objecthash.Hash
	EmptyTreeId() objecthash.Hash

	// GC removes objects unreachable from roots and whose last-touched
	// time is older than olderThan. Reachability from the operation log
	// is the caller's responsibility to fold into roots (spec §4.1).
	GC(ctx context.Context, roots []objecthash.Hash, olderThan time.Time) (removed int, err error)

	Close() error
}

// Registry of named backend factories (spec §9: "implementations register
// by name in a registry; downstream code selects by name at load time").
var registry = map[string]func(root string) (Backend, error){}

// Register adds a backend factory under name. Called from init() by each
// backend implementation package.
func Register(name string, open func(root string) (Backend, error)) {
	registry[name] = open
}

// Open instantiates the named backend rooted at root.
func Open(name, root string) (Backend, error) {
	open, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("store: unknown backend %q", name)
	}
	return open(root)
}

func init() {
	Register("native", func(root string) (Backend, error) {
		return NewNative(root, Options{})
	})
}

// ReadAll is a small convenience used by both backends and their tests.
func ReadAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}
