package object

import (
	"context"

	"github.com/martinvonz/jjrepo/objecthash"
)

// Backend is the narrow capability a decoded value needs to resolve
// lazy references to other objects (a commit's root tree, a tree's
// subtrees, a conflict's constituent trees). The object store (spec §4.1)
// implements this; tests can supply an in-memory fake.
type Backend interface {
	ReadTree(ctx context.Context, id objecthash.Hash) (*Tree, error)
	ReadCommit(ctx context.Context, id objecthash.Hash) (*Commit, error)
	ReadConflict(ctx context.Context, id objecthash.Hash) (*Conflict, error)
}
