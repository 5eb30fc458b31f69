package oplog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/martinvonz/jjrepo/objecthash"
)

// ErrAmbiguousOperation and ErrOperationNotFound are the two failure
// modes spec §4.4's resolve_op_for_load names explicitly.
var (
	ErrAmbiguousOperation = fmt.Errorf("oplog: ambiguous operation id")
	ErrOperationNotFound  = fmt.Errorf("oplog: operation not found")
)

// ResolveOpForLoad implements spec §4.4's resolve_op_for_load: `@`
// resolves to current, `@-` to current's unique parent, anything else
// is tried as a hex id prefix. Symbolic operation names beyond `@`/`@-`
// are out of this package's scope (spec §6 only requires the core to
// consume `at_operation` as a hex id from the gRPC boundary).
func (s *Store) ResolveOpForLoad(spec string, current objecthash.Hash) (objecthash.Hash, error) {
	switch spec {
	case "@":
		if current.IsZero() {
			return objecthash.Zero, ErrOperationNotFound
		}
		return current, nil
	case "@-":
		if current.IsZero() {
			return objecthash.Zero, ErrOperationNotFound
		}
		op, err := s.ReadOperation(current)
		if err != nil {
			return objecthash.Zero, fmt.Errorf("oplog: resolving %s: %w", spec, ErrOperationNotFound)
		}
		switch len(op.Parents) {
		case 0:
			return objecthash.Zero, ErrOperationNotFound
		case 1:
			return op.Parents[0], nil
		default:
			return objecthash.Zero, ErrAmbiguousOperation
		}
	default:
		return s.resolveOpPrefix(spec)
	}
}

func (s *Store) resolveOpPrefix(hexPrefix string) (objecthash.Hash, error) {
	if full, err := objecthash.Parse(hexPrefix); err == nil {
		if _, err := s.ReadOperation(full); err == nil {
			return full, nil
		}
		return objecthash.Zero, ErrOperationNotFound
	}
	files, err := os.ReadDir(s.opDir())
	if err != nil {
		return objecthash.Zero, err
	}
	var matches []objecthash.Hash
	for _, f := range files {
		if len(f.Name()) >= len(hexPrefix) && f.Name()[:len(hexPrefix)] == hexPrefix {
			id, err := objecthash.Parse(f.Name())
			if err != nil {
				continue
			}
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return objecthash.Zero, ErrOperationNotFound
	case 1:
		return matches[0], nil
	default:
		return objecthash.Zero, ErrAmbiguousOperation
	}
}

func (s *Store) opDir() string { return filepath.Join(s.root, "operations") }

// Walk returns every reachable operation from heads in the stable order
// spec §4.4 requires of op_walk: topological (parents after children),
// ties broken by end-time then id.
func (s *Store) Walk(heads []objecthash.Hash) ([]*Operation, error) {
	seen := map[objecthash.Hash]struct{}{}
	var ops []*Operation
	var visit func(objecthash.Hash) error
	visit = func(id objecthash.Hash) error {
		if _, ok := seen[id]; ok {
			return nil
		}
		seen[id] = struct{}{}
		op, err := s.ReadOperation(id)
		if err != nil {
			return err
		}
		ops = append(ops, op)
		for _, p := range op.Parents {
			if err := visit(p); err != nil {
				return err
			}
		}
		return nil
	}
	for _, h := range heads {
		if err := visit(h); err != nil {
			return nil, err
		}
	}

	depth := map[objecthash.Hash]int{}
	var depthOf func(objecthash.Hash) int
	depthOf = func(id objecthash.Hash) int {
		if d, ok := depth[id]; ok {
			return d
		}
		op, err := s.ReadOperation(id)
		if err != nil {
			return 0
		}
		d := 0
		for _, p := range op.Parents {
			if pd := depthOf(p); pd+1 > d {
				d = pd + 1
			}
		}
		depth[id] = d
		return d
	}
	for _, op := range ops {
		depthOf(op.Id)
	}

	sort.SliceStable(ops, func(i, j int) bool {
		if depth[ops[i].Id] != depth[ops[j].Id] {
			return depth[ops[i].Id] > depth[ops[j].Id]
		}
		if ops[i].Metadata.EndTime != ops[j].Metadata.EndTime {
			return ops[i].Metadata.EndTime > ops[j].Metadata.EndTime
		}
		return objecthash.Less(ops[j].Id, ops[i].Id)
	})
	return ops, nil
}
