package object

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/martinvonz/jjrepo/objecthash"
)

// EntryKind distinguishes the TreeEntry variants of spec §3.
type EntryKind int8

const (
	InvalidEntry EntryKind = iota
	FileEntry
	SymlinkEntry
	TreeEntryKind
	ConflictEntry
	GitSubmoduleEntry
)

func (k EntryKind) String() string {
	switch k {
	case FileEntry:
		return "file"
	case SymlinkEntry:
		return "symlink"
	case TreeEntryKind:
		return "tree"
	case ConflictEntry:
		return "conflict"
	case GitSubmoduleEntry:
		return "git-submodule"
	default:
		return "invalid"
	}
}

// TreeEntry is one path component's value inside a Tree (spec §3). Only
// the fields relevant to Kind are meaningful: Executable only for
// FileEntry, everything else addresses an object by Id.
type TreeEntry struct {
	Name       string
	Kind       EntryKind
	Id         objecthash.Hash
	Executable bool
}

// Equal reports whether two entries are identical in name, kind, id and
// executable bit.
func (e TreeEntry) Equal(o TreeEntry) bool {
	return e.Name == o.Name && e.Kind == o.Kind && e.Id == o.Id && e.Executable == o.Executable
}

// Tree is an ordered mapping from path component to TreeEntry (spec §3).
// Entries are always kept sorted by Name so that equal content produces
// equal encoded bytes and hence equal ids (spec invariant: equal content
// implies equal id).
type Tree struct {
	Hash    objecthash.Hash
	Entries []TreeEntry

	b Backend
}

// WithBackend returns a shallow copy of t bound to b.
func (t *Tree) WithBackend(b Backend) *Tree {
	cp := *t
	cp.b = b
	return &cp
}

// NewTree constructs a Tree from entries, sorting them by name. It does
// not enforce the "no empty subtrees" invariant (spec §3 invariant 3);
// that is the object store's job at write time (store.WriteTree), since
// only it knows whether a TreeId refers to an empty tree.
func NewTree(entries []TreeEntry) *Tree {
	sorted := append([]TreeEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Tree{Entries: sorted}
}

// Lookup finds the entry named name, if any.
func (t *Tree) Lookup(name string) (TreeEntry, bool) {
	i := sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Name >= name })
	if i < len(t.Entries) && t.Entries[i].Name == name {
		return t.Entries[i], true
	}
	return TreeEntry{}, false
}

func (t *Tree) Encode(w io.Writer) error {
	if _, err := w.Write(TreeMagic[:]); err != nil {
		return err
	}
	if err := putUvarint(w, uint64(len(t.Entries))); err != nil {
		return err
	}
	for _, e := range t.Entries {
		if err := writeLenPrefixed(w, []byte(e.Name)); err != nil {
			return err
		}
		var flags byte = byte(e.Kind)
		if e.Executable {
			flags |= 0x80
		}
		if _, err := w.Write([]byte{flags}); err != nil {
			return err
		}
		if _, err := w.Write(e.Id[:]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) decodeBody(r io.Reader) error {
	br := &byteCountingReader{Reader: r}
	n, err := readUvarint(br)
	if err != nil {
		return err
	}
	t.Entries = make([]TreeEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		nameBytes, err := readLenPrefixed(br)
		if err != nil {
			return err
		}
		var flags [1]byte
		if _, err := io.ReadFull(br, flags[:]); err != nil {
			return err
		}
		var id objecthash.Hash
		if _, err := io.ReadFull(br, id[:]); err != nil {
			return err
		}
		t.Entries = append(t.Entries, TreeEntry{
			Name:       string(nameBytes),
			Kind:       EntryKind(flags[0] & 0x7f),
			Executable: flags[0]&0x80 != 0,
			Id:         id,
		})
	}
	return nil
}

// Subtree resolves the entry named name as a Tree, erroring if it is not
// a TreeEntryKind entry.
func (t *Tree) Subtree(ctx context.Context, name string) (*Tree, error) {
	e, ok := t.Lookup(name)
	if !ok {
		return nil, &ErrEntryNotFound{name}
	}
	if e.Kind != TreeEntryKind {
		return nil, fmt.Errorf("object: entry %q is not a tree", name)
	}
	return t.b.ReadTree(ctx, e.Id)
}

// ErrEntryNotFound reports a missing path component.
type ErrEntryNotFound struct{ Name string }

func (e *ErrEntryNotFound) Error() string { return fmt.Sprintf("entry %q not found", e.Name) }

func IsErrEntryNotFound(err error) bool {
	_, ok := err.(*ErrEntryNotFound)
	return ok
}
