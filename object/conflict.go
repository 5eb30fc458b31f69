package object

import (
	"io"

	"github.com/martinvonz/jjrepo/merge"
	"github.com/martinvonz/jjrepo/objecthash"
)

// TreeValue is a single side of a conflict at one path: either a present
// entry (file/symlink/subtree/submodule, without a Name since a conflict
// already identifies its path) or the absent value. Two TreeValues are
// equal (for Merge Algebra cancellation) iff their fields match exactly.
type TreeValue struct {
	Present    bool
	Kind       EntryKind
	Id         objecthash.Hash
	Executable bool
}

// Absent is the "no entry at this path" TreeValue, used when a path is
// deleted on one side of a merge.
var Absent = TreeValue{}

// Equal implements the equality predicate Merge Algebra operations need.
func (v TreeValue) Equal(o TreeValue) bool {
	return v.Present == o.Present && v.Kind == o.Kind && v.Id == o.Id && v.Executable == o.Executable
}

// Conflict is the on-disk form of a Merge[TreeValue] (spec §3): an
// alternating adds/removes sequence with len(adds) == len(removes)+1.
type Conflict struct {
	Hash    objecthash.Hash
	Adds    []TreeValue
	Removes []TreeValue

	b Backend
}

// ToMerge converts the on-disk form to the algebra's working type.
func (c *Conflict) ToMerge() merge.Merge[TreeValue] {
	return merge.New(c.Adds, c.Removes)
}

// FromMerge constructs a Conflict object from a Merge[TreeValue]. Callers
// must ensure m is not resolved first (spec invariant 2: a conflict that
// reduces to a single add must be stored as that resolved value, not a
// Conflict object) — the object store's WriteConflict enforces this.
func FromMerge(m merge.Merge[TreeValue]) *Conflict {
	return &Conflict{Adds: m.Adds(), Removes: m.Removes()}
}

func encodeTreeValue(w io.Writer, v TreeValue) error {
	var flags byte
	if v.Present {
		flags |= 0x01
	}
	flags |= byte(v.Kind) << 1
	if v.Executable {
		flags |= 0x40
	}
	if _, err := w.Write([]byte{flags}); err != nil {
		return err
	}
	_, err := w.Write(v.Id[:])
	return err
}

func decodeTreeValue(r *byteCountingReader) (TreeValue, error) {
	var flags [1]byte
	if _, err := io.ReadFull(r, flags[:]); err != nil {
		return TreeValue{}, err
	}
	var id objecthash.Hash
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return TreeValue{}, err
	}
	return TreeValue{
		Present:    flags[0]&0x01 != 0,
		Kind:       EntryKind((flags[0] >> 1) & 0x1f),
		Executable: flags[0]&0x40 != 0,
		Id:         id,
	}, nil
}

func (c *Conflict) Encode(w io.Writer) error {
	if _, err := w.Write(ConflictMagic[:]); err != nil {
		return err
	}
	if err := putUvarint(w, uint64(len(c.Adds))); err != nil {
		return err
	}
	for _, v := range c.Adds {
		if err := encodeTreeValue(w, v); err != nil {
			return err
		}
	}
	if err := putUvarint(w, uint64(len(c.Removes))); err != nil {
		return err
	}
	for _, v := range c.Removes {
		if err := encodeTreeValue(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conflict) decodeBody(r io.Reader) error {
	br := &byteCountingReader{Reader: r}
	nAdds, err := readUvarint(br)
	if err != nil {
		return err
	}
	c.Adds = make([]TreeValue, nAdds)
	for i := range c.Adds {
		v, err := decodeTreeValue(br)
		if err != nil {
			return err
		}
		c.Adds[i] = v
	}
	nRemoves, err := readUvarint(br)
	if err != nil {
		return err
	}
	c.Removes = make([]TreeValue, nRemoves)
	for i := range c.Removes {
		v, err := decodeTreeValue(br)
		if err != nil {
			return err
		}
		c.Removes[i] = v
	}
	return nil
}
