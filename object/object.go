// Package object defines the content-addressed value types of spec §3:
// blobs, trees, commits, conflicts, and their magic-tagged binary
// encoding. Every persistent id (CommitId, TreeId, FileId, SymlinkId,
// ConflictId, ChangeId, OperationId, ViewId) is represented by the single
// objecthash.Hash type, exactly as the teacher's plumbing.Hash plays that
// same dual role for both git objects and zeta's extra id kinds.
package object

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/martinvonz/jjrepo/objecthash"
)

// ObjectType distinguishes the kinds of records the store persists.
type ObjectType int8

const (
	InvalidObject ObjectType = iota
	CommitObjectType
	TreeObjectType
	FileObjectType
	ConflictObjectType
)

func (t ObjectType) String() string {
	switch t {
	case CommitObjectType:
		return "commit"
	case TreeObjectType:
		return "tree"
	case FileObjectType:
		return "file"
	case ConflictObjectType:
		return "conflict"
	default:
		return "invalid"
	}
}

// Magic headers tag every encoded record so a reader can dispatch on type
// and so old readers can at least recognize (and skip) a record of a kind
// they don't understand, matching the framing style of the teacher's
// modules/zeta/object/object.go ('Z','C',0x00,0x01)-shaped magics.
var (
	CommitMagic   = [4]byte{'J', 'C', 0x00, 0x01}
	TreeMagic     = [4]byte{'J', 'T', 0x00, 0x01}
	ConflictMagic = [4]byte{'J', 'X', 0x00, 0x01}
)

var ErrUnsupportedObject = errors.New("object: unsupported object magic")

// Encoder is implemented by every value type in this package.
type Encoder interface {
	Encode(w io.Writer) error
}

// Hash computes the content id of e under the canonical encoding. Two
// different serializations of the same logical value must never be
// produced (spec §6 Encoding); callers rely on Hash to be a pure function
// of the encoded bytes.
func Hash(e Encoder) objecthash.Hash {
	h := objecthash.NewHasher()
	if err := e.Encode(h); err != nil {
		return objecthash.Zero
	}
	return h.Sum()
}

// Encode writes e and returns the bytes, for callers that need the raw
// wire form rather than just its hash (object-store writes).
func Encode(e Encoder) ([]byte, error) {
	var b bytes.Buffer
	if err := e.Encode(&b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Decode dispatches on magic and parses r into the appropriate value type.
// id is the id the caller expects this record to have (used to populate
// the Hash field without a second hash pass); b resolves lazy references
// (subtrees, parent commits) for the decoded value's convenience methods.
func Decode(r io.Reader, id objecthash.Hash, b Backend) (any, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("object: reading magic: %w", err)
	}
	switch magic {
	case CommitMagic:
		c := &Commit{Hash: id, b: b}
		if err := c.decodeBody(r); err != nil {
			return nil, err
		}
		return c, nil
	case TreeMagic:
		t := &Tree{Hash: id, b: b}
		if err := t.decodeBody(r); err != nil {
			return nil, err
		}
		return t, nil
	case ConflictMagic:
		c := &Conflict{Hash: id, b: b}
		if err := c.decodeBody(r); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, ErrUnsupportedObject
	}
}

// putUvarint is a small helper shared by the length-prefixed fields in the
// tree/commit/conflict encodings below.
func putUvarint(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

func readUvarint(r io.ByteReader) (uint64, error) {
	return binary.ReadUvarint(r)
}

func writeLenPrefixed(w io.Writer, b []byte) error {
	if err := putUvarint(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readLenPrefixed(r *byteCountingReader) ([]byte, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// byteCountingReader adapts an io.Reader to io.ByteReader for varint
// decoding without pulling in bufio everywhere a single byte is needed.
type byteCountingReader struct {
	io.Reader
}

func (r *byteCountingReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}
