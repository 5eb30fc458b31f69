// Package objecthash defines the content-addressed identifier type shared by
// every persistent record in the repository: blobs, trees, commits,
// conflicts, operations and views are all named by a Hash.
package objecthash

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"sort"

	"github.com/zeebo/blake3"
)

// DigestSize is the width, in bytes, of a Hash.
const DigestSize = 32

// HexSize is the width, in hex characters, of a Hash's string form.
const HexSize = DigestSize * 2

// Hash is an opaque, content-derived identifier. The same type backs
// CommitId, TreeId, FileId, SymlinkId, ConflictId, OperationId and ViewId;
// ChangeId reuses it too, even though its value is assigned rather than
// derived from content (see the Rewrite engine).
type Hash [DigestSize]byte

// Zero is the identifier of nothing; used as a sentinel, never written to
// the store.
var Zero Hash

// IsZero reports whether h is the zero value.
func (h Hash) IsZero() bool {
	return h == Zero
}

// String renders h as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, _ := hex.DecodeString(s)
	copy(h[:], decoded)
	return nil
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	decoded, _ := hex.DecodeString(string(text))
	copy(h[:], decoded)
	return nil
}

// New decodes a hex string into a Hash. Malformed input yields a partially
// or fully zeroed Hash; callers that must reject bad input should use
// Parse instead.
func New(s string) Hash {
	b, _ := hex.DecodeString(s)
	var h Hash
	copy(h[:], b)
	return h
}

// Valid reports whether s is a well-formed hex encoding of a Hash.
func Valid(s string) bool {
	if len(s) != HexSize {
		return false
	}
	if _, err := hex.DecodeString(s); err != nil {
		return false
	}
	return true
}

// Parse decodes a hex string into a Hash, rejecting malformed input.
func Parse(s string) (Hash, error) {
	if !Valid(s) {
		return Zero, fmt.Errorf("objecthash: %q is not a valid object id", s)
	}
	return New(s), nil
}

// Compare orders two hashes byte-wise; used for deterministic set ordering
// (revset evaluation, index segment lookups).
func Compare(a, b Hash) int {
	return bytes.Compare(a[:], b[:])
}

// Less reports whether a sorts before b.
func Less(a, b Hash) bool {
	return Compare(a, b) < 0
}

// Sort orders a slice of Hashes in increasing order, in place.
func Sort(hs []Hash) {
	sort.Sort(Slice(hs))
}

// Slice attaches sort.Interface to []Hash.
type Slice []Hash

func (s Slice) Len() int           { return len(s) }
func (s Slice) Less(i, j int) bool { return Less(s[i], s[j]) }
func (s Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Hasher is a hash.Hash that produces a Hash on Sum.
type Hasher struct {
	hash.Hash
}

// NewHasher returns a Hasher over BLAKE3, the algorithm used for every
// object id in the store.
func NewHasher() Hasher {
	return Hasher{Hash: blake3.New()}
}

// Sum finalizes the running hash into a Hash value.
func (h Hasher) Sum() (out Hash) {
	copy(out[:], h.Hash.Sum(nil))
	return
}

// Of hashes a single byte slice in one call.
func Of(b []byte) Hash {
	h := NewHasher()
	_, _ = h.Write(b)
	return h.Sum()
}
