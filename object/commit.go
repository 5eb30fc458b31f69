package object

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/martinvonz/jjrepo/objecthash"
)

// ExtraHeader is an unrecognized "key value" header line, preserved
// byte-for-byte across re-encoding the way the teacher's object/commit.go
// preserves "gpgsig" and similar headers it doesn't otherwise model.
type ExtraHeader struct {
	K string
	V string
}

// Commit is the immutable snapshot type of spec §3. Unlike the teacher's
// git-shaped Commit, this one carries a ChangeId (stable across rewrites)
// and Predecessors (the evolution chain consumed by undo/obslog-style
// tooling); RootTree may itself name a Conflict object instead of a Tree,
// since commits can have a conflicted root (spec §3).
type Commit struct {
	Hash         objecthash.Hash   `json:"hash"`
	ChangeId     objecthash.Hash   `json:"change_id"`
	Parents      []objecthash.Hash `json:"parents"`
	Predecessors []objecthash.Hash `json:"predecessors"`
	// RootTree names either a Tree or a Conflict object; RootIsConflict
	// says which, since the two live in different magic-tagged spaces.
	RootTree      objecthash.Hash `json:"root_tree"`
	RootIsConflict bool           `json:"root_is_conflict"`
	Description   string          `json:"description"`
	Author        Signature       `json:"author"`
	Committer     Signature       `json:"committer"`
	SecureSig     []byte          `json:"-"`
	ExtraHeaders  []ExtraHeader   `json:"-"`

	b Backend
}

// WithBackend returns a shallow copy of c bound to b, so convenience
// methods (Root, File) can resolve lazy references. The object store sets
// this on every value it decodes or just wrote.
func (c *Commit) WithBackend(b Backend) *Commit {
	cp := *c
	cp.b = b
	return &cp
}

// IsRoot reports whether c is the synthetic, unrewritable root commit
// (spec §4.1: "never rewritable and has no parents").
func (c *Commit) IsRoot() bool {
	return len(c.Parents) == 0 && c.Description == "" && c.ChangeId.IsZero()
}

// Encode writes the canonical byte form. SecureSig is excluded so that
// Encode over a commit with SecureSig stripped reproduces exactly the
// bytes that were signed (spec §4.10).
func (c *Commit) Encode(w io.Writer) error {
	return c.encode(w, false)
}

// EncodeForSigning writes the same bytes as Encode, named separately so
// call sites documenting the signing contract (spec §4.10: "hashing its
// canonical byte form excluding secure_sig") are self-explanatory; the two
// never diverge because SecureSig is always excluded from the hash.
func (c *Commit) EncodeForSigning(w io.Writer) error {
	return c.encode(w, false)
}

func (c *Commit) encode(w io.Writer, _ bool) error {
	if _, err := w.Write(CommitMagic[:]); err != nil {
		return err
	}
	if err := writeLine(w, "change %s\n", c.ChangeId.String()); err != nil {
		return err
	}
	kind := "tree"
	if c.RootIsConflict {
		kind = "conflict-tree"
	}
	if err := writeLine(w, "%s %s\n", kind, c.RootTree.String()); err != nil {
		return err
	}
	for _, p := range c.Parents {
		if err := writeLine(w, "parent %s\n", p.String()); err != nil {
			return err
		}
	}
	for _, p := range c.Predecessors {
		if err := writeLine(w, "predecessor %s\n", p.String()); err != nil {
			return err
		}
	}
	if err := writeLine(w, "author %s\ncommitter %s\n", c.Author.String(), c.Committer.String()); err != nil {
		return err
	}
	for _, hdr := range c.ExtraHeaders {
		if err := writeLine(w, "%s %s\n", hdr.K, strings.ReplaceAll(hdr.V, "\n", "\n ")); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\n%s", c.Description); err != nil {
		return err
	}
	return nil
}

func (c *Commit) decodeBody(r io.Reader) error {
	br := bufio.NewReader(r)
	var message strings.Builder
	finishedHeaders := false
	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		text := strings.TrimSuffix(line, "\n")
		if !finishedHeaders {
			if text == "" {
				finishedHeaders = true
				if readErr == io.EOF {
					break
				}
				continue
			}
			fields := strings.SplitN(text, " ", 2)
			if strings.HasPrefix(text, " ") && len(c.ExtraHeaders) > 0 {
				c.ExtraHeaders[len(c.ExtraHeaders)-1].V += "\n" + text[1:]
			} else if len(fields) == 2 {
				switch fields[0] {
				case "change":
					c.ChangeId = objecthash.New(fields[1])
				case "tree":
					c.RootTree = objecthash.New(fields[1])
					c.RootIsConflict = false
				case "conflict-tree":
					c.RootTree = objecthash.New(fields[1])
					c.RootIsConflict = true
				case "parent":
					c.Parents = append(c.Parents, objecthash.New(fields[1]))
				case "predecessor":
					c.Predecessors = append(c.Predecessors, objecthash.New(fields[1]))
				case "author":
					sig, err := ParseSignature(fields[1])
					if err != nil {
						return err
					}
					c.Author = sig
				case "committer":
					sig, err := ParseSignature(fields[1])
					if err != nil {
						return err
					}
					c.Committer = sig
				default:
					c.ExtraHeaders = append(c.ExtraHeaders, ExtraHeader{K: fields[0], V: fields[1]})
				}
			}
		} else {
			message.WriteString(line)
		}
		if readErr == io.EOF {
			break
		}
	}
	c.Description = message.String()
	return nil
}

// Root resolves the commit's root tree. It returns ErrUnsupportedObject
// if RootIsConflict is set (callers must call RootConflict instead).
func (c *Commit) Root(ctx context.Context) (*Tree, error) {
	if c.RootIsConflict {
		return nil, fmt.Errorf("object: commit %s has a conflicted root; use RootConflict", c.Hash)
	}
	return c.b.ReadTree(ctx, c.RootTree)
}

// RootConflict resolves the commit's root as a Conflict, for the case
// where RootIsConflict is set.
func (c *Commit) RootConflict(ctx context.Context) (*Conflict, error) {
	if !c.RootIsConflict {
		return nil, fmt.Errorf("object: commit %s has a resolved root; use Root", c.Hash)
	}
	return c.b.ReadConflict(ctx, c.RootTree)
}

// Subject returns the first line of the description.
func (c *Commit) Subject() string {
	if i := strings.IndexAny(c.Description, "\r\n"); i != -1 {
		return c.Description[:i]
	}
	return c.Description
}
