// Package oplog implements the Operation Store and Op-Heads of spec
// §4.4: content-addressed Operation/View persistence plus the op-heads
// publish and concurrent-heads merge procedure. The on-disk convention —
// one file per persisted record, one empty file per head — is grounded
// on the teacher's modules/zeta/refs/filesystem.go (one file per ref)
// and modules/zeta/reflog/reflog.go (append-only log walk), generalized
// from git refs/reflogs to this module's operation DAG.
package oplog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/martinvonz/jjrepo/lock"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/trace"
	"github.com/martinvonz/jjrepo/view"
)

// Metadata is the free-form description spec §3 attaches to every
// Operation.
type Metadata struct {
	StartTime   int64  `json:"start_time"`
	EndTime     int64  `json:"end_time"`
	Description string `json:"description"`
	Tags        map[string]string `json:"tags,omitempty"`
	Hostname    string `json:"hostname"`
	Username    string `json:"username"`
}

// Operation is the spec §3 Operation: an atomic repository state
// transition, identified by content hash over {ViewId, Parents,
// Metadata}.
type Operation struct {
	Id       objecthash.Hash   `json:"-"`
	ViewId   objecthash.Hash   `json:"view_id"`
	Parents  []objecthash.Hash `json:"parents"`
	Metadata Metadata          `json:"metadata"`
}

func (o *Operation) canonicalBytes() []byte {
	b, _ := json.Marshal(struct {
		ViewId   objecthash.Hash   `json:"view_id"`
		Parents  []objecthash.Hash `json:"parents"`
		Metadata Metadata          `json:"metadata"`
	}{o.ViewId, o.Parents, o.Metadata})
	return b
}

// Store persists Operations and Views by content hash and maintains the
// op-heads set, all under root (spec §6: "operations/<opid> and
// views/<viewid>, content-addressed files" plus "a directory containing
// one empty file per head op id").
type Store struct {
	root string
}

// Open returns a Store rooted at root, creating its directories if
// needed.
func Open(root string) (*Store, error) {
	for _, d := range []string{"operations", "views", "op-heads"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) opPath(id objecthash.Hash) string    { return filepath.Join(s.root, "operations", id.String()) }
func (s *Store) viewPath(id objecthash.Hash) string  { return filepath.Join(s.root, "views", id.String()) }
func (s *Store) headPath(id objecthash.Hash) string  { return filepath.Join(s.root, "op-heads", id.String()) }
func (s *Store) headsLockPath() string                { return filepath.Join(s.root, "op-heads.lock") }

// ErrNotFound is returned when an operation or view id is unknown.
var ErrNotFound = errors.New("oplog: not found")

// WriteView persists v by content hash and returns its id.
func (s *Store) WriteView(v *view.View) (objecthash.Hash, error) {
	b, err := json.Marshal(encodeView(v))
	if err != nil {
		return objecthash.Zero, err
	}
	id := objecthash.Of(b)
	if err := writeFileIfAbsent(s.viewPath(id), b); err != nil {
		return objecthash.Zero, err
	}
	return id, nil
}

// ReadView resolves id to its View.
func (s *Store) ReadView(id objecthash.Hash) (*view.View, error) {
	b, err := os.ReadFile(s.viewPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("oplog: view %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	var dv diskView
	if err := json.Unmarshal(b, &dv); err != nil {
		return nil, err
	}
	return decodeView(dv), nil
}

// WriteOperation persists o under its content hash (computed over
// everything but Id) and returns that id. Writing is idempotent:
// writing the same logical operation twice yields the same id and does
// not error.
func (s *Store) WriteOperation(o *Operation) (objecthash.Hash, error) {
	b := o.canonicalBytes()
	id := objecthash.Of(b)
	if err := writeFileIfAbsent(s.opPath(id), b); err != nil {
		return objecthash.Zero, err
	}
	return id, nil
}

// ReadOperation resolves id to its Operation.
func (s *Store) ReadOperation(id objecthash.Hash) (*Operation, error) {
	b, err := os.ReadFile(s.opPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("oplog: operation %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	var o Operation
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, err
	}
	o.Id = id
	return &o, nil
}

// Heads returns the current op-heads set.
func (s *Store) Heads() ([]objecthash.Hash, error) {
	files, err := os.ReadDir(filepath.Join(s.root, "op-heads"))
	if err != nil {
		return nil, err
	}
	heads := make([]objecthash.Hash, 0, len(files))
	for _, f := range files {
		id, err := objecthash.Parse(f.Name())
		if err != nil {
			continue
		}
		heads = append(heads, id)
	}
	sort.Slice(heads, func(i, j int) bool { return objecthash.Less(heads[i], heads[j]) })
	return heads, nil
}

// ErrConcurrentUpdate is returned by Publish when, under the lock, some
// declared parent of the operation is no longer a current head
// (spec §4.4 step 2: "verify every listed parent is currently a head;
// if not, the caller must merge first").
var ErrConcurrentUpdate = errors.New("oplog: parents are not the current heads; merge first")

// Publish performs spec §4.4's five-step publish sequence for o,
// already built against o.Parents: acquire the op-heads lock, verify
// every parent is a current head, write the operation and view, add the
// new id to op-heads and remove the superseded parents, release the
// lock.
func (s *Store) Publish(ctx context.Context, o *Operation) (objecthash.Hash, error) {
	var newId objecthash.Hash
	err := lock.Do(ctx, s.headsLockPath(), func() error {
		heads, err := s.Heads()
		if err != nil {
			return err
		}
		headSet := map[objecthash.Hash]struct{}{}
		for _, h := range heads {
			headSet[h] = struct{}{}
		}
		for _, p := range o.Parents {
			if _, ok := headSet[p]; !ok {
				return ErrConcurrentUpdate
			}
		}
		id, err := s.WriteOperation(o)
		if err != nil {
			return err
		}
		if err := touchFile(s.headPath(id)); err != nil {
			return err
		}
		for _, p := range o.Parents {
			_ = os.Remove(s.headPath(p))
		}
		newId = id
		return nil
	})
	if err == nil {
		trace.OperationPublished(newId.String(), o.Metadata.Description)
	}
	return newId, err
}

func writeFileIfAbsent(path string, b []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "incoming-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func touchFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
