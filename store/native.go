package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
)

// Options configures a native backend. Grounded on
// modules/zeta/backend/odb.go's functional-options Database constructor.
type Options struct {
	CompressionALGO string // "zstd" (default) or "store" (no compression)
	EnableCache     bool
}

// Native is the on-disk object store backend: loose, content-addressed
// files under root/objects/<2-hex>/<rest-hex>, each zstd-compressed
// unless Options.CompressionALGO is "store", which writes them as-is.
// Adapted from modules/zeta/backend/{odb.go,file_storer.go}'s directory
// sharding and compression scheme, generalized from git-compatible
// objects to this module's Tree/Commit/Conflict/blob encoding.
type Native struct {
	root string
	opts Options

	mu    sync.RWMutex
	cache *ristretto.Cache[string, []byte]

	rootCommit objecthash.Hash
	rootTree   objecthash.Hash
	emptyTree  objecthash.Hash

	zw *zstdPool
}

var _ Backend = (*Native)(nil)

func init() {
	Register("native", func(root string) (Backend, error) {
		return NewNative(root, Options{})
	})
}

// NewNative opens (creating if absent) a native object store rooted at
// root, and ensures the synthetic root commit (spec §4.1: "a synthetic
// root commit with empty tree ... never rewritable and has no parents")
// exists.
func NewNative(root string, opts Options) (*Native, error) {
	if opts.CompressionALGO == "" {
		opts.CompressionALGO = "zstd"
	}
	if err := os.MkdirAll(filepath.Join(root, "objects"), 0o755); err != nil {
		return nil, fmt.Errorf("store: creating object dir: %w", err)
	}
	n := &Native{root: root, opts: opts, zw: newZstdPool()}
	if opts.EnableCache {
		c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
			NumCounters: 100_000,
			MaxCost:     64 << 20,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("store: creating cache: %w", err)
		}
		n.cache = c
	}
	if err := n.ensureRoot(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Native) ensureRoot() error {
	ctx := context.Background()
	empty := object.NewTree(nil)
	emptyId, err := n.WriteTree(ctx, empty)
	if err != nil {
		return fmt.Errorf("store: writing empty tree: %w", err)
	}
	n.emptyTree = emptyId
	n.rootTree = emptyId

	root := &object.Commit{RootTree: emptyId}
	rootId, err := n.WriteCommit(ctx, root)
	if err != nil {
		return fmt.Errorf("store: writing root commit: %w", err)
	}
	n.rootCommit = rootId
	return nil
}

func (n *Native) RootCommitId() objecthash.Hash { return n.rootCommit }
func (n *Native) RootTreeId() objecthash.Hash   { return n.rootTree }
func (n *Native) EmptyTreeId() objecthash.Hash  { return n.emptyTree }

func (n *Native) path(id objecthash.Hash) string {
	s := id.String()
	return filepath.Join(n.root, "objects", s[:2], s[2:])
}

func (n *Native) has(id objecthash.Hash) bool {
	_, err := os.Stat(n.path(id))
	return err == nil
}

// putRaw writes content under id, compressing it, unless an object with
// that id is already present (writes are idempotent under content hash,
// spec §4.1).
func (n *Native) putRaw(id objecthash.Hash, content []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	p := n.path(id)
	if _, err := os.Stat(p); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	compressed, err := n.zw.compress(content, n.opts.CompressionALGO)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), "incoming-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(compressed); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, p); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if n.cache != nil {
		n.cache.Set(id.String(), content, int64(len(content)))
	}
	return nil
}

func (n *Native) getRaw(ctx context.Context, id objecthash.Hash) ([]byte, error) {
	if n.cache != nil {
		if v, ok := n.cache.Get(id.String()); ok {
			return v, nil
		}
	}
	n.mu.RLock()
	p := n.path(id)
	f, err := os.Open(p)
	n.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ErrObjectNotFound{Id: id}
		}
		return nil, err
	}
	defer f.Close()
	compressed, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	content, err := n.zw.decompress(compressed)
	if err != nil {
		return nil, &ErrCorruptObject{Id: id, Reason: err.Error()}
	}
	if objecthash.Of(content) != id {
		return nil, &ErrCorruptObject{Id: id, Reason: "content hash does not match id"}
	}
	if n.cache != nil {
		n.cache.Set(id.String(), content, int64(len(content)))
	}
	return content, nil
}

// --- blobs (files/symlinks share the same untyped byte storage) ---

func (n *Native) ReadFile(ctx context.Context, id objecthash.Hash) ([]byte, error) {
	return n.getRaw(ctx, id)
}

func (n *Native) WriteFile(ctx context.Context, content []byte) (objecthash.Hash, error) {
	id := objecthash.Of(content)
	if err := n.putRaw(id, content); err != nil {
		return objecthash.Zero, err
	}
	return id, nil
}

func (n *Native) ReadSymlink(ctx context.Context, id objecthash.Hash) (string, error) {
	b, err := n.getRaw(ctx, id)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (n *Native) WriteSymlink(ctx context.Context, target string) (objecthash.Hash, error) {
	return n.WriteFile(ctx, []byte(target))
}

// --- structured objects ---

func (n *Native) WriteTree(ctx context.Context, t *object.Tree) (objecthash.Hash, error) {
	for _, e := range t.Entries {
		if e.Kind == object.TreeEntryKind && e.Id == n.emptyTree {
			return objecthash.Zero, fmt.Errorf("store: tree entry %q names an empty subtree (spec invariant 3)", e.Name)
		}
	}
	b, err := object.Encode(t)
	if err != nil {
		return objecthash.Zero, err
	}
	id := objecthash.Of(b)
	if err := n.putRaw(id, b); err != nil {
		return objecthash.Zero, err
	}
	return id, nil
}

func (n *Native) ReadTree(ctx context.Context, id objecthash.Hash) (*object.Tree, error) {
	b, err := n.getRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := object.Decode(bytes.NewReader(b), id, n)
	if err != nil {
		return nil, &ErrCorruptObject{Id: id, Reason: err.Error()}
	}
	t, ok := v.(*object.Tree)
	if !ok {
		return nil, &ErrCorruptObject{Id: id, Reason: "not a tree"}
	}
	return t, nil
}

func (n *Native) WriteCommit(ctx context.Context, c *object.Commit) (objecthash.Hash, error) {
	b, err := object.Encode(c)
	if err != nil {
		return objecthash.Zero, err
	}
	id := objecthash.Of(b)
	if err := n.putRaw(id, b); err != nil {
		return objecthash.Zero, err
	}
	return id, nil
}

func (n *Native) ReadCommit(ctx context.Context, id objecthash.Hash) (*object.Commit, error) {
	b, err := n.getRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := object.Decode(bytes.NewReader(b), id, n)
	if err != nil {
		return nil, &ErrCorruptObject{Id: id, Reason: err.Error()}
	}
	c, ok := v.(*object.Commit)
	if !ok {
		return nil, &ErrCorruptObject{Id: id, Reason: "not a commit"}
	}
	return c, nil
}

func (n *Native) WriteConflict(ctx context.Context, c *object.Conflict) (objecthash.Hash, error) {
	if len(c.Adds) == 1 && len(c.Removes) == 0 {
		return objecthash.Zero, fmt.Errorf("store: refusing to write a resolved value as a conflict object (spec invariant 2)")
	}
	b, err := object.Encode(c)
	if err != nil {
		return objecthash.Zero, err
	}
	id := objecthash.Of(b)
	if err := n.putRaw(id, b); err != nil {
		return objecthash.Zero, err
	}
	return id, nil
}

func (n *Native) ReadConflict(ctx context.Context, id objecthash.Hash) (*object.Conflict, error) {
	b, err := n.getRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := object.Decode(bytes.NewReader(b), id, n)
	if err != nil {
		return nil, &ErrCorruptObject{Id: id, Reason: err.Error()}
	}
	c, ok := v.(*object.Conflict)
	if !ok {
		return nil, &ErrCorruptObject{Id: id, Reason: "not a conflict"}
	}
	return c, nil
}

func (n *Native) Close() error {
	if n.cache != nil {
		n.cache.Close()
	}
	return nil
}

// zstdPool mirrors the pooled encoder/decoder pattern of the teacher's
// modules/streamio/zstd.go, scoped to this package since streamio itself
// is teacher-internal and not an importable dependency of this module.
type zstdPool struct {
	encoders sync.Pool
	decoders sync.Pool
}

func newZstdPool() *zstdPool {
	return &zstdPool{
		encoders: sync.Pool{New: func() any { w, _ := zstd.NewWriter(nil); return w }},
		decoders: sync.Pool{New: func() any { r, _ := zstd.NewReader(nil); return r }},
	}
}

func (p *zstdPool) compress(content []byte, algo string) ([]byte, error) {
	if algo == "store" {
		return append([]byte{0}, content...), nil
	}
	w := p.encoders.Get().(*zstd.Encoder)
	defer p.encoders.Put(w)
	var buf bytes.Buffer
	buf.WriteByte(1)
	w.Reset(&buf)
	if _, err := w.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *zstdPool) decompress(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty object")
	}
	if b[0] == 0 {
		return b[1:], nil
	}
	r := p.decoders.Get().(*zstd.Decoder)
	defer p.decoders.Put(r)
	if err := r.Reset(bytes.NewReader(b[1:])); err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

var _ = time.Now // used by gc.go in this package
