package repo

import (
	"context"
	"fmt"

	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/oplog"
	"github.com/martinvonz/jjrepo/store"
)

// Transaction is opened against a chosen base operation (spec §4.5). It
// holds a MutableRepo that shadows the base operation's view; Commit
// consumes it into a new published Operation.
type Transaction struct {
	opStore     *oplog.Store
	backend     store.Backend
	repoHandle  *MutableRepo
	baseOpIds   []objecthash.Hash
	hostname    string
	username    string
	nowFunc     func() int64
}

// Open resolves baseOpId to its view, builds an ancestry index over it,
// and returns a Transaction whose MutableRepo shadows that view. nowFunc
// supplies the operation's start/end timestamps (injected so tests don't
// depend on wall-clock time).
func Open(ctx context.Context, opStore *oplog.Store, backend store.Backend, baseOpId objecthash.Hash, hostname, username string, nowFunc func() int64) (*Transaction, error) {
	baseOp, err := opStore.ReadOperation(baseOpId)
	if err != nil {
		return nil, fmt.Errorf("repo: reading base operation: %w", err)
	}
	baseView, err := opStore.ReadView(baseOp.ViewId)
	if err != nil {
		return nil, fmt.Errorf("repo: reading base view: %w", err)
	}
	idx, err := BuildIndex(ctx, backend, baseView)
	if err != nil {
		return nil, fmt.Errorf("repo: building index: %w", err)
	}
	return &Transaction{
		opStore:    opStore,
		backend:    backend,
		repoHandle: NewMutableRepo(backend, idx, baseView.Clone()),
		baseOpIds:  []objecthash.Hash{baseOpId},
		hostname:   hostname,
		username:   username,
		nowFunc:    nowFunc,
	}, nil
}

// Repo returns the transaction's MutableRepo.
func (tx *Transaction) Repo() *MutableRepo { return tx.repoHandle }

// Commit consumes the transaction (spec §4.5): it runs the default
// rebase_descendants policy, recomputes head_ids, writes the resulting
// View, and publishes a new Operation whose parents are the base
// operation(s) this transaction was opened against.
func (tx *Transaction) Commit(ctx context.Context, description string) (objecthash.Hash, error) {
	if _, err := tx.repoHandle.RebaseDescendants(ctx, RebaseSettings{}); err != nil {
		return objecthash.Zero, fmt.Errorf("repo: rebasing descendants: %w", err)
	}
	if err := tx.repoHandle.RecomputeHeads(ctx); err != nil {
		return objecthash.Zero, fmt.Errorf("repo: recomputing heads: %w", err)
	}

	viewId, err := tx.opStore.WriteView(tx.repoHandle.View())
	if err != nil {
		return objecthash.Zero, fmt.Errorf("repo: writing view: %w", err)
	}

	now := tx.nowFunc()
	op := &oplog.Operation{
		ViewId:  viewId,
		Parents: tx.baseOpIds,
		Metadata: oplog.Metadata{
			StartTime:   now,
			EndTime:     now,
			Description: description,
			Hostname:    tx.hostname,
			Username:    tx.username,
		},
	}
	return tx.opStore.Publish(ctx, op)
}
