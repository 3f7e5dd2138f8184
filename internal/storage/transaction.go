package storage

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/productlens/extractor/internal/product"
	"github.com/productlens/extractor/internal/xerrors"
)

type intentKind int

const (
	intentAdd intentKind = iota
	intentUpdate
	intentDelete
)

type intent struct {
	kind    intentKind
	id      string
	product product.Data
	opts    SaveOptions
}

// Transaction batches add/update/delete intents against an Engine and
// applies them on Commit as one batch call per kind. A failing batch stops
// the commit; batches already applied stay applied, as Commit does not undo
// them. Reads within the transaction consult the pending cache first, so a
// caller sees its own uncommitted writes.
type Transaction struct {
	engine  Engine
	intents []intent
	cache   map[string]product.Data
	done    bool
}

// NewTransaction begins a transaction against engine.
func NewTransaction(engine Engine) *Transaction {
	return &Transaction{engine: engine, cache: map[string]product.Data{}}
}

func (tx *Transaction) requireActive() error {
	if tx.done {
		return xerrors.TransactionErr("transaction", "operate", xerrors.ErrTransactionAlreadyDone)
	}
	return nil
}

// AddProduct queues a save.
func (tx *Transaction) AddProduct(p product.Data, opts SaveOptions) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	tx.intents = append(tx.intents, intent{kind: intentAdd, product: p, opts: opts})
	if opts.ID != "" {
		tx.cache[opts.ID] = p
	}
	return nil
}

// UpdateProduct queues a merge-update for id.
func (tx *Transaction) UpdateProduct(id string, p product.Data) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	tx.intents = append(tx.intents, intent{kind: intentUpdate, id: id, product: p})
	tx.cache[id] = p
	return nil
}

// DeleteProduct queues a delete for id.
func (tx *Transaction) DeleteProduct(id string) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	tx.intents = append(tx.intents, intent{kind: intentDelete, id: id})
	delete(tx.cache, id)
	return nil
}

// GetProduct consults the pending cache before falling through to the
// underlying engine, so a transaction observes its own writes.
func (tx *Transaction) GetProduct(ctx context.Context, id string) (product.Data, error) {
	if err := tx.requireActive(); err != nil {
		return product.Data{}, err
	}
	if p, ok := tx.cache[id]; ok {
		return p, nil
	}
	rec, err := tx.engine.GetProduct(ctx, id)
	if err != nil {
		return product.Data{}, err
	}
	return rec.Product, nil
}

// Commit applies queued intents in order: saves, then updates, then
// deletes. Any failure rolls back nothing already applied to the engine
// (the engine's own batch calls are each all-or-nothing) but stops further
// application and reports the error. The transaction is inactive after
// Commit either way, so a later Rollback returns ErrTransactionAlreadyDone.
func (tx *Transaction) Commit(ctx context.Context) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	tx.done = true

	adds, updates, deletes := tx.partition()

	if len(adds) > 0 {
		ps := make([]product.Data, len(adds))
		opts := make([]SaveOptions, len(adds))
		for i, it := range adds {
			ps[i] = it.product
			opts[i] = it.opts
		}
		if _, err := tx.engine.SaveProducts(ctx, ps, opts); err != nil {
			return xerrors.TransactionErr("transaction", "commit adds", eris.Wrap(err, "updates and deletes not applied"))
		}
	}

	if len(updates) > 0 {
		m := make(map[string]product.Data, len(updates))
		for _, it := range updates {
			m[it.id] = it.product
		}
		if _, err := tx.engine.UpdateProducts(ctx, m); err != nil {
			return xerrors.TransactionErr("transaction", "commit updates", eris.Wrap(err, "adds already applied; deletes not applied"))
		}
	}

	if len(deletes) > 0 {
		ids := make([]string, len(deletes))
		for i, it := range deletes {
			ids[i] = it.id
		}
		if err := tx.engine.DeleteProducts(ctx, ids); err != nil {
			return xerrors.TransactionErr("transaction", "commit deletes", eris.Wrap(err, "adds and updates already applied"))
		}
	}

	return nil
}

// Rollback discards all pending intents without touching the engine.
func (tx *Transaction) Rollback() error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	tx.done = true
	tx.intents = nil
	tx.cache = map[string]product.Data{}
	return nil
}

func (tx *Transaction) partition() (adds, updates, deletes []intent) {
	for _, it := range tx.intents {
		switch it.kind {
		case intentAdd:
			adds = append(adds, it)
		case intentUpdate:
			updates = append(updates, it)
		case intentDelete:
			deletes = append(deletes, it)
		}
	}
	return
}

// WithTransaction runs fn against a new transaction, committing on a nil
// return and rolling back otherwise (spec's context-manager semantics).
func WithTransaction(ctx context.Context, engine Engine, fn func(tx *Transaction) error) error {
	tx := NewTransaction(engine)
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit(ctx)
}
