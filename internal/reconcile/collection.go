package reconcile

import (
	"context"

	"tillsync/internal/core/entity"
)

// Collection is a typed view of one synced collection.
type Collection[T entity.Record] struct {
	engine *Engine
	name   entity.Collection
}

// NewCollection binds a record type to a collection name.
func NewCollection[T entity.Record](e *Engine, name entity.Collection) *Collection[T] {
	return &Collection[T]{engine: e, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() entity.Collection { return c.name }

// List returns every record, hydrating the collection on first use.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	docs, err := c.engine.FetchAndMerge(ctx, c.name)
	if err != nil {
		return nil, err
	}
	return entity.DecodeAll[T](docs)
}

// Get returns one record from the local store.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	doc, err := c.engine.Get(ctx, c.name, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return entity.Decode[T](doc)
}

// Find returns the first listed record matching pred.
func (c *Collection[T]) Find(ctx context.Context, pred func(T) bool) (T, bool, error) {
	var zero T
	items, err := c.List(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, it := range items {
		if pred(it) {
			return it, true, nil
		}
	}
	return zero, false, nil
}

// Set replaces the collection (bulk dual write).
func (c *Collection[T]) Set(ctx context.Context, items []T) error {
	docs := make([]entity.Document, 0, len(items))
	for _, it := range items {
		d, err := entity.Encode(it)
		if err != nil {
			return err
		}
		docs = append(docs, d)
	}
	return c.engine.SetCollection(ctx, c.name, docs)
}

// Put writes one record (single-record dual write with outbox).
func (c *Collection[T]) Put(ctx context.Context, item T) error {
	d, err := entity.Encode(item)
	if err != nil {
		return err
	}
	return c.engine.Put(ctx, c.name, d)
}

// Remove deletes one record.
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	return c.engine.Delete(ctx, c.name, id)
}
