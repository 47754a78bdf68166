// Package domain provides the generic catalog service shared by goods,
// suppliers, debtors and creditors.
package domain

import (
	"context"
	"fmt"
	"time"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/tx"
	"tillsync/pkg/logger"
)

// Store is the record access a catalog service needs.
// reconcile.Collection implements it.
type Store[T entity.Record] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Put(ctx context.Context, item T) error
	Remove(ctx context.Context, id string) error
	Set(ctx context.Context, items []T) error
}

// Auditor appends mutations to the audit chain.
type Auditor interface {
	Record(ctx context.Context, c entity.Collection, recordID string, action entity.AuditAction, payload any) error
}

// Mutable is the pointer form of a catalog record.
type Mutable[T any] interface {
	*T
	entity.Validatable
	Touch(now time.Time)
}

// CatalogService provides CRUD for one catalog collection. Writes run
// inside the tx manager so the record, its outbox entry and its audit
// entry commit together.
type CatalogService[T entity.Record, P Mutable[T]] struct {
	store      Store[T]
	txManager  tx.Manager
	audit      Auditor
	hooks      *HookRegistry[P]
	now        func() time.Time
	collection entity.Collection

	// entityName for error messages
	entityName string
}

// CatalogServiceConfig configures the catalog service.
type CatalogServiceConfig[T entity.Record] struct {
	Store      Store[T]
	TxManager  tx.Manager
	Audit      Auditor // Optional
	Now        func() time.Time
	Collection entity.Collection
	EntityName string
}

// NewCatalogService creates a new catalog service.
func NewCatalogService[T entity.Record, P Mutable[T]](cfg CatalogServiceConfig[T]) *CatalogService[T, P] {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CatalogService[T, P]{
		store:      cfg.Store,
		txManager:  cfg.TxManager,
		audit:      cfg.Audit,
		hooks:      NewHookRegistry[P](),
		now:        cfg.Now,
		collection: cfg.Collection,
		entityName: cfg.EntityName,
	}
}

// Hooks returns the hook registry for external registration.
func (s *CatalogService[T, P]) Hooks() *HookRegistry[P] {
	return s.hooks
}

func (s *CatalogService[T, P]) normalizeValidationErr(err error) error {
	if err == nil {
		return nil
	}
	// If entity already returns structured AppError, keep it.
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewValidation(err.Error())
}

func (s *CatalogService[T, P]) normalizeGetErr(err error, id string) error {
	if err == nil {
		return nil
	}
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(s.entityName, id)
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", s.entityName).WithDetail("id", id)
}

// Create validates and stores a new entity.
func (s *CatalogService[T, P]) Create(ctx context.Context, item P) error {
	// Hooks normalise input (phone numbers, names) before validation
	if err := s.hooks.Run(ctx, BeforeCreate, item); err != nil {
		return err
	}
	if err := item.Validate(ctx); err != nil {
		return s.normalizeValidationErr(err)
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Put(ctx, *item); err != nil {
			return fmt.Errorf("create %s: %w", s.entityName, err)
		}
		return s.record(ctx, *item, entity.AuditCreate)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, AfterCreate, item); err != nil {
		// Log but don't fail - entity is already created
		logger.Warn(ctx, "after-create hook failed", "entity", s.entityName, "error", err)
	}
	return nil
}

// Get retrieves entity by ID.
func (s *CatalogService[T, P]) Get(ctx context.Context, id string) (P, error) {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.normalizeGetErr(err, id)
	}
	return &item, nil
}

// Update stamps, validates and stores an existing entity.
func (s *CatalogService[T, P]) Update(ctx context.Context, item P) error {
	if err := s.hooks.Run(ctx, BeforeUpdate, item); err != nil {
		return err
	}
	item.Touch(s.now())
	if err := item.Validate(ctx); err != nil {
		return s.normalizeValidationErr(err)
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Put(ctx, *item); err != nil {
			return fmt.Errorf("update %s: %w", s.entityName, err)
		}
		return s.record(ctx, *item, entity.AuditUpdate)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, AfterUpdate, item); err != nil {
		logger.Warn(ctx, "after-update hook failed", "entity", s.entityName, "error", err)
	}
	return nil
}

// Delete removes an entity. Before-delete hooks may veto it.
func (s *CatalogService[T, P]) Delete(ctx context.Context, id string) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.hooks.Run(ctx, BeforeDelete, item); err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Remove(ctx, id); err != nil {
			return fmt.Errorf("delete %s: %w", s.entityName, err)
		}
		return s.record(ctx, *item, entity.AuditDelete)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, AfterDelete, item); err != nil {
		logger.Warn(ctx, "after-delete hook failed", "entity", s.entityName, "error", err)
	}
	return nil
}

// List returns every entity, hydrating on first use.
func (s *CatalogService[T, P]) List(ctx context.Context) ([]T, error) {
	return s.store.List(ctx)
}

// Set replaces the whole collection (bulk write, no outbox).
func (s *CatalogService[T, P]) Set(ctx context.Context, items []T) error {
	for i := range items {
		if err := P(&items[i]).Validate(ctx); err != nil {
			return s.normalizeValidationErr(err)
		}
	}
	return s.store.Set(ctx, items)
}

func (s *CatalogService[T, P]) record(ctx context.Context, item T, action entity.AuditAction) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, s.collection, item.RecordID(), action, item)
}
