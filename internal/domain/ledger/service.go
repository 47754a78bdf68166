// Package ledger implements the domain write paths of the till: sales,
// purchases, payments and cash entries, together with the stock, balance
// and cash-entry mutations each of them implies.
//
// Every operation runs inside reconcile.Engine.Atomically, so the record,
// its derived mutations, their outbox entries and the audit entry commit
// as one local transaction before any remote push is attempted.
package ledger

import (
	"context"
	"time"

	"tillsync/internal/core/apperror"
	appctx "tillsync/internal/core/context"
	"tillsync/internal/core/clock"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/security"
	"tillsync/internal/domain"
	"tillsync/internal/domain/catalog"
	"tillsync/internal/domain/documents"
	"tillsync/internal/reconcile"
	"tillsync/pkg/logger"
)

// DefaultEditWindow is the enforced edit/delete window of sales, purchases
// and cash entries.
const DefaultEditWindow = 2 * time.Hour

// Config holds the collaborators of a Service.
type Config struct {
	// Policy enforces the edit window. Defaults to DefaultEditWindow.
	Policy *security.EditPolicy

	// Audit is optional.
	Audit domain.Auditor

	// PhoneRegion is used to normalise phone numbers typed without a country code.
	PhoneRegion string

	Logger *logger.Logger
}

// Service is the Domain Ledger of one session.
type Service struct {
	engine *reconcile.Engine
	clock  clock.Clock
	policy *security.EditPolicy
	audit  domain.Auditor
	log    *logger.Logger
	region string

	goods     *reconcile.Collection[catalog.Good]
	debtors   *reconcile.Collection[catalog.Debtor]
	creditors *reconcile.Collection[catalog.Creditor]
	suppliers *reconcile.Collection[catalog.Supplier]
	sales     *reconcile.Collection[documents.Sale]
	purchases *reconcile.Collection[documents.Purchase]
	cash      *reconcile.Collection[documents.CashEntry]

	goodSvc     *domain.CatalogService[catalog.Good, *catalog.Good]
	debtorSvc   *domain.CatalogService[catalog.Debtor, *catalog.Debtor]
	creditorSvc *domain.CatalogService[catalog.Creditor, *catalog.Creditor]
	supplierSvc *domain.CatalogService[catalog.Supplier, *catalog.Supplier]
}

// New creates a ledger bound to a session engine.
func New(engine *reconcile.Engine, cfg Config) *Service {
	clk := engine.Clock()
	if cfg.Policy == nil {
		cfg.Policy = security.NewEditPolicy(DefaultEditWindow, 0, clk.Now)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.PhoneRegion == "" {
		cfg.PhoneRegion = catalog.DefaultPhoneRegion
	}

	s := &Service{
		engine:    engine,
		clock:     clk,
		policy:    cfg.Policy,
		audit:     cfg.Audit,
		log:       cfg.Logger.WithComponent("ledger"),
		region:    cfg.PhoneRegion,
		goods:     reconcile.NewCollection[catalog.Good](engine, entity.Goods),
		debtors:   reconcile.NewCollection[catalog.Debtor](engine, entity.Debtors),
		creditors: reconcile.NewCollection[catalog.Creditor](engine, entity.Creditors),
		suppliers: reconcile.NewCollection[catalog.Supplier](engine, entity.Suppliers),
		sales:     reconcile.NewCollection[documents.Sale](engine, entity.Sales),
		purchases: reconcile.NewCollection[documents.Purchase](engine, entity.Purchases),
		cash:      reconcile.NewCollection[documents.CashEntry](engine, entity.CashEntries),
	}

	s.goodSvc = domain.NewCatalogService[catalog.Good, *catalog.Good](domain.CatalogServiceConfig[catalog.Good]{
		Store: s.goods, TxManager: engine, Audit: cfg.Audit, Now: clk.Now,
		Collection: entity.Goods, EntityName: "good",
	})
	s.debtorSvc = domain.NewCatalogService[catalog.Debtor, *catalog.Debtor](domain.CatalogServiceConfig[catalog.Debtor]{
		Store: s.debtors, TxManager: engine, Audit: cfg.Audit, Now: clk.Now,
		Collection: entity.Debtors, EntityName: "debtor",
	})
	s.creditorSvc = domain.NewCatalogService[catalog.Creditor, *catalog.Creditor](domain.CatalogServiceConfig[catalog.Creditor]{
		Store: s.creditors, TxManager: engine, Audit: cfg.Audit, Now: clk.Now,
		Collection: entity.Creditors, EntityName: "creditor",
	})
	s.supplierSvc = domain.NewCatalogService[catalog.Supplier, *catalog.Supplier](domain.CatalogServiceConfig[catalog.Supplier]{
		Store: s.suppliers, TxManager: engine, Audit: cfg.Audit, Now: clk.Now,
		Collection: entity.Suppliers, EntityName: "supplier",
	})
	s.registerHooks()
	return s
}

func (s *Service) registerHooks() {
	debtorPhone := func(ctx context.Context, d *catalog.Debtor) error { return s.normalizePhone(&d.Phone) }
	s.debtorSvc.Hooks().OnBeforeCreate(debtorPhone)
	s.debtorSvc.Hooks().OnBeforeUpdate(debtorPhone)
	s.debtorSvc.Hooks().OnBeforeDelete(func(ctx context.Context, d *catalog.Debtor) error {
		return d.EnsureDeletable("debtor")
	})

	creditorPhone := func(ctx context.Context, c *catalog.Creditor) error { return s.normalizePhone(&c.Phone) }
	s.creditorSvc.Hooks().OnBeforeCreate(creditorPhone)
	s.creditorSvc.Hooks().OnBeforeUpdate(creditorPhone)
	s.creditorSvc.Hooks().OnBeforeDelete(func(ctx context.Context, c *catalog.Creditor) error {
		return c.EnsureDeletable("creditor")
	})

	supplierPhone := func(ctx context.Context, sp *catalog.Supplier) error { return s.normalizePhone(&sp.Phone) }
	s.supplierSvc.Hooks().OnBeforeCreate(supplierPhone)
	s.supplierSvc.Hooks().OnBeforeUpdate(supplierPhone)
}

func (s *Service) normalizePhone(phone *string) error {
	n, err := catalog.NormalizePhone(*phone, s.region)
	if err != nil {
		return err
	}
	*phone = n
	return nil
}

// DeleteGuards are the remote-deletion guards of the ledger collections:
// a debtor or creditor still carrying a balance is never dropped locally.
func DeleteGuards() map[entity.Collection]entity.DeleteGuard {
	return map[entity.Collection]entity.DeleteGuard{
		entity.Debtors:   catalog.SettledDocument,
		entity.Creditors: catalog.SettledDocument,
	}
}

// Policy returns the edit policy.
func (s *Service) Policy() *security.EditPolicy {
	return s.policy
}

func (s *Service) record(ctx context.Context, c entity.Collection, id string, action entity.AuditAction, payload any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, c, id, action, payload)
}

// notFound maps a store miss to a NOT_FOUND naming the entity.
func notFound(err error, entityName, id string) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(entityName, id)
	}
	return err
}

func (s *Service) dateOr(t *time.Time, now time.Time) time.Time {
	if t == nil || t.IsZero() {
		return now
	}
	return clock.Normalize(*t)
}

func recordedBy(ctx context.Context) string {
	return appctx.ActorName(ctx)
}

// --- Collection access (read-hydrate-or-cache / bulk dual write) ---

// GetGoods returns every good.
func (s *Service) GetGoods(ctx context.Context) ([]catalog.Good, error) {
	return s.goodSvc.List(ctx)
}

// SetGoods replaces the goods collection.
func (s *Service) SetGoods(ctx context.Context, items []catalog.Good) error {
	return s.goodSvc.Set(ctx, items)
}

// GetDebtors returns every debtor.
func (s *Service) GetDebtors(ctx context.Context) ([]catalog.Debtor, error) {
	return s.debtorSvc.List(ctx)
}

// SetDebtors replaces the debtors collection.
func (s *Service) SetDebtors(ctx context.Context, items []catalog.Debtor) error {
	for i := range items {
		items[i].Recompute()
	}
	return s.debtorSvc.Set(ctx, items)
}

// GetCreditors returns every creditor.
func (s *Service) GetCreditors(ctx context.Context) ([]catalog.Creditor, error) {
	return s.creditorSvc.List(ctx)
}

// SetCreditors replaces the creditors collection.
func (s *Service) SetCreditors(ctx context.Context, items []catalog.Creditor) error {
	for i := range items {
		items[i].Recompute()
	}
	return s.creditorSvc.Set(ctx, items)
}

// GetSuppliers returns every supplier.
func (s *Service) GetSuppliers(ctx context.Context) ([]catalog.Supplier, error) {
	return s.supplierSvc.List(ctx)
}

// SetSuppliers replaces the suppliers collection.
func (s *Service) SetSuppliers(ctx context.Context, items []catalog.Supplier) error {
	return s.supplierSvc.Set(ctx, items)
}

// GetSales returns every sale.
func (s *Service) GetSales(ctx context.Context) ([]documents.Sale, error) {
	return s.sales.List(ctx)
}

// SetSales replaces the sales collection. Stock and balances are not touched.
func (s *Service) SetSales(ctx context.Context, items []documents.Sale) error {
	return s.sales.Set(ctx, items)
}

// GetPurchases returns every purchase.
func (s *Service) GetPurchases(ctx context.Context) ([]documents.Purchase, error) {
	return s.purchases.List(ctx)
}

// SetPurchases replaces the purchases collection.
func (s *Service) SetPurchases(ctx context.Context, items []documents.Purchase) error {
	return s.purchases.Set(ctx, items)
}

// GetCashEntries returns every cash entry.
func (s *Service) GetCashEntries(ctx context.Context) ([]documents.CashEntry, error) {
	return s.cash.List(ctx)
}

// SetCashEntries replaces the cash entries collection.
func (s *Service) SetCashEntries(ctx context.Context, items []documents.CashEntry) error {
	return s.cash.Set(ctx, items)
}

// CashEntriesBetween returns the entries dated in [from, to).
func (s *Service) CashEntriesBetween(ctx context.Context, from, to time.Time) ([]documents.CashEntry, error) {
	all, err := s.cash.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]documents.CashEntry, 0, len(all))
	for _, c := range all {
		if !c.Date.Before(from) && c.Date.Before(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

// --- Single-record reads ---

// GetSale returns one sale.
func (s *Service) GetSale(ctx context.Context, id string) (*documents.Sale, error) {
	sale, err := s.sales.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "sale", id)
	}
	return &sale, nil
}

// GetPurchase returns one purchase.
func (s *Service) GetPurchase(ctx context.Context, id string) (*documents.Purchase, error) {
	p, err := s.purchases.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "purchase", id)
	}
	return &p, nil
}

// GetCashEntry returns one cash entry.
func (s *Service) GetCashEntry(ctx context.Context, id string) (*documents.CashEntry, error) {
	c, err := s.cash.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "cash entry", id)
	}
	return &c, nil
}

// GetGood returns one good.
func (s *Service) GetGood(ctx context.Context, id string) (*catalog.Good, error) {
	return s.goodSvc.Get(ctx, id)
}

// GetDebtor returns one debtor.
func (s *Service) GetDebtor(ctx context.Context, id string) (*catalog.Debtor, error) {
	return s.debtorSvc.Get(ctx, id)
}

// GetCreditor returns one creditor.
func (s *Service) GetCreditor(ctx context.Context, id string) (*catalog.Creditor, error) {
	return s.creditorSvc.Get(ctx, id)
}

// GetSupplier returns one supplier.
func (s *Service) GetSupplier(ctx context.Context, id string) (*catalog.Supplier, error) {
	return s.supplierSvc.Get(ctx, id)
}
