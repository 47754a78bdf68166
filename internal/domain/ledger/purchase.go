package ledger

import (
	"context"
	"time"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/validate"
	"tillsync/internal/domain/catalog"
	"tillsync/internal/domain/documents"
)

// AddPurchase records goods received. Stock grows by quantity × pack unit
// (the line's, else the good's, else 1), a credit purchase accrues on its
// creditor and a cash purchase generates a cash-out entry.
func (s *Service) AddPurchase(ctx context.Context, in PurchaseInput) (*documents.Purchase, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	p := documents.NewPurchase(now, in.PaymentMethod)
	p.SupplierID = in.SupplierID
	p.SupplierName = in.SupplierName
	p.CreditorID = in.CreditorID
	p.CreditorName = in.CreditorName
	p.InvoiceNumber = in.InvoiceNumber
	p.Note = in.Note
	p.Date = s.dateOr(in.Date, now)
	p.RecordedBy = recordedBy(ctx)

	err := s.engine.Atomically(ctx, func(ctx context.Context) error {
		if err := s.applyPurchase(ctx, p, in.Items, now); err != nil {
			return err
		}
		if err := s.purchases.Put(ctx, *p); err != nil {
			return err
		}
		return s.record(ctx, entity.Purchases, p.ID, entity.AuditCreate, p)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Infow("purchase recorded",
		"id", p.ID,
		"total", p.Total.StringFixed(2),
		"payment_method", p.PaymentMethod)
	return p, nil
}

// UpdatePurchase changes a purchase inside the edit window.
func (s *Service) UpdatePurchase(ctx context.Context, id string, patch PurchasePatch) (*documents.Purchase, error) {
	now := s.clock.Now()
	var out *documents.Purchase

	err := s.engine.Atomically(ctx, func(ctx context.Context) error {
		p, err := s.purchases.Get(ctx, id)
		if err != nil {
			return notFound(err, "purchase", id)
		}
		if err := s.policy.CanModify("purchase", id, p.CreatedAt); err != nil {
			return err
		}

		in := patch.apply(&p)
		if err := validate.Struct(in); err != nil {
			return err
		}
		if err := s.reversePurchase(ctx, &p, now); err != nil {
			return err
		}

		p.PaymentMethod = in.PaymentMethod
		p.SupplierID = in.SupplierID
		p.SupplierName = in.SupplierName
		p.CreditorID = in.CreditorID
		p.CreditorName = in.CreditorName
		p.InvoiceNumber = in.InvoiceNumber
		p.Date = s.dateOr(in.Date, p.Date)
		p.Note = in.Note
		p.Touch(now)

		if err := s.applyPurchase(ctx, &p, in.Items, now); err != nil {
			return err
		}
		if err := s.purchases.Put(ctx, p); err != nil {
			return err
		}
		out = &p
		return s.record(ctx, entity.Purchases, p.ID, entity.AuditUpdate, p)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeletePurchase removes a purchase inside the edit window, taking the
// received stock back out (floored at zero), reversing the creditor accrual
// and deleting the linked cash entry.
func (s *Service) DeletePurchase(ctx context.Context, id string) error {
	now := s.clock.Now()

	return s.engine.Atomically(ctx, func(ctx context.Context) error {
		p, err := s.purchases.Get(ctx, id)
		if err != nil {
			return notFound(err, "purchase", id)
		}
		if err := s.policy.CanModify("purchase", id, p.CreatedAt); err != nil {
			return err
		}
		if err := s.reversePurchase(ctx, &p, now); err != nil {
			return err
		}
		if err := s.purchases.Remove(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, entity.Purchases, id, entity.AuditDelete, p)
	})
}

func (s *Service) applyPurchase(ctx context.Context, p *documents.Purchase, lines []LineInput, now time.Time) error {
	book, err := s.loadStock(ctx)
	if err != nil {
		return err
	}

	items := make([]documents.Line, 0, len(lines))
	for i, in := range lines {
		g := book.match(in.GoodID, in.Name)
		line := documents.Line{
			GoodID:   in.GoodID,
			Name:     in.Name,
			Quantity: in.Quantity,
			PackUnit: in.PackUnit,
		}
		switch {
		case in.UnitPrice != nil:
			line.UnitPrice = *in.UnitPrice
		case g != nil:
			line.UnitPrice = g.CostPrice
		default:
			return apperror.NewValidation("unit price is required for goods not in the catalog").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}

		if g == nil {
			s.log.WithContext(ctx).Warnw("good not matched; stock unchanged",
				"purchase_id", p.ID, "good_id", in.GoodID, "name", in.Name)
		} else {
			pack := in.PackUnit
			if !pack.IsPositive() {
				pack = g.UnitsPerPack()
			}
			received := in.Quantity.Mul(pack)
			g.Receive(received)
			book.mark(g)

			line.GoodID = g.ID
			if line.Name == "" {
				line.Name = g.Name
			}
			line.Moved = received
		}
		items = append(items, line)
	}
	p.Items = items
	p.RecalculateTotals()

	if p.SupplierID != "" && p.SupplierName == "" {
		sp, err := s.suppliers.Get(ctx, p.SupplierID)
		switch {
		case apperror.IsNotFound(err):
			s.log.WithContext(ctx).Warnw("supplier not found", "purchase_id", p.ID, "supplier_id", p.SupplierID)
		case err != nil:
			return err
		default:
			p.SupplierName = sp.Name
		}
	}

	if err := p.Validate(ctx); err != nil {
		return err
	}
	if err := s.saveStock(ctx, book, now); err != nil {
		return err
	}

	if p.PaymentMethod.IsCredit() {
		name := p.CreditorName
		if name == "" {
			name = p.SupplierName
		}
		c, err := matchParty[catalog.Creditor](ctx, s.creditors, p.CreditorID, name)
		if err != nil {
			return err
		}
		if c == nil {
			s.log.WithContext(ctx).Warnw("creditor not matched; skipping balance accumulation",
				"purchase_id", p.ID, "creditor_id", p.CreditorID, "creditor_name", name)
		} else {
			c.Accrue(p.Total)
			c.Touch(now)
			if err := s.creditors.Put(ctx, *c); err != nil {
				return err
			}
			p.AccruedTo = c.ID
			p.CreditorID = c.ID
			p.CreditorName = c.Name
		}
	}

	if p.PaymentMethod.IsCash() && p.Total.IsPositive() {
		entry := documents.NewCashEntry(now, documents.CashOut, p.Total, p.Date)
		entry.Source = documents.SourcePurchase
		entry.SourceID = p.ID
		entry.Description = "Purchase"
		if p.SupplierName != "" {
			entry.Description = "Purchase from " + p.SupplierName
		}
		entry.Category = "purchases"
		entry.RecordedBy = p.RecordedBy
		if err := s.cash.Put(ctx, *entry); err != nil {
			return err
		}
		p.CashEntryID = entry.ID
	}
	return nil
}

func (s *Service) reversePurchase(ctx context.Context, p *documents.Purchase, now time.Time) error {
	book, err := s.loadStock(ctx)
	if err != nil {
		return err
	}
	for i := range p.Items {
		l := &p.Items[i]
		if l.GoodID == "" || l.Moved.IsZero() {
			continue
		}
		if g := book.match(l.GoodID, ""); g != nil {
			g.Deduct(l.Moved)
			book.mark(g)
		}
		l.Moved = 0
	}
	if err := s.saveStock(ctx, book, now); err != nil {
		return err
	}

	if p.AccruedTo != "" {
		total := p.Total
		found, err := adjustParty[catalog.Creditor](ctx, s.creditors, p.AccruedTo, func(party *catalog.Party) {
			party.Accrue(total.Neg())
		}, now)
		if err != nil {
			return err
		}
		if !found {
			s.log.WithContext(ctx).Warnw("creditor of reversed purchase no longer exists",
				"purchase_id", p.ID, "creditor_id", p.AccruedTo)
		}
		p.AccruedTo = ""
	}

	if p.CashEntryID != "" {
		if err := s.cash.Remove(ctx, p.CashEntryID); err != nil {
			return err
		}
		p.CashEntryID = ""
	}
	return nil
}
