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

// AddSale records a sale. Stock of every matched good is deducted (floored
// at zero), a credit sale accrues on its debtor and a cash sale generates a
// cash-in entry dated to the sale date.
func (s *Service) AddSale(ctx context.Context, in SaleInput) (*documents.Sale, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sale := documents.NewSale(now, in.PaymentMethod)
	sale.DebtorID = in.DebtorID
	sale.DebtorName = in.DebtorName
	sale.Note = in.Note
	sale.Date = s.dateOr(in.Date, now)
	sale.RecordedBy = recordedBy(ctx)

	err := s.engine.Atomically(ctx, func(ctx context.Context) error {
		if err := s.applySale(ctx, sale, in.Items, now); err != nil {
			return err
		}
		if err := s.sales.Put(ctx, *sale); err != nil {
			return err
		}
		return s.record(ctx, entity.Sales, sale.ID, entity.AuditCreate, sale)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Infow("sale recorded",
		"id", sale.ID,
		"total", sale.Total.StringFixed(2),
		"payment_method", sale.PaymentMethod)
	return sale, nil
}

// UpdateSale changes a sale inside the edit window. The old effects are
// reversed and the new ones applied in the same transaction.
func (s *Service) UpdateSale(ctx context.Context, id string, patch SalePatch) (*documents.Sale, error) {
	now := s.clock.Now()
	var out *documents.Sale

	err := s.engine.Atomically(ctx, func(ctx context.Context) error {
		sale, err := s.sales.Get(ctx, id)
		if err != nil {
			return notFound(err, "sale", id)
		}
		if err := s.policy.CanModify("sale", id, sale.CreatedAt); err != nil {
			return err
		}

		in := patch.apply(&sale)
		if err := validate.Struct(in); err != nil {
			return err
		}
		if err := s.reverseSale(ctx, &sale, now); err != nil {
			return err
		}

		sale.PaymentMethod = in.PaymentMethod
		sale.DebtorID = in.DebtorID
		sale.DebtorName = in.DebtorName
		sale.Date = s.dateOr(in.Date, sale.Date)
		sale.Note = in.Note
		sale.Touch(now)

		if err := s.applySale(ctx, &sale, in.Items, now); err != nil {
			return err
		}
		if err := s.sales.Put(ctx, sale); err != nil {
			return err
		}
		out = &sale
		return s.record(ctx, entity.Sales, sale.ID, entity.AuditUpdate, sale)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSale removes a sale inside the edit window, restoring stock,
// reversing the debtor accrual and deleting the linked cash entry.
func (s *Service) DeleteSale(ctx context.Context, id string) error {
	now := s.clock.Now()

	return s.engine.Atomically(ctx, func(ctx context.Context) error {
		sale, err := s.sales.Get(ctx, id)
		if err != nil {
			return notFound(err, "sale", id)
		}
		if err := s.policy.CanModify("sale", id, sale.CreatedAt); err != nil {
			return err
		}
		if err := s.reverseSale(ctx, &sale, now); err != nil {
			return err
		}
		if err := s.sales.Remove(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, entity.Sales, id, entity.AuditDelete, sale)
	})
}

func (s *Service) applySale(ctx context.Context, sale *documents.Sale, lines []LineInput, now time.Time) error {
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
			line.UnitPrice = g.SellingPrice
		default:
			return apperror.NewValidation("unit price is required for goods not in the catalog").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}

		if g == nil {
			s.log.WithContext(ctx).Warnw("good not matched; stock unchanged",
				"sale_id", sale.ID, "good_id", in.GoodID, "name", in.Name)
		} else {
			line.GoodID = g.ID
			if line.Name == "" {
				line.Name = g.Name
			}
			line.Moved = g.Deduct(in.Quantity)
			book.mark(g)
		}
		items = append(items, line)
	}
	sale.Items = items
	sale.RecalculateTotals()

	if err := sale.Validate(ctx); err != nil {
		return err
	}
	if err := s.saveStock(ctx, book, now); err != nil {
		return err
	}

	if sale.PaymentMethod.IsCredit() {
		d, err := matchParty[catalog.Debtor](ctx, s.debtors, sale.DebtorID, sale.DebtorName)
		if err != nil {
			return err
		}
		if d == nil {
			s.log.WithContext(ctx).Warnw("debtor not matched; skipping balance accumulation",
				"sale_id", sale.ID, "debtor_id", sale.DebtorID, "debtor_name", sale.DebtorName)
		} else {
			d.Accrue(sale.Total)
			d.Touch(now)
			if err := s.debtors.Put(ctx, *d); err != nil {
				return err
			}
			sale.AccruedTo = d.ID
			sale.DebtorID = d.ID
			sale.DebtorName = d.Name
		}
	}

	if sale.PaymentMethod.IsCash() && sale.Total.IsPositive() {
		entry := documents.NewCashEntry(now, documents.CashIn, sale.Total, sale.Date)
		entry.Source = documents.SourceSale
		entry.SourceID = sale.ID
		entry.Description = "Sale"
		entry.Category = "sales"
		entry.RecordedBy = sale.RecordedBy
		if err := s.cash.Put(ctx, *entry); err != nil {
			return err
		}
		sale.CashEntryID = entry.ID
	}
	return nil
}

func (s *Service) reverseSale(ctx context.Context, sale *documents.Sale, now time.Time) error {
	book, err := s.loadStock(ctx)
	if err != nil {
		return err
	}
	for i := range sale.Items {
		l := &sale.Items[i]
		if l.GoodID == "" || l.Moved.IsZero() {
			continue
		}
		if g := book.match(l.GoodID, ""); g != nil {
			g.Receive(l.Moved)
			book.mark(g)
		}
		l.Moved = 0
	}
	if err := s.saveStock(ctx, book, now); err != nil {
		return err
	}

	if sale.AccruedTo != "" {
		total := sale.Total
		found, err := adjustParty[catalog.Debtor](ctx, s.debtors, sale.AccruedTo, func(p *catalog.Party) {
			p.Accrue(total.Neg())
		}, now)
		if err != nil {
			return err
		}
		if !found {
			s.log.WithContext(ctx).Warnw("debtor of reversed sale no longer exists",
				"sale_id", sale.ID, "debtor_id", sale.AccruedTo)
		}
		sale.AccruedTo = ""
	}

	if sale.CashEntryID != "" {
		if err := s.cash.Remove(ctx, sale.CashEntryID); err != nil {
			return err
		}
		sale.CashEntryID = ""
	}
	return nil
}
