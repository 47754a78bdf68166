package ledger

import (
	"context"
	"time"

	"tillsync/internal/core/entity"
	"tillsync/internal/core/validate"
	"tillsync/internal/domain/catalog"
	"tillsync/internal/domain/documents"
	"tillsync/internal/reconcile"
)

// RecordPayment records money received from a debtor. It appends a deposit,
// generates a cash-in entry and releases the repayment lock once the
// balance reaches zero.
func (s *Service) RecordPayment(ctx context.Context, debtorID string, in PaymentInput) (*catalog.Debtor, error) {
	return payParty[catalog.Debtor](ctx, s, s.debtors, "debtor", debtorID, in,
		documents.CashIn, documents.SourceDebtorPayment, "Repayment from ")
}

// RecordCreditorPayment records money paid to a creditor, generating a
// cash-out entry.
func (s *Service) RecordCreditorPayment(ctx context.Context, creditorID string, in PaymentInput) (*catalog.Creditor, error) {
	return payParty[catalog.Creditor](ctx, s, s.creditors, "creditor", creditorID, in,
		documents.CashOut, documents.SourceCreditorPayment, "Payment to ")
}

func payParty[T entity.Record, P partyRecord[T]](
	ctx context.Context,
	s *Service,
	coll *reconcile.Collection[T],
	kind, id string,
	in PaymentInput,
	dir documents.CashDirection,
	source documents.CashSource,
	describe string,
) (*T, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	date := s.dateOr(in.Date, now)
	var out *T

	err := s.engine.Atomically(ctx, func(ctx context.Context) error {
		rec, err := coll.Get(ctx, id)
		if err != nil {
			return notFound(err, kind, id)
		}
		party := P(&rec).PartyRef()

		entry := documents.NewCashEntry(now, dir, in.Amount, date)
		dep, err := party.Pay(now, in.Amount, date, in.Note, recordedBy(ctx), entry.ID)
		if err != nil {
			return err
		}
		party.Touch(now)

		entry.Source = source
		entry.SourceID = party.ID
		entry.Description = describe + party.Name
		entry.Category = "repayments"
		entry.RecordedBy = dep.RecordedBy

		if err := coll.Put(ctx, rec); err != nil {
			return err
		}
		if err := s.cash.Put(ctx, *entry); err != nil {
			return err
		}
		out = &rec
		return s.record(ctx, coll.Name(), party.ID, entity.AuditPayment, dep)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Infow("payment recorded",
		"kind", kind,
		"id", id,
		"amount", in.Amount.StringFixed(2))
	return out, nil
}

// SetRepaymentDueDate agrees a settlement date with a debtor. Fails with
// REPAYMENT_DATE_LOCKED while an earlier date is locked and money is owed.
func (s *Service) SetRepaymentDueDate(ctx context.Context, debtorID string, due time.Time) (*catalog.Debtor, error) {
	now := s.clock.Now()
	var out *catalog.Debtor

	err := s.engine.Atomically(ctx, func(ctx context.Context) error {
		d, err := s.debtors.Get(ctx, debtorID)
		if err != nil {
			return notFound(err, "debtor", debtorID)
		}
		if err := d.SetRepaymentDueDate(due); err != nil {
			return err
		}
		d.Touch(now)
		if err := s.debtors.Put(ctx, d); err != nil {
			return err
		}
		out = &d
		return s.record(ctx, entity.Debtors, d.ID, entity.AuditUpdate, map[string]any{
			"repaymentDueDate": due,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
