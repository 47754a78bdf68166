package ledger

import (
	"context"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/validate"
	"tillsync/internal/domain/documents"
)

// AddCashEntry records a manual till movement.
func (s *Service) AddCashEntry(ctx context.Context, in CashEntryInput) (*documents.CashEntry, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	entry := documents.NewCashEntry(now, in.Type, in.Amount, s.dateOr(in.Date, now))
	entry.Description = in.Description
	entry.Category = in.Category
	entry.RecordedBy = recordedBy(ctx)

	if err := entry.Validate(ctx); err != nil {
		return nil, err
	}
	err := s.engine.Atomically(ctx, func(ctx context.Context) error {
		if err := s.cash.Put(ctx, *entry); err != nil {
			return err
		}
		return s.record(ctx, entity.CashEntries, entry.ID, entity.AuditCreate, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateCashEntry changes a manual cash entry inside the edit window.
// Generated entries change with their sale, purchase or payment.
func (s *Service) UpdateCashEntry(ctx context.Context, id string, patch CashEntryPatch) (*documents.CashEntry, error) {
	now := s.clock.Now()
	var out *documents.CashEntry

	err := s.engine.Atomically(ctx, func(ctx context.Context) error {
		entry, err := s.editableCashEntry(ctx, id)
		if err != nil {
			return err
		}
		patch.apply(&entry)
		entry.Touch(now)
		if err := entry.Validate(ctx); err != nil {
			return err
		}
		if err := s.cash.Put(ctx, entry); err != nil {
			return err
		}
		out = &entry
		return s.record(ctx, entity.CashEntries, id, entity.AuditUpdate, entry)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCashEntry removes a manual cash entry inside the edit window.
func (s *Service) DeleteCashEntry(ctx context.Context, id string) error {
	return s.engine.Atomically(ctx, func(ctx context.Context) error {
		entry, err := s.editableCashEntry(ctx, id)
		if err != nil {
			return err
		}
		if err := s.cash.Remove(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, entity.CashEntries, id, entity.AuditDelete, entry)
	})
}

func (s *Service) editableCashEntry(ctx context.Context, id string) (documents.CashEntry, error) {
	entry, err := s.cash.Get(ctx, id)
	if err != nil {
		return entry, notFound(err, "cash entry", id)
	}
	if err := s.policy.CanModify("cash entry", id, entry.CreatedAt); err != nil {
		return entry, err
	}
	if entry.Linked() {
		return entry, apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"generated cash entry changes with its source record").
			WithDetail("source", string(entry.Source)).
			WithDetail("sourceId", entry.SourceID)
	}
	return entry, nil
}
