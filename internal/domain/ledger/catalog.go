package ledger

import (
	"context"

	"tillsync/internal/domain/catalog"
)

// AddGood creates a good.
func (s *Service) AddGood(ctx context.Context, in GoodInput) (*catalog.Good, error) {
	g := catalog.NewGood(s.clock.Now(), in.Name)
	g.Barcode = in.Barcode
	g.Category = in.Category
	g.Unit = in.Unit
	g.CostPrice = in.CostPrice
	g.SellingPrice = in.SellingPrice
	g.StockQuantity = in.StockQuantity
	g.PackUnit = in.PackUnit
	g.ReorderLevel = in.ReorderLevel

	if err := s.goodSvc.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// UpdateGood changes a good.
func (s *Service) UpdateGood(ctx context.Context, id string, patch GoodPatch) (*catalog.Good, error) {
	g, err := s.goodSvc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(g)
	if err := s.goodSvc.Update(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteGood removes a good. Past sales keep their line names.
func (s *Service) DeleteGood(ctx context.Context, id string) error {
	return s.goodSvc.Delete(ctx, id)
}

// AddDebtor creates a debtor with a zero balance.
func (s *Service) AddDebtor(ctx context.Context, in PartyInput) (*catalog.Debtor, error) {
	d := catalog.NewDebtor(s.clock.Now(), in.Name)
	d.Phone = in.Phone
	d.Address = in.Address
	d.Notes = in.Notes

	if err := s.debtorSvc.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateDebtor changes a debtor's contact details.
func (s *Service) UpdateDebtor(ctx context.Context, id string, patch PartyPatch) (*catalog.Debtor, error) {
	d, err := s.debtorSvc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(&d.Party)
	if err := s.debtorSvc.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDebtor removes a debtor. Fails with BALANCE_OUTSTANDING unless settled.
func (s *Service) DeleteDebtor(ctx context.Context, id string) error {
	return s.debtorSvc.Delete(ctx, id)
}

// AddCreditor creates a creditor with a zero balance.
func (s *Service) AddCreditor(ctx context.Context, in PartyInput) (*catalog.Creditor, error) {
	c := catalog.NewCreditor(s.clock.Now(), in.Name)
	c.Phone = in.Phone
	c.Address = in.Address
	c.Notes = in.Notes
	c.SupplierID = in.SupplierID

	if err := s.creditorSvc.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCreditor changes a creditor's contact details.
func (s *Service) UpdateCreditor(ctx context.Context, id string, patch PartyPatch) (*catalog.Creditor, error) {
	c, err := s.creditorSvc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(&c.Party)
	if patch.SupplierID != nil {
		c.SupplierID = *patch.SupplierID
	}
	if err := s.creditorSvc.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCreditor removes a creditor. Fails with BALANCE_OUTSTANDING unless settled.
func (s *Service) DeleteCreditor(ctx context.Context, id string) error {
	return s.creditorSvc.Delete(ctx, id)
}

// AddSupplier creates a supplier.
func (s *Service) AddSupplier(ctx context.Context, in SupplierInput) (*catalog.Supplier, error) {
	sp := catalog.NewSupplier(s.clock.Now(), in.Name)
	sp.Phone = in.Phone
	sp.Email = in.Email
	sp.Address = in.Address
	sp.ContactPerson = in.ContactPerson
	sp.Notes = in.Notes

	if err := s.supplierSvc.Create(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// UpdateSupplier changes a supplier.
func (s *Service) UpdateSupplier(ctx context.Context, id string, patch SupplierPatch) (*catalog.Supplier, error) {
	sp, err := s.supplierSvc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(sp)
	if err := s.supplierSvc.Update(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// DeleteSupplier removes a supplier.
func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	return s.supplierSvc.Delete(ctx, id)
}
