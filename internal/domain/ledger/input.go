package ledger

import (
	"time"

	"tillsync/internal/core/types"
	"tillsync/internal/domain/catalog"
	"tillsync/internal/domain/documents"
)

// LineInput is one item of a sale or purchase as entered at the till.
// Name is only required when GoodID is empty. A missing UnitPrice defaults
// to the good's selling price (sales) or cost price (purchases).
type LineInput struct {
	GoodID    string         `json:"goodId,omitempty"`
	Name      string         `json:"name,omitempty" validate:"required_without=GoodID,max=200"`
	Quantity  types.Quantity `json:"quantity" validate:"gt=0"`
	UnitPrice *types.Money   `json:"unitPrice,omitempty" validate:"omitempty,gte=0"`
	PackUnit  types.Quantity `json:"packUnit,omitempty" validate:"gte=0"`
}

func lineInputs(lines []documents.Line) []LineInput {
	out := make([]LineInput, len(lines))
	for i, l := range lines {
		price := l.UnitPrice
		out[i] = LineInput{
			GoodID:    l.GoodID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: &price,
			PackUnit:  l.PackUnit,
		}
	}
	return out
}

// SaleInput records a sale. Date backdates it; CreatedAt stays the real time.
type SaleInput struct {
	Items         []LineInput             `json:"items" validate:"required,min=1,dive"`
	PaymentMethod documents.PaymentMethod `json:"paymentMethod" validate:"required,oneof=cash credit transfer"`
	DebtorID      string                  `json:"debtorId,omitempty"`
	DebtorName    string                  `json:"debtorName,omitempty" validate:"max=200"`
	Date          *time.Time              `json:"date,omitempty"`
	Note          string                  `json:"note,omitempty" validate:"max=1000"`
}

// SalePatch changes a sale inside the edit window. Nil fields are kept.
type SalePatch struct {
	Items         *[]LineInput             `json:"items,omitempty"`
	PaymentMethod *documents.PaymentMethod `json:"paymentMethod,omitempty"`
	DebtorID      *string                  `json:"debtorId,omitempty"`
	DebtorName    *string                  `json:"debtorName,omitempty"`
	Date          *time.Time               `json:"date,omitempty"`
	Note          *string                  `json:"note,omitempty"`
}

func (p SalePatch) apply(s *documents.Sale) SaleInput {
	in := SaleInput{
		Items:         lineInputs(s.Items),
		PaymentMethod: s.PaymentMethod,
		DebtorID:      s.DebtorID,
		DebtorName:    s.DebtorName,
		Date:          &s.Date,
		Note:          s.Note,
	}
	if p.Items != nil {
		in.Items = *p.Items
	}
	if p.PaymentMethod != nil {
		in.PaymentMethod = *p.PaymentMethod
	}
	if p.DebtorID != nil {
		in.DebtorID = *p.DebtorID
	}
	if p.DebtorName != nil {
		in.DebtorName = *p.DebtorName
	}
	if p.Date != nil {
		in.Date = p.Date
	}
	if p.Note != nil {
		in.Note = *p.Note
	}
	return in
}

// PurchaseInput records goods received.
type PurchaseInput struct {
	Items         []LineInput             `json:"items" validate:"required,min=1,dive"`
	PaymentMethod documents.PaymentMethod `json:"paymentMethod" validate:"required,oneof=cash credit transfer"`
	SupplierID    string                  `json:"supplierId,omitempty"`
	SupplierName  string                  `json:"supplierName,omitempty" validate:"max=200"`
	CreditorID    string                  `json:"creditorId,omitempty"`
	CreditorName  string                  `json:"creditorName,omitempty" validate:"max=200"`
	InvoiceNumber string                  `json:"invoiceNumber,omitempty" validate:"max=100"`
	Date          *time.Time              `json:"date,omitempty"`
	Note          string                  `json:"note,omitempty" validate:"max=1000"`
}

// PurchasePatch changes a purchase inside the edit window. Nil fields are kept.
type PurchasePatch struct {
	Items         *[]LineInput             `json:"items,omitempty"`
	PaymentMethod *documents.PaymentMethod `json:"paymentMethod,omitempty"`
	SupplierID    *string                  `json:"supplierId,omitempty"`
	SupplierName  *string                  `json:"supplierName,omitempty"`
	CreditorID    *string                  `json:"creditorId,omitempty"`
	CreditorName  *string                  `json:"creditorName,omitempty"`
	InvoiceNumber *string                  `json:"invoiceNumber,omitempty"`
	Date          *time.Time               `json:"date,omitempty"`
	Note          *string                  `json:"note,omitempty"`
}

func (p PurchasePatch) apply(pu *documents.Purchase) PurchaseInput {
	in := PurchaseInput{
		Items:         lineInputs(pu.Items),
		PaymentMethod: pu.PaymentMethod,
		SupplierID:    pu.SupplierID,
		SupplierName:  pu.SupplierName,
		CreditorID:    pu.CreditorID,
		CreditorName:  pu.CreditorName,
		InvoiceNumber: pu.InvoiceNumber,
		Date:          &pu.Date,
		Note:          pu.Note,
	}
	if p.Items != nil {
		in.Items = *p.Items
	}
	if p.PaymentMethod != nil {
		in.PaymentMethod = *p.PaymentMethod
	}
	if p.SupplierID != nil {
		in.SupplierID = *p.SupplierID
	}
	if p.SupplierName != nil {
		in.SupplierName = *p.SupplierName
	}
	if p.CreditorID != nil {
		in.CreditorID = *p.CreditorID
	}
	if p.CreditorName != nil {
		in.CreditorName = *p.CreditorName
	}
	if p.InvoiceNumber != nil {
		in.InvoiceNumber = *p.InvoiceNumber
	}
	if p.Date != nil {
		in.Date = p.Date
	}
	if p.Note != nil {
		in.Note = *p.Note
	}
	return in
}

// PaymentInput records a deposit against a debtor or creditor.
type PaymentInput struct {
	Amount types.Money `json:"amount" validate:"gt=0"`
	Date   *time.Time  `json:"date,omitempty"`
	Note   string      `json:"note,omitempty" validate:"max=500"`
}

// CashEntryInput records a manual till movement (float top-up, expense...).
type CashEntryInput struct {
	Type        documents.CashDirection `json:"type" validate:"required,oneof=in out"`
	Amount      types.Money             `json:"amount" validate:"gt=0"`
	Description string                  `json:"description,omitempty" validate:"max=500"`
	Category    string                  `json:"category,omitempty" validate:"max=100"`
	Date        *time.Time              `json:"date,omitempty"`
}

// CashEntryPatch changes a manual cash entry. Nil fields are kept.
type CashEntryPatch struct {
	Type        *documents.CashDirection `json:"type,omitempty"`
	Amount      *types.Money             `json:"amount,omitempty"`
	Description *string                  `json:"description,omitempty"`
	Category    *string                  `json:"category,omitempty"`
	Date        *time.Time               `json:"date,omitempty"`
}

func (p CashEntryPatch) apply(c *documents.CashEntry) {
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Amount != nil {
		c.Amount = types.RoundCents(*p.Amount)
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.Date != nil {
		c.Date = *p.Date
	}
}

// GoodInput creates a good.
type GoodInput struct {
	Name          string         `json:"name"`
	Barcode       string         `json:"barcode,omitempty"`
	Category      string         `json:"category,omitempty"`
	Unit          string         `json:"unit,omitempty"`
	CostPrice     types.Money    `json:"costPrice"`
	SellingPrice  types.Money    `json:"sellingPrice"`
	StockQuantity types.Quantity `json:"stockQuantity"`
	PackUnit      types.Quantity `json:"packUnit,omitempty"`
	ReorderLevel  types.Quantity `json:"reorderLevel,omitempty"`
}

// GoodPatch changes a good. Nil fields are kept.
type GoodPatch struct {
	Name          *string         `json:"name,omitempty"`
	Barcode       *string         `json:"barcode,omitempty"`
	Category      *string         `json:"category,omitempty"`
	Unit          *string         `json:"unit,omitempty"`
	CostPrice     *types.Money    `json:"costPrice,omitempty"`
	SellingPrice  *types.Money    `json:"sellingPrice,omitempty"`
	StockQuantity *types.Quantity `json:"stockQuantity,omitempty"`
	PackUnit      *types.Quantity `json:"packUnit,omitempty"`
	ReorderLevel  *types.Quantity `json:"reorderLevel,omitempty"`
}

func (p GoodPatch) apply(g *catalog.Good) {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Barcode != nil {
		g.Barcode = *p.Barcode
	}
	if p.Category != nil {
		g.Category = *p.Category
	}
	if p.Unit != nil {
		g.Unit = *p.Unit
	}
	if p.CostPrice != nil {
		g.CostPrice = *p.CostPrice
	}
	if p.SellingPrice != nil {
		g.SellingPrice = *p.SellingPrice
	}
	if p.StockQuantity != nil {
		g.StockQuantity = *p.StockQuantity
	}
	if p.PackUnit != nil {
		g.PackUnit = *p.PackUnit
	}
	if p.ReorderLevel != nil {
		g.ReorderLevel = *p.ReorderLevel
	}
}

// PartyInput creates a debtor or creditor. SupplierID is ignored for debtors.
type PartyInput struct {
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	Notes      string `json:"notes,omitempty"`
	SupplierID string `json:"supplierId,omitempty"`
}

// PartyPatch changes contact details. Balances only move through sales,
// purchases and payments.
type PartyPatch struct {
	Name       *string `json:"name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Address    *string `json:"address,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	SupplierID *string `json:"supplierId,omitempty"`
}

func (p PartyPatch) apply(party *catalog.Party) {
	if p.Name != nil {
		party.Name = *p.Name
	}
	if p.Phone != nil {
		party.Phone = *p.Phone
	}
	if p.Address != nil {
		party.Address = *p.Address
	}
	if p.Notes != nil {
		party.Notes = *p.Notes
	}
}

// SupplierInput creates a supplier.
type SupplierInput struct {
	Name          string `json:"name"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Address       string `json:"address,omitempty"`
	ContactPerson string `json:"contactPerson,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// SupplierPatch changes a supplier. Nil fields are kept.
type SupplierPatch struct {
	Name          *string `json:"name,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Email         *string `json:"email,omitempty"`
	Address       *string `json:"address,omitempty"`
	ContactPerson *string `json:"contactPerson,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

func (p SupplierPatch) apply(s *catalog.Supplier) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Phone != nil {
		s.Phone = *p.Phone
	}
	if p.Email != nil {
		s.Email = *p.Email
	}
	if p.Address != nil {
		s.Address = *p.Address
	}
	if p.ContactPerson != nil {
		s.ContactPerson = *p.ContactPerson
	}
	if p.Notes != nil {
		s.Notes = *p.Notes
	}
}
