package cashday

import "tillsync/internal/core/types"

// OpenDayInput opens today's business date.
type OpenDayInput struct {
	OpeningFloat types.Money `json:"opening_float" validate:"gte=0"`
	Notes        string      `json:"notes,omitempty" validate:"max=1000"`
}

// CloseDayInput closes an open day. BusinessDate defaults to today.
type CloseDayInput struct {
	BusinessDate string      `json:"business_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CountedCash  types.Money `json:"counted_cash" validate:"gte=0"`
	Notes        string      `json:"notes,omitempty" validate:"max=1000"`
}

// ReopenDayInput reopens a closed day. ReopenFloat defaults to the cash
// counted at the close being reopened.
type ReopenDayInput struct {
	BusinessDate string       `json:"business_date" validate:"required,datetime=2006-01-02"`
	ReopenFloat  *types.Money `json:"reopen_float,omitempty" validate:"omitempty,gte=0"`
	Reason       string       `json:"reason,omitempty" validate:"max=500"`
}

// UnlockInput records manager override access to a closed day.
type UnlockInput struct {
	BusinessDate string `json:"business_date" validate:"required,datetime=2006-01-02"`
	Reason       string `json:"reason" validate:"required,max=500"`
	PIN          string `json:"pin" validate:"required"`
}
