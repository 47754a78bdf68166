package validate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillsync/internal/core/apperror"
)

type line struct {
	Name     string `json:"name" validate:"required"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
}

type input struct {
	Amount decimal.Decimal  `json:"amount" validate:"gt=0"`
	Float  *decimal.Decimal `json:"float" validate:"omitempty,gte=0"`
	Method string           `json:"method" validate:"oneof=cash credit"`
	Lines  []line           `json:"lines" validate:"required,min=1,dive"`
}

func TestStruct_Valid(t *testing.T) {
	zero := decimal.Zero
	err := Struct(input{
		Amount: decimal.NewFromInt(5),
		Float:  &zero,
		Method: "cash",
		Lines:  []line{{Name: "Sugar", Quantity: 1}},
	})
	assert.NoError(t, err)
}

func TestStruct_ReportsFieldPaths(t *testing.T) {
	neg := decimal.NewFromInt(-1)
	err := Struct(input{
		Amount: decimal.Zero,
		Float:  &neg,
		Method: "barter",
		Lines:  []line{{Name: "", Quantity: 0}},
	})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	fields := appErr.Details["fields"].(map[string]string)
	assert.Equal(t, "gt", fields["amount"])
	assert.Equal(t, "gte", fields["float"])
	assert.Equal(t, "oneof", fields["method"])
	assert.Equal(t, "required", fields["lines[0].name"])
	assert.Equal(t, "gt", fields["lines[0].quantity"])
}

func TestStruct_NilOptionalMoneyPasses(t *testing.T) {
	err := Struct(input{
		Amount: decimal.NewFromInt(1),
		Method: "credit",
		Lines:  []line{{Name: "Rice", Quantity: 2}},
	})
	assert.NoError(t, err)
}
