package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantity_SubFloor(t *testing.T) {
	tests := []struct {
		name     string
		stock    Quantity
		sold     Quantity
		expected Quantity
	}{
		{"normal", NewQuantity(10), NewQuantity(3), NewQuantity(7)},
		{"exact", NewQuantity(3), NewQuantity(3), 0},
		{"oversold floors at zero", NewQuantity(2), NewQuantity(5), 0},
		{"fractional", NewQuantityFromFloat64(1.5), NewQuantityFromFloat64(0.25), NewQuantityFromFloat64(1.25)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.stock.SubFloor(tt.sold))
		})
	}
}

func TestQuantity_Mul(t *testing.T) {
	assert.Equal(t, NewQuantity(24), NewQuantity(2).Mul(NewQuantity(12)))
	assert.Equal(t, NewQuantityFromFloat64(3.75), NewQuantityFromFloat64(1.5).Mul(NewQuantityFromFloat64(2.5)))
	assert.Equal(t, Quantity(0), Quantity(0).Mul(NewQuantity(6)))
}

func TestQuantity_JSON(t *testing.T) {
	var q Quantity
	require.NoError(t, json.Unmarshal([]byte(`"2.5"`), &q))
	assert.Equal(t, NewQuantityFromFloat64(2.5), q)

	require.NoError(t, json.Unmarshal([]byte(`7`), &q))
	assert.Equal(t, NewQuantity(7), q)

	b, err := json.Marshal(NewQuantityFromFloat64(1.25))
	require.NoError(t, err)
	assert.Equal(t, "1.2500", string(b))
}

func TestRoundCents(t *testing.T) {
	assert.Equal(t, "10.01", RoundCents(MustMoney("10.005")).StringFixed(2))
	assert.True(t, RoundCents(MustMoney("50").Sub(MustMoney("20"))).Equal(MustMoney("30")))
}

func TestQuantity_Money(t *testing.T) {
	assert.Equal(t, "2.5", NewQuantityFromFloat64(2.5).Money().String())
}
