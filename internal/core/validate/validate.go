// Package validate runs struct-tag validation on ledger and cash-day inputs and
// converts failures into apperror validation errors.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"tillsync/internal/core/apperror"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		// Money fields validate as numbers: `validate:"gt=0"`, `validate:"omitempty,gte=0"`.
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		instance = v
	})
	return instance
}

func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// Struct validates s and returns a VALIDATION_ERROR listing failing fields.
func Struct(s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.NewValidation("invalid input").WithCause(err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = fe.Tag()
	}
	return apperror.NewValidation("invalid input").WithDetail("fields", fields)
}

// fieldPath strips the root struct name from the namespace ("SaleInput.items[0].quantity" -> "items[0].quantity").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
