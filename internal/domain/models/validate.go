package models

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
)

// ValidationError lists the offending fields and the rule each one broke.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s (%s)", name, e.Fields[name]))
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(DateLayout, fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		})
		v.RegisterStructValidation(amountPrecision, ExpenseInput{}, RevenueInput{}, StockInput{}, ConsumableInput{})
		_ = v.RegisterValidation("closedset", func(fl validator.FieldLevel) bool {
			enum, ok := fl.Field().Interface().(interface{ Valid() bool })
			return ok && enum.Valid()
		})
		validate = v
	})
	return validate
}

// Money is stored as BSON Decimal128: at most 34 significant digits and a
// bounded exponent.
const (
	maxAmountDigits   = 34
	minAmountExponent = -6176
	maxAmountExponent = 6111
)

func amountPrecision(sl validator.StructLevel) {
	switch in := sl.Current().Interface().(type) {
	case ExpenseInput:
		checkAmount(sl, in.Amount, "amount", "Amount")
	case RevenueInput:
		checkAmount(sl, in.Amount, "amount", "Amount")
	case StockInput:
		checkAmount(sl, in.LastPurchasePrice, "lastPurchasePrice", "LastPurchasePrice")
	case ConsumableInput:
		checkAmount(sl, in.LastPurchasePrice, "lastPurchasePrice", "LastPurchasePrice")
	}
}

func checkAmount(sl validator.StructLevel, d *decimal.Decimal, field, structField string) {
	if d == nil {
		return
	}
	digits := len(strings.TrimPrefix(d.Coefficient().String(), "-"))
	exp := d.Exponent()
	if digits > maxAmountDigits || exp < minAmountExponent || exp > maxAmountExponent {
		sl.ReportError(*d, field, structField, "precision", "")
	}
}

// Validate checks v against its validate tags. Rule violations come back as
// *ValidationError; anything else means v could not be validated at all.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate input: %w", err)
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fe.Field()] = fe.Tag()
	}
	return out
}
