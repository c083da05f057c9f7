package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-finance/internal/model"
)

// FieldError is one failed binding rule, reported by JSON field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var errorMessages = map[string]string{
	"required":       "field is required",
	"email":          "invalid email format",
	"max":            "value is too long",
	"gte":            "value is too small",
	"oneof":          "value is not allowed",
	"decimal_nonneg": "amount must not be negative",
	"decimal_cents":  "amount must have at most two decimal places",
	"payment_method": "method must be cash or online",
}

var registerOnce sync.Once

// RegisterValidators teaches gin's validator about decimal amounts and the
// finance-specific tags. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})

		// validate decimals by their string form so "required" and
		// custom tags see a comparable value
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.String()
			}
			return nil
		}, decimal.Decimal{})

		_ = v.RegisterValidation("decimal_nonneg", func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(fl.Field().String())
			return err == nil && !d.IsNegative()
		})
		// amounts are stored as NUMERIC(12,2)
		_ = v.RegisterValidation("decimal_cents", func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(fl.Field().String())
			return err == nil && d.Equal(d.Round(2))
		})
		_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
			return model.PaymentMethod(fl.Field().String()).Valid()
		})
	})
}

// BindingErrors flattens a bind error into per-field messages. Errors that
// are not validation failures, such as malformed JSON, yield one entry with
// an empty field.
func BindingErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		msg, ok := errorMessages[e.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed on %s", e.Tag())
		}
		out = append(out, FieldError{Field: e.Field(), Message: msg})
	}
	return out
}
