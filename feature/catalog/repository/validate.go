package repository

import (
	"errors"
	"reflect"
	"strings"

	"service-catalog/feature/catalog/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func newValidator() *validator.Validate {
	v := validator.New()

	// Report json names so errors line up with the HTTP payload.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Prices are validated numerically.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	return v
}

func (r *Repository) validateRecord(rec models.ServiceRecord) error {
	err := r.validate.Struct(rec)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}

func (r *Repository) validatePatch(p Patch) error {
	if p.Name != nil {
		if err := r.validate.Var(strings.TrimSpace(*p.Name), "required,max=191"); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				return invalid("name", verrs[0].Tag())
			}
			return err
		}
	}
	if p.BasePrice != nil && p.BasePrice.IsNegative() {
		return invalid("basePrice", "gte")
	}
	return nil
}
