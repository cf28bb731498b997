package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidDecimal is returned by ParseDecimal for unparsable input.
var ErrInvalidDecimal = errors.New("invalid decimal value")

// ToString converts scalar values to their string form; nil becomes "".
func ToString(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseDecimal converts strings and numbers to a decimal.
// Strings may carry thousands separators and a currency prefix ("R$ 1.200,50"
// is not supported; "R$ 1,200.50" is). Nil and empty strings are invalid.
func ParseDecimal(val any) (decimal.Decimal, error) {
	switch v := val.(type) {
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, ErrInvalidDecimal
		}
		return *v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case uint:
		return decimal.NewFromInt(int64(v)), nil
	case uint64:
		return decimal.RequireFromString(strconv.FormatUint(v, 10)), nil
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return decimal.Zero, ErrInvalidDecimal
		}
		return decimal.NewFromFloat32(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, ErrInvalidDecimal
		}
		return decimal.NewFromFloat(v), nil
	case json.Number:
		return parseDecimalString(v.String())
	case string:
		return parseDecimalString(v)
	case []byte:
		return parseDecimalString(string(v))
	default:
		return decimal.Zero, ErrInvalidDecimal
	}
}

func parseDecimalString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidDecimal
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
	}
	return d, nil
}

// ToNonNegativeDecimal is ParseDecimal that maps invalid and negative values to zero.
func ToNonNegativeDecimal(val any) decimal.Decimal {
	d, err := ParseDecimal(val)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}
