package models

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

var ErrAmountOverflow = errors.New("amount does not fit in minor units")

// Money is a decimal currency amount. It never passes through float64 once
// parsed, and is stored in Mongo as Decimal128.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money { return Money{Decimal: d} }

// MoneyFromMinor builds an amount from minor units (cents).
func MoneyFromMinor(minor int64) Money {
	return Money{Decimal: decimal.New(minor, -2)}
}

func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q", s)
	}
	return Money{Decimal: d}, nil
}

func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money        { return Money{Decimal: m.Decimal.Add(o.Decimal)} }
func (m Money) Times(qty int) Money      { return Money{Decimal: m.Decimal.Mul(decimal.NewFromInt(int64(qty)))} }
func (m Money) Equal(o Money) bool       { return m.Decimal.Equal(o.Decimal) }
func (m Money) IsPositive() bool         { return m.Decimal.IsPositive() }
func (m Money) LessThan(o Money) bool    { return m.Decimal.LessThan(o.Decimal) }
func (m Money) GreaterThan(o Money) bool { return m.Decimal.GreaterThan(o.Decimal) }

// MinorUnits rounds half away from zero to whole cents. Amounts outside the
// int64 range return ErrAmountOverflow.
func (m Money) MinorUnits() (int64, error) {
	minor := m.Decimal.Mul(hundred).Round(0)
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, ErrAmountOverflow
	}
	return minor.IntPart(), nil
}

// HasWholeCents reports whether m needs no more than two decimal places.
func (m Money) HasWholeCents() bool {
	return m.Decimal.Equal(m.Decimal.Round(2))
}

func (m Money) String() string { return m.Decimal.String() }

// MarshalJSON writes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON accepts numbers and quoted numbers.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("invalid amount %s", b)
	}
	m.Decimal = d
	return nil
}

func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d, err := primitive.ParseDecimal128(m.Decimal.String())
	if err != nil {
		return 0, nil, err
	}
	return bson.MarshalValue(d)
}

// UnmarshalBSONValue also reads doubles, ints and strings left by older writers.
func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Decimal128:
		d, err := decimal.NewFromString(rv.Decimal128().String())
		if err != nil {
			return err
		}
		m.Decimal = d
	case bsontype.Double:
		m.Decimal = decimal.NewFromFloat(rv.Double())
	case bsontype.Int32:
		m.Decimal = decimal.NewFromInt32(rv.Int32())
	case bsontype.Int64:
		m.Decimal = decimal.NewFromInt(rv.Int64())
	case bsontype.String:
		d, err := decimal.NewFromString(rv.StringValue())
		if err != nil {
			return err
		}
		m.Decimal = d
	case bsontype.Null, bsontype.Undefined:
		m.Decimal = decimal.Zero
	default:
		return fmt.Errorf("cannot decode %s into Money", t)
	}
	return nil
}
