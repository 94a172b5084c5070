package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestMoneyArithmeticIsExact(t *testing.T) {
	// 0.1 + 0.2 in float64 is not 0.3
	a := MustMoney("0.1")
	b := MustMoney("0.2")
	if !a.Add(b).Equal(MustMoney("0.3")) {
		t.Fatalf("expected 0.3, got %s", a.Add(b))
	}
	if got := MustMoney("19.99").Times(3); !got.Equal(MustMoney("59.97")) {
		t.Fatalf("expected 59.97, got %s", got)
	}
}

func TestMinorUnitsRounding(t *testing.T) {
	cases := map[string]int64{
		"25":     2500,
		"10.005": 1001,
		"0.994":  99,
		"1.5":    150,
	}
	for in, want := range cases {
		got, err := MustMoney(in).MinorUnits()
		if err != nil || got != want {
			t.Errorf("%s: expected %d, got %d (%v)", in, want, got, err)
		}
	}
	if !MoneyFromMinor(2550).Equal(MustMoney("25.50")) {
		t.Fatal("MoneyFromMinor mismatch")
	}
}

func TestMinorUnitsOverflow(t *testing.T) {
	// 92233720368547758.08 is one cent past math.MaxInt64 cents.
	if _, err := MustMoney("92233720368547758.08").MinorUnits(); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if got, err := MustMoney("92233720368547758.07").MinorUnits(); err != nil || got != math.MaxInt64 {
		t.Fatalf("largest amount should fit, got %d %v", got, err)
	}
	if _, err := MustMoney("1e30").Times(MaxLineQuantity).MinorUnits(); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestHasWholeCents(t *testing.T) {
	for in, want := range map[string]bool{"10": true, "10.5": true, "10.50": true, "10.500": true, "10.005": false} {
		if got := MustMoney(in).HasWholeCents(); got != want {
			t.Errorf("%s: expected %t", in, want)
		}
	}
}

func TestMoneyJSONIsNumber(t *testing.T) {
	b, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{MustMoney("25")})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"total":25}` {
		t.Fatalf("unexpected JSON %s", b)
	}

	var in struct {
		Price Money `json:"price"`
	}
	if err := json.Unmarshal([]byte(`{"price":"12.50"}`), &in); err != nil {
		t.Fatal(err)
	}
	if !in.Price.Equal(MustMoney("12.5")) {
		t.Fatalf("expected 12.5, got %s", in.Price)
	}
}

func TestMoneyBSONDecimal128(t *testing.T) {
	type doc struct {
		Price Money `bson:"price"`
	}
	raw, err := bson.Marshal(doc{Price: MustMoney("10.25")})
	if err != nil {
		t.Fatal(err)
	}
	var out doc
	if err := bson.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Price.Equal(MustMoney("10.25")) {
		t.Fatalf("expected 10.25, got %s", out.Price)
	}
}

func TestMoneyBSONReadsLegacyDouble(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"price": 5.5})
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Price Money `bson:"price"`
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Price.Equal(MustMoney("5.5")) {
		t.Fatalf("expected 5.5, got %s", out.Price)
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	allowed := [][2]OrderStatus{
		{StatusPending, StatusProcessing},
		{StatusProcessing, StatusShipped},
		{StatusShipped, StatusDelivered},
		{StatusPending, StatusCancelled},
		{StatusProcessing, StatusCancelled},
	}
	for _, tr := range allowed {
		if !tr[0].CanTransition(tr[1]) {
			t.Errorf("%s -> %s should be allowed", tr[0], tr[1])
		}
	}
	denied := [][2]OrderStatus{
		{StatusPending, StatusShipped},
		{StatusShipped, StatusCancelled},
		{StatusDelivered, StatusPending},
		{StatusCancelled, StatusProcessing},
		{StatusPending, StatusPending},
	}
	for _, tr := range denied {
		if tr[0].CanTransition(tr[1]) {
			t.Errorf("%s -> %s should be denied", tr[0], tr[1])
		}
	}
	if !StatusDelivered.Terminal() || !StatusCancelled.Terminal() || StatusShipped.Terminal() {
		t.Fatal("terminal states are delivered and cancelled")
	}
}

func TestParseEnumsAcceptAliases(t *testing.T) {
	if c, err := ParseCropCategory("خضار"); err != nil || c != CategoryVegetables {
		t.Fatalf("expected vegetables, got %q %v", c, err)
	}
	if ct, err := ParseCropType("غير عضوي"); err != nil || ct != CropNonOrganic {
		t.Fatalf("expected non_organic, got %q %v", ct, err)
	}
	if gl, err := ParseGrowthLocation("Greenhouse"); err != nil || gl != LocationGreenhouse {
		t.Fatalf("expected greenhouse, got %q %v", gl, err)
	}
	if _, err := ParseCropCategory("grains"); err == nil {
		t.Fatal("unknown category must be rejected")
	}
	if _, err := ParsePaymentMethod("bitcoin"); err == nil {
		t.Fatal("unknown payment method must be rejected")
	}
}
