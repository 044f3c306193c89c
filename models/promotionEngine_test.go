package models_test

import (
	"testing"
	"time"

	"bitbucket.org/shweretail/posledger_backend/models"
	"github.com/shopspring/decimal"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func line(productId string, qty int, price int64) models.CartLine {
	return models.CartLine{ProductId: productId, Qty: qty, UnitPrice: dec(price)}
}

func TestEvaluatePromotions_PercentAll(t *testing.T) {
	promos := []models.Promotion{
		{ID: "p1", Type: models.PromotionTypePercentAll, Value: dec(10)},
	}
	result := models.EvaluatePromotions([]models.CartLine{line("a", 2, 500)}, promos)
	if result.Applied == nil || result.Applied.ID != "p1" {
		t.Fatalf("expected p1 applied, got %+v", result.Applied)
	}
	if !result.Discount.Equal(dec(100)) {
		t.Fatalf("expected discount 100, got %s", result.Discount)
	}
}

func TestEvaluatePromotions_LargestDiscountWins(t *testing.T) {
	// a 10% off-everything promotion against a buy-3 30% promotion on a
	// qualifying cart: 30% wins regardless of slice order
	cart := []models.CartLine{line("a", 3, 100)}
	promoA := models.Promotion{ID: "all10", Type: models.PromotionTypePercentAll, Value: dec(10)}
	promoB := models.Promotion{ID: "buy3", Type: models.PromotionTypeBuyXGetDiscount, Value: dec(30), MinQty: 3}

	for _, promos := range [][]models.Promotion{
		{promoA, promoB},
		{promoB, promoA},
	} {
		result := models.EvaluatePromotions(cart, promos)
		if result.Applied == nil || result.Applied.ID != "buy3" {
			t.Fatalf("expected buy3 to win, got %+v", result.Applied)
		}
		if !result.Discount.Equal(dec(90)) {
			t.Fatalf("expected discount 90 (30%% of 300), got %s", result.Discount)
		}
	}
}

func TestEvaluatePromotions_TieGoesToEarliestCreated(t *testing.T) {
	older := models.Promotion{ID: "older", Type: models.PromotionTypePercentAll, Value: dec(20),
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := models.Promotion{ID: "newer", Type: models.PromotionTypePercentAll, Value: dec(20),
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}

	// promotions arrive ordered by creation time
	result := models.EvaluatePromotions([]models.CartLine{line("a", 1, 100)}, []models.Promotion{older, newer})
	if result.Applied == nil || result.Applied.ID != "older" {
		t.Fatalf("expected the older promotion on a tie, got %+v", result.Applied)
	}
}

func TestEvaluatePromotions_BuyXBelowThreshold(t *testing.T) {
	promos := []models.Promotion{
		{ID: "buy5", Type: models.PromotionTypeBuyXGetDiscount, Value: dec(50), MinQty: 5},
	}
	result := models.EvaluatePromotions([]models.CartLine{line("a", 4, 100)}, promos)
	if result.Applied != nil {
		t.Fatalf("expected no promotion below threshold, got %+v", result.Applied)
	}
	if !result.Discount.IsZero() {
		t.Fatalf("expected zero discount, got %s", result.Discount)
	}
}

func TestEvaluatePromotions_BuyOneGetOneFreesTheCheapest(t *testing.T) {
	promos := []models.Promotion{
		{ID: "b1g1", Type: models.PromotionTypeBuyOneGetOne, ProductId: "a", MinQty: 2},
	}
	result := models.EvaluatePromotions([]models.CartLine{line("a", 2, 300), line("b", 1, 999)}, promos)
	if !result.Discount.Equal(dec(300)) {
		t.Fatalf("expected one free unit worth 300, got %s", result.Discount)
	}

	// four qualifying units free two
	result = models.EvaluatePromotions([]models.CartLine{line("a", 4, 300)}, promos)
	if !result.Discount.Equal(dec(600)) {
		t.Fatalf("expected two free units worth 600, got %s", result.Discount)
	}
}

func TestEvaluatePromotions_BundlePrice(t *testing.T) {
	// 3 units at 50 each cost 150; the bundle sells them at 100
	promos := []models.Promotion{
		{ID: "bundle", Type: models.PromotionTypeBundlePrice, ProductId: "a", MinQty: 3, BundlePrice: dec(100)},
	}
	result := models.EvaluatePromotions([]models.CartLine{line("a", 3, 50)}, promos)
	if !result.Discount.Equal(dec(50)) {
		t.Fatalf("expected bundle discount 50, got %s", result.Discount)
	}

	// 7 units hold two complete bundles
	result = models.EvaluatePromotions([]models.CartLine{line("a", 7, 50)}, promos)
	if !result.Discount.Equal(dec(100)) {
		t.Fatalf("expected two bundle discounts worth 100, got %s", result.Discount)
	}

	// 2 units are below the bundle quantity
	result = models.EvaluatePromotions([]models.CartLine{line("a", 2, 50)}, promos)
	if !result.Discount.IsZero() {
		t.Fatalf("expected no discount below bundle quantity, got %s", result.Discount)
	}
}

func TestEvaluatePromotions_DiscountNeverExceedsSubtotal(t *testing.T) {
	promos := []models.Promotion{
		{ID: "all100", Type: models.PromotionTypePercentAll, Value: dec(100)},
	}
	result := models.EvaluatePromotions([]models.CartLine{line("a", 1, 250)}, promos)
	if !result.Discount.Equal(dec(250)) {
		t.Fatalf("expected discount capped at subtotal 250, got %s", result.Discount)
	}
}

func TestEvaluatePromotions_EmptyInputs(t *testing.T) {
	if r := models.EvaluatePromotions(nil, nil); r.Applied != nil || !r.Discount.IsZero() {
		t.Fatalf("expected zero result for empty cart, got %+v", r)
	}
}
