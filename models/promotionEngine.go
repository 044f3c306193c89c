package models

import "github.com/shopspring/decimal"

// CartLine is one evaluated sale line: quantity at the unit price snapshot
// taken when the line was added.
type CartLine struct {
	ProductId string
	Qty       int
	UnitPrice decimal.Decimal
}

// PromotionResult reports the winning promotion and its discount for the
// receipt trace. Applied is nil when nothing was applicable.
type PromotionResult struct {
	Discount decimal.Decimal
	Applied  *Promotion
}

// EvaluatePromotions is a pure function over the cart and the active
// promotion set. Exactly one promotion applies per sale: each applicable
// promotion's discount is computed independently and the largest wins, ties
// going to the earliest-created promotion. The discount never exceeds the
// cart subtotal.
func EvaluatePromotions(lines []CartLine, promos []Promotion) PromotionResult {
	subtotal := cartSubtotal(lines)
	result := PromotionResult{Discount: decimal.Zero}
	if subtotal.LessThanOrEqual(decimal.Zero) {
		return result
	}

	// promos arrive in creation order; strict greater-than keeps the
	// earliest promotion on ties.
	for i := range promos {
		d := promotionDiscount(&promos[i], lines, subtotal)
		if d.GreaterThan(result.Discount) {
			result.Discount = d
			result.Applied = &promos[i]
		}
	}

	if result.Discount.GreaterThan(subtotal) {
		result.Discount = subtotal
	}
	return result
}

func cartSubtotal(lines []CartLine) decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
	}
	return subtotal
}

func cartQty(lines []CartLine) int {
	total := 0
	for _, line := range lines {
		total += line.Qty
	}
	return total
}

func promotionDiscount(p *Promotion, lines []CartLine, subtotal decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)

	switch p.Type {
	case PromotionTypePercentAll:
		return subtotal.Mul(p.Value).Div(hundred)

	case PromotionTypeBuyXGetDiscount:
		if cartQty(lines) < p.MinQty {
			return decimal.Zero
		}
		return subtotal.Mul(p.Value).Div(hundred)

	case PromotionTypeProductDiscount:
		// empty ProductId means the discount covers every product
		matched := decimal.Zero
		for _, line := range lines {
			if p.ProductId == "" || line.ProductId == p.ProductId {
				matched = matched.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
			}
		}
		return matched.Mul(p.Value).Div(hundred)

	case PromotionTypeBuyOneGetOne:
		minQty := p.MinQty
		if minQty < 2 {
			minQty = 2
		}
		qty := 0
		cheapest := decimal.Zero
		for _, line := range lines {
			if line.ProductId != p.ProductId {
				continue
			}
			qty += line.Qty
			if cheapest.IsZero() || line.UnitPrice.LessThan(cheapest) {
				cheapest = line.UnitPrice
			}
		}
		if qty < minQty {
			return decimal.Zero
		}
		free := int64(qty / 2)
		return cheapest.Mul(decimal.NewFromInt(free))

	case PromotionTypeBundlePrice:
		qty := 0
		unitPrice := decimal.Zero
		for _, line := range lines {
			if line.ProductId != p.ProductId {
				continue
			}
			qty += line.Qty
			unitPrice = line.UnitPrice
		}
		if p.MinQty <= 0 || qty < p.MinQty {
			return decimal.Zero
		}
		perBundle := unitPrice.Mul(decimal.NewFromInt(int64(p.MinQty))).Sub(p.BundlePrice)
		if perBundle.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero
		}
		// one application per complete bundle contained in the quantity
		bundles := int64(qty / p.MinQty)
		return perBundle.Mul(decimal.NewFromInt(bundles))
	}

	return decimal.Zero
}
