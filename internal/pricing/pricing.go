// Package pricing resolves tiered, quantity-based unit prices.
package pricing

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/scanix-pos/scanix/internal/shared"
)

// PriceRule applies Price to every quantity in [FromQty, ToQty].
type PriceRule struct {
	FromQty int             `json:"from"`
	ToQty   int             `json:"to"`
	Price   decimal.Decimal `json:"price"`
}

// Contains reports whether quantity falls inside the rule's range.
func (r PriceRule) Contains(quantity int) bool {
	return r.FromQty <= quantity && quantity <= r.ToQty
}

// Sorted returns a copy of rules ordered by FromQty. Rules sharing a
// FromQty keep their input order.
func Sorted(rules []PriceRule) []PriceRule {
	out := slices.Clone(rules)
	slices.SortStableFunc(out, func(a, b PriceRule) int {
		return cmp.Compare(a.FromQty, b.FromQty)
	})
	return out
}

// MatchRule returns the first rule, in ascending FromQty order, whose range
// contains quantity.
func MatchRule(quantity int, rules []PriceRule) (PriceRule, bool) {
	for _, rule := range Sorted(rules) {
		if rule.Contains(quantity) {
			return rule, true
		}
	}
	return PriceRule{}, false
}

// ResolveUnitPrice returns the price of the matching tier, or basePrice when
// no tier contains quantity.
func ResolveUnitPrice(quantity int, basePrice decimal.Decimal, rules []PriceRule) decimal.Decimal {
	if rule, ok := MatchRule(quantity, rules); ok {
		return rule.Price
	}
	return basePrice
}

// Quote is a priced quantity of one product.
type Quote struct {
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Rule      *PriceRule      `json:"rule,omitempty"`
}

// NewQuote prices quantity units against the tiers.
func NewQuote(quantity int, basePrice decimal.Decimal, rules []PriceRule) Quote {
	q := Quote{Quantity: quantity, UnitPrice: basePrice}
	if rule, ok := MatchRule(quantity, rules); ok {
		q.UnitPrice = rule.Price
		q.Rule = &rule
	}
	q.Subtotal = q.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	return q
}

// ValidationResult lists every problem found in a rule set.
type ValidationResult struct {
	OK     bool
	Errors []string
}

// Err converts a failed result into an error wrapping shared.ErrValidation.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(r.Errors, "; "))
}

// ValidatePriceRules checks ranges, prices and overlaps. All violations are
// collected.
func ValidatePriceRules(rules []PriceRule) ValidationResult {
	var errs []string
	for i, r := range rules {
		if r.FromQty <= 0 || r.ToQty <= 0 {
			errs = append(errs, fmt.Sprintf("rule %d: quantities must be positive", i+1))
		}
		if r.FromQty > r.ToQty {
			errs = append(errs, fmt.Sprintf("rule %d: from %d is greater than to %d", i+1, r.FromQty, r.ToQty))
		}
		if !r.Price.IsPositive() {
			errs = append(errs, fmt.Sprintf("rule %d: price must be greater than 0", i+1))
		}
	}
	sorted := Sorted(rules)
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.FromQty <= prev.ToQty {
			errs = append(errs, fmt.Sprintf("rules %d-%d and %d-%d overlap", prev.FromQty, prev.ToQty, cur.FromQty, cur.ToQty))
		}
	}
	return ValidationResult{OK: len(errs) == 0, Errors: errs}
}
