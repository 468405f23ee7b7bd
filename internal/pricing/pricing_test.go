package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/scanix-pos/scanix/internal/shared"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func oliveOilRules() []PriceRule {
	return []PriceRule{
		{FromQty: 1, ToQty: 9, Price: d("8.5")},
		{FromQty: 10, ToQty: 49, Price: d("7.8")},
		{FromQty: 50, ToQty: 999, Price: d("7.2")},
	}
}

func TestResolveUnitPriceTiers(t *testing.T) {
	base := d("8.5")
	rules := oliveOilRules()

	cases := map[int]string{
		1:    "8.5",
		9:    "8.5",
		10:   "7.8",
		12:   "7.8",
		49:   "7.8",
		50:   "7.2",
		999:  "7.2",
		1000: "8.5",
	}
	for qty, want := range cases {
		got := ResolveUnitPrice(qty, base, rules)
		require.True(t, d(want).Equal(got), "qty %d: want %s got %s", qty, want, got)
	}
}

func TestQuoteOliveOilTwelveUnits(t *testing.T) {
	q := NewQuote(12, d("8.5"), oliveOilRules())
	require.True(t, d("7.8").Equal(q.UnitPrice))
	require.True(t, d("93.6").Equal(q.Subtotal))
	require.NotNil(t, q.Rule)
	require.Equal(t, 10, q.Rule.FromQty)
	require.Equal(t, 49, q.Rule.ToQty)
}

func TestResolveUnitPriceFallsBackToBasePrice(t *testing.T) {
	require.True(t, d("3.2").Equal(ResolveUnitPrice(5, d("3.2"), nil)))

	rules := []PriceRule{{FromQty: 20, ToQty: 99, Price: d("2.9")}}
	require.True(t, d("3.2").Equal(ResolveUnitPrice(5, d("3.2"), rules)))

	q := NewQuote(5, d("3.2"), rules)
	require.Nil(t, q.Rule)
	require.True(t, d("16").Equal(q.Subtotal))
}

func TestResolveUnitPriceIgnoresInputOrder(t *testing.T) {
	rules := oliveOilRules()
	reversed := []PriceRule{rules[2], rules[0], rules[1]}
	require.True(t, d("7.2").Equal(ResolveUnitPrice(60, d("8.5"), reversed)))
	// The caller's slice is not reordered.
	require.Equal(t, 50, reversed[0].FromQty)
}

// Overlapping rules never pass validation, but the resolver still answers:
// the rule with the lowest FromQty wins.
func TestResolveUnitPriceOverlapFirstMatchWins(t *testing.T) {
	rules := []PriceRule{
		{FromQty: 5, ToQty: 20, Price: d("6")},
		{FromQty: 1, ToQty: 10, Price: d("9")},
	}
	require.True(t, d("9").Equal(ResolveUnitPrice(7, d("10"), rules)))
	require.True(t, d("6").Equal(ResolveUnitPrice(15, d("10"), rules)))
}

func TestValidatePriceRulesAcceptsValidSet(t *testing.T) {
	res := ValidatePriceRules(oliveOilRules())
	require.True(t, res.OK)
	require.Empty(t, res.Errors)
	require.NoError(t, res.Err())

	require.True(t, ValidatePriceRules(nil).OK)
}

func TestValidatePriceRulesRejectsOverlapRegardlessOfOrder(t *testing.T) {
	a := PriceRule{FromQty: 1, ToQty: 10, Price: d("5")}
	b := PriceRule{FromQty: 10, ToQty: 20, Price: d("4")}

	for _, rules := range [][]PriceRule{{a, b}, {b, a}} {
		res := ValidatePriceRules(rules)
		require.False(t, res.OK)
		require.Equal(t, []string{"rules 1-10 and 10-20 overlap"}, res.Errors)
	}
}

func TestValidatePriceRulesCollectsEveryViolation(t *testing.T) {
	res := ValidatePriceRules([]PriceRule{
		{FromQty: 0, ToQty: 5, Price: d("1")},
		{FromQty: 9, ToQty: 7, Price: d("0")},
		{FromQty: 3, ToQty: 4, Price: d("1")},
	})
	require.False(t, res.OK)
	require.Len(t, res.Errors, 4)
	require.Contains(t, res.Errors, "rule 1: quantities must be positive")
	require.Contains(t, res.Errors, "rule 2: from 9 is greater than to 7")
	require.Contains(t, res.Errors, "rule 2: price must be greater than 0")
	require.Contains(t, res.Errors, "rules 0-5 and 3-4 overlap")

	err := res.Err()
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestValidatePriceRulesRejectsNegativePrice(t *testing.T) {
	res := ValidatePriceRules([]PriceRule{{FromQty: 1, ToQty: 2, Price: d("-1")}})
	require.False(t, res.OK)
	require.Equal(t, []string{"rule 1: price must be greater than 0"}, res.Errors)
}
