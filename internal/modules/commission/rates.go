// README: Tier commission rate table.
package commission

import "strings"

// DefaultTier is what an unknown or missing tier resolves to. Lookups never
// fail; they fall back to bronze rates.
const DefaultTier = "bronze"

// Rates holds the per-task commission rates for one tier. PerData applies to
// regular order tasks, MergeData to combo tasks. MergeData is strictly
// greater than PerData for every tier.
type Rates struct {
	PerData   float64
	MergeData float64
}

var tierRates = map[string]Rates{
	"bronze":   {PerData: 0.005, MergeData: 0.015},
	"silver":   {PerData: 0.01, MergeData: 0.03},
	"gold":     {PerData: 0.015, MergeData: 0.045},
	"platinum": {PerData: 0.02, MergeData: 0.06},
}

// Tiers returns the known tier names.
func Tiers() []string {
	return []string{"bronze", "silver", "gold", "platinum"}
}

// RatesForTier returns the rate pair for a tier, defaulting to bronze.
func RatesForTier(tier string) Rates {
	r, ok := tierRates[strings.ToLower(tier)]
	if !ok {
		return tierRates[DefaultTier]
	}
	return r
}

// RateForTier returns the applicable rate for a tier and task kind.
func RateForTier(tier string, combo bool) float64 {
	r := RatesForTier(tier)
	if combo {
		return r.MergeData
	}
	return r.PerData
}
