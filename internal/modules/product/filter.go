package product

import "strings"

// DefaultTierQuantity maps a tier to its product quantity cap when no
// tier_quantity_configs row overrides it. Tier names are matched
// case-insensitively, same as the commission rate lookup.
func DefaultTierQuantity(tier string) int {
	switch strings.ToLower(tier) {
	case "gold":
		return 45
	case "platinum":
		return 50
	default: // bronze, silver, unknown
		return 40
	}
}
