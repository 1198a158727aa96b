// README: Product catalog entities and balance-filter policy.
package product

import "taskdrive/internal/types"

type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"image_url,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// Balance-based filter bounds: offered products cost between 75% and 99% of
// the user's balance.
const (
	balanceFloorRatio   = 0.75
	balanceCeilingRatio = 0.99
)

// PriceRange is the inclusive product price window for a balance.
type PriceRange struct {
	Min types.Money
	Max types.Money
}

// RangeForBalance computes the filter window for a balance.
func RangeForBalance(balance types.Money) PriceRange {
	return PriceRange{
		Min: types.Money{Amount: int64(float64(balance.Amount) * balanceFloorRatio), Currency: balance.Currency},
		Max: types.Money{Amount: int64(float64(balance.Amount) * balanceCeilingRatio), Currency: balance.Currency},
	}
}
