// README: Commission calculator; resolves a user's tier and prices tasks.
package commission

import (
	"context"
	"math"

	"taskdrive/internal/types"
)

// TierSource resolves a user's tier. Backed by the user store in production,
// by a fake in tests.
type TierSource interface {
	TierForUser(ctx context.Context, userID int64) (string, error)
}

type Service struct {
	tiers TierSource
}

func NewService(tiers TierSource) *Service {
	return &Service{tiers: tiers}
}

// RateForTier satisfies the drive module's RateProvider.
func (s *Service) RateForTier(tier string, combo bool) float64 {
	return RateForTier(tier, combo)
}

// CommissionForTier is the method form of the package-level calculator, so
// callers holding the service need no second pricing path.
func (s *Service) CommissionForTier(price types.Money, tier string, combo bool) types.Money {
	return CommissionForTier(price, tier, combo)
}

// CommissionForTier computes the commission on price for a given tier and
// task kind, rounded to the cent (half up). Pure.
func CommissionForTier(price types.Money, tier string, combo bool) types.Money {
	rate := RateForTier(tier, combo)
	amount := int64(math.Round(float64(price.Amount) * rate))
	return types.Money{Amount: amount, Currency: price.Currency}
}

// CommissionForUser resolves the user's tier and prices the task. A missing
// tier value resolves to DefaultTier; a missing user is an error.
func (s *Service) CommissionForUser(ctx context.Context, userID int64, price types.Money, combo bool) (types.Money, float64, error) {
	tier, err := s.tiers.TierForUser(ctx, userID)
	if err != nil {
		return types.Money{}, 0, err
	}
	if tier == "" {
		tier = DefaultTier
	}
	rate := RateForTier(tier, combo)
	return CommissionForTier(price, tier, combo), rate, nil
}
