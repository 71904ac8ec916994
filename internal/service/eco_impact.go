package service

import (
	"context"
	"time"

	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/models"
	"github.com/repurpose-hub/checkout-service/internal/repository"
)

// EcoImpactUpdater maintains the per-user eco-impact ledger.
type EcoImpactUpdater struct {
	repo   repository.EcoImpactRepository
	badge  string
	now    Clock
	logger *logging.LoggerV2
}

func NewEcoImpactUpdater(repo repository.EcoImpactRepository, badge string, clock Clock) *EcoImpactUpdater {
	if clock == nil {
		clock = time.Now
	}
	return &EcoImpactUpdater{
		repo:   repo,
		badge:  badge,
		now:    clock,
		logger: logging.NewLoggerV2("eco-impact"),
	}
}

// Apply credits the user for the purchased items.
func (u *EcoImpactUpdater) Apply(ctx context.Context, userID string, items []models.CartItem) error {
	n := models.CountItems(items)
	if n == 0 {
		return nil
	}

	delta := models.DeltaForItems(n)
	if err := u.repo.Increment(ctx, userID, delta, u.badge, u.now().UTC()); err != nil {
		return errors.Storage("update eco impact", err)
	}

	u.logger.Info("Eco impact credited", logging.Fields{
		"user_id":   userID,
		"items":     n,
		"co2_saved": delta.CO2Saved,
	})
	return nil
}

// Get returns the user's ledger, zero-valued when nothing was credited yet.
func (u *EcoImpactUpdater) Get(ctx context.Context, userID string) (*models.EcoImpact, error) {
	impact, err := u.repo.Get(ctx, userID)
	if errors.Is(err, errors.ErrNotFound) {
		return &models.EcoImpact{
			UserID:      userID,
			Badges:      []string{},
			LastUpdated: u.now().UTC(),
		}, nil
	}
	if err != nil {
		return nil, errors.Storage("read eco impact", err)
	}
	return impact, nil
}

// Community returns the totals over every user.
func (u *EcoImpactUpdater) Community(ctx context.Context) (*models.CommunityImpact, error) {
	total, err := u.repo.Community(ctx)
	if err != nil {
		return nil, errors.Storage("aggregate eco impact", err)
	}
	return total, nil
}
