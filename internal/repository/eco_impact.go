package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/models"
)

// PostgresEcoImpactRepository implements EcoImpactRepository.
type PostgresEcoImpactRepository struct {
	db     *sql.DB
	logger *logging.LoggerV2
}

func NewPostgresEcoImpactRepository(db *sql.DB, logger *logging.LoggerV2) *PostgresEcoImpactRepository {
	return &PostgresEcoImpactRepository{
		db:     db,
		logger: logger,
	}
}

// Increment adds delta to the user's ledger in one upsert, creating the
// row when needed. badge is merged into the badge set.
func (r *PostgresEcoImpactRepository) Increment(ctx context.Context, userID string, delta models.EcoImpactDelta, badge string, at time.Time) error {
	badges := []string{}
	if badge != "" {
		badges = append(badges, badge)
	}

	query := `
		INSERT INTO eco_impact (user_id, co2_saved, water_saved, waste_diverted, trees_saved, badges, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			co2_saved      = eco_impact.co2_saved + EXCLUDED.co2_saved,
			water_saved    = eco_impact.water_saved + EXCLUDED.water_saved,
			waste_diverted = eco_impact.waste_diverted + EXCLUDED.waste_diverted,
			trees_saved    = eco_impact.trees_saved + EXCLUDED.trees_saved,
			badges         = ARRAY(
				SELECT DISTINCT b FROM unnest(eco_impact.badges || EXCLUDED.badges) AS b ORDER BY b
			),
			last_updated   = EXCLUDED.last_updated
	`

	_, err := r.db.ExecContext(ctx, query,
		userID,
		delta.CO2Saved,
		delta.WaterSaved,
		delta.WasteDiverted,
		delta.TreesSaved,
		pq.Array(badges),
		at,
	)
	if err != nil {
		r.logger.Error("Failed to update eco impact", logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		})
		return fmt.Errorf("upsert eco impact: %w", err)
	}

	r.logger.Debug("Eco impact updated", logging.Fields{
		"user_id":   userID,
		"co2_saved": delta.CO2Saved,
	})
	return nil
}

// Get returns the user's ledger or errors.ErrNotFound.
func (r *PostgresEcoImpactRepository) Get(ctx context.Context, userID string) (*models.EcoImpact, error) {
	query := `
		SELECT user_id, co2_saved, water_saved, waste_diverted, trees_saved, badges, last_updated
		FROM eco_impact
		WHERE user_id = $1
	`

	var impact models.EcoImpact
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&impact.UserID,
		&impact.CO2Saved,
		&impact.WaterSaved,
		&impact.WasteDiverted,
		&impact.TreesSaved,
		pq.Array(&impact.Badges),
		&impact.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select eco impact: %w", err)
	}
	if impact.Badges == nil {
		impact.Badges = []string{}
	}
	return &impact, nil
}

// Community sums every ledger.
func (r *PostgresEcoImpactRepository) Community(ctx context.Context) (*models.CommunityImpact, error) {
	query := `
		SELECT COALESCE(SUM(co2_saved), 0), COALESCE(SUM(water_saved), 0),
		       COALESCE(SUM(waste_diverted), 0), COALESCE(SUM(trees_saved), 0),
		       COUNT(*)
		FROM eco_impact
	`

	var total models.CommunityImpact
	err := r.db.QueryRowContext(ctx, query).Scan(
		&total.TotalCO2,
		&total.TotalWater,
		&total.TotalWaste,
		&total.TotalTrees,
		&total.TotalUsers,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate eco impact: %w", err)
	}
	return &total, nil
}
