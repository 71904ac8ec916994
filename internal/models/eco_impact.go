package models

import "time"

// Per-item coefficients for the eco-impact ledger.
const (
	CO2PerItem   = 0.5
	WaterPerItem = 10.0
	WastePerItem = 0.2
	TreesPerItem = 0.01
)

// EcoImpact is a user's cumulative ledger. Counters only grow.
type EcoImpact struct {
	UserID        string    `json:"user_id"`
	CO2Saved      float64   `json:"co2_saved"`
	WaterSaved    float64   `json:"water_saved"`
	WasteDiverted float64   `json:"waste_diverted"`
	TreesSaved    float64   `json:"trees_saved"`
	Badges        []string  `json:"badges"`
	LastUpdated   time.Time `json:"last_updated"`
}

// EcoImpactDelta is one increment applied to a ledger.
type EcoImpactDelta struct {
	CO2Saved      float64
	WaterSaved    float64
	WasteDiverted float64
	TreesSaved    float64
}

// DeltaForItems computes the increment for n purchased items.
func DeltaForItems(n int) EcoImpactDelta {
	f := float64(n)
	return EcoImpactDelta{
		CO2Saved:      f * CO2PerItem,
		WaterSaved:    f * WaterPerItem,
		WasteDiverted: f * WastePerItem,
		TreesSaved:    f * TreesPerItem,
	}
}

// CommunityImpact aggregates every user's ledger.
type CommunityImpact struct {
	TotalCO2   float64 `json:"total_co2"`
	TotalWater float64 `json:"total_water"`
	TotalWaste float64 `json:"total_waste"`
	TotalTrees float64 `json:"total_trees"`
	TotalUsers int     `json:"total_users"`
}
