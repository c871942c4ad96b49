package domain

// Region type constants.
const (
	RegionUrban       = "urban"
	RegionRural       = "rural"
	RegionMountainous = "mountainous"
	RegionBorder      = "border"
)

// Region is static reference data for one administrative region.
// Looked up by ID, never mutated by the engine.
type Region struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Coefficient float64 `json:"coefficient"` // multiplier >= 1.0

	// BorderBonus is the per-child compensation in soms.
	// Only meaningful for border regions.
	BorderBonus int64 `json:"borderBonus,omitempty"`
}

// DefaultRegions returns the program's built-in regional reference table.
// Used to seed an empty repository; production deployments manage regions
// via POST /regions.
func DefaultRegions() []*Region {
	return []*Region{
		{ID: "bishkek", Name: "Bishkek", Type: RegionUrban, Coefficient: 1.0},
		{ID: "osh", Name: "Osh", Type: RegionUrban, Coefficient: 1.0},
		{ID: "naryn", Name: "Naryn", Type: RegionMountainous, Coefficient: 1.15},
		{ID: "issyk-kul", Name: "Issyk-Kul", Type: RegionMountainous, Coefficient: 1.15},
		{ID: "batken", Name: "Batken", Type: RegionBorder, Coefficient: 1.2, BorderBonus: 1000},
		{ID: "osh-region", Name: "Osh Region", Type: RegionRural, Coefficient: 1.0},
		{ID: "jalal-abad", Name: "Jalal-Abad", Type: RegionRural, Coefficient: 1.0},
		{ID: "talas", Name: "Talas", Type: RegionRural, Coefficient: 1.0},
		{ID: "chui", Name: "Chui", Type: RegionRural, Coefficient: 1.0},
	}
}
