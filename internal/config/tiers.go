package config

// FreeTierID is assigned at signup and whenever a subscription lapses.
const FreeTierID = "free"

// TierDefinition is a subscription plan from the static catalog.
type TierDefinition struct {
	ID                        string
	Name                      string
	MonthlyJobAllotment       int
	MonthlyCandidateAllotment int
	IncludesCompanyEmails     bool
}

// Tiers is the tier catalog. The free tier's candidate allotment is a one-time pool.
var Tiers = []TierDefinition{
	{ID: FreeTierID, Name: "Free", MonthlyJobAllotment: 1, MonthlyCandidateAllotment: 3},
	{ID: "starter", Name: "Starter", MonthlyJobAllotment: 5, MonthlyCandidateAllotment: 25},
	{ID: "growth", Name: "Growth", MonthlyJobAllotment: 15, MonthlyCandidateAllotment: 75, IncludesCompanyEmails: true},
	{ID: "scale", Name: "Scale", MonthlyJobAllotment: 50, MonthlyCandidateAllotment: 250, IncludesCompanyEmails: true},
}

// priceTiers maps payment processor price IDs to tier IDs.
var priceTiers = map[string]string{
	"price_starter_monthly": "starter",
	"price_starter_annual":  "starter",
	"price_growth_monthly":  "growth",
	"price_growth_annual":   "growth",
	"price_scale_monthly":   "scale",
	"price_scale_annual":    "scale",
}

// TierForPrice resolves a price ID to a tier ID.
func TierForPrice(priceID string) (string, bool) {
	tierID, ok := priceTiers[priceID]
	return tierID, ok
}

// LookupTier returns the catalog entry for a tier ID.
func LookupTier(id string) (TierDefinition, bool) {
	for _, t := range Tiers {
		if t.ID == id {
			return t, true
		}
	}
	return TierDefinition{}, false
}

// IsFreeTier reports whether the tier uses the one-time credit pool.
func IsFreeTier(id string) bool {
	return id == FreeTierID
}
