// Package plan answers feature entitlement questions for an account's
// billing plan.
package plan

// Feature names gated by plans.
const (
	FeatureWebhooks = "webhooks"
)

// Checker reports whether a plan includes a feature.
type Checker interface {
	HasFeature(plan, feature string) bool
}

// StaticChecker resolves entitlements from a fixed in-process table.
// Plans it has never heard of get nothing.
type StaticChecker struct {
	features map[string]map[string]bool
}

// NewStaticChecker returns a checker loaded with the current plan
// matrix: free accounts have no webhook access, growth and scale do.
func NewStaticChecker() *StaticChecker {
	return &StaticChecker{
		features: map[string]map[string]bool{
			"free":   {},
			"growth": {FeatureWebhooks: true},
			"scale":  {FeatureWebhooks: true},
		},
	}
}

func (c *StaticChecker) HasFeature(plan, feature string) bool {
	return c.features[plan][feature]
}
