package plan

import "testing"

func TestHasFeature(t *testing.T) {
	c := NewStaticChecker()

	tests := []struct {
		plan    string
		feature string
		want    bool
	}{
		{"free", FeatureWebhooks, false},
		{"growth", FeatureWebhooks, true},
		{"scale", FeatureWebhooks, true},
		{"enterprise-custom", FeatureWebhooks, false},
		{"", FeatureWebhooks, false},
		{"growth", "nonexistent", false},
	}

	for _, tt := range tests {
		if got := c.HasFeature(tt.plan, tt.feature); got != tt.want {
			t.Errorf("HasFeature(%q, %q) = %v, want %v", tt.plan, tt.feature, got, tt.want)
		}
	}
}
