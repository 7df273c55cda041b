package domain_test

import (
	"testing"

	"github.com/civicgrid/triage/internal/domain"
)

// Dispatch actions end up in history metadata and notification payloads, so
// their string values are load-bearing.
func TestDispatchAction_Values(t *testing.T) {
	tests := []struct {
		name   string
		action domain.DispatchAction
		want   string
	}{
		{name: "duplicate", action: domain.ActionDuplicate, want: "duplicate"},
		{name: "manual review", action: domain.ActionManualReview, want: "manual_review"},
		{name: "classify only", action: domain.ActionClassifyOnly, want: "classify_only"},
		{name: "assign department", action: domain.ActionAssignDepartment, want: "assign_department"},
		{name: "assign officer", action: domain.ActionAssignOfficer, want: "assign_officer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(tt.action); got != tt.want {
				t.Errorf("DispatchAction = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassificationMethod_Values(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "keyword override", got: domain.MethodKeywordOverride, want: "keyword_override"},
		{name: "keyword boost", got: domain.MethodKeywordBoost, want: "keyword_boost"},
		{name: "zero shot only", got: domain.MethodZeroShotOnly, want: "zero_shot_only"},
		{name: "keyword severity tier", got: domain.SeverityTierKeyword, want: "keyword_rule"},
		{name: "category default tier", got: domain.SeverityTierCategoryDefault, want: "category_default"},
		{name: "zero shot fallback tier", got: domain.SeverityTierZeroShot, want: "zero_shot_fallback"},
		{name: "ambiguous review reason", got: domain.ReviewReasonAmbiguous, want: "ambiguous_classification"},
		{name: "low confidence review reason", got: domain.ReviewReasonLowConfidence, want: "low_overall_confidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("constant = %v, want %v", tt.got, tt.want)
			}
		})
	}
}
