package mappings_test

import (
	"encoding/json"
	"testing"

	"github.com/civicgrid/triage/internal/search/mappings"
)

func TestDefaultSettings(t *testing.T) {
	settings := mappings.DefaultSettings()

	if settings.NumberOfShards != 1 {
		t.Errorf("NumberOfShards = %d, want 1", settings.NumberOfShards)
	}
	if settings.NumberOfReplicas != 1 {
		t.Errorf("NumberOfReplicas = %d, want 1", settings.NumberOfReplicas)
	}
}

func TestValidateSettings(t *testing.T) {
	if err := mappings.ValidateSettings(mappings.BaseSettings{NumberOfShards: 1, NumberOfReplicas: 0}); err != nil {
		t.Errorf("valid settings rejected: %v", err)
	}
	if err := mappings.ValidateSettings(mappings.BaseSettings{NumberOfShards: 0, NumberOfReplicas: 1}); err == nil {
		t.Error("expected an error for zero shards")
	}
	if err := mappings.ValidateSettings(mappings.BaseSettings{NumberOfShards: 1, NumberOfReplicas: -1}); err == nil {
		t.Error("expected an error for negative replicas")
	}
}

func TestNewReportMapping_Structure(t *testing.T) {
	mapping := mappings.NewReportMapping()

	if err := mapping.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	raw, err := mapping.GetJSON()
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("mapping JSON does not parse: %v", err)
	}

	properties := decoded["mappings"].(map[string]any)["properties"].(map[string]any)

	expectedFields := []string{
		"report_id", "reporter_id", "title", "description", "address",
		"category", "severity", "department", "status",
		"overall_confidence", "needs_review", "model_version",
		"location", "created_at", "classified_at",
	}
	for _, field := range expectedFields {
		if _, exists := properties[field]; !exists {
			t.Errorf("report mapping missing field %q", field)
		}
	}
}

func TestNewReportMapping_FieldTypes(t *testing.T) {
	mapping := mappings.NewReportMapping()

	raw, err := mapping.GetJSON()
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("mapping JSON does not parse: %v", err)
	}
	properties := decoded["mappings"].(map[string]any)["properties"].(map[string]any)

	keywordFields := []string{"category", "severity", "department", "status", "model_version"}
	for _, field := range keywordFields {
		assertFieldType(t, properties, field, "keyword")
	}

	textFields := []string{"title", "description", "address"}
	for _, field := range textFields {
		assertFieldType(t, properties, field, "text")
		assertFieldHasAnalyzer(t, properties, field, "standard")
	}

	dateFields := []string{"created_at", "classified_at"}
	for _, field := range dateFields {
		assertFieldType(t, properties, field, "date")
	}

	assertFieldType(t, properties, "location", "geo_point")
	assertFieldType(t, properties, "overall_confidence", "float")
	assertFieldType(t, properties, "needs_review", "boolean")
}

func assertFieldType(t *testing.T, properties map[string]any, field, expectedType string) {
	t.Helper()

	fieldMap, ok := properties[field].(map[string]any)
	if !ok {
		t.Errorf("field %q missing or not a map", field)
		return
	}
	if fieldMap["type"] != expectedType {
		t.Errorf("field %q type = %v, want %q", field, fieldMap["type"], expectedType)
	}
}

func assertFieldHasAnalyzer(t *testing.T, properties map[string]any, field, expectedAnalyzer string) {
	t.Helper()

	fieldMap := properties[field].(map[string]any)
	if fieldMap["analyzer"] != expectedAnalyzer {
		t.Errorf("field %q analyzer = %v, want %q", field, fieldMap["analyzer"], expectedAnalyzer)
	}
}
