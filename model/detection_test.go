package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewDetectionRecordProjectsEvent(t *testing.T) {
	detectedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := DisasterEvent{
		ID:                      "D0042",
		Kind:                    DisasterStorm,
		LocationID:              "tema",
		Severity:                SeverityHigh,
		OccurredAt:              detectedAt.Add(-time.Minute),
		AffectedAreaKm2:         7.5,
		Casualties:              23,
		InfrastructureDamagePct: 41.5,
		ResourcesNeeded: map[ResourceKind]int{
			ResourceMedicalKits:  55,
			ResourceFoodPackages: 210,
			ResourceWaterBottles: 640,
			ResourceRescueTeams:  9,
		},
	}

	rec := NewDetectionRecord("run-7", "sensor-1", ev, detectedAt)
	if rec.RunID != "run-7" || rec.AgentID != "sensor-1" || rec.EventID != "D0042" {
		t.Fatalf("identity fields = %+v", rec)
	}
	if rec.Kind != "STORM" || rec.Severity != "HIGH" || rec.LocationID != "tema" {
		t.Fatalf("classification fields = %+v", rec)
	}
	if !rec.DetectedAt.Equal(detectedAt) {
		t.Fatalf("DetectedAt = %v", rec.DetectedAt)
	}
	if rec.Resources.MedicalKits != 55 || rec.Resources.RescueTeams != 9 {
		t.Fatalf("resources = %+v", rec.Resources)
	}
}

func TestDetectionRecordReportShape(t *testing.T) {
	rec := DetectionRecord{
		ID:         3,
		RunID:      "run-7",
		AgentID:    "sensor-1",
		EventID:    "D0042",
		Kind:       "STORM",
		LocationID: "tema",
		Severity:   "HIGH",
		DetectedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Resources:  ResourceSummary{RescueTeams: 9},
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{"run_id", "detected_by", "event_id", "disaster_type", "location", "severity", "timestamp", "resources_needed"} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("report missing %q: %v", key, doc)
		}
	}
	if _, ok := doc["ID"]; ok {
		t.Fatal("database key leaked into the report")
	}
	res, ok := doc["resources_needed"].(map[string]any)
	if !ok || res["rescue_teams"] != 9.0 {
		t.Fatalf("resources_needed = %v", doc["resources_needed"])
	}
}
