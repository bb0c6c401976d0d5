package model

import "time"

// ResourceSummary flattens a disaster's resource needs for archival.
type ResourceSummary struct {
	MedicalKits  int `json:"medical_kits"`
	FoodPackages int `json:"food_packages"`
	WaterBottles int `json:"water_bottles"`
	RescueTeams  int `json:"rescue_teams"`
}

// DetectionRecord is one archived disaster detection, shaped for both the
// JSON drill reports and relational storage.
type DetectionRecord struct {
	ID                      uint            `gorm:"primaryKey" json:"-"`
	RunID                   string          `gorm:"index" json:"run_id"`
	AgentID                 string          `gorm:"index" json:"detected_by"`
	EventID                 string          `json:"event_id"`
	Kind                    string          `json:"disaster_type"`
	LocationID              string          `json:"location"`
	Severity                string          `json:"severity"`
	DetectedAt              time.Time       `json:"timestamp"`
	AffectedAreaKm2         float64         `json:"affected_area_km2"`
	Casualties              int             `json:"casualties"`
	InfrastructureDamagePct float64         `json:"infrastructure_damage_pct"`
	Resources               ResourceSummary `gorm:"embedded" json:"resources_needed"`
}

// NewDetectionRecord projects a disaster event into an archive record.
func NewDetectionRecord(runID, agentID string, ev DisasterEvent, detectedAt time.Time) DetectionRecord {
	return DetectionRecord{
		RunID:                   runID,
		AgentID:                 agentID,
		EventID:                 ev.ID,
		Kind:                    string(ev.Kind),
		LocationID:              ev.LocationID,
		Severity:                ev.Severity.String(),
		DetectedAt:              detectedAt,
		AffectedAreaKm2:         ev.AffectedAreaKm2,
		Casualties:              ev.Casualties,
		InfrastructureDamagePct: ev.InfrastructureDamagePct,
		Resources: ResourceSummary{
			MedicalKits:  ev.ResourcesNeeded[ResourceMedicalKits],
			FoodPackages: ev.ResourcesNeeded[ResourceFoodPackages],
			WaterBottles: ev.ResourcesNeeded[ResourceWaterBottles],
			RescueTeams:  ev.ResourcesNeeded[ResourceRescueTeams],
		},
	}
}
