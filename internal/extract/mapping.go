// ABOUTME: Shared source-code to record-category mapping table.
// ABOUTME: Used by both the conventional extractors and the streaming sampler.
package extract

import (
	"strings"

	"github.com/harperreed/healthpipe/internal/models"
)

// TypeSpec describes how one source type code lands on a BaseRecord: the
// storage category, the subtype label, the extension field the value is
// written to, and the default unit when the source gives none.
type TypeSpec struct {
	DataType models.DataType
	SubType  string
	Field    string
	Unit     string
}

// typePrefixes are vendor namespaces stripped before the lookup, so
// "HKQuantityTypeIdentifierStepCount" and "StepCount" resolve alike.
var typePrefixes = []string{
	"HKQuantityTypeIdentifier",
	"HKCategoryTypeIdentifier",
	"HKWorkoutActivityType",
}

// typeMappings is the field-to-type table. Codes absent from this table
// are unmapped: their records are dropped with a logged reason, never
// silently stored as "unknown".
var typeMappings = map[string]TypeSpec{
	// Fitness
	"StepCount":              {models.TypeFitness, "steps", "steps", "steps"},
	"DistanceWalkingRunning": {models.TypeFitness, "distance", "distance", "km"},
	"DistanceCycling":        {models.TypeFitness, "cycling", "distance", "km"},
	"ActiveEnergyBurned":     {models.TypeFitness, "active_energy", "calories", "kcal"},
	"FlightsClimbed":         {models.TypeFitness, "flights", "flights", "count"},
	"Workout":                {models.TypeFitness, "workout", "duration_minutes", "min"},

	// Health vitals
	"HeartRate":              {models.TypeHealth, "heart_rate", "heart_rate", "bpm"},
	"RestingHeartRate":       {models.TypeHealth, "resting_heart_rate", "heart_rate", "bpm"},
	"BloodPressureSystolic":  {models.TypeHealth, "blood_pressure", "blood_pressure_systolic", "mmHg"},
	"BloodPressureDiastolic": {models.TypeHealth, "blood_pressure", "blood_pressure_diastolic", "mmHg"},
	"BodyMass":               {models.TypeHealth, "weight", "weight", "kg"},
	"BodyFatPercentage":      {models.TypeHealth, "body_fat", "body_fat", "%"},
	"BodyTemperature":        {models.TypeHealth, "temperature", "temperature", "°C"},
	"OxygenSaturation":       {models.TypeHealth, "spo2", "spo2", "%"},

	// Sleep
	"SleepAnalysis": {models.TypeSleep, "sleep", "duration_minutes", "min"},

	// Location
	"Location": {models.TypeLocation, "gps", "latitude", "deg"},
}

// TypeForCode resolves a source type code through the mapping table,
// shedding known vendor prefixes first. The second return reports
// whether the code is mapped at all.
func TypeForCode(code string) (TypeSpec, bool) {
	for _, p := range typePrefixes {
		if strings.HasPrefix(code, p) {
			code = strings.TrimPrefix(code, p)
			break
		}
	}
	spec, ok := typeMappings[code]
	return spec, ok
}
