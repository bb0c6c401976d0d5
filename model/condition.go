package model

// Valid ranges for the clamped Condition fields. Wind speed and water level
// have no upper bound and are floored at zero.
const (
	MinTemperatureC = 20.0
	MaxTemperatureC = 45.0
	MinHumidityPct  = 30.0
	MaxHumidityPct  = 100.0
	MinAirQuality   = 0.0
	MaxAirQuality   = 500.0
	MinSeismic      = 0.0
	MaxSeismic      = 10.0
)

// Condition is the mutable environmental state of one location.
type Condition struct {
	Temperature     float64 // Celsius
	Humidity        float64 // percentage
	WindSpeedKmh    float64
	AirQuality      float64 // AQI, 0-500
	SeismicActivity float64 // Richter-like scale, 0-10
	WaterLevelM     float64 // metres above normal
	SmokeDetected   bool
}

// Clamp forces every numeric field back into its valid range. It is applied
// after every mutation, including disaster side effects.
func (c *Condition) Clamp() {
	c.Temperature = clamp(c.Temperature, MinTemperatureC, MaxTemperatureC)
	c.Humidity = clamp(c.Humidity, MinHumidityPct, MaxHumidityPct)
	c.AirQuality = clamp(c.AirQuality, MinAirQuality, MaxAirQuality)
	c.SeismicActivity = clamp(c.SeismicActivity, MinSeismic, MaxSeismic)
	if c.WindSpeedKmh < 0 {
		c.WindSpeedKmh = 0
	}
	if c.WaterLevelM < 0 {
		c.WaterLevelM = 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
