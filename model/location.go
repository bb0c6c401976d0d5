package model

// Location represents a monitored geographic point.
// Identity is the ID; Name is for display only.
type Location struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
}
