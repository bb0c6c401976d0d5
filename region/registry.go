package region

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reliefgrid/disaster-simulator/model"
)

var (
	// ErrLocationNotFound indicates a lookup for an ID the registry does not hold.
	ErrLocationNotFound = errors.New("location not found")
	// ErrInvalidLocation indicates a location failed validation at construction.
	ErrInvalidLocation = errors.New("invalid location")
	// ErrEmptyRegistry indicates construction was attempted with no locations.
	ErrEmptyRegistry = errors.New("registry needs at least one location")
)

// Registry is the fixed, ordered set of monitored locations. It is immutable
// after construction, so reads need no locking and registration order is
// stable for the lifetime of the process.
type Registry struct {
	ordered []model.Location
	byID    map[string]model.Location
}

// NewRegistry validates and indexes the given locations, preserving their
// order. Locations without an ID get one derived from their name.
func NewRegistry(locations []model.Location) (*Registry, error) {
	if len(locations) == 0 {
		return nil, ErrEmptyRegistry
	}

	r := &Registry{
		ordered: make([]model.Location, 0, len(locations)),
		byID:    make(map[string]model.Location, len(locations)),
	}

	for _, loc := range locations {
		if strings.TrimSpace(loc.Name) == "" {
			return nil, fmt.Errorf("%w: empty name", ErrInvalidLocation)
		}
		if loc.ID == "" {
			loc.ID = SlugID(loc.Name)
		}
		if _, exists := r.byID[loc.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate ID %q", ErrInvalidLocation, loc.ID)
		}
		r.ordered = append(r.ordered, loc)
		r.byID[loc.ID] = loc
	}

	return r, nil
}

// Lookup returns the location with the given ID.
func (r *Registry) Lookup(id string) (model.Location, error) {
	loc, ok := r.byID[id]
	if !ok {
		return model.Location{}, fmt.Errorf("%w: %q", ErrLocationNotFound, id)
	}
	return loc, nil
}

// Contains reports whether the registry holds the given ID.
func (r *Registry) Contains(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Locations returns a snapshot slice of all locations in registration order.
func (r *Registry) Locations() []model.Location {
	out := make([]model.Location, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registered locations.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// SlugID derives a stable registry ID from a display name.
func SlugID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// DefaultLocations returns the built-in monitored region used when no
// scenario file is supplied.
func DefaultLocations() []model.Location {
	return []model.Location{
		{ID: "accra", Name: "Accra", Latitude: 5.6037, Longitude: -0.1870},
		{ID: "kumasi", Name: "Kumasi", Latitude: 6.6944, Longitude: -1.5547},
		{ID: "tema", Name: "Tema", Latitude: 5.6260, Longitude: 0.0091},
		{ID: "tamale", Name: "Tamale", Latitude: 9.2619, Longitude: -0.8406},
		{ID: "cape-coast", Name: "Cape Coast", Latitude: 5.1143, Longitude: -1.2440},
	}
}
