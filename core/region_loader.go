package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/reliefgrid/disaster-simulator/model"
	"github.com/reliefgrid/disaster-simulator/region"
)

// regionFile mirrors the on-disk region definition.
type regionFile struct {
	Name      string         `json:"name"`
	Locations []locationSpec `json:"locations"`
}

type locationSpec struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LoadRegion reads a JSON region definition from r and builds a location
// registry from it. Locations keep the file's order; entries without an
// explicit id get one derived from the name.
func LoadRegion(r io.Reader) (*region.Registry, error) {
	var rf regionFile
	if err := json.NewDecoder(r).Decode(&rf); err != nil {
		return nil, fmt.Errorf("decode region file: %w", err)
	}
	if len(rf.Locations) == 0 {
		return nil, errors.New("region file lists no locations")
	}

	locs := make([]model.Location, 0, len(rf.Locations))
	for _, ls := range rf.Locations {
		locs = append(locs, model.Location{
			ID:        ls.ID,
			Name:      ls.Name,
			Latitude:  ls.Latitude,
			Longitude: ls.Longitude,
		})
	}
	return region.NewRegistry(locs)
}
