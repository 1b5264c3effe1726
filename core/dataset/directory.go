package dataset

import (
	"context"
	"sync"

	"github.com/kilianp07/smartrail/core/features"
	"github.com/kilianp07/smartrail/core/geo"
)

// Station is a stop with known coordinates.
type Station struct {
	ID       string
	Name     string
	Location geo.Point
}

// Train is a rolling stock entry with its service type.
type Train struct {
	ID   string
	Type features.TrainType
}

// DirectorySource loads reference data from the store.
type DirectorySource interface {
	Directory(ctx context.Context) ([]Station, []Train, error)
}

// Directory is an in-memory reference table. It implements
// features.Directory and is safe for concurrent use.
type Directory struct {
	mu       sync.RWMutex
	stations map[string]geo.Point
	trains   map[string]features.TrainType
}

// NewDirectory builds a Directory from the given entries.
func NewDirectory(stations []Station, trains []Train) *Directory {
	d := &Directory{}
	d.Replace(stations, trains)
	return d
}

// Replace swaps the whole reference table.
func (d *Directory) Replace(stations []Station, trains []Train) {
	s := make(map[string]geo.Point, len(stations))
	for _, st := range stations {
		s[st.ID] = st.Location
	}
	t := make(map[string]features.TrainType, len(trains))
	for _, tr := range trains {
		t[tr.ID] = tr.Type
	}
	d.mu.Lock()
	d.stations, d.trains = s, t
	d.mu.Unlock()
}

// Refresh reloads the table from src.
func (d *Directory) Refresh(ctx context.Context, src DirectorySource) error {
	stations, trains, err := src.Directory(ctx)
	if err != nil {
		return err
	}
	d.Replace(stations, trains)
	return nil
}

// StationLocation implements features.Directory.
func (d *Directory) StationLocation(id string) (geo.Point, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.stations[id]
	return p, ok
}

// TrainType implements features.Directory.
func (d *Directory) TrainType(id string) (features.TrainType, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.trains[id]
	return t, ok
}

// Size returns the number of stations and trains known.
func (d *Directory) Size() (stations, trains int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.stations), len(d.trains)
}
