package localeval

import (
	"fmt"
	"sort"
	"sync"

	"snowdiff_service/internal/domain/model"
)

// Archive is an in-memory scene catalog sharing one grid.
type Archive struct {
	grid Grid

	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	bands  []string
	scenes []Scene
}

func NewArchive(g Grid) *Archive {
	return &Archive{grid: g, collections: make(map[string]*collection)}
}

func (a *Archive) Grid() Grid { return a.grid }

// RegisterCollection declares a collection and the bands every scene in it carries.
func (a *Archive) RegisterCollection(id string, bands ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.collections[id] = &collection{bands: append([]string(nil), bands...)}
}

// RegisterSensors declares one collection per profile with its green, SWIR and quality bands.
func (a *Archive) RegisterSensors(profiles ...model.SensorProfile) {
	for _, p := range profiles {
		a.RegisterCollection(p.CollectionID, p.GreenBand, p.SWIRBand, p.QualityBand)
	}
}

// Add stores a scene. Its image must sit on the archive grid and carry every declared band.
func (a *Archive) Add(collectionID string, s Scene) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.collections[collectionID]
	if !ok {
		return fmt.Errorf("collection %q is not registered", collectionID)
	}
	if s.Image == nil || s.Image.Grid != a.grid {
		return fmt.Errorf("scene %q is not on the archive grid", s.ID)
	}
	for _, b := range c.bands {
		if _, err := s.Image.Band(b); err != nil {
			return fmt.Errorf("scene %q: %w", s.ID, err)
		}
	}
	c.scenes = append(c.scenes, s)
	sort.SliceStable(c.scenes, func(i, j int) bool { return c.scenes[i].Acquired.Before(c.scenes[j].Acquired) })
	return nil
}

// scenes returns a snapshot of a collection.
func (a *Archive) scenes(collectionID string) ([]Scene, []string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	c, ok := a.collections[collectionID]
	if !ok {
		return nil, nil, fmt.Errorf("collection %q not found", collectionID)
	}
	return append([]Scene(nil), c.scenes...), append([]string(nil), c.bands...), nil
}
