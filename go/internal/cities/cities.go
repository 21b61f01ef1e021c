// Package cities provides the round target dataset and a tiered random picker.
package cities

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/geoquest/go/internal/models"
)

//go:embed cities.yaml
var defaultData []byte

// PickFunc returns count distinct cities suitable for difficulty.
type PickFunc func(difficulty models.Difficulty, count int) []models.City

type dataset struct {
	Cities []models.City `yaml:"cities"`
}

// Load decodes a YAML city list from r.
func Load(r io.Reader) ([]models.City, error) {
	var ds dataset
	if err := yaml.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("failed to decode cities: %w", err)
	}
	if len(ds.Cities) == 0 {
		return nil, errors.New("city dataset is empty")
	}
	for i, c := range ds.Cities {
		if c.Name == "" {
			return nil, fmt.Errorf("city %d has no name", i)
		}
		if !c.Coordinates().Valid() {
			return nil, fmt.Errorf("city %s has invalid coordinates", c.Name)
		}
		if c.Tier == 0 {
			ds.Cities[i].Tier = 1
		}
	}
	return ds.Cities, nil
}

// Default returns the embedded dataset.
func Default() []models.City {
	var ds dataset
	if err := yaml.Unmarshal(defaultData, &ds); err != nil {
		panic(fmt.Sprintf("embedded city dataset is invalid: %v", err))
	}
	return ds.Cities
}

// Picker draws random cities filtered by the difficulty's tier ceiling.
type Picker struct {
	cities []models.City

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPicker builds a picker over cities. A nil rnd uses a randomly seeded source.
func NewPicker(cities []models.City, rnd *rand.Rand) *Picker {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Picker{cities: cities, rnd: rnd}
}

// Pick returns up to count distinct cities. Fewer are returned when the tier
// pool is too small.
func (p *Picker) Pick(difficulty models.Difficulty, count int) []models.City {
	maxTier := difficulty.MaxTier()
	pool := make([]models.City, 0, len(p.cities))
	for _, c := range p.cities {
		if c.Tier <= maxTier {
			pool = append(pool, c)
		}
	}

	p.mu.Lock()
	p.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	p.mu.Unlock()

	if count > len(pool) {
		count = len(pool)
	}
	return pool[:count]
}

// CountByTier reports how many cities each tier holds.
func CountByTier(cities []models.City) map[int]int {
	counts := make(map[int]int)
	for _, c := range cities {
		counts[c.Tier]++
	}
	return counts
}
