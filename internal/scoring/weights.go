package scoring

import (
	"strings"

	"github.com/rotisserie/eris"
)

// StructureType selects the weight vector and the population curve used when
// scoring a point.
type StructureType string

const (
	Hospital StructureType = "hospital"
	School   StructureType = "school"
	Park     StructureType = "park"
	Water    StructureType = "water"
	House    StructureType = "house"
	Generic  StructureType = "generic"
)

// StructureTypes lists the supported types in a stable order.
var StructureTypes = []StructureType{Hospital, School, Park, Water, House, Generic}

// ParseStructureType parses a user-supplied structure type, case-insensitive.
func ParseStructureType(s string) (StructureType, error) {
	st := StructureType(strings.ToLower(strings.TrimSpace(s)))
	if st == "" {
		return Generic, nil
	}
	for _, known := range StructureTypes {
		if st == known {
			return st, nil
		}
	}
	return "", eris.Errorf("scoring: unknown structure type %q", s)
}

// WeightVector weights the six normalized sub-scores. Each vector sums to
// 1.0, so a composite of sub-scores in [0,100] stays in [0,100].
type WeightVector struct {
	Temperature   float64
	Precipitation float64
	Vegetation    float64
	Population    float64
	Road          float64
	Water         float64
}

// Sum returns the total weight, used to verify the unit-sum invariant.
func (w WeightVector) Sum() float64 {
	return w.Temperature + w.Precipitation + w.Vegetation + w.Population + w.Road + w.Water
}

var weightsByType = map[StructureType]WeightVector{
	Hospital: {Temperature: 0.25, Precipitation: 0.20, Vegetation: 0.10, Population: 0.30, Road: 0.10, Water: 0.05},
	School:   {Temperature: 0.25, Precipitation: 0.15, Vegetation: 0.15, Population: 0.25, Road: 0.15, Water: 0.05},
	Park:     {Temperature: 0.20, Precipitation: 0.20, Vegetation: 0.35, Population: 0.15, Road: 0.05, Water: 0.05},
	Water:    {Temperature: 0.20, Precipitation: 0.25, Vegetation: 0.10, Population: 0.15, Road: 0.15, Water: 0.15},
	House:    {Temperature: 0.30, Precipitation: 0.20, Vegetation: 0.20, Population: 0.15, Road: 0.10, Water: 0.05},
	Generic:  {Temperature: 0.28, Precipitation: 0.20, Vegetation: 0.18, Population: 0.14, Road: 0.10, Water: 0.10},
}

// Weights returns the weight vector for a structure type. Unknown types fall
// back to the generic vector so scoring cannot fail mid-batch.
func Weights(st StructureType) WeightVector {
	if w, ok := weightsByType[st]; ok {
		return w
	}
	return weightsByType[Generic]
}
