// Package scoring turns a signal bundle into a bounded suitability score for
// a structure type. The engine is pure: no I/O, no clock, no failure path.
// Absent signals substitute documented defaults and are recorded in the
// result's fallback list.
package scoring

import (
	"math"

	"github.com/terraplan/siteplan/internal/signal"
)

// Defaults substituted for absent signals. Distances here are the scoring
// defaults, not the fetch-level proximity fallbacks.
const (
	DefaultTemperature = 25.0 // °C
	DefaultPrecipDaily = 50.0 // mm/day
	DefaultVegetation  = 0.2
	DefaultPopulation  = 2000
	DefaultRoadKm      = 1.0
	DefaultWaterKm     = 2.0
)

// Result is the outcome of scoring one point.
type Result struct {
	StructureType StructureType      `json:"structure_type"`
	Score         float64            `json:"score"` // 0..100, two decimals
	SubScores     map[string]float64 `json:"sub_scores"`
	Bundle        signal.Bundle      `json:"signals"`

	// Fallbacks names the signals the engine substituted with defaults.
	// Fetch-level fallbacks are recorded separately on the bundle.
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// Score computes the weighted suitability of a point for the given structure
// type. Every signal is normalized to [0,100], weighted, clamped and rounded
// to two decimals.
func Score(b signal.Bundle, st StructureType) Result {
	var fallbacks []string

	resolve := func(v *float64, def float64, name string) float64 {
		if v != nil {
			return *v
		}
		fallbacks = append(fallbacks, name)
		return def
	}

	temp := resolve(b.MeanTemp, DefaultTemperature, signal.NameTemperature)
	precip := resolve(b.PrecipDaily(), DefaultPrecipDaily, signal.NamePrecipitation)
	ndvi := resolve(b.NDVI, DefaultVegetation, signal.NameVegetation)
	road := resolve(b.RoadKm, DefaultRoadKm, signal.NameRoad)
	water := resolve(b.WaterKm, DefaultWaterKm, signal.NameWater)

	pop := float64(DefaultPopulation)
	if b.Population != nil {
		pop = float64(*b.Population)
	} else {
		fallbacks = append(fallbacks, signal.NamePopulation)
	}

	sub := map[string]float64{
		signal.NameTemperature:   temperatureScore(temp),
		signal.NamePrecipitation: precipitationScore(precip),
		signal.NameVegetation:    vegetationScore(ndvi),
		signal.NamePopulation:    populationScore(pop, st),
		signal.NameRoad:          roadScore(road),
		signal.NameWater:         waterScore(water),
	}

	w := Weights(st)
	total := sub[signal.NameTemperature]*w.Temperature +
		sub[signal.NamePrecipitation]*w.Precipitation +
		sub[signal.NameVegetation]*w.Vegetation +
		sub[signal.NamePopulation]*w.Population +
		sub[signal.NameRoad]*w.Road +
		sub[signal.NameWater]*w.Water

	return Result{
		StructureType: st,
		Score:         round2(clamp(total, 0, 100)),
		SubScores:     sub,
		Bundle:        b,
		Fallbacks:     fallbacks,
	}
}

// temperatureScore peaks at 23 °C and loses 4 points per degree of deviation.
func temperatureScore(t float64) float64 {
	return math.Max(0, 100-math.Abs(t-23)*4)
}

// precipitationScore operates on average daily millimetres: linear ramp up to
// 50, optimal plateau through 150, then a 0.5 pt/mm decay.
func precipitationScore(daily float64) float64 {
	var s float64
	switch {
	case daily < 50:
		s = daily / 50 * 100
	case daily <= 150:
		s = 100
	default:
		s = math.Max(0, 100-(daily-150)*0.5)
	}
	return clamp(s, 0, 100)
}

func vegetationScore(ndvi float64) float64 {
	return clamp(ndvi*100, 0, 100)
}

// populationScore is the one structure-sensitive curve: hospitals and schools
// want density, parks want a moderate catchment, water infrastructure scales
// gently, housing prefers quieter surroundings. Counts below zero are treated
// as zero so an out-of-range override cannot push a curve past its bounds.
func populationScore(pop float64, st StructureType) float64 {
	pop = math.Max(0, pop)
	switch st {
	case Hospital, School:
		return math.Min(100, pop/10000*100)
	case Park:
		if pop < 5000 {
			return pop / 5000 * 100
		}
		return math.Max(0, 100-((pop-5000)/5000)*20)
	case Water:
		return math.Min(100, pop/7000*80)
	default:
		return math.Max(0, 100-pop/10000*80)
	}
}

// roadScore rewards road access at 10 points per kilometre of distance lost.
func roadScore(km float64) float64 {
	return math.Max(0, 100-km*10)
}

// waterScore excludes flood-prone sites outright below 300 m, holds a neutral
// 50 inside a kilometre, then rewards increasing distance.
func waterScore(km float64) float64 {
	switch {
	case km < 0.3:
		return 0
	case km < 1.0:
		return 50
	default:
		return math.Min(100, 50+(km-1)*10)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
