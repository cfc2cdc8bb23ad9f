package domain

import (
	"math"
)

// ConsistencyMethod selects how direction consistency is scored.
type ConsistencyMethod string

const (
	// ConsistencyResultant is the resultant vector length × 100. Default.
	ConsistencyResultant ConsistencyMethod = "resultant"
	// ConsistencyModalDeviation is the percentage of samples within the
	// deviation threshold of the bucketed modal direction.
	ConsistencyModalDeviation ConsistencyMethod = "modal_deviation"
)

// Valid reports whether m names a supported method. Empty means the default.
func (m ConsistencyMethod) Valid() bool {
	switch m {
	case "", ConsistencyResultant, ConsistencyModalDeviation:
		return true
	default:
		return false
	}
}

// DefaultModalBucketSize is the bucket width, in degrees, used to find the modal direction.
const DefaultModalBucketSize = 10.0

// DirectionStats summarizes a set of directions.
type DirectionStats struct {
	Consistency   float64 `json:"consistency"`
	MeanDirection float64 `json:"mean_direction"`
	SampleCount   int     `json:"sample_count"`
}

// DirectionConsistency scores directions by resultant vector length.
// Empty input and a single sample both score 0.
func DirectionConsistency(directions []float64) DirectionStats {
	stats := DirectionStats{SampleCount: len(directions)}
	if len(directions) == 0 {
		return stats
	}

	mean, length := resultant(directions)
	stats.MeanDirection = mean
	if len(directions) < 2 {
		return stats
	}
	stats.Consistency = clamp(length*100, 0, 100)
	return stats
}

// ModalDeviationConsistency scores the percentage of directions within
// tolerance degrees of the modal direction. MeanDirection reports the modal
// direction. Fewer than two samples score 0.
func ModalDeviationConsistency(directions []float64, tolerance, bucketSize float64) DirectionStats {
	stats := DirectionStats{SampleCount: len(directions)}
	if len(directions) == 0 {
		return stats
	}

	mode := ModalDirection(directions, bucketSize)
	stats.MeanDirection = mode
	if len(directions) < 2 {
		return stats
	}

	within := 0
	for _, d := range directions {
		if AngularDifference(d, mode) <= tolerance {
			within++
		}
	}
	stats.Consistency = float64(within) / float64(len(directions)) * 100
	return stats
}

// ModalDirection buckets directions into bucketSize-degree bins and returns
// the circular mean of the most populated bin. Ties go to the lower bin.
func ModalDirection(directions []float64, bucketSize float64) float64 {
	if len(directions) == 0 {
		return 0
	}
	if bucketSize <= 0 || bucketSize > 360 {
		bucketSize = DefaultModalBucketSize
	}

	buckets := int(math.Ceil(360 / bucketSize))
	members := make([][]float64, buckets)
	for _, d := range directions {
		d = NormalizeDirection(d)
		b := int(d / bucketSize)
		if b >= buckets {
			b = buckets - 1
		}
		members[b] = append(members[b], d)
	}

	best := 0
	for b := 1; b < buckets; b++ {
		if len(members[b]) > len(members[best]) {
			best = b
		}
	}
	mean, _ := resultant(members[best])
	return mean
}

// AngularDifference returns the shortest arc between two directions, in [0,180].
func AngularDifference(a, b float64) float64 {
	diff := math.Abs(NormalizeDirection(a) - NormalizeDirection(b))
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

// DirectionSector is an arc of acceptable directions: Center ± HalfWidth.
type DirectionSector struct {
	Center    float64 `json:"center" yaml:"center"`
	HalfWidth float64 `json:"half_width" yaml:"half_width"`
}

// Contains reports whether direction falls inside the sector, inclusive.
func (s DirectionSector) Contains(direction float64) bool {
	return AngularDifference(direction, s.Center) <= s.HalfWidth
}

// resultant returns the circular mean (degrees, [0,360)) and the length of
// the mean unit vector, in [0,1].
func resultant(directions []float64) (float64, float64) {
	if len(directions) == 0 {
		return 0, 0
	}
	var sumSin, sumCos float64
	for _, d := range directions {
		rad := d * math.Pi / 180
		sumSin += math.Sin(rad)
		sumCos += math.Cos(rad)
	}
	n := float64(len(directions))
	meanSin, meanCos := sumSin/n, sumCos/n

	length := math.Hypot(meanSin, meanCos)
	if length < 1e-12 {
		return 0, 0
	}
	mean := NormalizeDirection(math.Atan2(meanSin, meanCos) * 180 / math.Pi)
	return mean, math.Min(length, 1)
}
