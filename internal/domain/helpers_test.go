package domain

import "time"

func fptr(v float64) *float64 { return &v }

// fullSample returns a sample carrying wind and both outdoor sensors.
func fullSample(ts time.Time, speed, direction float64) WindSample {
	return WindSample{
		Timestamp:   ts,
		Speed:       speed,
		Gust:        speed + 4,
		Direction:   direction,
		HasWind:     true,
		Temperature: fptr(55),
		Humidity:    fptr(70),
	}
}

// windOnly returns a sample with wind but no outdoor sensors.
func windOnly(ts time.Time, speed, direction float64) WindSample {
	return WindSample{Timestamp: ts, Speed: speed, Gust: speed, Direction: direction, HasWind: true}
}

// series builds one full sample every step starting at start.
func series(start time.Time, step time.Duration, speeds, directions []float64) []WindSample {
	out := make([]WindSample, len(speeds))
	for i := range speeds {
		out[i] = fullSample(start.Add(time.Duration(i)*step), speeds[i], directions[i])
	}
	return out
}
