// Package mockdata generates deterministic dawn-patrol fixtures: station
// sample streams and a two-location forecast. The same generators back the
// genmock command and the replay tests, so fixture files and test
// expectations never drift apart.
package mockdata

import (
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/windwatch/internal/domain"
)

// Station IDs in the generated stream.
const (
	StationSteady = "DAWN-01" // steady northwest flow, alarm-worthy all morning
	StationFickle = "DAWN-02" // light and variable, never alarm-worthy
	StationFlaky  = "DAWN-03" // good wind with a sensor dropout and an outage
)

// Cadence is the sample interval of every generated station.
const Cadence = 5 * time.Minute

// StreamStart and StreamEnd bound the generated samples as offsets from
// midnight UTC of the fixture date.
const (
	StreamStart = 5 * time.Hour
	StreamEnd   = 8 * time.Hour
)

// Flaky station trouble spots, as offsets from midnight UTC.
const (
	DropoutStart = 6 * time.Hour
	DropoutEnd   = 6*time.Hour + 30*time.Minute
	OutageStart  = 7 * time.Hour
	OutageEnd    = 7*time.Hour + 30*time.Minute
)

// Samples returns the station stream for the morning of date, ordered by
// timestamp then station ID as a broker would deliver it.
func Samples(date time.Time) []domain.RawStationSample {
	day := midnight(date)
	var out []domain.RawStationSample
	for off := StreamStart; off <= StreamEnd; off += Cadence {
		step := int(off / Cadence)
		ts := day.Add(off)
		out = append(out, steady(ts, step), fickle(ts, step))
		if s, ok := flaky(ts, off, step); ok {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Timestamp.Time, out[j].Timestamp.Time
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].StationID < out[j].StationID
	})
	return out
}

// ByStation groups samples by station ID, preserving order.
func ByStation(samples []domain.RawStationSample) map[string][]domain.RawStationSample {
	out := make(map[string][]domain.RawStationSample)
	for _, s := range samples {
		out[s.StationID] = append(out[s.StationID], s)
	}
	return out
}

func steady(ts time.Time, step int) domain.RawStationSample {
	return station(StationSteady, ts,
		15+2*math.Sin(float64(step)/3),
		315+5*math.Sin(float64(step)),
		48-0.1*float64(step%12),
		78,
	)
}

func fickle(ts time.Time, step int) domain.RawStationSample {
	return station(StationFickle, ts,
		4+float64(step%4),
		float64((step*97)%360),
		51,
		64,
	)
}

func flaky(ts time.Time, off time.Duration, step int) (domain.RawStationSample, bool) {
	if off > OutageStart && off < OutageEnd {
		return domain.RawStationSample{}, false
	}
	s := station(StationFlaky, ts,
		13+float64(step%3),
		300+float64(step%5),
		46,
		81,
	)
	if off >= DropoutStart && off < DropoutEnd {
		s.Outdoor = nil
	}
	return s, true
}

func station(id string, ts time.Time, speed, direction, temp, humidity float64) domain.RawStationSample {
	speed = round1(speed)
	return domain.RawStationSample{
		StationID: id,
		RawSample: domain.RawSample{
			Timestamp:     domain.FlexTime{Time: ts},
			WindSpeedMPH:  domain.Float(speed),
			WindGustMPH:   domain.Float(speed + 4),
			WindDirection: domain.Float(round1(math.Mod(direction, 360))),
			Outdoor: &domain.RawOutdoor{
				Temperature: domain.Float(round1(temp)),
				Humidity:    domain.Float(humidity),
			},
		},
	}
}

// Forecast returns a valley and ridge forecast favoring a katabatic flow on
// the morning of date: dry, clear, and rising pressure. The forecast ridge
// temperature is only 3°F below the valley, so the temperature factor passes
// on the strength of the historical differential alone. The hourly series
// covers 18:00 UTC the evening before through 10:00 UTC.
func Forecast(date time.Time) domain.KatabaticInput {
	evening := midnight(date).Add(-6 * time.Hour)
	var valley, ridge []domain.WeatherPoint
	for i := 0; i <= 16; i++ {
		ts := evening.Add(time.Duration(i) * time.Hour)
		valley = append(valley, domain.WeatherPoint{
			Time:                     ts,
			Temperature:              ptr(round1(54 - 0.6*float64(i))),
			PrecipitationProbability: ptr(5),
			CloudCover:               ptr(float64(5 + i%3*5)),
			Pressure:                 ptr(round1(1009 + 0.4*float64(i))),
			WindSpeed:                ptr(3),
			TransportWindSpeed:       ptr(6),
			MixingHeight:             ptr(350),
			DispersionIndex:          ptr(12),
		})
		ridge = append(ridge, domain.WeatherPoint{
			Time:                     ts,
			Temperature:              ptr(round1(51 - 0.7*float64(i))),
			PrecipitationProbability: ptr(5),
			CloudCover:               ptr(10),
			WindSpeed:                ptr(8),
		})
	}
	return domain.KatabaticInput{
		Valley: domain.LocationForecast{
			Name:    "valley",
			Current: valley[0],
			Hourly:  valley,
		},
		Mountain: domain.LocationForecast{
			Name:    "ridge",
			Current: ridge[0],
			Hourly:  ridge,
		},
		Historical: &domain.HistoricalDifferential{
			Differential: 11,
			Confidence:   80,
			SampleCount:  30,
		},
	}
}

// ForecastTime is when the generated forecast is meant to be evaluated:
// 21:00 UTC the evening before date.
func ForecastTime(date time.Time) time.Time {
	return midnight(date).Add(-3 * time.Hour)
}

func midnight(date time.Time) time.Time {
	y, m, d := date.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(v float64) *float64 { return &v }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
