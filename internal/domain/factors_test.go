package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eveningBefore is 21:00 the evening before the 2024-04-26 dawn window.
var eveningBefore = time.Date(2024, 4, 25, 21, 0, 0, 0, time.UTC)

// favorableInput is a calm, clear night with rising pressure and a strong
// valley-mountain differential. Hourly points run 21:00 to 08:00.
func favorableInput() KatabaticInput {
	var valley, mountain []WeatherPoint
	for i := 0; i < 12; i++ {
		ts := eveningBefore.Add(time.Duration(i) * time.Hour)
		valley = append(valley, WeatherPoint{
			Time:                     ts,
			Temperature:              fptr(50 - float64(i)*0.5),
			PrecipitationProbability: fptr(5),
			CloudCover:               fptr(10),
			Pressure:                 fptr(1010 + float64(i)*0.5),
			TransportWindSpeed:       fptr(5),
			MixingHeight:             fptr(300),
		})
		mountain = append(mountain, WeatherPoint{
			Time:                     ts,
			Temperature:              fptr(40 - float64(i)*0.5),
			PrecipitationProbability: fptr(5),
			CloudCover:               fptr(10),
		})
	}
	return KatabaticInput{
		Valley: LocationForecast{
			Name:    "valley",
			Current: WeatherPoint{Time: eveningBefore, Temperature: fptr(50)},
			Hourly:  valley,
		},
		Mountain: LocationForecast{
			Name:    "ridge",
			Current: WeatherPoint{Time: eveningBefore, Temperature: fptr(40)},
			Hourly:  mountain,
		},
	}
}

func evaluate(input KatabaticInput) Evaluation {
	return NewEvaluation(input, DefaultKatabaticCriteria(), eveningBefore)
}

func TestNewEvaluation_Windows(t *testing.T) {
	e := evaluate(KatabaticInput{})

	assert.Equal(t, time.Date(2024, 4, 26, 6, 0, 0, 0, time.UTC), e.Target.Start)
	assert.Equal(t, time.Date(2024, 4, 26, 8, 0, 0, 0, time.UTC), e.Target.End)
	assert.Equal(t, time.Date(2024, 4, 25, 22, 0, 0, 0, time.UTC), e.ClearSky.Start)
	assert.Equal(t, time.Date(2024, 4, 26, 6, 0, 0, 0, time.UTC), e.ClearSky.End)

	during := NewEvaluation(KatabaticInput{}, DefaultKatabaticCriteria(), time.Date(2024, 4, 26, 7, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 4, 26, 6, 0, 0, 0, time.UTC), during.Target.Start, "an open window is still the target")
}

func TestEvaluatePrecipitation(t *testing.T) {
	r := EvaluatePrecipitation(evaluate(favorableInput()))
	assert.True(t, r.Meets)
	assert.InDelta(t, 5.0, r.Value, 1e-9)
	assert.InDelta(t, 87.5, r.Confidence, 1e-9)
	assert.InDelta(t, 93.75, r.Score, 1e-9)
	assert.Equal(t, DataSourceMeasured, r.DataSource)

	wet := favorableInput()
	wet.Mountain.Hourly[4].PrecipitationProbability = fptr(60)
	r = EvaluatePrecipitation(evaluate(wet))
	assert.False(t, r.Meets, "the wettest hour at either location decides")
	assert.InDelta(t, 60.0, r.Value, 1e-9)
	assert.Less(t, r.Score, 50.0)
}

func TestEvaluateSkyConditions(t *testing.T) {
	r := EvaluateSkyConditions(evaluate(favorableInput()))
	assert.True(t, r.Meets)
	assert.InDelta(t, 90.0, r.Value, 1e-9)

	cloudy := favorableInput()
	for i := range cloudy.Valley.Hourly {
		cloudy.Valley.Hourly[i].CloudCover = fptr(80)
		cloudy.Mountain.Hourly[i].CloudCover = fptr(60)
	}
	r = EvaluateSkyConditions(evaluate(cloudy))
	assert.False(t, r.Meets)
	assert.InDelta(t, 30.0, r.Value, 1e-9)
}

func TestEvaluatePressureChange(t *testing.T) {
	t.Run("rising", func(t *testing.T) {
		r := EvaluatePressureChange(evaluate(favorableInput()))
		assert.True(t, r.Meets)
		assert.InDelta(t, 3.0, r.Value, 1e-9, "00:00 to 06:00 at 0.5 hPa per hour")
		assert.Equal(t, "hPa", r.Unit)
		assert.Contains(t, r.Rationale, "rising")
	})

	t.Run("falling trend configured", func(t *testing.T) {
		c := DefaultKatabaticCriteria()
		c.FavorablePressureTrend = PressureFalling
		r := EvaluatePressureChange(NewEvaluation(favorableInput(), c, eveningBefore))
		assert.False(t, r.Meets)
	})

	t.Run("stable", func(t *testing.T) {
		in := favorableInput()
		for i := range in.Valley.Hourly {
			in.Valley.Hourly[i].Pressure = fptr(1012)
		}
		r := EvaluatePressureChange(evaluate(in))
		assert.False(t, r.Meets)
		assert.Contains(t, r.Rationale, "stable")
	})

	t.Run("mountain fallback", func(t *testing.T) {
		in := favorableInput()
		for i := range in.Valley.Hourly {
			in.Valley.Hourly[i].Pressure = nil
		}
		in.Mountain.Hourly[3].Pressure = fptr(900)
		in.Mountain.Hourly[9].Pressure = fptr(896)
		r := EvaluatePressureChange(evaluate(in))
		assert.InDelta(t, -4.0, r.Value, 1e-9)
		assert.False(t, r.Meets)
		assert.Equal(t, DataSourceMeasured, r.DataSource)
	})

	t.Run("unavailable", func(t *testing.T) {
		in := favorableInput()
		for i := range in.Valley.Hourly {
			in.Valley.Hourly[i].Pressure = nil
		}
		r := EvaluatePressureChange(evaluate(in))
		assert.False(t, r.Meets)
		assert.Zero(t, r.Confidence)
		assert.Zero(t, r.Score)
	})
}

func TestEvaluateTemperatureDifferential(t *testing.T) {
	r := EvaluateTemperatureDifferential(evaluate(favorableInput()))
	assert.True(t, r.Meets)
	assert.InDelta(t, 10.0, r.Value, 1e-9)
	assert.InDelta(t, 100.0, r.Confidence, 1e-9)

	t.Run("nearest hourly value", func(t *testing.T) {
		in := favorableInput()
		in.Valley.Current.Temperature = nil
		in.Valley.Hourly[0].Temperature = nil
		r := EvaluateTemperatureDifferential(evaluate(in))
		assert.InDelta(t, 9.5, r.Value, 1e-9, "valley 22:00 is 49.5, mountain now is 40")
	})

	t.Run("nothing within three hours", func(t *testing.T) {
		in := favorableInput()
		in.Mountain.Current.Temperature = nil
		in.Mountain.Hourly = in.Mountain.Hourly[4:]
		r := EvaluateTemperatureDifferential(evaluate(in))
		assert.False(t, r.Meets)
		assert.Zero(t, r.Confidence)
	})
}

func TestEnhanceTemperatureDifferential(t *testing.T) {
	c := DefaultKatabaticCriteria()
	forecast := scored(FactorResult{Meets: false, Confidence: 70, Value: 2, DataSource: DataSourceMeasured})

	t.Run("valid history replaces forecast", func(t *testing.T) {
		r, ok := EnhanceTemperatureDifferential(forecast, &HistoricalDifferential{Differential: 8, Confidence: 80, SampleCount: 30}, c)
		require.True(t, ok)
		assert.True(t, r.Meets)
		assert.InDelta(t, 8.0, r.Value, 1e-9)
		assert.InDelta(t, 90.0, r.Score, 1e-9)
		assert.Equal(t, DataSourceHistoricalHybrid, r.DataSource)
	})

	for name, hist := range map[string]*HistoricalDifferential{
		"nil":             nil,
		"zero confidence": {Differential: 8, Confidence: 0},
		"over 100":        {Differential: 8, Confidence: 120},
	} {
		t.Run(name, func(t *testing.T) {
			r, ok := EnhanceTemperatureDifferential(forecast, hist, c)
			assert.False(t, ok)
			assert.Equal(t, forecast, r)
		})
	}
}

func TestEvaluateWavePattern(t *testing.T) {
	r := EvaluateWavePattern(evaluate(favorableInput()))
	assert.True(t, r.Meets)
	assert.InDelta(t, 100.0, r.Value, 1e-9)
	assert.LessOrEqual(t, r.Confidence, proxyConfidenceCap)
	assert.Equal(t, DataSourceEstimated, r.DataSource)

	windy := favorableInput()
	for i := range windy.Valley.Hourly {
		windy.Valley.Hourly[i].TransportWindSpeed = fptr(20)
	}
	r = EvaluateWavePattern(evaluate(windy))
	assert.False(t, r.Meets)
	assert.InDelta(t, 25.0, r.Value, 1e-9)
}

func TestEvaluateAtmosphericStability(t *testing.T) {
	r := EvaluateAtmosphericStability(evaluate(favorableInput()))
	assert.True(t, r.Meets)
	assert.InDelta(t, 30.0, r.Confidence, 1e-9, "one signal")

	both := favorableInput()
	for i := range both.Valley.Hourly {
		both.Valley.Hourly[i].DispersionIndex = fptr(40)
	}
	r = EvaluateAtmosphericStability(evaluate(both))
	assert.InDelta(t, 80.0, r.Value, 1e-9, "mean of 100 and 60")
	assert.InDelta(t, proxyConfidenceCap, r.Confidence, 1e-9)
}

func TestProxies_UnavailableWithoutUpperAirData(t *testing.T) {
	in := favorableInput()
	for i := range in.Valley.Hourly {
		in.Valley.Hourly[i].TransportWindSpeed = nil
		in.Valley.Hourly[i].MixingHeight = nil
	}
	e := evaluate(in)

	for name, r := range map[string]FactorResult{
		"wave":      EvaluateWavePattern(e),
		"stability": EvaluateAtmosphericStability(e),
	} {
		t.Run(name, func(t *testing.T) {
			assert.False(t, r.Meets)
			assert.Zero(t, r.Confidence)
			assert.Zero(t, r.Score)
			assert.Equal(t, DataSourceEstimated, r.DataSource)
			assert.NotEmpty(t, r.Rationale)
		})
	}
}

func TestBestTimeWindow(t *testing.T) {
	w := BestTimeWindow(evaluate(favorableInput()))
	require.NotNil(t, w)
	assert.Equal(t, time.Date(2024, 4, 26, 6, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 4, 26, 8, 0, 0, 0, time.UTC), w.End)

	in := favorableInput()
	in.Valley.Hourly[10].PrecipitationProbability = fptr(50) // 07:00
	w = BestTimeWindow(evaluate(in))
	require.NotNil(t, w)
	assert.Equal(t, time.Hour, w.Duration())

	none := favorableInput()
	none.Valley.Hourly[9].CloudCover = fptr(90)
	none.Valley.Hourly[10].CloudCover = fptr(90)
	assert.Nil(t, BestTimeWindow(evaluate(none)))
}

func TestMarginConfidence(t *testing.T) {
	assert.InDelta(t, 50.0, marginConfidence(0, 10), 1e-9)
	assert.InDelta(t, 75.0, marginConfidence(5, 10), 1e-9)
	assert.InDelta(t, 75.0, marginConfidence(-5, 10), 1e-9)
	assert.InDelta(t, 100.0, marginConfidence(50, 10), 1e-9)
}
