// Command analyze runs the wind, station-health, or katabatic engine over a
// JSON fixture and prints the result as indented JSON.
//
// Usage:
//
//	go run ./cmd/analyze -mode wind -input data/samples.json -now 2024-04-26T07:30:00Z
//	go run ./cmd/analyze -mode health -input data/samples.json
//	go run ./cmd/analyze -mode katabatic -input data/forecast.json \
//	  -criteria criteria.yaml -now 2024-04-25T21:00:00Z
//
// Wind and health modes read an array of station samples and report per
// station. Katabatic mode reads a single forecast input. Without -now, wind
// and health use the latest sample time and katabatic uses the wall clock.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/couchcryptid/windwatch/internal/config"
	"github.com/couchcryptid/windwatch/internal/domain"
)

const (
	modeWind      = "wind"
	modeHealth    = "health"
	modeKatabatic = "katabatic"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	mode     string
	input    string
	criteria string
	now      time.Time
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	mode := fs.String("mode", modeWind, "analysis to run: wind, health, or katabatic")
	input := fs.String("input", "", "path to the JSON input fixture")
	criteria := fs.String("criteria", "", "optional YAML criteria file")
	now := fs.String("now", "", "reference time (RFC3339)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if *input == "" {
		fs.Usage()
		return options{}, errors.New("missing required flag: -input")
	}
	switch *mode {
	case modeWind, modeHealth, modeKatabatic:
	default:
		return options{}, fmt.Errorf("unknown mode %q", *mode)
	}

	opts := options{mode: *mode, input: *input, criteria: *criteria}
	if *now != "" {
		t, err := time.Parse(time.RFC3339, *now)
		if err != nil {
			return options{}, fmt.Errorf("invalid -now: %w", err)
		}
		opts.now = t
	}
	return opts, nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	criteria, err := config.LoadCriteria(opts.criteria)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var result any
	switch opts.mode {
	case modeWind, modeHealth:
		result, err = analyzeStations(data, opts, criteria)
	case modeKatabatic:
		result, err = predict(data, opts, criteria)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// analyzeStations groups samples by station and runs the wind or health
// analysis on each group.
func analyzeStations(data []byte, opts options, criteria config.Criteria) (map[string]any, error) {
	var raws []domain.RawStationSample
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}

	byStation := map[string][]domain.WindSample{}
	var latest time.Time
	for i := range raws {
		s := domain.NormalizeSample(raws[i].RawSample)
		byStation[raws[i].StationID] = append(byStation[raws[i].StationID], s)
		if s.Timestamp.After(latest) {
			latest = s.Timestamp
		}
	}

	now := opts.now
	if now.IsZero() {
		now = latest
	}

	out := make(map[string]any, len(byStation))
	for id, samples := range byStation {
		sort.SliceStable(samples, func(i, j int) bool { return samples[i].Timestamp.Before(samples[j].Timestamp) })
		if opts.mode == modeWind {
			out[id] = domain.AnalyzeWind(samples, criteria.Alarm, now)
		} else {
			out[id] = criteria.Transmission.Summarize(samples)
		}
	}
	return out, nil
}

func predict(data []byte, opts options, criteria config.Criteria) (domain.KatabaticPrediction, error) {
	var input domain.KatabaticInput
	if err := json.Unmarshal(data, &input); err != nil {
		return domain.KatabaticPrediction{}, fmt.Errorf("decode katabatic input: %w", err)
	}

	predictor, err := domain.NewKatabaticPredictor(criteria.Katabatic)
	if err != nil {
		return domain.KatabaticPrediction{}, err
	}

	now := opts.now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return predictor.Predict(input, now), nil
}
