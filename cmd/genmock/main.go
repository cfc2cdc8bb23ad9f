// Command genmock writes deterministic dawn-patrol fixtures for the analyze
// CLI and manual pipeline runs: a station sample stream and a valley/ridge
// katabatic forecast for one morning.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -date 2024-04-26
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/windwatch/internal/domain"
	"github.com/couchcryptid/windwatch/internal/mockdata"
)

const (
	samplesFile  = "samples.json"
	forecastFile = "forecast.json"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("genmock", flag.ContinueOnError)
	out := fs.String("out", "", "output directory for the fixtures")
	date := fs.String("date", "2024-04-26", "morning to generate (YYYY-MM-DD, UTC)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *out == "" {
		fs.Usage()
		return errors.New("missing required flag: -out")
	}
	day, err := time.Parse(time.DateOnly, *date)
	if err != nil {
		return fmt.Errorf("invalid -date: %w", err)
	}

	samples := mockdata.Samples(day)
	if err := writeJSON(filepath.Join(*out, samplesFile), samples); err != nil {
		return fmt.Errorf("writing samples fixture: %w", err)
	}
	if err := writeJSON(filepath.Join(*out, forecastFile), mockdata.Forecast(day)); err != nil {
		return fmt.Errorf("writing forecast fixture: %w", err)
	}

	printStats(stdout, day, samples)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(w io.Writer, day time.Time, samples []domain.RawStationSample) {
	byStation := mockdata.ByStation(samples)

	fmt.Fprintln(w, "=== Stats for updating test assertions ===")
	fmt.Fprintf(w, "Total samples: %d\n", len(samples))
	for _, id := range []string{mockdata.StationSteady, mockdata.StationFickle, mockdata.StationFlaky} {
		fmt.Fprintf(w, "  %s: %d\n", id, len(byStation[id]))
	}
	fmt.Fprintf(w, "Forecast issued at: %s\n", mockdata.ForecastTime(day).Format(time.RFC3339))
}
