package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/windwatch/internal/domain"
)

// StationHistory is a thread-safe LRU of stations. Each station holds its
// recent samples, pruned to the retention window, and its latest report.
// When more than maxStations are tracked the least recently updated station
// is evicted.
type StationHistory struct {
	maxStations int
	retention   time.Duration

	mu      sync.Mutex
	entries map[string]*stationEntry
	head    *stationEntry // most recently used
	tail    *stationEntry // least recently used
}

type stationEntry struct {
	id      string
	samples []domain.WindSample // time-ordered
	report  *domain.StationReport
	prev    *stationEntry
	next    *stationEntry
}

// NewStationHistory creates a history holding up to maxStations stations,
// each keeping samples newer than retention.
func NewStationHistory(maxStations int, retention time.Duration) *StationHistory {
	if maxStations <= 0 {
		maxStations = 1
	}
	return &StationHistory{
		maxStations: maxStations,
		retention:   retention,
		entries:     make(map[string]*stationEntry),
	}
}

// Append records sample for the station and returns a copy of the station's
// samples after pruning everything older than now minus the retention. A
// sample with the same timestamp as an existing one replaces it, so
// redelivered messages are not double counted. If adding the station evicted
// another, its ID is returned.
func (h *StationHistory) Append(stationID string, sample domain.WindSample, now time.Time) ([]domain.WindSample, string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.entries[stationID]
	if ok {
		h.moveToFront(e)
	} else {
		e = &stationEntry{id: stationID}
		h.entries[stationID] = e
		h.addToFront(e)
	}

	e.samples = insertSample(e.samples, sample)
	if h.retention > 0 {
		e.samples = pruneBefore(e.samples, now.Add(-h.retention))
	}
	out := append([]domain.WindSample(nil), e.samples...)

	var evicted string
	if len(h.entries) > h.maxStations {
		evicted = h.evictTail()
	}
	return out, evicted
}

// SetReport stores the latest report for a tracked station. Reports for
// stations no longer tracked are dropped.
func (h *StationHistory) SetReport(stationID string, report domain.StationReport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.entries[stationID]; ok {
		e.report = &report
	}
}

// Report returns the latest report for a station. Lookups do not change
// eviction order.
func (h *StationHistory) Report(stationID string) (domain.StationReport, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.entries[stationID]
	if !ok || e.report == nil {
		return domain.StationReport{}, false
	}
	return *e.report, true
}

// Len returns the number of tracked stations.
func (h *StationHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// StatusCounts returns the number of reported stations per transmission status.
func (h *StationHistory) StatusCounts() map[domain.TransmissionStatus]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := map[domain.TransmissionStatus]int{
		domain.StatusGood:    0,
		domain.StatusPartial: 0,
		domain.StatusOffline: 0,
	}
	for _, e := range h.entries {
		if e.report != nil {
			counts[e.report.Health.CurrentTransmissionStatus]++
		}
	}
	return counts
}

// insertSample places s in time order, replacing a sample with the same timestamp.
func insertSample(samples []domain.WindSample, s domain.WindSample) []domain.WindSample {
	i := sort.Search(len(samples), func(i int) bool {
		return !samples[i].Timestamp.Before(s.Timestamp)
	})
	if i < len(samples) && samples[i].Timestamp.Equal(s.Timestamp) {
		samples[i] = s
		return samples
	}
	samples = append(samples, domain.WindSample{})
	copy(samples[i+1:], samples[i:])
	samples[i] = s
	return samples
}

func pruneBefore(samples []domain.WindSample, cutoff time.Time) []domain.WindSample {
	i := sort.Search(len(samples), func(i int) bool {
		return !samples[i].Timestamp.Before(cutoff)
	})
	if i == 0 {
		return samples
	}
	return append(samples[:0], samples[i:]...)
}

func (h *StationHistory) moveToFront(e *stationEntry) {
	if e == h.head {
		return
	}
	h.remove(e)
	h.addToFront(e)
}

func (h *StationHistory) addToFront(e *stationEntry) {
	e.next = h.head
	e.prev = nil
	if h.head != nil {
		h.head.prev = e
	}
	h.head = e
	if h.tail == nil {
		h.tail = e
	}
}

func (h *StationHistory) remove(e *stationEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		h.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		h.tail = e.prev
	}
}

func (h *StationHistory) evictTail() string {
	if h.tail == nil {
		return ""
	}
	id := h.tail.id
	delete(h.entries, id)
	h.remove(h.tail)
	return id
}
