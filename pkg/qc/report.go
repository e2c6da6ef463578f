package qc

import (
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
)

// ContextSummary is the global summary populated from every HeaderItem
// the Runner dispatches.
type ContextSummary struct {
	Files          []string `json:"files"`
	FirstEpoch     time.Time `json:"firstEpoch"`
	LastEpoch      time.Time `json:"lastEpoch"`
	FlaggedNoTimescale []string `json:"flaggedNoTimescale"` // descriptors Transposer couldn't resolve a source timescale for
}

// FileSummary is one per-SourceDescriptor entry of the context summary.
type FileSummary struct {
	Descriptor string    `json:"descriptor"`
	FirstEpoch time.Time `json:"firstEpoch"`
	LastEpoch  time.Time `json:"lastEpoch"`
}

// RTKSummary tracks rovers, bases, and their derived baselines, latched
// from Observation headers as the Runner dispatches them.
type RTKSummary struct {
	Rovers     []string `json:"rovers"`
	Bases      []string `json:"bases"`
}

// LatchBaseHeader records desc as a base-station contribution.
func (r *RTKSummary) LatchBaseHeader(desc SourceDescriptor) {
	r.Bases = append(r.Bases, desc.String())
}

// LatchRoverHeader records desc as a rover contribution.
func (r *RTKSummary) LatchRoverHeader(desc SourceDescriptor) {
	r.Rovers = append(r.Rovers, desc.String())
}

// Baselines returns every (rover, base) pair, in rover-major order.
func (r *RTKSummary) Baselines() []string {
	var out []string
	for _, rover := range r.Rovers {
		for _, base := range r.Bases {
			out = append(out, rover+" <-> "+base)
		}
	}
	return out
}

// ObservationSeriesPoint is one raw-observation time-series entry.
type ObservationSeriesPoint struct {
	Epoch  time.Time    `json:"epoch"`
	Source string       `json:"source"`
	Sat    gnss.PRN     `json:"sat"`
	Kind   gnss.ObservationKind `json:"kind"`
	Value  float64      `json:"value"`
}

// GapHistogram buckets the distribution of sampling-gap durations for one
// (source, satellite, carrier, kind) key.
type GapHistogram struct {
	// bucket width; gaps are floored to the nearest multiple.
	BucketWidth time.Duration            `json:"bucketWidth"`
	Counts      map[time.Duration]int    `json:"counts"`
	total       int
}

// NewGapHistogram returns a GapHistogram bucketing at the given width.
func NewGapHistogram(bucketWidth time.Duration) *GapHistogram {
	return &GapHistogram{BucketWidth: bucketWidth, Counts: make(map[time.Duration]int)}
}

// Observe records one inter-sample gap.
func (h *GapHistogram) Observe(gap time.Duration) {
	if h.BucketWidth <= 0 {
		h.Counts[gap]++
	} else {
		bucket := (gap / h.BucketWidth) * h.BucketWidth
		h.Counts[bucket]++
	}
	h.total++
}

// Total returns the number of observed gaps, equal to the sample count
// minus one on that key.
func (h *GapHistogram) Total() int { return h.total }

// gapKey identifies one gap-histogram series. Unlike signalKey it carries
// the observation kind: histograms are per (source, sat, carrier, kind),
// and sharing a last-seen epoch across kinds would record zero-length
// gaps for every kind after the first at each epoch.
type gapKey struct {
	Source  SourceDescriptor
	Sat     gnss.PRN
	Carrier gnss.Carrier
	Kind    gnss.ObservationKind
}

// gapTracker is the Runner's per-(source,sat,carrier,kind) last-seen-epoch
// state used to feed GapHistogram.Observe.
type gapTracker struct {
	lastSeen map[gapKey]time.Time
}

func newGapTracker() *gapTracker {
	return &gapTracker{lastSeen: make(map[gapKey]time.Time)}
}

func (g *gapTracker) observe(key gapKey, epoch time.Time, hist *GapHistogram) {
	if last, ok := g.lastSeen[key]; ok {
		hist.Observe(epoch.Sub(last))
	}
	g.lastSeen[key] = epoch
}

// MeteoSeriesPoint is one raw meteo-sensor observation, read directly off
// a MeteoObservation dataset (meteo logs carry no satellite or carrier,
// so they never enter the Serializer's signal sub-phase; see
// Runner.dispatchMeteo).
type MeteoSeriesPoint struct {
	Epoch   time.Time `json:"epoch"`
	Source  string    `json:"source"`
	ObsType string    `json:"obsType"`
	Value   float64   `json:"value"`
}

// Projection is a generic derived scalar series slot (e.g. elevation/SNR
// for navi-plot); kept intentionally lightweight since rendering is out
// of scope.
type Projection struct {
	Name   string    `json:"name"`
	Epoch  time.Time `json:"epoch"`
	Sat    gnss.PRN  `json:"sat"`
	Value  float64   `json:"value"`
}

// SignalResidual is one cross-source difference of co-temporal
// observations on the same (satellite, carrier, kind). SourceA orders
// before SourceB; Delta is A minus B.
type SignalResidual struct {
	Epoch   time.Time            `json:"epoch"`
	Sat     gnss.PRN             `json:"sat"`
	Carrier gnss.Carrier         `json:"carrier"`
	Kind    gnss.ObservationKind `json:"kind"`
	SourceA string               `json:"sourceA"`
	SourceB string               `json:"sourceB"`
	Delta   float64              `json:"delta"`
}

// SP3Summary describes one precise-orbit contribution: satellite and
// state counts, the covered span, and how many states carry clock or
// velocity data.
type SP3Summary struct {
	Source        string        `json:"source"`
	Satellites    int           `json:"satellites"`
	States        int           `json:"states"`
	FirstEpoch    time.Time     `json:"firstEpoch"`
	LastEpoch     time.Time     `json:"lastEpoch"`
	EpochInterval time.Duration `json:"epochInterval"`
	WithClock     int           `json:"withClock"`
	WithVelocity  int           `json:"withVelocity"`
}

// SP3TemporalResidual is the epoch-to-epoch self-consistency of one
// satellite within a precise product: apparent position rate and clock
// drift between consecutive states of the same source.
type SP3TemporalResidual struct {
	Epoch     time.Time     `json:"epoch"`
	Sat       gnss.PRN      `json:"sat"`
	Dt        time.Duration `json:"dt"`
	PosRateMS [3]float64    `json:"posRateMS"`           // m/s
	ClockRate *float64      `json:"clockRate,omitempty"` // s/s, nil unless both epochs carry a clock
}

// PVTSolution is one position/time solution returned by a plugged-in
// PVTSolver collaborator.
type PVTSolution struct {
	Epoch       time.Time  `json:"epoch"`
	PositionM   [3]float64 `json:"positionM"`
	ClockOffset float64    `json:"clockOffset"` // receiver clock offset, seconds
	UsedSats    []gnss.PRN `json:"usedSats,omitempty"`
}

// CGGTTSTrack is one common-view time-transfer track: the PVT receiver
// clock solutions falling into one standard 780 s observation window,
// averaged.
type CGGTTSTrack struct {
	StartEpoch      time.Time     `json:"startEpoch"`
	Duration        time.Duration `json:"duration"`
	Solutions       int           `json:"solutions"`
	MeanClockOffset float64       `json:"meanClockOffset"` // seconds
}

// RunReport is the aggregated output of one Runner.Process call: optional
// slots per analysis, populated incrementally as the stream is consumed,
// immutable once returned.
type RunReport struct {
	Summary         *ContextSummary            `json:"summary,omitempty"`
	FileSummaries   []FileSummary              `json:"fileSummaries,omitempty"`
	RTKSummary      *RTKSummary                `json:"rtkSummary,omitempty"`
	Observations    []ObservationSeriesPoint   `json:"observations,omitempty"`
	Combinations    []Combination              `json:"combinations,omitempty"`
	OrbitResiduals  []OrbitResidual            `json:"orbitResiduals,omitempty"`
	ClockResiduals  []OrbitResidual            `json:"clockResiduals,omitempty"`
	SignalResiduals []SignalResidual           `json:"signalResiduals,omitempty"`
	SP3Summaries    []SP3Summary               `json:"sp3Summaries,omitempty"`
	SP3TemporalResiduals []SP3TemporalResidual `json:"sp3TemporalResiduals,omitempty"`
	GapHistograms   map[string]*GapHistogram   `json:"gapHistograms,omitempty"`
	MeteoObservations []MeteoSeriesPoint       `json:"meteoObservations,omitempty"`
	Projections     []Projection               `json:"projections,omitempty"`
	PVTSolutions    []PVTSolution              `json:"pvtSolutions,omitempty"`
	CGGTTSTracks    []CGGTTSTrack              `json:"cggttsTracks,omitempty"`

	MalformedRecords int `json:"malformedRecords"`
}

// NewRunReport returns a freshly initialized, empty RunReport.
func NewRunReport() *RunReport {
	return &RunReport{GapHistograms: make(map[string]*GapHistogram)}
}

// WriteJSON is the one neutral, in-scope "report consumer" this
// realisation provides.
func (r *RunReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// sortedGapHistogramKeys returns r.GapHistograms' keys in stable order,
// for deterministic JSON/log output.
func (r *RunReport) sortedGapHistogramKeys() []string {
	keys := make([]string, 0, len(r.GapHistograms))
	for k := range r.GapHistograms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
