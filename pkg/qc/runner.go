package qc

import (
	"context"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/de-bkg/gognss/pkg/rinex"
	"github.com/de-bkg/gognss/pkg/sp3"
)

// gapBucketWidth is the default GapHistogram bucketing width.
const gapBucketWidth = 1 * time.Second

// cggttsTrackDuration is the standard CGGTTS observation window length.
const cggttsTrackDuration = 780 * time.Second

// Runner consumes a Serializer's record stream and dispatches each record
// to the enabled analyses, accumulating results into a RunReport.
// EphemerisBuffer and SignalBuffer are value types it owns for the
// duration of one Process call.
type Runner struct {
	builder *AnalysisBuilder
}

// NewRunner returns a Runner driven by builder's enabled analyses.
func NewRunner(builder *AnalysisBuilder) *Runner {
	return &Runner{builder: builder}
}

// sourceSatKey keys the Runner's per-(source, satellite) trackers.
type sourceSatKey struct {
	Source SourceDescriptor
	Sat    gnss.PRN
}

// procState is the transient per-Process state: the buffers, trackers and
// the report under construction. It never outlives one Process call.
type procState struct {
	report *RunReport
	ephBuf *EphemerisBuffer
	sigBuf *SignalBuffer
	gaps   *gapTracker

	rcvPos   map[SourceDescriptor][3]float64 // marker ECEF position [m] per observation source
	lastElev map[sourceSatKey]time.Time
	lastSP3  map[sourceSatKey]sp3.PreciseState

	comboKey   sourceSatKey
	comboEpoch time.Time
	comboOpen  bool

	pvtEpoch   time.Time
	pvtSamples []SignalSample
	cggtts     cggttsWindow
}

// Process drives serializer to completion, dispatching every item to the
// enabled analyses and returning the resulting RunReport. ctx is
// consulted between items for cooperative cancellation; on
// cancellation no partial report is returned.
func (r *Runner) Process(ctx context.Context, store *DataStore) (*RunReport, error) {
	wantsSolver := r.builder.Enabled(OptPVT) || r.builder.Enabled(OptCGGTTS)
	if wantsSolver && r.builder.Solver() != nil && !store.IsNavigationCompatible() {
		return nil, newError(KindAnalysis, "pvt requested on a non-navigation-compatible store", nil)
	}
	if wantsSolver && r.builder.Solver() == nil {
		log.Warn("qc: pvt/cggtts requested without a solver, skipped")
	}

	serializer := NewSerializer(store)
	st := &procState{
		report:   NewRunReport(),
		ephBuf:   NewEphemerisBuffer(),
		sigBuf:   NewSignalBuffer(),
		gaps:     newGapTracker(),
		rcvPos:   make(map[SourceDescriptor][3]float64),
		lastElev: make(map[sourceSatKey]time.Time),
		lastSP3:  make(map[sourceSatKey]sp3.PreciseState),
	}
	st.report.Summary = &ContextSummary{}
	if r.builder.Enabled(OptRTKSummary) {
		st.report.RTKSummary = &RTKSummary{}
	}

	needsSignals := r.builder.NeedsSignals()
	needsEphemeris := r.builder.NeedsEphemeris()
	needsPreciseStates := r.builder.NeedsPreciseStates() || r.builder.Enabled(OptClockResiduals)

	for {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Warn("qc: processing cancelled")
			return nil, newError(KindCancelled, "processing cancelled", err)
		}

		item, ok := serializer.Next()
		if !ok {
			break
		}

		switch {
		case item.Header != nil:
			r.dispatchHeader(st, *item.Header)

		case item.Ephemeris != nil:
			if needsEphemeris {
				st.ephBuf.Latch(item.Ephemeris.Eph)
			}
			if r.builder.Enabled(OptNaviPlot) {
				st.report.Projections = append(st.report.Projections, Projection{
					Name:  "nav-message",
					Epoch: item.Ephemeris.Eph.TOC(),
					Sat:   item.Ephemeris.Eph.PRN(),
					Value: 1,
				})
			}

		case item.PreciseState != nil:
			if needsPreciseStates {
				r.dispatchPreciseState(st, *item.PreciseState)
			}

		case item.Signal != nil:
			if needsSignals {
				r.dispatchSignal(st, *item.Signal)
			}
		}
	}

	r.flushCombinations(st)
	r.flushPVT(st)
	st.cggtts.flush(st.report)

	st.report.MalformedRecords += serializer.MalformedCount()

	if r.builder.Enabled(OptMeteoObservations) {
		r.dispatchMeteo(st.report, store)
	}
	if r.builder.Enabled(OptSP3Summary) {
		r.dispatchSP3Summary(st.report, store)
	}

	if first, ok := store.FirstEpoch(); ok {
		st.report.Summary.FirstEpoch = first
	}
	if last, ok := store.LastEpoch(); ok {
		st.report.Summary.LastEpoch = last
	}
	for _, desc := range store.FlaggedNoTimescale() {
		st.report.Summary.FlaggedNoTimescale = append(st.report.Summary.FlaggedNoTimescale, desc.String())
	}

	return st.report, nil
}

// dispatchMeteo reads every MeteoObservation dataset straight off store:
// meteo sensor logs carry no satellite or carrier, so they never enter
// the Serializer's Ephemeris/PreciseState/Signal sub-phases and are
// populated here instead, once the temporal stream has been consumed.
func (r *Runner) dispatchMeteo(report *RunReport, store *DataStore) {
	for _, ids := range store.Iter(ProductMeteoObservation) {
		d, ok := ids.Set.(*rinexDataSet)
		if !ok || d.Meteo == nil {
			continue
		}
		desc := descriptorFor(store, ProductMeteoObservation, ids.Index)
		for _, epo := range d.Meteo.Epochs {
			for i, v := range epo.Obs {
				if i >= len(d.Meteo.Header.ObsTypes) {
					break
				}
				report.MeteoObservations = append(report.MeteoObservations, MeteoSeriesPoint{
					Epoch:   epo.Time,
					Source:  desc.String(),
					ObsType: string(d.Meteo.Header.ObsTypes[i]),
					Value:   v,
				})
			}
		}
	}
}

// dispatchSP3Summary summarises every precise-orbit dataset once the
// temporal stream has been consumed.
func (r *Runner) dispatchSP3Summary(report *RunReport, store *DataStore) {
	for _, ids := range store.Iter(ProductPreciseOrbit) {
		d, ok := ids.Set.(*sp3DataSet)
		if !ok {
			continue
		}
		desc := descriptorFor(store, ProductPreciseOrbit, ids.Index)
		sum := SP3Summary{Source: desc.String(), States: len(d.States)}
		if d.Header != nil {
			sum.Satellites = len(d.Header.Sats)
			sum.EpochInterval = d.Header.EpochInterval
		}
		if sum.Satellites == 0 {
			seen := make(map[gnss.PRN]bool)
			for _, s := range d.States {
				seen[s.PRN] = true
			}
			sum.Satellites = len(seen)
		}
		if t, ok := d.FirstEpoch(); ok {
			sum.FirstEpoch = t
		}
		if t, ok := d.LastEpoch(); ok {
			sum.LastEpoch = t
		}
		for _, s := range d.States {
			if s.ClockOffset != nil {
				sum.WithClock++
			}
			if s.VelocityKm != nil {
				sum.WithVelocity++
			}
		}
		report.SP3Summaries = append(report.SP3Summaries, sum)
	}
}

func (r *Runner) dispatchHeader(st *procState, item HeaderItem) {
	st.report.Summary.Files = append(st.report.Summary.Files, item.Descriptor.Filename)

	switch item.Descriptor.Product {
	case ProductObservation:
		if st.report.RTKSummary != nil {
			// No rover/base distinction is carried in an ObsHeader, and no
			// CLI flag supplies one; every observation source is latched
			// as a rover (see DESIGN.md).
			st.report.RTKSummary.LatchRoverHeader(item.Descriptor)
		}
		if hdr, ok := item.Header.(rinex.ObsHeader); ok {
			st.rcvPos[item.Descriptor] = [3]float64{hdr.Position.X, hdr.Position.Y, hdr.Position.Z}
			st.report.FileSummaries = append(st.report.FileSummaries, FileSummary{
				Descriptor: item.Descriptor.String(),
				FirstEpoch: hdr.TimeOfFirstObs,
				LastEpoch:  hdr.TimeOfLastObs,
			})
		}
	}
}

func (r *Runner) dispatchPreciseState(st *procState, item PreciseStateItem) {
	if r.builder.Enabled(OptOrbitResiduals) || r.builder.Enabled(OptClockResiduals) {
		if res, ok := ComputeOrbitResidual(st.ephBuf, item.State); ok {
			if r.builder.Enabled(OptOrbitResiduals) {
				st.report.OrbitResiduals = append(st.report.OrbitResiduals, *res)
			}
			if r.builder.Enabled(OptClockResiduals) && res.DeltaClock != nil {
				st.report.ClockResiduals = append(st.report.ClockResiduals, *res)
			}
		}
	}
	if r.builder.Enabled(OptSP3TemporalResiduals) {
		r.observeTemporal(st, item)
	}
}

// observeTemporal differences consecutive states of the same (source,
// satellite) into an apparent position rate and clock drift.
func (r *Runner) observeTemporal(st *procState, item PreciseStateItem) {
	key := sourceSatKey{Source: item.Source, Sat: item.State.PRN}
	prev, ok := st.lastSP3[key]
	st.lastSP3[key] = item.State
	if !ok {
		return
	}
	dt := item.State.Epoch.Sub(prev.Epoch)
	if dt <= 0 {
		return
	}
	sec := dt.Seconds()
	res := SP3TemporalResidual{Epoch: item.State.Epoch, Sat: item.State.PRN, Dt: dt}
	for i := 0; i < 3; i++ {
		res.PosRateMS[i] = (item.State.PositionKm[i] - prev.PositionKm[i]) * 1000 / sec
	}
	if item.State.ClockOffset != nil && prev.ClockOffset != nil {
		// SP3 clock offsets are in microseconds.
		rate := (*item.State.ClockOffset - *prev.ClockOffset) * 1e-6 / sec
		res.ClockRate = &rate
	}
	st.report.SP3TemporalResiduals = append(st.report.SP3TemporalResiduals, res)
}

func (r *Runner) dispatchSignal(st *procState, s SignalSample) {
	// Signals for one (source, sat, epoch) arrive contiguously (the
	// stream orders by epoch, source, sat, carrier, kind), so a change of
	// key means the previous group is complete: synthesize its
	// combinations now, before latching overwrites the buffered epoch.
	if r.builder.anyCombination() {
		key := sourceSatKey{Source: s.Source, Sat: s.Sat}
		if st.comboOpen && (key != st.comboKey || !s.Epoch.Equal(st.comboEpoch)) {
			r.flushCombinations(st)
		}
		st.comboKey, st.comboEpoch, st.comboOpen = key, s.Epoch, true
	}

	st.sigBuf.Latch(s)
	st.ephBuf.Advance(s.Epoch)

	if r.wantsRawObservation(s) {
		st.report.Observations = append(st.report.Observations, ObservationSeriesPoint{
			Epoch:  s.Epoch,
			Source: s.Source.String(),
			Sat:    s.Sat,
			Kind:   s.Kind,
			Value:  s.Value,
		})
	}

	if r.builder.Enabled(OptSamplingGapHistogram) {
		key := gapKey{Source: s.Source, Sat: s.Sat, Carrier: s.Carrier, Kind: s.Kind}
		histKey := s.Source.String() + "/" + s.Sat.String() + "/" + s.Carrier.String() + "/" + s.Kind.String()
		hist, ok := st.report.GapHistograms[histKey]
		if !ok {
			hist = NewGapHistogram(gapBucketWidth)
			st.report.GapHistograms[histKey] = hist
		}
		st.gaps.observe(key, s.Epoch, hist)
	}

	if (r.builder.Enabled(OptPseudoRangeResiduals) && s.Kind == gnss.KindPseudorange) ||
		(r.builder.Enabled(OptPhaseResiduals) && s.Kind == gnss.KindCarrierPhase) {
		r.observeSignalResiduals(st, s)
	}

	if r.builder.Enabled(OptNaviPlot) {
		r.observeNaviPlot(st, s)
	}

	if r.builder.Solver() != nil && (r.builder.Enabled(OptPVT) || r.builder.Enabled(OptCGGTTS)) {
		r.batchPVT(st, s)
	}
}

// flushCombinations synthesizes every enabled combination for the
// completed (source, sat, epoch) group, exactly once per group.
func (r *Runner) flushCombinations(st *procState) {
	if !st.comboOpen {
		return
	}
	st.comboOpen = false
	combos := synthesizeCombinations(st.sigBuf, r.builder, st.comboKey.Source, st.comboKey.Sat, st.comboEpoch)
	st.report.Combinations = append(st.report.Combinations, combos...)
}

// observeSignalResiduals differences s against every other source holding
// a co-temporal reading on the same (satellite, carrier, kind). Each
// cross-source pair is emitted exactly once, stamped when its
// higher-ordered member arrives — signals are ordered by (epoch, source,
// ...), so the lower-ordered source is always buffered by then.
func (r *Runner) observeSignalResiduals(st *procState, s SignalSample) {
	for _, other := range st.sigBuf.CoTemporalSources(s.Sat, s.Carrier, s.Kind, s.Epoch) {
		if !other.Less(s.Source) {
			continue
		}
		v, ok := st.sigBuf.At(other, s.Sat, s.Carrier, s.Kind, s.Epoch)
		if !ok {
			continue
		}
		st.report.SignalResiduals = append(st.report.SignalResiduals, SignalResidual{
			Epoch:   s.Epoch,
			Sat:     s.Sat,
			Carrier: s.Carrier,
			Kind:    s.Kind,
			SourceA: other.String(),
			SourceB: s.Source.String(),
			Delta:   v - s.Value,
		})
	}
}

// observeNaviPlot emits the navi-plot projections reachable from one
// signal: every power reading becomes an SNR point, and the first signal
// per (source, satellite, epoch) becomes an elevation point when both a
// marker position and a valid Keplerian ephemeris are at hand.
func (r *Runner) observeNaviPlot(st *procState, s SignalSample) {
	if s.Kind == gnss.KindSignalStrength {
		st.report.Projections = append(st.report.Projections, Projection{
			Name: "snr", Epoch: s.Epoch, Sat: s.Sat, Value: s.Value,
		})
	}

	key := sourceSatKey{Source: s.Source, Sat: s.Sat}
	if last, ok := st.lastElev[key]; ok && last.Equal(s.Epoch) {
		return
	}
	pos, ok := st.rcvPos[s.Source]
	if !ok || (pos[0] == 0 && pos[1] == 0 && pos[2] == 0) {
		return
	}
	eph, ok := st.ephBuf.BestFor(s.Sat, s.Epoch)
	if !ok {
		return
	}
	kep, ok := eph.(*rinex.KeplerianEph)
	if !ok {
		return
	}
	brdc, err := KeplerianState(kep, s.Epoch)
	if err != nil {
		return
	}
	st.lastElev[key] = s.Epoch
	st.report.Projections = append(st.report.Projections, Projection{
		Name: "elevation", Epoch: s.Epoch, Sat: s.Sat,
		Value: elevationDeg(pos, brdc.PositionKm),
	})
}

// elevationDeg returns the elevation angle in degrees of a satellite over
// the local horizon at rcvM, both ECEF, using the spherical-normal
// approximation (the local up direction taken as the geocentric radial).
func elevationDeg(rcvM [3]float64, satKm [3]float64) float64 {
	var d [3]float64
	for i := 0; i < 3; i++ {
		d[i] = satKm[i]*1000 - rcvM[i]
	}
	rn := math.Sqrt(rcvM[0]*rcvM[0] + rcvM[1]*rcvM[1] + rcvM[2]*rcvM[2])
	dn := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
	if rn == 0 || dn == 0 {
		return 0
	}
	sinEl := (d[0]*rcvM[0] + d[1]*rcvM[1] + d[2]*rcvM[2]) / (rn * dn)
	return math.Asin(sinEl) * 180 / math.Pi
}

// batchPVT accumulates the signals of one epoch; the batch is solved when
// the stream advances to the next epoch (signals arrive epoch-major).
func (r *Runner) batchPVT(st *procState, s SignalSample) {
	if len(st.pvtSamples) > 0 && !st.pvtEpoch.Equal(s.Epoch) {
		r.flushPVT(st)
	}
	st.pvtEpoch = s.Epoch
	st.pvtSamples = append(st.pvtSamples, s)
}

func (r *Runner) flushPVT(st *procState) {
	if len(st.pvtSamples) == 0 {
		return
	}
	sol, err := r.builder.Solver().Solve(st.pvtEpoch, st.pvtSamples, st.ephBuf)
	st.pvtSamples = st.pvtSamples[:0]
	if err != nil {
		log.WithError(err).WithField("epoch", st.pvtEpoch).Warn("qc: pvt solve failed")
		return
	}
	if r.builder.Enabled(OptPVT) {
		st.report.PVTSolutions = append(st.report.PVTSolutions, sol)
	}
	if r.builder.Enabled(OptCGGTTS) {
		st.cggtts.observe(st.report, sol)
	}
}

// cggttsWindow accumulates PVT receiver-clock solutions into standard
// 780 s common-view tracks.
type cggttsWindow struct {
	start time.Time
	n     int
	sum   float64
}

func (w *cggttsWindow) observe(report *RunReport, sol PVTSolution) {
	if w.n > 0 && sol.Epoch.Sub(w.start) >= cggttsTrackDuration {
		w.flush(report)
	}
	if w.n == 0 {
		w.start = sol.Epoch
	}
	w.n++
	w.sum += sol.ClockOffset
}

func (w *cggttsWindow) flush(report *RunReport) {
	if w.n == 0 {
		return
	}
	report.CGGTTSTracks = append(report.CGGTTSTracks, CGGTTSTrack{
		StartEpoch:      w.start,
		Duration:        cggttsTrackDuration,
		Solutions:       w.n,
		MeanClockOffset: w.sum / float64(w.n),
	})
	w.n, w.sum = 0, 0
}

func (r *Runner) wantsRawObservation(s SignalSample) bool {
	switch s.Kind {
	case gnss.KindCarrierPhase:
		return r.builder.Enabled(OptPhaseObservations)
	case gnss.KindPseudorange:
		return r.builder.Enabled(OptPseudoRangeObservations)
	case gnss.KindDoppler:
		return r.builder.Enabled(OptDopplerObservations)
	case gnss.KindSignalStrength:
		return r.builder.Enabled(OptPowerObservations)
	default:
		return false
	}
}
