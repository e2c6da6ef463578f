package qc

import (
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
	"gonum.org/v1/gonum/floats"
)

// TimePolynomial maps one timescale into another near a reference epoch:
// t' = t + a0 + a1*(t-ref) + a2*(t-ref)^2.
type TimePolynomial struct {
	RefEpoch       time.Time
	Source, Target gnss.Timescale
	A0, A1, A2     float64 // seconds, seconds/second, seconds/second^2
}

// evaluate returns a0 + a1*dt + a2*dt^2 using gonum/floats.Dot for the
// polynomial evaluation.
func (p TimePolynomial) evaluate(dt float64) float64 {
	return floats.Dot([]float64{1, dt, dt * dt}, []float64{p.A0, p.A1, p.A2})
}

// Transposer recomputes timestamps into a target timescale using a set of
// TimePolynomials extracted from navigation headers.
type Transposer struct {
	target gnss.Timescale
	polys  map[gnss.Timescale]TimePolynomial // keyed by Source
}

// NewTransposer returns a Transposer targeting target, seeded with polys.
// Only polynomials whose Target matches target are retained.
func NewTransposer(target gnss.Timescale, polys []TimePolynomial) *Transposer {
	t := &Transposer{target: target, polys: make(map[gnss.Timescale]TimePolynomial)}
	for _, p := range polys {
		if p.Target == target {
			t.polys[p.Source] = p
		}
	}
	return t
}

// Correct returns t reinterpreted into the Transposer's target timescale:
// t + polynomial(t) when a bridging polynomial source->target exists,
// otherwise t unchanged.
func (tr *Transposer) Correct(t time.Time, source gnss.Timescale) time.Time {
	if source == tr.target || source == gnss.TimescaleUnknown {
		return t
	}
	p, ok := tr.polys[source]
	if !ok {
		return t
	}
	dt := t.Sub(p.RefEpoch).Seconds()
	corr := p.evaluate(dt)
	return t.Add(time.Duration(corr * float64(time.Second)))
}

// TransposeMut applies the Transposer to every timestamp of every owned
// dataset in store — RINEX and precise-orbit alike, per spec.md §4.8 —
// deriving each dataset's source timescale from its own header/record
// fields. Datasets with no derivable source timescale (a "Mixed"
// SatSystem, meteo data which carries no satellite system at all, or an
// SP3 file whose %c header line carries no recognized time system) are
// left unchanged and their descriptor is returned in flagged; the store
// also remembers them, so a later Runner.Process surfaces the flags in
// the report summary.
//
// Each transposed dataset records the target as its current timescale
// (rinexDataSet.timescale, sp3.Header.Timescale), so re-running with the
// same target is a no-op rather than a compounding second correction.
func (tr *Transposer) TransposeMut(store *DataStore) (flagged []SourceDescriptor) {
	for key, ds := range store.data {
		switch d := ds.(type) {
		case *rinexDataSet:
			switch {
			case d.Obs != nil:
				source := d.timescale
				if source == gnss.TimescaleUnknown {
					var ok bool
					source, ok = d.Obs.Header.SatSystem.Timescale()
					if !ok {
						flagged = append(flagged, store.descs[key])
						continue
					}
				}
				d.Obs.Header.TimeOfFirstObs = tr.Correct(d.Obs.Header.TimeOfFirstObs, source)
				d.Obs.Header.TimeOfLastObs = tr.Correct(d.Obs.Header.TimeOfLastObs, source)
				for i := range d.Obs.Epochs {
					d.Obs.Epochs[i].Time = tr.Correct(d.Obs.Epochs[i].Time, source)
				}
				d.timescale = tr.target
			case d.Nav != nil:
				if d.timescale == tr.target {
					continue
				}
				// Each ephemeris carries its own satellite, and hence its own
				// native timescale, independent of the header's SatSystem (which
				// may be "Mixed") — unless an earlier pass already rewrote the
				// whole dataset into one timescale.
				for _, eph := range d.Nav.Ephemerides {
					source := d.timescale
					if source == gnss.TimescaleUnknown {
						var ok bool
						source, ok = eph.PRN().Sys.Timescale()
						if !ok {
							continue
						}
					}
					eph.SetTOC(tr.Correct(eph.TOC(), source))
				}
				d.timescale = tr.target
			case d.Meteo != nil:
				// Meteo sensors have no associated satellite system: no source
				// timescale is derivable, so every meteo dataset is flagged.
				flagged = append(flagged, store.descs[key])
			}
		case *sp3DataSet:
			if d.Header == nil || d.Header.Timescale == gnss.TimescaleUnknown {
				flagged = append(flagged, store.descs[key])
				continue
			}
			for i := range d.States {
				d.States[i].Epoch = tr.Correct(d.States[i].Epoch, d.Header.Timescale)
			}
			d.Header.Timescale = tr.target
		}
	}
	for _, f := range flagged {
		seen := false
		for _, have := range store.flaggedNoTimescale {
			if have == f {
				seen = true
				break
			}
		}
		if !seen {
			store.flaggedNoTimescale = append(store.flaggedNoTimescale, f)
		}
	}
	return flagged
}
