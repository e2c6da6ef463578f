package qc

import (
	"sort"
	"time"

	"github.com/de-bkg/gognss/pkg/rinex"
)

// Filter selects which temporal samples Mask keeps. It is evaluated once
// per sample; returning false drops the sample.
type Filter func(t time.Time) bool

// RepairPolicy controls how Repair treats malformed or duplicate epochs
// within a DataSet.
type RepairPolicy int

const (
	// RepairDropDuplicates removes epochs sharing an identical timestamp
	// with an earlier epoch in the same dataset, keeping the first.
	RepairDropDuplicates RepairPolicy = iota
	// RepairSortOnly only restores chronological order, without removing
	// anything.
	RepairSortOnly
)

// Mask mutates the store in place, keeping only temporal samples for
// which filter returns true.
func (s *DataStore) Mask(filter Filter) {
	for _, ds := range s.data {
		switch d := ds.(type) {
		case *rinexDataSet:
			maskRinex(d, filter)
		case *sp3DataSet:
			kept := d.States[:0]
			for _, st := range d.States {
				if filter(st.Epoch) {
					kept = append(kept, st)
				}
			}
			d.States = kept
		}
	}
}

func maskRinex(d *rinexDataSet, filter Filter) {
	if d.Obs != nil {
		kept := d.Obs.Epochs[:0]
		for _, e := range d.Obs.Epochs {
			if filter(e.Time) {
				kept = append(kept, e)
			}
		}
		d.Obs.Epochs = kept
	}
	if d.Nav != nil {
		kept := d.Nav.Ephemerides[:0]
		for _, e := range d.Nav.Ephemerides {
			if filter(e.TOC()) {
				kept = append(kept, e)
			}
		}
		d.Nav.Ephemerides = kept
	}
	if d.Meteo != nil {
		kept := d.Meteo.Epochs[:0]
		for _, e := range d.Meteo.Epochs {
			if filter(e.Time) {
				kept = append(kept, e)
			}
		}
		d.Meteo.Epochs = kept
	}
}

// Decimate mutates the store in place, keeping only samples whose
// timestamp falls on an interval boundary relative to the store's
// FirstEpoch.
func (s *DataStore) Decimate(interval time.Duration) {
	if interval <= 0 {
		return
	}
	first, ok := s.FirstEpoch()
	if !ok {
		return
	}
	s.Mask(func(t time.Time) bool {
		return t.Sub(first)%interval == 0
	})
}

// Split partitions every dataset in the store at the given instant,
// returning two new stores: one with samples strictly before at, one
// with samples at-or-after. The receiver is left unmodified.
func (s *DataStore) Split(at time.Time) (before, after *DataStore) {
	before, after = NewDataStore(), NewDataStore()
	for key, ds := range s.data {
		b, a := splitDataSet(ds, at)
		desc := s.descs[key]
		before.data[key] = b
		before.descs[key] = desc
		after.data[key] = a
		after.descs[key] = desc
	}
	return before, after
}

func splitDataSet(ds DataSet, at time.Time) (before, after DataSet) {
	switch d := ds.(type) {
	case *rinexDataSet:
		b := &rinexDataSet{}
		a := &rinexDataSet{}
		if d.Obs != nil {
			bh, ah := d.Obs.Header, d.Obs.Header
			var be, ae []rinex.Epoch
			for _, e := range d.Obs.Epochs {
				if e.Time.Before(at) {
					be = append(be, e)
				} else {
					ae = append(ae, e)
				}
			}
			b.Obs = &rinex.ObsRecord{Header: bh, Epochs: be}
			a.Obs = &rinex.ObsRecord{Header: ah, Epochs: ae}
		}
		if d.Nav != nil {
			bh, ah := d.Nav.Header, d.Nav.Header
			var be, ae []rinex.Eph
			for _, e := range d.Nav.Ephemerides {
				if e.TOC().Before(at) {
					be = append(be, e)
				} else {
					ae = append(ae, e)
				}
			}
			b.Nav = &rinex.NavRecord{Header: bh, Ephemerides: be}
			a.Nav = &rinex.NavRecord{Header: ah, Ephemerides: ae}
		}
		if d.Meteo != nil {
			bh, ah := d.Meteo.Header, d.Meteo.Header
			var be, ae []rinex.MeteoEpoch
			for _, e := range d.Meteo.Epochs {
				if e.Time.Before(at) {
					be = append(be, e)
				} else {
					ae = append(ae, e)
				}
			}
			b.Meteo = &rinex.MeteoRecord{Header: bh, Epochs: be}
			a.Meteo = &rinex.MeteoRecord{Header: ah, Epochs: ae}
		}
		if d.Clock != nil {
			b.Clock, a.Clock = d.Clock, d.Clock
		}
		return b, a
	case *sp3DataSet:
		b := &sp3DataSet{Header: d.Header}
		a := &sp3DataSet{Header: d.Header}
		for _, st := range d.States {
			if st.Epoch.Before(at) {
				b.States = append(b.States, st)
			} else {
				a.States = append(a.States, st)
			}
		}
		return b, a
	default:
		return ds, ds
	}
}

// Repair mutates the store in place per policy, restoring chronological
// order within every observation dataset and optionally dropping
// duplicate-timestamp epochs. Other datasets are left unchanged.
func (s *DataStore) Repair(policy RepairPolicy) {
	for _, ds := range s.data {
		d, ok := ds.(*rinexDataSet)
		if !ok || d.Obs == nil {
			continue
		}
		sortEpochsByTime(d.Obs.Epochs)
		if policy == RepairDropDuplicates {
			d.Obs.Epochs = dedupEpochs(d.Obs.Epochs)
		}
	}
}

func sortEpochsByTime(epochs []rinex.Epoch) {
	sort.Slice(epochs, func(i, j int) bool { return epochs[i].Time.Before(epochs[j].Time) })
}

func dedupEpochs(epochs []rinex.Epoch) []rinex.Epoch {
	out := epochs[:0]
	var last time.Time
	first := true
	for _, e := range epochs {
		if first || !e.Time.Equal(last) {
			out = append(out, e)
			last = e.Time
			first = false
		}
	}
	return out
}
