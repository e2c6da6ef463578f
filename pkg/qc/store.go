package qc

import (
	"sort"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/de-bkg/gognss/pkg/rinex"
	"github.com/de-bkg/gognss/pkg/sp3"
)

// DataSet wraps all samples loaded for one (ProductType, IndexKey) slot. It
// is implemented by rinexDataSet (every pkg/rinex record family) and
// sp3DataSet (precise orbit/clock), plus a placeholderDataSet for the
// out-of-scope-for-parsing IONEX/ANTEX/DORIS product types.
type DataSet interface {
	// FirstEpoch and LastEpoch return the min/max temporal sample in the
	// set. ok is false for non-temporal products.
	FirstEpoch() (t time.Time, ok bool)
	LastEpoch() (t time.Time, ok bool)

	// Merge folds other into the receiver in place. It fails with
	// ErrMerge if the dynamic types are incompatible.
	Merge(other DataSet) error

	// kind names the concrete payload type, used by Merge's
	// compatibility check.
	kind() string
}

// rinexDataSet wraps exactly one of the pkg/rinex record families.
type rinexDataSet struct {
	Obs   *rinex.ObsRecord
	Nav   *rinex.NavRecord
	Meteo *rinex.MeteoRecord
	Clock *rinex.ClockRecord

	// timescale is the dataset's current timescale once a TransposeMut
	// pass has rewritten its timestamps; Unknown until then, meaning the
	// source timescale is still the one derivable from the header/records.
	timescale gnss.Timescale
}

func (ds *rinexDataSet) kind() string {
	switch {
	case ds.Obs != nil:
		return "obs"
	case ds.Nav != nil:
		return "nav"
	case ds.Meteo != nil:
		return "meteo"
	case ds.Clock != nil:
		return "clock"
	default:
		return "empty-rinex"
	}
}

func (ds *rinexDataSet) FirstEpoch() (time.Time, bool) {
	switch {
	case ds.Obs != nil && len(ds.Obs.Epochs) > 0:
		return firstOf(epochTimes(ds.Obs.Epochs)), true
	case ds.Nav != nil && len(ds.Nav.Ephemerides) > 0:
		return firstEphTOC(ds.Nav.Ephemerides), true
	case ds.Meteo != nil && len(ds.Meteo.Epochs) > 0:
		return firstOf(meteoTimes(ds.Meteo.Epochs)), true
	default:
		return time.Time{}, false
	}
}

func (ds *rinexDataSet) LastEpoch() (time.Time, bool) {
	switch {
	case ds.Obs != nil && len(ds.Obs.Epochs) > 0:
		return lastOf(epochTimes(ds.Obs.Epochs)), true
	case ds.Nav != nil && len(ds.Nav.Ephemerides) > 0:
		return lastEphTOC(ds.Nav.Ephemerides), true
	case ds.Meteo != nil && len(ds.Meteo.Epochs) > 0:
		return lastOf(meteoTimes(ds.Meteo.Epochs)), true
	default:
		return time.Time{}, false
	}
}

// Merge appends other's samples into the receiver. Succeeds iff both sides
// carry the same concrete record family.
func (ds *rinexDataSet) Merge(other DataSet) error {
	o, ok := other.(*rinexDataSet)
	if !ok || o.kind() != ds.kind() {
		return newError(KindMerge, "incompatible rinex dataset kinds", nil)
	}
	switch {
	case ds.Obs != nil:
		ds.Obs.Epochs = append(ds.Obs.Epochs, o.Obs.Epochs...)
	case ds.Nav != nil:
		ds.Nav.Ephemerides = append(ds.Nav.Ephemerides, o.Nav.Ephemerides...)
	case ds.Meteo != nil:
		ds.Meteo.Epochs = append(ds.Meteo.Epochs, o.Meteo.Epochs...)
	case ds.Clock != nil:
		// Header-only dataset: nothing to append, both contributions agree
		// to co-exist under the same key.
	default:
		return newError(KindMerge, "empty rinex dataset", nil)
	}
	return nil
}

// sp3DataSet wraps a precise orbit/clock (SP3) contribution.
type sp3DataSet struct {
	Header *sp3.Header
	States []sp3.PreciseState
}

func (ds *sp3DataSet) kind() string { return "sp3" }

func (ds *sp3DataSet) FirstEpoch() (time.Time, bool) {
	if len(ds.States) == 0 {
		return time.Time{}, false
	}
	min := ds.States[0].Epoch
	for _, s := range ds.States[1:] {
		if s.Epoch.Before(min) {
			min = s.Epoch
		}
	}
	return min, true
}

func (ds *sp3DataSet) LastEpoch() (time.Time, bool) {
	if len(ds.States) == 0 {
		return time.Time{}, false
	}
	max := ds.States[0].Epoch
	for _, s := range ds.States[1:] {
		if s.Epoch.After(max) {
			max = s.Epoch
		}
	}
	return max, true
}

func (ds *sp3DataSet) Merge(other DataSet) error {
	o, ok := other.(*sp3DataSet)
	if !ok {
		return newError(KindMerge, "incompatible sp3 dataset kind", nil)
	}
	ds.States = append(ds.States, o.States...)
	return nil
}

// placeholderDataSet satisfies DataSet for the out-of-scope-for-parsing
// IONEX/ANTEX/DORIS product types: it carries an
// opaque blob so ProductType stays total and callers may register
// pre-parsed data, but no analysis consumes it.
type placeholderDataSet struct {
	Product ProductType
	Blob    []byte
}

func (ds *placeholderDataSet) kind() string                 { return "placeholder:" + ds.Product.String() }
func (ds *placeholderDataSet) FirstEpoch() (time.Time, bool) { return time.Time{}, false }
func (ds *placeholderDataSet) LastEpoch() (time.Time, bool)  { return time.Time{}, false }
func (ds *placeholderDataSet) Merge(other DataSet) error {
	o, ok := other.(*placeholderDataSet)
	if !ok || o.Product != ds.Product {
		return newError(KindMerge, "incompatible placeholder dataset kinds", nil)
	}
	ds.Blob = append(ds.Blob, o.Blob...)
	return nil
}

// storeKey is DataStore's map key: (ProductType, IndexKey).
type storeKey struct {
	Product ProductType
	Index   IndexKey
}

// DataStore owns every loaded dataset, keyed by (ProductType, IndexKey).
// A second Load under an existing key merges into the stored DataSet
// rather than replacing it; the store is atomic on
// merge failure.
type DataStore struct {
	data  map[storeKey]DataSet
	descs map[storeKey]SourceDescriptor // first-loaded descriptor per key, for header emission; a merge does not replace it

	flaggedNoTimescale []SourceDescriptor // set by Transposer.TransposeMut, surfaced in the report summary
}

// NewDataStore returns an empty DataStore.
func NewDataStore() *DataStore {
	return &DataStore{
		data:  make(map[storeKey]DataSet),
		descs: make(map[storeKey]SourceDescriptor),
	}
}

// Load registers dataset under descriptor's (ProductType, IndexKey). On
// collision it merges; the store is left unchanged if the merge fails.
func (s *DataStore) Load(desc SourceDescriptor, dataset DataSet) error {
	key := storeKey{Product: desc.Product, Index: desc.Index}
	if existing, ok := s.data[key]; ok {
		if err := existing.Merge(dataset); err != nil {
			return err
		}
		return nil
	}
	s.data[key] = dataset
	s.descs[key] = desc
	return nil
}

// Get returns the DataSet stored for (product, index), if any.
func (s *DataStore) Get(product ProductType, index IndexKey) (DataSet, bool) {
	ds, ok := s.data[storeKey{Product: product, Index: index}]
	return ds, ok
}

// indexedDataSet pairs an IndexKey with its DataSet, the Iter element type.
type indexedDataSet struct {
	Index IndexKey
	Set   DataSet
}

// Iter returns every (IndexKey, DataSet) stored for product, in stable
// IndexKey order.
func (s *DataStore) Iter(product ProductType) []indexedDataSet {
	var out []indexedDataSet
	for key, ds := range s.data {
		if key.Product == product {
			out = append(out, indexedDataSet{Index: key.Index, Set: ds})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index.Less(out[j].Index) })
	return out
}

// Descriptors returns every SourceDescriptor currently stored, in
// header-emission order: by ProductType, then IndexKey, then Filename.
func (s *DataStore) Descriptors() []SourceDescriptor {
	out := make([]SourceDescriptor, 0, len(s.descs))
	for _, d := range s.descs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// DataSetFor returns the DataSet registered under desc's key.
func (s *DataStore) DataSetFor(desc SourceDescriptor) (DataSet, bool) {
	return s.Get(desc.Product, desc.Index)
}

// FirstEpoch returns the minimum temporal sample across every stored
// dataset.
func (s *DataStore) FirstEpoch() (time.Time, bool) {
	var min time.Time
	found := false
	for _, ds := range s.data {
		if t, ok := ds.FirstEpoch(); ok {
			if !found || t.Before(min) {
				min = t
				found = true
			}
		}
	}
	return min, found
}

// LastEpoch returns the maximum temporal sample across every stored
// dataset.
func (s *DataStore) LastEpoch() (time.Time, bool) {
	var max time.Time
	found := false
	for _, ds := range s.data {
		if t, ok := ds.LastEpoch(); ok {
			if !found || t.After(max) {
				max = t
				found = true
			}
		}
	}
	return max, found
}

// TotalDuration returns LastEpoch - FirstEpoch, or (0, false) when either
// is undefined.
func (s *DataStore) TotalDuration() (time.Duration, bool) {
	first, ok1 := s.FirstEpoch()
	last, ok2 := s.LastEpoch()
	if !ok1 || !ok2 {
		return 0, false
	}
	return last.Sub(first), true
}

// FlaggedNoTimescale returns the descriptors a TransposeMut pass left
// unchanged because no source timescale was derivable.
func (s *DataStore) FlaggedNoTimescale() []SourceDescriptor {
	return s.flaggedNoTimescale
}

// IsNavigationCompatible reports whether the store carries both an
// observation dataset and a broadcast-navigation or precise-orbit
// dataset, the minimum needed for orbit/clock residuals or PVT.
func (s *DataStore) IsNavigationCompatible() bool {
	hasObs := len(s.Iter(ProductObservation)) > 0
	hasNav := len(s.Iter(ProductBroadcastNavigation)) > 0
	hasOrbit := len(s.Iter(ProductPreciseOrbit)) > 0
	return hasObs && (hasNav || hasOrbit)
}

func epochTimes(epochs []rinex.Epoch) []time.Time {
	out := make([]time.Time, len(epochs))
	for i, e := range epochs {
		out[i] = e.Time
	}
	return out
}

func meteoTimes(epochs []rinex.MeteoEpoch) []time.Time {
	out := make([]time.Time, len(epochs))
	for i, e := range epochs {
		out[i] = e.Time
	}
	return out
}

func firstEphTOC(ephs []rinex.Eph) time.Time {
	min := ephs[0].TOC()
	for _, e := range ephs[1:] {
		if e.TOC().Before(min) {
			min = e.TOC()
		}
	}
	return min
}

func lastEphTOC(ephs []rinex.Eph) time.Time {
	max := ephs[0].TOC()
	for _, e := range ephs[1:] {
		if e.TOC().After(max) {
			max = e.TOC()
		}
	}
	return max
}

func firstOf(ts []time.Time) time.Time {
	min := ts[0]
	for _, t := range ts[1:] {
		if t.Before(min) {
			min = t
		}
	}
	return min
}

func lastOf(ts []time.Time) time.Time {
	max := ts[0]
	for _, t := range ts[1:] {
		if t.After(max) {
			max = t
		}
	}
	return max
}
