package qc

import (
	"container/heap"
	"sort"

	"github.com/de-bkg/gognss/pkg/rinex"
	"github.com/de-bkg/gognss/pkg/sp3"
)

// serializerPhase enumerates the Serializer's sub-phases, in emission
// order.
type serializerPhase int

const (
	phaseHeaders serializerPhase = iota
	phaseEphemeris
	phasePreciseStates
	phaseSignals
	phaseDone
)

// HeaderItem is emitted once per loaded file, in SourceDescriptor order,
// RINEX datasets before precise-orbit datasets.
type HeaderItem struct {
	Descriptor SourceDescriptor
	Header     interface{}
}

// EphemerisItem pairs a broadcast ephemeris with the source it came from.
type EphemerisItem struct {
	Eph    rinex.Eph
	Source SourceDescriptor
}

// PreciseStateItem pairs a precise state with the source it came from.
type PreciseStateItem struct {
	State  sp3.PreciseState
	Source SourceDescriptor
}

// SerializedItem is the union type one Serializer.Next() call returns: at
// most one of the four fields is non-nil.
type SerializedItem struct {
	Header       *HeaderItem
	Ephemeris    *EphemerisItem
	PreciseState *PreciseStateItem
	Signal       *SignalSample
}

// Serializer draws a single, deterministically-ordered sequence of typed
// records out of every dataset held by a DataStore: headers,
// then ephemerides, then precise states, then signal samples. It is a
// pull iterator: each Next() call advances internal per-phase cursors and
// returns exactly one item, or (zero, false) once exhausted.
//
// Given identical DataStore contents, two Serializer traversals produce
// byte-identical sequences — every sub-phase is either already sorted,
// or merged via a priority heap over per-source cursors, which keeps the
// ordering auditable (one comparator per phase, rather than an ad-hoc
// interleave).
type Serializer struct {
	phase serializerPhase

	headers []HeaderItem
	headerI int

	ephemerides []EphemerisItem
	ephI        int

	preciseStates []PreciseStateItem
	preciseI      int

	signals []SignalSample
	sigI    int

	malformed int // observation codes that couldn't be classified during buildSignals
}

// MalformedCount returns the number of records skipped while assembling
// the stream — currently unclassifiable observation codes encountered
// in buildSignals (spec.md §7: "per-record malformations degrade
// gracefully, record skipped, counter incremented in the Report").
func (s *Serializer) MalformedCount() int { return s.malformed }

// NewSerializer builds a Serializer over every dataset currently held by
// store. The store must not be mutated for the lifetime of the returned
// Serializer.
func NewSerializer(store *DataStore) *Serializer {
	s := &Serializer{}
	s.buildHeaders(store)
	s.buildEphemerides(store)
	s.buildPreciseStates(store)
	s.buildSignals(store)
	return s
}

func (s *Serializer) buildHeaders(store *DataStore) {
	descs := store.Descriptors()
	// RINEX datasets before precise-orbit, within each category ordered by
	// SourceDescriptor — Descriptors() is already sorted by
	// (ProductType, IndexKey, Filename), and every product that yields a
	// RINEX header (Observation, MeteoObservation, BroadcastNavigation,
	// PreciseClock) precedes ProductPreciseOrbit; IONEX/ANTEX/DORIS
	// placeholders yield no header.
	for _, desc := range descs {
		ds, ok := store.DataSetFor(desc)
		if !ok {
			continue
		}
		hdr := headerOf(ds)
		if hdr != nil {
			s.headers = append(s.headers, HeaderItem{Descriptor: desc, Header: hdr})
		}
	}
}

func headerOf(ds DataSet) interface{} {
	switch d := ds.(type) {
	case *rinexDataSet:
		switch {
		case d.Obs != nil:
			return d.Obs.Header
		case d.Nav != nil:
			return d.Nav.Header
		case d.Meteo != nil:
			return d.Meteo.Header
		case d.Clock != nil:
			return d.Clock.Header
		}
	case *sp3DataSet:
		return d.Header
	}
	return nil
}

func (s *Serializer) buildEphemerides(store *DataStore) {
	type cursorList = []EphemerisItem
	var lists []cursorList
	for _, ids := range store.Iter(ProductBroadcastNavigation) {
		d, ok := ids.Set.(*rinexDataSet)
		if !ok || d.Nav == nil {
			continue
		}
		desc := descriptorFor(store, ProductBroadcastNavigation, ids.Index)
		items := make(cursorList, len(d.Nav.Ephemerides))
		for i, e := range d.Nav.Ephemerides {
			items[i] = EphemerisItem{Eph: e, Source: desc}
		}
		sort.Slice(items, func(i, j int) bool { return ephemerisLess(items[i], items[j]) })
		lists = append(lists, items)
	}
	s.ephemerides = kWayMerge(lists, ephemerisLess)
}

func ephemerisLess(a, b EphemerisItem) bool {
	if !a.Eph.TOC().Equal(b.Eph.TOC()) {
		return a.Eph.TOC().Before(b.Eph.TOC())
	}
	if a.Eph.PRN() != b.Eph.PRN() {
		return a.Eph.PRN().Less(b.Eph.PRN())
	}
	return a.Source.Less(b.Source)
}

func (s *Serializer) buildPreciseStates(store *DataStore) {
	var lists [][]PreciseStateItem
	for _, ids := range store.Iter(ProductPreciseOrbit) {
		d, ok := ids.Set.(*sp3DataSet)
		if !ok {
			continue
		}
		desc := descriptorFor(store, ProductPreciseOrbit, ids.Index)
		items := make([]PreciseStateItem, len(d.States))
		for i, st := range d.States {
			items[i] = PreciseStateItem{State: st, Source: desc}
		}
		sort.Slice(items, func(i, j int) bool { return preciseStateLess(items[i], items[j]) })
		lists = append(lists, items)
	}
	s.preciseStates = kWayMerge(lists, preciseStateLess)
}

func preciseStateLess(a, b PreciseStateItem) bool {
	if !a.State.Epoch.Equal(b.State.Epoch) {
		return a.State.Epoch.Before(b.State.Epoch)
	}
	if a.State.PRN != b.State.PRN {
		return a.State.PRN.Less(b.State.PRN)
	}
	return a.Source.Less(b.Source)
}

func (s *Serializer) buildSignals(store *DataStore) {
	var lists [][]SignalSample
	for _, ids := range store.Iter(ProductObservation) {
		d, ok := ids.Set.(*rinexDataSet)
		if !ok || d.Obs == nil {
			continue
		}
		desc := descriptorFor(store, ProductObservation, ids.Index)
		var items []SignalSample
		for _, epo := range d.Obs.Epochs {
			samples, skipped := signalSamplesFromEpoch(desc, epo)
			items = append(items, samples...)
			s.malformed += skipped
		}
		sort.Slice(items, func(i, j int) bool { return signalSampleLess(items[i], items[j]) })
		lists = append(lists, items)
	}
	s.signals = kWayMerge(lists, signalSampleLess)
}

func signalSampleLess(a, b SignalSample) bool {
	if !a.Epoch.Equal(b.Epoch) {
		return a.Epoch.Before(b.Epoch)
	}
	if a.Source != b.Source {
		return a.Source.Less(b.Source)
	}
	if a.Sat != b.Sat {
		return a.Sat.Less(b.Sat)
	}
	if a.Carrier != b.Carrier {
		return a.Carrier < b.Carrier
	}
	return a.Kind < b.Kind
}

func descriptorFor(store *DataStore, product ProductType, index IndexKey) SourceDescriptor {
	for _, d := range store.Descriptors() {
		if d.Product == product && d.Index == index {
			return d
		}
	}
	return SourceDescriptor{Product: product, Index: index}
}

// Next returns the next item in the stream, or (zero, false) once every
// sub-phase is exhausted.
func (s *Serializer) Next() (SerializedItem, bool) {
	for {
		switch s.phase {
		case phaseHeaders:
			if s.headerI < len(s.headers) {
				h := s.headers[s.headerI]
				s.headerI++
				return SerializedItem{Header: &h}, true
			}
			s.phase = phaseEphemeris
		case phaseEphemeris:
			if s.ephI < len(s.ephemerides) {
				e := s.ephemerides[s.ephI]
				s.ephI++
				return SerializedItem{Ephemeris: &e}, true
			}
			s.phase = phasePreciseStates
		case phasePreciseStates:
			if s.preciseI < len(s.preciseStates) {
				p := s.preciseStates[s.preciseI]
				s.preciseI++
				return SerializedItem{PreciseState: &p}, true
			}
			s.phase = phaseSignals
		case phaseSignals:
			if s.sigI < len(s.signals) {
				sig := s.signals[s.sigI]
				s.sigI++
				return SerializedItem{Signal: &sig}, true
			}
			s.phase = phaseDone
		case phaseDone:
			return SerializedItem{}, false
		}
	}
}

// --- generic k-way merge over a priority heap ---

type mergeItem[T any] struct {
	val              T
	listIdx, elemIdx int
}

type mergeHeap[T any] struct {
	items []mergeItem[T]
	less  func(a, b T) bool
}

func (h *mergeHeap[T]) Len() int { return len(h.items) }
func (h *mergeHeap[T]) Less(i, j int) bool {
	return h.less(h.items[i].val, h.items[j].val)
}
func (h *mergeHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap[T]) Push(x any)    { h.items = append(h.items, x.(mergeItem[T])) }
func (h *mergeHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// kWayMerge merges already-sorted lists into one sorted slice using a
// priority heap over per-list cursors: O(N log K) instead of the
// O(N*K) an ad-hoc interleave would cost, and auditable (one
// comparator, one heap).
func kWayMerge[T any](lists [][]T, less func(a, b T) bool) []T {
	h := &mergeHeap[T]{less: less}
	total := 0
	for li, list := range lists {
		total += len(list)
		if len(list) > 0 {
			heap.Push(h, mergeItem[T]{val: list[0], listIdx: li, elemIdx: 0})
		}
	}
	out := make([]T, 0, total)
	for h.Len() > 0 {
		top := heap.Pop(h).(mergeItem[T])
		out = append(out, top.val)
		next := top.elemIdx + 1
		if next < len(lists[top.listIdx]) {
			heap.Push(h, mergeItem[T]{val: lists[top.listIdx][next], listIdx: top.listIdx, elemIdx: next})
		}
	}
	return out
}
