package qc

import (
	"testing"

	"github.com/de-bkg/gognss/pkg/rinex"
	"github.com/stretchr/testify/require"
)

func TestSerializer_EphemerisOrdering(t *testing.T) {
	// §8 S4: given ephemerides at several times for one satellite,
	// across two sources, the serializer must emit them ordered by
	// (TOC, satellite, source) — here two sources each contribute
	// alternating hours, so per-source sorted lists must be correctly
	// merged rather than emitted source-by-source.
	store := NewDataStore()

	e4 := mustDecodeEph(t, "G01", 4)
	e14 := mustDecodeEph(t, "G01", 14)
	e6 := mustDecodeEph(t, "G01", 6)
	e16 := mustDecodeEph(t, "G01", 16)

	descA := SourceDescriptor{Product: ProductBroadcastNavigation, Index: NoneKey, Filename: "a.rnx"}
	descB := SourceDescriptor{Product: ProductBroadcastNavigation, Index: IndexKey{Kind: IndexCustom, Value: "b"}, Filename: "b.rnx"}

	require.NoError(t, store.Load(descA, &rinexDataSet{Nav: &rinex.NavRecord{Ephemerides: []rinex.Eph{e4, e14}}}))
	require.NoError(t, store.Load(descB, &rinexDataSet{Nav: &rinex.NavRecord{Ephemerides: []rinex.Eph{e6, e16}}}))

	s := NewSerializer(store)
	var tocs []int64
	for {
		item, ok := s.Next()
		if !ok {
			break
		}
		if item.Ephemeris != nil {
			tocs = append(tocs, item.Ephemeris.Eph.TOC().Unix())
		}
	}

	require.Len(t, tocs, 4)
	for i := 1; i < len(tocs); i++ {
		require.LessOrEqual(t, tocs[i-1], tocs[i], "ephemerides must be emitted in ascending TOC order across sources")
	}
}

func TestSerializer_Determinism(t *testing.T) {
	store := NewDataStore()
	e4 := mustDecodeEph(t, "G01", 4)
	e6 := mustDecodeEph(t, "G01", 6)
	desc := SourceDescriptor{Product: ProductBroadcastNavigation, Index: NoneKey, Filename: "a.rnx"}
	require.NoError(t, store.Load(desc, &rinexDataSet{Nav: &rinex.NavRecord{Ephemerides: []rinex.Eph{e6, e4}}}))

	drain := func() []int64 {
		s := NewSerializer(store)
		var out []int64
		for {
			item, ok := s.Next()
			if !ok {
				break
			}
			if item.Ephemeris != nil {
				out = append(out, item.Ephemeris.Eph.TOC().Unix())
			}
		}
		return out
	}

	first := drain()
	second := drain()
	require.Equal(t, first, second, "two traversals over identical store contents must produce identical order")
}

func TestSerializer_EmptySubPhaseSkipsForward(t *testing.T) {
	// A store with only an Observation dataset (no nav, no SP3) must
	// still terminate after its signal samples, without the empty
	// ephemeris/precise-state sub-phases producing spurious items.
	store := NewDataStore()
	desc := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	require.NoError(t, store.Load(desc, &rinexDataSet{Obs: &rinex.ObsRecord{}}))

	s := NewSerializer(store)
	count := 0
	for {
		item, ok := s.Next()
		if !ok {
			break
		}
		count++
		require.Nil(t, item.Ephemeris)
		require.Nil(t, item.PreciseState)
	}
	require.GreaterOrEqual(t, count, 1, "the header item must still be emitted")
}
