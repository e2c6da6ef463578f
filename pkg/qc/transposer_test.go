package qc

import (
	"testing"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/de-bkg/gognss/pkg/rinex"
	"github.com/de-bkg/gognss/pkg/sp3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransposer_CorrectAppliesPolynomial(t *testing.T) {
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	poly := TimePolynomial{RefEpoch: ref, Source: gnss.TimescaleGLO, Target: gnss.TimescaleUTC, A0: 0.5}
	tr := NewTransposer(gnss.TimescaleUTC, []TimePolynomial{poly})

	got := tr.Correct(ref, gnss.TimescaleGLO)
	assert.True(t, got.Equal(ref.Add(500*time.Millisecond)))
}

func TestTransposer_CorrectNoOpWhenAlreadyTargetOrUnknown(t *testing.T) {
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	poly := TimePolynomial{RefEpoch: ref, Source: gnss.TimescaleGLO, Target: gnss.TimescaleUTC, A0: 0.5}
	tr := NewTransposer(gnss.TimescaleUTC, []TimePolynomial{poly})

	assert.True(t, tr.Correct(ref, gnss.TimescaleUTC).Equal(ref), "already in the target timescale: no-op")
	assert.True(t, tr.Correct(ref, gnss.TimescaleUnknown).Equal(ref), "unknown source timescale: no-op")
}

func TestTransposer_CorrectNoOpWithoutBridgingPolynomial(t *testing.T) {
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTransposer(gnss.TimescaleUTC, nil)

	got := tr.Correct(ref, gnss.TimescaleGPS)
	assert.True(t, got.Equal(ref), "no polynomial bridging GPS->UTC: the timestamp passes through unchanged")
}

func TestTransposer_TransposeMutCorrectsObsAndNavTimes(t *testing.T) {
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	poly := TimePolynomial{RefEpoch: ref, Source: gnss.TimescaleGPS, Target: gnss.TimescaleUTC, A0: 1.0}
	tr := NewTransposer(gnss.TimescaleUTC, []TimePolynomial{poly})

	store := NewDataStore()
	obsDesc := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	obsRec := &rinex.ObsRecord{
		Header: rinex.ObsHeader{SatSystem: gnss.SysGPS, TimeOfFirstObs: ref, TimeOfLastObs: ref},
		Epochs: []rinex.Epoch{{Time: ref}},
	}
	require.NoError(t, store.Load(obsDesc, &rinexDataSet{Obs: obsRec}))

	navDesc := SourceDescriptor{Product: ProductBroadcastNavigation, Index: NoneKey, Filename: "a.nav"}
	eph := mustDecodeEph(t, "G01", 4)
	toc := eph.TOC()
	require.NoError(t, store.Load(navDesc, &rinexDataSet{Nav: &rinex.NavRecord{Ephemerides: []rinex.Eph{eph}}}))

	flagged := tr.TransposeMut(store)
	assert.Empty(t, flagged, "GPS-system obs/nav both bridge to UTC: nothing should be flagged")

	got, ok := store.DataSetFor(obsDesc)
	require.True(t, ok)
	ods := got.(*rinexDataSet)
	assert.True(t, ods.Obs.Epochs[0].Time.Equal(ref.Add(time.Second)))
	assert.True(t, ods.Obs.Header.TimeOfFirstObs.Equal(ref.Add(time.Second)))

	gotNav, ok := store.DataSetFor(navDesc)
	require.True(t, ok)
	nds := gotNav.(*rinexDataSet)
	assert.True(t, nds.Nav.Ephemerides[0].TOC().Equal(toc.Add(time.Second)))
}

func TestTransposer_TransposeMutFlagsMeteoAndMixed(t *testing.T) {
	tr := NewTransposer(gnss.TimescaleUTC, nil)
	store := NewDataStore()

	meteoDesc := SourceDescriptor{Product: ProductMeteoObservation, Index: NoneKey, Filename: "a.met"}
	require.NoError(t, store.Load(meteoDesc, &rinexDataSet{Meteo: &rinex.MeteoRecord{}}))

	mixedDesc := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "m.rnx"}
	require.NoError(t, store.Load(mixedDesc, &rinexDataSet{Obs: &rinex.ObsRecord{
		Header: rinex.ObsHeader{SatSystem: gnss.SysMIXED},
		Epochs: []rinex.Epoch{{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}},
	}}))

	flagged := tr.TransposeMut(store)
	assert.ElementsMatch(t, []SourceDescriptor{meteoDesc, mixedDesc}, flagged)
}

func TestTransposer_TransposeMutCorrectsSP3States(t *testing.T) {
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	poly := TimePolynomial{RefEpoch: ref, Source: gnss.TimescaleGPS, Target: gnss.TimescaleUTC, A0: 1.0}
	tr := NewTransposer(gnss.TimescaleUTC, []TimePolynomial{poly})

	store := NewDataStore()
	desc := SourceDescriptor{Product: ProductPreciseOrbit, Index: NoneKey, Filename: "a.sp3"}
	require.NoError(t, store.Load(desc, &sp3DataSet{
		Header: &sp3.Header{Timescale: gnss.TimescaleGPS},
		States: []sp3.PreciseState{{Epoch: ref, PRN: mustPRN(t, "G01"), PositionKm: [3]float64{1, 2, 3}}},
	}))

	flagged := tr.TransposeMut(store)
	assert.Empty(t, flagged, "GPS-timescale SP3 bridges to UTC: nothing should be flagged")

	got, ok := store.DataSetFor(desc)
	require.True(t, ok)
	sds := got.(*sp3DataSet)
	assert.True(t, sds.States[0].Epoch.Equal(ref.Add(time.Second)))
}

func TestTransposer_TransposeMutFlagsSP3WithNoTimescale(t *testing.T) {
	tr := NewTransposer(gnss.TimescaleUTC, nil)
	store := NewDataStore()

	desc := SourceDescriptor{Product: ProductPreciseOrbit, Index: NoneKey, Filename: "a.sp3"}
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Load(desc, &sp3DataSet{
		Header: &sp3.Header{},
		States: []sp3.PreciseState{{Epoch: epoch, PRN: mustPRN(t, "G01")}},
	}))

	flagged := tr.TransposeMut(store)
	assert.ElementsMatch(t, []SourceDescriptor{desc}, flagged)

	got, ok := store.DataSetFor(desc)
	require.True(t, ok)
	sds := got.(*sp3DataSet)
	assert.True(t, sds.States[0].Epoch.Equal(epoch), "unresolvable timescale: state left unchanged")
}

func TestTransposer_TransposeMutIsIdempotent(t *testing.T) {
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	poly := TimePolynomial{RefEpoch: ref, Source: gnss.TimescaleGPS, Target: gnss.TimescaleUTC, A0: 1.0}
	tr := NewTransposer(gnss.TimescaleUTC, []TimePolynomial{poly})

	store := NewDataStore()
	obsDesc := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	require.NoError(t, store.Load(obsDesc, &rinexDataSet{Obs: &rinex.ObsRecord{
		Header: rinex.ObsHeader{SatSystem: gnss.SysGPS, TimeOfFirstObs: ref, TimeOfLastObs: ref},
		Epochs: []rinex.Epoch{{Time: ref}},
	}}))
	navDesc := SourceDescriptor{Product: ProductBroadcastNavigation, Index: NoneKey, Filename: "a.nav"}
	eph := mustDecodeEph(t, "G01", 4)
	toc := eph.TOC()
	require.NoError(t, store.Load(navDesc, &rinexDataSet{Nav: &rinex.NavRecord{Ephemerides: []rinex.Eph{eph}}}))
	sp3Desc := SourceDescriptor{Product: ProductPreciseOrbit, Index: NoneKey, Filename: "a.sp3"}
	require.NoError(t, store.Load(sp3Desc, &sp3DataSet{
		Header: &sp3.Header{Timescale: gnss.TimescaleGPS},
		States: []sp3.PreciseState{{Epoch: ref, PRN: mustPRN(t, "G01")}},
	}))

	tr.TransposeMut(store)
	tr.TransposeMut(store)

	// The correction is applied exactly once: each dataset now records
	// the target as its current timescale, so the second pass no-ops
	// instead of compounding.
	got, _ := store.DataSetFor(obsDesc)
	ods := got.(*rinexDataSet)
	assert.True(t, ods.Obs.Epochs[0].Time.Equal(ref.Add(time.Second)))
	assert.True(t, ods.Obs.Header.TimeOfFirstObs.Equal(ref.Add(time.Second)))

	gotNav, _ := store.DataSetFor(navDesc)
	nds := gotNav.(*rinexDataSet)
	assert.True(t, nds.Nav.Ephemerides[0].TOC().Equal(toc.Add(time.Second)))

	gotSP3, _ := store.DataSetFor(sp3Desc)
	sds := gotSP3.(*sp3DataSet)
	assert.True(t, sds.States[0].Epoch.Equal(ref.Add(time.Second)))
	assert.Equal(t, gnss.TimescaleUTC, sds.Header.Timescale)
}

func TestTransposer_TransposeMutDoesNotDuplicateStoreFlags(t *testing.T) {
	tr := NewTransposer(gnss.TimescaleUTC, nil)
	store := NewDataStore()

	desc := SourceDescriptor{Product: ProductMeteoObservation, Index: NoneKey, Filename: "a.met"}
	require.NoError(t, store.Load(desc, &rinexDataSet{Meteo: &rinex.MeteoRecord{}}))

	tr.TransposeMut(store)
	tr.TransposeMut(store)

	assert.Equal(t, []SourceDescriptor{desc}, store.FlaggedNoTimescale())
}
