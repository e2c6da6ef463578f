package qc

import (
	"testing"
	"time"

	"github.com/de-bkg/gognss/pkg/rinex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataStore_MaskDropsFilteredEpochs(t *testing.T) {
	s := NewDataStore()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	desc := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	epochs := []rinex.Epoch{{Time: t0}, {Time: t0.Add(30 * time.Second)}, {Time: t0.Add(60 * time.Second)}}
	require.NoError(t, s.Load(desc, &rinexDataSet{Obs: &rinex.ObsRecord{Epochs: epochs}}))

	s.Mask(func(t time.Time) bool { return t.Before(t0.Add(45 * time.Second)) })

	got, ok := s.DataSetFor(desc)
	require.True(t, ok)
	assert.Len(t, got.(*rinexDataSet).Obs.Epochs, 2)
}

func TestDataStore_DecimateKeepsIntervalBoundaries(t *testing.T) {
	s := NewDataStore()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	desc := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	epochs := []rinex.Epoch{
		{Time: t0},
		{Time: t0.Add(30 * time.Second)},
		{Time: t0.Add(60 * time.Second)},
		{Time: t0.Add(90 * time.Second)},
	}
	require.NoError(t, s.Load(desc, &rinexDataSet{Obs: &rinex.ObsRecord{Epochs: epochs}}))

	s.Decimate(60 * time.Second)

	got, ok := s.DataSetFor(desc)
	require.True(t, ok)
	kept := got.(*rinexDataSet).Obs.Epochs
	require.Len(t, kept, 2)
	assert.True(t, kept[0].Time.Equal(t0))
	assert.True(t, kept[1].Time.Equal(t0.Add(60*time.Second)))
}

func TestDataStore_DecimateNoOpForNonPositiveInterval(t *testing.T) {
	s := NewDataStore()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	desc := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	epochs := []rinex.Epoch{{Time: t0}, {Time: t0.Add(30 * time.Second)}}
	require.NoError(t, s.Load(desc, &rinexDataSet{Obs: &rinex.ObsRecord{Epochs: epochs}}))

	s.Decimate(0)

	got, ok := s.DataSetFor(desc)
	require.True(t, ok)
	assert.Len(t, got.(*rinexDataSet).Obs.Epochs, 2)
}

func TestDataStore_SplitPartitionsAtInstantLeavingReceiverUnchanged(t *testing.T) {
	s := NewDataStore()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cut := t0.Add(45 * time.Second)
	desc := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	epochs := []rinex.Epoch{{Time: t0}, {Time: t0.Add(30 * time.Second)}, {Time: t0.Add(60 * time.Second)}}
	require.NoError(t, s.Load(desc, &rinexDataSet{Obs: &rinex.ObsRecord{Epochs: epochs}}))

	before, after := s.Split(cut)

	bds, ok := before.DataSetFor(desc)
	require.True(t, ok)
	assert.Len(t, bds.(*rinexDataSet).Obs.Epochs, 2, "before: strictly earlier than the cut")

	ads, ok := after.DataSetFor(desc)
	require.True(t, ok)
	assert.Len(t, ads.(*rinexDataSet).Obs.Epochs, 1, "after: at-or-after the cut")

	orig, ok := s.DataSetFor(desc)
	require.True(t, ok)
	assert.Len(t, orig.(*rinexDataSet).Obs.Epochs, 3, "Split must not mutate the receiver")
}

func TestDataStore_RepairSortsAndDropsDuplicates(t *testing.T) {
	s := NewDataStore()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	desc := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	epochs := []rinex.Epoch{
		{Time: t0.Add(60 * time.Second)},
		{Time: t0},
		{Time: t0}, // duplicate
	}
	require.NoError(t, s.Load(desc, &rinexDataSet{Obs: &rinex.ObsRecord{Epochs: epochs}}))

	s.Repair(RepairDropDuplicates)

	got, ok := s.DataSetFor(desc)
	require.True(t, ok)
	kept := got.(*rinexDataSet).Obs.Epochs
	require.Len(t, kept, 2)
	assert.True(t, kept[0].Time.Equal(t0))
	assert.True(t, kept[1].Time.Equal(t0.Add(60*time.Second)))
}

func TestDataStore_RepairSortOnlyKeepsDuplicates(t *testing.T) {
	s := NewDataStore()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	desc := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	epochs := []rinex.Epoch{
		{Time: t0.Add(60 * time.Second)},
		{Time: t0},
		{Time: t0},
	}
	require.NoError(t, s.Load(desc, &rinexDataSet{Obs: &rinex.ObsRecord{Epochs: epochs}}))

	s.Repair(RepairSortOnly)

	got, ok := s.DataSetFor(desc)
	require.True(t, ok)
	assert.Len(t, got.(*rinexDataSet).Obs.Epochs, 3, "RepairSortOnly must not remove anything")
}
