package qc

import (
	"testing"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalBuffer_LatchAndAt(t *testing.T) {
	buf := NewSignalBuffer()
	source := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	sat := mustPRN(t, "G01")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	buf.Latch(SignalSample{Epoch: t0, Source: source, Sat: sat, Carrier: gnss.CarrierL1, Kind: gnss.KindPseudorange, Value: 20.0e6})

	v, ok := buf.At(source, sat, gnss.CarrierL1, gnss.KindPseudorange, t0)
	require.True(t, ok)
	assert.Equal(t, 20.0e6, v)

	_, ok = buf.At(source, sat, gnss.CarrierL1, gnss.KindCarrierPhase, t0)
	assert.False(t, ok, "no sample latched for that kind")
}

func TestSignalBuffer_AtRejectsStaleEpoch(t *testing.T) {
	buf := NewSignalBuffer()
	source := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	sat := mustPRN(t, "G01")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(30 * time.Second)

	buf.Latch(SignalSample{Epoch: t0, Source: source, Sat: sat, Carrier: gnss.CarrierL1, Kind: gnss.KindPseudorange, Value: 1})

	_, ok := buf.At(source, sat, gnss.CarrierL1, gnss.KindPseudorange, t1)
	assert.False(t, ok, "At requires an exact epoch match")
}

func TestSignalBuffer_LatchIgnoresOlderSample(t *testing.T) {
	buf := NewSignalBuffer()
	source := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	sat := mustPRN(t, "G01")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	buf.Latch(SignalSample{Epoch: t1, Source: source, Sat: sat, Carrier: gnss.CarrierL1, Kind: gnss.KindPseudorange, Value: 2})
	buf.Latch(SignalSample{Epoch: t0, Source: source, Sat: sat, Carrier: gnss.CarrierL1, Kind: gnss.KindPseudorange, Value: 1})

	v, ok := buf.At(source, sat, gnss.CarrierL1, gnss.KindPseudorange, t1)
	require.True(t, ok)
	assert.Equal(t, 2.0, v, "the later-epoch sample must not be overwritten by an older one")
}

func TestSignalBuffer_Carriers(t *testing.T) {
	buf := NewSignalBuffer()
	source := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	sat := mustPRN(t, "G01")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	buf.Latch(SignalSample{Epoch: t0, Source: source, Sat: sat, Carrier: gnss.CarrierL2, Kind: gnss.KindPseudorange, Value: 1})
	buf.Latch(SignalSample{Epoch: t0, Source: source, Sat: sat, Carrier: gnss.CarrierL1, Kind: gnss.KindPseudorange, Value: 1})

	carriers := buf.Carriers(source, sat)
	require.Len(t, carriers, 2)
	assert.Equal(t, gnss.CarrierL1, carriers[0], "Carriers returns an ascending order")
	assert.Equal(t, gnss.CarrierL2, carriers[1])
}
