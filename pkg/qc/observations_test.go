package qc

import (
	"testing"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/de-bkg/gognss/pkg/rinex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalSamplesFromEpoch_ClassifiesCarrierAndKind(t *testing.T) {
	desc := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sat := mustPRN(t, "G01")

	epo := rinex.Epoch{
		Time: t0,
		ObsList: []rinex.SatObs{
			{Prn: sat, Obss: map[string]rinex.Obs{
				"L1C": {Val: 110266080.971, LLI: 1},
				"C1C": {Val: 20.0e6},
			}},
		},
	}

	samples, skipped := signalSamplesFromEpoch(desc, epo)
	require.Len(t, samples, 2)
	assert.Equal(t, 0, skipped)

	byKind := map[gnss.ObservationKind]SignalSample{}
	for _, s := range samples {
		byKind[s.Kind] = s
	}

	phase, ok := byKind[gnss.KindCarrierPhase]
	require.True(t, ok)
	assert.Equal(t, gnss.CarrierL1, phase.Carrier)
	assert.Equal(t, sat, phase.Sat)
	assert.Equal(t, desc, phase.Source)
	assert.True(t, phase.Epoch.Equal(t0))
	require.NotNil(t, phase.LLI)
	assert.Equal(t, int8(1), *phase.LLI)

	code, ok := byKind[gnss.KindPseudorange]
	require.True(t, ok)
	assert.Equal(t, gnss.CarrierL1, code.Carrier)
	assert.Nil(t, code.LLI, "zero LLI must not be reported as present")
}

func TestSignalSamplesFromEpoch_SkipsUnrecognizedCodes(t *testing.T) {
	desc := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	sat := mustPRN(t, "G01")

	epo := rinex.Epoch{
		ObsList: []rinex.SatObs{
			{Prn: sat, Obss: map[string]rinex.Obs{
				"X1C": {Val: 1}, // unrecognized measurement-type letter
				"L":   {Val: 2}, // too short to carry a band digit
			}},
		},
	}

	samples, skipped := signalSamplesFromEpoch(desc, epo)
	assert.Empty(t, samples)
	assert.Equal(t, 2, skipped, "both unrecognized codes must be counted as malformed")
}

func TestSignalSamplesFromEpoch_DistinguishesSatelliteSystemBandMapping(t *testing.T) {
	desc := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	gal := mustPRN(t, "E01")

	epo := rinex.Epoch{
		ObsList: []rinex.SatObs{
			{Prn: gal, Obss: map[string]rinex.Obs{"C8Q": {Val: 1}}},
		},
	}

	samples, _ := signalSamplesFromEpoch(desc, epo)
	require.Len(t, samples, 1)
	assert.Equal(t, gnss.CarrierE5, samples[0].Carrier, "Galileo band 8 maps to E5, not an L-band carrier")
}
