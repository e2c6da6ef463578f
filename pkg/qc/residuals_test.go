package qc

import (
	"math"
	"testing"
	"time"

	"github.com/de-bkg/gognss/pkg/rinex"
	"github.com/de-bkg/gognss/pkg/sp3"
	"github.com/stretchr/testify/require"
)

func TestKeplerianState_ProducesFinitePosition(t *testing.T) {
	eph := mustDecodeEph(t, "G01", 4)
	kep, ok := eph.(*rinex.KeplerianEph)
	require.True(t, ok)

	st, err := KeplerianState(kep, eph.TOE().Add(10*time.Minute))
	require.NoError(t, err)
	for i, v := range st.PositionKm {
		require.False(t, math.IsNaN(v), "position[%d] must not be NaN", i)
	}
	require.NotNil(t, st.ClockOffset)
}

func TestComputeOrbitResidual_MissingEphemerisYieldsNoOutput(t *testing.T) {
	buf := NewEphemerisBuffer()
	precise := sp3.PreciseState{Epoch: time.Now(), PRN: mustPRN(t, "G01"), PositionKm: [3]float64{1, 2, 3}}

	_, ok := ComputeOrbitResidual(buf, precise)
	require.False(t, ok, "no buffered ephemeris must yield no residual")
}

func TestComputeOrbitResidual_ClockUnitsConverted(t *testing.T) {
	buf := NewEphemerisBuffer()
	eph := mustDecodeEph(t, "G01", 4)
	buf.Latch(eph)

	kep := eph.(*rinex.KeplerianEph)
	epoch := eph.TOE()
	brdc, err := KeplerianState(kep, epoch)
	require.NoError(t, err)
	require.NotNil(t, brdc.ClockOffset)

	// preciseClockUs chosen equal to the broadcast offset (converted to
	// microseconds) so DeltaClock must come out at (approximately) zero —
	// this fails if the microsecond/second unit conversion is dropped.
	preciseClockUs := *brdc.ClockOffset * 1e6
	precise := sp3.PreciseState{
		Epoch:       epoch,
		PRN:         eph.PRN(),
		PositionKm:  brdc.PositionKm,
		ClockOffset: &preciseClockUs,
	}

	res, ok := ComputeOrbitResidual(buf, precise)
	require.True(t, ok)
	require.NotNil(t, res.DeltaClock)
	require.InDelta(t, 0.0, *res.DeltaClock, 1e-9)
	for i, v := range res.DeltaPosM {
		require.InDelta(t, 0.0, v, 1e-6, "position[%d] residual against itself must be ~0", i)
	}
}
