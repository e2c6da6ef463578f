package qc

import (
	"math"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/de-bkg/gognss/pkg/rinex"
	"github.com/de-bkg/gognss/pkg/sp3"
	"gonum.org/v1/gonum/mat"
)

// Earth/orbit constants used by the Keplerian reconstruction, named
// rather than inlined, following the standard WGS84/ICD-GPS-200 values.
const (
	earthGM          = 3.986005e14   // m^3/s^2, WGS84 earth gravitational constant
	earthRotationRate = 7.2921151467e-5 // rad/s, WGS84 earth rotation rate
)

// OrbitState is a reconstructed broadcast satellite state: position (and,
// when derivable, clock offset) at a requested instant.
type OrbitState struct {
	PositionKm  [3]float64
	ClockOffset *float64
}

// OrbitResidual is the difference between a broadcast-reconstructed state
// and a precise (SP3) state for the same satellite/epoch.
type OrbitResidual struct {
	Epoch      time.Time
	Sat        gnss.PRN
	DeltaPosM  [3]float64 // metres
	DeltaClock *float64   // seconds, nil if either clock is unavailable
}

// KeplerianState reconstructs a GPS/Galileo/BeiDou/QZSS/NavIC broadcast
// ephemeris into an ECEF position and (when the ephemeris carries clock
// terms) a clock offset at time t, following the standard ICD-GPS-200
// Keplerian orbit algorithm (eccentric-anomaly Newton iteration, corrected
// argument of latitude, ECEF rotation), using gonum/mat for the position
// vector — grounded on the shape of original_source's orbit reconstruction
// (semi-major axis, corrected mean anomaly, Newton's method, argument of
// latitude, earth-rotation correction) translated into idiomatic Go.
func KeplerianState(eph *rinex.KeplerianEph, t time.Time) (OrbitState, error) {
	tk := t.Sub(eph.TOE()).Seconds()

	a := eph.SqrtA * eph.SqrtA
	n0 := math.Sqrt(earthGM / (a * a * a))
	n := n0 + eph.DeltaN
	mk := eph.M0 + n*tk

	ek := mk
	for i := 0; i < 16; i++ {
		delta := (mk - ek + eph.Ecc*math.Sin(ek)) / (1 - eph.Ecc*math.Cos(ek))
		ek += delta
		if math.Abs(delta) < 1e-13 {
			break
		}
	}

	sinE, cosE := math.Sin(ek), math.Cos(ek)
	vk := math.Atan2(math.Sqrt(1-eph.Ecc*eph.Ecc)*sinE, cosE-eph.Ecc)
	phik := vk + eph.Omega

	sin2phi, cos2phi := math.Sin(2*phik), math.Cos(2*phik)
	duk := eph.Cus*sin2phi + eph.Cuc*cos2phi
	drk := eph.Crs*sin2phi + eph.Crc*cos2phi
	dik := eph.Cis*sin2phi + eph.Cic*cos2phi

	uk := phik + duk
	rk := a*(1-eph.Ecc*cosE) + drk
	ik := eph.I0 + dik + eph.IDOT*tk

	xPrime := rk * math.Cos(uk)
	yPrime := rk * math.Sin(uk)

	omegaK := eph.Omega0 + (eph.OmegaDot-earthRotationRate)*tk - earthRotationRate*eph.Toe

	pos := mat.NewVecDense(3, []float64{
		xPrime*math.Cos(omegaK) - yPrime*math.Cos(ik)*math.Sin(omegaK),
		xPrime*math.Sin(omegaK) + yPrime*math.Cos(ik)*math.Cos(omegaK),
		yPrime * math.Sin(ik),
	})

	st := OrbitState{PositionKm: [3]float64{pos.AtVec(0) / 1000, pos.AtVec(1) / 1000, pos.AtVec(2) / 1000}}

	dtc := t.Sub(eph.TOC()).Seconds()
	clk := eph.ClockBias + eph.ClockDrift*dtc + eph.ClockDriftRate*dtc*dtc
	st.ClockOffset = &clk

	return st, nil
}

// ComputeOrbitResidual looks up the best valid broadcast ephemeris for an
// incoming precise state, reconstructs its state, and reports the
// position (and, if both sides have one, clock) difference. Returns
// (nil, false) if no valid ephemeris is buffered —
// "missing ephemeris yields no output for that state".
func ComputeOrbitResidual(buf *EphemerisBuffer, precise sp3.PreciseState) (*OrbitResidual, bool) {
	eph, ok := buf.BestFor(precise.PRN, precise.Epoch)
	if !ok {
		return nil, false
	}
	kep, ok := eph.(*rinex.KeplerianEph)
	if !ok {
		// GLONASS/SBAS PVA messages already carry a broadcast state vector
		// directly; this realisation's residual analysis targets only
		// Keplerian broadcast systems.
		return nil, false
	}
	brdc, err := KeplerianState(kep, precise.Epoch)
	if err != nil {
		return nil, false
	}

	res := &OrbitResidual{Epoch: precise.Epoch, Sat: precise.PRN}
	for i := 0; i < 3; i++ {
		res.DeltaPosM[i] = (brdc.PositionKm[i] - precise.PositionKm[i]) * 1000
	}
	if brdc.ClockOffset != nil && precise.ClockOffset != nil {
		// precise.ClockOffset is in microseconds (SP3 convention);
		// brdc.ClockOffset is in seconds (RINEX nav convention).
		d := *brdc.ClockOffset - *precise.ClockOffset*1e-6
		res.DeltaClock = &d
	}
	return res, true
}
