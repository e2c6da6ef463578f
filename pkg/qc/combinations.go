package qc

import (
	"math"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
)

// CombinationKind enumerates the signal combinations this package can
// synthesize from co-temporal observations: geometry-free, ionosphere-
// free, Melbourne-Wubbena and multipath.
type CombinationKind int

const (
	CombinationGFPhase CombinationKind = iota
	CombinationGFCode
	CombinationIFPhase
	CombinationIFCode
	CombinationMW
	CombinationMP
)

func (c CombinationKind) String() string {
	switch c {
	case CombinationGFPhase:
		return "GF(phase)"
	case CombinationGFCode:
		return "GF(code)"
	case CombinationIFPhase:
		return "IF(phase)"
	case CombinationIFCode:
		return "IF(code)"
	case CombinationMW:
		return "MW"
	case CombinationMP:
		return "MP"
	default:
		return "unknown"
	}
}

// Combination is one synthesized combination value at a given epoch.
type Combination struct {
	Kind    CombinationKind
	Epoch   time.Time
	Source  SourceDescriptor
	Sat     gnss.PRN
	CarrierI, CarrierJ gnss.Carrier // primary/secondary carriers (for MP: measured carrier / reference carrier)
	Value   float64
}

// geometryFree returns vi - vj.
func geometryFree(vi, vj float64) float64 { return vi - vj }

// ionosphereFree returns (fi^2*vi - fj^2*vj) / (fi^2 - fj^2).
func ionosphereFree(fi, fj, vi, vj float64) (float64, bool) {
	fi2, fj2 := fi*fi, fj*fj
	denom := fi2 - fj2
	if denom == 0 {
		return 0, false
	}
	return (fi2*vi - fj2*vj) / denom, true
}

// melbourneWubbena returns the wide-lane phase/narrow-lane code combination.
func melbourneWubbena(fi, fj, li, lj, pi, pj float64) (float64, bool) {
	if fi-fj == 0 || fi+fj == 0 {
		return 0, false
	}
	wl := (fi*li - fj*lj) / (fi - fj)
	nl := (fi*pi + fj*pj) / (fi + fj)
	return wl - nl, true
}

// multipath returns MP_k = P_k - ((fk^2+fo^2)/(fk^2-fo^2))*L_k + (2*fo^2/(fk^2-fo^2))*L_o.
func multipath(fk, fo, pk, lk, lo float64) (float64, bool) {
	fk2, fo2 := fk*fk, fo*fo
	denom := fk2 - fo2
	if denom == 0 {
		return 0, false
	}
	return pk - ((fk2+fo2)/denom)*lk + (2*fo2/denom)*lo, true
}

// synthesizeCombinations computes every enabled combination for (source,
// sat) at epoch from the SignalBuffer's co-temporal readings, in the
// deterministic carrier order from gnss.Carrier (ascending index, lowest
// index first). Combinations yielding a non-finite result are dropped
// silently.
func synthesizeCombinations(buf *SignalBuffer, builder *AnalysisBuilder, source SourceDescriptor, sat gnss.PRN, epoch time.Time) []Combination {
	carriers := buf.Carriers(source, sat)
	var out []Combination

	readPair := func(kind gnss.ObservationKind, ci, cj gnss.Carrier) (vi, vj float64, ok bool) {
		vi, oki := buf.At(source, sat, ci, kind, epoch)
		vj, okj := buf.At(source, sat, cj, kind, epoch)
		return vi, vj, oki && okj
	}

	for a := 0; a < len(carriers); a++ {
		for b := a + 1; b < len(carriers); b++ {
			ci, cj := carriers[a], carriers[b]
			fi, iok := ci.FrequencyMHz()
			fj, jok := cj.FrequencyMHz()
			if !iok || !jok {
				continue
			}

			if builder.enabledCombinations[CombinationGFPhase] {
				if li, lj, ok := readPair(gnss.KindCarrierPhase, ci, cj); ok {
					v := geometryFree(li, lj)
					if finite(v) {
						out = append(out, Combination{Kind: CombinationGFPhase, Epoch: epoch, Source: source, Sat: sat, CarrierI: ci, CarrierJ: cj, Value: v})
					}
				}
			}
			if builder.enabledCombinations[CombinationGFCode] {
				if pi, pj, ok := readPair(gnss.KindPseudorange, ci, cj); ok {
					v := geometryFree(pi, pj)
					if finite(v) {
						out = append(out, Combination{Kind: CombinationGFCode, Epoch: epoch, Source: source, Sat: sat, CarrierI: ci, CarrierJ: cj, Value: v})
					}
				}
			}
			if builder.enabledCombinations[CombinationIFPhase] {
				if li, lj, ok := readPair(gnss.KindCarrierPhase, ci, cj); ok {
					if v, ok := ionosphereFree(fi, fj, li, lj); ok && finite(v) {
						out = append(out, Combination{Kind: CombinationIFPhase, Epoch: epoch, Source: source, Sat: sat, CarrierI: ci, CarrierJ: cj, Value: v})
					}
				}
			}
			if builder.enabledCombinations[CombinationIFCode] {
				if pi, pj, ok := readPair(gnss.KindPseudorange, ci, cj); ok {
					if v, ok := ionosphereFree(fi, fj, pi, pj); ok && finite(v) {
						out = append(out, Combination{Kind: CombinationIFCode, Epoch: epoch, Source: source, Sat: sat, CarrierI: ci, CarrierJ: cj, Value: v})
					}
				}
			}
			if builder.enabledCombinations[CombinationMW] {
				li, lj, lok := readPair(gnss.KindCarrierPhase, ci, cj)
				pi, pj, pok := readPair(gnss.KindPseudorange, ci, cj)
				if lok && pok {
					if v, ok := melbourneWubbena(fi, fj, li, lj, pi, pj); ok && finite(v) {
						out = append(out, Combination{Kind: CombinationMW, Epoch: epoch, Source: source, Sat: sat, CarrierI: ci, CarrierJ: cj, Value: v})
					}
				}
			}
		}
	}

	if builder.enabledCombinations[CombinationMP] && len(carriers) >= 2 {
		// Reference-frequency policy for >2 carriers: lowest index, then
		// lowest frequency.
		ref := carriers[0]
		fo, ok := ref.FrequencyMHz()
		if ok {
			lo, lok := buf.At(source, sat, ref, gnss.KindCarrierPhase, epoch)
			for _, ck := range carriers[1:] {
				fk, ok := ck.FrequencyMHz()
				if !ok || !lok {
					continue
				}
				pk, pok := buf.At(source, sat, ck, gnss.KindPseudorange, epoch)
				lk, lkok := buf.At(source, sat, ck, gnss.KindCarrierPhase, epoch)
				if !pok || !lkok {
					continue
				}
				if v, ok := multipath(fk, fo, pk, lk, lo); ok && finite(v) {
					out = append(out, Combination{Kind: CombinationMP, Epoch: epoch, Source: source, Sat: sat, CarrierI: ck, CarrierJ: ref, Value: v})
				}
			}
		}
	}

	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
