package qc

import (
	"strings"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/de-bkg/gognss/pkg/rinex"
)

// signalSamplesFromEpoch classifies every observation code in epo into
// SignalSamples, using the RINEX3 observation-code carrier/kind
// classification in pkg/gnss. skipped counts observation codes that
// could not be classified — malformed records per spec.md §7, surfaced
// by the caller into RunReport.MalformedRecords.
func signalSamplesFromEpoch(desc SourceDescriptor, epo rinex.Epoch) (out []SignalSample, skipped int) {
	for _, satObs := range epo.ObsList {
		sys := satObs.Prn.Sys
		for code, obs := range satObs.Obss {
			if len(code) < 2 {
				skipped++
				continue
			}
			kind := gnss.ObservationKindFromRinexCode(code)
			if kind == gnss.KindUnknown {
				skipped++
				continue
			}
			carrier := gnss.CarrierFromRinexCode(sys, code[1:])
			if carrier == gnss.CarrierUnknown {
				skipped++
				continue
			}
			sample := SignalSample{
				Epoch:   epo.Time,
				Source:  desc,
				Sat:     satObs.Prn,
				Carrier: carrier,
				Kind:    kind,
				Value:   obs.Val,
			}
			if obs.LLI != 0 {
				lli := obs.LLI
				sample.LLI = &lli
			}
			out = append(out, sample)
		}
	}
	return out, skipped
}

// rinexCodeSortKey gives deterministic ordering among observation codes
// for the same (epoch, source, satellite, carrier) when more than one
// maps to the same classification (rare, but the serializer needs a
// total order regardless).
func rinexCodeSortKey(code string) string { return strings.ToUpper(code) }
