package qc

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// AnalysisOption enables one analysis or combination in an AnalysisBuilder.
type AnalysisOption string

// Recognized AnalysisOptions, the CLI's and AnalysisBuilder's shared
// vocabulary.
const (
	OptSummary                 AnalysisOption = "summary"
	OptRTKSummary              AnalysisOption = "rtk-summary"
	OptPhaseObservations       AnalysisOption = "phase-observations"
	OptPseudoRangeObservations AnalysisOption = "pseudo-range-observations"
	OptDopplerObservations     AnalysisOption = "doppler-observations"
	OptPowerObservations       AnalysisOption = "power-observations"
	OptSamplingGapHistogram    AnalysisOption = "sampling-gap-histogram"
	OptCombinationGFPhase      AnalysisOption = "gf-phase"
	OptCombinationGFCode       AnalysisOption = "gf-code"
	OptCombinationIFPhase      AnalysisOption = "if-phase"
	OptCombinationIFCode       AnalysisOption = "if-code"
	OptCombinationMW           AnalysisOption = "mw"
	OptMultipath               AnalysisOption = "multipath"
	OptPseudoRangeResiduals    AnalysisOption = "pseudo-range-residuals"
	OptPhaseResiduals          AnalysisOption = "phase-residuals"
	OptClockResiduals          AnalysisOption = "clock-residuals"
	OptSP3Summary              AnalysisOption = "sp3-summary"
	OptOrbitResiduals          AnalysisOption = "orbit-residuals"
	OptSP3TemporalResiduals    AnalysisOption = "sp3-temporal-residuals"
	OptMeteoObservations       AnalysisOption = "meteo-observations"
	OptPVT                     AnalysisOption = "pvt"
	OptCGGTTS                  AnalysisOption = "cggtts"
	OptNaviPlot                AnalysisOption = "navi-plot"
)

// allOptions lists every recognized AnalysisOption, used to validate
// caller-supplied option names (e.g. from the CLI).
var allOptions = map[AnalysisOption]bool{
	OptSummary: true, OptRTKSummary: true, OptPhaseObservations: true,
	OptPseudoRangeObservations: true, OptDopplerObservations: true, OptPowerObservations: true,
	OptSamplingGapHistogram: true, OptCombinationGFPhase: true, OptCombinationGFCode: true,
	OptCombinationIFPhase: true, OptCombinationIFCode: true, OptCombinationMW: true,
	OptMultipath: true, OptPseudoRangeResiduals: true, OptPhaseResiduals: true,
	OptClockResiduals: true, OptSP3Summary: true, OptOrbitResiduals: true,
	OptSP3TemporalResiduals: true, OptMeteoObservations: true, OptPVT: true,
	OptCGGTTS: true, OptNaviPlot: true,
}

// PVTSolver is the plug-in collaborator required for PVT/CGGTTS analyses.
// Absence of a solver simply disables those two analyses; it is not a
// build-time feature flag.
type PVTSolver interface {
	// Solve computes a position/time solution from every signal observed
	// at epoch, with ephemerides holding whatever broadcast records are
	// valid there. Returning an error is non-fatal: the Runner logs and
	// continues with the next epoch.
	Solve(epoch time.Time, signals []SignalSample, ephemerides *EphemerisBuffer) (PVTSolution, error)
}

// analysisConfig is the validator-tagged struct backing AnalysisBuilder's
// option validation.
type analysisConfig struct {
	Options []string `validate:"dive,required"`
}

// AnalysisBuilder selects the enabled analyses and derives the runtime
// gates the Runner consults.
type AnalysisBuilder struct {
	enabled map[AnalysisOption]bool
	solver  PVTSolver

	enabledCombinations map[CombinationKind]bool

	needsSignals       bool
	needsEphemeris     bool
	needsPreciseStates bool
}

// AnalysisBuilderFunc is a functional option for NewAnalysisBuilder.
type AnalysisBuilderFunc func(*AnalysisBuilder)

// WithOption enables the named analysis.
func WithOption(opt AnalysisOption) AnalysisBuilderFunc {
	return func(b *AnalysisBuilder) { b.enabled[opt] = true }
}

// WithSolver plugs in a PVT solver collaborator, enabling PVT/CGGTTS
// analyses to actually run (they remain gated off without one).
func WithSolver(solver PVTSolver) AnalysisBuilderFunc {
	return func(b *AnalysisBuilder) { b.solver = solver }
}

// NewAnalysisBuilder constructs an AnalysisBuilder from the given options,
// validates the selection, and derives the Runner's buffer-retention
// gates.
func NewAnalysisBuilder(opts ...AnalysisBuilderFunc) (*AnalysisBuilder, error) {
	b := &AnalysisBuilder{
		enabled:             make(map[AnalysisOption]bool),
		enabledCombinations: make(map[CombinationKind]bool),
	}
	for _, opt := range opts {
		opt(b)
	}

	names := make([]string, 0, len(b.enabled))
	for opt := range b.enabled {
		if !allOptions[opt] {
			return nil, newError(KindInput, "unrecognized analysis option: "+string(opt), nil)
		}
		names = append(names, string(opt))
	}
	if err := validator.New().Struct(&analysisConfig{Options: names}); err != nil {
		return nil, newError(KindInput, "invalid analysis selection", err)
	}

	b.enabledCombinations[CombinationGFPhase] = b.enabled[OptCombinationGFPhase]
	b.enabledCombinations[CombinationGFCode] = b.enabled[OptCombinationGFCode]
	b.enabledCombinations[CombinationIFPhase] = b.enabled[OptCombinationIFPhase]
	b.enabledCombinations[CombinationIFCode] = b.enabled[OptCombinationIFCode]
	b.enabledCombinations[CombinationMW] = b.enabled[OptCombinationMW]
	b.enabledCombinations[CombinationMP] = b.enabled[OptMultipath]

	b.needsSignals = b.enabled[OptCombinationGFPhase] || b.enabled[OptCombinationGFCode] ||
		b.enabled[OptCombinationIFPhase] || b.enabled[OptCombinationIFCode] ||
		b.enabled[OptCombinationMW] || b.enabled[OptMultipath] ||
		b.enabled[OptPseudoRangeResiduals] || b.enabled[OptPhaseResiduals] ||
		b.enabled[OptSamplingGapHistogram] || b.enabled[OptPVT] || b.enabled[OptCGGTTS] ||
		b.enabled[OptPhaseObservations] || b.enabled[OptPseudoRangeObservations] ||
		b.enabled[OptDopplerObservations] || b.enabled[OptPowerObservations] ||
		b.enabled[OptNaviPlot]

	b.needsEphemeris = b.enabled[OptPVT] || b.enabled[OptCGGTTS] ||
		b.enabled[OptOrbitResiduals] || b.enabled[OptClockResiduals] || b.enabled[OptSP3TemporalResiduals]

	b.needsPreciseStates = b.enabled[OptPVT] || b.enabled[OptCGGTTS] ||
		b.enabled[OptOrbitResiduals] || b.enabled[OptSP3TemporalResiduals]

	return b, nil
}

// Enabled reports whether opt was selected.
func (b *AnalysisBuilder) Enabled(opt AnalysisOption) bool { return b.enabled[opt] }

// anyCombination reports whether at least one combination synthesis is
// enabled.
func (b *AnalysisBuilder) anyCombination() bool {
	for _, on := range b.enabledCombinations {
		if on {
			return true
		}
	}
	return false
}

// NeedsSignals, NeedsEphemeris and NeedsPreciseStates are the three
// buffer-retention gates the Runner consults before latching data into
// the EphemerisBuffer/SignalBuffer.
func (b *AnalysisBuilder) NeedsSignals() bool       { return b.needsSignals }
func (b *AnalysisBuilder) NeedsEphemeris() bool     { return b.needsEphemeris }
func (b *AnalysisBuilder) NeedsPreciseStates() bool { return b.needsPreciseStates }

// Solver returns the plugged-in PVT solver, or nil if none was supplied.
func (b *AnalysisBuilder) Solver() PVTSolver { return b.solver }
