package qc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnalysisBuilder_RejectsUnrecognizedOption(t *testing.T) {
	_, err := NewAnalysisBuilder(WithOption(AnalysisOption("not-a-real-option")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInput)
}

func TestNewAnalysisBuilder_EnabledReflectsSelection(t *testing.T) {
	b, err := NewAnalysisBuilder(WithOption(OptPhaseObservations))
	require.NoError(t, err)

	assert.True(t, b.Enabled(OptPhaseObservations))
	assert.False(t, b.Enabled(OptPseudoRangeObservations))
}

func TestNewAnalysisBuilder_NeedsSignalsGateFollowsSelection(t *testing.T) {
	b, err := NewAnalysisBuilder(WithOption(OptCombinationMW))
	require.NoError(t, err)
	assert.True(t, b.NeedsSignals())
	assert.False(t, b.NeedsEphemeris())
	assert.False(t, b.NeedsPreciseStates())
}

func TestNewAnalysisBuilder_NeedsEphemerisAndPreciseStatesForOrbitResiduals(t *testing.T) {
	b, err := NewAnalysisBuilder(WithOption(OptOrbitResiduals))
	require.NoError(t, err)
	assert.True(t, b.NeedsEphemeris())
	assert.True(t, b.NeedsPreciseStates())
}

func TestNewAnalysisBuilder_NoOptionsNeedsNothing(t *testing.T) {
	b, err := NewAnalysisBuilder()
	require.NoError(t, err)
	assert.False(t, b.NeedsSignals())
	assert.False(t, b.NeedsEphemeris())
	assert.False(t, b.NeedsPreciseStates())
}

func TestNewAnalysisBuilder_WithSolverIsRetrievable(t *testing.T) {
	solver := &stubSolver{}
	b, err := NewAnalysisBuilder(WithSolver(solver))
	require.NoError(t, err)
	assert.Equal(t, solver, b.Solver())
}
