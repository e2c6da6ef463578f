package qc

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGapHistogram_ObserveBucketsAndCounts(t *testing.T) {
	h := NewGapHistogram(10 * time.Second)

	h.Observe(3 * time.Second)
	h.Observe(12 * time.Second)
	h.Observe(19 * time.Second)

	assert.Equal(t, 3, h.Total())
	assert.Equal(t, 1, h.Counts[0])
	assert.Equal(t, 2, h.Counts[10*time.Second])
}

func TestGapHistogram_ZeroWidthKeepsExactGaps(t *testing.T) {
	h := NewGapHistogram(0)
	h.Observe(7 * time.Second)
	assert.Equal(t, 1, h.Counts[7*time.Second])
}

func TestGapTracker_ObserveSkipsFirstSample(t *testing.T) {
	gaps := newGapTracker()
	hist := NewGapHistogram(time.Second)
	key := gapKey{Sat: mustPRN(t, "G01")}
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	gaps.observe(key, t0, hist)
	assert.Equal(t, 0, hist.Total(), "no prior sample: nothing to observe yet")

	gaps.observe(key, t0.Add(30*time.Second), hist)
	assert.Equal(t, 1, hist.Total())
}

func TestRTKSummary_BaselinesAreRoverMajor(t *testing.T) {
	s := &RTKSummary{}
	s.LatchRoverHeader(SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "rover.rnx"})
	s.LatchBaseHeader(SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "base1.rnx"})
	s.LatchBaseHeader(SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "base2.rnx"})

	baselines := s.Baselines()
	require.Len(t, baselines, 2)
	assert.Contains(t, baselines[0], "rover.rnx")
}

func TestRunReport_WriteJSONRoundTrips(t *testing.T) {
	report := NewRunReport()
	report.Summary = &ContextSummary{Files: []string{"a.rnx"}}
	report.MalformedRecords = 2

	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(2), decoded["malformedRecords"])
	assert.NotContains(t, decoded, "observations", "omitempty fields with no data must not be emitted")
}
