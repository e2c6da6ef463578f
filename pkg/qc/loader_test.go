package qc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalObsFileText builds a header-only RINEX3 observation file (no
// epochs) with the given marker/agency/receiver fields, enough to drive
// DeriveIndexKey without needing a full body.
func minimalObsFileText(marker, agency, receiver string) string {
	var version strings.Builder
	fmt.Fprintf(&version, "%-20s", "3.04")
	version.WriteString("O")
	version.WriteString(strings.Repeat(" ", 19))
	version.WriteString("G")
	version.WriteString(strings.Repeat(" ", 19))

	lines := []string{
		version.String() + "RINEX VERSION / TYPE",
		fmt.Sprintf("%-60s", marker) + "MARKER NAME",
		fmt.Sprintf("%-20s%-40s", "observer", agency) + "OBSERVER / AGENCY",
		fmt.Sprintf("%-20s%-20s%-20s", "", receiver, "") + "REC # / TYPE / VERS",
		strings.Repeat(" ", 60) + "END OF HEADER",
	}
	return strings.Join(lines, "\n") + "\n"
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDataStore_LoadObsFile_DerivesIndexKeyAndRegisters(t *testing.T) {
	path := writeTempFile(t, "a.rnx", minimalObsFileText("STAT", "AGENCY1", "RECV1"))

	s := NewDataStore()
	desc, err := s.LoadObsFile(path, IndexingAuto)
	require.NoError(t, err)
	assert.Equal(t, ProductObservation, desc.Product)
	assert.Equal(t, "a.rnx", desc.Filename)
	assert.Equal(t, IndexGeodeticMarker, desc.Index.Kind)
	assert.Equal(t, "STAT", desc.Index.Value)

	got, ok := s.DataSetFor(desc)
	require.True(t, ok)
	assert.Equal(t, "STAT", got.(*rinexDataSet).Obs.Header.MarkerName)
}

func TestDataStore_LoadObsFile_MissingFileReturnsInputError(t *testing.T) {
	s := NewDataStore()
	_, err := s.LoadObsFile(filepath.Join(t.TempDir(), "missing.rnx"), IndexingAuto)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInput)
}

func TestDataStore_LoadNavFile_DecodesEphemerisAndRegistersUnderNoneKey(t *testing.T) {
	path := writeTempFile(t, "a.nav", gpsEphText("G01", 4))

	s := NewDataStore()
	desc, err := s.LoadNavFile(path)
	require.NoError(t, err)
	assert.Equal(t, ProductBroadcastNavigation, desc.Product)
	assert.Equal(t, NoneKey, desc.Index)

	got, ok := s.DataSetFor(desc)
	require.True(t, ok)
	assert.Len(t, got.(*rinexDataSet).Nav.Ephemerides, 1)
}

func TestDataStore_LoadTwoNavFilesMergesUnderSameKey(t *testing.T) {
	first := writeTempFile(t, "a.nav", gpsEphText("G01", 4))
	second := writeTempFile(t, "b.nav", gpsEphText("G01", 6))

	s := NewDataStore()
	_, err := s.LoadNavFile(first)
	require.NoError(t, err)
	_, err = s.LoadNavFile(second)
	require.NoError(t, err)

	got, ok := s.Get(ProductBroadcastNavigation, NoneKey)
	require.True(t, ok)
	assert.Len(t, got.(*rinexDataSet).Nav.Ephemerides, 2)
}
