package sp3

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func posOnlyFixture() string {
	lines := []string{
		"#cP2024  1  1  0  0  0.00000000     2   d+D   IGb14 FIT  AIUB",
		"## 2296 0.000000900.00000000 60310 0.0000000000000",
		"+ G01G02",
		"++        ",
		"%c G  cc GPS ccc cccc cccc cccc cccc ccccc ccccc ccccc ccccc",
		"%c cc cc ccc ccc cccc cccc cccc cccc ccccc ccccc ccccc ccccc",
		"%f  1.2500000  1.025000000  0.00000000000  0.000000000000000",
		"%f  0.0000000  0.000000000  0.00000000000  0.000000000000000",
		"%i    0    0    0    0      0      0      0      0         0",
		"%i    0    0    0    0      0      0      0      0         0",
		"/* a comment line",
		"*  2024  1  1  0  0  0.00000000",
		"PG01  11111.111111  22222.222222  33333.333333    123.456789",
		"PG02  -1111.111111  -2222.222222  -3333.333333 999999.999999",
		"EOF",
	}
	return strings.Join(lines, "\n") + "\n"
}

func posVelFixture() string {
	lines := []string{
		"#cV2024  1  1  0  0  0.00000000     1   d+D   IGb14 FIT  AIUB",
		"## 2296 0.000000900.00000000 60310 0.0000000000000",
		"+ G01",
		"++        ",
		"%c G  cc GAL ccc cccc cccc cccc cccc ccccc ccccc ccccc ccccc",
		"%c cc cc ccc ccc cccc cccc cccc cccc ccccc ccccc ccccc ccccc",
		"/* a comment line",
		"*  2024  1  1  0  0  0.00000000",
		"PG01  11111.111111  22222.222222  33333.333333    123.456789",
		"VG01      1.000000      2.000000      3.000000 999999.999999",
		"EOF",
	}
	return strings.Join(lines, "\n") + "\n"
}

func TestDecoder_ReadsHeaderFields(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader(posOnlyFixture()))
	require.NoError(t, err)

	assert.Equal(t, "c", dec.Header.Version)
	assert.Equal(t, "P", dec.Header.PosOrVel)
	assert.Equal(t, 2, dec.Header.NumEpochs)
	assert.Equal(t, 900*time.Second, dec.Header.EpochInterval)
	assert.Equal(t, "cc", dec.Header.DataUsed, "the second %%c line's placeholders overwrite the first's")
	assert.Equal(t, "ccc", dec.Header.CoordSystem)
	assert.Equal(t, gnss.TimescaleGPS, dec.Header.Timescale, "Timescale keeps the first %%c line's value once set")
	require.Len(t, dec.Header.Sats, 2)
}

func TestDecoder_UnrecognizedTimescaleLeftUnknown(t *testing.T) {
	raw := strings.Replace(posOnlyFixture(), "%c G  cc GPS ccc", "%c G  cc xxx ccc", 1)
	dec, err := NewDecoder(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, gnss.TimescaleUnknown, dec.Header.Timescale)
}

func TestDecoder_NextStateParsesPositionOnlyRecords(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader(posOnlyFixture()))
	require.NoError(t, err)

	st, err := dec.NextState()
	require.NoError(t, err)
	assert.Equal(t, "G01", st.PRN.String())
	assert.Equal(t, [3]float64{11111.111111, 22222.222222, 33333.333333}, st.PositionKm)
	require.NotNil(t, st.ClockOffset)
	assert.Equal(t, 123.456789, *st.ClockOffset)
	assert.Nil(t, st.VelocityKm, "position-only file: no velocity line follows")

	st2, err := dec.NextState()
	require.NoError(t, err)
	assert.Equal(t, "G02", st2.PRN.String())
	assert.Nil(t, st2.ClockOffset, "999999.999999 is the SP3 bad-clock sentinel")

	_, err = dec.NextState()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_NextStateAttachesVelocityFromLookahead(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader(posVelFixture()))
	require.NoError(t, err)

	assert.Equal(t, gnss.TimescaleGST, dec.Header.Timescale, "SP3's GAL abbreviation maps to the GST timescale")

	st, err := dec.NextState()
	require.NoError(t, err)
	assert.Equal(t, "G01", st.PRN.String())
	assert.Equal(t, [3]float64{11111.111111, 22222.222222, 33333.333333}, st.PositionKm)

	require.NotNil(t, st.VelocityKm, "a V record immediately follows the P record for this satellite")
	assert.InDeltaSlice(t, []float64{1e-4, 2e-4, 3e-4}, st.VelocityKm[:], 1e-12)
}
