package rinex

import (
	"strings"
	"testing"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/stretchr/testify/assert"
)

func TestObsFile_parseFilename(t *testing.T) {
	assert := assert.New(t)

	rnx, err := NewObsFile("ALGO00CAN_R_20121601000_15M_01S_GO.rnx.gz")
	assert.NoError(err)
	assert.Equal("ALGO", rnx.FourCharID)
	assert.Equal("CAN", rnx.CountryCode)
	assert.Equal("R", rnx.DataSource)
	assert.Equal(time.Date(2012, 6, 8, 10, 0, 0, 0, time.UTC), rnx.StartTime)
	assert.Equal("15M", rnx.FilePeriod)
	assert.Equal("01S", rnx.DataFreq)
	assert.Equal("GO", rnx.DataType)
	assert.Equal("rnx", rnx.Format)
	assert.Equal("gz", rnx.Compression)

	rnx2, err := NewObsFile("abmf255u.19d.Z")
	assert.NoError(err)
	assert.Equal("ABMF", rnx2.FourCharID)
	assert.Equal(time.Date(2019, 9, 12, 20, 0, 0, 0, time.UTC), rnx2.StartTime)
	assert.Equal("01H", rnx2.FilePeriod)
	assert.Equal("crx", rnx2.Format)
}

const sampleObsHeader = `     3.03           OBSERVATION DATA    M                   RINEX VERSION / TYPE
sbf2rin-12.3.1                          20181106 200225 UTC PGM / RUN BY / DATE
SEPTENTRIO RECEIVERS OUTPUT ALIGNED CARRIER PHASES.         COMMENT
BRUX                                                        MARKER NAME
13101M010                                                   MARKER NUMBER
ROB                 ROB                                     OBSERVER / AGENCY
3001376             SEPT POLARX4TR      2.9.6               REC # / TYPE / VERS
00464               JAVRINGANT_DM   NONE                    ANT # / TYPE
  4027881.8478   306998.2610  4919498.6554                  APPROX POSITION XYZ
        0.4689        0.0000        0.0010                  ANTENNA: DELTA H/E/N
G    8 C1C L1C S1C C2W L2W S2W C5Q L5Q                      SYS / # / OBS TYPES
    30.000                                                  INTERVAL
  2018    11     6    19     0    0.0000000     GPS         TIME OF FIRST OBS
  2018    11     6    19    59   30.0000000     GPS         TIME OF LAST OBS
                                                            END OF HEADER
`

func TestObsDecoder_readHeader(t *testing.T) {
	assert := assert.New(t)

	dec, err := NewObsDecoder(strings.NewReader(sampleObsHeader))
	assert.NoError(err)
	assert.NotNil(dec)
	assert.Nil(dec.Err())

	hdr := dec.Header
	assert.Equal(float32(3.03), hdr.RINEXVersion)
	assert.Equal("O", hdr.RINEXType)
	assert.Equal(gnss.SysMIXED, hdr.SatSystem)
	assert.Equal("sbf2rin-12.3.1", hdr.Pgm)
	assert.Equal("BRUX", hdr.MarkerName)
	assert.Equal("ROB", hdr.Observer)
	assert.Equal(30.0, hdr.Interval)
	assert.Equal(time.Date(2018, 11, 6, 19, 0, 0, 0, time.UTC), hdr.TimeOfFirstObs)
	assert.Equal(time.Date(2018, 11, 6, 19, 59, 30, 0, time.UTC), hdr.TimeOfLastObs)
	assert.Equal([]string{"C1C", "L1C", "S1C", "C2W", "L2W", "S2W", "C5Q", "L5Q"}, hdr.ObsTypes[gnss.SysGPS])
}

func TestObsDecoder_shortLinesSkipped(t *testing.T) {
	// Lines shorter than the fixed RINEX column width carry no header label
	// and are silently skipped rather than erroring.
	dec, err := NewObsDecoder(strings.NewReader("not a rinex file\n"))
	assert.NoError(t, err)
	assert.NotNil(t, dec)
	assert.Equal(t, float32(0), dec.Header.RINEXVersion)
}

func TestPRN_String(t *testing.T) {
	prn, err := gnss.NewPRN("G12")
	assert.NoError(t, err)
	assert.Equal(t, "G12", prn.String())
	assert.Equal(t, gnss.SysGPS, prn.Sys)
	assert.Equal(t, int8(12), prn.Num)
}
