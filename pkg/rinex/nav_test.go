package rinex

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/stretchr/testify/assert"
)

// navField right-justifies raw within a 19-character fixed-width nav field.
func navField(raw string) string {
	return fmt.Sprintf("%19s", raw)
}

// navContLine builds a RINEX3 nav continuation line: 4 blank columns
// followed by up to four 19-character fields.
func navContLine(vals ...string) string {
	var b strings.Builder
	b.WriteString("    ")
	for _, v := range vals {
		b.WriteString(navField(v))
	}
	return b.String()
}

func navHeaderLine1(version, typ, sysAbbr string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%9s", version)
	b.WriteString(strings.Repeat(" ", 11))
	b.WriteString(typ)
	b.WriteString(strings.Repeat(" ", 19))
	b.WriteString(sysAbbr)
	b.WriteString(strings.Repeat(" ", 19))
	b.WriteString("RINEX VERSION / TYPE")
	return b.String()
}

func navHeaderRecord(val, key string) string {
	return fmt.Sprintf("%-60s", val) + key
}

func buildGpsNavInput() string {
	lines := []string{
		navHeaderLine1("3.04", "N", "G"),
		navHeaderRecord(fmt.Sprintf("%-20s%-20s%-20s", "teachprog", "BKG", "20230115 120000"), "PGM / RUN BY / DATE"),
		navHeaderRecord("GPSA  .1024E-07  .1490E-07 -.5960E-07 -.1192E-06", "IONOSPHERIC CORR"),
		navHeaderRecord("GPUT "+fmt.Sprintf("%17s", "1.234E-09")+fmt.Sprintf("%16s", "2.000E-12")+fmt.Sprintf("%7s", "61440")+fmt.Sprintf("%5s", "2190"), "TIME SYSTEM CORR"),
		navHeaderRecord(fmt.Sprintf("%6d", 18), "LEAP SECONDS"),
		navHeaderRecord("", "END OF HEADER"),
		"G01 2023 01 15 00 00 00" + navField("-1.0") + navField("-2.0") + navField("0.0"),
		navContLine("1.0", "2.0", "3.0", "4.0"),
		navContLine("5.0", "1.0D-02", "7.0", "5153.79"),
		navContLine("9.0", "10.0", "11.0", "12.0"),
		navContLine("13.0", "14.0", "15.0", "16.0"),
		navContLine("17.0", "18.0", "19.0", "20.0"),
		navContLine("21.0", "22.0", "23.0", "24.0"),
		navContLine("0.0", "0.0", "0.0", "0.0"),
		"R01 2023 01 15 00 15 00" + navField("-3.0") + navField("4.0D-04") + navField("900.0"),
		navContLine("10000.0", "1.0", "2.0", "9.0"),
		navContLine("20000.0", "2.0", "3.0", "0.0"),
		navContLine("30000.0", "3.0", "4.0", "0.0"),
	}
	return strings.Join(lines, "\n") + "\n"
}

func TestNavDecoder_readHeader(t *testing.T) {
	assert := assert.New(t)

	dec, err := NewNavDecoder(strings.NewReader(buildGpsNavInput()))
	assert.NoError(err)
	assert.NotNil(dec)
	assert.Nil(dec.Err())

	hdr := dec.Header
	assert.Equal(float32(3.04), hdr.RINEXVersion)
	assert.Equal("N", hdr.RINEXType)
	assert.Equal(gnss.SysGPS, hdr.SatSystem)
	assert.Equal("teachprog", hdr.Pgm)
	assert.Equal("BKG", hdr.RunBy)
	assert.Equal(time.Date(2023, 1, 15, 12, 0, 0, 0, time.UTC), hdr.Date)
	assert.Equal(18, hdr.LeapSeconds)

	if assert.Len(hdr.IonosphericCorrs, 1) {
		corr := hdr.IonosphericCorrs[0]
		assert.Equal("GPSA", corr.Type)
		assert.InDelta(0.1024e-07, corr.Values[0], 1e-12)
		assert.InDelta(-0.1192e-06, corr.Values[3], 1e-12)
	}

	if assert.Len(hdr.TimeSystemCorrs, 1) {
		tsc := hdr.TimeSystemCorrs[0]
		assert.Equal("GPUT", tsc.Type)
		assert.InDelta(1.234e-09, tsc.A0, 1e-14)
		assert.InDelta(2.000e-12, tsc.A1, 1e-16)
		assert.Equal(2190, tsc.RefWeek)
	}
}

func TestNavDecoder_NextEphemeris_Keplerian(t *testing.T) {
	assert := assert.New(t)

	dec, err := NewNavDecoder(strings.NewReader(buildGpsNavInput()))
	assert.NoError(err)

	eph, err := dec.NextEphemeris()
	assert.NoError(err)

	kep, ok := eph.(*KeplerianEph)
	if !assert.True(ok, "expected a KeplerianEph for a GPS record") {
		return
	}

	assert.Equal(gnss.PRN{Sys: gnss.SysGPS, Num: 1}, kep.PRN())
	assert.Equal(time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), kep.TOC())
	assert.Equal(-1.0, kep.ClockBias)
	assert.Equal(-2.0, kep.ClockDrift)
	assert.Equal(0.0, kep.ClockDriftRate)

	assert.Equal(1.0, kep.IODE)
	assert.Equal(2.0, kep.Crs)
	assert.Equal(0.01, kep.Ecc)
	assert.Equal(5153.79, kep.SqrtA)
	assert.Equal(19.0, kep.ToeWeek)
	assert.Equal(24.0, kep.Tom)

	assert.NoError(kep.Validate())
}

func TestNavDecoder_NextEphemeris_PVA(t *testing.T) {
	assert := assert.New(t)

	dec, err := NewNavDecoder(strings.NewReader(buildGpsNavInput()))
	assert.NoError(err)

	_, err = dec.NextEphemeris() // skip the GPS record
	assert.NoError(err)

	eph, err := dec.NextEphemeris()
	assert.NoError(err)

	pva, ok := eph.(*PVAEph)
	if !assert.True(ok, "expected a PVAEph for a GLONASS record") {
		return
	}

	assert.Equal(gnss.PRN{Sys: gnss.SysGLO, Num: 1}, pva.PRN())
	assert.Equal(time.Date(2023, 1, 15, 0, 15, 0, 0, time.UTC), pva.TOC())
	assert.Equal(-3.0, pva.ClockBias)
	assert.Equal(10000.0, pva.X)
	assert.Equal(20000.0, pva.Y)
	assert.Equal(30000.0, pva.Z)
	assert.Equal(9.0, pva.Health)

	assert.NoError(pva.Validate())

	_, err = dec.NextEphemeris()
	assert.Equal(io.EOF, err)
	assert.Nil(dec.Err())
}

func TestKeplerianEph_Validate(t *testing.T) {
	e := &KeplerianEph{prn: gnss.PRN{Sys: gnss.SysGPS, Num: 3}}
	assert.Error(t, e.Validate(), "zero TOC and implausible orbit terms should fail validation")

	e.Ecc = 0.01
	e.SqrtA = 5153.79
	e.toc = time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, e.Validate())
}
