package rinex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
)

const (
	// TimeOfClockFormat is the time format within RINEX3 Nav records.
	TimeOfClockFormat string = "2006  1  2 15  4  5"
)

// Eph is the interface that wraps the methods common to every type of
// broadcast ephemeris (Keplerian systems and the GLONASS/SBAS position-
// velocity-acceleration message).
type Eph interface {
	// PRN returns the broadcasting satellite.
	PRN() gnss.PRN

	// TOC returns the time of clock, the epoch the broadcast record refers to.
	TOC() time.Time

	// TOE returns the absolute time of ephemeris.
	TOE() time.Time

	// ValidAt reports whether this record is the applicable broadcast
	// ephemeris for its satellite at t.
	ValidAt(t time.Time) bool

	// SetTOC overrides the time of clock, used by qc.Transposer to
	// restamp an ephemeris into a different timescale.
	SetTOC(t time.Time)

	// Validate checks the ephemeris for plausibility.
	Validate() error

	// unmarshal decodes the data lines following the epoch/TOC line.
	unmarshal(lines []string) error
}

// validityHalfWindow is the duration on either side of TOE for which a
// broadcast ephemeris is considered the applicable one for its satellite,
// per GNSS ICD fit-interval conventions (2h for GPS/Galileo/BeiDou/QZSS/
// NavIC Keplerian messages, 15m for GLONASS/SBAS PVA messages, whose
// validity window is tied to the shorter broadcast cadence).
const (
	keplerianValidityHalfWindow = 2 * time.Hour
	pvaValidityHalfWindow       = 15 * time.Minute
)

// newEph returns a new, empty ephemeris of the concrete type matching sys.
func newEph(sys gnss.System) (Eph, error) {
	switch sys {
	case gnss.SysGPS, gnss.SysGAL, gnss.SysBDS, gnss.SysQZSS, gnss.SysIRNSS:
		return &KeplerianEph{sys: sys}, nil
	case gnss.SysGLO, gnss.SysSBAS:
		return &PVAEph{sys: sys}, nil
	default:
		return nil, fmt.Errorf("unsupported satellite system for ephemeris: %v", sys)
	}
}

// KeplerianEph is the broadcast ephemeris shared by the GPS, Galileo,
// BeiDou, QZSS and NavIC systems: a Keplerian orbit plus a set of
// perturbation and clock correction terms, laid out identically across
// these systems in RINEX3 (only the health/accuracy field semantics
// differ, which callers interpret per-system).
type KeplerianEph struct {
	sys gnss.System
	prn gnss.PRN
	toc time.Time

	ClockBias     float64 // SV clock bias [s]
	ClockDrift    float64 // SV clock drift [s/s]
	ClockDriftRate float64 // SV clock drift rate [s/s^2]

	IODE    float64 // Issue of data, ephemeris
	Crs     float64 // [m]
	DeltaN  float64 // Mean motion difference [rad/s]
	M0      float64 // Mean anomaly at reference time [rad]

	Cuc   float64 // [rad]
	Ecc   float64 // Eccentricity
	Cus   float64 // [rad]
	SqrtA float64 // Square root of the semi-major axis [sqrt(m)]

	Toe   float64 // Time of ephemeris [s of week]
	Cic   float64 // [rad]
	Omega0 float64 // Longitude of ascending node at weekly epoch [rad]
	Cis   float64 // [rad]

	I0    float64 // Inclination angle at reference time [rad]
	Crc   float64 // [m]
	Omega float64 // Argument of perigee [rad]
	OmegaDot float64 // Rate of right ascension [rad/s]

	IDOT    float64 // Rate of inclination angle [rad/s]
	ToeWeek float64 // GPS/Galileo/BDS/QZSS week of Toe

	URA    float64 // SV accuracy [m]
	Health float64 // SV health
	TGD    float64 // Group delay [s]
	IODC   float64 // Issue of data, clock (GPS) or spare

	Tom float64 // Transmission time of message [s of week]
}

func (e *KeplerianEph) PRN() gnss.PRN   { return e.prn }
func (e *KeplerianEph) TOC() time.Time  { return e.toc }
func (e *KeplerianEph) SetTOC(t time.Time) { e.toc = t }

// TOE returns the absolute time of ephemeris, reconstructed from the GNSS
// week and seconds-of-week fields relative to TOC's week.
func (e *KeplerianEph) TOE() time.Time {
	return e.toc.Add(time.Duration((e.Toe-secondsOfWeek(e.toc))*1e9) * time.Nanosecond)
}

// ValidAt reports whether t falls within this ephemeris' fit interval.
func (e *KeplerianEph) ValidAt(t time.Time) bool {
	toe := e.TOE()
	d := t.Sub(toe)
	return d >= -keplerianValidityHalfWindow && d <= keplerianValidityHalfWindow
}

// Validate reports whether the decoded ephemeris is in a plausible range.
func (e *KeplerianEph) Validate() error {
	if e.Ecc < 0 || e.Ecc >= 1 {
		return fmt.Errorf("%v: implausible eccentricity: %f", e.prn, e.Ecc)
	}
	if e.SqrtA <= 0 {
		return fmt.Errorf("%v: non-positive sqrt(A): %f", e.prn, e.SqrtA)
	}
	if e.toc.IsZero() {
		return fmt.Errorf("%v: missing TOC", e.prn)
	}
	return nil
}

func (e *KeplerianEph) unmarshal(lines []string) error {
	fields := make([]float64, 0, 4*len(lines))
	for _, line := range lines {
		vals, err := parseFloatsNavLine(line)
		if err != nil {
			return fmt.Errorf("%v: %v", e.prn, err)
		}
		fields = append(fields, vals...)
	}
	if len(fields) < 28 {
		return fmt.Errorf("%v: short ephemeris record: %d fields", e.prn, len(fields))
	}

	e.IODE, e.Crs, e.DeltaN, e.M0 = fields[0], fields[1], fields[2], fields[3]
	e.Cuc, e.Ecc, e.Cus, e.SqrtA = fields[4], fields[5], fields[6], fields[7]
	e.Toe, e.Cic, e.Omega0, e.Cis = fields[8], fields[9], fields[10], fields[11]
	e.I0, e.Crc, e.Omega, e.OmegaDot = fields[12], fields[13], fields[14], fields[15]
	e.IDOT, _, e.ToeWeek = fields[16], fields[17], fields[18]
	e.URA, e.Health, e.TGD, e.IODC = fields[19], fields[20], fields[21], fields[22]
	e.Tom = fields[23]
	return nil
}

// secondsOfWeek returns t's time-of-week in seconds, UTC-naive (callers
// needing exact GNSS-week alignment should use a Transposer).
func secondsOfWeek(t time.Time) float64 {
	wd := int(t.Weekday())
	return float64(wd*86400) + float64(t.Hour()*3600+t.Minute()*60+t.Second())
}

// PVAEph is the broadcast ephemeris used by GLONASS and SBAS: a position,
// velocity and acceleration state vector plus a clock offset, rather than a
// Keplerian orbit.
type PVAEph struct {
	sys gnss.System
	prn gnss.PRN
	toc time.Time

	ClockBias     float64
	RelativeFreqBias float64
	MessageFrameTime float64

	X, Y, Z          float64 // position [km]
	Xd, Yd, Zd       float64 // velocity [km/s]
	Xdd, Ydd, Zdd    float64 // acceleration [km/s^2]

	Health float64
}

func (e *PVAEph) PRN() gnss.PRN  { return e.prn }
func (e *PVAEph) TOC() time.Time { return e.toc }
func (e *PVAEph) SetTOC(t time.Time) { e.toc = t }

// TOE returns the time of ephemeris. GLONASS/SBAS broadcast a state vector
// referenced to TOC directly; there is no separate TOE field.
func (e *PVAEph) TOE() time.Time { return e.toc }

// ValidAt reports whether t falls within this record's (short) validity
// window.
func (e *PVAEph) ValidAt(t time.Time) bool {
	d := t.Sub(e.toc)
	return d >= -pvaValidityHalfWindow && d <= pvaValidityHalfWindow
}

func (e *PVAEph) Validate() error {
	if e.toc.IsZero() {
		return fmt.Errorf("%v: missing TOC", e.prn)
	}
	return nil
}

func (e *PVAEph) unmarshal(lines []string) error {
	fields := make([]float64, 0, 4*len(lines))
	for _, line := range lines {
		vals, err := parseFloatsNavLine(line)
		if err != nil {
			return fmt.Errorf("%v: %v", e.prn, err)
		}
		fields = append(fields, vals...)
	}
	if len(fields) < 11 {
		return fmt.Errorf("%v: short PVA ephemeris record: %d fields", e.prn, len(fields))
	}
	e.X, e.Xd, e.Xdd, e.Health = fields[0], fields[1], fields[2], fields[3]
	e.Y, e.Yd, e.Ydd = fields[4], fields[5], fields[6]
	e.Z, e.Zd, e.Zdd = fields[8], fields[9], fields[10]
	return nil
}

// IonosphericCorr is a header "IONOSPHERIC CORR" record.
type IonosphericCorr struct {
	Type   string // GAL, GPSA, GPSB, QZSA, QZSB, BDSA, BDSB, IRNA, IRNB,...
	Values [4]float64
}

// TimeSystemCorr is a header "TIME SYSTEM CORR" record.
type TimeSystemCorr struct {
	Type       string // GPUT, GAUT, GLUT, BDUT, SBUT, GPGA, GLGP,...
	A0, A1     float64
	RefTime    float64
	RefWeek    int
}

// NavHeader stores the RINEX navigation header fields.
type NavHeader struct {
	RINEXVersion float32
	RINEXType    string
	SatSystem    gnss.System // "Mixed" if more than one system contributes.

	Pgm   string
	RunBy string
	Date  time.Time

	IonosphericCorrs []IonosphericCorr
	TimeSystemCorrs  []TimeSystemCorr
	LeapSeconds      int

	Comments []string
	Labels   []string
}

// NavDecoder reads and decodes header and data records from a RINEX nav input stream.
type NavDecoder struct {
	// Header is valid after NewNavDecoder. The header must exist, otherwise
	// ErrNoHeader will be returned.
	Header  *NavHeader
	sc      *bufio.Scanner
	lineNum int
	err     error
}

// NewNavDecoder returns a new decoder for RINEX navigation data. The RINEX
// header is read implicitly.
//
// It is the caller's responsibility to call Close on the underlying reader when done!
func NewNavDecoder(r io.Reader) (*NavDecoder, error) {
	dec := &NavDecoder{sc: bufio.NewScanner(r)}
	dec.Header, dec.err = dec.readHeader()
	return dec, dec.err
}

func (dec *NavDecoder) readHeader() (*NavHeader, error) {
	hdr := &NavHeader{}

	if !dec.readLine() {
		return nil, ErrNoHeader
	}
	line := dec.line()
	if !strings.Contains(line, "RINEX VERSION") {
		return nil, ErrNoHeader
	}

	if f64, err := strconv.ParseFloat(strings.TrimSpace(line[:9]), 32); err == nil {
		hdr.RINEXVersion = float32(f64)
	} else {
		return nil, fmt.Errorf("parse RINEX VERSION: %v", err)
	}

	typ := strings.TrimSpace(line[20:21])
	if typ != "N" && typ != "G" {
		return nil, fmt.Errorf("invalid RINEX TYPE: %q", typ)
	}
	hdr.RINEXType = typ

	sysAbbr := strings.TrimSpace(line[40:41])
	if sysAbbr == "" {
		hdr.SatSystem = gnss.SysMIXED
	} else if sys, ok := sysPerAbbr[sysAbbr]; ok {
		hdr.SatSystem = sys
	} else {
		return nil, fmt.Errorf("read header: invalid satellite system: %q", sysAbbr)
	}

readln:
	for dec.readLine() {
		line := dec.line()
		if len(line) < 60 {
			continue
		}
		val := line[:60]
		key := strings.TrimSpace(line[60:])
		hdr.Labels = append(hdr.Labels, key)

		switch key {
		case "PGM / RUN BY / DATE":
			hdr.Pgm = strings.TrimSpace(val[:20])
			hdr.RunBy = strings.TrimSpace(val[20:40])
			if date, err := parseHeaderDate(strings.TrimSpace(val[40:])); err == nil {
				hdr.Date = date
			} else {
				log.Printf("parse header date: %v", err)
			}
		case "COMMENT":
			hdr.Comments = append(hdr.Comments, strings.TrimSpace(val))
		case "IONOSPHERIC CORR":
			fields := strings.Fields(val)
			if len(fields) < 5 {
				log.Printf("invalid IONOSPHERIC CORR record: %q", val)
				continue
			}
			corr := IonosphericCorr{Type: fields[0]}
			for i := 0; i < 4; i++ {
				f, err := parseFloatD(fields[i+1])
				if err != nil {
					log.Printf("parse IONOSPHERIC CORR: %v", err)
				}
				corr.Values[i] = f
			}
			hdr.IonosphericCorrs = append(hdr.IonosphericCorrs, corr)
		case "TIME SYSTEM CORR":
			typ := strings.TrimSpace(val[:4])
			a0, _ := parseFloatD(val[5:22])
			a1, _ := parseFloatD(val[22:38])
			refTime, _ := parseFloat(val[38:45])
			refWeek, _ := strconv.Atoi(strings.TrimSpace(val[45:50]))
			hdr.TimeSystemCorrs = append(hdr.TimeSystemCorrs, TimeSystemCorr{
				Type: typ, A0: a0, A1: a1, RefTime: refTime, RefWeek: refWeek,
			})
		case "LEAP SECONDS":
			if n, err := strconv.Atoi(strings.TrimSpace(val[:6])); err == nil {
				hdr.LeapSeconds = n
			}
		case "END OF HEADER":
			break readln
		default:
			log.Printf("nav header field %q not handled yet", key)
		}
	}

	if hdr.RINEXVersion == 0 {
		return hdr, fmt.Errorf("unknown RINEX Version")
	}

	return hdr, dec.sc.Err()
}

// NextEphemeris reads and returns the next ephemeris record, or io.EOF once
// the stream is exhausted. It is the pull-based primitive the core
// Serializer drives: each call returns exactly one record, in
// file order, with no internal buffering across calls.
func (dec *NavDecoder) NextEphemeris() (Eph, error) {
	// A missing header or the end of the stream ends decoding; a malformed
	// record does not, and the next call resumes at the following line.
	if dec.Header == nil {
		return nil, dec.err
	}
	if errors.Is(dec.err, io.EOF) {
		return nil, io.EOF
	}

	if !dec.readLine() {
		dec.setErr(io.EOF)
		return nil, io.EOF
	}
	epochLine := dec.line()
	if len(epochLine) < 4 {
		err := fmt.Errorf("short nav epoch line: %q", epochLine)
		dec.setErr(err)
		return nil, err
	}

	sysAbbr := string(epochLine[0])
	var sys gnss.System
	if s, ok := sysPerAbbr[sysAbbr]; ok {
		sys = s
	} else if dec.Header.SatSystem != gnss.SysMIXED {
		sys = dec.Header.SatSystem
	} else {
		err := fmt.Errorf("cannot determine satellite system for nav record: %q", epochLine)
		dec.setErr(err)
		return nil, err
	}

	prn, err := gnss.NewPRN(fmt.Sprintf("%s%s", sys.Abbr(), strings.TrimSpace(epochLine[1:3])))
	if err != nil {
		dec.setErr(err)
		return nil, err
	}

	toc, err := time.Parse(TimeOfClockFormat, epochLine[4:23])
	if err != nil {
		dec.setErr(err)
		return nil, err
	}

	eph, err := newEph(sys)
	if err != nil {
		dec.setErr(err)
		return nil, err
	}

	clkFields, err := parseFixedFloats(epochLine[23:], 19)
	if err != nil {
		dec.setErr(err)
		return nil, err
	}
	if len(clkFields) < 3 {
		err := fmt.Errorf("short nav clock fields: %q", epochLine)
		dec.setErr(err)
		return nil, err
	}

	numDataLines := 7
	if sys == gnss.SysGLO || sys == gnss.SysSBAS {
		numDataLines = 3
	}
	lines := make([]string, 0, numDataLines)
	for i := 0; i < numDataLines; i++ {
		if !dec.readLine() {
			dec.setErr(fmt.Errorf("%v: unexpected end of ephemeris record", prn))
			return nil, dec.err
		}
		lines = append(lines, dec.line())
	}

	if err := eph.unmarshal(lines); err != nil {
		dec.setErr(err)
		return nil, err
	}

	switch v := eph.(type) {
	case *KeplerianEph:
		v.sys, v.prn, v.toc = sys, prn, toc
		v.ClockBias, v.ClockDrift, v.ClockDriftRate = clkFields[0], clkFields[1], clkFields[2]
	case *PVAEph:
		v.sys, v.prn, v.toc = sys, prn, toc
		v.ClockBias, v.RelativeFreqBias, v.MessageFrameTime = clkFields[0], clkFields[1], clkFields[2]
	}

	return eph, nil
}

// Err returns the first non-EOF error encountered by the decoder.
func (dec *NavDecoder) Err() error {
	if dec.err == io.EOF {
		return nil
	}
	return dec.err
}

func (dec *NavDecoder) setErr(err error) {
	dec.err = errors.Join(dec.err, err)
}

func (dec *NavDecoder) readLine() bool {
	if ok := dec.sc.Scan(); !ok {
		return ok
	}
	dec.lineNum++
	return true
}

func (dec *NavDecoder) line() string {
	return dec.sc.Text()
}

// parseFloatD parses a Fortran-style float using 'D' or 'd' as the exponent
// marker, e.g. "1.234D-05", falling back to plain float parsing.
func parseFloatD(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.ReplaceAll(s, "D", "E")
	s = strings.ReplaceAll(s, "d", "e")
	return strconv.ParseFloat(s, 64)
}

// parseFixedFloats splits s into fixed-width-wide Fortran-style numeric
// fields, starting at position 0.
func parseFixedFloats(s string, width int) ([]float64, error) {
	var vals []float64
	for pos := 0; pos < len(s); pos += width {
		end := pos + width
		if end > len(s) {
			end = len(s)
		}
		f, err := parseFloatD(s[pos:end])
		if err != nil {
			return nil, fmt.Errorf("parse field %q: %v", s[pos:end], err)
		}
		vals = append(vals, f)
	}
	return vals, nil
}

// parseFloatsNavLine splits a RINEX3 nav continuation line into its (up to
// four) 19-character numeric fields. Continuation lines reserve the first 4
// columns as a blank PRN/line-number slot before the data fields begin.
func parseFloatsNavLine(line string) ([]float64, error) {
	if len(line) <= 4 {
		return nil, nil
	}
	return parseFixedFloats(line[4:], 19)
}
