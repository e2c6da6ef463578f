// Package sp3 decodes precise orbit/clock products (the SP3 family) into
// the typed records the qc core consumes. It follows the header/decoder
// split used throughout pkg/rinex (NewXxxDecoder reads the header eagerly,
// NextState pulls one data record at a time).
package sp3

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
)

// Header stores the fields of an SP3 header relevant to downstream
// analyses. The decoder fills Version, PosOrVel, StartEpoch and NumEpochs
// from the '#' line, EpochInterval from the '##' line, Sats from the '+'
// lines, and DataUsed, CoordSystem and Timescale from the %c lines
// (DataUsed and CoordSystem take the second and fourth fields of the last
// %c line). OrbitType and Agency are not filled in.
type Header struct {
	Version      string // "a".."d"
	PosOrVel     string // "P" position only, "V" position+velocity
	StartEpoch   time.Time
	NumEpochs    int
	DataUsed     string
	CoordSystem  string
	OrbitType    string
	Agency       string
	Sats         []gnss.PRN
	EpochInterval time.Duration
	Timescale    gnss.Timescale // from the %c header line's time-system field; Unknown if absent/unrecognized. Rewritten when the epochs are transposed into another timescale.
}

// PreciseState is a single post-processed satellite state: position,
// optional velocity, and optional clock offset.
type PreciseState struct {
	Epoch       time.Time
	PRN         gnss.PRN
	PositionKm  [3]float64
	VelocityKm  *[3]float64 // nil when the file carries positions only
	ClockOffset *float64    // microseconds, nil when absent (bad clock flag)
}

// Decoder reads and decodes header and data records from an SP3 input
// stream.
type Decoder struct {
	Header  *Header
	sc      *bufio.Scanner
	lineNum int
	err     error

	curEpoch time.Time
	pending  []string // data lines buffered between two epoch markers
}

// NewDecoder returns a new SP3 decoder reading from r. The header is read
// implicitly; it is the caller's responsibility to close the underlying
// reader when done.
func NewDecoder(r io.Reader) (*Decoder, error) {
	dec := &Decoder{sc: bufio.NewScanner(r)}
	dec.Header, dec.err = dec.readHeader()
	return dec, dec.err
}

func (dec *Decoder) readHeader() (*Header, error) {
	hdr := &Header{}

	if !dec.readLine() {
		return nil, fmt.Errorf("sp3: empty file")
	}
	line := dec.line()
	if len(line) < 3 || line[0] != '#' {
		return nil, fmt.Errorf("sp3: missing header line")
	}
	hdr.Version = string(line[1])
	hdr.PosOrVel = string(line[2])

	if len(line) >= 60 {
		t, err := parseSP3Epoch(line[3:])
		if err == nil {
			hdr.StartEpoch = t
		}
	}
	if n, err := strconv.Atoi(numEpochsField(line)); err == nil {
		hdr.NumEpochs = n
	}

	for dec.readLine() {
		l := dec.line()
		if len(l) == 0 {
			continue
		}
		switch {
		case strings.HasPrefix(l, "##"):
			if len(l) >= 24 {
				if sec, err := strconv.ParseFloat(strings.TrimSpace(l[16:24]), 64); err == nil {
					hdr.EpochInterval = time.Duration(sec * float64(time.Second))
				}
			}
		case strings.HasPrefix(l, "+ "), strings.HasPrefix(l, "++"):
			hdr.Sats = append(hdr.Sats, parseSatLine(l)...)
		case strings.HasPrefix(l, "%c"):
			fs := strings.Fields(l)
			if len(fs) >= 4 {
				hdr.DataUsed = fs[1]
				hdr.CoordSystem = fs[3]
				if hdr.Timescale == gnss.TimescaleUnknown {
					if ts, ok := timescaleFromSP3(fs[3]); ok {
						hdr.Timescale = ts
					}
				}
			}
		case strings.HasPrefix(l, "%f"), strings.HasPrefix(l, "%i"):
			// base/float accuracy records: not modelled further.
		case strings.HasPrefix(l, "/*"):
			// comment line.
		case strings.HasPrefix(l, "*"):
			dec.curEpoch, _ = parseSP3Epoch(l[1:])
			return hdr, nil
		}
	}

	return hdr, dec.sc.Err()
}

// sp3TimescaleAbbrs maps the SP3 header's three-letter time-system
// abbreviation (%c line, e.g. "GPS", "GAL", "BDS") to the pkg/gnss
// Timescale it names; SP3's own abbreviations differ slightly from RINEX's
// (GAL vs GST, BDS vs BDT, QZS vs QZSS).
var sp3TimescaleAbbrs = map[string]gnss.Timescale{
	"GPS": gnss.TimescaleGPS,
	"GAL": gnss.TimescaleGST,
	"BDS": gnss.TimescaleBDT,
	"GLO": gnss.TimescaleGLO,
	"QZS": gnss.TimescaleQZSS,
	"TAI": gnss.TimescaleTAI,
	"UTC": gnss.TimescaleUTC,
}

// timescaleFromSP3 resolves an SP3 %c time-system abbreviation to a
// gnss.Timescale, or (Unknown, false) if unrecognized (e.g. the "ccc"
// placeholder SP3 uses when the field is absent).
func timescaleFromSP3(abbr string) (gnss.Timescale, bool) {
	ts, ok := sp3TimescaleAbbrs[strings.ToUpper(abbr)]
	return ts, ok
}

// numEpochsField extracts SP3's fixed-width "number of epochs" field from
// the '#' line, positions 32..39.
func numEpochsField(line string) string {
	if len(line) < 39 {
		return "0"
	}
	return strings.TrimSpace(line[32:39])
}

// NextState returns the next precise state record, or io.EOF once the
// stream is exhausted. Each call returns exactly one record, matching the
// pull contract the core Serializer drives.
func (dec *Decoder) NextState() (PreciseState, error) {
	if dec.err != nil {
		return PreciseState{}, dec.err
	}

	for {
		line := dec.line()
		switch {
		case strings.HasPrefix(line, "*"):
			t, err := parseSP3Epoch(line[1:])
			if err != nil {
				dec.setErr(err)
				return PreciseState{}, err
			}
			dec.curEpoch = t
		case strings.HasPrefix(line, "P"):
			st, err := parsePositionLine(line, dec.curEpoch)
			if err != nil {
				dec.setErr(err)
				return PreciseState{}, err
			}
			if !dec.readLine() {
				dec.setErr(io.EOF)
				return st, nil
			}
			// SP3 files with PosOrVel == "V" carry one velocity line right
			// after each position line, for the same satellite; fold it into
			// the state we're about to return rather than emitting it
			// separately, since the Serializer deals in one PreciseState per
			// (epoch, satellite).
			if vel, ok := velocityForSat(dec.line(), st.PRN); ok {
				st.VelocityKm = &vel
				if !dec.readLine() {
					dec.setErr(io.EOF)
				}
			}
			return st, nil
		case strings.HasPrefix(line, "V"):
			// An orphan velocity line not consumed as lookahead above (e.g.
			// right after a header with no preceding P line in this call) —
			// nothing to attach it to.
		case strings.HasPrefix(line, "EOF"):
			dec.setErr(io.EOF)
			return PreciseState{}, io.EOF
		}

		if !dec.readLine() {
			dec.setErr(io.EOF)
			return PreciseState{}, io.EOF
		}
	}
}

func parsePositionLine(line string, epoch time.Time) (PreciseState, error) {
	if len(line) < 4 {
		return PreciseState{}, fmt.Errorf("sp3: short position line: %q", line)
	}
	prn, err := gnss.NewPRN(strings.TrimSpace(line[1:4]))
	if err != nil {
		return PreciseState{}, fmt.Errorf("sp3: %w", err)
	}
	fields := strings.Fields(line[4:])
	if len(fields) < 3 {
		return PreciseState{}, fmt.Errorf("sp3: short position fields: %q", line)
	}
	var pos [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return PreciseState{}, fmt.Errorf("sp3: parse position[%d]: %w", i, err)
		}
		pos[i] = v
	}
	st := PreciseState{Epoch: epoch, PRN: prn, PositionKm: pos}
	if len(fields) >= 4 {
		if clk, err := strconv.ParseFloat(fields[3], 64); err == nil && clk < 999999.0 {
			st.ClockOffset = &clk
		}
	}
	return st, nil
}

// velocityForSat parses line as an SP3 velocity record and returns its
// (vx, vy, vz) triple if line is a "V" record for prn; ok is false for
// anything else (not a velocity line, short, unparseable, or for a
// different satellite than prn).
func velocityForSat(line string, prn gnss.PRN) (vel [3]float64, ok bool) {
	if !strings.HasPrefix(line, "V") || len(line) < 4 {
		return vel, false
	}
	p, err := gnss.NewPRN(strings.TrimSpace(line[1:4]))
	if err != nil || p != prn {
		return vel, false
	}
	vel, err = parseVelocityLine(line)
	if err != nil {
		return vel, false
	}
	return vel, true
}

// parseVelocityLine parses an SP3 "V" record's vx/vy/vz fields. SP3
// encodes velocity in units of 10^-4 km/s; VelocityKm is in km/s, so the
// parsed fields are scaled by 1e-4.
func parseVelocityLine(line string) ([3]float64, error) {
	if len(line) < 4 {
		return [3]float64{}, fmt.Errorf("sp3: short velocity line: %q", line)
	}
	fields := strings.Fields(line[4:])
	if len(fields) < 3 {
		return [3]float64{}, fmt.Errorf("sp3: short velocity fields: %q", line)
	}
	var vel [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return [3]float64{}, fmt.Errorf("sp3: parse velocity[%d]: %w", i, err)
		}
		vel[i] = v * 1e-4
	}
	return vel, nil
}

func parseSatLine(l string) []gnss.PRN {
	body := strings.TrimSpace(l[2:])
	var prns []gnss.PRN
	for i := 0; i+3 <= len(body); i += 3 {
		tok := strings.TrimSpace(body[i : i+3])
		if tok == "" || tok == "0" {
			continue
		}
		sysAbbr := string(tok[0])
		sys, err := gnss.SystemByAbbr(sysAbbr)
		if err != nil {
			continue
		}
		num, err := strconv.Atoi(tok[1:])
		if err != nil || num == 0 {
			continue
		}
		prns = append(prns, gnss.PRN{Sys: sys, Num: int8(num)})
	}
	return prns
}

// parseSP3Epoch parses an SP3 epoch field, "yyyy mm dd hh mm ss.ssssssss".
func parseSP3Epoch(s string) (time.Time, error) {
	fields := strings.Fields(s)
	if len(fields) < 6 {
		return time.Time{}, fmt.Errorf("sp3: short epoch: %q", s)
	}
	year, _ := strconv.Atoi(fields[0])
	month, _ := strconv.Atoi(fields[1])
	day, _ := strconv.Atoi(fields[2])
	hour, _ := strconv.Atoi(fields[3])
	minute, _ := strconv.Atoi(fields[4])
	secF, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("sp3: parse seconds: %w", err)
	}
	sec := int(secF)
	nsec := int((secF - float64(sec)) * 1e9)
	return time.Date(year, time.Month(month), day, hour, minute, sec, nsec, time.UTC), nil
}

// Err returns the first non-EOF error encountered by the decoder.
func (dec *Decoder) Err() error {
	if dec.err == io.EOF {
		return nil
	}
	return dec.err
}

func (dec *Decoder) setErr(err error) {
	dec.err = err
}

func (dec *Decoder) readLine() bool {
	if ok := dec.sc.Scan(); !ok {
		return ok
	}
	dec.lineNum++
	return true
}

func (dec *Decoder) line() string {
	return dec.sc.Text()
}
