// Package gnss contains common constants and type definitions shared by
// every collaborator that produces or consumes GNSS records: satellite
// systems, satellite identifiers, carrier frequencies and timescales.
package gnss

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// System is a satellite system.
type System int

// Available satellite systems.
const (
	SysGPS System = iota + 1
	SysGLO
	SysGAL
	SysQZSS
	SysBDS
	SysIRNSS
	SysSBAS
	SysMIXED

	// SysNavIC is an alias for SysIRNSS (IRNSS was renamed to NavIC).
	SysNavIC = SysIRNSS
)

func (sys System) String() string {
	// TODO change to NavIC or NAVIC
	return [...]string{"", "GPS", "GLO", "GAL", "QZSS", "BDS", "IRNSS", "SBAS", "MIXED"}[sys]
}

// Abbr returns the systems' abbreviation used in RINEX.
func (sys System) Abbr() string {
	return [...]string{"", "G", "R", "E", "J", "C", "I", "S", "M"}[sys]
}

// Systems specifies a list of satellite systems.
type Systems []System

// String returns the contained systems in sitelog manner GPS+GLO+...
func (syss Systems) String() string {
	str := make([]string, 0, len(syss))
	for _, sys := range syss {
		str = append(str, sys.String())
	}
	return strings.Join(str, "+")
}

// MarshalJSON encodes the systems as their RINEX abbreviations, e.g. ["E","C"].
func (syss Systems) MarshalJSON() ([]byte, error) {
	abbrs := make([]string, 0, len(syss))
	for _, sys := range syss {
		abbrs = append(abbrs, sys.Abbr())
	}
	return json.Marshal(abbrs)
}

// ParseSatSystems parses systems in sitelog manner GPS+GLO+..., the inverse
// of Systems.String. Blanks around each name are ignored.
func ParseSatSystems(s string) (Systems, error) {
	var syss Systems
	for _, name := range strings.Split(s, "+") {
		name = strings.ToUpper(strings.TrimSpace(name))
		var found System
		for sys := SysGPS; sys <= SysMIXED; sys++ {
			if sys.String() == name {
				found = sys
				break
			}
		}
		if found == 0 {
			return nil, fmt.Errorf("invalid satellite system: %q", name)
		}
		syss = append(syss, found)
	}
	return syss, nil
}

// sysPerAbbr maps a RINEX one-letter system abbreviation to a System.
var sysPerAbbr = map[string]System{
	"G": SysGPS,
	"R": SysGLO,
	"E": SysGAL,
	"J": SysQZSS,
	"C": SysBDS,
	"I": SysIRNSS,
	"S": SysSBAS,
	"M": SysMIXED,
}

// SystemByAbbr returns the System for a RINEX one-letter abbreviation, e.g. "G" -> SysGPS.
func SystemByAbbr(abbr string) (System, error) {
	sys, ok := sysPerAbbr[abbr]
	if !ok {
		return 0, fmt.Errorf("invalid satellite system abbreviation: %q", abbr)
	}
	return sys, nil
}

// SystemAbbrs returns a copy of the one-letter-abbreviation to System table,
// for collaborators (e.g. pkg/rinex) that need direct map-index lookups.
func SystemAbbrs() map[string]System {
	cp := make(map[string]System, len(sysPerAbbr))
	for k, v := range sysPerAbbr {
		cp[k] = v
	}
	return cp
}

// PRN identifies a single satellite within its system, e.g. G12, E05, R24.
// It is the canonical satellite identifier shared by every RINEX and SP3
// collaborator, and the key type used throughout the ephemeris and signal
// buffers.
type PRN struct {
	Sys System // The satellite system.
	Num int8   // The satellite number (slot/SVN for GLO, PRN otherwise).
}

// NewPRN returns a new PRN for the string prn, e.g. "G12".
func NewPRN(prn string) (PRN, error) {
	if len(prn) < 2 {
		return PRN{}, fmt.Errorf("invalid PRN: %q", prn)
	}

	sys, err := SystemByAbbr(prn[:1])
	if err != nil {
		return PRN{}, fmt.Errorf("parse PRN %q: %v", prn, err)
	}

	snum, err := strconv.Atoi(strings.TrimSpace(prn[1:]))
	if err != nil {
		return PRN{}, fmt.Errorf("parse sat num: %q: %v", prn, err)
	}
	if snum < 1 || snum > 60 {
		return PRN{}, fmt.Errorf("check satellite number %q", prn)
	}

	return PRN{Sys: sys, Num: int8(snum)}, nil
}

// String is a PRN Stringer, e.g. "G12".
func (prn PRN) String() string {
	return fmt.Sprintf("%s%02d", prn.Sys.Abbr(), prn.Num)
}

// Less orders PRNs by system then number, giving a deterministic total order
// for multi-satellite iteration (ephemeris/signal buffers, report tables).
func (prn PRN) Less(other PRN) bool {
	if prn.Sys != other.Sys {
		return prn.Sys < other.Sys
	}
	return prn.Num < other.Num
}

// ByPRN implements sort.Interface based on the PRN.
type ByPRN []PRN

func (p ByPRN) Len() int           { return len(p) }
func (p ByPRN) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p ByPRN) Less(i, j int) bool { return p[i].Less(p[j]) }

// Carrier is a GNSS carrier frequency band, e.g. L1, L2, E5a.
type Carrier int

// Carrier bands handled by the signal combination algorithms. The ordering
// below is the deterministic "lowest index, then lowest frequency" order
// used whenever a combination must pick a primary/secondary pair.
const (
	CarrierUnknown Carrier = iota
	CarrierL1
	CarrierL2
	CarrierL5
	CarrierE1
	CarrierE5
	CarrierE5a
	CarrierE5b
	CarrierE6
	CarrierB1
	CarrierB2
	CarrierB3
)

// carrierFreqMHz holds the nominal carrier frequency in MHz, used by the
// ionosphere-free and geometry-free combinations.
var carrierFreqMHz = map[Carrier]float64{
	CarrierL1:  1575.42,
	CarrierL2:  1227.60,
	CarrierL5:  1176.45,
	CarrierE1:  1575.42,
	CarrierE5:  1191.795,
	CarrierE5a: 1176.45,
	CarrierE5b: 1207.14,
	CarrierE6:  1278.75,
	CarrierB1:  1561.098,
	CarrierB2:  1207.14,
	CarrierB3:  1268.52,
}

// FrequencyMHz returns the nominal carrier frequency in MHz and whether it
// is known.
func (c Carrier) FrequencyMHz() (float64, bool) {
	f, ok := carrierFreqMHz[c]
	return f, ok
}

func (c Carrier) String() string {
	switch c {
	case CarrierL1:
		return "L1"
	case CarrierL2:
		return "L2"
	case CarrierL5:
		return "L5"
	case CarrierE1:
		return "E1"
	case CarrierE5:
		return "E5"
	case CarrierE5a:
		return "E5a"
	case CarrierE5b:
		return "E5b"
	case CarrierE6:
		return "E6"
	case CarrierB1:
		return "B1"
	case CarrierB2:
		return "B2"
	case CarrierB3:
		return "B3"
	default:
		return "UNKNOWN"
	}
}

// CarrierFromRinexCode derives the carrier band from a RINEX3 two/three
// character observation code band digit, e.g. "1C" -> CarrierL1, "5Q" -> CarrierL5.
// Only the leading band digit is significant.
func CarrierFromRinexCode(sys System, code string) Carrier {
	if len(code) == 0 {
		return CarrierUnknown
	}
	band := code[0]
	switch sys {
	case SysGAL:
		switch band {
		case '1':
			return CarrierE1
		case '5':
			return CarrierE5a
		case '7':
			return CarrierE5b
		case '8':
			return CarrierE5
		case '6':
			return CarrierE6
		}
	case SysBDS:
		switch band {
		case '1', '2':
			return CarrierB1
		case '7':
			return CarrierB2
		case '6':
			return CarrierB3
		}
	default: // GPS, GLO, QZSS, IRNSS, SBAS all use the L-band numbering.
		switch band {
		case '1':
			return CarrierL1
		case '2':
			return CarrierL2
		case '5':
			return CarrierL5
		}
	}
	return CarrierUnknown
}

// ObservationKind classifies a RINEX observation code by measurement type,
// the third dimension (besides carrier and satellite) that the signal
// combination and multipath algorithms key on.
type ObservationKind int

const (
	KindUnknown ObservationKind = iota
	KindPseudorange
	KindCarrierPhase
	KindDoppler
	KindSignalStrength
)

func (k ObservationKind) String() string {
	switch k {
	case KindPseudorange:
		return "Pseudorange"
	case KindCarrierPhase:
		return "Carrier Phase"
	case KindDoppler:
		return "Doppler"
	case KindSignalStrength:
		return "Signal Strength"
	default:
		return "Unknown"
	}
}

// ObservationKindFromRinexCode classifies a RINEX3 observation code, e.g.
// "C1C" -> KindPseudorange, "L1C" -> KindCarrierPhase.
func ObservationKindFromRinexCode(code string) ObservationKind {
	if len(code) == 0 {
		return KindUnknown
	}
	switch code[0] {
	case 'C':
		return KindPseudorange
	case 'L':
		return KindCarrierPhase
	case 'D':
		return KindDoppler
	case 'S':
		return KindSignalStrength
	default:
		return KindUnknown
	}
}

// Timescale is a GNSS or civil time reference.
type Timescale int

const (
	TimescaleUnknown Timescale = iota
	TimescaleGPS
	TimescaleGST  // Galileo System Time
	TimescaleBDT  // BeiDou Time
	TimescaleGLO  // GLONASS (UTC(SU) based)
	TimescaleQZSS
	TimescaleTAI
	TimescaleUTC
)

func (ts Timescale) String() string {
	return [...]string{"UNKNOWN", "GPS", "GST", "BDT", "GLO", "QZSS", "TAI", "UTC"}[ts]
}

var timescaleByName = map[string]Timescale{
	"GPS":  TimescaleGPS,
	"GST":  TimescaleGST,
	"BDT":  TimescaleBDT,
	"GLO":  TimescaleGLO,
	"QZSS": TimescaleQZSS,
	"TAI":  TimescaleTAI,
	"UTC":  TimescaleUTC,
}

// TimescaleByName returns the Timescale named by s (case-insensitive), e.g.
// "gps" -> TimescaleGPS.
func TimescaleByName(s string) (Timescale, error) {
	ts, ok := timescaleByName[strings.ToUpper(s)]
	if !ok {
		return TimescaleUnknown, fmt.Errorf("invalid timescale: %q", s)
	}
	return ts, nil
}

// Timescale returns the native timescale associated with a satellite system
// (SBAS shares GPS time), or (TimescaleUnknown, false) for Mixed, which has
// no single native timescale, and for IRNSS, whose timescale has no
// Timescale constant.
func (sys System) Timescale() (Timescale, bool) {
	switch sys {
	case SysGPS, SysSBAS:
		return TimescaleGPS, true
	case SysGAL:
		return TimescaleGST, true
	case SysBDS:
		return TimescaleBDT, true
	case SysGLO:
		return TimescaleGLO, true
	case SysQZSS:
		return TimescaleQZSS, true
	default:
		return TimescaleUnknown, false
	}
}
