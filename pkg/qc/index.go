// Package qc is the streaming GNSS quality-control engine: it indexes
// heterogeneous datasets (pkg/rinex observation/navigation/meteo/clock
// records, pkg/sp3 precise orbit/clock records), serializes them into a
// single time-ordered stream, and runs a configurable battery of analyses
// whose results accumulate into a Report.
package qc

import (
	"fmt"
	"strings"
)

// IndexKeyKind distinguishes the source-identification scheme an IndexKey
// was built from.
type IndexKeyKind int

// Recognized IndexKey kinds, in the order used to break Less ties.
const (
	IndexNone IndexKeyKind = iota
	IndexGnssReceiver
	IndexRxAntenna
	IndexAgency
	IndexOperator
	IndexGeodeticMarker
	IndexCustom
)

func (k IndexKeyKind) String() string {
	switch k {
	case IndexNone:
		return "none"
	case IndexGnssReceiver:
		return "gnss"
	case IndexRxAntenna:
		return "ant"
	case IndexAgency:
		return "agency"
	case IndexOperator:
		return "operator"
	case IndexGeodeticMarker:
		return "geo"
	case IndexCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// tagByKind maps an IndexKeyKind to its "<tag>:" prefix for ParseIndexKey/String.
var tagByKind = map[string]IndexKeyKind{
	"gnss":    IndexGnssReceiver,
	"ant":     IndexRxAntenna,
	"agency":  IndexAgency,
	"operator": IndexOperator,
	"geo":     IndexGeodeticMarker,
	"custom":  IndexCustom,
}

// IndexKey canonically identifies a data source: by antenna, receiver,
// marker, agency, operator, or an arbitrary custom tag. The zero value is
// IndexNone, the collapse-everything-into-one-slot key used by product
// types that do not need per-source distinction.
type IndexKey struct {
	Kind  IndexKeyKind
	Value string
}

// NoneKey is the canonical IndexKey for product types that collapse into a
// single DataStore slot.
var NoneKey = IndexKey{Kind: IndexNone}

// ParseIndexKey parses "<tag>:<value>" into an IndexKey. An unprefixed
// string (no recognized tag followed by ':') becomes IndexCustom(s) in
// full.
func ParseIndexKey(s string) (IndexKey, error) {
	if s == "" {
		return NoneKey, nil
	}
	if i := strings.IndexByte(s, ':'); i > 0 {
		tag, val := s[:i], s[i+1:]
		if kind, ok := tagByKind[tag]; ok {
			if val == "" {
				return IndexKey{}, fmt.Errorf("qc: empty value for index key tag %q", tag)
			}
			return IndexKey{Kind: kind, Value: val}, nil
		}
	}
	return IndexKey{Kind: IndexCustom, Value: s}, nil
}

// String renders the IndexKey back into its "<tag>:<value>" form, or
// "none" for the None key.
func (k IndexKey) String() string {
	if k.Kind == IndexNone {
		return "none"
	}
	return fmt.Sprintf("%s:%s", k.Kind, k.Value)
}

// Less gives IndexKey a total order: by Kind, then by Value.
func (k IndexKey) Less(other IndexKey) bool {
	if k.Kind != other.Kind {
		return k.Kind < other.Kind
	}
	return k.Value < other.Value
}

// ProductType enumerates the families of GNSS data the core indexes.
type ProductType int

// Recognized product types.
const (
	ProductObservation ProductType = iota
	ProductMeteoObservation
	ProductBroadcastNavigation
	ProductPreciseClock
	ProductPreciseOrbit
	ProductIonex
	ProductAntex
	ProductDoris
)

func (p ProductType) String() string {
	switch p {
	case ProductObservation:
		return "Observation"
	case ProductMeteoObservation:
		return "MeteoObservation"
	case ProductBroadcastNavigation:
		return "BroadcastNavigation"
	case ProductPreciseClock:
		return "PreciseClock"
	case ProductPreciseOrbit:
		return "PreciseOrbit"
	case ProductIonex:
		return "Ionex"
	case ProductAntex:
		return "Antex"
	case ProductDoris:
		return "Doris"
	default:
		return "Unknown"
	}
}

// IsRinexFamily reports whether the product type is parsed by pkg/rinex
// (everything but the SP3-borne PreciseOrbit and the Doris family, which
// this realisation does not parse at all).
func (p ProductType) IsRinexFamily() bool {
	switch p {
	case ProductObservation, ProductMeteoObservation, ProductBroadcastNavigation,
		ProductPreciseClock, ProductIonex, ProductAntex:
		return true
	default:
		return false
	}
}

// IndexingMode selects how a file's IndexKey is derived.
type IndexingMode int

const (
	// IndexingAuto picks the first present of (GeodeticMarker, GnssReceiver,
	// Agency, Operator, RxAntenna, None).
	IndexingAuto IndexingMode = iota
	IndexingGnssReceiver
	IndexingOperator
	IndexingAgency
)

// FileIndex is the set of identifiers a loader can read out of a file
// header; DeriveIndexKey picks one deterministically per IndexingMode.
type FileIndex struct {
	GeodeticMarker string
	GnssReceiver   string
	Agency         string
	Operator       string
	RxAntenna      string
}

// DeriveIndexKey is a pure function of (mode, FileIndex): given the same
// inputs it always returns the same IndexKey.
func DeriveIndexKey(mode IndexingMode, fi FileIndex) IndexKey {
	switch mode {
	case IndexingGnssReceiver:
		if fi.GnssReceiver != "" {
			return IndexKey{Kind: IndexGnssReceiver, Value: fi.GnssReceiver}
		}
		return NoneKey
	case IndexingOperator:
		if fi.Operator != "" {
			return IndexKey{Kind: IndexOperator, Value: fi.Operator}
		}
		return NoneKey
	case IndexingAgency:
		if fi.Agency != "" {
			return IndexKey{Kind: IndexAgency, Value: fi.Agency}
		}
		return NoneKey
	default: // IndexingAuto
		switch {
		case fi.GeodeticMarker != "":
			return IndexKey{Kind: IndexGeodeticMarker, Value: fi.GeodeticMarker}
		case fi.GnssReceiver != "":
			return IndexKey{Kind: IndexGnssReceiver, Value: fi.GnssReceiver}
		case fi.Agency != "":
			return IndexKey{Kind: IndexAgency, Value: fi.Agency}
		case fi.Operator != "":
			return IndexKey{Kind: IndexOperator, Value: fi.Operator}
		case fi.RxAntenna != "":
			return IndexKey{Kind: IndexRxAntenna, Value: fi.RxAntenna}
		default:
			return NoneKey
		}
	}
}

// SourceDescriptor uniquely identifies a loaded contribution to the
// DataStore: its product type, its IndexKey, and the filename it came
// from. SourceDescriptors are total-ordered, giving the Serializer a
// deterministic header-emission and tie-break order.
type SourceDescriptor struct {
	Product  ProductType
	Index    IndexKey
	Filename string
}

// Less orders SourceDescriptors by ProductType, then IndexKey, then
// filename — the order the serializer uses to break ties between
// same-epoch/same-satellite records from different sources.
func (d SourceDescriptor) Less(other SourceDescriptor) bool {
	if d.Product != other.Product {
		return d.Product < other.Product
	}
	if d.Index != other.Index {
		return d.Index.Less(other.Index)
	}
	return d.Filename < other.Filename
}

func (d SourceDescriptor) String() string {
	return fmt.Sprintf("%s[%s]%s", d.Product, d.Index, d.Filename)
}
