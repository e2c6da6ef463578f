package qc

import (
	"sort"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
)

// SignalSample is one observation drawn from a RINEX observation epoch:
// an (epoch, satellite, carrier, kind) measurement, with an optional
// loss-of-lock indicator.
type SignalSample struct {
	Epoch  time.Time
	Source SourceDescriptor
	Sat    gnss.PRN
	Carrier gnss.Carrier
	Kind   gnss.ObservationKind
	Value  float64
	LLI    *int8
}

// signalKey identifies one SignalBuffer slot: (source, satellite, carrier).
type signalKey struct {
	Source  SourceDescriptor
	Sat     gnss.PRN
	Carrier gnss.Carrier
}

// latestByKind holds, for one (source, satellite, carrier) slot, the most
// recent sample observed for each ObservationKind, plus the epoch that
// value was observed at — kinds can arrive on different epochs when a
// receiver drops one but not another within the same nominal sample.
type latestByKind struct {
	epoch [5]time.Time // indexed by gnss.ObservationKind
	value [5]float64
	valid [5]bool
}

// SignalBuffer holds the latest signal sample per (source, satellite,
// carrier), used to synthesize co-temporal combinations.
type SignalBuffer struct {
	slots map[signalKey]*latestByKind
}

// NewSignalBuffer returns an empty SignalBuffer.
func NewSignalBuffer() *SignalBuffer {
	return &SignalBuffer{slots: make(map[signalKey]*latestByKind)}
}

// Latch records s, overwriting the stored value for its (source, sat,
// carrier, kind) only if s.Epoch is not older than what is already
// stored.
func (b *SignalBuffer) Latch(s SignalSample) {
	key := signalKey{Source: s.Source, Sat: s.Sat, Carrier: s.Carrier}
	slot, ok := b.slots[key]
	if !ok {
		slot = &latestByKind{}
		b.slots[key] = slot
	}
	k := int(s.Kind)
	if k < 0 || k >= len(slot.epoch) {
		return
	}
	if slot.valid[k] && s.Epoch.Before(slot.epoch[k]) {
		return
	}
	slot.epoch[k] = s.Epoch
	slot.value[k] = s.Value
	slot.valid[k] = true
}

// At returns the latest value recorded for (source, sat, carrier, kind)
// at exactly epoch, i.e. a co-temporal reading usable for combination
// synthesis.
func (b *SignalBuffer) At(source SourceDescriptor, sat gnss.PRN, carrier gnss.Carrier, kind gnss.ObservationKind, epoch time.Time) (float64, bool) {
	slot, ok := b.slots[signalKey{Source: source, Sat: sat, Carrier: carrier}]
	if !ok {
		return 0, false
	}
	k := int(kind)
	if k < 0 || k >= len(slot.epoch) || !slot.valid[k] {
		return 0, false
	}
	if !slot.epoch[k].Equal(epoch) {
		return 0, false
	}
	return slot.value[k], true
}

// CoTemporalSources returns every source holding a reading for (sat,
// carrier, kind) at exactly epoch, in SourceDescriptor order.
func (b *SignalBuffer) CoTemporalSources(sat gnss.PRN, carrier gnss.Carrier, kind gnss.ObservationKind, epoch time.Time) []SourceDescriptor {
	var out []SourceDescriptor
	for key, slot := range b.slots {
		if key.Sat != sat || key.Carrier != carrier {
			continue
		}
		k := int(kind)
		if k < 0 || k >= len(slot.epoch) || !slot.valid[k] || !slot.epoch[k].Equal(epoch) {
			continue
		}
		out = append(out, key.Source)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Carriers returns the distinct carriers buffered for (source, sat),
// ascending per gnss.Carrier's deterministic ordering.
func (b *SignalBuffer) Carriers(source SourceDescriptor, sat gnss.PRN) []gnss.Carrier {
	var out []gnss.Carrier
	for key := range b.slots {
		if key.Source == source && key.Sat == sat {
			out = append(out, key.Carrier)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
