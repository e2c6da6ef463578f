package qc

import (
	"sort"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/de-bkg/gognss/pkg/rinex"
	"time"
)

// EphemerisBuffer is the sliding set of broadcast ephemerides valid at the
// Runner's moving current-epoch. It is a value type private to the
// Runner, never hoisted into global state.
type EphemerisBuffer struct {
	// bySat holds, per satellite, ephemerides sorted ascending by TOE.
	bySat map[gnss.PRN][]rinex.Eph
}

// NewEphemerisBuffer returns an empty EphemerisBuffer.
func NewEphemerisBuffer() *EphemerisBuffer {
	return &EphemerisBuffer{bySat: make(map[gnss.PRN][]rinex.Eph)}
}

// Latch inserts eph, keeping its satellite's slice sorted by TOE.
func (b *EphemerisBuffer) Latch(eph rinex.Eph) {
	sv := eph.PRN()
	list := b.bySat[sv]
	i := sort.Search(len(list), func(i int) bool { return !list[i].TOE().Before(eph.TOE()) })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = eph
	b.bySat[sv] = list
}

// Advance drops every stored record whose ValidAt(now) is false, so that
// everything remaining satisfies valid_at(sv, now).
func (b *EphemerisBuffer) Advance(now time.Time) {
	for sv, list := range b.bySat {
		kept := list[:0]
		for _, eph := range list {
			if eph.ValidAt(now) {
				kept = append(kept, eph)
			}
		}
		if len(kept) == 0 {
			delete(b.bySat, sv)
		} else {
			b.bySat[sv] = kept
		}
	}
}

// BestFor returns the stored record for sv with the largest TOE <= t that
// satisfies ValidAt(t), or (nil, false) if none does.
func (b *EphemerisBuffer) BestFor(sv gnss.PRN, t time.Time) (rinex.Eph, bool) {
	list := b.bySat[sv]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].TOE().After(t) {
			continue
		}
		if list[i].ValidAt(t) {
			return list[i], true
		}
	}
	return nil, false
}

// Len returns the total number of buffered ephemerides, across all
// satellites.
func (b *EphemerisBuffer) Len() int {
	n := 0
	for _, list := range b.bySat {
		n += len(list)
	}
	return n
}
