package qc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIndexKey(t *testing.T) {
	tests := []struct {
		name    string
		s       string
		want    IndexKey
		wantErr bool
	}{
		{name: "empty", s: "", want: NoneKey},
		{name: "gnss-tagged", s: "gnss:TRIMBLE NETR9", want: IndexKey{Kind: IndexGnssReceiver, Value: "TRIMBLE NETR9"}},
		{name: "geo-tagged", s: "geo:WTZR", want: IndexKey{Kind: IndexGeodeticMarker, Value: "WTZR"}},
		{name: "untagged-becomes-custom", s: "some-run-id", want: IndexKey{Kind: IndexCustom, Value: "some-run-id"}},
		{name: "unknown-tag-becomes-custom", s: "foo:bar", want: IndexKey{Kind: IndexCustom, Value: "foo:bar"}},
		{name: "empty-value-errors", s: "gnss:", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIndexKey(tt.s)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexKey_StringRoundTrip(t *testing.T) {
	k := IndexKey{Kind: IndexAgency, Value: "BKG"}
	parsed, err := ParseIndexKey(k.String())
	assert.NoError(t, err)
	assert.Equal(t, k, parsed)

	assert.Equal(t, "none", NoneKey.String())
}

func TestIndexKey_Less(t *testing.T) {
	a := IndexKey{Kind: IndexGnssReceiver, Value: "A"}
	b := IndexKey{Kind: IndexGnssReceiver, Value: "B"}
	c := IndexKey{Kind: IndexAgency, Value: "A"}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, b.Less(c), "IndexGnssReceiver sorts before IndexAgency by Kind")
}

func TestDeriveIndexKey(t *testing.T) {
	tests := []struct {
		name string
		mode IndexingMode
		fi   FileIndex
		want IndexKey
	}{
		{
			name: "auto-prefers-marker",
			mode: IndexingAuto,
			fi:   FileIndex{GeodeticMarker: "WTZR", GnssReceiver: "TRIMBLE NETR9"},
			want: IndexKey{Kind: IndexGeodeticMarker, Value: "WTZR"},
		},
		{
			name: "auto-falls-back-to-receiver",
			mode: IndexingAuto,
			fi:   FileIndex{GnssReceiver: "TRIMBLE NETR9"},
			want: IndexKey{Kind: IndexGnssReceiver, Value: "TRIMBLE NETR9"},
		},
		{
			name: "auto-falls-back-to-none",
			mode: IndexingAuto,
			fi:   FileIndex{},
			want: NoneKey,
		},
		{
			name: "explicit-mode-ignores-other-fields",
			mode: IndexingAgency,
			fi:   FileIndex{GeodeticMarker: "WTZR", Agency: "BKG"},
			want: IndexKey{Kind: IndexAgency, Value: "BKG"},
		},
		{
			name: "explicit-mode-missing-field-is-none",
			mode: IndexingOperator,
			fi:   FileIndex{GeodeticMarker: "WTZR"},
			want: NoneKey,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveIndexKey(tt.mode, tt.fi))
		})
	}
}

func TestProductType_IsRinexFamily(t *testing.T) {
	assert.True(t, ProductObservation.IsRinexFamily())
	assert.True(t, ProductBroadcastNavigation.IsRinexFamily())
	assert.False(t, ProductPreciseOrbit.IsRinexFamily())
	assert.False(t, ProductDoris.IsRinexFamily())
}

func TestSourceDescriptor_Less(t *testing.T) {
	a := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "a.rnx"}
	b := SourceDescriptor{Product: ProductObservation, Index: NoneKey, Filename: "b.rnx"}
	c := SourceDescriptor{Product: ProductBroadcastNavigation, Index: NoneKey, Filename: "a.rnx"}

	assert.True(t, a.Less(b))
	assert.True(t, a.Less(c), "Observation sorts before BroadcastNavigation")
}
