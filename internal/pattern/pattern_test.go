package pattern

import (
	"errors"
	"slices"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		sig     string
		want    string
		wantErr bool
	}{
		{name: "concrete", sig: "48 8B C3", want: "48 8B C3"},
		{name: "double wildcard", sig: "AA ?? BB", want: "AA ?? BB"},
		{name: "single wildcard", sig: "aa ? bb", want: "AA ?? BB"},
		{name: "extra whitespace", sig: "  C5\tFA  ?? ", want: "C5 FA ??"},
		{name: "empty", sig: "   ", wantErr: true},
		{name: "bad hex", sig: "ZZ 00", wantErr: true},
		{name: "too long token", sig: "ABC", wantErr: true},
		{name: "triple question mark", sig: "???", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.sig)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrSyntax))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestScanWildcardMatch(t *testing.T) {
	region := []byte{0x11, 0xAA, 0xBB, 0x01, 0xDD, 0x22}
	off, ok := Scan(region, MustParse("AA BB ?? DD"))
	assert.True(t, ok)
	assert.Equal(t, 1, off)
}

func TestScanNoMatch(t *testing.T) {
	region := []byte{0x00, 0x01, 0x02, 0xFE, 0x10}
	_, ok := Scan(region, MustParse("FF"))
	assert.False(t, ok)
}

func TestScanLeftmost(t *testing.T) {
	region := []byte{0x90, 0xEB, 0x02, 0x90, 0xEB, 0x05, 0xEB, 0x02}
	p := MustParse("EB ??")

	off, ok := Scan(region, p)
	assert.True(t, ok)
	assert.Equal(t, 1, off)
	assert.True(t, slices.Equal([]int{1, 4, 6}, ScanAll(region, p)))

	// no offset before the reported one matches
	for i := 0; i < off; i++ {
		assert.False(t, p.Match(region[i:]))
	}
}

func TestScanPatternLongerThanRegion(t *testing.T) {
	_, ok := Scan([]byte{0xAA}, MustParse("AA BB"))
	assert.False(t, ok)
	assert.Equal(t, 0, len(ScanAll([]byte{0xAA}, MustParse("AA BB"))))
}

func TestScanMatchAtEnd(t *testing.T) {
	region := []byte{0x00, 0x00, 0xC3}
	off, ok := Scan(region, FromBytes([]byte{0xC3}))
	assert.True(t, ok)
	assert.Equal(t, 2, off)
}

func TestScanAllWildcards(t *testing.T) {
	off, ok := Scan([]byte{0x01, 0x02}, MustParse("?? ??"))
	assert.True(t, ok)
	assert.Equal(t, 0, off)
}
