package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCoreMask(t *testing.T) {
	mask, err := NewCoreMask(6, 2, 0, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, CoreMask{0, 1, 2, 6}, mask)

	_, err = NewCoreMask()
	assert.ErrorIs(t, err, ErrEmptyMask)

	_, err = NewCoreMask(3, -1)
	assert.Error(t, err)
}

func TestParseCoreMask(t *testing.T) {
	testCases := []struct {
		input    string
		expected CoreMask
		wantErr  bool
	}{
		{input: "0-3,6", expected: CoreMask{0, 1, 2, 3, 6}},
		{input: "4", expected: CoreMask{4}},
		{input: " 2 , 0-1 ", expected: CoreMask{0, 1, 2}},
		{input: "3,1-4", expected: CoreMask{1, 2, 3, 4}},
		{input: "", wantErr: true},
		{input: "5-2", wantErr: true},
		{input: "a-b", wantErr: true},
		{input: "1,x", wantErr: true},
	}

	for _, tc := range testCases {
		mask, err := ParseCoreMask(tc.input)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.input)
			continue
		}
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.expected, mask, "input %q", tc.input)
	}
}

func TestCoreMaskString(t *testing.T) {
	testCases := []struct {
		mask     CoreMask
		expected string
	}{
		{mask: CoreMask{0, 1, 2, 3, 6}, expected: "0-3,6"},
		{mask: CoreMask{4}, expected: "4"},
		{mask: CoreMask{0, 2, 4}, expected: "0,2,4"},
		{mask: CoreMask{}, expected: ""},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, tc.mask.String())
	}
}

func TestCoreMaskRoundTrip(t *testing.T) {
	for _, raw := range []string{"0-3,6", "0,2,4-7,12", "1"} {
		mask, err := ParseCoreMask(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, mask.String())
	}
}

func TestCoreMaskClamp(t *testing.T) {
	mask := CoreMask{0, 3, 8, 15}
	assert.Equal(t, CoreMask{0, 3}, mask.Clamp(8))
	assert.Equal(t, mask, mask.Clamp(16))
	assert.Empty(t, mask.Clamp(0))
}

func TestCoreMaskBits(t *testing.T) {
	mask := CoreMask{0, 1, 5}
	assert.Equal(t, uint64(0b100011), mask.Bits())

	// Cores past bit 63 cannot be represented and are left out.
	wide := CoreMask{1, 64, 100}
	assert.Equal(t, uint64(2), wide.Bits())
}

func TestCoreMaskEqual(t *testing.T) {
	a := CoreMask{0, 1, 2}
	assert.True(t, a.Equal(CoreMask{0, 1, 2}))
	assert.False(t, a.Equal(CoreMask{0, 1}))
	assert.False(t, a.Equal(CoreMask{0, 1, 3}))
}
