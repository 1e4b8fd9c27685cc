package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRegionID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1001", want: "01001"},
		{in: "01001", want: "01001"},
		{in: " 49003 ", want: "49003"},
		{in: "1001.0", want: "01001"},
		{in: "0", want: "00000"},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1001.5", wantErr: true},
		{in: "-1001", wantErr: true},
		{in: "123456", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeRegionID(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRegionIDs(t *testing.T) {
	got, err := NormalizeRegionIDs([]string{"1001", "01001", "49003"})
	require.NoError(t, err)
	assert.Equal(t, []string{"01001", "49003"}, got)

	_, err = NormalizeRegionIDs([]string{"x"})
	require.ErrorIs(t, err, ErrInvalidRegion)

	got, err = NormalizeRegionIDs(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2021, time.January, 2, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2021-01-02", "1/2/21", "d01022021"} {
		got, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}

	_, err := ParseDate("Jan 2")
	require.Error(t, err)
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "d12312020", ColumnName(time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC)))
}

func TestParseCaseType(t *testing.T) {
	ct, err := ParseCaseType("deaths")
	require.NoError(t, err)
	assert.Equal(t, 1, ct.Lookback())

	ct, err = ParseCaseType("confirmed")
	require.NoError(t, err)
	assert.Equal(t, 10, ct.Lookback())

	_, err = ParseCaseType("recovered")
	require.ErrorIs(t, err, ErrUnknownCaseType)
}

func TestYesterday(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2021, time.March, 1, 15, 4, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	assert.Equal(t, time.Date(2021, time.February, 28, 0, 0, 0, 0, time.UTC), Yesterday())
}
