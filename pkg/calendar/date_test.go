package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	d, err := Parse("2024-04-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), d)

	_, err = Parse("01/04/2024")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = Parse("  ")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestFiscalYearStart(t *testing.T) {
	cases := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 12, 15, 18, 30, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FiscalYearStart(tc.in, time.April, 1))
	}
}

func TestDayBefore(t *testing.T) {
	assert.Equal(t, "2024-02-29", Format(DayBefore(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))))
}

func TestDateScan(t *testing.T) {
	want := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	for _, src := range []any{
		"2024-04-01",
		"2024-04-01 00:00:00+00:00",
		[]byte("2024-04-01T00:00:00Z"),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	} {
		var d Date
		require.NoError(t, d.Scan(src))
		assert.Equal(t, want, d.Time)
	}

	var d Date
	assert.Error(t, d.Scan("yesterday"))
}

func TestDateJSON(t *testing.T) {
	b, err := NewDate(time.Date(2024, 4, 1, 15, 0, 0, 0, time.UTC)).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2024-04-01"`, string(b))

	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2024-03-31"`)))
	assert.Equal(t, "2024-03-31", d.String())
}
