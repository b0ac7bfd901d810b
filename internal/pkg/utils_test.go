package pkg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*60*60)
	in := time.Date(2024, 12, 25, 3, 30, 0, 0, loc)

	assert.Equal(t, time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC), DateOf(in))
	assert.Equal(t, "2024-12-24", FormatDate(in))
}

func TestMonthRange(t *testing.T) {
	cases := []struct {
		year, month int
		first, last string
	}{
		{2024, 12, "2024-12-01", "2024-12-31"},
		{2024, 2, "2024-02-01", "2024-02-29"},
		{2023, 2, "2023-02-01", "2023-02-28"},
		{2024, 4, "2024-04-01", "2024-04-30"},
	}

	for _, c := range cases {
		first, last, err := MonthRange(c.year, c.month)
		require.NoError(t, err)
		assert.Equal(t, c.first, FormatDate(first))
		assert.Equal(t, c.last, FormatDate(last))
	}

	_, _, err := MonthRange(2024, 13)
	assert.ErrorIs(t, err, ErrInvalidMonth)
	_, _, err = MonthRange(2024, 0)
	assert.ErrorIs(t, err, ErrInvalidMonth)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-12-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("05/12/2024")
	assert.Error(t, err)
}
