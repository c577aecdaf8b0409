package civil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpriedel/edgarmirror/pkg/civil"
)

func TestParseAndString(t *testing.T) {
	d, err := civil.Parse("2013-10-14")
	require.NoError(t, err)
	assert.Equal(t, "2013-10-14", d.String())
	assert.Equal(t, "20131014", d.Compact())
}

func TestParseCompact(t *testing.T) {
	d, err := civil.ParseCompact("20131014")
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2013, Month: 10, Day: 14}, d)
}

func TestParseInvalid(t *testing.T) {
	_, err := civil.Parse("not-a-date")
	assert.Error(t, err)
}

func TestQuarterOf(t *testing.T) {
	cases := []struct {
		date civil.Date
		want civil.QuarterTuple
	}{
		{civil.Date{Year: 2013, Month: 1, Day: 1}, civil.QuarterTuple{Year: 2013, Quarter: 1}},
		{civil.Date{Year: 2013, Month: 3, Day: 31}, civil.QuarterTuple{Year: 2013, Quarter: 1}},
		{civil.Date{Year: 2013, Month: 4, Day: 1}, civil.QuarterTuple{Year: 2013, Quarter: 2}},
		{civil.Date{Year: 2013, Month: 10, Day: 14}, civil.QuarterTuple{Year: 2013, Quarter: 4}},
		{civil.Date{Year: 2013, Month: 12, Day: 31}, civil.QuarterTuple{Year: 2013, Quarter: 4}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, civil.QuarterOf(c.date), "date %v", c.date)
	}
}

func TestQuarterBeginEnd(t *testing.T) {
	q := civil.QuarterTuple{Year: 2013, Quarter: 4}
	assert.Equal(t, civil.Date{Year: 2013, Month: 10, Day: 1}, civil.QuarterBegin(q))
	assert.Equal(t, civil.Date{Year: 2013, Month: 12, Day: 31}, civil.QuarterEnd(q))
}

func TestQuarterNext(t *testing.T) {
	q := civil.QuarterTuple{Year: 2013, Quarter: 4}
	assert.Equal(t, civil.QuarterTuple{Year: 2014, Quarter: 1}, q.Next())
}

func TestAddDays(t *testing.T) {
	d := civil.Date{Year: 2013, Month: 12, Day: 30}
	assert.Equal(t, civil.Date{Year: 2014, Month: 1, Day: 1}, d.AddDays(2))
}

func TestBeforeAfter(t *testing.T) {
	a := civil.Date{Year: 2013, Month: 10, Day: 14}
	b := civil.Date{Year: 2013, Month: 10, Day: 17}
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.After(b))
}
