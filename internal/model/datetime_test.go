package model

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("zoneinfo for %s not available: %v", name, err)
	}
	return loc
}

func TestLocalTimeIn(t *testing.T) {
	berlin := mustLoad(t, "Europe/Berlin")

	t.Run("regular wall clock", func(t *testing.T) {
		got, err := Local(2020, time.May, 9, 11, 0, 0).In(berlin)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2020, time.May, 9, 9, 0, 0, 0, time.UTC), got.UTC())
	})

	t.Run("overlap picks the earlier instant", func(t *testing.T) {
		// 2020-10-25 02:30 happens at +0200 and again at +0100.
		got, err := Local(2020, time.October, 25, 2, 30, 0).In(berlin)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2020, time.October, 25, 0, 30, 0, 0, time.UTC), got.UTC())
		_, off := got.Zone()
		assert.Equal(t, 2*3600, off)
	})

	t.Run("gap is an error", func(t *testing.T) {
		// 2020-03-29 02:30 does not exist in Berlin.
		_, err := Local(2020, time.March, 29, 2, 30, 0).In(berlin)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNonexistentLocalTime))
	})

	t.Run("nil location means UTC", func(t *testing.T) {
		got, err := Local(2021, time.January, 2, 3, 4, 5).In(nil)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2021, time.January, 2, 3, 4, 5, 0, time.UTC), got)
	})
}

func TestLocalTimeValid(t *testing.T) {
	tests := []struct {
		name  string
		local LocalTime
		want  bool
	}{
		{"ordinary", Local(2020, time.May, 9, 11, 0, 0), true},
		{"leap day", Local(2020, time.February, 29, 0, 0, 0), true},
		{"not a leap year", Local(2021, time.February, 29, 0, 0, 0), false},
		{"hour overflow", Local(2020, time.May, 9, 24, 0, 0), false},
		{"five digit year", Local(10000, time.January, 1, 0, 0, 0), false},
		{"negative year", Local(-1, time.January, 1, 0, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.local.Valid())
		})
	}
}

func TestEqual(t *testing.T) {
	berlin := mustLoad(t, "Europe/Berlin")
	paris := mustLoad(t, "Europe/Paris")
	wall := Local(2020, time.May, 9, 11, 0, 0)
	instant := time.Date(2020, time.May, 9, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b DateTime
		want bool
	}{
		{"same utc", UTC(instant), UTC(instant), true},
		{"utc truncates sub-second", UTC(instant.Add(300 * time.Millisecond)), UTC(instant), true},
		{"utc vs zoned same instant", UTC(instant), Zoned(wall, berlin), true},
		{"zoned same zone same wall", Zoned(wall, berlin), Zoned(wall, berlin), true},
		{"zoned different zone same instant", Zoned(wall, berlin), Zoned(wall, paris), true},
		{"zoned different wall", Zoned(wall, berlin), Zoned(Local(2020, time.May, 9, 12, 0, 0), berlin), false},
		{"floating same wall", Floating(wall), Floating(wall), true},
		{"floating vs zoned", Floating(wall), Zoned(wall, berlin), false},
		{"date same day", DateOf(2020, time.May, 9), DateOf(2020, time.May, 9), true},
		{"date vs floating midnight", DateOf(2020, time.May, 9), Floating(Local(2020, time.May, 9, 0, 0, 0)), false},
		{"both nil", nil, nil, true},
		{"one nil", UTC(instant), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a), "symmetry")
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, KindUTC, UTC(time.Unix(0, 0)).Kind())
	assert.Equal(t, KindZoned, Zoned(Local(1970, time.January, 1, 0, 0, 0), time.UTC).Kind())
	assert.Equal(t, KindFloating, Floating(LocalTime{}).Kind())
	assert.Equal(t, KindDate, DateOf(2020, 1, 1).Kind())
	assert.NotEqual(t, KindUTC.String(), KindZoned.String())
}
