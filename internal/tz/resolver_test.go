package tz

import (
	"sync"
	"testing"
	"time"

	tzdata "4d63.com/tz"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icalcodec/internal/model"
)

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := tzdata.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func TestCanonicalIdentifier(t *testing.T) {
	db := NewDatabase()

	id, err := db.CanonicalIdentifier(berlin(t))
	require.NoError(t, err)
	assert.Equal(t, "/freeassociation.sourceforge.net/Europe/Berlin", id)

	id, err = db.CanonicalIdentifier(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrefix+"UTC", id)

	_, err = db.CanonicalIdentifier(time.FixedZone("Custom", 3600))
	assert.True(t, errors.Is(err, ErrUnknownTimezone))

	_, err = db.CanonicalIdentifier(nil)
	assert.True(t, errors.Is(err, ErrUnknownTimezone))
}

func TestCanonicalIdentifierCustomPrefix(t *testing.T) {
	db := NewDatabase(WithPrefix("/example.org/"))
	id, err := db.CanonicalIdentifier(berlin(t))
	require.NoError(t, err)
	assert.Equal(t, "/example.org/Europe/Berlin", id)
	assert.Equal(t, "/example.org/", db.Prefix())
}

func TestOlsonName(t *testing.T) {
	db := NewDatabase()
	tests := []struct {
		name string
		in   string
		want string
		err  error
	}{
		{"canonical", "/freeassociation.sourceforge.net/Europe/Berlin", "Europe/Berlin", nil},
		{"bare", "Europe/Berlin", "Europe/Berlin", nil},
		{"other vendor", "/mozilla.org/20050126_1/America/New_York", "America/New_York", nil},
		{"three part name", "/citadel.org/20190914_1/America/Argentina/Buenos_Aires", "America/Argentina/Buenos_Aires", nil},
		{"unknown", "/freeassociation.sourceforge.net/Mars/Olympus", "", ErrUnknownTimezone},
		{"empty", "  ", "", ErrUnknownTimezone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.OlsonName(tt.in)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve(t *testing.T) {
	db := NewDatabase()
	id := DefaultPrefix + "Europe/Berlin"

	got, err := db.Resolve(id, model.Local(2020, time.May, 9, 11, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, time.May, 9, 9, 0, 0, 0, time.UTC), got)

	// Overlap: the first occurrence (still +0200) wins.
	got, err = db.Resolve(id, model.Local(2020, time.October, 25, 2, 30, 0))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, time.October, 25, 0, 30, 0, 0, time.UTC), got)

	// Gap.
	_, err = db.Resolve(id, model.Local(2020, time.March, 29, 2, 30, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousOrInvalidLocalTime))

	_, err = db.Resolve("Nowhere/Special", model.Local(2020, time.March, 29, 2, 30, 0))
	assert.True(t, errors.Is(err, ErrUnknownTimezone))
}

func TestLookupCachesHitsAndMisses(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	db := NewDatabase(WithLoader(func(name string) (*time.Location, error) {
		mu.Lock()
		calls[name]++
		mu.Unlock()
		if name == "Europe/Berlin" {
			return tzdata.LoadLocation(name)
		}
		return nil, errors.New("not found")
	}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = db.Location("Europe/Berlin")
			_, _ = db.Location("Nowhere")
		}()
	}
	wg.Wait()

	// Concurrent first lookups may race to the loader, later ones may not.
	before := calls["Europe/Berlin"] + calls["Nowhere"]
	_, err := db.Location("Europe/Berlin")
	require.NoError(t, err)
	_, err = db.Location("Nowhere")
	require.Error(t, err)
	assert.Equal(t, before, calls["Europe/Berlin"]+calls["Nowhere"])
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestZoneFromPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/usr/share/zoneinfo/Europe/Berlin", "Europe/Berlin", true},
		{"/usr/share/zoneinfo/posix/Asia/Seoul", "Asia/Seoul", true},
		{"/var/db/timezone/zoneinfo/right/America/New_York", "America/New_York", true},
		{"/etc/localtime", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := zoneFromPath(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
