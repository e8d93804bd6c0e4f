// Package tz maps Go locations to the textual TZID identifiers used in
// iCalendar and derives the observance rules for VTIMEZONE blocks.
//
// Rule data comes from the tz database embedded by 4d63.com/tz, so results do
// not depend on the zoneinfo files installed on the host.
package tz

import (
	"strings"
	"sync"
	"time"

	tzdata "4d63.com/tz"
	"github.com/pkg/errors"

	"icalcodec/internal/model"
)

// DefaultPrefix is the vendor path prepended to Olson names in TZID values.
const DefaultPrefix = "/freeassociation.sourceforge.net/"

var (
	ErrUnknownTimezone             = errors.New("tz: unknown timezone")
	ErrAmbiguousOrInvalidLocalTime = errors.New("tz: ambiguous or invalid local time")
)

// LoaderFunc loads a location by Olson name.
type LoaderFunc func(name string) (*time.Location, error)

// Option configures a Database.
type Option func(*Database)

// WithPrefix sets the vendor prefix used for canonical identifiers.
func WithPrefix(prefix string) Option {
	return func(d *Database) {
		d.prefix = prefix
	}
}

// WithLoader replaces the embedded tz database loader.
func WithLoader(load LoaderFunc) Option {
	return func(d *Database) {
		if load != nil {
			d.load = load
		}
	}
}

// Database resolves timezone identifiers against a tz rule provider.
// It is safe for concurrent use; locations are loaded lazily and cached.
type Database struct {
	prefix string
	load   LoaderFunc

	mu    sync.RWMutex
	cache map[string]*time.Location
	// misses remembers names the loader rejected.
	misses map[string]struct{}
}

// NewDatabase creates a resolver backed by the embedded tz database.
func NewDatabase(opts ...Option) *Database {
	d := &Database{
		prefix: DefaultPrefix,
		load:   tzdata.LoadLocation,
		cache:  make(map[string]*time.Location),
		misses: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var (
	defaultDB     *Database
	defaultDBOnce sync.Once
)

// Default returns the process-wide Database with default options.
func Default() *Database {
	defaultDBOnce.Do(func() {
		defaultDB = NewDatabase()
	})
	return defaultDB
}

// Prefix returns the vendor prefix of canonical identifiers.
func (d *Database) Prefix() string {
	return d.prefix
}

// lookup loads name through the cache. Concurrent first lookups of the same
// name may both hit the loader; the results are identical and the last
// write wins.
func (d *Database) lookup(name string) (*time.Location, bool) {
	if name == "" {
		return nil, false
	}
	d.mu.RLock()
	loc, ok := d.cache[name]
	_, missed := d.misses[name]
	d.mu.RUnlock()
	if ok {
		return loc, true
	}
	if missed {
		return nil, false
	}

	loc, err := d.load(name)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil || loc == nil {
		d.misses[name] = struct{}{}
		return nil, false
	}
	d.cache[name] = loc
	return loc, true
}

// CanonicalIdentifier maps a location to its TZID value, e.g.
// "/freeassociation.sourceforge.net/Europe/Berlin".
//
// time.Local is resolved to the system zone name first. Locations whose name
// is not in the tz database (such as time.FixedZone values) fail with
// ErrUnknownTimezone.
func (d *Database) CanonicalIdentifier(loc *time.Location) (string, error) {
	if loc == nil {
		return "", errors.Wrap(ErrUnknownTimezone, "nil location")
	}
	name := loc.String()
	if loc == time.Local || name == "Local" {
		sys, err := systemZoneName()
		if err != nil {
			return "", errors.Wrapf(ErrUnknownTimezone, "system timezone: %v", err)
		}
		name = sys
	}
	if _, ok := d.lookup(name); !ok {
		return "", errors.Wrapf(ErrUnknownTimezone, "%q", name)
	}
	return d.prefix + name, nil
}

// OlsonName strips any vendor prefix from identifier and returns the Olson
// name known to the database.
//
// Accepted forms:
//   - the canonical form with this database's prefix;
//   - a bare Olson name ("Europe/Berlin");
//   - any other vendor path ("/mozilla.org/20050126_1/Europe/Berlin"), matched
//     by trying successively shorter path suffixes.
func (d *Database) OlsonName(identifier string) (string, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return "", errors.Wrap(ErrUnknownTimezone, "empty identifier")
	}
	if d.prefix != "" && strings.HasPrefix(id, d.prefix) {
		id = strings.TrimPrefix(id, d.prefix)
	}
	if _, ok := d.lookup(id); ok {
		return id, nil
	}

	parts := strings.Split(strings.Trim(id, "/"), "/")
	for i := 1; i < len(parts); i++ {
		candidate := strings.Join(parts[i:], "/")
		if _, ok := d.lookup(candidate); ok {
			return candidate, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownTimezone, "%q", identifier)
}

// Location returns the location referenced by a TZID value.
func (d *Database) Location(identifier string) (*time.Location, error) {
	name, err := d.OlsonName(identifier)
	if err != nil {
		return nil, err
	}
	loc, _ := d.lookup(name)
	return loc, nil
}

// Resolve converts a wall clock in the zone named by identifier to an
// absolute instant. On an overlap the earlier offset wins; a wall clock
// inside a gap fails with ErrAmbiguousOrInvalidLocalTime.
func (d *Database) Resolve(identifier string, local model.LocalTime) (time.Time, error) {
	loc, err := d.Location(identifier)
	if err != nil {
		return time.Time{}, err
	}
	t, err := local.In(loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrAmbiguousOrInvalidLocalTime, "%s in %s: %v", local, identifier, err)
	}
	return t.UTC(), nil
}
