package tz

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const localtimePath = "/etc/localtime"

// systemZoneName returns the Olson name behind time.Local: $TZ when set,
// otherwise the target of the /etc/localtime symlink.
func systemZoneName() (string, error) {
	if v, ok := os.LookupEnv("TZ"); ok {
		v = strings.TrimPrefix(v, ":")
		if v == "" {
			return "UTC", nil
		}
		if !filepath.IsAbs(v) {
			return v, nil
		}
		return zoneFromPath(v)
	}

	target, err := filepath.EvalSymlinks(localtimePath)
	if err != nil {
		return "", err
	}
	return zoneFromPath(target)
}

func zoneFromPath(p string) (string, error) {
	const marker = "zoneinfo/"
	i := strings.LastIndex(p, marker)
	if i < 0 {
		return "", errors.Errorf("cannot derive zone name from %q", p)
	}
	name := p[i+len(marker):]
	// Some distributions keep "posix/" and "right/" variants.
	name = strings.TrimPrefix(name, "posix/")
	name = strings.TrimPrefix(name, "right/")
	if name == "" {
		return "", errors.Errorf("cannot derive zone name from %q", p)
	}
	return name, nil
}
