package daemon

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// marker is the on-disk record of the currently active profile
// (SPEC_FULL.md: "active_profile.toml" under marker_dir). It exists so
// that a process outside the daemon (or the daemon itself, after a
// restart) can discover which profile was last activated without
// talking to the running daemon.
type marker struct {
	Name        string    `toml:"name"`
	ActivatedAt time.Time `toml:"activated_at"`
}

func markerPath(dir string) string {
	return filepath.Join(dir, "active_profile.toml")
}

// writeMarker atomically replaces the marker file, following the same
// temp-file-then-rename pattern that daemonconfig.Save uses for config
// writes.
func writeMarker(dir, name string, activatedAt time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "active_profile-*.toml.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	m := marker{Name: name, ActivatedAt: activatedAt}
	if err := toml.NewEncoder(tmp).Encode(m); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, markerPath(dir))
}

// readMarker returns the last-activated profile recorded in dir, or
// ok=false if no profile has ever been activated there.
func readMarker(dir string) (m marker, ok bool, err error) {
	data, err := os.ReadFile(markerPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return marker{}, false, nil
		}
		return marker{}, false, err
	}
	if err := toml.Unmarshal(data, &m); err != nil {
		return marker{}, false, err
	}
	return m, true, nil
}
