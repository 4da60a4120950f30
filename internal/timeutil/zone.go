package timeutil

import (
	"fmt"
	"time"
)

// IsZoneValid reports whether name loads from the tz database.
func IsZoneValid(name string) bool {
	if name == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// SetLocalZone makes name the process-local zone, so log timestamps and
// query windows use the camera's wall clock rather than the host's. An
// empty name keeps the host zone.
func SetLocalZone(name string) error {
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("failed to load timezone %s: %w", name, err)
	}
	time.Local = loc
	return nil
}
