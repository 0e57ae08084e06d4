package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/mod/semver"
)

// ErrInvalidSnapshot is returned when a persisted value is not a JSON object.
var ErrInvalidSnapshot = errors.New("invalid progress snapshot")

// MergeResult reports what happened while merging a persisted snapshot.
type MergeResult struct {
	// Defaulted lists top-level fields whose persisted shape did not
	// decode and were left at their default value.
	Defaulted []string
	// MigratedFrom is the persisted profile version when a migration ran.
	MigratedFrom string
	// Newer is the persisted profile version when it is newer than
	// ProfileVersion. The version is kept as persisted.
	Newer string
}

// Merge decodes raw over base. Persisted fields win; a field whose shape
// does not match keeps the value from base. The user id always comes from
// base. base is modified in place.
func Merge(base *Data, raw []byte) (MergeResult, error) {
	var res MergeResult

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return res, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if fields == nil {
		return res, fmt.Errorf("%w: null document", ErrInvalidSnapshot)
	}

	decode := func(name string, dst any) {
		v, ok := fields[name]
		if !ok || string(v) == "null" {
			return
		}
		if err := decodeInto(v, dst); err != nil {
			res.Defaulted = append(res.Defaulted, name)
		}
	}

	persistedVersion := ""
	decode("profileVersion", &persistedVersion)
	decode("createdAt", &base.CreatedAt)
	decode("lastUpdated", &base.LastUpdated)
	decode("userProfile", &base.UserProfile)
	decode("tutorialProgress", &base.TutorialProgress)
	decode("learningMetrics", &base.LearningMetrics)
	decode("featureUsage", &base.FeatureUsage)
	decode("analyticsData", &base.AnalyticsData)

	switch {
	case needsMigration(persistedVersion):
		migrate(base, persistedVersion)
		res.MigratedFrom = persistedVersion
		base.ProfileVersion = ProfileVersion
	case isNewer(persistedVersion):
		base.ProfileVersion = persistedVersion
		res.Newer = persistedVersion
	default:
		base.ProfileVersion = ProfileVersion
	}

	Normalize(base)
	return res, nil
}

// decodeInto unmarshals v into a scratch copy of dst and only assigns on
// success, so a partial decode never leaves dst half-written.
func decodeInto(v json.RawMessage, dst any) error {
	switch p := dst.(type) {
	case *string:
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		*p = s
	case *time.Time:
		var t time.Time
		if err := json.Unmarshal(v, &t); err != nil {
			return err
		}
		*p = t
	case *UserProfile:
		scratch := *p
		if err := json.Unmarshal(v, &scratch); err != nil {
			return err
		}
		*p = scratch
	case *map[string]*TutorialProgress:
		var m map[string]*TutorialProgress
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		*p = m
	case *LearningMetrics:
		var m LearningMetrics
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		*p = m
	case *FeatureUsage:
		var f FeatureUsage
		if err := json.Unmarshal(v, &f); err != nil {
			return err
		}
		*p = f
	case *AnalyticsData:
		var a AnalyticsData
		if err := json.Unmarshal(v, &a); err != nil {
			return err
		}
		*p = a
	default:
		return fmt.Errorf("unsupported field type %T", dst)
	}
	return nil
}

func canonical(v string) string {
	if v == "" {
		return "v0.0.0"
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "v0.0.0"
	}
	return v
}

func needsMigration(persisted string) bool {
	return semver.Compare(canonical(persisted), canonical(ProfileVersion)) < 0
}

func isNewer(persisted string) bool {
	return semver.Compare(canonical(persisted), canonical(ProfileVersion)) > 0
}

// migrate upgrades older snapshot shapes in place.
func migrate(d *Data, from string) {
	// Before 1.1.0 the energy ledger did not exist; award history was kept
	// only as achievements, so seed the lifetime total from what remains
	// available.
	if semver.Compare(canonical(from), "v1.1.0") < 0 {
		e := &d.UserProfile.Energy
		if e.TotalEnergy < e.AvailableEnergy {
			e.TotalEnergy = e.AvailableEnergy
		}
		// Completion counts were not deduplicated per tutorial.
		completed := 0
		for _, tp := range d.TutorialProgress {
			if tp != nil && tp.CompletedAt != nil {
				completed++
			}
		}
		d.LearningMetrics.TotalTutorialsCompleted = completed
		if d.LearningMetrics.TotalTutorialsStarted < len(d.TutorialProgress) {
			d.LearningMetrics.TotalTutorialsStarted = len(d.TutorialProgress)
		}
	}
}
