package engine

import (
	"maps"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/levelup/internal/progress"
)

// session is the engine-lifetime session record kept outside the aggregate
// so imports and clears cannot detach it.
type session struct {
	id      string
	start   time.Time
	end     *time.Time
	events  int
	metrics map[string]float64
	models  map[string]bool
}

func newSession(now time.Time) *session {
	return &session{
		id:      uuid.New().String(),
		start:   now,
		metrics: make(map[string]float64),
		models:  make(map[string]bool),
	}
}

// elapsed returns the session length in seconds at now.
func (s *session) elapsed(now time.Time) float64 {
	if s.end != nil {
		now = *s.end
	}
	return math.Max(now.Sub(s.start).Seconds(), 0)
}

func (s *session) record(now time.Time) progress.SessionRecord {
	rec := progress.SessionRecord{
		SessionID:  s.id,
		StartTime:  s.start,
		Duration:   s.elapsed(now),
		EventCount: s.events,
		Metrics:    maps.Clone(s.metrics),
	}
	if s.end != nil {
		end := *s.end
		rec.EndTime = &end
	}
	return rec
}

// syncSessionLocked writes the current session record into the aggregate,
// replacing the entry with the same id or appending one.
func (e *Engine) syncSessionLocked(now time.Time) {
	if e.session == nil {
		return
	}
	rec := e.session.record(now)
	sessions := e.data.AnalyticsData.Sessions
	for i := len(sessions) - 1; i >= 0; i-- {
		if sessions[i].SessionID == rec.SessionID {
			sessions[i] = rec
			return
		}
	}
	e.data.AnalyticsData.Sessions = append(sessions, rec)
}

// SessionID returns the current session id, or "" before Initialize.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return ""
	}
	return e.session.id
}

// EndSession finalizes the current session record and adds its duration to
// the lifetime session time. Later calls do nothing.
func (e *Engine) EndSession() {
	e.update(func(tx *txn) bool {
		s := e.session
		if s == nil || s.end != nil {
			return false
		}
		end := tx.now
		s.end = &end
		e.syncSessionLocked(tx.now)
		tx.d.FeatureUsage.TotalSessionTime += s.elapsed(tx.now)
		tx.emit(EventSessionEnded, s.record(tx.now))
		return true
	})
}

// TrackEvent appends a custom analytics event to the bounded log.
func (e *Engine) TrackEvent(name string, properties map[string]any) bool {
	if name == "" {
		return false
	}
	return e.update(func(tx *txn) bool {
		ev := progress.CustomEvent{
			Name:       name,
			Properties: maps.Clone(properties),
			Timestamp:  tx.now,
		}
		if e.session != nil {
			ev.SessionID = e.session.id
			e.session.events++
		}
		events := append(tx.d.AnalyticsData.Events, ev)
		if n := len(events); n > progress.MaxCustomEvents {
			events = append([]progress.CustomEvent(nil), events[n-progress.MaxCustomEvents:]...)
		}
		tx.d.AnalyticsData.Events = events
		return true
	})
}

// AssignABTest records variant for testID. The first assignment for a test
// wins; the effective variant is returned with whether it was newly set.
func (e *Engine) AssignABTest(testID, variant string) (string, bool) {
	if testID == "" || variant == "" {
		return "", false
	}
	var effective string
	ok := e.update(func(tx *txn) bool {
		for _, a := range tx.d.AnalyticsData.ABTests {
			if a.TestID == testID {
				effective = a.Variant
				return false
			}
		}
		tx.d.AnalyticsData.ABTests = append(tx.d.AnalyticsData.ABTests, progress.ABTestAssignment{
			TestID:     testID,
			Variant:    variant,
			AssignedAt: tx.now,
		})
		effective = variant
		return true
	})
	return effective, ok
}

// UpdatePreferences replaces the user's preferences.
func (e *Engine) UpdatePreferences(p progress.Preferences) bool {
	return e.update(func(tx *txn) bool {
		tx.d.UserProfile.Preferences = p
		tx.emit(EventPreferencesUpdated, PreferencesPayload{Preferences: p, PerformanceTier: tx.d.UserProfile.PerformanceTier})
		return true
	})
}

// SetPerformanceTier changes the performance tier.
func (e *Engine) SetPerformanceTier(tier progress.PerformanceTier) bool {
	if !tier.Valid() {
		return false
	}
	return e.update(func(tx *txn) bool {
		tx.d.UserProfile.PerformanceTier = tier
		tx.emit(EventPreferencesUpdated, PreferencesPayload{Preferences: tx.d.UserProfile.Preferences, PerformanceTier: tier})
		return true
	})
}

// sessionStartsLocked lists the start time of every recorded session plus
// the running one.
func (e *Engine) sessionStartsLocked() []time.Time {
	starts := make([]time.Time, 0, len(e.data.AnalyticsData.Sessions)+1)
	for _, s := range e.data.AnalyticsData.Sessions {
		starts = append(starts, s.StartTime)
	}
	if e.session != nil {
		starts = append(starts, e.session.start)
	}
	return starts
}

// streakDays counts consecutive UTC calendar days with a session start,
// ending on the day of now.
func streakDays(starts []time.Time, now time.Time) int {
	days := make(map[string]bool, len(starts))
	for _, t := range starts {
		days[t.UTC().Format(time.DateOnly)] = true
	}
	streak := 0
	for day := now.UTC(); days[day.Format(time.DateOnly)]; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}
