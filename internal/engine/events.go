package engine

import (
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/levelup/internal/achievements"
	"github.com/abhisek/levelup/internal/progress"
)

// EventKind names an engine event.
type EventKind string

const (
	EventInitialized        EventKind = "initialized"
	EventSaved              EventKind = "saved"
	EventError              EventKind = "error"
	EventTutorialStarted    EventKind = "tutorialStarted"
	EventStepCompleted      EventKind = "stepCompleted"
	EventTutorialCompleted  EventKind = "tutorialCompleted"
	EventDropOff            EventKind = "dropOff"
	EventKnowledgeCheck     EventKind = "knowledgeCheck"
	EventFeedbackSubmitted  EventKind = "feedbackSubmitted"
	EventAchievementEarned  EventKind = "achievementEarned"
	EventExperienceGained   EventKind = "experienceGained"
	EventLevelUp            EventKind = "levelUp"
	EventFeatureUnlocked    EventKind = "featureUnlocked"
	EventPreferencesUpdated EventKind = "preferencesUpdated"
	EventSessionEnded       EventKind = "sessionEnded"
	EventDataImported       EventKind = "dataImported"
	EventDataCleared        EventKind = "dataCleared"
)

// AllEventKinds lists every event the engine emits.
func AllEventKinds() []EventKind {
	return []EventKind{
		EventInitialized, EventSaved, EventError,
		EventTutorialStarted, EventStepCompleted, EventTutorialCompleted,
		EventDropOff, EventKnowledgeCheck, EventFeedbackSubmitted,
		EventAchievementEarned, EventExperienceGained, EventLevelUp,
		EventFeatureUnlocked, EventPreferencesUpdated, EventSessionEnded,
		EventDataImported, EventDataCleared,
	}
}

// Event is delivered to subscribers. Payload holds one of the *Payload
// types below, or a progress type where noted on the kind.
type Event struct {
	Kind    EventKind
	At      time.Time
	Payload any
}

// InitializedPayload accompanies EventInitialized.
type InitializedPayload struct {
	UserID       string
	SessionID    string
	Restored     bool     // a persisted snapshot was merged
	Defaulted    []string // persisted fields that kept their defaults
	MigratedFrom string
}

// SavedPayload accompanies EventSaved.
type SavedPayload struct {
	Bytes int
}

// ErrorPayload accompanies EventError.
type ErrorPayload struct {
	Op  string // "load", "save", "clear"
	Err error
}

// StepPayload accompanies EventStepCompleted.
type StepPayload struct {
	TutorialID      string
	StepID          string
	TimeSpent       float64
	FirstCompletion bool
}

// KnowledgeCheckPayload accompanies EventKnowledgeCheck.
type KnowledgeCheckPayload struct {
	TutorialID string
	Check      progress.KnowledgeCheck
}

// FeedbackPayload accompanies EventFeedbackSubmitted.
type FeedbackPayload struct {
	TutorialID string
	Feedback   progress.Feedback
}

// AchievementPayload accompanies EventAchievementEarned. It carries the
// full definition for presentation.
type AchievementPayload struct {
	Definition achievements.Definition
	Record     progress.AchievementRecord
}

// ExperiencePayload accompanies EventExperienceGained.
type ExperiencePayload struct {
	Amount int
	Total  int
}

// LevelUpPayload accompanies EventLevelUp.
type LevelUpPayload struct {
	From, To      int
	Cost          float64
	ViaExperience bool
}

// FeaturePayload accompanies EventFeatureUnlocked.
type FeaturePayload struct {
	Feature string
	Source  string // "level:N" or "skill:ID"
}

// PreferencesPayload accompanies EventPreferencesUpdated.
type PreferencesPayload struct {
	Preferences     progress.Preferences
	PerformanceTier progress.PerformanceTier
}

// ImportPayload accompanies EventDataImported.
type ImportPayload struct {
	Fields []string
}

// Tutorial transitions (EventTutorialStarted, EventTutorialCompleted) carry
// a tutorial.Transition; EventDropOff carries a progress.DropOffPoint;
// EventSessionEnded carries a progress.SessionRecord; EventDataCleared has
// no payload.

// Handler receives engine events. Handlers run after the engine lock is
// released and may call back into the engine.
type Handler func(Event)

type subscription struct {
	id   uint64
	kind EventKind // empty for all kinds
	fn   Handler
}

type bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
	log    *zap.Logger
}

func (b *bus) subscribe(kind EventKind, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kind: kind, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
		})
	}
}

func (b *bus) publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	subs := slices.Clone(b.subs)
	b.mu.Unlock()

	for _, ev := range events {
		for _, s := range subs {
			if s.kind != "" && s.kind != ev.Kind {
				continue
			}
			b.call(s.fn, ev)
		}
	}
}

func (b *bus) call(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", zap.String("event", string(ev.Kind)), zap.Any("panic", r))
		}
	}()
	fn(ev)
}

func (b *bus) reset() {
	b.mu.Lock()
	b.subs = nil
	b.mu.Unlock()
}
