package progress

import "time"

// ProfileVersion is the current shape version of the persisted aggregate.
const ProfileVersion = "1.1.0"

// PerformanceTier buckets the device/user performance profile.
type PerformanceTier string

const (
	TierLow  PerformanceTier = "low"
	TierMid  PerformanceTier = "mid"
	TierHigh PerformanceTier = "high"
)

// Valid reports whether t is a known tier.
func (t PerformanceTier) Valid() bool {
	switch t {
	case TierLow, TierMid, TierHigh:
		return true
	}
	return false
}

// TutorialStatus is a tutorial's position in its lifecycle.
type TutorialStatus string

const (
	StatusNotStarted TutorialStatus = "not_started"
	StatusInProgress TutorialStatus = "in_progress"
	StatusCompleted  TutorialStatus = "completed"
	StatusSkipped    TutorialStatus = "skipped"
	StatusAbandoned  TutorialStatus = "abandoned"
)

// Data is the full per-user progress aggregate. It is persisted as one
// opaque JSON value and is the shape returned by exports.
type Data struct {
	UserID           string                       `json:"userId"`
	ProfileVersion   string                       `json:"profileVersion"`
	CreatedAt        time.Time                    `json:"createdAt"`
	LastUpdated      time.Time                    `json:"lastUpdated"`
	UserProfile      UserProfile                  `json:"userProfile"`
	TutorialProgress map[string]*TutorialProgress `json:"tutorialProgress"`
	LearningMetrics  LearningMetrics              `json:"learningMetrics"`
	FeatureUsage     FeatureUsage                 `json:"featureUsage"`
	AnalyticsData    AnalyticsData                `json:"analyticsData"`
}

// UserProfile holds level, experience, energy and earned achievements.
type UserProfile struct {
	CurrentLevel     int                 `json:"currentLevel"`
	ExperiencePoints int                 `json:"experiencePoints"`
	PerformanceTier  PerformanceTier     `json:"performanceTier"`
	Preferences      Preferences         `json:"preferences"`
	Achievements     []AchievementRecord `json:"achievements"`
	Energy           EnergyLedger        `json:"energy"`
	UnlockedFeatures []string            `json:"unlockedFeatures"`
	PurchasedSkills  []string            `json:"purchasedSkills"`
}

// Preferences are user-facing presentation settings.
type Preferences struct {
	Pacing            string `json:"pacing"`
	VisualComplexity  string `json:"visualComplexity"`
	HelpFrequency     string `json:"helpFrequency"`
	AccessibilityMode bool   `json:"accessibilityMode"`
	ReducedMotion     bool   `json:"reducedMotion"`
}

// AchievementRecord is an earned achievement. Records are append-only.
type AchievementRecord struct {
	AchievementID string    `json:"achievementId"`
	Name          string    `json:"name"`
	EarnedAt      time.Time `json:"earnedAt"`
	Category      string    `json:"category"`
}

// MaxEnergyTransactions bounds the ledger's transaction log.
const MaxEnergyTransactions = 100

// EnergyLedger tracks the energy-unit economy.
// AvailableEnergy never exceeds TotalEnergy.
type EnergyLedger struct {
	TotalEnergy     float64             `json:"totalEnergy"`
	AvailableEnergy float64             `json:"availableEnergy"`
	Transactions    []EnergyTransaction `json:"transactions"`
}

// EnergyTransaction is one successful award or spend.
type EnergyTransaction struct {
	Kind   string    `json:"kind"` // "award" or "spend"
	Amount float64   `json:"amount"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// TutorialProgress tracks a single tutorial for the user.
type TutorialProgress struct {
	TutorialID           string                   `json:"tutorialId"`
	Status               TutorialStatus           `json:"status"`
	StartedAt            *time.Time               `json:"startedAt,omitempty"`
	CompletedAt          *time.Time               `json:"completedAt,omitempty"`
	LastAccessedAt       *time.Time               `json:"lastAccessedAt,omitempty"`
	TotalTimeSpent       float64                  `json:"totalTimeSpent"`
	CompletionPercentage float64                  `json:"completionPercentage"`
	StepsCompleted       []string                 `json:"stepsCompleted"`
	StepProgress         map[string]*StepProgress `json:"stepProgress"`
	KnowledgeChecks      []KnowledgeCheck         `json:"knowledgeChecks"`
	Feedback             *Feedback                `json:"feedback,omitempty"`
}

// HasCompletedStep reports whether stepID is in StepsCompleted.
func (tp *TutorialProgress) HasCompletedStep(stepID string) bool {
	for _, s := range tp.StepsCompleted {
		if s == stepID {
			return true
		}
	}
	return false
}

// StepProgress tracks a single step within a tutorial.
type StepProgress struct {
	StepID      string         `json:"stepId"`
	Status      TutorialStatus `json:"status"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	TimeSpent   float64        `json:"timeSpent"`
	Attempts    int            `json:"attempts"`
	HintsUsed   int            `json:"hintsUsed"`
	Errors      []StepError    `json:"errors"`
}

// StepError is a mistake recorded against a step.
type StepError struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// KnowledgeCheck is the result of one quiz question inside a tutorial.
type KnowledgeCheck struct {
	QuestionID string    `json:"questionId"`
	Correct    bool      `json:"correct"`
	Attempts   int       `json:"attempts"`
	TimeSpent  float64   `json:"timeSpent"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// Feedback is the user's rating of a tutorial.
type Feedback struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// LearningMetrics are derived tutorial counters. They are recomputed and
// never authoritative.
type LearningMetrics struct {
	TotalTutorialsStarted   int            `json:"totalTutorialsStarted"`
	TotalTutorialsCompleted int            `json:"totalTutorialsCompleted"`
	CompletionRate          float64        `json:"completionRate"`
	AverageCompletionTime   float64        `json:"averageCompletionTime"`
	KnowledgeCheckAccuracy  float64        `json:"knowledgeCheckAccuracy"`
	DropOffPoints           []DropOffPoint `json:"dropOffPoints"`
}

// DropOffPoint records a tutorial abandonment.
type DropOffPoint struct {
	TutorialID string    `json:"tutorialId"`
	StepID     string    `json:"stepId"`
	Timestamp  time.Time `json:"timestamp"`
	Reason     string    `json:"reason"`
}

// FeatureUsage holds cumulative usage metrics pushed by collaborators.
type FeatureUsage struct {
	Metrics          map[string]float64 `json:"metrics"`
	ModelsUsed       map[string]int     `json:"modelsUsed"`
	TotalSessionTime float64            `json:"totalSessionTime"` // seconds, finished sessions only
}

// MaxCustomEvents bounds the analytics event log.
const MaxCustomEvents = 500

// AnalyticsData is reporting-only state.
type AnalyticsData struct {
	Sessions []SessionRecord    `json:"sessions"`
	Events   []CustomEvent      `json:"events"`
	ABTests  []ABTestAssignment `json:"abTests"`
}

// SessionRecord describes one engine lifetime.
type SessionRecord struct {
	SessionID  string             `json:"sessionId"`
	StartTime  time.Time          `json:"startTime"`
	EndTime    *time.Time         `json:"endTime,omitempty"`
	Duration   float64            `json:"duration"` // seconds
	EventCount int                `json:"eventCount"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// CustomEvent is a free-form analytics event.
type CustomEvent struct {
	Name       string         `json:"name"`
	SessionID  string         `json:"sessionId"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ABTestAssignment records the variant a user was bucketed into.
type ABTestAssignment struct {
	TestID     string    `json:"testId"`
	Variant    string    `json:"variant"`
	AssignedAt time.Time `json:"assignedAt"`
}

// Partial is a shallow import payload: every non-nil field replaces the
// corresponding top-level field of the aggregate.
type Partial struct {
	ProfileVersion   *string                      `json:"profileVersion,omitempty"`
	CreatedAt        *time.Time                   `json:"createdAt,omitempty"`
	UserProfile      *UserProfile                 `json:"userProfile,omitempty"`
	TutorialProgress map[string]*TutorialProgress `json:"tutorialProgress,omitempty"`
	LearningMetrics  *LearningMetrics             `json:"learningMetrics,omitempty"`
	FeatureUsage     *FeatureUsage                `json:"featureUsage,omitempty"`
	AnalyticsData    *AnalyticsData               `json:"analyticsData,omitempty"`
}
