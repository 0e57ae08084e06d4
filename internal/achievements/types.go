package achievements

// Timeframe selects which metric window an achievement is measured over.
type Timeframe string

const (
	TimeframeLifetime Timeframe = "lifetime"
	TimeframeSession  Timeframe = "session"
)

// ConditionType names an extra gate that must hold for an unlock.
type ConditionType string

const (
	CondMinimumValue      ConditionType = "minimum_value"
	CondMaximumValue      ConditionType = "maximum_value"
	CondFeatureEnabled    ConditionType = "feature_enabled"
	CondAchievementEarned ConditionType = "achievement_earned"
	CondModelUsed         ConditionType = "model_used"
)

// Known reports whether t is a condition type the evaluator understands.
func (t ConditionType) Known() bool {
	switch t {
	case CondMinimumValue, CondMaximumValue, CondFeatureEnabled, CondAchievementEarned, CondModelUsed:
		return true
	}
	return false
}

// Condition is one extra gate. Metric and Value are used by the value
// bounds; Target names the feature, achievement or model for the others.
type Condition struct {
	Type   ConditionType `yaml:"type" json:"type"`
	Metric string        `yaml:"metric,omitempty" json:"metric,omitempty"`
	Value  float64       `yaml:"value,omitempty" json:"value,omitempty"`
	Target string        `yaml:"target,omitempty" json:"target,omitempty"`
}

// Criteria is what must be reached to unlock an achievement.
type Criteria struct {
	MetricType     string      `yaml:"metricType" json:"metricType"`
	TargetValue    float64     `yaml:"targetValue" json:"targetValue"`
	Timeframe      Timeframe   `yaml:"timeframe,omitempty" json:"timeframe,omitempty"`
	Conditions     []Condition `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	StreakRequired int         `yaml:"streakRequired,omitempty" json:"streakRequired,omitempty"`
}

// Definition is a static achievement loaded from the catalog.
type Definition struct {
	ID               string   `yaml:"id" json:"achievementId"`
	Name             string   `yaml:"name" json:"name"`
	Description      string   `yaml:"description,omitempty" json:"description,omitempty"`
	Category         string   `yaml:"category" json:"category"`
	Rarity           Rarity   `yaml:"rarity" json:"rarity"`
	EnergyReward     float64  `yaml:"energyReward" json:"energyReward"`
	UnlockCriteria   Criteria `yaml:"unlockCriteria" json:"unlockCriteria"`
	Prerequisites    []string `yaml:"prerequisites,omitempty" json:"prerequisites,omitempty"`
	LevelRequirement int      `yaml:"levelRequirement,omitempty" json:"levelRequirement,omitempty"`
	IsSecret         bool     `yaml:"secret,omitempty" json:"isSecret,omitempty"`
}

// State is the live view of the user the evaluator reads. The evaluator
// never writes to it except Earned, which it extends as it unlocks.
type State struct {
	Level          int
	Earned         map[string]bool
	Metrics        map[string]float64 // lifetime
	SessionMetrics map[string]float64 // current session only
	Features       map[string]bool
	ModelsUsed     map[string]int
	StreakDays     int
}
