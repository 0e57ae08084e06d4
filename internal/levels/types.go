package levels

// Action is a usage threshold a level requires, e.g. 50 prompts completed.
type Action struct {
	Metric    string  `yaml:"metric" json:"metric"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// Criteria gates entry into a level.
type Criteria struct {
	RequiredEnergy       float64  `yaml:"requiredEnergy" json:"requiredEnergy"`
	RequiredAchievements []string `yaml:"requiredAchievements,omitempty" json:"requiredAchievements,omitempty"`
	RequiredActions      []Action `yaml:"requiredActions,omitempty" json:"requiredActions,omitempty"`
	LevelUpCost          float64  `yaml:"levelUpCost" json:"levelUpCost"`
	MinimumSessionTime   float64  `yaml:"minimumSessionTime,omitempty" json:"minimumSessionTime,omitempty"` // seconds, 0 means none
}

// SkillNode is a purchasable node in a level's skill tree.
type SkillNode struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	Cost          float64  `yaml:"cost" json:"cost"`
	Prerequisites []string `yaml:"prerequisites,omitempty" json:"prerequisites,omitempty"`
	Features      []string `yaml:"features,omitempty" json:"features,omitempty"`
}

// Definition is a static level loaded from the catalog.
type Definition struct {
	LevelNumber      int         `yaml:"level" json:"levelNumber"`
	Name             string      `yaml:"name" json:"name"`
	UnlockCriteria   Criteria    `yaml:"unlockCriteria" json:"unlockCriteria"`
	UnlockedFeatures []string    `yaml:"unlockedFeatures,omitempty" json:"unlockedFeatures,omitempty"`
	SkillTreeNodes   []SkillNode `yaml:"skillTree,omitempty" json:"skillTreeNodes,omitempty"`
}

// Gates is the user state a level-up check reads.
type Gates struct {
	Level       int
	Available   float64
	Earned      map[string]bool
	Metrics     map[string]float64
	SessionTime float64 // seconds, including the running session
}
