package achievements

// Metric names with a defined meaning. The first group is pushed by
// collaborators; the rest are derived from the progress aggregate at
// evaluation time.
const (
	MetricPromptsCompleted = "prompts_completed"
	MetricTokensGenerated  = "tokens_generated"
	MetricTokensPerSecond  = "tokens_per_second"
	MetricEfficiency       = "efficiency_percentage"

	MetricModelsUsed             = "models_used"  // distinct models
	MetricSessionTime            = "session_time" // seconds
	MetricTutorialsCompleted     = "tutorials_completed"
	MetricKnowledgeChecksCorrect = "knowledge_checks_correct"
	MetricAchievementsEarned     = "achievements_earned"
	MetricEnergyEarned           = "energy_earned"
	MetricExperiencePoints       = "experience_points"
	MetricCurrentLevel           = "current_level"
)

var knownMetrics = map[string]bool{
	MetricPromptsCompleted:       true,
	MetricTokensGenerated:        true,
	MetricTokensPerSecond:        true,
	MetricEfficiency:             true,
	MetricModelsUsed:             true,
	MetricSessionTime:            true,
	MetricTutorialsCompleted:     true,
	MetricKnowledgeChecksCorrect: true,
	MetricAchievementsEarned:     true,
	MetricEnergyEarned:           true,
	MetricExperiencePoints:       true,
	MetricCurrentLevel:           true,
}

// KnownMetric reports whether name has a defined meaning. Unknown names
// are still accepted and evaluate to 0.
func KnownMetric(name string) bool {
	return knownMetrics[name]
}
