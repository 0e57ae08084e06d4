package achievements

// conditionMet evaluates one extra gate. Unknown condition types never
// hold, so a misconfigured definition stays locked rather than unlocking
// early.
func conditionMet(c Condition, s State) bool {
	switch c.Type {
	case CondMinimumValue:
		return s.Metrics[c.Metric] >= c.Value
	case CondMaximumValue:
		return s.Metrics[c.Metric] <= c.Value
	case CondFeatureEnabled:
		return s.Features[c.Target]
	case CondAchievementEarned:
		return s.Earned[c.Target]
	case CondModelUsed:
		return s.ModelsUsed[c.Target] > 0
	default:
		return false
	}
}
