package progress

import (
	"maps"
	"slices"
	"time"
)

// New returns the default aggregate for a brand-new user.
func New(userID string, now time.Time) *Data {
	now = now.UTC()
	d := &Data{
		UserID:         userID,
		ProfileVersion: ProfileVersion,
		CreatedAt:      now,
		LastUpdated:    now,
		UserProfile: UserProfile{
			CurrentLevel:    1,
			PerformanceTier: TierMid,
			Preferences: Preferences{
				Pacing:           "normal",
				VisualComplexity: "standard",
				HelpFrequency:    "normal",
			},
		},
	}
	Normalize(d)
	return d
}

// Normalize fills nil collections and clamps values that a foreign or
// hand-edited snapshot may carry outside their valid range.
func Normalize(d *Data) {
	p := &d.UserProfile
	if p.CurrentLevel < 1 {
		p.CurrentLevel = 1
	}
	if p.ExperiencePoints < 0 {
		p.ExperiencePoints = 0
	}
	if !p.PerformanceTier.Valid() {
		p.PerformanceTier = TierMid
	}
	p.Achievements = uniqueAchievements(p.Achievements)
	p.UnlockedFeatures = uniqueStrings(p.UnlockedFeatures)
	p.PurchasedSkills = uniqueStrings(p.PurchasedSkills)
	if p.Energy.Transactions == nil {
		p.Energy.Transactions = []EnergyTransaction{}
	}
	if p.Energy.TotalEnergy < 0 {
		p.Energy.TotalEnergy = 0
	}
	if p.Energy.AvailableEnergy < 0 {
		p.Energy.AvailableEnergy = 0
	}
	if p.Energy.AvailableEnergy > p.Energy.TotalEnergy {
		p.Energy.AvailableEnergy = p.Energy.TotalEnergy
	}

	if d.TutorialProgress == nil {
		d.TutorialProgress = make(map[string]*TutorialProgress)
	}
	for id, tp := range d.TutorialProgress {
		if tp == nil {
			delete(d.TutorialProgress, id)
			continue
		}
		if tp.TutorialID == "" {
			tp.TutorialID = id
		}
		tp.StepsCompleted = uniqueStrings(tp.StepsCompleted)
		if tp.Status == StatusCompleted {
			tp.CompletionPercentage = 100
		} else {
			tp.CompletionPercentage = min(max(tp.CompletionPercentage, 0), 99)
		}
		if tp.StepProgress == nil {
			tp.StepProgress = make(map[string]*StepProgress)
		}
		if tp.KnowledgeChecks == nil {
			tp.KnowledgeChecks = []KnowledgeCheck{}
		}
	}

	if d.LearningMetrics.DropOffPoints == nil {
		d.LearningMetrics.DropOffPoints = []DropOffPoint{}
	}
	RecomputeCompletionRate(&d.LearningMetrics)

	if d.FeatureUsage.Metrics == nil {
		d.FeatureUsage.Metrics = make(map[string]float64)
	}
	if d.FeatureUsage.ModelsUsed == nil {
		d.FeatureUsage.ModelsUsed = make(map[string]int)
	}

	if d.AnalyticsData.Sessions == nil {
		d.AnalyticsData.Sessions = []SessionRecord{}
	}
	if d.AnalyticsData.Events == nil {
		d.AnalyticsData.Events = []CustomEvent{}
	}
	if d.AnalyticsData.ABTests == nil {
		d.AnalyticsData.ABTests = []ABTestAssignment{}
	}
}

// uniqueStrings drops repeated entries, keeping first occurrences in order.
// It never returns nil.
func uniqueStrings(ss []string) []string {
	out := make([]string, 0, len(ss))
	seen := make(map[string]bool, len(ss))
	for _, s := range ss {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// uniqueAchievements keeps one record per achievement id, at the position
// of its first occurrence and with the earliest earnedAt seen.
func uniqueAchievements(records []AchievementRecord) []AchievementRecord {
	out := make([]AchievementRecord, 0, len(records))
	index := make(map[string]int, len(records))
	for _, r := range records {
		if i, ok := index[r.AchievementID]; ok {
			if r.EarnedAt.Before(out[i].EarnedAt) {
				out[i].EarnedAt = r.EarnedAt
			}
			continue
		}
		index[r.AchievementID] = len(out)
		out = append(out, r)
	}
	return out
}

// RecomputeCompletionRate sets CompletionRate = completed / started,
// or 0 when nothing was started. The result is clamped to [0, 1].
func RecomputeCompletionRate(m *LearningMetrics) {
	if m.TotalTutorialsStarted <= 0 {
		m.CompletionRate = 0
		return
	}
	rate := float64(m.TotalTutorialsCompleted) / float64(m.TotalTutorialsStarted)
	m.CompletionRate = min(max(rate, 0), 1)
}

// HasAchievement reports whether achievementID has been earned.
func (d *Data) HasAchievement(achievementID string) bool {
	for _, a := range d.UserProfile.Achievements {
		if a.AchievementID == achievementID {
			return true
		}
	}
	return false
}

// EarnedSet returns the earned achievement ids as a set.
func (d *Data) EarnedSet() map[string]bool {
	set := make(map[string]bool, len(d.UserProfile.Achievements))
	for _, a := range d.UserProfile.Achievements {
		set[a.AchievementID] = true
	}
	return set
}

// HasFeature reports whether feature is unlocked.
func (d *Data) HasFeature(feature string) bool {
	return slices.Contains(d.UserProfile.UnlockedFeatures, feature)
}

// Clone returns a deep copy that shares no mutable state with d.
func (d *Data) Clone() *Data {
	cp := *d

	p := &cp.UserProfile
	p.Achievements = slices.Clone(d.UserProfile.Achievements)
	p.UnlockedFeatures = slices.Clone(d.UserProfile.UnlockedFeatures)
	p.PurchasedSkills = slices.Clone(d.UserProfile.PurchasedSkills)
	p.Energy.Transactions = slices.Clone(d.UserProfile.Energy.Transactions)

	if d.TutorialProgress != nil {
		cp.TutorialProgress = make(map[string]*TutorialProgress, len(d.TutorialProgress))
		for id, tp := range d.TutorialProgress {
			cp.TutorialProgress[id] = tp.Clone()
		}
	}

	cp.LearningMetrics.DropOffPoints = slices.Clone(d.LearningMetrics.DropOffPoints)

	cp.FeatureUsage.Metrics = maps.Clone(d.FeatureUsage.Metrics)
	cp.FeatureUsage.ModelsUsed = maps.Clone(d.FeatureUsage.ModelsUsed)

	if d.AnalyticsData.Sessions != nil {
		cp.AnalyticsData.Sessions = make([]SessionRecord, len(d.AnalyticsData.Sessions))
		for i, s := range d.AnalyticsData.Sessions {
			s.EndTime = cloneTime(s.EndTime)
			s.Metrics = maps.Clone(s.Metrics)
			cp.AnalyticsData.Sessions[i] = s
		}
	}
	if d.AnalyticsData.Events != nil {
		cp.AnalyticsData.Events = make([]CustomEvent, len(d.AnalyticsData.Events))
		for i, e := range d.AnalyticsData.Events {
			e.Properties = maps.Clone(e.Properties)
			cp.AnalyticsData.Events[i] = e
		}
	}
	cp.AnalyticsData.ABTests = slices.Clone(d.AnalyticsData.ABTests)

	return &cp
}

// Clone returns a deep copy of tp.
func (tp *TutorialProgress) Clone() *TutorialProgress {
	if tp == nil {
		return nil
	}
	cp := *tp
	cp.StartedAt = cloneTime(tp.StartedAt)
	cp.CompletedAt = cloneTime(tp.CompletedAt)
	cp.LastAccessedAt = cloneTime(tp.LastAccessedAt)
	cp.StepsCompleted = slices.Clone(tp.StepsCompleted)
	cp.KnowledgeChecks = slices.Clone(tp.KnowledgeChecks)
	if tp.StepProgress != nil {
		cp.StepProgress = make(map[string]*StepProgress, len(tp.StepProgress))
		for id, sp := range tp.StepProgress {
			if sp == nil {
				continue
			}
			s := *sp
			s.StartedAt = cloneTime(sp.StartedAt)
			s.CompletedAt = cloneTime(sp.CompletedAt)
			s.Errors = slices.Clone(sp.Errors)
			cp.StepProgress[id] = &s
		}
	}
	if tp.Feedback != nil {
		f := *tp.Feedback
		cp.Feedback = &f
	}
	return &cp
}

// Apply shallow-merges p into d: each non-nil field of p replaces the
// matching top-level field. The result is normalized.
func (d *Data) Apply(p Partial) {
	if p.ProfileVersion != nil {
		d.ProfileVersion = *p.ProfileVersion
	}
	if p.CreatedAt != nil {
		d.CreatedAt = *p.CreatedAt
	}
	if p.UserProfile != nil {
		d.UserProfile = *p.UserProfile
	}
	if p.TutorialProgress != nil {
		d.TutorialProgress = p.TutorialProgress
	}
	if p.LearningMetrics != nil {
		d.LearningMetrics = *p.LearningMetrics
	}
	if p.FeatureUsage != nil {
		d.FeatureUsage = *p.FeatureUsage
	}
	if p.AnalyticsData != nil {
		d.AnalyticsData = *p.AnalyticsData
	}
	Normalize(d)
}

// PartialFrom builds a Partial carrying every top-level field of d.
// The partial shares no mutable state with d.
func PartialFrom(d *Data) Partial {
	c := d.Clone()
	return Partial{
		ProfileVersion:   &c.ProfileVersion,
		CreatedAt:        &c.CreatedAt,
		UserProfile:      &c.UserProfile,
		TutorialProgress: c.TutorialProgress,
		LearningMetrics:  &c.LearningMetrics,
		FeatureUsage:     &c.FeatureUsage,
		AnalyticsData:    &c.AnalyticsData,
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Clone returns a deep copy of p. Nil fields stay nil.
func (p Partial) Clone() Partial {
	var d Data
	if p.UserProfile != nil {
		d.UserProfile = *p.UserProfile
	}
	d.TutorialProgress = p.TutorialProgress
	if p.LearningMetrics != nil {
		d.LearningMetrics = *p.LearningMetrics
	}
	if p.FeatureUsage != nil {
		d.FeatureUsage = *p.FeatureUsage
	}
	if p.AnalyticsData != nil {
		d.AnalyticsData = *p.AnalyticsData
	}
	c := d.Clone()

	var out Partial
	if p.ProfileVersion != nil {
		v := *p.ProfileVersion
		out.ProfileVersion = &v
	}
	if p.CreatedAt != nil {
		v := *p.CreatedAt
		out.CreatedAt = &v
	}
	if p.UserProfile != nil {
		out.UserProfile = &c.UserProfile
	}
	if p.TutorialProgress != nil {
		out.TutorialProgress = c.TutorialProgress
	}
	if p.LearningMetrics != nil {
		out.LearningMetrics = &c.LearningMetrics
	}
	if p.FeatureUsage != nil {
		out.FeatureUsage = &c.FeatureUsage
	}
	if p.AnalyticsData != nil {
		out.AnalyticsData = &c.AnalyticsData
	}
	return out
}
