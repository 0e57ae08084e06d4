package engine

import (
	"fmt"
	"maps"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/levelup/internal/achievements"
	"github.com/abhisek/levelup/internal/levels"
	"github.com/abhisek/levelup/internal/progress"
)

// AwardEnergy credits amount energy units. Negative or non-finite amounts
// are refused.
func (e *Engine) AwardEnergy(amount float64, source string) bool {
	return e.update(func(tx *txn) bool {
		if !levels.Award(&tx.d.UserProfile.Energy, amount, source, tx.now) {
			e.log.Debug("energy award refused", zap.Float64("amount", amount), zap.String("source", source))
			return false
		}
		tx.evaluate()
		return true
	})
}

// SpendEnergy debits amount energy units. It fails without any change when
// the available balance is too low.
func (e *Engine) SpendEnergy(amount float64, purpose string) bool {
	return e.update(func(tx *txn) bool {
		if !levels.Spend(&tx.d.UserProfile.Energy, amount, purpose, tx.now) {
			e.log.Debug("energy spend refused",
				zap.Float64("amount", amount),
				zap.Float64("available", tx.d.UserProfile.Energy.AvailableEnergy),
				zap.String("purpose", purpose))
			return false
		}
		return true
	})
}

// CanLevelUp reports whether level is the next level and all of its gates
// are met.
func (e *Engine) CanLevelUp(level int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.levels.Check(e.gatesLocked(e.now().UTC()), level) == nil
}

// LevelUp moves to level if CanLevelUp, spending its cost and unlocking its
// features.
func (e *Engine) LevelUp(level int) bool {
	return e.update(func(tx *txn) bool {
		from := tx.d.UserProfile.CurrentLevel
		def, _ := e.levels.Definition(level)
		unlocked, err := e.levels.LevelUp(&tx.d.UserProfile, e.gatesLocked(tx.now), level, tx.now)
		if err != nil {
			e.log.Debug("level up refused", zap.Int("level", level), zap.Error(err))
			return false
		}
		tx.emit(EventLevelUp, LevelUpPayload{From: from, To: level, Cost: def.UnlockCriteria.LevelUpCost})
		tx.emitFeatures(unlocked, fmt.Sprintf("level:%d", level))
		tx.evaluate()
		return true
	})
}

// PurchaseSkill buys a node from the current level's skill tree.
func (e *Engine) PurchaseSkill(nodeID string) bool {
	return e.update(func(tx *txn) bool {
		unlocked, err := e.levels.PurchaseSkill(&tx.d.UserProfile, nodeID, tx.now)
		if err != nil {
			e.log.Debug("skill purchase refused", zap.String("skill", nodeID), zap.Error(err))
			return false
		}
		tx.emitFeatures(unlocked, "skill:"+nodeID)
		tx.evaluate()
		return true
	})
}

// AddExperiencePoints adds xp and advances the level one step at a time up
// to the level the experience rule allows. Experience-driven level-ups cost
// no energy. Levels never go down. The total saturates at math.MaxInt.
func (e *Engine) AddExperiencePoints(xp int) bool {
	if xp < 0 {
		return false
	}
	return e.update(func(tx *txn) bool {
		p := &tx.d.UserProfile
		gained := min(xp, math.MaxInt-p.ExperiencePoints)
		p.ExperiencePoints += gained
		tx.emit(EventExperienceGained, ExperiencePayload{Amount: gained, Total: p.ExperiencePoints})

		target := e.xp.LevelFor(p.ExperiencePoints)
		for p.CurrentLevel < target {
			from := p.CurrentLevel
			unlocked := e.levels.Promote(p)
			tx.emit(EventLevelUp, LevelUpPayload{From: from, To: p.CurrentLevel, ViaExperience: true})
			tx.emitFeatures(unlocked, fmt.Sprintf("level:%d", p.CurrentLevel))
		}
		tx.evaluate()
		return true
	})
}

// LevelProgress reports the path to the next level.
func (e *Engine) LevelProgress() levels.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.levels.Progress(e.gatesLocked(e.now().UTC()))
}

// UpdateMetric sets a metric for the current session. The lifetime value
// keeps the highest value seen.
func (e *Engine) UpdateMetric(name string, value float64) bool {
	if name == "" || math.IsNaN(value) || math.IsInf(value, 0) {
		return false
	}
	return e.update(func(tx *txn) bool {
		if e.session != nil {
			e.session.metrics[name] = value
		}
		m := tx.d.FeatureUsage.Metrics
		if cur, ok := m[name]; !ok || value > cur {
			m[name] = value
		}
		tx.evaluate()
		return true
	})
}

// IncrementMetric adds delta to a counter metric in both the session and
// lifetime totals. Negative deltas are refused.
func (e *Engine) IncrementMetric(name string, delta float64) bool {
	if name == "" || delta < 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return false
	}
	return e.update(func(tx *txn) bool {
		if e.session != nil {
			e.session.metrics[name] += delta
		}
		tx.d.FeatureUsage.Metrics[name] += delta
		tx.evaluate()
		return true
	})
}

// RecordModelUsage counts one use of model.
func (e *Engine) RecordModelUsage(model string) bool {
	if model == "" {
		return false
	}
	return e.update(func(tx *txn) bool {
		tx.d.FeatureUsage.ModelsUsed[model]++
		if e.session != nil {
			e.session.models[model] = true
		}
		tx.evaluate()
		return true
	})
}

// Achievements lists visible achievements with their earned state and
// display progress.
func (e *Engine) Achievements() []achievements.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluator.Visible(e.stateLocked(e.now().UTC()))
}

func (tx *txn) emitFeatures(features []string, source string) {
	for _, f := range features {
		tx.emit(EventFeatureUnlocked, FeaturePayload{Feature: f, Source: source})
	}
}

// evaluate unlocks every achievement that is now eligible. Rewards and
// unlocks feed derived metrics, so it repeats until a pass unlocks nothing.
func (tx *txn) evaluate() {
	e := tx.e
	for {
		s := e.stateLocked(tx.now)
		unlocked := e.evaluator.Evaluate(&s)
		if len(unlocked) == 0 {
			return
		}
		for _, def := range unlocked {
			if tx.d.HasAchievement(def.ID) {
				continue
			}
			rec := progress.AchievementRecord{
				AchievementID: def.ID,
				Name:          def.Name,
				EarnedAt:      tx.now,
				Category:      def.Category,
			}
			tx.d.UserProfile.Achievements = append(tx.d.UserProfile.Achievements, rec)
			levels.Award(&tx.d.UserProfile.Energy, def.EnergyReward, "achievement "+def.ID, tx.now)
			e.log.Info("achievement earned", zap.String("achievement", def.ID), zap.Float64("reward", def.EnergyReward))
			tx.emit(EventAchievementEarned, AchievementPayload{Definition: def, Record: rec})
		}
	}
}

// sessionTimeLocked is the lifetime session time in seconds, including the
// running session.
func (e *Engine) sessionTimeLocked(now time.Time) float64 {
	total := e.data.FeatureUsage.TotalSessionTime
	if e.session != nil && e.session.end == nil {
		total += e.session.elapsed(now)
	}
	return total
}

// stateLocked builds the evaluator's view of the user. Derived metrics
// override pushed values of the same name.
func (e *Engine) stateLocked(now time.Time) achievements.State {
	d := e.data
	lifetime := maps.Clone(d.FeatureUsage.Metrics)
	if lifetime == nil {
		lifetime = make(map[string]float64)
	}
	sessionMetrics := make(map[string]float64)
	var sessionModels int
	var elapsed float64
	if e.session != nil {
		maps.Copy(sessionMetrics, e.session.metrics)
		sessionModels = len(e.session.models)
		elapsed = e.session.elapsed(now)
	}

	correct := 0
	for _, tp := range d.TutorialProgress {
		for _, kc := range tp.KnowledgeChecks {
			if kc.Correct {
				correct++
			}
		}
	}
	derived := map[string]float64{
		achievements.MetricTutorialsCompleted:     float64(d.LearningMetrics.TotalTutorialsCompleted),
		achievements.MetricKnowledgeChecksCorrect: float64(correct),
		achievements.MetricAchievementsEarned:     float64(len(d.UserProfile.Achievements)),
		achievements.MetricEnergyEarned:           d.UserProfile.Energy.TotalEnergy,
		achievements.MetricExperiencePoints:       float64(d.UserProfile.ExperiencePoints),
		achievements.MetricCurrentLevel:           float64(d.UserProfile.CurrentLevel),
	}
	maps.Copy(lifetime, derived)
	maps.Copy(sessionMetrics, derived)
	lifetime[achievements.MetricModelsUsed] = float64(len(d.FeatureUsage.ModelsUsed))
	lifetime[achievements.MetricSessionTime] = e.sessionTimeLocked(now)
	sessionMetrics[achievements.MetricModelsUsed] = float64(sessionModels)
	sessionMetrics[achievements.MetricSessionTime] = elapsed

	features := make(map[string]bool, len(d.UserProfile.UnlockedFeatures))
	for _, f := range d.UserProfile.UnlockedFeatures {
		features[f] = true
	}
	return achievements.State{
		Level:          d.UserProfile.CurrentLevel,
		Earned:         d.EarnedSet(),
		Metrics:        lifetime,
		SessionMetrics: sessionMetrics,
		Features:       features,
		ModelsUsed:     maps.Clone(d.FeatureUsage.ModelsUsed),
		StreakDays:     streakDays(e.sessionStartsLocked(), now),
	}
}

// gatesLocked builds the level manager's view of the user. Required
// actions are checked against lifetime metrics.
func (e *Engine) gatesLocked(now time.Time) levels.Gates {
	s := e.stateLocked(now)
	return levels.Gates{
		Level:       s.Level,
		Available:   e.data.UserProfile.Energy.AvailableEnergy,
		Earned:      s.Earned,
		Metrics:     s.Metrics,
		SessionTime: e.sessionTimeLocked(now),
	}
}
