package achievements

import (
	"cmp"
	"slices"
)

// Evaluator decides which achievements a user is eligible for.
type Evaluator struct {
	defs []Definition
	byID map[string]int
}

// NewEvaluator creates an Evaluator over defs. Definition order is the
// evaluation order within a pass.
func NewEvaluator(defs []Definition) *Evaluator {
	e := &Evaluator{
		defs: slices.Clone(defs),
		byID: make(map[string]int, len(defs)),
	}
	for i, d := range e.defs {
		e.byID[d.ID] = i
	}
	return e
}

// Definitions returns a copy of all definitions in evaluation order.
func (e *Evaluator) Definitions() []Definition {
	return slices.Clone(e.defs)
}

// Definition looks up a definition by id.
func (e *Evaluator) Definition(id string) (Definition, bool) {
	i, ok := e.byID[id]
	if !ok {
		return Definition{}, false
	}
	return e.defs[i], true
}

// CurrentValue resolves def's metric against s. Unknown metric types
// resolve to 0.
func CurrentValue(def Definition, s State) float64 {
	metrics := s.Metrics
	if def.UnlockCriteria.Timeframe == TimeframeSession {
		metrics = s.SessionMetrics
	}
	return metrics[def.UnlockCriteria.MetricType] // nil map reads as 0
}

// Progress returns the display percentage toward def's target, in [0, 100].
// It ignores level, prerequisite and condition gates.
func Progress(def Definition, s State) float64 {
	target := def.UnlockCriteria.TargetValue
	if target <= 0 {
		return 100
	}
	pct := CurrentValue(def, s) / target * 100
	return min(max(pct, 0), 100)
}

// Eligible reports whether def can be unlocked now. An already earned
// achievement is never eligible.
func Eligible(def Definition, s State) bool {
	if s.Earned[def.ID] {
		return false
	}
	if s.Level < def.LevelRequirement {
		return false
	}
	for _, pre := range def.Prerequisites {
		if !s.Earned[pre] {
			return false
		}
	}
	for _, c := range def.UnlockCriteria.Conditions {
		if !conditionMet(c, s) {
			return false
		}
	}
	if def.UnlockCriteria.StreakRequired > 0 && s.StreakDays < def.UnlockCriteria.StreakRequired {
		return false
	}
	return CurrentValue(def, s) >= def.UnlockCriteria.TargetValue
}

// Evaluate returns the achievements that become eligible given s, in
// unlock order. Each one is added to s.Earned before the next check, and
// passes repeat until nothing new unlocks, so a chain of prerequisites
// unlocks in a single call.
func (e *Evaluator) Evaluate(s *State) []Definition {
	if s.Earned == nil {
		s.Earned = make(map[string]bool)
	}
	var unlocked []Definition
	for {
		progressed := false
		for _, def := range e.defs {
			if !Eligible(def, *s) {
				continue
			}
			s.Earned[def.ID] = true
			unlocked = append(unlocked, def)
			progressed = true
		}
		if !progressed {
			return unlocked
		}
	}
}

// Status is a display row for one achievement.
type Status struct {
	Definition Definition
	Earned     bool
	Progress   float64
}

// Visible lists achievements for display: secret ones are hidden until
// earned. Earned first, then by rarity, then by id.
func (e *Evaluator) Visible(s State) []Status {
	var out []Status
	for _, def := range e.defs {
		earned := s.Earned[def.ID]
		if def.IsSecret && !earned {
			continue
		}
		out = append(out, Status{Definition: def, Earned: earned, Progress: Progress(def, s)})
	}
	slices.SortStableFunc(out, func(a, b Status) int {
		if a.Earned != b.Earned {
			if a.Earned {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.Definition.Rarity.Rank(), b.Definition.Rarity.Rank()); c != 0 {
			return c
		}
		return cmp.Compare(a.Definition.ID, b.Definition.ID)
	})
	return out
}
