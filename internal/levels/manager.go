package levels

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/abhisek/levelup/internal/progress"
)

// Reasons a level-up or purchase is refused. They describe expected user
// flow and are meant for debug logging, not error reporting.
var (
	ErrNotNextLevel       = errors.New("level is not the next level")
	ErrUnknownLevel       = errors.New("level is not defined")
	ErrInsufficientEnergy = errors.New("insufficient energy")
	ErrMissingAchievement = errors.New("required achievement not earned")
	ErrActionThreshold    = errors.New("required action threshold not met")
	ErrSessionTime        = errors.New("minimum session time not met")
	ErrUnknownSkill       = errors.New("skill is not in the current level's tree")
	ErrSkillOwned         = errors.New("skill already purchased")
	ErrSkillPrerequisite  = errors.New("skill prerequisite not purchased")
)

// Manager evaluates level-up and skill purchase rules over a fixed set of
// level definitions.
type Manager struct {
	defs map[int]Definition
	max  int
}

// NewManager creates a Manager. Later definitions for the same level number
// replace earlier ones.
func NewManager(defs []Definition) *Manager {
	m := &Manager{defs: make(map[int]Definition, len(defs)), max: 1}
	for _, d := range defs {
		m.defs[d.LevelNumber] = d
		m.max = max(m.max, d.LevelNumber)
	}
	return m
}

// Definition returns the definition for level.
func (m *Manager) Definition(level int) (Definition, bool) {
	d, ok := m.defs[level]
	return d, ok
}

// MaxLevel is the highest defined level, or 1 when none are defined.
func (m *Manager) MaxLevel() int {
	return m.max
}

// Check reports every gate that blocks moving to target, joined. A nil
// result means the level-up is allowed.
func (m *Manager) Check(g Gates, target int) error {
	if target != g.Level+1 {
		return fmt.Errorf("level %d from %d: %w", target, g.Level, ErrNotNextLevel)
	}
	def, ok := m.defs[target]
	if !ok {
		return fmt.Errorf("level %d: %w", target, ErrUnknownLevel)
	}
	c := def.UnlockCriteria

	var errs []error
	if g.Available < c.RequiredEnergy {
		errs = append(errs, fmt.Errorf("need %.0f energy, have %.0f: %w", c.RequiredEnergy, g.Available, ErrInsufficientEnergy))
	}
	for _, id := range c.RequiredAchievements {
		if !g.Earned[id] {
			errs = append(errs, fmt.Errorf("%s: %w", id, ErrMissingAchievement))
		}
	}
	for _, a := range c.RequiredActions {
		if got := g.Metrics[a.Metric]; got < a.Threshold {
			errs = append(errs, fmt.Errorf("%s %.0f/%.0f: %w", a.Metric, got, a.Threshold, ErrActionThreshold))
		}
	}
	if c.MinimumSessionTime > 0 && g.SessionTime < c.MinimumSessionTime {
		errs = append(errs, fmt.Errorf("%.0fs/%.0fs: %w", g.SessionTime, c.MinimumSessionTime, ErrSessionTime))
	}
	if g.Available < c.LevelUpCost && g.Available >= c.RequiredEnergy {
		errs = append(errs, fmt.Errorf("level-up costs %.0f, have %.0f: %w", c.LevelUpCost, g.Available, ErrInsufficientEnergy))
	}
	return errors.Join(errs...)
}

// LevelUp moves p to target after Check passes: it spends the level-up
// cost, sets the level and unlocks the level's features. It returns the
// features that were not unlocked before.
func (m *Manager) LevelUp(p *progress.UserProfile, g Gates, target int, now time.Time) ([]string, error) {
	if err := m.Check(g, target); err != nil {
		return nil, err
	}
	def := m.defs[target]
	if !Spend(&p.Energy, def.UnlockCriteria.LevelUpCost, fmt.Sprintf("level %d", target), now) {
		return nil, fmt.Errorf("level-up cost: %w", ErrInsufficientEnergy)
	}
	p.CurrentLevel = target
	return unlock(p, def.UnlockedFeatures), nil
}

// Promote advances p by exactly one level without any cost or gate. It is
// the path for experience-driven levels. Levels without a definition
// unlock nothing.
func (m *Manager) Promote(p *progress.UserProfile) []string {
	p.CurrentLevel++
	def, ok := m.defs[p.CurrentLevel]
	if !ok {
		return nil
	}
	return unlock(p, def.UnlockedFeatures)
}

// PurchaseSkill buys nodeID from the current level's skill tree. It returns
// the features newly unlocked by the node.
func (m *Manager) PurchaseSkill(p *progress.UserProfile, nodeID string, now time.Time) ([]string, error) {
	node, ok := m.node(p.CurrentLevel, nodeID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", nodeID, ErrUnknownSkill)
	}
	if slices.Contains(p.PurchasedSkills, nodeID) {
		return nil, fmt.Errorf("%s: %w", nodeID, ErrSkillOwned)
	}
	for _, pre := range node.Prerequisites {
		if !slices.Contains(p.PurchasedSkills, pre) {
			return nil, fmt.Errorf("%s needs %s: %w", nodeID, pre, ErrSkillPrerequisite)
		}
	}
	if !Spend(&p.Energy, node.Cost, "skill "+nodeID, now) {
		return nil, fmt.Errorf("%s costs %.0f: %w", nodeID, node.Cost, ErrInsufficientEnergy)
	}
	p.PurchasedSkills = append(p.PurchasedSkills, nodeID)
	return unlock(p, node.Features), nil
}

func (m *Manager) node(level int, id string) (SkillNode, bool) {
	def, ok := m.defs[level]
	if !ok {
		return SkillNode{}, false
	}
	for _, n := range def.SkillTreeNodes {
		if n.ID == id {
			return n, true
		}
	}
	return SkillNode{}, false
}

func unlock(p *progress.UserProfile, features []string) []string {
	var added []string
	for _, f := range features {
		if slices.Contains(p.UnlockedFeatures, f) {
			continue
		}
		p.UnlockedFeatures = append(p.UnlockedFeatures, f)
		added = append(added, f)
	}
	return added
}

// Report summarizes the path to the next level for display.
type Report struct {
	Current       int
	Next          int // 0 when at the highest defined level
	Name          string
	EnergyPercent float64
	Eligible      bool
	Blockers      []string
}

// Progress builds a Report for g.
func (m *Manager) Progress(g Gates) Report {
	r := Report{Current: g.Level}
	def, ok := m.defs[g.Level+1]
	if !ok {
		return r
	}
	r.Next = def.LevelNumber
	r.Name = def.Name
	need := max(def.UnlockCriteria.RequiredEnergy, def.UnlockCriteria.LevelUpCost)
	if need <= 0 {
		r.EnergyPercent = 100
	} else {
		r.EnergyPercent = min(100, g.Available/need*100)
	}
	err := m.Check(g, r.Next)
	r.Eligible = err == nil
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			r.Blockers = append(r.Blockers, e.Error())
		}
	}
	return r
}
