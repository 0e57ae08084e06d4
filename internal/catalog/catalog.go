// Package catalog loads the static achievement, level and tutorial
// definitions the engine evaluates against.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/levelup/internal/achievements"
	"github.com/abhisek/levelup/internal/levels"
	"github.com/abhisek/levelup/internal/tutorial"
)

//go:embed default.yaml
var defaultYAML []byte

// Catalog is the full set of static definitions.
type Catalog struct {
	Achievements []achievements.Definition `yaml:"achievements"`
	Levels       []levels.Definition       `yaml:"levels"`
	Tutorials    []tutorial.Definition     `yaml:"tutorials"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path returns the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML catalog. Unknown fields are rejected so typos in
// criteria do not silently disable a gate.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &c, nil
}

// Validate checks cross references and value ranges. Problems that make a
// definition unusable are returned joined as the error; suspicious but
// evaluable definitions, such as an unknown metric name, are returned as
// warnings.
func (c *Catalog) Validate() (warnings []string, err error) {
	var errs []error

	achIDs := make(map[string]bool, len(c.Achievements))
	for _, a := range c.Achievements {
		switch {
		case a.ID == "":
			errs = append(errs, errors.New("achievement with empty id"))
			continue
		case achIDs[a.ID]:
			errs = append(errs, fmt.Errorf("duplicate achievement %q", a.ID))
		}
		achIDs[a.ID] = true
	}
	for _, a := range c.Achievements {
		if a.ID == "" {
			continue
		}
		if a.EnergyReward < 0 {
			errs = append(errs, fmt.Errorf("achievement %q: negative energy reward", a.ID))
		}
		if a.UnlockCriteria.TargetValue < 0 {
			errs = append(errs, fmt.Errorf("achievement %q: negative target value", a.ID))
		}
		for _, pre := range a.Prerequisites {
			if !achIDs[pre] {
				errs = append(errs, fmt.Errorf("achievement %q: unknown prerequisite %q", a.ID, pre))
			}
		}
		if !achievements.KnownMetric(a.UnlockCriteria.MetricType) {
			warnings = append(warnings, fmt.Sprintf("achievement %q: unknown metric %q evaluates to 0", a.ID, a.UnlockCriteria.MetricType))
		}
		switch a.UnlockCriteria.Timeframe {
		case "", achievements.TimeframeLifetime, achievements.TimeframeSession:
		default:
			warnings = append(warnings, fmt.Sprintf("achievement %q: unknown timeframe %q treated as lifetime", a.ID, a.UnlockCriteria.Timeframe))
		}
		if a.Rarity != "" && !a.Rarity.Valid() {
			warnings = append(warnings, fmt.Sprintf("achievement %q: unknown rarity %q", a.ID, a.Rarity))
		}
		for _, cond := range a.UnlockCriteria.Conditions {
			if !cond.Type.Known() {
				warnings = append(warnings, fmt.Sprintf("achievement %q: unknown condition %q never holds", a.ID, cond.Type))
			}
		}
	}

	seenLevels := make(map[int]bool, len(c.Levels))
	for _, l := range c.Levels {
		if l.LevelNumber < 2 {
			errs = append(errs, fmt.Errorf("level %d: levels start at 2", l.LevelNumber))
			continue
		}
		if seenLevels[l.LevelNumber] {
			errs = append(errs, fmt.Errorf("duplicate level %d", l.LevelNumber))
		}
		seenLevels[l.LevelNumber] = true

		cr := l.UnlockCriteria
		if cr.RequiredEnergy < 0 || cr.LevelUpCost < 0 || cr.MinimumSessionTime < 0 {
			errs = append(errs, fmt.Errorf("level %d: negative criteria", l.LevelNumber))
		}
		for _, id := range cr.RequiredAchievements {
			if !achIDs[id] {
				errs = append(errs, fmt.Errorf("level %d: unknown required achievement %q", l.LevelNumber, id))
			}
		}
		for _, act := range cr.RequiredActions {
			if !achievements.KnownMetric(act.Metric) {
				warnings = append(warnings, fmt.Sprintf("level %d: unknown action metric %q evaluates to 0", l.LevelNumber, act.Metric))
			}
		}

		nodes := make(map[string]bool, len(l.SkillTreeNodes))
		for _, n := range l.SkillTreeNodes {
			if n.ID == "" || nodes[n.ID] {
				errs = append(errs, fmt.Errorf("level %d: empty or duplicate skill node %q", l.LevelNumber, n.ID))
			}
			if n.Cost < 0 {
				errs = append(errs, fmt.Errorf("level %d: skill %q has negative cost", l.LevelNumber, n.ID))
			}
			nodes[n.ID] = true
		}
		for _, n := range l.SkillTreeNodes {
			for _, pre := range n.Prerequisites {
				if !nodes[pre] {
					errs = append(errs, fmt.Errorf("level %d: skill %q needs %q outside its tree", l.LevelNumber, n.ID, pre))
				}
			}
		}
	}

	tutIDs := make(map[string]bool, len(c.Tutorials))
	for _, t := range c.Tutorials {
		if t.ID == "" || tutIDs[t.ID] {
			errs = append(errs, fmt.Errorf("empty or duplicate tutorial %q", t.ID))
		}
		tutIDs[t.ID] = true
		steps := make(map[string]bool, len(t.Steps))
		for _, s := range t.Steps {
			if s.ID == "" || steps[s.ID] {
				errs = append(errs, fmt.Errorf("tutorial %q: empty or duplicate step %q", t.ID, s.ID))
			}
			steps[s.ID] = true
		}
	}

	return warnings, errors.Join(errs...)
}
