package cmd

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/levelup/internal/achievements"
	"github.com/abhisek/levelup/internal/engine"
	"github.com/abhisek/levelup/internal/levels"
	"github.com/abhisek/levelup/internal/progress"
	"github.com/abhisek/levelup/internal/ui/components"
	"github.com/abhisek/levelup/internal/ui/theme"
)

const barWidth = 48

func renderUnlock(p engine.AchievementPayload) string {
	def := p.Definition
	badge := theme.RarityStyle(def.Rarity).Render(def.Rarity.Icon() + " " + def.Rarity.DisplayName())
	line := fmt.Sprintf("%s %s  %s", theme.Earned.Render("Achievement unlocked:"), theme.Body.Render(def.Name), badge)
	if def.EnergyReward > 0 {
		line += "  " + theme.EnergyValue.Render(fmt.Sprintf("+%.0f EU", def.EnergyReward))
	}
	return line
}

func renderLevelUp(p engine.LevelUpPayload) string {
	line := theme.Title.Render(fmt.Sprintf("Level up! %d → %d", p.From, p.To))
	switch {
	case p.ViaExperience:
		line += theme.Hint.Render("  (experience)")
	case p.Cost > 0:
		line += theme.Hint.Render(fmt.Sprintf("  (spent %.0f EU)", p.Cost))
	}
	return line
}

func renderFeature(p engine.FeaturePayload) string {
	return fmt.Sprintf("%s %s %s",
		theme.Earned.Render("Unlocked feature:"),
		theme.Body.Render(p.Feature),
		theme.Hint.Render("("+p.Source+")"))
}

func row(label, value string) string {
	return theme.Label.Render(label) + value
}

// renderStats builds the status card.
func renderStats(d progress.Data, report levels.Report, visible []achievements.Status) string {
	p := d.UserProfile
	var lines []string

	maxTag := ""
	if report.Next == 0 {
		maxTag = theme.Hint.Render("  (max)")
	}
	lines = append(lines,
		theme.Title.Render("levelup")+theme.Subtitle.Render("  "+d.UserID),
		"",
		row("Level", theme.Body.Render(fmt.Sprintf("%d", p.CurrentLevel))+maxTag),
		row("Experience", theme.Body.Render(fmt.Sprintf("%d XP", p.ExperiencePoints))),
		row("Energy", theme.EnergyValue.Render(fmt.Sprintf("%.0f", p.Energy.AvailableEnergy))+
			theme.Subtitle.Render(fmt.Sprintf(" / %.0f EU earned", p.Energy.TotalEnergy))),
	)

	if report.Next != 0 {
		bar := components.NewProgressBar("Next level", report.EnergyPercent, barWidth)
		bar.Fill = lipgloss.NewStyle().Foreground(theme.Energy)
		lines = append(lines, "", theme.Body.Render(fmt.Sprintf("Level %d: %s", report.Next, report.Name)), bar.View())
		if report.Eligible {
			lines = append(lines, theme.Earned.Render("Ready to level up"))
		}
		for _, b := range report.Blockers {
			lines = append(lines, theme.Warning.Render("  • "+b))
		}
	}

	earned := 0
	for _, s := range visible {
		if s.Earned {
			earned++
		}
	}
	lines = append(lines, "",
		row("Achievements", theme.Body.Render(fmt.Sprintf("%d earned", earned))+
			theme.Subtitle.Render(fmt.Sprintf(" of %d visible", len(visible)))),
		row("Features", theme.Body.Render(fmt.Sprintf("%d unlocked", len(p.UnlockedFeatures)))),
		row("Skills", theme.Body.Render(fmt.Sprintf("%d purchased", len(p.PurchasedSkills)))),
	)

	m := d.LearningMetrics
	lines = append(lines,
		row("Tutorials", theme.Body.Render(fmt.Sprintf("%d/%d completed", m.TotalTutorialsCompleted, m.TotalTutorialsStarted))),
		row("Session time", theme.Body.Render(formatSeconds(d.FeatureUsage.TotalSessionTime))),
	)

	return theme.Card.Render(strings.Join(lines, "\n"))
}

// renderAchievements lists achievements with a progress bar for the
// unearned ones.
func renderAchievements(visible []achievements.Status) string {
	var b strings.Builder
	for _, s := range visible {
		def := s.Definition
		name := theme.Locked.Render(def.Name)
		if s.Earned {
			name = theme.Earned.Render("✓ " + def.Name)
		}
		fmt.Fprintf(&b, "%s  %s\n", name, theme.RarityStyle(def.Rarity).Render(def.Rarity.DisplayName()))
		if def.Description != "" {
			b.WriteString(theme.Hint.Render("  "+def.Description) + "\n")
		}
		if !s.Earned {
			bar := components.NewProgressBar("", s.Progress, barWidth-14)
			b.WriteString("  " + bar.View() + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSeconds(s float64) string {
	total := int(s)
	h, m, sec := total/3600, total%3600/60, total%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, sec)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}
