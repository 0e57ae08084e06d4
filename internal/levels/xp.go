package levels

// XPRule maps experience points to a level: floor(xp/PerLevel)+1, capped.
type XPRule struct {
	PerLevel int
	Cap      int
}

// DefaultXPRule is 100 XP per level, capped at level 5.
var DefaultXPRule = XPRule{PerLevel: 100, Cap: 5}

// LevelFor returns the level that xp earns under r.
func (r XPRule) LevelFor(xp int) int {
	if r.PerLevel <= 0 || xp < 0 {
		return 1
	}
	level := xp/r.PerLevel + 1
	if r.Cap > 0 {
		level = min(level, r.Cap)
	}
	return level
}
