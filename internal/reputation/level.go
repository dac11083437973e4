package reputation

// Level is the banded classification derived from a trust score.
type Level string

const (
	LevelNew      Level = "new"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very_high"
)

// AllLevels lists every level in ascending band order. Statistics must
// enumerate all of them even when every bucket is empty.
var AllLevels = []Level{LevelNew, LevelLow, LevelMedium, LevelHigh, LevelVeryHigh}

// Band thresholds. New is the band around the base score: a user who has
// not yet earned or lost trust sits at 50.0 and classifies as new.
const (
	lowBelow      = 45.0
	mediumAtLeast = 55.0
	highAtLeast   = 70.0
	veryHighFloor = 85.0
)

// LevelForScore maps a trust score to its band. The level is always
// derived, never stored independently of the score.
func LevelForScore(score float64) Level {
	switch {
	case score >= veryHighFloor:
		return LevelVeryHigh
	case score >= highAtLeast:
		return LevelHigh
	case score >= mediumAtLeast:
		return LevelMedium
	case score >= lowBelow:
		return LevelNew
	default:
		return LevelLow
	}
}
