// internal/matching/recommendations.go

package matching

import (
	"fmt"
	"sort"
)

// Highlight tags attached to recommendations
const (
	HighlightBudgetCompatible    = "budget_compatible"
	HighlightLocationMatch       = "location_match"
	HighlightLifestyleCompatible = "lifestyle_compatible"
	HighlightScheduleAligned     = "schedule_aligned"
	HighlightHabitsCompatible    = "habits_compatible"
	HighlightExcellentMatch      = "excellent_match"
	HighlightStrongMatch         = "strong_match"
)

// highlightThreshold is the per-dimension score above which a dimension is
// considered a match highlight and worth a reason sentence.
const highlightThreshold = 80

var dimensionReasons = map[string]string{
	"budget":    "You have very compatible budget ranges",
	"location":  "You both prefer similar locations",
	"lifestyle": "Your lifestyles are highly compatible",
	"schedule":  "Your schedules align well",
	"habits":    "You have similar cleanliness and living habits",
}

var dimensionHighlights = map[string]string{
	"budget":    HighlightBudgetCompatible,
	"location":  HighlightLocationMatch,
	"lifestyle": HighlightLifestyleCompatible,
	"schedule":  HighlightScheduleAligned,
	"habits":    HighlightHabitsCompatible,
}

type dimensionEntry struct {
	name  string
	score float64
}

func sortedDimensions(r Result) []dimensionEntry {
	dims := []dimensionEntry{
		{"budget", r.BudgetScore},
		{"location", r.LocationScore},
		{"lifestyle", r.LifestyleScore},
		{"schedule", r.ScheduleScore},
		{"habits", r.HabitsScore},
	}
	sort.SliceStable(dims, func(i, j int) bool {
		return dims[i].score > dims[j].score
	})
	return dims
}

// BuildReason produces the human-readable explanation shown next to a
// recommendation. The intro reflects the overall band and at most two of the
// strongest dimensions contribute a sentence.
func BuildReason(r Result) string {
	var intro string
	switch {
	case r.OverallScore >= 90:
		intro = "This is an excellent match! "
	case r.OverallScore >= 80:
		intro = "This looks like a great potential roommate. "
	case r.OverallScore >= 70:
		intro = "You have good compatibility. "
	default:
		intro = "There's moderate compatibility here. "
	}

	var reasons []string
	for _, dim := range sortedDimensions(r)[:3] {
		if dim.score >= highlightThreshold {
			reasons = append(reasons, dimensionReasons[dim.name])
		}
	}

	if len(reasons) == 0 {
		return intro + fmt.Sprintf("Overall compatibility score: %.0f%%.", r.OverallScore)
	}

	if len(reasons) > 2 {
		reasons = reasons[:2]
	}

	out := intro + reasons[0]
	if len(reasons) == 2 {
		out += ". " + reasons[1]
	}
	return out + "."
}

// BuildHighlights produces the machine-readable highlight tags for a
// recommendation: one per strong dimension plus an overall band tag.
func BuildHighlights(r Result) Highlights {
	var highlights Highlights

	dims := []dimensionEntry{
		{"budget", r.BudgetScore},
		{"location", r.LocationScore},
		{"lifestyle", r.LifestyleScore},
		{"schedule", r.ScheduleScore},
		{"habits", r.HabitsScore},
	}
	for _, dim := range dims {
		if dim.score >= highlightThreshold {
			highlights = append(highlights, dimensionHighlights[dim.name])
		}
	}

	switch {
	case r.OverallScore >= 90:
		highlights = append(highlights, HighlightExcellentMatch)
	case r.OverallScore >= 80:
		highlights = append(highlights, HighlightStrongMatch)
	}

	return highlights
}
