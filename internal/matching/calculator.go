// internal/matching/calculator.go

package matching

import (
	"math"
	"strings"
	"time"

	"github.com/roomatch/roomatch-backend/internal/profile"
)

// Default dimension weights used when neither user has matching criteria
var defaultWeights = Weights{
	Budget:    0.25,
	Location:  0.20,
	Lifestyle: 0.20,
	Schedule:  0.15,
	Habits:    0.20,
}

// Weights holds the normalized per-dimension weights for one calculation.
// They always sum to 1.
type Weights struct {
	Budget    float64
	Location  float64
	Lifestyle float64
	Schedule  float64
	Habits    float64
}

// CalculationInput bundles everything the calculator needs for one pair.
// Either criteria may be nil, meaning that user never saved any.
type CalculationInput struct {
	ProfileA  *profile.UserProfile
	ProfileB  *profile.UserProfile
	CriteriaA *profile.MatchingCriteria
	CriteriaB *profile.MatchingCriteria
	Now       time.Time
}

// Result holds the computed score and its full breakdown
type Result struct {
	OverallScore   float64
	BudgetScore    float64
	LocationScore  float64
	LifestyleScore float64
	ScheduleScore  float64
	HabitsScore    float64
	Breakdown      ScoreBreakdown
}

// Calculator computes pairwise compatibility scores. All methods are pure:
// the same inputs always produce the same result and nothing is read from or
// written to storage.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate scores the compatibility between two users on a 0-100 scale.
// The result is symmetric: swapping A and B produces the same score.
func (c *Calculator) Calculate(in CalculationInput) Result {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	budget := c.budgetScore(in.ProfileA, in.ProfileB)
	location := c.locationScore(in.ProfileA, in.ProfileB)
	lifestyle := c.lifestyleScore(in.ProfileA, in.ProfileB)
	schedule := c.scheduleScore(in.ProfileA, in.ProfileB)
	habits := c.habitsScore(in.ProfileA, in.ProfileB)

	weights := c.weights(in.CriteriaA, in.CriteriaB)

	weighted := budget*weights.Budget +
		location*weights.Location +
		lifestyle*weights.Lifestyle +
		schedule*weights.Schedule +
		habits*weights.Habits

	penalty := c.dealBreakerPenalty(in.ProfileA, in.ProfileB, in.CriteriaA, now) +
		c.dealBreakerPenalty(in.ProfileB, in.ProfileA, in.CriteriaB, now)
	if penalty > 100 {
		penalty = 100
	}

	overall := clamp(weighted-penalty, 0, 100)

	return Result{
		OverallScore:   round1(overall),
		BudgetScore:    round1(budget),
		LocationScore:  round1(location),
		LifestyleScore: round1(lifestyle),
		ScheduleScore:  round1(schedule),
		HabitsScore:    round1(habits),
		Breakdown: ScoreBreakdown{
			Budget:             DimensionScore{Score: round1(budget), Weight: weights.Budget, WeightedScore: round1(budget * weights.Budget)},
			Location:           DimensionScore{Score: round1(location), Weight: weights.Location, WeightedScore: round1(location * weights.Location)},
			Lifestyle:          DimensionScore{Score: round1(lifestyle), Weight: weights.Lifestyle, WeightedScore: round1(lifestyle * weights.Lifestyle)},
			Schedule:           DimensionScore{Score: round1(schedule), Weight: weights.Schedule, WeightedScore: round1(schedule * weights.Schedule)},
			Habits:             DimensionScore{Score: round1(habits), Weight: weights.Habits, WeightedScore: round1(habits * weights.Habits)},
			DealBreakerPenalty: penalty,
			CalculationTime:    now,
		},
	}
}

// budgetScore measures overlap between the two budget ranges. A missing
// bound on either side yields a neutral 50.
func (c *Calculator) budgetScore(a, b *profile.UserProfile) float64 {
	if a.MinBudget == nil || a.MaxBudget == nil || b.MinBudget == nil || b.MaxBudget == nil {
		return 50
	}

	overlap := math.Min(*a.MaxBudget, *b.MaxBudget) - math.Max(*a.MinBudget, *b.MinBudget)
	if overlap <= 0 {
		return 0
	}

	rangeA := *a.MaxBudget - *a.MinBudget
	rangeB := *b.MaxBudget - *b.MinBudget
	avgRange := (rangeA + rangeB) / 2
	if avgRange <= 0 {
		return 100
	}

	return math.Min(100, overlap/avgRange*100)
}

// locationScore rewards shared preferred locations. Comparison is
// case-insensitive.
func (c *Calculator) locationScore(a, b *profile.UserProfile) float64 {
	if len(a.PreferredLocations) == 0 || len(b.PreferredLocations) == 0 {
		return 60
	}

	setA := make(map[string]struct{}, len(a.PreferredLocations))
	for _, loc := range a.PreferredLocations {
		setA[strings.ToLower(strings.TrimSpace(loc))] = struct{}{}
	}

	shared := 0
	seen := make(map[string]struct{})
	for _, loc := range b.PreferredLocations {
		key := strings.ToLower(strings.TrimSpace(loc))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := setA[key]; ok {
			shared++
		}
	}

	if shared == 0 {
		return 30
	}

	larger := len(setA)
	if len(seen) > larger {
		larger = len(seen)
	}
	return math.Min(100, float64(shared)/float64(larger)*100+50)
}

// lifestyleScore averages the sub-factors both users answered. With no
// shared answers it falls back to a neutral 50.
func (c *Calculator) lifestyleScore(a, b *profile.UserProfile) float64 {
	var scores []float64

	if a.SocialLevel != nil && b.SocialLevel != nil {
		diff := math.Abs(float64(*a.SocialLevel - *b.SocialLevel))
		scores = append(scores, math.Max(0, 100-15*diff))
	}

	if a.Smoker != "" && b.Smoker != "" {
		scores = append(scores, smokingScore(a.Smoker, b.Smoker))
	}

	if a.Drinking != "" && b.Drinking != "" {
		scores = append(scores, drinkingScore(a.Drinking, b.Drinking))
	}

	if a.Pets != "" && b.Pets != "" {
		scores = append(scores, petScore(a.Pets, b.Pets))
	}

	if len(scores) == 0 {
		return 50
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func smokingScore(a, b string) float64 {
	if a == b {
		return 100
	}
	if (a == profile.SmokerNo && b == profile.SmokerYes) || (a == profile.SmokerYes && b == profile.SmokerNo) {
		return 20
	}
	return 70
}

func drinkingScore(a, b string) float64 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	switch [2]string{lo, hi} {
	case [2]string{profile.DrinkingNo, profile.DrinkingNo}:
		return 100
	case [2]string{profile.DrinkingNo, profile.DrinkingSocial}:
		return 80
	case [2]string{profile.DrinkingNo, profile.DrinkingRegular}:
		return 40
	case [2]string{profile.DrinkingSocial, profile.DrinkingSocial}:
		return 100
	case [2]string{profile.DrinkingRegular, profile.DrinkingSocial}:
		return 85
	case [2]string{profile.DrinkingRegular, profile.DrinkingRegular}:
		return 100
	}
	return 70
}

func petScore(a, b string) float64 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	switch [2]string{lo, hi} {
	case [2]string{profile.PetsNo, profile.PetsNo}:
		return 100
	case [2]string{profile.PetsNo, profile.PetsYes}:
		return 30
	case [2]string{profile.PetsYes, profile.PetsYes}:
		return 90
	}
	return 70
}

// scheduleScore compares daily rhythms, with a small bonus when both users'
// work-from-home arrangements match.
func (c *Calculator) scheduleScore(a, b *profile.UserProfile) float64 {
	if a.ScheduleType == "" || b.ScheduleType == "" {
		return 50
	}

	score := scheduleTypeScore(a.ScheduleType, b.ScheduleType)
	if a.WorksFromHome == b.WorksFromHome {
		score = math.Min(100, score+10)
	}
	return score
}

func scheduleTypeScore(a, b string) float64 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	switch [2]string{lo, hi} {
	case [2]string{profile.ScheduleEarlyBird, profile.ScheduleEarlyBird}:
		return 100
	case [2]string{profile.ScheduleEarlyBird, profile.ScheduleRegular}:
		return 80
	case [2]string{profile.ScheduleEarlyBird, profile.ScheduleNightOwl}:
		return 40
	case [2]string{profile.ScheduleRegular, profile.ScheduleRegular}:
		return 100
	case [2]string{profile.ScheduleNightOwl, profile.ScheduleRegular}:
		return 75
	case [2]string{profile.ScheduleNightOwl, profile.ScheduleNightOwl}:
		return 100
	}
	return 70
}

// habitsScore averages cleanliness and noise-tolerance proximity. Each term
// that cannot be computed contributes a neutral 50.
func (c *Calculator) habitsScore(a, b *profile.UserProfile) float64 {
	if a.CleanlinessLevel == nil || b.CleanlinessLevel == nil {
		return 50
	}

	cleanDiff := math.Abs(float64(*a.CleanlinessLevel - *b.CleanlinessLevel))
	clean := math.Max(0, 100-12*cleanDiff)

	noise := 50.0
	if a.NoiseTolerance != nil && b.NoiseTolerance != nil {
		noiseDiff := math.Abs(float64(*a.NoiseTolerance - *b.NoiseTolerance))
		noise = math.Max(0, 100-12*noiseDiff)
	}

	return (clean + noise) / 2
}

// weights resolves the dimension weights for a pair. If either user saved
// criteria, the per-dimension importances are averaged (a missing side
// contributes the default importance of 3) and normalized to sum to 1.
func (c *Calculator) weights(critA, critB *profile.MatchingCriteria) Weights {
	if critA == nil && critB == nil {
		return defaultWeights
	}

	imp := func(pick func(*profile.MatchingCriteria) int) float64 {
		a, b := 3.0, 3.0
		if critA != nil {
			a = float64(pick(critA))
		}
		if critB != nil {
			b = float64(pick(critB))
		}
		return (a + b) / 2
	}

	budget := imp(func(m *profile.MatchingCriteria) int { return m.BudgetImportance })
	location := imp(func(m *profile.MatchingCriteria) int { return m.LocationImportance })
	lifestyle := imp(func(m *profile.MatchingCriteria) int { return m.LifestyleImportance })
	schedule := imp(func(m *profile.MatchingCriteria) int { return m.ScheduleImportance })
	habits := imp(func(m *profile.MatchingCriteria) int { return m.HabitsImportance })

	total := budget + location + lifestyle + schedule + habits
	if total <= 0 {
		return defaultWeights
	}

	return Weights{
		Budget:    budget / total,
		Location:  location / total,
		Lifestyle: lifestyle / total,
		Schedule:  schedule / total,
		Habits:    habits / total,
	}
}

// dealBreakerPenalty sums the penalties one user's hard constraints impose
// on the other user's profile. The caller caps the combined total at 100.
func (c *Calculator) dealBreakerPenalty(self, other *profile.UserProfile, crit *profile.MatchingCriteria, now time.Time) float64 {
	if crit == nil {
		return 0
	}

	var penalty float64

	for _, db := range crit.DealBreakers {
		// a single tag can name several constraints ("smoking and pets")
		tag := strings.ToLower(db)
		if strings.Contains(tag, "smoking") && other.Smoker == profile.SmokerYes {
			penalty += 50
		}
		if strings.Contains(tag, "pets") && other.Pets == profile.PetsYes {
			penalty += 50
		}
		if strings.Contains(tag, "partying") && other.SocialLevel != nil && *other.SocialLevel >= 8 {
			penalty += 50
		}
		if strings.Contains(tag, "messy") && other.CleanlinessLevel != nil && *other.CleanlinessLevel <= 3 {
			penalty += 50
		}
	}

	if crit.StrictAgePreference && self.PreferredAgeMin != nil && self.PreferredAgeMax != nil {
		if age := other.Age(now); age != nil {
			if *age < *self.PreferredAgeMin || *age > *self.PreferredAgeMax {
				penalty += 30
			}
		}
	}

	if crit.StrictGenderPreference && self.PreferredGender != "" && self.PreferredGender != profile.GenderAny {
		if other.Gender != self.PreferredGender {
			penalty += 40
		}
	}

	return penalty
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
