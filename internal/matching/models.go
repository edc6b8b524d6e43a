// internal/matching/models.go

package matching

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roomatch/roomatch-backend/internal/profile"
)

// Compatibility level labels derived from the overall score
const (
	LevelExcellent = "Excellent"
	LevelVeryGood  = "Very Good"
	LevelGood      = "Good"
	LevelFair      = "Fair"
	LevelModerate  = "Moderate"
	LevelLow       = "Low"
)

// Interaction types recorded against recommendations and profiles
const (
	InteractionViewProfile           = "view_profile"
	InteractionSendMessage           = "send_message"
	InteractionLikeProfile           = "like_profile"
	InteractionDismissRecommendation = "dismiss_recommendation"
	InteractionReportUser            = "report_user"
	InteractionBlockUser             = "block_user"
)

// Activity types emitted by the engine
const (
	ActivityScoreCalculated        = "score_calculated"
	ActivityRecommendationsRefresh = "recommendations_refresh"
	ActivityBatchRefresh           = "batch_refresh"
)

// DimensionScore is one dimension's contribution to the overall score
type DimensionScore struct {
	Score         float64 `json:"score"`
	Weight        float64 `json:"weight"`
	WeightedScore float64 `json:"weighted_score"`
}

// ScoreBreakdown explains how an overall score was computed. It is persisted
// as JSONB alongside the score so the explanation survives recalculation of
// its inputs.
type ScoreBreakdown struct {
	Budget             DimensionScore `json:"budget"`
	Location           DimensionScore `json:"location"`
	Lifestyle          DimensionScore `json:"lifestyle"`
	Schedule           DimensionScore `json:"schedule"`
	Habits             DimensionScore `json:"habits"`
	DealBreakerPenalty float64        `json:"deal_breaker_penalty"`
	CalculationTime    time.Time      `json:"calculation_time"`
}

// Scan implements the sql.Scanner interface for ScoreBreakdown
func (b *ScoreBreakdown) Scan(value interface{}) error {
	if value == nil {
		*b = ScoreBreakdown{}
		return nil
	}
	if bytes, ok := value.([]byte); ok {
		return json.Unmarshal(bytes, b)
	}
	return nil
}

// Value implements the driver.Valuer interface for ScoreBreakdown
func (b ScoreBreakdown) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// CompatibilityScore is the stored score for one unordered pair of users.
// User1ID is always the smaller id; the pair is unique regardless of which
// user asked for the score.
type CompatibilityScore struct {
	ID           int64          `json:"id" db:"id"`
	User1ID      int64          `json:"user1_id" db:"user1_id"`
	User2ID      int64          `json:"user2_id" db:"user2_id"`
	OverallScore float64        `json:"overall_score" db:"overall_score"`

	BudgetScore    float64 `json:"budget_score" db:"budget_score"`
	LocationScore  float64 `json:"location_score" db:"location_score"`
	LifestyleScore float64 `json:"lifestyle_score" db:"lifestyle_score"`
	ScheduleScore  float64 `json:"schedule_score" db:"schedule_score"`
	HabitsScore    float64 `json:"habits_score" db:"habits_score"`

	Breakdown ScoreBreakdown `json:"breakdown" db:"breakdown"`
	IsActive  bool           `json:"is_active" db:"is_active"`

	CalculatedAt time.Time `json:"calculated_at" db:"calculated_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Level maps the overall score onto a human-readable compatibility band
func (s *CompatibilityScore) Level() string {
	return LevelForScore(s.OverallScore)
}

// LevelForScore maps a 0-100 score onto a compatibility band
func LevelForScore(score float64) string {
	switch {
	case score >= 90:
		return LevelExcellent
	case score >= 80:
		return LevelVeryGood
	case score >= 70:
		return LevelGood
	case score >= 60:
		return LevelFair
	case score >= 50:
		return LevelModerate
	default:
		return LevelLow
	}
}

// CanonicalPair orders two user ids so the smaller one comes first.
// Every score read and write goes through this so a pair has one row.
func CanonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// Recommendation is one entry on a user's recommendation list. Lifecycle
// flags are monotonic: once viewed, contacted or dismissed, the flag and its
// timestamp persist across refreshes.
type Recommendation struct {
	ID                int64      `json:"id" db:"id"`
	UserID            int64      `json:"user_id" db:"user_id"`
	RecommendedUserID int64      `json:"recommended_user_id" db:"recommended_user_id"`
	Score             float64    `json:"score" db:"score"`
	Reason            string     `json:"reason" db:"reason"`
	Highlights        Highlights `json:"highlights" db:"highlights"`

	Viewed      bool       `json:"viewed" db:"viewed"`
	ViewedAt    *time.Time `json:"viewed_at,omitempty" db:"viewed_at"`
	Contacted   bool       `json:"contacted" db:"contacted"`
	ContactedAt *time.Time `json:"contacted_at,omitempty" db:"contacted_at"`
	Dismissed   bool       `json:"dismissed" db:"dismissed"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty" db:"dismissed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Populated for API responses, not stored on the row
	RecommendedUser *profile.UserInfo `json:"recommended_user,omitempty" db:"-"`
	Level           string            `json:"compatibility_level,omitempty" db:"-"`
}

// Highlights stores a JSON string array of match highlight tags
type Highlights []string

// Scan implements the sql.Scanner interface for Highlights
func (h *Highlights) Scan(value interface{}) error {
	if value == nil {
		*h = nil
		return nil
	}
	if bytes, ok := value.([]byte); ok {
		return json.Unmarshal(bytes, h)
	}
	return nil
}

// Value implements the driver.Valuer interface for Highlights
func (h Highlights) Value() (driver.Value, error) {
	if h == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(h))
}

// UserInteraction is one append-only interaction event between two users.
// ScoreAtTime snapshots the pair's compatibility at the moment of the
// interaction so later recalculations do not rewrite history.
type UserInteraction struct {
	ID             string   `json:"id" db:"id"`
	UserID         int64    `json:"user_id" db:"user_id"`
	TargetUserID   int64    `json:"target_user_id" db:"target_user_id"`
	Type           string   `json:"interaction_type" db:"interaction_type"`
	WasRecommended bool     `json:"was_recommended" db:"was_recommended"`
	ScoreAtTime    *float64 `json:"score_at_time,omitempty" db:"score_at_time"`
	Metadata       Metadata `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ValidInteractionType reports whether t is a known interaction type
func ValidInteractionType(t string) bool {
	switch t {
	case InteractionViewProfile, InteractionSendMessage, InteractionLikeProfile,
		InteractionDismissRecommendation, InteractionReportUser, InteractionBlockUser:
		return true
	}
	return false
}

// Metadata stores free-form JSON attached to an interaction or activity
type Metadata map[string]interface{}

// Scan implements the sql.Scanner interface for Metadata
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	if bytes, ok := value.([]byte); ok {
		return json.Unmarshal(bytes, m)
	}
	return nil
}

// Value implements the driver.Valuer interface for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(map[string]interface{}(m))
}

// MatchingActivity is a telemetry row wrapping one calculator or generator
// invocation. Rows are written for both successes and failures and are never
// read back by the engine itself. A UserID of 0 marks a batch-level row
// belonging to no single user and is stored as NULL.
type MatchingActivity struct {
	ID                       int64     `json:"id" db:"id"`
	UserID                   int64     `json:"user_id,omitempty" db:"user_id"`
	Type                     string    `json:"activity_type" db:"activity_type"`
	Success                  bool      `json:"success" db:"success"`
	ErrorMessage             string    `json:"error_message,omitempty" db:"error_message"`
	DurationMS               int64     `json:"duration_ms" db:"duration_ms"`
	ScoresCalculated         int       `json:"scores_calculated" db:"scores_calculated"`
	RecommendationsGenerated int       `json:"recommendations_generated" db:"recommendations_generated"`
	Details                  Metadata  `json:"details,omitempty" db:"details"`
	CreatedAt                time.Time `json:"created_at" db:"created_at"`
}

// Stats summarizes a user's matching state for the stats endpoint
type Stats struct {
	TotalRecommendations  int        `json:"total_recommendations"`
	ActiveRecommendations int        `json:"active_recommendations"`
	ViewedCount           int        `json:"viewed_count"`
	ContactedCount        int        `json:"contacted_count"`
	DismissedCount        int        `json:"dismissed_count"`
	AverageScore          float64    `json:"average_score"`
	BestScore             float64    `json:"best_score"`
	InteractionCount      int        `json:"interaction_count"`
	LastRefreshAt         *time.Time `json:"last_refresh_at,omitempty"`
}

func (s *CompatibilityScore) String() string {
	return fmt.Sprintf("pair(%d,%d)=%.1f", s.User1ID, s.User2ID, s.OverallScore)
}
