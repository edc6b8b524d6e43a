// internal/matching/repository.go

package matching

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrScoreNotFound = errors.New("compatibility score not found")
var ErrRecommendationNotFound = errors.New("recommendation not found")

// Repository persists scores, recommendations, interactions and telemetry
type Repository interface {
	// Scores
	UpsertScore(ctx context.Context, score *CompatibilityScore, activity *MatchingActivity) error
	GetScore(ctx context.Context, userA, userB int64) (*CompatibilityScore, error)

	// Recommendations
	UpsertRecommendation(ctx context.Context, rec *Recommendation) error
	GetRecommendation(ctx context.Context, id int64) (*Recommendation, error)
	ListActiveRecommendations(ctx context.Context, userID int64, limit int) ([]*Recommendation, error)
	MarkViewed(ctx context.Context, id, userID int64) error
	MarkContacted(ctx context.Context, id, userID int64) error
	MarkDismissed(ctx context.Context, id, userID int64) error

	// Interactions
	InsertInteraction(ctx context.Context, interaction *UserInteraction) error
	CountInteractions(ctx context.Context, userID int64) (int, error)

	// Telemetry
	InsertActivity(ctx context.Context, activity *MatchingActivity) error
	LastActivityAt(ctx context.Context, userID int64, activityType string) (*time.Time, error)

	// Stats
	GetStats(ctx context.Context, userID int64) (*Stats, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// UpsertScore writes a pair's score and, when an activity row is supplied,
// records it in the same transaction so the score and its telemetry cannot
// drift apart. The pair is canonicalized before writing.
func (r *repository) UpsertScore(ctx context.Context, score *CompatibilityScore, activity *MatchingActivity) error {
	score.User1ID, score.User2ID = CanonicalPair(score.User1ID, score.User2ID)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO compatibility_scores (
			user1_id, user2_id, overall_score,
			budget_score, location_score, lifestyle_score, schedule_score, habits_score,
			breakdown, is_active, calculated_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true, NOW(), NOW())
		ON CONFLICT (user1_id, user2_id)
		DO UPDATE SET
			overall_score = EXCLUDED.overall_score,
			budget_score = EXCLUDED.budget_score,
			location_score = EXCLUDED.location_score,
			lifestyle_score = EXCLUDED.lifestyle_score,
			schedule_score = EXCLUDED.schedule_score,
			habits_score = EXCLUDED.habits_score,
			breakdown = EXCLUDED.breakdown,
			is_active = true,
			calculated_at = NOW(),
			updated_at = NOW()
		RETURNING id, calculated_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		score.User1ID, score.User2ID, score.OverallScore,
		score.BudgetScore, score.LocationScore, score.LifestyleScore,
		score.ScheduleScore, score.HabitsScore, score.Breakdown,
	).Scan(&score.ID, &score.CalculatedAt, &score.UpdatedAt)
	if err == nil {
		score.IsActive = true
	}
	if err != nil {
		return fmt.Errorf("failed to upsert compatibility score: %w", err)
	}

	if activity != nil {
		if err := insertActivityTx(ctx, tx, activity); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit score transaction: %w", err)
	}
	return nil
}

func (r *repository) GetScore(ctx context.Context, userA, userB int64) (*CompatibilityScore, error) {
	u1, u2 := CanonicalPair(userA, userB)

	var score CompatibilityScore
	query := `
		SELECT id, user1_id, user2_id, overall_score,
		       budget_score, location_score, lifestyle_score, schedule_score, habits_score,
		       breakdown, is_active, calculated_at, updated_at
		FROM compatibility_scores
		WHERE user1_id = $1 AND user2_id = $2`

	err := r.db.GetContext(ctx, &score, query, u1, u2)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScoreNotFound
		}
		return nil, fmt.Errorf("failed to get compatibility score: %w", err)
	}
	return &score, nil
}

// UpsertRecommendation refreshes the score, reason and highlights of an
// existing recommendation while keeping its lifecycle flags. A user who
// dismissed someone stays dismissed across refreshes.
func (r *repository) UpsertRecommendation(ctx context.Context, rec *Recommendation) error {
	query := `
		INSERT INTO user_recommendations (
			user_id, recommended_user_id, score, reason, highlights,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (user_id, recommended_user_id)
		DO UPDATE SET
			score = EXCLUDED.score,
			reason = EXCLUDED.reason,
			highlights = EXCLUDED.highlights,
			updated_at = NOW()
		RETURNING id, viewed, viewed_at, contacted, contacted_at, dismissed, dismissed_at,
		          created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		rec.UserID, rec.RecommendedUserID, rec.Score, rec.Reason, rec.Highlights,
	).Scan(&rec.ID, &rec.Viewed, &rec.ViewedAt, &rec.Contacted, &rec.ContactedAt,
		&rec.Dismissed, &rec.DismissedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert recommendation: %w", err)
	}
	return nil
}

func (r *repository) GetRecommendation(ctx context.Context, id int64) (*Recommendation, error) {
	var rec Recommendation
	query := `
		SELECT id, user_id, recommended_user_id, score, reason, highlights,
		       viewed, viewed_at, contacted, contacted_at, dismissed, dismissed_at,
		       created_at, updated_at
		FROM user_recommendations
		WHERE id = $1`

	err := r.db.GetContext(ctx, &rec, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecommendationNotFound
		}
		return nil, fmt.Errorf("failed to get recommendation %d: %w", id, err)
	}
	return &rec, nil
}

// ListActiveRecommendations returns undismissed recommendations ordered by
// score descending, highest first.
func (r *repository) ListActiveRecommendations(ctx context.Context, userID int64, limit int) ([]*Recommendation, error) {
	var recs []*Recommendation
	query := `
		SELECT id, user_id, recommended_user_id, score, reason, highlights,
		       viewed, viewed_at, contacted, contacted_at, dismissed, dismissed_at,
		       created_at, updated_at
		FROM user_recommendations
		WHERE user_id = $1 AND dismissed = false
		ORDER BY score DESC, recommended_user_id ASC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &recs, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations for user %d: %w", userID, err)
	}
	return recs, nil
}

// MarkViewed sets the viewed flag once. The timestamp records the first
// view and later calls leave it untouched.
func (r *repository) MarkViewed(ctx context.Context, id, userID int64) error {
	return r.markFlag(ctx, id, userID, "viewed", "viewed_at")
}

func (r *repository) MarkContacted(ctx context.Context, id, userID int64) error {
	return r.markFlag(ctx, id, userID, "contacted", "contacted_at")
}

func (r *repository) MarkDismissed(ctx context.Context, id, userID int64) error {
	return r.markFlag(ctx, id, userID, "dismissed", "dismissed_at")
}

func (r *repository) markFlag(ctx context.Context, id, userID int64, flag, tsColumn string) error {
	// flag and tsColumn are fixed column names supplied by the mark methods
	query := fmt.Sprintf(`
		UPDATE user_recommendations
		SET %s = true,
		    %s = COALESCE(%s, NOW()),
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2`, flag, tsColumn, tsColumn)

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update recommendation %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrRecommendationNotFound
	}
	return nil
}

func (r *repository) InsertInteraction(ctx context.Context, interaction *UserInteraction) error {
	query := `
		INSERT INTO user_interactions (
			id, user_id, target_user_id, interaction_type, was_recommended,
			score_at_time, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		interaction.ID, interaction.UserID, interaction.TargetUserID,
		interaction.Type, interaction.WasRecommended,
		interaction.ScoreAtTime, interaction.Metadata,
	).Scan(&interaction.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

func (r *repository) CountInteractions(ctx context.Context, userID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM user_interactions WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return count, nil
}

const insertActivityQuery = `
	INSERT INTO matching_activities (
		user_id, activity_type, success, error_message, duration_ms,
		scores_calculated, recommendations_generated, details, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	RETURNING id, created_at`

// activityUserID maps the batch-level UserID 0 to NULL
func activityUserID(activity *MatchingActivity) sql.NullInt64 {
	return sql.NullInt64{Int64: activity.UserID, Valid: activity.UserID != 0}
}

func (r *repository) InsertActivity(ctx context.Context, activity *MatchingActivity) error {
	err := r.db.QueryRowxContext(ctx, insertActivityQuery,
		activityUserID(activity), activity.Type, activity.Success, activity.ErrorMessage,
		activity.DurationMS, activity.ScoresCalculated, activity.RecommendationsGenerated,
		activity.Details,
	).Scan(&activity.ID, &activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert matching activity: %w", err)
	}
	return nil
}

func insertActivityTx(ctx context.Context, tx *sqlx.Tx, activity *MatchingActivity) error {
	err := tx.QueryRowxContext(ctx, insertActivityQuery,
		activityUserID(activity), activity.Type, activity.Success, activity.ErrorMessage,
		activity.DurationMS, activity.ScoresCalculated, activity.RecommendationsGenerated,
		activity.Details,
	).Scan(&activity.ID, &activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert matching activity: %w", err)
	}
	return nil
}

func (r *repository) LastActivityAt(ctx context.Context, userID int64, activityType string) (*time.Time, error) {
	var ts time.Time
	query := `
		SELECT created_at FROM matching_activities
		WHERE user_id = $1 AND activity_type = $2
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &ts, query, userID, activityType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last activity: %w", err)
	}
	return &ts, nil
}

func (r *repository) GetStats(ctx context.Context, userID int64) (*Stats, error) {
	var stats Stats
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE dismissed = false) AS active,
			COUNT(*) FILTER (WHERE viewed = true) AS viewed,
			COUNT(*) FILTER (WHERE contacted = true) AS contacted,
			COUNT(*) FILTER (WHERE dismissed = true) AS dismissed,
			COALESCE(AVG(score) FILTER (WHERE dismissed = false), 0) AS avg_score,
			COALESCE(MAX(score) FILTER (WHERE dismissed = false), 0) AS best_score
		FROM user_recommendations
		WHERE user_id = $1`

	row := r.db.QueryRowxContext(ctx, query, userID)
	err := row.Scan(&stats.TotalRecommendations, &stats.ActiveRecommendations,
		&stats.ViewedCount, &stats.ContactedCount, &stats.DismissedCount,
		&stats.AverageScore, &stats.BestScore)
	if err != nil {
		return nil, fmt.Errorf("failed to get matching stats for user %d: %w", userID, err)
	}

	interactions, err := r.CountInteractions(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats.InteractionCount = interactions

	lastRefresh, err := r.LastActivityAt(ctx, userID, ActivityRecommendationsRefresh)
	if err != nil {
		return nil, err
	}
	stats.LastRefreshAt = lastRefresh

	return &stats, nil
}
