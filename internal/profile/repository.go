// internal/profile/repository.go

package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrProfileNotFound = errors.New("profile not found")
var ErrUserNotFound = errors.New("user not found")

// Repository is the read side of profile data used by the matching engine.
// Profile writes belong to the profile-setup flows, not to matching.
type Repository interface {
	GetProfile(ctx context.Context, userID int64) (*UserProfile, error)
	GetCriteria(ctx context.Context, userID int64) (*MatchingCriteria, error)
	ListCandidates(ctx context.Context, excludeUserID int64) ([]*UserProfile, error)
	GetUserInfo(ctx context.Context, userID int64) (*UserInfo, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetProfile(ctx context.Context, userID int64) (*UserProfile, error) {
	var p UserProfile
	query := `
		SELECT id, user_id, date_of_birth, gender, occupation,
		       min_budget, max_budget, preferred_locations,
		       cleanliness_level, noise_tolerance, social_level,
		       smoker, drinking, pets,
		       schedule_type, works_from_home,
		       preferred_age_min, preferred_age_max, preferred_gender, max_roommates,
		       created_at, updated_at
		FROM user_profiles
		WHERE user_id = $1`

	err := r.db.GetContext(ctx, &p, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile for user %d: %w", userID, err)
	}
	return &p, nil
}

// GetCriteria returns nil without error when the user never saved criteria;
// callers substitute DefaultCriteria.
func (r *repository) GetCriteria(ctx context.Context, userID int64) (*MatchingCriteria, error) {
	var c MatchingCriteria
	query := `
		SELECT id, user_id,
		       budget_importance, location_importance, lifestyle_importance,
		       schedule_importance, habits_importance,
		       deal_breakers, strict_age_preference, strict_gender_preference,
		       created_at, updated_at
		FROM matching_criteria
		WHERE user_id = $1`

	err := r.db.GetContext(ctx, &c, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get matching criteria for user %d: %w", userID, err)
	}
	return &c, nil
}

// ListCandidates returns completed, active profiles other than the target's.
func (r *repository) ListCandidates(ctx context.Context, excludeUserID int64) ([]*UserProfile, error) {
	var profiles []*UserProfile
	query := `
		SELECT p.id, p.user_id, p.date_of_birth, p.gender, p.occupation,
		       p.min_budget, p.max_budget, p.preferred_locations,
		       p.cleanliness_level, p.noise_tolerance, p.social_level,
		       p.smoker, p.drinking, p.pets,
		       p.schedule_type, p.works_from_home,
		       p.preferred_age_min, p.preferred_age_max, p.preferred_gender, p.max_roommates,
		       p.created_at, p.updated_at
		FROM user_profiles p
		JOIN users u ON u.id = p.user_id
		WHERE p.user_id != $1
		  AND p.profile_completed = true
		  AND u.is_active = true
		ORDER BY p.user_id`

	err := r.db.SelectContext(ctx, &profiles, query, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate profiles: %w", err)
	}
	return profiles, nil
}

func (r *repository) GetUserInfo(ctx context.Context, userID int64) (*UserInfo, error) {
	var info UserInfo
	query := `SELECT id, name, email FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &info, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return &info, nil
}
