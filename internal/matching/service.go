// internal/matching/service.go

package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomatch/roomatch-backend/internal/profile"
)

var ErrSameUser = errors.New("cannot match a user with themselves")
var ErrInvalidInteractionType = errors.New("invalid interaction type")

// CompatibilityDetail is the full pair view returned by the compatibility
// endpoint: the stored score joined with the other user's public info.
type CompatibilityDetail struct {
	Score *CompatibilityScore `json:"score"`
	Level string              `json:"compatibility_level"`
	Other *profile.UserInfo   `json:"other_user"`
}

// Service is the matching engine's application surface
type Service interface {
	// CalculatePair computes, stores and returns the score for one pair.
	// It fails when either profile is missing.
	CalculatePair(ctx context.Context, userA, userB int64, trigger string) (*CompatibilityScore, error)

	// GetCompatibility recomputes the pair score and returns it with the
	// other user's info attached.
	GetCompatibility(ctx context.Context, userID, otherID int64) (*CompatibilityDetail, error)

	// GenerateRecommendations rebuilds a user's recommendation list from
	// all eligible candidates. Candidates that cannot be scored are
	// skipped, not fatal.
	GenerateRecommendations(ctx context.Context, userID int64, limit int, trigger string) ([]*Recommendation, error)

	// GetRecommendations returns the stored active list, regenerating it
	// first when refresh is set or no list exists yet.
	GetRecommendations(ctx context.Context, userID int64, limit int, refresh bool) ([]*Recommendation, error)

	MarkRecommendationViewed(ctx context.Context, recommendationID, userID int64) error
	MarkRecommendationContacted(ctx context.Context, recommendationID, userID int64) error
	DismissRecommendation(ctx context.Context, recommendationID, userID int64) error

	// RecordInteraction appends one interaction event, snapshotting the
	// pair's current score when one exists.
	RecordInteraction(ctx context.Context, userID, targetUserID int64, interactionType string, wasRecommended bool, metadata Metadata) (*UserInteraction, error)

	GetStats(ctx context.Context, userID int64) (*Stats, error)

	// RefreshAllUsers regenerates recommendations for every eligible user.
	// Used by the nightly batch job.
	RefreshAllUsers(ctx context.Context) (int, error)
}

type service struct {
	repo       Repository
	profiles   profile.Repository
	calculator *Calculator
	redis      *redis.Client
	logger     *zap.Logger

	defaultLimit int
	maxLimit     int
	cacheTTL     time.Duration
}

// ServiceConfig carries the tunables the service needs from app config
type ServiceConfig struct {
	DefaultRecommendationLimit int
	MaxRecommendationLimit     int
	RecommendationCacheTTL     time.Duration
}

// NewService builds the matching service. The redis client is optional;
// when nil, recommendation caching is disabled.
func NewService(repo Repository, profiles profile.Repository, redisClient *redis.Client, logger *zap.Logger, cfg ServiceConfig) Service {
	return &service{
		repo:         repo,
		profiles:     profiles,
		calculator:   NewCalculator(),
		redis:        redisClient,
		logger:       logger,
		defaultLimit: cfg.DefaultRecommendationLimit,
		maxLimit:     cfg.MaxRecommendationLimit,
		cacheTTL:     cfg.RecommendationCacheTTL,
	}
}

func (s *service) CalculatePair(ctx context.Context, userA, userB int64, trigger string) (*CompatibilityScore, error) {
	if userA == userB {
		return nil, ErrSameUser
	}

	start := time.Now()

	profileA, err := s.profiles.GetProfile(ctx, userA)
	if err != nil {
		s.recordFailure(ctx, userA, ActivityScoreCalculated, start, err)
		return nil, fmt.Errorf("user %d: %w", userA, err)
	}
	profileB, err := s.profiles.GetProfile(ctx, userB)
	if err != nil {
		s.recordFailure(ctx, userA, ActivityScoreCalculated, start, err)
		return nil, fmt.Errorf("user %d: %w", userB, err)
	}

	critA, err := s.profiles.GetCriteria(ctx, userA)
	if err != nil {
		s.recordFailure(ctx, userA, ActivityScoreCalculated, start, err)
		return nil, err
	}
	critB, err := s.profiles.GetCriteria(ctx, userB)
	if err != nil {
		s.recordFailure(ctx, userA, ActivityScoreCalculated, start, err)
		return nil, err
	}

	result := s.calculator.Calculate(CalculationInput{
		ProfileA:  profileA,
		ProfileB:  profileB,
		CriteriaA: critA,
		CriteriaB: critB,
		Now:       start,
	})

	u1, u2 := CanonicalPair(userA, userB)
	score := &CompatibilityScore{
		User1ID:        u1,
		User2ID:        u2,
		OverallScore:   result.OverallScore,
		BudgetScore:    result.BudgetScore,
		LocationScore:  result.LocationScore,
		LifestyleScore: result.LifestyleScore,
		ScheduleScore:  result.ScheduleScore,
		HabitsScore:    result.HabitsScore,
		Breakdown:      result.Breakdown,
	}

	elapsed := time.Since(start)
	activity := &MatchingActivity{
		UserID:           userA,
		Type:             ActivityScoreCalculated,
		Success:          true,
		DurationMS:       elapsed.Milliseconds(),
		ScoresCalculated: 1,
		Details: Metadata{
			"other_user_id": userB,
			"overall_score": result.OverallScore,
			"trigger":       trigger,
		},
	}

	if err := s.repo.UpsertScore(ctx, score, activity); err != nil {
		s.recordFailure(ctx, userA, ActivityScoreCalculated, start, err)
		return nil, err
	}

	RecordScoreCalculation(trigger, result.OverallScore, elapsed.Seconds())
	return score, nil
}

func (s *service) GetCompatibility(ctx context.Context, userID, otherID int64) (*CompatibilityDetail, error) {
	score, err := s.CalculatePair(ctx, userID, otherID, "api")
	if err != nil {
		return nil, err
	}

	other, err := s.profiles.GetUserInfo(ctx, otherID)
	if err != nil {
		return nil, err
	}

	return &CompatibilityDetail{
		Score: score,
		Level: score.Level(),
		Other: other,
	}, nil
}

func (s *service) GenerateRecommendations(ctx context.Context, userID int64, limit int, trigger string) ([]*Recommendation, error) {
	limit = s.clampLimit(limit)
	start := time.Now()

	// The target needs a profile; candidates without one are simply absent
	// from the candidate list.
	targetProfile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		s.recordFailure(ctx, userID, ActivityRecommendationsRefresh, start, err)
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}
	targetCriteria, err := s.profiles.GetCriteria(ctx, userID)
	if err != nil {
		s.recordFailure(ctx, userID, ActivityRecommendationsRefresh, start, err)
		return nil, err
	}

	candidates, err := s.profiles.ListCandidates(ctx, userID)
	if err != nil {
		s.recordFailure(ctx, userID, ActivityRecommendationsRefresh, start, err)
		return nil, err
	}

	type scored struct {
		candidate *profile.UserProfile
		result    Result
	}
	var results []scored
	skipped := 0

	skipCandidate := func(candidateID int64, err error) {
		s.logger.Warn("skipping candidate",
			zap.Int64("user_id", userID),
			zap.Int64("candidate_id", candidateID),
			zap.Error(err))
		s.recordFailure(ctx, userID, ActivityScoreCalculated, start, err)
		RecordCandidateSkipped()
		skipped++
	}

	for _, candidate := range candidates {
		critC, err := s.profiles.GetCriteria(ctx, candidate.UserID)
		if err != nil {
			skipCandidate(candidate.UserID, err)
			continue
		}

		result := s.calculator.Calculate(CalculationInput{
			ProfileA:  targetProfile,
			ProfileB:  candidate,
			CriteriaA: targetCriteria,
			CriteriaB: critC,
			Now:       start,
		})

		u1, u2 := CanonicalPair(userID, candidate.UserID)
		score := &CompatibilityScore{
			User1ID:        u1,
			User2ID:        u2,
			OverallScore:   result.OverallScore,
			BudgetScore:    result.BudgetScore,
			LocationScore:  result.LocationScore,
			LifestyleScore: result.LifestyleScore,
			ScheduleScore:  result.ScheduleScore,
			HabitsScore:    result.HabitsScore,
			Breakdown:      result.Breakdown,
		}
		if err := s.repo.UpsertScore(ctx, score, nil); err != nil {
			skipCandidate(candidate.UserID, err)
			continue
		}

		results = append(results, scored{candidate: candidate, result: result})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].result.OverallScore != results[j].result.OverallScore {
			return results[i].result.OverallScore > results[j].result.OverallScore
		}
		return results[i].candidate.UserID < results[j].candidate.UserID
	})

	scoredCount := len(results)
	if len(results) > limit {
		results = results[:limit]
	}

	recs := make([]*Recommendation, 0, len(results))
	for _, entry := range results {
		rec := &Recommendation{
			UserID:            userID,
			RecommendedUserID: entry.candidate.UserID,
			Score:             entry.result.OverallScore,
			Reason:            BuildReason(entry.result),
			Highlights:        BuildHighlights(entry.result),
		}
		if err := s.repo.UpsertRecommendation(ctx, rec); err != nil {
			s.logger.Warn("failed to store recommendation",
				zap.Int64("user_id", userID),
				zap.Int64("candidate_id", entry.candidate.UserID),
				zap.Error(err))
			continue
		}
		if !rec.Dismissed {
			rec.Level = LevelForScore(rec.Score)
			recs = append(recs, rec)
		}
	}

	elapsed := time.Since(start)
	activity := &MatchingActivity{
		UserID:                   userID,
		Type:                     ActivityRecommendationsRefresh,
		Success:                  true,
		DurationMS:               elapsed.Milliseconds(),
		ScoresCalculated:         scoredCount,
		RecommendationsGenerated: len(recs),
		Details: Metadata{
			"candidates": len(candidates),
			"skipped":    skipped,
			"trigger":    trigger,
		},
	}
	if err := s.repo.InsertActivity(ctx, activity); err != nil {
		s.logger.Warn("failed to record refresh activity", zap.Int64("user_id", userID), zap.Error(err))
	}

	s.invalidateCache(ctx, userID)
	RecordRecommendationRefresh(trigger, elapsed.Seconds())

	s.logger.Info("recommendations refreshed",
		zap.Int64("user_id", userID),
		zap.Int("candidates", len(candidates)),
		zap.Int("recommendations", len(recs)),
		zap.Duration("took", elapsed))

	return recs, nil
}

func (s *service) GetRecommendations(ctx context.Context, userID int64, limit int, refresh bool) ([]*Recommendation, error) {
	limit = s.clampLimit(limit)

	if refresh {
		recs, err := s.GenerateRecommendations(ctx, userID, limit, "refresh")
		return s.withUserInfo(ctx, recs, err)
	}

	if cached, ok := s.cachedRecommendations(ctx, userID, limit); ok {
		RecordCacheLookup(true)
		return cached, nil
	}
	RecordCacheLookup(false)

	recs, err := s.repo.ListActiveRecommendations(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	// First visit: no stored list yet, build one.
	if len(recs) == 0 {
		generated, genErr := s.GenerateRecommendations(ctx, userID, limit, "refresh")
		return s.withUserInfo(ctx, generated, genErr)
	}

	for _, rec := range recs {
		rec.Level = LevelForScore(rec.Score)
	}

	recs, err = s.withUserInfo(ctx, recs, nil)
	if err != nil {
		return nil, err
	}

	s.cacheRecommendations(ctx, userID, limit, recs)
	return recs, nil
}

// withUserInfo attaches public user info to each recommendation
func (s *service) withUserInfo(ctx context.Context, recs []*Recommendation, err error) ([]*Recommendation, error) {
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		info, infoErr := s.profiles.GetUserInfo(ctx, rec.RecommendedUserID)
		if infoErr != nil {
			s.logger.Warn("failed to load recommended user info",
				zap.Int64("recommended_user_id", rec.RecommendedUserID),
				zap.Error(infoErr))
			continue
		}
		rec.RecommendedUser = info
	}
	return recs, nil
}

func (s *service) MarkRecommendationViewed(ctx context.Context, recommendationID, userID int64) error {
	if err := s.repo.MarkViewed(ctx, recommendationID, userID); err != nil {
		return err
	}
	s.invalidateCache(ctx, userID)
	return nil
}

func (s *service) MarkRecommendationContacted(ctx context.Context, recommendationID, userID int64) error {
	if err := s.repo.MarkContacted(ctx, recommendationID, userID); err != nil {
		return err
	}
	s.invalidateCache(ctx, userID)
	return nil
}

func (s *service) DismissRecommendation(ctx context.Context, recommendationID, userID int64) error {
	rec, err := s.repo.GetRecommendation(ctx, recommendationID)
	if err != nil {
		return err
	}
	if rec.UserID != userID {
		return ErrRecommendationNotFound
	}

	if err := s.repo.MarkDismissed(ctx, recommendationID, userID); err != nil {
		return err
	}

	// Dismissals double as interaction events so analytics sees them.
	if _, err := s.RecordInteraction(ctx, userID, rec.RecommendedUserID, InteractionDismissRecommendation, true, Metadata{
		"recommendation_id": recommendationID,
	}); err != nil {
		s.logger.Warn("failed to record dismissal interaction",
			zap.Int64("recommendation_id", recommendationID),
			zap.Error(err))
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *service) RecordInteraction(ctx context.Context, userID, targetUserID int64, interactionType string, wasRecommended bool, metadata Metadata) (*UserInteraction, error) {
	if userID == targetUserID {
		return nil, ErrSameUser
	}
	if !ValidInteractionType(interactionType) {
		return nil, ErrInvalidInteractionType
	}

	interaction := &UserInteraction{
		ID:             uuid.New().String(),
		UserID:         userID,
		TargetUserID:   targetUserID,
		Type:           interactionType,
		WasRecommended: wasRecommended,
		Metadata:       metadata,
	}

	if score, err := s.repo.GetScore(ctx, userID, targetUserID); err == nil {
		interaction.ScoreAtTime = &score.OverallScore
	} else if !errors.Is(err, ErrScoreNotFound) {
		s.logger.Warn("failed to snapshot score for interaction",
			zap.Int64("user_id", userID),
			zap.Int64("target_user_id", targetUserID),
			zap.Error(err))
	}

	if err := s.repo.InsertInteraction(ctx, interaction); err != nil {
		return nil, err
	}

	RecordInteraction(interactionType)
	return interaction, nil
}

func (s *service) GetStats(ctx context.Context, userID int64) (*Stats, error) {
	return s.repo.GetStats(ctx, userID)
}

func (s *service) RefreshAllUsers(ctx context.Context) (int, error) {
	start := time.Now()

	// Every user who is themselves a valid candidate gets a refresh.
	users, err := s.profiles.ListCandidates(ctx, 0)
	if err != nil {
		s.recordFailure(ctx, 0, ActivityBatchRefresh, start, err)
		return 0, err
	}

	refreshed := 0
	generated := 0
	for _, p := range users {
		if ctx.Err() != nil {
			s.recordFailure(ctx, 0, ActivityBatchRefresh, start, ctx.Err())
			return refreshed, ctx.Err()
		}
		recs, err := s.GenerateRecommendations(ctx, p.UserID, s.defaultLimit, "batch")
		if err != nil {
			s.logger.Error("batch refresh failed for user",
				zap.Int64("user_id", p.UserID),
				zap.Error(err))
			RecordBatchUser(true)
			continue
		}
		generated += len(recs)
		RecordBatchUser(false)
		refreshed++
	}

	activity := &MatchingActivity{
		Type:                     ActivityBatchRefresh,
		Success:                  true,
		DurationMS:               time.Since(start).Milliseconds(),
		RecommendationsGenerated: generated,
		Details: Metadata{
			"users":     len(users),
			"refreshed": refreshed,
			"failed":    len(users) - refreshed,
		},
	}
	if err := s.repo.InsertActivity(ctx, activity); err != nil {
		s.logger.Warn("failed to record batch refresh activity", zap.Error(err))
	}

	s.logger.Info("batch refresh complete",
		zap.Int("users", len(users)),
		zap.Int("refreshed", refreshed))
	return refreshed, nil
}

// recordFailure writes a best-effort failure telemetry row. Telemetry never
// influences the outcome of the operation it wraps.
func (s *service) recordFailure(ctx context.Context, userID int64, activityType string, start time.Time, cause error) {
	activity := &MatchingActivity{
		UserID:       userID,
		Type:         activityType,
		Success:      false,
		ErrorMessage: cause.Error(),
		DurationMS:   time.Since(start).Milliseconds(),
	}
	if err := s.repo.InsertActivity(ctx, activity); err != nil {
		s.logger.Warn("failed to record failure activity", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (s *service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

func (s *service) cacheKey(userID int64, limit int) string {
	return fmt.Sprintf("matching:recommendations:%d:%d", userID, limit)
}

func (s *service) cachedRecommendations(ctx context.Context, userID int64, limit int) ([]*Recommendation, bool) {
	if s.redis == nil {
		return nil, false
	}

	data, err := s.redis.Get(ctx, s.cacheKey(userID, limit)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("recommendation cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var recs []*Recommendation
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, false
	}
	return recs, true
}

func (s *service) cacheRecommendations(ctx context.Context, userID int64, limit int, recs []*Recommendation) {
	if s.redis == nil {
		return
	}

	data, err := json.Marshal(recs)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, s.cacheKey(userID, limit), data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("recommendation cache write failed", zap.Error(err))
	}
}

func (s *service) invalidateCache(ctx context.Context, userID int64) {
	if s.redis == nil {
		return
	}

	pattern := fmt.Sprintf("matching:recommendations:%d:*", userID)
	keys, err := s.redis.Keys(ctx, pattern).Result()
	if err != nil {
		s.logger.Warn("recommendation cache invalidation failed", zap.Error(err))
		return
	}
	if len(keys) > 0 {
		if err := s.redis.Del(ctx, keys...).Err(); err != nil {
			s.logger.Warn("recommendation cache invalidation failed", zap.Error(err))
		}
	}
}
