// Tests for the matching service using in-memory fakes
package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roomatch/roomatch-backend/internal/profile"
)

// fakeProfiles is an in-memory profile.Repository
type fakeProfiles struct {
	profiles map[int64]*profile.UserProfile
	criteria map[int64]*profile.MatchingCriteria
	failFor  map[int64]error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		profiles: make(map[int64]*profile.UserProfile),
		criteria: make(map[int64]*profile.MatchingCriteria),
		failFor:  make(map[int64]error),
	}
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID int64) (*profile.UserProfile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeProfiles) GetCriteria(ctx context.Context, userID int64) (*profile.MatchingCriteria, error) {
	if err, ok := f.failFor[userID]; ok {
		return nil, err
	}
	return f.criteria[userID], nil
}

func (f *fakeProfiles) ListCandidates(ctx context.Context, excludeUserID int64) ([]*profile.UserProfile, error) {
	var out []*profile.UserProfile
	for _, p := range f.profiles {
		if p.UserID != excludeUserID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfiles) GetUserInfo(ctx context.Context, userID int64) (*profile.UserInfo, error) {
	if _, ok := f.profiles[userID]; !ok {
		return nil, profile.ErrUserNotFound
	}
	return &profile.UserInfo{ID: userID, Name: "user"}, nil
}

// fakeRepo is an in-memory matching Repository
type fakeRepo struct {
	scores          map[[2]int64]*CompatibilityScore
	recommendations map[[2]int64]*Recommendation
	interactions    []*UserInteraction
	activities      []*MatchingActivity
	nextRecID       int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		scores:          make(map[[2]int64]*CompatibilityScore),
		recommendations: make(map[[2]int64]*Recommendation),
	}
}

func (f *fakeRepo) UpsertScore(ctx context.Context, score *CompatibilityScore, activity *MatchingActivity) error {
	score.User1ID, score.User2ID = CanonicalPair(score.User1ID, score.User2ID)
	score.CalculatedAt = time.Now()
	f.scores[[2]int64{score.User1ID, score.User2ID}] = score
	if activity != nil {
		f.activities = append(f.activities, activity)
	}
	return nil
}

func (f *fakeRepo) GetScore(ctx context.Context, userA, userB int64) (*CompatibilityScore, error) {
	u1, u2 := CanonicalPair(userA, userB)
	score, ok := f.scores[[2]int64{u1, u2}]
	if !ok {
		return nil, ErrScoreNotFound
	}
	return score, nil
}

func (f *fakeRepo) UpsertRecommendation(ctx context.Context, rec *Recommendation) error {
	key := [2]int64{rec.UserID, rec.RecommendedUserID}
	if existing, ok := f.recommendations[key]; ok {
		existing.Score = rec.Score
		existing.Reason = rec.Reason
		existing.Highlights = rec.Highlights
		*rec = *existing
		return nil
	}
	f.nextRecID++
	rec.ID = f.nextRecID
	rec.CreatedAt = time.Now()
	stored := *rec
	f.recommendations[key] = &stored
	return nil
}

func (f *fakeRepo) GetRecommendation(ctx context.Context, id int64) (*Recommendation, error) {
	for _, rec := range f.recommendations {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, ErrRecommendationNotFound
}

func (f *fakeRepo) ListActiveRecommendations(ctx context.Context, userID int64, limit int) ([]*Recommendation, error) {
	var out []*Recommendation
	for _, rec := range f.recommendations {
		if rec.UserID == userID && !rec.Dismissed {
			out = append(out, rec)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Score > out[i].Score {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) markRec(id, userID int64, set func(*Recommendation)) error {
	for _, rec := range f.recommendations {
		if rec.ID == id && rec.UserID == userID {
			set(rec)
			return nil
		}
	}
	return ErrRecommendationNotFound
}

func (f *fakeRepo) MarkViewed(ctx context.Context, id, userID int64) error {
	return f.markRec(id, userID, func(r *Recommendation) { r.Viewed = true })
}

func (f *fakeRepo) MarkContacted(ctx context.Context, id, userID int64) error {
	return f.markRec(id, userID, func(r *Recommendation) { r.Contacted = true })
}

func (f *fakeRepo) MarkDismissed(ctx context.Context, id, userID int64) error {
	return f.markRec(id, userID, func(r *Recommendation) { r.Dismissed = true })
}

func (f *fakeRepo) InsertInteraction(ctx context.Context, interaction *UserInteraction) error {
	interaction.CreatedAt = time.Now()
	f.interactions = append(f.interactions, interaction)
	return nil
}

func (f *fakeRepo) CountInteractions(ctx context.Context, userID int64) (int, error) {
	count := 0
	for _, in := range f.interactions {
		if in.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) InsertActivity(ctx context.Context, activity *MatchingActivity) error {
	f.activities = append(f.activities, activity)
	return nil
}

func (f *fakeRepo) LastActivityAt(ctx context.Context, userID int64, activityType string) (*time.Time, error) {
	return nil, nil
}

func (f *fakeRepo) GetStats(ctx context.Context, userID int64) (*Stats, error) {
	stats := &Stats{}
	for _, rec := range f.recommendations {
		if rec.UserID != userID {
			continue
		}
		stats.TotalRecommendations++
		if rec.Dismissed {
			stats.DismissedCount++
		} else {
			stats.ActiveRecommendations++
		}
	}
	stats.InteractionCount, _ = f.CountInteractions(ctx, userID)
	return stats, nil
}

func newTestService(repo Repository, profiles profile.Repository) Service {
	return NewService(repo, profiles, nil, zap.NewNop(), ServiceConfig{
		DefaultRecommendationLimit: 10,
		MaxRecommendationLimit:     50,
		RecommendationCacheTTL:     5 * time.Minute,
	})
}

func TestCalculatePairRejectsSameUser(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeProfiles())

	_, err := svc.CalculatePair(context.Background(), 7, 7, "api")
	assert.ErrorIs(t, err, ErrSameUser)
}

func TestCalculatePairMissingProfileFails(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	svc := newTestService(newFakeRepo(), profiles)

	_, err := svc.CalculatePair(context.Background(), 1, 2, "api")
	assert.ErrorIs(t, err, profile.ErrProfileNotFound)
}

func TestCalculatePairStoresCanonicalOrder(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	profiles.profiles[9] = fullProfile(9)
	svc := newTestService(repo, profiles)

	score, err := svc.CalculatePair(context.Background(), 9, 1, "api")
	require.NoError(t, err)

	assert.Equal(t, int64(1), score.User1ID)
	assert.Equal(t, int64(9), score.User2ID)

	// Asking in either order finds the same row.
	stored, err := repo.GetScore(context.Background(), 1, 9)
	require.NoError(t, err)
	assert.Equal(t, score.OverallScore, stored.OverallScore)
}

func TestCalculatePairRecordsActivity(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	profiles.profiles[2] = fullProfile(2)
	svc := newTestService(repo, profiles)

	_, err := svc.CalculatePair(context.Background(), 1, 2, "api")
	require.NoError(t, err)

	require.Len(t, repo.activities, 1)
	assert.Equal(t, ActivityScoreCalculated, repo.activities[0].Type)
	assert.True(t, repo.activities[0].Success)
	assert.Equal(t, 1, repo.activities[0].ScoresCalculated)
}

func TestCalculatePairFailureRecordsTelemetry(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	svc := newTestService(repo, profiles)

	_, err := svc.CalculatePair(context.Background(), 1, 2, "api")
	require.Error(t, err)

	require.Len(t, repo.activities, 1)
	assert.False(t, repo.activities[0].Success)
	assert.NotEmpty(t, repo.activities[0].ErrorMessage)
}

func TestGenerateRecommendationsTelemetryCounts(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	profiles.profiles[2] = fullProfile(2)
	profiles.profiles[3] = fullProfile(3)

	svc := newTestService(repo, profiles)

	_, err := svc.GenerateRecommendations(context.Background(), 1, 1, "api")
	require.NoError(t, err)

	require.NotEmpty(t, repo.activities)
	refresh := repo.activities[len(repo.activities)-1]
	assert.Equal(t, ActivityRecommendationsRefresh, refresh.Type)
	assert.True(t, refresh.Success)
	assert.Equal(t, 2, refresh.ScoresCalculated)
	assert.Equal(t, 1, refresh.RecommendationsGenerated)
}

func TestGenerateRecommendationsOrderedAndLimited(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)

	// Candidate 2 matches closely, candidate 3 clashes on budget and
	// schedule, candidate 4 sits between.
	profiles.profiles[2] = fullProfile(2)

	bad := fullProfile(3)
	bad.MinBudget = floatPtr(2000)
	bad.MaxBudget = floatPtr(3000)
	bad.ScheduleType = profile.ScheduleNightOwl
	bad.CleanlinessLevel = intPtr(1)
	profiles.profiles[3] = bad

	mid := fullProfile(4)
	mid.CleanlinessLevel = intPtr(3)
	profiles.profiles[4] = mid

	svc := newTestService(repo, profiles)

	recs, err := svc.GenerateRecommendations(context.Background(), 1, 2, "api")
	require.NoError(t, err)

	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[0].RecommendedUserID)
	assert.Equal(t, int64(4), recs[1].RecommendedUserID)
	assert.GreaterOrEqual(t, recs[0].Score, recs[1].Score)
}

func TestGenerateRecommendationsSkipsFailingCandidate(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	profiles.profiles[2] = fullProfile(2)
	profiles.profiles[3] = fullProfile(3)
	profiles.failFor[3] = errors.New("criteria query failed")

	svc := newTestService(repo, profiles)

	recs, err := svc.GenerateRecommendations(context.Background(), 1, 10, "api")
	require.NoError(t, err)

	require.Len(t, recs, 1)
	assert.Equal(t, int64(2), recs[0].RecommendedUserID)
}

func TestGenerateRecommendationsEmptyPool(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)

	svc := newTestService(repo, profiles)

	recs, err := svc.GenerateRecommendations(context.Background(), 1, 10, "api")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDismissalSurvivesRefresh(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	profiles.profiles[2] = fullProfile(2)
	profiles.profiles[3] = fullProfile(3)

	svc := newTestService(repo, profiles)

	recs, err := svc.GenerateRecommendations(context.Background(), 1, 10, "api")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.NoError(t, svc.DismissRecommendation(context.Background(), recs[0].ID, 1))

	// Regenerating refreshes scores but keeps the dismissal.
	recs, err = svc.GenerateRecommendations(context.Background(), 1, 10, "api")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	for _, rec := range recs {
		assert.False(t, rec.Dismissed)
	}
}

func TestDismissRecordsInteraction(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	profiles.profiles[2] = fullProfile(2)

	svc := newTestService(repo, profiles)

	recs, err := svc.GenerateRecommendations(context.Background(), 1, 10, "api")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	require.NoError(t, svc.DismissRecommendation(context.Background(), recs[0].ID, 1))

	require.Len(t, repo.interactions, 1)
	assert.Equal(t, InteractionDismissRecommendation, repo.interactions[0].Type)
	assert.Equal(t, int64(2), repo.interactions[0].TargetUserID)
}

func TestDismissForeignRecommendationFails(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	profiles.profiles[2] = fullProfile(2)

	svc := newTestService(repo, profiles)

	recs, err := svc.GenerateRecommendations(context.Background(), 1, 10, "api")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	err = svc.DismissRecommendation(context.Background(), recs[0].ID, 99)
	assert.ErrorIs(t, err, ErrRecommendationNotFound)
}

func TestGetRecommendationsGeneratesOnFirstVisit(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	profiles.profiles[2] = fullProfile(2)

	svc := newTestService(repo, profiles)

	recs, err := svc.GetRecommendations(context.Background(), 1, 0, false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].RecommendedUser)
	assert.Equal(t, int64(2), recs[0].RecommendedUser.ID)
}

func TestGetRecommendationsLimitClamped(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	for id := int64(2); id <= 60; id++ {
		profiles.profiles[id] = fullProfile(id)
	}

	svc := newTestService(repo, profiles)

	recs, err := svc.GetRecommendations(context.Background(), 1, 1000, false)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(recs), 50)
}

func TestRecordInteractionValidatesType(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeProfiles())

	_, err := svc.RecordInteraction(context.Background(), 1, 2, "poke", false, nil)
	assert.ErrorIs(t, err, ErrInvalidInteractionType)
}

func TestRecordInteractionRejectsSelf(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeProfiles())

	_, err := svc.RecordInteraction(context.Background(), 1, 1, InteractionViewProfile, false, nil)
	assert.ErrorIs(t, err, ErrSameUser)
}

func TestRecordInteractionSnapshotsScore(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	profiles.profiles[2] = fullProfile(2)

	svc := newTestService(repo, profiles)

	score, err := svc.CalculatePair(context.Background(), 1, 2, "api")
	require.NoError(t, err)

	interaction, err := svc.RecordInteraction(context.Background(), 1, 2, InteractionLikeProfile, true, nil)
	require.NoError(t, err)

	require.NotNil(t, interaction.ScoreAtTime)
	assert.Equal(t, score.OverallScore, *interaction.ScoreAtTime)
	assert.True(t, interaction.WasRecommended)
	assert.NotEmpty(t, interaction.ID)
}

func TestRecordInteractionWithoutScoreLeavesSnapshotNil(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeProfiles())

	interaction, err := svc.RecordInteraction(context.Background(), 1, 2, InteractionViewProfile, false, nil)
	require.NoError(t, err)
	assert.Nil(t, interaction.ScoreAtTime)
}

func TestRefreshAllUsersContinuesPastFailures(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	profiles.profiles[2] = fullProfile(2)
	profiles.profiles[3] = fullProfile(3)
	// User 3's criteria lookup fails, so their own refresh fails while the
	// other two still complete.
	profiles.failFor[3] = errors.New("criteria query failed")

	svc := newTestService(repo, profiles)

	refreshed, err := svc.RefreshAllUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed)

	require.NotEmpty(t, repo.activities)
	batch := repo.activities[len(repo.activities)-1]
	assert.Equal(t, ActivityBatchRefresh, batch.Type)
	assert.True(t, batch.Success)
	assert.Equal(t, int64(0), batch.UserID)
	assert.Equal(t, 3, batch.Details["users"])
	assert.Equal(t, 2, batch.Details["refreshed"])
	assert.Equal(t, 1, batch.Details["failed"])
}

func TestCalculatePairCriteriaFailureRecordsTelemetry(t *testing.T) {
	repo := newFakeRepo()
	profiles := newFakeProfiles()
	profiles.profiles[1] = fullProfile(1)
	profiles.profiles[2] = fullProfile(2)
	profiles.failFor[2] = errors.New("criteria query failed")
	svc := newTestService(repo, profiles)

	_, err := svc.CalculatePair(context.Background(), 1, 2, "api")
	require.Error(t, err)

	require.Len(t, repo.activities, 1)
	assert.Equal(t, ActivityScoreCalculated, repo.activities[0].Type)
	assert.False(t, repo.activities[0].Success)
	assert.NotEmpty(t, repo.activities[0].ErrorMessage)
}
