// internal/matching/metrics.go

package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scoreCalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matching_score_calculations_total",
		Help: "Total number of compatibility score calculations",
	}, []string{"trigger"}) // trigger: api, refresh, batch

	scoreCalculationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "matching_score_calculation_duration_seconds",
		Help:    "Time taken to calculate and store one pair score",
		Buckets: prometheus.DefBuckets,
	})

	scoreDistribution = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "matching_score_distribution",
		Help:    "Distribution of calculated overall compatibility scores",
		Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	recommendationRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matching_recommendation_refreshes_total",
		Help: "Total number of recommendation list refreshes",
	}, []string{"trigger"})

	recommendationRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "matching_recommendation_refresh_duration_seconds",
		Help:    "Time taken to regenerate one user's recommendation list",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	candidatesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matching_candidates_skipped_total",
		Help: "Candidates skipped during recommendation generation due to errors",
	})

	interactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matching_interactions_total",
		Help: "Total number of recorded user interactions",
	}, []string{"type"})

	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matching_cache_total",
		Help: "Recommendation cache lookups by result",
	}, []string{"result"}) // result: hit, miss

	batchRefreshUsersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matching_batch_refresh_users_total",
		Help: "Users processed by the nightly batch refresh",
	})

	batchRefreshErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matching_batch_refresh_errors_total",
		Help: "Users whose batch refresh failed",
	})
)

// RecordScoreCalculation records one completed pair calculation
func RecordScoreCalculation(trigger string, score float64, seconds float64) {
	scoreCalculationsTotal.WithLabelValues(trigger).Inc()
	scoreCalculationDuration.Observe(seconds)
	scoreDistribution.Observe(score)
}

// RecordRecommendationRefresh records one completed recommendation refresh
func RecordRecommendationRefresh(trigger string, seconds float64) {
	recommendationRefreshesTotal.WithLabelValues(trigger).Inc()
	recommendationRefreshDuration.Observe(seconds)
}

// RecordCandidateSkipped counts a candidate dropped from a refresh
func RecordCandidateSkipped() {
	candidatesSkippedTotal.Inc()
}

// RecordInteraction counts one recorded interaction by type
func RecordInteraction(interactionType string) {
	interactionsTotal.WithLabelValues(interactionType).Inc()
}

// RecordCacheLookup counts a recommendation cache hit or miss
func RecordCacheLookup(hit bool) {
	if hit {
		cacheHitsTotal.WithLabelValues("hit").Inc()
	} else {
		cacheHitsTotal.WithLabelValues("miss").Inc()
	}
}

// RecordBatchUser counts one user processed by the batch refresh
func RecordBatchUser(failed bool) {
	batchRefreshUsersTotal.Inc()
	if failed {
		batchRefreshErrorsTotal.Inc()
	}
}
