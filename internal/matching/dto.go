// internal/matching/dto.go

package matching

// RecordInteractionRequest is the payload for recording one interaction
type RecordInteractionRequest struct {
	TargetUserID   int64                  `json:"target_user_id" validate:"required,gt=0"`
	Type           string                 `json:"interaction_type" validate:"required,oneof=view_profile send_message like_profile dismiss_recommendation report_user block_user"`
	WasRecommended bool                   `json:"was_recommended,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// GenerateRecommendationsRequest is the payload for an explicit regenerate
type GenerateRecommendationsRequest struct {
	Limit int `json:"limit,omitempty" validate:"omitempty,gt=0,lte=50"`
}

// RecommendationsResponse wraps a recommendation listing
type RecommendationsResponse struct {
	Recommendations []*Recommendation `json:"recommendations"`
	Count           int               `json:"count"`
}
