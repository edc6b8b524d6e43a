// internal/matching/handlers.go

package matching

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/roomatch/roomatch-backend/internal/auth"
	"github.com/roomatch/roomatch-backend/internal/common/utils"
	"github.com/roomatch/roomatch-backend/internal/profile"
)

// Handlers exposes the matching engine over HTTP
type Handlers struct {
	service Service
	logger  *zap.Logger
}

func NewHandlers(service Service, logger *zap.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// GetCompatibility handles GET /compatibility/{userId}
func (h *Handlers) GetCompatibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	otherID, err := pathID(r, "userId")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	detail, err := h.service.GetCompatibility(r.Context(), userID, otherID)
	if err != nil {
		h.respondServiceError(w, err, userID)
		return
	}

	utils.RespondWithData(w, http.StatusOK, detail)
}

// GetRecommendations handles GET /recommendations?limit=&refresh=
func (h *Handlers) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}
	refresh := r.URL.Query().Get("refresh") == "true"

	recs, err := h.service.GetRecommendations(r.Context(), userID, limit, refresh)
	if err != nil {
		h.respondServiceError(w, err, userID)
		return
	}

	utils.RespondWithData(w, http.StatusOK, RecommendationsResponse{
		Recommendations: recs,
		Count:           len(recs),
	})
}

// GenerateRecommendations handles POST /recommendations/generate
func (h *Handlers) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req GenerateRecommendationsRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	recs, err := h.service.GenerateRecommendations(r.Context(), userID, req.Limit, "api")
	if err != nil {
		h.respondServiceError(w, err, userID)
		return
	}

	utils.RespondWithData(w, http.StatusOK, RecommendationsResponse{
		Recommendations: recs,
		Count:           len(recs),
	})
}

// MarkViewed handles POST /recommendations/{id}/view
func (h *Handlers) MarkViewed(w http.ResponseWriter, r *http.Request) {
	h.markRecommendation(w, r, h.service.MarkRecommendationViewed, "Recommendation marked as viewed")
}

// MarkContacted handles POST /recommendations/{id}/contact
func (h *Handlers) MarkContacted(w http.ResponseWriter, r *http.Request) {
	h.markRecommendation(w, r, h.service.MarkRecommendationContacted, "Recommendation marked as contacted")
}

// Dismiss handles POST /recommendations/{id}/dismiss
func (h *Handlers) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.markRecommendation(w, r, h.service.DismissRecommendation, "Recommendation dismissed")
}

func (h *Handlers) markRecommendation(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id, userID int64) error, message string) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	recommendationID, err := pathID(r, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid recommendation id")
		return
	}

	if err := op(r.Context(), recommendationID, userID); err != nil {
		h.respondServiceError(w, err, userID)
		return
	}

	utils.MessageResponse(w, message, http.StatusOK)
}

// RecordInteraction handles POST /interactions
func (h *Handlers) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req RecordInteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	interaction, err := h.service.RecordInteraction(r.Context(), userID, req.TargetUserID, req.Type, req.WasRecommended, Metadata(req.Metadata))
	if err != nil {
		h.respondServiceError(w, err, userID)
		return
	}

	utils.RespondWithData(w, http.StatusCreated, interaction)
}

// GetStats handles GET /stats
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	stats, err := h.service.GetStats(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err, userID)
		return
	}

	utils.RespondWithData(w, http.StatusOK, stats)
}

func (h *Handlers) respondServiceError(w http.ResponseWriter, err error, userID int64) {
	switch {
	case errors.Is(err, ErrSameUser):
		utils.RespondWithError(w, http.StatusBadRequest, "Cannot match a user with themselves")
	case errors.Is(err, ErrInvalidInteractionType):
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid interaction type")
	case errors.Is(err, profile.ErrProfileNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Profile not found")
	case errors.Is(err, profile.ErrUserNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, ErrRecommendationNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Recommendation not found")
	default:
		h.logger.Error("matching request failed", zap.Int64("user_id", userID), zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}
