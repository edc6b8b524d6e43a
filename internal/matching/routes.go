// internal/matching/routes.go

package matching

import (
	"github.com/gorilla/mux"

	"github.com/roomatch/roomatch-backend/internal/auth"
)

// RegisterRoutes mounts the matching endpoints under /api/v1/matching.
// Every endpoint requires authentication.
func RegisterRoutes(router *mux.Router, handlers *Handlers, authMiddleware *auth.Middleware) {
	matching := router.PathPrefix("/api/v1/matching").Subrouter()
	matching.Use(authMiddleware.Authenticate)

	matching.HandleFunc("/compatibility/{userId:[0-9]+}", handlers.GetCompatibility).Methods("GET")

	matching.HandleFunc("/recommendations", handlers.GetRecommendations).Methods("GET")
	matching.HandleFunc("/recommendations/generate", handlers.GenerateRecommendations).Methods("POST")
	matching.HandleFunc("/recommendations/{id:[0-9]+}/view", handlers.MarkViewed).Methods("POST")
	matching.HandleFunc("/recommendations/{id:[0-9]+}/contact", handlers.MarkContacted).Methods("POST")
	matching.HandleFunc("/recommendations/{id:[0-9]+}/dismiss", handlers.Dismiss).Methods("POST")

	matching.HandleFunc("/interactions", handlers.RecordInteraction).Methods("POST")

	matching.HandleFunc("/stats", handlers.GetStats).Methods("GET")
}
