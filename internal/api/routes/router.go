package routes

import (
	"net/http"
	"strings"

	"github.com/zatekoja/campuslink/backend/internal/api/handlers"
	"github.com/zatekoja/campuslink/backend/internal/api/middleware"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/observability"
)

// streamPrefix marks long-lived event streams, which bypass response caching
// and buffering middleware
const streamPrefix = "/api/events/"

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	roommateHandler   *handlers.RoommateHandler
	utilityHandler    *handlers.UtilityHandler
	universityHandler *handlers.UniversityHandler
	sseHandler        *handlers.SSEHandler

	auth            *middleware.Authenticator
	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// Options carries the optional router collaborators
type Options struct {
	SSEHandler      *handlers.SSEHandler
	CacheMiddleware *middleware.CacheMiddleware
	AllowedOrigins  []string
	Metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	roommateHandler *handlers.RoommateHandler,
	utilityHandler *handlers.UtilityHandler,
	universityHandler *handlers.UniversityHandler,
	auth *middleware.Authenticator,
	opts Options,
) *Router {
	return &Router{
		mux:               http.NewServeMux(),
		roommateHandler:   roommateHandler,
		utilityHandler:    utilityHandler,
		universityHandler: universityHandler,
		sseHandler:        opts.SSEHandler,
		auth:              auth,
		cacheMiddleware:   opts.CacheMiddleware,
		allowedOrigins:    opts.AllowedOrigins,
		metrics:           opts.Metrics,
	}
}

// public attaches the principal when a valid token is sent
func (r *Router) public(h http.HandlerFunc) http.Handler {
	return r.auth.Optional(h)
}

// protected rejects requests without a valid token
func (r *Router) protected(h http.HandlerFunc) http.Handler {
	return r.auth.Required(h)
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Roommate endpoints
	r.mux.Handle("POST /api/roommates/profile", r.protected(r.roommateHandler.UpsertProfile))
	r.mux.Handle("GET /api/roommates/profile", r.protected(r.roommateHandler.GetMyProfile))
	r.mux.Handle("DELETE /api/roommates/profile", r.protected(r.roommateHandler.DeleteProfile))
	r.mux.Handle("GET /api/roommates/profile/{userId}", r.protected(r.roommateHandler.GetProfile))
	r.mux.Handle("GET /api/roommates/all", r.protected(r.roommateHandler.ListProfiles))
	r.mux.Handle("GET /api/roommates/matches", r.protected(r.roommateHandler.Matches))

	// Utility endpoints
	r.mux.Handle("GET /api/utilities", r.public(r.utilityHandler.ListUtilities))
	r.mux.Handle("POST /api/utilities", r.protected(r.utilityHandler.CreateUtility))
	r.mux.Handle("GET /api/utilities/category/{category}", r.public(r.utilityHandler.ByCategory))
	r.mux.Handle("GET /api/utilities/search/{query}", r.public(r.utilityHandler.Search))
	r.mux.Handle("GET /api/utilities/mine", r.protected(r.utilityHandler.MySubmissions))
	r.mux.Handle("GET /api/utilities/admin/all", r.protected(r.utilityHandler.AdminAll))
	r.mux.Handle("GET /api/utilities/admin/pending", r.protected(r.utilityHandler.Pending))
	r.mux.Handle("PUT /api/utilities/admin/{id}/verify", r.protected(r.utilityHandler.Verify))
	r.mux.Handle("PUT /api/utilities/admin/{id}/reject", r.protected(r.utilityHandler.Reject))
	r.mux.Handle("POST /api/utilities/{id}/review", r.protected(r.utilityHandler.AddReview))
	r.mux.Handle("GET /api/utilities/{id}", r.public(r.utilityHandler.GetUtility))
	r.mux.Handle("PUT /api/utilities/{id}", r.protected(r.utilityHandler.UpdateUtility))
	r.mux.Handle("DELETE /api/utilities/{id}", r.protected(r.utilityHandler.DeleteUtility))

	// University endpoints
	r.mux.Handle("GET /api/universities", r.public(r.universityHandler.ListUniversities))
	r.mux.Handle("GET /api/universities/search", r.public(r.universityHandler.Search))
	r.mux.Handle("GET /api/universities/nearby", r.public(r.universityHandler.Nearby))
	r.mux.Handle("GET /api/universities/{id}", r.public(r.universityHandler.GetUniversity))
	r.mux.Handle("POST /api/universities", r.protected(r.universityHandler.CreateUniversity))
	r.mux.Handle("PUT /api/universities/{id}", r.protected(r.universityHandler.UpdateUniversity))
	r.mux.Handle("DELETE /api/universities/{id}", r.protected(r.universityHandler.DeleteUniversity))

	// Live directory streams
	if r.sseHandler != nil {
		r.mux.Handle("GET /api/events/utilities", r.public(r.sseHandler.StreamUtilityUpdates))
		r.mux.Handle("GET /api/events/mine", r.protected(r.sseHandler.StreamMySubmissions))
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = middleware.LoggingMiddleware(r.mux)
	streaming := middleware.ObservabilityMiddleware(r.metrics)(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = bypassForStreams(streaming, handler)

	// CORS wraps everything so headers are set even on cache HITs
	return middleware.CORS(r.allowedOrigins)(handler)
}

// bypassForStreams sends event stream requests to streaming and everything
// else to buffered
func bypassForStreams(streaming, buffered http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, streamPrefix) {
			streaming.ServeHTTP(w, req)
			return
		}
		buffered.ServeHTTP(w, req)
	})
}
