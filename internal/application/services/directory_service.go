package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/providers"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
)

// DefaultUtilityRadiusKm is used when a nearby query has no positive radius
const DefaultUtilityRadiusKm = 5.0

// DirectoryService implements discovery, submission, moderation and reviews
// for campus utilities
type DirectoryService struct {
	repo       repositories.UtilityRepository
	searchRepo repositories.UtilitySearchRepository
	eventBus   providers.EventBus
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewDirectoryService creates a new directory service. searchRepo may be nil,
// in which case text search runs against the store.
func NewDirectoryService(repo repositories.UtilityRepository, searchRepo repositories.UtilitySearchRepository) *DirectoryService {
	return &DirectoryService{
		repo:       repo,
		searchRepo: searchRepo,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetEventBus enables publishing of directory events
func (s *DirectoryService) SetEventBus(eventBus providers.EventBus) {
	s.eventBus = eventBus
}

// SetMetrics enables the published-events counter
func (s *DirectoryService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// visibility returns the base filter for the caller: admins see everything
func visibility(principal *entities.Principal) entities.UtilityFilter {
	return entities.UtilityFilter{OnlyVisible: !principal.IsAdmin()}
}

// List returns utilities visible to the caller, optionally by category.
// verified narrows the listing by verification and is only open to admins.
func (s *DirectoryService) List(ctx context.Context, category string, verified *bool, principal *entities.Principal) ([]*entities.Utility, error) {
	filter := visibility(principal)
	if verified != nil {
		if !principal.IsAdmin() {
			return nil, apperrors.NewForbiddenError("only admins can filter by verification")
		}
		filter.Verified = verified
	}
	if category != "" {
		c, err := entities.ParseCategory(category)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		filter.Category = &c
	}
	return s.repo.List(ctx, filter)
}

// Nearby returns utilities within radiusKm of point, nearest first
func (s *DirectoryService) Nearby(ctx context.Context, point entities.GeoPoint, radiusKm float64, category string, principal *entities.Principal) ([]*entities.Utility, error) {
	if err := point.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if radiusKm <= 0 {
		radiusKm = DefaultUtilityRadiusKm
	}

	filter := visibility(principal)
	if category != "" {
		c, err := entities.ParseCategory(category)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		filter.Category = &c
	}

	return s.repo.QueryNear(ctx, point, radiusKm*1000, filter)
}

// Search matches query case-insensitively against name, tags and
// description. The store decides which utilities match; when a search index
// is configured its hits are ranked first and the remaining matches follow in
// store order.
func (s *DirectoryService) Search(ctx context.Context, query string, principal *entities.Principal) ([]*entities.Utility, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("search query is required")
	}
	filter := visibility(principal)

	matches, err := s.repo.QueryText(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	if s.searchRepo == nil || len(matches) < 2 {
		return matches, nil
	}

	ids, err := s.searchRepo.Search(ctx, query, filter)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("query", query).Msg("search index unavailable, using store order")
		return matches, nil
	}
	return rankByIndex(matches, ids), nil
}

// rankByIndex orders matches by their position in ids. Matches the index
// missed keep their relative order after the ranked ones; ids that are not
// matches are ignored.
func rankByIndex(matches []*entities.Utility, ids []string) []*entities.Utility {
	byID := make(map[string]*entities.Utility, len(matches))
	for _, u := range matches {
		byID[u.ID] = u
	}

	out := make([]*entities.Utility, 0, len(matches))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
			delete(byID, id)
		}
	}
	for _, u := range matches {
		if _, ok := byID[u.ID]; ok {
			out = append(out, u)
		}
	}
	return out
}

// ByCategory returns visible utilities in a category
func (s *DirectoryService) ByCategory(ctx context.Context, category string, principal *entities.Principal) ([]*entities.Utility, error) {
	if strings.TrimSpace(category) == "" {
		return nil, apperrors.NewValidationError("category is required")
	}
	return s.List(ctx, category, nil, principal)
}

// Get returns a utility. Hidden utilities are reported as not found unless
// the caller owns them or is an admin.
func (s *DirectoryService) Get(ctx context.Context, id string, principal *entities.Principal) (*entities.Utility, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.Visible() && s.AuthorizeMutation(u, principal) != nil {
		return nil, apperrors.NewNotFoundError("utility not found")
	}
	return u, nil
}

// Submit stores a new utility as pending, attributed to the caller
func (s *DirectoryService) Submit(ctx context.Context, input entities.UtilityInput, principal *entities.Principal) (*entities.Utility, error) {
	if principal == nil || principal.ID == "" {
		return nil, apperrors.NewUnauthorizedError("authentication required")
	}

	u, err := entities.NewUtility(uuid.New().String(), principal.ID, input, s.now())
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.index(ctx, u)
	s.publish(ctx, u, entities.DirectoryEventSubmitted, principal.ID, nil)
	return u, nil
}

// Update applies a patch after AuthorizeMutation allows it
func (s *DirectoryService) Update(ctx context.Context, id string, patch entities.UtilityInput, principal *entities.Principal) (*entities.Utility, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.AuthorizeMutation(u, principal); err != nil {
		return nil, err
	}

	if err := u.ApplyPatch(patch, s.now()); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.index(ctx, updated)
	s.publish(ctx, updated, entities.DirectoryEventUpdated, principal.ID, nil)
	return updated, nil
}

// Delete removes a utility after AuthorizeMutation allows it
func (s *DirectoryService) Delete(ctx context.Context, id string, principal *entities.Principal) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.AuthorizeMutation(u, principal); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.searchRepo != nil {
		if err := s.searchRepo.Delete(ctx, id); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("utility_id", id).Msg("failed to remove utility from search index")
		}
	}
	s.publish(ctx, u, entities.DirectoryEventDeleted, principal.ID, nil)
	return nil
}

// Moderate applies an admin verdict. A failed call leaves the utility unchanged.
func (s *DirectoryService) Moderate(ctx context.Context, id string, decision entities.ModerationDecision, principal *entities.Principal) (*entities.Utility, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	outcome, err := decision.Outcome()
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	u, err := s.repo.SetVerification(ctx, id, outcome)
	if err != nil {
		return nil, err
	}

	s.index(ctx, u)
	eventType := entities.DirectoryEventVerified
	payload := map[string]interface{}{}
	if outcome.State() == entities.VerificationRejected {
		eventType = entities.DirectoryEventRejected
		payload["reason"] = outcome.RejectionReason()
	}
	s.publish(ctx, u, eventType, principal.ID, payload)

	observability.LoggerFromContext(ctx).Info().
		Str("utility_id", id).
		Str("state", string(outcome.State())).
		Str("admin_id", principal.ID).
		Msg("utility moderated")
	return u, nil
}

// Review appends a review and recomputes the rating in one atomic store
// update. A reviewer may review the same utility more than once.
func (s *DirectoryService) Review(ctx context.Context, utilityID string, rating int, comment string, principal *entities.Principal) (*entities.Utility, error) {
	if principal == nil || principal.ID == "" {
		return nil, apperrors.NewUnauthorizedError("authentication required")
	}
	review, err := entities.NewReview(principal.ID, rating, comment, s.now())
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	if _, err := s.Get(ctx, utilityID, principal); err != nil {
		return nil, err
	}

	u, err := s.repo.AppendReview(ctx, utilityID, review)
	if err != nil {
		return nil, err
	}

	s.index(ctx, u)
	s.publish(ctx, u, entities.DirectoryEventReviewed, principal.ID, map[string]interface{}{
		"rating":         rating,
		"average_rating": u.Rating,
		"review_count":   len(u.Reviews),
	})
	return u, nil
}

// AuthorizeMutation allows the submitter or an admin
func (s *DirectoryService) AuthorizeMutation(u *entities.Utility, principal *entities.Principal) error {
	if principal == nil || principal.ID == "" {
		return apperrors.NewUnauthorizedError("authentication required")
	}
	if principal.IsAdmin() || principal.ID == u.AddedBy {
		return nil
	}
	return apperrors.NewUnauthorizedError("not authorized to modify this utility")
}

// Pending returns utilities awaiting moderation, newest first
func (s *DirectoryService) Pending(ctx context.Context, principal *entities.Principal) ([]*entities.Utility, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	state := entities.VerificationPending
	return s.repo.List(ctx, entities.UtilityFilter{State: &state})
}

// AdminAll returns every utility regardless of state, newest first
func (s *DirectoryService) AdminAll(ctx context.Context, principal *entities.Principal) ([]*entities.Utility, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, entities.UtilityFilter{})
}

// MySubmissions returns the caller's own utilities in any state
func (s *DirectoryService) MySubmissions(ctx context.Context, principal *entities.Principal) ([]*entities.Utility, error) {
	if principal == nil || principal.ID == "" {
		return nil, apperrors.NewUnauthorizedError("authentication required")
	}
	return s.repo.List(ctx, entities.UtilityFilter{AddedBy: principal.ID})
}

func requireAdmin(principal *entities.Principal) error {
	if principal == nil || principal.ID == "" {
		return apperrors.NewUnauthorizedError("authentication required")
	}
	if !principal.IsAdmin() {
		return apperrors.NewForbiddenError("admin access required")
	}
	return nil
}

// index refreshes the search document; failures only degrade search
func (s *DirectoryService) index(ctx context.Context, u *entities.Utility) {
	if s.searchRepo == nil {
		return
	}
	if err := s.searchRepo.Index(ctx, u); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("utility_id", u.ID).Msg("failed to index utility")
	}
}

// publish sends the event to the directory channel and the submitter's
// channel. Publishing is best effort.
func (s *DirectoryService) publish(ctx context.Context, u *entities.Utility, eventType entities.DirectoryEventType, actorID string, payload map[string]interface{}) {
	if s.eventBus == nil {
		return
	}
	event := entities.NewDirectoryEvent(u, eventType, actorID, payload)
	for _, channel := range []string{providers.EventChannelUtilities, providers.GetSubmitterChannel(u.AddedBy)} {
		if err := s.eventBus.Publish(ctx, channel, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("channel", channel).
				Str("event_type", string(eventType)).
				Str("utility_id", u.ID).
				Msg("failed to publish directory event")
			continue
		}
		observability.RecordEventPublished(ctx, s.metrics, string(eventType))
	}
}
