package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zatekoja/campuslink/backend/internal/api/middleware"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/providers"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/observability"
)

const heartbeatInterval = 30 * time.Second

// regionFilter restricts a stream to events located within a radius
type regionFilter struct {
	center       entities.GeoPoint
	radiusMeters float64
}

func (f *regionFilter) allows(event *entities.DirectoryEvent) bool {
	return f == nil || f.center.WithinRadius(event.Location, f.radiusMeters)
}

// SSEHandler handles Server-Sent Events for live directory updates
type SSEHandler struct {
	eventBus  providers.EventBus
	clients   map[string]map[chan *entities.DirectoryEvent]bool // channel -> clients
	mu        sync.RWMutex
	heartbeat time.Duration
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		clients:   make(map[string]map[chan *entities.DirectoryEvent]bool),
		heartbeat: heartbeatInterval,
	}
}

// StreamUtilityUpdates handles GET /api/events/utilities[?latitude=&longitude=&radiusKm=]
// Coordinates narrow the stream to a region. Admins receive every event;
// everyone else only events about publicly visible utilities.
func (h *SSEHandler) StreamUtilityUpdates(w http.ResponseWriter, r *http.Request) {
	lat, hasLat, err := queryFloat(r, "latitude")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	lon, hasLon, err := queryFloat(r, "longitude")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	radiusKm, _, err := queryFloat(r, "radiusKm")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	var region *regionFilter
	if hasLat && hasLon {
		center := entities.GeoPoint{Longitude: lon, Latitude: lat}
		if err := center.Validate(); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if radiusKm <= 0 {
			radiusKm = 5
		}
		region = &regionFilter{center: center, radiusMeters: radiusKm * 1000}
	}

	principal := middleware.PrincipalFromContext(r.Context())
	admin := principal.IsAdmin()
	h.stream(w, r, providers.EventChannelUtilities, func(event *entities.DirectoryEvent) bool {
		return (admin || event.Public) && region.allows(event)
	})
}

// StreamMySubmissions handles GET /api/events/mine: every event about the
// caller's own utilities
func (h *SSEHandler) StreamMySubmissions(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	h.stream(w, r, providers.GetSubmitterChannel(principal.ID), func(*entities.DirectoryEvent) bool { return true })
}

func (h *SSEHandler) stream(w http.ResponseWriter, r *http.Request, channel string, accept func(*entities.DirectoryEvent) bool) {
	logger := observability.LoggerFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventChan, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		logger.Error().Err(err).Str("channel", channel).Msg("failed to subscribe to channel")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	clientChan := make(chan *entities.DirectoryEvent, 50)
	h.registerClient(channel, clientChan)
	defer h.unregisterClient(channel, clientChan)

	h.sendEvent(w, "connected", map[string]interface{}{
		"channel":   channel,
		"timestamp": time.Now(),
	})
	flusher.Flush()

	go h.forwardEvents(r.Context(), eventChan, clientChan, accept)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Str("channel", channel).Msg("client disconnected from directory stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event := <-clientChan:
			h.sendEvent(w, string(event.Type), event)
			flusher.Flush()
		}
	}
}

// forwardEvents copies accepted events to the client channel, dropping them
// when the client falls behind
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.DirectoryEvent, clientChan chan<- *entities.DirectoryEvent, accept func(*entities.DirectoryEvent) bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil || !accept(event) {
				continue
			}
			select {
			case clientChan <- event:
			default:
			}
		}
	}
}

func (h *SSEHandler) registerClient(channel string, clientChan chan *entities.DirectoryEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[channel] == nil {
		h.clients[channel] = make(map[chan *entities.DirectoryEvent]bool)
	}
	h.clients[channel][clientChan] = true
}

func (h *SSEHandler) unregisterClient(channel string, clientChan chan *entities.DirectoryEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[channel]; exists {
		delete(clients, clientChan)
		if len(clients) == 0 {
			delete(h.clients, channel)
		}
	}
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		observability.GetLogger().Error().Err(err).Msg("failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
