package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"boraha-concierge/internal/concierge"
	"boraha-concierge/internal/domain"
)

const (
	correlationHeader    = "X-Correlation-Id"
	defaultMaxMessageLen = 1000
)

// SessionStore is the registry of live concierge sessions.
type SessionStore interface {
	Create() (string, *concierge.Session, error)
	Get(id string) (*concierge.Session, bool)
	Delete(id string) bool
	Sweep() int
}

// CatalogReader exposes the static catalog.
type CatalogReader interface {
	concierge.Catalog
	Room(id string) (domain.Room, bool)
	GuestRoom(id string) (domain.Room, bool)
	Offer(id string) (domain.Offer, bool)
	Event(id string) (domain.Event, bool)
}

type Handler struct {
	sessions      SessionStore
	catalog       CatalogReader
	maxMessageLen int
	logger        *slog.Logger
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type sendRequest struct {
	Message string `json:"message"`
}

type sessionResponse struct {
	SessionID string           `json:"sessionId"`
	State     string           `json:"state"`
	Busy      bool             `json:"busy"`
	Messages  []domain.Message `json:"messages"`
}

// sendResponse carries the finished turn, or only the user message with
// Pending set when the caller went away before the answer arrived.
type sendResponse struct {
	SessionID string          `json:"sessionId"`
	Reply     string          `json:"reply,omitempty"`
	Pending   bool            `json:"pending,omitempty"`
	User      domain.Message  `json:"user"`
	Assistant *domain.Message `json:"assistant,omitempty"`
}

type catalogResponse struct {
	Property   domain.Property `json:"property"`
	Rooms      []domain.Room   `json:"rooms"`
	GuestRooms []domain.Room   `json:"guestRooms"`
	Offers     []domain.Offer  `json:"offers"`
	Events     []domain.Event  `json:"events"`
}

func NewHandler(sessions SessionStore, catalog CatalogReader, maxMessageLen int, logger *slog.Logger) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("handler: session store must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("handler: catalog must not be nil")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessageLen
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:      sessions,
		catalog:       catalog,
		maxMessageLen: maxMessageLen,
		logger:        logger,
	}, nil
}

// Handle serves one API Gateway proxy request.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", correlationID)

	if n := h.sessions.Sweep(); n > 0 {
		logger.Debug("expired idle sessions", "count", n)
	}

	resp := h.route(ctx, req, logger)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = correlationID

	logger.Info("request handled", "method", req.HTTPMethod, "path", req.Path, "status", resp.StatusCode)
	return resp, nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayProxyRequest, logger *slog.Logger) events.APIGatewayProxyResponse {
	segs := splitPath(req.Path)
	method := strings.ToUpper(req.HTTPMethod)

	switch {
	case len(segs) == 1 && segs[0] == "health":
		if method != http.MethodGet {
			return methodNotAllowed()
		}
		return jsonResponse(http.StatusOK, map[string]string{"status": "ok"})

	case len(segs) >= 1 && segs[0] == "catalog":
		if method != http.MethodGet {
			return methodNotAllowed()
		}
		return h.handleCatalog(segs[1:])

	case len(segs) == 1 && segs[0] == "sessions":
		if method != http.MethodPost {
			return methodNotAllowed()
		}
		return h.handleCreateSession(logger)

	case len(segs) == 2 && segs[0] == "sessions":
		switch method {
		case http.MethodGet:
			return h.handleGetSession(segs[1])
		case http.MethodDelete:
			return h.handleDeleteSession(segs[1])
		}
		return methodNotAllowed()

	case len(segs) == 3 && segs[0] == "sessions" && segs[2] == "messages":
		if method != http.MethodPost {
			return methodNotAllowed()
		}
		return h.handleSend(ctx, segs[1], req.Body, logger)

	case len(segs) == 3 && segs[0] == "sessions" && segs[2] == "reset":
		if method != http.MethodPost {
			return methodNotAllowed()
		}
		return h.handleReset(segs[1])
	}
	return errorJSON(&concierge.Error{Code: concierge.ErrorNotFound, Reason: "route_not_found"})
}

func (h *Handler) handleCreateSession(logger *slog.Logger) events.APIGatewayProxyResponse {
	id, s, err := h.sessions.Create()
	if err != nil {
		logger.Error("failed to create session", "err", err)
		return errorJSON(err)
	}
	return jsonResponse(http.StatusCreated, viewSession(id, s))
}

func (h *Handler) handleGetSession(id string) events.APIGatewayProxyResponse {
	s, ok := h.sessions.Get(id)
	if !ok {
		return sessionNotFound()
	}
	return jsonResponse(http.StatusOK, viewSession(id, s))
}

func (h *Handler) handleDeleteSession(id string) events.APIGatewayProxyResponse {
	if !h.sessions.Delete(id) {
		return sessionNotFound()
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}
}

func (h *Handler) handleReset(id string) events.APIGatewayProxyResponse {
	s, ok := h.sessions.Get(id)
	if !ok {
		return sessionNotFound()
	}
	s.Reset()
	return jsonResponse(http.StatusOK, viewSession(id, s))
}

func (h *Handler) handleSend(ctx context.Context, id, body string, logger *slog.Logger) events.APIGatewayProxyResponse {
	s, ok := h.sessions.Get(id)
	if !ok {
		return sessionNotFound()
	}

	var in sendRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return errorJSON(&concierge.Error{Code: concierge.ErrorInvalidInput, Reason: "invalid_body", Err: err})
	}
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return errorJSON(&concierge.Error{Code: concierge.ErrorInvalidInput, Reason: "empty_message"})
	}
	if utf8.RuneCountInString(text) > h.maxMessageLen {
		return errorJSON(&concierge.Error{Code: concierge.ErrorInvalidInput, Reason: "message_too_long"})
	}
	if s.Busy() {
		return errorJSON(&concierge.Error{Code: concierge.ErrorBusy, Reason: "send_in_flight"})
	}

	// The exchange runs detached from ctx: an aborted request still lets the
	// session record the real answer.
	reply := s.SendAsync(ctx, text)
	if _, err := reply.Wait(ctx); err != nil {
		logger.Warn("caller stopped waiting for the concierge reply", "session_id", id, "err", err)
		return jsonResponse(http.StatusAccepted, sendResponse{
			SessionID: id,
			Pending:   true,
			User:      reply.User(),
		})
	}
	assistant := reply.Message()
	return jsonResponse(http.StatusOK, sendResponse{
		SessionID: id,
		Reply:     assistant.Text,
		User:      reply.User(),
		Assistant: &assistant,
	})
}

func (h *Handler) handleCatalog(rest []string) events.APIGatewayProxyResponse {
	c := h.catalog
	if len(rest) == 0 {
		return jsonResponse(http.StatusOK, catalogResponse{
			Property:   c.Property(),
			Rooms:      c.Rooms(),
			GuestRooms: c.GuestRooms(),
			Offers:     c.Offers(),
			Events:     c.Events(),
		})
	}
	if len(rest) > 2 {
		return catalogNotFound()
	}

	kind := rest[0]
	if len(rest) == 1 {
		switch kind {
		case "rooms":
			return jsonResponse(http.StatusOK, c.Rooms())
		case "guest-rooms":
			return jsonResponse(http.StatusOK, c.GuestRooms())
		case "offers":
			return jsonResponse(http.StatusOK, c.Offers())
		case "events":
			return jsonResponse(http.StatusOK, c.Events())
		}
		return catalogNotFound()
	}

	id := rest[1]
	var (
		item  any
		found bool
	)
	switch kind {
	case "rooms":
		item, found = c.Room(id)
	case "guest-rooms":
		item, found = c.GuestRoom(id)
	case "offers":
		item, found = c.Offer(id)
	case "events":
		item, found = c.Event(id)
	}
	if !found {
		return catalogNotFound()
	}
	return jsonResponse(http.StatusOK, item)
}

func viewSession(id string, s *concierge.Session) sessionResponse {
	return sessionResponse{
		SessionID: id,
		State:     s.State().String(),
		Busy:      s.Busy(),
		Messages:  s.Transcript(),
	}
}

func sessionNotFound() events.APIGatewayProxyResponse {
	return errorJSON(&concierge.Error{Code: concierge.ErrorNotFound, Reason: "session_not_found"})
}

func catalogNotFound() events.APIGatewayProxyResponse {
	return errorJSON(&concierge.Error{Code: concierge.ErrorNotFound, Reason: "catalog_item_not_found"})
}

func methodNotAllowed() events.APIGatewayProxyResponse {
	return jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED"})
}

func errorJSON(err error) events.APIGatewayProxyResponse {
	var cerr *concierge.Error
	if !errors.As(err, &cerr) {
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(concierge.ErrorInternal)})
	}
	return jsonResponse(statusFor(cerr.Code), errorResponse{Error: string(cerr.Code), Reason: cerr.Reason})
}

func statusFor(code concierge.ErrorCode) int {
	switch code {
	case concierge.ErrorInvalidInput:
		return http.StatusBadRequest
	case concierge.ErrorNotFound:
		return http.StatusNotFound
	case concierge.ErrorBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func jsonResponse(status int, payload any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
