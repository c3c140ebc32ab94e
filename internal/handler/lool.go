package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/wopigate/internal/adapter"
	"github.com/jun/wopigate/internal/discovery"
	"github.com/jun/wopigate/internal/launch"
	"github.com/jun/wopigate/internal/model"
	"github.com/jun/wopigate/internal/token"
)

// LoolHandler serves the platform-facing endpoints: opening a document in
// the editing host and exposing what the host can edit.
type LoolHandler struct {
	tokens    *token.Manager
	documents adapter.DocumentStore
	sessions  adapter.SessionProvider
	discovery *discovery.Cache
	builder   *launch.Builder
	jwtSecret string
	logger    *slog.Logger
}

// NewLoolHandler creates a new LoolHandler.
func NewLoolHandler(
	tokens *token.Manager,
	documents adapter.DocumentStore,
	sessions adapter.SessionProvider,
	cache *discovery.Cache,
	builder *launch.Builder,
	jwtSecret string,
	logger *slog.Logger,
) *LoolHandler {
	return &LoolHandler{
		tokens:    tokens,
		documents: documents,
		sessions:  sessions,
		discovery: cache,
		builder:   builder,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// Open issues a token for the document and redirects to the editing host.
func (h *LoolHandler) Open(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	session, err := CurrentSession(ctx, req, h.jwtSecret, h.sessions)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			h.logger.Error("open: session lookup failed", "err", err)
		}
		return unauthorized(), nil
	}

	documentID := req.PathParameters["id"]
	doc, err := h.documents.Get(ctx, documentID)
	if err != nil {
		h.logger.Warn("open: document unavailable", "document_id", documentID, "err", err)
		return badRequest(), nil
	}

	actionURL, err := h.discovery.ActionURL(ctx, doc.Metadata.ContentType, "")
	if err != nil {
		if errors.Is(err, discovery.ErrNoAction) {
			h.logger.Info("open: content type not editable", "document_id", documentID, "content_type", doc.Metadata.ContentType)
			return badRequest(), nil
		}
		h.logger.Error("open: discovery lookup failed", "document_id", documentID, "err", err)
		return serverError(), nil
	}

	t, err := h.tokens.Issue(ctx, session, documentID)
	if err != nil {
		h.logger.Error("open: token issue failed", "document_id", documentID, "err", err)
		return serverError(), nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers:    map[string]string{"Location": h.builder.BuildURL(actionURL, doc, t.ID)},
	}, nil
}

type discoverResponse struct {
	Refreshed    bool               `json:"refreshed"`
	ActionURL    string             `json:"actionUrl"`
	Capabilities []model.Capability `json:"capabilities"`
}

// Discover refreshes the discovery cache and reports the current state.
// A failed refresh is reported in the body, never as an error status.
func (h *LoolHandler) Discover(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	resp := discoverResponse{Refreshed: true}
	if err := h.discovery.Refresh(ctx); err != nil {
		h.logger.Error("discovery refresh failed", "err", err)
		resp.Refreshed = false
	}

	base, err := h.discovery.BaseURL(ctx)
	if err != nil {
		h.logger.Error("discover: base url lookup failed", "err", err)
	}
	resp.ActionURL = base

	caps, err := h.discovery.Capabilities(ctx)
	if err != nil {
		h.logger.Error("discover: capabilities lookup failed", "err", err)
	}
	if caps == nil {
		caps = []model.Capability{}
	}
	resp.Capabilities = caps

	body, _ := json.Marshal(resp)
	return jsonResponse(http.StatusOK, body), nil
}

// Capabilities lists the content types the editing host can open.
func (h *LoolHandler) Capabilities(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	caps, err := h.discovery.Capabilities(ctx)
	if err != nil {
		h.logger.Error("capabilities lookup failed", "err", err)
		return serverError(), nil
	}
	if caps == nil {
		caps = []model.Capability{}
	}
	body, _ := json.Marshal(caps)
	return jsonResponse(http.StatusOK, body), nil
}
