package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/wopigate/internal/adapter"
	"github.com/jun/wopigate/internal/audit"
	"github.com/jun/wopigate/internal/model"
	"github.com/jun/wopigate/internal/token"
	"golang.org/x/sync/errgroup"
)

// Save flag headers sent by the editing host on PutFile.
var (
	autosaveHeaders = []string{"X-LOOL-WOPI-IsAutosave", "X-COOL-WOPI-IsAutosave"}
	exitSaveHeaders = []string{"X-LOOL-WOPI-IsExitSave", "X-COOL-WOPI-IsExitSave"}
)

// WopiTimeLayout is the timestamp layout of CheckFileInfo responses.
const WopiTimeLayout = "2006-01-02T15:04:05.000Z"

var errDocumentFetch = errors.New("document fetch failed")

// WopiHandler serves the WOPI file endpoints called by the editing host,
// plus user-initiated token revocation.
type WopiHandler struct {
	tokens       *token.Manager
	access       token.Authorizer
	documents    adapter.DocumentStore
	blobs        adapter.BlobStore
	tracer       audit.Tracer
	sessions     adapter.SessionProvider
	jwtSecret    string
	capabilities map[string]interface{}
	revoke       bool
	logger       *slog.Logger
}

// WopiConfig carries the gateway-wide WOPI settings.
type WopiConfig struct {
	JWTSecret string
	// Capabilities are merged into every CheckFileInfo response.
	Capabilities map[string]interface{}
	// RevokeTokens disables user revocation when false.
	RevokeTokens bool
}

// NewWopiHandler creates a new WopiHandler.
func NewWopiHandler(
	tokens *token.Manager,
	access token.Authorizer,
	documents adapter.DocumentStore,
	blobs adapter.BlobStore,
	tracer audit.Tracer,
	sessions adapter.SessionProvider,
	cfg WopiConfig,
	logger *slog.Logger,
) *WopiHandler {
	return &WopiHandler{
		tokens:       tokens,
		access:       access,
		documents:    documents,
		blobs:        blobs,
		tracer:       tracer,
		sessions:     sessions,
		jwtSecret:    cfg.JWTSecret,
		capabilities: cfg.Capabilities,
		revoke:       cfg.RevokeTokens,
		logger:       logger,
	}
}

// CheckFileInfo returns the document metadata the editing host needs to open it.
func (h *WopiHandler) CheckFileInfo(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	documentID := req.PathParameters["id"]
	v := h.tokens.Validate(ctx, req.QueryStringParameters["access_token"], documentID, model.RightRead)
	if !v.Valid {
		h.logger.Info("check file info rejected", "document_id", documentID, "reason", v.Reason)
		return unauthorized(), nil
	}

	var (
		doc      *model.Document
		canWrite bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := h.documents.Get(gctx, documentID)
		if err != nil {
			return errors.Join(errDocumentFetch, err)
		}
		doc = d
		return nil
	})
	g.Go(func() error {
		can, err := h.access.Can(gctx, v.Token.SessionID, documentID, model.RightContrib)
		canWrite = can
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, errDocumentFetch) {
			h.logger.Warn("check file info: document unavailable", "document_id", documentID, "err", err)
			return badRequest(), nil
		}
		h.logger.Error("check file info: write check failed", "document_id", documentID, "err", err)
		return serverError(), nil
	}

	modified := WopiTime(doc.Modified)
	info := map[string]interface{}{
		"BaseFileName":     doc.Name,
		"Size":             doc.Metadata.Size,
		"OwnerId":          doc.Owner,
		"UserId":           v.Token.UserID,
		"UserFriendlyName": v.Token.DisplayName,
		"Version":          modified,
		"LastModifiedTime": modified,
		"UserCanWrite":     canWrite,
	}
	for k, val := range h.capabilities {
		info[k] = val
	}

	body, err := json.Marshal(info)
	if err != nil {
		return serverError(), err
	}
	return jsonResponse(http.StatusOK, body), nil
}

// GetFile returns the current content of the document.
func (h *WopiHandler) GetFile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	documentID := req.PathParameters["id"]
	v := h.tokens.Validate(ctx, req.QueryStringParameters["access_token"], documentID, model.RightRead)
	if !v.Valid {
		h.logger.Info("get file rejected", "document_id", documentID, "reason", v.Reason)
		return unauthorized(), nil
	}

	doc, err := h.documents.Get(ctx, documentID)
	if err != nil {
		h.logger.Warn("get file: document unavailable", "document_id", documentID, "err", err)
		return badRequest(), nil
	}

	content, err := h.blobs.Get(ctx, doc.File)
	if err != nil {
		h.logger.Error("get file: blob read failed", "document_id", documentID, "file", doc.File, "err", err)
		return serverError(), nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":              "application/octet-stream",
			"Content-Transfer-Encoding": "Binary",
			"Content-Disposition":       mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}),
		},
		Body:            base64.StdEncoding.EncodeToString(content),
		IsBase64Encoded: true,
	}, nil
}

// PutFile stores a new version of the document.
//
// Autosaves and exit saves only move the revision pointer. A manual save
// replaces the content pointer and metadata and is traced. An exit save is
// accepted even when the token no longer validates, so that closing the
// editor never drops the last edits; the token is then revoked, provided it
// was issued for this document.
func (h *WopiHandler) PutFile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	documentID := req.PathParameters["id"]
	tokenID := req.QueryStringParameters["access_token"]

	if override := getHeader(req, "X-WOPI-Override"); override != "" && !strings.EqualFold(override, "PUT") {
		return badRequest(), nil
	}
	isAutosave := headerBool(req, autosaveHeaders...)
	isExitSave := headerBool(req, exitSaveHeaders...)

	v := h.tokens.Validate(ctx, tokenID, documentID, model.RightContrib)
	if !v.Valid {
		if !isExitSave {
			h.logger.Info("put file rejected", "document_id", documentID, "reason", v.Reason)
			return unauthorized(), nil
		}
		h.logger.Warn("exit save with invalid token accepted", "document_id", documentID, "reason", v.Reason)
	}

	doc, err := h.documents.Get(ctx, documentID)
	if err != nil {
		h.logger.Warn("put file: document unavailable", "document_id", documentID, "err", err)
		return badRequest(), nil
	}

	// The body is only decoded once the request is authorized.
	content := []byte(req.Body)
	if req.IsBase64Encoded {
		content, err = base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return badRequest(), nil
		}
	}

	blob, err := h.blobs.Put(ctx, bytes.NewReader(content), doc.Metadata.ContentType, doc.Name)
	if err != nil {
		h.logger.Error("put file: blob write failed", "document_id", documentID, "err", err)
		return serverError(), nil
	}

	if isAutosave || isExitSave {
		if err := h.documents.UpdateRevision(ctx, documentID, blob.ID); err != nil {
			h.logger.Error("put file: revision update failed", "document_id", documentID, "blob_id", blob.ID, "err", err)
			return serverError(), nil
		}
		if isExitSave {
			h.revokeAfterExit(context.WithoutCancel(ctx), v.Token, documentID)
		}
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
	}

	if err := h.documents.UpdateContent(ctx, documentID, blob.ID, blob.Metadata); err != nil {
		h.logger.Error("put file: content update failed", "document_id", documentID, "blob_id", blob.ID, "err", err)
		return serverError(), nil
	}

	event := audit.NewVersionEvent(v.Token.UserID, documentID, doc.Name)
	if err := h.tracer.Trace(ctx, event); err != nil {
		h.logger.Warn("put file: trace failed", "document_id", documentID, "err", err)
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

// revokeAfterExit runs before the response is returned: a Lambda sandbox is
// frozen once the handler returns. Only a token bound to this document is
// revoked; failures are logged and never reach the editing host.
func (h *WopiHandler) revokeAfterExit(ctx context.Context, t *model.Token, documentID string) {
	if t == nil {
		h.logger.Warn("exit save without a token for this document, nothing revoked", "document_id", documentID)
		return
	}
	existed, err := h.tokens.Revoke(ctx, t.ID)
	if err != nil {
		h.logger.Error("failed to revoke token on exit save", "document_id", documentID, "err", err)
		return
	}
	if !existed {
		h.logger.Warn("exit save revoked no token", "document_id", documentID)
	}
}

// InvalidateToken lets a user revoke a token they were issued for a document.
func (h *WopiHandler) InvalidateToken(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if !h.revoke {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
	}

	session, err := CurrentSession(ctx, req, h.jwtSecret, h.sessions)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			h.logger.Error("invalidate token: session lookup failed", "err", err)
		}
		return unauthorized(), nil
	}

	documentID := req.PathParameters["id"]
	tokenID := req.PathParameters["token"]
	owned, err := h.tokens.OwnedByUser(ctx, session.UserID, tokenID, documentID)
	if err != nil {
		h.logger.Error("invalidate token: lookup failed", "document_id", documentID, "err", err)
		return serverError(), nil
	}
	if !owned {
		return unauthorized(), nil
	}

	if _, err := h.tokens.Revoke(ctx, tokenID); err != nil {
		h.logger.Error("invalidate token failed", "document_id", documentID, "err", err)
		return serverError(), nil
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

// DeleteTokenWithBeacon is InvalidateToken for navigator.sendBeacon, which can only POST.
func (h *WopiHandler) DeleteTokenWithBeacon(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.InvalidateToken(ctx, req)
}

// WopiTime converts a document store timestamp to the CheckFileInfo layout.
// Values that do not parse are returned unchanged.
func WopiTime(modified string) string {
	t, err := time.Parse(model.NativeDateLayout, modified)
	if err != nil {
		return modified
	}
	return t.UTC().Format(WopiTimeLayout)
}
