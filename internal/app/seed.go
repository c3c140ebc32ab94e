package app

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jun/wopigate/internal/adapter/dynamo"
	"github.com/jun/wopigate/internal/adapter/s3store"
	"github.com/jun/wopigate/internal/model"
)

const (
	demoUserID     = "demo-user-1"
	demoSessionID  = "demo-session"
	demoDocumentID = "demo-document"
)

// seedDemo stores a demo session and document in the in-memory stores and
// logs a session token for them, so DEV_MODE can be driven with curl.
func seedDemo(ctx context.Context, sessions *dynamo.SessionStore, documents *dynamo.DocumentStore, blobs *s3store.BlobStore, jwtSecret string, logger *slog.Logger) {
	sessions.PutSession(ctx, &model.Session{
		ID:          demoSessionID,
		UserID:      demoUserID,
		DisplayName: "Demo User",
		GroupIDs:    []string{"demo-group"},
	})

	blob, err := blobs.Put(ctx, bytes.NewReader([]byte("Hello from wopigate.\n")), "text/plain", "welcome.txt")
	if err != nil {
		logger.Error("failed to seed demo content", "err", err)
		return
	}
	documents.Put(ctx, &model.Document{
		ID:        demoDocumentID,
		Name:      "welcome.txt",
		Owner:     demoUserID,
		OwnerName: "Demo User",
		Metadata:  blob.Metadata,
		Modified:  time.Now().UTC().Format(model.NativeDateLayout),
		File:      blob.ID,
	})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": demoUserID,
		"sid": demoSessionID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		logger.Error("failed to sign demo session", "err", err)
		return
	}
	logger.Info("demo data seeded", "document_id", demoDocumentID, "session_token", signed)
}
