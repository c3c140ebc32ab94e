package model

import "time"

// Right is a permission a session may hold on a document.
type Right string

const (
	// RightRead allows reading metadata and content.
	RightRead Right = "read"
	// RightContrib allows writing content.
	RightContrib Right = "contrib"
)

// Token binds one editing interaction to a platform session and a document.
type Token struct {
	ID          string    `json:"_id" dynamodbav:"token_id"`
	SessionID   string    `json:"session" dynamodbav:"session_id"`
	DocumentID  string    `json:"document" dynamodbav:"document_id"`
	UserID      string    `json:"user" dynamodbav:"user_id"`
	DisplayName string    `json:"displayName" dynamodbav:"display_name"`
	Date        time.Time `json:"date" dynamodbav:"date"`
}

// Session is a live platform session as returned by the session provider.
type Session struct {
	ID          string   `json:"id" dynamodbav:"session_id"`
	UserID      string   `json:"userId" dynamodbav:"user_id"`
	DisplayName string   `json:"username" dynamodbav:"display_name"`
	GroupIDs    []string `json:"groupsIds" dynamodbav:"group_ids"`
	ExpiresAt   int64    `json:"expiresAt" dynamodbav:"expires_at"` // TTL (Unix timestamp)
}

// Share grants rights on a document to a user or a group.
type Share struct {
	UserID  string `json:"userId,omitempty" dynamodbav:"user_id,omitempty"`
	GroupID string `json:"groupId,omitempty" dynamodbav:"group_id,omitempty"`
	Read    bool   `json:"read" dynamodbav:"read"`
	Contrib bool   `json:"contrib" dynamodbav:"contrib"`
}

// Allows reports whether the share carries the given right.
func (s Share) Allows(right Right) bool {
	switch right {
	case RightRead:
		return s.Read
	case RightContrib:
		return s.Contrib
	}
	return false
}

// Metadata describes the stored content of a document.
type Metadata struct {
	Name        string `json:"name" dynamodbav:"name"`
	Filename    string `json:"filename" dynamodbav:"filename"`
	ContentType string `json:"content-type" dynamodbav:"content_type"`
	Size        int64  `json:"size" dynamodbav:"size"`
}

// Document is a platform document. The gateway references it, never owns it.
type Document struct {
	ID        string   `json:"_id" dynamodbav:"pk"`
	Name      string   `json:"name" dynamodbav:"name"`
	Owner     string   `json:"owner" dynamodbav:"owner"`
	OwnerName string   `json:"ownerName" dynamodbav:"owner_name"`
	Metadata  Metadata `json:"metadata" dynamodbav:"metadata"`
	Modified  string   `json:"modified" dynamodbav:"modified"` // platform layout, see NativeDateLayout
	File      string   `json:"file" dynamodbav:"file"`
	Revision  string   `json:"revision,omitempty" dynamodbav:"revision,omitempty"`
	Shared    []Share  `json:"shared,omitempty" dynamodbav:"shared,omitempty"`
}

// NativeDateLayout is the date layout used by the document store.
const NativeDateLayout = "2006-01-02 15:04.05.000"

// Grants reports whether the user, directly or through one of groupIDs,
// may exercise right on the document.
func (d *Document) Grants(userID string, groupIDs []string, right Right) bool {
	if d.Owner == userID {
		return true
	}
	for _, s := range d.Shared {
		if !s.Allows(right) {
			continue
		}
		if s.UserID != "" && s.UserID == userID {
			return true
		}
		if s.GroupID == "" {
			continue
		}
		for _, g := range groupIDs {
			if s.GroupID == g {
				return true
			}
		}
	}
	return false
}

// DiscoveryRecord maps a content type and action to a launch URL of the editing host.
type DiscoveryRecord struct {
	ContentType string `json:"content-type" dynamodbav:"content_type"`
	Extension   string `json:"extension" dynamodbav:"extension"`
	Action      string `json:"action" dynamodbav:"action"`
	URL         string `json:"url" dynamodbav:"url"`
}

// Capability is the public view of a DiscoveryRecord.
type Capability struct {
	ContentType string `json:"content-type"`
	Extension   string `json:"extension"`
}

// TraceEvent is an audit entry emitted when a user saves a new version.
type TraceEvent struct {
	ID          string    `json:"id" dynamodbav:"pk"`
	Action      string    `json:"action" dynamodbav:"action"`
	UserID      string    `json:"userId" dynamodbav:"user_id"`
	ResourceID  string    `json:"resourceId" dynamodbav:"resource_id"`
	Extension   string    `json:"extension" dynamodbav:"extension"`
	Application string    `json:"application" dynamodbav:"application"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"created_at"`
}
