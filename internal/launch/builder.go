// Package launch composes the URL that opens a document in the editing host.
package launch

import (
	"net/url"
	"strings"

	"github.com/jun/wopigate/internal/model"
)

// EncodeWopiParam encodes a value for use as a launch URL query parameter.
func EncodeWopiParam(value string) string {
	return url.QueryEscape(value)
}

// Builder holds the gateway-wide launch parameters.
type Builder struct {
	// PublicURL is the gateway as reached by the editing host, without trailing slash.
	PublicURL string
	Lang      string
}

// NewBuilder creates a Builder.
func NewBuilder(publicURL, lang string) *Builder {
	return &Builder{
		PublicURL: strings.TrimRight(publicURL, "/"),
		Lang:      lang,
	}
}

// WopiSrc returns the WOPI file endpoint of documentID.
func (b *Builder) WopiSrc(documentID string) string {
	return b.PublicURL + "/wopi/files/" + documentID
}

// BuildURL appends the launch parameters for doc and tokenID to actionURL.
func (b *Builder) BuildURL(actionURL string, doc *model.Document, tokenID string) string {
	var sb strings.Builder
	sb.WriteString(actionURL)
	switch {
	case strings.HasSuffix(actionURL, "?"), strings.HasSuffix(actionURL, "&"):
	case strings.Contains(actionURL, "?"):
		sb.WriteByte('&')
	default:
		sb.WriteByte('?')
	}

	sb.WriteString("WOPISrc=")
	sb.WriteString(EncodeWopiParam(b.WopiSrc(doc.ID)))
	sb.WriteString("&title=")
	sb.WriteString(EncodeWopiParam(doc.Name))
	sb.WriteString("&access_token=")
	sb.WriteString(EncodeWopiParam(tokenID))
	sb.WriteString("&lang=")
	sb.WriteString(EncodeWopiParam(b.Lang))
	sb.WriteString("&closebutton=0&revisionhistory=1")
	return sb.String()
}
