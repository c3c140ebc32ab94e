package discovery

import (
	"context"

	"github.com/jun/wopigate/internal/model"
)

// DefaultAction is preferred when a lookup names no action.
const DefaultAction = "edit"

// Store persists the discovery record set.
//
// Replace swaps the whole set: a concurrent Find or List observes either the
// previous set or the new one, never a mix. When Replace fails the previous
// set stays in place.
type Store interface {
	Replace(ctx context.Context, records []model.DiscoveryRecord) error
	// Find returns nil, nil when no record matches.
	Find(ctx context.Context, contentType, action string) (*model.DiscoveryRecord, error)
	List(ctx context.Context) ([]model.DiscoveryRecord, error)
}

// pick selects the record for contentType and action. An empty action
// prefers DefaultAction and falls back to the first match.
func pick(records []model.DiscoveryRecord, contentType, action string) *model.DiscoveryRecord {
	var fallback *model.DiscoveryRecord
	for i := range records {
		r := &records[i]
		if r.ContentType != contentType {
			continue
		}
		if action != "" {
			if r.Action == action {
				return r
			}
			continue
		}
		if r.Action == DefaultAction {
			return r
		}
		if fallback == nil {
			fallback = r
		}
	}
	return fallback
}
