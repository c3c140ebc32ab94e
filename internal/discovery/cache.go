// Package discovery learns from the editing host which content types it can
// open and through which launch URL.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jun/wopigate/internal/model"
	"golang.org/x/sync/singleflight"
)

// ErrNoAction is returned when the editing host cannot handle a content type.
var ErrNoAction = errors.New("no discovery action for content type")

// DiscoveryPath is where the editing host publishes its manifest.
const DiscoveryPath = "/hosting/discovery"

// Cache fetches the discovery manifest and answers lookups from its Store.
type Cache struct {
	serverURL string
	client    *http.Client
	store     Store
	logger    *slog.Logger
	group     singleflight.Group
}

// NewCache creates a Cache for the editing host at serverURL.
func NewCache(serverURL string, timeout time.Duration, store Store, logger *slog.Logger) *Cache {
	return &Cache{
		serverURL: strings.TrimRight(serverURL, "/"),
		client:    &http.Client{Timeout: timeout},
		store:     store,
		logger:    logger,
	}
}

// Refresh fetches the manifest and replaces the stored record set.
// On any failure the previous set is left untouched.
// Concurrent calls share a single fetch.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		return nil, c.refresh(ctx)
	})
	return err
}

func (c *Cache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+DiscoveryPath, nil)
	if err != nil {
		return fmt.Errorf("failed to build discovery request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch discovery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch discovery: status %d", resp.StatusCode)
	}

	records, err := Parse(resp.Body)
	if err != nil {
		return err
	}
	if err := c.store.Replace(ctx, records); err != nil {
		return fmt.Errorf("failed to store discovery: %w", err)
	}

	c.logger.Info("discovery refreshed", "records", len(records))
	return nil
}

// ActionURL returns the launch URL for contentType. An empty action prefers
// the edit action. It returns ErrNoAction when nothing matches.
func (c *Cache) ActionURL(ctx context.Context, contentType, action string) (string, error) {
	if contentType == "" {
		return "", fmt.Errorf("%w: empty content type", ErrNoAction)
	}
	r, err := c.store.Find(ctx, contentType, action)
	if err != nil {
		return "", fmt.Errorf("failed to look up action: %w", err)
	}
	if r == nil {
		return "", fmt.Errorf("%w: %s", ErrNoAction, contentType)
	}
	return r.URL, nil
}

// Capabilities lists the distinct (content type, extension) pairs the
// editing host advertised.
func (c *Cache) Capabilities(ctx context.Context) ([]model.Capability, error) {
	records, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list discovery: %w", err)
	}

	caps := make([]model.Capability, 0, len(records))
	seen := make(map[model.Capability]bool)
	for _, r := range records {
		cp := model.Capability{ContentType: r.ContentType, Extension: r.Extension}
		if seen[cp] {
			continue
		}
		seen[cp] = true
		caps = append(caps, cp)
	}
	return caps, nil
}

// BaseURL returns the launch endpoint of the editing host without its
// query string, or "" while nothing has been discovered.
func (c *Cache) BaseURL(ctx context.Context) (string, error) {
	records, err := c.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list discovery: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	chosen := records[0]
	for _, r := range records {
		if r.Action == DefaultAction {
			chosen = r
			break
		}
	}
	u, err := url.Parse(chosen.URL)
	if err != nil {
		return "", fmt.Errorf("invalid action url %q: %w", chosen.URL, err)
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	return u.String(), nil
}
