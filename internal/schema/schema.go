// Package schema fetches and caches the taxonomy used to classify
// annotation records: the head and tail category lists.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"go-region-annotator/internal/apperrors"
	"go-region-annotator/internal/logger"
)

// Schema is the external taxonomy. Read-only to callers; replaced
// wholesale on a successful refetch.
type Schema struct {
	Head []string `json:"head"`
	Tail []string `json:"tail"`
}

// wireSchema covers the recognized key spellings across schema sources.
type wireSchema struct {
	OK       bool     `json:"ok"`
	Head     []string `json:"head"`
	Tail     []string `json:"tail"`
	HeadTabs []string `json:"headTabs"`
	TailTabs []string `json:"tailTabs"`
}

func (w wireSchema) normalize() Schema {
	s := Schema{Head: w.Head, Tail: w.Tail}
	if len(s.Head) == 0 {
		s.Head = w.HeadTabs
	}
	if len(s.Tail) == 0 {
		s.Tail = w.TailTabs
	}
	return s
}

// valid requires at least one of the two category collections.
func (s Schema) valid() bool {
	return len(s.Head) > 0 || len(s.Tail) > 0
}

// Cache walks an ordered candidate endpoint list and keeps the last
// structurally valid schema for offline fallback.
type Cache struct {
	httpClient *http.Client
	candidates []string
	log        *logrus.Entry

	mu     sync.Mutex
	cached *Schema
}

// NewCache creates a cache over the given candidate endpoints, tried in
// order on every fetch.
func NewCache(httpClient *http.Client, candidates []string) *Cache {
	return &Cache{
		httpClient: httpClient,
		candidates: candidates,
		log:        logger.ForComponent("schema"),
	}
}

// Fetch returns the first structurally valid schema from the candidate
// list. When every candidate fails it degrades to the cached copy; with no
// cache it fails explicitly rather than returning an empty schema.
func (c *Cache) Fetch(ctx context.Context) (Schema, error) {
	var lastErr error
	for _, url := range c.candidates {
		s, err := c.fetchOne(ctx, url)
		if err != nil {
			lastErr = err
			c.log.WithError(err).WithField("endpoint", url).Debug("Schema candidate failed")
			continue
		}
		c.mu.Lock()
		c.cached = &s
		c.mu.Unlock()
		c.log.WithFields(logrus.Fields{
			"endpoint": url,
			"head":     len(s.Head),
			"tail":     len(s.Tail),
		}).Info("Schema refreshed")
		return s, nil
	}

	if cached, ok := c.Cached(); ok {
		c.log.WithError(lastErr).Warn("All schema endpoints failed, serving cached schema")
		return cached, nil
	}
	return Schema{}, apperrors.NewTransportError("no schema available", lastErr)
}

// Cached returns the last good schema, if any.
func (c *Cache) Cached() (Schema, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return Schema{}, false
	}
	return *c.cached, true
}

func (c *Cache) fetchOne(ctx context.Context, url string) (Schema, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Schema{}, fmt.Errorf("build schema request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Schema{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Schema{}, fmt.Errorf("schema endpoint returned status %d", resp.StatusCode)
	}

	var wire wireSchema
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Schema{}, fmt.Errorf("decode schema: %w", err)
	}
	s := wire.normalize()
	if !s.valid() {
		return Schema{}, fmt.Errorf("schema has no category collections")
	}
	return s, nil
}
