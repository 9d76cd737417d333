// Package assignment discovers the homework assignment run token a lesson belongs to.
package assignment

import (
	"net/url"
	"sort"
	"strings"
	"sync"

	"wordrecords/internal/storage"
)

// URL query parameters that may carry a run token, in priority order
var queryParams = []string{"assignment_run", "run_token", "run"}

// Globals returns host-supplied values that may carry a token
type Globals func() map[string]any

// Context resolves the active assignment run token
type Context struct {
	store   storage.Store
	globals Globals

	mu       sync.RWMutex
	urlToken string
}

// New reads the token from pageURL, persisting it when found. store and globals may be nil.
func New(pageURL string, store storage.Store, globals Globals) *Context {
	c := &Context{store: store, globals: globals}
	if tok := tokenFromURL(pageURL); tok != "" {
		c.urlToken = tok
		if store != nil {
			store.Set(storage.KeyAssignmentRun, tok)
		}
	}
	return c
}

// Get returns the best-known token or "".
// Order: page URL, persisted storage, then host globals.
func (c *Context) Get() string {
	c.mu.RLock()
	tok := c.urlToken
	c.mu.RUnlock()
	if tok != "" {
		return tok
	}
	if c.store != nil {
		if v, ok := c.store.Get(storage.KeyAssignmentRun); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return c.fromGlobals()
}

// Persist records a token discovered after construction
func (c *Context) Persist(token string) {
	token = strings.TrimSpace(token)
	if token == "" || c.store == nil {
		return
	}
	c.store.Set(storage.KeyAssignmentRun, token)
}

func (c *Context) fromGlobals() string {
	if c.globals == nil {
		return ""
	}
	values := c.globals()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := values[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func tokenFromURL(pageURL string) string {
	if pageURL == "" {
		return ""
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, name := range queryParams {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			return v
		}
	}
	return ""
}
