// Package platform defines the contracts between the crawl orchestration
// core and its per-platform collaborators. The core never parses platform
// payloads or signs requests itself; concrete clients implement Client and
// register themselves here.
package platform

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"mediacrawl/pkg/proxy"
)

// Client is one platform's API surface as consumed by the orchestrator.
// Implementations carry their own cookie jar and signing; failures must be
// reported through the pkg/errors taxonomy so the orchestrator can tell a
// block signal from a network blip.
type Client interface {
	// Platform returns the platform key, e.g. "xhs".
	Platform() string

	// Search returns one page of results for a keyword. Page numbering is
	// 1-based; searchID threads the platform's opaque pagination token
	// through consecutive pages (empty on the first call).
	Search(ctx context.Context, keyword string, page int, searchID string) (*SearchPage, error)

	// Detail fetches one item by ID. Permanent absence is reported as a
	// not-found or item-withdrawn error, never retried.
	Detail(ctx context.Context, itemID string) (*ContentItem, error)

	// CreatorInfo resolves a creator's profile.
	CreatorInfo(ctx context.Context, creatorID string) (*Creator, error)

	// CreatorContent returns one page of a creator's content list.
	CreatorContent(ctx context.Context, creatorID, cursor string) (*ContentPage, error)

	// Comments returns one page of root comments for an item.
	Comments(ctx context.Context, itemID, cursor string) (*CommentPage, error)

	// SubComments returns one page of replies under a root comment.
	SubComments(ctx context.Context, itemID, rootCommentID, cursor string) (*CommentPage, error)

	// Probe performs a lightweight authenticated API call, used as the
	// liveness fallback when cookie inspection is inconclusive.
	Probe(ctx context.Context) error

	// UpdateProxy points subsequent requests at the given lease. A nil
	// lease reverts to a direct connection.
	UpdateProxy(lease *proxy.Lease)

	// UpdateCookies replaces the client's cookie jar, called by the login
	// state machine after a successful login.
	UpdateCookies(cookies map[string]string)
}

// Signer produces signed headers for a request. Per-platform signing is
// reverse-engineered site cryptography and entirely opaque to the core.
type Signer interface {
	Sign(method, uri string, body []byte) (http.Header, error)
}

// PersistenceSink receives crawled records page by page. Save must be
// idempotent under at-least-once delivery: the orchestrator may re-deliver a
// page after a retry.
type PersistenceSink interface {
	Save(ctx context.Context, records []Record) error
}

// Factory builds a platform client. Registered by the concrete
// implementation's package, looked up by the CLI.
type Factory func() (Client, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a platform client available under the given key.
// Registering the same key twice panics, mirroring database/sql.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("platform: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("platform: Register called twice for " + name)
	}
	registry[name] = factory
}

// New builds the client registered under name.
func New(name string) (Client, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("platform %q is not registered (known: %v)", name, Registered())
	}
	return factory()
}

// Registered lists the registered platform keys, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
