// Package comments walks a content item's paginated comment tree: the outer
// cursor over root comments and, per root, the inner cursor over its
// sub-comments. Pages are pushed to a sink as they arrive so callers never
// hold the whole tree in memory.
package comments

import (
	"context"
	"time"

	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
	"mediacrawl/pkg/platform"
)

// Sink receives each fetched page of comments. Returning an error aborts
// the walk.
type Sink func(ctx context.Context, comments []platform.CommentNode) error

// Fetcher streams an item's comment tree through repeated cursor fetches.
type Fetcher struct {
	client    platform.Client
	interval  time.Duration
	enableSub bool
	maxCount  int
	log       logger.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithInterval sets the pause between page fetches. Zero disables pacing.
func WithInterval(d time.Duration) Option {
	return func(f *Fetcher) { f.interval = d }
}

// WithSubComments toggles the inner sub-comment walk. When disabled only
// root comments are fetched.
func WithSubComments(enabled bool) Option {
	return func(f *Fetcher) { f.enableSub = enabled }
}

// WithMaxCount caps the total comments fetched per item, counting roots and
// sub-comments together. Zero means unbounded.
func WithMaxCount(n int) Option {
	return func(f *Fetcher) { f.maxCount = n }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(f *Fetcher) { f.log = log }
}

// NewFetcher builds a fetcher over the given platform client.
func NewFetcher(client platform.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    client,
		enableSub: true,
		log:       logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll walks the full comment tree of one item. Root-comment pages are
// pushed to the sink first; after each root page, the sub-comment walks for
// that page's roots run before the next root page is requested. The walk
// stops early when the comment cap is reached or the context is cancelled.
func (f *Fetcher) FetchAll(ctx context.Context, itemID string, sink Sink) error {
	fetched := 0
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := f.client.Comments(ctx, itemID, cursor)
		if err != nil {
			return err
		}

		roots := page.Comments
		if f.maxCount > 0 && fetched+len(roots) > f.maxCount {
			roots = roots[:f.maxCount-fetched]
		}
		if len(roots) > 0 {
			if err := sink(ctx, roots); err != nil {
				return err
			}
			fetched += len(roots)
		}
		if f.maxCount > 0 && fetched >= f.maxCount {
			f.log.DebugWithFields("comment cap reached", map[string]interface{}{
				"item_id": itemID,
				"count":   fetched,
			})
			return nil
		}

		if f.enableSub {
			for i := range roots {
				n, err := f.fetchSubComments(ctx, &roots[i], sink)
				if err != nil {
					return err
				}
				fetched += n
				if f.maxCount > 0 && fetched >= f.maxCount {
					return nil
				}
			}
		}

		if !page.HasMore {
			return nil
		}
		if page.Cursor == cursor {
			// A stuck cursor with HasMore set would loop forever.
			return errs.Newf(errs.ErrorTypeParsing, "comment cursor did not advance for item %s", itemID)
		}
		cursor = page.Cursor
		f.pause(ctx)
	}
}

// fetchSubComments walks one root comment's replies. The platform reports
// the reply count on the root, so the walk is bounded by the page count
// that implies even if the endpoint keeps claiming more.
func (f *Fetcher) fetchSubComments(ctx context.Context, root *platform.CommentNode, sink Sink) (int, error) {
	if root.SubCommentCount <= 0 {
		return 0, nil
	}

	fetched := 0
	cursor := root.SubCursor
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return fetched, err
		}

		f.pause(ctx)
		page, err := f.client.SubComments(ctx, root.ItemID, root.ID, cursor)
		if err != nil {
			return fetched, err
		}

		if len(page.Comments) > 0 {
			if err := sink(ctx, page.Comments); err != nil {
				return fetched, err
			}
			fetched += len(page.Comments)
		}

		pages++
		if !page.HasMore || fetched >= root.SubCommentCount {
			return fetched, nil
		}
		if maxPages := pagesFor(root.SubCommentCount, len(page.Comments)); pages >= maxPages {
			f.log.WarnWithFields("sub-comment walk hit page bound", map[string]interface{}{
				"comment_id": root.ID,
				"pages":      pages,
			})
			return fetched, nil
		}
		cursor = page.Cursor
	}
}

// pagesFor returns ceil(total/pageSize), the number of pages a walk over
// total items needs. A degenerate page size bounds the walk at one page.
func pagesFor(total, pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

func (f *Fetcher) pause(ctx context.Context) {
	if f.interval <= 0 {
		return
	}
	t := time.NewTimer(f.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
