// Package crawler is the orchestration core: it drives one platform session
// through login, proxy lease management, mode dispatch and the concurrent
// per-item fetch fan-out, pushing everything it collects into the
// persistence sink.
package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"mediacrawl/internal/fetcher"
	"mediacrawl/pkg/comments"
	"mediacrawl/pkg/config"
	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
	"mediacrawl/pkg/platform"
	"mediacrawl/pkg/proxy"
	"mediacrawl/pkg/ratelimit"
	"mediacrawl/pkg/retry"
)

// maxLeaseRotations bounds how many times a blocked request is retried on a
// fresh proxy lease before the failure is surfaced.
const maxLeaseRotations = 3

// LoginManager is the session surface the crawler needs: a liveness check,
// a login flow, and the resulting cookie jar.
type LoginManager interface {
	LoggedIn(ctx context.Context) bool
	Login(ctx context.Context) error
	Cookies() map[string]string
}

// Stats counts what one crawl run produced.
type Stats struct {
	Items       int
	Comments    int
	Creators    int
	ItemsFailed int
	Skipped     int
}

// Crawler runs one platform's crawl to completion in one of three modes:
// keyword search, detail fetch of known IDs, or creator content walks.
type Crawler struct {
	cfg    *config.Config
	client platform.Client
	sink   platform.PersistenceSink
	login  LoginManager
	pool   *proxy.Pool
	log    logger.Logger

	leaseMu sync.Mutex
	lease   *proxy.Lease

	statsMu sync.Mutex
	stats   Stats
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLoginManager attaches the session login flow. Without one the client
// is assumed pre-authenticated.
func WithLoginManager(lm LoginManager) Option {
	return func(c *Crawler) { c.login = lm }
}

// WithProxyPool attaches the proxy lease pool. Without one requests go
// direct and blocked errors are surfaced instead of rotated away.
func WithProxyPool(pool *proxy.Pool) Option {
	return func(c *Crawler) { c.pool = pool }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Crawler) { c.log = log }
}

// New builds a crawler for one platform client.
func New(cfg *config.Config, client platform.Client, sink platform.PersistenceSink, opts ...Option) *Crawler {
	c := &Crawler{
		cfg:    cfg,
		client: client,
		sink:   sink,
		log:    logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	// Every log line of a run carries the same trace ID so interleaved
	// platform runs can be told apart.
	c.log = c.log.WithField("run_id", uuid.NewString())
	return c
}

// Stats returns a copy of the run counters.
func (c *Crawler) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Run executes the configured crawl mode: establish the session, point the
// client at a proxy lease, then dispatch. A login failure aborts the whole
// run; per-item failures inside a mode are isolated and logged.
func (c *Crawler) Run(ctx context.Context) error {
	if c.login != nil {
		if !c.login.LoggedIn(ctx) {
			c.log.InfoWithFields("session not live, logging in", map[string]interface{}{
				"platform": c.client.Platform(),
			})
			if err := c.login.Login(ctx); err != nil {
				return err
			}
		}
		c.client.UpdateCookies(c.login.Cookies())
	}

	if c.pool != nil {
		if err := c.rotateLease(ctx); err != nil {
			return err
		}
	}

	var err error
	switch c.cfg.Crawl.Type {
	case "search":
		err = c.runSearch(ctx)
	case "detail":
		err = c.runDetail(ctx)
	case "creator":
		err = c.runCreator(ctx)
	default:
		err = errs.Newf(errs.ErrorTypeUnknown, "unknown crawl type: %s", c.cfg.Crawl.Type)
	}

	stats := c.Stats()
	c.log.InfoWithFields("crawl finished", map[string]interface{}{
		"platform":     c.client.Platform(),
		"mode":         c.cfg.Crawl.Type,
		"items":        stats.Items,
		"comments":     stats.Comments,
		"creators":     stats.Creators,
		"items_failed": stats.ItemsFailed,
		"skipped":      stats.Skipped,
	})
	return err
}

// runSearch walks each keyword's result pages sequentially. A keyword that
// fails is logged and the next keyword starts; pages within a keyword stop
// at the platform's HasMore signal or the configured page limit.
func (c *Crawler) runSearch(ctx context.Context) error {
	for _, keyword := range c.cfg.Crawl.Keywords {
		if err := ctx.Err(); err != nil {
			return err
		}

		items, err := c.searchKeyword(ctx, keyword)
		if err != nil {
			c.log.ErrorWithFields("keyword search failed", map[string]interface{}{
				"keyword": keyword,
				"error":   err.Error(),
			})
			continue
		}

		if c.cfg.Crawl.EnableComments {
			c.batchGetComments(ctx, items)
		}
	}
	return nil
}

// searchKeyword fetches one keyword's pages, saving each page's items as it
// arrives. The page count is bounded by the configured page limit and, when
// the platform's page size is known, by the item budget; the platform's
// opaque search token is threaded page to page.
func (c *Crawler) searchKeyword(ctx context.Context, keyword string) ([]platform.ContentItem, error) {
	var collected []platform.ContentItem
	searchID := ""

	lastPage := c.cfg.Crawl.StartPage + c.cfg.Crawl.PageLimit - 1
	if max := c.cfg.Crawl.MaxItems; max > 0 {
		if sc, err := platform.ResolveSearchConfig(c.client.Platform()); err == nil {
			budgetPages := c.cfg.Crawl.StartPage + pagesFor(max, sc.PageSize()) - 1
			if budgetPages < lastPage {
				lastPage = budgetPages
			}
		}
	}

	for page := c.cfg.Crawl.StartPage; page <= lastPage; page++ {
		if err := ctx.Err(); err != nil {
			return collected, err
		}

		var result *platform.SearchPage
		err := c.fetch(ctx, func() error {
			var ferr error
			result, ferr = c.client.Search(ctx, keyword, page, searchID)
			return ferr
		})
		if err != nil {
			return collected, err
		}

		c.log.InfoWithFields("search page fetched", map[string]interface{}{
			"keyword": keyword,
			"page":    page,
			"items":   len(result.Items),
		})

		if len(result.Items) > 0 {
			if err := c.saveContents(ctx, result.Items); err != nil {
				return collected, err
			}
			collected = append(collected, result.Items...)
			c.addStats(func(s *Stats) { s.Items += len(result.Items) })
		}

		if !result.HasMore {
			break
		}
		searchID = result.SearchID
		c.pause(ctx)
	}

	return collected, nil
}

// runDetail fetches each configured item ID on the worker pool. Items that
// are gone (not found or withdrawn) are logged and skipped; other failures
// count against the run but never stop the remaining items.
func (c *Crawler) runDetail(ctx context.Context) error {
	pool := fetcher.NewWorkerPool(ctx, c.cfg.Crawl.MaxConcurrency, c.limiter(), c.log)
	pool.Start()

	var (
		itemsMu sync.Mutex
		items   []platform.ContentItem
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range pool.Results() {
			if result.Err == nil {
				continue
			}
			if errs.IsPermanent(result.Err) {
				c.log.WarnWithFields("item gone, skipping", map[string]interface{}{
					"item_id": result.ItemID,
					"reason":  string(errs.TypeOf(result.Err)),
				})
				c.addStats(func(s *Stats) { s.Skipped++ })
				continue
			}
			c.log.ErrorWithFields("detail fetch failed", map[string]interface{}{
				"item_id": result.ItemID,
				"error":   result.Err.Error(),
			})
			c.addStats(func(s *Stats) { s.ItemsFailed++ })
		}
	}()

	for _, itemID := range c.cfg.Crawl.IDList {
		id := itemID
		err := pool.Submit(fetcher.Job{
			ItemID: id,
			Run: func(jobCtx context.Context) error {
				var item *platform.ContentItem
				err := c.fetch(jobCtx, func() error {
					var ferr error
					item, ferr = c.client.Detail(jobCtx, id)
					return ferr
				})
				if err != nil {
					return err
				}
				if err := c.saveContents(jobCtx, []platform.ContentItem{*item}); err != nil {
					return err
				}
				itemsMu.Lock()
				items = append(items, *item)
				itemsMu.Unlock()
				c.addStats(func(s *Stats) { s.Items++ })
				return nil
			},
		})
		if err != nil {
			break
		}
	}

	pool.Stop()
	<-done

	if err := ctx.Err(); err != nil {
		return err
	}
	if c.cfg.Crawl.EnableComments {
		c.batchGetComments(ctx, items)
	}
	return nil
}

// runCreator resolves each creator's profile and walks their content list
// cursor until exhaustion or the item budget. Creators are isolated from
// each other the same way search keywords are.
func (c *Crawler) runCreator(ctx context.Context) error {
	for _, creatorID := range c.cfg.Crawl.CreatorIDList {
		if err := ctx.Err(); err != nil {
			return err
		}

		items, err := c.crawlCreator(ctx, creatorID)
		if err != nil {
			c.log.ErrorWithFields("creator crawl failed", map[string]interface{}{
				"creator_id": creatorID,
				"error":      err.Error(),
			})
			continue
		}

		if c.cfg.Crawl.EnableComments {
			c.batchGetComments(ctx, items)
		}
	}
	return nil
}

func (c *Crawler) crawlCreator(ctx context.Context, creatorID string) ([]platform.ContentItem, error) {
	var creator *platform.Creator
	err := c.fetch(ctx, func() error {
		var ferr error
		creator, ferr = c.client.CreatorInfo(ctx, creatorID)
		return ferr
	})
	if err != nil {
		return nil, err
	}

	record := platform.Record{
		Platform: c.client.Platform(),
		Kind:     platform.RecordKindCreator,
		ID:       creator.ID,
		Data:     creator.Raw,
	}
	if err := c.sink.Save(ctx, []platform.Record{record}); err != nil {
		return nil, err
	}
	c.addStats(func(s *Stats) { s.Creators++ })

	var collected []platform.ContentItem
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return collected, err
		}

		var page *platform.ContentPage
		err := c.fetch(ctx, func() error {
			var ferr error
			page, ferr = c.client.CreatorContent(ctx, creatorID, cursor)
			return ferr
		})
		if err != nil {
			return collected, err
		}

		items := page.Items
		if max := c.cfg.Crawl.MaxItems; max > 0 && len(collected)+len(items) > max {
			items = items[:max-len(collected)]
		}
		if len(items) > 0 {
			if err := c.saveContents(ctx, items); err != nil {
				return collected, err
			}
			collected = append(collected, items...)
			c.addStats(func(s *Stats) { s.Items += len(items) })
		}

		if !page.HasMore {
			break
		}
		if max := c.cfg.Crawl.MaxItems; max > 0 && len(collected) >= max {
			c.log.InfoWithFields("creator item budget reached", map[string]interface{}{
				"creator_id": creatorID,
				"items":      len(collected),
			})
			break
		}
		cursor = page.Cursor
		c.pause(ctx)
	}

	return collected, nil
}

// batchGetComments walks the comment trees of the given items with bounded
// concurrency. A failed item is logged and the rest keep going; the batch
// never fails as a whole.
func (c *Crawler) batchGetComments(ctx context.Context, items []platform.ContentItem) {
	if len(items) == 0 {
		return
	}

	sem := semaphore.NewWeighted(int64(c.cfg.Crawl.MaxConcurrency))
	var wg sync.WaitGroup

	for _, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancellation: stop launching, let in-flight walks drain.
			break
		}

		wg.Add(1)
		item := item
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			if err := c.crawlItemComments(ctx, item.ID); err != nil {
				c.log.ErrorWithFields("comment walk failed", map[string]interface{}{
					"item_id": item.ID,
					"error":   err.Error(),
				})
				c.addStats(func(s *Stats) { s.ItemsFailed++ })
			}
		}()
	}

	wg.Wait()
}

func (c *Crawler) crawlItemComments(ctx context.Context, itemID string) error {
	f := comments.NewFetcher(c.client,
		comments.WithInterval(c.cfg.Crawl.CrawlInterval),
		comments.WithSubComments(c.cfg.Crawl.EnableSubComments),
		comments.WithMaxCount(c.cfg.Crawl.MaxCommentsPerItem),
		comments.WithLogger(c.log),
	)

	return f.FetchAll(ctx, itemID, func(ctx context.Context, nodes []platform.CommentNode) error {
		records := make([]platform.Record, 0, len(nodes))
		for _, n := range nodes {
			records = append(records, platform.Record{
				Platform: c.client.Platform(),
				Kind:     platform.RecordKindComment,
				ID:       n.ID,
				Data:     n.Raw,
			})
		}
		if err := c.sink.Save(ctx, records); err != nil {
			return err
		}
		c.addStats(func(s *Stats) { s.Comments += len(nodes) })
		return nil
	})
}

// fetch runs one platform call under the retry policy. Transient errors
// back off and retry in place; a block signal burns the current lease,
// points the client at a fresh one and tries again, bounded by
// maxLeaseRotations. Everything else surfaces immediately.
func (c *Crawler) fetch(ctx context.Context, op func() error) error {
	retrier := retry.NewRetrier(retry.FromConfig(&c.cfg.Retry)).WithContext(ctx)

	for rotation := 0; ; rotation++ {
		err := retrier.Do(op)
		if err == nil || !errs.IsBlocked(err) {
			return err
		}
		if c.pool == nil || rotation >= maxLeaseRotations {
			return err
		}

		c.log.WarnWithFields("block signal, rotating proxy lease", map[string]interface{}{
			"rotation": rotation + 1,
		})
		if rerr := c.rotateLease(ctx); rerr != nil {
			return rerr
		}
	}
}

// rotateLease acquires a fresh lease and points the client at it. The old
// lease was already removed from the pool at acquire time, so the new one
// is distinct by construction.
func (c *Crawler) rotateLease(ctx context.Context) error {
	lease, err := c.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	c.leaseMu.Lock()
	c.lease = lease
	c.leaseMu.Unlock()

	c.client.UpdateProxy(lease)
	c.log.InfoWithFields("proxy lease installed", map[string]interface{}{
		"lease": lease.Addr(),
	})
	return nil
}

func (c *Crawler) saveContents(ctx context.Context, items []platform.ContentItem) error {
	records := make([]platform.Record, 0, len(items))
	for _, item := range items {
		records = append(records, platform.Record{
			Platform: c.client.Platform(),
			Kind:     platform.RecordKindContent,
			ID:       item.ID,
			Data:     item.Raw,
		})
	}
	return c.sink.Save(ctx, records)
}

func (c *Crawler) limiter() ratelimit.Limiter {
	if rpm := c.cfg.Crawl.RequestsPerMinute; rpm > 0 {
		return ratelimit.NewTokenBucket(rpm, time.Minute)
	}
	return ratelimit.NewUnlimited()
}

func (c *Crawler) pause(ctx context.Context) {
	if c.cfg.Crawl.CrawlInterval <= 0 {
		return
	}
	t := time.NewTimer(c.cfg.Crawl.CrawlInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// pagesFor returns ceil(total/pageSize).
func pagesFor(total, pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

func (c *Crawler) addStats(fn func(*Stats)) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	fn(&c.stats)
}
