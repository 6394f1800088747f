package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mediacrawl/pkg/auth"
	"mediacrawl/pkg/config"
	"mediacrawl/pkg/crawler"
	"mediacrawl/pkg/logger"
	"mediacrawl/pkg/platform"
	"mediacrawl/pkg/proxy"
	"mediacrawl/pkg/session"
	"mediacrawl/pkg/store"
)

var (
	// Crawl command flags
	platforms   []string
	crawlType   string
	keywords    []string
	idList      []string
	creatorList []string
	concurrency int
	interval    time.Duration
	pageLimit   int
	loginMethod string
	proxyOn     bool
	outputDir   string
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run a crawl against the configured platforms",
	Long: `Run a crawl against one or more platforms.

Three modes are available:
  search   walk keyword search result pages
  detail   fetch a fixed list of item IDs
  creator  walk creators' content lists

Each platform runs its own session: a liveness check against stored
cookies, a login flow when the session is stale, and an optional proxy
lease from the pool. Collected content, comments and creator profiles
are appended as JSON lines under the output directory.`,
	Example: `  # Search two keywords on xhs
  mediacrawl crawl --platforms xhs --type search --keywords coffee,espresso

  # Fetch known items with comments disabled
  mediacrawl crawl --platforms dy --type detail --ids 7412,7413

  # Walk a creator's content through the proxy pool
  mediacrawl crawl --platforms xhs --type creator --creators 5f3a... --proxy`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringSliceVar(&platforms, "platforms", nil, "platform keys to crawl")
	crawlCmd.Flags().StringVarP(&crawlType, "type", "t", "", "crawl mode (search, detail, creator)")
	crawlCmd.Flags().StringSliceVar(&keywords, "keywords", nil, "search keywords")
	crawlCmd.Flags().StringSliceVar(&idList, "ids", nil, "item IDs for detail mode")
	crawlCmd.Flags().StringSliceVar(&creatorList, "creators", nil, "creator IDs for creator mode")
	crawlCmd.Flags().IntVar(&concurrency, "concurrency", 0, "max concurrent per-item fetches")
	crawlCmd.Flags().DurationVar(&interval, "interval", 0, "pause between page fetches")
	crawlCmd.Flags().IntVar(&pageLimit, "page-limit", 0, "max search pages per keyword")
	crawlCmd.Flags().StringVar(&loginMethod, "login-method", "", "login method (qrcode, phone, cookie)")
	crawlCmd.Flags().BoolVar(&proxyOn, "proxy", false, "route requests through the proxy lease pool")
	crawlCmd.Flags().StringVarP(&outputDir, "output", "o", "data", "output directory for crawled records")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if len(platforms) > 0 {
		flags["platforms"] = platforms
	}
	if crawlType != "" {
		flags["type"] = crawlType
	}
	if len(keywords) > 0 {
		flags["keywords"] = keywords
	}
	if len(idList) > 0 {
		flags["ids"] = idList
	}
	if len(creatorList) > 0 {
		flags["creators"] = creatorList
	}
	if concurrency > 0 {
		flags["concurrency"] = concurrency
	}
	if interval > 0 {
		flags["interval"] = interval
	}
	if pageLimit > 0 {
		flags["page-limit"] = pageLimit
	}
	if loginMethod != "" {
		flags["login-method"] = loginMethod
	}
	if cmd.Flags().Changed("proxy") {
		flags["proxy"] = proxyOn
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if len(cfg.Platforms) == 0 {
		return fmt.Errorf("no platforms configured (use --platforms or the config file; known: %v)", platform.Registered())
	}

	logger.Initialize(&cfg.Logging)
	log := logger.GetLogger()
	log.WithField("version", version).Info("mediacrawl starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := store.NewJSONLStore(outputDir, log)
	defer sink.Close()

	var pool *proxy.Pool
	if cfg.Proxy.Enabled {
		provider := proxy.NewHTTPProvider(cfg.Proxy.ProviderURL, cfg.Proxy.ProviderKey, log)
		pool = proxy.NewPool(cfg.Proxy.PoolSize, cfg.Proxy.ValidateIP, provider, cfg.Proxy.EchoURL,
			proxy.WithLogger(log))
	}

	credManager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("initialize credential manager: %w", err)
	}

	var firstErr error
	for _, name := range cfg.Platforms {
		if ctx.Err() != nil {
			break
		}

		if err := crawlPlatform(ctx, cfg, name, sink, pool, credManager, log); err != nil {
			log.ErrorWithFields("platform crawl failed", map[string]interface{}{
				"platform": name,
				"error":    err.Error(),
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// crawlPlatform runs one platform end to end: build the client, resolve its
// session, run the configured mode.
func crawlPlatform(ctx context.Context, cfg *config.Config, name string, sink platform.PersistenceSink, pool *proxy.Pool, creds *auth.Manager, log logger.Logger) error {
	client, err := platform.New(name)
	if err != nil {
		return err
	}

	lm, err := newSessionManager(cfg, name, client, creds, log)
	if err != nil {
		return err
	}

	opts := []crawler.Option{
		crawler.WithLoginManager(lm),
		crawler.WithLogger(log),
	}
	if pool != nil {
		opts = append(opts, crawler.WithProxyPool(pool))
	}

	return crawler.New(cfg, client, sink, opts...).Run(ctx)
}

// sessionManager adapts the session layer to the crawler's LoginManager.
// The CLI drives cookie-based logins itself; qrcode and phone logins need a
// browser-backed page the platform integration supplies.
type sessionManager struct {
	cfg    *config.Config
	sess   *session.Session
	client platform.Client
	creds  *auth.Manager
	stash  *session.Store
	log    logger.Logger
}

func newSessionManager(cfg *config.Config, name string, client platform.Client, creds *auth.Manager, log logger.Logger) (*sessionManager, error) {
	m := &sessionManager{
		cfg:    cfg,
		client: client,
		creds:  creds,
		log:    log,
	}

	if cfg.Login.SaveState {
		dir := cfg.Login.StateDir
		if dir == "" {
			dir = ".mediacrawl_state"
		}
		m.stash = session.NewStore(dir, log)

		saved, err := m.stash.Load(name)
		if err != nil {
			return nil, err
		}
		if saved != nil {
			m.sess = saved
		}
	}
	if m.sess == nil {
		m.sess = session.NewSession(name, cfg.Login.Method)
	}
	return m, nil
}

func (m *sessionManager) LoggedIn(ctx context.Context) bool {
	if len(m.sess.Cookies()) == 0 {
		return false
	}
	m.client.UpdateCookies(m.sess.Cookies())
	return session.Pong(ctx, m.sess, m.client, func(cookies map[string]string) bool {
		return len(cookies) > 0
	}, m.log)
}

func (m *sessionManager) Login(ctx context.Context) error {
	if m.cfg.Login.Method != config.LoginMethodCookie {
		return fmt.Errorf("login method %q needs a browser-backed platform integration; use the cookie method with stored credentials", m.cfg.Login.Method)
	}

	loginCfg := m.cfg.Login
	if loginCfg.Cookies == "" {
		cred, err := m.creds.Retrieve(m.sess.Platform)
		if err != nil {
			return fmt.Errorf("no cookies configured and none stored for %s (run 'mediacrawl auth set %s')", m.sess.Platform, m.sess.Platform)
		}
		loginCfg.Cookies = cred.Cookies
	}

	m.sess = session.NewSession(m.sess.Platform, config.LoginMethodCookie)
	sm := session.NewStateMachine(m.sess, &cookiePage{}, session.PageActions{}, func(cookies map[string]string) bool {
		return len(cookies) > 0
	}, &loginCfg,
		session.WithMachineLogger(m.log),
		session.WithVerifyInterval(10*time.Millisecond),
	)
	if err := sm.Login(ctx); err != nil {
		return err
	}

	m.client.UpdateCookies(m.sess.Cookies())
	if err := m.client.Probe(ctx); err != nil {
		return err
	}

	if m.stash != nil {
		if err := m.stash.Save(m.sess); err != nil {
			m.log.WarnWithFields("session save failed", map[string]interface{}{
				"platform": m.sess.Platform,
				"error":    err.Error(),
			})
		}
	}
	return nil
}

// cookiePage is the pageless stand-in used for cookie injection from the
// CLI: there is no browser, so navigation is a no-op and the "page" jar is
// whatever the state machine injected.
type cookiePage struct {
	jar map[string]string
}

func (p *cookiePage) Navigate(ctx context.Context, url string) error        { return nil }
func (p *cookiePage) Click(ctx context.Context, selector string) error      { return nil }
func (p *cookiePage) Fill(ctx context.Context, selector, val string) error  { return nil }
func (p *cookiePage) DragSlider(ctx context.Context, s string, d []int) error { return nil }
func (p *cookiePage) RefreshChallenge(ctx context.Context) error            { return nil }

func (p *cookiePage) SliderChallenge(ctx context.Context) (*session.SliderChallenge, error) {
	return nil, nil
}

func (p *cookiePage) Cookies(ctx context.Context) (map[string]string, error) {
	return p.jar, nil
}

func (p *cookiePage) SetCookies(ctx context.Context, cookies map[string]string) error {
	p.jar = cookies
	return nil
}

func (m *sessionManager) Cookies() map[string]string {
	return m.sess.Cookies()
}
