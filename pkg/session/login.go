package session

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"mediacrawl/pkg/config"
	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
)

// SMSCodeSource supplies the verification code for the phone login method.
// The default implementation prompts on the terminal; cache-backed sources
// poll an external code relay.
type SMSCodeSource interface {
	Code(ctx context.Context, phone string) (string, error)
}

// LoginCheck decides from a cookie jar whether the platform considers the
// session authenticated. Each platform supplies its own check, typically
// the presence of a session-token cookie.
type LoginCheck func(cookies map[string]string) bool

// PageActions are the platform-specific selectors and URLs the state
// machine drives the page with.
type PageActions struct {
	LoginURL string

	QRCodeSelector  string
	PhoneInput      string
	SendCodeButton  string
	CodeInput       string
	SubmitButton    string
	CookieInjectURL string
}

// StateMachine drives one platform's login to completion. It owns the
// Session and is its only writer.
type StateMachine struct {
	session *Session
	page    Page
	actions PageActions
	check   LoginCheck

	sms    SMSCodeSource
	solver CaptchaSolver

	phone      string
	cookieStr  string
	maxVerify  int
	maxSlider  int
	verifyWait time.Duration

	rng *rand.Rand
	log logger.Logger
}

// MachineOption configures a StateMachine.
type MachineOption func(*StateMachine)

// WithSMSSource sets the verification-code source for the phone method.
func WithSMSSource(src SMSCodeSource) MachineOption {
	return func(m *StateMachine) { m.sms = src }
}

// WithSolver sets the slider-CAPTCHA solver.
func WithSolver(s CaptchaSolver) MachineOption {
	return func(m *StateMachine) { m.solver = s }
}

// WithMachineLogger sets the logger.
func WithMachineLogger(log logger.Logger) MachineOption {
	return func(m *StateMachine) { m.log = log }
}

// WithVerifyInterval overrides the poll interval between login-success
// checks. Tests shorten it.
func WithVerifyInterval(d time.Duration) MachineOption {
	return func(m *StateMachine) { m.verifyWait = d }
}

// WithRandSource seeds the jitter source deterministically.
func WithRandSource(src rand.Source) MachineOption {
	return func(m *StateMachine) { m.rng = rand.New(src) }
}

// NewStateMachine builds a login state machine for one platform session.
func NewStateMachine(sess *Session, page Page, actions PageActions, check LoginCheck, cfg *config.LoginConfig, opts ...MachineOption) *StateMachine {
	m := &StateMachine{
		session:    sess,
		page:       page,
		actions:    actions,
		check:      check,
		phone:      cfg.Phone,
		cookieStr:  cfg.Cookies,
		maxVerify:  cfg.MaxVerifyAttempts,
		maxSlider:  cfg.MaxSliderAttempts,
		verifyWait: time.Second,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		log:        logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.maxVerify <= 0 {
		m.maxVerify = 120
	}
	if m.maxSlider <= 0 {
		m.maxSlider = 20
	}
	return m
}

// Login runs the configured method to completion. On success the session is
// LoggedIn and carries the page's cookies; on any failure the session is
// LoginFailed and the returned error has type login.
func (m *StateMachine) Login(ctx context.Context) error {
	var err error
	switch m.session.Method {
	case config.LoginMethodQRCode:
		err = m.loginByQRCode(ctx)
	case config.LoginMethodPhone:
		err = m.loginByPhone(ctx)
	case config.LoginMethodCookie:
		err = m.loginByCookie(ctx)
	default:
		err = errs.Newf(errs.ErrorTypeLogin, "unknown login method: %s", m.session.Method)
	}

	if err != nil {
		m.session.setState(StateLoginFailed)
		return err
	}

	cookies, cerr := m.page.Cookies(ctx)
	if cerr != nil {
		m.session.setState(StateLoginFailed)
		return errs.Newf(errs.ErrorTypeLogin, "read cookies after login: %v", cerr)
	}
	m.session.setCookies(cookies)
	m.session.setState(StateLoggedIn)
	m.log.InfoWithFields("login complete", map[string]interface{}{
		"platform": m.session.Platform,
		"method":   m.session.Method,
	})
	return nil
}

func (m *StateMachine) loginByQRCode(ctx context.Context) error {
	m.session.setState(StateAwaitingQRCode)

	if err := m.page.Navigate(ctx, m.actions.LoginURL); err != nil {
		return errs.Newf(errs.ErrorTypeLogin, "open login page: %v", err)
	}
	if m.actions.QRCodeSelector != "" {
		if err := m.page.Click(ctx, m.actions.QRCodeSelector); err != nil {
			return errs.Newf(errs.ErrorTypeLogin, "show qrcode: %v", err)
		}
	}
	m.log.Info("waiting for qrcode scan")

	return m.waitLoggedIn(ctx)
}

func (m *StateMachine) loginByPhone(ctx context.Context) error {
	if m.phone == "" {
		return errs.New(errs.ErrorTypeLogin, "phone method selected but no phone number configured")
	}
	if m.sms == nil {
		return errs.New(errs.ErrorTypeLogin, "phone method selected but no sms code source configured")
	}
	m.session.setState(StateAwaitingSMSCode)

	if err := m.page.Navigate(ctx, m.actions.LoginURL); err != nil {
		return errs.Newf(errs.ErrorTypeLogin, "open login page: %v", err)
	}
	if err := m.page.Fill(ctx, m.actions.PhoneInput, m.phone); err != nil {
		return errs.Newf(errs.ErrorTypeLogin, "fill phone number: %v", err)
	}
	if err := m.page.Click(ctx, m.actions.SendCodeButton); err != nil {
		return errs.Newf(errs.ErrorTypeLogin, "request sms code: %v", err)
	}

	code, err := m.sms.Code(ctx, m.phone)
	if err != nil {
		return errs.Newf(errs.ErrorTypeLogin, "obtain sms code: %v", err)
	}
	if err := m.page.Fill(ctx, m.actions.CodeInput, code); err != nil {
		return errs.Newf(errs.ErrorTypeLogin, "fill sms code: %v", err)
	}
	if err := m.page.Click(ctx, m.actions.SubmitButton); err != nil {
		return errs.Newf(errs.ErrorTypeLogin, "submit login form: %v", err)
	}

	if err := m.solveSliderIfShown(ctx); err != nil {
		return err
	}

	return m.waitLoggedIn(ctx)
}

func (m *StateMachine) loginByCookie(ctx context.Context) error {
	if m.cookieStr == "" {
		return errs.New(errs.ErrorTypeLogin, "cookie method selected but no cookie string configured")
	}
	m.session.setState(StateAwaitingCookieInjection)

	url := m.actions.CookieInjectURL
	if url == "" {
		url = m.actions.LoginURL
	}
	if err := m.page.Navigate(ctx, url); err != nil {
		return errs.Newf(errs.ErrorTypeLogin, "open site for cookie injection: %v", err)
	}
	if err := m.page.SetCookies(ctx, ParseCookieString(m.cookieStr)); err != nil {
		return errs.Newf(errs.ErrorTypeLogin, "inject cookies: %v", err)
	}

	return m.waitLoggedIn(ctx)
}

// solveSliderIfShown handles the slider CAPTCHA when the page presents
// one. Each drag attempt solves the current puzzle; a failed drag counts
// against the attempt ceiling and the puzzle is refreshed for the next try.
func (m *StateMachine) solveSliderIfShown(ctx context.Context) error {
	challenge, err := m.page.SliderChallenge(ctx)
	if err != nil {
		return errs.Newf(errs.ErrorTypeLogin, "inspect slider challenge: %v", err)
	}
	if challenge == nil {
		return nil
	}
	if m.solver == nil {
		return errs.New(errs.ErrorTypeLogin, "slider challenge shown but no solver configured")
	}

	m.session.setState(StateSolvingSlider)

	for attempt := 1; attempt <= m.maxSlider; attempt++ {
		if ctx.Err() != nil {
			return errs.Newf(errs.ErrorTypeLogin, "slider solving cancelled: %v", ctx.Err())
		}

		distance, derr := m.solver.Distance(ctx, challenge)
		if derr != nil {
			m.log.WarnWithFields("slider distance estimation failed", map[string]interface{}{
				"attempt": attempt,
				"error":   derr.Error(),
			})
		} else {
			if err := m.page.DragSlider(ctx, challenge.Selector, Tracks(distance)); err != nil {
				return errs.Newf(errs.ErrorTypeLogin, "drag slider: %v", err)
			}

			challenge, err = m.page.SliderChallenge(ctx)
			if err != nil {
				return errs.Newf(errs.ErrorTypeLogin, "re-inspect slider challenge: %v", err)
			}
			if challenge == nil {
				m.log.DebugWithFields("slider solved", map[string]interface{}{"attempt": attempt})
				return nil
			}
		}

		// Puzzle still showing: ask for a fresh one before the next try.
		if err := m.page.RefreshChallenge(ctx); err != nil {
			return errs.Newf(errs.ErrorTypeLogin, "refresh slider challenge: %v", err)
		}
		challenge, err = m.page.SliderChallenge(ctx)
		if err != nil {
			return errs.Newf(errs.ErrorTypeLogin, "fetch refreshed slider challenge: %v", err)
		}
		if challenge == nil {
			return nil
		}
		jitteredPause(ctx, m.rng)
	}

	return errs.Newf(errs.ErrorTypeLogin, "slider not solved after %d attempts", m.maxSlider)
}

// waitLoggedIn polls the page cookies until the platform's login check
// passes or the attempt budget runs out.
func (m *StateMachine) waitLoggedIn(ctx context.Context) error {
	for attempt := 1; attempt <= m.maxVerify; attempt++ {
		cookies, err := m.page.Cookies(ctx)
		if err == nil && m.check(cookies) {
			return nil
		}

		select {
		case <-ctx.Done():
			return errs.Newf(errs.ErrorTypeLogin, "login wait cancelled: %v", ctx.Err())
		case <-time.After(m.verifyWait):
		}
	}
	return errs.Newf(errs.ErrorTypeLogin, "login not confirmed after %d checks", m.maxVerify)
}

// ParseCookieString splits a browser-copied "k1=v1; k2=v2" cookie header
// into a map. Malformed fragments are skipped.
func ParseCookieString(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if k, v, ok := strings.Cut(pair, "="); ok && k != "" {
			out[k] = v
		}
	}
	return out
}
