package session

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediacrawl/pkg/config"
	errs "mediacrawl/pkg/errors"
)

// fakePage is a scripted Page. Cookies appear after cookiesAfter jar reads,
// emulating the user scanning a QR code mid-poll.
type fakePage struct {
	jar          map[string]string
	cookiesAfter int
	cookieReads  int

	challenge    *SliderChallenge
	dragsToClear int
	drags        [][]int
	refreshes    int

	filled  map[string]string
	clicked []string
}

func newFakePage() *fakePage {
	return &fakePage{
		jar:    make(map[string]string),
		filled: make(map[string]string),
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error { return nil }

func (p *fakePage) Click(ctx context.Context, selector string) error {
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *fakePage) Fill(ctx context.Context, selector, value string) error {
	p.filled[selector] = value
	return nil
}

func (p *fakePage) SliderChallenge(ctx context.Context) (*SliderChallenge, error) {
	return p.challenge, nil
}

func (p *fakePage) DragSlider(ctx context.Context, selector string, deltas []int) error {
	p.drags = append(p.drags, deltas)
	if len(p.drags) >= p.dragsToClear {
		p.challenge = nil
	}
	return nil
}

func (p *fakePage) RefreshChallenge(ctx context.Context) error {
	p.refreshes++
	return nil
}

func (p *fakePage) Cookies(ctx context.Context) (map[string]string, error) {
	p.cookieReads++
	if p.cookieReads > p.cookiesAfter {
		return p.jar, nil
	}
	return map[string]string{}, nil
}

func (p *fakePage) SetCookies(ctx context.Context, cookies map[string]string) error {
	p.jar = cookies
	return nil
}

type fixedSolver struct{ distance int }

func (s fixedSolver) Distance(ctx context.Context, challenge *SliderChallenge) (int, error) {
	return s.distance, nil
}

type fixedSMS struct{ code string }

func (s fixedSMS) Code(ctx context.Context, phone string) (string, error) {
	return s.code, nil
}

func hasSessionCookie(cookies map[string]string) bool {
	return cookies["session_token"] != ""
}

func machineOpts(extra ...MachineOption) []MachineOption {
	opts := []MachineOption{
		WithVerifyInterval(time.Millisecond),
		WithRandSource(rand.NewSource(1)),
	}
	return append(opts, extra...)
}

func TestLoginByQRCode(t *testing.T) {
	page := newFakePage()
	page.jar = map[string]string{"session_token": "tok"}
	page.cookiesAfter = 3 // scanned after three polls

	sess := NewSession("xhs", config.LoginMethodQRCode)
	sm := NewStateMachine(sess, page, PageActions{LoginURL: "https://example.test/login", QRCodeSelector: "#qr"},
		hasSessionCookie, &config.LoginConfig{MaxVerifyAttempts: 10, MaxSliderAttempts: 5}, machineOpts()...)

	require.NoError(t, sm.Login(context.Background()))
	assert.Equal(t, StateLoggedIn, sess.State())
	tok, ok := sess.Cookie("session_token")
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)
	assert.Contains(t, page.clicked, "#qr")
}

func TestLoginByQRCodeTimesOut(t *testing.T) {
	page := newFakePage() // cookies never appear

	sess := NewSession("xhs", config.LoginMethodQRCode)
	sm := NewStateMachine(sess, page, PageActions{LoginURL: "https://example.test/login"},
		hasSessionCookie, &config.LoginConfig{MaxVerifyAttempts: 3, MaxSliderAttempts: 5}, machineOpts()...)

	err := sm.Login(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsLoginFailed(err))
	assert.Equal(t, StateLoginFailed, sess.State())
}

func TestLoginByPhoneWithSlider(t *testing.T) {
	page := newFakePage()
	page.jar = map[string]string{"session_token": "tok"}
	page.challenge = &SliderChallenge{Selector: "#slider"}
	page.dragsToClear = 2 // first drag misses, second lands

	sess := NewSession("xhs", config.LoginMethodPhone)
	sm := NewStateMachine(sess, page,
		PageActions{
			LoginURL:       "https://example.test/login",
			PhoneInput:     "#phone",
			SendCodeButton: "#send",
			CodeInput:      "#code",
			SubmitButton:   "#submit",
		},
		hasSessionCookie,
		&config.LoginConfig{Phone: "13800000000", MaxVerifyAttempts: 10, MaxSliderAttempts: 5},
		machineOpts(WithSMSSource(fixedSMS{code: "246810"}), WithSolver(fixedSolver{distance: 120}))...)

	require.NoError(t, sm.Login(context.Background()))
	assert.Equal(t, StateLoggedIn, sess.State())
	assert.Equal(t, "13800000000", page.filled["#phone"])
	assert.Equal(t, "246810", page.filled["#code"])

	// Both drags replay an exact-sum trajectory.
	require.Len(t, page.drags, 2)
	for _, deltas := range page.drags {
		sum := 0
		for _, d := range deltas {
			sum += d
		}
		assert.Equal(t, 120, sum)
	}
	// The miss triggered a puzzle refresh.
	assert.Equal(t, 1, page.refreshes)
}

func TestLoginByPhoneSliderAttemptCeiling(t *testing.T) {
	page := newFakePage()
	page.challenge = &SliderChallenge{Selector: "#slider"}
	page.dragsToClear = 100 // never clears

	sess := NewSession("xhs", config.LoginMethodPhone)
	sm := NewStateMachine(sess, page,
		PageActions{PhoneInput: "#phone", SendCodeButton: "#send", CodeInput: "#code", SubmitButton: "#submit"},
		hasSessionCookie,
		&config.LoginConfig{Phone: "13800000000", MaxVerifyAttempts: 3, MaxSliderAttempts: 4},
		machineOpts(WithSMSSource(fixedSMS{code: "1"}), WithSolver(fixedSolver{distance: 80}))...)

	err := sm.Login(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsLoginFailed(err))
	assert.Len(t, page.drags, 4)
	assert.Equal(t, StateLoginFailed, sess.State())
}

func TestLoginByPhoneRequiresSMSSource(t *testing.T) {
	sess := NewSession("xhs", config.LoginMethodPhone)
	sm := NewStateMachine(sess, newFakePage(), PageActions{}, hasSessionCookie,
		&config.LoginConfig{Phone: "138"}, machineOpts()...)

	err := sm.Login(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsLoginFailed(err))
}

func TestLoginByCookie(t *testing.T) {
	page := newFakePage()

	sess := NewSession("xhs", config.LoginMethodCookie)
	sm := NewStateMachine(sess, page, PageActions{LoginURL: "https://example.test/"},
		hasSessionCookie,
		&config.LoginConfig{Cookies: "session_token=abc; other=1", MaxVerifyAttempts: 5, MaxSliderAttempts: 5},
		machineOpts()...)

	require.NoError(t, sm.Login(context.Background()))
	assert.Equal(t, StateLoggedIn, sess.State())
	tok, _ := sess.Cookie("session_token")
	assert.Equal(t, "abc", tok)
}

func TestLoginByCookieWithoutCookies(t *testing.T) {
	sess := NewSession("xhs", config.LoginMethodCookie)
	sm := NewStateMachine(sess, newFakePage(), PageActions{}, hasSessionCookie,
		&config.LoginConfig{}, machineOpts()...)

	err := sm.Login(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsLoginFailed(err))
}

func TestParseCookieString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"simple", "a=1; b=2", map[string]string{"a": "1", "b": "2"}},
		{"no spaces", "a=1;b=2", map[string]string{"a": "1", "b": "2"}},
		{"value with equals", "tok=a=b", map[string]string{"tok": "a=b"}},
		{"skips malformed", "a=1; garbage; =empty", map[string]string{"a": "1"}},
		{"empty", "", map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCookieString(tt.in))
		})
	}
}
