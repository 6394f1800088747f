// Package session drives login-method selection, slider-CAPTCHA handling and
// login-success polling for one platform, and owns the resulting cookie
// state. Workers read the session; only the state machine mutates it.
package session

import (
	"sync"
	"time"
)

// State is the login state machine's position.
type State string

const (
	StateUnchecked               State = "unchecked"
	StateLoggedIn                State = "logged_in"
	StateLoggedOut               State = "logged_out"
	StateAwaitingQRCode          State = "awaiting_qrcode"
	StateAwaitingSMSCode         State = "awaiting_sms_code"
	StateAwaitingCookieInjection State = "awaiting_cookie_injection"
	StateSolvingSlider           State = "solving_slider"
	StateLoginFailed             State = "login_failed"
)

// Session is the login/cookie state for one platform. Cookie reads are safe
// from concurrent workers; writes go through the state machine only.
type Session struct {
	Platform string `json:"platform"`
	Method   string `json:"method"`

	mu      sync.RWMutex
	state   State
	cookies map[string]string

	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a session in the Unchecked state.
func NewSession(platform, method string) *Session {
	return &Session{
		Platform: platform,
		Method:   method,
		state:    StateUnchecked,
		cookies:  make(map[string]string),
	}
}

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// setState transitions the machine. Package-private: the state machine is
// the only writer.
func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.UpdatedAt = time.Now()
}

// LoggedIn reports whether the machine has converged on LoggedIn.
func (s *Session) LoggedIn() bool {
	return s.State() == StateLoggedIn
}

// Cookie returns one cookie value by name.
func (s *Session) Cookie(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cookies[name]
	return v, ok
}

// Cookies returns a copy of the cookie jar.
func (s *Session) Cookies() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.cookies))
	for k, v := range s.cookies {
		out[k] = v
	}
	return out
}

// setCookies replaces the jar. Only the state machine calls this.
func (s *Session) setCookies(cookies map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cookies = make(map[string]string, len(cookies))
	for k, v := range cookies {
		s.cookies[k] = v
	}
	s.UpdatedAt = time.Now()
}
