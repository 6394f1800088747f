package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"mediacrawl/pkg/config"
	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
	"mediacrawl/pkg/platform"
)

// probeClient is a platform client whose Probe outcome is scripted.
type probeClient struct {
	platform.Client
	probeErr error
}

func (c *probeClient) Probe(ctx context.Context) error { return c.probeErr }

func TestPongWithLiveSession(t *testing.T) {
	sess := NewSession("xhs", config.LoginMethodCookie)
	sess.setCookies(map[string]string{"session_token": "tok"})

	ok := Pong(context.Background(), sess, &probeClient{}, func(cookies map[string]string) bool {
		return cookies["session_token"] != ""
	}, logger.GetLogger())

	assert.True(t, ok)
	assert.Equal(t, StateLoggedIn, sess.State())
}

func TestPongFailsWithoutLoginCookie(t *testing.T) {
	sess := NewSession("xhs", config.LoginMethodCookie)

	ok := Pong(context.Background(), sess, &probeClient{}, func(cookies map[string]string) bool {
		return false
	}, logger.GetLogger())

	assert.False(t, ok)
	assert.Equal(t, StateLoggedOut, sess.State())
}

func TestPongFailsWhenProbeRejected(t *testing.T) {
	sess := NewSession("xhs", config.LoginMethodCookie)
	sess.setCookies(map[string]string{"session_token": "stale"})

	client := &probeClient{probeErr: errs.New(errs.ErrorTypeLogin, "session expired server-side")}
	ok := Pong(context.Background(), sess, client, func(cookies map[string]string) bool {
		return cookies["session_token"] != ""
	}, logger.GetLogger())

	assert.False(t, ok)
	assert.Equal(t, StateLoggedOut, sess.State())
}
