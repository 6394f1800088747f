package session

import (
	"context"

	"mediacrawl/pkg/logger"
	"mediacrawl/pkg/platform"
)

// Pong reports whether the session is still authenticated. The cheap check
// runs first: the platform's login-check against the cached cookie jar. Only
// when that passes does Pong issue the client's lightweight probe request,
// which catches cookies that look present but have been invalidated
// server-side.
func Pong(ctx context.Context, sess *Session, client platform.Client, check LoginCheck, log logger.Logger) bool {
	if !check(sess.Cookies()) {
		log.DebugWithFields("session cookies missing login marker", map[string]interface{}{
			"platform": sess.Platform,
		})
		sess.setState(StateLoggedOut)
		return false
	}

	if err := client.Probe(ctx); err != nil {
		log.InfoWithFields("session probe rejected, login required", map[string]interface{}{
			"platform": sess.Platform,
			"error":    err.Error(),
		})
		sess.setState(StateLoggedOut)
		return false
	}

	sess.setState(StateLoggedIn)
	return true
}
