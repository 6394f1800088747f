package proxy

import (
	"fmt"
	"net/url"
	"time"
)

// Lease is a single-use proxy IP assignment with expiry. A lease is owned by
// the pool until Acquire hands it out; after that the acquiring task owns it
// exclusively and it is never returned to the pool.
type Lease struct {
	IP       string    `json:"ip"`
	Port     int       `json:"port"`
	User     string    `json:"user,omitempty"`
	Password string    `json:"password,omitempty"`
	Protocol string    `json:"protocol"`
	ExpireAt time.Time `json:"expire_at"`
}

// URL renders the lease as a proxy URL suitable for http.Transport.
func (l *Lease) URL() *url.URL {
	scheme := l.Protocol
	if scheme == "" {
		scheme = "http"
	}

	u := &url.URL{
		Scheme: scheme,
		Host:   fmt.Sprintf("%s:%d", l.IP, l.Port),
	}
	if l.User != "" {
		u.User = url.UserPassword(l.User, l.Password)
	}
	return u
}

// Expired reports whether the lease has passed its expiry timestamp.
// A zero ExpireAt means the provider did not communicate one.
func (l *Lease) Expired(now time.Time) bool {
	return !l.ExpireAt.IsZero() && now.After(l.ExpireAt)
}

// Addr returns the ip:port pair, used as the lease identity in logs.
func (l *Lease) Addr() string {
	return fmt.Sprintf("%s:%d", l.IP, l.Port)
}
