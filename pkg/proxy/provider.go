package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"context"

	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
)

// Provider fetches fresh proxy leases from a vendor.
type Provider interface {
	// FetchLeases returns up to count leases. A vendor outage surfaces as a
	// transient error so the pool's bounded acquire loop can decide.
	FetchLeases(ctx context.Context, count int) ([]*Lease, error)
}

// HTTPProvider fetches leases from a JSON vendor API. The expected payload
// shape follows the common commercial proxy vendors:
//
//	{"code": 0, "data": [{"ip": "...", "port": 8080, "user": "...",
//	  "password": "...", "expire_ts": 1700000000}]}
type HTTPProvider struct {
	endpoint string
	key      string
	client   *http.Client
	logger   logger.Logger
}

// vendorResponse is the wire shape of the vendor lease API.
type vendorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		IP       string `json:"ip"`
		Port     int    `json:"port"`
		User     string `json:"user"`
		Password string `json:"password"`
		ExpireTs int64  `json:"expire_ts"`
	} `json:"data"`
}

// NewHTTPProvider creates a provider against the given vendor endpoint.
func NewHTTPProvider(endpoint, key string, log logger.Logger) *HTTPProvider {
	if log == nil {
		log = logger.GetLogger()
	}
	return &HTTPProvider{
		endpoint: endpoint,
		key:      key,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   log,
	}
}

// FetchLeases requests count leases from the vendor API.
func (p *HTTPProvider) FetchLeases(ctx context.Context, count int) ([]*Lease, error) {
	reqURL, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid provider endpoint: %w", err)
	}
	q := reqURL.Query()
	q.Set("num", strconv.Itoa(count))
	if p.key != "" {
		q.Set("key", p.key)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeTransient, "proxy provider unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.ErrorTypeTransient, "proxy provider returned status %d", resp.StatusCode).WithCode(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeTransient, "reading provider response: %v", err)
	}

	var payload vendorResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errs.Newf(errs.ErrorTypeParsing, "malformed provider response: %v", err)
	}
	if payload.Code != 0 {
		return nil, errs.Newf(errs.ErrorTypeTransient, "provider rejected request: %s", payload.Msg).WithCode(payload.Code)
	}

	leases := make([]*Lease, 0, len(payload.Data))
	for _, item := range payload.Data {
		lease := &Lease{
			IP:       item.IP,
			Port:     item.Port,
			User:     item.User,
			Password: item.Password,
			Protocol: "http",
		}
		if item.ExpireTs > 0 {
			lease.ExpireAt = time.Unix(item.ExpireTs, 0)
		}
		leases = append(leases, lease)
	}

	p.logger.DebugWithFields("fetched proxy leases from provider", map[string]interface{}{
		"requested": count,
		"received":  len(leases),
	})

	return leases, nil
}

// StaticProvider serves a fixed set of leases, for operator-supplied proxies
// and for tests. Each FetchLeases call hands out copies so pool eviction
// cannot mutate the source list.
type StaticProvider struct {
	Leases []*Lease
}

// FetchLeases returns up to count copies of the configured leases.
func (p *StaticProvider) FetchLeases(_ context.Context, count int) ([]*Lease, error) {
	if len(p.Leases) == 0 {
		return nil, errs.New(errs.ErrorTypeTransient, "static provider has no leases configured")
	}

	n := count
	if n > len(p.Leases) {
		n = len(p.Leases)
	}

	out := make([]*Lease, 0, n)
	for _, l := range p.Leases[:n] {
		leaseCopy := *l
		out = append(out, &leaseCopy)
	}
	return out, nil
}
