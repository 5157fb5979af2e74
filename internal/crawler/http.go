package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

const maxBodyBytes = 10 << 20

// ProxyPool is a static list of proxies. It is never mutated after
// construction, so sessions can pick from it concurrently.
type ProxyPool struct {
	proxies []*url.URL
}

func NewProxyPool(raw []string) (*ProxyPool, error) {
	p := &ProxyPool{}
	for _, r := range raw {
		u, err := url.Parse(r)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q", r)
		}
		p.proxies = append(p.proxies, u)
	}
	return p, nil
}

// Pick returns a random proxy, or nil for a direct connection.
func (p *ProxyPool) Pick() *url.URL {
	if p == nil || len(p.proxies) == 0 {
		return nil
	}
	return p.proxies[rand.Intn(len(p.proxies))]
}

func (p *ProxyPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.proxies)
}

// HTTPFetcher reads pages over plain HTTP and extracts prices with goquery.
type HTTPFetcher struct {
	UserAgent string
	Proxies   *ProxyPool
	Timeout   time.Duration
}

// Open builds a fresh transport for one attempt, with its own proxy.
func (f *HTTPFetcher) Open(ctx context.Context) (Session, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if proxy := f.Proxies.Pick(); proxy != nil {
		tr.Proxy = http.ProxyURL(proxy)
	}
	return &httpSession{
		transport: tr,
		client: &http.Client{
			Timeout:   f.Timeout,
			Transport: tr,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: f.UserAgent,
	}, nil
}

type httpSession struct {
	transport *http.Transport
	client    *http.Client
	userAgent string
}

func (s *httpSession) Extract(ctx context.Context, t Target) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return "", &Error{Class: ErrNavigation, Err: err}
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", &Error{Class: ErrTimeout, Err: err}
		}
		return "", &Error{Class: ErrNavigation, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &Error{Class: ErrRateLimited, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusForbidden:
		return "", &Error{Class: ErrBlocked, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return "", &Error{Class: ErrNotFound, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &Error{Class: ErrNavigation, StatusCode: resp.StatusCode}
	}

	return ParsePrice(io.LimitReader(resp.Body, maxBodyBytes), t.Locator)
}

func (s *httpSession) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
