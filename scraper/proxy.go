package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/proxy"
)

// newProxyFunc returns a proxy selector that moves to the next proxy every `every`
// requests. With every <= 1 it is colly's per-request round robin.
func newProxyFunc(proxies []string, every int) (colly.ProxyFunc, error) {
	if len(proxies) == 0 {
		return nil, fmt.Errorf("no proxies configured")
	}
	if every <= 1 {
		return proxy.RoundRobinProxySwitcher(proxies...)
	}

	parsed := make([]*url.URL, 0, len(proxies))
	for _, raw := range proxies {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse proxy %q: %w", raw, err)
		}
		parsed = append(parsed, u)
	}
	r := &proxyRotator{proxies: parsed, every: uint64(every)}
	return r.GetProxy, nil
}

// proxyRotator keeps the request counter that drives identity rotation.
type proxyRotator struct {
	proxies []*url.URL
	every   uint64
	count   atomic.Uint64
}

func (r *proxyRotator) GetProxy(pr *http.Request) (*url.URL, error) {
	n := r.count.Add(1) - 1
	u := r.proxies[(n/r.every)%uint64(len(r.proxies))]
	ctx := context.WithValue(pr.Context(), colly.ProxyURLKey, u.String())
	*pr = *pr.WithContext(ctx)
	return u, nil
}
