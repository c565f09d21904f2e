package loadbalancer

import (
	"net/url"
	"sync"
)

// LoadBalancer rotates over a fixed set of upstream base URLs. The
// gateway uses it to spread /costing/ traffic over replicas when more
// than one upstream is configured.
type LoadBalancer struct {
	upstreams []*url.URL
	mu        sync.Mutex
	current   int
}

func New(upstreams []*url.URL) *LoadBalancer {
	return &LoadBalancer{upstreams: upstreams}
}

// Next returns the next upstream in round-robin order.
func (lb *LoadBalancer) Next() *url.URL {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	u := lb.upstreams[lb.current]
	lb.current = (lb.current + 1) % len(lb.upstreams)
	return u
}
