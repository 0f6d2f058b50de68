package apiclient

import "time"

// PoolStats is a snapshot of the connection pool settings of a Handle.
//
// Example usage:
//
//	stats := handle.PoolStats()
//	fmt.Printf("max conns per host: %d\n", stats.MaxConnsPerHost)
type PoolStats struct {
	// MaxIdleConns is the maximum idle connections across all hosts.
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost is the maximum total connections per host.
	// Zero means unlimited.
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept before closing.
	IdleConnTimeout time.Duration

	// DisableKeepAlives indicates if HTTP keep-alives are disabled.
	DisableKeepAlives bool

	// Open reports whether the underlying network transport exists yet.
	Open bool
}

// PoolStats returns the pool settings. Before the first Open (or when a
// mock transport is installed) the configured values are reported.
func (h *Handle) PoolStats() PoolStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if t := h.transport; t != nil {
		return PoolStats{
			MaxIdleConns:        t.MaxIdleConns,
			MaxIdleConnsPerHost: t.MaxIdleConnsPerHost,
			MaxConnsPerHost:     t.MaxConnsPerHost,
			IdleConnTimeout:     t.IdleConnTimeout,
			DisableKeepAlives:   t.DisableKeepAlives,
			Open:                true,
		}
	}

	hc := h.cfg.httpConfig
	return PoolStats{
		MaxIdleConns:        hc.MaxIdleConns,
		MaxIdleConnsPerHost: hc.MaxIdleConnsPerHost,
		MaxConnsPerHost:     hc.MaxConnsPerHost,
		IdleConnTimeout:     hc.IdleConnTimeout,
		DisableKeepAlives:   hc.DisableKeepAlives,
	}
}
