// Package connectivity answers the single question the poll loop asks
// before every fetch: can we reach the API host right now?
package connectivity

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const probeTimeout = 5 * time.Second

// Probe checks reachability of a single host with a cheap TCP dial.
type Probe struct {
	addr   string // host:port
	dialer net.Dialer
	logger *zap.Logger
}

// NewProbe creates a probe for the given API endpoint URL.
func NewProbe(endpoint string, logger *zap.Logger) (*Probe, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint %q: %w", endpoint, err)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("endpoint %q has no host", endpoint)
	}
	port := u.Port()
	if port == "" {
		if u.Scheme == "http" {
			port = "80"
		} else {
			port = "443"
		}
	}

	return &Probe{
		addr:   net.JoinHostPort(host, port),
		logger: logger,
	}, nil
}

// Online reports whether the API host currently accepts connections.
func (p *Probe) Online(ctx context.Context) bool {
	dialCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	conn, err := p.dialer.DialContext(dialCtx, "tcp", p.addr)
	if err != nil {
		p.logger.Debug("Connectivity probe failed",
			zap.String("addr", p.addr),
			zap.Error(err))
		return false
	}
	conn.Close()
	return true
}
