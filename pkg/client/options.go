package client

import (
	"crypto/x509"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"

	"github.com/jmerrifield20/nnas/pkg/device"
)

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) error {
		if l != nil {
			c.logger = l
		}
		return nil
	}
}

// WithHTTPClient sets a custom http.Client, overriding the TLS, timeout and
// HTTP/2 settings the client would otherwise build from its identity.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.tcfg.httpClient = hc
		return nil
	}
}

// WithTimeout bounds every request. The default is 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return configError("timeout", fmt.Errorf("must be positive, got %s", d))
		}
		c.tcfg.timeout = d
		return nil
	}
}

// WithRootCAs trusts the PEM-encoded CA certificates when verifying the
// server. The system pool is used otherwise.
func WithRootCAs(caPEM []byte) Option {
	return func(c *Client) error {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return configError("root CAs", fmt.Errorf("no certificates found in CA PEM"))
		}
		c.tcfg.rootCAs = pool
		return nil
	}
}

// WithInsecureSkipVerify disables verification of the server certificate.
// The client certificate is still presented.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.tcfg.insecure = true
		return nil
	}
}

// WithHeaderNames overrides the header carrying each profile field.
func WithHeaderNames(names device.HeaderNames) Option {
	return func(c *Client) error {
		if err := names.Validate(); err != nil {
			return configError("header names", err)
		}
		c.headerNames = names.Clone()
		return nil
	}
}

// WithHeader adds a static header to every request, for example
// X-Nintendo-FPD-Version.
func WithHeader(name, value string) Option {
	return func(c *Client) error {
		if name == "" {
			return configError("header", fmt.Errorf("empty header name"))
		}
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return configError("header", fmt.Errorf("invalid header %q", name))
		}
		c.extraHeaders.Set(name, value)
		return nil
	}
}

// WithLookupPath overrides the path appended to the endpoint for existence
// lookups. The default is "/people/".
func WithLookupPath(p string) Option {
	return func(c *Client) error {
		c.lookupPath = p
		return nil
	}
}

// WithRules replaces the response classification rules.
func WithRules(r Rules) Option {
	return func(c *Client) error {
		c.rules = r.clone()
		return nil
	}
}

// WithCacheTTL caches definitive lookup results for ttl. Errors are never
// cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		c.cacheTTL = ttl
		return nil
	}
}

// WithRateLimit caps outgoing requests at rps per second with the given
// burst. Callers block until a token is available or their context ends.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 {
			return configError("rate limit", fmt.Errorf("rps must be positive, got %v", rps))
		}
		c.tcfg.rps = rps
		c.tcfg.burst = burst
		return nil
	}
}

// WithRetry retries dial failures and timeouts with exponential backoff for
// at most maxElapsed. Certificate rejections and unexpected statuses are
// never retried.
func WithRetry(maxElapsed time.Duration) Option {
	return func(c *Client) error {
		c.tcfg.retryMaxElapsed = maxElapsed
		return nil
	}
}

// WithMetrics registers lookup metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) error {
		c.registerer = reg
		return nil
	}
}

func configError(op string, err error) *Error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}
