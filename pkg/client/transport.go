package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 16
)

// transportConfig collects the options that shape the connection pool.
type transportConfig struct {
	identity   *Identity
	timeout    time.Duration
	rootCAs    *x509.CertPool
	insecure   bool
	httpClient *http.Client

	rps   float64
	burst int

	retryMaxElapsed time.Duration
}

// transport owns the pooled HTTP client. http.Transport synchronizes its own
// connection pool; the limiter is safe for concurrent use.
type transport struct {
	hc              *http.Client
	limiter         *rate.Limiter
	retryMaxElapsed time.Duration
	logger          *zap.Logger
}

func newTransport(cfg transportConfig, logger *zap.Logger) (*transport, error) {
	t := &transport{
		hc:              cfg.httpClient,
		retryMaxElapsed: cfg.retryMaxElapsed,
		logger:          logger,
	}
	if cfg.rps > 0 {
		burst := cfg.burst
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.rps), burst)
	}
	if t.hc != nil {
		return t, nil
	}

	timeout := cfg.timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	tlsCfg := &tls.Config{
		Certificates:       []tls.Certificate{cfg.identity.Certificate()},
		RootCAs:            cfg.rootCAs,
		InsecureSkipVerify: cfg.insecure, //nolint:gosec // the account server presents a private CA
		MinVersion:         tls.VersionTLS12,
	}
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     tlsCfg,
		TLSHandshakeTimeout: timeout,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	h2, err := http2.ConfigureTransports(base)
	if err != nil {
		return nil, &Error{Kind: KindConfig, Op: "configure http2", Err: err}
	}
	h2.ReadIdleTimeout = 30 * time.Second

	t.hc = &http.Client{Transport: base, Timeout: timeout}
	return t, nil
}

// exchange is one completed request/response pair.
type exchange struct {
	status int
	body   []byte
}

// send performs req and returns the status and body. Failures are *Error
// values of KindTransport. With retries enabled, retryable failures are
// repeated with exponential backoff; everything else is returned at once.
func (t *transport) send(req *http.Request) (int, []byte, error) {
	if t.retryMaxElapsed <= 0 {
		ex, err := t.once(req)
		return ex.status, ex.body, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	attempt := 0
	operation := func() (exchange, error) {
		attempt++
		ex, err := t.once(req)
		if err == nil {
			return ex, nil
		}
		if IsRetryable(err) {
			t.logger.Debug("retrying request",
				zap.Int("attempt", attempt),
				zap.String("url", req.URL.Redacted()),
				zap.Error(err),
			)
			return exchange{}, err
		}
		return exchange{}, backoff.Permanent(err)
	}

	ex, err := backoff.Retry(req.Context(), operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxElapsedTime(t.retryMaxElapsed),
	)
	if err != nil {
		return 0, nil, asTransportError(err)
	}
	return ex.status, ex.body, nil
}

func (t *transport) once(req *http.Request) (exchange, error) {
	ctx := req.Context()
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			kind := TransportTimeout
			if errors.Is(ctx.Err(), context.Canceled) {
				kind = TransportCanceled
			}
			return exchange{}, transportError(kind, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	resp, err := t.hc.Do(req)
	if err != nil {
		return exchange{}, transportError(classifyTransport(err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		kind := TransportMalformedResponse
		if k := classifyTransport(err); k == TransportTimeout || k == TransportCanceled {
			kind = k
		}
		return exchange{}, transportError(kind, fmt.Errorf("read response: %w", err))
	}
	return exchange{status: resp.StatusCode, body: body}, nil
}

func (t *transport) close() {
	t.hc.CloseIdleConnections()
}
