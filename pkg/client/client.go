package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jmerrifield20/nnas/internal/lookupcache"
	"github.com/jmerrifield20/nnas/pkg/accountxml"
	"github.com/jmerrifield20/nnas/pkg/device"
)

// Client talks to one account server endpoint as one device. It is safe for
// concurrent use; the only shared mutable state is the connection pool, the
// optional cache and the optional metrics, all internally synchronized.
type Client struct {
	endpoint *url.URL
	identity *Identity
	profile  device.Profile

	// settings filled in by options
	logger       *zap.Logger
	headerNames  device.HeaderNames
	extraHeaders http.Header
	lookupPath   string
	rules        Rules
	cacheTTL     time.Duration
	registerer   prometheus.Registerer
	tcfg         transportConfig

	builder    *RequestBuilder
	classifier Classifier
	transport  *transport
	cache      *lookupcache.Cache[LookupResult]
	metrics    *metrics
	stop       context.CancelFunc
}

// New loads the client certificate and key, validates endpoint and returns
// a Client ready for lookups. endpoint is the API base, for example
// "https://account.nintendo.net/v1/api".
//
//	c, err := client.New("https://account.nintendo.net/v1/api",
//	    "ctr-common-1.crt", "ctr-common-1.key", profile,
//	    client.WithRules(client.AccountServerRules()),
//	    client.WithInsecureSkipVerify(),
//	)
func New(endpoint, certPath, keyPath string, profile device.Profile, opts ...Option) (*Client, error) {
	u, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	id, err := LoadIdentity(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	return NewWithIdentity(u.String(), id, profile, opts...)
}

// NewWithIdentity is New for an identity that is already loaded.
func NewWithIdentity(endpoint string, id *Identity, profile device.Profile, opts ...Option) (*Client, error) {
	u, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, certLoadError(fmt.Errorf("no identity"))
	}

	c := &Client{
		endpoint:     u,
		identity:     id,
		profile:      profile,
		logger:       zap.NewNop(),
		headerNames:  device.DefaultHeaderNames(),
		extraHeaders: http.Header{},
		lookupPath:   DefaultLookupPath,
		rules:        DefaultRules(),
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	c.tcfg.identity = id

	if id.Expired(time.Now()) {
		c.logger.Warn("client certificate is outside its validity period",
			zap.String("subject", id.Leaf().Subject.String()),
			zap.Time("not_after", id.Leaf().NotAfter),
		)
	}

	c.builder, err = NewRequestBuilder(u, c.lookupPath, c.headerNames, c.extraHeaders)
	if err != nil {
		return nil, err
	}
	c.classifier = NewClassifier(c.rules)
	c.transport, err = newTransport(c.tcfg, c.logger)
	if err != nil {
		return nil, err
	}
	if c.registerer != nil {
		c.metrics, err = newMetrics(c.registerer)
		if err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.stop = cancel
	if c.cacheTTL > 0 {
		c.cache = lookupcache.New[LookupResult](c.cacheTTL)
		c.cache.StartEviction(ctx, c.cacheTTL, c.logger)
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(endpoint, certPath, keyPath string, profile device.Profile, opts ...Option) *Client {
	c, err := New(endpoint, certPath, keyPath, profile, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func parseEndpoint(endpoint string) (*url.URL, error) {
	invalid := func(err error) error {
		return &Error{Kind: KindInvalidEndpoint, Op: "parse endpoint", Err: err}
	}
	if endpoint == "" {
		return nil, invalid(fmt.Errorf("endpoint is empty"))
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, invalid(err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, invalid(fmt.Errorf("scheme must be https or http, got %q", u.Scheme))
	}
	if u.Host == "" {
		return nil, invalid(fmt.Errorf("endpoint %q has no host", endpoint))
	}
	if u.User != nil {
		return nil, invalid(fmt.Errorf("endpoint must not carry credentials"))
	}
	return u, nil
}

// Endpoint returns the API base URL.
func (c *Client) Endpoint() string { return c.endpoint.String() }

// Identity returns the client certificate in use.
func (c *Client) Identity() *Identity { return c.identity }

// Profile returns a copy of the device profile.
func (c *Client) Profile() device.Profile { return c.profile }

// Close stops background work and drops idle connections. Lookups after
// Close still work but open new connections.
func (c *Client) Close() {
	c.stop()
	c.transport.close()
}

// DoesUserExist asks the server whether username is registered. It performs
// one round trip (or none on a cache hit) and never panics; failures are
// reported as OutcomeError with a *Error in the result.
func (c *Client) DoesUserExist(ctx context.Context, username string) LookupResult {
	log := c.logger.With(
		zap.String("lookup_id", uuid.NewString()),
		zap.String("username", username),
	)

	if c.cache != nil {
		if res, ok := c.cache.Get(username); ok {
			c.metrics.cacheHit()
			log.Debug("lookup served from cache", zap.Stringer("outcome", res.Outcome))
			return res.clone()
		}
	}

	start := time.Now()
	req, err := c.builder.BuildExistenceRequest(ctx, username, c.profile)
	if err != nil {
		res := LookupResult{
			Username: username,
			Outcome:  OutcomeError,
			Err:      &Error{Kind: KindConfig, Op: "lookup", Err: err},
		}
		log.Error("build lookup request", zap.Error(err))
		return res
	}

	status, body, sendErr := c.transport.send(req)
	res := c.classifier.Classify(status, body, sendErr)
	res.Username = username
	elapsed := time.Since(start)
	c.metrics.observe(res, elapsed)

	fields := []zap.Field{
		zap.Stringer("outcome", res.Outcome),
		zap.Int("status", res.Status),
		zap.Duration("elapsed", elapsed),
	}
	if res.Err != nil {
		log.Warn("lookup failed", append(fields, zap.Error(res.Err))...)
		return res
	}
	log.Debug("lookup complete", fields...)

	if c.cache != nil {
		c.cache.Set(username, res.clone())
	}
	return res
}

// Exists is DoesUserExist narrowed to a boolean. It is true only when the
// server confirmed the account exists; false also covers errors.
func (c *Client) Exists(ctx context.Context, username string) bool {
	return c.DoesUserExist(ctx, username).Exists()
}

// Forget drops any cached result for username.
func (c *Client) Forget(username string) {
	if c.cache != nil {
		c.cache.Invalidate(username)
	}
}

// GetEULA fetches the Nintendo Network EULA for country. An empty version
// asks for the latest revision.
func (c *Client) GetEULA(ctx context.Context, country, version string) (*accountxml.Agreements, error) {
	if version == "" {
		version = accountxml.LatestVersion
	}
	req, err := c.builder.BuildAgreementsRequest(ctx, country, version, c.profile)
	if err != nil {
		return nil, configError("eula", err)
	}
	body, err := c.fetch(req)
	if err != nil {
		return nil, err
	}
	doc, err := accountxml.ParseAgreements(body)
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Status: http.StatusOK, Op: "eula", Err: err}
	}
	return doc, nil
}

// MapUserIDs translates ids from the input id space to the output one, for
// example account ids to principal ids.
func (c *Client) MapUserIDs(ctx context.Context, input, output accountxml.IDType, ids ...string) (*accountxml.MappedIDs, error) {
	if len(ids) == 0 {
		return &accountxml.MappedIDs{}, nil
	}
	req, err := c.builder.BuildMappedIDsRequest(ctx, string(input), string(output), ids, c.profile)
	if err != nil {
		return nil, configError("mapped ids", err)
	}
	body, err := c.fetch(req)
	if err != nil {
		return nil, err
	}
	doc, err := accountxml.ParseMappedIDs(body)
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Status: http.StatusOK, Op: "mapped ids", Err: err}
	}
	return doc, nil
}

// GetMiis fetches the Miis of the given principal ids.
func (c *Client) GetMiis(ctx context.Context, pids ...int64) (*accountxml.Miis, error) {
	if len(pids) == 0 {
		return &accountxml.Miis{}, nil
	}
	req, err := c.builder.BuildMiisRequest(ctx, pids, c.profile)
	if err != nil {
		return nil, configError("miis", err)
	}
	body, err := c.fetch(req)
	if err != nil {
		return nil, err
	}
	doc, err := accountxml.ParseMiis(body)
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Status: http.StatusOK, Op: "miis", Err: err}
	}
	return doc, nil
}

// fetch performs req and returns the body of a 200 response. Any other
// status becomes a KindUnexpected error carrying the server's error sheet.
func (c *Client) fetch(req *http.Request) ([]byte, error) {
	status, body, err := c.transport.send(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("path", req.URL.Path), zap.Error(err))
		return nil, err
	}
	if status == http.StatusOK {
		return body, nil
	}
	unexpected := &Error{Kind: KindUnexpected, Status: status, Op: req.Method + " " + req.URL.Path}
	if sheet, perr := accountxml.ParseErrorSheet(body); perr == nil {
		if first, ok := sheet.First(); ok {
			unexpected.Err = first
		}
	}
	c.logger.Warn("unexpected response", zap.Int("status", status), zap.String("path", req.URL.Path))
	return nil, unexpected
}
